package job

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the run collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	entries     prometheus.Gauge
	lastSuccess prometheus.Gauge
	duration    prometheus.Histogram
}

// NewMetrics registers the run collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetable",
			Name:      "runs_total",
			Help:      "Completed timetable runs by result (ok or the failed stage).",
		}, []string{"result"}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timetable",
			Name:      "entries",
			Help:      "Entries published by the last successful run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "timetable",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "timetable",
			Name:      "run_duration_seconds",
			Help:      "Duration of timetable runs.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	reg.MustRegister(m.runs, m.entries, m.lastSuccess, m.duration)
	return m
}

func (m *Metrics) observe(res *Result, err error, elapsed time.Duration, now time.Time) {
	if m == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())

	if err != nil {
		result := "error"
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			result = string(stageErr.Stage)
		}
		m.runs.WithLabelValues(result).Inc()
		return
	}

	m.runs.WithLabelValues("ok").Inc()
	m.entries.Set(float64(res.Entries))
	m.lastSuccess.Set(float64(now.Unix()))
}
