package site

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cis-timetable/logger"
)

// Server serves the published artifacts for local preview, plus health
// and metrics endpoints when running as a daemon.
type Server struct {
	dir      string
	htmlFile string
	srv      *http.Server
}

// NewServer serves dir on addr. gatherer may be nil to omit /metrics.
func NewServer(addr, dir, htmlFile string, gatherer prometheus.Gatherer) *Server {
	s := &Server{dir: dir, htmlFile: htmlFile}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.HealthCheck)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", http.FileServer(http.Dir(dir)))

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// HealthCheck answers 200 once a page has been published, 503 before.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(filepath.Join(s.dir, s.htmlFile)); err != nil {
		http.Error(w, "no timetable published yet", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("OK"))
}

// ListenAndServe blocks until the server stops. A regular Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	logger.Log.Infof("Starting HTTP server on %s serving %s", s.srv.Addr, s.dir)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
