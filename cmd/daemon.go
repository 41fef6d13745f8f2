package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"cis-timetable/job"
	"cis-timetable/site"
)

// Daemon runs the job on its cron schedule and serves the output.
var Daemon = &cobra.Command{
	Use:   "daemon",
	Short: "Run on a cron schedule and serve the output with /metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.ServeAddr = serveAddr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		j, err := job.FromConfig(ctx, cfg, job.WithMetrics(job.NewMetrics(reg)))
		if err != nil {
			return err
		}

		server := site.NewServer(cfg.ServeAddr, cfg.OutputDir, cfg.HTMLFile, reg)
		d, err := job.NewDaemon(cfg, j, server)
		if err != nil {
			return err
		}
		return d.Run(ctx)
	},
}

func init() {
	Daemon.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}
