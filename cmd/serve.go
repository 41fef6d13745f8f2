package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cis-timetable/site"
)

var serveAddr string

// Serve previews the output directory without running the job.
var Serve = &cobra.Command{
	Use:   "serve",
	Short: "Serve the output directory for local preview",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.ServeAddr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := site.NewServer(cfg.ServeAddr, cfg.OutputDir, cfg.HTMLFile, prometheus.DefaultGatherer)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(server.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	Serve.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8100)")
}
