package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cis-timetable/job"
	"cis-timetable/logger"
)

var outputDir string

// Run performs one fetch-and-publish invocation and exits.
var Run = &cobra.Command{
	Use:   "run",
	Short: "Fetch the timetable once and write the page and feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
		defer cancel()

		j, err := job.FromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		res, err := j.Run(ctx)
		if err != nil {
			return err
		}

		logger.Log.Infof("Wrote %d entries to %s", res.Entries, cfg.OutputDir)
		return nil
	},
}

func init() {
	Run.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (overrides config)")
}
