package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cis-timetable/config"
	"cis-timetable/job"
	"cis-timetable/logger"
)

var (
	configFile string
	cfg        *config.Config
)

// Root is the cis-timetable command. The config is loaded before any
// subcommand runs.
var Root = &cobra.Command{
	Use:           "cis-timetable",
	Short:         "Publish the CIS timetable as a web page and calendar feed",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger.Init(cfg.LogLevel, cfg.Environment)
		return nil
	},
}

func init() {
	Root.PersistentFlags().StringVarP(&configFile, "config", "c", "config.json", "Path to the JSON config file (optional)")
	Root.AddCommand(Run, Daemon, Serve)
}

// Execute runs the CLI and prints one diagnostic line on failure.
func Execute() error {
	err := Root.Execute()
	if err == nil {
		return nil
	}

	var stageErr *job.StageError
	if errors.As(err, &stageErr) {
		fmt.Fprintf(os.Stderr, "error: %s failed: %v\n", stageErr.Stage, stageErr.Err)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}
