package job

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"cis-timetable/config"
	"cis-timetable/logger"
	"cis-timetable/site"
)

// Daemon runs the job on a cron schedule and serves the output directory.
type Daemon struct {
	cfg    *config.Config
	job    *Job
	cron   *cron.Cron
	server *site.Server

	// base parents every run; set by Run before the first one starts.
	base context.Context
}

// NewDaemon schedules j according to cfg.CronSpec in the configured time
// zone. server may be nil to run without the preview server.
func NewDaemon(cfg *config.Config, j *Job, server *site.Server) (*Daemon, error) {
	d := &Daemon{
		cfg:    cfg,
		job:    j,
		server: server,
		base:   context.Background(),
		cron: cron.New(
			cron.WithLocation(cfg.Location()),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}

	if _, err := d.cron.AddFunc(cfg.CronSpec, func() { d.runOnce(d.base) }); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", cfg.CronSpec, err)
	}
	return d, nil
}

func (d *Daemon) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, d.cfg.Timeout())
	defer cancel()

	// Failures are logged by Run; the next tick tries again.
	_, _ = d.job.Run(ctx)
}

// Run blocks until ctx is canceled. Canceling ctx also aborts a run in
// progress.
func (d *Daemon) Run(ctx context.Context) error {
	logger.Log.WithField("cron", d.cfg.CronSpec).Info("Starting timetable daemon")

	d.base = ctx
	if d.cfg.RunOnStart {
		d.runOnce(ctx)
	}
	d.cron.Start()

	g, gctx := errgroup.WithContext(ctx)
	if d.server != nil {
		g.Go(d.server.ListenAndServe)
	}
	g.Go(func() error {
		<-gctx.Done()
		stopped := d.cron.Stop()
		<-stopped.Done()
		if d.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout())
			defer cancel()
			return d.server.Shutdown(shutdownCtx)
		}
		return nil
	})

	err := g.Wait()
	logger.Log.Info("Timetable daemon stopped")
	return err
}
