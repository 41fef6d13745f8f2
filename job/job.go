package job

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"cis-timetable/calendar"
	"cis-timetable/config"
	"cis-timetable/logger"
	"cis-timetable/notify"
	"cis-timetable/scraper"
	"cis-timetable/site"
	"cis-timetable/timetable"
	"cis-timetable/uploader"
)

// Stage names a step of the pipeline in diagnostics and metrics.
type Stage string

const (
	StageLogin    Stage = "authenticate"
	StageIndex    Stage = "fetch-index"
	StageLink     Stage = "locate-link"
	StageDownload Stage = "download"
	StageParse    Stage = "parse"
	StageRender   Stage = "render"
	StageWrite    Stage = "write"
	StagePublish  Stage = "publish"
)

// StageError reports which step of a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Portal is the remote side of a run. *scraper.Scraper implements it.
type Portal interface {
	Login(ctx context.Context) error
	FetchIndex(ctx context.Context) (*goquery.Document, *url.URL, error)
	LocateLink(doc *goquery.Document, base *url.URL) (scraper.Link, error)
	Download(ctx context.Context, link scraper.Link) (*scraper.Workbook, error)
}

// Result summarizes a successful run.
type Result struct {
	Entries   int
	Source    string
	Fallback  bool
	Artifacts []string
	Duration  time.Duration
}

// Job is the timetable fetch-and-publish pipeline.
type Job struct {
	cfg        *config.Config
	portal     Portal
	publishers []uploader.Publisher
	notifier   notify.Notifier
	metrics    *Metrics
	now        func() time.Time
}

// Option customizes a Job.
type Option func(*Job)

// WithPortal replaces the configured portal session.
func WithPortal(p Portal) Option {
	return func(j *Job) { j.portal = p }
}

// WithPublishers adds remote targets that receive the artifacts after the
// local write.
func WithPublishers(p ...uploader.Publisher) Option {
	return func(j *Job) { j.publishers = append(j.publishers, p...) }
}

func WithNotifier(n notify.Notifier) Option {
	return func(j *Job) { j.notifier = n }
}

func WithMetrics(m *Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

// WithClock fixes the time source; the snapshot stamp and the window are
// derived from it.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// New creates a job for cfg. Without WithPortal the portal session is
// built from the configuration.
func New(cfg *config.Config, opts ...Option) (*Job, error) {
	j := &Job{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}

	if j.portal == nil {
		rule, err := scraper.NewLinkRule(cfg.LinkSelector, cfg.LinkPatterns)
		if err != nil {
			return nil, err
		}
		s, err := scraper.New(scraper.Options{
			LoginURL:         cfg.LoginURL,
			ListURL:          cfg.ListURL,
			FallbackURL:      cfg.FallbackURL,
			Username:         cfg.Username,
			Password:         cfg.Password,
			Rule:             rule,
			FailureMarker:    cfg.FailureMarker,
			MaxDownloadBytes: cfg.MaxDownloadBytes(),
		})
		if err != nil {
			return nil, err
		}
		j.portal = s
	}
	return j, nil
}

// Run executes one complete invocation. A failure before the write stage
// leaves the output directory untouched, so the previously published
// artifacts stay live. A publish failure happens after the local write.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	start := j.now()
	log := logger.Log.WithField("run_started", start.Format(time.RFC3339))
	log.Info("Starting timetable run")

	res, err := j.run(ctx, log)
	elapsed := j.now().Sub(start)
	if res != nil {
		res.Duration = elapsed
	}

	j.metrics.observe(res, err, elapsed, j.now())
	j.report(ctx, res, err)

	if err != nil {
		log.WithError(err).Error("Timetable run failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"entries":  res.Entries,
		"source":   res.Source,
		"duration": res.Duration.String(),
	}).Info("Timetable run finished")
	return res, nil
}

func (j *Job) run(ctx context.Context, log *logger.Entry) (*Result, error) {
	if err := j.portal.Login(ctx); err != nil {
		return nil, fail(StageLogin, err)
	}

	doc, base, err := j.portal.FetchIndex(ctx)
	if err != nil {
		return nil, fail(StageIndex, err)
	}

	link, err := j.portal.LocateLink(doc, base)
	if err != nil {
		return nil, fail(StageLink, err)
	}

	wb, err := j.portal.Download(ctx, link)
	if err != nil {
		return nil, fail(StageDownload, err)
	}

	loc := j.cfg.Location()
	entries, err := timetable.Parse(bytes.NewReader(wb.Data), loc)
	if err != nil {
		return nil, fail(StageParse, err)
	}

	now := j.now().In(loc)
	snap := timetable.NewSnapshot(entries, now, wb.URL).Window(now, j.cfg.PastDays, j.cfg.FutureDays)
	log.WithFields(logrus.Fields{
		"parsed": len(entries),
		"kept":   len(snap.Entries),
	}).Info("Parsed timetable")

	artifacts, err := j.render(snap, loc)
	if err != nil {
		return nil, fail(StageRender, err)
	}

	if err := uploader.WriteArtifacts(j.cfg.OutputDir, artifacts); err != nil {
		return nil, fail(StageWrite, err)
	}

	for _, p := range j.publishers {
		if err := p.Publish(ctx, artifacts); err != nil {
			return nil, fail(StagePublish, fmt.Errorf("%s: %w", p.Name(), err))
		}
		log.WithField("publisher", p.Name()).Info("Published artifacts")
	}

	res := &Result{
		Entries:  len(snap.Entries),
		Source:   wb.URL,
		Fallback: link.Fallback,
	}
	for _, a := range artifacts {
		res.Artifacts = append(res.Artifacts, a.Name)
	}
	return res, nil
}

func (j *Job) render(snap *timetable.Snapshot, loc *time.Location) ([]uploader.Artifact, error) {
	page, err := site.Render(snap, site.PageOptions{
		Title:    j.cfg.Title,
		ICSFile:  j.cfg.ICSFile,
		Schedule: scheduleNote(j.cfg),
		Location: loc,
	})
	if err != nil {
		return nil, err
	}

	feed := calendar.Render(snap, calendar.Options{
		Name:     j.cfg.Title,
		Timezone: loc.String(),
		Domain:   feedDomain(j.cfg.ListURL),
	})

	return []uploader.Artifact{
		{Name: j.cfg.HTMLFile, ContentType: "text/html; charset=utf-8", Data: page},
		{Name: j.cfg.ICSFile, ContentType: "text/calendar; charset=utf-8", Data: feed},
	}, nil
}

func scheduleNote(cfg *config.Config) string {
	if cfg.CronSpec == "0 6 * * *" {
		return fmt.Sprintf("Automatisch aktualisiert täglich 06:00 (%s).", cfg.Timezone)
	}
	return ""
}

func feedDomain(listURL string) string {
	u, err := url.Parse(listURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return u.Hostname()
}

func (j *Job) report(ctx context.Context, res *Result, err error) {
	if j.notifier == nil {
		return
	}
	var text string
	switch {
	case err != nil:
		text = fmt.Sprintf("%s: Aktualisierung fehlgeschlagen (%v)", j.cfg.Title, err)
	case res.Fallback:
		text = fmt.Sprintf("%s aktualisiert: %d Termine (Fallback-Link verwendet).", j.cfg.Title, res.Entries)
	default:
		text = fmt.Sprintf("%s aktualisiert: %d Termine.", j.cfg.Title, res.Entries)
	}
	if nerr := j.notifier.Notify(ctx, text); nerr != nil {
		logger.Log.WithError(nerr).Warn("Could not send run notification")
	}
}
