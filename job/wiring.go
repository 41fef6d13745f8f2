package job

import (
	"context"
	"fmt"

	"cis-timetable/config"
	"cis-timetable/logger"
	"cis-timetable/notify"
	"cis-timetable/uploader"
)

// FromConfig builds a job with every publisher and notifier cfg enables.
// extra options are applied after the configured ones.
func FromConfig(ctx context.Context, cfg *config.Config, extra ...Option) (*Job, error) {
	var opts []Option

	if cfg.GithubToken != "" && cfg.GithubRepo != "" {
		opts = append(opts, WithPublishers(&uploader.GitHubPublisher{
			Token: cfg.GithubToken,
			Repo:  cfg.GithubRepo,
			Path:  cfg.GithubPath,
		}))
		logger.Log.Debugf("GitHub publishing enabled for %s", cfg.GithubRepo)
	}

	if cfg.S3Bucket != "" {
		pub, err := uploader.NewS3Publisher(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithPublishers(pub))
		logger.Log.Debugf("S3 publishing enabled for bucket %s", cfg.S3Bucket)
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, "")
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		opts = append(opts, WithNotifier(tg))
	}

	return New(cfg, append(opts, extra...)...)
}
