package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything one run of the job needs.
type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`

	LoginURL    string `json:"login_url"`
	ListURL     string `json:"list_url"`
	FallbackURL string `json:"fallback_url"`

	// LinkSelector and LinkPatterns together form the download link rule.
	// Portal layout changes only ever need an edit here.
	LinkSelector  string   `json:"link_selector"`
	LinkPatterns  []string `json:"link_patterns"`
	FailureMarker string   `json:"failure_marker"`

	OutputDir     string `json:"output_dir"`
	HTMLFile      string `json:"html_file"`
	ICSFile       string `json:"ics_file"`
	Title         string `json:"title"`
	Timezone      string `json:"timezone"`
	PastDays      int    `json:"past_days"`
	FutureDays    int    `json:"future_days"`
	MaxDownloadMB int    `json:"max_download_mb"`
	TimeoutSec    int    `json:"timeout_sec"`

	CronSpec   string `json:"cron_spec"`
	RunOnStart bool   `json:"run_on_start"`
	ServeAddr  string `json:"serve_addr"`

	LogLevel    string `json:"log_level"`
	Environment string `json:"environment"`

	GithubToken string `json:"github_token"`
	GithubRepo  string `json:"github_repo"`
	GithubPath  string `json:"github_path"`

	S3Bucket string `json:"s3_bucket"`
	S3Prefix string `json:"s3_prefix"`

	TelegramToken  string `json:"telegram_token"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

// Defaults returns the configuration of the first-semester IKTF timetable.
func Defaults() *Config {
	return &Config{
		LoginURL:      "https://cis.miles.ac.at/cis/",
		ListURL:       "https://cis.miles.ac.at/cms/news.php?studiengang_kz=888&semester=1",
		FallbackURL:   "https://cis.miles.ac.at/cms/dms.php?id=848",
		LinkSelector:  "a[href*='dms.php?id=']",
		LinkPatterns:  []string{`(?i)1\.\s*Semester`, `(?i)IKTF(ü|ue)?`},
		OutputDir:     "public",
		HTMLFile:      "index.html",
		ICSFile:       "stundenplan.ics",
		Title:         "Stundenplan",
		Timezone:      "Europe/Vienna",
		PastDays:      7,
		FutureDays:    120,
		MaxDownloadMB: 20,
		TimeoutSec:    120,
		CronSpec:      "0 6 * * *",
		ServeAddr:     ":8100",
		LogLevel:      "info",
		Environment:   "development",
	}
}

// LoadConfig reads the JSON file at filename over the defaults and then
// applies environment overrides. A missing file is not an error, so a
// deployment can be configured from the environment alone.
func LoadConfig(filename string) (*Config, error) {
	cfg := Defaults()

	if filename != "" {
		file, err := os.Open(filename)
		switch {
		case err == nil:
			defer file.Close()
			decoder := json.NewDecoder(file)
			if err := decoder.Decode(cfg); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", filename, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	// .env never overrides variables already set in the process.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	strs := map[string]*string{
		"CIS_USER":          &cfg.Username,
		"CIS_PASS":          &cfg.Password,
		"CIS_LOGIN_URL":     &cfg.LoginURL,
		"CIS_LIST_URL":      &cfg.ListURL,
		"FALLBACK_XLSX_URL": &cfg.FallbackURL,
		"OUTPUT_DIR":        &cfg.OutputDir,
		"TIMETABLE_TZ":      &cfg.Timezone,
		"CRON_SPEC":         &cfg.CronSpec,
		"LOG_LEVEL":         &cfg.LogLevel,
		"ENVIRONMENT":       &cfg.Environment,
		"GITHUB_TOKEN":      &cfg.GithubToken,
		"GITHUB_REPO":       &cfg.GithubRepo,
		"GITHUB_PATH":       &cfg.GithubPath,
		"S3_BUCKET":         &cfg.S3Bucket,
		"TELEGRAM_TOKEN":    &cfg.TelegramToken,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)
	return nil
}

// Validate reports the first setting that would make a run fail early.
func (cfg *Config) Validate() error {
	if cfg.Username == "" || cfg.Password == "" {
		return errors.New("credentials missing: set CIS_USER and CIS_PASS")
	}
	for name, u := range map[string]string{"login_url": cfg.LoginURL, "list_url": cfg.ListURL} {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("invalid %s: %q", name, u)
		}
	}
	if cfg.FallbackURL != "" {
		if _, err := url.ParseRequestURI(cfg.FallbackURL); err != nil {
			return fmt.Errorf("invalid fallback_url: %q", cfg.FallbackURL)
		}
	}
	if cfg.LinkSelector == "" {
		return errors.New("link_selector must not be empty")
	}
	if cfg.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.PastDays < 0 || cfg.FutureDays < 0 {
		return errors.New("past_days and future_days must not be negative")
	}
	if cfg.GithubToken != "" && cfg.GithubRepo == "" {
		return errors.New("github_repo is required when github_token is set")
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Timeout bounds one complete run.
func (cfg *Config) Timeout() time.Duration {
	if cfg.TimeoutSec <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(cfg.TimeoutSec) * time.Second
}

// MaxDownloadBytes caps the spreadsheet download.
func (cfg *Config) MaxDownloadBytes() int64 {
	if cfg.MaxDownloadMB <= 0 {
		return 20 << 20
	}
	return int64(cfg.MaxDownloadMB) << 20
}
