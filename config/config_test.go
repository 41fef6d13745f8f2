package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"cis-timetable/config"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err)
	return path
}

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Username = "student"
	cfg.Password = "secret"
	return cfg
}

func TestLoadConfig_Success(t *testing.T) {
	t.Setenv("CIS_USER", "env-user")
	t.Setenv("CIS_PASS", "")
	os.Unsetenv("CIS_PASS")
	json := `{
		"username": "file-user",
		"password": "file-pass",
		"output_dir": "site",
		"past_days": 3
	}`
	path := writeTempConfig(t, json)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "env-user", cfg.Username)
	require.Equal(t, "file-pass", cfg.Password)
	require.Equal(t, "site", cfg.OutputDir)
	require.Equal(t, 3, cfg.PastDays)
	require.Equal(t, 120, cfg.FutureDays)
	require.Equal(t, "stundenplan.ics", cfg.ICSFile)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CIS_USER", "u")
	t.Setenv("CIS_PASS", "p")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Equal(t, "Europe/Vienna", cfg.Timezone)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeTempConfig(t, `{ invalid json }`)
	_, err := config.LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_InvalidChatID(t *testing.T) {
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	_, err := config.LoadConfig("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "TELEGRAM_CHAT_ID")
}

func TestValidate_Success(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Password = ""
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "credentials missing")
}

func TestValidate_InvalidURL(t *testing.T) {
	cfg := validConfig()
	cfg.ListURL = "not-a-url"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid list_url")
}

func TestValidate_InvalidTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Timezone = "Mars/Olympus"
	require.Error(t, cfg.Validate())
}

func TestValidate_GithubRepoRequired(t *testing.T) {
	cfg := validConfig()
	cfg.GithubToken = "token"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "github_repo")
}
