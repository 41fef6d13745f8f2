package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_MissingCredentials(t *testing.T) {
	t.Setenv("CIS_USER", "")
	t.Setenv("CIS_PASS", "")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output_dir": "out"}`), 0o644))

	Root.SetArgs([]string{"run", "--config", path})
	err := Execute()
	require.ErrorContains(t, err, "credentials missing")
}

func TestRun_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output_dir": `), 0o644))

	Root.SetArgs([]string{"run", "--config", path})
	require.ErrorContains(t, Execute(), "loading config")
}
