package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ".taskq", cfg.BaseDir)
	assert.Equal(t, 9, cfg.TZOffsetHours)
	assert.Equal(t, 900*time.Second, cfg.LeaseTTL)
	assert.Equal(t, []int{60, 180, 600}, cfg.RetryBackoff)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2000, cfg.TokenSoftLimit)
	assert.Equal(t, 3500, cfg.TokenHardLimit)
	assert.Equal(t, 60, cfg.StaleMinutes)
	assert.False(t, cfg.ViewReadOnly)
}

func TestFromEnvDerivesPaths(t *testing.T) {
	t.Setenv("TASKQ_BASE_DIR", "/tmp/taskq-test")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/taskq-test", "QUEUE.md"), cfg.ViewPath)
	assert.Equal(t, filepath.Join("/tmp/taskq-test", "db", "queue.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join("/tmp/taskq-test", "logs", "runs.jsonl"), cfg.LogPath)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TASKQ_LEASE_SECONDS", "120")
	t.Setenv("TASKQ_RETRY_BACKOFF", "30,90")
	t.Setenv("TASKQ_MAX_ATTEMPTS", "5")
	t.Setenv("TASKQ_TZ_OFFSET", "0")
	t.Setenv("TASKQ_VIEW_READ_ONLY", "on")
	t.Setenv("TASKQ_DB_PATH", "/custom/queue.db")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.LeaseTTL)
	assert.Equal(t, []int{30, 90}, cfg.RetryBackoff)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Zero(t, cfg.TZOffsetHours)
	assert.True(t, cfg.ViewReadOnly)
	// An explicit path wins over base-dir derivation.
	assert.Equal(t, "/custom/queue.db", cfg.DBPath)
}

func TestFromEnvConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_dir: /from/file\nmax_attempts: 7\n"), 0o644))

	t.Setenv("TASKQ_CONFIG_FILE", path)
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/from/file", cfg.BaseDir)
	assert.Equal(t, 7, cfg.MaxAttempts)

	// ENV still outranks the file.
	t.Setenv("TASKQ_MAX_ATTEMPTS", "2")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxAttempts)
}

func TestFromEnvConfigFileUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_option: true\n"), 0o644))

	t.Setenv("TASKQ_CONFIG_FILE", path)
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.applyBaseDir()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.TokenSoftLimit = 4000
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxAttempts = -1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.RetryBackoff = nil
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.LeaseTTL = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.RetryBackoff = []int{60, -1}
	assert.Error(t, bad.Validate())
}

func TestSummaryFields(t *testing.T) {
	cfg := Defaults()
	cfg.applyBaseDir()
	sum := cfg.Summary()
	assert.Equal(t, 900, sum["lease_seconds"])
	assert.Equal(t, ".taskq", sum["base_dir"])
	assert.Contains(t, sum, "token_hard_limit")
}
