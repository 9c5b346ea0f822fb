// Package config loads the orchestrator configuration with the precedence
// ENV > file > defaults. Configuration is immutable for the lifetime of a
// process; changing it requires a restart.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the queue engine.
type Config struct {
	BaseDir  string `yaml:"base_dir"`
	ViewPath string `yaml:"view_path"`
	DBPath   string `yaml:"db_path"`
	LogPath  string `yaml:"log_path"`

	TZOffsetHours int `yaml:"tz_offset_hours"`

	LeaseTTL     time.Duration `yaml:"lease_ttl"`
	RetryBackoff []int         `yaml:"retry_backoff_seconds"`
	MaxAttempts  int           `yaml:"max_attempts"`

	TokenSoftLimit int `yaml:"token_soft_limit"`
	TokenHardLimit int `yaml:"token_hard_limit"`

	DispatcherInterval time.Duration `yaml:"dispatcher_interval"`
	WatchdogInterval   time.Duration `yaml:"watchdog_interval"`
	StaleMinutes       int           `yaml:"stale_minutes"`

	TopInProgress int  `yaml:"top_in_progress"`
	ViewReadOnly  bool `yaml:"view_read_only"`

	HTTPAddr string `yaml:"http_addr"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseDir:            ".taskq",
		TZOffsetHours:      9,
		LeaseTTL:           900 * time.Second,
		RetryBackoff:       []int{60, 180, 600},
		MaxAttempts:        3,
		TokenSoftLimit:     2000,
		TokenHardLimit:     3500,
		DispatcherInterval: 30 * time.Minute,
		WatchdogInterval:   120 * time.Minute,
		StaleMinutes:       60,
		TopInProgress:      5,
		HTTPAddr:           ":8800",
		LogLevel:           "info",
	}
}

// FromEnv loads the effective configuration. When TASKQ_CONFIG_FILE points to
// a YAML file its values override the defaults, and environment variables
// override both.
func FromEnv() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("TASKQ_CONFIG_FILE"); path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.BaseDir = ParseString("TASKQ_BASE_DIR", cfg.BaseDir)
	cfg.ViewPath = ParseString("TASKQ_VIEW_PATH", cfg.ViewPath)
	cfg.DBPath = ParseString("TASKQ_DB_PATH", cfg.DBPath)
	cfg.LogPath = ParseString("TASKQ_LOG_PATH", cfg.LogPath)
	cfg.TZOffsetHours = ParseInt("TASKQ_TZ_OFFSET", cfg.TZOffsetHours)
	cfg.LeaseTTL = time.Duration(ParseInt("TASKQ_LEASE_SECONDS", int(cfg.LeaseTTL/time.Second))) * time.Second
	cfg.RetryBackoff = ParseIntList("TASKQ_RETRY_BACKOFF", cfg.RetryBackoff)
	cfg.MaxAttempts = ParseInt("TASKQ_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.TokenSoftLimit = ParseInt("TASKQ_TOKEN_SOFT_LIMIT", cfg.TokenSoftLimit)
	cfg.TokenHardLimit = ParseInt("TASKQ_TOKEN_HARD_LIMIT", cfg.TokenHardLimit)
	cfg.DispatcherInterval = time.Duration(ParseInt("TASKQ_DISPATCHER_INTERVAL", int(cfg.DispatcherInterval/time.Minute))) * time.Minute
	cfg.WatchdogInterval = time.Duration(ParseInt("TASKQ_WATCHDOG_INTERVAL", int(cfg.WatchdogInterval/time.Minute))) * time.Minute
	cfg.StaleMinutes = ParseInt("TASKQ_STALE_MINUTES", cfg.StaleMinutes)
	cfg.TopInProgress = ParseInt("TASKQ_TOP_IN_PROGRESS", cfg.TopInProgress)
	cfg.ViewReadOnly = ParseBool("TASKQ_VIEW_READ_ONLY", cfg.ViewReadOnly)
	cfg.HTTPAddr = ParseString("TASKQ_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = ParseString("TASKQ_LOG_LEVEL", cfg.LogLevel)

	cfg.applyBaseDir()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyBaseDir resolves the derived paths that were not set explicitly.
func (c *Config) applyBaseDir() {
	if c.ViewPath == "" {
		c.ViewPath = filepath.Join(c.BaseDir, "QUEUE.md")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.BaseDir, "db", "queue.db")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(c.BaseDir, "logs", "runs.jsonl")
	}
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.MaxAttempts < 0 {
		return fmt.Errorf("config: max_attempts must be >= 0 (got %d)", c.MaxAttempts)
	}
	if c.TokenSoftLimit > c.TokenHardLimit {
		return fmt.Errorf("config: token_soft_limit %d exceeds token_hard_limit %d", c.TokenSoftLimit, c.TokenHardLimit)
	}
	if len(c.RetryBackoff) == 0 {
		return fmt.Errorf("config: retry_backoff_seconds must not be empty")
	}
	for _, b := range c.RetryBackoff {
		if b < 0 {
			return fmt.Errorf("config: retry backoff must be >= 0 (got %d)", b)
		}
	}
	if c.LeaseTTL <= 0 {
		return fmt.Errorf("config: lease_ttl must be positive (got %s)", c.LeaseTTL)
	}
	return nil
}

// Summary returns the effective configuration for operator display.
func (c Config) Summary() map[string]any {
	return map[string]any{
		"base_dir":              c.BaseDir,
		"view_path":             c.ViewPath,
		"db_path":               c.DBPath,
		"log_path":              c.LogPath,
		"tz_offset_hours":       c.TZOffsetHours,
		"lease_seconds":         int(c.LeaseTTL / time.Second),
		"retry_backoff_seconds": c.RetryBackoff,
		"max_attempts":          c.MaxAttempts,
		"token_soft_limit":      c.TokenSoftLimit,
		"token_hard_limit":      c.TokenHardLimit,
		"dispatcher_interval":   c.DispatcherInterval.String(),
		"watchdog_interval":     c.WatchdogInterval.String(),
		"stale_minutes":         c.StaleMinutes,
		"top_in_progress":       c.TopInProgress,
		"view_read_only":        c.ViewReadOnly,
		"http_addr":             c.HTTPAddr,
	}
}
