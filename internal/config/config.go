// Package config loads devsup settings from a file and DEVSUP_* environment
// variables using viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/devsup/internal/logger"
)

// EnvPrefix is the prefix for environment overrides (DEVSUP_SERVER_LISTEN).
const EnvPrefix = "DEVSUP"

type Config struct {
	Env        []string         `mapstructure:"env"`
	EnvFiles   []string         `mapstructure:"env_files"`
	LockFile   string           `mapstructure:"lock_file"`
	Server     ServerConfig     `mapstructure:"server"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Log        logger.Config    `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	History    HistoryConfig    `mapstructure:"history"`
	NATS       NATSConfig       `mapstructure:"nats"`
}

type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
	Token    string `mapstructure:"token"`
}

type SupervisorConfig struct {
	GracePeriod   time.Duration `mapstructure:"grace_period"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	ReapTimeout   time.Duration `mapstructure:"reap_timeout"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
	ScanBuffer    int           `mapstructure:"scan_buffer"`
	Cols          uint16        `mapstructure:"cols"`
	Rows          uint16        `mapstructure:"rows"`
	Term          string        `mapstructure:"term"`
}

type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Listen   string        `mapstructure:"listen"`
	Interval time.Duration `mapstructure:"interval"` // process tree sampling
}

type HistoryConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	DSN     []string `mapstructure:"dsn"`
	Queue   int      `mapstructure:"queue"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Prefix  string `mapstructure:"prefix"`
	Token   string `mapstructure:"token"`
}

// DefaultLockFile is <user cache dir>/devsup/devsup.lock.
func DefaultLockFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "devsup", "devsup.lock")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("lock_file", DefaultLockFile())

	v.SetDefault("server.listen", "127.0.0.1:7788")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.token", "")

	v.SetDefault("supervisor.grace_period", "3s")
	v.SetDefault("supervisor.shutdown_grace", "2s")
	v.SetDefault("supervisor.reap_timeout", "1s")
	v.SetDefault("supervisor.drain_timeout", "200ms")
	v.SetDefault("supervisor.scan_buffer", 2048)
	v.SetDefault("supervisor.cols", 120)
	v.SetDefault("supervisor.rows", 30)
	v.SetDefault("supervisor.term", "xterm-256color")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", false)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.file.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.file.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.file.compress", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9788")
	v.SetDefault("metrics.interval", "5s")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsn", []string{})
	v.SetDefault("history.queue", 256)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.prefix", "devsup")
}

// Load reads path (TOML, YAML or JSON by extension) on top of the defaults
// and applies DEVSUP_* environment overrides. An empty path loads defaults
// and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.Server.BasePath = normalizeBasePath(c.Server.BasePath)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the supervisor cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	s := c.Supervisor
	if s.GracePeriod <= 0 {
		errs = append(errs, errors.New("supervisor.grace_period must be positive"))
	}
	if s.ShutdownGrace <= 0 {
		errs = append(errs, errors.New("supervisor.shutdown_grace must be positive"))
	}
	if s.ScanBuffer <= 0 {
		errs = append(errs, errors.New("supervisor.scan_buffer must be positive"))
	}
	if s.Cols == 0 || s.Rows == 0 {
		errs = append(errs, errors.New("supervisor.cols and supervisor.rows must be positive"))
	}
	if c.History.Enabled && len(c.History.DSN) == 0 {
		errs = append(errs, errors.New("history.enabled requires history.dsn"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.enabled requires nats.url"))
	}
	return errors.Join(errs...)
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

// GlobalEnv merges env_files contents and the top-level env list.
// Later entries win: files in order, then env.
func (c *Config) GlobalEnv() ([]string, error) {
	var out []string
	for _, p := range c.EnvFiles {
		pairs, err := LoadEnvFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return append(out, c.Env...), nil
}

// LoadEnvFile parses a simple .env file and returns "KEY=VALUE" entries in
// file order.
func LoadEnvFile(path string) ([]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		if i := strings.IndexByte(line, '='); i > 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.Trim(strings.TrimSpace(line[i+1:]), `"'`)
			out = append(out, k+"="+v)
		}
	}
	return out, nil
}
