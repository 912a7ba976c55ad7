// Package config loads console settings from .env, the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Cache drivers.
const (
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
)

type Config struct {
	// Backend
	BackendURL   string
	BackendWSURL string
	APITimeout   time.Duration

	// Event channel
	ReconnectDelay time.Duration

	// Durable settings cache
	CacheDriver     string
	CacheSQLitePath string
	PostgresDSN     string

	// Local surfaces
	DashboardAddr string
	MetricsAddr   string
	// DashboardOrigins are extra browser origins allowed to call the
	// dashboard, e.g. a UI shell served from another port.
	DashboardOrigins []string

	// StatusPollSpec is a cron spec for the periodic status refresh.
	// Empty disables polling.
	StatusPollSpec string

	// Capabilities
	BrowserDisabled bool
	SoundDisabled   bool
	SoundDir        string

	LogLevel string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	backend := envOr("BACKEND_URL", "http://localhost:3001")
	cfg := &Config{
		BackendURL:   backend,
		BackendWSURL: envOr("BACKEND_WS_URL", wsURLFor(backend)),
		APITimeout:   envDuration("API_TIMEOUT", 15*time.Second),

		ReconnectDelay: envDuration("RECONNECT_DELAY", 3*time.Second),

		CacheDriver:     strings.ToLower(envOr("CACHE_DRIVER", CacheSQLite)),
		CacheSQLitePath: envOr("CACHE_SQLITE_PATH", "snipe_console.db"),
		PostgresDSN:     os.Getenv("POSTGRES_DSN"),

		DashboardAddr: envOr("DASHBOARD_ADDR", "127.0.0.1:8080"),
		MetricsAddr:   envOr("METRICS_ADDR", ":9090"),

		DashboardOrigins: splitList(os.Getenv("DASHBOARD_ORIGINS")),

		StatusPollSpec: envOr("STATUS_POLL_SPEC", "@every 30s"),

		BrowserDisabled: envBool("BROWSER_DISABLED", false),
		SoundDisabled:   envBool("SOUND_DISABLED", false),
		SoundDir:        envOr("SOUND_DIR", "sounds"),

		LogLevel: envOr("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// RegisterFlags binds flags to cfg, using the loaded values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.BackendURL, "backend-url", c.BackendURL, "Backend HTTP base URL")
	fs.StringVar(&c.BackendWSURL, "backend-ws-url", c.BackendWSURL, "Backend event channel URL")
	fs.DurationVar(&c.APITimeout, "api-timeout", c.APITimeout, "Backend API call timeout")
	fs.DurationVar(&c.ReconnectDelay, "reconnect-delay", c.ReconnectDelay, "Delay before reconnecting the event channel")
	fs.StringVar(&c.CacheDriver, "cache", c.CacheDriver, "Settings cache driver (memory, sqlite, postgres)")
	fs.StringVar(&c.CacheSQLitePath, "sqlite-path", c.CacheSQLitePath, "SQLite settings cache file")
	fs.StringVar(&c.PostgresDSN, "postgres-dsn", c.PostgresDSN, "PostgreSQL connection string")
	fs.StringVar(&c.DashboardAddr, "dashboard-addr", c.DashboardAddr, "Dashboard HTTP address (empty disables)")
	fs.Func("dashboard-origins", "Comma-separated extra origins allowed to call the dashboard", func(v string) error {
		c.DashboardOrigins = splitList(v)
		return nil
	})
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Prometheus metrics HTTP address (empty disables)")
	fs.StringVar(&c.StatusPollSpec, "status-poll", c.StatusPollSpec, "Cron spec for status refresh (empty disables)")
	fs.BoolVar(&c.BrowserDisabled, "no-browser", c.BrowserDisabled, "Log token pages instead of opening a browser")
	fs.BoolVar(&c.SoundDisabled, "no-sound", c.SoundDisabled, "Use the terminal bell instead of audio playback")
	fs.StringVar(&c.SoundDir, "sound-dir", c.SoundDir, "Directory holding alert sound files")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
}

func (c *Config) Validate() error {
	if err := checkURL(c.BackendURL, "http", "https"); err != nil {
		return fmt.Errorf("%w: BACKEND_URL: %v", ErrInvalid, err)
	}
	if err := checkURL(c.BackendWSURL, "ws", "wss"); err != nil {
		return fmt.Errorf("%w: BACKEND_WS_URL: %v", ErrInvalid, err)
	}

	for _, o := range c.DashboardOrigins {
		if err := checkURL(o, "http", "https"); err != nil {
			return fmt.Errorf("%w: DASHBOARD_ORIGINS: %v", ErrInvalid, err)
		}
	}

	switch c.CacheDriver {
	case CacheMemory:
	case CacheSQLite:
		if c.CacheSQLitePath == "" {
			return fmt.Errorf("%w: CACHE_SQLITE_PATH is required for the sqlite cache", ErrInvalid)
		}
	case CachePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: POSTGRES_DSN is required for the postgres cache", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown cache driver %q", ErrInvalid, c.CacheDriver)
	}

	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: RECONNECT_DELAY must be positive", ErrInvalid)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("%w: API_TIMEOUT must be positive", ErrInvalid)
	}
	if c.StatusPollSpec != "" {
		if _, err := cron.ParseStandard(c.StatusPollSpec); err != nil {
			return fmt.Errorf("%w: STATUS_POLL_SPEC: %v", ErrInvalid, err)
		}
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("want %s URL, got %q", strings.Join(schemes, " or "), raw)
}

// wsURLFor derives the event channel URL from the HTTP base.
func wsURLFor(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}

// helpers
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// envDuration accepts a Go duration ("3s") or plain seconds ("3").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs := envInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
