package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Logger    LoggerConfig `envconfig:"LOG"`
	Security  SecurityConfig
	Dashboard DashboardConfig
	Upstream  UpstreamConfig
	Cache     CacheConfig
}

type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"8084"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

type DataConfig struct {
	// CSVFile falls back to the bare CSV_FILE variable.
	CSVFile   string `envconfig:"CSV_FILE" default:"data/purchases.csv"`
	Snapshot  bool   `envconfig:"SNAPSHOT" default:"true"`
	StaticDir string `envconfig:"STATIC_DIR" default:"static"`
}

type LoggerConfig struct {
	Level     string `envconfig:"LEVEL" default:"info"`
	Format    string `envconfig:"FORMAT" default:"json"`
	AddSource bool   `envconfig:"ADD_SOURCE" default:"false"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRPS    int      `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int      `envconfig:"RATE_LIMIT_BURST" default:"20"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8084"`
	TrustedProxies  []string `envconfig:"TRUSTED_PROXIES" default:"127.0.0.1"`
}

type DashboardConfig struct {
	Timezone       string        `envconfig:"TIMEZONE" default:"Local"`
	PerPage        int           `envconfig:"PER_PAGE" default:"10"`
	SearchDebounce time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"300ms"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	DefaultFrom    string        `envconfig:"DEFAULT_FROM"`
	DefaultTo      string        `envconfig:"DEFAULT_TO"`

	location *time.Location
}

// Location is the zone calendar days are expanded in.
func (d DashboardConfig) Location() *time.Location {
	if d.location == nil {
		return time.Local
	}
	return d.location
}

// UpstreamConfig points the dashboard at a remote API instead of the local
// store. An empty BaseURL keeps everything in process.
type UpstreamConfig struct {
	BaseURL    string        `envconfig:"BASE_URL"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"10s"`
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"200ms"`
}

type CacheConfig struct {
	Backend  string `envconfig:"BACKEND" default:"memory"`
	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from process environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	// the SSE stream is long-lived, so zero (no write deadline) is allowed
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout cannot be negative")
	}

	if c.Data.CSVFile == "" && c.Upstream.BaseURL == "" {
		return fmt.Errorf("either a CSV file or an upstream base URL is required")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return fmt.Errorf("invalid dashboard timezone %q: %w", c.Dashboard.Timezone, err)
	}
	c.Dashboard.location = loc

	if c.Dashboard.PerPage <= 0 {
		return fmt.Errorf("dashboard page size must be positive")
	}

	if c.Dashboard.SearchDebounce <= 0 {
		return fmt.Errorf("search debounce must be positive")
	}

	for _, day := range []string{c.Dashboard.DefaultFrom, c.Dashboard.DefaultTo} {
		if day == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			return fmt.Errorf("default range day %q must be YYYY-MM-DD", day)
		}
	}

	if c.Upstream.BaseURL != "" {
		u, err := url.Parse(c.Upstream.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid upstream base URL %q", c.Upstream.BaseURL)
		}
		if c.Upstream.Timeout <= 0 {
			return fmt.Errorf("upstream timeout must be positive")
		}
	}

	validBackends := []string{"none", "memory", "redis"}
	if !slices.Contains(validBackends, c.Cache.Backend) {
		return fmt.Errorf("invalid cache backend %q, must be one of: %s", c.Cache.Backend, strings.Join(validBackends, ", "))
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
