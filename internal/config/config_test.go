package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8084", cfg.Address())
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 10, cfg.Dashboard.PerPage)
	assert.Equal(t, 300*time.Millisecond, cfg.Dashboard.SearchDebounce)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Empty(t, cfg.Upstream.BaseURL)
	assert.Equal(t, []string{"127.0.0.1"}, cfg.Security.TrustedProxies)
	assert.NotNil(t, cfg.Dashboard.Location())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("DATA_CSV_FILE", "/tmp/p.csv")
	t.Setenv("DASHBOARD_TIMEZONE", "Asia/Seoul")
	t.Setenv("DASHBOARD_DEFAULT_FROM", "2024-07-01")
	t.Setenv("DASHBOARD_DEFAULT_TO", "2024-07-31")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("UPSTREAM_BASE_URL", "http://api.internal:4000")
	t.Setenv("CACHE_BACKEND", "redis")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "/tmp/p.csv", cfg.Data.CSVFile)
	assert.Equal(t, "Asia/Seoul", cfg.Dashboard.Location().String())
	assert.Equal(t, "2024-07-01", cfg.Dashboard.DefaultFrom)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, "http://api.internal:4000", cfg.Upstream.BaseURL)
	assert.Equal(t, "redis", cfg.Cache.Backend)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port out of range", "SERVER_PORT", "70000"},
		{"port not a number", "SERVER_PORT", "http"},
		{"log level", "LOG_LEVEL", "verbose"},
		{"log format", "LOG_FORMAT", "xml"},
		{"rate limit", "SECURITY_RATE_LIMIT_RPS", "0"},
		{"timezone", "DASHBOARD_TIMEZONE", "Mars/Olympus"},
		{"page size", "DASHBOARD_PER_PAGE", "0"},
		{"default day", "DASHBOARD_DEFAULT_FROM", "07/01/2024"},
		{"upstream url", "UPSTREAM_BASE_URL", "not a url"},
		{"cache backend", "CACHE_BACKEND", "memcached"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
