package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsAreValid(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.App.FeedURLs, 7)
	assert.Equal(t, 100, cfg.App.RetentionLimit)
	assert.Equal(t, 10, cfg.App.MaxEntriesPerFeed)
	assert.Equal(t, 50, cfg.App.PreviewBudget)

	interval, feedTimeout, previewTimeout := cfg.App.Durations()
	assert.Equal(t, time.Hour, interval)
	assert.Equal(t, 30*time.Second, feedTimeout)
	assert.Equal(t, 10*time.Second, previewTimeout)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"server": {"address": ":9090"},
		"app": {
			"feed_urls": [{"name": "Test", "url": "https://example.com/feed"}],
			"processing_interval": "15m"
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "/api", cfg.Server.APIPrefix)
	assert.Equal(t, []FeedURL{{Name: "Test", URL: "https://example.com/feed"}}, cfg.App.FeedURLs)
	assert.Equal(t, "15m", cfg.App.ProcessingInterval)
	assert.Equal(t, 100, cfg.App.RetentionLimit)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse JSON")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"empty feeds", func(c *Config) { c.App.FeedURLs = nil }, "app.feed_urls must not be empty"},
		{"bad feed url", func(c *Config) { c.App.FeedURLs = []FeedURL{{Name: "x", URL: "not a url"}} }, "invalid url"},
		{"empty feed name", func(c *Config) { c.App.FeedURLs = []FeedURL{{URL: "https://example.com"}} }, "feed name cannot be empty"},
		{"bad interval", func(c *Config) { c.App.ProcessingInterval = "hourly" }, "invalid app.processing_interval"},
		{"zero timeout", func(c *Config) { c.App.PreviewTimeout = "0s" }, "app.preview_timeout must be positive"},
		{"zero retention", func(c *Config) { c.App.RetentionLimit = 0 }, "app.retention_limit"},
		{"zero concurrency", func(c *Config) { c.App.FetchConcurrency = 0 }, "app.fetch_concurrency"},
		{"prefix without slash", func(c *Config) { c.Server.APIPrefix = "api" }, "server.api_prefix"},
		{"db without user", func(c *Config) { c.Database.Enabled = true }, "database username is not set"},
		{"kafka without topic", func(c *Config) {
			c.Kafka.Brokers = []string{"localhost:9092"}
			c.Kafka.Topic = ""
		}, "kafka.topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnv_Port(t *testing.T) {
	cfg := New()
	env := map[string]string{"PORT": "8081"}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, ":8081", cfg.Server.Address)

	env["PORT"] = "eighty"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	cfg = New()
	require.NoError(t, cfg.ApplyEnv(func(string) string { return "" }))
	assert.Equal(t, ":5000", cfg.Server.Address)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, Username: "news", Password: "p@ss", DBName: "news", SSLMode: "disable"}
	assert.Equal(t, "postgres://news:p%40ss@db:5432/news?sslmode=disable", db.DSN())
}
