// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  name: trade-match-engine
camunda:
  broker_address: localhost:26500
  plaintext: true
database:
  postgres:
    host: localhost
    port: 5432
    database: marketplace
    user: engine
  elasticsearch:
    addresses: ["http://localhost:9200"]
  redis:
    address: localhost:6379
workers:
  calculate-match-score:
    enabled: true
  send-notification:
    enabled: false
engine:
  notification_timeout: 5s
  profile_cache_ttl: 2m
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// ==========================
// LoadFromFile
// ==========================

func TestLoadFromFile_DecodesDurationsAndDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Engine.NotificationTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Engine.ProfileCacheTTL)

	assert.Equal(t, 70, cfg.Engine.GoodMatchThreshold)
	assert.Equal(t, 3, cfg.Engine.TransitionRetries)
	assert.Equal(t, time.Hour, cfg.Engine.ScoreCacheTTL)
	assert.Equal(t, "jobs", cfg.Database.Elasticsearch.JobIndex)
	assert.Equal(t, "http://localhost:9200", cfg.Database.Elasticsearch.URL)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, []string{"offer", "hired"}, cfg.Notifications.SMS.Statuses)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, "@every 1m", cfg.Scheduler.PipelineStatsSpec)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	w := GetWorkerConfig(cfg, "calculate-match-score")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)

	assert.False(t, IsWorkerEnabled(cfg, "send-notification"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown-worker"))
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_PG_PASSWORD", "s3cret")
	body := baseYAML + `
ai:
  enabled: false
  api_key: ${TEST_PG_PASSWORD}
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.AI.APIKey)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

// ==========================
// validateConfig
// ==========================

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Camunda.BrokerAddress = "localhost:26500"
		cfg.Database.Postgres.Host = "localhost"
		cfg.Database.Postgres.Database = "marketplace"
		cfg.Database.Postgres.User = "engine"
		cfg.Database.Elasticsearch.Addresses = []string{"http://localhost:9200"}
		cfg.Database.Redis.Address = "localhost:6379"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing broker", mutate: func(c *Config) { c.Camunda.BrokerAddress = "" }, wantErr: "camunda.broker_address"},
		{name: "missing postgres host", mutate: func(c *Config) { c.Database.Postgres.Host = "" }, wantErr: "database.postgres.host"},
		{name: "missing elasticsearch", mutate: func(c *Config) { c.Database.Elasticsearch.Addresses = nil }, wantErr: "elasticsearch"},
		{name: "missing redis", mutate: func(c *Config) { c.Database.Redis.Address = "" }, wantErr: "redis"},
		{name: "threshold out of range", mutate: func(c *Config) { c.Engine.GoodMatchThreshold = 101 }, wantErr: "good_match_threshold"},
		{name: "ai without key", mutate: func(c *Config) { c.AI.Enabled = true }, wantErr: "ai.api_key"},
		{name: "email without sender", mutate: func(c *Config) { c.Notifications.Email.Enabled = true }, wantErr: "from_email"},
		{name: "topic without arn", mutate: func(c *Config) { c.Notifications.Topic.Enabled = true }, wantErr: "topic.arn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", p.GetDSN())
}
