package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 5*time.Second, cfg.Consistency.MaxWait)
	assert.Equal(t, 100*time.Millisecond, cfg.Consistency.PollInterval)
	assert.Equal(t, "comment", cfg.Search.IndexName)
	assert.Equal(t, 1, cfg.Search.Workers)
	assert.Equal(t, cfg.Database, cfg.Replica)
	assert.Equal(t, 5000, cfg.Export.MaxRows)
}

func TestLoadConsistencyAndReplicaOverrides(t *testing.T) {
	t.Setenv("CONSISTENCY_MAX_WAIT", "2s")
	t.Setenv("CONSISTENCY_POLL_INTERVAL", "250ms")
	t.Setenv("DB_REPLICA_HOST", "replica.internal")
	t.Setenv("DB_REPLICA_PORT", "6432")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Consistency.MaxWait)
	assert.Equal(t, 250*time.Millisecond, cfg.Consistency.PollInterval)
	assert.Equal(t, "replica.internal", cfg.Replica.Host)
	assert.Equal(t, 6432, cfg.Replica.Port)
	assert.Equal(t, cfg.Database.Name, cfg.Replica.Name)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadClampsPollInterval(t *testing.T) {
	t.Setenv("CONSISTENCY_MAX_WAIT", "50ms")
	t.Setenv("CONSISTENCY_POLL_INTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.Consistency.PollInterval)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("nope", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("-1s", time.Minute))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
}

func TestLoadConnectionSettings(t *testing.T) {
	t.Setenv("DB_CONNECT_TIMEOUT", "2s")
	t.Setenv("REDIS_ADDRS", "sentinel-a:26379, sentinel-b:26379")
	t.Setenv("REDIS_MASTER_NAME", "comments")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "comment-api", cfg.Database.ApplicationName)
	assert.Equal(t, []string{"sentinel-a:26379", "sentinel-b:26379"}, cfg.Redis.Addrs)
	assert.Equal(t, "comments", cfg.Redis.MasterName)
}
