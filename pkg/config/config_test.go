package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 30*time.Millisecond, c.Analysis.TickPeriod)
	assert.Equal(t, 3500*time.Millisecond, c.Analysis.Delay)
	assert.Equal(t, 75, c.Analysis.ConfidenceMin)
	assert.Equal(t, 98, c.Analysis.ConfidenceMax)
	assert.Equal(t, 1000.0, c.Analysis.EntryMin)
	assert.Equal(t, 51000.0, c.Analysis.EntryMax)
	assert.Equal(t, "memory", c.Cache.Backend)
	assert.True(t, c.Metrics.Enabled)
}

func TestParseKeepsExplicitFalse(t *testing.T) {
	c, err := Parse([]byte("environment: test\nratelimit:\n  enabled: false\nmetrics:\n  enabled: false\n"))
	require.NoError(t, err)

	assert.False(t, c.RateLimit.Enabled)
	assert.False(t, c.Metrics.Enabled)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"confidence range": "analysis:\n  confidence_min: 99\n  confidence_max: 75\n",
		"entry range":      "analysis:\n  entry_min: 5\n  entry_max: 5\n",
		"cache backend":    "cache:\n  backend: memcached\n",
		"kafka brokers":    "kafka:\n  enabled: true\n  brokers: []\n",
		"tick period":      "analysis:\n  tick_period: 0s\n",
		"progress steps":   "analysis:\n  progress_steps: 150\n",
		"unknown section":  "analytics:\n  enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o644))

	t.Setenv("PREDICTOR_PORT", "9090")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "redis", c.Cache.Backend)
	assert.Equal(t, "redis.internal", c.Redis.Host)
	assert.Equal(t, 6380, c.Redis.Port)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
}

func TestDefaultAnalysisIsValid(t *testing.T) {
	require.NoError(t, DefaultAnalysis().Validate())
	require.NoError(t, Default().Validate())
}
