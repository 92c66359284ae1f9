package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: dev\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, BackendMemory, c.Backend.Type)
	assert.Equal(t, "https://iss.moex.com/iss", c.Moex.BaseURL)
	assert.Equal(t, 5*time.Second, c.Moex.FetchTimeout)
	assert.Equal(t, 16, c.Enrich.Concurrency)
	assert.False(t, c.KafkaEnabled())
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing environment":        "backend:\n  type: memory\n",
		"unknown backend":            "environment: dev\nbackend:\n  type: postgres\n",
		"clickhouse without host":    "environment: dev\nbackend:\n  type: clickhouse\n",
		"kafka without brokers":      "environment: dev\nbackend:\n  type: kafka\nclickhouse:\n  host: ch\n",
		"collector without topic":    "environment: dev\nlog:\n  collect: true\n",
		"redis enabled without host": "environment: dev\nredis:\n  enabled: true\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	c, err := Parse([]byte("environment: dev\n"))
	require.NoError(t, err)

	env := map[string]string{
		"MOEXPULL_PORT": "9090",
		"KAFKA_BROKERS": "k1:9092,k2:9092",
		"REDIS_ADDR":    "redis:6379",
		"MOEX_BASE_URL": "http://iss.local",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, "http://iss.local", c.Moex.BaseURL)
	assert.NoError(t, c.Validate())
}
