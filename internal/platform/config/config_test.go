package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 100, cfg.Reconciliation.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Reconciliation.RecordTimeout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 600, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("KLOK_ADDR", ":9090")
	t.Setenv("KLOK_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KLOK_RECONCILIATION_RECORD_TIMEOUT", "2s")
	t.Setenv("KLOK_LOG_LEVEL", "debug")
	t.Setenv("KLOK_RATELIMIT_REQUESTS", "0")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Reconciliation.RecordTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Zero(t, cfg.RateLimit.Requests)
}
