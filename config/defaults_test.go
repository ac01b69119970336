package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_Complete(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "primflow", cfg.Telemetry.ServiceName)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.True(t, cfg.Retry.Jitter)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Deadline)
	assert.Equal(t, 10.0, cfg.RateLimit.Rate)
	assert.Equal(t, "wait", cfg.RateLimit.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10, cfg.Batch.MaxBatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Batch.MaxWait)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
}

func TestDefaultConfig_PassesValidation(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}
