package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOSTNAME", "pod-a")

	cfg := Load()

	assert.Equal(t, "sparks", cfg.AppName)
	assert.Equal(t, "incoming:messages", cfg.Stream.Key)
	assert.Equal(t, "workers", cfg.Stream.Group)
	assert.Equal(t, "worker-pod-a", cfg.Worker.Consumer)
	assert.Equal(t, 10, cfg.Worker.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Worker.Block)
	assert.Equal(t, "raw-payloads", cfg.RawStore.Bucket)
	assert.Equal(t, "UTC", cfg.Funnel.Timezone)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKER_BLOCK", "250ms")
	t.Setenv("FUNNEL_INTERVAL", "30")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("MINIO_USE_SSL", "yes")
	t.Setenv("ENVIRONMENT", "Production")

	cfg := Load()

	assert.Equal(t, 250*time.Millisecond, cfg.Worker.Block)
	assert.Equal(t, 30*time.Second, cfg.Funnel.Interval)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.True(t, cfg.RawStore.UseSSL)
	assert.True(t, cfg.IsProduction())
}

func TestGetenvDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("WORKER_ERROR_BACKOFF", "soon")

	cfg := Load()

	assert.Equal(t, time.Second, cfg.Worker.ErrorBackoff)
}
