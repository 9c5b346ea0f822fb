package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderUnsupportedExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "taskq",
		ExporterType: "carrier-pigeon",
	})
	assert.Error(t, err)
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv("1.2.3")
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "taskq", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "grpc", cfg.ExporterType)
	assert.InDelta(t, 1.0, cfg.SamplingRate, 0.0001)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TASKQ_OTEL_ENABLED", "true")
	t.Setenv("TASKQ_OTEL_EXPORTER", "http")
	t.Setenv("TASKQ_OTEL_ENDPOINT", "collector:4318")
	t.Setenv("TASKQ_OTEL_SAMPLING_RATE", "0.25")

	cfg := FromEnv("dev")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "http", cfg.ExporterType)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.InDelta(t, 0.25, cfg.SamplingRate, 0.0001)
}

func TestTracerReturnsNamedTracer(t *testing.T) {
	tr := Tracer("taskq/queue")
	assert.NotNil(t, tr)
}

func TestItemAttributes(t *testing.T) {
	attrs := ItemAttributes("T-001", "PENDING", "P0")
	require.Len(t, attrs, 3)
	assert.Equal(t, ItemIDKey, string(attrs[0].Key))
	assert.Equal(t, "T-001", attrs[0].Value.AsString())
}
