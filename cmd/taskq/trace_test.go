package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ManuGH/taskq/internal/telemetry"
)

// installSpanRecorder swaps the global tracer provider for one that records
// every span, restoring the previous provider afterwards.
func installSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[string]any {
	attrs := map[string]any{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	return attrs
}

func TestCommandRunEmitsSpan(t *testing.T) {
	setupBaseDir(t)
	recorder := installSpanRecorder(t)

	_, err := runCLI(t, "queue", "add", "--id", "T-001", "--priority", "P1", "--task", "x")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "queue.add", spans[0].Name())

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "queue.add", attrs[telemetry.CommandKey])
	assert.EqualValues(t, 0, attrs[telemetry.ExitCodeKey])
	assert.Contains(t, attrs, telemetry.TraceIDKey)
	assert.Contains(t, attrs, telemetry.RunDurationKey)
}

func TestCommandRunSpanRecordsError(t *testing.T) {
	setupBaseDir(t)
	recorder := installSpanRecorder(t)

	_, err := runCLI(t, "queue", "done", "--id", "missing")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	attrs := spanAttrs(spans[0])
	assert.EqualValues(t, 1, attrs[telemetry.ExitCodeKey])
	assert.Equal(t, true, attrs[telemetry.ErrorKey])
	assert.NotEmpty(t, spans[0].Events())
}
