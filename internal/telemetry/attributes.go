package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the orchestrator.
const (
	// Queue item attributes
	ItemIDKey     = "queue.item_id"
	ItemStatusKey = "queue.status"
	PriorityKey   = "queue.priority"
	OwnerKey      = "queue.owner_session"
	AttemptKey    = "queue.attempt"

	// Command run attributes
	CommandKey     = "run.command"
	TraceIDKey     = "run.trace_id"
	ExitCodeKey    = "run.exit_code"
	RunDurationKey = "run.duration_ms"

	// Review gate attributes
	VerdictKey = "review.verdict"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// ItemAttributes creates queue-item span attributes.
func ItemAttributes(id, status, priority string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ItemIDKey, id),
		attribute.String(ItemStatusKey, status),
		attribute.String(PriorityKey, priority),
	}
}

// RunAttributes creates command-run span attributes.
func RunAttributes(command, traceID string, exitCode int, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(CommandKey, command),
		attribute.String(TraceIDKey, traceID),
		attribute.Int(ExitCodeKey, exitCode),
		attribute.Int64(RunDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
