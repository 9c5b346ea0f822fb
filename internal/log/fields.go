package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldItemID  = "item_id"
	FieldTraceID = "trace_id"
	FieldOwner   = "owner_session"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldCommand   = "command"

	// State fields
	FieldOldStatus = "old_status"
	FieldNewStatus = "new_status"
	FieldPriority  = "priority"
	FieldVerdict   = "verdict"
	FieldAction    = "action"

	// Path fields
	FieldPath   = "path"
	FieldDBPath = "db_path"
)
