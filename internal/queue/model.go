// Package queue implements the durable task queue: the item/event data model,
// the SQLite-backed store, priority dispatch with idempotency skip, the lease
// lifecycle and the retry engine.
package queue

import "errors"

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusBlocked    Status = "BLOCKED"
	StatusFailed     Status = "FAILED"
	StatusDone       Status = "DONE"
)

// Terminal reports whether the status ends user intent. FAILED remains
// retry-eligible until attempts are exhausted.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusBlocked
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusBlocked, StatusFailed, StatusDone:
		return true
	}
	return false
}

// Priority orders dispatch; a lower ordinal is more urgent.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

// Ordinal returns the dispatch ordinal. Unknown priorities sort last.
func (p Priority) Ordinal() int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	}
	return 99
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Ordinal() != 99
}

// Item is one unit of work persisted in the store.
type Item struct {
	ID              string   `json:"id"`
	Status          Status   `json:"status"`
	Priority        Priority `json:"priority"`
	Task            string   `json:"task"`
	SuccessCriteria string   `json:"success_criteria"`
	OwnerSession    string   `json:"owner_session"` // current holder or "-"
	StartedAt       string   `json:"started_at"`    // wall-clock string or "-"
	DueAt           string   `json:"due_at"`        // wall-clock string or "-"
	Notes           string   `json:"notes"`         // pipe-joined audit segments
	CreatedAt       string   `json:"created_at"`    // wall-clock string
	UpdatedAt       string   `json:"updated_at"`    // wall-clock string

	AttemptCount int `json:"attempt_count"`
	MaxAttempts  int `json:"max_attempts"`

	LeaseOwner     string `json:"lease_owner,omitempty"`      // empty when no lease
	LeaseExpiresAt int64  `json:"lease_expires_at,omitempty"` // epoch seconds; 0 when no lease

	IdempotencyKey string `json:"idempotency_key,omitempty"` // empty when absent
	LastError      string `json:"last_error,omitempty"`      // non-empty only while FAILED
}

// Event is an immutable audit record for one item.
type Event struct {
	EventID   int64          `json:"event_id"`
	ItemID    string         `json:"item_id"`
	Type      string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt string         `json:"created_at"`
}

// Known event types. Consumers must tolerate unknown types as opaque.
const (
	EventAdded              = "added"
	EventPicked             = "picked"
	EventLeaseAcquired      = "lease_acquired"
	EventLeaseRenewed       = "lease_renewed"
	EventLeaseReleased      = "lease_released"
	EventRetried            = "retried"
	EventDone               = "done"
	EventFailed             = "failed"
	EventBlocked            = "blocked"
	EventIdempotencySkipped = "idempotency_skipped"
	EventGuardrail          = "guardrail"
	EventReviewGate         = "review_gate"
	EventReplan             = "replan"
)

// Error kinds surfaced by the store. Lease contention is a boolean, never an
// error.
var (
	ErrNotFound          = errors.New("item not found")
	ErrDuplicateID       = errors.New("item id already exists")
	ErrInvalidTransition = errors.New("invalid transition")
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status   Status
	Priority Priority
}
