package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/taskq/internal/clock"
	"github.com/ManuGH/taskq/internal/log"
	"github.com/ManuGH/taskq/internal/metrics"
	"github.com/ManuGH/taskq/internal/persistence/sqlite"
)

// DefaultMaxAttempts bounds retries when an item does not override it.
const DefaultMaxAttempts = 3

// DefaultLeaseTTL is the exclusive-ownership window granted to workers.
const DefaultLeaseTTL = 900 * time.Second

// DefaultRetryBackoff is the advisory backoff schedule in seconds; attempt k
// uses index min(k, len-1).
var DefaultRetryBackoff = []int{60, 180, 600}

const schema = `
CREATE TABLE IF NOT EXISTS queue_items (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	priority TEXT NOT NULL,
	task TEXT NOT NULL,
	success_criteria TEXT NOT NULL,
	owner_session TEXT NOT NULL DEFAULT '-',
	started_at TEXT NOT NULL DEFAULT '-',
	due_at TEXT NOT NULL DEFAULT '-',
	notes TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	lease_owner TEXT,
	lease_expires_at INTEGER,
	idempotency_key TEXT,
	last_error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS queue_events (
	event_id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// itemColumns is the canonical select list; scanItem depends on this order.
const itemColumns = `id, status, priority, task, success_criteria, owner_session,
	started_at, due_at, notes, created_at, updated_at, attempt_count, max_attempts,
	lease_owner, lease_expires_at, idempotency_key, last_error`

const priorityOrder = `CASE priority WHEN 'P0' THEN 0 WHEN 'P1' THEN 1 WHEN 'P2' THEN 2 ELSE 99 END`

// Store is the transactional persistence layer for items and their
// append-only event log. Every public method is safe for concurrent use;
// serialization is SQLite's job (WAL + busy_timeout).
type Store struct {
	DB      *sql.DB
	clk     clock.Clock
	backoff []int
}

// Open initializes the queue store at dbPath, creating parent directories and
// applying additive schema migrations.
func Open(dbPath string, clk clock.Clock, backoff []int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("queue store: create dir: %w", err)
	}
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if len(backoff) == 0 {
		backoff = DefaultRetryBackoff
	}
	s := &Store{DB: db, clk: clk, backoff: backoff}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("queue store: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// migrate applies the base schema and probes for columns that predate it.
// Evolution is additive only: new columns are appended with defaults and
// existing data is never dropped.
func (s *Store) migrate() error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(schema); err != nil {
		return err
	}

	rows, err := tx.Query("PRAGMA table_info(queue_items)")
	if err != nil {
		return err
	}
	existing := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			_ = rows.Close()
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	addCols := [][2]string{
		{"attempt_count", "INTEGER NOT NULL DEFAULT 0"},
		{"max_attempts", "INTEGER NOT NULL DEFAULT 3"},
		{"lease_owner", "TEXT"},
		{"lease_expires_at", "INTEGER"},
		{"idempotency_key", "TEXT"},
		{"last_error", "TEXT NOT NULL DEFAULT ''"},
	}
	for _, col := range addCols {
		if !existing[col[0]] {
			if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE queue_items ADD COLUMN %s %s", col[0], col[1])); err != nil {
				return err
			}
		}
	}

	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_queue_items_lease ON queue_items(lease_expires_at)"); err != nil {
		return err
	}
	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_queue_items_idempotency ON queue_items(idempotency_key)"); err != nil {
		return err
	}

	return tx.Commit()
}

// AddParams describes a new item.
type AddParams struct {
	ID              string
	Priority        Priority
	Task            string
	SuccessCriteria string
	DueAt           string
	Notes           string
	IdempotencyKey  string
	MaxAttempts     int
}

// Add inserts a new PENDING item and emits an "added" event. It fails with
// ErrDuplicateID when the id already exists.
func (s *Store) Add(ctx context.Context, p AddParams) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	due := p.DueAt
	if due == "" {
		due = "-"
	}
	now := s.clk.NowWall()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM queue_items WHERE id = ?", p.ID).Scan(&one)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO queue_items(
			id, status, priority, task, success_criteria, owner_session,
			started_at, due_at, notes, created_at, updated_at,
			attempt_count, max_attempts, idempotency_key, last_error
		) VALUES(?, 'PENDING', ?, ?, ?, '-', '-', ?, ?, ?, ?, 0, ?, ?, '')`,
		p.ID, string(p.Priority), p.Task, p.SuccessCriteria, due, p.Notes,
		now, now, p.MaxAttempts, nullable(p.IdempotencyKey),
	)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	_, err = s.AppendEvent(ctx, p.ID, EventAdded, map[string]any{
		"priority":        string(p.Priority),
		"idempotency_key": p.IdempotencyKey,
	})
	return err
}

// List returns items matching the filter in canonical order:
// priority ordinal ascending, then created_at ascending.
func (s *Store) List(ctx context.Context, f Filter) ([]Item, error) {
	query := "SELECT " + itemColumns + " FROM queue_items"
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(f.Priority))
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY " + priorityOrder + ", created_at ASC"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// Get returns a single item or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM queue_items WHERE id = ?", id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return it, err
}

// PickNext atomically claims the next eligible PENDING item for owner.
// Candidates whose idempotency key already completed elsewhere are auto-closed
// as duplicates inside the same transaction and dispatch moves on. A nil item
// with nil error means the queue is empty.
//
// PickNext does not acquire a lease; that is a separate optional step so
// non-leased execution modes remain possible.
func (s *Store) PickNext(ctx context.Context, owner string) (*Item, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var pickedID string
	var skipped []string
	for {
		row := tx.QueryRowContext(ctx, "SELECT "+itemColumns+` FROM queue_items
			WHERE status = 'PENDING'
			ORDER BY `+priorityOrder+`, created_at ASC
			LIMIT 1`)
		cand, err := scanItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, err
		}

		if cand.IdempotencyKey != "" {
			var one int
			err = tx.QueryRowContext(ctx,
				"SELECT 1 FROM queue_items WHERE status = 'DONE' AND idempotency_key = ? AND id != ? LIMIT 1",
				cand.IdempotencyKey, cand.ID).Scan(&one)
			if err == nil {
				now := s.clk.NowWall()
				_, err = tx.ExecContext(ctx, `
					UPDATE queue_items
					SET status = 'DONE',
					    notes = CASE WHEN notes = '' THEN ? ELSE notes || ' | ' || ? END,
					    updated_at = ?
					WHERE id = ?`,
					duplicateSkipNote, duplicateSkipNote, now, cand.ID)
				if err != nil {
					return nil, err
				}
				skipped = append(skipped, cand.ID)
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
		}

		now := s.clk.NowWall()
		_, err = tx.ExecContext(ctx, `
			UPDATE queue_items
			SET status = 'IN_PROGRESS', owner_session = ?, started_at = ?, updated_at = ?
			WHERE id = ?`,
			owner, now, now, cand.ID)
		if err != nil {
			return nil, err
		}
		pickedID = cand.ID
		break
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, id := range skipped {
		metrics.IdempotencySkipsTotal.Inc()
		if _, err := s.AppendEvent(ctx, id, EventIdempotencySkipped, map[string]any{"reason": "already_done"}); err != nil {
			return nil, err
		}
	}
	if pickedID == "" {
		return nil, nil
	}

	metrics.PicksTotal.Inc()
	if _, err := s.AppendEvent(ctx, pickedID, EventPicked, map[string]any{"owner_session": owner}); err != nil {
		return nil, err
	}
	logger := log.WithComponentFromContext(ctx, "dispatch")
	logger.Info().
		Str(log.FieldItemID, pickedID).
		Str(log.FieldOwner, owner).
		Msg("item picked")
	return s.Get(ctx, pickedID)
}

const duplicateSkipNote = "Skipped duplicate by idempotency_key"

// markTerminal applies a terminal transition. Notes are replaced, not
// appended; last_error is set only for FAILED.
func (s *Store) markTerminal(ctx context.Context, id string, status Status, notes string) error {
	notes = strings.TrimSpace(notes)
	lastErr := ""
	if status == StatusFailed {
		lastErr = notes
	}
	res, err := s.DB.ExecContext(ctx,
		"UPDATE queue_items SET status = ?, notes = ?, last_error = ?, updated_at = ? WHERE id = ?",
		string(status), notes, lastErr, s.clk.NowWall(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var eventType string
	switch status {
	case StatusDone:
		eventType = EventDone
	case StatusFailed:
		eventType = EventFailed
	case StatusBlocked:
		eventType = EventBlocked
	default:
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidTransition, status)
	}
	_, err = s.AppendEvent(ctx, id, eventType, map[string]any{"notes": notes})
	return err
}

// MarkDone completes an item.
func (s *Store) MarkDone(ctx context.Context, id, notes string) error {
	return s.markTerminal(ctx, id, StatusDone, notes)
}

// MarkFailed fails an item and records last_error.
func (s *Store) MarkFailed(ctx context.Context, id, notes string) error {
	return s.markTerminal(ctx, id, StatusFailed, notes)
}

// MarkBlocked blocks an item with a reason.
func (s *Store) MarkBlocked(ctx context.Context, id, reason string) error {
	return s.markTerminal(ctx, id, StatusBlocked, reason)
}

// AppendEvent appends one immutable event and returns the assigned event id.
// Payload keys are serialized in sorted order.
func (s *Store) AppendEvent(ctx context.Context, itemID, eventType string, payload map[string]any) (int64, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("queue store: marshal event payload: %w", err)
	}
	res, err := s.DB.ExecContext(ctx,
		"INSERT INTO queue_events(item_id, event_type, payload_json, created_at) VALUES(?, ?, ?, ?)",
		itemID, eventType, string(data), s.clk.NowWall())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Events returns the event log for one item in append order.
func (s *Store) Events(ctx context.Context, itemID string) ([]Event, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT event_id, item_id, event_type, payload_json, created_at FROM queue_events WHERE item_id = ? ORDER BY event_id ASC",
		itemID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var ev Event
		var payload string
		if err := rows.Scan(&ev.EventID, &ev.ItemID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		// Unknown variants pass through as opaque maps.
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("queue store: event %d payload: %w", ev.EventID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountEvents returns the number of events of the given type across all items.
func (s *Store) CountEvents(ctx context.Context, eventType string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM queue_events WHERE event_type = ?", eventType).Scan(&n)
	return n, err
}

// AcquireLease grants owner an exclusive lease iff no live lease exists.
// Contenders that lose receive false, not an error.
func (s *Store) AcquireLease(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	now := s.clk.NowEpoch()
	expires := now + int64(ttl/time.Second)
	res, err := s.DB.ExecContext(ctx, `
		UPDATE queue_items
		SET lease_owner = ?, lease_expires_at = ?, updated_at = ?
		WHERE id = ?
		  AND (lease_owner IS NULL OR lease_owner = '' OR lease_expires_at IS NULL OR lease_expires_at <= ?)`,
		owner, expires, s.clk.NowWall(), id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n != 1 {
		return false, err
	}
	_, err = s.AppendEvent(ctx, id, EventLeaseAcquired, map[string]any{"owner_session": owner, "expires_at": expires})
	return err == nil, err
}

// RenewLease bumps the expiry iff owner still holds a live lease.
func (s *Store) RenewLease(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	now := s.clk.NowEpoch()
	expires := now + int64(ttl/time.Second)
	res, err := s.DB.ExecContext(ctx, `
		UPDATE queue_items
		SET lease_expires_at = ?, updated_at = ?
		WHERE id = ? AND lease_owner = ? AND lease_expires_at IS NOT NULL AND lease_expires_at > ?`,
		expires, s.clk.NowWall(), id, owner, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n != 1 {
		return false, err
	}
	_, err = s.AppendEvent(ctx, id, EventLeaseRenewed, map[string]any{"owner_session": owner, "expires_at": expires})
	return err == nil, err
}

// ReleaseLease clears the lease iff owner holds it.
func (s *Store) ReleaseLease(ctx context.Context, id, owner string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE queue_items
		SET lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
		WHERE id = ? AND lease_owner = ?`,
		s.clk.NowWall(), id, owner)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n != 1 {
		return false, err
	}
	_, err = s.AppendEvent(ctx, id, EventLeaseReleased, map[string]any{"owner_session": owner})
	return err == nil, err
}

// RetryEligible resets every FAILED item and every timed-out IN_PROGRESS item
// that has attempts left: back to PENDING, owner and lease cleared, attempt
// count incremented, and an advisory retry_not_before note derived from the
// same now. Returns the reset ids.
func (s *Store) RetryEligible(ctx context.Context, now int64) ([]string, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, status, attempt_count, max_attempts, lease_expires_at, notes
		FROM queue_items
		WHERE status IN ('FAILED', 'IN_PROGRESS')
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		id   string
		note string
	}
	var cands []candidate
	for rows.Next() {
		var id, status, notes string
		var attempts, maxAttempts int
		var leaseExpires sql.NullInt64
		if err := rows.Scan(&id, &status, &attempts, &maxAttempts, &leaseExpires, &notes); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if maxAttempts <= 0 {
			maxAttempts = DefaultMaxAttempts
		}
		if attempts >= maxAttempts {
			continue
		}
		isFailed := status == string(StatusFailed)
		isTimeout := status == string(StatusInProgress) && leaseExpires.Valid && leaseExpires.Int64 <= now
		if !isFailed && !isTimeout {
			continue
		}
		backoff := s.backoff[min(attempts, len(s.backoff)-1)]
		cands = append(cands, candidate{id: id, note: retryNotBeforeNote(now + int64(backoff))})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	wall := s.clk.NowWall()
	reset := make([]string, 0, len(cands))
	for _, c := range cands {
		_, err := tx.ExecContext(ctx, `
			UPDATE queue_items
			SET status = 'PENDING',
			    owner_session = '-',
			    started_at = '-',
			    lease_owner = NULL,
			    lease_expires_at = NULL,
			    attempt_count = attempt_count + 1,
			    notes = CASE WHEN notes = '' THEN ? ELSE notes || ' | ' || ? END,
			    updated_at = ?
			WHERE id = ?`,
			c.note, c.note, wall, c.id)
		if err != nil {
			return nil, err
		}
		reset = append(reset, c.id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, id := range reset {
		metrics.RetriesTotal.Inc()
		if _, err := s.AppendEvent(ctx, id, EventRetried, map[string]any{"reason": "failed_or_timeout"}); err != nil {
			return nil, err
		}
	}
	return reset, nil
}

// Requeue moves an item back to PENDING without touching its attempt count
// (operator replan path). Owner, start time and lease are cleared and notes
// replaced with the caller-merged value.
func (s *Store) Requeue(ctx context.Context, id, notes string) error {
	return s.requeue(ctx, id, notes, nil)
}

// RequeueWithAttempts moves an item back to PENDING and pins its attempt
// count (review gate RETRY path).
func (s *Store) RequeueWithAttempts(ctx context.Context, id, notes string, attempts int) error {
	return s.requeue(ctx, id, notes, &attempts)
}

func (s *Store) requeue(ctx context.Context, id, notes string, attempts *int) error {
	query := `
		UPDATE queue_items
		SET status = 'PENDING',
		    owner_session = '-',
		    started_at = '-',
		    lease_owner = NULL,
		    lease_expires_at = NULL,
		    notes = ?,
		    updated_at = ?`
	args := []any{notes, s.clk.NowWall()}
	if attempts != nil {
		query += ", attempt_count = ?"
		args = append(args, *attempts)
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// OperatorRetry resets a FAILED or timed-out IN_PROGRESS item on explicit
// operator request. Exceeding max_attempts is rejected, not clamped.
func (s *Store) OperatorRetry(ctx context.Context, id string, now int64) error {
	it, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	maxAttempts := it.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if it.AttemptCount >= maxAttempts {
		return fmt.Errorf("%w: max attempts reached: %s (%d/%d)", ErrInvalidTransition, id, it.AttemptCount, maxAttempts)
	}
	timedOut := it.Status == StatusInProgress && it.LeaseExpiresAt > 0 && it.LeaseExpiresAt <= now
	if it.Status != StatusFailed && !timedOut {
		return fmt.Errorf("%w: retry allowed only for FAILED or timed-out IN_PROGRESS: %s (%s)", ErrInvalidTransition, id, it.Status)
	}

	backoff := s.backoff[min(it.AttemptCount, len(s.backoff)-1)]
	notes := AppendNote(it.Notes, retryNotBeforeNote(now+int64(backoff)))
	res, err := s.DB.ExecContext(ctx, `
		UPDATE queue_items
		SET status = 'PENDING',
		    owner_session = '-',
		    started_at = '-',
		    lease_owner = NULL,
		    lease_expires_at = NULL,
		    attempt_count = attempt_count + 1,
		    notes = ?,
		    updated_at = ?
		WHERE id = ?`,
		notes, s.clk.NowWall(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	metrics.RetriesTotal.Inc()
	_, err = s.AppendEvent(ctx, id, EventRetried, map[string]any{"reason": "operator_retry"})
	return err
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var it Item
	var status, priority string
	var leaseOwner, idemKey sql.NullString
	var leaseExpires sql.NullInt64
	err := scanner.Scan(
		&it.ID, &status, &priority, &it.Task, &it.SuccessCriteria, &it.OwnerSession,
		&it.StartedAt, &it.DueAt, &it.Notes, &it.CreatedAt, &it.UpdatedAt,
		&it.AttemptCount, &it.MaxAttempts,
		&leaseOwner, &leaseExpires, &idemKey, &it.LastError,
	)
	if err != nil {
		return nil, err
	}
	it.Status = Status(status)
	it.Priority = Priority(priority)
	if leaseOwner.Valid {
		it.LeaseOwner = leaseOwner.String
	}
	if leaseExpires.Valid {
		it.LeaseExpiresAt = leaseExpires.Int64
	}
	if idemKey.Valid {
		it.IdempotencyKey = idemKey.String
	}
	return &it, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

