// Package view projects the queue store into a human-readable Markdown table
// and checks an existing table against the store. The store is the source of
// truth; the view is a lossy, regenerable projection.
package view

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/taskq/internal/queue"
)

// Header is the canonical 9-column table header.
const Header = "| id | status | priority | task | success_criteria | owner_session | started_at | due_at | notes |"

// headerPrefix locates the table inside a larger document.
const headerPrefix = "| id | status | priority | task |"

const separator = "|---|---|---|---|---|---|---|---|---|"

// ErrSchemaMismatch is returned when a table row does not have exactly the
// expected cells.
var ErrSchemaMismatch = errors.New("view: table row does not match 9-column schema")

// ErrReadOnly is returned by Render when the view is configured read-only.
var ErrReadOnly = errors.New("view: read-only, render skipped")

// Row is one parsed table row.
type Row struct {
	ID              string
	Status          string
	Priority        string
	Task            string
	SuccessCriteria string
	OwnerSession    string
	StartedAt       string
	DueAt           string
	Notes           string
}

// Renderer writes the projection to one Markdown file.
type Renderer struct {
	Path     string
	ReadOnly bool
}

// sanitizeCell makes a value safe for a single table cell: newlines collapse
// to spaces and pipes become slashes so the row structure cannot break.
func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "/")
	return strings.TrimSpace(s)
}

func formatRow(it queue.Item) string {
	cells := []string{
		it.ID, string(it.Status), string(it.Priority), it.Task, it.SuccessCriteria,
		it.OwnerSession, it.StartedAt, it.DueAt, it.Notes,
	}
	for i, c := range cells {
		cells[i] = sanitizeCell(c)
	}
	return "| " + strings.Join(cells, " | ") + " |"
}

func table(items []queue.Item) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n")
	b.WriteString(separator)
	b.WriteString("\n")
	for _, it := range items {
		b.WriteString(formatRow(it))
		b.WriteString("\n")
	}
	return b.String()
}

// Render replaces the queue table in the file at r.Path with a fresh
// projection of items, preserving any surrounding document content. A missing
// file is created with a minimal document. The write is atomic.
func (r *Renderer) Render(items []queue.Item) error {
	if r.ReadOnly {
		return ErrReadOnly
	}

	existing, err := os.ReadFile(r.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		existing = []byte("# Task Queue\n\n")
	case err != nil:
		return fmt.Errorf("view: read %s: %w", r.Path, err)
	}

	content := spliceTable(string(existing), table(items))
	if err := renameio.WriteFile(r.Path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("view: write %s: %w", r.Path, err)
	}
	return nil
}

// spliceTable replaces the existing table block (header through the last
// contiguous "|" row) with the new table, or appends the table when the
// document has none.
func spliceTable(doc, newTable string) string {
	lines := strings.Split(doc, "\n")
	start := -1
	for i, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), headerPrefix) {
			start = i
			break
		}
	}
	if start == -1 {
		if !strings.HasSuffix(doc, "\n") && doc != "" {
			doc += "\n"
		}
		return doc + newTable
	}

	end := start + 1
	for end < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[end]), "|") {
		end++
	}

	var out []string
	out = append(out, lines[:start]...)
	out = append(out, strings.TrimSuffix(newTable, "\n"))
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n")
}

// Parse extracts the queue table rows from a document. A row with a cell count
// other than 9 yields ErrSchemaMismatch.
func Parse(doc string) ([]Row, error) {
	lines := strings.Split(doc, "\n")
	start := -1
	for i, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), headerPrefix) {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, nil
	}

	var rows []Row
	// start+1 is the separator row.
	for i := start + 2; i < len(lines); i++ {
		ln := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(ln, "|") {
			break
		}
		cells := strings.Split(ln, "|")
		// Leading and trailing pipes produce empty first/last fragments.
		if len(cells) < 2 {
			return nil, fmt.Errorf("%w: line %d", ErrSchemaMismatch, i+1)
		}
		cells = cells[1 : len(cells)-1]
		if len(cells) != 9 {
			return nil, fmt.Errorf("%w: line %d has %d cells", ErrSchemaMismatch, i+1, len(cells))
		}
		for j, c := range cells {
			cells[j] = strings.TrimSpace(c)
		}
		rows = append(rows, Row{
			ID: cells[0], Status: cells[1], Priority: cells[2], Task: cells[3],
			SuccessCriteria: cells[4], OwnerSession: cells[5], StartedAt: cells[6],
			DueAt: cells[7], Notes: cells[8],
		})
	}
	return rows, nil
}

// ParseFile reads and parses the view file. A missing file parses as empty.
func ParseFile(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("view: read %s: %w", path, err)
	}
	return Parse(string(data))
}

// Mismatch is one field-level divergence between store and view.
type Mismatch struct {
	ID    string
	Field string
	Store string
	View  string
}

// ConsistencyReport summarizes a store/view comparison.
type ConsistencyReport struct {
	MissingInView  []string
	MissingInStore []string
	Mismatches     []Mismatch
}

// OK reports whether store and view agree.
func (r ConsistencyReport) OK() bool {
	return len(r.MissingInView) == 0 && len(r.MissingInStore) == 0 && len(r.Mismatches) == 0
}

// Check compares store items against parsed view rows on the durable fields
// status, priority, owner_session, started_at and due_at. Notes are lossy in
// the view and deliberately not compared.
func Check(items []queue.Item, rows []Row) ConsistencyReport {
	var rep ConsistencyReport

	byID := map[string]Row{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	inStore := map[string]bool{}

	for _, it := range items {
		inStore[it.ID] = true
		row, ok := byID[it.ID]
		if !ok {
			rep.MissingInView = append(rep.MissingInView, it.ID)
			continue
		}
		fields := []struct {
			name, store, view string
		}{
			{"status", string(it.Status), row.Status},
			{"priority", string(it.Priority), row.Priority},
			{"owner_session", sanitizeCell(it.OwnerSession), row.OwnerSession},
			{"started_at", sanitizeCell(it.StartedAt), row.StartedAt},
			{"due_at", sanitizeCell(it.DueAt), row.DueAt},
		}
		for _, f := range fields {
			if f.store != f.view {
				rep.Mismatches = append(rep.Mismatches, Mismatch{ID: it.ID, Field: f.name, Store: f.store, View: f.view})
			}
		}
	}

	for _, r := range rows {
		if !inStore[r.ID] {
			rep.MissingInStore = append(rep.MissingInStore, r.ID)
		}
	}
	return rep
}
