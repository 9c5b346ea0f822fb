package queue

import (
	"strconv"
	"strings"
)

// Notes are an append-only list of audit segments rendered as a single string
// joined by " | " at the store boundary. They are never parsed as structured
// data except for the two markers below.

const (
	noteSep              = " | "
	reviewAttemptsMarker = "review_attempts="
	retryNotBeforeMarker = "retry_not_before="
)

// AppendNote appends a segment to an existing notes string.
func AppendNote(existing, msg string) string {
	msg = strings.TrimSpace(msg)
	if strings.TrimSpace(existing) == "" {
		return msg
	}
	return strings.TrimSpace(existing) + noteSep + msg
}

// NoteSegments splits a notes string back into its segments.
func NoteSegments(notes string) []string {
	var out []string
	for _, p := range strings.Split(notes, "|") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ReviewAttempts extracts the most recent review_attempts marker, or 0.
func ReviewAttempts(notes string) int {
	segs := NoteSegments(notes)
	for i := len(segs) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(segs[i], reviewAttemptsMarker); ok {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}

// SetReviewAttempts drops any existing review_attempts marker and appends the
// new value as the last segment.
func SetReviewAttempts(notes string, attempts int) string {
	var kept []string
	for _, seg := range NoteSegments(notes) {
		if !strings.HasPrefix(seg, reviewAttemptsMarker) {
			kept = append(kept, seg)
		}
	}
	kept = append(kept, reviewAttemptsMarker+strconv.Itoa(attempts))
	return strings.Join(kept, noteSep)
}

// RetryNotBefore extracts the most recent retry_not_before marker. The boolean
// is false when no marker is present. The marker is advisory: dispatch does
// not enforce it.
func RetryNotBefore(notes string) (int64, bool) {
	segs := NoteSegments(notes)
	for i := len(segs) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(segs[i], retryNotBeforeMarker); ok {
			ts, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return 0, false
			}
			return ts, true
		}
	}
	return 0, false
}

func retryNotBeforeNote(ts int64) string {
	return retryNotBeforeMarker + strconv.FormatInt(ts, 10)
}
