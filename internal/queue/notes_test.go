package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendNote(t *testing.T) {
	assert.Equal(t, "first", AppendNote("", "first"))
	assert.Equal(t, "first", AppendNote("   ", " first "))
	assert.Equal(t, "first | second", AppendNote("first", "second"))
	assert.Equal(t, "first | second | third", AppendNote("first | second", "third"))
}

func TestNoteSegments(t *testing.T) {
	assert.Nil(t, NoteSegments(""))
	assert.Equal(t, []string{"a", "b", "c"}, NoteSegments("a | b | c"))
	assert.Equal(t, []string{"a", "b"}, NoteSegments(" a |  | b "))
}

func TestReviewAttemptsRoundTrip(t *testing.T) {
	assert.Equal(t, 0, ReviewAttempts(""))
	assert.Equal(t, 0, ReviewAttempts("just a note"))

	notes := SetReviewAttempts("picked by w1", 1)
	assert.Equal(t, "picked by w1 | review_attempts=1", notes)
	assert.Equal(t, 1, ReviewAttempts(notes))

	// Setting again replaces the marker instead of stacking a second one.
	notes = SetReviewAttempts(notes, 2)
	assert.Equal(t, "picked by w1 | review_attempts=2", notes)
	assert.Equal(t, 2, ReviewAttempts(notes))
}

func TestRetryNotBefore(t *testing.T) {
	_, ok := RetryNotBefore("no marker here")
	assert.False(t, ok)

	notes := AppendNote("crash", retryNotBeforeNote(1060))
	ts, ok := RetryNotBefore(notes)
	assert.True(t, ok)
	assert.Equal(t, int64(1060), ts)

	// The most recent marker wins.
	notes = AppendNote(notes, retryNotBeforeNote(2180))
	ts, ok = RetryNotBefore(notes)
	assert.True(t, ok)
	assert.Equal(t, int64(2180), ts)
}

func TestRetryNotBeforeMalformed(t *testing.T) {
	_, ok := RetryNotBefore("retry_not_before=soon")
	assert.False(t, ok)
}
