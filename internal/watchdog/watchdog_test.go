package watchdog_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/taskq/internal/clock"
	"github.com/ManuGH/taskq/internal/queue"
	"github.com/ManuGH/taskq/internal/watchdog"
)

func newFixture(t *testing.T) (*queue.Store, *clock.Fake, *watchdog.Watchdog) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), 9)
	s, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"), clk, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	wd := &watchdog.Watchdog{
		Store:         s,
		Clock:         clk,
		Interval:      time.Hour,
		StaleMinutes:  60,
		TZOffsetHours: 9,
	}
	return s, clk, wd
}

func TestRunOnceNoop(t *testing.T) {
	s, _, wd := newFixture(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, queue.AddParams{ID: "idle", Priority: queue.PriorityP1, Task: "x"}))

	res, err := wd.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestRunOnceRetriesFailed(t *testing.T) {
	s, _, wd := newFixture(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, queue.AddParams{ID: "broken", Priority: queue.PriorityP1, Task: "x"}))
	it, err := s.PickNext(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, it)
	require.NoError(t, s.MarkFailed(ctx, "broken", "crash"))

	res, err := wd.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken"}, res.Retried)
	assert.Empty(t, res.StaleReset)

	got, err := s.Get(ctx, "broken")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
}

func TestRunOnceResetsStale(t *testing.T) {
	s, clk, wd := newFixture(t)
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, queue.AddParams{ID: "stuck", Priority: queue.PriorityP1, Task: "x"}))
	it, err := s.PickNext(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, it)

	// Not yet stale.
	clk.Advance(30 * time.Minute)
	res, err := wd.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, res.Empty())

	clk.Advance(31 * time.Minute)
	res, err = wd.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"stuck"}, res.StaleReset)

	got, err := s.Get(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Equal(t, "-", got.OwnerSession)
	assert.Contains(t, got.Notes, "[watchdog] stale reset")
	// Stale reset does not consume a retry attempt.
	assert.Zero(t, got.AttemptCount)
}

func TestRunOnceStaleDisabled(t *testing.T) {
	s, clk, wd := newFixture(t)
	wd.StaleMinutes = 0
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, queue.AddParams{ID: "stuck", Priority: queue.PriorityP1, Task: "x"}))
	_, err := s.PickNext(ctx, "w1")
	require.NoError(t, err)

	clk.Advance(24 * time.Hour)
	res, err := wd.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.StaleReset)
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Opened without the fixture so the pool closes before the leak check.
	clk := clock.NewFake(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), 9)
	s, err := queue.Open(filepath.Join(t.TempDir(), "queue.db"), clk, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	wd := &watchdog.Watchdog{
		Store:         s,
		Clock:         clk,
		Interval:      50 * time.Millisecond,
		StaleMinutes:  60,
		TZOffsetHours: 9,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wd.Run(ctx) }()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not stop after cancel")
	}
}
