// Package clock abstracts the two time domains of the queue engine: UTC epoch
// seconds for lease and retry math, and a fixed-offset wall-clock string for
// human display. Business logic never derives one from the other.
package clock

import (
	"sync"
	"time"
)

// WallFormat is the display format used in items, events and the tabular view.
const WallFormat = "2006-01-02 15:04"

// Clock is the single time source an operation consults.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time
	// NowEpoch returns the current UTC time as integer seconds.
	NowEpoch() int64
	// NowWall returns the current time as a wall-clock string at the
	// configured UTC offset.
	NowWall() string
}

// System is a Clock backed by time.Now with a fixed UTC offset for display.
type System struct {
	loc *time.Location
}

// NewSystem builds a system clock whose wall strings use the given UTC offset.
func NewSystem(offsetHours int) *System {
	return &System{loc: time.FixedZone("wall", offsetHours*3600)}
}

func (s *System) Now() time.Time    { return time.Now() }
func (s *System) NowEpoch() int64   { return time.Now().UTC().Unix() }
func (s *System) NowWall() string   { return time.Now().In(s.loc).Format(WallFormat) }
func (s *System) Location() *time.Location { return s.loc }

// Fake is a manually advanced Clock for deterministic tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

// NewFake builds a fake clock frozen at the given instant.
func NewFake(now time.Time, offsetHours int) *Fake {
	return &Fake{now: now, loc: time.FixedZone("wall", offsetHours*3600)}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NowEpoch() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.UTC().Unix()
}

func (f *Fake) NowWall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.In(f.loc).Format(WallFormat)
}

// Advance moves the fake clock forward.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set pins the fake clock to an absolute instant.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// ParseWall parses a wall-clock string at the given UTC offset. The boolean is
// false for empty or placeholder ("-") values.
func ParseWall(s string, offsetHours int) (time.Time, bool) {
	if s == "" || s == "-" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(WallFormat, s, time.FixedZone("wall", offsetHours*3600))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
