// Package clock provides wall-clock access and elapsed-time arithmetic for
// session timers.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fake is a manually driven clock for tests. It may be moved backwards.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Elapsed returns now - start - paused, floored at zero.
func Elapsed(start time.Time, paused time.Duration, now time.Time) time.Duration {
	elapsed := now.Sub(start) - paused
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Stopwatch reports a non-decreasing elapsed value. When the wall clock is
// adjusted backwards the last reported value is returned instead.
type Stopwatch struct {
	last time.Duration
}

func NewStopwatch(last time.Duration) *Stopwatch {
	if last < 0 {
		last = 0
	}
	return &Stopwatch{last: last}
}

func (s *Stopwatch) Observe(start time.Time, paused time.Duration, now time.Time) time.Duration {
	elapsed := Elapsed(start, paused, now)
	if elapsed < s.last {
		return s.last
	}
	s.last = elapsed
	return elapsed
}

func (s *Stopwatch) Last() time.Duration {
	return s.last
}
