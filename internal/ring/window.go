// Package ring provides a timestamped rolling window for the Exit
// Governor's suppression counter, which needs "how many events in the last
// N minutes"; it generalizes the teacher's single per-IP token bucket
// (internal/api/ratelimit.go in the teacher). The Congestion Governor keeps
// its own sample buffer, since it averages per-sample metrics rather than
// counting events.
package ring

import (
	"sync"
	"time"
)

// Window holds timestamped events and compacts entries older than its
// duration lazily, on read — matching the teacher's RateLimiter cleanup
// idiom of sweeping on access rather than running a dedicated goroutine
// for values that are read far more often than the cap is hit.
type Window struct {
	mu       sync.Mutex
	duration time.Duration
	maxLen   int
	events   []time.Time
}

// New creates a window retaining events for duration, capped at maxLen
// entries (0 means unbounded).
func New(duration time.Duration, maxLen int) *Window {
	return &Window{duration: duration, maxLen: maxLen}
}

// Record appends an event at ts and compacts anything older than the
// window relative to ts.
func (w *Window) Record(ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, ts)
	w.compactLocked(ts)
}

// Count returns the number of events within duration of now.
func (w *Window) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.compactLocked(now)
	return len(w.events)
}

func (w *Window) compactLocked(now time.Time) {
	cutoff := now.Add(-w.duration)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.events = append(w.events[:0], w.events[i:]...)
	}
	if w.maxLen > 0 && len(w.events) > w.maxLen {
		excess := len(w.events) - w.maxLen
		w.events = append(w.events[:0], w.events[excess:]...)
	}
}
