package engine

import (
	"errors"
	"fmt"
)

// ErrPauseUnsupported is returned when pausing a stopwatch.
var ErrPauseUnsupported = errors.New("only countdown timers can be paused")

// TimerKind distinguishes the two timer variants.
type TimerKind string

const (
	KindCountdown TimerKind = "countdown"
	KindStopwatch TimerKind = "stopwatch"
)

// Timer counts whole seconds. It advances only through Tick; the Session
// owns the 1 Hz schedule that drives it. Not safe for concurrent use.
type Timer struct {
	kind    TimerKind
	seconds int
	paused  bool
}

// NewCountdown returns a countdown starting at minutes*60 seconds, with
// minutes clamped to [0, MaxDurationMinutes].
func NewCountdown(minutes int) *Timer {
	minutes = max(0, min(minutes, MaxDurationMinutes))
	return &Timer{kind: KindCountdown, seconds: minutes * 60}
}

// NewStopwatch returns a stopwatch starting at zero.
func NewStopwatch() *Timer {
	return &Timer{kind: KindStopwatch}
}

// Tick advances the timer by one second and reports whether this tick
// brought a countdown to zero. Paused or already expired timers don't move.
func (t *Timer) Tick() (expired bool) {
	if t.paused {
		return false
	}

	switch t.kind {
	case KindCountdown:
		if t.seconds <= 0 {
			return false
		}
		t.seconds--
		return t.seconds == 0
	default:
		t.seconds++
		return false
	}
}

// Pause halts a countdown without resetting it.
func (t *Timer) Pause() error {
	if t.kind != KindCountdown {
		return ErrPauseUnsupported
	}
	t.paused = true
	return nil
}

// Resume continues a paused countdown from the exact remaining value.
func (t *Timer) Resume() error {
	if t.kind != KindCountdown {
		return ErrPauseUnsupported
	}
	t.paused = false
	return nil
}

func (t *Timer) Kind() TimerKind { return t.kind }

// Seconds is the remaining time for a countdown, the elapsed time for a
// stopwatch.
func (t *Timer) Seconds() int { return t.seconds }

func (t *Timer) Paused() bool { return t.paused }

// Expired reports whether a countdown has reached zero.
func (t *Timer) Expired() bool {
	return t.kind == KindCountdown && t.seconds == 0
}

// Display formats the timer as mm:ss. Minutes are not wrapped at 60.
func (t *Timer) Display() string {
	return FormatClock(t.seconds)
}

// FormatClock renders seconds as zero-padded mm:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
