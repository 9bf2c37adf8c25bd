package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reaper is the part of the session registry the worker drives.
type Reaper interface {
	ReapIdle(idle time.Duration) int
	Count() int
}

// SessionReaper periodically discards abandoned and finished sessions so
// their timer goroutines do not outlive the client.
type SessionReaper struct {
	sessions Reaper
	idle     time.Duration
	interval time.Duration
	log      zerolog.Logger
}

// NewSessionReaper creates a new SessionReaper.
func NewSessionReaper(sessions Reaper, idle, interval time.Duration, log zerolog.Logger) *SessionReaper {
	return &SessionReaper{
		sessions: sessions,
		idle:     idle,
		interval: interval,
		log:      log.With().Str("component", "session_reaper").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine; it returns when ctx
// is cancelled.
func (w *SessionReaper) Start(ctx context.Context) {
	w.log.Info().
		Dur("idle", w.idle).
		Dur("interval", w.interval).
		Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single sweep and returns how many sessions it closed.
func (w *SessionReaper) RunOnce() int {
	n := w.sessions.ReapIdle(w.idle)
	if n > 0 {
		w.log.Info().
			Int("reaped", n).
			Int("remaining", w.sessions.Count()).
			Msg("Idle sessions reaped")
	}
	return n
}
