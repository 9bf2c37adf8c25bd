package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examsaathi/backend/internal/questionbank"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateConfiguring State = "configuring"
	StateInProgress  State = "in_progress"
	StateSubmitted   State = "submitted"
)

// SubmitReason tells an explicit submission from a timer expiry.
type SubmitReason string

const (
	ReasonManual  SubmitReason = "manual"
	ReasonTimeout SubmitReason = "timeout"
)

var (
	ErrSubmitted = errors.New("session already submitted")
	ErrClosed    = errors.New("session closed")
)

// EventType names a session event.
type EventType string

const (
	EventTick      EventType = "tick"
	EventSubmitted EventType = "submitted"
)

// Event is pushed to subscribers on every timer tick and once on submission.
type Event struct {
	Type    EventType    `json:"type"`
	Seconds int          `json:"seconds"`
	Display string       `json:"display"`
	Result  *Result      `json:"result,omitempty"`
	Reason  SubmitReason `json:"reason,omitempty"`
}

// HandoffFunc receives the final result exactly once per session.
type HandoffFunc func(Result, SubmitReason)

// DefaultTickInterval is the wall-clock cadence of the session timer.
const DefaultTickInterval = time.Second

const eventBuffer = 16

// Option configures a Session.
type Option func(*Session)

// WithTickInterval overrides the tick cadence.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithHandoff registers the result handoff.
func WithHandoff(fn HandoffFunc) Option {
	return func(s *Session) { s.handoff = fn }
}

// WithID sets the session id instead of a random UUID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session is one test attempt: question set, answers, cursor and timer.
// All methods are safe for concurrent use; the timer goroutine and request
// handlers serialize on the same lock.
type Session struct {
	id           string
	cfg          Config
	questions    []questionbank.Question
	tickInterval time.Duration
	handoff      HandoffFunc

	mu        sync.Mutex
	state     State
	tracker   *Tracker
	timer     *Timer
	result    Result
	breakdown Breakdown
	reason    SubmitReason
	subs      map[int]chan Event
	nextSub   int
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New configures a session and moves it to InProgress with the cursor on
// the first question, every answer unset and the timer initialized for the
// mode. The timer does not run until Start.
func New(cfg Config, builder *questionbank.Builder, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		tickInterval: DefaultTickInterval,
		state:        StateConfiguring,
		subs:         make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Mode == ModeMock {
		if cfg.DurationMinutes <= 0 {
			cfg.DurationMinutes = DefaultDurationMinutes
		}
		cfg.DurationMinutes = min(cfg.DurationMinutes, MaxDurationMinutes)
	}
	s.cfg = cfg
	s.questions = builder.Build(cfg.Subjects, cfg.Shuffle)
	s.tracker = NewTracker(s.questions)
	if cfg.Mode == ModeMock {
		s.timer = NewCountdown(cfg.DurationMinutes)
	} else {
		s.timer = NewStopwatch()
	}

	s.state = StateInProgress
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Config() Config { return s.cfg }

// Questions returns a copy of the session's question list.
func (s *Session) Questions() []questionbank.Question {
	return append([]questionbank.Question(nil), s.questions...)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the final result once the session is submitted.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == StateSubmitted
}

// Start runs the 1 Hz timer until the session is submitted, closed, or ctx
// is cancelled. Calling Start more than once has no effect.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil || s.closed || s.state != StateInProgress {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(ctx, done)
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Tick() {
				return
			}
		}
	}
}

// Close discards the session: the timer goroutine is stopped and waited
// for, and every subscriber channel is closed. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	s.closeSubsLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Tick advances the timer by one second. A countdown reaching zero submits
// the session. Tick reports whether the session still wants ticks.
func (s *Session) Tick() bool {
	s.mu.Lock()
	if s.closed || s.state != StateInProgress {
		s.mu.Unlock()
		return false
	}
	if s.timer.Paused() {
		s.mu.Unlock()
		return true
	}

	expired := s.timer.Tick()
	s.publishLocked(Event{Type: EventTick, Seconds: s.timer.Seconds(), Display: s.timer.Display()})
	if !expired {
		s.mu.Unlock()
		return true
	}

	res := s.submitLocked(ReasonTimeout)
	s.mu.Unlock()

	s.fireHandoff(res, ReasonTimeout)
	return false
}

// Submit scores the session and fires the handoff. Only the first call
// transitions; later calls return the recorded result with ErrSubmitted.
func (s *Session) Submit() (Result, error) {
	s.mu.Lock()
	if s.state == StateSubmitted {
		res := s.result
		s.mu.Unlock()
		return res, ErrSubmitted
	}
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrClosed
	}

	res := s.submitLocked(ReasonManual)
	s.mu.Unlock()

	s.fireHandoff(res, ReasonManual)
	return res, nil
}

func (s *Session) submitLocked(reason SubmitReason) Result {
	s.breakdown = Score(s.questions, s.tracker.answers)
	s.result = Result{
		ExamID: s.cfg.ExamID,
		Score:  s.breakdown.Correct,
		Total:  s.breakdown.Total,
	}
	s.reason = reason
	s.state = StateSubmitted

	res := s.result
	s.publishLocked(Event{
		Type:    EventSubmitted,
		Seconds: s.timer.Seconds(),
		Display: s.timer.Display(),
		Result:  &res,
		Reason:  reason,
	})
	s.closeSubsLocked()
	return res
}

func (s *Session) fireHandoff(res Result, reason SubmitReason) {
	if s.handoff != nil {
		s.handoff(res, reason)
	}
}

// SelectOption records option for question q.
func (s *Session) SelectOption(q, option int) error {
	return s.mutate(func() error { return s.tracker.Select(q, option) })
}

// Next moves the cursor forward, clamped at the last question.
func (s *Session) Next() error {
	return s.mutate(func() error { s.tracker.Next(); return nil })
}

// Previous moves the cursor back, clamped at the first question.
func (s *Session) Previous() error {
	return s.mutate(func() error { s.tracker.Previous(); return nil })
}

// JumpTo moves the cursor to index; out-of-range indices are ignored.
func (s *Session) JumpTo(index int) error {
	return s.mutate(func() error { s.tracker.JumpTo(index); return nil })
}

// JumpToFirstUnanswered moves the cursor to the first unanswered question,
// or to the start when everything is answered.
func (s *Session) JumpToFirstUnanswered() error {
	return s.mutate(func() error { s.tracker.JumpTo(s.tracker.FirstUnanswered()); return nil })
}

// Pause halts a mock countdown.
func (s *Session) Pause() error {
	return s.mutate(s.timer.Pause)
}

// Resume continues a paused mock countdown.
func (s *Session) Resume() error {
	return s.mutate(s.timer.Resume)
}

func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state == StateSubmitted {
		return ErrSubmitted
	}
	return fn()
}

// Subscribe returns a channel of session events and a cancel func. Slow
// subscribers lose tick events, never the submission event. The channel is
// closed after submission or when the session closes.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, eventBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	if s.state == StateSubmitted {
		res := s.result
		ch <- Event{Type: EventSubmitted, Seconds: s.timer.Seconds(), Display: s.timer.Display(), Result: &res, Reason: s.reason}
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) publishLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		if ev.Type != EventSubmitted {
			continue
		}
		// Make room for the terminal event by dropping the oldest tick.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) closeSubsLocked() {
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}
