package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/examsaathi/backend/internal/engine"
	"github.com/examsaathi/backend/internal/questionbank"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
)

// MaxOpenSessionsPerUser caps unsubmitted sessions held by one user.
const MaxOpenSessionsPerUser = 3

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithSessionTickInterval overrides the timer cadence of new sessions.
func WithSessionTickInterval(d time.Duration) SessionOption {
	return func(s *SessionService) { s.tickInterval = d }
}

// WithClock replaces time.Now for idle tracking.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = now }
}

type sessionEntry struct {
	session     *engine.Session
	owner       string
	lastSeen    time.Time
	submittedAt time.Time
	watchers    int
}

// SessionService is the registry of live test sessions. Sessions live in
// memory only and are discarded when left, reaped or at shutdown.
type SessionService struct {
	builder      *questionbank.Builder
	log          zerolog.Logger
	tickInterval time.Duration
	now          func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewSessionService creates a new SessionService.
func NewSessionService(builder *questionbank.Builder, log zerolog.Logger, opts ...SessionOption) *SessionService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionService{
		builder:      builder,
		log:          log.With().Str("component", "sessions").Logger(),
		tickInterval: engine.DefaultTickInterval,
		now:          time.Now,
		baseCtx:      ctx,
		cancel:       cancel,
		sessions:     make(map[string]*sessionEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start configures a session from navigation params and starts its timer.
func (s *SessionService) Start(owner string, mode engine.Mode, params url.Values) (engine.View, error) {
	cfg := engine.ParseConfig(mode, params)
	id := uuid.NewString()

	s.mu.Lock()
	open := 0
	for _, e := range s.sessions {
		if e.owner == owner && e.submittedAt.IsZero() {
			open++
		}
	}
	if open >= MaxOpenSessionsPerUser {
		s.mu.Unlock()
		return engine.View{}, ErrTooManySessions
	}

	sess := engine.New(cfg, s.builder,
		engine.WithID(id),
		engine.WithTickInterval(s.tickInterval),
		engine.WithHandoff(func(r engine.Result, reason engine.SubmitReason) {
			s.onSubmitted(id, r, reason)
		}),
	)
	s.sessions[id] = &sessionEntry{session: sess, owner: owner, lastSeen: s.now()}
	s.mu.Unlock()

	sess.Start(s.baseCtx)

	s.log.Info().
		Str("session_id", id).
		Str("exam_id", cfg.ExamID).
		Str("mode", string(cfg.Mode)).
		Str("scope", cfg.Scope).
		Int("questions", len(sess.Questions())).
		Msg("Session started")

	return sess.View(), nil
}

func (s *SessionService) onSubmitted(id string, r engine.Result, reason engine.SubmitReason) {
	s.mu.Lock()
	if e, ok := s.sessions[id]; ok {
		e.submittedAt = s.now()
	}
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", id).
		Str("exam_id", r.ExamID).
		Int("score", r.Score).
		Int("total", r.Total).
		Str("reason", string(reason)).
		Msg("Session submitted")
}

// lookup returns the owner's session and marks it as seen. Sessions of
// other users are reported as not found.
func (s *SessionService) lookup(owner, id string) (*engine.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || e.owner != owner {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = s.now()
	return e.session, nil
}

// View returns the session snapshot.
func (s *SessionService) View(owner, id string) (engine.View, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return engine.View{}, err
	}
	return sess.View(), nil
}

// Apply runs one mutation against the session and returns the new view.
func (s *SessionService) Apply(owner, id string, op func(*engine.Session) error) (engine.View, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return engine.View{}, err
	}
	if err := op(sess); err != nil {
		return engine.View{}, err
	}
	return sess.View(), nil
}

// Submit submits the session. Submitting twice returns the recorded result.
func (s *SessionService) Submit(owner, id string) (engine.Result, error) {
	sess, err := s.lookup(owner, id)
	if err != nil {
		return engine.Result{}, err
	}
	res, err := sess.Submit()
	if err != nil && !errors.Is(err, engine.ErrSubmitted) {
		return engine.Result{}, err
	}
	return res, nil
}

// Leave discards the session and stops its timer.
func (s *SessionService) Leave(owner, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok || e.owner != owner {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	e.session.Close()
	s.log.Info().Str("session_id", id).Msg("Session left")
	return nil
}

// Subscribe streams the session's events. A session with subscribers is
// never reaped as idle.
func (s *SessionService) Subscribe(owner, id string) (<-chan engine.Event, func(), error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok || e.owner != owner {
		s.mu.Unlock()
		return nil, nil, ErrSessionNotFound
	}
	e.watchers++
	e.lastSeen = s.now()
	s.mu.Unlock()

	events, cancel := e.session.Subscribe()

	var once sync.Once
	return events, func() {
		once.Do(func() {
			cancel()
			s.mu.Lock()
			e.watchers--
			e.lastSeen = s.now()
			s.mu.Unlock()
		})
	}, nil
}

// ReapIdle closes sessions untouched for longer than idle and submitted
// sessions older than idle. It returns how many were closed.
func (s *SessionService) ReapIdle(idle time.Duration) int {
	now := s.now()

	s.mu.Lock()
	var victims []string
	var closing []*engine.Session
	for id, e := range s.sessions {
		stale := e.watchers == 0 && now.Sub(e.lastSeen) > idle
		done := !e.submittedAt.IsZero() && now.Sub(e.submittedAt) > idle
		if stale || done {
			victims = append(victims, id)
			closing = append(closing, e.session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for i, sess := range closing {
		sess.Close()
		s.log.Info().Str("session_id", victims[i]).Msg("Session reaped")
	}
	return len(closing)
}

// Count returns the number of registered sessions.
func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CloseAll discards every session. Used at shutdown.
func (s *SessionService) CloseAll() {
	s.mu.Lock()
	all := make([]*engine.Session, 0, len(s.sessions))
	for id, e := range s.sessions {
		all = append(all, e.session)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	s.cancel()
	for _, sess := range all {
		sess.Close()
	}
	s.log.Info().Int("count", len(all)).Msg("All sessions closed")
}
