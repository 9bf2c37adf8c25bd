package websocket

import (
	"errors"

	"github.com/examsaathi/backend/internal/engine"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect          Action = "select"
	ActionNext            Action = "next"
	ActionPrev            Action = "prev"
	ActionJump            Action = "jump"
	ActionFirstUnanswered Action = "first_unanswered"
	ActionPause           Action = "pause"
	ActionResume          Action = "resume"
	ActionSubmit          Action = "submit"
	ActionPing            Action = "ping"
)

// Request is one client message. Question and Option are used by select,
// Index by jump.
type Request struct {
	Action   Action `json:"action"`
	Question *int   `json:"question,omitempty"`
	Option   *int   `json:"option,omitempty"`
	Index    *int   `json:"index,omitempty"`
}

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrMissingArgs   = errors.New("missing action arguments")
	ErrNotAMutation  = errors.New("action does not change the session")
)

// Operation maps a navigation or answer action onto the session method it
// performs. submit and ping are handled by the caller.
func (r Request) Operation() (func(*engine.Session) error, error) {
	switch r.Action {
	case ActionSelect:
		if r.Question == nil || r.Option == nil {
			return nil, ErrMissingArgs
		}
		q, opt := *r.Question, *r.Option
		return func(s *engine.Session) error { return s.SelectOption(q, opt) }, nil
	case ActionNext:
		return (*engine.Session).Next, nil
	case ActionPrev:
		return (*engine.Session).Previous, nil
	case ActionJump:
		if r.Index == nil {
			return nil, ErrMissingArgs
		}
		i := *r.Index
		return func(s *engine.Session) error { return s.JumpTo(i) }, nil
	case ActionFirstUnanswered:
		return (*engine.Session).JumpToFirstUnanswered, nil
	case ActionPause:
		return (*engine.Session).Pause, nil
	case ActionResume:
		return (*engine.Session).Resume, nil
	case ActionSubmit, ActionPing:
		return nil, ErrNotAMutation
	}
	return nil, ErrUnknownAction
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse carries the full session view after connect or an action.
type StateResponse struct {
	Event   Event       `json:"event"`
	Session engine.View `json:"session"`
}

type TickResponse struct {
	Event   Event  `json:"event"`
	Seconds int    `json:"seconds"`
	Display string `json:"display"`
}

// SubmittedResponse is sent once, on manual or timed submission.
type SubmittedResponse struct {
	Event    Event               `json:"event"`
	Result   engine.Result       `json:"result"`
	Reason   engine.SubmitReason `json:"reason"`
	Redirect string              `json:"redirect"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// FromEngine converts a session event into its wire form.
func FromEngine(ev engine.Event) interface{} {
	if ev.Type == engine.EventSubmitted && ev.Result != nil {
		return SubmittedResponse{
			Event:    EventSubmitted,
			Result:   *ev.Result,
			Reason:   ev.Reason,
			Redirect: ev.Result.URL(),
		}
	}
	return TickResponse{Event: EventTick, Seconds: ev.Seconds, Display: ev.Display}
}
