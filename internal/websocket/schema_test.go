package websocket

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examsaathi/backend/internal/engine"
	"github.com/examsaathi/backend/internal/questionbank"
)

func intPtr(n int) *int { return &n }

func TestRequestOperation(t *testing.T) {
	builder := questionbank.NewBuilder(questionbank.Default(), nil)
	s := engine.New(engine.ParseConfig(engine.ModeMock, url.Values{"shuffle": {"off"}}), builder)
	defer s.Close()

	apply := func(r Request) error {
		op, err := r.Operation()
		if err != nil {
			return err
		}
		return op(s)
	}

	require.NoError(t, apply(Request{Action: ActionSelect, Question: intPtr(0), Option: intPtr(2)}))
	require.NoError(t, apply(Request{Action: ActionNext}))
	require.NoError(t, apply(Request{Action: ActionJump, Index: intPtr(4)}))
	assert.Equal(t, 4, s.View().CurrentIndex)
	require.NoError(t, apply(Request{Action: ActionPrev}))
	assert.Equal(t, 3, s.View().CurrentIndex)
	require.NoError(t, apply(Request{Action: ActionFirstUnanswered}))
	assert.Equal(t, 1, s.View().CurrentIndex)
	require.NoError(t, apply(Request{Action: ActionPause}))
	assert.True(t, s.View().Timer.Paused)
	require.NoError(t, apply(Request{Action: ActionResume}))

	assert.ErrorIs(t, apply(Request{Action: ActionSelect, Question: intPtr(0)}), ErrMissingArgs)
	assert.ErrorIs(t, apply(Request{Action: ActionJump}), ErrMissingArgs)
	assert.ErrorIs(t, apply(Request{Action: "dance"}), ErrUnknownAction)
	assert.ErrorIs(t, apply(Request{Action: ActionSubmit}), ErrNotAMutation)
	assert.ErrorIs(t, apply(Request{Action: ActionSelect, Question: intPtr(0), Option: intPtr(9)}), engine.ErrOptionRange)
}

func TestFromEngine(t *testing.T) {
	tick := FromEngine(engine.Event{Type: engine.EventTick, Seconds: 59, Display: "00:59"})
	assert.Equal(t, TickResponse{Event: EventTick, Seconds: 59, Display: "00:59"}, tick)

	res := engine.Result{ExamID: "jee-main", Score: 1, Total: 9}
	sub := FromEngine(engine.Event{Type: engine.EventSubmitted, Result: &res, Reason: engine.ReasonTimeout})
	assert.Equal(t, SubmittedResponse{
		Event:    EventSubmitted,
		Result:   res,
		Reason:   engine.ReasonTimeout,
		Redirect: "/mock/result?exam=jee-main&score=1&total=9",
	}, sub)
}
