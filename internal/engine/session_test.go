package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examsaathi/backend/internal/questionbank"
)

func newSession(t *testing.T, mode Mode, kv ...string) *Session {
	t.Helper()
	return newSessionWith(t, mode, nil, kv...)
}

func newSessionWith(t *testing.T, mode Mode, handoff HandoffFunc, kv ...string) *Session {
	t.Helper()
	builder := questionbank.NewBuilder(questionbank.Default(), nil)
	s := New(ParseConfig(mode, params(kv...)), builder, WithHandoff(handoff))
	t.Cleanup(s.Close)
	return s
}

func answerCorrectly(t *testing.T, s *Session) {
	t.Helper()
	for i, q := range s.Questions() {
		require.NoError(t, s.SelectOption(i, q.CorrectOption))
	}
}

func TestNewSessionInitialState(t *testing.T) {
	s := newSession(t, ModeMock, ParamDuration, "90")

	v := s.View()
	assert.Equal(t, StateInProgress, v.State)
	assert.Equal(t, 0, v.CurrentIndex)
	assert.Equal(t, 9, v.Total)
	assert.Equal(t, 0, v.Answered)
	assert.Equal(t, KindCountdown, v.Timer.Kind)
	assert.Equal(t, 5400, v.Timer.Seconds)
	require.NotNil(t, v.Question)
	assert.Nil(t, v.Question.Selected)
	assert.Nil(t, v.Result)
	assert.NotEmpty(t, s.ID())
}

// Practice, math only, no shuffle: answering all correctly scores 3/3.
func TestPracticeMathAllCorrect(t *testing.T) {
	var got []Result
	s := newSessionWith(t, ModePractice, func(r Result, _ SubmitReason) { got = append(got, r) },
		ParamScope, "math", ParamShuffle, "off")

	bank := questionbank.Default()
	require.Equal(t, bank.Questions(questionbank.Math), s.Questions())

	answerCorrectly(t, s)
	res, err := s.Submit()
	require.NoError(t, err)

	assert.Equal(t, Result{ExamID: "jee-main", Score: 3, Total: 3}, res)
	assert.Equal(t, []Result{res}, got)
	assert.Equal(t, StateSubmitted, s.State())
}

// Practice, full scope, no shuffle: the bank is concatenated in subject order.
func TestPracticeFullConcatenation(t *testing.T) {
	s := newSession(t, ModePractice, ParamScope, "full", ParamShuffle, "off")

	bank := questionbank.Default()
	var want []questionbank.Question
	for _, sub := range questionbank.Subjects {
		want = append(want, bank.Questions(sub)...)
	}
	assert.Equal(t, want, s.Questions())
	assert.Equal(t, KindStopwatch, s.View().Timer.Kind)
}

// Mock with a 90 minute countdown and no answers submits itself at zero.
func TestMockTimeoutSubmitsOnce(t *testing.T) {
	var calls int
	var reason SubmitReason
	s := newSessionWith(t, ModeMock, func(_ Result, r SubmitReason) { calls++; reason = r },
		ParamDuration, "90")

	for range 90*60 - 1 {
		require.True(t, s.Tick())
	}
	assert.Equal(t, StateInProgress, s.State())

	assert.False(t, s.Tick())
	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, 1, calls)
	assert.Equal(t, ReasonTimeout, reason)

	res, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 9, res.Total)

	assert.False(t, s.Tick())
	_, err := s.Submit()
	assert.ErrorIs(t, err, ErrSubmitted)
	assert.Equal(t, 1, calls)
}

func TestMockOneMinuteReachesZeroAfterSixtyTicks(t *testing.T) {
	var calls int
	s := newSessionWith(t, ModeMock, func(Result, SubmitReason) { calls++ }, ParamDuration, "1")

	for range 60 {
		s.Tick()
	}
	v := s.View()
	assert.Equal(t, 0, v.Timer.Seconds)
	assert.Equal(t, StateSubmitted, v.State)
	assert.Equal(t, ReasonTimeout, v.Reason)
	assert.Equal(t, 1, calls)
}

// Questions 0 and 1 answered: jumping to the first unanswered lands on 2.
func TestJumpToFirstUnanswered(t *testing.T) {
	s := newSession(t, ModePractice, ParamShuffle, "off")
	require.NoError(t, s.SelectOption(0, 0))
	require.NoError(t, s.SelectOption(1, 0))

	require.NoError(t, s.JumpToFirstUnanswered())
	assert.Equal(t, 2, s.View().CurrentIndex)
}

func TestSelectOverwrites(t *testing.T) {
	s := newSession(t, ModeMock)
	require.NoError(t, s.SelectOption(0, 1))
	require.NoError(t, s.SelectOption(0, 3))

	v := s.View()
	require.NotNil(t, v.Question.Selected)
	assert.Equal(t, 3, *v.Question.Selected)
	assert.Equal(t, 1, v.Answered)
}

func TestSelectOutOfRange(t *testing.T) {
	s := newSession(t, ModeMock)
	assert.ErrorIs(t, s.SelectOption(9, 0), ErrQuestionRange)
	assert.ErrorIs(t, s.SelectOption(0, 4), ErrOptionRange)
}

func TestMockHidesCorrectnessUntilSubmit(t *testing.T) {
	s := newSession(t, ModeMock, ParamShuffle, "off")
	require.NoError(t, s.SelectOption(0, 0))

	v := s.View()
	assert.Nil(t, v.Question.Correct)
	assert.Nil(t, v.Question.CorrectOption)
	assert.Empty(t, v.Question.Explanation)
	assert.Nil(t, v.Palette[0].Correct)

	_, err := s.Submit()
	require.NoError(t, err)

	v = s.View()
	require.NotNil(t, v.Question.Correct)
	assert.False(t, *v.Question.Correct)
	require.NotNil(t, v.Breakdown)
	assert.Equal(t, 1, v.Breakdown.Incorrect)
	assert.Equal(t, 8, v.Breakdown.Unanswered)
}

func TestPracticeRevealsAnswered(t *testing.T) {
	s := newSession(t, ModePractice, ParamScope, "physics", ParamShuffle, "off")

	v := s.View()
	assert.Nil(t, v.Question.CorrectOption)

	require.NoError(t, s.SelectOption(0, 2))
	v = s.View()
	require.NotNil(t, v.Question.Correct)
	assert.True(t, *v.Question.Correct)
	require.NotNil(t, v.Question.CorrectOption)
	assert.Equal(t, 2, *v.Question.CorrectOption)
	assert.NotEmpty(t, v.Question.Explanation)
}

func TestMutationsRejectedAfterSubmit(t *testing.T) {
	s := newSession(t, ModeMock)
	_, err := s.Submit()
	require.NoError(t, err)

	assert.ErrorIs(t, s.SelectOption(0, 0), ErrSubmitted)
	assert.ErrorIs(t, s.Next(), ErrSubmitted)
	assert.ErrorIs(t, s.Previous(), ErrSubmitted)
	assert.ErrorIs(t, s.JumpTo(1), ErrSubmitted)
	assert.ErrorIs(t, s.Pause(), ErrSubmitted)
}

func TestPauseFreezesCountdown(t *testing.T) {
	s := newSession(t, ModeMock, ParamDuration, "1")
	s.Tick()
	require.NoError(t, s.Pause())
	for range 100 {
		assert.True(t, s.Tick())
	}
	assert.Equal(t, 59, s.View().Timer.Seconds)
	assert.Equal(t, StateInProgress, s.State())

	require.NoError(t, s.Resume())
	s.Tick()
	assert.Equal(t, 58, s.View().Timer.Seconds)
}

func TestPracticeCannotPause(t *testing.T) {
	s := newSession(t, ModePractice)
	assert.ErrorIs(t, s.Pause(), ErrPauseUnsupported)
}

func TestEmptyQuestionSet(t *testing.T) {
	builder := questionbank.NewBuilder(questionbank.New(nil), nil)
	s := New(ParseConfig(ModePractice, nil), builder)
	defer s.Close()

	v := s.View()
	assert.True(t, v.NoQuestions)
	assert.Nil(t, v.Question)
	require.NoError(t, s.Next())
	require.NoError(t, s.JumpToFirstUnanswered())

	res, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, Result{ExamID: "jee-main"}, res)
}

func TestConcurrentSubmitTransitionsOnce(t *testing.T) {
	var calls atomic.Int32
	s := newSessionWith(t, ModeMock, func(Result, SubmitReason) { calls.Add(1) }, ParamDuration, "1")

	var wg sync.WaitGroup
	var ok atomic.Int32
	for range 16 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.Submit(); err == nil {
				ok.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			for range 10 {
				s.Tick()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.LessOrEqual(t, ok.Load(), int32(1))
}

func TestSubscribeReceivesTicksAndSubmission(t *testing.T) {
	s := newSession(t, ModeMock, ParamDuration, "1")
	events, cancel := s.Subscribe()
	defer cancel()

	s.Tick()
	ev := <-events
	assert.Equal(t, EventTick, ev.Type)
	assert.Equal(t, 59, ev.Seconds)
	assert.Equal(t, "00:59", ev.Display)

	_, err := s.Submit()
	require.NoError(t, err)

	ev = <-events
	assert.Equal(t, EventSubmitted, ev.Type)
	require.NotNil(t, ev.Result)
	assert.Equal(t, ReasonManual, ev.Reason)

	_, open := <-events
	assert.False(t, open)
}

func TestSubscribeAfterSubmit(t *testing.T) {
	s := newSession(t, ModeMock)
	_, err := s.Submit()
	require.NoError(t, err)

	events, _ := s.Subscribe()
	ev, open := <-events
	require.True(t, open)
	assert.Equal(t, EventSubmitted, ev.Type)
	_, open = <-events
	assert.False(t, open)
}

func TestSubmissionSurvivesFullBuffer(t *testing.T) {
	s := newSession(t, ModeMock, ParamDuration, "1")
	events, cancel := s.Subscribe()
	defer cancel()

	for range eventBuffer + 5 {
		s.Tick()
	}
	_, err := s.Submit()
	require.NoError(t, err)

	var last Event
	for ev := range events {
		last = ev
	}
	assert.Equal(t, EventSubmitted, last.Type)
}

func TestStartRunsTimerAndCloseStops(t *testing.T) {
	builder := questionbank.NewBuilder(questionbank.Default(), nil)
	done := make(chan SubmitReason, 1)
	s := New(ParseConfig(ModeMock, params(ParamDuration, "1")), builder,
		WithTickInterval(time.Millisecond),
		WithHandoff(func(_ Result, r SubmitReason) { done <- r }))
	defer s.Close()

	s.Start(context.Background())
	s.Start(context.Background())

	select {
	case r := <-done:
		assert.Equal(t, ReasonTimeout, r)
	case <-time.After(5 * time.Second):
		t.Fatal("countdown did not submit")
	}
	assert.Equal(t, StateSubmitted, s.State())
}

func TestCloseCancelsTimer(t *testing.T) {
	builder := questionbank.NewBuilder(questionbank.Default(), nil)
	s := New(ParseConfig(ModePractice, nil), builder, WithTickInterval(time.Millisecond))
	events, _ := s.Subscribe()

	s.Start(context.Background())
	s.Close()
	s.Close()

	for range events {
	}
	before := s.View().Timer.Seconds
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, before, s.View().Timer.Seconds)
	assert.ErrorIs(t, s.Next(), ErrClosed)
	assert.False(t, s.Tick())
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newSession(t, ModeMock, ParamExam, "bitsat", ParamSections, "physics,maths", ParamDuration, "45")
	v := s.View()

	assert.Equal(t, ScopeSections, v.Config.Scope)
	assert.Equal(t, "duration=45&exam=bitsat&s=physics%2Cmath&shuffle=on", v.Snapshot)
}

// A duration far past the cap still yields a countdown that expires.
func TestMockHugeDurationStillExpires(t *testing.T) {
	var calls int
	cfg := ParseConfig(ModeMock, params(ParamDuration, "153722867280912931"))
	cfg.DurationMinutes = 153722867280912931
	builder := questionbank.NewBuilder(questionbank.Default(), nil)
	s := New(cfg, builder, WithHandoff(func(Result, SubmitReason) { calls++ }))
	defer s.Close()

	v := s.View()
	assert.Equal(t, MaxDurationMinutes, v.Config.DurationMinutes)
	assert.Equal(t, MaxDurationMinutes*60, v.Timer.Seconds)

	for range MaxDurationMinutes * 60 {
		s.Tick()
	}
	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, 1, calls)
}
