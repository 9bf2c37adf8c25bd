package engine

import (
	"errors"

	"github.com/examsaathi/backend/internal/questionbank"
)

// Unanswered marks a question without a selected option.
const Unanswered = -1

var (
	ErrQuestionRange = errors.New("question index out of range")
	ErrOptionRange   = errors.New("option index out of range")
)

// PaletteEntry is the per-question status shown in the palette.
// Correct is only set when correctness may be revealed.
type PaletteEntry struct {
	Index    int   `json:"index"`
	Answered bool  `json:"answered"`
	Current  bool  `json:"current"`
	Correct  *bool `json:"correct,omitempty"`
}

// Tracker records the selected option per question and the cursor
// position. len(answers) always equals len(questions).
type Tracker struct {
	questions []questionbank.Question
	answers   []int
	current   int
}

// NewTracker starts a tracker at question 0 with every answer unset.
func NewTracker(questions []questionbank.Question) *Tracker {
	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = Unanswered
	}
	return &Tracker{questions: questions, answers: answers}
}

func (t *Tracker) Len() int { return len(t.questions) }

func (t *Tracker) Current() int { return t.current }

// Select sets the answer for question q, replacing any earlier choice.
func (t *Tracker) Select(q, option int) error {
	if q < 0 || q >= len(t.questions) {
		return ErrQuestionRange
	}
	if option < 0 || option >= len(t.questions[q].Options) {
		return ErrOptionRange
	}
	t.answers[q] = option
	return nil
}

// Answer returns the selected option for q, if any.
func (t *Tracker) Answer(q int) (int, bool) {
	if q < 0 || q >= len(t.answers) || t.answers[q] == Unanswered {
		return Unanswered, false
	}
	return t.answers[q], true
}

// Answers returns a copy of the answer array.
func (t *Tracker) Answers() []int {
	return append([]int(nil), t.answers...)
}

// Next moves forward one question. It is a no-op on the last question.
func (t *Tracker) Next() bool {
	if t.current >= len(t.questions)-1 {
		return false
	}
	t.current++
	return true
}

// Previous moves back one question. It is a no-op on the first question.
func (t *Tracker) Previous() bool {
	if t.current <= 0 {
		return false
	}
	t.current--
	return true
}

// JumpTo moves the cursor to index when it is in range.
func (t *Tracker) JumpTo(index int) bool {
	if index < 0 || index >= len(t.questions) {
		return false
	}
	t.current = index
	return true
}

// FirstUnanswered returns the lowest unanswered index, or 0 when every
// question has an answer.
func (t *Tracker) FirstUnanswered() int {
	for i, a := range t.answers {
		if a == Unanswered {
			return i
		}
	}
	return 0
}

// AnsweredCount returns how many questions have a selection.
func (t *Tracker) AnsweredCount() int {
	n := 0
	for _, a := range t.answers {
		if a != Unanswered {
			n++
		}
	}
	return n
}

// Palette builds the status of every question. With reveal set, answered
// questions also carry whether the choice was correct.
func (t *Tracker) Palette(reveal bool) []PaletteEntry {
	out := make([]PaletteEntry, len(t.answers))
	for i, a := range t.answers {
		e := PaletteEntry{Index: i, Answered: a != Unanswered, Current: i == t.current}
		if reveal && e.Answered {
			ok := a == t.questions[i].CorrectOption
			e.Correct = &ok
		}
		out[i] = e
	}
	return out
}
