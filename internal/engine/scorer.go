package engine

import "github.com/examsaathi/backend/internal/questionbank"

// Breakdown splits a submission into correct, incorrect and unanswered.
type Breakdown struct {
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
	Total      int `json:"total"`
}

// Score counts answers[i] == questions[i].CorrectOption. There is no partial
// credit and no negative marking. Missing trailing answers count as
// unanswered.
func Score(questions []questionbank.Question, answers []int) Breakdown {
	b := Breakdown{Total: len(questions)}
	for i, q := range questions {
		a := Unanswered
		if i < len(answers) {
			a = answers[i]
		}
		switch {
		case a == Unanswered:
			b.Unanswered++
		case a == q.CorrectOption:
			b.Correct++
		default:
			b.Incorrect++
		}
	}
	return b
}
