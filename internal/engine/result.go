package engine

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/examsaathi/backend/internal/model"
)

// ResultPath is the screen that displays a submitted score.
const ResultPath = "/mock/result"

// Result is the tuple handed to the results screen.
type Result struct {
	ExamID string `json:"exam"`
	Score  int    `json:"score"`
	Total  int    `json:"total"`
}

// Params encodes the result as navigation parameters.
func (r Result) Params() url.Values {
	v := url.Values{}
	v.Set(ParamExam, r.ExamID)
	v.Set(ParamScore, strconv.Itoa(r.Score))
	v.Set(ParamTotal, strconv.Itoa(r.Total))
	return v
}

// URL is the results screen address carrying this result.
func (r Result) URL() string {
	return ResultPath + "?" + r.Params().Encode()
}

// Accuracy is the score as a percentage of total, 0 for an empty paper.
func (r Result) Accuracy() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Score) / float64(r.Total) * 100
}

// ParseResult reads a result back from navigation parameters for the
// read-only results display. Malformed numbers read as zero and the score
// is clamped into [0, total].
func ParseResult(params url.Values) Result {
	r := Result{
		ExamID: strings.TrimSpace(params.Get(ParamExam)),
		Score:  atoiOrZero(params.Get(ParamScore)),
		Total:  atoiOrZero(params.Get(ParamTotal)),
	}
	if r.ExamID == "" {
		r.ExamID = model.DefaultExamID
	}
	if r.Total < 0 {
		r.Total = 0
	}
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > r.Total {
		r.Score = r.Total
	}
	return r
}

func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
