package questionbank

import "strings"

// Subject identifies one section of the question bank.
type Subject string

const (
	Physics   Subject = "physics"
	Chemistry Subject = "chemistry"
	Math      Subject = "math"
)

// Subjects is the fixed concatenation order for mixed papers.
var Subjects = []Subject{Physics, Chemistry, Math}

// ParseSubject normalizes a subject key. "maths" is accepted as an alias
// because the mock configuration screen uses it for its section flags.
func ParseSubject(raw string) (Subject, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "physics":
		return Physics, true
	case "chemistry":
		return Chemistry, true
	case "math", "maths":
		return Math, true
	}
	return "", false
}

// Question is a single multiple-choice item. Immutable once loaded.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
	Explanation   string   `json:"explanation"`
}

// Bank maps subjects to ordered question slices.
// A Bank is read-only after construction and safe for concurrent use.
type Bank struct {
	subjects map[Subject][]Question
}

// New builds a Bank from the given slices. The input is copied.
func New(subjects map[Subject][]Question) *Bank {
	b := &Bank{subjects: make(map[Subject][]Question, len(subjects))}
	for s, qs := range subjects {
		b.subjects[s] = cloneQuestions(qs)
	}
	return b
}

// Questions returns an order-preserving copy of one subject's slice.
// Unknown subjects yield an empty slice.
func (b *Bank) Questions(s Subject) []Question {
	return cloneQuestions(b.subjects[s])
}

// Len returns the number of questions stored for s.
func (b *Bank) Len(s Subject) int {
	return len(b.subjects[s])
}

// Total returns the number of questions across every known subject.
func (b *Bank) Total() int {
	n := 0
	for _, s := range Subjects {
		n += len(b.subjects[s])
	}
	return n
}

func cloneQuestions(qs []Question) []Question {
	out := make([]Question, len(qs))
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}

// Default returns the reference bank used by the server and the CLI.
func Default() *Bank {
	return New(map[Subject][]Question{
		Physics: {
			{
				Text:          "A body starts from rest with acceleration 2 m/s^2. Its speed after 5s?",
				Options:       []string{"2 m/s", "5 m/s", "10 m/s", "20 m/s"},
				CorrectOption: 2,
				Explanation:   "v = u + at = 0 + 2 × 5 = 10 m/s.",
			},
			{
				Text:          "Unit of power?",
				Options:       []string{"N", "N·m", "J/s", "kg·m/s"},
				CorrectOption: 2,
				Explanation:   "Power is work per unit time, so joule per second (watt).",
			},
			{
				Text:          "Light year measures?",
				Options:       []string{"Time", "Distance", "Mass", "Energy"},
				CorrectOption: 1,
				Explanation:   "It is the distance light travels in one year.",
			},
		},
		Chemistry: {
			{
				Text:          "pH of neutral water at 25°C is?",
				Options:       []string{"0", "5", "7", "14"},
				CorrectOption: 2,
				Explanation:   "[H+] = 10^-7 mol/L at 25°C, so pH = 7.",
			},
			{
				Text:          "Avogadro number is ~?",
				Options:       []string{"6.022×10^23", "3.14", "9.8", "1.6×10^-19"},
				CorrectOption: 0,
				Explanation:   "One mole holds 6.022×10^23 entities.",
			},
			{
				Text:          "Which is a strong acid?",
				Options:       []string{"HCl", "CH3COOH", "NH3", "H2O"},
				CorrectOption: 0,
				Explanation:   "HCl dissociates completely in water.",
			},
		},
		Math: {
			{
				Text:          "Derivative of sin x?",
				Options:       []string{"cos x", "-cos x", "sin x", "-sin x"},
				CorrectOption: 0,
				Explanation:   "d/dx sin x = cos x.",
			},
			{
				Text:          "∫ x dx = ?",
				Options:       []string{"x^2/2 + C", "x^2 + C", "2x + C", "ln x + C"},
				CorrectOption: 0,
				Explanation:   "Power rule: ∫ x^n dx = x^(n+1)/(n+1) + C.",
			},
			{
				Text:          "If a+b=10 and ab=16, then a,b are roots of?",
				Options:       []string{"x^2-10x+16", "x^2+10x+16", "x^2-16x+10", "x^2+16x+10"},
				CorrectOption: 0,
				Explanation:   "x^2 - (a+b)x + ab = 0.",
			},
		},
	})
}
