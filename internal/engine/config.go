package engine

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/examsaathi/backend/internal/model"
	"github.com/examsaathi/backend/internal/questionbank"
)

// Mode selects the session variant.
type Mode string

const (
	// ModePractice is untimed PYQ practice with a stopwatch.
	ModePractice Mode = "practice"
	// ModeMock is a timed paper with a hard countdown.
	ModeMock Mode = "mock"
)

// ParseMode accepts "practice", "pyq" and "mock", case-insensitively.
func ParseMode(raw string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "practice", "pyq":
		return ModePractice, true
	case "mock":
		return ModeMock, true
	}
	return "", false
}

const (
	// ScopeFull mixes every subject in the fixed order.
	ScopeFull = "full"
	// ScopeSections is a subset of two or more subjects chosen through the
	// mock configuration section flags.
	ScopeSections = "sections"

	DefaultDurationMinutes = 180
	// MaxDurationMinutes caps a mock countdown at one day. Longer requests
	// are clamped to it.
	MaxDurationMinutes = 24 * 60
)

// Navigation parameter names.
const (
	ParamExam     = "exam"
	ParamScope    = "scope"
	ParamSections = "s"
	ParamDuration = "duration"
	ParamShuffle  = "shuffle"
	ParamYear     = "year"
	ParamScore    = "score"
	ParamTotal    = "total"
)

// Config is the normalized configuration of one session.
type Config struct {
	ExamID          string                 `json:"exam"`
	Mode            Mode                   `json:"mode"`
	Scope           string                 `json:"scope"`
	Subjects        []questionbank.Subject `json:"subjects"`
	DurationMinutes int                    `json:"duration_minutes,omitempty"`
	Shuffle         bool                   `json:"shuffle"`
	Year            string                 `json:"year,omitempty"`
}

// ParseConfig resolves a Config from navigation parameters. It never fails:
// missing or unrecognized values fall back to the broadest defaults.
func ParseConfig(mode Mode, params url.Values) Config {
	if mode != ModeMock {
		mode = ModePractice
	}

	cfg := Config{
		ExamID:  parseExam(params.Get(ParamExam)),
		Mode:    mode,
		Shuffle: parseShuffle(params.Get(ParamShuffle)),
		Year:    strings.TrimSpace(params.Get(ParamYear)),
	}
	cfg.Scope, cfg.Subjects = parseScope(params.Get(ParamScope), params.Get(ParamSections))

	if mode == ModeMock {
		cfg.DurationMinutes = parseDuration(params.Get(ParamDuration))
	}
	return cfg
}

// Duration returns the countdown length for mock sessions.
func (c Config) Duration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}

// Params serializes the configuration into navigation parameters such that
// ParseConfig(c.Mode, c.Params()) reproduces c.
func (c Config) Params() url.Values {
	v := url.Values{}
	v.Set(ParamExam, c.ExamID)
	if c.Scope == ScopeSections {
		names := make([]string, len(c.Subjects))
		for i, s := range c.Subjects {
			names[i] = string(s)
		}
		v.Set(ParamSections, strings.Join(names, ","))
	} else {
		v.Set(ParamScope, c.Scope)
	}
	if c.Shuffle {
		v.Set(ParamShuffle, "on")
	} else {
		v.Set(ParamShuffle, "off")
	}
	if c.Mode == ModeMock {
		v.Set(ParamDuration, strconv.Itoa(c.DurationMinutes))
	}
	if c.Year != "" {
		v.Set(ParamYear, c.Year)
	}
	return v
}

func parseExam(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := model.FindExam(id); ok {
		return id
	}
	return model.DefaultExamID
}

func parseShuffle(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "off", "false", "0", "no":
		return false
	}
	return true
}

func parseDuration(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultDurationMinutes
	}
	return min(n, MaxDurationMinutes)
}

// parseScope resolves the subject list. An explicit scope wins over section
// flags; anything that is not a single recognized subject means full.
func parseScope(rawScope, rawSections string) (string, []questionbank.Subject) {
	scope := strings.ToLower(strings.TrimSpace(rawScope))
	if scope != "" {
		if s, ok := questionbank.ParseSubject(scope); ok {
			return string(s), []questionbank.Subject{s}
		}
		return ScopeFull, fullSubjects()
	}

	if strings.TrimSpace(rawSections) == "" {
		return ScopeFull, fullSubjects()
	}

	picked := make(map[questionbank.Subject]bool)
	for _, part := range strings.Split(rawSections, ",") {
		if s, ok := questionbank.ParseSubject(part); ok {
			picked[s] = true
		}
	}

	var subjects []questionbank.Subject
	for _, s := range questionbank.Subjects {
		if picked[s] {
			subjects = append(subjects, s)
		}
	}

	switch len(subjects) {
	case 0, len(questionbank.Subjects):
		return ScopeFull, fullSubjects()
	case 1:
		return string(subjects[0]), subjects
	default:
		return ScopeSections, subjects
	}
}

func fullSubjects() []questionbank.Subject {
	return append([]questionbank.Subject(nil), questionbank.Subjects...)
}
