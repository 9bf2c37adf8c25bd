package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/examsaathi/backend/internal/config"
	"github.com/examsaathi/backend/internal/kvstore"
	"github.com/examsaathi/backend/internal/model"
)

// Dashboard flows.
const (
	FlowPYQ  = "pyq"
	FlowMock = "mock"
)

// Launch destinations.
const (
	PracticePath   = "/practice"
	MockConfigPath = "/mock/config"
)

// Feature is one dashboard entry point. Locked features are shown but not
// yet available.
type Feature struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Locked bool   `json:"locked"`
}

var dashboardFeatures = []Feature{
	{ID: "pyqs", Label: "PYQs"},
	{ID: "mocks", Label: "Mock Tests"},
	{ID: "mentor", Label: "Mentor"},
	{ID: "predictor", Label: "Predictor", Locked: true},
	{ID: "counsel", Label: "Counseling", Locked: true},
}

// Catalog is the static content of the dashboard.
type Catalog struct {
	Exams       []model.Exam       `json:"exams"`
	ClassLevels []model.ClassLevel `json:"class_levels"`
	Features    []Feature          `json:"features"`
	Years       []int              `json:"years"`
}

// Resolution is the dashboard state after reading the entry parameters.
type Resolution struct {
	Mode        string            `json:"mode"`
	Exam        model.Exam        `json:"exam"`
	Preferences model.Preferences `json:"preferences"`
}

// Launch is the navigation target produced by the year/scope flow.
type Launch struct {
	Path   string     `json:"path"`
	Params url.Values `json:"params"`
	URL    string     `json:"url"`
}

// LaunchYears are the selectable look-back windows.
var LaunchYears = []int{1, 3, 5, 10}

// DashboardService backs the single parameterized dashboard: exam catalog,
// per-user preferences and launch navigation.
type DashboardService struct {
	store kvstore.Store
	log   zerolog.Logger
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(store kvstore.Store, log zerolog.Logger) *DashboardService {
	return &DashboardService{
		store: store,
		log:   log.With().Str("component", "dashboard").Logger(),
	}
}

// Catalog returns the exam catalog, class levels and feature list.
func (s *DashboardService) Catalog() Catalog {
	return Catalog{
		Exams:       append([]model.Exam(nil), model.Exams...),
		ClassLevels: append([]model.ClassLevel(nil), model.ClassLevels...),
		Features:    append([]Feature(nil), dashboardFeatures...),
		Years:       append([]int(nil), LaunchYears...),
	}
}

// Preferences loads the user's preferences, falling back to the defaults
// when none are stored or the stored value is unreadable.
func (s *DashboardService) Preferences(ctx context.Context, phone string) (model.Preferences, error) {
	key := config.CacheKey.PrefsKey(phone)

	var prefs model.Preferences
	ok, err := kvstore.GetJSON(ctx, s.store, key, &prefs)
	if err != nil {
		raw, found, getErr := s.store.Get(ctx, key)
		if getErr != nil {
			return model.Preferences{}, fmt.Errorf("load preferences: %w", getErr)
		}
		if found {
			s.log.Warn().Err(err).Int("bytes", len(raw)).Msg("Ignoring unreadable preferences")
		}
		return model.DefaultPreferences(), nil
	}
	if !ok {
		return model.DefaultPreferences(), nil
	}
	return NormalizePreferences(prefs), nil
}

// SavePreferences merges req into the stored preferences and persists the
// normalized result.
func (s *DashboardService) SavePreferences(ctx context.Context, phone string, req model.UpdatePreferencesRequest) (model.Preferences, error) {
	prefs, err := s.Preferences(ctx, phone)
	if err != nil {
		return model.Preferences{}, err
	}
	if req.ClassLevel != "" {
		prefs.ClassLevel = req.ClassLevel
	}
	if req.PreferredExams != nil {
		prefs.PreferredExams = req.PreferredExams
	}
	prefs = NormalizePreferences(prefs)

	if err := kvstore.SetJSON(ctx, s.store, config.CacheKey.PrefsKey(phone), prefs); err != nil {
		return model.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return prefs, nil
}

// NormalizePreferences drops unknown and duplicate exam ids and resets an
// unknown class level to the default.
func NormalizePreferences(p model.Preferences) model.Preferences {
	def := model.DefaultPreferences()

	out := model.Preferences{ClassLevel: strings.TrimSpace(p.ClassLevel), PreferredExams: []string{}}
	if !model.IsClassLevel(out.ClassLevel) {
		out.ClassLevel = def.ClassLevel
	}

	seen := make(map[string]bool, len(p.PreferredExams))
	for _, id := range p.PreferredExams {
		id = strings.ToLower(strings.TrimSpace(id))
		if _, ok := model.FindExam(id); !ok || seen[id] {
			continue
		}
		seen[id] = true
		out.PreferredExams = append(out.PreferredExams, id)
	}
	return out
}

// Resolve reads the dashboard entry parameters. mode is pyq or mock and
// defaults to pyq. An exam outside the catalog is replaced by the first
// preferred exam, then by the first catalog entry.
func (s *DashboardService) Resolve(ctx context.Context, phone, mode, exam string) (Resolution, error) {
	prefs, err := s.Preferences(ctx, phone)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Mode:        ResolveMode(mode),
		Exam:        ResolveExam(exam, prefs),
		Preferences: prefs,
	}, nil
}

// ResolveMode normalizes the dashboard mode.
func ResolveMode(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), FlowMock) {
		return FlowMock
	}
	return FlowPYQ
}

// ResolveExam picks the selected exam for the dashboard.
func ResolveExam(raw string, prefs model.Preferences) model.Exam {
	if e, ok := model.FindExam(strings.ToLower(strings.TrimSpace(raw))); ok {
		return e
	}
	for _, id := range prefs.PreferredExams {
		if e, ok := model.FindExam(id); ok {
			return e
		}
	}
	return model.Exams[0]
}

// BuildLaunch turns a completed year/scope flow into a navigation target.
// An empty exam falls back to fallbackExam.
func BuildLaunch(req model.LaunchRequest, fallbackExam string) Launch {
	exam := req.Exam
	if exam == "" {
		exam = fallbackExam
	}
	if _, ok := model.FindExam(exam); !ok {
		exam = model.DefaultExamID
	}

	params := url.Values{}
	params.Set("exam", exam)
	params.Set("years", strconv.Itoa(req.Years))
	params.Set("scope", req.Scope)

	path := PracticePath
	if req.Flow == FlowMock {
		path = MockConfigPath
	}
	return Launch{Path: path, Params: params, URL: path + "?" + params.Encode()}
}

// InviteLink returns the referral link for phone, relative to origin.
func InviteLink(origin, phone string) string {
	ref := phone
	if ref == "" {
		ref = "friend"
	}
	return strings.TrimRight(origin, "/") + "/?ref=" + url.QueryEscape(ref)
}
