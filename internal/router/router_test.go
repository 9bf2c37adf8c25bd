package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/examsaathi/backend/internal/config"
	"github.com/examsaathi/backend/internal/handler"
	"github.com/examsaathi/backend/internal/kvstore"
	"github.com/examsaathi/backend/internal/middleware"
	"github.com/examsaathi/backend/internal/model"
	"github.com/examsaathi/backend/internal/questionbank"
	"github.com/examsaathi/backend/internal/service"
	"github.com/examsaathi/backend/internal/validator"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (m *memoryUsers) UpsertOnLogin(_ context.Context, name, phone string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[phone]
	if !ok {
		u = &model.User{ID: int64(len(m.users) + 1), Phone: phone, CreatedAt: time.Now()}
		m.users[phone] = u
	}
	u.Name = name
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[phone]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

type testApp struct {
	router   *gin.Engine
	auth     *service.AuthService
	sessions *service.SessionService
	bank     *questionbank.Bank
}

func newTestApp(t *testing.T, limiter *middleware.RateLimiter) *testApp {
	t.Helper()
	validator.Setup()

	cfg := &config.Config{
		GinMode:        gin.TestMode,
		JWTSecret:      "test-secret",
		JWTExpiry:      time.Hour,
		BcryptCost:     bcrypt.MinCost,
		OTPTTL:         5 * time.Minute,
		OTPMaxAttempts: 3,
		OTPDemoMode:    true,
	}
	log := zerolog.Nop()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store, err := kvstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bank := questionbank.Default()
	auth := service.NewAuthService(cfg, rdb, &memoryUsers{users: map[string]*model.User{}}, log)
	sessions := service.NewSessionService(questionbank.NewBuilder(bank, nil), log,
		service.WithSessionTickInterval(10*time.Millisecond))
	t.Cleanup(sessions.CloseAll)

	handlers := &Handlers{
		Auth:      handler.NewAuthHandler(auth, cfg.OTPDemoMode, log),
		Dashboard: handler.NewDashboardHandler(service.NewDashboardService(store, log), log),
		Session:   handler.NewSessionHandler(sessions, log),
		Result:    handler.NewResultHandler(),
		WS:        handler.NewWSHandler(sessions, log, nil),
	}

	return &testApp{
		router:   SetupRouter(auth, handlers, cfg, limiter),
		auth:     auth,
		sessions: sessions,
		bank:     bank,
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func (a *testApp) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (a *testApp) login(t *testing.T, name, phone string) string {
	t.Helper()
	w, env := a.do(t, http.MethodPost, "/api/auth/start", model.StartOTPRequest{Name: name, Phone: phone}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var start struct {
		DemoOTP string `json:"demo_otp"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &start))
	require.Len(t, start.DemoOTP, 6)

	w, env = a.do(t, http.MethodPost, "/api/auth/verify", model.VerifyOTPRequest{Phone: phone, OTP: start.DemoOTP}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var verify struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &verify))
	require.NotEmpty(t, verify.Token)
	assert.Equal(t, name, verify.User.Name)
	return verify.Token
}

type sessionBody struct {
	Session struct {
		ID           string `json:"id"`
		State        string `json:"state"`
		Total        int    `json:"total"`
		Answered     int    `json:"answered"`
		CurrentIndex int    `json:"current_index"`
		Question     *struct {
			Index    int   `json:"index"`
			Selected *int  `json:"selected"`
			Correct  *bool `json:"correct"`
		} `json:"question"`
		Timer struct {
			Kind    string `json:"kind"`
			Seconds int    `json:"seconds"`
		} `json:"timer"`
	} `json:"session"`
}

func decodeSession(t *testing.T, env envelope) sessionBody {
	t.Helper()
	var b sessionBody
	require.NoError(t, json.Unmarshal(env.Data, &b))
	return b
}

const phone = "9876543210"

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)
	w, _ := app.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCatalogIsPublicAndCacheable(t *testing.T) {
	app := newTestApp(t, nil)
	w, env := app.do(t, http.MethodGet, "/api/catalog", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))

	var cat service.Catalog
	require.NoError(t, json.Unmarshal(env.Data, &cat))
	assert.Len(t, cat.Exams, len(model.Exams))
	assert.Equal(t, []int{1, 3, 5, 10}, cat.Years)
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t, nil)

	w, env := app.do(t, http.MethodPost, "/api/auth/start", map[string]string{"name": "A", "phone": "12"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "phone")

	token := app.login(t, "Asha", phone)

	w, env = app.do(t, http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"phone":"9876543210"`)

	w, _ = app.do(t, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = app.do(t, http.MethodPost, "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = app.do(t, http.MethodGet, "/api/dashboard", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SESSION_INVALIDATED", env.Error.Code)
}

func TestWrongOTP(t *testing.T) {
	app := newTestApp(t, nil)

	w, _ := app.do(t, http.MethodPost, "/api/auth/verify", model.VerifyOTPRequest{Phone: phone, OTP: "123456"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	code, err := app.auth.StartOTP(context.Background(), "Asha", phone)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	var last *httptest.ResponseRecorder
	var env envelope
	for range 3 {
		last, env = app.do(t, http.MethodPost, "/api/auth/verify", model.VerifyOTPRequest{Phone: phone, OTP: wrong}, "")
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "OTP_ATTEMPTS_EXCEEDED", env.Error.Code)
}

func TestSecondLoginInvalidatesFirst(t *testing.T) {
	app := newTestApp(t, nil)
	first := app.login(t, "Asha", phone)
	second := app.login(t, "Asha", phone)

	w, _ := app.do(t, http.MethodGet, "/api/dashboard", nil, first)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = app.do(t, http.MethodGet, "/api/dashboard", nil, second)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app := newTestApp(t, middleware.NewRateLimiter(ctx, 2, time.Minute))

	body := model.StartOTPRequest{Name: "Asha", Phone: phone}
	for range 2 {
		w, _ := app.do(t, http.MethodPost, "/api/auth/start", body, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, env := app.do(t, http.MethodPost, "/api/auth/start", body, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)
}

func TestDashboardPreferencesAndLaunch(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.login(t, "Asha", phone)

	w, env := app.do(t, http.MethodGet, "/api/dashboard?mode=mock&exam=viteee", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var dash struct {
		Mode       string     `json:"mode"`
		Exam       model.Exam `json:"exam"`
		InviteLink string     `json:"invite_link"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, "mock", dash.Mode)
	assert.Equal(t, "viteee", dash.Exam.ID)
	assert.Equal(t, "/?ref=9876543210", dash.InviteLink)

	w, env = app.do(t, http.MethodPut, "/api/dashboard/preferences",
		model.UpdatePreferencesRequest{ClassLevel: "dropper", PreferredExams: []string{"bitsat", "nope", "bitsat"}}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved struct {
		Preferences model.Preferences `json:"preferences"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, model.Preferences{ClassLevel: "dropper", PreferredExams: []string{"bitsat"}}, saved.Preferences)

	w, env = app.do(t, http.MethodGet, "/api/dashboard?exam=unknown", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, "pyq", dash.Mode)
	assert.Equal(t, "bitsat", dash.Exam.ID)

	w, env = app.do(t, http.MethodPost, "/api/dashboard/launch",
		model.LaunchRequest{Flow: "mock", Years: 5, Scope: "physics"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var launch service.Launch
	require.NoError(t, json.Unmarshal(env.Data, &launch))
	assert.Equal(t, "/mock/config?exam=bitsat&scope=physics&years=5", launch.URL)

	w, env = app.do(t, http.MethodPost, "/api/dashboard/launch",
		model.LaunchRequest{Flow: "pyq", Exam: "nope", Years: 5, Scope: "physics"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Fields, "exam")
}

func TestPracticeSessionOverREST(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.login(t, "Asha", phone)

	w, env := app.do(t, http.MethodPost, "/api/sessions/start/practice?exam=jee-main&scope=physics&shuffle=off", nil, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	s := decodeSession(t, env)
	require.Equal(t, 3, s.Session.Total)
	assert.Equal(t, "stopwatch", s.Session.Timer.Kind)
	id := s.Session.ID

	correct := app.bank.Questions(questionbank.Physics)[0].CorrectOption
	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/answers", map[string]int{"question": 0, "option": correct}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s = decodeSession(t, env)
	assert.Equal(t, 1, s.Session.Answered)
	require.NotNil(t, s.Session.Question)
	require.NotNil(t, s.Session.Question.Correct)
	assert.True(t, *s.Session.Question.Correct)

	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/answers", map[string]int{"question": 7, "option": 0}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "QUESTION_OUT_OF_RANGE", env.Error.Code)

	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/answers", map[string]int{"option": 0}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/next", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeSession(t, env).Session.CurrentIndex)

	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/jump", map[string]int{"index": 2}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decodeSession(t, env).Session.CurrentIndex)

	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/first-unanswered", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeSession(t, env).Session.CurrentIndex)

	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/prev", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeSession(t, env).Session.CurrentIndex)

	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/pause", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "PAUSE_NOT_SUPPORTED", env.Error.Code)

	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/submit", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var submitted struct {
		Result struct {
			Exam  string `json:"exam"`
			Score int    `json:"score"`
			Total int    `json:"total"`
		} `json:"result"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, 1, submitted.Result.Score)
	assert.Equal(t, 3, submitted.Result.Total)
	assert.Equal(t, "/mock/result?exam=jee-main&score=1&total=3", submitted.Redirect)

	// Submitting again reports the same result.
	w, _ = app.do(t, http.MethodPost, "/api/sessions/"+id+"/submit", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = app.do(t, http.MethodPost, "/api/sessions/"+id+"/next", nil, token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SESSION_SUBMITTED", env.Error.Code)

	w, _ = app.do(t, http.MethodDelete, "/api/sessions/"+id, nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = app.do(t, http.MethodGet, "/api/sessions/"+id, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", env.Error.Code)
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	app := newTestApp(t, nil)
	asha := app.login(t, "Asha", phone)
	ravi := app.login(t, "Ravi", "9123456780")

	w, env := app.do(t, http.MethodPost, "/api/sessions/start/mock", nil, asha)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeSession(t, env).Session.ID

	w, _ = app.do(t, http.MethodGet, "/api/sessions/"+id, nil, ravi)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartSessionRejectsUnknownMode(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.login(t, "Asha", phone)

	w, env := app.do(t, http.MethodPost, "/api/sessions/start/exam", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SESSION_MODE", env.Error.Code)
}

func TestOpenSessionCap(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.login(t, "Asha", phone)

	for range service.MaxOpenSessionsPerUser {
		w, _ := app.do(t, http.MethodPost, "/api/sessions/start/pyq", nil, token)
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w, env := app.do(t, http.MethodPost, "/api/sessions/start/pyq", nil, token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "TOO_MANY_SESSIONS", env.Error.Code)
}

func TestResultScreen(t *testing.T) {
	app := newTestApp(t, nil)

	w, env := app.do(t, http.MethodGet, "/api/results?exam=bitsat&score=3&total=9", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		ExamLabel string  `json:"exam_label"`
		Accuracy  float64 `json:"accuracy"`
		Retry     string  `json:"retry"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "BITSAT", res.ExamLabel)
	assert.InDelta(t, 33.33, res.Accuracy, 0.01)
	assert.Equal(t, "/mock/config?exam=bitsat", res.Retry)

	w, env = app.do(t, http.MethodGet, "/api/results?score=abc", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, float64(0), res.Accuracy)
}

func TestSessionStream(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.login(t, "Asha", phone)

	w, env := app.do(t, http.MethodPost, "/api/sessions/start/mock?duration=1&shuffle=off", nil, token)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeSession(t, env).Session.ID

	srv := httptest.NewServer(app.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + id + "/stream?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() map[string]any {
		t.Helper()
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	first := read()
	assert.Equal(t, "state", first["event"])

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"action": "jump"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"action": "select", "question": 0, "option": 0}))
	require.NoError(t, conn.WriteJSON(map[string]any{"action": "submit"}))

	seen := map[string]int{}
	for {
		msg := read()
		ev, _ := msg["event"].(string)
		seen[ev]++
		if ev == "error" {
			assert.Equal(t, "VALIDATION_ERROR", msg["code"])
		}
		if ev == "submitted" {
			assert.Equal(t, "manual", msg["reason"])
			assert.True(t, strings.HasPrefix(msg["redirect"].(string), "/mock/result?exam=jee-main"))
			break
		}
	}
	assert.Equal(t, 1, seen["pong"])
	assert.Equal(t, 1, seen["error"])
	assert.GreaterOrEqual(t, seen["state"], 1)

	// The server closes the stream once the session is submitted.
	var msg map[string]any
	err = conn.ReadJSON(&msg)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err.Error())
}

func TestSessionStreamRequiresToken(t *testing.T) {
	app := newTestApp(t, nil)
	w, env := app.do(t, http.MethodGet, "/ws/sessions/x/stream", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_REQUIRED", env.Error.Code)
}

func TestSessionStreamUnknownSession(t *testing.T) {
	app := newTestApp(t, nil)
	token := app.login(t, "Asha", phone)

	w, env := app.do(t, http.MethodGet, "/ws/sessions/missing/stream?token="+url.QueryEscape(token), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", env.Error.Code)
}
