package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/examsaathi/backend/internal/engine"
	"github.com/examsaathi/backend/internal/middleware"
	"github.com/examsaathi/backend/internal/model"
	"github.com/examsaathi/backend/internal/response"
	"github.com/examsaathi/backend/internal/service"
	"github.com/examsaathi/backend/internal/validator"
)

// SessionHandler drives practice and mock test sessions over REST.
type SessionHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/sessions/start/:mode?exam=&scope=&s=&duration=&shuffle=&year=
// Mode is practice (or pyq) or mock. The query string is the navigation
// state produced by the dashboard launch or mock configuration screen.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	mode, ok := engine.ParseMode(c.Param("mode"))
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidSessionMode)
		return
	}

	view, err := h.sessionService.Start(claims.Phone, mode, c.Request.URL.Query())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": view})
}

// GetSession godoc
// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.sessionService.View(claims.Phone, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

// SelectOption godoc
// POST /api/sessions/:id/answers
// Records one answer; a later selection for the same question replaces it.
func (h *SessionHandler) SelectOption(c *gin.Context) {
	var req model.SelectOptionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q, opt := *req.Question, *req.Option
	h.apply(c, func(s *engine.Session) error { return s.SelectOption(q, opt) })
}

// Next godoc
// POST /api/sessions/:id/next
func (h *SessionHandler) Next(c *gin.Context) {
	h.apply(c, (*engine.Session).Next)
}

// Previous godoc
// POST /api/sessions/:id/prev
func (h *SessionHandler) Previous(c *gin.Context) {
	h.apply(c, (*engine.Session).Previous)
}

// Jump godoc
// POST /api/sessions/:id/jump
// Out-of-range indices leave the cursor where it is.
func (h *SessionHandler) Jump(c *gin.Context) {
	var req model.JumpRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	i := *req.Index
	h.apply(c, func(s *engine.Session) error { return s.JumpTo(i) })
}

// FirstUnanswered godoc
// POST /api/sessions/:id/first-unanswered
func (h *SessionHandler) FirstUnanswered(c *gin.Context) {
	h.apply(c, (*engine.Session).JumpToFirstUnanswered)
}

// Pause godoc
// POST /api/sessions/:id/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	h.apply(c, (*engine.Session).Pause)
}

// Resume godoc
// POST /api/sessions/:id/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	h.apply(c, (*engine.Session).Resume)
}

// Submit godoc
// POST /api/sessions/:id/submit
// Returns the result tuple and the results screen address.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	res, err := h.sessionService.Submit(claims.Phone, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"result":   res,
		"redirect": res.URL(),
	})
}

// Leave godoc
// DELETE /api/sessions/:id
// Abandons the session without scoring it.
func (h *SessionHandler) Leave(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.sessionService.Leave(claims.Phone, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

func (h *SessionHandler) apply(c *gin.Context, op func(*engine.Session) error) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	view, err := h.sessionService.Apply(claims.Phone, c.Param("id"), op)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": view})
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	status, code := sessionErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("session_id", c.Param("id")).Msg("Session operation failed")
	}
	response.Fail(c, status, code)
}

// sessionErrorStatus maps engine and registry errors onto HTTP responses.
func sessionErrorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, engine.ErrClosed):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, engine.ErrSubmitted):
		return http.StatusConflict, response.ErrSessionSubmitted
	case errors.Is(err, engine.ErrQuestionRange):
		return http.StatusBadRequest, response.ErrQuestionOutOfRange
	case errors.Is(err, engine.ErrOptionRange):
		return http.StatusBadRequest, response.ErrOptionOutOfRange
	case errors.Is(err, engine.ErrPauseUnsupported):
		return http.StatusBadRequest, response.ErrPauseNotSupported
	case errors.Is(err, service.ErrTooManySessions):
		return http.StatusTooManyRequests, response.ErrTooManySessions
	}
	return http.StatusInternalServerError, response.ErrInternal
}
