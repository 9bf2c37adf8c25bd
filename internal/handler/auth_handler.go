package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/examsaathi/backend/internal/middleware"
	"github.com/examsaathi/backend/internal/model"
	"github.com/examsaathi/backend/internal/response"
	"github.com/examsaathi/backend/internal/service"
	"github.com/examsaathi/backend/internal/validator"
)

// AuthHandler handles phone OTP sign-in.
type AuthHandler struct {
	authService *service.AuthService
	demoMode    bool
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler. In demo mode the generated
// code is returned to the caller.
func NewAuthHandler(authService *service.AuthService, demoMode bool, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		demoMode:    demoMode,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// StartOTP godoc
// POST /api/auth/start
// Issues a six digit code for the phone number.
func (h *AuthHandler) StartOTP(c *gin.Context) {
	var req model.StartOTPRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	code, err := h.authService.StartOTP(c.Request.Context(), req.Name, req.Phone)
	if err != nil {
		h.log.Error().Err(err).Msg("Start OTP failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	data := gin.H{"sent": true}
	if h.demoMode {
		data["demo_otp"] = code
	}
	response.Success(c, http.StatusOK, data)
}

// VerifyOTP godoc
// POST /api/auth/verify
// Checks the code and returns a JWT with the user record.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req model.VerifyOTPRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, token, err := h.authService.VerifyOTP(c.Request.Context(), req.Phone, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOTPInvalid):
			response.Fail(c, http.StatusUnauthorized, response.ErrOTPInvalid)
		case errors.Is(err, service.ErrOTPExpired):
			response.Fail(c, http.StatusUnauthorized, response.ErrOTPExpired)
		case errors.Is(err, service.ErrOTPLocked):
			response.Fail(c, http.StatusTooManyRequests, response.ErrOTPLocked)
		default:
			h.log.Error().Err(err).Msg("Verify OTP failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Me godoc
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	user, err := h.authService.Me(c.Request.Context(), claims.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// Logout godoc
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.Phone); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}
