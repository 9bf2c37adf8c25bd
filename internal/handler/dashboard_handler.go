package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/examsaathi/backend/internal/middleware"
	"github.com/examsaathi/backend/internal/model"
	"github.com/examsaathi/backend/internal/response"
	"github.com/examsaathi/backend/internal/service"
	"github.com/examsaathi/backend/internal/validator"
)

// DashboardHandler serves the student dashboard.
type DashboardHandler struct {
	dashboardService *service.DashboardService
	log              zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		log:              log.With().Str("component", "dashboard_handler").Logger(),
	}
}

// GetCatalog godoc
// GET /api/catalog
// Returns the exam catalog, class levels and dashboard features.
func (h *DashboardHandler) GetCatalog(c *gin.Context) {
	response.Success(c, http.StatusOK, h.dashboardService.Catalog())
}

// GetDashboard godoc
// GET /api/dashboard?mode=pyq|mock&exam=<id>
// Resolves the selected mode and exam against the user's preferences.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	res, err := h.dashboardService.Resolve(c.Request.Context(), claims.Phone, c.Query("mode"), c.Query("exam"))
	if err != nil {
		h.log.Error().Err(err).Msg("Resolve dashboard failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":        gin.H{"name": claims.Name, "phone": claims.Phone},
		"mode":        res.Mode,
		"exam":        res.Exam,
		"preferences": res.Preferences,
		"invite_link": service.InviteLink(c.GetHeader("Origin"), claims.Phone),
	})
}

// GetPreferences godoc
// GET /api/dashboard/preferences
func (h *DashboardHandler) GetPreferences(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	prefs, err := h.dashboardService.Preferences(c.Request.Context(), claims.Phone)
	if err != nil {
		h.log.Error().Err(err).Msg("Load preferences failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"preferences": prefs})
}

// UpdatePreferences godoc
// PUT /api/dashboard/preferences
// Unknown exams are dropped and an unknown class level is reset.
func (h *DashboardHandler) UpdatePreferences(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.UpdatePreferencesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	prefs, err := h.dashboardService.SavePreferences(c.Request.Context(), claims.Phone, req)
	if err != nil {
		h.log.Error().Err(err).Msg("Save preferences failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"preferences": prefs})
}

// Launch godoc
// POST /api/dashboard/launch
// Completes the year and scope flow and returns where to navigate.
func (h *DashboardHandler) Launch(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.LaunchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	prefs, err := h.dashboardService.Preferences(c.Request.Context(), claims.Phone)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	launch := service.BuildLaunch(req, service.ResolveExam("", prefs).ID)
	response.Success(c, http.StatusOK, launch)
}
