package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/examsaathi/backend/internal/config"
	"github.com/examsaathi/backend/internal/handler"
	"github.com/examsaathi/backend/internal/middleware"
	"github.com/examsaathi/backend/internal/response"
)

// Authenticator is what the route guards need from the auth service.
type Authenticator interface {
	middleware.TokenValidator
	middleware.LoginSessionChecker
}

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Dashboard *handler.DashboardHandler
	Session   *handler.SessionHandler
	Result    *handler.ResultHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// authLimiter may be nil to disable rate limiting on the auth routes.
func SetupRouter(
	auth Authenticator,
	handlers *Handlers,
	cfg *config.Config,
	authLimiter *middleware.RateLimiter,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	public := router.Group("/api")
	{
		public.GET("/catalog", middleware.CacheControl(3600), handlers.Dashboard.GetCatalog)
		public.GET("/results", handlers.Result.GetResult)
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authAPI := router.Group("/api/auth")
	if authLimiter != nil {
		authAPI.Use(authLimiter.Middleware())
	}
	{
		authAPI.POST("/start", handlers.Auth.StartOTP)
		authAPI.POST("/verify", handlers.Auth.VerifyOTP)

		authAPI.GET("/me", middleware.RequireUserJWT(auth), middleware.CheckSingleDeviceSession(auth), handlers.Auth.Me)
		authAPI.POST("/logout", middleware.RequireUserJWT(auth), middleware.CheckSingleDeviceSession(auth), handlers.Auth.Logout)
	}

	// ─── 2. User Group (JWT + Single Device) ───────────────────────────
	userAPI := router.Group("/api")
	userAPI.Use(
		middleware.RequireUserJWT(auth),
		middleware.CheckSingleDeviceSession(auth),
	)
	{
		userAPI.GET("/dashboard", handlers.Dashboard.GetDashboard)
		userAPI.GET("/dashboard/preferences", handlers.Dashboard.GetPreferences)
		userAPI.PUT("/dashboard/preferences", handlers.Dashboard.UpdatePreferences)
		userAPI.POST("/dashboard/launch", handlers.Dashboard.Launch)
	}

	// ─── 3. Session Group (JWT + Single Device, never cached) ──────────
	sessions := userAPI.Group("/sessions")
	sessions.Use(middleware.NoStore())
	{
		sessions.POST("/start/:mode", handlers.Session.StartSession)
		sessions.GET("/:id", handlers.Session.GetSession)
		sessions.DELETE("/:id", handlers.Session.Leave)
		sessions.POST("/:id/answers", handlers.Session.SelectOption)
		sessions.POST("/:id/next", handlers.Session.Next)
		sessions.POST("/:id/prev", handlers.Session.Previous)
		sessions.POST("/:id/jump", handlers.Session.Jump)
		sessions.POST("/:id/first-unanswered", handlers.Session.FirstUnanswered)
		sessions.POST("/:id/pause", handlers.Session.Pause)
		sessions.POST("/:id/resume", handlers.Session.Resume)
		sessions.POST("/:id/submit", handlers.Session.Submit)
	}

	// ─── 4. WebSocket Group (WS Auth) ──────────────────────────────────
	ws := router.Group("/ws")
	ws.Use(middleware.RequireUserWSAuth(auth), middleware.CheckSingleDeviceSession(auth))
	{
		ws.GET("/sessions/:id/stream", handlers.WS.SessionStream)
	}

	return router
}
