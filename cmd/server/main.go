package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/examsaathi/backend/internal/config"
	"github.com/examsaathi/backend/internal/database"
	"github.com/examsaathi/backend/internal/handler"
	"github.com/examsaathi/backend/internal/kvstore"
	"github.com/examsaathi/backend/internal/logger"
	"github.com/examsaathi/backend/internal/middleware"
	"github.com/examsaathi/backend/internal/questionbank"
	"github.com/examsaathi/backend/internal/repository"
	"github.com/examsaathi/backend/internal/router"
	"github.com/examsaathi/backend/internal/service"
	"github.com/examsaathi/backend/internal/validator"
	"github.com/examsaathi/backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("kv_backend", cfg.KVBackend).
		Bool("otp_demo", cfg.OTPDemoMode).
		Msg("Starting ExamSaathi Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	kvRepo := repository.NewKVRepository(pool)

	var prefsStore kvstore.Store = kvstore.NewPostgresStore(kvRepo)
	if cfg.KVBackend == config.KVBackendRedis {
		prefsStore = kvstore.NewRedisStore(rdb)
	}

	// ─── Initialize Services ──────────────────────────────────────────
	builder := questionbank.NewBuilder(questionbank.Default(), nil)

	authService := service.NewAuthService(cfg, rdb, userRepo, log)
	dashboardService := service.NewDashboardService(prefsStore, log)
	sessionService := service.NewSessionService(builder, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService, cfg.OTPDemoMode, log),
		Dashboard: handler.NewDashboardHandler(dashboardService, log),
		Session:   handler.NewSessionHandler(sessionService, log),
		Result:    handler.NewResultHandler(),
		WS:        handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	reaper := worker.NewSessionReaper(sessionService, cfg.SessionIdleTimeout, cfg.ReaperInterval, log)
	reaperDone := make(chan struct{})
	go func() {
		reaper.Start(workerCtx)
		close(reaperDone)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	authLimiter := middleware.NewRateLimiter(workerCtx, cfg.AuthRateLimit, time.Minute)
	r := router.SetupRouter(authService, handlers, cfg, authLimiter)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the reaper and rate limiter cleanup.
	workerCancel()
	<-reaperDone

	// 3. Stop every session timer; open WebSocket streams end here.
	sessionService.CloseAll()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
