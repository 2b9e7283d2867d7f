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
	"github.com/stemsi/psytest-backend/internal/cache"
	"github.com/stemsi/psytest-backend/internal/clock"
	"github.com/stemsi/psytest-backend/internal/config"
	"github.com/stemsi/psytest-backend/internal/database"
	"github.com/stemsi/psytest-backend/internal/handler"
	"github.com/stemsi/psytest-backend/internal/logger"
	"github.com/stemsi/psytest-backend/internal/middleware"
	"github.com/stemsi/psytest-backend/internal/repository"
	"github.com/stemsi/psytest-backend/internal/router"
	"github.com/stemsi/psytest-backend/internal/service"
	"github.com/stemsi/psytest-backend/internal/validator"
	"github.com/stemsi/psytest-backend/internal/worker"
	"golang.org/x/sync/errgroup"
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
		Msg("Starting Psytest Backend")

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

	clk := clock.Real{}
	store := cache.New(rdb, cfg.TestCacheTTL)

	// ─── Initialize Repositories ───────────────────────────────────────
	testRepo := repository.NewTestRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	participantRepo := repository.NewParticipantRepository(pool)
	admissionRepo := repository.NewAdmissionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	testService := service.NewTestService(testRepo, store, log)
	sessionService := service.NewSessionService(sessionRepo, participantRepo, testRepo, clk, log)
	admissionService := service.NewAdmissionService(sessionRepo, admissionRepo, clk, log)
	attemptService := service.NewAttemptService(service.AttemptDeps{
		Sessions:   sessionRepo,
		Tests:      testService,
		Roster:     participantRepo,
		Admissions: admissionRepo,
		Attempts:   attemptRepo,
		Buffer:     store,
		Clock:      clk,
	}, log)
	reportService := service.NewReportService(sessionRepo, testRepo, participantRepo, attemptRepo, cfg.TrendThresholdPct, log)
	dashboardService := service.NewDashboardService(dashboardRepo, clk)
	monitorService := service.NewMonitorService(sessionService, attemptService, clk, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	deps := []handler.Dependency{
		{Name: "postgres", Ping: pool.Ping},
		{Name: "redis", Ping: store.Ping},
	}
	handlers := &router.Handlers{
		Participant: handler.NewParticipantHandler(sessionService, admissionService, attemptService),
		WS:          handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Test:        handler.NewTestHandler(testService),
		Session:     handler.NewSessionHandler(sessionService, attemptService),
		Report:      handler.NewReportHandler(reportService),
		Dashboard:   handler.NewDashboardHandler(dashboardService),
		Monitor:     handler.NewMonitorHandler(monitorService, log),
		System:      handler.NewSystemHandler(deps, store, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers errgroup.Group

	autosaveWorker := worker.NewAutosaveWorker(cache.NewQueue(rdb, config.WorkerKey.PersistAnswersQueue), attemptRepo, log)
	scoringWorker := worker.NewScoringWorker(cache.NewQueue(rdb, config.WorkerKey.PersistScoresQueue), attemptRepo, store, log)
	sweepWorker := worker.NewSweepWorker(sessionService, attemptService, clk, cfg.SweepInterval, log)

	joinLimiter := middleware.NewRateLimiter(cfg.JoinRatePerMinute, time.Minute).ByParticipant()

	for _, start := range []func(context.Context){
		autosaveWorker.Start,
		scoringWorker.Start,
		sweepWorker.Start,
		joinLimiter.RunCleanup,
	} {
		workers.Go(func() error {
			start(workerCtx)
			return nil
		})
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg, joinLimiter, log)

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

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	_ = workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
