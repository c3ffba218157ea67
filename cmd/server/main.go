package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/prairie-backend/internal/config"
	"github.com/stemsi/prairie-backend/internal/database"
	"github.com/stemsi/prairie-backend/internal/handler"
	"github.com/stemsi/prairie-backend/internal/logger"
	"github.com/stemsi/prairie-backend/internal/questiontype"
	"github.com/stemsi/prairie-backend/internal/render"
	"github.com/stemsi/prairie-backend/internal/repository"
	"github.com/stemsi/prairie-backend/internal/router"
	"github.com/stemsi/prairie-backend/internal/service"
	"github.com/stemsi/prairie-backend/internal/validator"
	"github.com/stemsi/prairie-backend/internal/websocket"
	"github.com/stemsi/prairie-backend/internal/worker"
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
		Bool("question_sharing", cfg.QuestionSharingEnabled).
		Msg("Starting Prairie Backend")

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
	courseRepo := repository.NewCourseRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	variantRepo := repository.NewVariantRepository(pool)
	issueRepo := repository.NewIssueRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	sharingRepo := repository.NewSharingRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	tokenService, err := service.NewTokenService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize variant tokens")
	}
	authService := service.NewAuthService(cfg, userRepo)
	issueService := service.NewIssueService(issueRepo, log)
	variantService := service.NewVariantService(
		variantRepo, questionRepo, courseRepo, issueService, questiontype.NewDefaultRegistry(), log,
	)
	renderer := render.NewHTMLRenderer(variantService, submissionRepo)
	bridgeService := service.NewGradingBridgeService(submissionRepo, renderer, tokenService, rdb, log)
	gradingJobService := service.NewGradingJobService(submissionRepo, rdb, log)
	sharingService := service.NewSharingService(cfg.QuestionSharingEnabled, courseRepo, sharingRepo, log)

	hub := websocket.NewHub(log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, log),
		Variant: handler.NewVariantHandler(variantService, tokenService, log),
		Grading: handler.NewGradingHandler(gradingJobService, log),
		Sharing: handler.NewSharingHandler(sharingService, log),
		WS:      handler.NewWSHandler(bridgeService, hub, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	statusWorker := worker.NewGradingStatusWorker(rdb, bridgeService, cfg.GradingBatchTimeout, log)

	wg.Add(2)
	go func() {
		defer wg.Done()
		statusWorker.Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		hub.Run(workerCtx, rdb)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	// 2. Stop the hub and worker, flushing the pending notification batch.
	workerCancel()
	wg.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
