// Copyright (c) 2026 Veriface Labs. All rights reserved.

// Command api is the entry point for the Veriface HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool + pgvector).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Load the token signing keys.
//  7. Wire domain services and HTTP handlers.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veriface/veriface/internal/api"
	"github.com/veriface/veriface/internal/credential"
	"github.com/veriface/veriface/internal/enroll"
	"github.com/veriface/veriface/internal/extractor"
	"github.com/veriface/veriface/internal/platform/config"
	"github.com/veriface/veriface/internal/platform/constants"
	"github.com/veriface/veriface/internal/platform/migration"
	pgstore "github.com/veriface/veriface/internal/platform/postgres"
	redisstore "github.com/veriface/veriface/internal/platform/redis"
	"github.com/veriface/veriface/internal/platform/sec"
	"github.com/veriface/veriface/internal/ratelimit"
	"github.com/veriface/veriface/internal/verify"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Veriface] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Int("embedding_dim", cfg.EmbeddingDim),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Token Service ──────────────────────────────────────────────────
	tokenService, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.TokenIssuer)
	must(log, err, "initialize token service")

	// ── 7. Health Handlers ────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	templateStore := enroll.NewPostgresStore(pool)
	enrollService := enroll.NewService(templateStore, enroll.Policy{
		EmbeddingDim:       cfg.EmbeddingDim,
		SupportedModels:    cfg.SupportedModelVersions,
		MaxTemplates:       cfg.MaxTemplates,
		QualityThreshold:   cfg.QualityThreshold,
		DuplicateThreshold: cfg.DuplicateThreshold,
	}, log)

	watermarks := credential.NewRedisWatermarkStore(rdb, cfg.TokenTTL())
	issuer := credential.NewIssuer(tokenService, watermarks, cfg.TokenTTL())

	budget := ratelimit.NewRedisBudget(rdb, ratelimit.Policy{
		Window:      cfg.RateWindow(),
		MaxAttempts: cfg.RateMaxAttempts,
	})
	replayGuard := ratelimit.NewRedisReplayGuard(rdb, cfg.RateWindow())

	verifyService := verify.NewService(
		templateStore,
		budget,
		replayGuard,
		issuer,
		verify.PassthroughLiveness{},
		verify.NewPostgresActivity(pool),
		verify.Policy{
			EmbeddingDim:             cfg.EmbeddingDim,
			SupportedModels:          cfg.SupportedModelVersions,
			Thresholds:               verify.Thresholds{Accept: cfg.AcceptThreshold, Reject: cfg.RejectThreshold},
			ScoringTimeout:           cfg.ScoringTimeout(),
			InconclusiveCostsAttempt: cfg.InconclusiveCostsAttempt,
			TokenScope:               constants.ScopeSession,
		},
		log,
	)

	// Image payloads need the embedding producer; without one the handlers
	// accept pre-computed embeddings only.
	var imageExtractor enroll.Extractor
	if cfg.ExtractorURL != "" {
		imageExtractor = extractor.NewClient(cfg.ExtractorURL)
		log.Info("extractor_enabled", slog.String("url", cfg.ExtractorURL))
	}

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		Enroll:     enroll.NewHandler(enrollService, imageExtractor),
		Verify:     verify.NewHandler(verifyService, imageExtractor),
		Credential: credential.NewHandler(issuer),
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
