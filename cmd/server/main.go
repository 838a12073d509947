// Package main is the entrypoint for the LeadScout API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketpartner/leadscout/internal/ai"
	"github.com/marketpartner/leadscout/internal/api"
	"github.com/marketpartner/leadscout/internal/api/handler"
	mw "github.com/marketpartner/leadscout/internal/api/middleware"
	"github.com/marketpartner/leadscout/internal/cache"
	"github.com/marketpartner/leadscout/internal/config"
	"github.com/marketpartner/leadscout/internal/pipeline"
	"github.com/marketpartner/leadscout/internal/reddit"
	"github.com/marketpartner/leadscout/internal/scrape"
	"github.com/marketpartner/leadscout/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	requestsPerMin  = 30
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "model", cfg.Gemini.Model, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI provider and the shared rate limiter
	provider, err := ai.NewProvider("gemini", cfg.Gemini)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	limiter := ai.NewLimiter(cfg.Gemini.MaxConcurrent, cfg.Gemini.WindowCap, cfg.Gemini.Window)
	slog.Info("AI provider initialized", "provider", provider.Name(), "model", provider.Model())

	// 6. Build the pipeline
	pgStore := store.NewPostgresStore(pool)
	extractor := scrape.NewCached(scrape.NewExtractor(cfg.Pipeline.ScrapeTimeout), redisCache)
	redditClient := reddit.NewHTTPClient(cfg.Reddit.BaseURL, cfg.Reddit.UserAgent, cfg.Reddit.Timeout)
	pipe := pipeline.New(extractor, redditClient, provider, limiter, cfg.Pipeline)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, requestsPerMin),

		HealthHandler:         handler.NewHealthHandler(pgStore, redisCache),
		AnalyzeHandler:        handler.NewAnalyzeHandler(pipe, pgStore),
		StreamScrapeHandler:   handler.NewStreamScrapeHandler(pipe),
		StreamDiscoverHandler: handler.NewStreamDiscoverHandler(pipe),
		ListRunsHandler:       handler.NewListRunsHandler(pgStore),
		GetRunHandler:         handler.NewGetRunHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE analysis streams stay open for the
		// whole run, which can take minutes under AI backoff.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
