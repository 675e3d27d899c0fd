package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pricescout/pricescout/internal/ai"
	"github.com/pricescout/pricescout/internal/api"
	"github.com/pricescout/pricescout/internal/browser"
	"github.com/pricescout/pricescout/internal/config"
	"github.com/pricescout/pricescout/internal/database"
	"github.com/pricescout/pricescout/internal/extract"
	"github.com/pricescout/pricescout/internal/ratelimit"
	"github.com/pricescout/pricescout/internal/scheduler"
	"github.com/pricescout/pricescout/internal/scrape"
	"github.com/pricescout/pricescout/internal/storage"
)

func main() {
	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Redis client for the outbox relay
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	// Browser setup
	capturer, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		CaptureTimeout: cfg.Browser.CaptureTimeout,
		SettleWait:     cfg.Browser.SettleWait,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		UserAgent:      cfg.Browser.UserAgent,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer capturer.Close()

	// Extraction chain: vision first when enabled, structural selectors
	// as the fallback.
	var extractors []extract.Extractor
	if cfg.AI.UseVision {
		aiClient, err := ai.NewClient(ctx, ai.Options{
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize AI client", "error", err)
			os.Exit(1)
		}
		extractors = append(extractors, extract.NewVisionExtractor(aiClient))
	}
	extractors = append(extractors, extract.NewStructuralExtractor())

	// Repositories
	targets := database.NewTargetRepository(db)
	prices := database.NewPriceRepository(db, database.NewOutboxRepository(db), cfg.Redis.Stream)
	executions := database.NewExecutionRepository(db)
	catalog := database.NewCatalogRepository(db)

	// Orchestrator
	metrics := scrape.NewMetrics()
	validator := scrape.NewValidator(cfg.Scraper.LowConfidenceThreshold)
	pacer := ratelimit.NewLimiter(cfg.Scraper.TargetDelayMin, cfg.Scraper.TargetDelayMax)

	orchestratorOpts := []scrape.OrchestratorOption{
		scrape.WithPacer(pacer),
		scrape.WithMetrics(metrics),
		scrape.WithMaxAttempts(cfg.Scraper.MaxAttempts),
		scrape.WithRetryBaseDelay(cfg.Scraper.RetryBaseDelay),
	}
	if cfg.Browser.DebugDir != "" {
		store, err := storage.NewArtifactStore(cfg.Browser.DebugDir)
		if err != nil {
			logger.Error("failed to initialize artifact store", "error", err)
			os.Exit(1)
		}
		orchestratorOpts = append(orchestratorOpts, scrape.WithArtifactStore(store))
	}

	gateway := database.NewScrapeGateway(targets, prices)
	orchestrator := scrape.NewOrchestrator(gateway, capturer, extractors, validator, orchestratorOpts...)

	// Scheduler
	sched := scheduler.New(orchestrator, executions, cfg.Scheduler.Schedule)
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
	}

	// Initialize API handlers
	handlers := api.NewHandlers(sched, executions, prices, catalog, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Check outbox status
		pendingCount, _ := relay.GetPendingCount(context.Background())
		deadLetterCount, _ := relay.GetDeadLetterCount(context.Background())

		health := map[string]interface{}{
			"status": "ok",
			"outbox": map[string]interface{}{
				"pending":     pendingCount,
				"dead_letter": deadLetterCount,
			},
			"scrape_running": sched.Running(),
		}

		status := http.StatusOK
		if pendingCount > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if deadLetterCount > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(health)
	})

	// Prometheus metrics
	r.Get("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}).ServeHTTP)

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scrape", func(r chi.Router) {
			r.Post("/", handlers.TriggerScrape)
			r.Get("/status", handlers.GetRunStatus)
		})

		r.Get("/executions", handlers.ListExecutions)
		r.Get("/products", handlers.ListProducts)
		r.Get("/platforms", handlers.ListPlatforms)
		r.Get("/products/{productID}/prices/latest", handlers.GetLatestPrices)
		r.Get("/products/{productID}/prices/history", handlers.GetPriceHistory)
	})

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
