package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pricescout/pricescout/internal/ai"
	"github.com/pricescout/pricescout/internal/browser"
	"github.com/pricescout/pricescout/internal/config"
	"github.com/pricescout/pricescout/internal/currency"
	"github.com/pricescout/pricescout/internal/database"
	"github.com/pricescout/pricescout/internal/extract"
	"github.com/pricescout/pricescout/internal/models"
	"github.com/pricescout/pricescout/internal/ratelimit"
	"github.com/pricescout/pricescout/internal/scrape"
	"github.com/pricescout/pricescout/internal/storage"
)

// One-shot scrape run from the command line. Exits non-zero only when
// the run itself could not start; individual target failures are
// reported in the summary and do not fail the process.
func main() {
	productID := flag.Int64("product-id", 0, "limit the run to one product ID")
	platform := flag.String("platform", "", "limit the run to one platform name")
	dryRun := flag.Bool("dry-run", false, "validate without persisting or publishing")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("interrupted, finishing current target...")
		cancel()
	}()

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

	targets := database.NewTargetRepository(db)
	prices := database.NewPriceRepository(db, database.NewOutboxRepository(db), cfg.Redis.Stream)
	gateway := database.NewScrapeGateway(targets, prices)

	opts := []scrape.OrchestratorOption{
		scrape.WithPacer(ratelimit.NewLimiter(cfg.Scraper.TargetDelayMin, cfg.Scraper.TargetDelayMax)),
		scrape.WithMaxAttempts(cfg.Scraper.MaxAttempts),
		scrape.WithRetryBaseDelay(cfg.Scraper.RetryBaseDelay),
	}
	if cfg.Browser.DebugDir != "" {
		store, err := storage.NewArtifactStore(cfg.Browser.DebugDir)
		if err != nil {
			logger.Error("failed to initialize artifact store", "error", err)
			os.Exit(1)
		}
		opts = append(opts, scrape.WithArtifactStore(store))
	}

	orchestrator := scrape.NewOrchestrator(gateway, capturer,
		extractors, scrape.NewValidator(cfg.Scraper.LowConfidenceThreshold), opts...)

	filter := models.TargetFilter{Platform: *platform}
	if *productID > 0 {
		filter.ProductID = productID
	}

	report, err := orchestrator.Run(ctx, scrape.RunOptions{Filter: filter, DryRun: *dryRun})
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}

	printSummary(report)
}

func printSummary(report *models.RunReport) {
	fmt.Printf("run %s: %d targets, %d succeeded, %d failed",
		report.ID, report.Attempted(), report.Succeeded(), report.Failed())
	if report.DryRun {
		fmt.Print(" (dry run)")
	}
	fmt.Println()

	for _, res := range report.Results {
		name := fmt.Sprintf("%s @ %s", res.Target.ProductName, res.Target.PlatformName)
		switch {
		case res.Record != nil:
			line := fmt.Sprintf("  ok   %-50s %s  [%s]", name,
				currency.Format(res.Record.PriceBase), res.Record.StockStatus)
			if res.Record.NeedsReview {
				line += "  needs review"
			}
			fmt.Println(line)
		case res.Status == models.TargetFailed:
			fmt.Printf("  FAIL %-50s %s (after %d attempts)\n", name, res.Error, res.Attempts)
		default:
			fmt.Printf("  skip %-50s\n", name)
		}
	}
}
