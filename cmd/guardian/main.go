package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/trunghm/trade-guardian/internal/account"
	"github.com/trunghm/trade-guardian/internal/config"
	"github.com/trunghm/trade-guardian/internal/exchange"
	"github.com/trunghm/trade-guardian/internal/grading"
	"github.com/trunghm/trade-guardian/internal/guardian"
	"github.com/trunghm/trade-guardian/internal/journal"
	"github.com/trunghm/trade-guardian/internal/logger"
	"github.com/trunghm/trade-guardian/internal/monitoring"
	"github.com/trunghm/trade-guardian/internal/notifications"
	"github.com/trunghm/trade-guardian/internal/performance"
	"github.com/trunghm/trade-guardian/internal/planner"
	"github.com/trunghm/trade-guardian/internal/sizing"
	"github.com/trunghm/trade-guardian/internal/trailing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded (%v), using environment variables", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fileLogger, err := logger.NewLoggerWithDebug("guardian", cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer fileLogger.Close()

	printStartupInfo(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := monitoring.NewHealthChecker()

	g, store, err := buildGuardian(ctx, cfg, fileLogger, health)
	if err != nil {
		log.Fatalf("Failed to build guardian: %v", err)
	}
	defer store.Close()

	client := exchange.NewClient(exchange.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Category:  cfg.Exchange.Category,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
	})

	feed := exchange.NewWebSocketFeed(cfg.Exchange.Symbols, cfg.Exchange.Testnet)
	if err := feed.Start(ctx); err != nil {
		log.Fatalf("Failed to start price feed: %v", err)
	}
	defer feed.Close()

	health.SetFeedConnected(true)

	metricsServer := serveMetrics(cfg.Monitoring.PrometheusPort)
	adminServer := serveAdmin(cfg.Monitoring.HealthPort, g, client, health)

	fileLogger.Info("Guardian watching %s", strings.Join(cfg.Exchange.Symbols, ", "))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case tick := <-feed.Ticks():
			health.ObserveTick(tick.Price, tick.Timestamp)
			g.OnTick(tick)
			health.SetOpenPositions(g.OpenCount())
		case sig := <-sigChan:
			fileLogger.Info("Received signal %v, shutting down", sig)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			metricsServer.Shutdown(shutdownCtx)
			adminServer.Shutdown(shutdownCtx)
			shutdownCancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// buildGuardian wires the core components from configuration
func buildGuardian(ctx context.Context, cfg *config.Config, fileLogger *logger.Logger, health *monitoring.HealthChecker) (*guardian.Guardian, journal.Store, error) {
	acct, err := account.New(cfg.Account.Equity, cfg.Account.Leverage, cfg.Account.MaxPositionRatio)
	if err != nil {
		return nil, nil, fmt.Errorf("account: %w", err)
	}

	sizer, err := sizing.NewSizer(sizing.Config{
		HighMultiplier:   cfg.Sizing.HighMultiplier,
		MediumMultiplier: cfg.Sizing.MediumMultiplier,
		LowMultiplier:    cfg.Sizing.LowMultiplier,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("sizer: %w", err)
	}

	plnr, err := planner.NewPlanner(planner.Config{
		BufferPct:   cfg.Planner.BufferPct,
		HighTPPct:   cfg.Planner.HighTPPct,
		MediumTPPct: cfg.Planner.MediumTPPct,
		LowTPPct:    cfg.Planner.LowTPPct,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("planner: %w", err)
	}

	trailer, err := trailing.NewController(trailing.Config{
		ActivationPct:   cfg.Trailing.ActivationPct,
		Distance:        cfg.Trailing.Distance,
		UpdateThreshold: cfg.Trailing.UpdateThreshold,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("trailing: %w", err)
	}

	grader, err := grading.NewGrader(grading.Config{
		APlusRR:               cfg.Grading.APlusRR,
		ARR:                   cfg.Grading.ARR,
		BRR:                   cfg.Grading.BRR,
		StopSlippageTolerance: cfg.Grading.StopSlippageTolerance,
		ExecutionQualityCap:   cfg.Grading.ExecutionQualityCap,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("grader: %w", err)
	}

	store, err := openJournal(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("journal: %w", err)
	}

	// Warm the per-tier stats from the journaled history
	aggregator := performance.NewAggregator()
	replayed, err := journal.Replay(ctx, store, aggregator)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("journal replay: %w", err)
	}
	fileLogger.Info("Replayed %d journaled trades", replayed)

	var notifier notifications.Notifier = notifications.NopNotifier{}
	if cfg.Notifications.TelegramToken != "" && cfg.Notifications.TelegramChatID != "" {
		notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
	}

	g, err := guardian.New(guardian.Deps{
		Account:    acct,
		Sizer:      sizer,
		Planner:    plnr,
		Trailer:    trailer,
		Grader:     grader,
		Aggregator: aggregator,
		Store:      store,
		Logger:     fileLogger,
		Notifier:   notifier,
		Health:     health,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return g, store, nil
}

func openJournal(ctx context.Context, cfg *config.Config) (journal.Store, error) {
	switch cfg.Journal.Backend {
	case "postgres":
		return journal.NewPostgresStore(ctx, cfg.Journal.DatabaseURL, journal.DefaultPoolConfig())
	default:
		return journal.NewFileStore(cfg.Journal.FilePath)
	}
}

func serveMetrics(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())

	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	return server
}

func printStartupInfo(cfg *config.Config) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRADE GUARDIAN")
	t.SetStyle(table.StyleRounded)

	environment := "mainnet"
	if cfg.Exchange.Demo {
		environment = "demo"
	} else if cfg.Exchange.Testnet {
		environment = "testnet"
	}

	t.AppendRows([]table.Row{
		{"📊 Symbols", strings.Join(cfg.Exchange.Symbols, ", ")},
		{"💰 Equity", fmt.Sprintf("$%.2f", cfg.Account.Equity)},
		{"⚖️ Leverage", fmt.Sprintf("%dx", cfg.Account.Leverage)},
		{"🧢 Max Position Ratio", fmt.Sprintf("%.0f%%", cfg.Account.MaxPositionRatio*100)},
		{"📓 Journal", cfg.Journal.Backend},
		{"🏦 Environment", environment},
	})

	t.Render()
	fmt.Println()
}
