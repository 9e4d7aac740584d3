package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"github.com/trunghm/trade-guardian/internal/config"
	"github.com/trunghm/trade-guardian/internal/journal"
	"github.com/trunghm/trade-guardian/internal/performance"
	"github.com/trunghm/trade-guardian/pkg/reporting"
)

func main() {
	var (
		excelPath = flag.String("excel", "", "Export the journal to an .xlsx file at this path")
		history   = flag.Bool("history", false, "Print the full trade history")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded (%v), using environment variables", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	store, err := openJournal(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer store.Close()

	entries, err := store.ReadAll(ctx)
	if err != nil {
		log.Fatalf("Failed to read journal: %v", err)
	}

	aggregator := performance.NewAggregator()
	for _, entry := range entries {
		aggregator.Update(entry.Result())
	}
	stats := aggregator.Snapshot()

	console := reporting.NewConsoleReporter()
	console.PrintTierStats(stats)
	if *history {
		console.PrintTradeHistory(entries)
	}

	if *excelPath != "" {
		if err := reporting.NewExcelReporter().WriteJournalXLSX(entries, stats, *excelPath); err != nil {
			log.Fatalf("Failed to write Excel report: %v", err)
		}
		log.Printf("Wrote %d trades to %s", len(entries), *excelPath)
	}
}

func openJournal(ctx context.Context, cfg *config.Config) (journal.Store, error) {
	switch cfg.Journal.Backend {
	case "postgres":
		return journal.NewPostgresStore(ctx, cfg.Journal.DatabaseURL, journal.DefaultPoolConfig())
	default:
		return journal.NewFileStore(cfg.Journal.FilePath)
	}
}
