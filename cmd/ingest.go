package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/kiosk/internal/app"
	"github.com/koopa0/kiosk/internal/config"
	"github.com/koopa0/kiosk/internal/ingest"
)

// runIngest dispatches the ingest subcommands:
//
//	kiosk ingest crawl <url>   crawl a help center into the FAQ collection
//	kiosk ingest rules <dir>   seed business rules from YAML documents
func runIngest() error {
	if len(os.Args) < 4 {
		return fmt.Errorf("usage: kiosk ingest crawl <url> | kiosk ingest rules <dir>")
	}
	sub, arg := os.Args[2], os.Args[3]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	ing, err := ingest.New(a.Knowledge, ingest.Config{
		AllowedDomains: cfg.Ingest.AllowedDomains,
		Parallelism:    cfg.Ingest.Parallelism,
		Delay:          time.Duration(cfg.Ingest.DelayMs) * time.Millisecond,
		MaxDepth:       cfg.Ingest.MaxDepth,
		LockPath:       cfg.Ingest.LockPath,
	}, a.Logger.With("component", "ingest"))
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	switch sub {
	case "crawl":
		report, err := ing.Crawl(ctx, arg)
		if err != nil {
			return fmt.Errorf("crawling %s: %w", arg, err)
		}
		fmt.Printf("Crawled %d pages in %s: %d articles indexed, %d chunks, %d failures\n",
			report.PagesVisited, report.Duration.Round(time.Millisecond),
			report.ArticlesIndexed, report.ChunksUpserted, report.Failures)
		return nil
	case "rules":
		n, err := ing.SeedRules(ctx, arg)
		if err != nil {
			return fmt.Errorf("seeding rules from %s: %w", arg, err)
		}
		fmt.Printf("Seeded %d business rules from %s\n", n, arg)
		return nil
	default:
		return fmt.Errorf("unknown ingest subcommand: %s", sub)
	}
}
