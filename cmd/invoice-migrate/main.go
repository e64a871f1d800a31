package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	repo "github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

func main() {
	fromDir := flag.String("from", "./data/structured", "directory holding structured_invoices.json and anomalies.json")
	flag.Parse()

	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if cfg.Database.Driver == common.DriverJSON {
		log.Println("ERROR: DB_DRIVER must be sqlite or postgres")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := common.NewLogger(cfg.Logging, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	src, err := repo.NewJSONFileStore(*fromDir, logger)
	if err != nil {
		log.Fatalf("opening JSON store: %v", err)
	}
	dst, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer func() {
		if err := dst.Close(); err != nil {
			log.Printf("ERROR: closing store: %v", err)
		}
	}()

	stats, err := repo.Migrate(ctx, src, dst, logger)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("migrated: %d, skipped: %d, anomalies: %d, failed: %d",
		stats.Migrated, stats.Skipped, stats.Anomalies, stats.Failed)
}
