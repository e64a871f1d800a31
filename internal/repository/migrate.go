package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// MigrateStats counts the outcome of a store-to-store copy.
type MigrateStats struct {
	Migrated  int
	Skipped   int
	Anomalies int
	Failed    int
}

// Migrate copies every invoice and anomaly from src into dst. Invoices that
// already exist in dst are skipped; anomalies are upserted by file name.
// Individual failures are logged and counted, not returned.
func Migrate(ctx context.Context, src, dst InvoiceStore, logger *slog.Logger) (MigrateStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	var stats MigrateStats

	runs, err := src.ListInvoices(ctx)
	if err != nil {
		return stats, err
	}
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		key := run.RecordKey()
		_, err := dst.GetInvoice(ctx, key)
		switch {
		case err == nil:
			logger.Info("migrate.invoice.exists", "key", key)
			stats.Skipped++
			continue
		case !errors.Is(err, common.ErrNotFound):
			logger.Error("migrate.invoice.lookup_failed", "key", key, "error", err)
			stats.Failed++
			continue
		}
		if err := dst.UpsertInvoice(ctx, run); err != nil {
			logger.Error("migrate.invoice.failed", "key", key, "error", err)
			stats.Failed++
			continue
		}
		stats.Migrated++
	}

	anomalies, err := src.ListAnomalies(ctx)
	if err != nil {
		return stats, err
	}
	for _, run := range anomalies {
		if err := dst.AppendAnomaly(ctx, run); err != nil {
			logger.Error("migrate.anomaly.failed", "file", run.FileName, "error", err)
			stats.Failed++
			continue
		}
		stats.Anomalies++
	}

	logger.Info("migrate.done",
		"migrated", stats.Migrated,
		"skipped", stats.Skipped,
		"anomalies", stats.Anomalies,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return stats, nil
}
