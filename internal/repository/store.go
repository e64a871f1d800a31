// Package repository persists pipeline runs and retained documents.
package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// InvoiceStore is the durable home of pipeline runs. Invoices are keyed by
// PipelineRun.RecordKey, anomalies by file name.
type InvoiceStore interface {
	UpsertInvoice(ctx context.Context, run *entity.PipelineRun) error
	AppendAnomaly(ctx context.Context, run *entity.PipelineRun) error
	GetInvoice(ctx context.Context, key string) (*entity.PipelineRun, error)
	ListInvoices(ctx context.Context) ([]*entity.PipelineRun, error)
	ListAnomalies(ctx context.Context) ([]*entity.PipelineRun, error)
	// ReplaceInvoice stores run and removes oldKey when it differs from the
	// run's key, as one operation.
	ReplaceInvoice(ctx context.Context, oldKey string, run *entity.PipelineRun) error
	DeleteInvoice(ctx context.Context, key string) error
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (InvoiceStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case common.DriverJSON:
		return NewJSONFileStore(cfg.DataDir, logger)
	case common.DriverSQLite:
		return OpenSQLite(ctx, cfg.DSN, logger)
	case common.DriverPostgres:
		return OpenPostgres(ctx, cfg, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown store driver %q", cfg.Driver), common.ErrInvalidInput)
	}
}

func notFound(kind, key string) error {
	return common.NewAppError("NOT_FOUND", fmt.Sprintf("%s %q", kind, key), common.ErrNotFound)
}
