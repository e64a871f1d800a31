package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/invoice-pipeline/db/ent/schema"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

const (
	tableInvoices  = "invoices"
	tableAnomalies = "anomalies"

	// sortable, fixed-width UTC timestamps
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

var (
	invoiceTable   = schema.InvoiceColumns()
	anomalyTable   = schema.AnomalyColumns()
	invoiceColumns = schema.ColumnNames(invoiceTable)
	anomalyColumns = schema.ColumnNames(anomalyTable)
)

// SQLStore keeps runs in two tables. Each row carries the run as a JSON
// payload next to the columns used for keys, ordering and ad-hoc queries.
type SQLStore struct {
	drv     *entsql.Driver
	db      *sql.DB
	dialect string
	logger  *slog.Logger
	onClose func()
}

func newSQLStore(ctx context.Context, drv *entsql.Driver, logger *slog.Logger, onClose func()) (*SQLStore, error) {
	s := &SQLStore{
		drv:     drv,
		db:      drv.DB(),
		dialect: drv.Dialect(),
		logger:  logger,
		onClose: onClose,
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	b := entsql.Dialect(s.dialect)
	stmts := []entsql.Querier{
		s.createTable(b, tableInvoices, invoiceTable),
		s.createTable(b, tableAnomalies, anomalyTable),
	}
	for _, st := range stmts {
		q, args := st.Query()
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logger.Error("schema migration failed", "query", q, "error", err)
			return dbErr("migrate", err)
		}
	}
	return nil
}

// createTable builds the DDL for cols. Timestamps are stored as sortable
// text (timeLayout) and the payload as JSON text.
func (s *SQLStore) createTable(b *entsql.DialectBuilder, table string, cols []schema.Column) *entsql.TableBuilder {
	float := "REAL"
	if s.dialect == dialect.Postgres {
		float = "DOUBLE PRECISION"
	}
	ct := b.CreateTable(table).IfNotExists()
	for _, c := range cols {
		typ := "TEXT"
		switch {
		case c.Key:
			typ = "VARCHAR(255)"
		case c.Type == field.TypeFloat64:
			typ = float
		case c.Type == field.TypeTime:
			typ = "VARCHAR(40)"
		}
		ct.Columns(b.Column(c.Name).Type(typ))
		if c.Key {
			ct.PrimaryKey(c.Name)
		}
	}
	return ct
}

func (s *SQLStore) UpsertInvoice(ctx context.Context, run *entity.PipelineRun) error {
	q, args, err := s.invoiceUpsert(run)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.logger.Error("failed to upsert invoice", "key", run.RecordKey(), "error", err)
		return dbErr("upsert invoice", err)
	}
	return nil
}

func (s *SQLStore) ReplaceInvoice(ctx context.Context, oldKey string, run *entity.PipelineRun) error {
	q, args, err := s.invoiceUpsert(run)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbErr("begin", err)
	}
	defer tx.Rollback()

	if oldKey != "" && oldKey != run.RecordKey() {
		dq, dargs := entsql.Dialect(s.dialect).Delete(tableInvoices).Where(entsql.EQ("record_key", oldKey)).Query()
		if _, err := tx.ExecContext(ctx, dq, dargs...); err != nil {
			return dbErr("delete previous key", err)
		}
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return dbErr("upsert invoice", err)
	}
	if err := tx.Commit(); err != nil {
		return dbErr("commit", err)
	}
	return nil
}

func (s *SQLStore) invoiceUpsert(run *entity.PipelineRun) (string, []any, error) {
	payload, err := json.Marshal(run)
	if err != nil {
		return "", nil, fmt.Errorf("encode run: %w", err)
	}
	var vendor, date, total string
	var conf float64
	if run.Invoice != nil {
		vendor = run.Invoice.VendorName
		date = run.Invoice.InvoiceDate
		total = run.Invoice.TotalAmount.String()
		conf = run.Invoice.Confidence
	}
	q, args := entsql.Dialect(s.dialect).
		Insert(tableInvoices).
		Columns(invoiceColumns...).
		Values(
			run.RecordKey(), run.InvoiceNumber(), run.FileName, vendor, date,
			total, conf, string(run.Outcome), string(run.ValidationStatus), string(run.MatchingStatus),
			string(run.ReviewStatus), run.DocumentKey, formatTime(run.ProcessedAt), string(payload),
		).
		OnConflict(
			entsql.ConflictColumns("record_key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	return q, args, nil
}

func (s *SQLStore) AppendAnomaly(ctx context.Context, run *entity.PipelineRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	q, args := entsql.Dialect(s.dialect).
		Insert(tableAnomalies).
		Columns(anomalyColumns...).
		Values(run.FileName, run.RunID, run.Reason, formatTime(run.ProcessedAt), string(payload)).
		OnConflict(
			entsql.ConflictColumns("file_name"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.logger.Error("failed to append anomaly", "file_name", run.FileName, "error", err)
		return dbErr("append anomaly", err)
	}
	return nil
}

func (s *SQLStore) GetInvoice(ctx context.Context, key string) (*entity.PipelineRun, error) {
	b := entsql.Dialect(s.dialect)
	q, args := b.Select("payload").
		From(b.Table(tableInvoices)).
		Where(entsql.EQ("record_key", key)).
		Query()
	runs, err := s.queryRuns(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, notFound("invoice", key)
	}
	return runs[0], nil
}

func (s *SQLStore) ListInvoices(ctx context.Context) ([]*entity.PipelineRun, error) {
	return s.listTable(ctx, tableInvoices, "record_key")
}

func (s *SQLStore) ListAnomalies(ctx context.Context) ([]*entity.PipelineRun, error) {
	return s.listTable(ctx, tableAnomalies, "file_name")
}

func (s *SQLStore) listTable(ctx context.Context, table, key string) ([]*entity.PipelineRun, error) {
	b := entsql.Dialect(s.dialect)
	q, args := b.Select("payload").
		From(b.Table(table)).
		OrderBy("processed_at", key).
		Query()
	return s.queryRuns(ctx, q, args)
}

func (s *SQLStore) DeleteInvoice(ctx context.Context, key string) error {
	q, args := entsql.Dialect(s.dialect).Delete(tableInvoices).Where(entsql.EQ("record_key", key)).Query()
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return dbErr("delete invoice", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("invoice", key)
	}
	return nil
}

func (s *SQLStore) queryRuns(ctx context.Context, q string, args []any) ([]*entity.PipelineRun, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, dbErr("query", err)
	}
	defer rows.Close()

	runs := []*entity.PipelineRun{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, dbErr("scan", err)
		}
		var run entity.PipelineRun
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("rows", err)
	}
	return runs, nil
}

// Close closes the database connections gracefully.
func (s *SQLStore) Close() error {
	s.logger.Info("closing database connections")
	err := s.drv.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func dbErr(op string, err error) error {
	return common.NewAppError("DATABASE_ERROR", op, errors.Join(common.ErrDatabase, err))
}
