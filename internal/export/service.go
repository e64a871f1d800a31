// Package export renders stored invoices and anomalies as an XLSX workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

const (
	SheetInvoices  = "Invoices"
	SheetAnomalies = "Anomalies"
)

var invoiceHeaders = []string{
	"Invoice Number",
	"Vendor Name",
	"Invoice Date",
	"Total Amount",
	"Currency",
	"Confidence",
	"PO Number",
	"Match Confidence",
	"Validation Status",
	"Review Status",
	"Outcome",
	"Validation Errors",
	"File Name",
	"Processed At",
}

var anomalyHeaders = []string{"File Name", "Reason", "Run ID", "Processed At"}

// Service is a tiny façade over the invoice store that produces XLSX bytes for exports.
type Service struct {
	store  repository.InvoiceStore
	logger *slog.Logger
}

func NewService(store repository.InvoiceStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportXLSX returns a workbook with one sheet of invoices and one of anomalies.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	invoices, err := s.store.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	anomalies, err := s.store.ListAnomalies(ctx)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the invoices sheet.
	if err := f.SetSheetName(f.GetSheetName(0), SheetInvoices); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetAnomalies); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	writeHeader(f, SheetInvoices, invoiceHeaders)
	for i, run := range invoices {
		writeRow(f, SheetInvoices, i+2, invoiceRow(run))
	}
	_ = f.SetColWidth(SheetInvoices, "A", "B", 24)
	_ = f.SetColWidth(SheetInvoices, "C", "K", 16)
	_ = f.SetColWidth(SheetInvoices, "L", "L", 60) // errors
	_ = f.SetColWidth(SheetInvoices, "M", "N", 28)

	writeHeader(f, SheetAnomalies, anomalyHeaders)
	for i, run := range anomalies {
		writeRow(f, SheetAnomalies, i+2, []any{run.FileName, run.Reason, run.RunID, formatTime(run.ProcessedAt)})
	}
	_ = f.SetColWidth(SheetAnomalies, "A", "D", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"invoices", len(invoices),
		"anomalies", len(anomalies),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func invoiceRow(run *entity.PipelineRun) []any {
	row := make([]any, len(invoiceHeaders))
	for i := range row {
		row[i] = ""
	}
	if inv := run.Invoice; inv != nil {
		row[0] = inv.InvoiceNumber
		row[1] = inv.VendorName
		row[2] = inv.InvoiceDate
		total, _ := inv.TotalAmount.Float64()
		row[3] = total
		if inv.Currency != nil {
			row[4] = *inv.Currency
		}
		row[5] = inv.Confidence
	}
	if run.Match.PONumber != nil {
		row[6] = *run.Match.PONumber
	}
	row[7] = run.Match.MatchConfidence
	row[8] = string(run.ValidationStatus)
	row[9] = string(run.ReviewStatus)
	row[10] = string(run.Outcome)
	if run.Validation != nil {
		row[11] = truncate(joinErrors(run.Validation.Errors), 250)
	}
	row[12] = run.FileName
	row[13] = formatTime(run.ProcessedAt)
	return row
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
