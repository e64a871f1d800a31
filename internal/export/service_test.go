package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	store, err := repository.NewJSONFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	run := entity.NewPipelineRun("r1", "/in/a.pdf", time.Date(2024, 2, 18, 9, 0, 0, 0, time.UTC))
	run.Invoice = &entity.Invoice{
		VendorName:    "ABC Corp Ltd.",
		InvoiceNumber: "INV-1",
		InvoiceDate:   "2024-02-18",
		TotalAmount:   decimal.RequireFromString("7595.00"),
		Confidence:    0.7,
	}
	vr := entity.NewValidationResult(map[string]string{"confidence": "Low confidence score: 0.7"})
	run.Validation = &vr
	run.ValidationStatus = vr.Status
	run.Outcome = constants.OutcomeValidationShortCircuit
	require.NoError(t, store.UpsertInvoice(ctx, run))

	anomaly := entity.NewPipelineRun("r2", "/in/notes.pdf", time.Now())
	anomaly.Reason = constants.AnomalyReasonNonInvoice
	require.NoError(t, store.AppendAnomaly(ctx, anomaly))

	data, err := NewService(store, nil).ExportXLSX(ctx)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetInvoices, SheetAnomalies}, f.GetSheetList())

	rows, err := f.GetRows(SheetInvoices)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Invoice Number", rows[0][0])
	assert.Equal(t, "INV-1", rows[1][0])
	assert.Equal(t, "7595", rows[1][3])
	assert.Equal(t, "confidence: Low confidence score: 0.7", rows[1][11])
	assert.Equal(t, "2024-02-18T09:00:00Z", rows[1][13])

	rows, err = f.GetRows(SheetAnomalies)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "notes.pdf", rows[1][0])
	assert.Equal(t, constants.AnomalyReasonNonInvoice, rows[1][1])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcd", 3))
}
