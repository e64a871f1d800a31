package schema

import (
	"testing"

	"entgo.io/ent/schema/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-pipeline/db/ent/schema/utils"
)

func TestInvoiceColumns(t *testing.T) {
	assert.Equal(t, []string{
		"record_key", "invoice_number", "file_name", "vendor_name", "invoice_date",
		"total_amount", "confidence", "outcome", "validation_status", "matching_status",
		"review_status", "document_key", "processed_at", "payload",
	}, ColumnNames(InvoiceColumns()))
}

func TestAnomalyColumns(t *testing.T) {
	assert.Equal(t, []string{"file_name", "run_id", "reason", "processed_at", "payload"},
		ColumnNames(AnomalyColumns()))
}

func TestColumnTypesAndKeys(t *testing.T) {
	byName := map[string]Column{}
	for _, c := range InvoiceColumns() {
		byName[c.Name] = c
	}
	assert.True(t, byName["record_key"].Key)
	assert.False(t, byName["invoice_number"].Key)
	assert.Equal(t, field.TypeFloat64, byName["confidence"].Type)
	assert.Equal(t, field.TypeTime, byName["processed_at"].Type)
	assert.Equal(t, field.TypeJSON, byName["payload"].Type)

	anomalies := AnomalyColumns()
	assert.Equal(t, "file_name", anomalies[0].Name)
	assert.True(t, anomalies[0].Key)
}

func TestOutcomeValidator(t *testing.T) {
	var validators []any
	for _, f := range (Invoice{}).Fields() {
		if d := f.Descriptor(); d.Name == "outcome" {
			validators = d.Validators
		}
	}
	require.Len(t, validators, 1)
	check, ok := validators[0].(func(string) error)
	require.True(t, ok)
	assert.NoError(t, check("anomaly"))
	assert.Error(t, check("done"))
}

func TestEnumValidator(t *testing.T) {
	v := utils.EnumValidator("a", "b")
	assert.NoError(t, v("a"))
	assert.Error(t, v("c"))
}
