package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

func TestNormalizeAndSanitizeJSON(t *testing.T) {
	raw := []byte(`{
		"vendor": "ABC Corp Ltd.",
		"invoice_number": {"value": "INV-2024-001", "confidence": 0.9},
		"invoice_date": "2024-02-18",
		"total": 7595,
		"tax_amount": null,
		"currency": "usd",
		"notes": "thank you",
		"confidence": 1.4
	}`)

	cleaned, changes, err := NormalizeAndSanitizeJSON(raw, nil)
	require.NoError(t, err)
	assert.Contains(t, changes, "vendor->vendor_name")
	assert.Contains(t, changes, "notes(unknown)")
	assert.Contains(t, changes, "tax_amount(empty)")

	var m map[string]any
	require.NoError(t, json.Unmarshal(cleaned, &m))
	assert.Equal(t, "ABC Corp Ltd.", m["vendor_name"])
	assert.Equal(t, "7595", m["total_amount"])
	assert.Equal(t, "USD", m["currency"])
	assert.Equal(t, 1.0, m["confidence"])
	assert.NotContains(t, m, "notes")

	require.NoError(t, ValidateInvoiceJSON(cleaned))
}

func TestSchemaRejectsMissingRequired(t *testing.T) {
	err := ValidateInvoiceJSON([]byte(`{"vendor_name":"Acme"}`))
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Empty(t, se.Fields)
}

func TestSchemaRejectsNonNumericAmount(t *testing.T) {
	doc := `{"vendor_name":"A","invoice_number":"1","invoice_date":"2024-01-01","total_amount":"lots"}`
	err := ValidateInvoiceJSON([]byte(doc))
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"total_amount"}, se.Fields)
}

func TestInvoiceSchemaCompiledOnce(t *testing.T) {
	a, err := InvoiceSchema()
	require.NoError(t, err)
	b, err := InvoiceSchema()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestDecodeFields(t *testing.T) {
	doc := []byte(`{"vendor_name":"Acme","total_amount":{"value":"10.00","confidence":0.7},"confidence":0.96}`)
	fields, overall, err := DecodeFields(doc)
	require.NoError(t, err)

	require.NotNil(t, overall)
	assert.Equal(t, 0.96, *overall)
	assert.Equal(t, "Acme", fields.Get(entity.FieldVendorName))
	assert.Nil(t, fields[entity.FieldVendorName].Confidence)
	require.NotNil(t, fields[entity.FieldTotalAmount].Confidence)
	assert.Equal(t, 0.7, *fields[entity.FieldTotalAmount].Confidence)

	_, _, err = DecodeFields([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestRegexExtractor(t *testing.T) {
	text := "INVOICE\nVendor: ABC Corp Ltd.\nInvoice #: INV-2024-001\nDate: 2024-02-18\nDue Date: 2024-03-18\nSubtotal: $7,000.00\nTax: $595.00\nTotal: $7,595.00\nPO Number: PO-77\n"
	res, err := NewRegexExtractor().ExtractFields(context.Background(), ExtractRequest{Text: text})
	require.NoError(t, err)
	f := res.Fields

	assert.Equal(t, SourceRegex, res.Source)
	assert.Equal(t, "ABC Corp Ltd.", f.Get(entity.FieldVendorName))
	assert.Equal(t, "INV-2024-001", f.Get(entity.FieldInvoiceNumber))
	assert.Equal(t, "2024-02-18", f.Get(entity.FieldInvoiceDate))
	assert.Equal(t, "7,595.00", f.Get(entity.FieldTotalAmount))
	assert.Equal(t, "595.00", f.Get(entity.FieldTaxAmount))
	assert.Equal(t, "PO-77", f.Get(entity.FieldPONumber))
	assert.Equal(t, 0.8, *f[entity.FieldVendorName].Confidence)
}

func TestRegexExtractorMissingFields(t *testing.T) {
	f := NewRegexExtractor().Extract("Dear customer, thanks for shopping.")
	for _, name := range []string{entity.FieldVendorName, entity.FieldInvoiceNumber, entity.FieldInvoiceDate, entity.FieldTotalAmount} {
		require.Contains(t, f, name)
		assert.Empty(t, f.Get(name))
		assert.Zero(t, *f[name].Confidence)
	}
	assert.NotContains(t, f, entity.FieldPONumber)
}

type countingExtractor struct {
	calls int
	err   error
}

func (c *countingExtractor) ExtractFields(context.Context, ExtractRequest) (Extraction, error) {
	c.calls++
	if c.err != nil {
		return Extraction{}, c.err
	}
	return Extraction{Fields: entity.ExtractedFields{"vendor_name": entity.Scored("Acme", 0.9)}, Source: SourceOpenAI}, nil
}

func TestCachedExtractor(t *testing.T) {
	next := &countingExtractor{}
	c, err := NewCachedExtractor(next, 16, time.Minute, nil)
	require.NoError(t, err)
	defer c.Close()

	req := ExtractRequest{Text: "invoice text"}
	first, err := c.ExtractFields(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceOpenAI, first.Source)

	second, err := c.ExtractFields(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, "Acme", second.Fields.Get("vendor_name"))
	assert.Equal(t, 1, next.calls)

	_, err = c.ExtractFields(context.Background(), ExtractRequest{Text: "other"})
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedExtractorDoesNotCacheErrors(t *testing.T) {
	next := &countingExtractor{err: errors.New("rate limited")}
	c, err := NewCachedExtractor(next, 16, 0, nil)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 2; i++ {
		_, err := c.ExtractFields(context.Background(), ExtractRequest{Text: "t"})
		assert.Error(t, err)
	}
	assert.Equal(t, 2, next.calls)
}

func TestPrompts(t *testing.T) {
	req := ExtractRequest{Text: "hello", FilenameHint: "a.pdf", DefaultCurrency: "EUR"}
	assert.Contains(t, BuildSystemPrompt(req), "default to EUR")
	assert.Contains(t, BuildUserPrompt(req), "Filename: a.pdf")
}
