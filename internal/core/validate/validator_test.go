package validate

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

func sample(number, total string, conf float64) *entity.Invoice {
	return &entity.Invoice{
		VendorName:    "ABC Corp Ltd.",
		InvoiceNumber: number,
		InvoiceDate:   "2024-02-18",
		TotalAmount:   decimal.RequireFromString(total),
		Confidence:    conf,
	}
}

func TestValidInvoice(t *testing.T) {
	v := NewValidator(nil)
	res, err := v.Validate(context.Background(), nil, sample("INV-2024-001", "7595.00", 0.955))
	require.NoError(t, err)
	assert.Equal(t, constants.ValidationValid, res.Status)
	assert.Empty(t, res.Errors)
}

func TestLowConfidence(t *testing.T) {
	v := NewValidator(nil)
	res, _ := v.Validate(context.Background(), nil, sample("INV-1", "100", 0.75))
	assert.Equal(t, constants.ValidationFailed, res.Status)
	assert.Equal(t, "Low confidence score: 0.75", res.Errors[entity.FieldConfidence])
}

func TestMissingAndMalformedFields(t *testing.T) {
	v := NewValidator(nil)
	inv := &entity.Invoice{InvoiceDate: "18/02/2024", Confidence: 0.9}
	res, _ := v.Validate(context.Background(), nil, inv)

	assert.Equal(t, entity.ReasonMissing, res.Errors[entity.FieldVendorName])
	assert.Equal(t, entity.ReasonMissing, res.Errors[entity.FieldInvoiceNumber])
	assert.Equal(t, ReasonInvalidDate, res.Errors[entity.FieldInvoiceDate])
	assert.Equal(t, entity.ReasonMissing, res.Errors[entity.FieldTotalAmount])
	assert.True(t, res.MissingVendor())
}

func TestNegativeTotal(t *testing.T) {
	v := NewValidator(nil)
	res, _ := v.Validate(context.Background(), nil, sample("INV-1", "-5", 0.9))
	assert.Equal(t, ReasonNegative, res.Errors[entity.FieldTotalAmount])
}

func TestDuplicateDetection(t *testing.T) {
	v := NewValidator(nil)
	first, _ := v.Validate(context.Background(), nil, sample("INV-2024-001", "100", 0.9))
	require.True(t, first.Valid())

	second, _ := v.Validate(context.Background(), nil, sample("INV-2024-001", "100", 0.9))
	assert.Equal(t, "Duplicate invoice number: INV-2024-001", second.Errors["duplicate"])
}

func TestEmptyNumberIsNotADuplicate(t *testing.T) {
	v := NewValidator(nil)
	v.Validate(context.Background(), nil, sample("", "100", 0.9))
	res, _ := v.Validate(context.Background(), nil, sample("", "100", 0.9))
	_, dup := res.Errors["duplicate"]
	assert.False(t, dup)
}

func TestOutlierTotal(t *testing.T) {
	v := NewValidator(nil)
	v.Validate(context.Background(), nil, sample("A", "1000", 0.9))

	res, _ := v.Validate(context.Background(), nil, sample("B", "7595.00", 0.9))
	assert.Equal(t, "Unusual total: 7595 (median: 1000)", res.Errors[entity.FieldTotalAmount])

	res, _ = v.Validate(context.Background(), nil, sample("C", "5000", 0.9))
	assert.True(t, res.Valid(), res.Errors)
}

func TestOutlierKeepsEarlierTotalMessage(t *testing.T) {
	v := NewValidator(nil)
	v.Validate(context.Background(), nil, sample("A", "1000", 0.9))

	res, _ := v.Validate(context.Background(), nil, sample("B", "-10", 0.9))
	assert.Equal(t, "Negative value not allowed; Unusual total: -10 (median: 1000)", res.Errors[entity.FieldTotalAmount])
}

func TestHistoryIsBounded(t *testing.T) {
	v := NewValidator(nil, WithHistorySize(2))
	for _, n := range []string{"A", "B", "C"} {
		v.Validate(context.Background(), nil, sample(n, "100", 0.9))
	}
	assert.Equal(t, 2, v.History().Len())

	res, _ := v.Validate(context.Background(), nil, sample("A", "100", 0.9))
	assert.True(t, res.Valid(), "A should have been evicted")
}

func TestConcurrentChecksSeeEachOther(t *testing.T) {
	v := NewValidator(nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	dups := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := v.Validate(context.Background(), nil, sample("SAME", "100", 0.9))
			if _, ok := res.Errors["duplicate"]; ok {
				mu.Lock()
				dups++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 19, dups)
	assert.Equal(t, 20, v.History().Len())
}

func TestNilInvoiceDegrades(t *testing.T) {
	v := NewValidator(nil)
	res, err := v.Validate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.False(t, res.Valid())
}

func TestCheckFields(t *testing.T) {
	cases := []struct {
		amount string
		want   string
	}{
		{"", entity.ReasonMissing},
		{"abc", ReasonInvalidNumber},
		{"-3.50", ReasonNegative},
		{"12.50", ""},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("amount=%q", c.amount), func(t *testing.T) {
			errs := CheckFields("V", "N", "2024-01-01", c.amount)
			assert.Equal(t, c.want, errs[entity.FieldTotalAmount])
		})
	}

	errs := CheckFields(" ", "", "2024-13-01", "1")
	assert.Equal(t, entity.ReasonMissing, errs[entity.FieldVendorName])
	assert.Equal(t, entity.ReasonMissing, errs[entity.FieldInvoiceNumber])
	assert.Equal(t, ReasonInvalidDate, errs[entity.FieldInvoiceDate])
}
