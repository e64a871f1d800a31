package entity

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Field names used in extraction output and validation error maps.
const (
	FieldVendorName    = "vendor_name"
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldTotalAmount   = "total_amount"
	FieldConfidence    = "confidence"
	FieldPONumber      = "po_number"
	FieldTaxAmount     = "tax_amount"
	FieldCurrency      = "currency"
)

// DateLayout is the only accepted invoice date form.
const DateLayout = "2006-01-02"

// Invoice is the structured result of extraction.
// Stages treat it as immutable; use the With* helpers to derive a modified copy.
type Invoice struct {
	VendorName    string           `json:"vendor_name"`
	InvoiceNumber string           `json:"invoice_number"`
	InvoiceDate   string           `json:"invoice_date"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	Confidence    float64          `json:"confidence"`
	PONumber      *string          `json:"po_number,omitempty"`
	TaxAmount     *decimal.Decimal `json:"tax_amount,omitempty"`
	Currency      *string          `json:"currency,omitempty"`
}

// Date parses InvoiceDate.
func (i Invoice) Date() (time.Time, error) {
	return time.Parse(DateLayout, i.InvoiceDate)
}

// WithConfidence returns a copy carrying the given (clamped) confidence.
func (i Invoice) WithConfidence(c float64) Invoice {
	i.Confidence = ClampConfidence(c)
	return i
}

// Clone returns a deep copy; optional pointers are not shared.
func (i Invoice) Clone() Invoice {
	if i.PONumber != nil {
		v := *i.PONumber
		i.PONumber = &v
	}
	if i.TaxAmount != nil {
		v := *i.TaxAmount
		i.TaxAmount = &v
	}
	if i.Currency != nil {
		v := *i.Currency
		i.Currency = &v
	}
	return i
}

// ClampConfidence forces c into [0,1]. NaN becomes 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
