// Package validate implements the validation stage: required fields, formats,
// confidence threshold and history-based anomaly checks.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/stage"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

const (
	ReasonInvalidNumber = "Invalid numeric format"
	ReasonNegative      = "Negative value not allowed"
	ReasonInvalidDate   = "Invalid date format (expected YYYY-MM-DD)"
)

type Validator struct {
	history *History
	logger  *slog.Logger
}

type Option func(*Validator)

// WithHistory shares an existing history between validators.
func WithHistory(h *History) Option {
	return func(v *Validator) {
		if h != nil {
			v.history = h
		}
	}
}

func WithHistorySize(n int) Option {
	return func(v *Validator) { v.history = NewHistory(n) }
}

func NewValidator(logger *slog.Logger, opts ...Option) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Validator{logger: logger}
	for _, o := range opts {
		o(v)
	}
	if v.history == nil {
		v.history = NewHistory(DefaultHistorySize)
	}
	return v
}

// Validate never returns an error; an internal failure degrades to a failed result.
func (v *Validator) Validate(_ context.Context, rc *stage.RunContext, inv *entity.Invoice) (res entity.ValidationResult, err error) {
	log := v.logger
	if rc != nil {
		log = rc.Logger
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("validate.panic", "panic", r)
			res = entity.NewValidationResult(map[string]string{"validation": fmt.Sprintf("internal error: %v", r)})
			err = nil
		}
	}()

	if inv == nil {
		return entity.NewValidationResult(map[string]string{"invoice": entity.ReasonMissing}), nil
	}

	errs := checkInvoice(inv)
	if inv.Confidence < constants.ConfidenceThreshold {
		errs[entity.FieldConfidence] = "Low confidence score: " + strconv.FormatFloat(inv.Confidence, 'f', -1, 64)
	}
	for k, msg := range v.history.Check(inv) {
		if prev, ok := errs[k]; ok {
			msg = prev + "; " + msg
		}
		errs[k] = msg
	}

	res = entity.NewValidationResult(errs)
	log.Info("validate.done",
		"invoice_number", inv.InvoiceNumber,
		"status", res.Status,
		"errors", len(res.Errors),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// History exposes the shared anomaly history.
func (v *Validator) History() *History { return v.history }

func checkInvoice(inv *entity.Invoice) map[string]string {
	errs := requiredAndDate(inv.VendorName, inv.InvoiceNumber, inv.InvoiceDate)
	switch {
	case inv.TotalAmount.IsZero():
		errs[entity.FieldTotalAmount] = entity.ReasonMissing
	case inv.TotalAmount.IsNegative():
		errs[entity.FieldTotalAmount] = ReasonNegative
	}
	return errs
}

// CheckFields applies the field rules to raw text values, as submitted in a
// manual correction. It does not consult or update the history.
func CheckFields(vendor, number, date, amount string) map[string]string {
	errs := requiredAndDate(vendor, number, date)
	amount = strings.TrimSpace(amount)
	if amount == "" {
		errs[entity.FieldTotalAmount] = entity.ReasonMissing
		return errs
	}
	d, err := decimal.NewFromString(amount)
	switch {
	case err != nil:
		errs[entity.FieldTotalAmount] = ReasonInvalidNumber
	case d.IsNegative():
		errs[entity.FieldTotalAmount] = ReasonNegative
	}
	return errs
}

func requiredAndDate(vendor, number, date string) map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(vendor) == "" {
		errs[entity.FieldVendorName] = entity.ReasonMissing
	}
	if strings.TrimSpace(number) == "" {
		errs[entity.FieldInvoiceNumber] = entity.ReasonMissing
	}
	if strings.TrimSpace(date) == "" {
		errs[entity.FieldInvoiceDate] = entity.ReasonMissing
	} else if _, err := time.Parse(entity.DateLayout, strings.TrimSpace(date)); err != nil {
		errs[entity.FieldInvoiceDate] = ReasonInvalidDate
	}
	return errs
}
