// Package review decides whether an invoice can be approved automatically.
package review

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/stage"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

var errNilInvoice = errors.New("review: nil invoice")

type Reviewer struct {
	logger *slog.Logger
}

func NewReviewer(logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{logger: logger}
}

// Decide is the review rule: needs_review when confidence is below
// ConfidenceThreshold or validation did not pass.
func Decide(inv *entity.Invoice, vr entity.ValidationResult) constants.ReviewStatus {
	if inv.Confidence < constants.ConfidenceThreshold || !vr.Valid() {
		return constants.ReviewNeedsReview
	}
	return constants.ReviewApproved
}

func (r *Reviewer) Review(_ context.Context, rc *stage.RunContext, inv *entity.Invoice, vr entity.ValidationResult) (entity.ReviewResult, error) {
	if inv == nil {
		return entity.ReviewResult{}, errNilInvoice
	}
	log := r.logger
	if rc != nil {
		log = rc.Logger
	}

	snapshot := inv.Clone()
	res := entity.ReviewResult{Status: Decide(inv, vr), Invoice: &snapshot}
	if res.Status == constants.ReviewNeedsReview {
		res.ValidationErrors = make(map[string]string, len(vr.Errors))
		for k, v := range vr.Errors {
			res.ValidationErrors[k] = v
		}
	}
	log.Info("review.decided", "invoice_number", inv.InvoiceNumber, "status", res.Status, "confidence", inv.Confidence)
	return res, nil
}
