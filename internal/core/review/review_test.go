package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

func TestReviewDecisions(t *testing.T) {
	valid := entity.NewValidationResult(nil)
	failed := entity.NewValidationResult(map[string]string{"duplicate": "Duplicate invoice number: X"})

	cases := []struct {
		name string
		conf float64
		vr   entity.ValidationResult
		want constants.ReviewStatus
	}{
		{"confident and valid", 0.955, valid, constants.ReviewApproved},
		{"at threshold", 0.8, valid, constants.ReviewApproved},
		{"low confidence", 0.79, valid, constants.ReviewNeedsReview},
		{"validation failed", 0.99, failed, constants.ReviewNeedsReview},
	}
	r := NewReviewer(nil)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			inv := &entity.Invoice{InvoiceNumber: "X", Confidence: c.conf}
			res, err := r.Review(context.Background(), nil, inv, c.vr)
			require.NoError(t, err)
			assert.Equal(t, c.want, res.Status)
			require.NotNil(t, res.Invoice)
			assert.Equal(t, "X", res.Invoice.InvoiceNumber)
			if c.want == constants.ReviewApproved {
				assert.Nil(t, res.ValidationErrors)
			} else {
				assert.Equal(t, c.vr.Errors, res.ValidationErrors)
			}
		})
	}
}

func TestReviewNilInvoice(t *testing.T) {
	_, err := NewReviewer(nil).Review(context.Background(), nil, nil, entity.NewValidationResult(nil))
	assert.Error(t, err)
}
