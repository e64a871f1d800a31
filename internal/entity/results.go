package entity

import (
	"errors"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// ReasonMissing is the error text recorded for a required field that is absent.
const ReasonMissing = "Missing"

// ErrMissingVendor marks a validation failure caused by an absent vendor name.
// The orchestrator routes such failures to the anomaly sink.
var ErrMissingVendor = errors.New("vendor name missing")

// ValidationResult is the outcome of the validation stage.
type ValidationResult struct {
	Status constants.ValidationStatus `json:"status"`
	Errors map[string]string          `json:"errors"`
}

// NewValidationResult derives the status from the error map. The map is copied.
func NewValidationResult(errs map[string]string) ValidationResult {
	cp := make(map[string]string, len(errs))
	for k, v := range errs {
		cp[k] = v
	}
	status := constants.ValidationValid
	if len(cp) > 0 {
		status = constants.ValidationFailed
	}
	return ValidationResult{Status: status, Errors: cp}
}

func (v ValidationResult) Valid() bool {
	return v.Status == constants.ValidationValid
}

// MissingVendor reports whether the vendor name was flagged as missing.
func (v ValidationResult) MissingVendor() bool {
	return v.Errors[FieldVendorName] == ReasonMissing
}

// MatchResult is the outcome of PO matching.
type MatchResult struct {
	Status          constants.MatchStatus `json:"status"`
	PONumber        *string               `json:"po_number"`
	MatchConfidence float64               `json:"match_confidence"`
	Error           string                `json:"error,omitempty"`
}

func SkippedMatch() MatchResult {
	return MatchResult{Status: constants.MatchSkipped}
}

func ErroredMatch(err error) MatchResult {
	return MatchResult{Status: constants.MatchError, Error: err.Error()}
}

// ReviewResult is the outcome of the review stage.
type ReviewResult struct {
	Status           constants.ReviewStatus `json:"status"`
	Invoice          *Invoice               `json:"invoice_data,omitempty"`
	ValidationErrors map[string]string      `json:"validation_errors,omitempty"`
	Error            string                 `json:"error,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
}

func SkippedReview() ReviewResult {
	return ReviewResult{Status: constants.ReviewSkipped}
}

func ErroredReview(err error) ReviewResult {
	return ReviewResult{Status: constants.ReviewError, Error: err.Error()}
}
