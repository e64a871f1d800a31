package entity

import (
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
)

// StageTimings holds wall-clock seconds per stage. Stages never reached stay 0.
type StageTimings struct {
	Extraction float64 `json:"extraction_time"`
	Validation float64 `json:"validation_time"`
	Matching   float64 `json:"matching_time"`
	Review     float64 `json:"review_time"`
	Total      float64 `json:"total_time"`
}

// Sum sets Total to the sum of the stage timings.
func (t StageTimings) Sum() StageTimings {
	t.Total = t.Extraction + t.Validation + t.Matching + t.Review
	return t
}

// PipelineRun is the record produced for one document. Every failure mode is
// encoded here; the orchestrator never returns an error.
type PipelineRun struct {
	RunID       string               `json:"run_id"`
	FileName    string               `json:"file_name"`
	SourcePath  string               `json:"source_path"`
	Outcome     constants.RunOutcome `json:"outcome"`
	ProcessedAt time.Time            `json:"processed_at"`

	Invoice    *Invoice          `json:"extracted_data,omitempty"`
	Validation *ValidationResult `json:"validation_result,omitempty"`
	Match      MatchResult       `json:"matching_result"`
	Review     ReviewResult      `json:"review_result"`

	ValidationStatus constants.ValidationStatus `json:"validation_status"`
	MatchingStatus   constants.MatchStatus      `json:"matching_status"`
	ReviewStatus     constants.ReviewStatus     `json:"review_status"`

	Timings StageTimings `json:"timings"`

	FailedStage  string `json:"failed_stage,omitempty"`
	Message      string `json:"message,omitempty"`
	Reason       string `json:"reason,omitempty"`
	DocumentKey  string `json:"document_key,omitempty"`
	PersistError string `json:"persist_error,omitempty"`
}

// NewPipelineRun returns a run with every stage marked as not reached.
func NewPipelineRun(runID, sourcePath string, now time.Time) *PipelineRun {
	return &PipelineRun{
		RunID:            runID,
		FileName:         filepath.Base(sourcePath),
		SourcePath:       sourcePath,
		ProcessedAt:      now.UTC(),
		Match:            SkippedMatch(),
		Review:           SkippedReview(),
		ValidationStatus: constants.ValidationPending,
		MatchingStatus:   constants.MatchSkipped,
		ReviewStatus:     constants.ReviewSkipped,
	}
}

// InvoiceNumber returns the extracted invoice number, or "".
func (r *PipelineRun) InvoiceNumber() string {
	if r == nil || r.Invoice == nil {
		return ""
	}
	return r.Invoice.InvoiceNumber
}

// RecordKey is the key a run is stored under: the invoice number when one
// was extracted, otherwise the file name.
func (r *PipelineRun) RecordKey() string {
	if n := r.InvoiceNumber(); n != "" {
		return n
	}
	return "file:" + r.FileName
}

// Clone returns a deep copy of the run.
func (r *PipelineRun) Clone() *PipelineRun {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Invoice != nil {
		inv := r.Invoice.Clone()
		cp.Invoice = &inv
	}
	if r.Validation != nil {
		vr := NewValidationResult(r.Validation.Errors)
		vr.Status = r.Validation.Status
		cp.Validation = &vr
	}
	if r.Match.PONumber != nil {
		po := *r.Match.PONumber
		cp.Match.PONumber = &po
	}
	if r.Review.Invoice != nil {
		inv := r.Review.Invoice.Clone()
		cp.Review.Invoice = &inv
	}
	return &cp
}
