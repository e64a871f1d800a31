package constants

// Stable values: these exact strings are persisted.

// ValidationStatus is the outcome of the validation stage.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending" // stage not reached
	ValidationValid   ValidationStatus = "valid"
	ValidationFailed  ValidationStatus = "failed"
	ValidationErrored ValidationStatus = "error" // stage raised after retries
)

// MatchStatus is the outcome of the PO matching stage.
type MatchStatus string

const (
	MatchMatched   MatchStatus = "matched"
	MatchUnmatched MatchStatus = "unmatched"
	MatchSkipped   MatchStatus = "skipped"
	MatchError     MatchStatus = "error"
)

// ReviewStatus is the human-review routing decision.
type ReviewStatus string

const (
	ReviewApproved    ReviewStatus = "approved"
	ReviewNeedsReview ReviewStatus = "needs_review"
	ReviewRejected    ReviewStatus = "rejected"
	ReviewSkipped     ReviewStatus = "skipped"
	ReviewError       ReviewStatus = "error"
)

// ReviewDecisions are the statuses a human reviewer may submit.
var ReviewDecisions = []string{string(ReviewApproved), string(ReviewRejected), string(ReviewNeedsReview)}

// RunOutcome classifies how a pipeline run ended.
type RunOutcome string

const (
	OutcomeSuccess                RunOutcome = "success"
	OutcomeValidationShortCircuit RunOutcome = "validation_short_circuit"
	OutcomeAnomaly                RunOutcome = "anomaly"
	OutcomeError                  RunOutcome = "error"
)

// Outcomes lists every RunOutcome.
var Outcomes = []string{
	string(OutcomeSuccess),
	string(OutcomeValidationShortCircuit),
	string(OutcomeAnomaly),
	string(OutcomeError),
}
