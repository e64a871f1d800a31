package constants

// ConfidenceThreshold is shared by validation (low-confidence error) and
// review (auto-approval). Both must agree.
const ConfidenceThreshold = 0.8

// MatchThreshold is the minimum combined score for a PO match.
const MatchThreshold = 0.85

// Confidence assigned when extraction returned flat values without per-field scores.
const FlatFieldConfidence = 0.95

// Confidence the regex fallback assigns to every field it found.
const FallbackFieldConfidence = 0.8

// Anomaly records carry this forced confidence.
const AnomalyConfidence = 0.1

const AnomalyReasonNonInvoice = "Non-invoice document detected"

// Weights for vendor and amount similarity when the PO table carries amounts.
const (
	MatchVendorWeight = 0.6
	MatchAmountWeight = 0.4
)
