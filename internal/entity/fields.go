package entity

// FieldValue is one extracted value with an optional confidence.
type FieldValue struct {
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ExtractedFields maps field name to value, as produced by an extraction backend.
type ExtractedFields map[string]FieldValue

// Get returns the value for name, or "" when absent.
func (f ExtractedFields) Get(name string) string {
	return f[name].Value
}

// Scored builds a FieldValue with a confidence.
func Scored(value string, confidence float64) FieldValue {
	c := confidence
	return FieldValue{Value: value, Confidence: &c}
}

// Bare builds a FieldValue without a confidence.
func Bare(value string) FieldValue {
	return FieldValue{Value: value}
}
