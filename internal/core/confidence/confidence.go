// Package confidence reduces per-field extraction confidences to one score.
package confidence

import (
	"log/slog"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// Score returns the mean of the field confidences. Fields without a confidence
// are ignored; when no field carries one the extractor is treated as a
// high-trust path and FlatFieldConfidence is returned. Empty input scores 0.
func Score(fields entity.ExtractedFields) float64 {
	if len(fields) == 0 {
		return 0
	}
	var (
		sum float64
		n   int
	)
	for _, f := range fields {
		if f.Confidence == nil {
			continue
		}
		sum += entity.ClampConfidence(*f.Confidence)
		n++
	}
	if n == 0 {
		return constants.FlatFieldConfidence
	}
	return entity.ClampConfidence(sum / float64(n))
}

// ScoreAny scores decoded JSON: a map whose values are either bare values or
// objects with "value" and "confidence". Anything else scores 0. It never panics.
func ScoreAny(data any) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Error("confidence.score.panic", "panic", r)
			score = 0
		}
	}()

	m, ok := data.(map[string]any)
	if !ok || len(m) == 0 {
		return 0
	}
	fields := make(entity.ExtractedFields, len(m))
	for k, v := range m {
		nested, ok := v.(map[string]any)
		if !ok {
			fields[k] = entity.FieldValue{}
			continue
		}
		fv := entity.FieldValue{}
		if c, ok := toFloat(nested["confidence"]); ok {
			fv.Confidence = &c
		}
		fields[k] = fv
	}
	return Score(fields)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
