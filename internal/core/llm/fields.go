package llm

import (
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// DecodeFields reads a sanitized extraction document into typed fields plus
// the optional document-level confidence.
func DecodeFields(doc []byte) (entity.ExtractedFields, *float64, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("decode fields: %w", err)
	}

	var overall *float64
	fields := make(entity.ExtractedFields, len(m))
	for k, raw := range m {
		if k == entity.FieldConfidence {
			var c float64
			if err := json.Unmarshal(raw, &c); err == nil {
				c = entity.ClampConfidence(c)
				overall = &c
			}
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			fields[k] = entity.Bare(s)
			continue
		}
		var fv entity.FieldValue
		if err := json.Unmarshal(raw, &fv); err != nil {
			return nil, nil, fmt.Errorf("decode field %s: %w", k, err)
		}
		if fv.Confidence != nil {
			c := entity.ClampConfidence(*fv.Confidence)
			fv.Confidence = &c
		}
		fields[k] = fv
	}
	return fields, overall, nil
}
