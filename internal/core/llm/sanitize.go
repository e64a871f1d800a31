package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

var synonyms = map[string]string{
	"vendor":         entity.FieldVendorName,
	"vendor_name":    entity.FieldVendorName,
	"supplier":       entity.FieldVendorName,
	"seller":         entity.FieldVendorName,
	"invoice_no":     entity.FieldInvoiceNumber,
	"invoice_id":     entity.FieldInvoiceNumber,
	"number":         entity.FieldInvoiceNumber,
	"date":           entity.FieldInvoiceDate,
	"issue_date":     entity.FieldInvoiceDate,
	"total":          entity.FieldTotalAmount,
	"amount":         entity.FieldTotalAmount,
	"amount_due":     entity.FieldTotalAmount,
	"po":             entity.FieldPONumber,
	"purchase_order": entity.FieldPONumber,
	"tax":            entity.FieldTaxAmount,
	"currency_code":  entity.FieldCurrency,
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms (vendor -> vendor_name, total -> total_amount, ...)
// - Drops null/empty optionals
// - Coerces numeric values to strings, bare or nested under "value"
// - Removes unknown keys (strict additionalProperties = false friendliness)
//
// It returns the cleaned document and a list describing each change.
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changes := make([]string, 0, 8)
	for from, to := range synonyms {
		if from == to {
			continue
		}
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changes = append(changes, from+"->"+to)
		}
	}

	for k, v := range m {
		if k == entity.FieldConfidence {
			if c, ok := coerceNumber(v); ok {
				m[k] = entity.ClampConfidence(c)
			} else {
				delete(m, k)
				changes = append(changes, k+"(type)")
			}
			continue
		}
		if !slices.Contains(KnownFields, k) {
			delete(m, k)
			changes = append(changes, k+"(unknown)")
			continue
		}

		cleaned, ok := coerceField(v)
		if !ok {
			delete(m, k)
			changes = append(changes, k+"(empty)")
			continue
		}
		m[k] = cleaned
	}

	if cur, ok := m[entity.FieldCurrency].(string); ok {
		m[entity.FieldCurrency] = strings.ToUpper(cur)
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changes) > 0 {
		slices.Sort(changes)
		logger.Debug("llm.sanitize.changed", "changes", changes)
	}
	return b, changes, nil
}

// coerceField normalizes a bare value or a {"value", "confidence"} object.
// ok=false means the field carries nothing and should be dropped.
func coerceField(v any) (any, bool) {
	if obj, isObj := v.(map[string]any); isObj {
		s, ok := coerceScalar(obj["value"])
		if !ok {
			return nil, false
		}
		out := map[string]any{"value": s}
		if c, ok := coerceNumber(obj["confidence"]); ok {
			out["confidence"] = entity.ClampConfidence(c)
		}
		return out, true
	}
	return coerceScalar(v)
}

func coerceScalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool, nil:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
