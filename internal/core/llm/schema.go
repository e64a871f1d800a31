package llm

import "github.com/joseph-ayodele/invoice-pipeline/internal/entity"

// KnownFields lists the invoice fields an extractor may return.
var KnownFields = []string{
	entity.FieldVendorName,
	entity.FieldInvoiceNumber,
	entity.FieldInvoiceDate,
	entity.FieldTotalAmount,
	entity.FieldPONumber,
	entity.FieldTaxAmount,
	entity.FieldCurrency,
}

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Each field is either a bare string or {"value": string, "confidence": number}.
func BuildInvoiceJSONSchema() map[string]any {
	props := map[string]any{
		entity.FieldVendorName:    fieldProp(map[string]any{"type": "string"}),
		entity.FieldInvoiceNumber: fieldProp(map[string]any{"type": "string"}),
		entity.FieldInvoiceDate:   fieldProp(map[string]any{"type": "string"}),
		entity.FieldTotalAmount:   fieldProp(decimalProp()),
		entity.FieldPONumber:      fieldProp(map[string]any{"type": "string"}),
		entity.FieldTaxAmount:     fieldProp(decimalProp()),
		entity.FieldCurrency:      fieldProp(map[string]any{"type": "string", "minLength": 3, "maxLength": 3}),
		entity.FieldConfidence:    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	required := []string{
		entity.FieldVendorName,
		entity.FieldInvoiceNumber,
		entity.FieldInvoiceDate,
		entity.FieldTotalAmount,
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func fieldProp(value map[string]any) map[string]any {
	return map[string]any{
		"anyOf": []any{
			value,
			map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"value"},
				"properties": map[string]any{
					"value":      value,
					"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
				},
			},
		},
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^[^0-9]*\d[\d,]*(\.\d+)?[^0-9]*$`,
	}
}
