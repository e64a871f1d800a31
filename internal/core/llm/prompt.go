package llm

import (
	"strings"
)

const maxPromptText = 6000

// BuildSystemPrompt is the fixed instruction for invoice field extraction.
func BuildSystemPrompt(req ExtractRequest) string {
	defCur := strings.TrimSpace(req.DefaultCurrency)
	if defCur == "" {
		defCur = "USD"
	}
	parts := []string{
		"You are an invoice parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Fields: vendor_name, invoice_number, invoice_date, total_amount, and when visible po_number, tax_amount, currency.",
		"Each field may be an object {\"value\": string, \"confidence\": number between 0 and 1}.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Amounts are plain decimals without currency symbols.",
		"Currency must be a 3-letter ISO 4217 code; default to " + defCur + " if uncertain.",
		"If the document is not an invoice, return empty strings for the required fields.",
		"Never output null. If an optional field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt wraps the document text, truncated to a bounded size.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if req.FilenameHint != "" {
		b.WriteString("Filename: ")
		b.WriteString(req.FilenameHint)
		b.WriteString("\n\n")
	}
	b.WriteString("Document text:\n")
	if len(req.Text) > maxPromptText {
		b.WriteString(req.Text[:maxPromptText])
	} else {
		b.WriteString(req.Text)
	}
	return b.String()
}
