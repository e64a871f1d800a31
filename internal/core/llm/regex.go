package llm

import (
	"context"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// RegexExtractor is the deterministic fallback backend. Each found field gets
// FallbackFieldConfidence; each required field not found is returned empty
// with confidence 0.
type RegexExtractor struct {
	patterns map[string]*regexp.Regexp
}

var defaultPatterns = map[string]*regexp.Regexp{
	entity.FieldVendorName:    regexp.MustCompile(`(?im)^\s*(?:vendor|supplier|from)\s*:\s*(.+?)\s*$`),
	entity.FieldInvoiceNumber: regexp.MustCompile(`(?im)invoice\s*(?:#|no\b\.?|number\b)\s*:?\s*([A-Za-z0-9][A-Za-z0-9\-_/]*)`),
	entity.FieldInvoiceDate:   regexp.MustCompile(`(?im)^\s*(?:invoice\s+)?date\s*:\s*(\d{4}-\d{2}-\d{2})`),
	entity.FieldTotalAmount:   regexp.MustCompile(`(?im)^\s*(?:grand\s+)?total(?:\s+due)?\s*:\s*[$€£]?\s*([\d,]+\.\d{2})`),
	entity.FieldPONumber:      regexp.MustCompile(`(?im)\bPO\s*(?:#|no\b\.?|number\b)?\s*:\s*([A-Za-z0-9][A-Za-z0-9\-_/]*)`),
	entity.FieldTaxAmount:     regexp.MustCompile(`(?im)^\s*(?:sales\s+)?tax\s*:\s*[$€£]?\s*([\d,]+\.\d{2})`),
	entity.FieldCurrency:      regexp.MustCompile(`(?im)\bcurrency\s*:\s*([A-Za-z]{3})\b`),
}

var requiredFields = []string{
	entity.FieldVendorName,
	entity.FieldInvoiceNumber,
	entity.FieldInvoiceDate,
	entity.FieldTotalAmount,
}

func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{patterns: defaultPatterns}
}

// ExtractFields never fails.
func (r *RegexExtractor) ExtractFields(_ context.Context, req ExtractRequest) (Extraction, error) {
	return Extraction{Fields: r.Extract(req.Text), Source: SourceRegex}, nil
}

// Extract applies the patterns to text.
func (r *RegexExtractor) Extract(text string) entity.ExtractedFields {
	fields := make(entity.ExtractedFields, len(r.patterns))
	for name, re := range r.patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 || strings.TrimSpace(m[1]) == "" {
			continue
		}
		fields[name] = entity.Scored(strings.TrimSpace(m[1]), constants.FallbackFieldConfidence)
	}
	for _, name := range requiredFields {
		if _, ok := fields[name]; !ok {
			fields[name] = entity.Scored("", 0)
		}
	}
	return fields
}
