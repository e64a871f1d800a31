package llm

import (
	"context"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// Backend names reported in Extraction.Source.
const (
	SourceOpenAI = "openai"
	SourceRegex  = "regex"
	SourceCache  = "cache"
)

type ExtractRequest struct {
	Text            string
	FilenameHint    string
	DefaultCurrency string
}

// Extraction is the structured output of a FieldExtractor.
type Extraction struct {
	Fields entity.ExtractedFields
	// Confidence is the document-level confidence when the backend reports one.
	Confidence *float64
	Raw        []byte
	Source     string
}

// FieldExtractor is the interface the extraction stage depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (Extraction, error)
}
