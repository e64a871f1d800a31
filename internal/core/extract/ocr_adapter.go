package extract

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-pipeline/internal/core/ocr"
)

// DocumentOCR is the part of ocr.Extractor the adapter needs.
type DocumentOCR interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// OCRAdapter exposes OCR output as a TextExtractor. Text below the minimum
// confidence is still returned but flagged in Warnings, and text longer than
// the field extractor's budget is cut.
type OCRAdapter struct {
	extractor     DocumentOCR
	logger        *slog.Logger
	minConfidence float32
	maxChars      int
}

type OCRAdapterOption func(*OCRAdapter)

// WithMinOCRConfidence flags results scored below v. Zero disables the check.
func WithMinOCRConfidence(v float32) OCRAdapterOption {
	return func(a *OCRAdapter) { a.minConfidence = v }
}

// WithMaxTextChars truncates text to n runes. Zero keeps everything.
func WithMaxTextChars(n int) OCRAdapterOption {
	return func(a *OCRAdapter) { a.maxChars = n }
}

func NewOCRAdapter(e DocumentOCR, l *slog.Logger, opts ...OCRAdapterOption) *OCRAdapter {
	if l == nil {
		l = slog.Default()
	}
	a := &OCRAdapter{
		extractor: e,
		logger:    l,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *OCRAdapter) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	r, err := a.extractor.Extract(ctx, path)
	if err != nil {
		return TextExtractionResult{}, err
	}
	res := TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   r.Duration,
		Warnings:   append([]string(nil), r.Warnings...),
		Confidence: r.Confidence,
	}

	if a.minConfidence > 0 && res.Confidence < a.minConfidence {
		res.Warnings = append(res.Warnings, fmt.Sprintf("low ocr confidence %.2f", res.Confidence))
		a.logger.Warn("extract.ocr.low_confidence",
			"path", path,
			"method", res.Method,
			"confidence", res.Confidence,
			"min", a.minConfidence,
		)
	}
	if a.maxChars > 0 && utf8.RuneCountInString(res.Text) > a.maxChars {
		res.Text = string([]rune(res.Text)[:a.maxChars])
		res.Warnings = append(res.Warnings, fmt.Sprintf("text truncated to %d chars", a.maxChars))
		a.logger.Warn("extract.ocr.truncated", "path", path, "max_chars", a.maxChars)
	}
	if len(res.Warnings) > 0 {
		a.logger.Debug("extract.ocr.warnings", "path", path, "warnings", res.Warnings)
	}
	return res, nil
}
