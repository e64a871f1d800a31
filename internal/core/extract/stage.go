// Package extract implements the extraction stage: document text via a
// TextExtractor, fields via a primary FieldExtractor with a regex fallback.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/confidence"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/stage"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

type Stage struct {
	text            TextExtractor
	primary         llm.FieldExtractor
	fallback        llm.FieldExtractor
	defaultCurrency string
	logger          *slog.Logger
}

type Option func(*Stage)

// WithPrimary sets the preferred field extractor (usually the LLM).
func WithPrimary(fe llm.FieldExtractor) Option {
	return func(s *Stage) { s.primary = fe }
}

// WithFallback replaces the regex fallback.
func WithFallback(fe llm.FieldExtractor) Option {
	return func(s *Stage) {
		if fe != nil {
			s.fallback = fe
		}
	}
}

// WithDefaultCurrency sets the currency recorded when none was extracted.
func WithDefaultCurrency(c string) Option {
	return func(s *Stage) { s.defaultCurrency = strings.ToUpper(strings.TrimSpace(c)) }
}

func NewStage(text TextExtractor, logger *slog.Logger, opts ...Option) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stage{
		text:     text,
		fallback: llm.NewRegexExtractor(),
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Extract reads the document and returns a new invoice. It fails with
// *common.ExtractionError when the document cannot be read or every backend fails.
func (s *Stage) Extract(ctx context.Context, rc *stage.RunContext, path string) (*entity.Invoice, error) {
	log := s.logger
	if rc != nil {
		log = rc.Logger
	}
	start := time.Now()

	txt, err := s.text.Extract(ctx, path)
	if err != nil {
		log.Error("extract.text.failed", "path", path, "error", err)
		return nil, &common.ExtractionError{Path: path, Cause: err}
	}

	req := llm.ExtractRequest{
		Text:            txt.Text,
		FilenameHint:    filepath.Base(path),
		DefaultCurrency: s.defaultCurrency,
	}
	ext, err := s.extractFields(ctx, log, req)
	if err != nil {
		return nil, &common.ExtractionError{Path: path, Cause: err}
	}

	inv := BuildInvoice(ext, s.defaultCurrency)
	log.Info("extract.ok",
		"source", ext.Source,
		"text_method", txt.Method,
		"invoice_number", inv.InvoiceNumber,
		"confidence", inv.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &inv, nil
}

func (s *Stage) extractFields(ctx context.Context, log *slog.Logger, req llm.ExtractRequest) (llm.Extraction, error) {
	if s.primary != nil {
		ext, err := s.primary.ExtractFields(ctx, req)
		if err == nil {
			return ext, nil
		}
		log.Warn("extract.primary.failed", "error", err, "fallback", true)
	}
	ext, err := s.fallback.ExtractFields(ctx, req)
	if err != nil {
		log.Error("extract.fallback.failed", "error", err)
		return llm.Extraction{}, fmt.Errorf("fallback extraction: %w", err)
	}
	return ext, nil
}

// BuildInvoice converts extracted fields into an Invoice. An unparseable total
// becomes zero and its field confidence drops to 0, which also disqualifies a
// backend-reported document confidence.
func BuildInvoice(ext llm.Extraction, defaultCurrency string) entity.Invoice {
	fields := make(entity.ExtractedFields, len(ext.Fields))
	for k, v := range ext.Fields {
		fields[k] = v
	}
	get := func(name string) string { return strings.TrimSpace(fields.Get(name)) }

	inv := entity.Invoice{
		VendorName:    get(entity.FieldVendorName),
		InvoiceNumber: get(entity.FieldInvoiceNumber),
		InvoiceDate:   get(entity.FieldInvoiceDate),
	}

	amountOK := true
	if total, ok := NormalizeAmount(get(entity.FieldTotalAmount)); ok {
		inv.TotalAmount = total
	} else {
		amountOK = false
		inv.TotalAmount = decimal.Zero
		fields[entity.FieldTotalAmount] = entity.Scored(get(entity.FieldTotalAmount), 0)
	}

	if tax, ok := NormalizeAmount(get(entity.FieldTaxAmount)); ok {
		inv.TaxAmount = &tax
	}
	if po := get(entity.FieldPONumber); po != "" {
		inv.PONumber = &po
	}
	if cur, _ := constants.CanonicalizeCurrency(get(entity.FieldCurrency)); cur != "" {
		c := string(cur)
		inv.Currency = &c
	} else if defaultCurrency != "" {
		c := defaultCurrency
		inv.Currency = &c
	}

	if ext.Confidence != nil && amountOK {
		inv.Confidence = entity.ClampConfidence(*ext.Confidence)
	} else {
		inv.Confidence = confidence.Score(fields)
	}
	return inv
}
