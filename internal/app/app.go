// Package app assembles the pipeline components from configuration.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/extract"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/llm/openai"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/match"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/ocr"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/retry"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/review"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/validate"
	"github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

// App holds the long-lived components shared by the binaries.
type App struct {
	Config    *common.Config
	Store     repository.InvoiceStore
	Documents repository.DocumentStore
	Processor *core.Processor
	Logger    *slog.Logger

	closeCache func()
}

// Option adjusts the stages before the processor is assembled.
type Option func(*options)

type options struct {
	text    extract.TextExtractor
	primary llm.FieldExtractor
	noLLM   bool
}

// WithTextExtractor replaces the OCR-backed text extractor.
func WithTextExtractor(t extract.TextExtractor) Option {
	return func(o *options) { o.text = t }
}

// WithFieldExtractor replaces the configured LLM backend.
func WithFieldExtractor(fe llm.FieldExtractor) Option {
	return func(o *options) { o.primary = fe }
}

// WithoutLLM runs extraction on the regex backend only.
func WithoutLLM() Option {
	return func(o *options) { o.noLLM = true }
}

// Build opens the store and document store, loads the PO table and wires the
// processor. Close must be called to release the store.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	docs, err := repository.OpenDocumentStore(ctx, cfg.Storage, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	table, err := match.LoadTable(cfg.Matching.POTablePath)
	if err != nil {
		_ = store.Close()
		return nil, common.NewAppError("CONFIG_ERROR", "loading PO table", err)
	}
	logger.Info("po table loaded", "path", cfg.Matching.POTablePath, "rows", len(table.Rows), "has_amount", table.HasAmount)

	text := o.text
	if text == nil {
		ocrCfg := ocr.Config{
			TesseractLang: cfg.OCR.Language,
			TessdataDir:   cfg.OCR.TessdataDir,
			Timeout:       cfg.OCR.Timeout,
		}
		if missing := ocr.MissingTools(ocrCfg); len(missing) > 0 {
			logger.Warn("app.ocr.tools_missing", "tools", missing)
		}
		text = extract.NewOCRAdapter(ocr.NewExtractor(ocrCfg, logger), logger,
			extract.WithMinOCRConfidence(cfg.OCR.MinConfidence),
			extract.WithMaxTextChars(cfg.OCR.MaxTextChars),
		)
	}

	primary, err := primaryExtractor(cfg.LLM, o, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	stageOpts := []extract.Option{extract.WithDefaultCurrency(cfg.Pipeline.DefaultCurrency)}
	if primary != nil {
		stageOpts = append(stageOpts, extract.WithPrimary(primary))
	}

	stages := core.Stages{
		Extractor: extract.NewStage(text, logger, stageOpts...),
		Validator: validate.NewValidator(logger, validate.WithHistorySize(cfg.Pipeline.HistorySize)),
		Matcher:   match.NewMatcher(table, logger, match.WithThreshold(cfg.Matching.Threshold)),
		Reviewer:  review.NewReviewer(logger),
	}

	procOpts := []core.Option{
		core.WithRetryPolicy(retry.Policy{MaxAttempts: cfg.Pipeline.RetryAttempts, BaseDelay: cfg.Pipeline.RetryBaseDelay}),
		core.WithStagingDir(cfg.Pipeline.StagingDir),
	}
	if docs != nil {
		procOpts = append(procOpts, core.WithDocumentStore(docs))
	}
	proc, err := core.NewProcessor(stages, store, logger, procOpts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("app.build.ok", "store", cfg.Database.Driver, "documents", cfg.Storage.Backend,
		"llm", cfg.LLM.Provider, "elapsed_ms", time.Since(start).Milliseconds())
	a := &App{Config: cfg, Store: store, Documents: docs, Processor: proc, Logger: logger}
	if c, ok := primary.(*llm.CachedExtractor); ok {
		a.closeCache = c.Close
	}
	return a, nil
}

func primaryExtractor(cfg common.LLMConfig, o options, logger *slog.Logger) (llm.FieldExtractor, error) {
	if o.noLLM {
		return nil, nil
	}
	next := o.primary
	if next == nil {
		switch cfg.Provider {
		case common.ProviderNone:
			return nil, nil
		case common.ProviderOpenAI:
			next = openai.NewClient(openai.Config{
				APIKey:      cfg.APIKey,
				BaseURL:     cfg.BaseURL,
				Model:       cfg.Model,
				Temperature: cfg.Temperature,
				Timeout:     cfg.Timeout,
			}, logger)
		default:
			return nil, common.NewAppError("CONFIG_ERROR", "unknown LLM provider "+cfg.Provider, common.ErrInvalidInput)
		}
	}
	if cfg.CacheEntries <= 0 {
		return next, nil
	}
	return llm.NewCachedExtractor(next, cfg.CacheEntries, cfg.CacheTTL, logger)
}

// Close releases the store and the extraction cache.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.closeCache != nil {
		a.closeCache()
	}
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
