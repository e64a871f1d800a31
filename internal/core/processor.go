// Package core holds the invoice processing orchestrator.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/retry"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/stage"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// RunSink receives finished runs. UpsertInvoice is idempotent on the record
// key, AppendAnomaly on the file name.
type RunSink interface {
	UpsertInvoice(ctx context.Context, run *entity.PipelineRun) error
	AppendAnomaly(ctx context.Context, run *entity.PipelineRun) error
}

// DocumentStore retains source documents.
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

// Stages groups the four stage implementations the processor sequences.
type Stages struct {
	Extractor stage.Extractor
	Validator stage.Validator
	Matcher   stage.Matcher
	Reviewer  stage.Reviewer
}

// Processor runs documents through extraction, validation, matching and review.
type Processor struct {
	stages     Stages
	sink       RunSink
	docs       DocumentStore
	policy     retry.Policy
	stagingDir string
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Processor)

func WithRetryPolicy(p retry.Policy) Option {
	return func(pr *Processor) { pr.policy = p }
}

// WithStagingDir makes the processor copy each document into dir before
// extraction.
func WithStagingDir(dir string) Option {
	return func(pr *Processor) { pr.stagingDir = dir }
}

func WithDocumentStore(ds DocumentStore) Option {
	return func(pr *Processor) { pr.docs = ds }
}

func WithClock(now func() time.Time) Option {
	return func(pr *Processor) {
		if now != nil {
			pr.now = now
		}
	}
}

// NewProcessor fails when a stage or the sink is missing.
func NewProcessor(stages Stages, sink RunSink, logger *slog.Logger, opts ...Option) (*Processor, error) {
	var missing []string
	if stages.Extractor == nil {
		missing = append(missing, "extractor")
	}
	if stages.Validator == nil {
		missing = append(missing, "validator")
	}
	if stages.Matcher == nil {
		missing = append(missing, "matcher")
	}
	if stages.Reviewer == nil {
		missing = append(missing, "reviewer")
	}
	if sink == nil {
		missing = append(missing, "sink")
	}
	if len(missing) > 0 {
		return nil, common.NewAppError("CONFIG_ERROR", "processor missing "+strings.Join(missing, ", "), common.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		stages: stages,
		sink:   sink,
		policy: retry.DefaultPolicy(),
		logger: logger,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ProcessDocument runs one document through the pipeline. It never returns an
// error: every failure is encoded in the returned run.
func (p *Processor) ProcessDocument(ctx context.Context, path string, persistDocument bool) *entity.PipelineRun {
	rc := stage.NewRunContext(p.logger, path)
	run := entity.NewPipelineRun(rc.RunID, path, p.now())
	if reqID := common.RequestIDFromContext(ctx); reqID != "" {
		rc.Logger = rc.Logger.With("request_id", reqID)
	}
	log := rc.Logger
	ctx = common.WithLogger(common.WithRunID(ctx, rc.RunID), log)
	start := time.Now()
	log.Info("processor.run.start", "path", path, "persist_document", persistDocument)

	work, cleanup := p.stageDocument(log, path)
	defer cleanup()

	p.execute(ctx, rc, run, work, persistDocument)

	log.Info("processor.run.done",
		"outcome", run.Outcome,
		"validation_status", run.ValidationStatus,
		"matching_status", run.MatchingStatus,
		"review_status", run.ReviewStatus,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return run
}

func (p *Processor) execute(ctx context.Context, rc *stage.RunContext, run *entity.PipelineRun, path string, persistDocument bool) {
	inv, err := runStage(ctx, p, rc, stage.Extraction, func(ctx context.Context) (*entity.Invoice, error) {
		inv, err := p.stages.Extractor.Extract(ctx, rc, path)
		if err == nil && inv == nil {
			err = errors.New("extractor returned no invoice")
		}
		return inv, err
	})
	if err != nil {
		p.fail(run, stage.Extraction, err)
		p.finish(rc, run)
		p.persist(ctx, rc, run, false)
		return
	}
	run.Invoice = inv

	vr, err := runStage(ctx, p, rc, stage.Validation, func(ctx context.Context) (entity.ValidationResult, error) {
		return p.stages.Validator.Validate(ctx, rc, inv)
	})
	if err != nil {
		run.ValidationStatus = constants.ValidationErrored
		if errors.Is(err, entity.ErrMissingVendor) {
			run.ReviewStatus = constants.ReviewNeedsReview
			p.anomaly(ctx, rc, run, inv)
			return
		}
		p.fail(run, stage.Validation, err)
		p.finish(rc, run)
		p.persist(ctx, rc, run, false)
		return
	}
	run.Validation = &vr
	run.ValidationStatus = vr.Status

	if !vr.Valid() {
		if vr.MissingVendor() || strings.TrimSpace(inv.VendorName) == "" {
			p.anomaly(ctx, rc, run, inv)
			return
		}
		run.Outcome = constants.OutcomeValidationShortCircuit
		run.ReviewStatus = constants.ReviewNeedsReview
		rc.Logger.Info("processor.validation.short_circuit", "errors", len(vr.Errors))
		p.finish(rc, run)
		p.storeDocument(ctx, rc, run, path, persistDocument)
		p.persist(ctx, rc, run, false)
		return
	}

	mr, err := runStage(ctx, p, rc, stage.Matching, func(ctx context.Context) (entity.MatchResult, error) {
		return p.stages.Matcher.Match(ctx, rc, inv)
	})
	if err != nil {
		run.Match = entity.ErroredMatch(err)
		run.MatchingStatus = constants.MatchError
		p.fail(run, stage.Matching, err)
		p.finish(rc, run)
		p.persist(ctx, rc, run, false)
		return
	}
	run.Match = mr
	run.MatchingStatus = mr.Status

	rr, err := runStage(ctx, p, rc, stage.Review, func(ctx context.Context) (entity.ReviewResult, error) {
		return p.stages.Reviewer.Review(ctx, rc, inv, vr)
	})
	if err != nil {
		run.Review = entity.ErroredReview(err)
		run.ReviewStatus = constants.ReviewError
		p.fail(run, stage.Review, err)
		p.finish(rc, run)
		p.persist(ctx, rc, run, false)
		return
	}
	run.Review = rr
	run.ReviewStatus = rr.Status
	run.Outcome = constants.OutcomeSuccess

	p.finish(rc, run)
	p.storeDocument(ctx, rc, run, path, persistDocument)
	p.persist(ctx, rc, run, false)
}

// runStage times one stage call and retries it under the processor's policy.
func runStage[T any](ctx context.Context, p *Processor, rc *stage.RunContext, name stage.Name, op func(context.Context) (T, error)) (T, error) {
	stop := rc.Track(name)
	defer stop()

	policy := p.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		rc.Logger.Warn("processor.stage.retry",
			"stage", name,
			"attempt", attempt,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
	}
	v, err := retry.Do(ctx, policy, op)
	if err != nil {
		rc.Logger.Error("processor.stage.failed", "stage", name, "error", err)
	}
	return v, err
}

func (p *Processor) fail(run *entity.PipelineRun, name stage.Name, err error) {
	run.Outcome = constants.OutcomeError
	run.FailedStage = string(name)
	run.Message = err.Error()
}

func (p *Processor) anomaly(ctx context.Context, rc *stage.RunContext, run *entity.PipelineRun, inv *entity.Invoice) {
	flagged := inv.WithConfidence(constants.AnomalyConfidence)
	run.Invoice = &flagged
	run.Outcome = constants.OutcomeAnomaly
	run.Reason = constants.AnomalyReasonNonInvoice
	run.Match = entity.SkippedMatch()
	run.Review = entity.SkippedReview()
	run.MatchingStatus = constants.MatchSkipped
	rc.Logger.Warn("processor.anomaly", "reason", run.Reason)
	p.finish(rc, run)
	p.persist(ctx, rc, run, true)
}

func (p *Processor) finish(rc *stage.RunContext, run *entity.PipelineRun) {
	run.Timings = rc.Timings.Snapshot()
}

func (p *Processor) persist(ctx context.Context, rc *stage.RunContext, run *entity.PipelineRun, anomaly bool) {
	var err error
	if anomaly {
		err = p.sink.AppendAnomaly(ctx, run.Clone())
	} else {
		err = p.sink.UpsertInvoice(ctx, run.Clone())
	}
	if err != nil {
		rc.Logger.Error("processor.persist.failed", "anomaly", anomaly, "error", err)
		run.PersistError = err.Error()
	}
}

func (p *Processor) storeDocument(ctx context.Context, rc *stage.RunContext, run *entity.PipelineRun, path string, requested bool) {
	number := run.InvoiceNumber()
	if !requested || p.docs == nil || number == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		rc.Logger.Error("processor.document.read_failed", "error", err)
		run.PersistError = fmt.Sprintf("read document: %v", err)
		return
	}
	key := DocumentKey(number, filepath.Ext(run.FileName))
	if err := p.docs.Put(ctx, key, data); err != nil {
		rc.Logger.Error("processor.document.store_failed", "key", key, "error", err)
		run.PersistError = fmt.Sprintf("store document: %v", err)
		return
	}
	run.DocumentKey = key
	rc.Logger.Info("processor.document.stored", "key", key, "bytes", len(data))
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DocumentKey derives the storage key for a retained document.
func DocumentKey(invoiceNumber, ext string) string {
	base := strings.Trim(unsafeKeyChars.ReplaceAllString(strings.TrimSpace(invoiceNumber), "_"), "._")
	if base == "" {
		base = "document"
	}
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return base + ext
}

// stageDocument copies path into the staging directory. When staging is
// disabled, the file already lives there, or the copy fails, path is used as is.
func (p *Processor) stageDocument(log *slog.Logger, path string) (string, func()) {
	noop := func() {}
	if p.stagingDir == "" {
		return path, noop
	}
	dir, err := filepath.Abs(p.stagingDir)
	if err != nil {
		log.Warn("processor.staging.failed", "error", err)
		return path, noop
	}
	if abs, err := filepath.Abs(path); err == nil && filepath.Dir(abs) == dir {
		return path, noop
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("processor.staging.failed", "error", err)
		return path, noop
	}
	dst := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(path)))
	if err := copyFile(path, dst); err != nil {
		log.Warn("processor.staging.failed", "error", err)
		_ = os.Remove(dst)
		return path, noop
	}
	log.Debug("processor.staging.ok", "staged", dst)
	return dst, func() { _ = os.Remove(dst) }
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
