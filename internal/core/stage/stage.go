// Package stage defines the four pipeline stage contracts and the per-run
// context (correlation ID, logger, timing collector) passed through them.
package stage

import (
	"context"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// Name identifies a pipeline stage.
type Name string

const (
	Extraction Name = "extraction"
	Validation Name = "validation"
	Matching   Name = "matching"
	Review     Name = "review"
)

// Extractor turns a document into an invoice.
type Extractor interface {
	Extract(ctx context.Context, rc *RunContext, path string) (*entity.Invoice, error)
}

// Validator checks an invoice's fields and history.
type Validator interface {
	Validate(ctx context.Context, rc *RunContext, inv *entity.Invoice) (entity.ValidationResult, error)
}

// Matcher pairs an invoice with a purchase order.
type Matcher interface {
	Match(ctx context.Context, rc *RunContext, inv *entity.Invoice) (entity.MatchResult, error)
}

// Reviewer decides whether an invoice needs a human.
type Reviewer interface {
	Review(ctx context.Context, rc *RunContext, inv *entity.Invoice, vr entity.ValidationResult) (entity.ReviewResult, error)
}

type ExtractorFunc func(ctx context.Context, rc *RunContext, path string) (*entity.Invoice, error)

func (f ExtractorFunc) Extract(ctx context.Context, rc *RunContext, path string) (*entity.Invoice, error) {
	return f(ctx, rc, path)
}

type ValidatorFunc func(ctx context.Context, rc *RunContext, inv *entity.Invoice) (entity.ValidationResult, error)

func (f ValidatorFunc) Validate(ctx context.Context, rc *RunContext, inv *entity.Invoice) (entity.ValidationResult, error) {
	return f(ctx, rc, inv)
}

type MatcherFunc func(ctx context.Context, rc *RunContext, inv *entity.Invoice) (entity.MatchResult, error)

func (f MatcherFunc) Match(ctx context.Context, rc *RunContext, inv *entity.Invoice) (entity.MatchResult, error) {
	return f(ctx, rc, inv)
}

type ReviewerFunc func(ctx context.Context, rc *RunContext, inv *entity.Invoice, vr entity.ValidationResult) (entity.ReviewResult, error)

func (f ReviewerFunc) Review(ctx context.Context, rc *RunContext, inv *entity.Invoice, vr entity.ValidationResult) (entity.ReviewResult, error) {
	return f(ctx, rc, inv, vr)
}
