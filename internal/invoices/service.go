// Package invoices exposes stored pipeline runs for listing, correction and
// human review.
package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/validate"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

// Service handles invoice business logic.
type Service struct {
	store  repository.InvoiceStore
	docs   repository.DocumentStore
	logger *slog.Logger
}

// NewService creates a new invoice service. docs may be nil.
func NewService(store repository.InvoiceStore, docs repository.DocumentStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, docs: docs, logger: logger}
}

func (s *Service) ListInvoices(ctx context.Context) ([]*entity.PipelineRun, error) {
	runs, err := s.store.ListInvoices(ctx)
	if err != nil {
		s.logger.Error("failed to list invoices", "error", err)
		return nil, common.InternalErrorf("list invoices: %v", err)
	}
	s.logger.Info("invoices listed successfully", "count", len(runs))
	return runs, nil
}

func (s *Service) ListAnomalies(ctx context.Context) ([]*entity.PipelineRun, error) {
	runs, err := s.store.ListAnomalies(ctx)
	if err != nil {
		s.logger.Error("failed to list anomalies", "error", err)
		return nil, common.InternalErrorf("list anomalies: %v", err)
	}
	return runs, nil
}

func (s *Service) GetInvoice(ctx context.Context, key string) (*entity.PipelineRun, error) {
	if strings.TrimSpace(key) == "" {
		return nil, common.InvalidArgumentError("invoice_number is required")
	}
	run, err := s.store.GetInvoice(ctx, key)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("failed to get invoice", "invoice_number", key, "error", err)
		}
		return nil, common.ToStatus(err)
	}
	return run, nil
}

// UpdateInvoiceRequest carries a human correction of the core fields.
type UpdateInvoiceRequest struct {
	InvoiceNumber    string // current key
	NewInvoiceNumber string
	VendorName       string
	InvoiceDate      string
	TotalAmount      string
	Currency         string // optional ISO 4217 code; empty keeps the stored one
}

// UpdateInvoice applies a correction. A changed number re-keys the record and
// its retained document.
func (s *Service) UpdateInvoice(ctx context.Context, req UpdateInvoiceRequest) (*entity.PipelineRun, error) {
	v := common.NewValidator().
		Field("invoice_number", req.InvoiceNumber, common.Required).
		Field("new_invoice_number", req.NewInvoiceNumber, common.MaxLength(255)).
		Field("currency", req.Currency, common.CurrencyCode)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	newNumber := strings.TrimSpace(req.NewInvoiceNumber)
	if newNumber == "" {
		newNumber = req.InvoiceNumber
	}
	if errs := validate.CheckFields(req.VendorName, newNumber, req.InvoiceDate, req.TotalAmount); len(errs) > 0 {
		s.logger.Info("invoice correction rejected", "invoice_number", req.InvoiceNumber, "errors", errs)
		return nil, common.InvalidArgumentErrorf("invalid correction: %s", describe(errs))
	}

	run, err := s.GetInvoice(ctx, req.InvoiceNumber)
	if err != nil {
		return nil, err
	}
	total := decimal.RequireFromString(strings.TrimSpace(req.TotalAmount))

	updated := run.Clone()
	inv := entity.Invoice{}
	if updated.Invoice != nil {
		inv = *updated.Invoice
	}
	inv.VendorName = strings.TrimSpace(req.VendorName)
	inv.InvoiceNumber = newNumber
	inv.InvoiceDate = strings.TrimSpace(req.InvoiceDate)
	inv.TotalAmount = total
	if req.Currency != "" {
		c := req.Currency
		inv.Currency = &c
	}
	updated.Invoice = &inv

	if newNumber != req.InvoiceNumber && updated.DocumentKey != "" {
		updated.DocumentKey = s.moveDocument(ctx, updated.DocumentKey, newNumber)
	}

	if err := s.store.ReplaceInvoice(ctx, req.InvoiceNumber, updated); err != nil {
		s.logger.Error("failed to update invoice", "invoice_number", req.InvoiceNumber, "error", err)
		return nil, common.ToStatus(err)
	}
	s.logger.Info("invoice updated successfully", "invoice_number", req.InvoiceNumber, "new_invoice_number", newNumber)
	return updated, nil
}

// moveDocument copies the retained document to the key of the new number.
// On failure the old key is kept.
func (s *Service) moveDocument(ctx context.Context, oldKey, newNumber string) string {
	if s.docs == nil {
		return oldKey
	}
	ext := ""
	if i := strings.LastIndex(oldKey, "."); i >= 0 {
		ext = oldKey[i:]
	}
	newKey := core.DocumentKey(newNumber, ext)
	data, err := s.docs.Get(ctx, oldKey)
	if err == nil {
		err = s.docs.Put(ctx, newKey, data)
	}
	if err != nil {
		s.logger.Warn("document not re-keyed", "from", oldKey, "to", newKey, "error", err)
		return oldKey
	}
	return newKey
}

// SubmitReview records a reviewer's decision on a stored invoice.
func (s *Service) SubmitReview(ctx context.Context, key, decision, notes string) (*entity.PipelineRun, error) {
	v := common.NewValidator().
		Field("invoice_number", key, common.Required).
		Field("status", decision, common.OneOf(constants.ReviewDecisions...))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	st := constants.ReviewStatus(decision)
	run, err := s.GetInvoice(ctx, key)
	if err != nil {
		return nil, err
	}
	updated := run.Clone()
	updated.ReviewStatus = st
	updated.Review.Status = st
	updated.Review.Notes = notes
	if err := s.store.UpsertInvoice(ctx, updated); err != nil {
		s.logger.Error("failed to save review", "invoice_number", key, "error", err)
		return nil, common.ToStatus(err)
	}
	s.logger.Info("review submitted", "invoice_number", key, "status", st)
	return updated, nil
}

// GetDocument returns the retained source document of an invoice.
func (s *Service) GetDocument(ctx context.Context, key string) (string, []byte, error) {
	if s.docs == nil {
		return "", nil, status.Error(codes.Unimplemented, "document retention is disabled")
	}
	run, err := s.GetInvoice(ctx, key)
	if err != nil {
		return "", nil, err
	}
	if run.DocumentKey == "" {
		return "", nil, status.Errorf(codes.NotFound, "no document retained for %s", key)
	}
	data, err := s.docs.Get(ctx, run.DocumentKey)
	if err != nil {
		return "", nil, common.ToStatus(err)
	}
	return run.DocumentKey, data, nil
}

func describe(errs map[string]string) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, errs[k])
	}
	return strings.Join(parts, "; ")
}
