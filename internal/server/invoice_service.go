// Package server exposes the invoice pipeline over gRPC.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/async"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/export"
	"github.com/joseph-ayodele/invoice-pipeline/internal/invoices"
)

type InvoiceService struct {
	processor async.DocumentProcessor
	queue     async.Queue
	invoices  *invoices.Service
	export    *export.Service
	logger    *slog.Logger
}

// NewInvoiceService wires the RPC surface. queue may be nil, in which case
// asynchronous submissions are rejected.
func NewInvoiceService(proc async.DocumentProcessor, queue async.Queue, inv *invoices.Service, exp *export.Service, logger *slog.Logger) *InvoiceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceService{processor: proc, queue: queue, invoices: inv, export: exp, logger: logger}
}

// ProcessDocument runs one document. With "async": true the job is queued and
// only a request id is returned.
func (s *InvoiceService) ProcessDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := stringField(req, "path")
	if path == "" {
		s.logger.Error("process request missing path")
		return nil, common.InvalidArgumentError("path is required")
	}
	persist := boolField(req, "persist_document")

	if boolField(req, "async") {
		if s.queue == nil {
			return nil, status.Error(codes.Unimplemented, "asynchronous processing is disabled")
		}
		job := async.Job{Path: path, PersistDocument: persist, SubmittedAt: time.Now().UTC(), RequestID: uuid.NewString()}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			if errors.Is(err, async.ErrQueueClosed) {
				return nil, status.Error(codes.Unavailable, err.Error())
			}
			return nil, status.FromContextError(err).Err()
		}
		s.logger.Info("process request queued", "path", path, "request_id", job.RequestID)
		return structpb.NewStruct(map[string]any{"request_id": job.RequestID, "status": "queued"})
	}

	if s.processor == nil {
		return nil, status.Error(codes.Unimplemented, "processing is disabled")
	}
	run := s.processor.ProcessDocument(ctx, path, persist)
	s.logger.Info("process request finished", "path", path, "run_id", run.RunID, "outcome", run.Outcome)
	return runStruct(run)
}

func (s *InvoiceService) ListInvoices(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	runs, err := s.invoices.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	return runsStruct("invoices", runs)
}

func (s *InvoiceService) ListAnomalies(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	runs, err := s.invoices.ListAnomalies(ctx)
	if err != nil {
		return nil, err
	}
	return runsStruct("anomalies", runs)
}

func (s *InvoiceService) GetInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	run, err := s.invoices.GetInvoice(ctx, stringField(req, "invoice_number"))
	if err != nil {
		return nil, err
	}
	return runStruct(run)
}

func (s *InvoiceService) SubmitReview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	run, err := s.invoices.SubmitReview(ctx, stringField(req, "invoice_number"), stringField(req, "status"), stringField(req, "notes"))
	if err != nil {
		return nil, err
	}
	return runStruct(run)
}

func (s *InvoiceService) UpdateInvoice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	run, err := s.invoices.UpdateInvoice(ctx, invoices.UpdateInvoiceRequest{
		InvoiceNumber:    stringField(req, "invoice_number"),
		NewInvoiceNumber: stringField(req, "new_invoice_number"),
		VendorName:       stringField(req, "vendor_name"),
		InvoiceDate:      stringField(req, "invoice_date"),
		TotalAmount:      stringField(req, "total_amount"),
		Currency:         stringField(req, "currency"),
	})
	if err != nil {
		return nil, err
	}
	return runStruct(run)
}

// GetDocument returns the retained document base64-encoded under "data".
func (s *InvoiceService) GetDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, data, err := s.invoices.GetDocument(ctx, stringField(req, "invoice_number"))
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"document_key": key,
		"data":         base64.StdEncoding.EncodeToString(data),
	})
}

// ExportInvoices returns the XLSX workbook base64-encoded under "xlsx".
func (s *InvoiceService) ExportInvoices(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if s.export == nil {
		return nil, status.Error(codes.Unimplemented, "export is disabled")
	}
	xlsx, err := s.export.ExportXLSX(ctx)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{"xlsx": base64.StdEncoding.EncodeToString(xlsx)})
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func boolField(req *structpb.Struct, name string) bool {
	return req.GetFields()[name].GetBoolValue()
}

// toValue round-trips v through its JSON form so the Struct mirrors the stored records.
func toValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func runStruct(run *entity.PipelineRun) (*structpb.Struct, error) {
	v, err := toValue(run)
	if err != nil {
		return nil, common.InternalErrorf("encode run: %v", err)
	}
	m, _ := v.(map[string]any)
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode run: %v", err)
	}
	return out, nil
}

func runsStruct(field string, runs []*entity.PipelineRun) (*structpb.Struct, error) {
	if runs == nil {
		runs = []*entity.PipelineRun{}
	}
	v, err := toValue(runs)
	if err != nil {
		return nil, common.InternalErrorf("encode runs: %v", err)
	}
	out, err := structpb.NewStruct(map[string]any{field: v, "count": len(runs)})
	if err != nil {
		return nil, common.InternalErrorf("encode runs: %v", err)
	}
	return out, nil
}
