package server

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/async"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/export"
	"github.com/joseph-ayodele/invoice-pipeline/internal/invoices"
	"github.com/joseph-ayodele/invoice-pipeline/internal/repository"
)

type fakeProcessor struct{}

func (fakeProcessor) ProcessDocument(_ context.Context, path string, _ bool) *entity.PipelineRun {
	run := entity.NewPipelineRun("run-1", path, time.Now())
	run.Outcome = constants.OutcomeSuccess
	run.Invoice = &entity.Invoice{VendorName: "ABC Corp", InvoiceNumber: "INV-7", TotalAmount: decimal.NewFromInt(10)}
	return run
}

type fakeQueue struct {
	mu     sync.Mutex
	jobs   []async.Job
	closed bool
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return async.ErrQueueClosed
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, queue async.Queue) *InvoiceServiceClient {
	t.Helper()
	ctx := context.Background()

	store, err := repository.NewJSONFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	docs, err := repository.NewFSDocumentStore(t.TempDir(), nil)
	require.NoError(t, err)

	run := entity.NewPipelineRun("r1", "/in/a.pdf", time.Now())
	run.Invoice = &entity.Invoice{VendorName: "ABC Corp Ltd.", InvoiceNumber: "INV-1", InvoiceDate: "2024-02-18", TotalAmount: decimal.NewFromInt(7595), Confidence: 0.9}
	run.Outcome = constants.OutcomeSuccess
	run.DocumentKey = "INV-1.pdf"
	require.NoError(t, store.UpsertInvoice(ctx, run))
	require.NoError(t, docs.Put(ctx, "INV-1.pdf", []byte("%PDF")))

	anomaly := entity.NewPipelineRun("r2", "/in/b.pdf", time.Now())
	anomaly.Outcome = constants.OutcomeAnomaly
	anomaly.Reason = "missing vendor"
	require.NoError(t, store.AppendAnomaly(ctx, anomaly))

	logger := quietLogger()
	svc := NewInvoiceService(fakeProcessor{}, queue,
		invoices.NewService(store, docs, logger), export.NewService(store, logger), logger)

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(logger)
	RegisterInvoiceServiceServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewInvoiceServiceClient(conn)
}

func TestListAndGetInvoice(t *testing.T) {
	client := startServer(t, nil)
	ctx := context.Background()

	out, err := client.Call(ctx, MethodListInvoices, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.GetFields()["count"].GetNumberValue())
	list := out.GetFields()["invoices"].GetListValue().GetValues()
	require.Len(t, list, 1)
	assert.Equal(t, "INV-1", list[0].GetStructValue().GetFields()["extracted_data"].GetStructValue().GetFields()["invoice_number"].GetStringValue())

	out, err = client.Call(ctx, MethodGetInvoice, map[string]any{"invoice_number": "INV-1"})
	require.NoError(t, err)
	assert.Equal(t, "success", out.GetFields()["outcome"].GetStringValue())

	_, err = client.Call(ctx, MethodGetInvoice, map[string]any{"invoice_number": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	out, err = client.Call(ctx, MethodListAnomalies, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out.GetFields()["count"].GetNumberValue())
}

func TestSubmitReviewAndUpdate(t *testing.T) {
	client := startServer(t, nil)
	ctx := context.Background()

	out, err := client.Call(ctx, MethodSubmitReview, map[string]any{"invoice_number": "INV-1", "status": "rejected", "notes": "wrong vendor"})
	require.NoError(t, err)
	assert.Equal(t, "rejected", out.GetFields()["review_status"].GetStringValue())

	_, err = client.Call(ctx, MethodSubmitReview, map[string]any{"invoice_number": "INV-1", "status": "maybe"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err = client.Call(ctx, MethodUpdateInvoice, map[string]any{
		"invoice_number":     "INV-1",
		"new_invoice_number": "INV-2",
		"vendor_name":        "ABC Corp",
		"invoice_date":       "2024-02-20",
		"total_amount":       "100.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2", out.GetFields()["extracted_data"].GetStructValue().GetFields()["invoice_number"].GetStringValue())
}

func TestProcessDocumentSyncAndAsync(t *testing.T) {
	queue := &fakeQueue{}
	client := startServer(t, queue)
	ctx := context.Background()

	_, err := client.Call(ctx, MethodProcessDocument, map[string]any{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err := client.Call(ctx, MethodProcessDocument, map[string]any{"path": "/in/x.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", out.GetFields()["run_id"].GetStringValue())
	assert.Equal(t, "x.pdf", out.GetFields()["file_name"].GetStringValue())

	out, err = client.Call(ctx, MethodProcessDocument, map[string]any{"path": "/in/y.pdf", "async": true, "persist_document": true})
	require.NoError(t, err)
	assert.Equal(t, "queued", out.GetFields()["status"].GetStringValue())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "/in/y.pdf", queue.jobs[0].Path)
	assert.True(t, queue.jobs[0].PersistDocument)
	assert.Equal(t, queue.jobs[0].RequestID, out.GetFields()["request_id"].GetStringValue())

	queue.Shutdown(ctx)
	_, err = client.Call(ctx, MethodProcessDocument, map[string]any{"path": "/in/z.pdf", "async": true})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestAsyncDisabledWithoutQueue(t *testing.T) {
	client := startServer(t, nil)
	_, err := client.Call(context.Background(), MethodProcessDocument, map[string]any{"path": "/in/y.pdf", "async": true})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestDocumentAndExport(t *testing.T) {
	client := startServer(t, nil)
	ctx := context.Background()

	out, err := client.Call(ctx, MethodGetDocument, map[string]any{"invoice_number": "INV-1"})
	require.NoError(t, err)
	data, err := base64.StdEncoding.DecodeString(out.GetFields()["data"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
	assert.Equal(t, "INV-1.pdf", out.GetFields()["document_key"].GetStringValue())

	out, err = client.Call(ctx, MethodExportInvoices, nil)
	require.NoError(t, err)
	xlsx, err := base64.StdEncoding.DecodeString(out.GetFields()["xlsx"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), xlsx[:2])
}

func TestRecoveryInterceptor(t *testing.T) {
	icpt := RecoveryInterceptor(quietLogger())
	_, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"}, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}
