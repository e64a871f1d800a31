package repository

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

var base = time.Date(2024, 2, 18, 9, 0, 0, 0, time.UTC)

func sampleRun(number, file string, offset time.Duration) *entity.PipelineRun {
	run := entity.NewPipelineRun("run-"+file, "/in/"+file, base.Add(offset))
	run.Invoice = &entity.Invoice{
		VendorName:    "ABC Corp Ltd.",
		InvoiceNumber: number,
		InvoiceDate:   "2024-02-18",
		TotalAmount:   decimal.RequireFromString("7595.00"),
		Confidence:    0.955,
	}
	run.Outcome = constants.OutcomeSuccess
	run.ValidationStatus = constants.ValidationValid
	run.ReviewStatus = constants.ReviewApproved
	return run
}

func anomalyRun(file string) *entity.PipelineRun {
	run := entity.NewPipelineRun("run-"+file, "/in/"+file, base)
	run.Outcome = constants.OutcomeAnomaly
	run.Reason = constants.AnomalyReasonNonInvoice
	return run
}

// storeContract runs the behaviour every InvoiceStore must share.
func storeContract(t *testing.T, open func(t *testing.T) InvoiceStore) {
	ctx := context.Background()

	t.Run("upsert is idempotent on invoice number", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.UpsertInvoice(ctx, sampleRun("INV-1", "a.pdf", 0)))
		second := sampleRun("INV-1", "b.pdf", time.Minute)
		second.ReviewStatus = constants.ReviewNeedsReview
		require.NoError(t, s.UpsertInvoice(ctx, second))

		all, err := s.ListInvoices(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "b.pdf", all[0].FileName)
		assert.Equal(t, constants.ReviewNeedsReview, all[0].ReviewStatus)
		assert.Equal(t, "7595", all[0].Invoice.TotalAmount.String())
	})

	t.Run("runs without a number are keyed by file", func(t *testing.T) {
		s := open(t)
		run := sampleRun("", "scan.png", 0)
		require.NoError(t, s.UpsertInvoice(ctx, run))
		got, err := s.GetInvoice(ctx, "file:scan.png")
		require.NoError(t, err)
		assert.Equal(t, "scan.png", got.FileName)
	})

	t.Run("anomalies are idempotent on file name", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.AppendAnomaly(ctx, anomalyRun("notes.pdf")))
		require.NoError(t, s.AppendAnomaly(ctx, anomalyRun("notes.pdf")))
		require.NoError(t, s.AppendAnomaly(ctx, anomalyRun("menu.pdf")))

		all, err := s.ListAnomalies(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Equal(t, constants.AnomalyReasonNonInvoice, all[0].Reason)
	})

	t.Run("get missing is not found", func(t *testing.T) {
		s := open(t)
		_, err := s.GetInvoice(ctx, "nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.ErrorIs(t, s.DeleteInvoice(ctx, "nope"), common.ErrNotFound)
	})

	t.Run("replace re-keys", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.UpsertInvoice(ctx, sampleRun("INV-OLD", "a.pdf", 0)))
		require.NoError(t, s.UpsertInvoice(ctx, sampleRun("INV-OTHER", "b.pdf", time.Minute)))

		fixed := sampleRun("INV-NEW", "a.pdf", 0)
		require.NoError(t, s.ReplaceInvoice(ctx, "INV-OLD", fixed))

		_, err := s.GetInvoice(ctx, "INV-OLD")
		assert.ErrorIs(t, err, common.ErrNotFound)
		got, err := s.GetInvoice(ctx, "INV-NEW")
		require.NoError(t, err)
		assert.Equal(t, "a.pdf", got.FileName)

		all, err := s.ListInvoices(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.UpsertInvoice(ctx, sampleRun("INV-1", "a.pdf", 0)))
		require.NoError(t, s.DeleteInvoice(ctx, "INV-1"))
		all, err := s.ListInvoices(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestJSONFileStore(t *testing.T) {
	storeContract(t, func(t *testing.T) InvoiceStore {
		s, err := NewJSONFileStore(t.TempDir(), nil)
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, func(t *testing.T) InvoiceStore {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "invoices.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteListOrder(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "invoices.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertInvoice(ctx, sampleRun("B", "b.pdf", time.Hour)))
	require.NoError(t, s.UpsertInvoice(ctx, sampleRun("A", "a.pdf", 0)))

	all, err := s.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].InvoiceNumber())
	assert.Equal(t, "B", all[1].InvoiceNumber())
	assert.NoError(t, HealthCheck(ctx, s, time.Second, slogDiscard()))
}

func TestJSONFileStoreConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewJSONFileStore(dir, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.UpsertInvoice(ctx, sampleRun(string(rune('A'+i)), "x.pdf", 0)))
		}(i)
	}
	wg.Wait()

	reopened, err := NewJSONFileStore(dir, nil)
	require.NoError(t, err)
	all, err := reopened.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open(context.Background(), common.DatabaseConfig{Driver: common.DriverJSON, DataDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &JSONFileStore{}, s)

	_, err = Open(context.Background(), common.DatabaseConfig{Driver: "mongo"}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestFSDocumentStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSDocumentStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "INV-1.pdf", []byte("pdf")))
	got, err := s.Get(ctx, "INV-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), got)

	_, err = s.Get(ctx, "INV-2.pdf")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, s.Put(ctx, "../escape.pdf", nil), common.ErrInvalidInput)
}

type fakeS3 struct {
	objects map[string][]byte
	lastCT  string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	f.lastCT = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3DocumentStore(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newS3DocumentStore(fake, "docs", "/invoices/", nil)

	require.NoError(t, s.Put(ctx, "INV-1.pdf", []byte("pdf")))
	assert.Contains(t, fake.objects, "docs/invoices/INV-1.pdf")
	assert.Equal(t, "application/pdf", fake.lastCT)

	got, err := s.Get(ctx, "INV-1.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), got)

	_, err = s.Get(ctx, "missing.pdf")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
