package async

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// fakeProcessor maps file names to outcomes and tracks concurrency.
type fakeProcessor struct {
	outcomes map[string]constants.RunOutcome
	delay    time.Duration

	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (f *fakeProcessor) ProcessDocument(ctx context.Context, path string, _ bool) *entity.PipelineRun {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer f.inFlight.Add(-1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	run := entity.NewPipelineRun("run-"+filepath.Base(path), path, time.Now())
	run.Outcome = f.outcomes[filepath.Base(path)]
	if run.Outcome == "" {
		run.Outcome = constants.OutcomeSuccess
	}
	return run
}

func TestProcessBatchSummarizes(t *testing.T) {
	proc := &fakeProcessor{
		outcomes: map[string]constants.RunOutcome{
			"b.pdf": constants.OutcomeAnomaly,
			"c.pdf": constants.OutcomeValidationShortCircuit,
			"d.pdf": constants.OutcomeError,
		},
		delay: 5 * time.Millisecond,
	}
	paths := []string{"/in/a.pdf", "/in/b.pdf", "/in/c.pdf", "/in/d.pdf", "/in/e.pdf"}

	sum, err := ProcessBatch(context.Background(), proc, paths, 2, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 2, sum.Success)
	assert.Equal(t, 1, sum.Anomaly)
	assert.Equal(t, 1, sum.ShortCircuit)
	assert.Equal(t, 1, sum.Error)
	assert.LessOrEqual(t, proc.peak.Load(), int32(2))
	require.Len(t, sum.Runs, 5)
	assert.Equal(t, "a.pdf", sum.Runs[0].FileName)
	assert.Equal(t, "e.pdf", sum.Runs[4].FileName)
}

func TestProcessBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	proc := &fakeProcessor{}
	sum, err := ProcessBatch(ctx, proc, []string{"a.pdf", "b.pdf"}, 1, false, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Total)
	assert.Zero(t, proc.calls.Load())
}

func TestProcessorQueueRunsJobs(t *testing.T) {
	proc := &fakeProcessor{}
	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 3)

	q := NewProcessorQueue(proc, nil,
		WithWorkers(2),
		WithQueueSize(1),
		WithResultHandler(func(job Job, run *entity.PipelineRun) {
			mu.Lock()
			got = append(got, run.FileName)
			mu.Unlock()
			done <- struct{}{}
		}),
	)
	for _, p := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: p, PersistDocument: true}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	assert.ElementsMatch(t, []string{"a.pdf", "b.pdf", "c.pdf"}, got)
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Path: "late.pdf"}), ErrQueueClosed)
}
