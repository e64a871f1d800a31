package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document submitted for processing.
type Job struct {
	Path            string
	PersistDocument bool
	SubmittedAt     time.Time
	RequestID       string
}

// ResultFunc receives each finished run.
type ResultFunc func(job Job, run *entity.PipelineRun)

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
