package async

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// Summary counts batch outcomes.
type Summary struct {
	Total        int
	Success      int
	ShortCircuit int
	Anomaly      int
	Error        int
	Elapsed      time.Duration
	Runs         []*entity.PipelineRun
}

func (s *Summary) add(run *entity.PipelineRun) {
	switch run.Outcome {
	case constants.OutcomeSuccess:
		s.Success++
	case constants.OutcomeValidationShortCircuit:
		s.ShortCircuit++
	case constants.OutcomeAnomaly:
		s.Anomaly++
	default:
		s.Error++
	}
}

// ProcessBatch runs every path with at most concurrency documents in flight.
// Runs are returned in input order. Cancelling ctx stops unstarted documents.
func ProcessBatch(ctx context.Context, proc DocumentProcessor, paths []string, concurrency int, persistDocument bool, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	start := time.Now()
	runs := make([]*entity.PipelineRun, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runs[i] = proc.ProcessDocument(gctx, p, persistDocument)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sum := Summary{Elapsed: time.Since(start)}
	for _, run := range runs {
		if run == nil {
			continue
		}
		sum.Total++
		sum.add(run)
		sum.Runs = append(sum.Runs, run)
	}
	logger.Info("batch.done",
		"documents", len(paths),
		"processed", sum.Total,
		"success", sum.Success,
		"short_circuit", sum.ShortCircuit,
		"anomaly", sum.Anomaly,
		"error", sum.Error,
		"elapsed_ms", sum.Elapsed.Milliseconds(),
	)
	return sum, err
}
