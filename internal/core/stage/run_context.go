package stage

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// Collector records stage durations.
type Collector interface {
	Observe(stage Name, d time.Duration)
}

// Timings is a Collector that accumulates per-stage durations.
type Timings struct {
	mu sync.Mutex
	d  map[Name]time.Duration
}

func NewTimings() *Timings {
	return &Timings{d: make(map[Name]time.Duration, 4)}
}

func (t *Timings) Observe(stage Name, d time.Duration) {
	t.mu.Lock()
	t.d[stage] += d
	t.mu.Unlock()
}

// Seconds returns the accumulated duration for a stage in seconds.
func (t *Timings) Seconds(stage Name) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.d[stage].Seconds()
}

// Snapshot converts the collected durations; Total is the sum of the four stages.
func (t *Timings) Snapshot() entity.StageTimings {
	return entity.StageTimings{
		Extraction: t.Seconds(Extraction),
		Validation: t.Seconds(Validation),
		Matching:   t.Seconds(Matching),
		Review:     t.Seconds(Review),
	}.Sum()
}

// RunContext carries per-run state through the stages.
type RunContext struct {
	RunID    string
	FileName string
	Logger   *slog.Logger
	Timings  *Timings

	now func() time.Time
}

// NewRunContext assigns a fresh run ID and a logger scoped to it.
func NewRunContext(logger *slog.Logger, path string) *RunContext {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	name := filepath.Base(path)
	return &RunContext{
		RunID:    id,
		FileName: name,
		Logger:   logger.With("run_id", id, "file", name),
		Timings:  NewTimings(),
		now:      time.Now,
	}
}

// Track starts timing a stage; call the returned func when it finishes.
func (rc *RunContext) Track(stage Name) func() {
	now := rc.now
	if now == nil {
		now = time.Now
	}
	start := now()
	return func() {
		elapsed := now().Sub(start)
		rc.Timings.Observe(stage, elapsed)
		rc.Logger.Debug("stage.finished", "stage", stage, "elapsed_ms", elapsed.Milliseconds())
	}
}

// Background returns a RunContext for stage calls made outside a pipeline run.
func Background(logger *slog.Logger) *RunContext {
	return NewRunContext(logger, "")
}
