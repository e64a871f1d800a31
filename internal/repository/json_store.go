package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

const (
	InvoicesFile  = "structured_invoices.json"
	AnomaliesFile = "anomalies.json"
)

// JSONFileStore keeps runs in two JSON array files. Writes are serialized and
// each rewrite is atomic (temp file + rename).
type JSONFileStore struct {
	mu            sync.Mutex
	invoicesPath  string
	anomaliesPath string
	logger        *slog.Logger
}

func NewJSONFileStore(dir string, logger *slog.Logger) (*JSONFileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.NewAppError("STORAGE_ERROR", "create data dir", errors.Join(common.ErrStorage, err))
	}
	logger.Info("json store opened", "dir", dir)
	return &JSONFileStore{
		invoicesPath:  filepath.Join(dir, InvoicesFile),
		anomaliesPath: filepath.Join(dir, AnomaliesFile),
		logger:        logger,
	}, nil
}

func (s *JSONFileStore) UpsertInvoice(_ context.Context, run *entity.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(s.invoicesPath, run, "", func(r *entity.PipelineRun) string { return r.RecordKey() })
}

func (s *JSONFileStore) AppendAnomaly(_ context.Context, run *entity.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(s.anomaliesPath, run, "", func(r *entity.PipelineRun) string { return r.FileName })
}

func (s *JSONFileStore) ReplaceInvoice(_ context.Context, oldKey string, run *entity.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(s.invoicesPath, run, oldKey, func(r *entity.PipelineRun) string { return r.RecordKey() })
}

// upsertLocked replaces the record with the same key (or dropKey) in place,
// appending when none exists.
func (s *JSONFileStore) upsertLocked(path string, run *entity.PipelineRun, dropKey string, key func(*entity.PipelineRun) string) error {
	runs, err := readRuns(path)
	if err != nil {
		return err
	}
	k := key(run)
	out := make([]*entity.PipelineRun, 0, len(runs)+1)
	placed := false
	for _, r := range runs {
		rk := key(r)
		if rk == k || (dropKey != "" && rk == dropKey) {
			if !placed {
				out = append(out, run)
				placed = true
			}
			continue
		}
		out = append(out, r)
	}
	if !placed {
		out = append(out, run)
	}
	if err := writeRuns(path, out); err != nil {
		return err
	}
	s.logger.Debug("json store write", "file", filepath.Base(path), "key", k, "records", len(out))
	return nil
}

func (s *JSONFileStore) GetInvoice(_ context.Context, key string) (*entity.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs, err := readRuns(s.invoicesPath)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.RecordKey() == key {
			return r, nil
		}
	}
	return nil, notFound("invoice", key)
}

func (s *JSONFileStore) ListInvoices(_ context.Context) ([]*entity.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readRuns(s.invoicesPath)
}

func (s *JSONFileStore) ListAnomalies(_ context.Context) ([]*entity.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readRuns(s.anomaliesPath)
}

func (s *JSONFileStore) DeleteInvoice(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs, err := readRuns(s.invoicesPath)
	if err != nil {
		return err
	}
	out := runs[:0]
	for _, r := range runs {
		if r.RecordKey() != key {
			out = append(out, r)
		}
	}
	if len(out) == len(runs) {
		return notFound("invoice", key)
	}
	return writeRuns(s.invoicesPath, out)
}

func (s *JSONFileStore) Close() error { return nil }

func readRuns(path string) ([]*entity.PipelineRun, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []*entity.PipelineRun{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), errors.Join(common.ErrStorage, err))
	}
	defer f.Close()

	var runs []*entity.PipelineRun
	if err := json.NewDecoder(f).Decode(&runs); err != nil {
		if errors.Is(err, io.EOF) {
			return []*entity.PipelineRun{}, nil
		}
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), errors.Join(common.ErrStorage, err))
	}
	if runs == nil {
		runs = []*entity.PipelineRun{}
	}
	return runs, nil
}

func writeRuns(path string, runs []*entity.PipelineRun) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("temp file: %w", errors.Join(common.ErrStorage, err))
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runs); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), errors.Join(common.ErrStorage, err))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", errors.Join(common.ErrStorage, err))
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", errors.Join(common.ErrStorage, err))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", errors.Join(common.ErrStorage, err))
	}
	return nil
}
