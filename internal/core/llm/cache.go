package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// CachedExtractor memoizes a FieldExtractor by document text. Failures are not cached.
type CachedExtractor struct {
	next   FieldExtractor
	cache  *ristretto.Cache[string, Extraction]
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedExtractor wraps next with a cache holding up to maxEntries results.
func NewCachedExtractor(next FieldExtractor, maxEntries int64, ttl time.Duration, logger *slog.Logger) (*CachedExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, Extraction]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// cost is counted in entries
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("llm cache: %w", err)
	}
	return &CachedExtractor{next: next, cache: c, ttl: ttl, logger: logger}, nil
}

func (c *CachedExtractor) ExtractFields(ctx context.Context, req ExtractRequest) (Extraction, error) {
	key := cacheKey(req)
	if hit, ok := c.cache.Get(key); ok {
		c.logger.Debug("llm.cache.hit", "key", key[:12])
		hit.Source = SourceCache
		hit.Fields = cloneFields(hit.Fields)
		return hit, nil
	}

	res, err := c.next.ExtractFields(ctx, req)
	if err != nil {
		return res, err
	}
	stored := res
	stored.Fields = cloneFields(res.Fields)
	if c.ttl > 0 {
		c.cache.SetWithTTL(key, stored, 1, c.ttl)
	} else {
		c.cache.Set(key, stored, 1)
	}
	c.cache.Wait()
	return res, nil
}

// Close releases the cache's background goroutines.
func (c *CachedExtractor) Close() {
	c.cache.Close()
}

func cacheKey(req ExtractRequest) string {
	h := sha256.New()
	h.Write([]byte(req.DefaultCurrency))
	h.Write([]byte{0})
	h.Write([]byte(req.Text))
	return hex.EncodeToString(h.Sum(nil))
}

func cloneFields(in entity.ExtractedFields) entity.ExtractedFields {
	if in == nil {
		return nil
	}
	out := make(entity.ExtractedFields, len(in))
	for k, v := range in {
		if v.Confidence != nil {
			c := *v.Confidence
			v.Confidence = &c
		}
		out[k] = v
	}
	return out
}
