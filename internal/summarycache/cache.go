// Package summarycache holds computed quick-summary widgets for a short
// time so repeated page views do not re-aggregate the same window.
package summarycache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/jjckrbbt/pharmatrade/internal/metrics"
)

// DefaultTTL applies when the configured TTL is not positive.
const DefaultTTL = 10 * time.Minute

// Cache is a bounded TTL cache. Each entry costs 1, so MaxEntries bounds the
// number of cached summaries.
type Cache[V any] struct {
	store *ristretto.Cache[string, V]
	ttl   time.Duration
}

// New creates a cache holding up to maxEntries values for ttl each.
func New[V any](maxEntries int64, ttl time.Duration) (*Cache[V], error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		// Cost counts entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create summary cache: %w", err)
	}
	return &Cache[V]{store: store, ttl: ttl}, nil
}

// Key joins the parts identifying one summary. Parts are lower-cased and
// trimmed so "Cipla " and "cipla" share an entry.
func Key(parts ...string) string {
	norm := make([]string, len(parts))
	for i, p := range parts {
		norm[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(norm, "|")
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. Errors are never cached. kind labels the hit/miss metrics.
func (c *Cache[V]) GetOrLoad(ctx context.Context, kind, key string, load func(ctx context.Context) (V, error)) (V, bool, error) {
	if v, ok := c.store.Get(key); ok {
		metrics.RecordSummaryCache(kind, true)
		return v, true, nil
	}
	metrics.RecordSummaryCache(kind, false)

	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.store.SetWithTTL(key, v, 1, c.ttl)
	return v, false, nil
}

// Wait blocks until pending writes are visible to Get.
func (c *Cache[V]) Wait() {
	c.store.Wait()
}

// Close stops the cache's background goroutines.
func (c *Cache[V]) Close() {
	c.store.Close()
}
