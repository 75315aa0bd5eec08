// Package cache provides a bounded in-memory result cache for compiled
// explore queries, keyed by a content fingerprint of datasource, SQL, and
// parameters.
package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"querylens/internal/domain"
)

// perCellOverhead is the fixed bookkeeping estimate added per cell on top
// of the stringified value length.
const perCellOverhead = 8

type entry struct {
	result   *domain.QueryResult
	storedAt time.Time
	size     int64
}

// Stats is a point-in-time snapshot of cache counters. Hits, Misses, and
// Evictions are monotonic; EntryCount and EstimatedBytes reflect current
// content.
type Stats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hitRate"`
	Evictions      int64   `json:"evictions"`
	EntryCount     int     `json:"entryCount"`
	EstimatedBytes int64   `json:"estimatedBytes"`
	Enabled        bool    `json:"enabled"`
}

// ResultCache is a TTL+LRU bounded store for query results. All operations
// are in-memory; callers run the actual database execution around a miss,
// never inside the cache.
type ResultCache struct {
	logger *slog.Logger
	lru    *expirable.LRU[string, *entry]

	// putMu serializes the peek-subtract-add sequence in Put so two
	// writers of the same key cannot both subtract the prior entry's size.
	putMu sync.Mutex

	enabled        atomic.Bool
	hits           atomic.Int64
	misses         atomic.Int64
	evictions      atomic.Int64
	estimatedBytes atomic.Int64
}

// New creates a ResultCache bounded to maxEntries with the given per-entry
// TTL from write.
func New(logger *slog.Logger, maxEntries int, ttl time.Duration) *ResultCache {
	c := &ResultCache{
		logger: logger.With("component", "result_cache"),
	}
	c.lru = expirable.NewLRU(maxEntries, func(_ string, e *entry) {
		c.evictions.Add(1)
		c.estimatedBytes.Add(-e.size)
	}, ttl)
	c.enabled.Store(true)
	return c
}

// Get returns the cached result for (datasourceID, sql, params), or nil on
// a miss. A disabled cache always misses without touching the counters.
func (c *ResultCache) Get(datasourceID, sqlText string, params map[string]string) (*domain.QueryResult, bool) {
	if !c.enabled.Load() {
		return nil, false
	}
	e, ok := c.lru.Get(Fingerprint(datasourceID, sqlText, params))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.result, true
}

// Put stores a result under the fingerprint of its inputs, fully replacing
// any prior entry for the same key.
func (c *ResultCache) Put(datasourceID, sqlText string, params map[string]string, result *domain.QueryResult) {
	if !c.enabled.Load() || result == nil {
		return
	}
	key := Fingerprint(datasourceID, sqlText, params)
	e := &entry{result: result, storedAt: time.Now(), size: EstimateSize(result)}

	c.putMu.Lock()
	defer c.putMu.Unlock()
	if prev, ok := c.lru.Peek(key); ok {
		// Add replaces in place without firing the eviction callback.
		c.estimatedBytes.Add(-prev.size)
	}
	c.estimatedBytes.Add(e.size)
	c.lru.Add(key, e)
}

// Invalidate removes every entry belonging to one datasource. It returns
// the number of entries removed.
func (c *ResultCache) Invalidate(datasourceID string) int {
	return c.removeByPrefix(datasourceID + ":")
}

// InvalidateSQL removes every entry for one (datasource, SQL text) pair,
// regardless of parameters.
func (c *ResultCache) InvalidateSQL(datasourceID, sqlText string) int {
	return c.removeByPrefix(datasourceID + ":" + hashSQL(sqlText) + ":")
}

// InvalidateAll empties the cache.
func (c *ResultCache) InvalidateAll() {
	c.lru.Purge()
}

func (c *ResultCache) removeByPrefix(prefix string) int {
	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) && c.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

// SetEnabled toggles the cache. Disabling purges immediately so stale
// results cannot survive a later re-enable.
func (c *ResultCache) SetEnabled(enabled bool) {
	was := c.enabled.Swap(enabled)
	if was && !enabled {
		c.lru.Purge()
		c.logger.Info("cache disabled and purged")
	}
}

// Enabled reports whether the cache currently accepts reads and writes.
func (c *ResultCache) Enabled() bool {
	return c.enabled.Load()
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	s := Stats{
		Hits:           hits,
		Misses:         misses,
		Evictions:      c.evictions.Load(),
		EntryCount:     c.lru.Len(),
		EstimatedBytes: c.estimatedBytes.Load(),
		Enabled:        c.enabled.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// EstimateSize approximates a result's in-memory footprint for the stats
// surface. It is observability-grade only and never limits admission.
func EstimateSize(result *domain.QueryResult) int64 {
	var size int64
	for _, col := range result.Columns {
		size += int64(len(col)) * 2
	}
	for _, row := range result.Rows {
		for _, cell := range row {
			size += int64(len(stringifyCell(cell)))*2 + perCellOverhead
		}
	}
	return size
}

func stringifyCell(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
