package cache

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querylens/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func sampleResult() *domain.QueryResult {
	return &domain.QueryResult{
		Columns:  []string{"Region", "Total"},
		Rows:     [][]interface{}{{"west", 42.0}, {"east", 17.0}},
		RowCount: 2,
	}
}

func TestFingerprint_StableUnderParamOrderAndSQLFormatting(t *testing.T) {
	a := Fingerprint("ds1", "SELECT 1", map[string]string{"a": "1", "b": "2"})
	b := Fingerprint("ds1", "  select 1  ", map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, a, b)
}

func TestFingerprint_SensitiveToInputs(t *testing.T) {
	base := Fingerprint("ds1", "SELECT 1", map[string]string{"a": "1"})
	assert.NotEqual(t, base, Fingerprint("ds2", "SELECT 1", map[string]string{"a": "1"}))
	assert.NotEqual(t, base, Fingerprint("ds1", "SELECT 2", map[string]string{"a": "1"}))
	assert.NotEqual(t, base, Fingerprint("ds1", "SELECT 1", map[string]string{"a": "9"}))
	assert.NotEqual(t, base, Fingerprint("ds1", "SELECT 1", nil))
}

func TestResultCache_RoundTrip(t *testing.T) {
	c := New(testLogger(), 10, time.Minute)

	_, hit := c.Get("ds1", "SELECT 1", nil)
	assert.False(t, hit)

	c.Put("ds1", "SELECT 1", nil, sampleResult())

	got, hit := c.Get("ds1", "select 1", nil)
	require.True(t, hit)
	assert.Equal(t, 2, got.RowCount)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
	assert.Equal(t, 1, stats.EntryCount)
	assert.Greater(t, stats.EstimatedBytes, int64(0))

	c.InvalidateAll()
	_, hit = c.Get("ds1", "SELECT 1", nil)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Stats().EntryCount)
	assert.Equal(t, int64(0), c.Stats().EstimatedBytes)
}

func TestResultCache_InvalidateByDatasource(t *testing.T) {
	c := New(testLogger(), 10, time.Minute)
	c.Put("ds1", "SELECT 1", nil, sampleResult())
	c.Put("ds1", "SELECT 2", nil, sampleResult())
	c.Put("ds2", "SELECT 1", nil, sampleResult())

	removed := c.Invalidate("ds1")
	assert.Equal(t, 2, removed)

	_, hit := c.Get("ds1", "SELECT 1", nil)
	assert.False(t, hit)
	_, hit = c.Get("ds2", "SELECT 1", nil)
	assert.True(t, hit)
}

func TestResultCache_InvalidateBySQL(t *testing.T) {
	c := New(testLogger(), 10, time.Minute)
	c.Put("ds1", "SELECT 1", map[string]string{"p": "a"}, sampleResult())
	c.Put("ds1", "SELECT 1", map[string]string{"p": "b"}, sampleResult())
	c.Put("ds1", "SELECT 2", nil, sampleResult())

	removed := c.InvalidateSQL("ds1", "select 1")
	assert.Equal(t, 2, removed)

	_, hit := c.Get("ds1", "SELECT 2", nil)
	assert.True(t, hit)
}

func TestResultCache_DisablePurges(t *testing.T) {
	c := New(testLogger(), 10, time.Minute)
	c.Put("ds1", "SELECT 1", nil, sampleResult())

	c.SetEnabled(false)
	assert.Equal(t, 0, c.Stats().EntryCount)
	assert.False(t, c.Enabled())

	// puts and gets are no-ops while disabled
	c.Put("ds1", "SELECT 1", nil, sampleResult())
	_, hit := c.Get("ds1", "SELECT 1", nil)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Stats().EntryCount)

	c.SetEnabled(true)
	c.Put("ds1", "SELECT 1", nil, sampleResult())
	_, hit = c.Get("ds1", "SELECT 1", nil)
	assert.True(t, hit)
}

func TestResultCache_ReplaceOnWriteKeepsByteAccounting(t *testing.T) {
	c := New(testLogger(), 10, time.Minute)
	c.Put("ds1", "SELECT 1", nil, sampleResult())
	first := c.Stats().EstimatedBytes

	c.Put("ds1", "SELECT 1", nil, sampleResult())
	assert.Equal(t, 1, c.Stats().EntryCount)
	assert.Equal(t, first, c.Stats().EstimatedBytes)
}

func TestResultCache_ConcurrentSameKeyPutsKeepByteAccounting(t *testing.T) {
	c := New(testLogger(), 10, time.Minute)
	result := sampleResult()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Put("ds1", "SELECT 1", nil, result)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Stats().EntryCount)
	assert.Equal(t, EstimateSize(result), c.Stats().EstimatedBytes)
}

func TestResultCache_EvictionOnCapacity(t *testing.T) {
	c := New(testLogger(), 2, time.Minute)
	c.Put("ds1", "SELECT 1", nil, sampleResult())
	c.Put("ds1", "SELECT 2", nil, sampleResult())
	c.Put("ds1", "SELECT 3", nil, sampleResult())

	stats := c.Stats()
	assert.Equal(t, 2, stats.EntryCount)
	assert.Equal(t, int64(1), stats.Evictions)
}

func TestResultCache_TTLExpiry(t *testing.T) {
	c := New(testLogger(), 10, 20*time.Millisecond)
	c.Put("ds1", "SELECT 1", nil, sampleResult())

	time.Sleep(60 * time.Millisecond)

	_, hit := c.Get("ds1", "SELECT 1", nil)
	assert.False(t, hit)
}

func TestResultCache_ConcurrentAccess(t *testing.T) {
	c := New(testLogger(), 100, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				sqlText := fmt.Sprintf("SELECT %d", i%20)
				c.Put("ds1", sqlText, nil, sampleResult())
				c.Get("ds1", sqlText, nil)
				if i%50 == 0 {
					c.Invalidate("ds1")
				}
			}
		}(g)
	}
	wg.Wait()

	// counters survived the contention without corruption
	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.Hits+stats.Misses, int64(1600))
}

func TestEstimateSize(t *testing.T) {
	size := EstimateSize(&domain.QueryResult{
		Columns: []string{"ab"},
		Rows:    [][]interface{}{{"xyz"}, {nil}},
	})
	// 2*2 column chars + (3*2+8) + (0*2+8)
	assert.Equal(t, int64(26), size)
}
