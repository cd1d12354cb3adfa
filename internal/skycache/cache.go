package skycache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/metrics"
)

// Config holds cache configuration loaded from environment variables.
type Config struct {
	Step        time.Duration // Frame interval (default: 10s)
	Horizon     time.Duration // How far ahead to cache (default: 600s)
	GracePeriod time.Duration // Catalog cutover grace period (default: 30s)
	Buffer      time.Duration // Keep frames this long past expiration (default: 60s)
}

// entry wraps a frame with generation metadata.
type entry struct {
	Frame       *Frame
	GeneratedAt time.Time
}

// Cache is an in-memory sky frame cache with a rolling window. Safe
// for concurrent use by multiple goroutines.
type Cache struct {
	mu     sync.RWMutex
	frames map[time.Time]*entry

	config Config
	gen    *Generator
	store  *catalog.Store
	logger *slog.Logger

	// Current catalog snapshot, for change detection.
	currentLoadedAt time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	// Cutover state.
	inGracePeriod atomic.Bool
}

// New creates a sky frame cache.
func New(config Config, gen *Generator, store *catalog.Store, logger *slog.Logger) *Cache {
	logger.Info("sky cache initialized",
		"step_seconds", config.Step.Seconds(),
		"horizon_seconds", config.Horizon.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
		"grace_period_seconds", config.GracePeriod.Seconds(),
	)

	return &Cache{
		frames: make(map[time.Time]*entry),
		config: config,
		gen:    gen,
		store:  store,
		logger: logger,
	}
}

// RoundToStep rounds a timestamp down to the nearest step boundary so
// lookups hit consistently. Always converts to UTC first.
func (c *Cache) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(c.config.Step)
}

// Get returns the frame for the given timestamp, or nil if not cached.
// The timestamp is rounded to the step boundary.
func (c *Cache) Get(t time.Time) *Frame {
	key := c.RoundToStep(t)

	c.mu.RLock()
	e, ok := c.frames[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return e.Frame
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// GetLatest returns the frame closest to (but not after) the current
// time.
func (c *Cache) GetLatest() *Frame {
	now := c.RoundToStep(time.Now())

	c.mu.RLock()
	defer c.mu.RUnlock()

	// Walk backwards from now to find the most recent entry.
	for i := 0; i < 10; i++ {
		key := now.Add(-time.Duration(i) * c.config.Step)
		if e, ok := c.frames[key]; ok {
			c.hits.Add(1)
			metrics.IncCacheHits()
			return e.Frame
		}
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// put stores a frame. Caller must not hold mu.
func (c *Cache) put(f *Frame) {
	key := c.RoundToStep(f.Timestamp)
	e := &entry{Frame: f, GeneratedAt: time.Now()}

	c.mu.Lock()
	c.frames[key] = e
	c.mu.Unlock()

	c.updateMetrics()
}

// evictExpired removes frames older than now - buffer.
func (c *Cache) evictExpired() int {
	cutoff := time.Now().Add(-c.config.Buffer)
	var removed int

	c.mu.Lock()
	for ts := range c.frames {
		if ts.Before(cutoff) {
			delete(c.frames, ts)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("sky cache eviction", "frames_removed", removed)
	}

	return removed
}

// replaceAll atomically replaces all frames (used during catalog
// cutover).
func (c *Cache) replaceAll(newFrames map[time.Time]*entry) {
	c.mu.Lock()
	c.frames = newFrames
	c.mu.Unlock()
	c.updateMetrics()
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries         int       `json:"entries"`
	SizeBytes       int64     `json:"size_bytes"`
	OldestTimestamp time.Time `json:"oldest_timestamp"`
	NewestTimestamp time.Time `json:"newest_timestamp"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	Evictions       int64     `json:"evictions"`
	InGracePeriod   bool      `json:"in_grace_period"`
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	count := len(c.frames)

	var oldest, newest time.Time
	for ts := range c.frames {
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
		if newest.IsZero() || ts.After(newest) {
			newest = ts
		}
	}
	c.mu.RUnlock()

	return Stats{
		Entries:         count,
		SizeBytes:       c.estimateSizeBytes(),
		OldestTimestamp: oldest,
		NewestTimestamp: newest,
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Evictions:       c.evictions.Load(),
		InGracePeriod:   c.inGracePeriod.Load(),
	}
}

// estimateSizeBytes returns a rough estimate of the cache memory
// footprint.
func (c *Cache) estimateSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total int64
	for _, e := range c.frames {
		if e.Frame == nil {
			continue
		}
		tgtSize := int64(len(e.Frame.Targets)) * int64(unsafe.Sizeof(TargetSky{}))
		for _, t := range e.Frame.Targets {
			tgtSize += int64(len(t.ID) + len(t.Name))
		}
		// Frame header plus entry pointer and GeneratedAt.
		total += tgtSize + int64(unsafe.Sizeof(Frame{})) + 32
	}

	// Map overhead (rough: 8 bytes per bucket).
	total += int64(len(c.frames)) * 8

	return total
}

// updateMetrics publishes current cache size to Prometheus.
func (c *Cache) updateMetrics() {
	c.mu.RLock()
	count := len(c.frames)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
	metrics.SetCacheSizeBytes(c.estimateSizeBytes())
}
