package skycache

import (
	"context"
	"time"

	"github.com/jkmerchant/spot/internal/metrics"
)

// catalogChanged checks if the catalog has been reloaded since the
// cache was last built.
func (c *Cache) catalogChanged() bool {
	cat := c.store.Get()
	if cat == nil {
		return false
	}
	return !cat.LoadedAt.Equal(c.currentLoadedAt)
}

// performCutover rebuilds the entire cache against the new catalog.
//
// Strategy:
//  1. Set grace period flag (old frames continue serving reads)
//  2. Build new frame map in the background
//  3. Atomic swap: replace old frames with new
//  4. Clear grace period flag
//
// During the rebuild, reads against the old frames continue
// uninterrupted.
func (c *Cache) performCutover(ctx context.Context) {
	cat := c.store.Get()
	if cat == nil {
		return
	}

	c.logger.Info("catalog cutover starting",
		"old_catalog_loaded_at", c.currentLoadedAt.UTC().Format(time.RFC3339),
		"new_catalog_loaded_at", cat.LoadedAt.UTC().Format(time.RFC3339),
	)

	c.inGracePeriod.Store(true)
	metrics.SetCacheGracePeriodActive(true)

	start := time.Now()
	now := c.RoundToStep(time.Now())
	numFrames := int(c.config.Horizon/c.config.Step) + 1

	newFrames := make(map[time.Time]*entry, numFrames)
	generated := 0

	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			c.inGracePeriod.Store(false)
			metrics.SetCacheGracePeriodActive(false)
			c.logger.Warn("cutover cancelled by context")
			return
		default:
		}

		at := now.Add(time.Duration(i) * c.config.Step)
		f, err := c.gen.FrameAt(ctx, at)
		if err != nil {
			c.logger.Warn("cutover frame failed",
				"timestamp", at.UTC().Format(time.RFC3339),
				"error", err,
			)
			metrics.IncCacheRegenerationErrors()
			continue
		}

		key := c.RoundToStep(f.Timestamp)
		newFrames[key] = &entry{Frame: f, GeneratedAt: time.Now()}
		generated++
	}

	// Atomic swap.
	c.replaceAll(newFrames)
	c.currentLoadedAt = cat.LoadedAt

	c.inGracePeriod.Store(false)
	metrics.SetCacheGracePeriodActive(false)

	duration := time.Since(start)
	c.logger.Info("catalog cutover complete",
		"duration_ms", duration.Milliseconds(),
		"frames_replaced", generated,
	)
	metrics.ObserveCacheRegenerationDuration(duration)
}
