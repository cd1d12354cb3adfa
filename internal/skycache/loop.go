package skycache

import (
	"context"
	"time"

	"github.com/jkmerchant/spot/internal/metrics"
)

// Start begins the background cache maintenance loop. It performs an
// initial warmup (filling the full [now, now+horizon] window), then
// continuously:
//   - Generates new frames at the leading edge
//   - Evicts expired frames from the trailing edge
//   - Detects catalog changes and triggers cutover
//
// Blocks until ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	if !c.waitForCatalog(ctx) {
		return
	}

	c.warmup(ctx)

	ticker := time.NewTicker(c.config.Step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("sky cache generator stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// waitForCatalog blocks until a catalog is available in the store,
// checking every second. Returns false if ctx is cancelled.
func (c *Cache) waitForCatalog(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("sky cache waiting for catalog...")
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("catalog available, starting sky cache warmup")
				return true
			}
		}
	}
}

// warmup fills the cache with frames for [now, now+horizon].
func (c *Cache) warmup(ctx context.Context) {
	cat := c.store.Get()
	if cat == nil {
		return
	}
	c.currentLoadedAt = cat.LoadedAt

	now := c.RoundToStep(time.Now())
	numFrames := int(c.config.Horizon/c.config.Step) + 1

	c.logger.Info("sky cache warmup starting",
		"frames", numFrames,
		"from", now.UTC().Format(time.RFC3339),
		"to", now.Add(c.config.Horizon).UTC().Format(time.RFC3339),
	)

	start := time.Now()
	generated := 0

	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		at := now.Add(time.Duration(i) * c.config.Step)
		f, err := c.gen.FrameAt(ctx, at)
		if err != nil {
			c.logger.Warn("warmup frame failed", "timestamp", at, "error", err)
			metrics.IncCacheRegenerationErrors()
			continue
		}

		c.put(f)
		generated++
	}

	c.logger.Info("sky cache warmup complete",
		"generated", generated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the maintenance loop.
func (c *Cache) tick(ctx context.Context) {
	if c.catalogChanged() {
		c.performCutover(ctx)
		return
	}

	c.generateLeadingEdge(ctx)
	c.evictExpired()
}

// generateLeadingEdge generates the frame at the leading edge of the
// window.
func (c *Cache) generateLeadingEdge(ctx context.Context) {
	target := c.RoundToStep(time.Now().Add(c.config.Horizon))

	// Skip if already cached.
	if c.Get(target) != nil {
		return
	}

	start := time.Now()
	f, err := c.gen.FrameAt(ctx, target)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("leading edge frame failed",
			"timestamp", target.UTC().Format(time.RFC3339),
			"error", err,
		)
		metrics.IncCacheRegenerationErrors()
		return
	}

	c.put(f)
	metrics.ObserveCacheRegenerationDuration(duration)

	c.logger.Debug("leading edge frame generated",
		"timestamp", target.UTC().Format(time.RFC3339),
		"duration_ms", duration.Milliseconds(),
	)
}
