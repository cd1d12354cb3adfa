// Package skycache maintains a rolling window of precomputed sky
// frames for one site: the current horizontal position and airmass of
// every catalog target plus the sun and moon. A background worker
// generates frames at the leading edge and evicts expired ones; when
// the catalog changes, the cache is rebuilt gracefully without
// interrupting reads.
package skycache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/ephem"
	"github.com/jkmerchant/spot/internal/site"
)

// ErrNoCatalog reports frame generation before any catalog is loaded.
var ErrNoCatalog = errors.New("no catalog loaded")

// BodySky is the sun's or moon's place in one frame.
type BodySky struct {
	AltDeg float64 `json:"alt_deg"`
	AzDeg  float64 `json:"az_deg"`
}

// TargetSky is one target's place in one frame.
type TargetSky struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	AltDeg  float64 `json:"alt_deg"`
	AzDeg   float64 `json:"az_deg"`
	Airmass float64 `json:"airmass"`
}

// Frame is the sky over one site at one instant.
type Frame struct {
	Timestamp time.Time   `json:"timestamp"`
	Site      string      `json:"site"`
	Sun       BodySky     `json:"sun"`
	Moon      BodySky     `json:"moon"`
	MoonIllum float64     `json:"moon_illum"`
	Targets   []TargetSky `json:"targets"`
}

// compiledTarget is a target with its position function built once per
// catalog snapshot. SGP4 initialization in particular is too costly to
// repeat per frame.
type compiledTarget struct {
	id   string
	name string
	fn   catalog.PositionFunc
}

// Generator computes sky frames for one site against the current
// catalog snapshot.
type Generator struct {
	site       *site.Site
	store      *catalog.Store
	refraction bool
	logger     *slog.Logger

	mu       sync.Mutex
	loadedAt time.Time
	compiled []compiledTarget
}

// NewGenerator creates a frame generator.
func NewGenerator(st *site.Site, store *catalog.Store, refraction bool, logger *slog.Logger) *Generator {
	return &Generator{site: st, store: store, refraction: refraction, logger: logger}
}

// compile rebuilds the position functions when the catalog snapshot
// changed. Targets that fail to compile are skipped with a warning so
// one bad element set cannot take down the whole frame.
func (g *Generator) compile(cat *catalog.Catalog) []compiledTarget {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cat.LoadedAt.Equal(g.loadedAt) && g.compiled != nil {
		return g.compiled
	}

	obs := g.site.Observer()
	compiled := make([]compiledTarget, 0, len(cat.Targets))
	for i := range cat.Targets {
		tgt := &cat.Targets[i]
		fn, err := tgt.PositionFunc(obs, g.refraction)
		if err != nil {
			g.logger.Warn("target excluded from sky frames",
				"target_id", tgt.ID, "error", err)
			continue
		}
		compiled = append(compiled, compiledTarget{id: tgt.ID, name: tgt.Name, fn: fn})
	}
	g.loadedAt = cat.LoadedAt
	g.compiled = compiled
	return compiled
}

// FrameAt computes the sky frame for time t.
func (g *Generator) FrameAt(ctx context.Context, t time.Time) (*Frame, error) {
	cat := g.store.Get()
	if cat == nil {
		return nil, ErrNoCatalog
	}
	compiled := g.compile(cat)

	state, err := ephem.StateAt(g.site.Observer(), t)
	if err != nil {
		return nil, err
	}

	frame := &Frame{
		Timestamp: t.UTC(),
		Site:      g.site.Name,
		Sun:       BodySky{AltDeg: state.Sun.AltDeg, AzDeg: state.Sun.AzDeg},
		Moon:      BodySky{AltDeg: state.Moon.AltDeg, AzDeg: state.Moon.AzDeg},
		MoonIllum: state.MoonIllum,
		Targets:   make([]TargetSky, 0, len(compiled)),
	}

	for _, ct := range compiled {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		pos, err := ct.fn(t)
		if err != nil {
			g.logger.Debug("target position failed", "target_id", ct.id, "error", err)
			continue
		}
		frame.Targets = append(frame.Targets, TargetSky{
			ID:      ct.id,
			Name:    ct.name,
			AltDeg:  pos.AltDeg,
			AzDeg:   pos.AzDeg,
			Airmass: ephem.Airmass(pos.AltDeg),
		})
	}
	return frame, nil
}
