package visibility

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/constraint"
	"github.com/jkmerchant/spot/internal/ephem"
	"github.com/jkmerchant/spot/internal/metrics"
	"github.com/jkmerchant/spot/internal/site"
)

// Options tunes a visibility computation.
type Options struct {
	// MinGap coalesces adjacent windows separated by less than this
	// (a breakpoint of negligible duration should not fragment one
	// observing opportunity). Default 1 minute.
	MinGap time.Duration
	// Tolerance for crossing refinement. Default 1 second.
	Tolerance time.Duration
	// Workers bounds batch parallelism. Default runtime.NumCPU().
	Workers int
	// Refraction applies the site's atmospheric correction to target
	// altitudes.
	Refraction bool
}

func (o Options) withDefaults() Options {
	if o.MinGap <= 0 {
		o.MinGap = time.Minute
	}
	if o.Tolerance <= 0 {
		o.Tolerance = constraint.DefaultTolerance
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Request holds the parameters for a batch visibility computation.
type Request struct {
	Site        *site.Site
	Targets     []catalog.Target
	Constraints constraint.Set
	Span        ephem.TimeSpec
	Options     Options
}

// Compute runs the batch: one result per target, in input order. The
// solar/lunar ephemeris is sampled once into a shared read-only grid;
// each target is processed in its own goroutine bounded by a semaphore.
// Per-target failures land in the result entry; cancellation is checked
// between targets and between window merges.
func Compute(ctx context.Context, req Request, logger *slog.Logger) ([]Result, error) {
	opts := req.Options.withDefaults()
	if err := req.Span.Validate(); err != nil {
		return nil, err
	}

	grid, err := ephem.NewGrid(req.Site.Observer(), req.Span)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(req.Targets))
	sem := make(chan struct{}, opts.Workers)
	var wg sync.WaitGroup

	start := time.Now()
	for i := range req.Targets {
		wg.Add(1)
		go func(idx int, tgt *catalog.Target) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = Result{TargetID: tgt.ID, Error: "cancelled"}
				return
			}

			windows, err := Windows(ctx, req.Site, tgt, req.Constraints, req.Span, grid, opts, logger)
			if err != nil {
				metrics.IncVisibilityComputations("error")
				results[idx] = Result{TargetID: tgt.ID, Error: err.Error()}
				return
			}
			metrics.IncVisibilityComputations("ok")
			results[idx] = Result{TargetID: tgt.ID, Windows: windows}
		}(i, &req.Targets[i])
	}
	wg.Wait()
	metrics.ObserveVisibilityBatch(time.Since(start), len(req.Targets))

	return results, nil
}

// Windows computes the observable windows for a single target. The
// grid must cover the span and belong to the site's observer.
//
// Algorithm: collect constraint boundary crossings across the span;
// between consecutive breakpoints the constraint set's truth value is
// constant, so one midpoint evaluation per interval suffices. TRUE
// intervals merge into windows; gaps shorter than MinGap coalesce.
// A target observable across the whole span yields one window clipped
// to the span bounds; a target never observable yields none.
func Windows(ctx context.Context, st *site.Site, tgt *catalog.Target, set constraint.Set, spec ephem.TimeSpec, grid *ephem.Grid, opts Options, logger *slog.Logger) ([]Window, error) {
	opts = opts.withDefaults()

	effective := set.Override(tgt.MinElevationDeg, tgt.MoonSeparationDeg)

	posFn, err := tgt.PositionFunc(st.Observer(), opts.Refraction)
	if err != nil {
		return nil, err
	}

	sky := constraint.Sky{
		At: func(t time.Time) (constraint.Sample, error) {
			pos, err := posFn(t)
			if err != nil {
				return constraint.Sample{}, err
			}
			return constraint.Sample{Pos: pos, State: grid.At(t)}, nil
		},
		Observer: st.Observer(),
	}
	// Closed-form crossing finders need the (near-)fixed equatorial
	// position; use the apparent place at the span midpoint.
	if eq, ok := tgt.Apparent(spec.Start.Add(spec.Duration() / 2)); ok {
		sky.Equatorial = &eq
	}

	breakpoints, err := effective.Breakpoints(sky, spec, opts.Tolerance)
	if errors.Is(err, constraint.ErrNonConvergence) {
		// Explicit fallback: dense fixed-step breakpoints, always logged.
		// The windows are then step-accurate, not tolerance-accurate.
		metrics.IncCrossingFallbacks()
		logger.Warn("crossing finder fell back to dense sampling",
			"target_id", tgt.ID,
			"site", st.Name,
			"error", err,
		)
		breakpoints = denseBreakpoints(spec)
		err = nil
	}
	if err != nil {
		return nil, err
	}

	// Evaluate the set once per inter-breakpoint interval and merge.
	var (
		windows  []Window
		open     bool
		openFrom time.Time
	)
	for i := 0; i+1 < len(breakpoints); i++ {
		if ctx.Err() != nil {
			return windows, ctx.Err()
		}
		lo, hi := breakpoints[i], breakpoints[i+1]
		mid := lo.Add(hi.Sub(lo) / 2)
		s, err := sky.At(mid)
		if err != nil {
			return nil, err
		}
		if effective.Satisfied(s) {
			if !open {
				open = true
				openFrom = lo
			}
		} else if open {
			windows = appendWindow(windows, openFrom, lo, opts.MinGap)
			open = false
		}
	}
	if open {
		windows = appendWindow(windows, openFrom, spec.End, opts.MinGap)
	}

	// Quality metric per window.
	for i := range windows {
		if err := fillQuality(&windows[i], sky, spec.Step); err != nil {
			return nil, err
		}
		windows[i].TargetID = tgt.ID
		windows[i].SiteID = st.Name
	}

	return windows, nil
}

// appendWindow adds [start, end), coalescing with the previous window
// when the gap is below minGap.
func appendWindow(windows []Window, start, end time.Time, minGap time.Duration) []Window {
	if !start.Before(end) {
		return windows
	}
	if n := len(windows); n > 0 && start.Sub(windows[n-1].End) < minGap {
		windows[n-1].End = end
		return windows
	}
	return append(windows, Window{Start: start, End: end})
}

// fillQuality samples the target altitude across the window to record
// the maximum altitude and its time.
func fillQuality(w *Window, sky constraint.Sky, step time.Duration) error {
	if step <= 0 || step > w.Duration() {
		step = w.Duration()
	}
	maxAlt := -91.0
	var maxAt time.Time
	for t := w.Start; ; t = t.Add(step) {
		if t.After(w.End) {
			t = w.End
		}
		s, err := sky.At(t)
		if err != nil {
			return err
		}
		if s.Pos.AltDeg > maxAlt {
			maxAlt = s.Pos.AltDeg
			maxAt = t
		}
		if !t.Before(w.End) {
			break
		}
	}
	w.MaxAltDeg = maxAlt
	w.MaxAltTime = maxAt
	return nil
}

// denseBreakpoints returns fixed-step breakpoints at a quarter of the
// spec step, the fallback when crossing refinement fails.
func denseBreakpoints(spec ephem.TimeSpec) []time.Time {
	step := spec.Step / 4
	if step < time.Second {
		step = time.Second
	}
	var ts []time.Time
	for t := spec.Start; t.Before(spec.End); t = t.Add(step) {
		ts = append(ts, t)
	}
	return append(ts, spec.End)
}
