package constraint

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jkmerchant/spot/internal/ephem"
)

// ErrNonConvergence reports a crossing-finder that failed to converge
// within its tolerance and iteration budget. Callers fall back to dense
// fixed-step sampling for the affected span rather than failing the
// whole computation.
var ErrNonConvergence = errors.New("crossing finder did not converge")

// DefaultTolerance is the time tolerance for crossing refinement.
const DefaultTolerance = time.Second

// Bisection halves the bracket each iteration, so 48 iterations
// resolve any planning-scale span to well under a nanosecond; hitting
// the cap means the predicate is misbehaving (e.g. NaN positions).
const maxBisectIter = 48

// Sky describes the target under evaluation to the crossing finders.
type Sky struct {
	// At evaluates the target position and ephemeris state at t.
	At func(t time.Time) (Sample, error)
	// Equatorial carries the target's (approximately fixed) equatorial
	// position of date when it has one; closed-form finders need it.
	// Nil for satellites and other fast movers.
	Equatorial *ephem.Equatorial
	Observer   ephem.Observer
}

// crossingFinder is implemented by constraints that can locate their
// own truth-value flips better than a generic scan.
type crossingFinder interface {
	crossings(sky Sky, spec ephem.TimeSpec, tol time.Duration) ([]time.Time, error)
}

// Breakpoints returns the sorted, deduplicated union of every
// constraint's crossing times within the span, bracketed by the span
// bounds. Between consecutive breakpoints the set's truth value is
// constant by construction.
func (cs Set) Breakpoints(sky Sky, spec ephem.TimeSpec, tol time.Duration) ([]time.Time, error) {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	times := []time.Time{spec.Start, spec.End}
	for _, c := range cs {
		var (
			ts  []time.Time
			err error
		)
		if cf, ok := c.(crossingFinder); ok {
			ts, err = cf.crossings(sky, spec, tol)
		} else {
			ts, err = scanCrossings(func(t time.Time) (bool, error) {
				s, err := sky.At(t)
				if err != nil {
					return false, err
				}
				return c.Satisfied(s), nil
			}, spec, tol)
		}
		if err != nil {
			return nil, fmt.Errorf("%s crossings: %w", c.Kind(), err)
		}
		times = append(times, ts...)
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	// Deduplicate within tolerance and clip to the span.
	out := times[:0]
	for _, t := range times {
		if t.Before(spec.Start) || t.After(spec.End) {
			continue
		}
		if len(out) > 0 && t.Sub(out[len(out)-1]) < tol {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// scanCrossings finds predicate flips by coarse stepping at spec.Step
// and refining each flip by bisection down to tol.
func scanCrossings(pred func(time.Time) (bool, error), spec ephem.TimeSpec, tol time.Duration) ([]time.Time, error) {
	var crossings []time.Time

	prev, err := pred(spec.Start)
	if err != nil {
		return nil, err
	}
	prevT := spec.Start

	for t := spec.Start.Add(spec.Step); ; t = t.Add(spec.Step) {
		if t.After(spec.End) {
			t = spec.End
		}
		cur, err := pred(t)
		if err != nil {
			return nil, err
		}
		if cur != prev {
			x, err := bisect(pred, prevT, t, tol)
			if err != nil {
				return nil, err
			}
			crossings = append(crossings, x)
		}
		prev, prevT = cur, t
		if !t.Before(spec.End) {
			break
		}
	}
	return crossings, nil
}

// bisect locates the flip of pred within (lo, hi], assuming exactly one
// flip in the bracket. Returns the bracket midpoint at tolerance.
func bisect(pred func(time.Time) (bool, error), lo, hi time.Time, tol time.Duration) (time.Time, error) {
	loVal, err := pred(lo)
	if err != nil {
		return time.Time{}, err
	}
	for i := 0; i < maxBisectIter; i++ {
		if hi.Sub(lo) <= tol {
			return lo.Add(hi.Sub(lo) / 2), nil
		}
		mid := lo.Add(hi.Sub(lo) / 2)
		midVal, err := pred(mid)
		if err != nil {
			return time.Time{}, err
		}
		if midVal == loVal {
			lo = mid
		} else {
			hi = mid
		}
	}
	return time.Time{}, fmt.Errorf("%w: bracket %s after %d iterations",
		ErrNonConvergence, hi.Sub(lo), maxBisectIter)
}

// crossings implements the closed-form elevation crossing finder for
// targets with fixed equatorial coordinates.
//
// The altitude equals the floor h₀ at hour angles ±H₀ where
//
//	cos H₀ = (sin h₀ − sin φ sin δ) / (cos φ cos δ)
//
// Transit occurs when LST equals the target's RA; crossings repeat once
// per sidereal day. Each analytic time is refined by bisection against
// the actual predicate (which may include refraction), with a fallback
// to the generic scan when a bracket fails to flip.
func (c minElevation) crossings(sky Sky, spec ephem.TimeSpec, tol time.Duration) ([]time.Time, error) {
	if sky.Equatorial == nil {
		return scanCrossings(c.predOf(sky), spec, tol)
	}
	eq := *sky.Equatorial

	lat := sky.Observer.LatRad
	dec := eq.Dec.Rad()
	h0 := c.deg * math.Pi / 180

	cosH0 := (math.Sin(h0) - math.Sin(lat)*math.Sin(dec)) /
		(math.Cos(lat) * math.Cos(dec))
	if cosH0 < -1 || cosH0 > 1 {
		// Always above or always below the floor: no crossings.
		return nil, nil
	}
	H0 := math.Acos(cosH0)

	const siderealDay = 86164.0905 * float64(time.Second)

	// First transit at or after one sidereal day before the span start.
	theta0 := sky.Observer.LocalSidereal(spec.Start).Rad()
	dTransit := math.Mod(eq.RA.Rad()-theta0, 2*math.Pi)
	if dTransit < 0 {
		dTransit += 2 * math.Pi
	}
	transit := spec.Start.Add(time.Duration(dTransit / ephem.SiderealRate * float64(time.Second)))
	transit = transit.Add(-time.Duration(siderealDay))

	halfWidth := time.Duration(H0 / ephem.SiderealRate * float64(time.Second))
	// Refinement bracket around each analytic time. Refraction and
	// proper motion shift the true crossing by at most a few minutes.
	const bracket = 15 * time.Minute

	pred := c.predOf(sky)
	var crossings []time.Time
	for ; !transit.After(spec.End.Add(time.Duration(siderealDay))); transit = transit.Add(time.Duration(siderealDay)) {
		for _, guess := range []time.Time{transit.Add(-halfWidth), transit.Add(halfWidth)} {
			if guess.Before(spec.Start.Add(-bracket)) || guess.After(spec.End.Add(bracket)) {
				continue
			}
			x, ok, err := refineNear(pred, guess, bracket, tol)
			if err != nil {
				return nil, err
			}
			if !ok {
				// Bracket failed to flip; fall back to scanning.
				return scanCrossings(pred, spec, tol)
			}
			if !x.Before(spec.Start) && !x.After(spec.End) {
				crossings = append(crossings, x)
			}
		}
	}
	return crossings, nil
}

func (c minElevation) predOf(sky Sky) func(time.Time) (bool, error) {
	return func(t time.Time) (bool, error) {
		s, err := sky.At(t)
		if err != nil {
			return false, err
		}
		return c.Satisfied(s), nil
	}
}

// refineNear bisects for a predicate flip inside [guess-bracket,
// guess+bracket]. ok=false when the predicate does not flip there.
func refineNear(pred func(time.Time) (bool, error), guess time.Time, bracket time.Duration, tol time.Duration) (time.Time, bool, error) {
	lo := guess.Add(-bracket)
	hi := guess.Add(bracket)
	loVal, err := pred(lo)
	if err != nil {
		return time.Time{}, false, err
	}
	hiVal, err := pred(hi)
	if err != nil {
		return time.Time{}, false, err
	}
	if loVal == hiVal {
		return time.Time{}, false, nil
	}
	x, err := bisect(pred, lo, hi, tol)
	if err != nil {
		return time.Time{}, false, err
	}
	return x, true, nil
}
