package constraint

import (
	"math"
	"testing"
	"time"

	"github.com/soniakeys/unit"

	"github.com/jkmerchant/spot/internal/ephem"
)

// skyFor builds a Sky for a fixed equatorial target with no refraction
// and no ephemeris state (elevation-only predicates).
func skyFor(obs ephem.Observer, eq ephem.Equatorial) Sky {
	return Sky{
		At: func(at time.Time) (Sample, error) {
			return Sample{Pos: obs.EquatorialToHorizontal(eq, at)}, nil
		},
		Equatorial: &eq,
		Observer:   obs,
	}
}

func TestBisect(t *testing.T) {
	flip := time.Date(2026, 3, 1, 3, 17, 42, 0, time.UTC)
	pred := func(at time.Time) (bool, error) {
		return at.Before(flip), nil
	}

	lo := flip.Add(-2 * time.Hour)
	hi := flip.Add(5 * time.Hour)
	got, err := bisect(pred, lo, hi, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if d := got.Sub(flip); d < -time.Second || d > time.Second {
		t.Errorf("bisect found %v, off by %v", got, d)
	}
}

func TestScanCrossings(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	spec := ephem.TimeSpec{Start: start, End: start.Add(10 * time.Hour), Step: 5 * time.Minute}

	// True inside two disjoint intervals: four crossings.
	in := func(at time.Time) bool {
		h := at.Sub(start).Hours()
		return (h > 1 && h < 3) || (h > 6 && h < 7.5)
	}
	got, err := scanCrossings(func(at time.Time) (bool, error) { return in(at), nil }, spec, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("found %d crossings, want 4: %v", len(got), got)
	}
	wantHours := []float64{1, 3, 6, 7.5}
	for i, x := range got {
		if d := math.Abs(x.Sub(start).Hours() - wantHours[i]); d > 2.0/3600 {
			t.Errorf("crossing %d at +%.4fh, want %.4fh", i, x.Sub(start).Hours(), wantHours[i])
		}
	}
}

func TestClosedFormMatchesScan(t *testing.T) {
	obs := ephem.NewObserver(19.8255, -155.48, 4205)
	eq := ephem.Equatorial{RA: unit.RAFromDeg(150), Dec: unit.AngleFromDeg(40)}
	sky := skyFor(obs, eq)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	spec := ephem.TimeSpec{Start: start, End: start.Add(24 * time.Hour), Step: time.Minute}

	c := minElevation{kind: KindElevation, deg: 30}
	analytic, err := c.crossings(sky, spec, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	scanned, err := scanCrossings(c.predOf(sky), spec, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if len(analytic) != len(scanned) {
		t.Fatalf("analytic found %d crossings, scan found %d", len(analytic), len(scanned))
	}
	// Dec +40 from latitude +19.8 with a 30° floor rises and sets once
	// per sidereal day: two crossings in 24 hours.
	if len(analytic) != 2 {
		t.Errorf("found %d crossings in 24h, want 2: %v", len(analytic), analytic)
	}
	for i := range analytic {
		if d := analytic[i].Sub(scanned[i]); d < -2*time.Second || d > 2*time.Second {
			t.Errorf("crossing %d: analytic %v vs scan %v (Δ %v)", i, analytic[i], scanned[i], d)
		}
	}
}

func TestClosedFormCircumpolar(t *testing.T) {
	obs := ephem.NewObserver(70, 0, 0)
	spec := ephem.TimeSpec{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Step:  time.Minute,
	}

	// Dec +89 from latitude 70: always at least ~69° up, never crosses a
	// 30° floor.
	high := ephem.Equatorial{RA: unit.RAFromDeg(0), Dec: unit.AngleFromDeg(89)}
	c := minElevation{kind: KindElevation, deg: 30}
	got, err := c.crossings(skyFor(obs, high), spec, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("circumpolar target produced %d crossings: %v", len(got), got)
	}

	// Dec -60 never rises from latitude 70.
	never := ephem.Equatorial{RA: unit.RAFromDeg(0), Dec: unit.AngleFromDeg(-60)}
	got, err = c.crossings(skyFor(obs, never), spec, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("never-rising target produced %d crossings: %v", len(got), got)
	}
}

func TestBreakpoints(t *testing.T) {
	obs := ephem.NewObserver(19.8255, -155.48, 4205)
	eq := ephem.Equatorial{RA: unit.RAFromDeg(150), Dec: unit.AngleFromDeg(40)}
	sky := skyFor(obs, eq)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	spec := ephem.TimeSpec{Start: start, End: start.Add(24 * time.Hour), Step: time.Minute}

	set := Set{MinElevation(30), AzimuthRange(0, 180)}
	bps, err := set.Breakpoints(sky, spec, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if len(bps) < 2 {
		t.Fatalf("got %d breakpoints, want at least the span bounds", len(bps))
	}
	if !bps[0].Equal(spec.Start) {
		t.Errorf("first breakpoint %v, want span start", bps[0])
	}
	for i := 1; i < len(bps); i++ {
		if !bps[i].After(bps[i-1]) {
			t.Errorf("breakpoints not strictly increasing at %d: %v, %v", i, bps[i-1], bps[i])
		}
		if bps[i].Before(spec.Start) || bps[i].After(spec.End) {
			t.Errorf("breakpoint %v outside the span", bps[i])
		}
	}
	// Elevation contributes two crossings; the azimuth limit adds its
	// own. More breakpoints than just the bounds must be present.
	if len(bps) < 4 {
		t.Errorf("got %d breakpoints, expected elevation and azimuth crossings: %v", len(bps), bps)
	}
}
