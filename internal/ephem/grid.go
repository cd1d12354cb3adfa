package ephem

import (
	"math"
	"time"

	"github.com/soniakeys/unit"
)

// State holds the target-independent ephemeris quantities at one
// instant: everything the constraint engine needs besides the target's
// own position.
type State struct {
	Time      time.Time
	LST       unit.Angle
	Sun       Horizontal
	SunEq     Equatorial
	Moon      Horizontal
	MoonEq    Equatorial
	MoonIllum float64
}

// Grid is a read-only table of sun/moon samples for one observer and
// time span. Building it once per batch and sharing it across all
// target computations is the main performance lever: solar and lunar
// positions are target-independent and expensive relative to a single
// frame rotation.
//
// Sun/moon equatorial positions move slowly (the Moon's RA changes
// ~0.5°/h), so State interpolates nothing: it reuses the nearest
// sample's equatorial coordinates and recomputes the horizontal
// rotation exactly for the requested instant.
type Grid struct {
	obs     Observer
	start   time.Time
	step    time.Duration
	samples []gridSample
}

type gridSample struct {
	sunEq     Equatorial
	moonEq    Equatorial
	moonDist  float64
	moonIllum float64
}

// Grid sample spacing. Nearest-sample lookup at this spacing keeps the
// lunar position error under ~0.1°, well inside constraint tolerances.
const gridStep = 5 * time.Minute

// NewGrid samples the solar and lunar ephemeris across the span.
func NewGrid(obs Observer, spec TimeSpec) (*Grid, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	step := gridStep
	n := int(spec.Duration()/step) + 2
	g := &Grid{obs: obs, start: spec.Start, step: step, samples: make([]gridSample, 0, n)}
	for i := 0; i < n; i++ {
		t := spec.Start.Add(time.Duration(i) * step)
		sunEq, err := SunEquatorial(t)
		if err != nil {
			return nil, err
		}
		moonEq, dist, err := MoonEquatorial(t)
		if err != nil {
			return nil, err
		}
		illum, err := MoonIlluminatedFraction(t)
		if err != nil {
			return nil, err
		}
		g.samples = append(g.samples, gridSample{
			sunEq: sunEq, moonEq: moonEq, moonDist: dist, moonIllum: illum,
		})
	}
	return g, nil
}

// At returns the ephemeris state for time t. Times outside the sampled
// span clamp to the nearest edge sample.
func (g *Grid) At(t time.Time) State {
	idx := int(math.Round(float64(t.Sub(g.start)) / float64(g.step)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(g.samples) {
		idx = len(g.samples) - 1
	}
	s := g.samples[idx]

	moonHz := g.obs.EquatorialToHorizontal(s.moonEq, t)
	par := math.Asin(earthRadiusKm/s.moonDist) * 180 / math.Pi
	moonHz.AltDeg -= par * math.Cos(moonHz.AltDeg*math.Pi/180)

	return State{
		Time:      t,
		LST:       g.obs.LocalSidereal(t),
		Sun:       g.obs.EquatorialToHorizontal(s.sunEq, t),
		SunEq:     s.sunEq,
		Moon:      moonHz,
		MoonEq:    s.moonEq,
		MoonIllum: s.moonIllum,
	}
}

// Observer returns the observer the grid was built for.
func (g *Grid) Observer() Observer {
	return g.obs
}

// StateAt computes a full ephemeris state without a grid. Used for
// one-off queries; batch computations should share a Grid.
func StateAt(obs Observer, t time.Time) (State, error) {
	sunEq, err := SunEquatorial(t)
	if err != nil {
		return State{}, err
	}
	moonEq, _, err := MoonEquatorial(t)
	if err != nil {
		return State{}, err
	}
	moonHz, illum, err := obs.MoonHorizontal(t)
	if err != nil {
		return State{}, err
	}
	return State{
		Time:      t,
		LST:       obs.LocalSidereal(t),
		Sun:       obs.EquatorialToHorizontal(sunEq, t),
		SunEq:     sunEq,
		Moon:      moonHz,
		MoonEq:    moonEq,
		MoonIllum: illum,
	}, nil
}
