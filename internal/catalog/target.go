// Package catalog models observation targets independently of any
// source format: sidereal objects with catalog coordinates and proper
// motion, and earth satellites defined by two-line element sets.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/unit"

	"github.com/jkmerchant/spot/internal/ephem"
)

// ErrInvalidTarget reports malformed target coordinates or elements.
var ErrInvalidTarget = errors.New("invalid target")

// Kind distinguishes how a target's position is computed.
type Kind int

const (
	// KindSidereal is a catalog object with fixed equatorial
	// coordinates (plus optional proper motion).
	KindSidereal Kind = iota
	// KindSatellite is an earth-orbit object propagated from TLE lines.
	KindSatellite
)

func (k Kind) String() string {
	switch k {
	case KindSidereal:
		return "sidereal"
	case KindSatellite:
		return "satellite"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Target is one catalog entry. Immutable: computations never modify a
// Target, and per-target constraint overrides are carried as data.
type Target struct {
	ID   string
	Name string
	Kind Kind

	// Sidereal fields. Coordinates are at EpochJD (default J2000.0).
	RA      unit.RA
	Dec     unit.Angle
	EpochJD float64
	PMRA    float64 // mas/yr, on-sky (μα·cosδ)
	PMDec   float64 // mas/yr

	// Satellite fields.
	Line1, Line2 string

	// Planning metadata.
	Priority float64

	// Optional per-target constraint overrides, e.g. an instrument
	// elevation floor tighter than the site default.
	MinElevationDeg   *float64
	MoonSeparationDeg *float64
}

// Validate checks the fields the target's kind requires.
func (t *Target) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidTarget)
	}
	switch t.Kind {
	case KindSidereal:
		if math.IsNaN(t.RA.Rad()) || math.IsNaN(t.Dec.Rad()) {
			return fmt.Errorf("%w %q: NaN coordinates", ErrInvalidTarget, t.ID)
		}
		if d := t.Dec.Deg(); d < -90 || d > 90 {
			return fmt.Errorf("%w %q: declination %.4f out of range", ErrInvalidTarget, t.ID, d)
		}
	case KindSatellite:
		if err := validateTLELines(t.Line1, t.Line2); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidTarget, t.ID, err)
		}
	default:
		return fmt.Errorf("%w %q: unknown kind %d", ErrInvalidTarget, t.ID, int(t.Kind))
	}
	return nil
}

// epochOrJ2000 returns the coordinate epoch, defaulting to J2000.0.
func (t *Target) epochOrJ2000() float64 {
	if t.EpochJD == 0 {
		return base.J2000
	}
	return t.EpochJD
}

// PositionFunc returns the topocentric position of a target as a
// function of time: the single entry point the constraint and
// visibility engines use, uniform across target kinds.
//
// When refraction is true, the Bennett correction for the observer's
// atmosphere is added to the altitude uniformly.
type PositionFunc func(t time.Time) (ephem.Horizontal, error)

// PositionFunc builds the position function for this target at the
// given observer. For satellites the SGP4 model is initialized once
// here and reused across every evaluation.
func (t *Target) PositionFunc(obs ephem.Observer, refraction bool) (PositionFunc, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	switch t.Kind {
	case KindSidereal:
		eq := ephem.Equatorial{RA: t.RA, Dec: t.Dec}
		epoch := t.epochOrJ2000()
		pmRA, pmDec := t.PMRA, t.PMDec
		return func(at time.Time) (ephem.Horizontal, error) {
			if err := ephem.CheckTime(at); err != nil {
				return ephem.Horizontal{}, err
			}
			app := ephem.ApparentOfDate(eq, epoch, pmRA, pmDec, at)
			hz := obs.EquatorialToHorizontal(app, at)
			if refraction {
				hz.AltDeg += obs.Refraction(hz.AltDeg)
			}
			return hz, nil
		}, nil

	case KindSatellite:
		prop, err := newSGP4Propagator(t.Line1, t.Line2, t.ID)
		if err != nil {
			return nil, err
		}
		return func(at time.Time) (ephem.Horizontal, error) {
			if err := ephem.CheckTime(at); err != nil {
				return ephem.Horizontal{}, err
			}
			teme, err := prop.propagate(at)
			if err != nil {
				return ephem.Horizontal{}, err
			}
			ecef := ephem.TEMEToECEF(teme, at)
			hz, _ := obs.ECEFToHorizontal(ecef.X, ecef.Y, ecef.Z)
			if refraction {
				hz.AltDeg += obs.Refraction(hz.AltDeg)
			}
			return hz, nil
		}, nil
	}
	return nil, fmt.Errorf("%w %q: unknown kind", ErrInvalidTarget, t.ID)
}

// Apparent returns the sidereal target's equatorial position of date
// (proper motion + precession). Satellites report ok=false: their
// equatorial position is range-dependent and not meaningful for
// footprint or separation queries.
func (t *Target) Apparent(at time.Time) (ephem.Equatorial, bool) {
	if t.Kind != KindSidereal {
		return ephem.Equatorial{}, false
	}
	eq := ephem.ApparentOfDate(ephem.Equatorial{RA: t.RA, Dec: t.Dec},
		t.epochOrJ2000(), t.PMRA, t.PMDec, at)
	return eq, true
}
