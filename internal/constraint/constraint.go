// Package constraint implements composable observability predicates and
// their boundary-crossing finders. A Constraint answers "is this target
// observable at this instant"; a Set is the conjunction used by one
// visibility computation.
package constraint

import (
	"fmt"
	"math"

	"github.com/jkmerchant/spot/internal/ephem"
)

// Kind identifies a constraint family.
type Kind string

const (
	KindElevation        Kind = "elevation"
	KindAirmass          Kind = "airmass"
	KindAzimuth          Kind = "azimuth"
	KindHorizon          Kind = "horizon"
	KindSunAltitude      Kind = "sun-altitude"
	KindMoonSeparation   Kind = "moon-separation"
	KindMoonIllumination Kind = "moon-illumination"
	KindCustom           Kind = "custom"
)

// Sample is the evaluation input: the target's topocentric position
// plus the target-independent ephemeris state at the same instant.
type Sample struct {
	Pos   ephem.Horizontal
	State ephem.State
}

// Constraint is an observability predicate.
type Constraint interface {
	Kind() Kind
	Satisfied(s Sample) bool
}

// Set is an immutable conjunction of constraints.
type Set []Constraint

// Satisfied reports whether every constraint in the set holds.
func (cs Set) Satisfied(s Sample) bool {
	for _, c := range cs {
		if !c.Satisfied(s) {
			return false
		}
	}
	return true
}

// Override returns a copy of the set with per-target limits applied:
// a non-nil minElevationDeg replaces (or adds) the elevation floor, a
// non-nil moonSeparationDeg replaces (or adds) the moon separation
// minimum. The receiver is not modified.
func (cs Set) Override(minElevationDeg, moonSeparationDeg *float64) Set {
	if minElevationDeg == nil && moonSeparationDeg == nil {
		return cs
	}
	out := make(Set, 0, len(cs)+2)
	for _, c := range cs {
		if minElevationDeg != nil && c.Kind() == KindElevation {
			continue
		}
		if moonSeparationDeg != nil && c.Kind() == KindMoonSeparation {
			continue
		}
		out = append(out, c)
	}
	if minElevationDeg != nil {
		out = append(out, MinElevation(*minElevationDeg))
	}
	if moonSeparationDeg != nil {
		out = append(out, MoonSeparationMin(*moonSeparationDeg))
	}
	return out
}

// minElevation requires altitude >= a floor. Also backs MaxAirmass,
// which is an elevation floor in disguise.
type minElevation struct {
	kind Kind
	deg  float64
}

// MinElevation returns an elevation-floor constraint in degrees.
func MinElevation(deg float64) Constraint {
	return minElevation{kind: KindElevation, deg: deg}
}

// MaxAirmass returns a maximum-airmass constraint. Airmass X maps to
// the altitude floor 90° − arccos(1/X) in the secant model.
func MaxAirmass(x float64) Constraint {
	if x < 1 {
		x = 1
	}
	return minElevation{kind: KindAirmass, deg: 90 - math.Acos(1/x)*180/math.Pi}
}

func (c minElevation) Kind() Kind { return c.kind }

func (c minElevation) Satisfied(s Sample) bool {
	return s.Pos.AltDeg >= c.deg
}

// azimuthRange requires azimuth within [min, max], wrap-aware: a range
// with min > max spans north (e.g. 300°–60°).
type azimuthRange struct {
	minDeg, maxDeg float64
}

// AzimuthRange returns an azimuth-limit constraint in degrees.
func AzimuthRange(minDeg, maxDeg float64) Constraint {
	return azimuthRange{minDeg: norm360(minDeg), maxDeg: norm360(maxDeg)}
}

func (c azimuthRange) Kind() Kind { return KindAzimuth }

func (c azimuthRange) Satisfied(s Sample) bool {
	az := norm360(s.Pos.AzDeg)
	if c.minDeg <= c.maxDeg {
		return az >= c.minDeg && az <= c.maxDeg
	}
	return az >= c.minDeg || az <= c.maxDeg
}

// horizonProfile requires altitude above a site-local horizon function.
type horizonProfile struct {
	minAltAt func(azDeg float64) float64
}

// HorizonProfile returns a constraint enforcing a site's local horizon
// limit; minAltAt maps azimuth to the minimum usable altitude there.
func HorizonProfile(minAltAt func(azDeg float64) float64) Constraint {
	return horizonProfile{minAltAt: minAltAt}
}

func (c horizonProfile) Kind() Kind { return KindHorizon }

func (c horizonProfile) Satisfied(s Sample) bool {
	return s.Pos.AltDeg >= c.minAltAt(s.Pos.AzDeg)
}

// sunAltitudeMax requires the sun at or below an altitude: the twilight
// constraint.
type sunAltitudeMax struct {
	deg float64
}

// SunAltitudeMax returns a twilight constraint: satisfied while the
// sun's altitude is at or below deg.
func SunAltitudeMax(deg float64) Constraint {
	return sunAltitudeMax{deg: deg}
}

// Twilight definitions by sun altitude.
const (
	CivilTwilightDeg        = -6
	NauticalTwilightDeg     = -12
	AstronomicalTwilightDeg = -18
)

// AstronomicalNight requires the sun below -18°.
func AstronomicalNight() Constraint { return SunAltitudeMax(AstronomicalTwilightDeg) }

// NauticalNight requires the sun below -12°.
func NauticalNight() Constraint { return SunAltitudeMax(NauticalTwilightDeg) }

func (c sunAltitudeMax) Kind() Kind { return KindSunAltitude }

func (c sunAltitudeMax) Satisfied(s Sample) bool {
	return s.State.Sun.AltDeg <= c.deg
}

// moonSeparationMin requires angular distance from the moon, waived
// while the moon is below the horizon.
type moonSeparationMin struct {
	deg float64
}

// MoonSeparationMin returns a minimum moon-separation constraint in
// degrees.
func MoonSeparationMin(deg float64) Constraint {
	return moonSeparationMin{deg: deg}
}

func (c moonSeparationMin) Kind() Kind { return KindMoonSeparation }

func (c moonSeparationMin) Satisfied(s Sample) bool {
	if s.State.Moon.AltDeg < 0 {
		return true
	}
	return ephem.SeparationHorizontal(s.Pos, s.State.Moon) >= c.deg
}

// moonIlluminationMax caps the lunar illuminated fraction, waived while
// the moon is below the horizon.
type moonIlluminationMax struct {
	frac float64
}

// MoonIlluminationMax returns a maximum moon-illumination constraint
// (fraction in [0, 1]).
func MoonIlluminationMax(frac float64) Constraint {
	return moonIlluminationMax{frac: frac}
}

func (c moonIlluminationMax) Kind() Kind { return KindMoonIllumination }

func (c moonIlluminationMax) Satisfied(s Sample) bool {
	if s.State.Moon.AltDeg < 0 {
		return true
	}
	return s.State.MoonIllum <= c.frac
}

// custom wraps an arbitrary predicate, e.g. an instrument limit.
type custom struct {
	name string
	fn   func(Sample) bool
}

// Custom returns a named custom constraint.
func Custom(name string, fn func(Sample) bool) Constraint {
	return custom{name: name, fn: fn}
}

func (c custom) Kind() Kind { return KindCustom }

func (c custom) Satisfied(s Sample) bool { return c.fn(s) }

func (c custom) String() string { return fmt.Sprintf("custom(%s)", c.name) }

func norm360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
