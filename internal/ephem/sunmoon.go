package ephem

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/moonillum"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/solar"
)

// Mean Earth radius used for the lunar parallax correction, km.
const earthRadiusKm = 6378.14

// SunEquatorial returns the apparent geocentric equatorial position of
// the Sun at t.
func SunEquatorial(t time.Time) (Equatorial, error) {
	if err := CheckTime(t); err != nil {
		return Equatorial{}, err
	}
	ra, dec := solar.ApparentEquatorial(JulianDate(t))
	return Equatorial{RA: ra, Dec: dec}, nil
}

// MoonEquatorial returns the apparent geocentric equatorial position of
// the Moon at t along with its distance in km.
func MoonEquatorial(t time.Time) (Equatorial, float64, error) {
	if err := CheckTime(t); err != nil {
		return Equatorial{}, 0, err
	}
	jde := JulianDate(t)
	lambda, beta, distKm := moonposition.Position(jde)
	eps := nutation.MeanObliquity(jde)
	ra, dec := coord.EclToEq(lambda, beta, math.Sin(eps.Rad()), math.Cos(eps.Rad()))
	return Equatorial{RA: ra, Dec: dec}, distKm, nil
}

// MoonIlluminatedFraction returns the fraction [0, 1] of the lunar disk
// illuminated at t.
func MoonIlluminatedFraction(t time.Time) (float64, error) {
	moon, _, err := MoonEquatorial(t)
	if err != nil {
		return 0, err
	}
	sun, err := SunEquatorial(t)
	if err != nil {
		return 0, err
	}
	i := moonillum.PhaseAngleEq2(moon.RA, moon.Dec, sun.RA, sun.Dec)
	return base.Illuminated(i), nil
}

// SunHorizontal returns the Sun's topocentric altitude and azimuth.
func (o Observer) SunHorizontal(t time.Time) (Horizontal, error) {
	eq, err := SunEquatorial(t)
	if err != nil {
		return Horizontal{}, err
	}
	return o.EquatorialToHorizontal(eq, t), nil
}

// MoonHorizontal returns the Moon's topocentric altitude and azimuth
// plus the illuminated fraction. The altitude carries a first-order
// parallax correction, which matters for the Moon (up to ~1°).
func (o Observer) MoonHorizontal(t time.Time) (Horizontal, float64, error) {
	eq, distKm, err := MoonEquatorial(t)
	if err != nil {
		return Horizontal{}, 0, err
	}
	illum, err := MoonIlluminatedFraction(t)
	if err != nil {
		return Horizontal{}, 0, err
	}
	hz := o.EquatorialToHorizontal(eq, t)
	par := math.Asin(earthRadiusKm/distKm) * 180 / math.Pi
	hz.AltDeg -= par * math.Cos(hz.AltDeg*math.Pi/180)
	return hz, illum, nil
}
