package ephem

import (
	"math"
	"time"

	"github.com/soniakeys/unit"
)

// Equatorial is a position in the equatorial frame.
type Equatorial struct {
	RA  unit.RA
	Dec unit.Angle
}

// Horizontal is a topocentric position. Azimuth 0 = North, measured
// clockwise through East; altitude 0 = horizon, 90 = zenith.
type Horizontal struct {
	AltDeg float64
	AzDeg  float64
}

// Observer is a ground station. ECEF coordinates are precomputed once
// so they can be reused across many look-angle computations.
type Observer struct {
	LatRad, LonRad, ElevM float64 // geodetic (radians, meters above ellipsoid)
	ECEFx, ECEFy, ECEFz   float64 // precomputed ECEF (meters)

	// Atmosphere at the site, used by the Bennett refraction model.
	// Zero pressure disables refraction.
	PressureMbar float64
	TempC        float64
}

// EquatorialToHorizontal converts an equatorial position to topocentric
// horizontal coordinates at time t. Pure geometric transform: no
// refraction is applied (see Refraction).
func (o Observer) EquatorialToHorizontal(eq Equatorial, t time.Time) Horizontal {
	ha := o.LocalSidereal(t).Rad() - eq.RA.Rad() // hour angle, west positive

	sinLat := math.Sin(o.LatRad)
	cosLat := math.Cos(o.LatRad)
	sinDec := math.Sin(eq.Dec.Rad())
	cosDec := math.Cos(eq.Dec.Rad())
	sinHA := math.Sin(ha)
	cosHA := math.Cos(ha)

	sinAlt := sinLat*sinDec + cosLat*cosDec*cosHA
	alt := math.Asin(clamp1(sinAlt))

	// Azimuth from North, clockwise: atan2 referenced so that HA=0
	// (transit) gives az 0 or 180 depending on declination vs latitude.
	az := math.Atan2(sinHA, cosHA*sinLat-math.Tan(eq.Dec.Rad())*cosLat) + math.Pi
	az = math.Mod(az, 2*math.Pi)
	if az < 0 {
		az += 2 * math.Pi
	}

	return Horizontal{
		AltDeg: alt * 180 / math.Pi,
		AzDeg:  az * 180 / math.Pi,
	}
}

// HorizontalToEquatorial is the documented inverse of
// EquatorialToHorizontal at the same site and time.
func (o Observer) HorizontalToEquatorial(hz Horizontal, t time.Time) Equatorial {
	alt := hz.AltDeg * math.Pi / 180
	az := hz.AzDeg*math.Pi/180 - math.Pi // back to the atan2 reference

	sinLat := math.Sin(o.LatRad)
	cosLat := math.Cos(o.LatRad)
	sinAlt := math.Sin(alt)
	cosAlt := math.Cos(alt)

	sinDec := sinLat*sinAlt + cosLat*cosAlt*math.Cos(az+math.Pi)
	dec := math.Asin(clamp1(sinDec))

	ha := math.Atan2(math.Sin(az), math.Cos(az)*sinLat+math.Tan(alt)*cosLat)

	ra := o.LocalSidereal(t).Rad() - ha
	ra = math.Mod(ra, 2*math.Pi)
	if ra < 0 {
		ra += 2 * math.Pi
	}

	return Equatorial{RA: unit.RAFromRad(ra), Dec: unit.Angle(dec)}
}

// Refraction returns the Bennett atmospheric refraction correction in
// degrees for a true altitude, scaled by site pressure and temperature.
// Returns 0 when the observer carries no pressure data or the altitude
// is below -1° (the formula diverges near the nadir).
func (o Observer) Refraction(altDeg float64) float64 {
	if o.PressureMbar <= 0 || altDeg < -1 {
		return 0
	}
	// Bennett 1982, argument in degrees, result in arc minutes.
	r := 1.0 / math.Tan((altDeg+7.31/(altDeg+4.4))*math.Pi/180)
	r *= o.PressureMbar / 1010 * 283 / (273 + o.TempC)
	return r / 60
}

// Airmass returns the relative optical path length for an altitude,
// using the plane-parallel secant model clipped at the horizon.
// Altitudes at or below 0 report 99 (conventional "unobservable").
func Airmass(altDeg float64) float64 {
	if altDeg <= 0 {
		return 99
	}
	z := (90 - altDeg) * math.Pi / 180
	am := 1 / math.Cos(z)
	if am > 99 {
		am = 99
	}
	return am
}

// Separation returns the angular separation between two equatorial
// positions, in degrees, via the haversine form (stable at small
// separations).
func Separation(a, b Equatorial) float64 {
	dRA := a.RA.Rad() - b.RA.Rad()
	dDec := a.Dec.Rad() - b.Dec.Rad()
	h := hav(dDec) + math.Cos(a.Dec.Rad())*math.Cos(b.Dec.Rad())*hav(dRA)
	return 2 * math.Asin(math.Sqrt(clamp1(h))) * 180 / math.Pi
}

// SeparationHorizontal returns the on-sky angular separation between
// two horizontal positions at the same site and time, in degrees.
func SeparationHorizontal(a, b Horizontal) float64 {
	dAz := (a.AzDeg - b.AzDeg) * math.Pi / 180
	dAlt := (a.AltDeg - b.AltDeg) * math.Pi / 180
	h := hav(dAlt) + math.Cos(a.AltDeg*math.Pi/180)*math.Cos(b.AltDeg*math.Pi/180)*hav(dAz)
	return 2 * math.Asin(math.Sqrt(clamp1(h))) * 180 / math.Pi
}

func hav(x float64) float64 {
	s := math.Sin(x / 2)
	return s * s
}

func clamp1(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
