package ephem

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/unit"
)

// ApparentOfDate converts a catalog position at the J2000.0 epoch to
// the equator and equinox of date: proper motion from the catalog epoch
// plus IAU-1976 precession. Nutation and annual aberration (< 30")
// are below the planning precision target and are not applied.
//
// Proper motions are in mas/yr; pmRA is the on-sky rate (μα·cosδ).
func ApparentOfDate(eq Equatorial, epochJD float64, pmRA, pmDec float64, t time.Time) Equatorial {
	jd := JulianDate(t)

	// Proper motion since the catalog epoch.
	if pmRA != 0 || pmDec != 0 {
		years := (jd - epochJD) / 365.25
		const masToRad = math.Pi / 180 / 3600 / 1000
		cosDec := math.Cos(eq.Dec.Rad())
		if math.Abs(cosDec) > 1e-9 {
			eq.RA = unit.RAFromRad(eq.RA.Rad() + pmRA*masToRad*years/cosDec)
		}
		eq.Dec = unit.Angle(eq.Dec.Rad() + pmDec*masToRad*years)
	}

	return precessJ2000(eq, jd)
}

// precessJ2000 rotates a J2000.0 equatorial position to the mean
// equator and equinox of the given Julian Date. IAU-1976 precession
// angles (Meeus eq. 21.2), accurate to well under an arc second over a
// century from J2000.
func precessJ2000(eq Equatorial, jd float64) Equatorial {
	T := (jd - base.J2000) / 36525
	const sec = math.Pi / 180 / 3600 // arc seconds to radians

	zeta := (2306.2181 + (0.30188+0.017998*T)*T) * T * sec
	z := (2306.2181 + (1.09468+0.018203*T)*T) * T * sec
	theta := (2004.3109 - (0.42665+0.041833*T)*T) * T * sec

	sinTheta := math.Sin(theta)
	cosTheta := math.Cos(theta)
	sinDec := math.Sin(eq.Dec.Rad())
	cosDec := math.Cos(eq.Dec.Rad())
	raZeta := eq.RA.Rad() + zeta

	A := cosDec * math.Sin(raZeta)
	B := cosTheta*cosDec*math.Cos(raZeta) - sinTheta*sinDec
	C := sinTheta*cosDec*math.Cos(raZeta) + cosTheta*sinDec

	return Equatorial{
		RA:  unit.RAFromRad(math.Atan2(A, B) + z),
		Dec: unit.Angle(math.Asin(clamp1(C))),
	}
}
