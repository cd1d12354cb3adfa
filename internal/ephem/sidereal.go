package ephem

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/unit"
)

// SiderealRate is the sidereal rotation rate of the Earth in rad/s
// (2π per sidereal day of 86164.0905 s).
const SiderealRate = 2 * math.Pi / 86164.0905

// JulianDate converts a time.Time to Julian Date (UTC treated as UT1;
// the sub-second DUT1 difference is far below planning precision).
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// JDToTime converts a Julian Date back to a time.Time in UTC.
func JDToTime(jd float64) time.Time {
	return julian.JDToTime(jd).UTC()
}

// GMST returns Greenwich apparent sidereal time as an angle in [0, 2π).
func GMST(t time.Time) unit.Angle {
	st := sidereal.Apparent(JulianDate(t))
	return unit.Angle(st.Sec() / 86400.0 * 2 * math.Pi)
}

// LocalSidereal returns the local apparent sidereal time for the
// observer's longitude (east positive), normalized to [0, 2π).
func (o Observer) LocalSidereal(t time.Time) unit.Angle {
	lst := GMST(t).Rad() + o.LonRad
	lst = math.Mod(lst, 2*math.Pi)
	if lst < 0 {
		lst += 2 * math.Pi
	}
	return unit.Angle(lst)
}
