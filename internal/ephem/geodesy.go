package ephem

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// NewObserver creates an Observer from geodetic coordinates. Latitude
// and longitude are in degrees (north and east positive), elevation in
// meters above the WGS-84 ellipsoid. ECEF coordinates are precomputed
// for satellite look-angle reuse.
func NewObserver(latDeg, lonDeg, elevM float64) Observer {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatRad: lat,
		LonRad: lon,
		ElevM:  elevM,
		ECEFx:  (N + elevM) * cosLat * math.Cos(lon),
		ECEFy:  (N + elevM) * cosLat * math.Sin(lon),
		ECEFz:  (N*(1-wgs84E2) + elevM) * sinLat,
	}
}

// WithAtmosphere returns a copy of the observer carrying site pressure
// (mbar) and temperature (°C) for the refraction model.
func (o Observer) WithAtmosphere(pressureMbar, tempC float64) Observer {
	o.PressureMbar = pressureMbar
	o.TempC = tempC
	return o
}

// ECEFToHorizontal computes the look direction from the observer to a
// point given in ECEF meters, as topocentric altitude/azimuth plus
// range in km.
//
// Uses the SEZ (South-East-Zenith) rotation per Vallado Section 4.4.
// Azimuth 0 = North, clockwise; altitude 0 = horizon.
func (o Observer) ECEFToHorizontal(x, y, z float64) (Horizontal, float64) {
	rx := x - o.ECEFx
	ry := y - o.ECEFy
	rz := z - o.ECEFz

	sinLat := math.Sin(o.LatRad)
	cosLat := math.Cos(o.LatRad)
	sinLon := math.Sin(o.LonRad)
	cosLon := math.Cos(o.LonRad)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rangeMag := math.Sqrt(south*south + east*east + zenith*zenith)

	alt := math.Asin(zenith / rangeMag)
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return Horizontal{
		AltDeg: alt * 180 / math.Pi,
		AzDeg:  az * 180 / math.Pi,
	}, rangeMag / 1000
}
