package ephem

import (
	"math"
	"time"
)

// PositionTEME is a satellite position and velocity in the TEME frame
// (True Equator Mean Equinox), the native SGP4 output frame. km, km/s.
type PositionTEME struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// PositionECEF is a position and velocity in the Earth-Centered
// Earth-Fixed frame. meters, m/s.
type PositionECEF struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// TEMEToECEF rotates a TEME state into ECEF at the given UTC time.
//
// Simplified Vallado-style rotation using GMST only (TEME → PEF ≈
// ECEF), ignoring polar motion and the equation of the equinoxes.
// The ~50 m error is irrelevant at look-angle precision.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t).Rad())
}

// TEMEToECEFWithGMST rotates TEME to ECEF using a precomputed GMST
// angle in radians. Useful when converting many satellites at the same
// instant.
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	// Position: R3(GMST) rotation.
	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	// Velocity: rotate, then remove the frame rotation term
	// v_ECEF = R3(θ)·v_TEME − ω × r_ECEF.
	vx := teme.VX*cosG + teme.VY*sinG + OmegaEarth*y
	vy := -teme.VX*sinG + teme.VY*cosG - OmegaEarth*x
	vz := teme.VZ

	return PositionECEF{
		X: x * 1000, Y: y * 1000, Z: z * 1000,
		VX: vx * 1000, VY: vy * 1000, VZ: vz * 1000,
	}
}
