package catalog

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/jkmerchant/spot/internal/ephem"
)

// SGP4 via github.com/joshuaferrara/go-satellite: pure Go, TEME output.
//
// Propagate() takes Satellite by value so SGP4 error codes are not
// visible to the caller. Failures are detected by checking the output
// for NaN/Inf and unreasonable position magnitudes.

// sgp4Propagator wraps the go-satellite model for one target.
type sgp4Propagator struct {
	sat satellite.Satellite
	id  string
}

// newSGP4Propagator creates a propagator from TLE lines. Pre-validates
// the line format because go-satellite calls log.Fatal on malformed
// input, which would kill the process.
func newSGP4Propagator(line1, line2, id string) (*sgp4Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidTarget, id, err)
	}
	sat := satellite.TLEToSat(strings.TrimSpace(line1), strings.TrimSpace(line2), satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w %q: sgp4 init code=%d %s", ErrInvalidTarget, id, sat.Error, sat.ErrorStr)
	}
	return &sgp4Propagator{sat: sat, id: id}, nil
}

// validateTLELines performs basic format validation on TLE lines.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got %q", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got %q", line2[0])
	}
	return nil
}

// propagate computes the satellite position at t in the TEME frame.
func (p *sgp4Propagator) propagate(t time.Time) (ephem.PositionTEME, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return ephem.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for %s: output is NaN/Inf", p.id)
	}

	// Sanity check: orbit radius between ~6200 km and ~50000 km.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200 || mag > 50000 {
		return ephem.PositionTEME{}, fmt.Errorf("sgp4 propagation failed for %s: unreasonable position magnitude %.1f km", p.id, mag)
	}

	return ephem.PositionTEME{
		X: pos.X, Y: pos.Y, Z: pos.Z,
		VX: vel.X, VY: vel.Y, VZ: vel.Z,
	}, nil
}
