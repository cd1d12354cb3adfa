// Package fov projects instrument footprints onto the sky and answers
// target-containment queries. Footprints are polygons in
// instrument-relative coordinates (degrees from the optical center,
// +x toward increasing RA, +y toward north), supporting irregular and
// multi-segment detector layouts.
//
// All geometry runs in the sky-tangent-plane approximation at the
// pointing center, which is accurate to well under an arc second for
// footprints up to a few degrees across.
package fov

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/ephem"
)

// Vertex is a footprint polygon vertex in instrument-relative degrees.
type Vertex struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Profile describes an instrument's footprint as one or more polygons.
// Polygons need at least three vertices and may be non-convex.
type Profile struct {
	Name     string     `json:"name" yaml:"name"`
	Polygons [][]Vertex `json:"polygons" yaml:"polygons"`
}

// Validate checks polygon arity.
func (p Profile) Validate() error {
	if len(p.Polygons) == 0 {
		return fmt.Errorf("instrument %q: no polygons", p.Name)
	}
	for i, poly := range p.Polygons {
		if len(poly) < 3 {
			return fmt.Errorf("instrument %q: polygon %d has %d vertices, need 3", p.Name, i, len(poly))
		}
	}
	return nil
}

// Square returns a square footprint of the given side length in
// degrees, centered on the optical axis.
func Square(name string, sideDeg float64) Profile {
	h := sideDeg / 2
	return Profile{
		Name: name,
		Polygons: [][]Vertex{{
			{X: -h, Y: -h}, {X: h, Y: -h}, {X: h, Y: h}, {X: -h, Y: h},
		}},
	}
}

// Pointing places a footprint on the sky: a center coordinate plus the
// instrument position angle (degrees east of north).
type Pointing struct {
	Center           ephem.Equatorial
	PositionAngleDeg float64
}

// Footprint is a profile rotated and placed at a pointing. Derived
// data: recompute whenever the pointing changes.
type Footprint struct {
	Instrument string
	Pointing   Pointing
	// Polygons hold the rotated vertices in the tangent plane at the
	// pointing center (degrees; +x east, +y north).
	Polygons [][]Vertex
}

// FootprintAt rotates the profile by the pointing's position angle and
// anchors it at the pointing center.
func FootprintAt(p Profile, pt Pointing) (Footprint, error) {
	if err := p.Validate(); err != nil {
		return Footprint{}, err
	}
	// Position angle is east of north; +y is north and +x is east, so
	// the rotation carries +y toward +x.
	pa := pt.PositionAngleDeg * math.Pi / 180
	sinPA := math.Sin(pa)
	cosPA := math.Cos(pa)

	polys := make([][]Vertex, len(p.Polygons))
	for i, poly := range p.Polygons {
		out := make([]Vertex, len(poly))
		for j, v := range poly {
			out[j] = Vertex{
				X: v.X*cosPA + v.Y*sinPA,
				Y: -v.X*sinPA + v.Y*cosPA,
			}
		}
		polys[i] = out
	}
	return Footprint{Instrument: p.Name, Pointing: pt, Polygons: polys}, nil
}

// SkyPolygons returns the footprint's polygons as RA/Dec vertices in
// degrees, for overlay rendering.
func (f Footprint) SkyPolygons() [][]Vertex {
	ra0 := f.Pointing.Center.RA.Deg()
	dec0 := f.Pointing.Center.Dec.Deg()
	cosDec := math.Cos(dec0 * math.Pi / 180)

	out := make([][]Vertex, len(f.Polygons))
	for i, poly := range f.Polygons {
		sky := make([]Vertex, len(poly))
		for j, v := range poly {
			dRA := 0.0
			if cosDec > 1e-9 {
				dRA = v.X / cosDec
			}
			sky[j] = Vertex{X: ra0 + dRA, Y: dec0 + v.Y}
		}
		out[i] = sky
	}
	return out
}

// Contains reports whether an equatorial position falls inside any of
// the footprint's polygons.
func (f Footprint) Contains(eq ephem.Equatorial) bool {
	x, y := f.project(eq)
	for _, poly := range f.Polygons {
		if pointInPolygon(x, y, poly) {
			return true
		}
	}
	return false
}

// project maps an equatorial position into the tangent plane at the
// pointing center (degrees; +x east, +y north).
func (f Footprint) project(eq ephem.Equatorial) (x, y float64) {
	dRA := eq.RA.Rad() - f.Pointing.Center.RA.Rad()
	// Wrap to (-π, π] so targets across the 0h boundary project near 0.
	dRA = math.Mod(dRA+3*math.Pi, 2*math.Pi) - math.Pi
	x = dRA * math.Cos(f.Pointing.Center.Dec.Rad()) * 180 / math.Pi
	y = (eq.Dec.Rad() - f.Pointing.Center.Dec.Rad()) * 180 / math.Pi
	return x, y
}

// pointInPolygon is the even-odd ray-casting test, which handles
// non-convex polygons.
func pointInPolygon(x, y float64, poly []Vertex) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		xi, yi := poly[i].X, poly[i].Y
		xj, yj := poly[j].X, poly[j].Y
		if (yi > y) != (yj > y) &&
			x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// TargetsInFootprint returns the IDs of sidereal targets whose
// apparent position at t falls inside the footprint, sorted for
// deterministic output. Satellite targets are skipped: their equatorial
// position is not meaningful for a pointing query.
func TargetsInFootprint(f Footprint, targets []catalog.Target, t time.Time) []string {
	var ids []string
	for i := range targets {
		eq, ok := targets[i].Apparent(t)
		if !ok {
			continue
		}
		if f.Contains(eq) {
			ids = append(ids, targets[i].ID)
		}
	}
	sort.Strings(ids)
	return ids
}
