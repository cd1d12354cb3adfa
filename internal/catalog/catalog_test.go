package catalog

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/soniakeys/unit"

	"github.com/jkmerchant/spot/internal/ephem"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// ISS elements, epoch 2008-09-20. Used as a structurally valid element
// set; tests propagate near the epoch.
const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func TestParseRA(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"150.25", 150.25, false},
		{"-90", 270, false},
		{"370", 10, false},
		{"10:00:00", 150, false},
		{"10 30 00", 157.5, false},
		{"23:59:60", 0, true},
		{"25:00:00", 0, true},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseRA(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRA(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseRA(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDec(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"40", 40, false},
		{"-89.9", -89.9, false},
		{"+19:49:32", 19.825555, false},
		{"-24:37:38", -24.627222, false},
		{"91", 0, true},
		{"-12:75:00", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDec(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDec(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && math.Abs(got-tt.want) > 1e-4 {
			t.Errorf("ParseDec(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCSV(t *testing.T) {
	const doc = `id,name,ra,dec,priority,min_elevation
ngc1234,Spiral,10:30:00,+19:49:32,2.5,35
m42,Orion Nebula,83.82208,-5.39111,1,
bad-dec,Broken,120,95,1,
vega,Vega,279.2347,38.7837,3,
`
	targets, err := ParseCSV(strings.NewReader(doc), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 3 {
		t.Fatalf("parsed %d targets, want 3 (bad row skipped)", len(targets))
	}

	ngc := targets[0]
	if ngc.ID != "ngc1234" || ngc.Name != "Spiral" {
		t.Errorf("first target = %+v", ngc)
	}
	if math.Abs(ngc.RA.Deg()-157.5) > 1e-9 {
		t.Errorf("ngc1234 RA = %v°, want 157.5", ngc.RA.Deg())
	}
	if ngc.Priority != 2.5 {
		t.Errorf("ngc1234 priority = %v", ngc.Priority)
	}
	if ngc.MinElevationDeg == nil || *ngc.MinElevationDeg != 35 {
		t.Errorf("ngc1234 min elevation override = %v", ngc.MinElevationDeg)
	}
	if targets[1].MinElevationDeg != nil {
		t.Error("m42 should carry no elevation override")
	}
}

func TestParseCSVMissingColumns(t *testing.T) {
	if _, err := ParseCSV(strings.NewReader("id,name\nx,y\n"), testLogger); err == nil {
		t.Error("header without ra/dec should fail")
	}
}

func TestParseTLE(t *testing.T) {
	doc := "ISS (ZARYA)\n" + issLine1 + "\n" + issLine2 + "\n"
	targets, err := ParseTLE(strings.NewReader(doc), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Fatalf("parsed %d targets, want 1", len(targets))
	}
	tgt := targets[0]
	if tgt.ID != "sat-25544" || tgt.Name != "ISS (ZARYA)" || tgt.Kind != KindSatellite {
		t.Errorf("target = %+v", tgt)
	}
}

func TestTargetValidate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"valid sidereal", Target{ID: "a", Kind: KindSidereal, RA: unit.RAFromDeg(10), Dec: unit.AngleFromDeg(40)}, false},
		{"empty id", Target{Kind: KindSidereal}, true},
		{"dec out of range", Target{ID: "a", Kind: KindSidereal, Dec: unit.AngleFromDeg(95)}, true},
		{"valid satellite", Target{ID: "s", Kind: KindSatellite, Line1: issLine1, Line2: issLine2}, false},
		{"satellite bad lines", Target{ID: "s", Kind: KindSatellite, Line1: "1 junk", Line2: "2 junk"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTarget) {
				t.Errorf("error %v does not wrap ErrInvalidTarget", err)
			}
		})
	}
}

func TestSiderealPositionFunc(t *testing.T) {
	obs := ephem.NewObserver(19.8255, -155.48, 4205)
	tgt := Target{ID: "t", Kind: KindSidereal, RA: unit.RAFromDeg(150), Dec: unit.AngleFromDeg(19.8255)}

	fn, err := tgt.PositionFunc(obs, false)
	if err != nil {
		t.Fatal(err)
	}

	// Sample one sidereal day apart: a fixed target returns to nearly
	// the same horizontal position.
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	later := at.Add(time.Duration(86164.0905 * float64(time.Second)))

	p1, err := fn(at)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := fn(later)
	if err != nil {
		t.Fatal(err)
	}
	if d := math.Abs(p1.AltDeg - p2.AltDeg); d > 0.1 {
		t.Errorf("altitude drift over one sidereal day = %.4f°", d)
	}
}

func TestSatellitePositionFunc(t *testing.T) {
	obs := ephem.NewObserver(19.8255, -155.48, 4205)
	tgt := Target{ID: "sat-25544", Kind: KindSatellite, Line1: issLine1, Line2: issLine2}

	fn, err := tgt.PositionFunc(obs, false)
	if err != nil {
		t.Fatal(err)
	}

	// Near the element epoch the orbit is well-conditioned.
	at := time.Date(2008, 9, 20, 12, 30, 0, 0, time.UTC)
	pos, err := fn(at)
	if err != nil {
		t.Fatal(err)
	}
	if pos.AltDeg < -90 || pos.AltDeg > 90 {
		t.Errorf("altitude = %v out of range", pos.AltDeg)
	}
	if pos.AzDeg < 0 || pos.AzDeg >= 360 {
		t.Errorf("azimuth = %v out of range", pos.AzDeg)
	}
}

func TestApparent(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sidereal := Target{ID: "a", Kind: KindSidereal, RA: unit.RAFromDeg(150), Dec: unit.AngleFromDeg(20)}
	eq, ok := sidereal.Apparent(at)
	if !ok {
		t.Fatal("sidereal Apparent ok = false")
	}
	// Precession J2000 -> 2026 shifts coordinates by a third of a
	// degree or so, never more than a degree.
	if d := math.Abs(eq.RA.Deg() - 150); d > 1 {
		t.Errorf("apparent RA moved %v° from catalog", d)
	}

	sat := Target{ID: "s", Kind: KindSatellite, Line1: issLine1, Line2: issLine2}
	if _, ok := sat.Apparent(at); ok {
		t.Error("satellite Apparent ok = true, want false")
	}
}

func TestStore(t *testing.T) {
	s := NewStore()
	if s.Get() != nil {
		t.Error("empty store Get() != nil")
	}
	if s.AgeSeconds() != -1 {
		t.Error("empty store age != -1")
	}

	cat := &Catalog{Source: "test", LoadedAt: time.Now(), Targets: []Target{{ID: "x"}}}
	s.Set(cat)
	got := s.Get()
	if got != cat {
		t.Error("Get() did not return the set catalog")
	}
	if got.ByID("x") == nil || got.ByID("y") != nil {
		t.Error("ByID lookup misbehaved")
	}
	if s.AgeSeconds() < 0 {
		t.Error("age should be non-negative after Set")
	}
}
