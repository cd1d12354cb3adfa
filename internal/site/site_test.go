package site

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	valid := Site{Name: "test", Latitude: 19.8, Longitude: -155.5, Elevation: 4200}
	tests := []struct {
		name    string
		mutate  func(*Site)
		wantErr bool
	}{
		{"valid", func(s *Site) {}, false},
		{"empty name", func(s *Site) { s.Name = "" }, true},
		{"latitude too high", func(s *Site) { s.Latitude = 91 }, true},
		{"latitude NaN", func(s *Site) { s.Latitude = math.NaN() }, true},
		{"longitude too low", func(s *Site) { s.Longitude = -181 }, true},
		{"elevation too high", func(s *Site) { s.Elevation = 12000 }, true},
		{"horizon azimuth out of range", func(s *Site) {
			s.Horizon = []HorizonPoint{{AzDeg: 360, MinAltDeg: 10}}
		}, true},
		{"horizon altitude negative", func(s *Site) {
			s.Horizon = []HorizonPoint{{AzDeg: 0, MinAltDeg: -5}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSite) {
				t.Errorf("error %v does not wrap ErrInvalidSite", err)
			}
		})
	}
}

func TestHorizonAt(t *testing.T) {
	s := Site{
		Name: "ridge", Latitude: 30, Longitude: 0,
		Horizon: []HorizonPoint{
			{AzDeg: 0, MinAltDeg: 10},
			{AzDeg: 90, MinAltDeg: 30},
			{AzDeg: 180, MinAltDeg: 10},
			{AzDeg: 270, MinAltDeg: 0},
		},
	}
	s.finalize()

	tests := []struct {
		azDeg float64
		want  float64
	}{
		{0, 10},
		{90, 30},
		{45, 20},  // interpolated
		{135, 20}, // interpolated
		{315, 5},  // wrap segment 270→360
		{-45, 5},  // negative azimuth normalizes
		{360, 10}, // wraps to 0
		{405, 20}, // wraps to 45
	}
	for _, tt := range tests {
		if got := s.HorizonAt(tt.azDeg); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("HorizonAt(%v) = %v, want %v", tt.azDeg, got, tt.want)
		}
	}
}

func TestHorizonAtFlat(t *testing.T) {
	s := Site{Name: "flat", Latitude: 0, Longitude: 0}
	s.finalize()
	if got := s.HorizonAt(123); got != 0 {
		t.Errorf("flat horizon = %v, want 0", got)
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Site{
		{Name: "a", Latitude: 0, Longitude: 0},
		{Name: "a", Latitude: 1, Longitude: 1},
	})
	if !errors.Is(err, ErrInvalidSite) {
		t.Errorf("duplicate registry error = %v, want ErrInvalidSite", err)
	}
}

func TestLoadYAML(t *testing.T) {
	const doc = `
summit:
  latitude_deg: 19.8255
  longitude_deg: -155.48
  elevation_m: 4205
  pressure_mbar: 615
  timezone_offset_min: -600
  horizon:
    - az_deg: 45
      min_alt_deg: 12
valley:
  latitude_deg: -24.6
  longitude_deg: -70.4
  elevation_m: 2635
`
	r, err := LoadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if got := r.Names(); got[0] != "summit" || got[1] != "valley" {
		t.Errorf("Names() = %v", got)
	}

	s := r.Get("summit")
	if s == nil {
		t.Fatal("Get(summit) = nil")
	}
	if s.Latitude != 19.8255 || s.Pressure != 615 {
		t.Errorf("summit fields = %+v", s)
	}
	if got := s.HorizonAt(45); got != 12 {
		t.Errorf("summit HorizonAt(45) = %v, want 12", got)
	}
	if r.Get("nowhere") != nil {
		t.Error("Get(nowhere) should be nil")
	}
}

func TestLoadYAMLRejectsBadSite(t *testing.T) {
	const doc = `
broken:
  latitude_deg: 123
  longitude_deg: 0
`
	if _, err := LoadYAML(strings.NewReader(doc)); !errors.Is(err, ErrInvalidSite) {
		t.Errorf("LoadYAML bad latitude error = %v, want ErrInvalidSite", err)
	}
}

func TestBuiltinRegistry(t *testing.T) {
	r := Builtin()
	if r.Len() == 0 {
		t.Fatal("builtin registry is empty")
	}
	mk := r.Get("maunakea")
	if mk == nil {
		t.Fatal("builtin registry missing maunakea")
	}
	if math.Abs(mk.Latitude-19.8255) > 1e-6 {
		t.Errorf("maunakea latitude = %v", mk.Latitude)
	}
	obs := mk.Observer()
	if obs.LatRad == 0 {
		t.Error("builtin site observer not finalized")
	}
}
