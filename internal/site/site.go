// Package site models observatories: geolocation, atmosphere, local
// horizon profile, and a named-site registry.
//
// Southern latitudes are negative, western longitudes are negative.
package site

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jkmerchant/spot/internal/ephem"
)

// ErrInvalidSite reports malformed site geolocation or horizon data.
var ErrInvalidSite = errors.New("invalid site")

// HorizonPoint is one vertex of a site's local horizon profile: the
// minimum usable altitude at a given azimuth.
type HorizonPoint struct {
	AzDeg     float64 `yaml:"az_deg"`
	MinAltDeg float64 `yaml:"min_alt_deg"`
}

// Site is an observatory. Immutable once registered; computations hold
// it by pointer and never mutate it.
type Site struct {
	Name        string  `yaml:"name"`
	Latitude    float64 `yaml:"latitude_deg"`
	Longitude   float64 `yaml:"longitude_deg"`
	Elevation   float64 `yaml:"elevation_m"`
	Pressure    float64 `yaml:"pressure_mbar"`
	Temperature float64 `yaml:"temperature_c"`
	TZOffsetMin int     `yaml:"timezone_offset_min"`
	TZName      string  `yaml:"timezone_name"`

	// Horizon is the azimuth→minimum-altitude profile, sorted by
	// azimuth. Empty means a flat 0° horizon.
	Horizon []HorizonPoint `yaml:"horizon"`

	obs ephem.Observer
}

// Validate checks geolocation ranges and the horizon profile.
func (s *Site) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSite)
	}
	if s.Latitude < -90 || s.Latitude > 90 || math.IsNaN(s.Latitude) {
		return fmt.Errorf("%w %q: latitude %.4f out of range", ErrInvalidSite, s.Name, s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 || math.IsNaN(s.Longitude) {
		return fmt.Errorf("%w %q: longitude %.4f out of range", ErrInvalidSite, s.Name, s.Longitude)
	}
	if s.Elevation < -500 || s.Elevation > 9000 {
		return fmt.Errorf("%w %q: elevation %.0f m out of range", ErrInvalidSite, s.Name, s.Elevation)
	}
	for _, hp := range s.Horizon {
		if hp.AzDeg < 0 || hp.AzDeg >= 360 {
			return fmt.Errorf("%w %q: horizon azimuth %.1f out of range", ErrInvalidSite, s.Name, hp.AzDeg)
		}
		if hp.MinAltDeg < 0 || hp.MinAltDeg > 90 {
			return fmt.Errorf("%w %q: horizon altitude %.1f out of range", ErrInvalidSite, s.Name, hp.MinAltDeg)
		}
	}
	return nil
}

// finalize sorts the horizon profile and precomputes the observer.
// Called by the registry after validation.
func (s *Site) finalize() {
	sort.Slice(s.Horizon, func(i, j int) bool {
		return s.Horizon[i].AzDeg < s.Horizon[j].AzDeg
	})
	s.obs = ephem.NewObserver(s.Latitude, s.Longitude, s.Elevation).
		WithAtmosphere(s.Pressure, s.Temperature)
}

// Observer returns the precomputed ephem.Observer for this site.
func (s *Site) Observer() ephem.Observer {
	return s.obs
}

// HorizonAt returns the minimum usable altitude at the given azimuth,
// interpolating linearly between profile points (wrapping at 360°).
// With no profile the horizon is flat at 0°.
func (s *Site) HorizonAt(azDeg float64) float64 {
	if len(s.Horizon) == 0 {
		return 0
	}
	if len(s.Horizon) == 1 {
		return s.Horizon[0].MinAltDeg
	}

	az := math.Mod(azDeg, 360)
	if az < 0 {
		az += 360
	}

	// Find the bracketing pair; sort order lets us scan.
	i := sort.Search(len(s.Horizon), func(i int) bool {
		return s.Horizon[i].AzDeg > az
	})
	var a, b HorizonPoint
	if i == 0 || i == len(s.Horizon) {
		// Wrap segment between the last and first points.
		a = s.Horizon[len(s.Horizon)-1]
		b = s.Horizon[0]
	} else {
		a = s.Horizon[i-1]
		b = s.Horizon[i]
	}

	span := math.Mod(b.AzDeg-a.AzDeg+360, 360)
	if span == 0 {
		return a.MinAltDeg
	}
	frac := math.Mod(az-a.AzDeg+360, 360) / span
	return a.MinAltDeg + frac*(b.MinAltDeg-a.MinAltDeg)
}
