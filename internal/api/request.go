package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/soniakeys/unit"

	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/constraint"
	"github.com/jkmerchant/spot/internal/ephem"
	"github.com/jkmerchant/spot/internal/site"
	"github.com/jkmerchant/spot/internal/visibility"
)

// coordString accepts a JSON string (decimal or sexagesimal) or a bare
// number, keeping the text for the catalog parsers.
type coordString string

func (c *coordString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = coordString(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = coordString(strconv.FormatFloat(n, 'g', -1, 64))
	return nil
}

// targetSpec is an inline target in a request body. RA accepts decimal
// degrees or sexagesimal hours; Dec accepts decimal or sexagesimal
// degrees. Satellite targets carry TLE lines instead.
type targetSpec struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	RA       coordString `json:"ra"`
	Dec      coordString `json:"dec"`
	EpochJD  float64     `json:"epoch_jd"`
	PMRA     float64     `json:"pmra_mas_yr"`
	PMDec    float64     `json:"pmdec_mas_yr"`
	Line1    string      `json:"line1"`
	Line2    string      `json:"line2"`
	Priority float64     `json:"priority"`

	MinElevationDeg   *float64 `json:"min_elevation_deg"`
	MoonSeparationDeg *float64 `json:"moon_separation_deg"`
}

func (ts targetSpec) target() (catalog.Target, error) {
	t := catalog.Target{
		ID:                ts.ID,
		Name:              ts.Name,
		EpochJD:           ts.EpochJD,
		PMRA:              ts.PMRA,
		PMDec:             ts.PMDec,
		Priority:          ts.Priority,
		MinElevationDeg:   ts.MinElevationDeg,
		MoonSeparationDeg: ts.MoonSeparationDeg,
	}
	if ts.Line1 != "" || ts.Line2 != "" {
		t.Kind = catalog.KindSatellite
		t.Line1, t.Line2 = ts.Line1, ts.Line2
	} else {
		t.Kind = catalog.KindSidereal
		raDeg, err := catalog.ParseRA(string(ts.RA))
		if err != nil {
			return catalog.Target{}, fmt.Errorf("%w %q: %v", catalog.ErrInvalidTarget, ts.ID, err)
		}
		decDeg, err := catalog.ParseDec(string(ts.Dec))
		if err != nil {
			return catalog.Target{}, fmt.Errorf("%w %q: %v", catalog.ErrInvalidTarget, ts.ID, err)
		}
		t.RA = unit.RAFromDeg(raDeg)
		t.Dec = unit.AngleFromDeg(decDeg)
	}
	if err := t.Validate(); err != nil {
		return catalog.Target{}, err
	}
	return t, nil
}

// constraintSpec selects and parameterizes the active constraints.
type constraintSpec struct {
	MinElevationDeg      *float64 `json:"min_elevation_deg"`
	MaxAirmass           *float64 `json:"max_airmass"`
	AzimuthMinDeg        *float64 `json:"azimuth_min_deg"`
	AzimuthMaxDeg        *float64 `json:"azimuth_max_deg"`
	SiteHorizon          bool     `json:"site_horizon"`
	SunAltMaxDeg         *float64 `json:"sun_alt_max_deg"`
	MoonSeparationMinDeg *float64 `json:"moon_separation_min_deg"`
	MoonIlluminationMax  *float64 `json:"moon_illumination_max"`
}

func (cs constraintSpec) set(st *site.Site) constraint.Set {
	var set constraint.Set
	if cs.MinElevationDeg != nil {
		set = append(set, constraint.MinElevation(*cs.MinElevationDeg))
	}
	if cs.MaxAirmass != nil {
		set = append(set, constraint.MaxAirmass(*cs.MaxAirmass))
	}
	if cs.AzimuthMinDeg != nil || cs.AzimuthMaxDeg != nil {
		lo, hi := 0.0, 360.0
		if cs.AzimuthMinDeg != nil {
			lo = *cs.AzimuthMinDeg
		}
		if cs.AzimuthMaxDeg != nil {
			hi = *cs.AzimuthMaxDeg
		}
		set = append(set, constraint.AzimuthRange(lo, hi))
	}
	if cs.SiteHorizon {
		set = append(set, constraint.HorizonProfile(st.HorizonAt))
	}
	if cs.SunAltMaxDeg != nil {
		set = append(set, constraint.SunAltitudeMax(*cs.SunAltMaxDeg))
	}
	if cs.MoonSeparationMinDeg != nil {
		set = append(set, constraint.MoonSeparationMin(*cs.MoonSeparationMinDeg))
	}
	if cs.MoonIlluminationMax != nil {
		set = append(set, constraint.MoonIlluminationMax(*cs.MoonIlluminationMax))
	}
	return set
}

// visibilityRequest is the body of POST /api/v1/visibility. Targets may
// be inline, selected from the catalog by id, or omitted to use the
// whole catalog.
type visibilityRequest struct {
	Site        string         `json:"site"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	StepSeconds int            `json:"step_seconds"`
	TargetIDs   []string       `json:"target_ids"`
	Targets     []targetSpec   `json:"targets"`
	Constraints constraintSpec `json:"constraints"`

	MinGapSeconds int  `json:"min_gap_seconds"`
	Refraction    bool `json:"refraction"`
}

// resolve turns the request into an engine request against the loaded
// catalog and registry.
func (vr visibilityRequest) resolve(registry *site.Registry, cat *catalog.Catalog) (visibility.Request, error) {
	st := registry.Get(vr.Site)
	if st == nil {
		return visibility.Request{}, fmt.Errorf("%w: unknown site %q", site.ErrInvalidSite, vr.Site)
	}

	step := time.Duration(vr.StepSeconds) * time.Second
	if step <= 0 {
		step = time.Minute
	}
	spec := ephem.TimeSpec{Start: vr.Start, End: vr.End, Step: step}
	if err := spec.Validate(); err != nil {
		return visibility.Request{}, err
	}

	var targets []catalog.Target
	switch {
	case len(vr.Targets) > 0:
		for _, ts := range vr.Targets {
			t, err := ts.target()
			if err != nil {
				return visibility.Request{}, err
			}
			targets = append(targets, t)
		}
	case len(vr.TargetIDs) > 0:
		if cat == nil {
			return visibility.Request{}, fmt.Errorf("no catalog loaded")
		}
		for _, id := range vr.TargetIDs {
			t := cat.ByID(id)
			if t == nil {
				return visibility.Request{}, fmt.Errorf("%w: unknown target %q", catalog.ErrInvalidTarget, id)
			}
			targets = append(targets, *t)
		}
	default:
		if cat == nil {
			return visibility.Request{}, fmt.Errorf("no catalog loaded")
		}
		targets = append(targets, cat.Targets...)
	}

	return visibility.Request{
		Site:        st,
		Targets:     targets,
		Constraints: vr.Constraints.set(st),
		Span:        spec,
		Options: visibility.Options{
			MinGap:     time.Duration(vr.MinGapSeconds) * time.Second,
			Refraction: vr.Refraction,
		},
	}, nil
}

// planRequest is the body of POST /api/v1/plan.
type planRequest struct {
	visibilityRequest
	Policy string `json:"policy"`
}

// fovRequest is the body of POST /api/v1/fov. The footprint is either a
// named square (side_deg) or explicit polygons.
type fovRequest struct {
	Instrument       string        `json:"instrument"`
	SideDeg          float64       `json:"side_deg"`
	Polygons         [][]fovVertex `json:"polygons"`
	CenterRA         coordString   `json:"center_ra"`
	CenterDec        coordString   `json:"center_dec"`
	PositionAngleDeg float64       `json:"position_angle_deg"`
	At               time.Time     `json:"t"`
	TargetIDs        []string      `json:"target_ids"`
}

type fovVertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
