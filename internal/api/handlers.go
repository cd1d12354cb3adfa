package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/soniakeys/unit"

	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/ephem"
	"github.com/jkmerchant/spot/internal/fov"
	"github.com/jkmerchant/spot/internal/plan"
	"github.com/jkmerchant/spot/internal/site"
	"github.com/jkmerchant/spot/internal/visibility"
)

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// statusOf maps engine error taxonomy to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ephem.ErrInvalidTime),
		errors.Is(err, site.ErrInvalidSite),
		errors.Is(err, catalog.ErrInvalidTarget):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// handleSites lists the registered sites.
// GET /api/v1/sites
func (h *handlers) handleSites(w http.ResponseWriter, r *http.Request) {
	type siteInfo struct {
		Name         string  `json:"name"`
		LatitudeDeg  float64 `json:"latitude_deg"`
		LongitudeDeg float64 `json:"longitude_deg"`
		ElevationM   float64 `json:"elevation_m"`
		TZName       string  `json:"timezone_name,omitempty"`
		HorizonPts   int     `json:"horizon_points"`
	}
	out := make([]siteInfo, 0, h.deps.Registry.Len())
	for _, name := range h.deps.Registry.Names() {
		s := h.deps.Registry.Get(name)
		out = append(out, siteInfo{
			Name:         s.Name,
			LatitudeDeg:  s.Latitude,
			LongitudeDeg: s.Longitude,
			ElevationM:   s.Elevation,
			TZName:       s.TZName,
			HorizonPts:   len(s.Horizon),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": out})
}

// handleEphemeris reports the sun/moon state and night events for a
// site.
// GET /api/v1/ephemeris?site=maunakea&t=2026-08-23T00:00:00Z
func (h *handlers) handleEphemeris(w http.ResponseWriter, r *http.Request) {
	st := h.deps.Registry.Get(r.URL.Query().Get("site"))
	if st == nil {
		writeError(w, http.StatusBadRequest, errors.New("unknown or missing site parameter"))
		return
	}

	at := time.Now().UTC()
	if v := r.URL.Query().Get("t"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid t parameter, want RFC 3339"))
			return
		}
		at = t.UTC()
	}

	state, err := ephem.StateAt(st.Observer(), at)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	night, err := visibility.NightEvents(st, at)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"site": st.Name,
		"t":    at.Format(time.RFC3339),
		"sun": map[string]float64{
			"alt_deg": state.Sun.AltDeg,
			"az_deg":  state.Sun.AzDeg,
		},
		"moon": map[string]float64{
			"alt_deg": state.Moon.AltDeg,
			"az_deg":  state.Moon.AzDeg,
			"illum":   state.MoonIllum,
		},
		"lst_hours": state.LST.Rad() * 12 / math.Pi,
		"night":     night,
	})
}

// handleVisibility computes observability windows for a batch of
// targets.
// POST /api/v1/visibility
func (h *handlers) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	engineReq, err := req.resolve(h.deps.Registry, h.deps.Store.Get())
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	results, err := visibility.Compute(r.Context(), engineReq, h.logger)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"site":    engineReq.Site.Name,
		"results": results,
	})
}

// handlePlan computes windows and ranks them into an observing plan.
// POST /api/v1/plan
func (h *handlers) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	policy, err := plan.ParsePolicy(req.Policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	engineReq, err := req.resolve(h.deps.Registry, h.deps.Store.Get())
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	results, err := visibility.Compute(r.Context(), engineReq, h.logger)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	p, err := plan.Rank(engineReq.Targets, results, policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"site": engineReq.Site.Name,
		"plan": p,
	})
}

// handleFOV places an instrument footprint on the sky and reports the
// catalog targets inside it.
// POST /api/v1/fov
func (h *handlers) handleFOV(w http.ResponseWriter, r *http.Request) {
	var req fovRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var profile fov.Profile
	if len(req.Polygons) > 0 {
		profile = fov.Profile{Name: req.Instrument}
		for _, poly := range req.Polygons {
			vs := make([]fov.Vertex, len(poly))
			for i, v := range poly {
				vs[i] = fov.Vertex{X: v.X, Y: v.Y}
			}
			profile.Polygons = append(profile.Polygons, vs)
		}
	} else if req.SideDeg > 0 {
		profile = fov.Square(req.Instrument, req.SideDeg)
	} else {
		writeError(w, http.StatusBadRequest, errors.New("footprint requires polygons or side_deg"))
		return
	}

	raDeg, err := catalog.ParseRA(string(req.CenterRA))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	decDeg, err := catalog.ParseDec(string(req.CenterDec))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	footprint, err := fov.FootprintAt(profile, fov.Pointing{
		Center: ephem.Equatorial{
			RA:  unit.RAFromDeg(raDeg),
			Dec: unit.AngleFromDeg(decDeg),
		},
		PositionAngleDeg: req.PositionAngleDeg,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var contained []string
	if cat := h.deps.Store.Get(); cat != nil {
		targets := cat.Targets
		if len(req.TargetIDs) > 0 {
			targets = nil
			for _, id := range req.TargetIDs {
				if t := cat.ByID(id); t != nil {
					targets = append(targets, *t)
				}
			}
		}
		contained = fov.TargetsInFootprint(footprint, targets, at)
	}
	if contained == nil {
		contained = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"instrument":         footprint.Instrument,
		"position_angle_deg": req.PositionAngleDeg,
		"sky_polygons":       footprint.SkyPolygons(),
		"contained":          contained,
	})
}

// handleCacheStats reports sky cache statistics.
// GET /api/v1/cache/stats
func (h *handlers) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Cache.Stats())
}
