package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/soniakeys/unit"

	"github.com/jkmerchant/spot/internal/auth"
	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/site"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testServer(t *testing.T, store *catalog.Store, authCfg auth.Config) http.Handler {
	t.Helper()
	return NewServer(":0", Deps{
		Registry: site.Builtin(),
		Store:    store,
	}, testLogger, authCfg).HTTPServer().Handler
}

func loadedStore() *catalog.Store {
	store := catalog.NewStore()
	store.Set(&catalog.Catalog{
		Source:   "test",
		LoadedAt: time.Now(),
		Targets: []catalog.Target{
			{ID: "dec40", Kind: catalog.KindSidereal,
				RA: unit.RAFromDeg(150), Dec: unit.AngleFromDeg(40), Priority: 2},
			{ID: "south", Kind: catalog.KindSidereal,
				RA: unit.RAFromDeg(30), Dec: unit.AngleFromDeg(-35), Priority: 1},
		},
	})
	return store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := testServer(t, catalog.NewStore(), auth.Config{})
	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID")
	}
}

func TestReadyz(t *testing.T) {
	empty := testServer(t, catalog.NewStore(), auth.Config{})
	if rec := do(t, empty, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz without catalog = %d, want 503", rec.Code)
	}

	ready := testServer(t, loadedStore(), auth.Config{})
	if rec := do(t, ready, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz with catalog = %d, want 200", rec.Code)
	}
}

func TestRequestIDPreserved(t *testing.T) {
	h := testServer(t, catalog.NewStore(), auth.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-me")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "trace-me" {
		t.Errorf("X-Request-ID = %q, want the incoming id", got)
	}
}

func TestSites(t *testing.T) {
	h := testServer(t, catalog.NewStore(), auth.Config{})
	rec := do(t, h, http.MethodGet, "/api/v1/sites", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sites status = %d", rec.Code)
	}
	var body struct {
		Sites []struct {
			Name        string  `json:"name"`
			LatitudeDeg float64 `json:"latitude_deg"`
		} `json:"sites"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range body.Sites {
		if s.Name == "maunakea" && s.LatitudeDeg > 19 && s.LatitudeDeg < 20 {
			found = true
		}
	}
	if !found {
		t.Errorf("sites listing missing maunakea: %+v", body.Sites)
	}
}

func TestEphemeris(t *testing.T) {
	h := testServer(t, catalog.NewStore(), auth.Config{})

	rec := do(t, h, http.MethodGet, "/api/v1/ephemeris?site=maunakea&t=2026-03-01T10:00:00Z", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ephemeris status = %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Site string `json:"site"`
		Sun  struct {
			AltDeg float64 `json:"alt_deg"`
		} `json:"sun"`
		LSTHours float64 `json:"lst_hours"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Site != "maunakea" {
		t.Errorf("site = %q", body.Site)
	}
	// 10:00 UTC is midnight local: the sun is far below the horizon.
	if body.Sun.AltDeg > -18 {
		t.Errorf("sun altitude at local midnight = %v", body.Sun.AltDeg)
	}
	if body.LSTHours < 0 || body.LSTHours >= 24 {
		t.Errorf("lst_hours = %v", body.LSTHours)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/ephemeris?site=atlantis", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown site status = %d, want 400", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/ephemeris?site=maunakea&t=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad t status = %d, want 400", rec.Code)
	}
}

func TestVisibilityInlineTarget(t *testing.T) {
	h := testServer(t, catalog.NewStore(), auth.Config{})
	body := `{
		"site": "maunakea",
		"start": "2026-03-01T04:00:00Z",
		"end": "2026-03-02T04:00:00Z",
		"targets": [{"id": "dec40", "ra": 150, "dec": 40}],
		"constraints": {"min_elevation_deg": 30}
	}`
	rec := do(t, h, http.MethodPost, "/api/v1/visibility", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("visibility status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Site    string `json:"site"`
		Results []struct {
			TargetID string `json:"target_id"`
			Windows  []struct {
				Start time.Time `json:"start"`
				End   time.Time `json:"end"`
			} `json:"windows"`
			Error string `json:"error"`
		} `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Site != "maunakea" || len(resp.Results) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	res := resp.Results[0]
	if res.Error != "" || len(res.Windows) != 1 {
		t.Fatalf("result = %+v, want one window", res)
	}
	if !res.Windows[0].Start.Before(res.Windows[0].End) {
		t.Errorf("window = %+v", res.Windows[0])
	}
}

func TestVisibilityCatalogByID(t *testing.T) {
	h := testServer(t, loadedStore(), auth.Config{})
	body := `{
		"site": "maunakea",
		"start": "2026-03-01T04:00:00Z",
		"end": "2026-03-02T04:00:00Z",
		"target_ids": ["dec40"],
		"constraints": {"min_elevation_deg": 30}
	}`
	rec := do(t, h, http.MethodPost, "/api/v1/visibility", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	unknown := strings.Replace(body, "dec40", "nope", 1)
	if rec := do(t, h, http.MethodPost, "/api/v1/visibility", unknown); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown target id status = %d, want 400", rec.Code)
	}
}

func TestVisibilityBadRequests(t *testing.T) {
	h := testServer(t, loadedStore(), auth.Config{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown site", `{"site":"atlantis","start":"2026-03-01T00:00:00Z","end":"2026-03-02T00:00:00Z"}`, http.StatusBadRequest},
		{"inverted span", `{"site":"maunakea","start":"2026-03-02T00:00:00Z","end":"2026-03-01T00:00:00Z"}`, http.StatusBadRequest},
		{"bad json", `{"site":`, http.StatusBadRequest},
		{"bad dec", `{"site":"maunakea","start":"2026-03-01T00:00:00Z","end":"2026-03-02T00:00:00Z","targets":[{"id":"x","ra":10,"dec":95}]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/api/v1/visibility", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestPlan(t *testing.T) {
	h := testServer(t, loadedStore(), auth.Config{})
	body := `{
		"site": "maunakea",
		"start": "2026-03-01T04:00:00Z",
		"end": "2026-03-02T04:00:00Z",
		"constraints": {"min_elevation_deg": 30},
		"policy": "priority-weighted"
	}`
	rec := do(t, h, http.MethodPost, "/api/v1/plan", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("plan status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Plan struct {
			Policy  string `json:"policy"`
			Entries []struct {
				TargetID string `json:"target_id"`
			} `json:"entries"`
		} `json:"plan"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Plan.Policy != "priority-weighted" {
		t.Errorf("policy = %q", resp.Plan.Policy)
	}
	if len(resp.Plan.Entries) == 0 {
		t.Error("plan scheduled nothing for two visible targets")
	}

	bad := strings.Replace(body, "priority-weighted", "bogus", 1)
	if rec := do(t, h, http.MethodPost, "/api/v1/plan", bad); rec.Code != http.StatusBadRequest {
		t.Errorf("bad policy status = %d, want 400", rec.Code)
	}
}

func TestFOV(t *testing.T) {
	store := catalog.NewStore()
	store.Set(&catalog.Catalog{
		LoadedAt: time.Now(),
		Targets: []catalog.Target{
			{ID: "inside", Kind: catalog.KindSidereal,
				RA: unit.RAFromDeg(150.1), Dec: unit.AngleFromDeg(20.1)},
			{ID: "outside", Kind: catalog.KindSidereal,
				RA: unit.RAFromDeg(155), Dec: unit.AngleFromDeg(20)},
		},
	})
	h := testServer(t, store, auth.Config{})

	body := `{
		"instrument": "cam",
		"side_deg": 1,
		"center_ra": 150,
		"center_dec": 20,
		"t": "2000-01-01T12:00:00Z"
	}`
	rec := do(t, h, http.MethodPost, "/api/v1/fov", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("fov status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Instrument string   `json:"instrument"`
		Contained  []string `json:"contained"`
		SkyPolys   [][]struct {
			X float64 `json:"x"`
		} `json:"sky_polygons"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Instrument != "cam" {
		t.Errorf("instrument = %q", resp.Instrument)
	}
	if len(resp.Contained) != 1 || resp.Contained[0] != "inside" {
		t.Errorf("contained = %v, want [inside]", resp.Contained)
	}
	if len(resp.SkyPolys) != 1 {
		t.Errorf("sky_polygons = %d", len(resp.SkyPolys))
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/fov", `{"instrument":"cam","center_ra":150,"center_dec":20}`); rec.Code != http.StatusBadRequest {
		t.Errorf("footprint without geometry status = %d, want 400", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	h := testServer(t, loadedStore(), auth.Config{Enabled: true, Token: "secret"})

	// Probes and site listing are exempt.
	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz under auth = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/sites", ""); rec.Code != http.StatusOK {
		t.Errorf("sites under auth = %d", rec.Code)
	}

	body := `{"site":"maunakea","start":"2026-03-01T00:00:00Z","end":"2026-03-01T01:00:00Z","targets":[{"id":"x","ra":10,"dec":10}]}`
	if rec := do(t, h, http.MethodPost, "/api/v1/visibility", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/visibility", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token status = %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/visibility", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rec.Code)
	}
}
