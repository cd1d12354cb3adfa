package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMiddlewareCapturesStatus(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, tt := range []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/missing", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	IncVisibilityComputations("ok")
	IncCrossingFallbacks()
	IncCacheHits()
	SetCacheGracePeriodActive(true)
	ObserveVisibilityBatch(120*time.Millisecond, 3)
	IncStreamConnections("connect")
	IncStreamErrors("rate_limit")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint status = %d", rec.Code)
	}

	body := rec.Body.String()
	for _, metric := range []string{
		"spot_http_requests_total",
		"spot_visibility_computations_total",
		"spot_crossing_fallbacks_total",
		"spot_skycache_hits_total",
		"spot_skycache_grace_period_active 1",
		"spot_visibility_batch_seconds",
		"spot_stream_connections_total",
		"spot_stream_errors_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %q", metric)
		}
	}
}
