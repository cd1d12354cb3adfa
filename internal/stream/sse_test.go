package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jkmerchant/spot/internal/catalog"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testHandler(store *catalog.Store) *Handler {
	return NewHandler(nil, store, Config{
		MaxConcurrentPerIP: 2,
		KeepaliveInterval:  30 * time.Second,
	}, testLogger)
}

func TestStreamLimiter(t *testing.T) {
	l := newStreamLimiter(2)

	if !l.acquire("1.2.3.4") || !l.acquire("1.2.3.4") {
		t.Fatal("first two connections should be admitted")
	}
	if l.acquire("1.2.3.4") {
		t.Error("third connection from the same IP should be rejected")
	}
	if !l.acquire("5.6.7.8") {
		t.Error("a different IP has its own budget")
	}
	if l.count("1.2.3.4") != 2 {
		t.Errorf("count = %d, want 2", l.count("1.2.3.4"))
	}

	l.release("1.2.3.4")
	if !l.acquire("1.2.3.4") {
		t.Error("released slot should be reusable")
	}

	l.release("5.6.7.8")
	if l.count("5.6.7.8") != 0 {
		t.Errorf("count after release = %d", l.count("5.6.7.8"))
	}
}

func TestStreamLimiterGlobalCap(t *testing.T) {
	l := newStreamLimiter(5)
	l.maxTotal = 3
	for i := 0; i < 3; i++ {
		if !l.acquire("10.0.0.1") {
			t.Fatalf("connection %d within the global cap rejected", i)
		}
	}
	if l.acquire("10.0.0.2") {
		t.Error("global cap should reject even a fresh IP")
	}
}

func TestHandleSkyBadStep(t *testing.T) {
	h := testHandler(catalog.NewStore())

	for _, step := range []string{"0", "61", "-1", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/sky?step="+step, nil)
		rec := httptest.NewRecorder()
		h.HandleSky(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("step=%q status = %d, want 400", step, rec.Code)
		}
	}
}

func TestHandleSkyRateLimit(t *testing.T) {
	h := testHandler(catalog.NewStore())

	// Saturate the per-IP budget for the request's remote address.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/sky", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	h.limiter.acquire("9.9.9.9")
	h.limiter.acquire("9.9.9.9")

	rec := httptest.NewRecorder()
	h.HandleSky(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After")
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
		t.Errorf("429 body = %v (%v)", body, err)
	}

	// The rejected request must not leak a slot.
	if got := h.limiter.count("9.9.9.9"); got != 2 {
		t.Errorf("count after rejection = %d, want 2", got)
	}
}

func TestHandleSkySendsMetadataFirst(t *testing.T) {
	store := catalog.NewStore()
	store.Set(&catalog.Catalog{
		Source:   "test",
		LoadedAt: time.Now().Add(-2 * time.Minute),
		Targets:  []catalog.Target{{ID: "a"}, {ID: "b"}},
	})
	h := testHandler(store)

	// A cancelled context ends the stream right after the initial
	// messages.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/sky", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.HandleSky(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "retry: ") {
		t.Error("stream missing retry directive")
	}
	idx := strings.Index(body, "data: ")
	if idx < 0 {
		t.Fatalf("stream has no data message:\n%s", body)
	}
	payload := body[idx+len("data: "):]
	payload = payload[:strings.Index(payload, "\n")]

	var meta metadataMessage
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		t.Fatalf("metadata unmarshal: %v", err)
	}
	if meta.Type != "metadata" || meta.Targets != 2 {
		t.Errorf("metadata = %+v", meta)
	}
	if meta.CatalogAge < 100 {
		t.Errorf("catalog age = %d, want ~120s", meta.CatalogAge)
	}
}
