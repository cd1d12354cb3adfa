package visibility

import (
	"testing"
	"time"

	"github.com/jkmerchant/spot/internal/site"
)

func TestNightEvents(t *testing.T) {
	st := maunakea(t)
	// 00:00 UTC is early afternoon local time, so the span covers one
	// evening/morning pair.
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	n, err := NightEvents(st, from)
	if err != nil {
		t.Fatal(err)
	}

	if n.Site != st.Name {
		t.Errorf("night site = %q", n.Site)
	}
	for name, at := range map[string]time.Time{
		"sunset":            n.Sunset,
		"sunrise":           n.Sunrise,
		"civil dusk":        n.CivilDusk,
		"civil dawn":        n.CivilDawn,
		"nautical dusk":     n.NauticalDusk,
		"nautical dawn":     n.NauticalDawn,
		"astronomical dusk": n.AstroDusk,
		"astronomical dawn": n.AstroDawn,
	} {
		if at.IsZero() {
			t.Errorf("%s missing at low latitude", name)
			continue
		}
		if at.Before(n.From) || at.After(n.To) {
			t.Errorf("%s at %v outside span %v..%v", name, at, n.From, n.To)
		}
	}
	if t.Failed() {
		t.FailNow()
	}

	// Evening deepens in order, morning brightens in order.
	for _, seq := range [][2]time.Time{
		{n.Sunset, n.CivilDusk},
		{n.CivilDusk, n.NauticalDusk},
		{n.NauticalDusk, n.AstroDusk},
		{n.AstroDusk, n.AstroDawn},
		{n.AstroDawn, n.NauticalDawn},
		{n.NauticalDawn, n.CivilDawn},
		{n.CivilDawn, n.Sunrise},
	} {
		if !seq[0].Before(seq[1]) {
			t.Errorf("event order violated: %v should precede %v", seq[0], seq[1])
		}
	}

	if n.MoonIllum < 0 || n.MoonIllum > 1 {
		t.Errorf("moon illumination = %v, want [0,1]", n.MoonIllum)
	}
	// The moon rises or sets at least once in any 24-hour span at this
	// latitude.
	if n.MoonRise.IsZero() && n.MoonSet.IsZero() {
		t.Error("neither moonrise nor moonset found in 24h")
	}
}

func TestNightEventsPolarSummer(t *testing.T) {
	// Svalbard latitude in late June: the sun never sets.
	r, err := site.NewRegistry([]site.Site{
		{Name: "polar", Latitude: 78, Longitude: 15, Elevation: 10},
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := NightEvents(r.Get("polar"), time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if !n.Sunset.IsZero() || !n.Sunrise.IsZero() {
		t.Errorf("midnight sun should yield zero sunset/sunrise, got %v / %v", n.Sunset, n.Sunrise)
	}
	if !n.AstroDusk.IsZero() {
		t.Errorf("no astronomical darkness in polar summer, got dusk %v", n.AstroDusk)
	}
}
