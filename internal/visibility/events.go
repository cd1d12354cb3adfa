package visibility

import (
	"time"

	"github.com/jkmerchant/spot/internal/constraint"
	"github.com/jkmerchant/spot/internal/ephem"
	"github.com/jkmerchant/spot/internal/site"
)

// Altitude thresholds for rise/set events. The sun's accounts for
// standard refraction plus semi-diameter; the moon's altitude already
// carries the parallax correction.
const (
	sunHorizonDeg  = -0.833
	moonHorizonDeg = 0.125
)

// Night summarizes the solar and lunar events of one site night.
// Event times are zero when the event does not occur within the
// searched span (e.g. no astronomical darkness at high latitudes in
// summer, or no moonrise that night).
type Night struct {
	Site string    `json:"site"`
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	Sunset  time.Time `json:"sunset"`
	Sunrise time.Time `json:"sunrise"`

	CivilDusk    time.Time `json:"civil_dusk"`
	CivilDawn    time.Time `json:"civil_dawn"`
	NauticalDusk time.Time `json:"nautical_dusk"`
	NauticalDawn time.Time `json:"nautical_dawn"`
	AstroDusk    time.Time `json:"astronomical_dusk"`
	AstroDawn    time.Time `json:"astronomical_dawn"`

	MoonRise  time.Time `json:"moon_rise"`
	MoonSet   time.Time `json:"moon_set"`
	MoonIllum float64   `json:"moon_illum"`
}

// NightEvents computes the events between from and from+24h. Callers
// usually anchor from at local noon so one evening/morning pair falls
// inside the span.
func NightEvents(st *site.Site, from time.Time) (Night, error) {
	spec := ephem.TimeSpec{Start: from, End: from.Add(24 * time.Hour), Step: 5 * time.Minute}
	if err := spec.Validate(); err != nil {
		return Night{}, err
	}
	grid, err := ephem.NewGrid(st.Observer(), spec)
	if err != nil {
		return Night{}, err
	}

	n := Night{Site: st.Name, From: spec.Start, To: spec.End}
	n.MoonIllum = grid.At(from.Add(12 * time.Hour)).MoonIllum

	sunAlt := func(t time.Time) float64 { return grid.At(t).Sun.AltDeg }
	moonAlt := func(t time.Time) float64 { return grid.At(t).Moon.AltDeg }

	n.Sunset = fallingCrossing(sunAlt, sunHorizonDeg, spec)
	n.Sunrise = risingCrossing(sunAlt, sunHorizonDeg, spec)
	n.CivilDusk = fallingCrossing(sunAlt, constraint.CivilTwilightDeg, spec)
	n.CivilDawn = risingCrossing(sunAlt, constraint.CivilTwilightDeg, spec)
	n.NauticalDusk = fallingCrossing(sunAlt, constraint.NauticalTwilightDeg, spec)
	n.NauticalDawn = risingCrossing(sunAlt, constraint.NauticalTwilightDeg, spec)
	n.AstroDusk = fallingCrossing(sunAlt, constraint.AstronomicalTwilightDeg, spec)
	n.AstroDawn = risingCrossing(sunAlt, constraint.AstronomicalTwilightDeg, spec)

	n.MoonRise = risingCrossing(moonAlt, moonHorizonDeg, spec)
	n.MoonSet = fallingCrossing(moonAlt, moonHorizonDeg, spec)

	return n, nil
}

// fallingCrossing finds the first time f drops through threshold.
func fallingCrossing(f func(time.Time) float64, threshold float64, spec ephem.TimeSpec) time.Time {
	return altCrossing(f, threshold, spec, false)
}

// risingCrossing finds the first time f climbs through threshold.
func risingCrossing(f func(time.Time) float64, threshold float64, spec ephem.TimeSpec) time.Time {
	return altCrossing(f, threshold, spec, true)
}

func altCrossing(f func(time.Time) float64, threshold float64, spec ephem.TimeSpec, rising bool) time.Time {
	above := func(t time.Time) bool { return f(t) >= threshold }

	prev := above(spec.Start)
	prevT := spec.Start
	for t := spec.Start.Add(spec.Step); !t.After(spec.End); t = t.Add(spec.Step) {
		cur := above(t)
		if cur != prev && cur == rising {
			// Bisect the 5-minute bracket down to a second.
			lo, hi := prevT, t
			for hi.Sub(lo) > time.Second {
				mid := lo.Add(hi.Sub(lo) / 2)
				if above(mid) == prev {
					lo = mid
				} else {
					hi = mid
				}
			}
			return lo.Add(hi.Sub(lo) / 2)
		}
		prev, prevT = cur, t
	}
	return time.Time{}
}
