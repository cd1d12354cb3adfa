// Package visibility derives observable time windows: the spans within
// a requested range during which a target satisfies every active
// constraint at a site.
package visibility

import (
	"time"
)

// Window is one maximal contiguous observable span for a target at a
// site. Start < End always; windows for the same target/site never
// overlap and are sorted by start time.
type Window struct {
	TargetID string    `json:"target_id"`
	SiteID   string    `json:"site_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`

	// Quality metric: the maximum altitude reached inside the window.
	MaxAltDeg  float64   `json:"max_alt_deg"`
	MaxAltTime time.Time `json:"max_alt_time"`
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps reports whether two windows share any instant.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Result holds one target's windows within a batch computation.
// Per-target failures are reported here rather than aborting the batch.
type Result struct {
	TargetID string   `json:"target_id"`
	Windows  []Window `json:"windows"`
	Error    string   `json:"error,omitempty"`
}

// TotalDuration sums the result's window lengths.
func (r Result) TotalDuration() time.Duration {
	var total time.Duration
	for _, w := range r.Windows {
		total += w.Duration()
	}
	return total
}
