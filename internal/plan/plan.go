// Package plan ranks visibility windows into an ordered observing
// sequence. Ranking is deterministic for identical inputs so plans are
// reproducible.
package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/fov"
	"github.com/jkmerchant/spot/internal/visibility"
)

// Policy selects the scoring function for ranking.
type Policy string

const (
	// PolicyPriorityWeighted scores by the target's catalog priority.
	PolicyPriorityWeighted Policy = "priority-weighted"
	// PolicyTotalVisibleTime scores by the target's summed window time.
	PolicyTotalVisibleTime Policy = "total-visible-time"
	// PolicyMaxAltitude scores by the best altitude any window reaches.
	PolicyMaxAltitude Policy = "max-altitude"
	// PolicyEarliestWindow scores nothing; ordering falls entirely to
	// the earliest-start tie-break.
	PolicyEarliestWindow Policy = "earliest-window"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyPriorityWeighted, PolicyTotalVisibleTime, PolicyMaxAltitude, PolicyEarliestWindow:
		return p, nil
	case "":
		return PolicyPriorityWeighted, nil
	}
	return "", fmt.Errorf("unknown policy %q", s)
}

// Entry is one scheduled observation: a target, its chosen window, and
// optionally the pointing that frames it.
type Entry struct {
	TargetID string            `json:"target_id"`
	Window   visibility.Window `json:"window"`
	Score    float64           `json:"score"`
	Pointing *fov.Pointing     `json:"pointing,omitempty"`
}

// Plan is an ordered observing sequence, sorted by window start.
// Derived output: recompute when targets, windows, or policy change.
type Plan struct {
	Policy    Policy   `json:"policy"`
	Entries   []Entry  `json:"entries"`
	Unplanned []string `json:"unplanned,omitempty"`
}

// candidate pairs a target with its windows during ranking.
type candidate struct {
	target  *catalog.Target
	windows []visibility.Window
	score   float64
}

// Rank builds a single-telescope plan: each target gets at most one
// window, and chosen windows never overlap. Targets are considered in
// score order (higher first); when a target's best window conflicts
// with an already-scheduled one, the target is deferred to its next
// non-conflicting window, and dropped to Unplanned when none remains.
// Ties break by earliest window start, then lexicographic target ID.
func Rank(targets []catalog.Target, results []visibility.Result, policy Policy) (Plan, error) {
	if _, err := ParsePolicy(string(policy)); err != nil {
		return Plan{}, err
	}
	if policy == "" {
		policy = PolicyPriorityWeighted
	}

	byID := make(map[string]*catalog.Target, len(targets))
	for i := range targets {
		byID[targets[i].ID] = &targets[i]
	}

	var cands []candidate
	var unplanned []string
	for _, res := range results {
		tgt, ok := byID[res.TargetID]
		if !ok || res.Error != "" || len(res.Windows) == 0 {
			unplanned = append(unplanned, res.TargetID)
			continue
		}
		windows := append([]visibility.Window(nil), res.Windows...)
		sort.Slice(windows, func(i, j int) bool {
			return windows[i].Start.Before(windows[j].Start)
		})
		cands = append(cands, candidate{
			target:  tgt,
			windows: windows,
			score:   score(tgt, res, policy),
		})
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		si := cands[i].windows[0].Start
		sj := cands[j].windows[0].Start
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return cands[i].target.ID < cands[j].target.ID
	})

	p := Plan{Policy: policy}
	var taken []visibility.Window
	for _, c := range cands {
		w, ok := firstFree(c.windows, taken)
		if !ok {
			unplanned = append(unplanned, c.target.ID)
			continue
		}
		taken = append(taken, w)
		p.Entries = append(p.Entries, Entry{
			TargetID: c.target.ID,
			Window:   w,
			Score:    c.score,
		})
	}

	sort.Slice(p.Entries, func(i, j int) bool {
		si, sj := p.Entries[i].Window.Start, p.Entries[j].Window.Start
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return p.Entries[i].TargetID < p.Entries[j].TargetID
	})
	sort.Strings(unplanned)
	p.Unplanned = unplanned
	return p, nil
}

// score evaluates one target's windows under the policy.
func score(tgt *catalog.Target, res visibility.Result, policy Policy) float64 {
	switch policy {
	case PolicyTotalVisibleTime:
		return res.TotalDuration().Seconds()
	case PolicyMaxAltitude:
		best := -91.0
		for _, w := range res.Windows {
			if w.MaxAltDeg > best {
				best = w.MaxAltDeg
			}
		}
		return best
	case PolicyEarliestWindow:
		return 0
	default: // PolicyPriorityWeighted
		return tgt.Priority
	}
}

// firstFree returns the earliest window that overlaps none of taken.
func firstFree(windows, taken []visibility.Window) (visibility.Window, bool) {
	for _, w := range windows {
		if !overlapsAny(w, taken) {
			return w, true
		}
	}
	return visibility.Window{}, false
}

func overlapsAny(w visibility.Window, taken []visibility.Window) bool {
	for _, t := range taken {
		if w.Overlaps(t) {
			return true
		}
	}
	return false
}

// TotalScheduled sums the planned observation time.
func (p Plan) TotalScheduled() time.Duration {
	var total time.Duration
	for _, e := range p.Entries {
		total += e.Window.Duration()
	}
	return total
}
