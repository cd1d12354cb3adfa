package plan

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/jkmerchant/spot/internal/visibility"
)

// WriteWindowsCSV writes one row per window: target id, site id,
// start, end (RFC 3339 UTC), and the window's maximum altitude.
func WriteWindowsCSV(w io.Writer, results []visibility.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"target_id", "site_id", "start", "end", "max_alt_deg"}); err != nil {
		return err
	}
	for _, res := range results {
		for _, win := range res.Windows {
			rec := []string{
				win.TargetID,
				win.SiteID,
				win.Start.UTC().Format(time.RFC3339),
				win.End.UTC().Format(time.RFC3339),
				strconv.FormatFloat(win.MaxAltDeg, 'f', 2, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePlanCSV writes the ranked plan, one row per entry in schedule
// order.
func WritePlanCSV(w io.Writer, p Plan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"order", "target_id", "site_id", "start", "end", "max_alt_deg", "score"}); err != nil {
		return err
	}
	for i, e := range p.Entries {
		rec := []string{
			strconv.Itoa(i + 1),
			e.TargetID,
			e.Window.SiteID,
			e.Window.Start.UTC().Format(time.RFC3339),
			e.Window.End.UTC().Format(time.RFC3339),
			strconv.FormatFloat(e.Window.MaxAltDeg, 'f', 2, 64),
			strconv.FormatFloat(e.Score, 'f', 3, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
