package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/unit"
)

// ParseCSV reads sidereal targets from CSV. The first row is a header;
// recognized columns (case-insensitive): id, name, ra, dec, epoch,
// pmra, pmdec, priority, min_elevation, moon_separation. RA accepts
// decimal degrees or sexagesimal hours (hh:mm:ss.s); Dec accepts
// decimal degrees or sexagesimal degrees (±dd:mm:ss.s).
//
// Malformed rows are skipped with a warning log; the parse only fails
// on unreadable input or a header without id/ra/dec.
func ParseCSV(r io.Reader, logger *slog.Logger) ([]Target, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"id", "ra", "dec"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("catalog header missing %q column", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var targets []Target
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping malformed catalog row", "line", line, "error", err)
			continue
		}

		id := field(rec, "id")
		raDeg, err := ParseRA(field(rec, "ra"))
		if err != nil {
			logger.Warn("skipping catalog row with bad RA", "line", line, "id", id, "error", err)
			continue
		}
		decDeg, err := ParseDec(field(rec, "dec"))
		if err != nil {
			logger.Warn("skipping catalog row with bad Dec", "line", line, "id", id, "error", err)
			continue
		}

		t := Target{
			ID:   id,
			Name: field(rec, "name"),
			Kind: KindSidereal,
			RA:   unit.RAFromDeg(raDeg),
			Dec:  unit.AngleFromDeg(decDeg),
		}
		if v := field(rec, "epoch"); v != "" {
			t.EpochJD, _ = strconv.ParseFloat(v, 64)
		}
		if v := field(rec, "pmra"); v != "" {
			t.PMRA, _ = strconv.ParseFloat(v, 64)
		}
		if v := field(rec, "pmdec"); v != "" {
			t.PMDec, _ = strconv.ParseFloat(v, 64)
		}
		if v := field(rec, "priority"); v != "" {
			t.Priority, _ = strconv.ParseFloat(v, 64)
		}
		if v := field(rec, "min_elevation"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				t.MinElevationDeg = &f
			}
		}
		if v := field(rec, "moon_separation"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				t.MoonSeparationDeg = &f
			}
		}

		if err := t.Validate(); err != nil {
			logger.Warn("skipping invalid catalog row", "line", line, "id", id, "error", err)
			continue
		}
		targets = append(targets, t)
	}

	return targets, nil
}

// ParseRA parses a right ascension as decimal degrees or sexagesimal
// hours ("hh:mm:ss.s" or "hh mm ss.s"), returning degrees in [0, 360).
func ParseRA(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty RA")
	}
	if !strings.ContainsAny(s, ": ") {
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("bad RA %q: %w", s, err)
		}
		d = math.Mod(d, 360)
		if d < 0 {
			d += 360
		}
		return d, nil
	}
	hours, err := parseSexagesimal(s)
	if err != nil {
		return 0, fmt.Errorf("bad RA %q: %w", s, err)
	}
	if hours < 0 || hours >= 24 {
		return 0, fmt.Errorf("RA hours %v out of range", hours)
	}
	return hours * 15, nil
}

// ParseDec parses a declination as decimal degrees or sexagesimal
// degrees ("±dd:mm:ss.s"), returning degrees in [-90, 90].
func ParseDec(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty Dec")
	}
	var d float64
	var err error
	if !strings.ContainsAny(s, ": ") {
		d, err = strconv.ParseFloat(s, 64)
	} else {
		d, err = parseSexagesimal(s)
	}
	if err != nil {
		return 0, fmt.Errorf("bad Dec %q: %w", s, err)
	}
	if d < -90 || d > 90 {
		return 0, fmt.Errorf("Dec %v out of range", d)
	}
	return d, nil
}

// parseSexagesimal parses "±a:b:c" or "±a b c" (c optional) into a
// signed decimal value in units of a.
func parseSexagesimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ' ' })
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("want 2 or 3 sexagesimal fields, got %d", len(parts))
	}
	a, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	b, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	var c float64
	if len(parts) == 3 {
		c, err = strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, err
		}
	}
	if b < 0 || b >= 60 || c < 0 || c >= 60 {
		return 0, fmt.Errorf("minutes/seconds out of range in %q", s)
	}
	return sign * (a + b/60 + c/3600), nil
}
