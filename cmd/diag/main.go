// Command diag is an offline planning check: load a site and catalog,
// compute visibility windows and a ranked plan for one night, and print
// them. No server required.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/soniakeys/sexagesimal"

	"github.com/jkmerchant/spot/internal/catalog"
	"github.com/jkmerchant/spot/internal/constraint"
	"github.com/jkmerchant/spot/internal/ephem"
	"github.com/jkmerchant/spot/internal/plan"
	"github.com/jkmerchant/spot/internal/site"
	"github.com/jkmerchant/spot/internal/visibility"
)

func main() {
	var (
		sitesFile   = flag.String("sites", "", "site registry YAML (default: builtin sites)")
		siteName    = flag.String("site", "maunakea", "site name")
		catalogFile = flag.String("catalog", "", "target catalog CSV")
		tleFile     = flag.String("tle", "", "satellite TLE file")
		startStr    = flag.String("start", "", "span start, RFC 3339 (default: now)")
		hours       = flag.Float64("hours", 24, "span length in hours")
		stepSec     = flag.Int("step", 60, "sampling step in seconds")
		minElev     = flag.Float64("min-elevation", 30, "elevation floor in degrees")
		sunMax      = flag.Float64("sun-max", constraint.AstronomicalTwilightDeg, "maximum sun altitude in degrees")
		moonSep     = flag.Float64("moon-sep", 0, "minimum moon separation in degrees (0 disables)")
		policyStr   = flag.String("policy", "priority-weighted", "ranking policy")
		refraction  = flag.Bool("refraction", true, "apply atmospheric refraction")
		windowsCSV  = flag.String("windows-csv", "", "write windows CSV to this path")
		planCSV     = flag.String("plan-csv", "", "write plan CSV to this path")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	registry := site.Builtin()
	if *sitesFile != "" {
		var err error
		registry, err = site.LoadYAMLFile(*sitesFile)
		if err != nil {
			fatal("loading sites: %v", err)
		}
	}
	st := registry.Get(*siteName)
	if st == nil {
		fatal("unknown site %q (known: %v)", *siteName, registry.Names())
	}

	var targets []catalog.Target
	if *catalogFile != "" {
		f, err := os.Open(*catalogFile)
		if err != nil {
			fatal("opening catalog: %v", err)
		}
		ts, err := catalog.ParseCSV(f, logger)
		f.Close()
		if err != nil {
			fatal("parsing catalog: %v", err)
		}
		targets = append(targets, ts...)
	}
	if *tleFile != "" {
		f, err := os.Open(*tleFile)
		if err != nil {
			fatal("opening TLE file: %v", err)
		}
		ts, err := catalog.ParseTLE(f, logger)
		f.Close()
		if err != nil {
			fatal("parsing TLE file: %v", err)
		}
		targets = append(targets, ts...)
	}
	if len(targets) == 0 {
		fatal("no targets loaded, pass -catalog and/or -tle")
	}

	start := time.Now().UTC()
	if *startStr != "" {
		t, err := time.Parse(time.RFC3339, *startStr)
		if err != nil {
			fatal("invalid -start: %v", err)
		}
		start = t.UTC()
	}
	spec := ephem.TimeSpec{
		Start: start,
		End:   start.Add(time.Duration(*hours * float64(time.Hour))),
		Step:  time.Duration(*stepSec) * time.Second,
	}

	set := constraint.Set{
		constraint.MinElevation(*minElev),
		constraint.SunAltitudeMax(*sunMax),
		constraint.HorizonProfile(st.HorizonAt),
	}
	if *moonSep > 0 {
		set = append(set, constraint.MoonSeparationMin(*moonSep))
	}

	policy, err := plan.ParsePolicy(*policyStr)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("site %s  lat %.4f  lon %.4f  elev %.0f m\n", st.Name, st.Latitude, st.Longitude, st.Elevation)
	fmt.Printf("span %s .. %s  step %s\n\n", spec.Start.Format(time.RFC3339), spec.End.Format(time.RFC3339), spec.Step)

	night, err := visibility.NightEvents(st, start)
	if err == nil {
		printEvent := func(name string, t time.Time) {
			if t.IsZero() {
				fmt.Printf("  %-18s --\n", name)
				return
			}
			fmt.Printf("  %-18s %s\n", name, t.UTC().Format("15:04:05"))
		}
		printEvent("sunset", night.Sunset)
		printEvent("astronomical dusk", night.AstroDusk)
		printEvent("astronomical dawn", night.AstroDawn)
		printEvent("sunrise", night.Sunrise)
		printEvent("moonrise", night.MoonRise)
		printEvent("moonset", night.MoonSet)
		fmt.Printf("  %-18s %.0f%%\n\n", "moon illumination", night.MoonIllum*100)
	}

	results, err := visibility.Compute(context.Background(), visibility.Request{
		Site:        st,
		Targets:     targets,
		Constraints: set,
		Span:        spec,
		Options:     visibility.Options{Refraction: *refraction},
	}, logger)
	if err != nil {
		fatal("computing visibility: %v", err)
	}

	for i := range targets {
		t := &targets[i]
		res := results[i]
		if eq, ok := t.Apparent(start); ok {
			fmt.Printf("%s  %v %v\n", t.ID, sexa.FmtRA(eq.RA), sexa.FmtAngle(eq.Dec))
		} else {
			fmt.Printf("%s  (satellite)\n", t.ID)
		}
		if res.Error != "" {
			fmt.Printf("  error: %s\n", res.Error)
			continue
		}
		if len(res.Windows) == 0 {
			fmt.Println("  no windows")
			continue
		}
		for _, w := range res.Windows {
			fmt.Printf("  %s .. %s  (%s)  max alt %.1f° at %s\n",
				w.Start.UTC().Format("15:04:05"),
				w.End.UTC().Format("15:04:05"),
				w.Duration().Round(time.Second),
				w.MaxAltDeg,
				w.MaxAltTime.UTC().Format("15:04:05"),
			)
		}
	}

	p, err := plan.Rank(targets, results, policy)
	if err != nil {
		fatal("ranking: %v", err)
	}

	fmt.Printf("\nplan (%s), %d entries, %s scheduled:\n", p.Policy, len(p.Entries), p.TotalScheduled().Round(time.Second))
	for i, e := range p.Entries {
		fmt.Printf("  %2d. %-16s %s .. %s  score %.2f\n",
			i+1, e.TargetID,
			e.Window.Start.UTC().Format("15:04:05"),
			e.Window.End.UTC().Format("15:04:05"),
			e.Score,
		)
	}
	if len(p.Unplanned) > 0 {
		fmt.Printf("  unplanned: %v\n", p.Unplanned)
	}

	if *windowsCSV != "" {
		writeCSV(*windowsCSV, func(f *os.File) error { return plan.WriteWindowsCSV(f, results) })
	}
	if *planCSV != "" {
		writeCSV(*planCSV, func(f *os.File) error { return plan.WritePlanCSV(f, p) })
	}
}

func writeCSV(path string, write func(*os.File) error) {
	f, err := os.Create(path)
	if err != nil {
		fatal("creating %s: %v", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		fatal("writing %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		fatal("closing %s: %v", path, err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
