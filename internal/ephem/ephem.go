// Package ephem provides the coordinate and time engine: Julian dates,
// sidereal time, equatorial/horizontal transforms, solar and lunar
// ephemeris, and the geodesy needed for earth-orbit targets.
//
// Solar/lunar positions and sidereal time come from the Meeus
// "Astronomical Algorithms" implementation in soniakeys/meeus. Frame
// rotations are written out explicitly so the azimuth convention
// (0 = North, clockwise) is in one place.
//
// All functions are pure and safe for concurrent use.
package ephem

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTime reports an instant outside the supported ephemeris
// validity range.
var ErrInvalidTime = errors.New("time outside supported ephemeris range")

// Validity range for the solar/lunar theory as used here. The Meeus
// series degrade gracefully outside this span, but planning dates
// beyond it are almost certainly caller bugs.
var (
	minValidTime = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	maxValidTime = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

// CheckTime returns ErrInvalidTime if t is outside the supported range.
func CheckTime(t time.Time) error {
	if t.Before(minValidTime) || !t.Before(maxValidTime) {
		return fmt.Errorf("%w: %s", ErrInvalidTime, t.UTC().Format(time.RFC3339))
	}
	return nil
}

// TimeSpec is a UTC time range with a sampling step.
type TimeSpec struct {
	Start time.Time
	End   time.Time
	Step  time.Duration
}

// Validate checks the range ordering, the step, and that both endpoints
// are inside the supported ephemeris range.
func (ts TimeSpec) Validate() error {
	if !ts.Start.Before(ts.End) {
		return fmt.Errorf("%w: start %s not before end %s", ErrInvalidTime,
			ts.Start.UTC().Format(time.RFC3339), ts.End.UTC().Format(time.RFC3339))
	}
	if ts.Step <= 0 {
		return fmt.Errorf("%w: step %s must be positive", ErrInvalidTime, ts.Step)
	}
	if err := CheckTime(ts.Start); err != nil {
		return err
	}
	if err := CheckTime(ts.End); err != nil {
		return err
	}
	return nil
}

// Duration returns the span length.
func (ts TimeSpec) Duration() time.Duration {
	return ts.End.Sub(ts.Start)
}

// Clamp limits t to the [Start, End] range.
func (ts TimeSpec) Clamp(t time.Time) time.Time {
	if t.Before(ts.Start) {
		return ts.Start
	}
	if t.After(ts.End) {
		return ts.End
	}
	return t
}

// Contains reports whether t lies within [Start, End].
func (ts TimeSpec) Contains(t time.Time) bool {
	return !t.Before(ts.Start) && !t.After(ts.End)
}
