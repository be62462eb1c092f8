// Package timezone attaches zones to naive wall-clock series.
//
// Raw exports carry naive local timestamps written in a single default zone.
// Normalize localizes them in that zone and converts them into an
// installation's zone. Wall clocks that fall into a daylight-saving gap or
// overlap are first marked unresolved and then repaired one by one, so every
// reading leaves with a definite offset.
package timezone

import (
	"fmt"
	"time"

	"github.com/raterudder/solarprep/pkg/types"
)

// Report counts what Normalize had to fix.
type Report struct {
	// Duplicates is the number of readings dropped because another reading
	// had the same wall clock (before localizing) or instant (after repair).
	Duplicates int
	// Ambiguous wall clocks occurred twice in the source zone.
	Ambiguous int
	// NonExistent wall clocks were skipped by the source zone.
	NonExistent int
}

// Repaired returns how many readings went through the repair pass.
func (r Report) Repaired() int {
	return r.Ambiguous + r.NonExistent
}

// Add returns the sum of two reports.
func (r Report) Add(o Report) Report {
	return Report{
		Duplicates:  r.Duplicates + o.Duplicates,
		Ambiguous:   r.Ambiguous + o.Ambiguous,
		NonExistent: r.NonExistent + o.NonExistent,
	}
}

// Resolution describes how a wall clock maps onto a zone.
type Resolution int

const (
	// Unique wall clocks map onto exactly one instant.
	Unique Resolution = iota
	// Ambiguous wall clocks map onto two instants (fall-back overlap).
	Ambiguous
	// NonExistent wall clocks map onto no instant (spring-forward gap).
	NonExistent
)

func (r Resolution) String() string {
	switch r {
	case Unique:
		return "unique"
	case Ambiguous:
		return "ambiguous"
	case NonExistent:
		return "nonexistent"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}

// Normalize sorts readings by wall clock, drops wall-clock duplicates keeping
// the last one, localizes each wall clock in source and converts it to
// target. Only the wall-clock fields of the input times are used; their
// locations are ignored. The input slice is not modified.
func Normalize(readings []types.Reading, source, target *time.Location) ([]types.Reading, Report) {
	var report Report

	walls := make([]types.Reading, len(readings))
	for i, r := range readings {
		walls[i] = types.Reading{Time: Wall(r.Time), Value: r.Value}
	}
	walls, report.Duplicates = types.SortDedupe(walls)

	out := make([]types.Reading, len(walls))

	// first pass: localize whatever maps onto a single instant
	var unresolved []int
	for i, r := range walls {
		inst, res := Localize(r.Time, source)
		if res != Unique {
			unresolved = append(unresolved, i)
			continue
		}
		out[i] = types.Reading{Time: inst, Value: r.Value}
	}

	// repair pass: resolve each marked wall clock individually
	for _, i := range unresolved {
		inst, res := Localize(walls[i].Time, source)
		switch res {
		case Ambiguous:
			report.Ambiguous++
		case NonExistent:
			report.NonExistent++
		}
		out[i] = types.Reading{Time: inst, Value: walls[i].Value}
	}

	for i := range out {
		out[i].Time = out[i].Time.In(target)
	}

	if len(unresolved) > 0 {
		// a repaired non-existent wall clock can land on an instant that
		// already has a reading
		var dropped int
		out, dropped = types.SortDedupe(out)
		report.Duplicates += dropped
	}
	return out, report
}

// Localize returns the instant that the wall clock of wall denotes in loc
// along with how it was resolved. Ambiguous wall clocks resolve to their
// first occurrence. Non-existent wall clocks are read with the offset that
// was in force before the transition, which pushes them past the gap.
func Localize(wall time.Time, loc *time.Location) (time.Time, Resolution) {
	w := Wall(wall)

	// an instant a day away on either side has the pre- and post-transition
	// offsets; zones never change twice within two days
	before := offsetAt(w.Add(-24*time.Hour), loc)
	after := offsetAt(w.Add(24*time.Hour), loc)

	first := w.Add(-time.Duration(before) * time.Second).In(loc)
	second := w.Add(-time.Duration(after) * time.Second).In(loc)

	firstOK := sameWall(first, w)
	secondOK := sameWall(second, w)

	switch {
	case firstOK && secondOK && !first.Equal(second):
		if second.Before(first) {
			return second, Ambiguous
		}
		return first, Ambiguous
	case firstOK:
		return first, Unique
	case secondOK:
		return second, Unique
	default:
		return first, NonExistent
	}
}

// Wall drops the location of t, keeping its wall clock, and returns it as a
// UTC time.
func Wall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func offsetAt(wallAsUTC time.Time, loc *time.Location) int {
	_, offset := wallAsUTC.In(loc).Zone()
	return offset
}

func sameWall(t, wall time.Time) bool {
	return Wall(t).Equal(wall)
}

// Check reports every wall clock in readings that doesn't map onto exactly
// one instant in loc. Each returned error wraps types.ErrAmbiguousTimestamp.
func Check(readings []types.Reading, loc *time.Location) []error {
	var errs []error
	for _, r := range readings {
		if _, res := Localize(r.Time, loc); res != Unique {
			errs = append(errs, fmt.Errorf("%w: %s is %s in %s", types.ErrAmbiguousTimestamp, Wall(r.Time).Format("2006-01-02 15:04:05"), res, loc))
		}
	}
	return errs
}
