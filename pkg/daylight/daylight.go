// Package daylight suppresses solar readings outside the daylight window and
// fills zero-valued gaps inside it.
package daylight

import (
	"github.com/raterudder/solarprep/pkg/types"
)

// Stats counts what CorrectDayStats changed.
type Stats struct {
	// Zeroed readings were outside the window and non-zero.
	Zeroed int
	// Interpolated readings were zero inside the window and got a value from
	// their neighbors.
	Interpolated int
	// Unanchored readings were zero inside the window with no non-zero
	// reading anywhere else in the day, so they stayed zero.
	Unanchored int
}

// Add returns the sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Zeroed:       s.Zeroed + o.Zeroed,
		Interpolated: s.Interpolated + o.Interpolated,
		Unanchored:   s.Unanchored + o.Unanchored,
	}
}

// CorrectDay returns a corrected copy of day. See CorrectDayStats.
func CorrectDay(day types.Day, window types.DayWindow) types.Day {
	out, _ := CorrectDayStats(day, window)
	return out
}

// CorrectDayStats returns a copy of day where every reading strictly before
// sunrise or strictly after sunset is zero, and every zero reading within
// [sunrise, sunset] is replaced by the mean of the nearest non-zero readings
// before and after it in the day, or by the only one of them that exists.
// Readings are filled in order, so inside a run of zeros the earlier neighbor
// is the value filled just before it.
//
// If window isn't OK the copy is returned unchanged. day.Readings must be
// ordered by time.
func CorrectDayStats(day types.Day, window types.DayWindow) (types.Day, Stats) {
	var stats Stats
	out := types.Day{
		Date:     day.Date,
		Readings: make([]types.Reading, len(day.Readings)),
	}
	copy(out.Readings, day.Readings)

	if !window.OK() {
		return out, stats
	}

	readings := out.Readings
	inside := make([]bool, len(readings))
	for i, r := range readings {
		inside[i] = window.Contains(r.Time)
		if !inside[i] && r.Value != 0 {
			readings[i].Value = 0
			stats.Zeroed++
		}
	}

	// later anchors are never written before they're visited
	next := nextNonZero(readings)
	prev := -1
	for i := range readings {
		if readings[i].Value != 0 {
			prev = i
			continue
		}
		if !inside[i] {
			continue
		}
		n := next[i]
		switch {
		case prev >= 0 && n >= 0:
			readings[i].Value = (readings[prev].Value + readings[n].Value) / 2
		case prev >= 0:
			readings[i].Value = readings[prev].Value
		case n >= 0:
			readings[i].Value = readings[n].Value
		default:
			stats.Unanchored++
			continue
		}
		stats.Interpolated++
		if readings[i].Value != 0 {
			prev = i
		}
	}

	return out, stats
}

// nextNonZero returns, for each index, the index of the closest later
// non-zero reading or -1.
func nextNonZero(readings []types.Reading) []int {
	idx := make([]int, len(readings))
	last := -1
	for i := len(readings) - 1; i >= 0; i-- {
		idx[i] = last
		if readings[i].Value != 0 {
			last = i
		}
	}
	return idx
}
