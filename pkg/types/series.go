package types

import (
	"fmt"
	"sort"
	"time"
)

// Reading is a single measurement in kW.
type Reading struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Date is a calendar date without a zone.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD or YYYYMMDD.
func ParseDate(s string) (Date, error) {
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date: %q", s)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Compact formats the date as YYYYMMDD, the form used in file names.
func (d Date) Compact() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// DayWindow is the daylight interval of a date. A zero Sunrise or Sunset
// means the window couldn't be resolved.
type DayWindow struct {
	Date    Date      `json:"date"`
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// OK reports whether both bounds are known.
func (w DayWindow) OK() bool {
	return !w.Sunrise.IsZero() && !w.Sunset.IsZero()
}

// Contains reports whether t is within [Sunrise, Sunset]. It is always false
// for a window that isn't OK.
func (w DayWindow) Contains(t time.Time) bool {
	if !w.OK() {
		return false
	}
	return !t.Before(w.Sunrise) && !t.After(w.Sunset)
}

// In converts both bounds to loc.
func (w DayWindow) In(loc *time.Location) DayWindow {
	if !w.OK() {
		return w
	}
	return DayWindow{Date: w.Date, Sunrise: w.Sunrise.In(loc), Sunset: w.Sunset.In(loc)}
}

// Day holds the readings of one calendar date, ordered by time. Days are
// treated as values: operations on them return new Days.
type Day struct {
	Date     Date      `json:"date"`
	Readings []Reading `json:"readings"`
}

// SplitDays partitions time-ordered readings by calendar date in the
// readings' own location. The readings slice is not copied.
func SplitDays(readings []Reading) []Day {
	var days []Day
	for i := 0; i < len(readings); {
		date := DateOf(readings[i].Time)
		j := i + 1
		for j < len(readings) && DateOf(readings[j].Time) == date {
			j++
		}
		days = append(days, Day{Date: date, Readings: readings[i:j:j]})
		i = j
	}
	return days
}

// JoinDays concatenates the readings of days in order into a new slice.
func JoinDays(days []Day) []Reading {
	n := 0
	for _, d := range days {
		n += len(d.Readings)
	}
	out := make([]Reading, 0, n)
	for _, d := range days {
		out = append(out, d.Readings...)
	}
	return out
}

// SortDedupe returns a new slice ordered by instant where readings sharing an
// instant are collapsed to the one that appeared last in the input. It also
// returns how many readings were dropped.
func SortDedupe(readings []Reading) ([]Reading, int) {
	out := make([]Reading, len(readings))
	copy(out, readings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	kept := out[:0]
	for i, r := range out {
		if i+1 < len(out) && out[i+1].Time.Equal(r.Time) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(readings) - len(kept)
}
