package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	c, err := ParseChannel("Solar")
	require.NoError(t, err)
	assert.Equal(t, ChannelSolar, c)
	assert.Equal(t, "SOLAR", c.Column())

	c, err = ParseChannel(" mains ")
	require.NoError(t, err)
	assert.Equal(t, ChannelMains, c)
	assert.Equal(t, "MAINS", c.Column())

	_, err = ParseChannel("battery")
	assert.ErrorContains(t, err, "unknown channel")
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("20230815")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2023, Month: time.August, Day: 15}, d)
	assert.Equal(t, "2023-08-15", d.String())
	assert.Equal(t, "20230815", d.Compact())

	d, err = ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 29}, d)

	_, err = ParseDate("2024-13-01")
	assert.Error(t, err)
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	w := DayWindow{
		Date:    Date{Year: 2023, Month: time.June, Day: 1},
		Sunrise: time.Date(2023, 6, 1, 5, 30, 0, 0, loc),
		Sunset:  time.Date(2023, 6, 1, 20, 15, 0, 0, loc),
	}
	require.True(t, w.OK())
	assert.True(t, w.Contains(w.Sunrise), "sunrise is inclusive")
	assert.True(t, w.Contains(w.Sunset), "sunset is inclusive")
	assert.False(t, w.Contains(w.Sunrise.Add(-time.Minute)))
	assert.False(t, w.Contains(w.Sunset.Add(time.Minute)))

	utc := w.In(time.UTC)
	assert.True(t, utc.Sunrise.Equal(w.Sunrise))
	assert.Equal(t, time.UTC, utc.Sunrise.Location())

	empty := DayWindow{Date: w.Date, Sunrise: w.Sunrise}
	assert.False(t, empty.OK())
	assert.False(t, empty.Contains(w.Sunrise))
}

func TestSplitJoinDays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start := time.Date(2023, 3, 1, 22, 0, 0, 0, loc)
	var readings []Reading
	for i := 0; i < 6; i++ {
		readings = append(readings, Reading{Time: start.Add(time.Duration(i) * time.Hour), Value: float64(i)})
	}

	days := SplitDays(readings)
	require.Len(t, days, 2)
	assert.Equal(t, Date{Year: 2023, Month: time.March, Day: 1}, days[0].Date)
	assert.Len(t, days[0].Readings, 2)
	assert.Equal(t, Date{Year: 2023, Month: time.March, Day: 2}, days[1].Date)
	assert.Len(t, days[1].Readings, 4)

	assert.Equal(t, readings, JoinDays(days))
	assert.Empty(t, SplitDays(nil))
}

func TestSortDedupe(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	readings := []Reading{
		{Time: base.Add(2 * time.Minute), Value: 2},
		{Time: base, Value: 0},
		{Time: base.Add(time.Minute), Value: 1},
		{Time: base.Add(2 * time.Minute), Value: 20},
		{Time: base, Value: 10},
	}

	out, dropped := SortDedupe(readings)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, []Reading{
		{Time: base, Value: 10},
		{Time: base.Add(time.Minute), Value: 1},
		{Time: base.Add(2 * time.Minute), Value: 20},
	}, out)

	// input is untouched
	assert.Equal(t, 2.0, readings[0].Value)
}

func TestInstallation(t *testing.T) {
	inst := Installation{ID: "installation1", Timezone: "America/Denver"}
	loc, err := inst.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Denver", loc.String())
	assert.Equal(t, ReferenceCoordinate, inst.CoordinateOr(ReferenceCoordinate))

	inst.Coordinate = &Coordinate{Latitude: 39.7, Longitude: -105}
	assert.Equal(t, 39.7, inst.CoordinateOr(ReferenceCoordinate).Latitude)

	_, err = Installation{ID: "x", Timezone: "Not/AZone"}.Location()
	assert.Error(t, err)
	_, err = Installation{ID: "x"}.Location()
	assert.ErrorContains(t, err, "no timezone")
}
