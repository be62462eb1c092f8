package timezone

import (
	"errors"
	"testing"
	"time"

	"github.com/raterudder/solarprep/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func naive(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLocalize(t *testing.T) {
	chicago := mustLoad(t, "America/Chicago")

	t.Run("Unique", func(t *testing.T) {
		inst, res := Localize(naive("2023-06-01 12:00:00"), chicago)
		assert.Equal(t, Unique, res)
		assert.True(t, inst.Equal(time.Date(2023, 6, 1, 17, 0, 0, 0, time.UTC)))
	})

	t.Run("SpringForwardGap", func(t *testing.T) {
		// 02:00-02:59 doesn't exist on 2023-03-12 in Chicago
		inst, res := Localize(naive("2023-03-12 02:30:00"), chicago)
		assert.Equal(t, NonExistent, res)
		// read with the standard offset (-06:00) so it lands after the gap
		assert.True(t, inst.Equal(time.Date(2023, 3, 12, 8, 30, 0, 0, time.UTC)))
		assert.Equal(t, 3, inst.Hour())
	})

	t.Run("FallBackOverlap", func(t *testing.T) {
		// 01:00-01:59 happens twice on 2023-11-05 in Chicago
		inst, res := Localize(naive("2023-11-05 01:30:00"), chicago)
		assert.Equal(t, Ambiguous, res)
		// first occurrence is still daylight time (-05:00)
		assert.True(t, inst.Equal(time.Date(2023, 11, 5, 6, 30, 0, 0, time.UTC)))
		_, offset := inst.Zone()
		assert.Equal(t, -5*3600, offset)
	})

	t.Run("AroundTransitions", func(t *testing.T) {
		_, res := Localize(naive("2023-03-12 01:59:00"), chicago)
		assert.Equal(t, Unique, res)
		_, res = Localize(naive("2023-03-12 03:00:00"), chicago)
		assert.Equal(t, Unique, res)
		_, res = Localize(naive("2023-11-05 00:59:00"), chicago)
		assert.Equal(t, Unique, res)
		_, res = Localize(naive("2023-11-05 02:00:00"), chicago)
		assert.Equal(t, Unique, res)
	})

	t.Run("IgnoresInputLocation", func(t *testing.T) {
		in := time.Date(2023, 6, 1, 12, 0, 0, 0, mustLoad(t, "Asia/Tokyo"))
		inst, res := Localize(in, chicago)
		assert.Equal(t, Unique, res)
		assert.Equal(t, 12, inst.Hour())
	})
}

func TestNormalize(t *testing.T) {
	chicago := mustLoad(t, "America/Chicago")
	denver := mustLoad(t, "America/Denver")

	t.Run("SortsDedupesAndConverts", func(t *testing.T) {
		in := []types.Reading{
			{Time: naive("2023-06-01 12:02:00"), Value: 3},
			{Time: naive("2023-06-01 12:00:00"), Value: 1},
			{Time: naive("2023-06-01 12:01:00"), Value: 2},
			{Time: naive("2023-06-01 12:00:00"), Value: 10},
		}
		out, report := Normalize(in, chicago, denver)
		require.Len(t, out, 3)
		assert.Equal(t, 1, report.Duplicates)
		assert.Zero(t, report.Repaired())

		assert.Equal(t, 10.0, out[0].Value, "last value wins on collisions")
		assert.Equal(t, 2.0, out[1].Value)
		assert.Equal(t, 3.0, out[2].Value)
		assert.Equal(t, denver, out[0].Time.Location())
		assert.Equal(t, 11, out[0].Time.Hour(), "Denver is an hour behind Chicago")

		// input untouched
		assert.Equal(t, 3.0, in[0].Value)
	})

	t.Run("RepairsFallBack", func(t *testing.T) {
		in := []types.Reading{
			{Time: naive("2023-11-05 00:59:00"), Value: 1},
			{Time: naive("2023-11-05 01:00:00"), Value: 2},
			{Time: naive("2023-11-05 01:59:00"), Value: 3},
			{Time: naive("2023-11-05 02:00:00"), Value: 4},
		}
		out, report := Normalize(in, chicago, chicago)
		require.Len(t, out, 4)
		assert.Equal(t, 2, report.Ambiguous)
		assert.Zero(t, report.NonExistent)
		assert.Zero(t, report.Duplicates)

		for i := 1; i < len(out); i++ {
			assert.True(t, out[i].Time.After(out[i-1].Time), "output must be strictly increasing")
		}
		assert.Equal(t, []float64{1, 2, 3, 4}, values(out))
	})

	t.Run("RepairsSpringForward", func(t *testing.T) {
		in := []types.Reading{
			{Time: naive("2023-03-12 01:59:00"), Value: 1},
			{Time: naive("2023-03-12 02:15:00"), Value: 2},
			{Time: naive("2023-03-12 03:30:00"), Value: 3},
		}
		out, report := Normalize(in, chicago, chicago)
		assert.Equal(t, 1, report.NonExistent)
		require.Len(t, out, 3)
		assert.Equal(t, 3, out[1].Time.Hour())
		assert.Equal(t, 15, out[1].Time.Minute())
		assert.Equal(t, []float64{1, 2, 3}, values(out))
	})

	t.Run("RepairCollisionKeepsLast", func(t *testing.T) {
		// 02:30 is pushed to 03:30 which already has a reading
		in := []types.Reading{
			{Time: naive("2023-03-12 02:30:00"), Value: 1},
			{Time: naive("2023-03-12 03:30:00"), Value: 2},
		}
		out, report := Normalize(in, chicago, chicago)
		require.Len(t, out, 1)
		assert.Equal(t, 1, report.Duplicates)
		assert.Equal(t, 2.0, out[0].Value)
	})

	t.Run("NoDuplicateInstants", func(t *testing.T) {
		var in []types.Reading
		start := naive("2023-11-04 22:00:00")
		for i := 0; i < 8*60; i++ {
			in = append(in, types.Reading{Time: start.Add(time.Duration(i) * time.Minute), Value: float64(i)})
		}
		out, report := Normalize(in, chicago, mustLoad(t, "America/Los_Angeles"))
		assert.Equal(t, 60, report.Ambiguous)
		seen := make(map[int64]bool, len(out))
		for _, r := range out {
			require.False(t, seen[r.Time.UnixNano()], "duplicate instant %s", r.Time)
			seen[r.Time.UnixNano()] = true
		}
		assert.Len(t, out, len(in))
	})

	t.Run("Empty", func(t *testing.T) {
		out, report := Normalize(nil, chicago, denver)
		assert.Empty(t, out)
		assert.Equal(t, Report{}, report)
	})
}

func TestCheck(t *testing.T) {
	chicago := mustLoad(t, "America/Chicago")
	errs := Check([]types.Reading{
		{Time: naive("2023-03-12 02:30:00")},
		{Time: naive("2023-06-01 12:00:00")},
		{Time: naive("2023-11-05 01:30:00")},
	}, chicago)
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.True(t, errors.Is(err, types.ErrAmbiguousTimestamp))
	}
	assert.ErrorContains(t, errs[0], "nonexistent")
	assert.ErrorContains(t, errs[1], "ambiguous")
}

func values(readings []types.Reading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.Value
	}
	return out
}

func TestReportAdd(t *testing.T) {
	r := Report{Duplicates: 1, Ambiguous: 2}.Add(Report{Duplicates: 3, NonExistent: 4})
	assert.Equal(t, Report{Duplicates: 4, Ambiguous: 2, NonExistent: 4}, r)
	assert.Equal(t, 6, r.Repaired())
}
