package source

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/solarprep/pkg/types"
)

func TestParquetRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "1001")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	in := []types.Reading{
		{Time: start, Value: 1.25},
		{Time: start.Add(time.Minute), Value: math.NaN()},
		{Time: start.Add(2 * time.Minute), Value: -0.5},
	}

	for _, tc := range []struct {
		name    string
		channel types.Channel
	}{
		{"ex_SOLAR_20230601_20230630.parquet", types.ChannelSolar},
		{"ex_20230601_20230630_IDD.parquet", types.ChannelMains},
	} {
		t.Run(string(tc.channel), func(t *testing.T) {
			path := filepath.Join(dir, tc.name)
			require.NoError(t, WriteParquet(path, tc.channel, in))

			f, err := ParseFile(path)
			require.NoError(t, err)
			assert.Equal(t, tc.channel, f.Channel)

			out, err := FileReader{}.Read(context.Background(), f)
			require.NoError(t, err)
			require.Len(t, out, len(in))
			for i := range in {
				assert.True(t, in[i].Time.Equal(out[i].Time), "reading %d: %v", i, out[i].Time)
				assert.Equal(t, time.UTC, out[i].Time.Location())
			}
			assert.Equal(t, 1.25, out[0].Value)
			assert.True(t, math.IsNaN(out[1].Value))
			assert.Equal(t, -0.5, out[2].Value)
		})
	}
}

func TestParquetCorrupt(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "1001")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "ex_SOLAR_20230601_20230630.parquet")
	require.NoError(t, os.WriteFile(path, []byte("not parquet"), 0o644))

	f, err := ParseFile(path)
	require.NoError(t, err)
	_, err = FileReader{}.Read(context.Background(), f)
	assert.ErrorIs(t, err, types.ErrMalformedRecord)
}
