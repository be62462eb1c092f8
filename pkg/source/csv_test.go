package source

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/solarprep/pkg/types"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2023, 6, 1, 12, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2023-06-01 12:30:00",
		"2023-06-01T12:30:00",
		"2023-06-01 12:30:00-05:00",
		"2023-06-01T12:30:00Z",
		"2023-06-01 12:30",
	} {
		t.Run(s, func(t *testing.T) {
			got, err := ParseTimestamp(s)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %v", got)
		})
	}

	_, err := ParseTimestamp("June 1st")
	assert.Error(t, err)
}

func TestDecodeCSV(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		in := "localminute,SOLAR,GRID\n" +
			"2023-06-01 12:00:00,1.5,0\n" +
			"2023-06-01 12:01:00,,0\n" +
			"2023-06-01 12:02:00,n/a,0\n"
		readings, err := decodeCSV(strings.NewReader(in), "SOLAR")
		require.NoError(t, err)
		require.Len(t, readings, 3)
		assert.Equal(t, 1.5, readings[0].Value)
		assert.True(t, math.IsNaN(readings[1].Value))
		assert.True(t, math.IsNaN(readings[2].Value))
		assert.Equal(t, time.UTC, readings[2].Time.Location())
		assert.Equal(t, 2, readings[2].Time.Minute())
	})

	t.Run("UnnamedIndex", func(t *testing.T) {
		in := ",MAINS\n2023-06-01 12:00:00,3.25\n"
		readings, err := decodeCSV(strings.NewReader(in), "MAINS")
		require.NoError(t, err)
		require.Len(t, readings, 1)
		assert.Equal(t, 3.25, readings[0].Value)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		_, err := decodeCSV(strings.NewReader("localminute,MAINS\n"), "SOLAR")
		assert.ErrorIs(t, err, types.ErrMalformedRecord)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := decodeCSV(strings.NewReader(""), "SOLAR")
		assert.ErrorIs(t, err, types.ErrMalformedRecord)
	})

	t.Run("BadTimestamp", func(t *testing.T) {
		in := "localminute,SOLAR\n2023-06-01 12:00:00,1\nnot a time,2\n"
		_, err := decodeCSV(strings.NewReader(in), "SOLAR")
		assert.ErrorIs(t, err, types.ErrMalformedRecord)
		assert.Contains(t, err.Error(), "line 3")
	})

	t.Run("WrongFieldCount", func(t *testing.T) {
		in := "localminute,SOLAR\n2023-06-01 12:00:00,1,2\n"
		_, err := decodeCSV(strings.NewReader(in), "SOLAR")
		assert.ErrorIs(t, err, types.ErrMalformedRecord)
	})
}

func TestFileReaderCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "1001")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "ex_SOLAR_20230601_20230630.csv")
	require.NoError(t, os.WriteFile(path, []byte("localminute,SOLAR\n2023-06-01 12:00:00,2\n"), 0o644))

	f, err := ParseFile(path)
	require.NoError(t, err)
	readings, err := FileReader{}.Read(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 2.0, readings[0].Value)

	f.Path = filepath.Join(dir, "missing.csv")
	_, err = FileReader{}.Read(context.Background(), f)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrMalformedRecord)
}

func TestFileReaderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FileReader{}.Read(ctx, File{Format: FormatCSV})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "1001")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "ex_20230601_20230630_IDD.csv")

	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, WriteCSV(path, types.ChannelMains, []types.Reading{
		{Time: start, Value: 0.75},
		{Time: start.Add(time.Minute), Value: math.NaN()},
	}))

	f, err := ParseFile(path)
	require.NoError(t, err)
	readings, err := FileReader{}.Read(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 0.75, readings[0].Value)
	assert.True(t, math.IsNaN(readings[1].Value))
	assert.True(t, start.Add(time.Minute).Equal(readings[1].Time))
}
