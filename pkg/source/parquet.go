package source

import (
	"fmt"
	"math"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/raterudder/solarprep/pkg/types"
)

type solarRow struct {
	LocalMinute time.Time `parquet:"localminute,timestamp"`
	Solar       *float64  `parquet:"SOLAR,optional"`
}

type mainsRow struct {
	LocalMinute time.Time `parquet:"localminute,timestamp"`
	Mains       *float64  `parquet:"MAINS,optional"`
}

func readParquet(f File) ([]types.Reading, error) {
	switch f.Channel {
	case types.ChannelSolar:
		rows, err := parquet.ReadFile[solarRow](f.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", types.ErrMalformedRecord, f.Path, err)
		}
		readings := make([]types.Reading, len(rows))
		for i, row := range rows {
			readings[i] = parquetReading(row.LocalMinute, row.Solar)
		}
		return readings, nil
	case types.ChannelMains:
		rows, err := parquet.ReadFile[mainsRow](f.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", types.ErrMalformedRecord, f.Path, err)
		}
		readings := make([]types.Reading, len(rows))
		for i, row := range rows {
			readings[i] = parquetReading(row.LocalMinute, row.Mains)
		}
		return readings, nil
	default:
		return nil, fmt.Errorf("unknown channel: %s", f.Channel)
	}
}

// parquet timestamps are stored without a zone so the UTC clock is the
// recorded wall clock
func parquetReading(t time.Time, v *float64) types.Reading {
	r := types.Reading{Time: t.UTC(), Value: math.NaN()}
	if v != nil {
		r.Value = *v
	}
	return r
}

// WriteParquet writes readings of channel to path using the source layout.
// It is used to build fixtures and synthetic datasets.
func WriteParquet(path string, channel types.Channel, readings []types.Reading) error {
	switch channel {
	case types.ChannelSolar:
		rows := make([]solarRow, len(readings))
		for i, r := range readings {
			rows[i] = solarRow{LocalMinute: r.Time, Solar: optionalValue(r.Value)}
		}
		return parquet.WriteFile(path, rows)
	case types.ChannelMains:
		rows := make([]mainsRow, len(readings))
		for i, r := range readings {
			rows[i] = mainsRow{LocalMinute: r.Time, Mains: optionalValue(r.Value)}
		}
		return parquet.WriteFile(path, rows)
	default:
		return fmt.Errorf("unknown channel: %s", channel)
	}
}

func optionalValue(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
