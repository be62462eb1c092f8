package source

import (
	"math"

	"github.com/raterudder/solarprep/pkg/types"
)

// Clean applies the channel's value rules and returns a new slice:
// non-numeric values become 0, negative solar generation becomes 0 and
// main-meter readings at or above MainsUpperBoundKW become 0.
func Clean(channel types.Channel, readings []types.Reading) []types.Reading {
	out := make([]types.Reading, len(readings))
	for i, r := range readings {
		v := r.Value
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			v = 0
		case channel == types.ChannelSolar && v < 0:
			v = 0
		case channel == types.ChannelMains && v >= types.MainsUpperBoundKW:
			v = 0
		}
		out[i] = types.Reading{Time: r.Time, Value: v}
	}
	return out
}
