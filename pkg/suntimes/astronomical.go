package suntimes

import (
	"context"
	"fmt"
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/raterudder/solarprep/pkg/types"
)

// Astronomical computes sunrise and sunset locally instead of asking a
// remote service.
type Astronomical struct{}

// SunriseSunset implements Resolver.
func (Astronomical) SunriseSunset(ctx context.Context, date types.Date, loc *time.Location, coord types.Coordinate) (types.DayWindow, error) {
	rise, set := sunrise.SunriseSunset(coord.Latitude, coord.Longitude, date.Year, date.Month, date.Day)
	// the sun never rises or never sets at high latitudes
	if rise.IsZero() || set.IsZero() {
		return types.DayWindow{Date: date}, fmt.Errorf("%w: no sunrise/sunset on %s at %s", types.ErrServiceUnavailable, date, coord)
	}
	w := types.DayWindow{Date: date, Sunrise: rise, Sunset: set}
	return w.In(loc), nil
}
