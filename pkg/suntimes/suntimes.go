package suntimes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarprep/pkg/types"
)

// Resolver looks up the daylight window of a date.
type Resolver interface {
	// SunriseSunset returns sunrise and sunset of date at coord, both
	// converted to loc. Any failure wraps types.ErrServiceUnavailable and
	// callers should leave the day uncorrected.
	SunriseSunset(ctx context.Context, date types.Date, loc *time.Location, coord types.Coordinate) (types.DayWindow, error)
}

// Configured sets up the Resolver based on flags.
func Configured() Resolver {
	provider := lflag.String("daylight-provider", "sunrise-sunset-api", "Sunrise/sunset provider to use (available: sunrise-sunset-api, astronomical)")

	var p struct{ Resolver }

	api := configuredAPI()

	lflag.Do(func() {
		switch *provider {
		case "sunrise-sunset-api":
			if err := api.Validate(); err != nil {
				panic(fmt.Sprintf("sunrise-sunset-api validation failed: %v", err))
			}
			p.Resolver = NewCache(api)
		case "astronomical":
			p.Resolver = NewCache(Astronomical{})
		default:
			panic(fmt.Sprintf("unknown daylight provider: %s", *provider))
		}
	})

	return &p
}

type cacheKey struct {
	date  types.Date
	coord types.Coordinate
}

// Cache remembers successful lookups. Windows are stored in UTC and
// converted to the requested location on every hit, so installations in
// different zones can share entries.
type Cache struct {
	next Resolver

	mu      sync.Mutex
	windows map[cacheKey]types.DayWindow
}

// NewCache wraps next with an in-memory cache.
func NewCache(next Resolver) *Cache {
	return &Cache{
		next:    next,
		windows: make(map[cacheKey]types.DayWindow),
	}
}

// SunriseSunset implements Resolver.
func (c *Cache) SunriseSunset(ctx context.Context, date types.Date, loc *time.Location, coord types.Coordinate) (types.DayWindow, error) {
	key := cacheKey{date: date, coord: coord}

	c.mu.Lock()
	w, ok := c.windows[key]
	c.mu.Unlock()
	if ok {
		return w.In(loc), nil
	}

	w, err := c.next.SunriseSunset(ctx, date, loc, coord)
	if err != nil {
		// failures aren't cached so a later run of the same date can succeed
		return w, err
	}

	c.mu.Lock()
	c.windows[key] = w.In(time.UTC)
	c.mu.Unlock()

	return w.In(loc), nil
}

// Len returns the number of cached windows.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}
