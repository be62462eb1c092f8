package types

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultSourceTimezone is the zone the raw exports were written in.
	DefaultSourceTimezone = "America/Chicago"

	// MainsUpperBoundKW is the main-meter reading at or above which a value
	// is considered implausible for a residence.
	MainsUpperBoundKW = 50.0

	// MinClusterCapacityKW excludes installations whose estimated capacity is
	// at or below this value from clustering.
	MinClusterCapacityKW = 1.0
)

// ReferenceCoordinate is the location used for sunrise/sunset lookups when an
// installation doesn't carry its own coordinate (Chicago, IL).
var ReferenceCoordinate = Coordinate{Latitude: 41.8781, Longitude: -87.6298}

// Channel identifies which meter a series was recorded from.
type Channel string

const (
	ChannelSolar Channel = "solar"
	ChannelMains Channel = "mains"
)

// ParseChannel converts a flag value into a Channel.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelSolar:
		return ChannelSolar, nil
	case ChannelMains:
		return ChannelMains, nil
	default:
		return "", fmt.Errorf("unknown channel: %q (available: solar, mains)", s)
	}
}

// Column returns the name of the value column in source and output files.
func (c Channel) Column() string {
	switch c {
	case ChannelMains:
		return "MAINS"
	default:
		return "SOLAR"
	}
}

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// Installation is a single metered residence.
type Installation struct {
	ID       string `json:"id"`
	Timezone string `json:"timezone"`

	// Coordinate is optional. When nil the reference coordinate is used for
	// sunrise/sunset lookups.
	Coordinate *Coordinate `json:"coordinate,omitempty"`
}

// Location loads the installation's IANA timezone.
func (i Installation) Location() (*time.Location, error) {
	if i.Timezone == "" {
		return nil, fmt.Errorf("installation %s has no timezone", i.ID)
	}
	loc, err := time.LoadLocation(i.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q for installation %s: %w", i.Timezone, i.ID, err)
	}
	return loc, nil
}

// CoordinateOr returns the installation's own coordinate or the fallback.
func (i Installation) CoordinateOr(fallback Coordinate) Coordinate {
	if i.Coordinate != nil {
		return *i.Coordinate
	}
	return fallback
}

// Capacity is the estimated nameplate capacity of an installation and the
// cluster it was assigned to.
type Capacity struct {
	InstallationID string  `json:"installationID"`
	Capacity       float64 `json:"capacity"`
	Cluster        int     `json:"cluster"`
	NumberOfFiles  int     `json:"numberOfFiles"`
}
