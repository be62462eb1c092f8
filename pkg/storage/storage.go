package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarprep/pkg/types"
)

var (
	ErrSeriesNotFound   = errors.New("series not found")
	ErrCapacityNotFound = errors.New("capacity not found")
)

// Database defines the interface for persisting cleaned series and the
// capacity table.
type Database interface {
	// Series
	// UpsertSeries replaces the stored series of an installation's channel.
	UpsertSeries(ctx context.Context, installationID string, channel types.Channel, readings []types.Reading) error
	// GetSeries returns the stored series ordered by time or ErrSeriesNotFound.
	GetSeries(ctx context.Context, installationID string, channel types.Channel) ([]types.Reading, error)

	// Capacities
	// UpsertCapacities adds or replaces capacity rows keyed by installation.
	UpsertCapacities(ctx context.Context, capacities []types.Capacity) error
	// GetCapacity returns one installation's row or ErrCapacityNotFound.
	GetCapacity(ctx context.Context, installationID string) (types.Capacity, error)
	// GetCapacities returns all capacity rows ordered by installation.
	GetCapacities(ctx context.Context) ([]types.Capacity, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "csv", "Storage provider to use (available: csv, sqlite, firestore)")

	var p struct{ Database }

	cs := configuredCSV()
	sq := configuredSQLite()
	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "csv":
			if err := cs.Validate(); err != nil {
				panic(fmt.Sprintf("csv validation failed: %v", err))
			}
			p.Database = cs
		case "sqlite":
			if err := sq.Validate(); err != nil {
				panic(fmt.Sprintf("sqlite validation failed: %v", err))
			}
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
			p.Database = sq
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
