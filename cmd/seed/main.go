package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/source"
	"github.com/raterudder/solarprep/pkg/types"
)

// seedInstallation describes one synthetic residence.
type seedInstallation struct {
	id         string
	timezone   string
	coordinate *types.Coordinate
	peakKW     float64
}

var seedInstallations = []seedInstallation{
	{id: "1001", timezone: "America/Chicago", peakKW: 6.8},
	{id: "1002", timezone: "America/Chicago", peakKW: 3.2},
	{id: "1003", timezone: "America/Denver", coordinate: &types.Coordinate{Latitude: 39.7392, Longitude: -104.9903}, peakKW: 11.5},
	// too small to cluster
	{id: "1004", timezone: "America/New_York", peakKW: 0.7},
}

// months exported per installation and year; March covers the spring-forward
// transition and November the fall-back one
var seedMonths = []time.Month{time.March, time.July, time.August, time.November}

func main() {
	finder := source.Configured()
	installations := source.ConfiguredInstallations()
	format := lflag.String("seed-format", "csv", "Format of the generated files (available: csv, parquet)")
	seed := lflag.String("seed", "1", "Random seed for the generated readings")
	lflag.Configure()
	log.ConfigureFromFlags()

	ctx := context.Background()

	var write func(path string, channel types.Channel, readings []types.Reading) error
	switch *format {
	case "csv":
		write = source.WriteCSV
	case "parquet":
		write = source.WriteParquet
	default:
		log.Ctx(ctx).ErrorContext(ctx, "unknown seed format", "format", *format)
		os.Exit(1)
	}
	n, err := strconv.ParseInt(*seed, 10, 64)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid seed", "error", err)
		os.Exit(1)
	}
	rng := rand.New(rand.NewSource(n))

	year := finder.Years()[0]

	log.Ctx(ctx).InfoContext(ctx, "seeding synthetic dataset", slog.String("dataDir", finder.DataDir()), slog.Int("year", year))

	var table []types.Installation
	for _, si := range seedInstallations {
		dir := filepath.Join(finder.DataDir(), si.id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to create installation directory", "error", err)
			os.Exit(1)
		}

		loc, err := time.LoadLocation(si.timezone)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "invalid timezone", "error", err)
			os.Exit(1)
		}

		for _, month := range seedMonths {
			start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
			stop := start.AddDate(0, 1, -1)
			period := start.Format("20060102") + "_" + stop.Format("20060102")

			solar, mains := generateMonth(rng, si, start, loc)

			solarPath := filepath.Join(dir, fmt.Sprintf("seed_SOLAR_%s.%s", period, *format))
			if err := write(solarPath, types.ChannelSolar, solar); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to write solar file", "error", err)
				os.Exit(1)
			}
			mainsPath := filepath.Join(dir, fmt.Sprintf("seed_%s_IDD.%s", period, *format))
			if err := write(mainsPath, types.ChannelMains, mains); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to write mains file", "error", err)
				os.Exit(1)
			}
			fmt.Printf("Seeded %s %s (%d readings)\n", si.id, period, len(solar))
		}

		table = append(table, types.Installation{ID: si.id, Timezone: si.timezone, Coordinate: si.coordinate})
	}

	if err := source.WriteInstallations(installations.TimezonesFile(), table); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write timezone table", "error", err)
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded synthetic dataset successfully", slog.String("timezones", installations.TimezonesFile()))
}

// generateMonth returns one-minute solar and mains readings with the wall
// clocks of the source zone. The solar curve follows the sun in the
// installation's own zone and carries the defects the pipeline repairs:
// night-time noise, dropouts inside the day, negative values and gaps.
func generateMonth(rng *rand.Rand, si seedInstallation, start time.Time, loc *time.Location) (solar, mains []types.Reading) {
	src, _ := time.LoadLocation(types.DefaultSourceTimezone)
	end := start.AddDate(0, 1, 0)

	for wall := start; wall.Before(end); wall = wall.Add(time.Minute) {
		// the export's wall clock is Chicago time; the sun follows the
		// installation's zone
		instant := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), 0, 0, src)
		local := instant.In(loc)
		hour := float64(local.Hour()) + float64(local.Minute())/60

		s := 0.0
		if hour > 6 && hour < 20 {
			dist := hour - 13
			s = si.peakKW * math.Exp(-(dist*dist)/8) * (0.85 + rng.Float64()*0.15)
		}
		switch r := rng.Float64(); {
		case r < 0.002:
			s = math.NaN()
		case r < 0.004:
			s = -0.05
		case r < 0.010 && s > 0:
			// inverter dropout
			s = 0
		case r < 0.012 && s == 0:
			// sensor noise at night
			s = 0.03
		}

		m := 0.4 + rng.Float64()*1.2
		if hour >= 17 && hour < 22 {
			m += 3
		}
		if rng.Float64() < 0.001 {
			m = 80
		}

		solar = append(solar, types.Reading{Time: wall, Value: s})
		mains = append(mains, types.Reading{Time: wall, Value: m})
	}
	return solar, mains
}
