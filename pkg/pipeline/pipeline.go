package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/solarprep/pkg/daylight"
	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/source"
	"github.com/raterudder/solarprep/pkg/storage"
	"github.com/raterudder/solarprep/pkg/suntimes"
	"github.com/raterudder/solarprep/pkg/timezone"
	"github.com/raterudder/solarprep/pkg/types"
)

// ErrExcluded is returned for main-meter installations on the exclusion
// list.
var ErrExcluded = errors.New("installation excluded")

// Config holds the settings shared by every installation of a run.
type Config struct {
	Channel types.Channel

	// SourceLocation is the zone the raw wall clocks were recorded in.
	SourceLocation *time.Location

	// ReferenceCoordinate is used for installations without their own.
	ReferenceCoordinate types.Coordinate

	// Exclude lists main-meter installations to skip. When nil, installations
	// whose stored capacity is at or below types.MinClusterCapacityKW are
	// skipped instead.
	Exclude map[string]bool
}

// Finder lists the source files of an installation's channel.
type Finder interface {
	Files(ctx context.Context, installationID string, channel types.Channel) ([]source.File, error)
}

// Result describes what happened to one installation.
type Result struct {
	InstallationID string
	Files          int
	SkippedFiles   int
	Readings       int
	Days           int
	Uncorrected    int
	Duplicates     int
	Timezone       timezone.Report
	Daylight       daylight.Stats
}

// Pipeline cleans the series of one installation at a time.
type Pipeline struct {
	cfg      Config
	finder   Finder
	reader   source.Reader
	resolver suntimes.Resolver
	db       storage.Database
}

// Configured sets up flags for the Pipeline and returns the instance.
func Configured(finder Finder, reader source.Reader, resolver suntimes.Resolver, db storage.Database) *Pipeline {
	channel := lflag.String("channel", string(types.ChannelSolar), "Channel to process (available: solar, mains)")
	sourceTZ := lflag.String("source-timezone", types.DefaultSourceTimezone, "IANA timezone the raw timestamps were recorded in")
	excludeFile := lflag.String("exclude-file", "", "CSV list of installation ids to skip when processing mains; defaults to stored capacities")
	coord := types.ReferenceCoordinate
	lflag.JSON(&coord, "reference-coordinate", coord, "JSON latitude/longitude used for sunrise/sunset when an installation has none")

	p := &Pipeline{finder: finder, reader: reader, resolver: resolver, db: db}
	lflag.Do(func() {
		ch, err := types.ParseChannel(*channel)
		if err != nil {
			panic(err.Error())
		}
		loc, err := time.LoadLocation(*sourceTZ)
		if err != nil {
			panic(fmt.Sprintf("invalid source-timezone: %v", err))
		}
		p.cfg = Config{
			Channel:             ch,
			SourceLocation:      loc,
			ReferenceCoordinate: coord,
		}
		if *excludeFile != "" {
			ids, err := source.LoadInstallationIDs(*excludeFile)
			if err != nil {
				panic(fmt.Sprintf("invalid exclude-file: %v", err))
			}
			p.cfg.Exclude = make(map[string]bool, len(ids))
			for _, id := range ids {
				p.cfg.Exclude[id] = true
			}
		}
	})
	return p
}

// New returns a Pipeline that doesn't depend on flags.
func New(cfg Config, finder Finder, reader source.Reader, resolver suntimes.Resolver, db storage.Database) *Pipeline {
	if cfg.SourceLocation == nil {
		cfg.SourceLocation = time.UTC
	}
	return &Pipeline{cfg: cfg, finder: finder, reader: reader, resolver: resolver, db: db}
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run processes every file of the installation and stores the cleaned
// series. Unreadable files are skipped and days whose daylight window can't
// be resolved are stored uncorrected. It returns an error wrapping
// types.ErrMissingFile when the installation has no usable files.
func (p *Pipeline) Run(ctx context.Context, inst types.Installation) (Result, error) {
	ctx = log.WithAttrs(ctx, slog.String("installationID", inst.ID), slog.String("channel", string(p.cfg.Channel)))
	res := Result{InstallationID: inst.ID}

	if p.cfg.Channel == types.ChannelMains {
		excluded, err := p.excluded(ctx, inst.ID)
		if err != nil {
			return res, err
		}
		if excluded {
			return res, fmt.Errorf("%w: %s", ErrExcluded, inst.ID)
		}
	}

	loc, err := inst.Location()
	if err != nil {
		return res, err
	}
	coord := inst.CoordinateOr(p.cfg.ReferenceCoordinate)

	files, err := p.finder.Files(ctx, inst.ID, p.cfg.Channel)
	if err != nil {
		return res, fmt.Errorf("finding files: %w", err)
	}
	if len(files) == 0 {
		return res, fmt.Errorf("%w: no %s files for %s", types.ErrMissingFile, p.cfg.Channel, inst.ID)
	}
	res.Files = len(files)

	var combined []types.Reading
	for _, f := range files {
		fctx := log.WithAttrs(ctx, slog.String("path", f.Path))
		readings, err := p.processFile(fctx, f, loc, coord, &res)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			log.Ctx(fctx).WarnContext(fctx, "skipping file", slog.Any("error", err))
			res.SkippedFiles++
			continue
		}
		combined = append(combined, readings...)
	}
	if res.SkippedFiles == len(files) {
		return res, fmt.Errorf("%w: no readable %s files for %s", types.ErrMissingFile, p.cfg.Channel, inst.ID)
	}

	// overlapping exports repeat instants; the later file wins
	combined, res.Duplicates = types.SortDedupe(combined)
	res.Readings = len(combined)

	if err := p.db.UpsertSeries(ctx, inst.ID, p.cfg.Channel, combined); err != nil {
		return res, fmt.Errorf("storing series: %w", err)
	}

	log.Ctx(ctx).InfoContext(ctx, "processed installation",
		slog.Int("files", res.Files),
		slog.Int("skippedFiles", res.SkippedFiles),
		slog.Int("readings", res.Readings),
		slog.Int("days", res.Days),
		slog.Int("uncorrectedDays", res.Uncorrected),
		slog.Int("zeroed", res.Daylight.Zeroed),
		slog.Int("interpolated", res.Daylight.Interpolated),
	)
	return res, nil
}

func (p *Pipeline) excluded(ctx context.Context, installationID string) (bool, error) {
	if p.cfg.Exclude != nil {
		return p.cfg.Exclude[installationID], nil
	}
	c, err := p.db.GetCapacity(ctx, installationID)
	if errors.Is(err, storage.ErrCapacityNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up capacity: %w", err)
	}
	return c.Capacity <= types.MinClusterCapacityKW, nil
}

func (p *Pipeline) processFile(ctx context.Context, f source.File, loc *time.Location, coord types.Coordinate, res *Result) ([]types.Reading, error) {
	raw, err := p.reader.Read(ctx, f)
	if err != nil {
		return nil, err
	}
	cleaned := source.Clean(p.cfg.Channel, raw)

	if errs := timezone.Check(cleaned, p.cfg.SourceLocation); len(errs) > 0 {
		log.Ctx(ctx).DebugContext(ctx, "repairing wall clocks", slog.Int("count", len(errs)), slog.Any("first", errs[0]))
	}
	normalized, report := timezone.Normalize(cleaned, p.cfg.SourceLocation, loc)
	res.Timezone = res.Timezone.Add(report)
	if report.Repaired() > 0 || report.Duplicates > 0 {
		log.Ctx(ctx).DebugContext(ctx, "normalized timestamps",
			slog.Int("duplicates", report.Duplicates),
			slog.Int("ambiguous", report.Ambiguous),
			slog.Int("nonExistent", report.NonExistent),
		)
	}

	if p.cfg.Channel != types.ChannelSolar {
		return normalized, nil
	}

	days := types.SplitDays(normalized)
	corrected := make([]types.Day, len(days))
	for i, day := range days {
		res.Days++
		window, err := p.resolver.SunriseSunset(ctx, day.Date, loc, coord)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Ctx(ctx).WarnContext(ctx, "leaving day uncorrected", slog.String("date", day.Date.String()), slog.Any("error", err))
			res.Uncorrected++
			corrected[i] = day
			continue
		}
		var stats daylight.Stats
		corrected[i], stats = daylight.CorrectDayStats(day, window)
		res.Daylight = res.Daylight.Add(stats)
	}
	return types.JoinDays(corrected), nil
}
