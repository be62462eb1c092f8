package capacity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/source"
	"github.com/raterudder/solarprep/pkg/storage"
	"github.com/raterudder/solarprep/pkg/types"
)

// Source selects where the readings for an estimate come from.
type Source string

const (
	// SourceRaw reads one raw export per installation.
	SourceRaw Source = "raw"
	// SourceCleaned reads the installation's cleaned series from storage.
	SourceCleaned Source = "cleaned"
)

// ParseSource converts a flag value into a Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceRaw, SourceCleaned:
		return Source(s), nil
	default:
		return "", fmt.Errorf("unknown capacity source: %q (available: raw, cleaned)", s)
	}
}

// Finder lists an installation's solar files.
type Finder interface {
	SolarFiles(ctx context.Context, installationID string) ([]source.File, error)
}

// Estimator estimates and clusters the capacities of installations.
type Estimator struct {
	finder   Finder
	reader   source.Reader
	db       storage.Database
	source   Source
	clusters int
}

// Configured sets up flags for the Estimator and returns the instance.
func Configured(finder Finder, reader source.Reader, db storage.Database) *Estimator {
	src := lflag.String("capacity-source", string(SourceRaw), "Readings used to estimate capacity (available: raw, cleaned)")
	clusters := lflag.String("capacity-clusters", strconv.Itoa(DefaultClusters), "Number of capacity clusters")

	e := &Estimator{finder: finder, reader: reader, db: db}
	lflag.Do(func() {
		s, err := ParseSource(*src)
		if err != nil {
			panic(err.Error())
		}
		e.source = s
		k, err := strconv.Atoi(*clusters)
		if err != nil || k < 1 {
			panic(fmt.Sprintf("invalid capacity-clusters: %q", *clusters))
		}
		e.clusters = k
	})
	return e
}

// New returns an Estimator that doesn't depend on flags.
func New(finder Finder, reader source.Reader, db storage.Database, src Source, clusters int) *Estimator {
	return &Estimator{finder: finder, reader: reader, db: db, source: src, clusters: clusters}
}

// EstimateInstallation returns the installation's capacity and its number
// of solar files. The cluster is left Unclustered.
func (e *Estimator) EstimateInstallation(ctx context.Context, installationID string) (types.Capacity, error) {
	files, err := e.finder.SolarFiles(ctx, installationID)
	if err != nil {
		return types.Capacity{}, err
	}
	c := types.Capacity{
		InstallationID: installationID,
		Cluster:        Unclustered,
		NumberOfFiles:  len(files),
	}

	var readings []types.Reading
	switch e.source {
	case SourceCleaned:
		readings, err = e.db.GetSeries(ctx, installationID, types.ChannelSolar)
		if err != nil {
			return types.Capacity{}, err
		}
	default:
		f, ok := SelectFile(files)
		if !ok {
			return types.Capacity{}, fmt.Errorf("%w: no solar files for %s", types.ErrMissingFile, installationID)
		}
		log.Ctx(ctx).DebugContext(ctx, "estimating capacity from raw file", slog.String("path", f.Path))
		raw, err := e.reader.Read(ctx, f)
		if err != nil {
			return types.Capacity{}, err
		}
		readings = source.Clean(types.ChannelSolar, raw)
	}

	c.Capacity = Estimate(readings)
	return c, nil
}

// Result is the outcome of Run.
type Result struct {
	Capacities []types.Capacity
	Summary    Summary
}

// Excluded returns the installations left out of clustering.
func (r Result) Excluded() []string {
	return r.Summary.Excluded
}

// Run estimates every installation, clusters the results and stores the
// capacity table. Installations whose readings can't be found or read are
// logged and skipped; only a canceled context or a storage write failure ends
// the run early.
func (e *Estimator) Run(ctx context.Context, installationIDs []string) (Result, error) {
	var capacities []types.Capacity
	for _, id := range installationIDs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		ictx := log.WithAttrs(ctx, slog.String("installationID", id))
		c, err := e.EstimateInstallation(ictx, id)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			log.Ctx(ictx).WarnContext(ictx, "skipping capacity estimate", slog.Any("error", err))
			continue
		}
		log.Ctx(ictx).DebugContext(ictx, "estimated capacity", slog.Float64("capacity", c.Capacity), slog.Int("files", c.NumberOfFiles))
		capacities = append(capacities, c)
	}

	clustered, centroids := Cluster(capacities, e.clusters)
	if err := e.db.UpsertCapacities(ctx, clustered); err != nil {
		return Result{}, fmt.Errorf("storing capacities: %w", err)
	}

	summary := Summarize(clustered, centroids)
	summary.GeneratedAt = time.Now().UTC()
	summary.Source = e.source
	log.Ctx(ctx).InfoContext(ctx, "clustered capacities",
		slog.Int("estimated", summary.Estimated),
		slog.Int("excluded", len(summary.Excluded)),
		slog.Any("centroids", centroids),
	)
	return Result{Capacities: clustered, Summary: summary}, nil
}
