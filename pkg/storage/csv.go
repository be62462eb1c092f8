package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarprep/pkg/types"
)

// SeriesTimeLayout is how timestamps are written to series files. The
// offset keeps instants unambiguous across DST transitions.
const SeriesTimeLayout = "2006-01-02 15:04:05-07:00"

const capacitiesFile = "capacities.csv"

// CSVProvider implements the Database interface with one CSV file per
// installation and channel under an output directory.
type CSVProvider struct {
	dir string

	// guards capacities.csv which is shared by every installation
	mu sync.Mutex
}

func configuredCSV() *CSVProvider {
	dir := lflag.String("output-dir", "data/processed", "Directory the csv storage provider writes to")

	c := &CSVProvider{}
	lflag.Do(func() {
		c.dir = *dir
	})
	return c
}

// NewCSVProvider returns a CSVProvider rooted at dir.
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

// Validate checks if the provider is properly configured.
func (c *CSVProvider) Validate() error {
	if c.dir == "" {
		return fmt.Errorf("output-dir is required")
	}
	return nil
}

// Close is a no-op.
func (c *CSVProvider) Close() error {
	return nil
}

func (c *CSVProvider) seriesPath(installationID string, channel types.Channel) (string, error) {
	if installationID == "" {
		return "", fmt.Errorf("installationID cannot be empty")
	}
	return filepath.Join(c.dir, string(channel), installationID+".csv"), nil
}

// UpsertSeries writes the series to {dir}/{channel}/{installation}.csv,
// replacing any previous file atomically.
func (c *CSVProvider) UpsertSeries(ctx context.Context, installationID string, channel types.Channel, readings []types.Reading) error {
	path, err := c.seriesPath(installationID, channel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create series directory: %w", err)
	}

	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"localminute", channel.Column()}); err != nil {
			return err
		}
		for _, r := range readings {
			if err := cw.Write([]string{
				r.Time.Format(SeriesTimeLayout),
				strconv.FormatFloat(r.Value, 'f', -1, 64),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// GetSeries reads a series written by UpsertSeries.
func (c *CSVProvider) GetSeries(ctx context.Context, installationID string, channel types.Channel) ([]types.Reading, error) {
	path, err := c.seriesPath(installationID, channel)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s %s", ErrSeriesNotFound, channel, installationID)
		}
		return nil, fmt.Errorf("failed to open series: %w", err)
	}
	defer fh.Close()

	cr := csv.NewReader(fh)
	cr.FieldsPerRecord = 2
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("failed to read series header: %w", err)
	}

	var readings []types.Reading
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read series %s: %w", path, err)
		}
		t, err := time.Parse(SeriesTimeLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse series time in %s: %w", path, err)
		}
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse series value in %s: %w", path, err)
		}
		readings = append(readings, types.Reading{Time: t, Value: v})
	}
	return readings, nil
}

// UpsertCapacities merges capacities into {dir}/capacities.csv.
func (c *CSVProvider) UpsertCapacities(ctx context.Context, capacities []types.Capacity) error {
	if len(capacities) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.readCapacities()
	if err != nil {
		return err
	}
	byID := make(map[string]types.Capacity, len(existing)+len(capacities))
	for _, row := range existing {
		byID[row.InstallationID] = row
	}
	for _, row := range capacities {
		if row.InstallationID == "" {
			return fmt.Errorf("capacity missing installationID")
		}
		byID[row.InstallationID] = row
	}
	merged := make([]types.Capacity, 0, len(byID))
	for _, row := range byID {
		merged = append(merged, row)
	}
	sortCapacities(merged)

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	df := CapacityFrame(merged)
	return writeAtomic(filepath.Join(c.dir, capacitiesFile), func(w io.Writer) error {
		return df.WriteCSV(w)
	})
}

// GetCapacities reads {dir}/capacities.csv.
func (c *CSVProvider) GetCapacities(ctx context.Context) ([]types.Capacity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readCapacities()
}

// GetCapacity looks up one installation in {dir}/capacities.csv.
func (c *CSVProvider) GetCapacity(ctx context.Context, installationID string) (types.Capacity, error) {
	capacities, err := c.GetCapacities(ctx)
	if err != nil {
		return types.Capacity{}, err
	}
	for _, row := range capacities {
		if row.InstallationID == installationID {
			return row, nil
		}
	}
	return types.Capacity{}, ErrCapacityNotFound
}

func (c *CSVProvider) readCapacities() ([]types.Capacity, error) {
	fh, err := os.Open(filepath.Join(c.dir, capacitiesFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open capacities: %w", err)
	}
	defer fh.Close()
	return ReadCapacityFrame(fh)
}

var capacityTypes = map[string]series.Type{
	"installation_id": series.String,
	"capacity":        series.Float,
	"cluster":         series.Int,
	"number_of_files": series.Int,
}

// CapacityFrame builds the capacities table as a dataframe with the columns
// installation_id, capacity, cluster and number_of_files.
func CapacityFrame(capacities []types.Capacity) dataframe.DataFrame {
	ids := make([]string, len(capacities))
	values := make([]float64, len(capacities))
	clusters := make([]int, len(capacities))
	files := make([]int, len(capacities))
	for i, c := range capacities {
		ids[i] = c.InstallationID
		values[i] = c.Capacity
		clusters[i] = c.Cluster
		files[i] = c.NumberOfFiles
	}
	return dataframe.New(
		series.New(ids, series.String, "installation_id"),
		series.New(values, series.Float, "capacity"),
		series.New(clusters, series.Int, "cluster"),
		series.New(files, series.Int, "number_of_files"),
	)
}

// ReadCapacityFrame parses a capacities table written from CapacityFrame.
func ReadCapacityFrame(r io.Reader) ([]types.Capacity, error) {
	df := dataframe.ReadCSV(r, dataframe.WithTypes(capacityTypes))
	if df.Err != nil {
		return nil, fmt.Errorf("failed to read capacities: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return nil, nil
	}

	ids := df.Col("installation_id").Records()
	values := df.Col("capacity").Float()
	clusters, err := df.Col("cluster").Int()
	if err != nil {
		return nil, fmt.Errorf("failed to read capacity clusters: %w", err)
	}
	files, err := df.Col("number_of_files").Int()
	if err != nil {
		return nil, fmt.Errorf("failed to read capacity file counts: %w", err)
	}

	capacities := make([]types.Capacity, len(ids))
	for i := range ids {
		capacities[i] = types.Capacity{
			InstallationID: ids[i],
			Capacity:       values[i],
			Cluster:        clusters[i],
			NumberOfFiles:  files[i],
		}
	}
	return capacities, nil
}

func sortCapacities(capacities []types.Capacity) {
	sort.Slice(capacities, func(i, j int) bool {
		return capacities[i].InstallationID < capacities[j].InstallationID
	})
}

// writeAtomic writes to a temporary file next to path and renames it into
// place so readers never see a partial file.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}
