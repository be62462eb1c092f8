package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarprep/pkg/types"
)

var (
	idColumns       = []string{"installationid", "installation_id", "dataid", "id"}
	timezoneColumns = []string{"timezone", "tz"}
)

// LoadInstallations reads the installation timezone table. The first row is
// a header; the id and timezone columns are found by name and otherwise
// assumed to be the first two columns. Optional latitude and longitude
// columns give the installation its own coordinate.
func LoadInstallations(path string) ([]types.Installation, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening timezone table: %w", err)
	}
	defer fh.Close()

	installations, err := DecodeInstallations(fh)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return installations, nil
}

// DecodeInstallations reads a timezone table from r.
func DecodeInstallations(r io.Reader) ([]types.Installation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cols := columnIndex(header)
	idIdx := findColumn(cols, idColumns, 0)
	tzIdx := findColumn(cols, timezoneColumns, 1)
	latIdx := findColumn(cols, []string{"latitude", "lat"}, -1)
	lngIdx := findColumn(cols, []string{"longitude", "lng", "lon"}, -1)

	var installations []types.Installation
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if idIdx >= len(record) || tzIdx >= len(record) {
			return nil, fmt.Errorf("line %d: expected id and timezone", line)
		}

		inst := types.Installation{
			ID:       strings.TrimSpace(record[idIdx]),
			Timezone: strings.TrimSpace(record[tzIdx]),
		}
		if inst.ID == "" {
			continue
		}
		if _, err := time.LoadLocation(inst.Timezone); err != nil {
			return nil, fmt.Errorf("line %d: installation %s: %w", line, inst.ID, err)
		}

		if latIdx >= 0 && lngIdx >= 0 && latIdx < len(record) && lngIdx < len(record) {
			lat, lng := strings.TrimSpace(record[latIdx]), strings.TrimSpace(record[lngIdx])
			if lat != "" && lng != "" {
				var c types.Coordinate
				if c.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
					return nil, fmt.Errorf("line %d: invalid latitude: %w", line, err)
				}
				if c.Longitude, err = strconv.ParseFloat(lng, 64); err != nil {
					return nil, fmt.Errorf("line %d: invalid longitude: %w", line, err)
				}
				inst.Coordinate = &c
			}
		}
		installations = append(installations, inst)
	}
	return installations, nil
}

// LoadInstallationIDs reads a single-column list of installation ids with
// an "id" header.
func LoadInstallationIDs(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening installation list: %w", err)
	}
	defer fh.Close()

	cr := csv.NewReader(fh)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	idIdx := findColumn(columnIndex(header), idColumns, 0)

	var ids []string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if idIdx >= len(record) {
			continue
		}
		if id := strings.TrimSpace(record[idIdx]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// WriteInstallationIDs writes ids in the format LoadInstallationIDs reads.
func WriteInstallationIDs(path string, ids []string) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating installation list: %w", err)
	}

	w := csv.NewWriter(fh)
	_ = w.Write([]string{"id"})
	for _, id := range ids {
		_ = w.Write([]string{id})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fh.Close()
		return fmt.Errorf("writing installation list: %w", err)
	}
	return fh.Close()
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, ok := cols[name]; !ok {
			cols[name] = i
		}
	}
	return cols
}

func findColumn(cols map[string]int, names []string, fallback int) int {
	for _, name := range names {
		if i, ok := cols[name]; ok {
			return i
		}
	}
	return fallback
}

// InstallationSet resolves which installations a binary works on: every
// row of the timezone table, optionally narrowed to an installation list.
type InstallationSet struct {
	timezonesFile     string
	installationsFile string
}

// ConfiguredInstallations sets up flags for the InstallationSet and returns
// the instance.
func ConfiguredInstallations() *InstallationSet {
	timezonesFile := lflag.String("timezones-file", "data/timezones.csv", "CSV table of installation ids and their IANA timezones")
	installationsFile := lflag.String("installations-file", "", "Optional CSV list of installation ids to restrict processing to")

	s := &InstallationSet{}
	lflag.Do(func() {
		s.timezonesFile = *timezonesFile
		s.installationsFile = *installationsFile
	})
	return s
}

// NewInstallationSet returns an InstallationSet that doesn't depend on flags.
func NewInstallationSet(timezonesFile, installationsFile string) *InstallationSet {
	return &InstallationSet{timezonesFile: timezonesFile, installationsFile: installationsFile}
}

// TimezonesFile returns the path of the timezone table.
func (s *InstallationSet) TimezonesFile() string {
	return s.timezonesFile
}

// InstallationsFile returns the path of the installation list, if any.
func (s *InstallationSet) InstallationsFile() string {
	return s.installationsFile
}

// Load returns the installations to process. With an installation list the
// list's order is kept and ids missing from the timezone table are returned
// with an empty timezone so callers can report them.
func (s *InstallationSet) Load() ([]types.Installation, error) {
	all, err := LoadInstallations(s.timezonesFile)
	if err != nil {
		return nil, err
	}
	if s.installationsFile == "" {
		return all, nil
	}

	ids, err := LoadInstallationIDs(s.installationsFile)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]types.Installation, len(all))
	for _, inst := range all {
		byID[inst.ID] = inst
	}
	out := make([]types.Installation, 0, len(ids))
	for _, id := range ids {
		inst, ok := byID[id]
		if !ok {
			inst = types.Installation{ID: id}
		}
		out = append(out, inst)
	}
	return out, nil
}

// WriteInstallations writes a timezone table that LoadInstallations reads.
func WriteInstallations(path string, installations []types.Installation) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating timezone table: %w", err)
	}

	w := csv.NewWriter(fh)
	_ = w.Write([]string{"installationId", "timezone", "latitude", "longitude"})
	for _, inst := range installations {
		lat, lng := "", ""
		if inst.Coordinate != nil {
			lat = strconv.FormatFloat(inst.Coordinate.Latitude, 'f', -1, 64)
			lng = strconv.FormatFloat(inst.Coordinate.Longitude, 'f', -1, 64)
		}
		_ = w.Write([]string{inst.ID, inst.Timezone, lat, lng})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fh.Close()
		return fmt.Errorf("writing timezone table: %w", err)
	}
	return fh.Close()
}
