package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/solarprep/pkg/log"
	"github.com/raterudder/solarprep/pkg/types"
)

// Format is the encoding of a source file.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

var formats = []Format{FormatParquet, FormatCSV}

var (
	// {prefix}_SOLAR_{start}_{stop}.{ext}
	solarFileRE = regexp.MustCompile(`^(.*)_SOLAR_(\d{8})_(\d{8})\.(parquet|csv)$`)
	// {prefix}_{start}_{stop}_IDD{suffix}.{ext}
	mainsFileRE = regexp.MustCompile(`^(.*)_(\d{8})_(\d{8})_IDD[^.]*\.(parquet|csv)$`)
)

// File is a single export of one channel for one installation covering
// [Start, Stop].
type File struct {
	Path           string
	InstallationID string
	Channel        types.Channel
	Start          types.Date
	Stop           types.Date
	Format         Format
}

// Period returns the date-range token shared by the solar and main-meter
// files of the same export.
func (f File) Period() string {
	return f.Start.Compact() + "_" + f.Stop.Compact()
}

// ParseFile extracts the channel and date range from a file's name. The
// installation is the name of the directory containing the file.
func ParseFile(path string) (File, error) {
	base := filepath.Base(path)
	f := File{
		Path:           path,
		InstallationID: filepath.Base(filepath.Dir(path)),
	}

	var m []string
	if m = solarFileRE.FindStringSubmatch(base); m != nil {
		f.Channel = types.ChannelSolar
	} else if m = mainsFileRE.FindStringSubmatch(base); m != nil {
		f.Channel = types.ChannelMains
	} else {
		return File{}, fmt.Errorf("file name %q doesn't match a known channel", base)
	}

	var err error
	if f.Start, err = types.ParseDate(m[2]); err != nil {
		return File{}, fmt.Errorf("parsing start of %q: %w", base, err)
	}
	if f.Stop, err = types.ParseDate(m[3]); err != nil {
		return File{}, fmt.Errorf("parsing stop of %q: %w", base, err)
	}
	f.Format = Format(m[4])
	return f, nil
}

// Finder locates source files under a data directory laid out as
// {data-dir}/{installation}/{file}.
type Finder struct {
	dataDir string
	years   []int
}

// Configured sets up flags for the Finder and returns the instance.
func Configured() *Finder {
	f := &Finder{}
	dataDir := lflag.String("data-dir", "data/1min", "Directory containing one sub-directory of source files per installation")
	years := lflag.String("years", "2023,2024", "Comma-delimited list of study years")

	lflag.Do(func() {
		f.dataDir = *dataDir
		ys, err := ParseYears(*years)
		if err != nil {
			panic(fmt.Sprintf("invalid years: %v", err))
		}
		f.years = ys
	})

	return f
}

// NewFinder returns a Finder that doesn't depend on flags.
func NewFinder(dataDir string, years []int) *Finder {
	return &Finder{dataDir: dataDir, years: years}
}

// ParseYears parses a comma-delimited list of years.
func ParseYears(s string) ([]int, error) {
	var years []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil || y < 1900 || y > 9999 {
			return nil, fmt.Errorf("invalid year: %q", part)
		}
		years = append(years, y)
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("at least one year is required")
	}
	return years, nil
}

// DataDir returns the root directory that is searched.
func (f *Finder) DataDir() string {
	return f.dataDir
}

// Years returns the study years.
func (f *Finder) Years() []int {
	return f.years
}

// Files returns the files of channel for an installation. An installation
// without files returns an empty slice and no error.
func (f *Finder) Files(ctx context.Context, installationID string, channel types.Channel) ([]File, error) {
	switch channel {
	case types.ChannelSolar:
		return f.SolarFiles(ctx, installationID)
	case types.ChannelMains:
		return f.MainsFiles(ctx, installationID)
	default:
		return nil, fmt.Errorf("unknown channel: %s", channel)
	}
}

// SolarFiles returns the solar files whose range starts in one of the study
// years, ordered by year and then name.
func (f *Finder) SolarFiles(ctx context.Context, installationID string) ([]File, error) {
	var files []File
	for _, year := range f.years {
		var matches []string
		for _, format := range formats {
			pattern := filepath.Join(f.dataDir, installationID, fmt.Sprintf("*_SOLAR_%d*.%s", year, format))
			m, err := filepath.Glob(pattern)
			if err != nil {
				return nil, fmt.Errorf("globbing %s: %w", pattern, err)
			}
			matches = append(matches, m...)
		}
		sort.Strings(matches)
		for _, path := range matches {
			file, err := ParseFile(path)
			if err != nil {
				log.Ctx(ctx).Debug("skipping unrecognized file", slog.String("path", path), slog.Any("error", err))
				continue
			}
			files = append(files, file)
		}
	}
	return files, nil
}

// MainsFiles returns the main-meter files that cover the same periods as the
// installation's solar files.
func (f *Finder) MainsFiles(ctx context.Context, installationID string) ([]File, error) {
	solar, err := f.SolarFiles(ctx, installationID)
	if err != nil {
		return nil, err
	}

	var files []File
	seen := make(map[string]bool)
	for _, s := range solar {
		m, err := f.MainsFileFor(s)
		if err != nil {
			return nil, err
		}
		for _, file := range m {
			if seen[file.Path] {
				continue
			}
			seen[file.Path] = true
			files = append(files, file)
		}
	}
	return files, nil
}

// MainsFileFor returns the main-meter files sharing solar's period.
func (f *Finder) MainsFileFor(solar File) ([]File, error) {
	var matches []string
	for _, format := range formats {
		pattern := filepath.Join(filepath.Dir(solar.Path), fmt.Sprintf("*_%s_IDD*.%s", solar.Period(), format))
		m, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("globbing %s: %w", pattern, err)
		}
		matches = append(matches, m...)
	}
	sort.Strings(matches)

	var files []File
	for _, path := range matches {
		file, err := ParseFile(path)
		if err != nil || file.Channel != types.ChannelMains {
			continue
		}
		files = append(files, file)
	}
	return files, nil
}

// FindInstallationsWithSolar returns the installations among ids that have
// at least one solar file in the study years, in the order given.
func (f *Finder) FindInstallationsWithSolar(ctx context.Context, ids []string) ([]string, error) {
	var found []string
	for _, id := range ids {
		if _, err := os.Stat(filepath.Join(f.dataDir, id)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("checking installation %s: %w", id, err)
		}
		files, err := f.SolarFiles(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			found = append(found, id)
		}
	}
	return found, nil
}
