package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raterudder/solarprep/pkg/types"
)

const localMinuteColumn = "localminute"

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseTimestamp parses a source timestamp and returns its wall clock as a
// UTC time. Any offset in the text is ignored.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, mo, d := t.Date()
			h, mi, sec := t.Clock()
			return time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %q", s)
}

// parseValue coerces a cell to a number, returning NaN for anything that
// isn't one.
func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func readCSV(f File) ([]types.Reading, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Path, err)
	}
	defer fh.Close()

	readings, err := decodeCSV(fh, f.Channel.Column())
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}
	return readings, nil
}

func decodeCSV(r io.Reader, column string) ([]types.Reading, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", types.ErrMalformedRecord)
		}
		return nil, fmt.Errorf("%w: %w", types.ErrMalformedRecord, err)
	}

	timeIdx, valueIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case strings.EqualFold(name, localMinuteColumn):
			timeIdx = i
		case strings.EqualFold(name, column):
			valueIdx = i
		}
	}
	if valueIdx < 0 {
		return nil, fmt.Errorf("%w: missing %s column", types.ErrMalformedRecord, column)
	}
	if timeIdx < 0 {
		// pandas writes the index as an unnamed first column
		if valueIdx == 0 {
			return nil, fmt.Errorf("%w: missing %s column", types.ErrMalformedRecord, localMinuteColumn)
		}
		timeIdx = 0
	}

	var readings []types.Reading
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrMalformedRecord, err)
		}
		line, _ := cr.FieldPos(timeIdx)
		t, err := ParseTimestamp(record[timeIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", types.ErrMalformedRecord, line, err)
		}
		readings = append(readings, types.Reading{Time: t, Value: parseValue(record[valueIdx])})
	}
	return readings, nil
}

// WriteCSV writes readings of channel to path using the source layout.
// NaN values are written as empty cells.
func WriteCSV(path string, channel types.Channel, readings []types.Reading) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(fh)
	_ = w.Write([]string{localMinuteColumn, channel.Column()})
	for _, r := range readings {
		value := ""
		if !math.IsNaN(r.Value) {
			value = strconv.FormatFloat(r.Value, 'f', -1, 64)
		}
		_ = w.Write([]string{r.Time.Format(timestampLayouts[0]), value})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fh.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return fh.Close()
}
