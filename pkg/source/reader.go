package source

import (
	"context"
	"fmt"

	"github.com/raterudder/solarprep/pkg/types"
)

// Reader loads the raw readings of a file. Times carry the recorded wall
// clock with a UTC location; values that couldn't be parsed are NaN.
type Reader interface {
	Read(ctx context.Context, f File) ([]types.Reading, error)
}

// FileReader reads parquet and CSV exports from the local filesystem.
type FileReader struct{}

// Read dispatches on the file's format.
func (FileReader) Read(ctx context.Context, f File) ([]types.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch f.Format {
	case FormatParquet:
		return readParquet(f)
	case FormatCSV:
		return readCSV(f)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q for %s", types.ErrMalformedRecord, f.Format, f.Path)
	}
}
