package ports

import (
	"context"
	"io"

	"goodsam/domain/frame"
	"goodsam/domain/pattern"
)

// DatasetSource loads the reference dataset and its companion tables
type DatasetSource interface {
	// LoadDataset reads the main county table
	LoadDataset(ctx context.Context, name string) (*frame.Dataset, error)
	// LoadPatterns reads the pattern catalogue. Rows that cannot be parsed are
	// returned in failures keyed by row index rather than failing the load.
	LoadPatterns(ctx context.Context, name string) (patterns []pattern.Pattern, failures map[int]error, err error)
	// LoadGeomap reads the per-row FIPS codes aligned with the main table
	LoadGeomap(ctx context.Context, name string) ([]int, error)
	// LoadCounties reads the FIPS/county/state reference table
	LoadCounties(ctx context.Context, name string) ([]County, error)
	// ListFiles lists files in the data directory, optionally filtered by extension
	ListFiles(ext string) ([]string, error)
	// SaveFile stores an uploaded file under a sanitized name and returns that name
	SaveFile(name string, r io.Reader) (string, error)
}
