package excel

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"goodsam/domain/frame"
	"goodsam/domain/pattern"
	"goodsam/internal"
	"goodsam/ports"
)

// Column names of the companion tables
const (
	GeomapFIPSColumn  = "FIPS"
	CountyFIPSColumn  = "fips"
	CountyNameColumn  = "county_name"
	CountyStateColumn = "state_name"
)

// Source reads every table from one data directory
type Source struct {
	dir    string
	cfg    LoadConfig
	logger *internal.Logger
}

var _ ports.DatasetSource = (*Source)(nil)

// NewSource creates a source over dir
func NewSource(dir string, cfg LoadConfig, logger *internal.Logger) *Source {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Source{dir: dir, cfg: cfg, logger: logger}
}

// Dir returns the data directory
func (s *Source) Dir() string { return s.dir }

// path resolves a bare file name inside the data directory
func (s *Source) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *Source) table(ctx context.Context, name string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	return NewDataReader(p).ReadTable()
}

func (s *Source) LoadDataset(ctx context.Context, name string) (*frame.Dataset, error) {
	t, err := s.table(ctx, name)
	if err != nil {
		return nil, err
	}
	ds, err := ToDataset(t, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	s.logger.Info("[Source] loaded %s: %d rows, %d columns", name, ds.Rows(), ds.Width())
	return ds, nil
}

func (s *Source) LoadPatterns(ctx context.Context, name string) ([]pattern.Pattern, map[int]error, error) {
	var (
		patterns []pattern.Pattern
		failures map[int]error
		err      error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var p string
		if p, err = s.path(name); err != nil {
			return nil, nil, err
		}
		patterns, failures, err = ReadYAMLPatterns(p)
	default:
		var t *Table
		if t, err = s.table(ctx, name); err != nil {
			return nil, nil, err
		}
		patterns, failures, err = PatternsFromTable(t)
	}
	if err != nil {
		return nil, nil, err
	}
	for i, f := range failures {
		s.logger.Warn("[Source] %s row %d skipped: %v", name, i, f)
	}
	s.logger.Info("[Source] loaded %d patterns from %s", len(patterns), name)
	return patterns, failures, nil
}

func (s *Source) LoadGeomap(ctx context.Context, name string) ([]int, error) {
	t, err := s.table(ctx, name)
	if err != nil {
		return nil, err
	}
	return IntColumn(t, GeomapFIPSColumn)
}

func (s *Source) LoadCounties(ctx context.Context, name string) ([]ports.County, error) {
	t, err := s.table(ctx, name)
	if err != nil {
		return nil, err
	}
	codes, err := IntColumn(t, CountyFIPSColumn)
	if err != nil {
		return nil, err
	}
	names, ok := t.Column(CountyNameColumn)
	if !ok {
		return nil, fmt.Errorf("%s has no %q column", name, CountyNameColumn)
	}
	states, ok := t.Column(CountyStateColumn)
	if !ok {
		return nil, fmt.Errorf("%s has no %q column", name, CountyStateColumn)
	}
	out := make([]ports.County, len(codes))
	for i := range codes {
		out[i] = ports.County{FIPS: codes[i], County: names[i], State: states[i]}
	}
	return out, nil
}

// ListFiles lists regular files in the data directory. A non-empty ext
// (with or without the dot) keeps only matching names, case-insensitively.
func (s *Source) ListFiles(ext string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	suffix := ""
	if ext != "" {
		suffix = "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if suffix == "" || strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Source) SaveFile(name string, r io.Reader) (string, error) {
	clean := SecureFilename(name)
	if clean == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	p := filepath.Join(s.dir, clean)
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	s.logger.Info("[Source] saved upload %s", clean)
	return clean, nil
}

// SecureFilename reduces name to a safe base name: path components are
// dropped, spaces become underscores and anything outside [A-Za-z0-9._-] is
// removed, as are leading dots.
func SecureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "._")
}
