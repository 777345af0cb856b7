// Package analysis serves request-level operations over the loaded county
// dataset: catalogued pattern analysis, ad-hoc constraint analysis, k-fold
// evaluation, geomap filtering and data file management.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"sync"

	"goodsam/adapters/reference"
	"goodsam/domain/frame"
	"goodsam/internal"
	"goodsam/internal/effect"
	"goodsam/internal/errors"
	"goodsam/internal/evaluation"
	"goodsam/ports"
)

// Files names the four tables a snapshot is loaded from
type Files struct {
	Main     string `json:"mainFile"`
	Patterns string `json:"patternFile"`
	Geomap   string `json:"geomapFile"`
	Counties string `json:"fipsCountyFile"`
}

// Config tunes the service
type Config struct {
	Schema         frame.Schema
	DefaultLaw     string
	DefaultPattern int
	Folds          int
	Evaluation     evaluation.Options
	Effect         effect.Config
}

// DefaultConfig matches the county dataset and the dashboard defaults
func DefaultConfig() Config {
	return Config{
		Schema:         frame.DefaultSchema(),
		DefaultLaw:     "goodsam-cs_Prosecution",
		DefaultPattern: 29,
		Folds:          5,
		Evaluation:     evaluation.DefaultOptions(),
		Effect:         effect.DefaultConfig(),
	}
}

// Service answers analysis requests against an immutable snapshot of the
// loaded tables. Reload swaps the snapshot; requests in flight keep the one
// they started with.
type Service struct {
	source    ports.DatasetSource
	factory   ports.ModelFactory
	estimator *effect.Estimator
	cfg       Config
	logger    *internal.Logger

	mu    sync.RWMutex
	files Files
	snap  *snapshot
}

// NewService creates a service. Call Load before serving requests.
func NewService(source ports.DatasetSource, factory ports.ModelFactory, rng ports.RNGPort, cfg Config, logger *internal.Logger) *Service {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if cfg.Evaluation.Logger == nil {
		cfg.Evaluation.Logger = logger
	}
	return &Service{
		source:    source,
		factory:   factory,
		estimator: effect.NewEstimator(factory, rng, cfg.Effect, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// Load reads every table and replaces the current snapshot
func (s *Service) Load(ctx context.Context, files Files) error {
	snap, err := s.build(ctx, files)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.files, s.snap = files, snap
	s.mu.Unlock()
	s.logger.Info("[Analysis] loaded %s: %d rows, %d patterns (%d skipped)",
		files.Main, snap.dataset.Rows(), len(snap.order), len(snap.failures))
	return nil
}

// Reload swaps in a new main file and, when patternFile is non-empty, a new
// pattern catalogue. The geomap and county tables are kept.
func (s *Service) Reload(ctx context.Context, mainFile, patternFile string) (Files, error) {
	if mainFile == "" {
		return Files{}, errors.InvalidInput("Main file name is required")
	}
	s.mu.RLock()
	files := s.files
	s.mu.RUnlock()

	files.Main = mainFile
	if patternFile != "" {
		files.Patterns = patternFile
	}
	if err := s.Load(ctx, files); err != nil {
		return Files{}, err
	}
	return files, nil
}

// Files returns the names of the loaded tables
func (s *Service) Files() Files {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files
}

// DefaultPattern is the pattern analysed when a request names none
func (s *Service) DefaultPattern() int { return s.cfg.DefaultPattern }

func (s *Service) current() (*snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, errors.InternalError("no dataset loaded")
	}
	return s.snap, nil
}

// Columns returns every column name of the loaded dataset in order
func (s *Service) Columns() ([]string, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return snap.dataset.ColumnNames(), nil
}

// ColumnRanges returns the rounded observed range of every numeric column
func (s *Service) ColumnRanges() (ColumnRanges, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return append(ColumnRanges(nil), snap.ranges...), nil
}

// ListFiles lists data files, optionally filtered by extension
func (s *Service) ListFiles(ext string) ([]string, error) {
	files, err := s.source.ListFiles(ext)
	if err != nil {
		return nil, errors.Wrap(err, "listing data files")
	}
	return files, nil
}

// SaveFile stores an upload under a sanitized name
func (s *Service) SaveFile(name string, r io.Reader) (string, error) {
	if name == "" {
		return "", errors.InvalidInput("No file selected")
	}
	saved, err := s.source.SaveFile(name, r)
	if err != nil {
		return "", errors.Wrapf(err, "saving %s", name)
	}
	s.logger.Info("[Analysis] saved upload %s", saved)
	return saved, nil
}

// snapshot is one immutable load of the four tables
type snapshot struct {
	dataset  *frame.Dataset
	fips     []int
	counties ports.ReferenceTable
	ranges   ColumnRanges
	patterns map[int]*entry
	order    []int
	failures map[int]error
}

func (s *Service) build(ctx context.Context, files Files) (*snapshot, error) {
	ds, err := s.source.LoadDataset(ctx, files.Main)
	if err != nil {
		return nil, missing(err, "Main file %s not found in data directory", files.Main)
	}
	patterns, failures, err := s.source.LoadPatterns(ctx, files.Patterns)
	if err != nil {
		return nil, missing(err, "Pattern file %s not found in data directory", files.Patterns)
	}
	fips, err := s.source.LoadGeomap(ctx, files.Geomap)
	if err != nil {
		return nil, missing(err, "Geomap file %s not found in data directory", files.Geomap)
	}
	counties, err := s.source.LoadCounties(ctx, files.Counties)
	if err != nil {
		return nil, missing(err, "County file %s not found in data directory", files.Counties)
	}
	if len(fips) < ds.Rows() {
		return nil, errors.InvalidInput(fmt.Sprintf("geomap has %d FIPS codes for %d dataset rows", len(fips), ds.Rows()))
	}
	if _, err := s.cfg.Schema.Covariates(ds); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}

	snap := &snapshot{
		dataset:  ds,
		fips:     fips[:ds.Rows()],
		counties: reference.NewTable(counties),
		ranges:   columnRanges(ds),
		failures: make(map[int]error, len(failures)),
	}
	for i, f := range failures {
		snap.failures[i] = f
	}
	snap.catalogue(patterns, s.cfg.Schema.CovariateCount)
	for id, f := range snap.failures {
		s.logger.Debug("[Analysis] pattern %d unavailable: %v", id, f)
	}
	return snap, nil
}

// missing turns a not-found load error into a NOT_FOUND application error
func missing(err error, format string, name string) error {
	if stderrors.Is(err, fs.ErrNotExist) {
		return &errors.AppError{Code: errors.CodeNotFound, Message: fmt.Sprintf(format, name), Cause: err}
	}
	return errors.Wrapf(err, "loading %s", name)
}

// fipsAt maps dataset row positions to FIPS codes
func (s *snapshot) fipsAt(rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = s.fips[r]
	}
	return out
}

// ColumnRange is the rounded range of one column
type ColumnRange struct {
	Column string
	frame.Range
}

// ColumnRanges lists column ranges in dataset column order
type ColumnRanges []ColumnRange

// Get returns the range of a column
func (r ColumnRanges) Get(column string) (frame.Range, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Range, true
		}
	}
	return frame.Range{}, false
}

// MarshalJSON encodes {"col": {"min": x, "max": y}, ...} in column order
func (r ColumnRanges) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Column)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.Range)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func columnRanges(ds *frame.Dataset) ColumnRanges {
	var out ColumnRanges
	for _, name := range ds.ColumnNames() {
		r, ok := ds.Range(name)
		if !ok {
			continue
		}
		out = append(out, ColumnRange{Column: name, Range: frame.Range{Min: floor4(r.Min), Max: ceil4(r.Max)}})
	}
	return out
}

func floor4(v float64) float64 { return math.Floor(v*10000) / 10000 }

func ceil4(v float64) float64 { return math.Ceil(v*10000) / 10000 }
