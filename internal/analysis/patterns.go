package analysis

import (
	"context"
	"fmt"
	"math"

	"goodsam/domain/core"
	"goodsam/domain/frame"
	"goodsam/domain/pattern"
	"goodsam/internal/effect"
	"goodsam/internal/errors"
)

// entry is a compiled catalogue pattern with its precomputed selections
type entry struct {
	pattern  pattern.Pattern
	compiled pattern.Compiled
	rows     []int
	fips     []int
	// bounds has infinite sides replaced by the column range
	bounds pattern.ConstraintSet
	// fullBounds spans each constrained column's whole range
	fullBounds pattern.ConstraintSet
}

func (s *snapshot) catalogue(patterns []pattern.Pattern, covariateCount int) {
	batch := pattern.CompileAll(patterns, s.dataset.ColumnNames(), covariateCount)
	s.patterns = make(map[int]*entry, len(batch.Compiled))
	for id, err := range batch.Failures {
		s.failures[id] = err
	}
	seen := make(map[int]bool, len(patterns))
	for _, p := range patterns {
		// the batch compiled the first pattern with each ID
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		compiled, ok := batch.Compiled[p.ID]
		if !ok {
			continue
		}
		_, rows, err := pattern.Apply(s.dataset, compiled.Predicates)
		if err != nil {
			s.failures[p.ID] = err
			continue
		}
		e := &entry{
			pattern:  p,
			compiled: compiled,
			rows:     rows,
			fips:     s.fipsAt(rows),
		}
		e.bounds, e.fullBounds = s.ranged(p.Constraints)
		s.patterns[p.ID] = e
		s.order = append(s.order, p.ID)
	}
}

// ranged rounds range bounds to four decimals, replacing infinite sides with
// the column range, and builds the whole-range variant. Membership bounds
// and columns without a numeric range are kept as they are.
func (s *snapshot) ranged(set pattern.ConstraintSet) (bounded, full pattern.ConstraintSet) {
	bounded, full = set.Clone(), set.Clone()
	for i, c := range set {
		r, ok := s.ranges.Get(c.Column)
		if !ok || !c.Bound.HasRange {
			continue
		}
		lb, ub := c.Bound.Lower, c.Bound.Upper
		if math.IsInf(ub, 1) {
			ub = r.Max
		}
		if math.IsInf(lb, -1) {
			lb = r.Min
		}
		bounded[i].Bound = pattern.Between(floor4(lb), ceil4(ub))
		full[i].Bound = pattern.Between(r.Min, r.Max)
	}
	return bounded, full
}

func (s *snapshot) lookup(id int) (*entry, error) {
	e, ok := s.patterns[id]
	if !ok {
		return nil, &errors.AppError{
			Code:    errors.CodePatternNotFound,
			Message: fmt.Sprintf("ID %d not found.", id),
			Cause:   core.ErrPatternNotFound,
		}
	}
	return e, nil
}

// PatternSummary describes one catalogue pattern
type PatternSummary struct {
	ID          int                   `json:"id"`
	Description string                `json:"description,omitempty"`
	Law         string                `json:"law"`
	Conditions  []string              `json:"conditions"`
	Rows        int                   `json:"rows"`
	Constraints pattern.ConstraintSet `json:"constraints"`
}

// Patterns lists the usable catalogue patterns in file order
func (s *Service) Patterns() ([]PatternSummary, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	out := make([]PatternSummary, 0, len(snap.order))
	for _, id := range snap.order {
		e := snap.patterns[id]
		out = append(out, PatternSummary{
			ID:          id,
			Description: e.pattern.Description,
			Law:         e.compiled.TreatmentColumn,
			Conditions:  e.compiled.Conditions(),
			Rows:        len(e.rows),
			Constraints: e.pattern.Constraints,
		})
	}
	return out, nil
}

// PatternFailures returns the catalogue rows that could not be used, by ID
func (s *Service) PatternFailures() (map[int]error, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	out := make(map[int]error, len(snap.failures))
	for id, f := range snap.failures {
		out[id] = f
	}
	return out, nil
}

// PatternBounds is the slider state of a catalogue pattern
type PatternBounds struct {
	ID                int                   `json:"ID"`
	Constraints       pattern.ConstraintSet `json:"constraints"`
	ConstraintsBounds pattern.ConstraintSet `json:"constraintsBounds"`
	CountiesIndices   []int                 `json:"countiesIndices"`
	Law               string                `json:"law"`
}

// PatternBounds returns the rounded bounds, whole-range bounds, selected
// FIPS codes and law of a catalogue pattern
func (s *Service) PatternBounds(id int) (*PatternBounds, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	e, err := snap.lookup(id)
	if err != nil {
		return nil, err
	}
	return &PatternBounds{
		ID:                id,
		Constraints:       e.bounds.Clone(),
		ConstraintsBounds: e.fullBounds.Clone(),
		CountiesIndices:   append([]int{}, e.fips...),
		Law:               e.compiled.TreatmentColumn,
	}, nil
}

// Result is one effect estimation over a filtered selection
type Result struct {
	Column     string
	Conditions []string
	Effect     *effect.EffectResult
}

// AnalyzePattern estimates the effect of a catalogue pattern's law on the
// rows its constraints select. A pattern without a law uses the default.
func (s *Service) AnalyzePattern(ctx context.Context, id int) (*Result, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	e, err := snap.lookup(id)
	if err != nil {
		return nil, err
	}
	law := e.compiled.TreatmentColumn
	if law == "" {
		law = s.cfg.DefaultLaw
		s.logger.Info("[Analysis] pattern %d has no law, using %s", id, law)
	}
	if len(e.rows) == 0 {
		return nil, fmt.Errorf("pattern %d: %w", id, core.ErrEmptyFilterResult)
	}
	subset, err := snap.dataset.Select(e.rows)
	if err != nil {
		return nil, errors.Wrapf(err, "selecting pattern %d", id)
	}

	s.logger.Info("[Analysis] pattern %d: %d rows, law %s", id, subset.Rows(), law)
	res, err := s.estimate(ctx, snap.dataset, subset, law, effect.Counts{Active: 1, Inactive: 1})
	if err != nil {
		return nil, err
	}
	return &Result{Column: law, Conditions: e.compiled.Conditions(), Effect: res}, nil
}

func (s *Service) estimate(ctx context.Context, full, subset *frame.Dataset, treatment string, counts effect.Counts) (*effect.EffectResult, error) {
	return s.estimator.Estimate(ctx, effect.Request{
		Subset:    subset,
		Full:      full,
		Schema:    s.cfg.Schema,
		Treatment: treatment,
		Counts:    counts,
	})
}
