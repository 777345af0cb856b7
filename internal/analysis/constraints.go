package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"goodsam/domain/core"
	"goodsam/domain/frame"
	"goodsam/domain/pattern"
	"goodsam/internal/effect"
	"goodsam/internal/errors"
	"goodsam/internal/evaluation"
	"goodsam/internal/folds"
)

// BinarySuffix names the indicator column derived from a law column
const BinarySuffix = "_binary_temp"

// DummyLaw is the all-zero column used when the dataset has no treatment columns
const DummyLaw = "dummy_law"

// Request is an ad-hoc analyst selection. ActiveRange and InactiveRange are
// inclusive [min, max] intervals over the law column; when both are omitted
// the law is taken as already binary.
type Request struct {
	Constraints   pattern.ConstraintSet `json:"constraints"`
	Law           string                `json:"law"`
	ActiveRange   []float64             `json:"activeRange" validate:"omitempty,len=2"`
	InactiveRange []float64             `json:"inactiveRange" validate:"omitempty,len=2"`
}

var validate = validator.New()

func (r Request) validate() error {
	if err := validate.Struct(r); err != nil {
		return &errors.AppError{Code: errors.CodeValidationError, Message: "activeRange and inactiveRange take two values", Cause: err}
	}
	for _, rng := range [][]float64{r.ActiveRange, r.InactiveRange} {
		if len(rng) == 2 && rng[0] > rng[1] {
			return errors.ValidationError(fmt.Sprintf("range [%g, %g] is inverted", rng[0], rng[1]))
		}
	}
	return nil
}

func (r Request) ranges() (active, inactive []float64) {
	if r.ActiveRange == nil && r.InactiveRange == nil {
		return []float64{1, 1}, []float64{0, 0}
	}
	return r.ActiveRange, r.InactiveRange
}

// Selection lists the FIPS codes of a filtered selection
type Selection struct {
	Counties []int `json:"countiesIndices"`
	Active   []int `json:"activeCountiesIndices"`
	Inactive []int `json:"inactiveCountiesIndices"`
}

// ConstraintResult is the outcome of an ad-hoc analysis
type ConstraintResult struct {
	Selection
	Result      Result
	CountyNames []string
	StateNames  []string
}

// filtered is a range-filtered view with its law indicator
type filtered struct {
	subset     *frame.Dataset
	rows       []int
	indicator  string
	flags      []float64
	conditions []string
}

// filter keeps the rows within the request's lb/ub constraints and appends
// the law indicator: 1 inside the active range, 0 inside the inactive range
// (which wins on overlap) and NaN elsewhere.
func (s *Service) filter(snap *snapshot, req Request, law string) (*filtered, error) {
	preds := pattern.RangePredicates(req.Constraints)
	subset, rows, err := pattern.Apply(snap.dataset, preds)
	if err != nil {
		return nil, err
	}
	if law == DummyLaw && !subset.HasColumn(DummyLaw) {
		if subset, err = subset.WithColumn(frame.NumericColumn(DummyLaw, make([]float64, subset.Rows()))); err != nil {
			return nil, errors.Wrap(err, "adding dummy law column")
		}
	}
	values, ok := subset.Numbers(law)
	if !ok {
		if !subset.HasColumn(law) {
			return nil, core.NewUnknownColumnError(-1, law)
		}
		return nil, fmt.Errorf("law %q: %w", law, core.ErrNonNumericColumn)
	}

	active, inactive := req.ranges()
	flags := make([]float64, len(values))
	for i, v := range values {
		flags[i] = math.NaN()
		if within(v, active) {
			flags[i] = 1
		}
		if within(v, inactive) {
			flags[i] = 0
		}
	}
	indicator := law + BinarySuffix
	if subset, err = subset.WithColumn(frame.NumericColumn(indicator, flags)); err != nil {
		return nil, errors.Wrap(err, "adding law indicator")
	}
	return &filtered{
		subset:     subset,
		rows:       rows,
		indicator:  indicator,
		flags:      flags,
		conditions: pattern.Describe(preds),
	}, nil
}

func within(v float64, r []float64) bool {
	return len(r) == 2 && !math.IsNaN(v) && v >= r[0] && v <= r[1]
}

// labelled drops rows outside both ranges. It returns the kept view and the
// positions of the kept rows in the reference dataset.
func (f *filtered) labelled() (*frame.Dataset, []int, error) {
	var keep, rows []int
	for i, flag := range f.flags {
		if !math.IsNaN(flag) {
			keep = append(keep, i)
			rows = append(rows, f.rows[i])
		}
	}
	if len(keep) == 0 {
		return nil, nil, fmt.Errorf("no rows in the active or inactive range: %w", core.ErrEmptyFilterResult)
	}
	ds, err := f.subset.Select(keep)
	if err != nil {
		return nil, nil, err
	}
	return ds, rows, nil
}

func (s *Service) prepare(ctx context.Context, req Request) (*snapshot, *filtered, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := req.validate(); err != nil {
		return nil, nil, err
	}
	snap, err := s.current()
	if err != nil {
		return nil, nil, err
	}
	law := req.Law
	if law == "" {
		law = s.cfg.DefaultLaw
		s.logger.Info("[Analysis] no law given, using %s", law)
	}
	f, err := s.filter(snap, req, law)
	if err != nil {
		return nil, nil, err
	}
	if f.subset.Rows() == 0 {
		return nil, nil, &errors.AppError{
			Code:    errors.CodeEmptyFilterResult,
			Message: "No data available for the selected constraints.",
			Cause:   core.ErrEmptyFilterResult,
		}
	}
	return snap, f, nil
}

// AnalyzeConstraints filters by the request's range constraints, binarises
// the law column and estimates its effect on the labelled rows
func (s *Service) AnalyzeConstraints(ctx context.Context, req Request) (*ConstraintResult, error) {
	snap, f, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	subset, rows, err := f.labelled()
	if err != nil {
		return nil, err
	}

	out := &ConstraintResult{Selection: Selection{Counties: snap.fipsAt(rows), Active: []int{}, Inactive: []int{}}}
	flags, _ := subset.Numbers(f.indicator)
	for i, code := range out.Counties {
		if flags[i] == 1 {
			out.Active = append(out.Active, code)
		} else {
			out.Inactive = append(out.Inactive, code)
		}
	}
	counties := snap.counties.Lookup(out.Counties)
	out.CountyNames = make([]string, len(counties))
	out.StateNames = make([]string, len(counties))
	for i, c := range counties {
		out.CountyNames[i] = c.County
		out.StateNames[i] = c.State
	}

	s.logger.Info("[Analysis] constraints: %d rows, %d active, %d inactive", subset.Rows(), len(out.Active), len(out.Inactive))
	res, err := s.estimate(ctx, snap.dataset, subset, f.indicator, effect.Counts{Active: len(out.Active), Inactive: len(out.Inactive)})
	if err != nil {
		return nil, err
	}
	out.Result = Result{Column: f.indicator, Conditions: f.conditions, Effect: res}
	return out, nil
}

// CrossValidate scores the response-surface model on the labelled rows of a
// request with k-fold cross-validation
func (s *Service) CrossValidate(ctx context.Context, req Request) (*evaluation.Result, error) {
	_, f, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	subset, _, err := f.labelled()
	if err != nil {
		return nil, err
	}
	fs, err := folds.Partition(subset.Rows(), s.cfg.Folds)
	if err != nil {
		return nil, err
	}
	s.logger.Info("[Analysis] cross-validating %d rows over %d folds", subset.Rows(), len(fs))
	res, err := evaluation.CrossValidate(ctx, subset, s.cfg.Schema, f.indicator, fs, s.factory, s.cfg.Evaluation)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GeomapFilter returns the FIPS codes a request selects without fitting a
// model. An empty selection is not an error. Without a law the first
// treatment column is used, or an all-zero column when there is none.
func (s *Service) GeomapFilter(ctx context.Context, req Request) (*Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	law := req.Law
	if law == "" {
		law = DummyLaw
		if candidates := s.cfg.Schema.TreatmentColumns(snap.dataset); len(candidates) > 0 {
			law = candidates[0]
		}
		s.logger.Debug("[Analysis] geomap without law, using %s", law)
	}

	f, err := s.filter(snap, req, law)
	if err != nil {
		return nil, err
	}
	out := &Selection{Counties: snap.fipsAt(f.rows), Active: []int{}, Inactive: []int{}}
	for i, flag := range f.flags {
		switch flag {
		case 1:
			out.Active = append(out.Active, out.Counties[i])
		case 0:
			out.Inactive = append(out.Inactive, out.Counties[i])
		}
	}
	return out, nil
}
