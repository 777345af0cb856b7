package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Pattern errors
	ErrMalformedPattern = errors.New("malformed pattern")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrPatternNotFound  = errors.New("pattern not found")
	ErrDuplicatePattern = errors.New("duplicate pattern ID")

	// Data preparation errors
	ErrEmptySplit        = errors.New("empty train/test partition")
	ErrEmptyFilterResult = errors.New("constraints eliminated all rows")
	ErrNonNumericColumn  = errors.New("column is not numeric")
	ErrInvalidFoldCount  = errors.New("invalid fold count")

	// Model errors
	ErrModelFit     = errors.New("causal model fit failed")
	ErrModelPredict = errors.New("causal model predict failed")

	// Pipeline errors
	ErrEvaluation       = errors.New("cross-validation failed")
	ErrEffectEstimation = errors.New("effect estimation failed")
)

// PatternError reports which pattern and column failed to compile.
// Index is -1 when the constraint set was compiled on its own.
type PatternError struct {
	Index  int
	Column string
	Err    error
}

func (e *PatternError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("pattern %d, column %q: %v", e.Index, e.Column, e.Err)
	}
	return fmt.Sprintf("column %q: %v", e.Column, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// FoldError wraps the failure of a single cross-validation fold.
type FoldError struct {
	Fold int
	Err  error
}

func (e *FoldError) Error() string {
	return fmt.Sprintf("%v: fold %d: %v", ErrEvaluation, e.Fold, e.Err)
}

// Unwrap exposes both the evaluation kind and the underlying cause.
func (e *FoldError) Unwrap() []error { return []error{ErrEvaluation, e.Err} }

// StageError wraps an effect estimation failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v at %s: %v", ErrEffectEstimation, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error { return []error{ErrEffectEstimation, e.Err} }

// Error constructors with context
func NewMalformedPatternError(index int, column, reason string) error {
	return &PatternError{Index: index, Column: column, Err: fmt.Errorf("%w: %s", ErrMalformedPattern, reason)}
}

func NewUnknownColumnError(index int, column string) error {
	return &PatternError{Index: index, Column: column, Err: ErrUnknownColumn}
}

// NewModelFitError tags cause as a fit failure unless it already is one
func NewModelFitError(cause error) error {
	if errors.Is(cause, ErrModelFit) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrModelFit, cause)
}

// NewModelPredictError tags cause as a predict failure unless it already is one
func NewModelPredictError(mode string, cause error) error {
	if errors.Is(cause, ErrModelPredict) {
		return cause
	}
	return fmt.Errorf("%w (mode %s): %w", ErrModelPredict, mode, cause)
}

// Error checking helpers
func IsPatternError(err error) bool {
	return errors.Is(err, ErrMalformedPattern) ||
		errors.Is(err, ErrUnknownColumn)
}

func IsDataError(err error) bool {
	return errors.Is(err, ErrEmptySplit) ||
		errors.Is(err, ErrEmptyFilterResult) ||
		errors.Is(err, ErrNonNumericColumn) ||
		errors.Is(err, ErrInvalidFoldCount)
}

func IsModelError(err error) bool {
	return errors.Is(err, ErrModelFit) ||
		errors.Is(err, ErrModelPredict)
}
