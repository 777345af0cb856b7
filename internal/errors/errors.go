package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"goodsam/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    Classify(err).Code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is or wraps an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeTimeout         = "TIMEOUT"

	CodeMalformedPattern  = "MALFORMED_PATTERN"
	CodeUnknownColumn     = "UNKNOWN_COLUMN"
	CodePatternNotFound   = "PATTERN_NOT_FOUND"
	CodeEmptySplit        = "EMPTY_SPLIT"
	CodeEmptyFilterResult = "EMPTY_FILTER_RESULT"
	CodeNonNumericColumn  = "NON_NUMERIC_COLUMN"
	CodeInvalidFoldCount  = "INVALID_FOLD_COUNT"
	CodeModelFit          = "MODEL_FIT_FAILED"
	CodeModelPredict      = "MODEL_PREDICT_FAILED"
	CodeEvaluation        = "EVALUATION_FAILED"
	CodeEffectEstimation  = "EFFECT_ESTIMATION_FAILED"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// domainCodes is checked in order. A deadline wins over the stage it
// interrupted, and the pipeline kinds come before the model kinds they wrap
// so the outermost stage wins.
var domainCodes = []struct {
	kind    error
	code    string
	message string
}{
	{context.DeadlineExceeded, CodeTimeout, "analysis timed out"},
	{core.ErrEvaluation, CodeEvaluation, "cross-validation failed"},
	{core.ErrEffectEstimation, CodeEffectEstimation, "effect estimation failed"},
	{core.ErrModelFit, CodeModelFit, "model fit failed"},
	{core.ErrModelPredict, CodeModelPredict, "model prediction failed"},
	{core.ErrEmptyFilterResult, CodeEmptyFilterResult, "No data available for the selected constraints."},
	{core.ErrEmptySplit, CodeEmptySplit, "not enough rows to split into train and test sets"},
	{core.ErrMalformedPattern, CodeMalformedPattern, "malformed constraint"},
	{core.ErrUnknownColumn, CodeUnknownColumn, "unknown column"},
	{core.ErrPatternNotFound, CodePatternNotFound, "pattern not found"},
	{core.ErrNonNumericColumn, CodeNonNumericColumn, "column is not numeric"},
	{core.ErrInvalidFoldCount, CodeInvalidFoldCount, "invalid fold count"},
}

// Classify maps err to an AppError. Existing AppErrors are returned as they
// are; domain errors get the code of their kind; anything else is internal.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	for _, d := range domainCodes {
		if stderrors.Is(err, d.kind) {
			return &AppError{Code: d.code, Message: d.message, Cause: err}
		}
	}
	return &AppError{Code: CodeInternalError, Message: "internal error", Cause: err}
}
