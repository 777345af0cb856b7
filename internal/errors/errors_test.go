package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"goodsam/domain/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"pattern", core.NewMalformedPatternError(2, "a", "bad"), CodeMalformedPattern},
		{"column", core.NewUnknownColumnError(-1, "a"), CodeUnknownColumn},
		{"empty filter", fmt.Errorf("filter: %w", core.ErrEmptyFilterResult), CodeEmptyFilterResult},
		{"fold wins over fit", &core.FoldError{Fold: 1, Err: core.NewModelFitError(stderrors.New("x"))}, CodeEvaluation},
		{"stage wins over predict", &core.StageError{Stage: "full fit", Err: core.NewModelPredictError("mu", stderrors.New("x"))}, CodeEffectEstimation},
		{"timeout", fmt.Errorf("estimate: %w", context.DeadlineExceeded), CodeTimeout},
		{"timeout inside stage", &core.StageError{Stage: "permutation test", Err: context.DeadlineExceeded}, CodeTimeout},
		{"timeout inside fold", &core.FoldError{Fold: 2, Err: core.NewModelFitError(context.DeadlineExceeded)}, CodeTimeout},
		{"other", stderrors.New("disk on fire"), CodeInternalError},
		{"app error", InvalidInput("ID is required"), CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.Nil(t, Classify(nil))
}

func TestWrap_KeepsCode(t *testing.T) {
	base := NotFound("pattern 3")
	wrapped := Wrap(base, "loading pattern")
	assert.Equal(t, CodeNotFound, GetCode(wrapped))
	assert.Equal(t, "loading pattern: pattern 3 not found", wrapped.Error())

	domain := Wrapf(core.ErrEmptySplit, "pattern %d", 3)
	assert.Equal(t, CodeEmptySplit, GetCode(domain))
	assert.ErrorIs(t, domain, core.ErrEmptySplit)

	assert.Nil(t, Wrap(nil, "x"))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
	assert.Equal(t, CodeValidationError, GetCode(WithCode(CodeValidationError, stderrors.New("plain"))))
	assert.True(t, IsAppError(fmt.Errorf("outer: %w", base)))
}
