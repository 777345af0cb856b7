package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDIsEmpty tests ID emptiness check
func TestIDIsEmpty(t *testing.T) {
	if !ID("").IsEmpty() {
		t.Error("Expected empty ID to be empty")
	}
	if ID("not-empty").IsEmpty() {
		t.Error("Expected non-empty ID to not be empty")
	}
}

func TestParsePatternID(t *testing.T) {
	tests := []struct {
		in      string
		want    PatternID
		wantErr bool
	}{
		{"29", 29, false},
		{" 3 ", 3, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePatternID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePatternID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePatternID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseColumnName(t *testing.T) {
	if _, err := ParseColumnName("  "); err == nil {
		t.Error("Expected error for blank column name")
	}
	name, err := ParseColumnName("Urbanicity")
	if err != nil || name.String() != "Urbanicity" {
		t.Errorf("Unexpected result %q, %v", name, err)
	}
}

func TestErrorKinds(t *testing.T) {
	patternErr := NewMalformedPatternError(4, "PovertyRate", "bound has neither in nor lb/ub")
	if !errors.Is(patternErr, ErrMalformedPattern) || !IsPatternError(patternErr) {
		t.Errorf("Expected malformed pattern kind, got %v", patternErr)
	}
	var pe *PatternError
	if !errors.As(patternErr, &pe) || pe.Index != 4 || pe.Column != "PovertyRate" {
		t.Errorf("Expected PatternError with index and column, got %#v", pe)
	}

	cause := errors.New("boom")
	foldErr := &FoldError{Fold: 2, Err: NewModelFitError(cause)}
	if !errors.Is(foldErr, ErrEvaluation) || !errors.Is(foldErr, ErrModelFit) || !errors.Is(foldErr, cause) {
		t.Errorf("Fold error should unwrap to evaluation, fit and cause: %v", foldErr)
	}

	stageErr := &StageError{Stage: "full fit", Err: NewModelFitError(cause)}
	if !errors.Is(stageErr, ErrEffectEstimation) || !IsModelError(stageErr) {
		t.Errorf("Stage error should unwrap to estimation and model kinds: %v", stageErr)
	}
	if IsDataError(stageErr) {
		t.Error("Stage error is not a data error")
	}
}
