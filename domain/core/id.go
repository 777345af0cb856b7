package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	AnalysisID ID
	ColumnName ID
)

func (id AnalysisID) String() string { return ID(id).String() }
func (id ColumnName) String() string { return ID(id).String() }

// NewAnalysisID tags a single analysis request.
func NewAnalysisID() AnalysisID {
	return AnalysisID(NewID())
}

// PatternID is the catalogue position of a predefined pattern.
type PatternID int

func (id PatternID) String() string { return strconv.Itoa(int(id)) }

// ParsePatternID parses a query value into PatternID
func ParsePatternID(s string) (PatternID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("pattern ID cannot be empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("pattern ID must be an integer: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("pattern ID cannot be negative")
	}
	return PatternID(n), nil
}

// ParseColumnName parses a string into ColumnName
func ParseColumnName(s string) (ColumnName, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("column name cannot be empty")
	}
	return ColumnName(s), nil
}
