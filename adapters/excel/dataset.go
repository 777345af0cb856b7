package excel

import (
	"fmt"
	"math"
	"strconv"

	"goodsam/domain/frame"
)

// ToDataset types every column of t and applies the renames and category
// mappings of cfg. A column is numeric when each non-missing cell parses as
// a number; otherwise it is text.
func ToDataset(t *Table, cfg LoadConfig) (*frame.Dataset, error) {
	missing := make(map[string]bool, len(cfg.Missing))
	for _, m := range cfg.Missing {
		missing[m] = true
	}

	cols := make([]frame.Column, 0, len(t.Headers))
	for j, header := range t.Headers {
		cells := make([]string, len(t.Rows))
		for i, row := range t.Rows {
			cells[i] = row[j]
		}

		name := header
		if renamed, ok := cfg.Renames[header]; ok {
			name = renamed
		}
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty header", j)
		}

		if mapping, ok := cfg.Categories[header]; ok {
			cols = append(cols, frame.NumericColumn(name, mapCategories(cells, mapping)))
			continue
		}
		if values, ok := parseNumbers(cells, missing); ok {
			cols = append(cols, frame.NumericColumn(name, values))
			continue
		}
		cols = append(cols, frame.TextColumn(name, cells))
	}
	return frame.New(cols)
}

func parseNumbers(cells []string, missing map[string]bool) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		if missing[c] {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func mapCategories(cells []string, mapping map[string]float64) []float64 {
	out := make([]float64, len(cells))
	for i, c := range cells {
		if v, ok := mapping[c]; ok {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// IntColumn parses a column of integer codes such as FIPS. Cells written as
// floats ("39001.0") are accepted when they hold a whole number.
func IntColumn(t *Table, name string) ([]int, error) {
	cells, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]int, len(cells))
	for i, c := range cells {
		if n, err := strconv.Atoi(c); err == nil {
			out[i] = n
			continue
		}
		f, err := strconv.ParseFloat(c, 64)
		if err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("row %d of %q: %q is not an integer", i+1, name, c)
		}
		out[i] = int(f)
	}
	return out, nil
}
