// Package histogram bins feature distributions of a filtered dataset against
// the full dataset on shared edges.
package histogram

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"goodsam/domain/frame"
)

// Bins is the number of bins per histogram
const Bins = 10

// Comparison holds the counts of one feature in both datasets over the same edges
type Comparison struct {
	FullCounts     []int     `json:"full_counts"`
	FilteredCounts []int     `json:"filtered_counts"`
	BinEdges       []float64 `json:"bin_edges"`
}

// Compare bins each feature of filtered and full on Bins+1 evenly spaced
// edges over the full dataset's range. Features that are absent, not
// numeric, or have no observed values in either dataset are skipped.
func Compare(full, filtered *frame.Dataset, features []string) map[string]Comparison {
	out := make(map[string]Comparison, len(features))
	for _, name := range features {
		fullValues, ok := full.NonMissing(name)
		if !ok || len(fullValues) == 0 {
			continue
		}
		subValues, ok := filtered.NonMissing(name)
		if !ok || len(subValues) == 0 {
			continue
		}
		edges := Edges(fullValues)
		out[name] = Comparison{
			FullCounts:     Count(fullValues, edges),
			FilteredCounts: Count(subValues, edges),
			BinEdges:       edges,
		}
	}
	return out
}

// Edges returns Bins+1 evenly spaced points from min to max of values
func Edges(values []float64) []float64 {
	lo, hi := floats.Min(values), floats.Max(values)
	return floats.Span(make([]float64, Bins+1), lo, hi)
}

// Count bins values on edges. Bins are [e_i, e_i+1) except the last, which
// is closed. NaN and values outside the edges are dropped. When every edge
// is equal all matching values land in the last bin.
func Count(values, edges []float64) []int {
	n := len(edges) - 1
	counts := make([]int, n)
	if n < 1 {
		return counts
	}
	lo, hi := edges[0], edges[n]
	for _, v := range values {
		if math.IsNaN(v) || v < lo || v > hi {
			continue
		}
		if v == hi {
			counts[n-1]++
			continue
		}
		// edges are sorted; find the last edge <= v
		i := 0
		for i+1 < n && edges[i+1] <= v {
			i++
		}
		counts[i]++
	}
	return counts
}
