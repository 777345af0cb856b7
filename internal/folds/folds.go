// Package folds partitions row indices for k-fold cross-validation.
package folds

import (
	"fmt"

	"goodsam/domain/core"
)

// Fold is one train/test partition over a fixed row ordering
type Fold struct {
	Index int
	Train []int
	Test  []int
}

// Partition splits [0, rowCount) into k contiguous test blocks of
// rowCount/k rows each. The last rowCount%k rows are never in a test block;
// they only ever appear in training sets.
func Partition(rowCount, k int) ([]Fold, error) {
	if k < 2 || k > rowCount {
		return nil, fmt.Errorf("%w: k=%d for %d rows", core.ErrInvalidFoldCount, k, rowCount)
	}
	size := rowCount / k
	out := make([]Fold, k)
	for i := 0; i < k; i++ {
		lo, hi := i*size, (i+1)*size
		f := Fold{
			Index: i,
			Test:  make([]int, 0, size),
			Train: make([]int, 0, rowCount-size),
		}
		for r := 0; r < rowCount; r++ {
			if r >= lo && r < hi {
				f.Test = append(f.Test, r)
			} else {
				f.Train = append(f.Train, r)
			}
		}
		out[i] = f
	}
	return out, nil
}
