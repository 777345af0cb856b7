package hypothesis

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"goodsam/ports"
)

// PermutationOptions configures PermutationTest
type PermutationOptions struct {
	Resamples int `validate:"gt=0"`
	Seed      int64
	Workers   int
}

// DefaultPermutationOptions uses 9999 resamples on four workers
func DefaultPermutationOptions() PermutationOptions {
	return PermutationOptions{Resamples: 9999, Seed: 1, Workers: 4}
}

// PermutationTest tests the difference of means, mean(treated) - mean(control),
// by reassigning pooled observations to the two samples. When the number of
// distinct reassignments does not exceed opts.Resamples every one of them is
// enumerated and the p-value is exact; otherwise opts.Resamples random
// reassignments are drawn and the observed statistic is counted once.
func PermutationTest(ctx context.Context, treated, control []float64, alt Alternative, opts PermutationOptions, rng ports.RNGPort) (Result, error) {
	if err := checkAlternative(alt); err != nil {
		return Result{}, err
	}
	if len(treated) == 0 || len(control) == 0 {
		return Result{}, fmt.Errorf("permutation test: %w", ErrTooFew)
	}
	if opts.Resamples <= 0 {
		return Result{}, fmt.Errorf("permutation test: resamples must be positive, got %d", opts.Resamples)
	}

	observed := mean(treated) - mean(control)
	pooled := append(append([]float64(nil), treated...), control...)

	var null []float64
	adjustment := 1.0
	if total, ok := combinations(len(pooled), len(treated), opts.Resamples); ok {
		null = exactNull(pooled, len(treated), total)
		adjustment = 0
	} else {
		var err error
		null, err = sampledNull(ctx, pooled, len(treated), opts, rng)
		if err != nil {
			return Result{}, err
		}
	}

	gamma := math.Abs(observed * 100 * epsilon)
	var le, ge int
	for _, v := range null {
		if v <= observed+gamma {
			le++
		}
		if v >= observed-gamma {
			ge++
		}
	}
	n := float64(len(null))
	pLess := (float64(le) + adjustment) / (n + adjustment)
	pGreater := (float64(ge) + adjustment) / (n + adjustment)

	var p float64
	switch alt {
	case Less:
		p = pLess
	case Greater:
		p = pGreater
	default:
		p = 2 * math.Min(pLess, pGreater)
	}
	return Result{Statistic: observed, PValue: clip01(p)}, nil
}

const epsilon = 2.220446049250313e-16

// combinations returns C(n, k) when it is at most limit
func combinations(n, k, limit int) (int, bool) {
	if k > n-k {
		k = n - k
	}
	c := 1.0
	for i := 1; i <= k; i++ {
		c = c * float64(n-k+i) / float64(i)
		if c > float64(limit) {
			return 0, false
		}
	}
	return int(math.Round(c)), true
}

// exactNull evaluates the statistic for every way of choosing k of the pooled
// observations as the first sample.
func exactNull(pooled []float64, k, total int) []float64 {
	n := len(pooled)
	var sum float64
	for _, v := range pooled {
		sum += v
	}

	out := make([]float64, 0, total)
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		var first float64
		for _, i := range idx {
			first += pooled[i]
		}
		out = append(out, first/float64(k)-(sum-first)/float64(n-k))

		// next combination in lexicographic order
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// sampledNull draws opts.Resamples random reassignments on a worker pool.
// Worker w owns resamples w, w+W, w+2W, ... and its own seeded stream, so the
// null distribution does not depend on scheduling.
func sampledNull(ctx context.Context, pooled []float64, k int, opts PermutationOptions, rng ports.RNGPort) ([]float64, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if opts.Resamples < 100 {
		workers = 1
	}

	streams := make([]*rand.Rand, workers)
	for w := range streams {
		r, err := rng.SeededStream(ctx, fmt.Sprintf("permutation-test-%d", w), opts.Seed+int64(w))
		if err != nil {
			return nil, fmt.Errorf("permutation rng: %w", err)
		}
		streams[w] = r
	}

	null := make([]float64, opts.Resamples)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			permutationWorker(ctx, pooled, k, streams[w], null, w, workers)
		}(w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return null, nil
}

func permutationWorker(ctx context.Context, pooled []float64, k int, rng *rand.Rand, null []float64, start, stride int) {
	shuffled := make([]float64, len(pooled))
	for index := start; index < len(null); index += stride {
		select {
		case <-ctx.Done():
			return
		default:
		}
		copy(shuffled, pooled)

		// Fisher-Yates shuffle
		for i := len(shuffled) - 1; i > 0; i-- {
			j := rng.Intn(i + 1)
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		}
		null[index] = mean(shuffled[:k]) - mean(shuffled[k:])
	}
}
