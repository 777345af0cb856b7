// Package rng provides named, seeded random streams. Two streams with the
// same seed but different names are independent; the same name and seed
// always give the same sequence.
package rng

import (
	"context"
	"hash/fnv"
	"math/rand"

	"goodsam/ports"
)

// Streams implements ports.RNGPort
type Streams struct{}

var _ ports.RNGPort = Streams{}

// New returns the stream factory
func New() Streams { return Streams{} }

func (Streams) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(Mix(name, seed))), nil
}

// Mix folds the stream name into the seed
func Mix(name string, seed int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64()) ^ seed
}
