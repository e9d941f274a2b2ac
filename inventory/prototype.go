// Package inventory assembles the urban-forest inventory: it orchestrates the
// two segmentation passes over a tile, measures each crown, and emits tree
// records with an assigned reconstruction prototype.
package inventory

import (
	"sort"

	"github.com/pkg/errors"
)

// PrototypeAssigner maps a crown/trunk height ratio to one of N geometric
// reconstruction prototypes. N-1 ordered boundaries partition the positive
// ratio axis into half-open intervals [b_{i-1}, b_i); the last interval is
// unbounded above.
type PrototypeAssigner struct {
	boundaries []float64
}

// NewPrototypeAssigner validates the boundary table: boundaries must be
// positive and strictly increasing.
func NewPrototypeAssigner(boundaries []float64) (*PrototypeAssigner, error) {
	for i, b := range boundaries {
		if b <= 0 {
			return nil, errors.Errorf("prototype boundary %d must be positive, got %v", i, b)
		}
		if i > 0 && b <= boundaries[i-1] {
			return nil, errors.Errorf("prototype boundaries must be strictly increasing, got %v after %v", b, boundaries[i-1])
		}
	}
	out := make([]float64, len(boundaries))
	copy(out, boundaries)
	return &PrototypeAssigner{boundaries: out}, nil
}

// Assign returns the index of the interval containing the ratio. Intervals
// are inclusive on their lower edge: a ratio exactly at boundary b falls in
// the interval starting at b.
func (pa *PrototypeAssigner) Assign(ratio float64) int {
	return sort.Search(len(pa.boundaries), func(i int) bool {
		return pa.boundaries[i] > ratio
	})
}

// NumPrototypes returns the number of intervals.
func (pa *PrototypeAssigner) NumPrototypes() int {
	return len(pa.boundaries) + 1
}
