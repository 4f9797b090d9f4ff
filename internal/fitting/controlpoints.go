// Package fitting implements C1 LinearFitter: fitting an affine transform
// to (source, target) control points by least squares, with optional
// non-linear "linearizer" selection to maximize target correlation.
package fitting

import (
	"math"

	geoerrors "github.com/arxgeo/geocore/pkg/errors"
)

// pointStore holds the control points a Builder accumulates, in either
// gridded or scattered mode (spec.md §3's two parallel logical stores).
// Only one mode is active per Builder.
type pointStore struct {
	gridded bool

	// Gridded mode: size has 1 or 2 entries (LinearFitter only supports
	// d_s in {1,2}); targets[j] is a dense array of length
	// size[0]*size[1] (or size[0] when len(size)==1), row-major with axis
	// 0 fastest-varying.
	size    []int
	targets [][]float64

	// Scattered mode: sources[i] is a d_s-length coordinate, targets[i] a
	// d_t-length coordinate, in insertion order. present tracks whether a
	// slot's target was last written with a finite value.
	sources [][]float64
	scatTgt [][]float64
	present []bool
}

func (p *pointStore) flatIndex(src []int) (int, error) {
	idx := 0
	stride := 1
	for axis := 0; axis < len(p.size); axis++ {
		if src[axis] < 0 || src[axis] >= p.size[axis] {
			return 0, geoerrors.New(geoerrors.CodeInvalidInput, "grid source index out of range")
		}
		idx += src[axis] * stride
		stride *= p.size[axis]
	}
	return idx, nil
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// gridSizeProduct multiplies size entries, returning an error if any
// entry is < 1 or the product would exceed the 32-bit-signed-int ceiling
// spec.md's "MAX_INT" refers to (the classic geodetic-grid practical
// limit; a grid larger than that cannot be addressed by a single flat
// int-indexed array in the first place).
func gridSizeProduct(size []int) (int, error) {
	const maxInt = math.MaxInt32
	product := 1
	for _, s := range size {
		if s < 1 {
			return 0, geoerrors.New(geoerrors.CodeInvalidInput, "grid size entries must be >= 1")
		}
		if product > maxInt/s {
			return 0, geoerrors.New(geoerrors.CodeInvalidInput, "grid size product exceeds maximum addressable index")
		}
		product *= s
	}
	return product, nil
}
