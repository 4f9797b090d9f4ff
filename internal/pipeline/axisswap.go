package pipeline

import (
	"github.com/arxgeo/geocore/internal/numeric"
	"github.com/arxgeo/geocore/internal/spatial"
)

// normalizedOrder returns the canonical axis order a kernel expects:
// east, north, and (if present) up — the order buildAxisSwap maps a CS's
// declared axis order into or out of.
func normalizedOrder(dim int) []spatial.AxisDirection {
	order := []spatial.AxisDirection{spatial.AxisEast, spatial.AxisNorth}
	if dim >= 3 {
		order = append(order, spatial.AxisUp)
	}
	return order[:dim]
}

// buildAxisSwap builds the affine transform that maps cs's declared axis
// order/unit into the normalized (east, north, [up]) order in radians or
// metres (per spec.md §4.4 step 1: "axis swap+scale from the source CS to
// its normalized form"). toNormalized selects the direction: true builds
// cs -> normalized, false builds normalized -> cs. A nil cs yields
// identity, per "identity if CS is unknown".
func buildAxisSwap(cs spatial.CoordinateSystem, toNormalized bool) *numeric.Transform {
	if cs == nil {
		return identityTransform(2)
	}
	dim := cs.Dimension()
	target := normalizedOrder(dim)

	// perm[i] = index into cs's axes supplying normalized axis i.
	perm := make([]int, dim)
	scale := make([]float64, dim)
	for i, dir := range target {
		perm[i] = -1
		for j := 0; j < dim; j++ {
			if cs.Axis(j).Direction == dir {
				perm[i] = j
				scale[i] = cs.Axis(j).Unit.ToBase
				break
			}
		}
		if perm[i] == -1 {
			// No matching axis declared for this direction: fall through
			// unscaled, matching position.
			perm[i] = i
			scale[i] = 1
		}
	}

	n := dim + 1
	elems := make([]*numeric.Number, n*n)
	for i := 0; i < dim; i++ {
		if toNormalized {
			// normalized axis i <- cs axis perm[i], scaled to base unit.
			elems[i*n+perm[i]] = numeric.Dbl(scale[i])
		} else {
			// cs axis perm[i] <- normalized axis i, scaled back from base unit.
			elems[perm[i]*n+i] = numeric.Dbl(1 / scale[i])
		}
	}
	elems[dim*n+dim] = numeric.Int(1)
	return numeric.New(numeric.NewMatrix(n, n, elems))
}

func identityTransform(dim int) *numeric.Transform {
	n := dim + 1
	elems := make([]*numeric.Number, n*n)
	for i := 0; i < n; i++ {
		elems[i*n+i] = numeric.Int(1)
	}
	return numeric.New(numeric.NewMatrix(n, n, elems))
}
