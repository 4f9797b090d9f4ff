// Package grid implements C2 ShiftGrid: an in-memory datum-shift grid with
// regular geometry, bilinear interpolation, quantized-short compression, a
// sub-grid specialization tree, and shared-data deduplication.
package grid

import (
	"math"

	"github.com/arxgeo/geocore/internal/spatial"
)

// Geometry describes a regular grid's size and the affine map from input
// coordinates to fractional grid indices. The affine is pure scale plus
// translation, per spec.md §3 — no rotation or shear.
type Geometry struct {
	CoordinateUnit  spatial.Unit
	TranslationUnit spatial.Unit

	NX, NY int

	// CoordinateToGrid maps (x, y) -> (gx, gy): gx = OriginX + x*ScaleX,
	// gy = OriginY + y*ScaleY.
	OriginX, OriginY float64
	ScaleX, ScaleY   float64

	// WraparoundPeriod is the number of cells per 360 degrees along axis
	// 0, or 0 if axis 0 has no wraparound (e.g. a local grid rather than a
	// whole-earth one).
	WraparoundPeriod float64

	// Accuracy estimates residual uncertainty; used to bound
	// getCellPrecision.
	Accuracy float64
}

// ToGrid converts a query coordinate into fractional grid indices.
func (g Geometry) ToGrid(x, y float64) (gx, gy float64) {
	return g.OriginX + x*g.ScaleX, g.OriginY + y*g.ScaleY
}

// ResolveAxis0 applies the clamp/wrap policy to a fractional grid
// coordinate along axis 0. When a wraparound period is configured and the
// coordinate falls outside [0, NX-1], it is reduced modulo the period
// toward the nearest grid-equivalent; otherwise out-of-range coordinates
// are clamped to the nearest boundary. withWraparound(x+k*period) ==
// withWraparound(x) for any integer k, by construction of math.Mod.
func (g Geometry) ResolveAxis0(gx float64) float64 {
	max := float64(g.NX - 1)
	if gx >= 0 && gx <= max {
		return gx
	}
	if g.WraparoundPeriod > 0 {
		wrapped := math.Mod(gx, g.WraparoundPeriod)
		if wrapped < 0 {
			wrapped += g.WraparoundPeriod
		}
		if wrapped > max {
			// Still outside after reduction (period > grid extent): clamp.
			return clampF(wrapped, 0, max)
		}
		return wrapped
	}
	return clampF(gx, 0, max)
}

// ResolveAxis1 applies the clamp policy to axis 1; spec.md only defines
// wraparound for axis 0.
func (g Geometry) ResolveAxis1(gy float64) float64 {
	return clampF(gy, 0, float64(g.NY-1))
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CellPrecision bounds the iteration-stop tolerance for callers doing
// iterative inversion against this grid: min(accuracy/10, 5*scale).
func (g Geometry) CellPrecision(scale float64) float64 {
	return math.Min(g.Accuracy/10, 5*scale)
}
