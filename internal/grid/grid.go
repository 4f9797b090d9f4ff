package grid

import (
	"math"

	"github.com/arxgeo/geocore/internal/logger"
	"github.com/arxgeo/geocore/internal/spatial"
	geoerrors "github.com/arxgeo/geocore/pkg/errors"
)

// Subgrid is one node of a grid's specialization tree: a domain of
// validity (in degrees) contained within its parent, and its own Grid.
// Parent data arrays are not owned by children; subgrids hold their own
// Data.
type Subgrid struct {
	Domain spatial.BoundingBox2D
	Grid   *Grid
}

// Grid is a regular datum-shift grid: geometry plus data plus an optional
// tree of sub-grids specializing parts of its domain.
type Grid struct {
	Geometry Geometry
	Data     *Data
	Children []*Subgrid
}

// New builds a Grid from geometry and data, validating that the data's
// cell count matches the geometry's size.
func New(geom Geometry, data *Data) (*Grid, error) {
	if data.N != geom.NX*geom.NY {
		return nil, geoerrors.New(geoerrors.CodeInvalidInput, "grid data cell count does not match geometry size")
	}
	return &Grid{Geometry: geom, Data: data}, nil
}

// AddChild attaches a sub-grid. A child whose domain duplicates one
// already attached is logged once and ignored, per spec.md §4.2 ("children
// with duplicate domains are logged once and all but the first are
// ignored").
func (g *Grid) AddChild(child *Subgrid) {
	for _, existing := range g.Children {
		if existing.Domain.Equal(child.Domain) {
			logger.Warn("grid: duplicate sub-grid domain ignored: %+v", child.Domain)
			return
		}
	}
	g.Children = append(g.Children, child)
}

// effective returns the innermost Grid whose domain of validity contains
// p, falling back to g itself if no child contains p.
func (g *Grid) effective(p spatial.Point2D) *Grid {
	for _, child := range g.Children {
		if child.Domain.Contains(p) {
			return child.Grid.effective(p)
		}
	}
	return g
}

// Interpolate converts (x, y) to fractional grid coordinates, resolves
// out-of-domain coordinates per the clamp/wrap policy, and returns the
// bilinearly interpolated translation vector, delegating to the innermost
// containing sub-grid when present.
func (g *Grid) Interpolate(x, y float64) ([]float64, error) {
	target := g.effective(spatial.Point2D{X: x, Y: y})
	return target.interpolateLocal(x, y)
}

func (g *Grid) interpolateLocal(x, y float64) ([]float64, error) {
	if g.Geometry.NX < 1 || g.Geometry.NY < 1 {
		return nil, geoerrors.New(geoerrors.CodeInvalidInput, "grid has no cells")
	}
	gx, gy := g.Geometry.ToGrid(x, y)
	gx = g.Geometry.ResolveAxis0(gx)
	gy = g.Geometry.ResolveAxis1(gy)

	ix, iy := int(math.Floor(gx)), int(math.Floor(gy))
	fx, fy := gx-float64(ix), gy-float64(iy)
	ix1, iy1 := clampIdx(ix+1, g.Geometry.NX), clampIdx(iy+1, g.Geometry.NY)

	out := make([]float64, g.Data.Dims)
	for d := 0; d < g.Data.Dims; d++ {
		r00 := g.cell(d, ix, iy)
		r10 := g.cell(d, ix1, iy)
		r01 := g.cell(d, ix, iy1)
		r11 := g.cell(d, ix1, iy1)
		top := math.FMA(fx, r10-r00, r00)
		bottom := math.FMA(fx, r11-r01, r01)
		out[d] = math.FMA(fy, bottom-top, top)
	}
	return out, nil
}

// Derivative returns the 2-column (d/dx, d/dy) bilinear partials at (x, y)
// for every dimension, using the standard bilinear partial-derivative
// formulas scaled by the geometry's coordinate-to-grid Jacobian.
func (g *Grid) Derivative(x, y float64) ([][2]float64, error) {
	target := g.effective(spatial.Point2D{X: x, Y: y})
	gx, gy := target.Geometry.ToGrid(x, y)
	gx = target.Geometry.ResolveAxis0(gx)
	gy = target.Geometry.ResolveAxis1(gy)
	ix, iy := int(math.Floor(gx)), int(math.Floor(gy))
	fx, fy := gx-float64(ix), gy-float64(iy)
	ix1, iy1 := clampIdx(ix+1, target.Geometry.NX), clampIdx(iy+1, target.Geometry.NY)

	out := make([][2]float64, target.Data.Dims)
	for d := 0; d < target.Data.Dims; d++ {
		r00 := target.cell(d, ix, iy)
		r10 := target.cell(d, ix1, iy)
		r01 := target.cell(d, ix, iy1)
		r11 := target.cell(d, ix1, iy1)
		ddx := (1-fy)*(r10-r00) + fy*(r11-r01)
		ddy := (1-fx)*(r01-r00) + fx*(r11-r10)
		out[d][0] = ddx * target.Geometry.ScaleX
		out[d][1] = ddy * target.Geometry.ScaleY
	}
	return out, nil
}

func (g *Grid) cell(dim, x, y int) float64 {
	idx := x + y*g.Geometry.NX
	return g.Data.Value(dim, idx)
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// CellPrecision is the iteration-stop tolerance described in spec.md §4.2:
// min(accuracy/10, 5*scale). scale is 1.0 for non-quantized data.
func (g *Grid) CellPrecision() float64 {
	scale := 1.0
	if g.Data.Encoding == EncodingQuantized {
		scale = g.Data.scale
	}
	return g.Geometry.CellPrecision(scale)
}

// ShareData returns a Grid sharing other's Data reference if other's data
// is bitwise-equal to g's; otherwise it returns g unchanged. Cache.Get
// does not call it: a grid loaded through the cache keeps its own Data
// even when a resident grid holds equal data.
func (g *Grid) ShareData(other *Grid) *Grid {
	if g.Data.SameData(other.Data) {
		return &Grid{Geometry: g.Geometry, Data: other.Data, Children: g.Children}
	}
	return g
}

// ApproximateBytes estimates the resident byte cost of this grid (and its
// sub-grid tree), the cost function the grid cache's eviction policy uses.
func (g *Grid) ApproximateBytes() int64 {
	var size int64
	switch g.Data.Encoding {
	case EncodingFloat32:
		size = int64(g.Data.Dims) * int64(g.Data.N) * 4
	case EncodingFloat64:
		size = int64(g.Data.Dims) * int64(g.Data.N) * 8
	default:
		size = int64(g.Data.Dims) * int64(g.Data.N) * 2
	}
	for _, c := range g.Children {
		size += c.Grid.ApproximateBytes()
	}
	return size
}
