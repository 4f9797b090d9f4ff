package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxgeo/geocore/internal/spatial"
)

func boundingBox(minX, minY, maxX, maxY float64) spatial.BoundingBox2D {
	return spatial.BoundingBox2D{Min: spatial.Point2D{X: minX, Y: minY}, Max: spatial.Point2D{X: maxX, Y: maxY}}
}

func squareGeom(n int) Geometry {
	return Geometry{NX: n, NY: n, ScaleX: 1, ScaleY: 1, Accuracy: 1}
}

// TestSingleCellGridReturnsConstant covers spec.md §8's boundary behavior:
// a grid built with size (1, 1) returns its single value for all
// in-domain (and clamped out-of-domain) queries.
func TestSingleCellGridReturnsConstant(t *testing.T) {
	data := NewFloat64Data([][]float64{{0.25}})
	g, err := New(squareGeom(1), data)
	require.NoError(t, err)

	for _, p := range [][2]float64{{0, 0}, {5, -5}, {-100, 100}} {
		out, err := g.Interpolate(p[0], p[1])
		require.NoError(t, err)
		assert.InDelta(t, 0.25, out[0], 1e-12)
	}
}

func TestBilinearInterpolationMidpoint(t *testing.T) {
	// 2x2 grid: corners 0, 1, 2, 3 (row-major, axis 0 fastest).
	data := NewFloat64Data([][]float64{{0, 1, 2, 3}})
	g, err := New(squareGeom(2), data)
	require.NoError(t, err)

	out, err := g.Interpolate(0.5, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, out[0], 1e-9)

	corner, err := g.Interpolate(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, corner[0], 1e-9)
}

func TestWraparoundIsPeriodic(t *testing.T) {
	geom := squareGeom(4)
	geom.WraparoundPeriod = 4
	data := NewFloat64Data([][]float64{{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}})
	g, err := New(geom, data)
	require.NoError(t, err)

	base, err := g.Interpolate(1, 1)
	require.NoError(t, err)
	wrapped, err := g.Interpolate(1+4, 1)
	require.NoError(t, err)
	assert.InDelta(t, base[0], wrapped[0], 1e-9)
}

func TestClampWithoutWraparound(t *testing.T) {
	geom := squareGeom(3)
	data := NewFloat64Data([][]float64{{0, 1, 2, 3, 4, 5, 6, 7, 8}})
	g, err := New(geom, data)
	require.NoError(t, err)

	inBounds, err := g.Interpolate(2, 0)
	require.NoError(t, err)
	outOfBounds, err := g.Interpolate(50, 0)
	require.NoError(t, err)
	assert.InDelta(t, inBounds[0], outOfBounds[0], 1e-9)
}

func TestSubgridInnermostWins(t *testing.T) {
	parentData := NewFloat64Data([][]float64{{0, 0, 0, 0}})
	parent, err := New(squareGeom(2), parentData)
	require.NoError(t, err)

	childData := NewFloat64Data([][]float64{{9, 9, 9, 9}})
	child, err := New(squareGeom(2), childData)
	require.NoError(t, err)

	parent.AddChild(&Subgrid{
		Domain: boundingBox(0, 0, 1, 1),
		Grid:   child,
	})

	out, err := parent.Interpolate(0.5, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 9, out[0], 1e-9)
}

func TestDuplicateSubgridDomainIgnored(t *testing.T) {
	parentData := NewFloat64Data([][]float64{{0, 0, 0, 0}})
	parent, err := New(squareGeom(2), parentData)
	require.NoError(t, err)

	first := &Subgrid{Domain: boundingBox(0, 0, 1, 1), Grid: mustGrid(t)}
	second := &Subgrid{Domain: boundingBox(0, 0, 1, 1), Grid: mustGrid(t)}
	parent.AddChild(first)
	parent.AddChild(second)

	require.Len(t, parent.Children, 1)
	assert.Same(t, first, parent.Children[0])
}

func mustGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := New(squareGeom(2), NewFloat64Data([][]float64{{1, 1, 1, 1}}))
	require.NoError(t, err)
	return g
}

func TestShareDataReturnsSameReferenceWhenEqual(t *testing.T) {
	a, err := New(squareGeom(2), NewFloat64Data([][]float64{{1, 2, 3, 4}}))
	require.NoError(t, err)
	b, err := New(squareGeom(2), NewFloat64Data([][]float64{{1, 2, 3, 4}}))
	require.NoError(t, err)

	shared := a.ShareData(b)
	assert.Same(t, b.Data, shared.Data)
}

func TestShareDataReturnsSelfWhenDifferent(t *testing.T) {
	a, err := New(squareGeom(2), NewFloat64Data([][]float64{{1, 2, 3, 4}}))
	require.NoError(t, err)
	b, err := New(squareGeom(2), NewFloat64Data([][]float64{{9, 9, 9, 9}}))
	require.NoError(t, err)

	result := a.ShareData(b)
	assert.Same(t, a.Data, result.Data)
}
