package fitting

import (
	"math"
	"testing"

	geoerrors "github.com/arxgeo/geocore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScatteredAffineExact mirrors the worked example: three control points
// determine an exact affine map x' = 2x+3, y' = y+1.
func TestScatteredAffineExact(t *testing.T) {
	b, err := NewScatteredBuilder(2, 2)
	require.NoError(t, err)

	points := []struct{ src, tgt []float64 }{
		{[]float64{0, 0}, []float64{3, 1}},
		{[]float64{1, 0}, []float64{5, 1}},
		{[]float64{0, 1}, []float64{3, 2}},
	}
	for _, p := range points {
		require.NoError(t, b.SetControlPoint(p.src, p.tgt))
	}

	result, err := b.Create()
	require.NoError(t, err)
	require.NotNil(t, result.Transform)

	m := result.Transform.Matrix()
	assert.InDelta(t, 2.0, m.Element(0, 0), 1e-9)
	assert.InDelta(t, 0.0, m.Element(0, 1), 1e-9)
	assert.InDelta(t, 3.0, m.Element(0, 2), 1e-9)
	assert.InDelta(t, 0.0, m.Element(1, 0), 1e-9)
	assert.InDelta(t, 1.0, m.Element(1, 1), 1e-9)
	assert.InDelta(t, 1.0, m.Element(1, 2), 1e-9)

	for _, r := range result.Correlations {
		assert.InDelta(t, 1.0, r, 1e-9)
	}
}

func TestGridSizeValidation(t *testing.T) {
	_, err := NewGridBuilder(1, 0, 4)
	require.Error(t, err)
	code, ok := geoerrors.Code(err)
	require.True(t, ok)
	assert.Equal(t, geoerrors.CodeInvalidInput, code)
}

func TestGridProductOverflowRejected(t *testing.T) {
	_, err := NewGridBuilder(1, math.MaxInt32, 2)
	require.Error(t, err)
}

func TestNonFiniteTargetMarksAbsentAndFails(t *testing.T) {
	b, err := NewGridBuilder(1, 3, 3)
	require.NoError(t, err)

	err = b.SetControlPoint([]float64{1, 1}, []float64{math.NaN()})
	require.Error(t, err)
	code, ok := geoerrors.Code(err)
	require.True(t, ok)
	assert.Equal(t, geoerrors.CodeInvalidInput, code)

	require.NoError(t, b.SetControlPoint([]float64{0, 0}, []float64{1}))
	require.NoError(t, b.SetControlPoint([]float64{2, 0}, []float64{5}))
	require.NoError(t, b.SetControlPoint([]float64{0, 2}, []float64{9}))

	result, err := b.Create()
	require.NoError(t, err)
	assert.Equal(t, 3, b.presentCount())
	assert.NotNil(t, result)
}

func TestCreateFailsWithNoControlPoints(t *testing.T) {
	b, err := NewScatteredBuilder(1, 1)
	require.NoError(t, err)
	_, err = b.Create()
	require.Error(t, err)
	code, ok := geoerrors.Code(err)
	require.True(t, ok)
	assert.Equal(t, geoerrors.CodeMissingData, code)
}

func TestCreateTwiceFails(t *testing.T) {
	b, err := NewScatteredBuilder(1, 1)
	require.NoError(t, err)
	require.NoError(t, b.SetControlPoint([]float64{0}, []float64{0}))
	require.NoError(t, b.SetControlPoint([]float64{1}, []float64{1}))
	_, err = b.Create()
	require.NoError(t, err)

	_, err = b.Create()
	require.Error(t, err)
	code, ok := geoerrors.Code(err)
	require.True(t, ok)
	assert.Equal(t, geoerrors.CodeUnmodifiableState, code)

	err = b.SetControlPoint([]float64{2}, []float64{2})
	require.Error(t, err)
}

// squaringTransform squares its single input/output dimension; used as a
// stand-in non-linear linearizer candidate that perfectly aligns a
// square-root-shaped target.
type squaringTransform struct{}

func (squaringTransform) SourceDimensions() int { return 1 }
func (squaringTransform) TargetDimensions() int { return 1 }
func (squaringTransform) TransformPoint64(src []float64, srcOff int, dst []float64, dstOff int, n int) error {
	for i := 0; i < n; i++ {
		dst[dstOff+i] = src[srcOff+i] * src[srcOff+i]
	}
	return nil
}

func TestLinearizerSelectionPrefersBetterCorrelation(t *testing.T) {
	b, err := NewScatteredBuilder(1, 1)
	require.NoError(t, err)

	// y = sqrt(x), which a linear fit cannot match but the squaring
	// linearizer can invert perfectly.
	for x := 0.0; x <= 4; x++ {
		require.NoError(t, b.SetControlPoint([]float64{x}, []float64{math.Sqrt(x)}))
	}

	require.NoError(t, b.AddLinearizer(&LinearizerCandidate{Name: "identity"}))
	require.NoError(t, b.AddLinearizer(&LinearizerCandidate{
		Name:       "square",
		Forward:    squaringTransform{},
		ProjToGrid: []int{0},
	}))

	result, err := b.Create()
	require.NoError(t, err)
	require.NotNil(t, result.Selected)
	assert.Equal(t, "square", result.Selected.Name)
	assert.InDelta(t, 1.0, result.Correlations[0], 1e-6)
}

func TestAddLinearizerRejectsDuplicateProjection(t *testing.T) {
	b, err := NewScatteredBuilder(1, 1)
	require.NoError(t, err)
	require.NoError(t, b.AddLinearizer(&LinearizerCandidate{Name: "a", Forward: squaringTransform{}, ProjToGrid: []int{0}}))
	err = b.AddLinearizer(&LinearizerCandidate{Name: "b", Forward: squaringTransform{}, ProjToGrid: []int{0}})
	require.Error(t, err)
	code, ok := geoerrors.Code(err)
	require.True(t, ok)
	assert.Equal(t, geoerrors.CodeInvalidInput, code)
}

func TestSetAllFromTransformDimensionMismatch(t *testing.T) {
	b, err := NewGridBuilder(2, 2, 2)
	require.NoError(t, err)
	err = b.SetAllFromTransform(squaringTransform{})
	require.Error(t, err)
	code, ok := geoerrors.Code(err)
	require.True(t, ok)
	assert.Equal(t, geoerrors.CodeDimensionMismatch, code)
}
