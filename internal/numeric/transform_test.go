package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyIdentity(t *testing.T) {
	m := NewMatrix(3, 3, []*Number{
		Int(1), nil, nil,
		nil, Int(1), nil,
		nil, nil, Int(1),
	})
	tr := New(m)
	assert.Equal(t, KindIdentity, tr.Kind())

	dst := make([]float64, 2)
	require.NoError(t, tr.TransformPoint64([]float64{3, 4}, 0, dst, 0, 1))
	assert.Equal(t, []float64{3, 4}, dst)
}

func TestClassifyTranslation(t *testing.T) {
	m := NewMatrix(3, 3, []*Number{
		Int(1), nil, Int(5),
		nil, Int(1), Int(-2),
		nil, nil, Int(1),
	})
	tr := New(m)
	require.Equal(t, KindTranslation, tr.Kind())

	dst := make([]float64, 2)
	require.NoError(t, tr.TransformPoint64([]float64{1, 1}, 0, dst, 0, 1))
	assert.Equal(t, []float64{6, -1}, dst)
}

func TestClassifyScale(t *testing.T) {
	m := NewMatrix(3, 3, []*Number{
		Rat(1, 3), nil, nil,
		nil, Int(2), nil,
		nil, nil, Int(1),
	})
	tr := New(m)
	require.Equal(t, KindScale, tr.Kind())

	dst := make([]float64, 2)
	require.NoError(t, tr.TransformPoint64([]float64{9, 4}, 0, dst, 0, 1))
	assert.InDelta(t, 3.0, dst[0], 1e-9)
	assert.InDelta(t, 8.0, dst[1], 1e-9)
}

func TestOptimizeIsIdempotent(t *testing.T) {
	m := NewMatrix(3, 3, []*Number{
		Int(1), nil, Int(5),
		nil, Int(1), Int(-2),
		nil, nil, Int(1),
	})
	tr := New(m)
	once := Optimize(tr)
	twice := Optimize(once)
	assert.Equal(t, once.Kind(), twice.Kind())
}

func TestExactRatioSumsToUnity(t *testing.T) {
	// [1/3, 1/3, 1/3] row must sum to exactly 1 for x=[1,1], not an
	// approximation that drifts from rounding.
	m := NewMatrix(2, 3, []*Number{
		Rat(1, 3), Rat(1, 3), Rat(1, 3),
		nil, nil, Int(1),
	})
	tr := New(m)
	dst := make([]float64, 1)
	require.NoError(t, tr.TransformPoint64([]float64{1, 1}, 0, dst, 0, 1))
	assert.InDelta(t, 1.0, dst[0], 1e-15)
}

func TestProjectiveDivide(t *testing.T) {
	// A projective matrix where w depends on x: w = x + 1.
	m := NewMatrix(2, 2, []*Number{
		Int(2), nil,
		Int(1), Int(1),
	})
	tr := New(m)
	require.Equal(t, KindProjective, tr.Kind())
	dst := make([]float64, 1)
	require.NoError(t, tr.TransformPoint64([]float64{1}, 0, dst, 0, 1))
	assert.InDelta(t, 1.0, dst[0], 1e-12) // 2*1 / (1*1+1) = 1
}

func TestDerivativeAffineConstant(t *testing.T) {
	m := NewMatrix(3, 3, []*Number{
		Int(2), nil, Int(3),
		nil, Int(5), Int(1),
		nil, nil, Int(1),
	})
	tr := New(m)
	d := tr.Derivative([]float64{0, 0})
	assert.InDelta(t, 2.0, d.Element(0, 0), 1e-12)
	assert.InDelta(t, 0.0, d.Element(0, 1), 1e-12)
	assert.InDelta(t, 5.0, d.Element(1, 1), 1e-12)
}

func TestInverseTranslation(t *testing.T) {
	m := NewMatrix(3, 3, []*Number{
		Int(1), nil, Int(5),
		nil, Int(1), Int(-2),
		nil, nil, Int(1),
	})
	tr := New(m)
	inv, err := tr.Inverse()
	require.NoError(t, err)
	dst := make([]float64, 2)
	require.NoError(t, inv.TransformPoint64([]float64{6, -1}, 0, dst, 0, 1))
	assert.InDelta(t, 1.0, dst[0], 1e-12)
	assert.InDelta(t, 1.0, dst[1], 1e-12)
}

func TestInverseDimensionChangeFails(t *testing.T) {
	m := NewMatrix(2, 4, []*Number{
		Int(1), nil, nil, nil,
		nil, Int(1), nil, nil,
	})
	tr := New(m)
	_, err := tr.Inverse()
	assert.Error(t, err)
}

func TestMatrixElementOrNullInvariant(t *testing.T) {
	m := NewMatrix(2, 2, []*Number{Int(0 + 0), nil, Dbl(0), Int(1)})
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			n := m.ElementOrNull(i, j)
			if n == nil {
				assert.Equal(t, 0.0, m.Element(i, j))
			} else {
				assert.NotEqual(t, 0.0, m.Element(i, j))
			}
		}
	}
}
