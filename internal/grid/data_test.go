package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompressionRoundTrip is spec.md §8 scenario 2: a 3x3 float grid
// with tenths-of-a-unit values compresses at scale 0.1 and reconstructs
// to within one ULP of the original float at every cell.
func TestCompressionRoundTrip(t *testing.T) {
	values := []float32{0.1, 0.2, 0.3, 0.2, 0.3, 0.4, 0.3, 0.4, 0.5}
	src := NewFloat32Data([][]float32{values})

	compressed := Compress(src, 0.1)
	require.Equal(t, EncodingQuantized, compressed.Encoding, "expected compression to succeed at scale 0.1")

	for i, want := range values {
		got := compressed.Value(0, i)
		tol := ulpFloat32(want)
		assert.LessOrEqual(t, math.Abs(got-float64(want)), tol,
			"cell %d: got %v want %v (tol %v)", i, got, want, tol)
	}
}

func TestCompressionFallsBackWhenToleranceExceeded(t *testing.T) {
	// Values with no shared quantization scale that fits an int16 step of
	// 1.0: the fractional remainders can't all round-trip within one ULP.
	values := []float32{0.0, 0.33333334, 0.1, 0.9999999}
	src := NewFloat32Data([][]float32{values})

	result := Compress(src, 1.0)
	assert.Equal(t, EncodingFloat32, result.Encoding, "expected compression to fall back to the source encoding")
	assert.Same(t, src, result)
}

func TestSameDataIdentity(t *testing.T) {
	a := NewFloat64Data([][]float64{{1, 2, 3}})
	b := NewFloat64Data([][]float64{{1, 2, 3}})
	c := NewFloat64Data([][]float64{{1, 2, 4}})

	assert.True(t, a.SameData(b))
	assert.False(t, a.SameData(c))
}
