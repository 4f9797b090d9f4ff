package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatReducesToLowestTerms(t *testing.T) {
	n := Rat(2, 4)
	assert.Equal(t, int64(1), n.Numerator())
	assert.Equal(t, int64(2), n.Denominator())
}

func TestZeroIsNil(t *testing.T) {
	assert.Nil(t, Int(0))
	assert.Nil(t, Rat(0, 5))
	assert.Nil(t, Dbl(0))
}

func TestAddPreservesExactness(t *testing.T) {
	sum := Add(Rat(1, 3), Rat(1, 3))
	assert.True(t, sum.IsRational())
	assert.InDelta(t, 2.0/3.0, sum.Float64(), 1e-15)
}

func TestMulOverflowFallsBackToDouble(t *testing.T) {
	big := Rat(1<<62, 1)
	product := Mul(big, big)
	assert.False(t, product.IsRational())
}

func TestCommonDenominatorThirds(t *testing.T) {
	den, ok := CommonDenominator([]*Number{Rat(1, 3), Rat(1, 3), Rat(1, 3)})
	assert.True(t, ok)
	assert.Equal(t, int64(3), den)
}

func TestCommonDenominatorRejectsDouble(t *testing.T) {
	_, ok := CommonDenominator([]*Number{Rat(1, 3), Dbl(0.5)})
	assert.False(t, ok)
}
