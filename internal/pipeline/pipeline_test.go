package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxgeo/geocore/internal/spatial"
)

// passthroughKernel is a 2D -> 2D identity-shaped kernel with no
// ellipsoid parameters, standing in for a map projection kernel in
// tests that only care about pipeline arity bookkeeping.
type passthroughKernel struct {
	params ParameterGroup
}

func (k passthroughKernel) SourceDimensions() int { return 2 }
func (k passthroughKernel) TargetDimensions() int { return 2 }
func (k passthroughKernel) TransformPoint64(src []float64, srcOff int, dst []float64, dstOff int, n int) error {
	copy(dst[dstOff:dstOff+n*2], src[srcOff:srcOff+n*2])
	return nil
}
func (k passthroughKernel) Parameters() ParameterGroup { return k.params }

func TestStateMachineOrder(t *testing.T) {
	p := New()
	assert.Equal(t, Fresh, p.State())

	require.NoError(t, p.SetSource(spatial.Geographic2D{Unit: spatial.Degree}, nil))
	assert.Equal(t, AxesBound, p.State())

	require.NoError(t, p.SetTarget(spatial.Geographic2D{Unit: spatial.Degree}, nil))
	require.NoError(t, p.CompleteParameters(nil))
	assert.Equal(t, ParamsCompleted, p.State())

	_, err := p.Assemble("test", passthroughKernel{})
	require.NoError(t, err)
	assert.Equal(t, Built, p.State())

	err = p.SetSource(spatial.Geographic2D{Unit: spatial.Degree}, nil)
	require.Error(t, err)
}

func TestSetSourceCalledTwiceFails(t *testing.T) {
	p := New()
	require.NoError(t, p.SetSource(spatial.Geographic2D{Unit: spatial.Degree}, nil))
	err := p.SetSource(spatial.Geographic2D{Unit: spatial.Degree}, nil)
	require.Error(t, err)
}

func TestEllipsoidMismatchAttachesWarning(t *testing.T) {
	p := New()
	require.NoError(t, p.SetSource(spatial.Geographic2D{Unit: spatial.Degree}, spatial.WGS84))
	require.NoError(t, p.SetTarget(spatial.Geographic2D{Unit: spatial.Degree}, nil))

	params := NewMapParameterGroup(ParamSemiMajorAxis)
	param, _ := params.Parameter(ParamSemiMajorAxis)
	param.SetValue(spatial.WGS84.SemiMajorAxis() + 10) // off by far more than 1cm

	require.NoError(t, p.CompleteParameters(params))
	diags := p.Diagnostics()
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message(), "disagrees")
}

func TestCompleteParametersFillsUnsetValue(t *testing.T) {
	p := New()
	require.NoError(t, p.SetSource(spatial.Geographic2D{Unit: spatial.Degree}, spatial.WGS84))
	require.NoError(t, p.SetTarget(spatial.Geographic2D{Unit: spatial.Degree}, nil))

	params := NewMapParameterGroup(ParamSemiMajorAxis, ParamSemiMinorAxis, ParamInverseFlattening)
	require.NoError(t, p.CompleteParameters(params))

	major, _ := params.Parameter(ParamSemiMajorAxis)
	assert.True(t, major.IsSet())
	assert.InDelta(t, spatial.WGS84.SemiMajorAxis(), major.Value(), 1e-6)
	assert.Empty(t, p.Diagnostics())
}

// TestDimensionAdjustPipeline is spec.md §8 scenario 4: a 3-D ellipsoidal
// source, a 2-D kernel, and a 2-D target produce norm(3->2 drop height)
// -> kernel(2->2) -> denorm(2->2), and applying the assembled transform
// to (lambda, phi, h) matches applying the 2-D kernel directly to
// (lambda, phi).
func TestDimensionAdjustPipeline(t *testing.T) {
	p := New()
	require.NoError(t, p.SetSource(spatial.Geographic3D{Unit: spatial.Radian, HeightUnit: spatial.Metre}, spatial.WGS84))
	require.NoError(t, p.SetTarget(spatial.Geographic2D{Unit: spatial.Radian}, nil))
	require.NoError(t, p.CompleteParameters(nil))

	transform, err := p.Assemble("passthrough", passthroughKernel{})
	require.NoError(t, err)
	assert.Equal(t, 3, transform.SourceDimensions())
	assert.Equal(t, 2, transform.TargetDimensions())

	src := []float64{0.5, 0.3, 100}
	dst := make([]float64, 2)
	require.NoError(t, transform.TransformPoint64(src, 0, dst, 0, 1))

	assert.InDelta(t, 0.5, dst[0], 1e-9)
	assert.InDelta(t, 0.3, dst[1], 1e-9)
}

func TestAssembleFailsOnUnresolvableDimensionChange(t *testing.T) {
	p := New()
	require.NoError(t, p.SetSource(spatial.Cartesian2D{Unit: spatial.Metre}, nil))
	require.NoError(t, p.SetTarget(spatial.Geographic2D{Unit: spatial.Degree}, nil))
	require.NoError(t, p.CompleteParameters(nil))

	fourDKernel := fixedDimKernel{in: 4, out: 2}
	_, err := p.Assemble("bad-kernel", fourDKernel)
	require.Error(t, err)
}

type fixedDimKernel struct{ in, out int }

func (k fixedDimKernel) SourceDimensions() int { return k.in }
func (k fixedDimKernel) TargetDimensions() int { return k.out }
func (k fixedDimKernel) TransformPoint64(src []float64, srcOff int, dst []float64, dstOff int, n int) error {
	return nil
}
func (k fixedDimKernel) Parameters() ParameterGroup { return nil }
