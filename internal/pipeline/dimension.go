package pipeline

import (
	"math"
	"strconv"

	"github.com/arxgeo/geocore/internal/spatial"
	geoerrors "github.com/arxgeo/geocore/pkg/errors"
)

// heightInsert appends a constant ellipsoidal-height dimension (default
// 0) to every point, used when a kernel needs one more source dimension
// than the normalized source CS supplies and no spherical-radius
// ellipsoid is configured.
type heightInsert struct {
	srcDim int
	value  float64
}

func (h heightInsert) SourceDimensions() int { return h.srcDim }
func (h heightInsert) TargetDimensions() int { return h.srcDim + 1 }

func (h heightInsert) TransformPoint64(src []float64, srcOff int, dst []float64, dstOff int, n int) error {
	for i := 0; i < n; i++ {
		copy(dst[dstOff+i*(h.srcDim+1):], src[srcOff+i*h.srcDim:srcOff+(i+1)*h.srcDim])
		dst[dstOff+i*(h.srcDim+1)+h.srcDim] = h.value
	}
	return nil
}

// sphericalRadiusInsert appends a spherical-radius dimension computed from
// the point's latitude (assumed to be normalized-order axis index 1) on
// the given ellipsoid, the alternative spec.md §4.4 step 3 names to a
// fixed default height.
type sphericalRadiusInsert struct {
	srcDim    int
	ellipsoid spatial.Ellipsoid
}

func (s sphericalRadiusInsert) SourceDimensions() int { return s.srcDim }
func (s sphericalRadiusInsert) TargetDimensions() int { return s.srcDim + 1 }

func (s sphericalRadiusInsert) TransformPoint64(src []float64, srcOff int, dst []float64, dstOff int, n int) error {
	for i := 0; i < n; i++ {
		lat := src[srcOff+i*s.srcDim+1]
		copy(dst[dstOff+i*(s.srcDim+1):], src[srcOff+i*s.srcDim:srcOff+(i+1)*s.srcDim])
		dst[dstOff+i*(s.srcDim+1)+s.srcDim] = spatial.RadiusAtLatitude(s.ellipsoid, lat)
	}
	return nil
}

// trailingAdjust drops trailing output dimensions when in > out, or pads
// with NaN ("unknown") trailing dimensions when in < out, per spec.md
// §4.4 step 4.
type trailingAdjust struct {
	in, out int
}

func (t trailingAdjust) SourceDimensions() int { return t.in }
func (t trailingAdjust) TargetDimensions() int { return t.out }

func (t trailingAdjust) TransformPoint64(src []float64, srcOff int, dst []float64, dstOff int, n int) error {
	keep := t.in
	if t.out < keep {
		keep = t.out
	}
	for i := 0; i < n; i++ {
		copy(dst[dstOff+i*t.out:dstOff+i*t.out+keep], src[srcOff+i*t.in:srcOff+i*t.in+keep])
		for j := keep; j < t.out; j++ {
			dst[dstOff+i*t.out+j] = math.NaN()
		}
	}
	return nil
}

// dimensionChangeAllowed reports whether a dimension change from have
// to want is acceptable per spec.md §4.4 step 6: the change must be {±1}
// and at least one side (source or target) is ellipsoidal with dimension
// in [2,3].
func dimensionChangeAllowed(have, want int, sourceEllipsoidal, targetEllipsoidal bool) bool {
	delta := want - have
	if delta != 1 && delta != -1 {
		return false
	}
	ellipsoidalInRange := func(ok bool, dim int) bool { return ok && dim >= 2 && dim <= 3 }
	return ellipsoidalInRange(sourceEllipsoidal, have) || ellipsoidalInRange(targetEllipsoidal, want) ||
		ellipsoidalInRange(sourceEllipsoidal, want) || ellipsoidalInRange(targetEllipsoidal, have)
}

func cannotAssociateCS(kernelName string, aDim, bDim, cDim, dDim, eDim int) error {
	return geoerrors.New(geoerrors.CodeDimensionMismatch,
		arityMessage(kernelName, aDim, bDim, cDim, dDim, eDim))
}

func arityMessage(kernelName string, aDim, bDim, cDim, dDim, eDim int) string {
	return kernelName + ": cannot associate coordinate systems (" +
		dimSummary(aDim, bDim, cDim, dDim, eDim) + ")"
}

func dimSummary(aDim, bDim, cDim, dDim, eDim int) string {
	i := strconv.Itoa
	return i(aDim) + "D -> tr(" + i(bDim) + "D->" + i(cDim) + "D) -> " + i(dDim) + "D (kernel " + i(eDim) + "D)"
}
