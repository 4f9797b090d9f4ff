package numeric

import (
	"fmt"
	"math"

	geoerrors "github.com/arxgeo/geocore/pkg/errors"
)

// Kind of specialized fast path a Transform has been reduced to. This is
// the tagged union the design notes prescribe in place of an
// identity/scale/translation/projective inheritance hierarchy.
type TransformKind int

const (
	KindProjective TransformKind = iota
	KindIdentity
	KindTranslation
	KindScale
)

func (k TransformKind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindTranslation:
		return "translation"
	case KindScale:
		return "scale"
	default:
		return "projective"
	}
}

// Transform is an immutable m x n extended-precision linear or projective
// transform, classified into its narrowest specialized form at
// construction time (the matrix itself is always retained so Derivative
// and the general path remain available).
type Transform struct {
	kind   TransformKind
	matrix *Matrix
	srcDim int
	dstDim int

	scale       []float64 // len == dstDim, valid for KindScale/KindIdentity
	translation []float64 // len == dstDim, valid for KindTranslation
}

// New classifies matrix into its narrowest specialized Transform. This is
// the "reduce/optimize" step: any matrix that structurally matches one of
// identity, translation, or scale is offered in that form.
func New(matrix *Matrix) *Transform {
	t := &Transform{
		matrix: matrix,
		srcDim: matrix.Cols() - 1,
		dstDim: matrix.Rows() - 1,
	}
	t.classify()
	return t
}

func (t *Transform) classify() {
	m := t.matrix
	rows, cols := m.Rows(), m.Cols()

	if !m.IsAffine() {
		t.kind = KindProjective
		return
	}

	// Off-diagonal non-homogeneous entries must all be zero for either
	// Scale or Translation to apply.
	diagOnly := true
	for i := 0; i < rows-1 && diagOnly; i++ {
		for j := 0; j < cols-1; j++ {
			if i == j {
				continue
			}
			if m.Element(i, j) != 0 {
				diagOnly = false
				break
			}
		}
	}
	if !diagOnly {
		t.kind = KindProjective
		return
	}

	unitDiagonal := rows == cols
	for i := 0; i < rows-1 && unitDiagonal; i++ {
		if m.Element(i, i) != 1 {
			unitDiagonal = false
		}
	}

	translation := make([]float64, rows-1)
	hasTranslation := false
	for i := 0; i < rows-1; i++ {
		v := m.Element(i, cols-1)
		translation[i] = v
		if v != 0 {
			hasTranslation = true
		}
	}

	if unitDiagonal && !hasTranslation {
		t.kind = KindIdentity
		t.scale = onesOf(rows - 1)
		return
	}
	if unitDiagonal && hasTranslation {
		t.kind = KindTranslation
		t.translation = translation
		return
	}
	if !hasTranslation {
		scale := make([]float64, rows-1)
		for i := range scale {
			if i < cols-1 {
				scale[i] = m.Element(i, i)
			}
		}
		t.kind = KindScale
		t.scale = scale
		return
	}
	// Diagonal scale combined with a non-zero translation column doesn't
	// fit the spec's four shapes cleanly; fall back to the general path.
	t.kind = KindProjective
}

func onesOf(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}

// Kind reports which specialized form this transform was reduced to.
func (t *Transform) Kind() TransformKind { return t.kind }

// SourceDimensions and TargetDimensions report the transform's arity.
func (t *Transform) SourceDimensions() int { return t.srcDim }
func (t *Transform) TargetDimensions() int { return t.dstDim }

// Matrix exposes the underlying extended-precision matrix, e.g. for
// concatenation.
func (t *Transform) Matrix() *Matrix { return t.matrix }

// Optimize re-derives the narrowest specialized form from the transform's
// matrix. It is idempotent: Optimize(Optimize(t)) == Optimize(t)
// structurally, since classification is a pure function of the matrix.
func Optimize(t *Transform) *Transform {
	return New(t.matrix)
}

// TransformPoint64 transforms n points of srcDim coordinates packed in
// src (starting at srcOff) into dstDim coordinates packed in dst
// (starting at dstOff), in double precision.
func (t *Transform) TransformPoint64(src []float64, srcOff int, dst []float64, dstOff int, n int) error {
	return t.transform64(src, srcOff, dst, dstOff, n)
}

// TransformPoint32 is the single-precision variant. Internally it computes
// in double precision and rounds once at the end, so results are
// consistent to within one ULP of the double-precision result as required
// by spec.md §4.3.
func (t *Transform) TransformPoint32(src []float32, srcOff int, dst []float32, dstOff int, n int) error {
	src64 := make([]float64, n*t.srcDim)
	for i, v := range src[srcOff : srcOff+n*t.srcDim] {
		src64[i] = float64(v)
	}
	dst64 := make([]float64, n*t.dstDim)
	if err := t.transform64(src64, 0, dst64, 0, n); err != nil {
		return err
	}
	for i, v := range dst64 {
		dst[dstOff+i] = float32(v)
	}
	return nil
}

// TransformPointMixed reads float32 source coordinates and writes float64
// destination coordinates (or the reverse via TransformPointMixed64to32),
// covering the "mixed-precision variants" spec.md §4.3 requires.
func (t *Transform) TransformPointMixed(src []float32, srcOff int, dst []float64, dstOff int, n int) error {
	src64 := make([]float64, n*t.srcDim)
	for i, v := range src[srcOff : srcOff+n*t.srcDim] {
		src64[i] = float64(v)
	}
	return t.transform64(src64, 0, dst, dstOff, n)
}

// TransformPointMixed64to32 reads float64 source coordinates and writes
// float32 destination coordinates, rounding once at the end.
func (t *Transform) TransformPointMixed64to32(src []float64, srcOff int, dst []float32, dstOff int, n int) error {
	dst64 := make([]float64, n*t.dstDim)
	if err := t.transform64(src, srcOff, dst64, 0, n); err != nil {
		return err
	}
	for i, v := range dst64 {
		dst[dstOff+i] = float32(v)
	}
	return nil
}

func (t *Transform) transform64(src []float64, srcOff int, dst []float64, dstOff int, n int) error {
	if len(src) < srcOff+n*t.srcDim || len(dst) < dstOff+n*t.dstDim {
		return geoerrors.New(geoerrors.CodeInvalidInput, "transform: buffer too small for n points")
	}
	iterateInPlace(src, srcOff, dst, dstOff, n, t.srcDim, t.dstDim, func(x, y []float64) {
		t.transformOne(x, y)
	})
	return nil
}

// iterateInPlace determines ascending/descending/copy iteration order
// based on whether src and dst alias overlapping memory, so that writing
// earlier points doesn't clobber source data needed for later ones —
// mirroring LinearCore's point-transform overlap handling.
func iterateInPlace(src []float64, srcOff int, dst []float64, dstOff int, n, srcDim, dstDim int, f func(x, y []float64)) {
	if n == 0 {
		return
	}
	sameBuffer := len(src) > 0 && len(dst) > 0 && &src[0] == &dst[0]
	descending := sameBuffer && dstOff > srcOff && dstDim >= srcDim
	x := make([]float64, srcDim)
	y := make([]float64, dstDim)
	if descending {
		for i := n - 1; i >= 0; i-- {
			copy(x, src[srcOff+i*srcDim:srcOff+(i+1)*srcDim])
			f(x, y)
			copy(dst[dstOff+i*dstDim:dstOff+(i+1)*dstDim], y)
		}
		return
	}
	for i := 0; i < n; i++ {
		copy(x, src[srcOff+i*srcDim:srcOff+(i+1)*srcDim])
		f(x, y)
		copy(dst[dstOff+i*dstDim:dstOff+(i+1)*dstDim], y)
	}
}

func (t *Transform) transformOne(x, y []float64) {
	switch t.kind {
	case KindIdentity:
		copy(y, x)
	case KindTranslation:
		for i := range y {
			y[i] = x[i] + t.translation[i]
		}
	case KindScale:
		for i := range y {
			if i < len(x) {
				y[i] = x[i] * t.scale[i]
			} else {
				y[i] = 0
			}
		}
	default:
		t.transformProjective(x, y)
	}
}

func (t *Transform) transformProjective(x, y []float64) {
	m := t.matrix
	cols := t.srcDim + 1
	w := 1.0
	if !m.IsAffine() {
		w = rowSum(m, t.dstDim, x, cols) / m.RowDenominator(t.dstDim)
	}
	for i := 0; i < t.dstDim; i++ {
		d := m.RowDenominator(i)
		y[i] = rowSum(m, i, x, cols) / (w * d)
	}
}

// rowSum computes row i's contribution (using the fast, possibly
// pre-scaled entries) for input x, skipping multiplications against a
// zero coefficient so that a NaN in an excluded input dimension never
// poisons the sum — this is the behavior spec.md §4.3 calls out
// explicitly ("this matters when NaN appears in excluded input
// dimensions").
func rowSum(m *Matrix, i int, x []float64, cols int) float64 {
	sum := 0.0
	base := i * cols
	for j := 0; j < cols-1; j++ {
		c := m.fast[base+j]
		if c == 0 {
			continue
		}
		sum += c * x[j]
	}
	sum += m.fast[base+cols-1] // translation / homogeneous constant
	return sum
}

// Derivative returns the dstDim x srcDim Jacobian at pt. For affine
// transforms this is constant (the non-homogeneous block); for projective
// transforms it depends on pt via the quotient rule over the homogeneous
// divisor.
func (t *Transform) Derivative(pt []float64) *Matrix {
	if t.matrix.IsAffine() {
		data := make([]float64, t.dstDim*t.srcDim)
		for i := 0; i < t.dstDim; i++ {
			d := t.matrix.RowDenominator(i)
			for j := 0; j < t.srcDim; j++ {
				data[i*t.srcDim+j] = t.matrix.fast[i*(t.srcDim+1)+j] / d
			}
		}
		return NewMatrixFromFloat64(t.dstDim, t.srcDim, data)
	}

	cols := t.srcDim + 1
	w := rowSum(t.matrix, t.dstDim, pt, cols) / t.matrix.RowDenominator(t.dstDim)
	data := make([]float64, t.dstDim*t.srcDim)
	for i := 0; i < t.dstDim; i++ {
		di := t.matrix.RowDenominator(i)
		ni := rowSum(t.matrix, i, pt, cols) / di
		for k := 0; k < t.srcDim; k++ {
			mik := t.matrix.fast[i*cols+k] / di
			mlk := t.matrix.fast[t.dstDim*cols+k] / t.matrix.RowDenominator(t.dstDim)
			data[i*t.srcDim+k] = (mik*w - ni*mlk) / w
		}
	}
	return NewMatrixFromFloat64(t.dstDim, t.srcDim, data)
}

// Inverse returns the inverse transform. Only square transforms (equal
// source and target dimension) can be inverted; a dimension-changing
// transform (e.g. one that drops or adds an axis) has no well-defined
// point inverse and returns a DimensionMismatch error.
func (t *Transform) Inverse() (*Transform, error) {
	if t.srcDim != t.dstDim {
		return nil, geoerrors.New(geoerrors.CodeDimensionMismatch,
			fmt.Sprintf("cannot invert a %d->%d dimension-changing transform", t.srcDim, t.dstDim))
	}
	switch t.kind {
	case KindIdentity:
		return t, nil
	case KindTranslation:
		n := t.dstDim + 1
		neg := make([]*Number, n*n)
		for i := 0; i < n; i++ {
			neg[i*n+i] = Int(1)
		}
		for i := 0; i < t.dstDim; i++ {
			neg[i*n+t.dstDim] = Dbl(-t.translation[i])
		}
		return New(NewMatrix(n, n, neg)), nil
	case KindScale:
		inv := make([]*Number, (t.dstDim+1)*(t.dstDim+1))
		n := t.dstDim + 1
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i != j {
					continue
				}
				if i == t.dstDim {
					inv[i*n+j] = Int(1)
					continue
				}
				if t.scale[i] == 0 {
					return nil, geoerrors.New(geoerrors.CodeInternalInvariantViolation, "cannot invert a zero-scale transform")
				}
				inv[i*n+j] = Dbl(1 / t.scale[i])
			}
		}
		return New(NewMatrix(n, n, inv)), nil
	default:
		inv, err := invertGeneral(t.matrix)
		if err != nil {
			return nil, err
		}
		return New(inv), nil
	}
}

// invertGeneral inverts a square matrix via Gauss-Jordan elimination with
// partial pivoting, operating on doubles (exact-ratio preservation is not
// attempted for general inversion; concatenation of already-built
// transforms is where exactness matters most).
func invertGeneral(m *Matrix) (*Matrix, error) {
	n := m.Rows()
	if m.Cols() != n {
		return nil, geoerrors.New(geoerrors.CodeDimensionMismatch, "cannot invert a non-square matrix")
	}
	a := make([][]float64, n)
	for i := range a {
		a[i] = make([]float64, 2*n)
		for j := 0; j < n; j++ {
			a[i][j] = m.Element(i, j)
		}
		a[i][n+i] = 1
	}
	for col := 0; col < n; col++ {
		pivot := col
		best := math.Abs(a[col][col])
		for r := col + 1; r < n; r++ {
			if v := math.Abs(a[r][col]); v > best {
				pivot, best = r, v
			}
		}
		if best == 0 {
			return nil, geoerrors.New(geoerrors.CodeInternalInvariantViolation, "matrix is singular")
		}
		a[col], a[pivot] = a[pivot], a[col]
		pv := a[col][col]
		for j := 0; j < 2*n; j++ {
			a[col][j] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := a[r][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				a[r][j] -= factor * a[col][j]
			}
		}
	}
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = a[i][n+j]
		}
	}
	return NewMatrixFromFloat64(n, n, out), nil
}
