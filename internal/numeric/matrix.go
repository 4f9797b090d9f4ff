package numeric

import "fmt"

// Matrix is an m x n extended-precision matrix with two coexisting
// representations per spec.md §3: the exact Number-typed entries (which
// preserve ratios through concatenation) and a fast double array with a
// per-row denominator, used by the hot point-transform path.
type Matrix struct {
	rows, cols int
	elems      []*Number // row-major, len == rows*cols; nil entries are exact zero
	fast       []float64 // row-major, len == rows*cols; row i holds integer-valued
	// numerators when denom[i] != 1, or the raw double coefficients when
	// denom[i] == 1 (the common case for non-rational rows).
	denom []float64 // len == rows
}

// NewMatrix builds a Matrix from a row-major slice of Numbers and derives
// the fast representation. It panics if len(elems) != rows*cols, which
// indicates a caller bug rather than a recoverable condition.
func NewMatrix(rows, cols int, elems []*Number) *Matrix {
	if len(elems) != rows*cols {
		panic(fmt.Sprintf("numeric: matrix element count %d does not match %dx%d", len(elems), rows, cols))
	}
	m := &Matrix{
		rows:  rows,
		cols:  cols,
		elems: append([]*Number(nil), elems...),
		fast:  make([]float64, rows*cols),
		denom: make([]float64, rows),
	}
	m.deriveFast()
	return m
}

// NewMatrixFromFloat64 builds a Matrix directly from doubles; every entry
// is treated as a KindDouble Number (exact zero is still recognized so
// ElementOrNull behaves correctly).
func NewMatrixFromFloat64(rows, cols int, data []float64) *Matrix {
	elems := make([]*Number, len(data))
	for i, v := range data {
		elems[i] = Dbl(v)
	}
	return NewMatrix(rows, cols, elems)
}

func (m *Matrix) deriveFast() {
	for i := 0; i < m.rows; i++ {
		row := m.elems[i*m.cols : (i+1)*m.cols]
		den, ok := CommonDenominator(row)
		if !ok || den == 0 {
			m.denom[i] = 1
			for j, e := range row {
				m.fast[i*m.cols+j] = e.Float64()
			}
			continue
		}
		m.denom[i] = float64(den)
		for j, e := range row {
			if e == nil {
				m.fast[i*m.cols+j] = 0
				continue
			}
			// e.Float64() * den is exact for any rational entry whose
			// denominator divides den, which CommonDenominator guarantees.
			m.fast[i*m.cols+j] = e.Float64() * float64(den)
		}
	}
}

// Rows and Cols report the matrix shape.
func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

// Element returns the double value at (i, j).
func (m *Matrix) Element(i, j int) float64 {
	return m.elems[i*m.cols+j].Float64()
}

// ElementOrNull returns nil when the entry at (i, j) is exact zero, and a
// Number otherwise — the invariant tested in spec.md §8:
// "M.getElementOrNull(i,j) == null <=> M.getElement(i,j) == 0.0".
func (m *Matrix) ElementOrNull(i, j int) *Number {
	return m.elems[i*m.cols+j]
}

// RowDenominator returns the per-row denominator of the fast
// representation (1.0 for rows with no exact-rational structure).
func (m *Matrix) RowDenominator(i int) float64 {
	return m.denom[i]
}

// FastElement returns the (possibly pre-scaled) fast-path entry at (i, j).
// When RowDenominator(i) != 1, FastElement(i,j)/RowDenominator(i) ==
// Element(i,j) to within one ULP, per the Matrix invariant in spec.md §3.
func (m *Matrix) FastElement(i, j int) float64 {
	return m.fast[i*m.cols+j]
}

// IsAffine reports whether the matrix's last row is the homogeneous
// identity row [0 ... 0 1], i.e. it needs no perspective divide.
func (m *Matrix) IsAffine() bool {
	last := m.rows - 1
	for j := 0; j < m.cols-1; j++ {
		if m.Element(last, j) != 0 {
			return false
		}
	}
	return m.Element(last, m.cols-1) == 1
}

// Multiply returns the matrix product C = a*b, such that C*[x;1] =
// a*(b*[x;1]) when a and b are composed as homogeneous transforms: b is
// applied first, then a. Shapes must satisfy a.cols == b.rows.
func Multiply(a, b *Matrix) *Matrix {
	if a.cols != b.rows {
		panic(fmt.Sprintf("numeric: cannot multiply %dx%d by %dx%d", a.rows, a.cols, b.rows, b.cols))
	}
	out := make([]*Number, a.rows*b.cols)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < b.cols; j++ {
			var sum *Number
			for k := 0; k < a.cols; k++ {
				sum = Add(sum, Mul(a.ElementOrNull(i, k), b.ElementOrNull(k, j)))
			}
			out[i*b.cols+j] = sum
		}
	}
	return NewMatrix(a.rows, b.cols, out)
}

// Equal reports whether two matrices agree at every entry to within the
// given absolute tolerance, comparing the Number-typed entries.
func (m *Matrix) Equal(other *Matrix, tol float64) bool {
	if m.rows != other.rows || m.cols != other.cols {
		return false
	}
	for i := 0; i < m.rows*m.cols; i++ {
		if diff := m.elems[i].Float64() - other.elems[i].Float64(); diff > tol || diff < -tol {
			return false
		}
	}
	return true
}
