package fitting

import "math"

// lineFit accumulates the sums needed to solve y = a*x + b by ordinary
// least squares without ever materializing the (x, y) arrays — the
// "closed-form specialization" spec.md §4.1 calls for, available for both
// gridded sources (x is an implicit index) and scattered ones (x is a
// stored coordinate) since neither needs more than these six running sums.
type lineFit struct {
	n              float64
	sx, sy         float64
	sxx, sxy, syy  float64
}

func (f *lineFit) add(x, y float64) {
	f.n++
	f.sx += x
	f.sy += y
	f.sxx += x * x
	f.sxy += x * y
	f.syy += y * y
}

// solve returns the fitted a, b and the Pearson correlation coefficient.
func (f *lineFit) solve() (a, b, r float64, ok bool) {
	if f.n < 2 {
		return 0, 0, 0, false
	}
	denom := f.n*f.sxx - f.sx*f.sx
	if denom == 0 {
		// All x identical: no slope is determined; fall back to a
		// horizontal line through the mean and an undefined (zero)
		// correlation.
		return 0, f.sy / f.n, 0, true
	}
	a = (f.n*f.sxy - f.sx*f.sy) / denom
	b = (f.sy - a*f.sx) / f.n

	covxy := f.sxy/f.n - (f.sx/f.n)*(f.sy/f.n)
	varx := f.sxx/f.n - (f.sx/f.n)*(f.sx/f.n)
	vary := f.syy/f.n - (f.sy/f.n)*(f.sy/f.n)
	if varx <= 0 || vary <= 0 {
		return a, b, 0, true
	}
	r = covxy / math.Sqrt(varx*vary)
	return a, b, r, true
}

// planeFit accumulates the sums needed to solve z = a*x + b*y + c by
// ordinary least squares over two predictors, again without materializing
// coordinate arrays.
type planeFit struct {
	n                          float64
	sx, sy, sz                 float64
	sxx, syy, sxy, sxz, syz    float64
}

func (f *planeFit) add(x, y, z float64) {
	f.n++
	f.sx += x
	f.sy += y
	f.sz += z
	f.sxx += x * x
	f.syy += y * y
	f.sxy += x * y
	f.sxz += x * z
	f.syz += y * z
}

// solve returns the fitted a, b, c. The normal equations are a 3x3 system
// solved directly (Cramer's rule), which is exact for the common
// exactly-determined 3-point case and a stable enough least squares
// solution for the general overdetermined case given the small matrix
// size involved.
func (f *planeFit) solve() (a, b, c float64, ok bool) {
	if f.n < 3 {
		return 0, 0, 0, false
	}
	// Normal equations:
	// [Sxx Sxy Sx] [a]   [Sxz]
	// [Sxy Syy Sy] [b] = [Syz]
	// [Sx  Sy  N ] [c]   [Sz ]
	m := [3][3]float64{
		{f.sxx, f.sxy, f.sx},
		{f.sxy, f.syy, f.sy},
		{f.sx, f.sy, f.n},
	}
	v := [3]float64{f.sxz, f.syz, f.sz}
	sol, ok := solve3(m, v)
	if !ok {
		return 0, 0, 0, false
	}
	return sol[0], sol[1], sol[2], true
}

// r2 returns the multiple-correlation coefficient (non-negative) given the
// fitted coefficients, recomputed in a second pass over the same (x, y, z)
// triples via the supplied iterator, since R^2 needs the residual sum of
// squares against the fit, not just the raw moment sums.
func (f *planeFit) r2(a, b, c float64, each func(add func(x, y, z float64))) float64 {
	meanZ := f.sz / f.n
	var ssRes, ssTot float64
	each(func(x, y, z float64) {
		fit := a*x + b*y + c
		ssRes += (z - fit) * (z - fit)
		ssTot += (z - meanZ) * (z - meanZ)
	})
	if ssTot <= 0 {
		return 0
	}
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		return 0
	}
	return r2
}

func solve3(m [3][3]float64, v [3]float64) ([3]float64, bool) {
	det := det3(m)
	if det == 0 {
		return [3]float64{}, false
	}
	var out [3]float64
	for col := 0; col < 3; col++ {
		mc := m
		for row := 0; row < 3; row++ {
			mc[row][col] = v[row]
		}
		out[col] = det3(mc) / det
	}
	return out, true
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}
