package grid

import "math"

// Encoding names which of ShiftGridData's three representations a Data
// holds.
type Encoding int

const (
	// EncodingFloat32 stores raw single-precision values.
	EncodingFloat32 Encoding = iota
	// EncodingFloat64 stores raw double-precision values.
	EncodingFloat64
	// EncodingQuantized stores per-dimension int16 offsets from a
	// per-dimension average, scaled by a single shared scale factor.
	EncodingQuantized
)

// Data holds translation values per target dimension, in one of the three
// encodings spec.md §3 describes. Exactly one of float32s/float64s/shorts
// is populated, per Encoding.
type Data struct {
	Dims int
	N    int // n_x * n_y

	Encoding Encoding

	float32s [][]float32
	float64s [][]float64

	shorts   [][]int16
	averages []float64
	scale    float64
}

// NewFloat32Data builds a raw single-precision Data.
func NewFloat32Data(values [][]float32) *Data {
	n := 0
	if len(values) > 0 {
		n = len(values[0])
	}
	return &Data{Dims: len(values), N: n, Encoding: EncodingFloat32, float32s: values}
}

// NewFloat64Data builds a raw double-precision Data.
func NewFloat64Data(values [][]float64) *Data {
	n := 0
	if len(values) > 0 {
		n = len(values[0])
	}
	return &Data{Dims: len(values), N: n, Encoding: EncodingFloat64, float64s: values}
}

// Value returns the logical translation value for dimension dim at flat
// cell index idx, reconstructing from the compressed form when applicable.
func (d *Data) Value(dim, idx int) float64 {
	switch d.Encoding {
	case EncodingFloat32:
		return float64(d.float32s[dim][idx])
	case EncodingFloat64:
		return d.float64s[dim][idx]
	default:
		return float64(d.shorts[dim][idx])*d.scale + d.averages[dim]
	}
}

// SameData reports whether d and other hold bitwise-equal data arrays,
// the equality shareData tests before swapping references.
func (d *Data) SameData(other *Data) bool {
	if d.Encoding != other.Encoding || d.Dims != other.Dims || d.N != other.N {
		return false
	}
	switch d.Encoding {
	case EncodingFloat32:
		return equal2DFloat32(d.float32s, other.float32s)
	case EncodingFloat64:
		return equal2DFloat64(d.float64s, other.float64s)
	default:
		if d.scale != other.scale {
			return false
		}
		for i := range d.averages {
			if d.averages[i] != other.averages[i] {
				return false
			}
		}
		return equal2DInt16(d.shorts, other.shorts)
	}
}

func equal2DFloat32(a, b [][]float32) bool {
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func equal2DFloat64(a, b [][]float64) bool {
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

func equal2DInt16(a, b [][]int16) bool {
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// Compress attempts to build a quantized-short encoding of a raw
// single-precision Data at the given scale. For each dimension the
// average is round(mean/scale)*scale; for each cell q =
// round(value/scale - average/scale), and the cell is accepted only if
// the reconstruction error is within one ULP of the original value. If
// any cell in any dimension exceeds that tolerance, Compress fails and
// returns the source grid unchanged (per spec.md's documented fallback).
func Compress(src *Data, scale float64) *Data {
	if src.Encoding != EncodingFloat32 || scale == 0 {
		return src
	}
	averages := make([]float64, src.Dims)
	shorts := make([][]int16, src.Dims)
	for dim := 0; dim < src.Dims; dim++ {
		mean := meanOf(src.float32s[dim])
		avg := math.Round(mean/scale) * scale
		averages[dim] = avg

		row := make([]int16, src.N)
		for i, v := range src.float32s[dim] {
			value := float64(v)
			q := math.Round(value/scale - avg/scale)
			reconstructed := q*scale + avg
			tol := math.Max(ulpFloat32(v), 1e-12)
			if math.Abs(value-reconstructed) > tol {
				return src
			}
			if q < math.MinInt16 || q > math.MaxInt16 {
				return src
			}
			row[i] = int16(q)
		}
		shorts[dim] = row
	}
	return &Data{
		Dims:     src.Dims,
		N:        src.N,
		Encoding: EncodingQuantized,
		shorts:   shorts,
		averages: averages,
		scale:    scale,
	}
}

func meanOf(values []float32) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// ulpFloat32 returns the unit in the last place of v's float32
// representation, expressed as a float64, used as the compression and
// round-trip tolerance spec.md §8 calls for.
func ulpFloat32(v float32) float64 {
	if v == 0 {
		return math.SmallestNonzeroFloat32
	}
	bits := math.Float32bits(v)
	next := math.Float32frombits(bits + 1)
	return math.Abs(float64(next) - float64(v))
}
