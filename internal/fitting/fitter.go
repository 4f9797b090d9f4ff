package fitting

import (
	"math"

	"github.com/arxgeo/geocore/internal/diag"
	"github.com/arxgeo/geocore/internal/numeric"
	geoerrors "github.com/arxgeo/geocore/pkg/errors"
)

// Result is what Create() produces: the fitted transform, a Pearson
// correlation per target dimension, and the linearizer candidate selected
// (nil if none were supplied).
type Result struct {
	Transform    *numeric.Transform
	Correlations []float64
	Selected     *LinearizerCandidate
	Diagnostics  []diag.Diagnostic
}

// Builder accumulates control points and, optionally, linearizer
// candidates, then fits an affine transform on Create(). A Builder is not
// thread-safe and is single-owner; after Create() every mutator fails
// with CodeUnmodifiableState.
type Builder struct {
	targetDim int
	store     pointStore
	candidates []*LinearizerCandidate
	seenProj   map[string]bool // dedups ProjToGrid signatures

	created bool
	diags   diag.Accumulator
}

// NewScatteredBuilder creates a Builder in scattered mode for d_s source
// and d_t target dimensions. d_s must be 1 or 2 per spec.md §4.1.
func NewScatteredBuilder(srcDim, targetDim int) (*Builder, error) {
	if srcDim != 1 && srcDim != 2 {
		return nil, geoerrors.New(geoerrors.CodeInvalidInput, "LinearFitter supports source dimension 1 or 2")
	}
	if targetDim < 1 {
		return nil, geoerrors.New(geoerrors.CodeInvalidInput, "target dimension must be >= 1")
	}
	return &Builder{
		targetDim: targetDim,
		store:     pointStore{gridded: false, size: []int{srcDim}},
		seenProj:  make(map[string]bool),
	}, nil
}

// NewGridBuilder creates a Builder in gridded mode with the given size
// (1 or 2 axes). Fails with CodeInvalidInput if any size entry is < 1 or
// the product would exceed the addressable-index ceiling.
func NewGridBuilder(targetDim int, size ...int) (*Builder, error) {
	if len(size) != 1 && len(size) != 2 {
		return nil, geoerrors.New(geoerrors.CodeInvalidInput, "LinearFitter supports grid dimension 1 or 2")
	}
	if targetDim < 1 {
		return nil, geoerrors.New(geoerrors.CodeInvalidInput, "target dimension must be >= 1")
	}
	product, err := gridSizeProduct(size)
	if err != nil {
		return nil, err
	}
	targets := make([][]float64, targetDim)
	for j := range targets {
		targets[j] = make([]float64, product)
		if j == 0 {
			for i := range targets[j] {
				targets[j][i] = math.NaN()
			}
		}
	}
	return &Builder{
		targetDim: targetDim,
		store:     pointStore{gridded: true, size: append([]int(nil), size...), targets: targets},
		seenProj:  make(map[string]bool),
	}, nil
}

func (b *Builder) srcDim() int { return len(b.store.size) }

// SetControlPoint records a (source, target) control point. In gridded
// mode source must be integer-valued grid indices (len == srcDim); in
// scattered mode source is an arbitrary d_s-length coordinate. A non-finite
// target fails with CodeInvalidInput and leaves that slot's first target
// component as NaN (i.e. absent), matching spec.md §4.1.
func (b *Builder) SetControlPoint(source []float64, target []float64) error {
	if b.created {
		return geoerrors.New(geoerrors.CodeUnmodifiableState, "SetControlPoint called after Create")
	}
	if len(source) != b.srcDim() {
		return geoerrors.New(geoerrors.CodeInvalidInput, "source dimension mismatch")
	}
	if len(target) != b.targetDim {
		return geoerrors.New(geoerrors.CodeInvalidInput, "target dimension mismatch")
	}

	finite := allFinite(target)

	if b.store.gridded {
		idx := make([]int, len(source))
		for i, v := range source {
			idx[i] = int(math.Round(v))
		}
		flat, err := b.store.flatIndex(idx)
		if err != nil {
			return err
		}
		if !finite {
			b.store.targets[0][flat] = math.NaN()
			return geoerrors.New(geoerrors.CodeInvalidInput, "non-finite control point target")
		}
		for j := 0; j < b.targetDim; j++ {
			b.store.targets[j][flat] = target[j]
		}
		return nil
	}

	// Scattered: linear scan for an existing point with this source, per
	// spec.md's documented (intentionally O(n) per insertion, O(n^2)
	// overall) behavior; Go's
	// slice append already handles capacity growth, so no explicit
	// doubling logic is needed here.
	for i, s := range b.store.sources {
		if sourceEqual(s, source) {
			if !finite {
				b.store.scatTgt[i][0] = math.NaN()
				b.store.present[i] = false
				return geoerrors.New(geoerrors.CodeInvalidInput, "non-finite control point target")
			}
			copy(b.store.scatTgt[i], target)
			b.store.present[i] = true
			return nil
		}
	}
	b.store.sources = append(b.store.sources, append([]float64(nil), source...))
	tgtCopy := append([]float64(nil), target...)
	b.store.scatTgt = append(b.store.scatTgt, tgtCopy)
	if !finite {
		b.store.present = append(b.store.present, false)
		return geoerrors.New(geoerrors.CodeInvalidInput, "non-finite control point target")
	}
	b.store.present = append(b.store.present, true)
	return nil
}

func sourceEqual(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SetAllFromTransform populates a gridded Builder by applying gridToCRS to
// every grid index, batching one row's worth of source coordinates
// (fastest-varying axis first) per call, as spec.md §4.1 requires.
func (b *Builder) SetAllFromTransform(gridToCRS Transformer) error {
	if b.created {
		return geoerrors.New(geoerrors.CodeUnmodifiableState, "SetAllFromTransform called after Create")
	}
	if !b.store.gridded {
		return geoerrors.New(geoerrors.CodeInvalidInput, "SetAllFromTransform requires gridded mode")
	}
	if gridToCRS.SourceDimensions() != b.srcDim() {
		return geoerrors.New(geoerrors.CodeDimensionMismatch, "gridToCRS source dimension does not match grid")
	}
	if gridToCRS.TargetDimensions() != b.targetDim {
		return geoerrors.New(geoerrors.CodeDimensionMismatch, "gridToCRS target dimension does not match builder")
	}

	size := b.store.size
	rowLen := size[0]
	rows := 1
	if len(size) == 2 {
		rows = size[1]
	}
	srcBuf := make([]float64, rowLen*b.srcDim())
	dstBuf := make([]float64, rowLen*b.targetDim)
	for row := 0; row < rows; row++ {
		for i := 0; i < rowLen; i++ {
			srcBuf[i*b.srcDim()+0] = float64(i)
			if b.srcDim() == 2 {
				srcBuf[i*b.srcDim()+1] = float64(row)
			}
		}
		if err := gridToCRS.TransformPoint64(srcBuf, 0, dstBuf, 0, rowLen); err != nil {
			return err
		}
		for i := 0; i < rowLen; i++ {
			flat := row*rowLen + i
			for j := 0; j < b.targetDim; j++ {
				b.store.targets[j][flat] = dstBuf[i*b.targetDim+j]
			}
		}
	}
	return nil
}

// AddLinearizer registers a candidate. A dimension repeated within
// ProjToGrid, or a ProjToGrid signature already registered, is rejected
// with CodeInvalidInput (the spec's DuplicateNumber).
func (b *Builder) AddLinearizer(c *LinearizerCandidate) error {
	if b.created {
		return geoerrors.New(geoerrors.CodeUnmodifiableState, "AddLinearizer called after Create")
	}
	seenDim := make(map[int]bool, len(c.ProjToGrid))
	for _, dim := range c.ProjToGrid {
		if seenDim[dim] {
			return geoerrors.New(geoerrors.CodeInvalidInput, "duplicate dimension in projToGrid for linearizer candidate "+c.Name)
		}
		seenDim[dim] = true
	}
	key := projKey(c.ProjToGrid)
	if b.seenProj[key] {
		return geoerrors.New(geoerrors.CodeInvalidInput, "duplicate projToGrid for linearizer candidate "+c.Name)
	}
	b.seenProj[key] = true
	b.candidates = append(b.candidates, c)
	return nil
}

func projKey(proj []int) string {
	buf := make([]byte, 0, len(proj)*4)
	for _, p := range proj {
		buf = append(buf, byte(p), byte(p>>8), byte(p>>16), byte(p>>24))
	}
	return string(buf)
}
