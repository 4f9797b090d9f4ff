package fitting

import (
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/arxgeo/geocore/internal/numeric"
	geoerrors "github.com/arxgeo/geocore/pkg/errors"
)

// maxConcurrentCandidateTrials bounds how many linearizer candidates are
// fitted at once. Each trial is independent (it works against its own
// cloned target arrays, never the builder's live store), so the only
// reason to bound it is to avoid one Create() call spawning an unbounded
// number of goroutines when a caller registers a large candidate set.
const maxConcurrentCandidateTrials = 4

// liveTargets returns the builder's live per-dimension (gridded) or
// per-point (scattered) target arrays — the arrays SetControlPoint and
// SetAllFromTransform actually write into.
func (b *Builder) liveTargets() [][]float64 {
	if b.store.gridded {
		return b.store.targets
	}
	return b.store.scatTgt
}

func cloneTargets(src [][]float64) [][]float64 {
	out := make([][]float64, len(src))
	for i, arr := range src {
		out[i] = append([]float64(nil), arr...)
	}
	return out
}

// each calls f once per present control point with its source coordinates
// and the builder's live target coordinates. Gridded sources are implicit
// grid indices (fastest-varying axis first); the closed-form accumulators
// in lstsq.go read values directly from this callback without any
// intermediate array.
func (b *Builder) each(f func(src []float64, tgt []float64)) {
	b.eachOverTargets(b.liveTargets(), f)
}

// eachOverTargets is like each but reads target values from targets
// instead of the builder's live store, so a linearizer trial can be
// evaluated against a private copy without touching shared state.
// targets must have the same shape as liveTargets() (per-dimension arrays
// in gridded mode, per-point arrays in scattered mode); presence is still
// determined from the builder's own store (the NaN-in-dimension-0 rule
// for gridded, the present slice for scattered), since a trial never
// changes which points exist, only their target values.
func (b *Builder) eachOverTargets(targets [][]float64, f func(src []float64, tgt []float64)) {
	if b.store.gridded {
		size := b.store.size
		rowLen := size[0]
		rows := 1
		if len(size) == 2 {
			rows = size[1]
		}
		src := make([]float64, len(size))
		tgt := make([]float64, b.targetDim)
		for row := 0; row < rows; row++ {
			for i := 0; i < rowLen; i++ {
				flat := row*rowLen + i
				if math.IsNaN(b.store.targets[0][flat]) {
					continue
				}
				src[0] = float64(i)
				if len(size) == 2 {
					src[1] = float64(row)
				}
				for j := 0; j < b.targetDim; j++ {
					tgt[j] = targets[j][flat]
				}
				f(src, tgt)
			}
		}
		return
	}
	for i, present := range b.store.present {
		if !present {
			continue
		}
		f(b.store.sources[i], targets[i])
	}
}

func (b *Builder) presentCount() int {
	n := 0
	b.each(func(_, _ []float64) { n++ })
	return n
}

// fitRawOverTargets runs the least-squares fit against the given target
// arrays, returning the matrix Numbers (row-major, (targetDim+1) x
// (srcDim+1)) and the per-dimension Pearson/multiple-correlation
// coefficients.
func (b *Builder) fitRawOverTargets(targets [][]float64) ([]*numeric.Number, []float64, error) {
	n := b.srcDim()
	rows := b.targetDim + 1
	cols := n + 1
	elems := make([]*numeric.Number, rows*cols)
	correlations := make([]float64, b.targetDim)

	if n == 1 {
		for j := 0; j < b.targetDim; j++ {
			var acc lineFit
			b.eachOverTargets(targets, func(src, tgt []float64) { acc.add(src[0], tgt[j]) })
			a, c, r, ok := acc.solve()
			if !ok {
				return nil, nil, geoerrors.New(geoerrors.CodeMissingData, "not enough control points to fit a line")
			}
			elems[j*cols+0] = numeric.Dbl(a)
			elems[j*cols+1] = numeric.Dbl(c)
			correlations[j] = r
		}
	} else {
		for j := 0; j < b.targetDim; j++ {
			var acc planeFit
			b.eachOverTargets(targets, func(src, tgt []float64) { acc.add(src[0], src[1], tgt[j]) })
			a, c, d, ok := acc.solve()
			if !ok {
				return nil, nil, geoerrors.New(geoerrors.CodeMissingData, "not enough control points to fit a plane")
			}
			r2 := acc.r2(a, c, d, func(add func(x, y, z float64)) {
				b.eachOverTargets(targets, func(src, tgt []float64) { add(src[0], src[1], tgt[j]) })
			})
			elems[j*cols+0] = numeric.Dbl(a)
			elems[j*cols+1] = numeric.Dbl(c)
			elems[j*cols+2] = numeric.Dbl(d)
			correlations[j] = math.Sqrt(r2)
		}
	}
	// Homogeneous last row: identity.
	last := b.targetDim
	elems[last*cols+cols-1] = numeric.Int(1)

	return elems, correlations, nil
}

// fitRaw runs the least-squares fit against the builder's current live
// target arrays (whatever they hold — original or, after Create has
// returned, linearizer-transformed).
func (b *Builder) fitRaw() ([]*numeric.Number, []float64, error) {
	return b.fitRawOverTargets(b.liveTargets())
}

func globalScore(correlations []float64) float64 {
	sum := 0.0
	for _, r := range correlations {
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(correlations)))
}

// writeProjectedInto writes a candidate's projected target values into
// targets (which may be the builder's own live arrays, for a final
// commit, or a private clone, during a trial). Untouched dimensions are
// left as-is.
func (b *Builder) writeProjectedInto(targets [][]float64, projected map[int][]float64) {
	if b.store.gridded {
		size := b.store.size
		rowLen := size[0]
		rows := 1
		if len(size) == 2 {
			rows = size[1]
		}
		pointIdx := 0
		for row := 0; row < rows; row++ {
			for i := 0; i < rowLen; i++ {
				flat := row*rowLen + i
				if math.IsNaN(b.store.targets[0][flat]) {
					continue
				}
				for dim, values := range projected {
					targets[dim][flat] = values[pointIdx]
				}
				pointIdx++
			}
		}
		return
	}
	presentIdx := 0
	for i, present := range b.store.present {
		if !present {
			continue
		}
		for dim, values := range projected {
			targets[i][dim] = values[presentIdx]
		}
		presentIdx++
	}
}

// Create runs the fit, selecting the best linearizer candidate if any were
// supplied, and freezes the builder. It fails with CodeMissingData if
// there are no present control points, and with CodeFitFailure if every
// non-identity candidate threw and no identity candidate was supplied.
func (b *Builder) Create() (*Result, error) {
	if b.created {
		return nil, geoerrors.New(geoerrors.CodeUnmodifiableState, "Create called twice")
	}
	if b.presentCount() == 0 {
		return nil, geoerrors.New(geoerrors.CodeMissingData, "no control points present")
	}
	b.created = true

	if len(b.candidates) == 0 {
		elems, correlations, err := b.fitRaw()
		if err != nil {
			return nil, err
		}
		m := numeric.NewMatrix(b.targetDim+1, b.srcDim()+1, elems)
		return &Result{Transform: numeric.New(m), Correlations: correlations, Diagnostics: b.diags.Items()}, nil
	}
	return b.createWithLinearizers()
}

type candidateAttempt struct {
	candidate    *LinearizerCandidate
	elems        []*numeric.Number
	correlations []float64
	score        float64
	projected    map[int][]float64
}

// createWithLinearizers fits one trial per registered candidate, each
// against its own cloned target arrays (never the shared store), bounded
// to maxConcurrentCandidateTrials concurrent trials via errgroup, then
// picks the candidate with the highest global score and commits its
// projected targets into the live store, per spec.md §4.1's linearizer
// selection algorithm.
func (b *Builder) createWithLinearizers() (*Result, error) {
	original := cloneTargets(b.liveTargets())

	results := make([]*candidateAttempt, len(b.candidates))
	errs := make([]error, len(b.candidates))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentCandidateTrials)
	for idx, c := range b.candidates {
		idx, c := idx, c
		g.Go(func() error {
			a, err := b.tryCandidate(original, c)
			if err != nil {
				errs[idx] = err
				return nil
			}
			results[idx] = a
			return nil
		})
	}
	_ = g.Wait() // per-candidate failures are collected individually, not propagated as a group error

	var best *candidateAttempt
	var causes []error
	for i, a := range results {
		if a == nil {
			if errs[i] != nil {
				causes = append(causes, errs[i])
			}
			continue
		}
		a.candidate.Correlation = a.score
		if best == nil || a.score > best.score {
			best = a
		}
	}

	if best == nil {
		err := geoerrors.New(geoerrors.CodeFitFailure, "every linearizer candidate failed")
		for _, c := range causes {
			err.WithSuppressed(c)
		}
		return nil, err
	}

	if best.projected != nil {
		// Final commit: the winning candidate's projected coordinates
		// replace the builder's live targets in place, per spec.md §4.1
		// step 4 — subsequent getters observe the transformed coordinates.
		b.writeProjectedInto(b.liveTargets(), best.projected)
	}

	m := numeric.NewMatrix(b.targetDim+1, b.srcDim()+1, best.elems)
	best.candidate.Correlation = best.score
	return &Result{
		Transform:    numeric.New(m),
		Correlations: best.correlations,
		Selected:     best.candidate,
		Diagnostics:  b.diags.Items(),
	}, nil
}

// tryCandidate evaluates one linearizer candidate in isolation: it clones
// original, projects the candidate's target dimensions into the clone,
// and fits against the clone. It never reads or writes the builder's live
// store, so concurrent calls for different candidates are race-free.
func (b *Builder) tryCandidate(original [][]float64, c *LinearizerCandidate) (*candidateAttempt, error) {
	local := cloneTargets(original)

	var projected map[int][]float64
	if !isIdentityCandidate(c) {
		proj, err := b.applyLinearizerOverTargets(original, c)
		if err != nil {
			return nil, err
		}
		projected = proj
		b.writeProjectedInto(local, projected)
	}

	elems, correlations, err := b.fitRawOverTargets(local)
	if err != nil {
		return nil, err
	}
	return &candidateAttempt{
		candidate:    c,
		elems:        elems,
		correlations: correlations,
		score:        globalScore(correlations),
		projected:    projected,
	}, nil
}

// applyLinearizerOverTargets runs candidate.Forward over the projected
// target dimensions read from targets, for every present control point,
// and returns the projected values per target-dimension index. It does
// not mutate targets; the caller writes the result where it belongs
// (a private clone during a trial, or the live store on final commit).
func (b *Builder) applyLinearizerOverTargets(targets [][]float64, c *LinearizerCandidate) (map[int][]float64, error) {
	n := b.presentCount()
	inDim := len(c.ProjToGrid)
	src := make([]float64, 0, n*inDim)
	b.eachOverTargets(targets, func(_, tgt []float64) {
		for _, dim := range c.ProjToGrid {
			src = append(src, tgt[dim])
		}
	})
	dst := make([]float64, n*c.Forward.TargetDimensions())
	if err := c.Forward.TransformPoint64(src, 0, dst, 0, n); err != nil {
		return nil, err
	}
	out := make(map[int][]float64, len(c.ProjToGrid))
	outDim := c.Forward.TargetDimensions()
	for k, dim := range c.ProjToGrid {
		if k >= outDim {
			break
		}
		values := make([]float64, n)
		for p := 0; p < n; p++ {
			values[p] = dst[p*outDim+k]
		}
		out[dim] = values
	}
	return out, nil
}
