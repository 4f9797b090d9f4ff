package fitting

// Transformer is the minimal transform surface a linearizer needs: apply
// itself to packed point arrays. internal/numeric.Transform satisfies this
// by its TransformPoint64 method.
type Transformer interface {
	SourceDimensions() int
	TargetDimensions() int
	TransformPoint64(src []float64, srcOff int, dst []float64, dstOff int, n int) error
}

// LinearizerCandidate is a non-linear transform that, applied to a subset
// of target dimensions (selected by ProjToGrid), may increase the Pearson
// correlation of the resulting linear fit. See spec.md §3/§4.1.
type LinearizerCandidate struct {
	Name string
	// Forward projects target coordinates into a space where a linear fit
	// against the source is expected to be more accurate (e.g. a Mercator
	// projection of geographic targets).
	Forward Transformer
	// ProjToGrid selects/permutes which target dimensions Forward reads
	// and writes, by target-dimension index. Duplicate entries, and a
	// ProjToGrid identical to an already registered candidate's, are
	// rejected by AddLinearizer.
	ProjToGrid []int
	// ConcatenateInverse, when true, means the final transform should be
	// composed as Forward.Inverse() after the fit rather than leaving the
	// fitted coefficients in Forward's output space. Left as a hint for
	// the caller composing the final pipeline (internal/pipeline), since
	// the fitter itself only reports which candidate won and the
	// transformed target arrays.
	ConcatenateInverse bool

	// Correlation is populated after Create() runs; it is the candidate's
	// global score had it been selected, for diagnostic purposes even when
	// a different candidate won.
	Correlation float64
}

func isIdentityCandidate(c *LinearizerCandidate) bool {
	return c.Name == "identity" || c.Forward == nil
}
