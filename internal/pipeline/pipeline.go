package pipeline

import (
	"github.com/arxgeo/geocore/internal/diag"
	"github.com/arxgeo/geocore/internal/spatial"
	geoerrors "github.com/arxgeo/geocore/pkg/errors"
)

// State is one of the four pipeline assembly states from spec.md §4.4.
type State int

const (
	Fresh State = iota
	AxesBound
	ParamsCompleted
	Built
)

func (s State) String() string {
	switch s {
	case AxesBound:
		return "AxesBound"
	case ParamsCompleted:
		return "ParamsCompleted"
	case Built:
		return "Built"
	default:
		return "Fresh"
	}
}

// Pipeline assembles a normalize -> kernel -> denormalize composite
// transform. It is single-owner and not thread-safe during assembly;
// the resulting Transformer is safe to share once Built.
type Pipeline struct {
	state State

	sourceSet, targetSet bool
	sourceCS, targetCS   spatial.CoordinateSystem
	sourceEllipsoid      spatial.Ellipsoid
	targetEllipsoid      spatial.Ellipsoid

	diags diag.Accumulator
}

// New returns a Pipeline in the Fresh state.
func New() *Pipeline {
	return &Pipeline{}
}

// State reports the pipeline's current assembly state.
func (p *Pipeline) State() State { return p.state }

// SetSource binds the source coordinate system and ellipsoid. It may be
// called at most once, and only before completeParameters.
func (p *Pipeline) SetSource(cs spatial.CoordinateSystem, ellipsoid spatial.Ellipsoid) error {
	if p.sourceSet {
		return geoerrors.New(geoerrors.CodeUnmodifiableState, "setSource called more than once")
	}
	if p.state == ParamsCompleted || p.state == Built {
		return geoerrors.New(geoerrors.CodeUnmodifiableState, "setSource called after completeParameters")
	}
	p.sourceCS = cs
	p.sourceEllipsoid = ellipsoid
	p.sourceSet = true
	if p.state == Fresh {
		p.state = AxesBound
	}
	return nil
}

// SetTarget binds the target coordinate system and ellipsoid, with the
// same at-most-once constraint as SetSource.
func (p *Pipeline) SetTarget(cs spatial.CoordinateSystem, ellipsoid spatial.Ellipsoid) error {
	if p.targetSet {
		return geoerrors.New(geoerrors.CodeUnmodifiableState, "setTarget called more than once")
	}
	if p.state == ParamsCompleted || p.state == Built {
		return geoerrors.New(geoerrors.CodeUnmodifiableState, "setTarget called after completeParameters")
	}
	p.targetCS = cs
	p.targetEllipsoid = ellipsoid
	p.targetSet = true
	if p.state == Fresh {
		p.state = AxesBound
	}
	return nil
}

// CompleteParameters fills the kernel's semi-major/minor axis and inverse
// flattening parameters from the bound source ellipsoid. A user-supplied
// value that disagrees with the bound ellipsoid by more than
// spatial.FlatteningTolerance (in the ellipsoid's unit) is kept, but a
// ConfigWarning diagnostic is attached rather than overwritten.
func (p *Pipeline) CompleteParameters(params ParameterGroup) error {
	if p.state != AxesBound {
		return geoerrors.New(geoerrors.CodeUnmodifiableState, "completeParameters called out of order")
	}
	if p.sourceEllipsoid != nil && params != nil {
		p.fillEllipsoidParam(params, ParamSemiMajorAxis, p.sourceEllipsoid.SemiMajorAxis())
		p.fillEllipsoidParam(params, ParamSemiMinorAxis, p.sourceEllipsoid.SemiMinorAxis())
		p.fillEllipsoidParam(params, ParamInverseFlattening, p.sourceEllipsoid.InverseFlattening())
	}
	p.state = ParamsCompleted
	return nil
}

func (p *Pipeline) fillEllipsoidParam(params ParameterGroup, name string, value float64) {
	param, ok := params.Parameter(name)
	if !ok {
		return
	}
	if !param.IsSet() {
		param.SetValue(value)
		return
	}
	diff := param.Value() - value
	if diff < 0 {
		diff = -diff
	}
	if diff > spatial.FlatteningTolerance {
		p.diags.Warn("kernel parameter %q (%.6f) disagrees with bound ellipsoid value %.6f by more than the linear tolerance", name, param.Value(), value)
	}
}

// Diagnostics returns the warnings accumulated so far: the ellipsoid
// parameter mismatches recorded by CompleteParameters.
func (p *Pipeline) Diagnostics() []diag.Diagnostic { return p.diags.Items() }

// Assemble builds the composite transform per spec.md §4.4 steps 1-6 and
// transitions the pipeline to Built. Dimension mismatches that don't fit
// the documented {±1 with an ellipsoidal 2D/3D side} exception fail with
// CodeDimensionMismatch, naming the kernel and the arity summary; any
// accumulated ConfigWarning diagnostics are attached as suppressed causes
// on that error.
func (p *Pipeline) Assemble(name string, kernel Kernel) (Transformer, error) {
	if p.state != ParamsCompleted {
		return nil, geoerrors.New(geoerrors.CodeUnmodifiableState, "assemble called out of order")
	}
	p.state = Built

	swap1 := buildAxisSwap(p.sourceCS, true)
	swap3 := buildAxisSwap(p.targetCS, false)

	steps := []Transformer{swap1}

	afterSwap1 := swap1.TargetDimensions()
	kernelIn := kernel.SourceDimensions()
	if kernelIn > afterSwap1 {
		// Kernel wants more source dimensions than the normalized source
		// CS supplies: insert an ellipsoidal-height or spherical-radius
		// step, per spec.md §4.4 step 3.
		if kernelIn-afterSwap1 != 1 {
			return p.fail(cannotAssociateCS(name, afterSwap1, afterSwap1, kernelIn, kernel.TargetDimensions(), kernelIn))
		}
		if afterSwap1 < 2 || afterSwap1 > 3 {
			return p.fail(cannotAssociateCS(name, afterSwap1, afterSwap1, kernelIn, kernel.TargetDimensions(), kernelIn))
		}
		if p.sourceEllipsoid != nil {
			steps = append(steps, sphericalRadiusInsert{srcDim: afterSwap1, ellipsoid: p.sourceEllipsoid})
		} else {
			steps = append(steps, heightInsert{srcDim: afterSwap1, value: 0})
		}
	} else if kernelIn < afterSwap1 {
		// Kernel wants fewer source dimensions than the normalized source
		// CS supplies (e.g. a 2-D kernel fed a 3-D ellipsoidal source):
		// drop the trailing (typically height) dimension, per scenario 4
		// in spec.md §8.
		if !dimensionChangeAllowed(afterSwap1, kernelIn, p.sourceEllipsoid != nil, false) {
			return p.fail(cannotAssociateCS(name, afterSwap1, afterSwap1, kernelIn, kernel.TargetDimensions(), kernelIn))
		}
		steps = append(steps, trailingAdjust{in: afterSwap1, out: kernelIn})
	}

	steps = append(steps, kernel)

	kernelOut := kernel.TargetDimensions()
	targetIn := swap3.SourceDimensions()
	if kernelOut != targetIn {
		sourceEllipsoidal := p.sourceEllipsoid != nil
		targetEllipsoidal := p.targetEllipsoid != nil
		if !dimensionChangeAllowed(kernelOut, targetIn, sourceEllipsoidal, targetEllipsoidal) {
			return p.fail(cannotAssociateCS(name, afterSwap1, kernelIn, kernelOut, targetIn, kernelIn))
		}
		steps = append(steps, trailingAdjust{in: kernelOut, out: targetIn})
	}

	steps = append(steps, swap3)

	composite, err := newChain(steps...)
	if err != nil {
		return nil, p.attachWarnings(err)
	}
	return composite, nil
}

func (p *Pipeline) fail(err error) (Transformer, error) {
	return nil, p.attachWarnings(err)
}

// attachWarnings surfaces every accumulated ConfigWarning diagnostic as a
// suppressed cause on a fatal assembly error, per spec.md §4.4's "all
// fatal errors during assemble surface ... with any accumulated warnings
// attached as suppressed causes."
func (p *Pipeline) attachWarnings(err error) error {
	items := p.diags.Items()
	if len(items) == 0 {
		return err
	}
	appErr, ok := err.(*geoerrors.AppError)
	if !ok {
		return err
	}
	for _, d := range items {
		appErr.WithSuppressed(geoerrors.New(geoerrors.CodeConfigWarning, d.Message()))
	}
	return appErr
}
