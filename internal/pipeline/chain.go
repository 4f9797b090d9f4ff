package pipeline

import geoerrors "github.com/arxgeo/geocore/pkg/errors"

// chain composes a sequence of Transformers end to end: step i's target
// dimension must equal step i+1's source dimension. It is the concrete
// realization of spec.md §4.4's "concatenate step1 ∘ step2 ∘ step3".
type chain struct {
	steps []Transformer
}

func newChain(steps ...Transformer) (*chain, error) {
	for i := 0; i+1 < len(steps); i++ {
		if steps[i].TargetDimensions() != steps[i+1].SourceDimensions() {
			return nil, geoerrors.New(geoerrors.CodeDimensionMismatch, "pipeline: adjacent step dimension mismatch")
		}
	}
	return &chain{steps: steps}, nil
}

func (c *chain) SourceDimensions() int { return c.steps[0].SourceDimensions() }
func (c *chain) TargetDimensions() int { return c.steps[len(c.steps)-1].TargetDimensions() }

func (c *chain) TransformPoint64(src []float64, srcOff int, dst []float64, dstOff int, n int) error {
	cur := src[srcOff : srcOff+n*c.steps[0].SourceDimensions()]
	for i, step := range c.steps {
		outDim := step.TargetDimensions()
		var out []float64
		last := i == len(c.steps)-1
		if last {
			out = dst[dstOff : dstOff+n*outDim]
		} else {
			out = make([]float64, n*outDim)
		}
		if err := step.TransformPoint64(cur, 0, out, 0, n); err != nil {
			return err
		}
		cur = out
	}
	return nil
}
