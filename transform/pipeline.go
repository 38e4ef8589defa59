package transform

import (
	"github.com/pkg/errors"

	"github.com/structml/voxelset/grids"
	"github.com/structml/voxelset/normalize"
)

// DefaultClipFactor bounds features at mean +/- 1.5 std.
const DefaultClipFactor = 1.5

// Pipeline applies the configured steps in fixed order: clip, feature
// normalization, chain pairing, 2-D projection. Each step is independently
// toggleable; a disabled step is the identity.
type Pipeline struct {
	ClipFeatures bool
	ClipFactor   float64

	NormalizeFeatures bool
	NormalizeTargets  bool

	PairChains bool
	PairGroups [][]int
	Combine    Combiner

	To2D       bool
	Projection int

	Stats *normalize.Pooled
}

// Apply runs the enabled feature steps on one stacked tensor.
func (p *Pipeline) Apply(t grids.Grid) (grids.Grid, error) {
	var err error
	if p.ClipFeatures {
		if p.Stats == nil {
			return grids.Grid{}, errors.New("clipping enabled without pooled statistics")
		}
		factor := p.ClipFactor
		if factor == 0 {
			factor = DefaultClipFactor
		}
		if t, err = Clip(t, p.Stats.Mean, p.Stats.Std, factor); err != nil {
			return grids.Grid{}, err
		}
	}
	if p.NormalizeFeatures {
		if p.Stats == nil {
			return grids.Grid{}, errors.New("normalization enabled without pooled statistics")
		}
		if t, err = NormalizeFeatures(t, p.Stats.Mean, p.Stats.Std); err != nil {
			return grids.Grid{}, err
		}
	}
	if p.PairChains {
		if t, err = PairChains(t, p.PairGroups, p.Combine); err != nil {
			return grids.Grid{}, err
		}
	}
	if p.To2D {
		if t, err = Project2D(t, p.Projection); err != nil {
			return grids.Grid{}, err
		}
	}
	return t, nil
}

// ApplyTarget normalizes one target value when target normalization is on.
func (p *Pipeline) ApplyTarget(v float64) (float64, error) {
	if !p.NormalizeTargets {
		return v, nil
	}
	if p.Stats == nil {
		return 0, errors.New("target normalization enabled without pooled statistics")
	}
	return NormalizeTarget(v, p.Stats.TargetMin, p.Stats.TargetMax), nil
}

// Backtransform returns normalized targets to their original units. When
// target normalization is off it is the identity.
func (p *Pipeline) Backtransform(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if !p.NormalizeTargets || p.Stats == nil {
		return out
	}
	for i, v := range out {
		out[i] = BacktransformTarget(v, p.Stats.TargetMin, p.Stats.TargetMax)
	}
	return out
}
