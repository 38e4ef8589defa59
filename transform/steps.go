// Package transform turns a raw stacked feature grid into the tensor a
// model consumes. Every step is a pure function over grids.Grid so steps
// can be tested and composed independently; Pipeline runs them in the fixed
// order clip, normalize, chain-pair, 2-D projection.
package transform

import (
	"github.com/pkg/errors"

	"github.com/structml/voxelset/grids"
)

// Clip clamps every channel c to [mean[c]-factor*std[c], mean[c]+factor*std[c]].
func Clip(t grids.Grid, mean, std []float64, factor float64) (grids.Grid, error) {
	if len(mean) != t.Channels() || len(std) != t.Channels() {
		return grids.Grid{}, errors.Errorf("clip has stats for %d channels, tensor has %d", len(mean), t.Channels())
	}
	out := t.Clone()
	for c := 0; c < out.Channels(); c++ {
		lo := float32(mean[c] - factor*std[c])
		hi := float32(mean[c] + factor*std[c])
		ch := out.Channel(c)
		for i, v := range ch {
			if v < lo {
				ch[i] = lo
			} else if v > hi {
				ch[i] = hi
			}
		}
	}
	return out, nil
}

// NormalizeFeatures maps every channel c to (x - mean[c]) / std[c].
func NormalizeFeatures(t grids.Grid, mean, std []float64) (grids.Grid, error) {
	if len(mean) != t.Channels() || len(std) != t.Channels() {
		return grids.Grid{}, errors.Errorf("normalize has stats for %d channels, tensor has %d", len(mean), t.Channels())
	}
	out := t.Clone()
	for c := 0; c < out.Channels(); c++ {
		m := float32(mean[c])
		s := float32(std[c])
		ch := out.Channel(c)
		for i := range ch {
			ch[i] = (ch[i] - m) / s
		}
	}
	return out, nil
}

// NormalizeTarget maps a target to (t - min) / max. This is deliberately not
// min-max scaling to [0,1]; BacktransformTarget undoes it exactly.
func NormalizeTarget(v, min, max float64) float64 {
	return (v - min) / max
}

// BacktransformTarget returns a normalized target to its original units.
func BacktransformTarget(v, min, max float64) float64 {
	return v*max + min
}

// Combiner merges two per-chain values into one.
type Combiner func(a, b float32) float32

// Sum adds the two chain channels.
func Sum(a, b float32) float32 { return a + b }

// Mean averages the two chain channels.
func Mean(a, b float32) float32 { return (a + b) / 2 }

// Product multiplies the two chain channels.
func Product(a, b float32) float32 { return a * b }

// PairChains combines channel index groups into single channels: two-index
// groups are merged elementwise with the combiner, single-index groups pass
// through. The output has one channel per group.
func PairChains(t grids.Grid, groups [][]int, combine Combiner) (grids.Grid, error) {
	if combine == nil {
		return grids.Grid{}, errors.New("chain pairing needs a combiner")
	}
	size := t.ChannelSize()
	data := make([]float32, len(groups)*size)
	for g, idx := range groups {
		out := data[g*size : (g+1)*size]
		switch len(idx) {
		case 1:
			copy(out, t.Channel(idx[0]))
		case 2:
			a := t.Channel(idx[0])
			b := t.Channel(idx[1])
			for i := range out {
				out[i] = combine(a[i], b[i])
			}
		default:
			return grids.Grid{}, errors.Errorf("pair group %v has %d indices, want 1 or 2", idx, len(idx))
		}
	}
	dims := append([]int{len(groups)}, t.Dims[1:]...)
	return grids.Grid{Data: data, Dims: dims}, nil
}

// Project2D collapses one spatial axis of a (C,X,Y,Z) tensor into the
// channel dimension: axis 0 yields (C*X,Y,Z), axis 1 (C*Y,X,Z), axis 2
// (C*Z,X,Y). The flat buffer is reinterpreted, not permuted.
func Project2D(t grids.Grid, axis int) (grids.Grid, error) {
	if len(t.Dims) != 4 {
		return grids.Grid{}, errors.Errorf("2-D projection needs a 4-D tensor, got shape %v", t.Dims)
	}
	c, x, y, z := t.Dims[0], t.Dims[1], t.Dims[2], t.Dims[3]
	var dims []int
	switch axis {
	case 0:
		dims = []int{c * x, y, z}
	case 1:
		dims = []int{c * y, x, z}
	case 2:
		dims = []int{c * z, x, y}
	default:
		return grids.Grid{}, errors.Errorf("projection axis must be 0, 1 or 2, got %d", axis)
	}
	return grids.Grid{Data: t.Data, Dims: dims}, nil
}
