package normalize

import (
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/structml/voxelset/features"
)

// PoolMode selects how per-shard statistics are combined.
type PoolMode int

const (
	// PoolEqual averages shard means and shard variances with equal
	// weight, regardless of shard size. This is the historical behavior
	// and the default.
	PoolEqual PoolMode = iota
	// PoolByCount weights every shard by its cell count.
	PoolByCount
)

// Pooled holds the dataset-wide normalization parameters in resolved channel
// order. Std is never zero: a degenerate channel keeps its mean-centering
// but its scaling is disabled.
type Pooled struct {
	Mean []float64
	Std  []float64

	TargetMin float64
	TargetMax float64
}

// Pool combines the per-shard statistics of every selected channel and of
// the selected target. Every shard must carry statistics for every channel
// and for the target; a gap means the caches and the selection disagree.
func Pool(shardStats []*ShardStats, resolved *features.Resolved, target string, mode PoolMode, log *zap.Logger) (*Pooled, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(shardStats) == 0 {
		return nil, errors.New("no shard statistics to pool")
	}

	channels := resolved.Channels()
	pooled := &Pooled{
		Mean: make([]float64, len(channels)),
		Std:  make([]float64, len(channels)),
	}

	for i, ch := range channels {
		means := make([]float64, 0, len(shardStats))
		vars := make([]float64, 0, len(shardStats))
		counts := make([]int64, 0, len(shardStats))
		for _, ss := range shardStats {
			fs, ok := ss.Features[ch.Group][ch.Name]
			if !ok {
				return nil, errors.Errorf("no cached statistics for feature %s; recompute the shard caches", ch)
			}
			means = append(means, fs.Mean)
			vars = append(vars, fs.Var)
			counts = append(counts, fs.Count)
		}

		mean, variance, err := combine(means, vars, counts, mode)
		if err != nil {
			return nil, errors.Wrapf(err, "pooling feature %s", ch)
		}
		pooled.Mean[i] = mean
		pooled.Std[i] = math.Sqrt(variance)
		if pooled.Std[i] == 0 {
			log.Warn("feature has zero pooled variance, scaling disabled",
				zap.String("feature", ch.String()))
			pooled.Std[i] = 1
		}
	}

	first := true
	for _, ss := range shardStats {
		ts, ok := ss.Targets[target]
		if !ok {
			return nil, errors.Errorf("no cached statistics for target %q; recompute the shard caches", target)
		}
		if first || ts.Min < pooled.TargetMin {
			pooled.TargetMin = ts.Min
		}
		if first || ts.Max > pooled.TargetMax {
			pooled.TargetMax = ts.Max
		}
		first = false
	}

	return pooled, nil
}

func combine(means, vars []float64, counts []int64, mode PoolMode) (mean, variance float64, err error) {
	switch mode {
	case PoolByCount:
		var total float64
		for _, c := range counts {
			total += float64(c)
		}
		if total == 0 {
			return 0, 0, errors.New("no cells counted")
		}
		for i := range means {
			w := float64(counts[i]) / total
			mean += w * means[i]
		}
		for i := range vars {
			w := float64(counts[i]) / total
			variance += w * (vars[i] + means[i]*means[i])
		}
		variance -= mean * mean
		if variance < 0 {
			variance = 0
		}
		return mean, variance, nil
	default:
		mean, err = stats.Mean(stats.Float64Data(means))
		if err != nil {
			return 0, 0, err
		}
		variance, err = stats.Mean(stats.Float64Data(vars))
		if err != nil {
			return 0, 0, err
		}
		return mean, variance, nil
	}
}
