package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structml/voxelset/features"
)

func resolvedSingle(t *testing.T) *features.Resolved {
	t.Helper()
	cat := &features.Catalog{
		Groups: []string{"Features"},
		Names:  map[string][]string{"Features": {"charge_chainA"}},
	}
	sel := features.NewSelection()
	sel.Add("Features", features.All())
	res, err := features.Resolve(sel, cat)
	require.NoError(t, err)
	return res
}

func shardStats(mean, variance float64, count int64, tmin, tmax float64) *ShardStats {
	return &ShardStats{
		Features: map[string]map[string]FeatureStats{
			"Features": {"charge_chainA": {Mean: mean, Var: variance, Count: count}},
		},
		Targets: map[string]TargetStats{"IRMSD": {Min: tmin, Max: tmax}},
	}
}

func TestPoolEqualWeights(t *testing.T) {
	pooled, err := Pool([]*ShardStats{
		shardStats(1.0, 0.0, 100, 2, 5),
		shardStats(3.0, 2.0, 10, 1, 9),
	}, resolvedSingle(t), "IRMSD", PoolEqual, nil)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, pooled.Mean[0], 1e-9)
	assert.InDelta(t, 1.0, pooled.Std[0], 1e-9) // sqrt of pooled variance 1.0
	assert.Equal(t, 1.0, pooled.TargetMin)
	assert.Equal(t, 9.0, pooled.TargetMax)
}

func TestPoolByCount(t *testing.T) {
	// Shard one dominates with 3x the cells.
	pooled, err := Pool([]*ShardStats{
		shardStats(0.0, 1.0, 30, 0, 1),
		shardStats(4.0, 1.0, 10, 0, 1),
	}, resolvedSingle(t), "IRMSD", PoolByCount, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, pooled.Mean[0], 1e-9)
	// var = E[v + m^2] - mean^2 = (0.75*1 + 0.25*17) - 1 = 4
	assert.InDelta(t, 2.0, pooled.Std[0], 1e-9)
}

func TestPoolZeroVarianceForcesUnitStd(t *testing.T) {
	pooled, err := Pool([]*ShardStats{
		shardStats(5.0, 0.0, 10, 0, 1),
	}, resolvedSingle(t), "IRMSD", PoolEqual, nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, pooled.Std[0])
	assert.Equal(t, 5.0, pooled.Mean[0])
	assert.False(t, math.IsNaN(pooled.Mean[0]))
}

func TestPoolMissingFeature(t *testing.T) {
	ss := &ShardStats{
		Features: map[string]map[string]FeatureStats{},
		Targets:  map[string]TargetStats{"IRMSD": {}},
	}
	_, err := Pool([]*ShardStats{ss}, resolvedSingle(t), "IRMSD", PoolEqual, nil)
	assert.Error(t, err)
}

func TestPoolMissingTarget(t *testing.T) {
	_, err := Pool([]*ShardStats{
		shardStats(1, 1, 1, 0, 1),
	}, resolvedSingle(t), "DOCKQ", PoolEqual, nil)
	assert.Error(t, err)
}

func TestPoolNoShards(t *testing.T) {
	_, err := Pool(nil, resolvedSingle(t), "IRMSD", PoolEqual, nil)
	assert.Error(t, err)
}
