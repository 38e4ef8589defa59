package dataset

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structml/voxelset/archive"
	"github.com/structml/voxelset/grids"
	"github.com/structml/voxelset/normalize"
)

// The fixture shard holds two complexes on a (1,2,1) grid with one dense and
// one sparse per-chain feature.
//
//	charge_chainA: c1 {1,3}, c2 {5,7}
//	charge_chainB: c1 {2,0}, c2 {0,4} (sparse)
//	DOCKQ:         c1 0.2,   c2 0.8
func writeFixtureShard(t *testing.T, dir, name string, gridPoints bool) string {
	t.Helper()
	path := filepath.Join(dir, name)
	w, err := archive.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, w.Close()) }()

	require.NoError(t, w.PutDense("c1", "Features", "charge_chainA", []float32{1, 3}))
	require.NoError(t, w.PutDense("c2", "Features", "charge_chainA", []float32{5, 7}))
	require.NoError(t, w.PutSparse("c1", "Features", "charge_chainB", []uint32{0}, []float32{2}))
	require.NoError(t, w.PutSparse("c2", "Features", "charge_chainB", []uint32{1}, []float32{4}))
	require.NoError(t, w.PutTarget("c1", "DOCKQ", 0.2))
	require.NoError(t, w.PutTarget("c2", "DOCKQ", 0.8))
	require.NoError(t, w.PutTarget("c1", "IRMSD", 2))
	require.NoError(t, w.PutTarget("c2", "IRMSD", 7))
	if gridPoints {
		for _, id := range []string{"c1", "c2"} {
			require.NoError(t, w.PutGridPoints(id, []float32{0}, []float32{0, 1}, []float32{0}))
		}
	}
	return path
}

func off() *bool { v := false; return &v }

func rawConfig(shard string) Config {
	return Config{
		TrainShards:       []string{shard},
		Target:            "DOCKQ",
		NormalizeFeatures: off(),
		NormalizeTargets:  off(),
		ClipFeatures:      off(),
	}
}

func TestSetupAndGetRaw(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	ds, err := New(rawConfig(shard))
	require.NoError(t, err)
	require.NoError(t, ds.Setup())

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 2, ds.TrainLen())
	assert.Equal(t, 0, ds.TestLen())
	assert.Equal(t, grids.Shape{1, 2, 1}, ds.GridShape())
	assert.Equal(t, []int{2, 1, 2, 1}, ds.InputShape())

	channels := ds.Channels()
	require.Len(t, channels, 2)
	assert.Equal(t, "Features/charge_chainA", channels[0].String())
	assert.Equal(t, "Features/charge_chainB", channels[1].String())

	item, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "c1", item.Entry.Complex)
	assert.Equal(t, []float32{1, 3, 2, 0}, item.Tensor.Data)
	assert.Equal(t, 0.2, item.Target)
}

func TestGetNormalized(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	cfg := rawConfig(shard)
	cfg.NormalizeFeatures = nil // default on
	cfg.NormalizeTargets = nil
	ds, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Setup())

	// One shard: pooled stats are the shard stats.
	stats := ds.Stats()
	require.NotNil(t, stats)
	assert.InDelta(t, 4.0, stats.Mean[0], 1e-9)    // mean of {1,3,5,7}
	assert.InDelta(t, math.Sqrt(5), stats.Std[0], 1e-9)
	assert.InDelta(t, 1.5, stats.Mean[1], 1e-9)    // mean of {2,0,0,4}
	assert.Equal(t, 0.2, stats.TargetMin)
	assert.Equal(t, 0.8, stats.TargetMax)

	item, err := ds.Get(0)
	require.NoError(t, err)
	assert.InDelta(t, (1-4)/math.Sqrt(5), float64(item.Tensor.Data[0]), 1e-6)
	assert.InDelta(t, 0.0, item.Target, 1e-9) // (0.2-0.2)/0.8

	back := ds.BacktransformTarget([]float64{item.Target})
	assert.InDelta(t, 0.2, back[0], 1e-9)

	// The scan left a cache sibling behind.
	_, err = os.Stat(normalize.CachePath(shard))
	assert.NoError(t, err)
}

func TestSetupInfersShapeOrFails(t *testing.T) {
	dir := t.TempDir()
	bare := writeFixtureShard(t, dir, "bare.db", false)

	cfg := rawConfig(bare)
	ds, err := New(cfg)
	require.NoError(t, err)
	err = ds.Setup()
	var unknown *ShapeUnknownError
	require.ErrorAs(t, err, &unknown)

	cfg.GridShape = []int{1, 2, 1}
	ds, err = New(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Setup())
	assert.Equal(t, grids.Shape{1, 2, 1}, ds.GridShape())
}

func TestSetupEmptyAfterFilter(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	cfg := rawConfig(shard)
	cfg.Filters = map[string]string{"IRMSD": ">100.0"}
	ds, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Setup())
	assert.Equal(t, 0, ds.Len())
}

func TestSetupTrainAndTestPools(t *testing.T) {
	dir := t.TempDir()
	train := writeFixtureShard(t, dir, "train.db", true)
	test := writeFixtureShard(t, dir, "test.db", true)

	cfg := rawConfig(train)
	cfg.TestShards = []string{test}
	ds, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Setup())

	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, 2, ds.TrainLen())
	assert.Equal(t, 2, ds.TestLen())
	assert.Equal(t, train, ds.Entry(0).Shard)
	assert.Equal(t, test, ds.Entry(2).Shard)
}

func TestPairChainsAndProjection(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	cfg := rawConfig(shard)
	cfg.PairChains = true
	cfg.PairOp = "sum"
	cfg.To2D = true
	cfg.Projection = 1
	ds, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Setup())

	// Two chain channels pair into one, then axis 1 folds Y into the
	// channels: (1,1,2,1) -> (2,1,1).
	assert.Equal(t, []int{2, 1, 1}, ds.InputShape())

	item, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 3}, item.Tensor.Data) // {1+2, 3+0}
}

func TestExplicitSelectionOrder(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	cfg := rawConfig(shard)
	cfg.Features = []GroupSelection{{Group: "Features", Select: []string{"charge"}}}
	ds, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Setup())

	channels := ds.Channels()
	require.Len(t, channels, 2)
	assert.Equal(t, "charge_chainA", channels[0].Name)
	assert.Equal(t, "charge_chainB", channels[1].Name)
}

func TestMissingFeatureIsFatal(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	cfg := rawConfig(shard)
	cfg.Features = []GroupSelection{{Group: "Features", Select: []string{"vdwaals_chainA"}}}
	ds, err := New(cfg)
	require.NoError(t, err)

	err = ds.Setup()
	var missing *archive.MissingFeatureError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "vdwaals_chainA", missing.Name)
	assert.Contains(t, missing.Available, "charge_chainA")
}

func TestUnknownGroupIsFatal(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	cfg := rawConfig(shard)
	cfg.Features = []GroupSelection{{Group: "NoSuchGroup", Select: []string{"all"}}}
	ds, err := New(cfg)
	require.NoError(t, err)
	assert.Error(t, ds.Setup())
}

func TestBatchLoadsConcurrently(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	ds, err := New(rawConfig(shard))
	require.NoError(t, err)
	require.NoError(t, ds.Setup())

	items, err := ds.Batch([]int{1, 0})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "c2", items[0].Entry.Complex)
	assert.Equal(t, "c1", items[1].Entry.Complex)
}

func TestYieldWalksTrainPool(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	cfg := rawConfig(shard)
	cfg.BatchSize = 1
	ds, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, ds.Setup())

	for i := 0; i < 2; i++ {
		_, inputs, labels, err := ds.Yield()
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		require.Len(t, labels, 1)
		assert.Equal(t, []int{1, 2, 1, 2, 1}, inputs[0].Shape().Dimensions)
	}
	_, _, _, err = ds.Yield()
	assert.Equal(t, io.EOF, err)

	require.NoError(t, ds.Restart())
	_, _, _, err = ds.Yield()
	assert.NoError(t, err)
}

func TestGetBeforeSetupFails(t *testing.T) {
	shard := writeFixtureShard(t, t.TempDir(), "a.db", true)
	ds, err := New(rawConfig(shard))
	require.NoError(t, err)
	_, err = ds.Get(0)
	assert.Error(t, err)
}
