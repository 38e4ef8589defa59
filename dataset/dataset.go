// Package dataset assembles machine-learning-ready tensors from feature
// archive shards. It composes the complex index, the feature catalog, the
// per-shard normalization statistics and the transform pipeline behind a
// random-access, length-queryable collection.
package dataset

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/structml/voxelset/archive"
	"github.com/structml/voxelset/features"
	"github.com/structml/voxelset/grids"
	"github.com/structml/voxelset/index"
	"github.com/structml/voxelset/normalize"
	"github.com/structml/voxelset/transform"
)

// ShapeUnknownError reports that neither an explicit grid shape nor stored
// coordinate arrays were available at setup.
type ShapeUnknownError struct {
	Shard   string
	Complex string
}

func (e *ShapeUnknownError) Error() string {
	return fmt.Sprintf("cannot determine grid shape: complex %q in shard %s has no grid point arrays; set grid_shape explicitly",
		e.Complex, e.Shard)
}

// Item is one loaded and transformed complex.
type Item struct {
	Entry  index.Entry
	Tensor grids.Grid
	Target float64
}

// Dataset is the assembled collection. Setup must complete before items are
// accessed; after that Get is safe from concurrent goroutines, as every call
// opens its shard independently and shared state is read-only.
type Dataset struct {
	cfg Config
	log *zap.Logger

	entries []index.Entry
	nTrain  int

	catalog  *features.Catalog
	resolved *features.Resolved
	shape    grids.Shape
	pipe     *transform.Pipeline

	dataShape  []int
	inputShape []int

	cursor int
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithLogger attaches a structured logger; the default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Dataset) { d.log = log }
}

// New validates the configuration and returns an unprocessed dataset. Call
// Setup before accessing items.
func New(cfg Config, opts ...Option) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	d := &Dataset{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Setup runs the single-threaded preparation sequence: index the complexes,
// resolve the feature selection, fix the grid shape, pool the normalization
// statistics and probe the input shape. It is run once and must not be
// invoked concurrently with itself on the same instance.
func (d *Dataset) Setup() error {
	entries, nTrain, err := index.Build(index.Options{
		TrainShards: d.cfg.TrainShards,
		TestShards:  d.cfg.TestShards,
		Allow:       d.cfg.Complexes,
		Filters:     d.cfg.Filters,
		Logger:      d.log,
	})
	if err != nil {
		return err
	}
	d.entries = entries
	d.nTrain = nTrain
	if len(entries) == 0 {
		d.log.Warn("dataset holds no complexes after filtering")
		d.pipe = &transform.Pipeline{}
		return nil
	}

	if err := d.resolveFeatures(); err != nil {
		return err
	}
	if err := d.resolveGridShape(); err != nil {
		return err
	}
	if err := d.buildPipeline(); err != nil {
		return err
	}
	if err := d.probeShapes(); err != nil {
		return err
	}

	d.log.Info("dataset ready",
		zap.Int("train", d.nTrain),
		zap.Int("test", len(d.entries)-d.nTrain),
		zap.Int("channels", d.resolved.NumChannels()),
		zap.Ints("input_shape", d.inputShape))
	return nil
}

// resolveFeatures enumerates the catalog from the first indexed shard and
// expands the selection against it.
func (d *Dataset) resolveFeatures() error {
	shard, err := d.openEntryShard(0)
	if err != nil {
		return err
	}
	defer shard.Close()

	d.catalog, err = features.EnumerateCatalog(shard)
	if err != nil {
		return err
	}
	d.resolved, err = features.Resolve(d.cfg.selection(), d.catalog)
	if err != nil {
		return err
	}
	if d.resolved.NumChannels() == 0 {
		return errors.New("feature selection resolved to zero channels")
	}
	return nil
}

// resolveGridShape takes the configured shape, or infers one from the grid
// point arrays of the first indexed complex.
func (d *Dataset) resolveGridShape() error {
	if len(d.cfg.GridShape) > 0 {
		shape, err := grids.ShapeFromDims(d.cfg.GridShape)
		if err != nil {
			return err
		}
		d.shape = shape
		return nil
	}

	shard, err := d.openEntryShard(0)
	if err != nil {
		return err
	}
	defer shard.Close()

	entry := d.entries[0]
	x, y, z, err := shard.GridPoints(entry.Complex)
	if errors.Is(err, archive.ErrNoGridPoints) {
		return &ShapeUnknownError{Shard: entry.Shard, Complex: entry.Complex}
	}
	if err != nil {
		return err
	}
	d.shape = grids.Shape{len(x), len(y), len(z)}
	return nil
}

func (d *Dataset) buildPipeline() error {
	d.pipe = &transform.Pipeline{
		ClipFeatures:      d.cfg.clipFeatures(),
		ClipFactor:        d.cfg.clipFactor(),
		NormalizeFeatures: d.cfg.normalizeFeatures(),
		NormalizeTargets:  d.cfg.normalizeTargets(),
		PairChains:        d.cfg.PairChains,
		To2D:              d.cfg.To2D,
		Projection:        d.cfg.Projection,
	}
	if d.cfg.PairChains {
		combine, err := d.cfg.combiner()
		if err != nil {
			return err
		}
		d.pipe.Combine = combine
		d.pipe.PairGroups = d.resolved.PairGroups()
	}
	if !d.cfg.needStats() {
		return nil
	}

	mode, err := d.cfg.poolMode()
	if err != nil {
		return err
	}
	shardStats := make([]*normalize.ShardStats, 0, len(d.trainShardsInUse()))
	for _, path := range d.trainShardsInUse() {
		ss, err := normalize.LoadOrCompute(path, d.shape, d.log)
		if err != nil {
			return errors.Wrapf(err, "normalizing shard %s", path)
		}
		shardStats = append(shardStats, ss)
	}
	d.pipe.Stats, err = normalize.Pool(shardStats, d.resolved, d.cfg.Target, mode, d.log)
	return err
}

// trainShardsInUse lists the train shards that survived indexing, in first
// appearance order.
func (d *Dataset) trainShardsInUse() []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, e := range d.entries[:d.nTrain] {
		if _, ok := seen[e.Shard]; ok {
			continue
		}
		seen[e.Shard] = struct{}{}
		paths = append(paths, e.Shard)
	}
	return paths
}

// probeShapes loads the first complex through the pipeline to fix the raw
// data shape and the model-facing input shape.
func (d *Dataset) probeShapes() error {
	raw, _, err := d.loadRaw(d.entries[0])
	if err != nil {
		return errors.Wrap(err, "probing input shape")
	}
	d.dataShape = raw.Dims

	out, err := d.pipe.Apply(raw)
	if err != nil {
		return errors.Wrap(err, "probing input shape")
	}
	d.inputShape = out.Dims
	return nil
}

// Len returns the total number of indexed complexes.
func (d *Dataset) Len() int { return len(d.entries) }

// TrainLen returns the size of the training pool, indices [0, TrainLen).
func (d *Dataset) TrainLen() int { return d.nTrain }

// TestLen returns the size of the held-out pool, indices [TrainLen, Len).
func (d *Dataset) TestLen() int { return len(d.entries) - d.nTrain }

// Entry returns the (shard, complex) pair behind an index.
func (d *Dataset) Entry(i int) index.Entry { return d.entries[i] }

// TargetName returns the selected target.
func (d *Dataset) TargetName() string { return d.cfg.Target }

// Channels returns the ordered channel-to-feature mapping of raw tensors.
func (d *Dataset) Channels() []features.Channel { return d.resolved.Channels() }

// GridShape returns the dense shape applied to every sparse field.
func (d *Dataset) GridShape() grids.Shape { return d.shape }

// DataShape returns the raw stacked tensor shape before pairing/projection.
func (d *Dataset) DataShape() []int { return d.dataShape }

// InputShape returns the tensor shape the model consumes.
func (d *Dataset) InputShape() []int { return d.inputShape }

// Stats returns the pooled normalization statistics, nil when every
// statistics-based step is disabled.
func (d *Dataset) Stats() *normalize.Pooled {
	if d.pipe == nil {
		return nil
	}
	return d.pipe.Stats
}

// Get loads and transforms the complex at an index.
func (d *Dataset) Get(i int) (*Item, error) {
	if d.pipe == nil {
		return nil, errors.New("dataset not set up")
	}
	if i < 0 || i >= len(d.entries) {
		return nil, errors.Errorf("index %d out of range [0, %d)", i, len(d.entries))
	}
	entry := d.entries[i]
	raw, target, err := d.loadRaw(entry)
	if err != nil {
		return nil, err
	}
	tensor, err := d.pipe.Apply(raw)
	if err != nil {
		return nil, err
	}
	target, err = d.pipe.ApplyTarget(target)
	if err != nil {
		return nil, err
	}
	return &Item{Entry: entry, Tensor: tensor, Target: target}, nil
}

// BacktransformTarget returns normalized targets to their original units.
func (d *Dataset) BacktransformTarget(values []float64) []float64 {
	if d.pipe == nil {
		return append([]float64(nil), values...)
	}
	return d.pipe.Backtransform(values)
}
