// Package normalize computes and pools the per-shard statistics used to
// clip and normalize feature channels and targets.
//
// Each shard gets a JSON cache file next to it (same base name, _norm.json
// suffix) holding mean/variance for every stored feature and min/max for
// every stored target. The cache is written once after a full scan and read
// on later runs; it is never invalidated automatically, so a cache that
// outlives a rewritten shard silently shadows it. Invalidate removes the
// cache explicitly.
package normalize

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/structml/voxelset/archive"
	"github.com/structml/voxelset/grids"
)

// FeatureStats holds the moments of one stored feature field over every cell
// of every complex in a shard.
type FeatureStats struct {
	Mean  float64 `json:"mean"`
	Var   float64 `json:"variance"`
	Count int64   `json:"count"`
}

// TargetStats holds the range of one target over a shard.
type TargetStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ShardStats is the persisted per-shard normalization record.
type ShardStats struct {
	Features map[string]map[string]FeatureStats `json:"features"`
	Targets  map[string]TargetStats             `json:"targets"`
}

// CachePath returns the sibling cache file of a shard.
func CachePath(shardPath string) string {
	base := strings.TrimSuffix(shardPath, filepath.Ext(shardPath))
	return base + "_norm.json"
}

// Invalidate removes a shard's cache file so the next run recomputes it.
// Removing an absent cache is not an error.
func Invalidate(shardPath string) error {
	if err := os.Remove(CachePath(shardPath)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "invalidating cache for %s", shardPath)
	}
	return nil
}

// LoadOrCompute reads the shard's cache if present, otherwise scans the
// shard once, persists the cache, and returns the fresh statistics. Sparse
// fields are measured over the full dense grid of the given shape. No
// staleness check is performed on an existing cache.
func LoadOrCompute(shardPath string, shape grids.Shape, log *zap.Logger) (*ShardStats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cachePath := CachePath(shardPath)
	if raw, err := os.ReadFile(cachePath); err == nil {
		var stats ShardStats
		if err := json.Unmarshal(raw, &stats); err != nil {
			return nil, errors.Wrapf(err, "reading cache %s", cachePath)
		}
		return &stats, nil
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "reading cache %s", cachePath)
	}

	log.Info("computing normalization statistics", zap.String("shard", shardPath))
	shard, err := archive.Open(shardPath)
	if err != nil {
		return nil, err
	}
	defer shard.Close()

	stats, err := computeShard(shard, shape)
	if err != nil {
		return nil, err
	}
	if err := writeCache(cachePath, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// accumulator gathers running sums for one feature field.
type accumulator struct {
	sum   float64
	sumSq float64
	count int64
}

func (a *accumulator) addDense(values []float32) {
	for _, v := range values {
		f := float64(v)
		a.sum += f
		a.sumSq += f * f
	}
	a.count += int64(len(values))
}

// addSparse folds in a sparse field without materializing it: the cells not
// named by an index are zero and contribute only to the count.
func (a *accumulator) addSparse(values []float32, cells int) {
	for _, v := range values {
		f := float64(v)
		a.sum += f
		a.sumSq += f * f
	}
	a.count += int64(cells)
}

func (a *accumulator) stats() FeatureStats {
	if a.count == 0 {
		return FeatureStats{}
	}
	mean := a.sum / float64(a.count)
	variance := a.sumSq/float64(a.count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return FeatureStats{Mean: mean, Var: variance, Count: a.count}
}

func computeShard(shard *archive.Shard, shape grids.Shape) (*ShardStats, error) {
	ids, err := shard.Complexes()
	if err != nil {
		return nil, err
	}

	features := make(map[string]map[string]*accumulator)
	targets := make(map[string]TargetStats)

	for _, id := range ids {
		groups, err := shard.Groups(id)
		if err != nil {
			return nil, err
		}
		for _, group := range groups {
			names, err := shard.FeatureNames(id, group)
			if err != nil {
				return nil, err
			}
			if features[group] == nil {
				features[group] = make(map[string]*accumulator)
			}
			for _, name := range names {
				field, err := shard.Feature(id, group, name)
				if err != nil {
					return nil, err
				}
				acc := features[group][name]
				if acc == nil {
					acc = &accumulator{}
					features[group][name] = acc
				}
				if field.Sparse {
					acc.addSparse(field.Value, shape.NumCells())
				} else {
					acc.addDense(field.Value)
				}
			}
		}

		molTargets, err := shard.Targets(id)
		if err != nil {
			return nil, err
		}
		for name, value := range molTargets {
			ts, seen := targets[name]
			if !seen {
				targets[name] = TargetStats{Min: value, Max: value}
				continue
			}
			if value < ts.Min {
				ts.Min = value
			}
			if value > ts.Max {
				ts.Max = value
			}
			targets[name] = ts
		}
	}

	stats := &ShardStats{
		Features: make(map[string]map[string]FeatureStats, len(features)),
		Targets:  targets,
	}
	for group, accs := range features {
		stats.Features[group] = make(map[string]FeatureStats, len(accs))
		for name, acc := range accs {
			stats.Features[group][name] = acc.stats()
		}
	}
	return stats, nil
}

// writeCache persists the stats next to the shard. The file is written to a
// temp name and renamed so an interrupted scan never leaves a partial cache.
func writeCache(path string, stats *ShardStats) error {
	raw, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding cache")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return errors.Wrapf(err, "writing cache %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "renaming cache to %s", path)
	}
	return nil
}
