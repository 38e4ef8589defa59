// Package index enumerates the complexes of a dataset across archive shards
// and fixes their ordering.
//
// Entries from the training shards come first, then entries from the
// held-out test shards; downstream samplers rely on that split. A shard that
// cannot be opened or holds no complexes is dropped with a warning and the
// scan continues with the remaining shards.
package index

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/structml/voxelset/archive"
)

// Entry identifies one complex: the shard file holding it and its id inside
// the shard. The same id may legitimately appear in several shards.
type Entry struct {
	Shard   string
	Complex string
}

// Options configure a Build run.
type Options struct {
	// TrainShards and TestShards are the archive files to scan.
	TrainShards []string
	TestShards  []string

	// Allow restricts complex ids to this list when non-empty.
	Allow []string

	// Filters maps target names to comparison expressions applied to the
	// training pool. The test pool is never target-filtered.
	Filters map[string]string

	Logger *zap.Logger
}

// Build scans every shard and produces the ordered entry list. Indices
// [0, nTrain) form the training pool, [nTrain, len(entries)) the test pool.
func Build(opts Options) (entries []Entry, nTrain int, err error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	filter, err := NewFilter(opts.Filters)
	if err != nil {
		return nil, 0, err
	}

	var allow map[string]struct{}
	if len(opts.Allow) > 0 {
		allow = make(map[string]struct{}, len(opts.Allow))
		for _, id := range opts.Allow {
			allow[id] = struct{}{}
		}
	}

	for _, path := range opts.TrainShards {
		entries = scanShard(entries, path, allow, filter, log)
	}
	nTrain = len(entries)

	for _, path := range opts.TestShards {
		entries = scanShard(entries, path, allow, nil, log)
	}
	return entries, nTrain, nil
}

func scanShard(entries []Entry, path string, allow map[string]struct{}, filter *Filter, log *zap.Logger) []Entry {
	shard, err := archive.Open(path)
	if err != nil {
		log.Warn("skipping unreadable shard", zap.String("shard", path), zap.Error(err))
		return entries
	}
	defer shard.Close()

	ids, err := shard.Complexes()
	if err != nil {
		log.Warn("skipping unlistable shard", zap.String("shard", path), zap.Error(err))
		return entries
	}
	if len(ids) == 0 {
		log.Warn("skipping empty shard", zap.String("shard", path))
		return entries
	}

	for _, id := range ids {
		if allow != nil {
			if _, ok := allow[id]; !ok {
				continue
			}
		}
		if filter != nil && !filter.Empty() {
			keep, err := keepComplex(shard, id, filter)
			if err != nil {
				log.Warn("excluding complex from filter",
					zap.String("shard", path), zap.String("complex", id), zap.Error(err))
				continue
			}
			if !keep {
				continue
			}
		}
		entries = append(entries, Entry{Shard: path, Complex: id})
	}
	return entries
}

func keepComplex(shard *archive.Shard, id string, filter *Filter) (bool, error) {
	targets, err := shard.Targets(id)
	if err != nil {
		return false, errors.Wrap(err, "reading targets")
	}
	return filter.Keep(targets)
}
