package dataset

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/structml/voxelset/archive"
	"github.com/structml/voxelset/grids"
	"github.com/structml/voxelset/index"
)

func (d *Dataset) openEntryShard(i int) (*archive.Shard, error) {
	return archive.Open(d.entries[i].Shard)
}

// loadRaw reads the selected feature fields of one complex, decodes sparse
// ones at the dataset grid shape, and stacks them into a (channels, x, y, z)
// tensor in resolved order. A missing feature or target is a hard error: it
// signals a selection/archive mismatch that would corrupt training data if
// papered over.
func (d *Dataset) loadRaw(entry index.Entry) (grids.Grid, float64, error) {
	shard, err := archive.Open(entry.Shard)
	if err != nil {
		return grids.Grid{}, 0, err
	}
	defer shard.Close()

	channels := make([]grids.Grid, 0, d.resolved.NumChannels())
	for _, group := range d.resolved.Groups {
		for _, name := range d.resolved.Names[group] {
			field, err := shard.Feature(entry.Complex, group, name)
			if err != nil {
				return grids.Grid{}, 0, err
			}
			var ch grids.Grid
			if field.Sparse {
				ch, err = grids.Decode(field.Index, field.Value, d.shape)
			} else {
				ch, err = grids.FromDense(field.Value, d.shape)
			}
			if err != nil {
				return grids.Grid{}, 0, errors.Wrapf(err, "feature %s/%s of complex %q", group, name, entry.Complex)
			}
			channels = append(channels, ch)
		}
	}

	target, err := shard.Target(entry.Complex, d.cfg.Target)
	if err != nil {
		return grids.Grid{}, 0, err
	}
	return grids.Stack(channels, d.shape), target, nil
}

// Batch loads several items concurrently. Each load opens its shard
// independently, so this is safe once Setup has completed.
func (d *Dataset) Batch(indices []int) ([]*Item, error) {
	items := make([]*Item, len(indices))
	var g errgroup.Group
	for pos, idx := range indices {
		g.Go(func() error {
			item, err := d.Get(idx)
			if err != nil {
				return err
			}
			items[pos] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
