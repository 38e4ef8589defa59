// Package analysis provides quick-look plots over an assembled dataset.
package analysis

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/structml/voxelset/archive"
	"github.com/structml/voxelset/dataset"
)

// TargetHistogram plots the raw target distribution of the training and
// test pools and saves it to path (format from the extension, e.g. .png).
func TargetHistogram(ds *dataset.Dataset, path string) error {
	train, err := rawTargets(ds, 0, ds.TrainLen())
	if err != nil {
		return err
	}
	test, err := rawTargets(ds, ds.TrainLen(), ds.Len())
	if err != nil {
		return err
	}
	if len(train) == 0 && len(test) == 0 {
		return errors.New("dataset holds no targets to plot")
	}

	p := plot.New()
	p.Title.Text = "Target distribution: " + ds.TargetName()
	p.X.Label.Text = ds.TargetName()
	p.Y.Label.Text = "count"

	if len(train) > 0 {
		h, err := plotter.NewHist(plotter.Values(train), 16)
		if err != nil {
			return errors.Wrap(err, "building train histogram")
		}
		h.FillColor = color.RGBA{R: 70, G: 130, B: 180, A: 160}
		p.Add(h)
		p.Legend.Add("train", h)
	}
	if len(test) > 0 {
		h, err := plotter.NewHist(plotter.Values(test), 16)
		if err != nil {
			return errors.Wrap(err, "building test histogram")
		}
		h.FillColor = color.RGBA{R: 220, G: 120, B: 60, A: 160}
		p.Add(h)
		p.Legend.Add("test", h)
	}

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot %s", path)
	}
	return nil
}

// rawTargets reads the untransformed target of every entry in [from, to).
// Shards are opened once per contiguous run of entries.
func rawTargets(ds *dataset.Dataset, from, to int) ([]float64, error) {
	values := make([]float64, 0, to-from)
	var shard *archive.Shard
	var openPath string
	defer func() {
		if shard != nil {
			shard.Close()
		}
	}()
	for i := from; i < to; i++ {
		entry := ds.Entry(i)
		if shard == nil || entry.Shard != openPath {
			if shard != nil {
				if err := shard.Close(); err != nil {
					return nil, err
				}
				shard = nil
			}
			s, err := archive.Open(entry.Shard)
			if err != nil {
				return nil, err
			}
			shard, openPath = s, entry.Shard
		}
		v, err := shard.Target(entry.Complex, ds.TargetName())
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
