package dataset

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// The dataset implements gomlx's train.Dataset so it can be handed straight
// to a training loop: Yield walks the training pool in fixed batches and
// reports io.EOF at the end of the epoch, Restart rewinds for the next one.

// Name identifies the dataset to the training loop.
func (d *Dataset) Name() string { return "voxelset" }

// Yield returns the next training batch as gomlx tensors: inputs shaped
// (batch, input shape...) and labels shaped (batch, 1).
func (d *Dataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= d.nTrain {
		return nil, nil, nil, io.EOF
	}
	batch := d.cfg.batchSize()
	if d.cursor+batch > d.nTrain {
		batch = d.nTrain - d.cursor
	}
	indices := make([]int, batch)
	for i := range indices {
		indices[i] = d.cursor + i
	}
	d.cursor += batch

	items, err := d.Batch(indices)
	if err != nil {
		return nil, nil, nil, err
	}

	itemSize := items[0].Tensor.NumElems()
	flat := make([]float32, batch*itemSize)
	targets := make([]float32, batch)
	for i, item := range items {
		copy(flat[i*itemSize:], item.Tensor.Data)
		targets[i] = float32(item.Target)
	}

	dims := append([]int{batch}, d.inputShape...)
	in := tensors.FromFlatDataAndDimensions(flat, dims...)
	lab := tensors.FromFlatDataAndDimensions(targets, batch, 1)
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{lab}, nil
}

// Restart rewinds the epoch cursor.
func (d *Dataset) Restart() error {
	d.cursor = 0
	return nil
}
