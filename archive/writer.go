package archive

import (
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Writer builds archive shards. It is used by the extraction stage and by
// tests; the assembly pipeline itself never writes into a shard.
type Writer struct {
	path string
	db   *bolt.DB
}

// Create opens a shard file for writing, creating it if needed.
func Create(path string) (*Writer, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "creating shard %s", path)
	}
	return &Writer{path: path, db: db}, nil
}

// Close flushes and closes the shard file.
func (w *Writer) Close() error { return w.db.Close() }

// AddComplex creates the bucket for a complex id. Storing fields into a
// complex creates it implicitly, so this is only needed for empty complexes.
func (w *Writer) AddComplex(complexID string) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(complexID))
		return err
	})
}

// PutTarget stores one target scalar.
func (w *Writer) PutTarget(complexID, name string, value float64) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		mol, err := tx.CreateBucketIfNotExists([]byte(complexID))
		if err != nil {
			return err
		}
		tb, err := mol.CreateBucketIfNotExists(bucketTargets)
		if err != nil {
			return err
		}
		return tb.Put([]byte(name), encodeFloat64(value))
	})
}

// PutDense stores a densely encoded feature field.
func (w *Writer) PutDense(complexID, group, name string, values []float32) error {
	return w.putFeature(complexID, group, name, Field{Value: values})
}

// PutSparse stores a sparsely encoded feature field. Index and values must
// have matching lengths.
func (w *Writer) PutSparse(complexID, group, name string, index []uint32, values []float32) error {
	if len(index) != len(values) {
		return errors.Errorf("sparse field %s/%s has %d indices but %d values", group, name, len(index), len(values))
	}
	return w.putFeature(complexID, group, name, Field{Sparse: true, Index: index, Value: values})
}

func (w *Writer) putFeature(complexID, group, name string, field Field) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		mol, err := tx.CreateBucketIfNotExists([]byte(complexID))
		if err != nil {
			return err
		}
		fb, err := mol.CreateBucketIfNotExists(bucketFeatures)
		if err != nil {
			return err
		}
		gb, err := fb.CreateBucketIfNotExists([]byte(group))
		if err != nil {
			return err
		}
		nb, err := gb.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		flag := []byte{0}
		if field.Sparse {
			flag[0] = 1
			if err := nb.Put(keyIndex, encodeUint32s(field.Index)); err != nil {
				return err
			}
		}
		if err := nb.Put(keySparse, flag); err != nil {
			return err
		}
		return nb.Put(keyValue, encodeFloat32s(field.Value))
	})
}

// PutGridPoints stores the coordinate arrays of the mapping grid.
func (w *Writer) PutGridPoints(complexID string, x, y, z []float32) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		mol, err := tx.CreateBucketIfNotExists([]byte(complexID))
		if err != nil {
			return err
		}
		gp, err := mol.CreateBucketIfNotExists(bucketGridPoints)
		if err != nil {
			return err
		}
		for _, axis := range []struct {
			key    []byte
			values []float32
		}{
			{[]byte("x"), x},
			{[]byte("y"), y},
			{[]byte("z"), z},
		} {
			if err := gp.Put(axis.key, encodeFloat32s(axis.values)); err != nil {
				return err
			}
		}
		return nil
	})
}
