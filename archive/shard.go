// Package archive reads and writes the per-structure feature archives
// produced by the upstream extraction stage.
//
// A shard is one bbolt file keyed by complex id. Each complex holds a
// targets bucket (name -> float64 scalar), a mapped_features bucket
// (group -> feature name -> dense or sparse field), and optionally a
// grid_points bucket with the x, y, z coordinate arrays of the mapping grid.
//
// The assembly pipeline opens shards read-only; the Writer exists for the
// extraction stage and for test fixtures.
package archive

import (
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTargets    = []byte("targets")
	bucketFeatures   = []byte("mapped_features")
	bucketGridPoints = []byte("grid_points")

	keySparse = []byte("sparse")
	keyValue  = []byte("value")
	keyIndex  = []byte("index")
)

// Field is one stored feature field. Dense fields carry only Value; sparse
// fields carry matching Index and Value slices plus the flag.
type Field struct {
	Sparse bool
	Index  []uint32
	Value  []float32
}

// Shard is a read-only handle on one archive file.
type Shard struct {
	path string
	db   *bolt.DB
}

// Open opens a shard read-only. Opening fails if the file does not exist or
// is not a valid archive.
func Open(path string) (*Shard, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening shard %s", path)
	}
	return &Shard{path: path, db: db}, nil
}

// Path returns the file path the shard was opened from.
func (s *Shard) Path() string { return s.path }

// Close releases the underlying file handle.
func (s *Shard) Close() error { return s.db.Close() }

// Complexes lists the complex ids stored in the shard, in key order.
func (s *Shard) Complexes() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			ids = append(ids, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing complexes in %s", s.path)
	}
	return ids, nil
}

func (s *Shard) complex(tx *bolt.Tx, id string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(id))
	if b == nil {
		return nil, &MissingComplexError{Shard: s.path, Complex: id}
	}
	return b, nil
}

// TargetNames lists the target names stored for a complex.
func (s *Shard) TargetNames(complexID string) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		mol, err := s.complex(tx, complexID)
		if err != nil {
			return err
		}
		tb := mol.Bucket(bucketTargets)
		if tb == nil {
			return nil
		}
		return tb.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// Target reads one target scalar by name.
func (s *Shard) Target(complexID, name string) (float64, error) {
	var value float64
	err := s.db.View(func(tx *bolt.Tx) error {
		mol, err := s.complex(tx, complexID)
		if err != nil {
			return err
		}
		tb := mol.Bucket(bucketTargets)
		var raw []byte
		if tb != nil {
			raw = tb.Get([]byte(name))
		}
		if raw == nil {
			avail, _ := s.TargetNames(complexID)
			return &MissingTargetError{Shard: s.path, Complex: complexID, Target: name, Available: avail}
		}
		value, err = decodeFloat64(raw)
		return err
	})
	return value, err
}

// Targets reads all target scalars of a complex.
func (s *Shard) Targets(complexID string) (map[string]float64, error) {
	targets := make(map[string]float64)
	err := s.db.View(func(tx *bolt.Tx) error {
		mol, err := s.complex(tx, complexID)
		if err != nil {
			return err
		}
		tb := mol.Bucket(bucketTargets)
		if tb == nil {
			return nil
		}
		return tb.ForEach(func(k, v []byte) error {
			val, err := decodeFloat64(v)
			if err != nil {
				return errors.Wrapf(err, "target %q of complex %q", string(k), complexID)
			}
			targets[string(k)] = val
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// Groups lists the feature group names stored for a complex, in key order.
func (s *Shard) Groups(complexID string) ([]string, error) {
	var groups []string
	err := s.db.View(func(tx *bolt.Tx) error {
		mol, err := s.complex(tx, complexID)
		if err != nil {
			return err
		}
		fb := mol.Bucket(bucketFeatures)
		if fb == nil {
			return nil
		}
		return fb.ForEach(func(k, _ []byte) error {
			groups = append(groups, string(k))
			return nil
		})
	})
	return groups, err
}

// FeatureNames lists the feature names inside one group, in key order.
func (s *Shard) FeatureNames(complexID, group string) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		gb, err := s.group(tx, complexID, group)
		if err != nil {
			return err
		}
		return gb.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

func (s *Shard) group(tx *bolt.Tx, complexID, group string) (*bolt.Bucket, error) {
	mol, err := s.complex(tx, complexID)
	if err != nil {
		return nil, err
	}
	fb := mol.Bucket(bucketFeatures)
	var gb *bolt.Bucket
	if fb != nil {
		gb = fb.Bucket([]byte(group))
	}
	if gb == nil {
		avail, _ := s.Groups(complexID)
		return nil, &MissingFeatureError{Shard: s.path, Complex: complexID, Group: group, Available: avail}
	}
	return gb, nil
}

// Feature reads one stored field. The sparse flag in the field metadata
// decides whether Index is populated.
func (s *Shard) Feature(complexID, group, name string) (Field, error) {
	var field Field
	err := s.db.View(func(tx *bolt.Tx) error {
		gb, err := s.group(tx, complexID, group)
		if err != nil {
			return err
		}
		nb := gb.Bucket([]byte(name))
		if nb == nil {
			avail, _ := s.FeatureNames(complexID, group)
			return &MissingFeatureError{Shard: s.path, Complex: complexID, Group: group, Name: name, Available: avail}
		}
		if flag := nb.Get(keySparse); len(flag) == 1 && flag[0] == 1 {
			field.Sparse = true
			field.Index, err = decodeUint32s(nb.Get(keyIndex))
			if err != nil {
				return errors.Wrapf(err, "feature %s/%s of complex %q", group, name, complexID)
			}
		}
		field.Value, err = decodeFloat32s(nb.Get(keyValue))
		if err != nil {
			return errors.Wrapf(err, "feature %s/%s of complex %q", group, name, complexID)
		}
		return nil
	})
	return field, err
}

// GridPoints reads the x, y, z coordinate arrays of a complex. Returns
// ErrNoGridPoints when the complex was stored without them.
func (s *Shard) GridPoints(complexID string) (x, y, z []float32, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		mol, err := s.complex(tx, complexID)
		if err != nil {
			return err
		}
		gp := mol.Bucket(bucketGridPoints)
		if gp == nil {
			return ErrNoGridPoints
		}
		for _, axis := range []struct {
			key []byte
			dst *[]float32
		}{
			{[]byte("x"), &x},
			{[]byte("y"), &y},
			{[]byte("z"), &z},
		} {
			raw := gp.Get(axis.key)
			if raw == nil {
				return ErrNoGridPoints
			}
			values, err := decodeFloat32s(raw)
			if err != nil {
				return errors.Wrapf(err, "grid points %q of complex %q", string(axis.key), complexID)
			}
			*axis.dst = values
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return x, y, z, nil
}
