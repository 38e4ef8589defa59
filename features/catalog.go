// Package features resolves user-level feature selections into the concrete
// ordered list of stored field names loaded for every complex.
//
// The stored fields of a "per-chain" group come in pairs: one field per
// chain, tagged with the _chainA / _chainB suffix. A selection may name such
// a feature bare (both chains are loaded), with an explicit suffix (used when
// reloading the resolved selection of a trained model), with a trailing
// wildcard, or as "all".
package features

import (
	"fmt"
	"strings"

	"github.com/structml/voxelset/archive"
)

// Chain suffixes carried by per-chain feature names, in channel order.
const (
	ChainASuffix = "_chainA"
	ChainBSuffix = "_chainB"
)

// Catalog lists the feature groups and names stored in an archive, in
// storage order. It is enumerated once from a representative complex and is
// the source of truth for "all" and wildcard resolution.
type Catalog struct {
	Groups []string
	Names  map[string][]string
}

// EnumerateCatalog inspects the first complex of a shard and lists every
// stored feature group and name.
func EnumerateCatalog(s *archive.Shard) (*Catalog, error) {
	ids, err := s.Complexes()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("shard %s holds no complexes to enumerate features from", s.Path())
	}
	groups, err := s.Groups(ids[0])
	if err != nil {
		return nil, err
	}
	cat := &Catalog{Groups: groups, Names: make(map[string][]string, len(groups))}
	for _, group := range groups {
		names, err := s.FeatureNames(ids[0], group)
		if err != nil {
			return nil, err
		}
		cat.Names[group] = names
	}
	return cat, nil
}

// Has reports whether the catalog contains the group.
func (c *Catalog) Has(group string) bool {
	_, ok := c.Names[group]
	return ok
}

// PerChain reports whether a group stores one field per chain. A group is
// per-chain when every stored name carries a chain suffix.
func (c *Catalog) PerChain(group string) bool {
	names := c.Names[group]
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if !HasChainSuffix(name) {
			return false
		}
	}
	return true
}

// HasChainSuffix reports whether a feature name already carries a chain tag.
func HasChainSuffix(name string) bool {
	return strings.HasSuffix(name, ChainASuffix) || strings.HasSuffix(name, ChainBSuffix)
}
