package features

import "strings"

// Channel names one tensor channel: the stored field it is loaded from.
type Channel struct {
	Group string
	Name  string
}

func (c Channel) String() string { return c.Group + "/" + c.Name }

// Resolved is a selection expanded against a catalog: the concrete ordered
// field names to load, per group. The order is fixed for the lifetime of a
// dataset and determines the channel order of every produced tensor.
type Resolved struct {
	Groups   []string
	Names    map[string][]string
	perChain map[string]bool
}

// Resolve expands a selection against the catalog. "all" and wildcard
// entries expand in catalog order; bare names in per-chain groups expand to
// the _chainA then _chainB tagged fields; names already carrying a chain tag
// pass through unchanged.
func Resolve(sel Selection, cat *Catalog) (*Resolved, error) {
	res := &Resolved{
		Names:    make(map[string][]string),
		perChain: make(map[string]bool),
	}

	if sel.Everything {
		for _, group := range cat.Groups {
			res.Groups = append(res.Groups, group)
			res.Names[group] = append([]string(nil), cat.Names[group]...)
			res.perChain[group] = cat.PerChain(group)
		}
		return res, nil
	}

	for _, group := range sel.Groups {
		if !cat.Has(group) {
			return nil, &UnknownGroupError{Group: group, Available: cat.Groups}
		}
		perChain := cat.PerChain(group)
		var names []string
		for _, spec := range sel.Specs[group] {
			switch spec.kind {
			case specAll:
				names = append(names, cat.Names[group]...)
			case specPrefix:
				for _, stored := range cat.Names[group] {
					if strings.HasPrefix(stored, spec.name) {
						names = append(names, stored)
					}
				}
			case specExact:
				if perChain && !HasChainSuffix(spec.name) {
					names = append(names, spec.name+ChainASuffix, spec.name+ChainBSuffix)
				} else {
					names = append(names, spec.name)
				}
			}
		}
		res.Groups = append(res.Groups, group)
		res.Names[group] = names
		res.perChain[group] = perChain
	}
	return res, nil
}

// PerChain reports whether a resolved group stores one field per chain.
func (r *Resolved) PerChain(group string) bool { return r.perChain[group] }

// Channels returns the flat ordered channel list.
func (r *Resolved) Channels() []Channel {
	var channels []Channel
	for _, group := range r.Groups {
		for _, name := range r.Names[group] {
			channels = append(channels, Channel{Group: group, Name: name})
		}
	}
	return channels
}

// NumChannels returns the number of loaded channels.
func (r *Resolved) NumChannels() int {
	n := 0
	for _, group := range r.Groups {
		n += len(r.Names[group])
	}
	return n
}

// PairGroups returns the channel index groups used by chain pairing:
// consecutive pairs for per-chain groups, single indices otherwise. An odd
// trailing channel of a per-chain group stays unpaired.
func (r *Resolved) PairGroups() [][]int {
	var groups [][]int
	start := 0
	for _, group := range r.Groups {
		n := len(r.Names[group])
		if r.perChain[group] {
			i := start
			for ; i+1 < start+n; i += 2 {
				groups = append(groups, []int{i, i + 1})
			}
			if i < start+n {
				groups = append(groups, []int{i})
			}
		} else {
			for i := start; i < start+n; i++ {
				groups = append(groups, []int{i})
			}
		}
		start += n
	}
	return groups
}
