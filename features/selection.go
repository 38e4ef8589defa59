package features

import (
	"fmt"
	"strings"
)

type specKind int

const (
	specAll specKind = iota
	specExact
	specPrefix
)

// Spec is one requested entry of a feature selection: everything in a group,
// an exact name, or a wildcard prefix. Specs are parsed once at setup and
// never re-interpreted.
type Spec struct {
	kind specKind
	name string
}

// All selects every stored name of a group, in catalog order.
func All() Spec { return Spec{kind: specAll} }

// Exact selects one name. Bare names in per-chain groups expand to both
// chain-tagged fields during resolution.
func Exact(name string) Spec { return Spec{kind: specExact, name: name} }

// Prefix selects every stored name sharing the prefix.
func Prefix(p string) Spec { return Spec{kind: specPrefix, name: p} }

// ParseSpec interprets a selection string: the literal "all", a name with a
// trailing "*" wildcard, or an exact name.
func ParseSpec(s string) Spec {
	if s == "all" {
		return All()
	}
	if i := strings.Index(s, "*"); i >= 0 {
		return Prefix(s[:i])
	}
	return Exact(s)
}

func (s Spec) String() string {
	switch s.kind {
	case specAll:
		return "all"
	case specPrefix:
		return s.name + "*"
	default:
		return s.name
	}
}

// Selection is an ordered mapping from group name to requested specs. The
// zero value with Everything set selects all stored groups and names.
type Selection struct {
	Everything bool
	Groups     []string
	Specs      map[string][]Spec
}

// SelectEverything selects every group and name in the catalog.
func SelectEverything() Selection {
	return Selection{Everything: true}
}

// NewSelection builds an empty explicit selection.
func NewSelection() Selection {
	return Selection{Specs: make(map[string][]Spec)}
}

// Add appends specs for a group, keeping group order stable.
func (s *Selection) Add(group string, specs ...Spec) {
	if s.Specs == nil {
		s.Specs = make(map[string][]Spec)
	}
	if _, ok := s.Specs[group]; !ok {
		s.Groups = append(s.Groups, group)
	}
	s.Specs[group] = append(s.Specs[group], specs...)
}

// UnknownGroupError reports a selection naming a group absent from the
// catalog.
type UnknownGroupError struct {
	Group     string
	Available []string
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("feature group %q not found in archive (available groups: %s)",
		e.Group, strings.Join(e.Available, ", "))
}
