package archive

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoGridPoints is returned by Shard.GridPoints when a complex carries no
// coordinate arrays.
var ErrNoGridPoints = errors.New("complex has no grid point arrays")

// MissingComplexError reports a complex id absent from a shard.
type MissingComplexError struct {
	Shard   string
	Complex string
}

func (e *MissingComplexError) Error() string {
	return fmt.Sprintf("complex %q not found in shard %s", e.Complex, e.Shard)
}

// MissingTargetError reports a target name absent from a complex. Available
// lists the target names the complex does carry.
type MissingTargetError struct {
	Shard     string
	Complex   string
	Target    string
	Available []string
}

func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("target %q not found for complex %q in shard %s (available: %s)",
		e.Target, e.Complex, e.Shard, strings.Join(e.Available, ", "))
}

// MissingFeatureError reports a feature group or feature name absent from a
// complex. When Name is empty the group itself is missing and Available lists
// the stored groups; otherwise Available lists the names inside the group.
type MissingFeatureError struct {
	Shard     string
	Complex   string
	Group     string
	Name      string
	Available []string
}

func (e *MissingFeatureError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("feature group %q not found for complex %q in shard %s (available groups: %s)",
			e.Group, e.Complex, e.Shard, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("feature %q not found in group %q for complex %q in shard %s (available: %s)",
		e.Name, e.Group, e.Complex, e.Shard, strings.Join(e.Available, ", "))
}
