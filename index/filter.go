package index

import (
	"context"
	"sort"
	"strings"

	"github.com/PaesslerAG/gval"
	"github.com/pkg/errors"
)

// Filter retains complexes whose target values satisfy every configured
// expression. Expressions use the stored scalar as implicit left operand,
// e.g. "<4.0 or >10.0"; supported operators are <, >, == combined with
// and/or. Each expression is compiled once and evaluated per complex.
type Filter struct {
	targets []string
	exprs   map[string]gval.Evaluable
}

// MissingFilterTargetError reports a filtered target absent from a complex.
type MissingFilterTargetError struct {
	Target string
}

func (e *MissingFilterTargetError) Error() string {
	return "filter target " + e.Target + " not stored for complex"
}

// NewFilter compiles the per-target filter expressions. A nil or empty map
// yields a filter that keeps everything.
func NewFilter(conditions map[string]string) (*Filter, error) {
	f := &Filter{exprs: make(map[string]gval.Evaluable, len(conditions))}
	for target := range conditions {
		f.targets = append(f.targets, target)
	}
	sort.Strings(f.targets)
	lang := gval.Full()
	for _, target := range f.targets {
		eval, err := lang.NewEvaluable(rewriteCondition(conditions[target]))
		if err != nil {
			return nil, errors.Wrapf(err, "compiling filter %q for target %s", conditions[target], target)
		}
		f.exprs[target] = eval
	}
	return f, nil
}

// rewriteCondition turns the implicit-operand syntax into a full expression
// over the bound variable v: "<4. or >10." becomes "v < 4. || v > 10.".
func rewriteCondition(cond string) string {
	s := " " + cond + " "
	s = strings.ReplaceAll(s, " or ", " || ")
	s = strings.ReplaceAll(s, " and ", " && ")
	for _, op := range []string{"==", "<", ">"} {
		s = strings.ReplaceAll(s, op, " v "+op+" ")
	}
	return strings.Join(strings.Fields(s), " ")
}

// Empty reports whether the filter has no conditions.
func (f *Filter) Empty() bool { return len(f.exprs) == 0 }

// Targets lists the target names the filter inspects.
func (f *Filter) Targets() []string { return f.targets }

// Keep evaluates every condition against the complex's targets. A target
// named by the filter but absent from the map yields a
// *MissingFilterTargetError; the caller logs it and excludes the complex.
func (f *Filter) Keep(targets map[string]float64) (bool, error) {
	for _, target := range f.targets {
		value, ok := targets[target]
		if !ok {
			return false, &MissingFilterTargetError{Target: target}
		}
		keep, err := f.exprs[target].EvalBool(context.Background(), map[string]interface{}{"v": value})
		if err != nil {
			return false, errors.Wrapf(err, "evaluating filter for target %s", target)
		}
		if !keep {
			return false, nil
		}
	}
	return true, nil
}
