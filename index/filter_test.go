package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteCondition(t *testing.T) {
	assert.Equal(t, "v < 4. || v > 10.", rewriteCondition("<4. or >10."))
	assert.Equal(t, "v == 1.0", rewriteCondition("==1.0"))
	assert.Equal(t, "v > 0.2 && v < 0.8", rewriteCondition(">0.2 and <0.8"))
}

func TestFilterKeep(t *testing.T) {
	f, err := NewFilter(map[string]string{"IRMSD": "<4.0 or >10.0"})
	require.NoError(t, err)

	keep, err := f.Keep(map[string]float64{"IRMSD": 2.0})
	require.NoError(t, err)
	assert.True(t, keep)

	keep, err = f.Keep(map[string]float64{"IRMSD": 11.0})
	require.NoError(t, err)
	assert.True(t, keep)

	keep, err = f.Keep(map[string]float64{"IRMSD": 7.0})
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestFilterConjunction(t *testing.T) {
	f, err := NewFilter(map[string]string{"DOCKQ": ">0.2 and <0.8"})
	require.NoError(t, err)

	keep, err := f.Keep(map[string]float64{"DOCKQ": 0.5})
	require.NoError(t, err)
	assert.True(t, keep)

	keep, err = f.Keep(map[string]float64{"DOCKQ": 0.9})
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestFilterEquality(t *testing.T) {
	f, err := NewFilter(map[string]string{"binary_class": "==1.0"})
	require.NoError(t, err)

	keep, err := f.Keep(map[string]float64{"binary_class": 1.0})
	require.NoError(t, err)
	assert.True(t, keep)

	keep, err = f.Keep(map[string]float64{"binary_class": 0.0})
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestFilterMultipleTargets(t *testing.T) {
	f, err := NewFilter(map[string]string{
		"IRMSD": "<4.0",
		"DOCKQ": ">0.5",
	})
	require.NoError(t, err)

	keep, err := f.Keep(map[string]float64{"IRMSD": 2.0, "DOCKQ": 0.7})
	require.NoError(t, err)
	assert.True(t, keep)

	keep, err = f.Keep(map[string]float64{"IRMSD": 2.0, "DOCKQ": 0.3})
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestFilterMissingTarget(t *testing.T) {
	f, err := NewFilter(map[string]string{"IRMSD": "<4.0"})
	require.NoError(t, err)

	_, err = f.Keep(map[string]float64{"DOCKQ": 0.7})
	var missing *MissingFilterTargetError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "IRMSD", missing.Target)
}

func TestFilterEmpty(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)
	assert.True(t, f.Empty())

	keep, err := f.Keep(nil)
	require.NoError(t, err)
	assert.True(t, keep)
}

func TestFilterBadExpression(t *testing.T) {
	_, err := NewFilter(map[string]string{"IRMSD": "<<"})
	assert.Error(t, err)
}
