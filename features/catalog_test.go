package features

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structml/voxelset/archive"
)

func TestEnumerateCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "complexes.db")
	w, err := archive.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.PutDense("1AK4", "AtomicDensities", "CA_chainA", []float32{1}))
	require.NoError(t, w.PutDense("1AK4", "AtomicDensities", "CA_chainB", []float32{2}))
	require.NoError(t, w.PutDense("1AK4", "Features", "charge_chainA", []float32{3}))
	require.NoError(t, w.Close())

	s, err := archive.Open(path)
	require.NoError(t, err)
	defer s.Close()

	cat, err := EnumerateCatalog(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"AtomicDensities", "Features"}, cat.Groups)
	assert.Equal(t, []string{"CA_chainA", "CA_chainB"}, cat.Names["AtomicDensities"])
	assert.True(t, cat.PerChain("AtomicDensities"))
}

func TestEnumerateCatalogEmptyShard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	w, err := archive.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	s, err := archive.Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = EnumerateCatalog(s)
	assert.Error(t, err)
}
