package keyspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_OpenReturnsSameInstanceOnSecondCall(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	ns, _ := NewNamespaceID()

	a, err := m.Open(ns)
	require.NoError(t, err)
	b, err := m.Open(ns)
	require.NoError(t, err)

	assert.Same(t, a, b)
}

func TestManager_ListDiscoversOnDiskNamespaces(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	ns, _ := NewNamespaceID()
	_, err = m.Open(ns)
	require.NoError(t, err)

	fresh, err := NewManager(dir)
	require.NoError(t, err)
	ids, err := fresh.List()

	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, ns, ids[0])
}

func TestManager_DropRemovesFileAndCache(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	ns, _ := NewNamespaceID()
	_, err = m.Open(ns)
	require.NoError(t, err)

	require.NoError(t, m.Drop(ns))

	ids, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
