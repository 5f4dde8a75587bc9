package vfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altushkaso/mikufs/internal/vfs"
)

func TestTableAllocFreeReusesSlot(t *testing.T) {
	table := vfs.NewTable(0)

	id, err := table.Alloc(0, "first", vfs.Regular, vfs.TmpFS, 0o644, 0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, table.UsedCount(), "root vnode 0 plus the new entry")

	node := table.Get(id)
	require.NotNil(t, node)
	assert.Equal(t, "first", node.GetName())
	assert.Equal(t, vfs.Regular, node.Kind)

	table.Free(id)
	assert.Equal(t, 1, table.UsedCount())
	assert.Nil(t, table.Get(id))

	again, err := table.Alloc(0, "second", vfs.Regular, vfs.TmpFS, 0o644, 0, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestTableAllocAssignsDistinctIDs(t *testing.T) {
	table := vfs.NewTable(0)

	a, err := table.Alloc(0, "a", vfs.Regular, vfs.TmpFS, 0o644, 0, 0, 1)
	require.NoError(t, err)
	b, err := table.Alloc(0, "b", vfs.Regular, vfs.TmpFS, 0o644, 0, 0, 1)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 3, table.UsedCount())
}
