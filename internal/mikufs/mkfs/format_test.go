package mkfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altushkaso/mikufs/internal/blockdev"
	"github.com/altushkaso/mikufs/internal/mikufs/mkfs"
)

func TestFormatExt4ReportsExpectedLayout(t *testing.T) {
	dev := blockdev.NewMemDevice(4096, 64)
	params := mkfs.DefaultParams(mkfs.Ext4, 0, 64*4096/512)

	report, err := mkfs.Format(dev, params)
	require.NoError(t, err)

	assert.Equal(t, mkfs.Ext4, report.FsType)
	assert.Equal(t, uint64(64), report.TotalBlocks)
	assert.Equal(t, uint32(4096), report.BlockSize)
	assert.Equal(t, uint32(mkfs.RootIno), report.RootInode)
	assert.NotZero(t, report.GroupCount)
}

func TestFormatRejectsMismatchedBlockSize(t *testing.T) {
	dev := blockdev.NewMemDevice(1024, 64)
	params := mkfs.DefaultParams(mkfs.Ext4, 0, 64)

	_, err := mkfs.Format(dev, params)
	assert.Error(t, err)
}

func TestFormatRejectsTooSmallDevice(t *testing.T) {
	dev := blockdev.NewMemDevice(1024, 4)
	params := mkfs.DefaultParams(mkfs.Ext2, 0, 4)

	_, err := mkfs.Format(dev, params)
	assert.Error(t, err)
}
