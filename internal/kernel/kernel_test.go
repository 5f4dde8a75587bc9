package kernel_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altushkaso/mikufs/internal/blockdev"
	"github.com/altushkaso/mikufs/internal/kernel"
	"github.com/altushkaso/mikufs/internal/logger"
	"github.com/altushkaso/mikufs/internal/mikufs/mkfs"
	"github.com/altushkaso/mikufs/internal/vfs"
)

var rootCred = vfs.Credentials{Euid: 0, Egid: 0}

func TestTmpfsCreateWriteReadRoundTrip(t *testing.T) {
	k := kernel.New(io.Discard)

	fd, err := k.Open(0, "/hello.txt", vfs.OCreate|vfs.ORead|vfs.OWrite, 0o644, rootCred)
	require.NoError(t, err)

	n, err := k.Write(fd, []byte("hello, miku"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	buf := make([]byte, 32)
	n, err = k.ReadAt(fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello, miku", string(buf[:n]))

	require.NoError(t, k.Close(fd))
}

func TestTmpfsMkdirAndReadDir(t *testing.T) {
	k := kernel.New(io.Discard)

	dirID, err := k.Mkdir(0, "/sub", 0o755, rootCred)
	require.NoError(t, err)

	fd, err := k.Open(dirID, "child", vfs.OCreate|vfs.OWrite, 0o644, rootCred)
	require.NoError(t, err)
	require.NoError(t, k.Close(fd))

	entries, err := k.ReadDir(dirID)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "child")
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestMikuFSMountAndPersistAcrossOpens(t *testing.T) {
	const blockSize = 1024
	dev := blockdev.NewMemDevice(blockSize, 256)

	_, err := mkfs.Format(dev, mkfs.DefaultParams(mkfs.Ext2, 0, 256*blockSize/512))
	require.NoError(t, err)

	k := kernel.New(io.Discard)
	clk := fixedClock{t: time.Unix(1700000000, 0)}
	mountID, err := k.Mount(0, "/mnt", vfs.MikuFS, dev, clk, logger.Discard())
	require.NoError(t, err)
	assert.NotEqual(t, vfs.InvalidU8, mountID)

	fd, err := k.Open(0, "/mnt/data.bin", vfs.OCreate|vfs.ORead|vfs.OWrite, 0o644, rootCred)
	require.NoError(t, err)

	payload := []byte("miku on disk")
	_, err = k.Write(fd, payload)
	require.NoError(t, err)
	require.NoError(t, k.SyncFile(fd))
	require.NoError(t, k.Close(fd))

	fd2, err := k.Open(0, "/mnt/data.bin", vfs.ORead, 0, rootCred)
	require.NoError(t, err)
	buf := make([]byte, len(payload))
	n, err := k.ReadAt(fd2, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])
	require.NoError(t, k.Close(fd2))
}
