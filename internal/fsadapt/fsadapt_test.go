package fsadapt

import (
	"os"
	"testing"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"

	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

func TestVnodeIDRoundTrip(t *testing.T) {
	for _, id := range []vfs.InodeId{0, 1, 42} {
		assert.Equal(t, id, vnodeID(fuseInodeID(id)))
	}
	assert.Equal(t, fuseops.InodeID(fuseops.RootInodeID), fuseInodeID(0))
}

func TestFileModeToOS(t *testing.T) {
	dir := vfs.VNodeStat{Kind: vfs.Directory, Mode: 0o755}
	assert.Equal(t, os.ModeDir|0o755, fileModeToOS(dir))

	link := vfs.VNodeStat{Kind: vfs.Symlink, Mode: 0o777}
	assert.Equal(t, os.ModeSymlink|0o777, fileModeToOS(link))

	reg := vfs.VNodeStat{Kind: vfs.Regular, Mode: 0o600}
	assert.Equal(t, os.FileMode(0o600), fileModeToOS(reg))
}

func TestErrToFuseMapsKnownCodes(t *testing.T) {
	assert.Nil(t, errToFuse(nil))
	assert.Equal(t, fuse.ENOENT, errToFuse(vfserr.New("x", vfserr.NotFound)))
	assert.Equal(t, fuse.EEXIST, errToFuse(vfserr.New("x", vfserr.AlreadyExists)))
	assert.Equal(t, fuse.ENOTDIR, errToFuse(vfserr.New("x", vfserr.NotDirectory)))
	assert.Equal(t, fuse.EIO, errToFuse(vfserr.New("x", vfserr.IOError)))
}

func TestFlagsFromBazil(t *testing.T) {
	assert.Equal(t, vfs.ORead, flagsFromBazil(0))
	assert.Equal(t, vfs.OWrite, flagsFromBazil(1))
	assert.Equal(t, vfs.ORead|vfs.OWrite, flagsFromBazil(2))
}
