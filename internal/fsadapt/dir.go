package fsadapt

import (
	"time"

	"github.com/altushkaso/mikufs/internal/kernel"
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// dirHandle freezes a directory's entry listing at OpenDir time, the
// simplest correct answer to FUSE's "rewinddir gives a fresh view,
// seekdir within the same handle does not" contract (see the long
// comment on fuseops.ReadDirOp.Offset) — MikuFS/tmpfs directories are
// read synchronously in full, unlike GCS's paginated listings that
// fs/dir_handle.go was built to span with a continuation token.
type dirHandle struct {
	entries []fuseops.Dirent
}

func directTypeFor(kind vfs.VNodeKind) fuseops.DirentType {
	switch kind {
	case vfs.Directory:
		return fuseops.DT_Directory
	case vfs.Symlink:
		return fuseops.DT_Link
	case vfs.CharDevice:
		return fuseops.DT_Char
	case vfs.BlockDevice:
		return fuseops.DT_Block
	case vfs.Fifo:
		return fuseops.DT_FIFO
	default:
		return fuseops.DT_File
	}
}

func newDirHandle(entries []kernel.DirEntry) *dirHandle {
	out := make([]fuseops.Dirent, len(entries))
	for i, e := range entries {
		out[i] = fuseops.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fuseInodeID(e.ID),
			Name:   e.Name,
			Type:   directTypeFor(e.Kind),
		}
	}
	return &dirHandle{entries: out}
}

// OpenDir snapshots the target directory's entries under a new
// handle, grounded on fs/fs.go's OpenDir (allocate a handle, stash a
// dirHandle keyed by it) generalized from GCS's paginated dirHandle to
// MikuFS/tmpfs's synchronous, fully in-memory ReadDir.
func (fs *FileSystem) OpenDir(op *fuseops.OpenDirOp) (err error) {
	defer func(start time.Time) { err = fs.finish("opendir", start, err) }(time.Now())

	entries, err := fs.K.ReadDir(vnodeID(op.Inode))
	if err != nil {
		return errToFuse(err)
	}
	op.Handle = fs.newHandle()
	fs.handleMu.Lock()
	fs.dirHandles[op.Handle] = newDirHandle(entries)
	fs.handleMu.Unlock()
	return nil
}

// ReadDir encodes dh.entries starting at op.Offset into op.Dst up to
// its byte budget, the same shape dirHandle.ReadDir uses in fs/fs.go.
func (fs *FileSystem) ReadDir(op *fuseops.ReadDirOp) (err error) {
	defer func(start time.Time) { err = fs.finish("readdir", start, err) }(time.Now())

	fs.handleMu.Lock()
	dh, ok := fs.dirHandles[op.Handle]
	fs.handleMu.Unlock()
	if !ok {
		return fuse.EIO
	}

	idx := int(op.Offset)
	var n int
	for idx < len(dh.entries) {
		written := fuseutil.WriteDirent(op.Dst[n:], dh.entries[idx])
		if written == 0 {
			break
		}
		n += written
		idx++
	}
	op.BytesRead = n
	return nil
}

func (fs *FileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) (err error) {
	defer func(start time.Time) { err = fs.finish("releasedir", start, err) }(time.Now())

	fs.handleMu.Lock()
	delete(fs.dirHandles, op.Handle)
	fs.handleMu.Unlock()
	return nil
}
