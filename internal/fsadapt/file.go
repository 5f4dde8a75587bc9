package fsadapt

import (
	"time"

	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
)

// flagsFromBazil maps the bazilfuse open flags jacobsa/fuse's Op types
// carry onto vfs.OpenFlags; only the read/write direction matters once
// CreateFile/MkDir have already resolved create/excl semantics.
func flagsFromBazil(f uint32) vfs.OpenFlags {
	const (
		oWronly = 0x1
		oRdwr   = 0x2
	)
	switch f & 0x3 {
	case oWronly:
		return vfs.OWrite
	case oRdwr:
		return vfs.ORead | vfs.OWrite
	default:
		return vfs.ORead
	}
}

// OpenFile installs a Kernel file descriptor for op.Inode and hands
// back its id as op.Handle, the bridge between fuseops.HandleID and
// Kernel's own fd space (fs/fs.go has no need for this bridge since
// its FileInode serves reads directly without an open-file table).
func (fs *FileSystem) OpenFile(op *fuseops.OpenFileOp) (err error) {
	defer func(start time.Time) { err = fs.finish("open", start, err) }(time.Now())

	fd, err := fs.K.OpenID(vnodeID(op.Inode), flagsFromBazil(uint32(op.Flags)), fs.credentials())
	if err != nil {
		return errToFuse(err)
	}
	op.Handle = fs.newHandle()
	fs.handleMu.Lock()
	fs.fileHandles[op.Handle] = fd
	fs.handleMu.Unlock()
	return nil
}

func (fs *FileSystem) fdFor(h fuseops.HandleID) (int, bool) {
	fs.handleMu.Lock()
	defer fs.handleMu.Unlock()
	fd, ok := fs.fileHandles[h]
	return fd, ok
}

func (fs *FileSystem) ReadFile(op *fuseops.ReadFileOp) (err error) {
	defer func(start time.Time) { err = fs.finish("read", start, err) }(time.Now())

	fd, ok := fs.fdFor(op.Handle)
	if !ok {
		return fuse.EIO
	}
	buf := make([]byte, op.Size)
	n, err := fs.K.ReadAt(fd, buf, uint64(op.Offset))
	if err != nil {
		return errToFuse(err)
	}
	op.Data = buf[:n]
	return nil
}

func (fs *FileSystem) WriteFile(op *fuseops.WriteFileOp) (err error) {
	defer func(start time.Time) { err = fs.finish("write", start, err) }(time.Now())

	fd, ok := fs.fdFor(op.Handle)
	if !ok {
		return fuse.EIO
	}
	_, err = fs.K.WriteAt(fd, op.Data, uint64(op.Offset))
	return errToFuse(err)
}

func (fs *FileSystem) SyncFile(op *fuseops.SyncFileOp) (err error) {
	defer func(start time.Time) { err = fs.finish("fsync", start, err) }(time.Now())

	fd, ok := fs.fdFor(op.Handle)
	if !ok {
		return nil
	}
	return errToFuse(fs.K.SyncFile(fd))
}

func (fs *FileSystem) FlushFile(op *fuseops.FlushFileOp) (err error) {
	defer func(start time.Time) { err = fs.finish("flush", start, err) }(time.Now())

	fd, ok := fs.fdFor(op.Handle)
	if !ok {
		return nil
	}
	return errToFuse(fs.K.SyncFile(fd))
}

func (fs *FileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) (err error) {
	defer func(start time.Time) { err = fs.finish("release", start, err) }(time.Now())

	fs.handleMu.Lock()
	fd, ok := fs.fileHandles[op.Handle]
	delete(fs.fileHandles, op.Handle)
	fs.handleMu.Unlock()
	if !ok {
		return nil
	}
	return errToFuse(fs.K.Close(fd))
}

func (fs *FileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) (err error) {
	defer func(start time.Time) { err = fs.finish("readlink", start, err) }(time.Now())

	target, err := fs.K.Readlink(vnodeID(op.Inode))
	if err != nil {
		return errToFuse(err)
	}
	op.Target = target
	return nil
}
