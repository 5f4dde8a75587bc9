package fsadapt

import (
	"time"

	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/jacobsa/fuse/fuseops"
)

func (fs *FileSystem) entryFor(id vfs.InodeId, stat vfs.VNodeStat) fuseops.ChildInodeEntry {
	return fuseops.ChildInodeEntry{
		Child:      fuseInodeID(id),
		Attributes: fs.statToAttrs(stat),
	}
}

// MkDir creates op.Name as a directory under op.Parent, grounded on
// fs/fs.go's MkDir (CreateChildDir followed by filling in op.Entry).
func (fs *FileSystem) MkDir(op *fuseops.MkDirOp) (err error) {
	defer func(start time.Time) { err = fs.finish("mkdir", start, err) }(time.Now())

	id, err := fs.K.Mkdir(vnodeID(op.Parent), op.Name, vfs.FileMode(op.Mode.Perm()), fs.credentials())
	if err != nil {
		return errToFuse(err)
	}
	stat, err := fs.K.StatID(id)
	if err != nil {
		return errToFuse(err)
	}
	op.Entry = fs.entryFor(id, stat)
	return nil
}

// CreateFile creates and opens op.Name under op.Parent in one step,
// grounded on fs/fs.go's CreateFile (CreateChildFile then an implicit
// open via the returned inode).
func (fs *FileSystem) CreateFile(op *fuseops.CreateFileOp) (err error) {
	defer func(start time.Time) { err = fs.finish("create", start, err) }(time.Now())

	id, fd, err := fs.K.Create(vnodeID(op.Parent), op.Name, vfs.FileMode(op.Mode.Perm()), fs.credentials())
	if err != nil {
		return errToFuse(err)
	}
	stat, err := fs.K.StatID(id)
	if err != nil {
		fs.K.Close(fd)
		return errToFuse(err)
	}
	op.Entry = fs.entryFor(id, stat)
	op.Handle = fs.newHandle()
	fs.handleMu.Lock()
	fs.fileHandles[op.Handle] = fd
	fs.handleMu.Unlock()
	return nil
}

// CreateSymlink creates op.Name under op.Parent pointing at op.Target,
// grounded on fs/fs.go's CreateSymlink.
func (fs *FileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) (err error) {
	defer func(start time.Time) { err = fs.finish("symlink", start, err) }(time.Now())

	id, err := fs.K.Symlink(vnodeID(op.Parent), op.Name, op.Target, fs.credentials())
	if err != nil {
		return errToFuse(err)
	}
	stat, err := fs.K.StatID(id)
	if err != nil {
		return errToFuse(err)
	}
	op.Entry = fs.entryFor(id, stat)
	return nil
}

func (fs *FileSystem) RmDir(op *fuseops.RmDirOp) (err error) {
	defer func(start time.Time) { err = fs.finish("rmdir", start, err) }(time.Now())
	return errToFuse(fs.K.Rmdir(vnodeID(op.Parent), op.Name, fs.credentials()))
}

func (fs *FileSystem) Unlink(op *fuseops.UnlinkOp) (err error) {
	defer func(start time.Time) { err = fs.finish("unlink", start, err) }(time.Now())
	return errToFuse(fs.K.Unlink(vnodeID(op.Parent), op.Name, fs.credentials()))
}
