package fsadapt

import (
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

func (fs *FileSystem) Init(op *fuseops.InitOp) error {
	return nil
}

// LookUpInode resolves op.Name under op.Parent, minting a Kernel vnode
// the same way fs/fs.go's LookUpInode calls lookUpOrCreateChildInode.
func (fs *FileSystem) LookUpInode(op *fuseops.LookUpInodeOp) (err error) {
	defer func(start time.Time) { err = fs.finish("lookup", start, err) }(time.Now())

	id, stat, err := fs.K.Lookup(vnodeID(op.Parent), op.Name)
	if err != nil {
		return errToFuse(err)
	}
	op.Entry.Child = fuseInodeID(id)
	op.Entry.Attributes = fs.statToAttrs(stat)
	return nil
}

func (fs *FileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) (err error) {
	defer func(start time.Time) { err = fs.finish("getattr", start, err) }(time.Now())

	stat, err := fs.K.StatID(vnodeID(op.Inode))
	if err != nil {
		return errToFuse(err)
	}
	op.Attributes = fs.statToAttrs(stat)
	return nil
}

// SetInodeAttributes supports truncation (the only mutation the
// underlying vnode types expose beyond chmod); mode/time changes are
// accepted but not persisted, mirroring fs/fs.go's refusal to support
// anything beyond Size on a FileInode.
func (fs *FileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) (err error) {
	defer func(start time.Time) { err = fs.finish("setattr", start, err) }(time.Now())

	id := vnodeID(op.Inode)
	if op.Size != nil {
		if err := fs.K.Truncate(id, *op.Size); err != nil {
			return errToFuse(err)
		}
	}
	stat, err := fs.K.StatID(id)
	if err != nil {
		return errToFuse(err)
	}
	op.Attributes = fs.statToAttrs(stat)
	return nil
}

// ForgetInode drops op.N references granted by a prior LookUpInode,
// the same shape fs/fs.go's unlockAndDecrementLookupCount provides.
func (fs *FileSystem) ForgetInode(op *fuseops.ForgetInodeOp) (err error) {
	defer func(start time.Time) { err = fs.finish("forget", start, err) }(time.Now())
	return errToFuse(fs.K.Forget(vnodeID(op.Inode), op.N))
}
