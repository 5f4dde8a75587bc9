package kernel

import (
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Lookup resolves name under the directory vnode parent, minting a
// vnode off the owning MikuFS mount if needed (see lookupChild), and
// bumps the result's reference count the same way fs/fs.go's
// lookUpOrCreateChildInode bumps an inode's lookup count — one unit of
// "something outside this package is holding a reference", balanced
// by a later Forget rather than Close (Close covers open file
// handles; this covers whatever a directory-entry cache layer above
// Kernel is holding, e.g. a FUSE kernel's dentry cache).
func (k *Kernel) Lookup(parent vfs.InodeId, name string) (vfs.InodeId, vfs.VNodeStat, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.Table.Get(parent)
	if p == nil || !p.IsDir() {
		return vfs.InvalidID, vfs.VNodeStat{}, vfserr.New("kernel.lookup", vfserr.NotDirectory)
	}

	id, err := k.lookupChild(vfs.EffectiveNode(k.Table, parent), name)
	if err != nil {
		return vfs.InvalidID, vfs.VNodeStat{}, err
	}
	v := k.Table.Get(id)
	if v == nil {
		return vfs.InvalidID, vfs.VNodeStat{}, vfserr.New("kernel.lookup", vfserr.NotFound)
	}
	v.IncRef()
	return id, v.Stat(), nil
}

// Forget drops n references previously granted by Lookup, freeing the
// vnode once both link count and reference count reach zero.
func (k *Kernel) Forget(id vfs.InodeId, n uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	v := k.Table.Get(id)
	if v == nil {
		return nil
	}
	for i := uint64(0); i < n && v.Refcount > 0; i++ {
		v.DecRef()
	}
	if v.NLinks == 0 && !v.IsReferenced() {
		k.dropXattrStore(id)
		k.Security.RemoveLabel(id)
		k.Versions.RemoveAllFor(id)
		k.Table.Free(id)
	}
	return nil
}

// StatID returns the attribute snapshot for a vnode already known by
// ID, without a path walk — the shape GetInodeAttributes/
// SetInodeAttributes need.
func (k *Kernel) StatID(id vfs.InodeId) (vfs.VNodeStat, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	v := k.Table.Get(id)
	if v == nil {
		return vfs.VNodeStat{}, vfserr.New("kernel.stat_id", vfserr.NotFound)
	}
	return v.Stat(), nil
}

// Truncate resizes the vnode id to newSize, for callers (like
// SetInodeAttributes) that only have an ID rather than a path.
func (k *Kernel) Truncate(id vfs.InodeId, newSize uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	v := k.Table.Get(id)
	if v == nil {
		return vfserr.New("kernel.truncate", vfserr.NotFound)
	}
	return k.truncate(v, newSize)
}
