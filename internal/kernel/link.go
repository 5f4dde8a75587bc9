package kernel

import (
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Symlink creates a symlink named by path whose target is the literal
// string target (never resolved at creation time).
func (k *Kernel) Symlink(cwd vfs.InodeId, path, target string, cred vfs.Credentials) (vfs.InodeId, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	dir, name := vfs.SplitLast(path)
	parentID, err := k.resolve(cwd, dir)
	if err != nil {
		return vfs.InvalidID, err
	}
	parent := k.Table.Get(parentID)
	if parent == nil || !parent.IsDir() {
		return vfs.InvalidID, vfserr.New("kernel.symlink", vfserr.NotDirectory)
	}
	if !vfs.CheckAccess(parent.Mode, parent.UID, parent.GID, cred, vfs.AccessWrite) {
		return vfs.InvalidID, vfserr.New("kernel.symlink", vfserr.PermissionDenied)
	}
	if _, err := k.lookupChild(vfs.EffectiveNode(k.Table, parentID), name); err == nil {
		return vfs.InvalidID, vfserr.New("kernel.symlink", vfserr.AlreadyExists)
	}
	if parent.FsType != vfs.MikuFS && !vfs.FitsName(target) {
		return vfs.InvalidID, vfserr.New("kernel.symlink", vfserr.NameTooLong)
	}

	if parent.FsType == vfs.MikuFS {
		fs, ok := k.mikuByMount[parent.MountID]
		if !ok {
			return vfs.InvalidID, vfserr.New("kernel.symlink", vfserr.NotMounted)
		}
		ino, err := fs.CreateSymlink(parent.BackingIno, name, target, cred.Euid, cred.Egid)
		if err != nil {
			return vfs.InvalidID, err
		}
		id, err := k.mintMikuFSVnode(parentID, name, parent.MountID, fs, ino)
		if err != nil {
			return vfs.InvalidID, err
		}
		k.Dentries.Invalidate(parentID, name)
		return id, nil
	}

	if err := k.Quotas.CheckInodes(cred.Euid); err != nil {
		return vfs.InvalidID, err
	}
	id, err := k.Table.Alloc(parentID, name, vfs.Symlink, parent.FsType, 0o777, cred.Euid, cred.Egid, k.now())
	if err != nil {
		return vfs.InvalidID, err
	}
	v := k.Table.MustGet(id)
	v.SymlinkDest = vfs.NewNameBuf(target)
	v.Size = uint64(len(target))
	parent.Children.Insert(vfs.NameHash(name), id)
	k.Quotas.AddInode(cred.Euid)
	k.Dentries.Invalidate(parentID, name)
	k.Notify.Emit(vfs.NotifyCreated, id, parentID, name, k.now())
	return id, nil
}

// Readlink returns the raw (unresolved) target of the symlink at id.
func (k *Kernel) Readlink(id vfs.InodeId) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	v := k.Table.Get(id)
	if v == nil || !v.IsSymlink() {
		return "", vfserr.New("kernel.readlink", vfserr.InvalidArgument)
	}
	return k.readSymlinkTarget(v)
}

// Link creates a new hard link named by newPath pointing at the same
// inode as oldPath. Directory targets are refused, matching POSIX.
func (k *Kernel) Link(cwd vfs.InodeId, oldPath, newPath string, cred vfs.Credentials) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	targetID, err := k.resolve(cwd, oldPath)
	if err != nil {
		return err
	}
	target := k.Table.Get(targetID)
	if target == nil {
		return vfserr.New("kernel.link", vfserr.NotFound)
	}
	if target.IsDir() {
		return vfserr.New("kernel.link", vfserr.IsDirectory)
	}

	dir, name := vfs.SplitLast(newPath)
	parentID, err := k.resolve(cwd, dir)
	if err != nil {
		return err
	}
	parent := k.Table.Get(parentID)
	if parent == nil || !parent.IsDir() {
		return vfserr.New("kernel.link", vfserr.NotDirectory)
	}
	if parent.MountID != target.MountID {
		return vfserr.New("kernel.link", vfserr.InvalidArgument)
	}
	if !vfs.CheckAccess(parent.Mode, parent.UID, parent.GID, cred, vfs.AccessWrite) {
		return vfserr.New("kernel.link", vfserr.PermissionDenied)
	}
	if _, err := k.lookupChild(vfs.EffectiveNode(k.Table, parentID), name); err == nil {
		return vfserr.New("kernel.link", vfserr.AlreadyExists)
	}

	if target.FsType == vfs.MikuFS {
		fs, ok := k.mikuByMount[target.MountID]
		if !ok {
			return vfserr.New("kernel.link", vfserr.NotMounted)
		}
		if err := fs.Ext2Hardlink(parent.BackingIno, name, target.BackingIno); err != nil {
			return err
		}
		if inode, err := fs.ReadInode(target.BackingIno); err == nil {
			target.NLinks = inode.LinksCount()
		}
	} else {
		parent.Children.Insert(vfs.NameHash(name), targetID)
		target.NLinks++
	}

	k.Dentries.Invalidate(parentID, name)
	k.Notify.Emit(vfs.NotifyCreated, targetID, parentID, name, k.now())
	return nil
}

// Unlink removes the name at path, freeing its vnode once both the
// link count and open-reference count reach zero.
func (k *Kernel) Unlink(cwd vfs.InodeId, path string, cred vfs.Credentials) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	dir, name := vfs.SplitLast(path)
	parentID, err := k.resolve(cwd, dir)
	if err != nil {
		return err
	}
	parent := k.Table.Get(parentID)
	if parent == nil || !parent.IsDir() {
		return vfserr.New("kernel.unlink", vfserr.NotDirectory)
	}
	if !vfs.CheckAccess(parent.Mode, parent.UID, parent.GID, cred, vfs.AccessWrite) {
		return vfserr.New("kernel.unlink", vfserr.PermissionDenied)
	}

	id, err := k.lookupChild(vfs.EffectiveNode(k.Table, parentID), name)
	if err != nil {
		return err
	}
	v := k.Table.Get(id)
	if v == nil {
		return vfserr.New("kernel.unlink", vfserr.NotFound)
	}
	if v.IsDir() {
		return vfserr.New("kernel.unlink", vfserr.IsDirectory)
	}

	if parent.FsType == vfs.MikuFS {
		fs, ok := k.mikuByMount[parent.MountID]
		if !ok {
			return vfserr.New("kernel.unlink", vfserr.NotMounted)
		}
		if err := fs.Unlink(parent.BackingIno, name); err != nil {
			return err
		}
		if inode, err := fs.ReadInode(v.BackingIno); err == nil {
			v.NLinks = inode.LinksCount()
		} else {
			v.NLinks = 0
		}
	} else {
		parent.Children.Remove(vfs.NameHash(name), id)
		if v.NLinks > 0 {
			v.NLinks--
		}
	}

	k.Dentries.Invalidate(parentID, name)
	k.Notify.Emit(vfs.NotifyDeleted, id, parentID, name, k.now())

	if v.NLinks == 0 && !v.IsReferenced() {
		k.dropXattrStore(id)
		k.Security.RemoveLabel(id)
		k.Versions.RemoveAllFor(id)
		k.Quotas.SubInode(v.UID)
		k.Table.Free(id)
	}
	return nil
}
