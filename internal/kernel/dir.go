package kernel

import (
	"github.com/altushkaso/mikufs/internal/mikufs/ondisk"
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// DirEntry is one name a ReadDir listing yields, independent of which
// backend produced it.
type DirEntry struct {
	Name string
	ID   vfs.InodeId
	Kind vfs.VNodeKind
}

// Mkdir creates a new directory named by path, resolved from cwd.
func (k *Kernel) Mkdir(cwd vfs.InodeId, path string, mode vfs.FileMode, cred vfs.Credentials) (vfs.InodeId, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	dir, name := vfs.SplitLast(path)
	parentID, err := k.resolve(cwd, dir)
	if err != nil {
		return vfs.InvalidID, err
	}
	parent := k.Table.Get(parentID)
	if parent == nil || !parent.IsDir() {
		return vfs.InvalidID, vfserr.New("kernel.mkdir", vfserr.NotDirectory)
	}
	if !vfs.CheckAccess(parent.Mode, parent.UID, parent.GID, cred, vfs.AccessWrite) {
		return vfs.InvalidID, vfserr.New("kernel.mkdir", vfserr.PermissionDenied)
	}
	if _, err := k.lookupChild(vfs.EffectiveNode(k.Table, parentID), name); err == nil {
		return vfs.InvalidID, vfserr.New("kernel.mkdir", vfserr.AlreadyExists)
	}

	if parent.FsType == vfs.MikuFS {
		fs, ok := k.mikuByMount[parent.MountID]
		if !ok {
			return vfs.InvalidID, vfserr.New("kernel.mkdir", vfserr.NotMounted)
		}
		ino, err := fs.CreateDirectory(parent.BackingIno, name, uint16(mode), cred.Euid, cred.Egid)
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
	id, err := k.Table.Alloc(parentID, name, vfs.Directory, parent.FsType, mode, cred.Euid, cred.Egid, k.now())
	if err != nil {
		return vfs.InvalidID, err
	}
	parent.Children.Insert(vfs.NameHash(name), id)
	parent.NLinks++
	k.Quotas.AddInode(cred.Euid)
	k.Dentries.Invalidate(parentID, name)
	k.Notify.Emit(vfs.NotifyCreated, id, parentID, name, k.now())
	return id, nil
}

// Rmdir removes the empty directory named by path.
func (k *Kernel) Rmdir(cwd vfs.InodeId, path string, cred vfs.Credentials) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	dir, name := vfs.SplitLast(path)
	parentID, err := k.resolve(cwd, dir)
	if err != nil {
		return err
	}
	parent := k.Table.Get(parentID)
	if parent == nil || !parent.IsDir() {
		return vfserr.New("kernel.rmdir", vfserr.NotDirectory)
	}
	if !vfs.CheckAccess(parent.Mode, parent.UID, parent.GID, cred, vfs.AccessWrite) {
		return vfserr.New("kernel.rmdir", vfserr.PermissionDenied)
	}

	id, err := k.lookupChild(vfs.EffectiveNode(k.Table, parentID), name)
	if err != nil {
		return err
	}
	v := k.Table.Get(id)
	if v == nil || !v.IsDir() {
		return vfserr.New("kernel.rmdir", vfserr.NotDirectory)
	}
	if v.IsMountpoint() {
		return vfserr.New("kernel.rmdir", vfserr.Busy)
	}
	if v.ChildCount() > 0 {
		return vfserr.New("kernel.rmdir", vfserr.Busy)
	}

	if parent.FsType == vfs.MikuFS {
		fs, ok := k.mikuByMount[parent.MountID]
		if !ok {
			return vfserr.New("kernel.rmdir", vfserr.NotMounted)
		}
		if err := fs.RemoveDirectory(parent.BackingIno, name); err != nil {
			return err
		}
	} else {
		parent.Children.Remove(vfs.NameHash(name), id)
		if parent.NLinks > 0 {
			parent.NLinks--
		}
		k.Quotas.SubInode(v.UID)
	}

	k.Dentries.Invalidate(parentID, name)
	k.dropXattrStore(id)
	k.Security.RemoveLabel(id)
	k.Versions.RemoveAllFor(id)
	k.Table.Free(id)
	k.Notify.Emit(vfs.NotifyDeleted, id, parentID, name, k.now())
	return nil
}

// ReadDir lists every entry under the directory vnode id, merging the
// in-memory children (tmpfs/devfs/procfs, or vnodes already minted
// off a MikuFS mount) with any on-disk MikuFS entries not yet mirrored
// in memory.
func (k *Kernel) ReadDir(id vfs.InodeId) ([]DirEntry, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	dir := k.Table.Get(id)
	if dir == nil || !dir.IsDir() {
		return nil, vfserr.New("kernel.read_dir", vfserr.NotDirectory)
	}

	seen := make(map[string]bool, dir.ChildCount())
	var out []DirEntry
	for _, childID := range dir.Children.All() {
		child := k.Table.Get(childID)
		if child == nil {
			continue
		}
		name := child.GetName()
		seen[name] = true
		out = append(out, DirEntry{Name: name, ID: childID, Kind: child.Kind})
	}

	if dir.FsType == vfs.MikuFS {
		fs, ok := k.mikuByMount[dir.MountID]
		if !ok {
			return nil, vfserr.New("kernel.read_dir", vfserr.NotMounted)
		}
		inode, err := fs.ReadInode(dir.BackingIno)
		if err != nil {
			return nil, err
		}
		entries, err := fs.ReadDir(inode)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Name == "." || e.Name == ".." || seen[e.Name] {
				continue
			}
			kind := vfs.Regular
			switch e.FileType {
			case ondisk.FtDir:
				kind = vfs.Directory
			case ondisk.FtSymlink:
				kind = vfs.Symlink
			case ondisk.FtChrdev:
				kind = vfs.CharDevice
			case ondisk.FtBlkdev:
				kind = vfs.BlockDevice
			case ondisk.FtFifo:
				kind = vfs.Fifo
			}
			out = append(out, DirEntry{Name: e.Name, ID: vfs.InvalidID, Kind: kind})
		}
	}
	return out, nil
}
