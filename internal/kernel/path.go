package kernel

import (
	"strings"

	"github.com/altushkaso/mikufs/internal/mikufs"
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// resolve walks path component by component from cwd (or the global
// root for an absolute path), the same shape as vfs.Resolve but with
// two additions vfs.Resolve can't make on its own since it has no
// engine access: a dentry cache consulted before the in-memory
// children index, and a fallback onto the owning MikuFS mount's own
// on-disk directory when a MikuFS-backed directory vnode has no
// in-memory child for the component yet (see lookupChild).
func (k *Kernel) resolve(cwd vfs.InodeId, path string) (vfs.InodeId, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return cwd, nil
	}

	current := cwd
	if strings.HasPrefix(path, "/") {
		current = 0
	}
	depth := 0

	for _, component := range strings.Split(path, "/") {
		if component == "" || component == "." {
			continue
		}
		if component == ".." {
			if p := k.Table.Get(current); p != nil && p.Parent != vfs.InvalidID {
				current = p.Parent
			}
			continue
		}

		depth++
		if depth > vfs.MaxPathDepth {
			return vfs.InvalidID, vfserr.New("kernel.resolve", vfserr.InvalidPath)
		}

		dir := k.Table.Get(current)
		if dir == nil || !dir.IsDir() {
			return vfs.InvalidID, vfserr.New("kernel.resolve", vfserr.NotDirectory)
		}
		eff := vfs.EffectiveNode(k.Table, current)

		child, err := k.lookupChild(eff, component)
		if err != nil {
			return vfs.InvalidID, err
		}
		current = child

		if n := k.Table.Get(current); n != nil && n.IsSymlink() {
			current, err = k.followSymlink(current, 0)
			if err != nil {
				return vfs.InvalidID, err
			}
		}
	}
	return current, nil
}

// lookupChild finds name under parent, checking the dentry cache, then
// the in-memory children index, then — for a MikuFS-backed directory
// with nothing cached — the mount's on-disk directory, minting a new
// vnode for whatever it finds there (mirroring how the teacher's GCS
// filesystem mints an inode the first time a name resolves to a
// backing object it hasn't seen yet).
func (k *Kernel) lookupChild(parent vfs.InodeId, name string) (vfs.InodeId, error) {
	if id, ok := k.Dentries.Lookup(parent, name); ok {
		return id, nil
	}

	h := vfs.NameHash(name)
	parentNode := k.Table.MustGet(parent)
	for _, candidate := range parentNode.Children.FindByHash(h) {
		if n := k.Table.Get(candidate); n != nil && n.NameEq(name) {
			k.Dentries.Insert(parent, name, candidate)
			return candidate, nil
		}
	}

	if parentNode.FsType == vfs.MikuFS {
		if id, err := k.mintMikuFSChild(parent, name); err == nil {
			k.Dentries.Insert(parent, name, id)
			return id, nil
		}
	}

	k.Dentries.InsertNegative(parent, name)
	return vfs.InvalidID, vfserr.New("kernel.lookup_child", vfserr.NotFound)
}

// mintMikuFSChild asks the MikuFS mount owning parent's directory for
// name and, if found, allocates a vnode mirroring the on-disk inode.
func (k *Kernel) mintMikuFSChild(parent vfs.InodeId, name string) (vfs.InodeId, error) {
	parentNode := k.Table.MustGet(parent)
	fs, ok := k.mikuByMount[parentNode.MountID]
	if !ok {
		return vfs.InvalidID, vfserr.New("kernel.mint_mikufs_child", vfserr.NotMounted)
	}

	parentInode, err := fs.ReadInode(parentNode.BackingIno)
	if err != nil {
		return vfs.InvalidID, err
	}
	childIno, err := fs.Lookup(parentInode, name)
	if err != nil {
		return vfs.InvalidID, err
	}
	return k.mintMikuFSVnode(parent, name, parentNode.MountID, fs, childIno)
}

func (k *Kernel) mintMikuFSVnode(parent vfs.InodeId, name string, mountID uint8, fs *mikufs.FS, ino uint32) (vfs.InodeId, error) {
	childInode, err := fs.ReadInode(ino)
	if err != nil {
		return vfs.InvalidID, err
	}

	kind := vfs.Regular
	switch {
	case childInode.IsDirectory():
		kind = vfs.Directory
	case childInode.IsSymlink():
		kind = vfs.Symlink
	}

	id, err := k.Table.Alloc(parent, name, kind, vfs.MikuFS, vfs.FileMode(childInode.Mode()&0o7777),
		childInode.Uid(), childInode.Gid(), k.now())
	if err != nil {
		return vfs.InvalidID, err
	}
	v := k.Table.MustGet(id)
	v.MountID = mountID
	v.BackingIno = ino
	v.Size = childInode.Size()
	v.NLinks = childInode.LinksCount()
	return id, nil
}

func (k *Kernel) followSymlink(linkID vfs.InodeId, depth int) (vfs.InodeId, error) {
	if depth >= vfs.MaxSymlinkDepth {
		return vfs.InvalidID, vfserr.New("kernel.follow_symlink", vfserr.TooManySymlinks)
	}
	n := k.Table.Get(linkID)
	if n == nil || !n.IsSymlink() {
		return linkID, nil
	}

	target, err := k.readSymlinkTarget(n)
	if err != nil {
		return vfs.InvalidID, err
	}
	if target == "" {
		return vfs.InvalidID, vfserr.New("kernel.follow_symlink", vfserr.InvalidPath)
	}

	current := n.Parent
	if strings.HasPrefix(target, "/") {
		current = 0
	}
	for _, component := range strings.Split(target, "/") {
		if component == "" || component == "." {
			continue
		}
		if component == ".." {
			if p := k.Table.Get(current); p != nil && p.Parent != vfs.InvalidID {
				current = p.Parent
			}
			continue
		}
		dir := k.Table.Get(current)
		if dir == nil || !dir.IsDir() {
			return vfs.InvalidID, vfserr.New("kernel.follow_symlink", vfserr.NotDirectory)
		}
		eff := vfs.EffectiveNode(k.Table, current)
		child, err := k.lookupChild(eff, component)
		if err != nil {
			return vfs.InvalidID, err
		}
		current = child
		if cn := k.Table.Get(current); cn != nil && cn.IsSymlink() {
			current, err = k.followSymlink(current, depth+1)
			if err != nil {
				return vfs.InvalidID, err
			}
		}
	}
	return current, nil
}

// readSymlinkTarget returns the stored target for a symlink vnode,
// whichever backend holds its bytes.
func (k *Kernel) readSymlinkTarget(n *vfs.VNode) (string, error) {
	if n.FsType == vfs.MikuFS {
		fs, ok := k.mikuByMount[n.MountID]
		if !ok {
			return "", vfserr.New("kernel.read_symlink_target", vfserr.NotMounted)
		}
		inode, err := fs.ReadInode(n.BackingIno)
		if err != nil {
			return "", err
		}
		return fs.ReadSymlink(inode)
	}
	return n.SymlinkDest.String(), nil
}
