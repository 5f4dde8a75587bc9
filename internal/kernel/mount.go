package kernel

import (
	"log/slog"
	"time"

	"github.com/altushkaso/mikufs/internal/blockdev"
	"github.com/altushkaso/mikufs/internal/devfs"
	"github.com/altushkaso/mikufs/internal/mikufs"
	"github.com/altushkaso/mikufs/internal/mikufs/mkfs"
	"github.com/altushkaso/mikufs/internal/procfs"
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Clock is the minimal time source Mount needs to hand a freshly
// mounted MikuFS engine; any type with a Now method satisfies it,
// such as cmd's realClock.
type Clock interface {
	Now() time.Time
}

// Mount grafts a new filesystem root onto the vnode at mountpoint
// (resolved from cwd), recording the mapping in the mount table. dev
// and clk are only consulted for fsType == vfs.MikuFS; log may be nil.
func (k *Kernel) Mount(cwd vfs.InodeId, mountpoint string, fsType vfs.FsType, dev blockdev.Device, clk Clock, log *slog.Logger) (uint8, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	mpID, err := k.resolve(cwd, mountpoint)
	if err != nil {
		return vfs.InvalidU8, err
	}
	mp := k.Table.Get(mpID)
	if mp == nil || !mp.IsDir() {
		return vfs.InvalidU8, vfserr.New("kernel.mount", vfserr.NotDirectory)
	}
	if mp.IsMountpoint() {
		return vfs.InvalidU8, vfserr.New("kernel.mount", vfserr.Busy)
	}

	var fs *mikufs.FS
	var rootIno uint32
	if fsType == vfs.MikuFS {
		fs, err = mikufs.Mount(dev, clk, log)
		if err != nil {
			return vfs.InvalidU8, err
		}
		rootIno = uint32(mkfs.RootIno)
	}

	mountID, err := k.Mounts.Add(fsType, vfs.InvalidID, mpID)
	if err != nil {
		return vfs.InvalidU8, err
	}

	mode := vfs.FileMode(0o755)
	rootID, err := k.Table.Alloc(vfs.InvalidID, "/", vfs.Directory, fsType, mode, 0, 0, k.now())
	if err != nil {
		k.Mounts.Remove(mountID)
		return vfs.InvalidU8, err
	}
	root := k.Table.MustGet(rootID)
	root.MountID = mountID
	mp.MountID = mountID
	if entry, ok := k.Mounts.Get(mountID); ok {
		entry.RootVnode = rootID
	}

	switch fsType {
	case vfs.DevFS:
		k.populateDevFS(rootID, mountID)
	case vfs.ProcFS:
		k.populateProcFS(rootID, mountID)
	case vfs.MikuFS:
		root.BackingIno = rootIno
		k.mikuByMount[mountID] = fs
		k.devices.Register(blockdev.AtaDisk, mountpoint, dev)
	}

	k.Notify.Emit(vfs.NotifyCreated, rootID, mpID, mountpoint, k.now())
	return mountID, nil
}

func (k *Kernel) populateDevFS(rootID vfs.InodeId, mountID uint8) {
	for _, e := range devfs.Entries {
		id, err := k.Table.Alloc(rootID, e.Name, vfs.CharDevice, vfs.DevFS, 0o666, 0, 0, k.now())
		if err != nil {
			continue
		}
		v := k.Table.MustGet(id)
		v.MountID = mountID
		v.DevMajor = e.Type.Major()
		v.DevMinor = e.Type.Minor()
		rootID2 := k.Table.MustGet(rootID)
		rootID2.Children.Insert(vfs.NameHash(e.Name), id)
	}
}

func (k *Kernel) populateProcFS(rootID vfs.InodeId, mountID uint8) {
	for _, name := range procfs.Entries {
		id, err := k.Table.Alloc(rootID, name, vfs.Regular, vfs.ProcFS, 0o444, 0, 0, k.now())
		if err != nil {
			continue
		}
		v := k.Table.MustGet(id)
		v.MountID = mountID
		root := k.Table.MustGet(rootID)
		root.Children.Insert(vfs.NameHash(name), id)
	}
}

// Umount detaches the filesystem mounted at mountID, freeing every
// vnode it minted and, for a MikuFS mount, dropping the engine. The
// block-device registration Mount made stays in the device manager.
// It refuses a mount with anything still open under it.
func (k *Kernel) Umount(mountID uint8) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.Mounts.Get(mountID)
	if !ok {
		return vfserr.New("kernel.umount", vfserr.NotMounted)
	}

	for i := range k.Table.Nodes {
		n := &k.Table.Nodes[i]
		if n.Active && n.MountID == mountID && n.IsReferenced() {
			return vfserr.New("kernel.umount", vfserr.Busy)
		}
	}

	for i := range k.Table.Nodes {
		n := &k.Table.Nodes[i]
		if n.Active && n.MountID == mountID {
			id := vfs.InodeId(i)
			k.Dentries.InvalidateAllFor(id)
			k.dropXattrStore(id)
			k.Security.RemoveLabel(id)
			k.Locks.ReleaseAllForVnode(id)
			if id != entry.RootVnode {
				k.Table.Free(id)
			}
		}
	}
	k.Table.Free(entry.RootVnode)

	delete(k.mikuByMount, mountID)

	if mp := k.Table.Get(entry.ParentVnode); mp != nil {
		mp.MountID = vfs.InvalidU8
	}
	return k.Mounts.Remove(mountID)
}
