package kernel

import "github.com/altushkaso/mikufs/internal/vfs"

// SyncFile flushes fd's dirty state to its backing store: dirty pages
// for a tmpfs/devfs/procfs vnode, or the owning MikuFS mount's
// superblock/group descriptors and device for a MikuFS-backed one.
func (k *Kernel) SyncFile(fd int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	of, err := k.Fds.Get(fd)
	if err != nil {
		return err
	}
	v := k.Table.Get(of.VnodeID)
	if v == nil {
		return nil
	}

	if v.FsType == vfs.MikuFS {
		if fs, ok := k.mikuByMount[v.MountID]; ok {
			return fs.Sync()
		}
		return nil
	}

	v.AddrSpace.IterPages(func(_ int, pid vfs.PageId) {
		k.Pages.MarkClean(pid)
	})
	return nil
}

// SyncAll flushes every mounted MikuFS filesystem.
func (k *Kernel) SyncAll() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, fs := range k.mikuByMount {
		if err := fs.Sync(); err != nil {
			return err
		}
	}
	k.Pages.FlushAll()
	return nil
}
