package kernel

import (
	"github.com/altushkaso/mikufs/internal/vfs"
)

// LockFile acquires a POSIX advisory byte-range lock on fd's vnode for
// pid.
func (k *Kernel) LockFile(fd int, pid uint16, lockType vfs.LockType, offset, length uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	of, err := k.Fds.Get(fd)
	if err != nil {
		return err
	}
	return k.Locks.Acquire(of.VnodeID, pid, lockType, offset, length)
}

// UnlockFile releases pid's lock on fd's vnode, if any.
func (k *Kernel) UnlockFile(fd int, pid uint16) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	of, err := k.Fds.Get(fd)
	if err != nil {
		return err
	}
	return k.Locks.Release(of.VnodeID, pid)
}

// UnlockAllForPID releases every lock pid holds, across all vnodes —
// the cleanup a process exit performs.
func (k *Kernel) UnlockAllForPID(pid uint16) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Locks.ReleaseAllForPID(pid)
}

// CloseAllForPID closes every fd still open in this Kernel's table,
// whichever process opened it (the table is not per-process), and
// returns how many it closed. It decrements vnode and MikuFS reference
// counts as Close does, but unlike Close it releases no locks, emits
// no NotifyClosed events and does not reclaim unlinked vnodes.
func (k *Kernel) CloseAllForPID() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	closed := 0
	for fd := 0; fd < vfs.MaxOpenFiles; fd++ {
		of, err := k.Fds.Get(fd)
		if err != nil {
			continue
		}
		v := k.Table.Get(of.VnodeID)
		if v != nil {
			v.DecRef()
			if v.FsType == vfs.MikuFS {
				if fs, ok := k.mikuByMount[v.MountID]; ok {
					fs.DecRef(v.BackingIno)
				}
			}
		}
		if _, err := k.Fds.Close(fd); err == nil {
			closed++
		}
	}
	return closed
}
