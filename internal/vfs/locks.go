package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

type LockType uint8

const (
	LockShared LockType = iota
	LockExclusive
)

// FileLock is a POSIX-style advisory byte-range lock. Length==0 means
// "to end of file" (offset..infinity).
type FileLock struct {
	VnodeID InodeId
	Type    LockType
	PID     uint16
	Offset  uint64
	Length  uint64
	Active  bool
}

// ConflictsWith reports whether two locks overlap incompatibly: same
// vnode, different holder, overlapping byte ranges, and not both
// shared.
func (l *FileLock) ConflictsWith(other *FileLock) bool {
	if !l.Active || !other.Active {
		return false
	}
	if l.VnodeID != other.VnodeID {
		return false
	}
	if l.PID == other.PID {
		return false
	}

	s1, e1 := l.Offset, ^uint64(0)
	if l.Length != 0 {
		e1 = l.Offset + l.Length
	}
	s2, e2 := other.Offset, ^uint64(0)
	if other.Length != 0 {
		e2 = other.Offset + other.Length
	}

	if s1 >= e2 || s2 >= e1 {
		return false
	}

	if l.Type == LockShared && other.Type == LockShared {
		return false
	}
	return true
}

// LockManager is the fixed MaxLocks-slot advisory lock table shared by
// every open file on every vnode.
type LockManager struct {
	locks [MaxLocks]FileLock
}

func NewLockManager() *LockManager { return &LockManager{} }

func (m *LockManager) Acquire(vnodeID InodeId, pid uint16, lockType LockType, offset, length uint64) error {
	newLock := FileLock{VnodeID: vnodeID, Type: lockType, PID: pid, Offset: offset, Length: length, Active: true}

	for i := range m.locks {
		if m.locks[i].ConflictsWith(&newLock) {
			return vfserr.New("lock_manager.acquire", vfserr.WouldBlock)
		}
	}
	for i := range m.locks {
		if !m.locks[i].Active {
			m.locks[i] = newLock
			return nil
		}
	}
	return vfserr.New("lock_manager.acquire", vfserr.NoSpace)
}

func (m *LockManager) Release(vnodeID InodeId, pid uint16) error {
	found := false
	for i := range m.locks {
		if m.locks[i].Active && m.locks[i].VnodeID == vnodeID && m.locks[i].PID == pid {
			m.locks[i] = FileLock{}
			found = true
		}
	}
	if !found {
		return vfserr.New("lock_manager.release", vfserr.NoLock)
	}
	return nil
}

func (m *LockManager) ReleaseAllForPID(pid uint16) {
	for i := range m.locks {
		if m.locks[i].Active && m.locks[i].PID == pid {
			m.locks[i] = FileLock{}
		}
	}
}

func (m *LockManager) ReleaseAllForVnode(vnodeID InodeId) {
	for i := range m.locks {
		if m.locks[i].Active && m.locks[i].VnodeID == vnodeID {
			m.locks[i] = FileLock{}
		}
	}
}

func (m *LockManager) HasLock(vnodeID InodeId, pid uint16) bool {
	for i := range m.locks {
		if m.locks[i].Active && m.locks[i].VnodeID == vnodeID && m.locks[i].PID == pid {
			return true
		}
	}
	return false
}

func (m *LockManager) LockCount() int {
	n := 0
	for i := range m.locks {
		if m.locks[i].Active {
			n++
		}
	}
	return n
}
