package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

// OpenFile is one entry in the per-process FD table: a vnode plus the
// flags and cursor the open() call established.
type OpenFile struct {
	VnodeID InodeId
	Flags   OpenFlags
	Offset  uint64
	Active  bool
}

func (f *OpenFile) Readable() bool { return f.Flags.Readable() }
func (f *OpenFile) Writable() bool { return f.Flags.Writable() }

// FdTable is the fixed MaxOpenFiles-slot file descriptor table.
type FdTable struct {
	files [MaxOpenFiles]OpenFile
}

func NewFdTable() *FdTable { return &FdTable{} }

func (t *FdTable) Alloc(vnodeID InodeId, flags OpenFlags) (int, error) {
	for i := 0; i < MaxOpenFiles; i++ {
		if !t.files[i].Active {
			t.files[i] = OpenFile{VnodeID: vnodeID, Flags: flags, Active: true}
			return i, nil
		}
	}
	return -1, vfserr.New("fd_table.alloc", vfserr.TooManyOpenFiles)
}

// AllocAt installs a descriptor at a caller-chosen slot (dup2-style).
func (t *FdTable) AllocAt(fd int, vnodeID InodeId, flags OpenFlags) (int, error) {
	if fd < 0 || fd >= MaxOpenFiles {
		return -1, vfserr.New("fd_table.alloc_at", vfserr.BadFd)
	}
	if t.files[fd].Active {
		return -1, vfserr.New("fd_table.alloc_at", vfserr.Busy)
	}
	t.files[fd] = OpenFile{VnodeID: vnodeID, Flags: flags, Active: true}
	return fd, nil
}

func (t *FdTable) Dup(oldFd int) (int, error) {
	f, err := t.Get(oldFd)
	if err != nil {
		return -1, err
	}
	vnodeID, flags, offset := f.VnodeID, f.Flags, f.Offset
	for i := 0; i < MaxOpenFiles; i++ {
		if !t.files[i].Active {
			t.files[i] = OpenFile{VnodeID: vnodeID, Flags: flags, Offset: offset, Active: true}
			return i, nil
		}
	}
	return -1, vfserr.New("fd_table.dup", vfserr.TooManyOpenFiles)
}

func (t *FdTable) Get(fd int) (*OpenFile, error) {
	if fd >= 0 && fd < MaxOpenFiles && t.files[fd].Active {
		return &t.files[fd], nil
	}
	return nil, vfserr.New("fd_table.get", vfserr.BadFd)
}

func (t *FdTable) Close(fd int) (InodeId, error) {
	if fd >= 0 && fd < MaxOpenFiles && t.files[fd].Active {
		vid := t.files[fd].VnodeID
		t.files[fd] = OpenFile{}
		return vid, nil
	}
	return InvalidID, vfserr.New("fd_table.close", vfserr.BadFd)
}

func (t *FdTable) OpenCount() int {
	n := 0
	for i := range t.files {
		if t.files[i].Active {
			n++
		}
	}
	return n
}

// CloseAll closes every open descriptor, returning how many were
// closed — used when a process exits.
func (t *FdTable) CloseAll() int {
	n := 0
	for i := range t.files {
		if t.files[i].Active {
			t.files[i] = OpenFile{}
			n++
		}
	}
	return n
}
