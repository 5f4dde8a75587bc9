package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

// Table is the fixed pool of MaxVNodes vnodes that forms the process's
// entire vnode tree. Allocation is a linear scan for the first
// inactive slot (spec §4.4: "small N keeps this fine").
type Table struct {
	Nodes [MaxVNodes]VNode
}

// NewTable builds an empty table with vnode 0 already initialized as
// the root directory of the process namespace (spec §3 invariant 1).
func NewTable(now Timestamp) *Table {
	t := &Table{}
	for i := range t.Nodes {
		t.Nodes[i] = emptyVNode()
	}
	t.Nodes[0].Init(0, InvalidID, "/", Directory, TmpFS, 0o755, 0, 0, now)
	t.Nodes[0].Refcount = 1
	return t
}

// Alloc scans for the first inactive slot and initializes it.
func (t *Table) Alloc(parent InodeId, name string, kind VNodeKind, fsType FsType, mode FileMode, uid, gid uint16, now Timestamp) (InodeId, error) {
	for i := 1; i < MaxVNodes; i++ {
		if !t.Nodes[i].Active {
			t.Nodes[i].Init(InodeId(i), parent, name, kind, fsType, mode, uid, gid, now)
			return InodeId(i), nil
		}
	}
	return InvalidID, vfserr.New("vnode_table.alloc", vfserr.NoSpace)
}

// Free reclaims id's slot. Per spec §5, this is only valid once
// refcount==0 and nlinks==0; callers are responsible for checking
// that invariant before calling Free (table.go intentionally does not
// re-check it, since the two callers — unlink-completion and
// FD-close-completion — already hold the authoritative counts).
func (t *Table) Free(id InodeId) {
	if int(id) < MaxVNodes && id != 0 {
		t.Nodes[id].Reset()
	}
}

// Get returns a pointer to the active vnode at id, or nil.
func (t *Table) Get(id InodeId) *VNode {
	if int(id) >= MaxVNodes || !t.Nodes[id].Active {
		return nil
	}
	return &t.Nodes[id]
}

// MustGet is Get without the nil check, for call sites that already
// validated id refers to a live vnode (e.g. immediately after Alloc).
func (t *Table) MustGet(id InodeId) *VNode { return &t.Nodes[id] }

func (t *Table) UsedCount() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].Active {
			n++
		}
	}
	return n
}
