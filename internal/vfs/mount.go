package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

// Mount option bits, ORed into MountEntry.Flags.
const (
	MntRdonly uint32 = 0x01
	MntNosuid uint32 = 0x02
	MntNodev  uint32 = 0x04
	MntNoexec uint32 = 0x08
	MntNoatime uint32 = 0x10
)

type MountEntry struct {
	ID           uint8
	FsType       FsType
	RootVnode    InodeId
	ParentVnode  InodeId
	Flags        uint32
	Active       bool
	ReadOnly     bool
}

// MountTable is the fixed MaxMounts-slot mount table. Mount id 0xFF
// (InvalidU8) never names a real mount: a vnode's MountID stays
// InvalidU8 until EffectiveNode (path.go) needs to cross it.
type MountTable struct {
	mounts [MaxMounts]MountEntry
	count  uint8
}

func NewMountTable() *MountTable { return &MountTable{} }

func (t *MountTable) Add(fsType FsType, root, parent InodeId) (uint8, error) {
	for i := 0; i < MaxMounts; i++ {
		if !t.mounts[i].Active {
			t.mounts[i] = MountEntry{
				ID:          uint8(i),
				FsType:      fsType,
				RootVnode:   root,
				ParentVnode: parent,
				Active:      true,
				ReadOnly:    fsType == ProcFS,
			}
			t.count++
			return uint8(i), nil
		}
	}
	return InvalidU8, vfserr.New("mount_table.add", vfserr.NoSpace)
}

func (t *MountTable) Remove(id uint8) error {
	i := int(id)
	if i < MaxMounts && t.mounts[i].Active {
		t.mounts[i] = MountEntry{}
		if t.count > 0 {
			t.count--
		}
		return nil
	}
	return vfserr.New("mount_table.remove", vfserr.NotMounted)
}

func (t *MountTable) Get(id uint8) (*MountEntry, bool) {
	i := int(id)
	if i < MaxMounts && t.mounts[i].Active {
		return &t.mounts[i], true
	}
	return nil, false
}

func (t *MountTable) FindByMountpoint(vnodeID InodeId) (*MountEntry, bool) {
	for i := range t.mounts {
		if t.mounts[i].Active && t.mounts[i].ParentVnode == vnodeID {
			return &t.mounts[i], true
		}
	}
	return nil, false
}

func (t *MountTable) FindByRoot(vnodeID InodeId) (*MountEntry, bool) {
	for i := range t.mounts {
		if t.mounts[i].Active && t.mounts[i].RootVnode == vnodeID {
			return &t.mounts[i], true
		}
	}
	return nil, false
}

func (t *MountTable) IsReadonly(mountID uint8) bool {
	m, ok := t.Get(mountID)
	if !ok {
		return false
	}
	return m.ReadOnly || m.Flags&MntRdonly != 0
}

// All returns every active mount entry.
func (t *MountTable) All() []*MountEntry {
	out := make([]*MountEntry, 0, t.count)
	for i := range t.mounts {
		if t.mounts[i].Active {
			out = append(out, &t.mounts[i])
		}
	}
	return out
}

func (t *MountTable) Count() int { return int(t.count) }
