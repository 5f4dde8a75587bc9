package vfs

// VNodeFlags holds the per-vnode behavior bits named in spec §3.
type VNodeFlags struct {
	Dirty      bool
	Immutable  bool
	AppendOnly bool
	NoAtime    bool
	Encrypted  bool
	Compressed bool
	Versioned  bool
	Locked     bool
}

// VNode is the in-memory handle to a filesystem object: the unit the
// entire VFS layer (table, path walker, dentry cache, page cache) is
// built around. It lives in a fixed-size pool (see Table); Id==0 is
// always the root of this process's namespace (spec §3 invariant 1).
type VNode struct {
	Id     InodeId
	Parent InodeId
	Name   NameBuf

	Kind   VNodeKind
	FsType FsType
	Active bool

	Mode FileMode
	UID  uint16
	GID  uint16

	Size     uint64
	NLinks   uint16
	Refcount uint16

	ATime, MTime, CTime, BTime Timestamp

	Children    Children
	AddrSpace   AddressSpace
	SymlinkDest NameBuf

	DevMajor, DevMinor uint8
	MountID            uint8

	// BackingIno is the on-disk inode number this vnode mirrors when
	// FsType == MikuFS; zero for every vnode backed by tmpfs, devfs or
	// procfs (MikuFS's own root inode is never 0, so the zero value is
	// an unambiguous "not MikuFS-backed" sentinel).
	BackingIno uint32

	Flags VNodeFlags
}

// emptyVNode returns a fresh, inactive vnode value; used both to seed
// the pool and to reset a freed slot so no stale state leaks into the
// next tenant.
func emptyVNode() VNode {
	return VNode{
		Id:          InvalidID,
		Parent:      InvalidID,
		Kind:        Regular,
		FsType:      TmpFS,
		Mode:        0o644,
		Children:    NewChildren(),
		AddrSpace:   NewAddressSpace(),
		MountID:     InvalidU8,
	}
}

// Init (re)initializes a pool slot for reuse as a new vnode. Any prior
// state in v is discarded.
func (v *VNode) Init(id, parent InodeId, name string, kind VNodeKind, fsType FsType, mode FileMode, uid, gid uint16, now Timestamp) {
	*v = emptyVNode()
	v.Id = id
	v.Parent = parent
	v.Name = NewNameBuf(name)
	v.Kind = kind
	v.FsType = fsType
	v.Mode = mode
	v.UID = uid
	v.GID = gid
	if kind == Directory {
		v.NLinks = 2
	} else {
		v.NLinks = 1
	}
	v.ATime, v.MTime, v.CTime, v.BTime = now, now, now, now
	v.Active = true
}

func (v *VNode) Reset() { *v = emptyVNode() }

func (v *VNode) IsDir() bool       { return v.Kind == Directory }
func (v *VNode) IsRegular() bool   { return v.Kind == Regular }
func (v *VNode) IsSymlink() bool   { return v.Kind == Symlink }
func (v *VNode) IsPipe() bool      { return v.Kind == Pipe || v.Kind == Fifo }
func (v *VNode) IsDevice() bool    { return v.Kind == CharDevice || v.Kind == BlockDevice }
func (v *VNode) IsMountpoint() bool { return v.MountID != InvalidU8 }
func (v *VNode) NameEq(name string) bool { return v.Name.Equal(name) }
func (v *VNode) GetName() string  { return v.Name.String() }

func (v *VNode) Stat() VNodeStat {
	return VNodeStat{
		ID:       v.Id,
		Kind:     v.Kind,
		Mode:     v.Mode,
		Size:     v.Size,
		Blocks:   v.AddrSpace.nrPages,
		NLinks:   v.NLinks,
		UID:      v.UID,
		GID:      v.GID,
		FsType:   v.FsType,
		DevMajor: v.DevMajor,
		DevMinor: v.DevMinor,
		ATime:    v.ATime,
		MTime:    v.MTime,
		CTime:    v.CTime,
		BTime:    v.BTime,
	}
}

func (v *VNode) TouchAtime(now Timestamp) {
	if !v.Flags.NoAtime {
		v.ATime = now
	}
}

func (v *VNode) TouchMtime(now Timestamp) {
	v.MTime = now
	v.CTime = now
	v.Flags.Dirty = true
}

func (v *VNode) TouchCtime(now Timestamp) { v.CTime = now }

func (v *VNode) IncRef() {
	if v.Refcount < 0xFFFF {
		v.Refcount++
	}
}

func (v *VNode) DecRef() {
	if v.Refcount > 0 {
		v.Refcount--
	}
}

func (v *VNode) IsReferenced() bool { return v.Refcount > 0 }
func (v *VNode) ChildCount() int   { return v.Children.Len() }
