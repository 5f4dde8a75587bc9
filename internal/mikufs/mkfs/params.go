// Package mkfs builds a fresh ext2/3/4 image: superblock, group
// descriptor table, bitmaps, inode table, optional journal area, and
// root directory.
package mkfs

// FsType selects which on-disk feature set mkfs formats for.
type FsType uint8

const (
	Ext2 FsType = iota
	Ext3
	Ext4
)

func (t FsType) String() string {
	switch t {
	case Ext2:
		return "ext2"
	case Ext3:
		return "ext3"
	case Ext4:
		return "ext4"
	default:
		return "unknown"
	}
}

// NeedsJournal reports whether this fs type reserves a journal inode
// and block range at format time.
func (t FsType) NeedsJournal() bool { return t == Ext3 || t == Ext4 }

// NeedsExtents reports whether files default to the extent tree
// layout rather than legacy indirect block pointers.
func (t FsType) NeedsExtents() bool { return t == Ext4 }

// MkfsParams describes the image mkfs.Format will build.
type MkfsParams struct {
	FsType       FsType
	DriveIndex   uint8
	TotalSectors uint64
	BlockSize    uint32
	InodeSize    uint16
	JournalBlocks uint32
	Label        [16]byte
}

// DefaultLabel is "miku" null-padded to 16 bytes, the original's
// default volume label.
func DefaultLabel() [16]byte {
	var l [16]byte
	copy(l[:], "miku")
	return l
}

// DefaultParams fills in the per-fstype defaults the original mkfs
// uses when the caller doesn't override them: ext2 = (1024 block,
// 128 inode, 0 journal); ext3 = (1024, 128, 128); ext4 = (4096, 256,
// 256).
func DefaultParams(fsType FsType, driveIndex uint8, totalSectors uint64) MkfsParams {
	p := MkfsParams{
		FsType:       fsType,
		DriveIndex:   driveIndex,
		TotalSectors: totalSectors,
		Label:        DefaultLabel(),
	}
	switch fsType {
	case Ext2:
		p.BlockSize, p.InodeSize, p.JournalBlocks = 1024, 128, 0
	case Ext3:
		p.BlockSize, p.InodeSize, p.JournalBlocks = 1024, 128, 128
	case Ext4:
		p.BlockSize, p.InodeSize, p.JournalBlocks = 4096, 256, 256
	}
	return p
}
