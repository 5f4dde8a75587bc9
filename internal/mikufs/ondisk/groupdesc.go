package ondisk

import "encoding/binary"

// GroupDescSize is the classic 32-byte block group descriptor. MikuFS
// never enables the 64-bit group descriptor extension, so every
// descriptor in a group descriptor table is this size regardless of
// fs type.
const GroupDescSize = 32

// GroupDescriptor locates one block group's bitmaps and inode table
// and tracks its free-space counters.
type GroupDescriptor struct {
	buf [GroupDescSize]byte
}

func (g *GroupDescriptor) Bytes() []byte { return g.buf[:] }
func (g *GroupDescriptor) LoadFrom(b []byte) { copy(g.buf[:], b) }

func (g *GroupDescriptor) BlockBitmapLoc() uint32     { return binary.LittleEndian.Uint32(g.buf[0:]) }
func (g *GroupDescriptor) SetBlockBitmapLoc(v uint32) { binary.LittleEndian.PutUint32(g.buf[0:], v) }
func (g *GroupDescriptor) InodeBitmapLoc() uint32     { return binary.LittleEndian.Uint32(g.buf[4:]) }
func (g *GroupDescriptor) SetInodeBitmapLoc(v uint32) { binary.LittleEndian.PutUint32(g.buf[4:], v) }
func (g *GroupDescriptor) InodeTableLoc() uint32      { return binary.LittleEndian.Uint32(g.buf[8:]) }
func (g *GroupDescriptor) SetInodeTableLoc(v uint32)  { binary.LittleEndian.PutUint32(g.buf[8:], v) }

func (g *GroupDescriptor) FreeBlocksCount() uint16 { return binary.LittleEndian.Uint16(g.buf[12:]) }
func (g *GroupDescriptor) SetFreeBlocksCount(v uint16) {
	binary.LittleEndian.PutUint16(g.buf[12:], v)
}
func (g *GroupDescriptor) FreeInodesCount() uint16 { return binary.LittleEndian.Uint16(g.buf[14:]) }
func (g *GroupDescriptor) SetFreeInodesCount(v uint16) {
	binary.LittleEndian.PutUint16(g.buf[14:], v)
}
func (g *GroupDescriptor) UsedDirsCount() uint16 { return binary.LittleEndian.Uint16(g.buf[16:]) }
func (g *GroupDescriptor) SetUsedDirsCount(v uint16) {
	binary.LittleEndian.PutUint16(g.buf[16:], v)
}

func (g *GroupDescriptor) Flags() uint16     { return binary.LittleEndian.Uint16(g.buf[18:]) }
func (g *GroupDescriptor) SetFlags(v uint16) { binary.LittleEndian.PutUint16(g.buf[18:], v) }

// Checksum is the optional CRC16 the spec calls out; ext4 mounts fill
// it via SetChecksum using the low 16 bits of Ext4GroupDescCsum, ext2
// mounts leave it zero.
func (g *GroupDescriptor) Checksum() uint16     { return binary.LittleEndian.Uint16(g.buf[30:]) }
func (g *GroupDescriptor) SetChecksum(v uint16) { binary.LittleEndian.PutUint16(g.buf[30:], v) }

// UpdateChecksum computes and stores the group descriptor checksum
// for ext4 mounts, folding in the group number per Ext4GroupDescCsum.
func (g *GroupDescriptor) UpdateChecksum(uuid [16]byte, groupNum uint32) {
	var tmp [GroupDescSize]byte
	copy(tmp[:], g.buf[:])
	binary.LittleEndian.PutUint16(tmp[30:], 0)
	full := Ext4GroupDescCsum(uuid, groupNum, tmp[:])
	g.SetChecksum(uint16(full))
}
