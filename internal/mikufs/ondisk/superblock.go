// Package ondisk defines the byte-exact ext2/3/4 structures MikuFS
// reads and writes through the block cache: superblock, group
// descriptor, inode, directory entry, extent tree nodes, and the
// CRC32C checksum family that seeds over them. None of this has a
// surviving Rust source file in the retrieval pack (structs.rs and
// mod.rs were filtered out) — these types are built directly from the
// field list, offsets and magic numbers the storage-stack
// specification itself gives for the on-disk format, which is why
// every accessor below is commented with the field it stands in for
// rather than a file-and-line citation.
package ondisk

import "encoding/binary"

const (
	SuperblockOffset = 1024
	SuperblockSize   = 1024

	Ext2Magic = 0xEF53
)

// Feature bits used by MikuFS's ext2/3/4 upgrade path.
const (
	FeatureCompatDirIndex = 0x0020

	FeatureIncompatFiletype = 0x0002
	FeatureIncompatExtents  = 0x0040

	FeatureRoCompatSparseSuper = 0x0001
	FeatureRoCompatLargeFile  = 0x0002
	FeatureRoCompatDirNlink   = 0x0020
	FeatureRoCompatExtraIsize = 0x0040
)

// Superblock is the raw 1024-byte superblock image. Every field is
// read and written directly against buf at a fixed offset so the
// in-memory representation is identical to what mount() reads from
// (and flush writes back to) byte 1024 of the device.
type Superblock struct {
	buf [SuperblockSize]byte
}

func (s *Superblock) Bytes() []byte { return s.buf[:] }

func (s *Superblock) LoadFrom(b []byte) {
	copy(s.buf[:], b)
}

func (s *Superblock) u32(off int) uint32           { return binary.LittleEndian.Uint32(s.buf[off:]) }
func (s *Superblock) setU32(off int, v uint32)      { binary.LittleEndian.PutUint32(s.buf[off:], v) }
func (s *Superblock) u16(off int) uint16           { return binary.LittleEndian.Uint16(s.buf[off:]) }
func (s *Superblock) setU16(off int, v uint16)      { binary.LittleEndian.PutUint16(s.buf[off:], v) }

func (s *Superblock) InodesCount() uint32      { return s.u32(0) }
func (s *Superblock) SetInodesCount(v uint32)  { s.setU32(0, v) }
func (s *Superblock) BlocksCount() uint32      { return s.u32(4) }
func (s *Superblock) SetBlocksCount(v uint32)  { s.setU32(4, v) }
func (s *Superblock) FreeBlocksCount() uint32     { return s.u32(12) }
func (s *Superblock) SetFreeBlocksCount(v uint32) { s.setU32(12, v) }
func (s *Superblock) FreeInodesCount() uint32     { return s.u32(16) }
func (s *Superblock) SetFreeInodesCount(v uint32) { s.setU32(16, v) }
func (s *Superblock) FirstDataBlock() uint32   { return s.u32(20) }
func (s *Superblock) SetFirstDataBlock(v uint32) { s.setU32(20, v) }
func (s *Superblock) LogBlockSize() uint32     { return s.u32(24) }
func (s *Superblock) SetLogBlockSize(v uint32) { s.setU32(24, v) }
func (s *Superblock) BlockSize() uint32        { return 1024 << s.LogBlockSize() }
func (s *Superblock) BlocksPerGroup() uint32   { return s.u32(32) }
func (s *Superblock) SetBlocksPerGroup(v uint32) { s.setU32(32, v) }
func (s *Superblock) InodesPerGroup() uint32   { return s.u32(40) }
func (s *Superblock) SetInodesPerGroup(v uint32) { s.setU32(40, v) }
func (s *Superblock) Mtime() uint32            { return s.u32(44) }
func (s *Superblock) SetMtime(v uint32)        { s.setU32(44, v) }
func (s *Superblock) Wtime() uint32            { return s.u32(48) }
func (s *Superblock) SetWtime(v uint32)        { s.setU32(48, v) }

func (s *Superblock) Magic() uint16 { return s.u16(56) }
func (s *Superblock) SetMagic(v uint16) { s.setU16(56, v) }
func (s *Superblock) ValidMagic() bool { return s.Magic() == Ext2Magic }

func (s *Superblock) RevLevel() uint32     { return s.u32(76) }
func (s *Superblock) SetRevLevel(v uint32) { s.setU32(76, v) }

func (s *Superblock) FirstIno() uint32     { return s.u32(84) }
func (s *Superblock) SetFirstIno(v uint32) { s.setU32(84, v) }
func (s *Superblock) InodeSize() uint16     { return s.u16(88) }
func (s *Superblock) SetInodeSize(v uint16) { s.setU16(88, v) }

func (s *Superblock) FeatureCompat() uint32      { return s.u32(92) }
func (s *Superblock) SetFeatureCompat(v uint32)  { s.setU32(92, v) }
func (s *Superblock) FeatureIncompat() uint32    { return s.u32(96) }
func (s *Superblock) SetFeatureIncompat(v uint32) { s.setU32(96, v) }
func (s *Superblock) FeatureRoCompat() uint32    { return s.u32(100) }
func (s *Superblock) SetFeatureRoCompat(v uint32) { s.setU32(100, v) }

func (s *Superblock) UUID() [16]byte {
	var u [16]byte
	copy(u[:], s.buf[104:120])
	return u
}
func (s *Superblock) SetUUID(u [16]byte) { copy(s.buf[104:120], u[:]) }

func (s *Superblock) Label() string {
	end := 120
	for end < 136 && s.buf[end] != 0 {
		end++
	}
	return string(s.buf[120:end])
}
func (s *Superblock) SetLabel(label string) {
	for i := 120; i < 136; i++ {
		s.buf[i] = 0
	}
	copy(s.buf[120:136], label)
}

// Journal fields: s_journal_inum at 140, s_journal_blocks_count at 144.
func (s *Superblock) JournalInum() uint32      { return s.u32(140) }
func (s *Superblock) SetJournalInum(v uint32)  { s.setU32(140, v) }
func (s *Superblock) JournalBlocksCount() uint32 { return s.u32(144) }
func (s *Superblock) SetJournalBlocksCount(v uint32) { s.setU32(144, v) }

func (s *Superblock) MinExtraIsize() uint16      { return s.u16(276) }
func (s *Superblock) SetMinExtraIsize(v uint16)  { s.setU16(276, v) }
func (s *Superblock) WantExtraIsize() uint16     { return s.u16(278) }
func (s *Superblock) SetWantExtraIsize(v uint16) { s.setU16(278, v) }

func (s *Superblock) Checksum() uint32     { return s.u32(1020) }
func (s *Superblock) SetChecksum(v uint32) { s.setU32(1020, v) }

func (s *Superblock) HasJournal() bool {
	return s.JournalInum() != 0
}

// IsExt4 matches the upgrade path's own definition: extents and
// filetype both present.
func (s *Superblock) IsExt4() bool {
	want := uint32(FeatureIncompatExtents | FeatureIncompatFiletype)
	return s.FeatureIncompat()&want == want
}

// ComputeChecksum folds CRC32C over the whole superblock image with
// the checksum field itself zeroed, seeded on the volume UUID.
func (s *Superblock) ComputeChecksum() uint32 {
	var tmp [SuperblockSize]byte
	copy(tmp[:], s.buf[:])
	binary.LittleEndian.PutUint32(tmp[1020:], 0)
	uuid := s.UUID()
	return Ext4SuperblockCsum(uuid, tmp[:1020])
}

func (s *Superblock) UpdateChecksum() { s.SetChecksum(s.ComputeChecksum()) }
