package ondisk

import "hash/crc32"

// castagnoli is the standard CRC32C (Castagnoli) table, polynomial
// 0x82F63B78 — the same constant the ext4 checksum family is defined
// against. The original kernel generates this table by hand at boot
// since it has no hash/crc32 equivalent to call into; hosted here, the
// stdlib table is bit-for-bit the same table and there is no
// third-party crc32c implementation anywhere in the example pack, so
// reaching for hash/crc32 is the idiomatic choice rather than a
// hand-rolled substitute for one.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C runs the Castagnoli CRC over data starting from a seed,
// matching the original's crc32c(initial, data): the running value
// starts at initial, is updated byte by byte, and is complemented on
// return, so CRC32C(0xFFFFFFFF, "123456789") is 0xE3069283 and an
// empty input from 0xFFFFFFFF yields 0. crc32.Update complements its
// argument on entry and its result on exit, so passing ^initial gives
// exactly that. Chaining CRC32C(0xFFFFFFFF, uuid) is how every ext4
// checksum below seeds on the filesystem UUID before folding in a
// structure-specific field.
func CRC32C(initial uint32, data []byte) uint32 {
	return crc32.Update(^initial, castagnoli, data)
}

func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func le32(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }

// Ext4SuperblockCsum seeds on the volume UUID, then folds in the
// superblock bytes up to (but not including) the checksum field
// itself at offset 1020.
func Ext4SuperblockCsum(uuid [16]byte, sbBytes []byte) uint32 {
	crc := CRC32C(0xFFFFFFFF, uuid[:])
	return CRC32C(crc, sbBytes)
}

// Ext4GroupDescCsum seeds on the UUID, folds in the group number and
// the descriptor bytes excluding its own checksum field.
func Ext4GroupDescCsum(uuid [16]byte, groupNum uint32, descBytes []byte) uint32 {
	crc := CRC32C(0xFFFFFFFF, uuid[:])
	crc = CRC32C(crc, le32(groupNum))
	return CRC32C(crc, descBytes)
}

// Ext4InodeCsum seeds on the UUID, folds in the inode number and
// generation, then the inode bytes excluding its checksum fields.
func Ext4InodeCsum(uuid [16]byte, inodeNum uint32, generation uint32, inodeBytes []byte) uint32 {
	crc := CRC32C(0xFFFFFFFF, uuid[:])
	crc = CRC32C(crc, le32(inodeNum))
	crc = CRC32C(crc, le32(generation))
	return CRC32C(crc, inodeBytes)
}

// Ext4ExtentCsum seeds on the UUID and inode identity, then folds in
// the extent block bytes (header + entries).
func Ext4ExtentCsum(uuid [16]byte, inodeNum uint32, generation uint32, extentBytes []byte) uint32 {
	crc := CRC32C(0xFFFFFFFF, uuid[:])
	crc = CRC32C(crc, le32(inodeNum))
	crc = CRC32C(crc, le32(generation))
	return CRC32C(crc, extentBytes)
}

// Ext4DirentCsum seeds on the UUID and parent directory's inode
// identity, then folds in the leaf block's directory entry bytes.
func Ext4DirentCsum(uuid [16]byte, parentInode uint32, generation uint32, dirBlockBytes []byte) uint32 {
	crc := CRC32C(0xFFFFFFFF, uuid[:])
	crc = CRC32C(crc, le32(parentInode))
	crc = CRC32C(crc, le32(generation))
	return CRC32C(crc, dirBlockBytes)
}

// Ext4BitmapCsum seeds on the UUID and folds in the bitmap block
// bytes; used for the low 16 bits of a group descriptor's bitmap
// checksum fields.
func Ext4BitmapCsum(uuid [16]byte, bitmapBytes []byte) uint32 {
	crc := CRC32C(0xFFFFFFFF, uuid[:])
	return CRC32C(crc, bitmapBytes)
}
