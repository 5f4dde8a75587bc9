package ondisk

import "encoding/binary"

// dirEntryHeader is the 8-byte fixed header preceding every
// directory entry's name: inode(4) + rec_len(2) + name_len(1) +
// file_type(1).
const dirEntryHeader = 8

// MaxDirEntries bounds how many entries ReadDirBlock will parse out of
// a single directory block into the slice it returns.
const MaxDirEntries = 64

// DirEntry is one parsed directory record. Offset is the byte offset
// within its block, useful for in-place rec_len surgery during
// add/remove.
type DirEntry struct {
	Inode    uint32
	RecLen   uint16
	NameLen  uint8
	FileType uint8
	Name     string
	Offset   int
}

// align4 rounds n up to the next multiple of 4, the rec_len alignment
// every directory entry must respect.
func align4(n int) int { return (n + 3) &^ 3 }

func decodeDirEntry(block []byte, off int) DirEntry {
	inode := binary.LittleEndian.Uint32(block[off:])
	recLen := binary.LittleEndian.Uint16(block[off+4:])
	nameLen := block[off+6]
	fileType := block[off+7]
	name := string(block[off+dirEntryHeader : off+dirEntryHeader+int(nameLen)])
	return DirEntry{Inode: inode, RecLen: recLen, NameLen: nameLen, FileType: fileType, Name: name, Offset: off}
}

func encodeDirEntry(block []byte, e DirEntry) {
	binary.LittleEndian.PutUint32(block[e.Offset:], e.Inode)
	binary.LittleEndian.PutUint16(block[e.Offset+4:], e.RecLen)
	block[e.Offset+6] = e.NameLen
	block[e.Offset+7] = e.FileType
	copy(block[e.Offset+dirEntryHeader:], e.Name)
}

// ReadDirBlock parses directory records out of block in order,
// stopping at the first malformed record (rec_len == 0 or rec_len
// larger than what remains of the block) and at MaxDirEntries,
// whichever comes first. A malformed record truncates the walk but is
// not an error: entries parsed so far are returned.
func ReadDirBlock(block []byte) []DirEntry {
	var out []DirEntry
	off := 0
	for off+dirEntryHeader <= len(block) && len(out) < MaxDirEntries {
		recLen := binary.LittleEndian.Uint16(block[off+4:])
		if recLen == 0 || off+int(recLen) > len(block) {
			break
		}
		e := decodeDirEntry(block, off)
		if e.Inode != 0 {
			out = append(out, e)
		}
		off += int(recLen)
	}
	return out
}

// neededLen is the minimum rec_len an entry for name needs: header
// plus the 4-byte-aligned name.
func neededLen(name string) int { return dirEntryHeader + align4(len(name)) }

// AddDirEntry scans block for the first record with enough slack
// (rec_len - its own needed length >= the new entry's needed length)
// and splits it, writing the new entry into the freed tail. It
// reports false if this block has no record with enough room.
func AddDirEntry(block []byte, inode uint32, name string, fileType uint8) bool {
	need := neededLen(name)
	off := 0
	for off+dirEntryHeader <= len(block) {
		recLen := int(binary.LittleEndian.Uint16(block[off+4:]))
		if recLen == 0 || off+recLen > len(block) {
			break
		}
		existingInode := binary.LittleEndian.Uint32(block[off:])
		existingNameLen := int(block[off+6])
		used := 0
		if existingInode != 0 {
			used = neededLen(string(block[off+dirEntryHeader : off+dirEntryHeader+existingNameLen]))
		}
		slack := recLen - used
		if slack >= need {
			newOff := off + used
			if used > 0 {
				binary.LittleEndian.PutUint16(block[off+4:], uint16(used))
			}
			newEntry := DirEntry{
				Inode:    inode,
				RecLen:   uint16(recLen - used),
				NameLen:  uint8(len(name)),
				FileType: fileType,
				Name:     name,
				Offset:   newOff,
			}
			encodeDirEntry(block, newEntry)
			return true
		}
		off += recLen
	}
	return false
}

// RemoveDirEntry folds the named entry's rec_len into the immediately
// preceding record so the block's total rec_len stays constant; the
// removed record's bytes are left as-is but are no longer reachable
// by walking rec_len. If the removed entry was the first in the block,
// it is left in place with its inode field zeroed (a tombstone) rather
// than merged backward, since there is no preceding record to absorb
// it. Reports whether an entry was found and removed.
func RemoveDirEntry(block []byte, name string) bool {
	off := 0
	prevOff := -1
	for off+dirEntryHeader <= len(block) {
		recLen := int(binary.LittleEndian.Uint16(block[off+4:]))
		if recLen == 0 || off+recLen > len(block) {
			break
		}
		inode := binary.LittleEndian.Uint32(block[off:])
		nameLen := int(block[off+6])
		entryName := string(block[off+dirEntryHeader : off+dirEntryHeader+nameLen])
		if inode != 0 && entryName == name {
			if prevOff >= 0 {
				prevRecLen := int(binary.LittleEndian.Uint16(block[prevOff+4:]))
				binary.LittleEndian.PutUint16(block[prevOff+4:], uint16(prevRecLen+recLen))
			} else {
				binary.LittleEndian.PutUint32(block[off:], 0)
			}
			return true
		}
		prevOff = off
		off += recLen
	}
	return false
}

// InitDirBlock formats a fresh directory block as a single free
// record spanning the whole block, ready for AddDirEntry to carve
// "." and ".." (and later, real entries) out of.
func InitDirBlock(block []byte) {
	for i := range block {
		block[i] = 0
	}
	binary.LittleEndian.PutUint16(block[4:], uint16(len(block)))
}
