package ondisk

import "encoding/binary"

// ExtentMagic tags the first 2 bytes of any extent header, in the
// inode's block area or in an external extent tree block.
const ExtentMagic = 0xF30A

// extentHeaderSize and extentEntrySize are both 12 bytes; the inode's
// 60-byte block area therefore holds exactly one header plus four
// entries (leaf or index) — the EXT4_EXT_MAX_ROOT_ENTRIES the
// upgrade path initializes with max=4.
const (
	extentHeaderSize = 12
	extentEntrySize  = 12
)

// ExtentHeader begins every extent tree node (whether that node is an
// inode's block area or a block of extent entries pointed to by an
// index entry).
type ExtentHeader struct {
	Magic      uint16
	Entries    uint16
	Max        uint16
	Depth      uint16
	Generation uint32
}

func DecodeExtentHeader(b []byte) ExtentHeader {
	return ExtentHeader{
		Magic:      binary.LittleEndian.Uint16(b[0:]),
		Entries:    binary.LittleEndian.Uint16(b[2:]),
		Max:        binary.LittleEndian.Uint16(b[4:]),
		Depth:      binary.LittleEndian.Uint16(b[6:]),
		Generation: binary.LittleEndian.Uint32(b[8:]),
	}
}

func (h ExtentHeader) Encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], h.Magic)
	binary.LittleEndian.PutUint16(b[2:], h.Entries)
	binary.LittleEndian.PutUint16(b[4:], h.Max)
	binary.LittleEndian.PutUint16(b[6:], h.Depth)
	binary.LittleEndian.PutUint32(b[8:], h.Generation)
}

func (h ExtentHeader) Valid() bool { return h.Magic == ExtentMagic }

// ExtentLeaf is a leaf entry: ee_block (first logical block covered),
// ee_len (block count, high bit would mark "uninitialized" in real
// ext4 — MikuFS never sets it), and a 48-bit physical start block
// split lo/hi.
type ExtentLeaf struct {
	Block   uint32
	Len     uint16
	StartHi uint16
	StartLo uint32
}

func (e ExtentLeaf) Start() uint64 { return uint64(e.StartHi)<<32 | uint64(e.StartLo) }

func DecodeExtentLeaf(b []byte) ExtentLeaf {
	return ExtentLeaf{
		Block:   binary.LittleEndian.Uint32(b[0:]),
		Len:     binary.LittleEndian.Uint16(b[4:]),
		StartHi: binary.LittleEndian.Uint16(b[6:]),
		StartLo: binary.LittleEndian.Uint32(b[8:]),
	}
}

func (e ExtentLeaf) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], e.Block)
	binary.LittleEndian.PutUint16(b[4:], e.Len)
	binary.LittleEndian.PutUint16(b[6:], e.StartHi)
	binary.LittleEndian.PutUint32(b[8:], e.StartLo)
}

// ExtentIndex is an internal node entry: ei_block (first logical
// block the subtree covers) plus a 48-bit pointer to the child
// extent-tree block.
type ExtentIndex struct {
	Block  uint32
	LeafLo uint32
	LeafHi uint16
}

func (e ExtentIndex) Leaf() uint64 { return uint64(e.LeafHi)<<32 | uint64(e.LeafLo) }

func DecodeExtentIndex(b []byte) ExtentIndex {
	return ExtentIndex{
		Block:  binary.LittleEndian.Uint32(b[0:]),
		LeafLo: binary.LittleEndian.Uint32(b[4:]),
		LeafHi: binary.LittleEndian.Uint16(b[8:]),
	}
}

func (e ExtentIndex) Encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], e.Block)
	binary.LittleEndian.PutUint32(b[4:], e.LeafLo)
	binary.LittleEndian.PutUint16(b[8:], e.LeafHi)
	binary.LittleEndian.PutUint16(b[10:], 0)
}

// entryOffset returns the byte offset of entry index i (0-based,
// after the header) within an extent tree node.
func entryOffset(i int) int { return extentHeaderSize + i*extentEntrySize }

// LeafEntries decodes header.Entries leaf entries following the
// header at the front of node.
func LeafEntries(node []byte, header ExtentHeader) []ExtentLeaf {
	out := make([]ExtentLeaf, 0, header.Entries)
	for i := 0; i < int(header.Entries); i++ {
		off := entryOffset(i)
		if off+extentEntrySize > len(node) {
			break
		}
		out = append(out, DecodeExtentLeaf(node[off:]))
	}
	return out
}

// IndexEntries decodes header.Entries index entries following the
// header at the front of node.
func IndexEntries(node []byte, header ExtentHeader) []ExtentIndex {
	out := make([]ExtentIndex, 0, header.Entries)
	for i := 0; i < int(header.Entries); i++ {
		off := entryOffset(i)
		if off+extentEntrySize > len(node) {
			break
		}
		out = append(out, DecodeExtentIndex(node[off:]))
	}
	return out
}

// FindLeafFor returns the leaf entry covering logical, the last entry
// whose Block is <= logical, matching the extent walk's "index
// entries sorted by ei_block, pick the last with ei_block <= logical"
// rule applied at the leaf level. ok is false on a hole (no entry
// starts at or before logical, or logical falls past the matched
// extent's length).
func FindLeafFor(leaves []ExtentLeaf, logical uint32) (ExtentLeaf, bool) {
	var best ExtentLeaf
	found := false
	for _, e := range leaves {
		if e.Block <= logical && (!found || e.Block > best.Block) {
			best, found = e, true
		}
	}
	if !found || logical >= best.Block+uint32(best.Len) {
		return ExtentLeaf{}, false
	}
	return best, true
}

// FindIndexFor is the index-node analogue of FindLeafFor, used at
// tree depths above 0 to pick which child subtree to recurse into.
func FindIndexFor(idxs []ExtentIndex, logical uint32) (ExtentIndex, bool) {
	var best ExtentIndex
	found := false
	for _, e := range idxs {
		if e.Block <= logical && (!found || e.Block > best.Block) {
			best, found = e, true
		}
	}
	return best, found
}

// InitExtentHeader formats the 60-byte inode block area (or an
// external extent tree block) as an empty extent header with the
// given maximum entry count, matching the inline-to-extents
// conversion's init_extent_header(4) call.
func InitExtentHeader(area []byte, max uint16) {
	for i := range area {
		area[i] = 0
	}
	h := ExtentHeader{Magic: ExtentMagic, Entries: 0, Max: max, Depth: 0}
	h.Encode(area)
}
