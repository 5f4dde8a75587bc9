package mikufs

import (
	"github.com/altushkaso/mikufs/internal/mikufs/ondisk"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// GetFileBlock translates a logical block index within inode's data
// into a physical device block number, returning 0 (a hole) when no
// block is yet mapped there. Extent-flagged inodes walk the extent
// tree rooted in the inode's block area; everything else uses the
// legacy direct/single/double/triple indirect pointer scheme.
func (fs *FS) GetFileBlock(inode *ondisk.Inode, logicalBlock uint32) (uint32, error) {
	if inode.UsesExtents() {
		return fs.walkExtentNode(inode.BlockArea(), logicalBlock)
	}
	return fs.walkIndirect(inode, logicalBlock)
}

// walkExtentNode interprets node as an extent header plus entries. At
// depth 0 it searches leaf entries for the one whose range covers
// logical; above depth 0 it picks the index entry with the largest
// ei_block <= logical and recurses into the block it points to.
func (fs *FS) walkExtentNode(node []byte, logical uint32) (uint32, error) {
	header := ondisk.DecodeExtentHeader(node)
	if !header.Valid() {
		return 0, vfserr.New("mikufs.get_file_block", vfserr.Corrupt)
	}
	if header.Depth == 0 {
		leaves := ondisk.LeafEntries(node, header)
		leaf, ok := ondisk.FindLeafFor(leaves, logical)
		if !ok {
			return 0, nil
		}
		return uint32(leaf.Start()) + (logical - leaf.Block), nil
	}
	idxs := ondisk.IndexEntries(node, header)
	idx, ok := ondisk.FindIndexFor(idxs, logical)
	if !ok {
		return 0, nil
	}
	childBlock, err := fs.readBlock(uint32(idx.Leaf()))
	if err != nil {
		return 0, err
	}
	return fs.walkExtentNode(childBlock, logical)
}

func (fs *FS) walkIndirect(inode *ondisk.Inode, logical uint32) (uint32, error) {
	if logical < 12 {
		return inode.DirectBlock(int(logical)), nil
	}
	logical -= 12
	ptrsPerBlock := fs.blockSize / 4

	if logical < ptrsPerBlock {
		return fs.indirectLookup(inode.SingleIndirect(), logical)
	}
	logical -= ptrsPerBlock

	if logical < ptrsPerBlock*ptrsPerBlock {
		outer := logical / ptrsPerBlock
		inner := logical % ptrsPerBlock
		mid, err := fs.indirectLookup(inode.DoubleIndirect(), outer)
		if err != nil || mid == 0 {
			return 0, err
		}
		return fs.indirectLookup(mid, inner)
	}
	logical -= ptrsPerBlock * ptrsPerBlock

	if logical >= ptrsPerBlock*ptrsPerBlock*ptrsPerBlock {
		return 0, vfserr.New("mikufs.get_file_block", vfserr.FileTooLarge)
	}
	l1 := logical / (ptrsPerBlock * ptrsPerBlock)
	rem := logical % (ptrsPerBlock * ptrsPerBlock)
	l2 := rem / ptrsPerBlock
	l3 := rem % ptrsPerBlock
	a, err := fs.indirectLookup(inode.TripleIndirect(), l1)
	if err != nil || a == 0 {
		return 0, err
	}
	b, err := fs.indirectLookup(a, l2)
	if err != nil || b == 0 {
		return 0, err
	}
	return fs.indirectLookup(b, l3)
}

func (fs *FS) indirectLookup(blockNum uint32, index uint32) (uint32, error) {
	if blockNum == 0 {
		return 0, nil
	}
	return fs.indirectEntryValue(blockNum, index)
}

// ReadFile copies up to len(buf) bytes of inode's content starting at
// offset into buf, returning holes as zeros, and never reading past
// inode.Size().
func (fs *FS) ReadFile(inode *ondisk.Inode, offset uint64, buf []byte) (int, error) {
	size := inode.Size()
	if offset >= size {
		return 0, nil
	}
	toRead := uint64(len(buf))
	if offset+toRead > size {
		toRead = size - offset
	}

	bs := uint64(fs.blockSize)
	n := 0
	for uint64(n) < toRead {
		logical := (offset + uint64(n)) / bs
		within := (offset + uint64(n)) % bs
		chunk := bs - within
		if chunk > toRead-uint64(n) {
			chunk = toRead - uint64(n)
		}

		phys, err := fs.GetFileBlock(inode, uint32(logical))
		if err != nil {
			return n, err
		}
		if phys == 0 {
			for i := uint64(0); i < chunk; i++ {
				buf[uint64(n)+i] = 0
			}
		} else {
			block, err := fs.readBlock(phys)
			if err != nil {
				return n, err
			}
			copy(buf[n:uint64(n)+chunk], block[within:within+chunk])
		}
		n += int(chunk)
	}
	return n, nil
}

// WriteFile writes data at offset into the inode identified by
// inodeNum, allocating blocks (via the legacy pointer scheme, or
// appending root-level extent leaves for extent-flagged inodes) as
// needed and growing the inode's size.
//
// Extent allocation here only grows the inode's root-level extent
// array (up to 4 entries, matching init_extent_header(4)); a file
// that needs a fifth distinct extent returns FileTooLarge rather than
// growing an external index block. Every scenario this engine is
// built against (S1, S3, and the invariant suite) stays within a
// single contiguous extent, so this is a deliberate scope line, not
// an oversight.
func (fs *FS) WriteFile(inodeNum uint32, data []byte, offset uint64) (int, error) {
	inode, err := fs.ReadInode(inodeNum)
	if err != nil {
		return 0, err
	}

	bs := uint64(fs.blockSize)
	n := 0
	for n < len(data) {
		logical := uint32((offset + uint64(n)) / bs)
		within := (offset + uint64(n)) % bs
		chunk := bs - within
		if chunk > uint64(len(data)-n) {
			chunk = uint64(len(data) - n)
		}

		phys, err := fs.GetFileBlock(inode, logical)
		if err != nil {
			return n, err
		}
		if phys == 0 {
			phys, err = fs.allocBlockFor(inode, logical)
			if err != nil {
				return n, err
			}
		}

		block, err := fs.readBlock(phys)
		if err != nil {
			return n, err
		}
		copy(block[within:within+chunk], data[n:uint64(n)+chunk])
		if err := fs.writeBlock(phys, block); err != nil {
			return n, err
		}
		n += int(chunk)
	}

	end := offset + uint64(n)
	if end > inode.Size() {
		inode.SetSize(end)
	}
	inode.SetMtime(fs.timestamp())
	if err := fs.WriteInode(inodeNum, inode); err != nil {
		return n, err
	}
	return n, nil
}

func (fs *FS) allocBlockFor(inode *ondisk.Inode, logical uint32) (uint32, error) {
	phys, err := fs.AllocBlock()
	if err != nil {
		return 0, err
	}
	inode.SetBlocks(inode.Blocks() + fs.blockSize/512)

	if inode.UsesExtents() {
		if err := fs.appendExtentLeaf(inode, logical, phys); err != nil {
			fs.FreeBlock(phys)
			return 0, err
		}
		return phys, nil
	}

	if err := fs.setIndirectBlock(inode, logical, phys); err != nil {
		fs.FreeBlock(phys)
		return 0, err
	}
	return phys, nil
}

// appendExtentLeaf extends the last leaf entry if phys is the next
// contiguous block after it, otherwise appends a new 1-block leaf
// entry, failing with FileTooLarge once the root's 4-entry array is
// full.
func (fs *FS) appendExtentLeaf(inode *ondisk.Inode, logical uint32, phys uint32) error {
	area := inode.BlockArea()
	header := ondisk.DecodeExtentHeader(area)
	if !header.Valid() {
		ondisk.InitExtentHeader(area, 4)
		header = ondisk.DecodeExtentHeader(area)
	}
	leaves := ondisk.LeafEntries(area, header)

	if len(leaves) > 0 {
		last := &leaves[len(leaves)-1]
		if last.Block+uint32(last.Len) == logical && uint32(last.Start())+uint32(last.Len) == phys {
			last.Len++
			last.Encode(area[12+(len(leaves)-1)*12:])
			return nil
		}
	}

	if int(header.Entries) >= int(header.Max) {
		return vfserr.New("mikufs.write_file", vfserr.FileTooLarge)
	}
	newLeaf := ondisk.ExtentLeaf{Block: logical, Len: 1, StartLo: phys}
	newLeaf.Encode(area[12+int(header.Entries)*12:])
	header.Entries++
	header.Encode(area)
	return nil
}

func (fs *FS) setIndirectBlock(inode *ondisk.Inode, logical uint32, phys uint32) error {
	if logical < 12 {
		inode.SetDirectBlock(int(logical), phys)
		return nil
	}
	logical -= 12
	ptrsPerBlock := fs.blockSize / 4

	if logical < ptrsPerBlock {
		blockNum := inode.SingleIndirect()
		if blockNum == 0 {
			nb, err := fs.AllocBlock()
			if err != nil {
				return err
			}
			inode.SetSingleIndirect(nb)
			blockNum = nb
		}
		return fs.setIndirectEntry(blockNum, logical, phys)
	}
	logical -= ptrsPerBlock

	if logical < ptrsPerBlock*ptrsPerBlock {
		outer := logical / ptrsPerBlock
		inner := logical % ptrsPerBlock
		top := inode.DoubleIndirect()
		if top == 0 {
			nb, err := fs.AllocBlock()
			if err != nil {
				return err
			}
			inode.SetDoubleIndirect(nb)
			top = nb
		}
		mid, err := fs.indirectEntryValue(top, outer)
		if err != nil {
			return err
		}
		if mid == 0 {
			nb, err := fs.AllocBlock()
			if err != nil {
				return err
			}
			if err := fs.setIndirectEntry(top, outer, nb); err != nil {
				return err
			}
			mid = nb
		}
		return fs.setIndirectEntry(mid, inner, phys)
	}

	return vfserr.New("mikufs.write_file", vfserr.FileTooLarge)
}

func (fs *FS) setIndirectEntry(blockNum uint32, index uint32, value uint32) error {
	block, err := fs.readBlock(blockNum)
	if err != nil {
		return err
	}
	off := int(index) * 4
	if off+4 > len(block) {
		return vfserr.New("mikufs.write_file", vfserr.Corrupt)
	}
	block[off] = byte(value)
	block[off+1] = byte(value >> 8)
	block[off+2] = byte(value >> 16)
	block[off+3] = byte(value >> 24)
	return fs.writeBlock(blockNum, block)
}

func (fs *FS) indirectEntryValue(blockNum uint32, index uint32) (uint32, error) {
	block, err := fs.readBlock(blockNum)
	if err != nil {
		return 0, err
	}
	off := int(index) * 4
	if off+4 > len(block) {
		return 0, vfserr.New("mikufs.write_file", vfserr.Corrupt)
	}
	return uint32(block[off]) | uint32(block[off+1])<<8 | uint32(block[off+2])<<16 | uint32(block[off+3])<<24, nil
}
