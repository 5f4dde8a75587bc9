package mikufs

import "github.com/altushkaso/mikufs/internal/vfserr"

// bestGroupForBlock picks the group with the most free blocks (ties
// broken by lowest group number) and returns group 0 when every group
// reports zero free blocks; AllocBlock then still tries each group in
// turn rather than giving up immediately.
func (fs *FS) bestGroupForBlock() uint32 {
	best := uint32(0)
	bestFree := uint16(0)
	for g, gd := range fs.groupDescs {
		if gd.FreeBlocksCount() > bestFree {
			bestFree = gd.FreeBlocksCount()
			best = uint32(g)
		}
	}
	return best
}

func (fs *FS) bestGroupForInode() uint32 {
	best := uint32(0)
	bestFree := uint16(0)
	for g, gd := range fs.groupDescs {
		if gd.FreeInodesCount() > bestFree {
			bestFree = gd.FreeInodesCount()
			best = uint32(g)
		}
	}
	return best
}

// AllocBlock finds a free bit in some group's block bitmap, preferring
// the group with the most free blocks and falling back to a linear
// scan of every group, marks it used, and returns the absolute block
// number.
func (fs *FS) AllocBlock() (uint32, error) {
	order := append([]uint32{fs.bestGroupForBlock()}, fs.allGroups()...)
	for _, g := range order {
		if blockNum, ok, err := fs.allocFromGroupBitmap(g); err != nil {
			return 0, err
		} else if ok {
			return blockNum, nil
		}
	}
	return 0, vfserr.New("mikufs.alloc_block", vfserr.NoSpace)
}

func (fs *FS) allGroups() []uint32 {
	out := make([]uint32, fs.groupCount)
	for i := range out {
		out[i] = uint32(i)
	}
	return out
}

func (fs *FS) allocFromGroupBitmap(g uint32) (uint32, bool, error) {
	if g >= uint32(len(fs.groupDescs)) {
		return 0, false, nil
	}
	gd := &fs.groupDescs[g]
	if gd.FreeBlocksCount() == 0 {
		return 0, false, nil
	}
	bitmap, err := fs.readBlock(gd.BlockBitmapLoc())
	if err != nil {
		return 0, false, err
	}
	bit, ok := findFreeBit(bitmap, fs.blocksPerGroup)
	if !ok {
		return 0, false, nil
	}
	setBit(bitmap, bit)
	if err := fs.writeBlock(gd.BlockBitmapLoc(), bitmap); err != nil {
		return 0, false, err
	}
	gd.SetFreeBlocksCount(gd.FreeBlocksCount() - 1)
	fs.superblock.SetFreeBlocksCount(fs.superblock.FreeBlocksCount() - 1)
	if err := fs.flushGroupDescs(); err != nil {
		return 0, false, err
	}
	if err := fs.flushSuperblock(); err != nil {
		return 0, false, err
	}
	return fs.firstDataBlock + g*fs.blocksPerGroup + bit, true, nil
}

// FreeBlock clears blockNum's bit in its owning group's bitmap and
// bumps the free counters back up.
func (fs *FS) FreeBlock(blockNum uint32) error {
	if blockNum < fs.firstDataBlock {
		return vfserr.New("mikufs.free_block", vfserr.InvalidArgument)
	}
	rel := blockNum - fs.firstDataBlock
	g := rel / fs.blocksPerGroup
	bit := rel % fs.blocksPerGroup
	if g >= uint32(len(fs.groupDescs)) {
		return vfserr.New("mikufs.free_block", vfserr.InvalidArgument)
	}
	gd := &fs.groupDescs[g]
	bitmap, err := fs.readBlock(gd.BlockBitmapLoc())
	if err != nil {
		return err
	}
	clearBit(bitmap, bit)
	if err := fs.writeBlock(gd.BlockBitmapLoc(), bitmap); err != nil {
		return err
	}
	gd.SetFreeBlocksCount(gd.FreeBlocksCount() + 1)
	fs.superblock.SetFreeBlocksCount(fs.superblock.FreeBlocksCount() + 1)
	if err := fs.flushGroupDescs(); err != nil {
		return err
	}
	return fs.flushSuperblock()
}

// AllocInode mirrors AllocBlock over the inode bitmap, returning a
// 1-based inode number.
func (fs *FS) AllocInode() (uint32, error) {
	order := append([]uint32{fs.bestGroupForInode()}, fs.allGroups()...)
	for _, g := range order {
		if g >= uint32(len(fs.groupDescs)) {
			continue
		}
		gd := &fs.groupDescs[g]
		if gd.FreeInodesCount() == 0 {
			continue
		}
		bitmap, err := fs.readBlock(gd.InodeBitmapLoc())
		if err != nil {
			return 0, err
		}
		bit, ok := findFreeBit(bitmap, fs.inodesPerGroup)
		if !ok {
			continue
		}
		setBit(bitmap, bit)
		if err := fs.writeBlock(gd.InodeBitmapLoc(), bitmap); err != nil {
			return 0, err
		}
		gd.SetFreeInodesCount(gd.FreeInodesCount() - 1)
		fs.superblock.SetFreeInodesCount(fs.superblock.FreeInodesCount() - 1)
		if err := fs.flushGroupDescs(); err != nil {
			return 0, err
		}
		if err := fs.flushSuperblock(); err != nil {
			return 0, err
		}
		return g*fs.inodesPerGroup + bit + 1, nil
	}
	return 0, vfserr.New("mikufs.alloc_inode", vfserr.NoSpace)
}

// FreeInode clears inodeNum's bit in its owning group's inode bitmap.
func (fs *FS) FreeInode(inodeNum uint32) error {
	if inodeNum == 0 {
		return vfserr.New("mikufs.free_inode", vfserr.InvalidArgument)
	}
	idx := inodeNum - 1
	g := idx / fs.inodesPerGroup
	bit := idx % fs.inodesPerGroup
	if g >= uint32(len(fs.groupDescs)) {
		return vfserr.New("mikufs.free_inode", vfserr.InvalidArgument)
	}
	gd := &fs.groupDescs[g]
	bitmap, err := fs.readBlock(gd.InodeBitmapLoc())
	if err != nil {
		return err
	}
	clearBit(bitmap, bit)
	if err := fs.writeBlock(gd.InodeBitmapLoc(), bitmap); err != nil {
		return err
	}
	gd.SetFreeInodesCount(gd.FreeInodesCount() + 1)
	fs.superblock.SetFreeInodesCount(fs.superblock.FreeInodesCount() + 1)
	if err := fs.flushGroupDescs(); err != nil {
		return err
	}
	return fs.flushSuperblock()
}

func findFreeBit(bitmap []byte, limit uint32) (uint32, bool) {
	for i := uint32(0); i < limit && i/8 < uint32(len(bitmap)); i++ {
		if bitmap[i/8]&(1<<(i%8)) == 0 {
			return i, true
		}
	}
	return 0, false
}

func setBit(bitmap []byte, i uint32)   { bitmap[i/8] |= 1 << (i % 8) }
func clearBit(bitmap []byte, i uint32) { bitmap[i/8] &^= 1 << (i % 8) }
