package mikufs

import (
	"github.com/altushkaso/mikufs/internal/mikufs/ondisk"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Ext2Hardlink adds a new directory entry named name under parentIno
// pointing at targetIno, refusing directories (hardlinks to a
// directory would break the single-parent invariant the path walker
// relies on) and name collisions.
func (fs *FS) Ext2Hardlink(parentIno uint32, name string, targetIno uint32) error {
	parent, err := fs.ReadInode(parentIno)
	if err != nil {
		return err
	}
	if _, err := fs.Lookup(parent, name); err == nil {
		return vfserr.New("mikufs.ext2_hardlink", vfserr.AlreadyExists)
	}

	target, err := fs.ReadInode(targetIno)
	if err != nil {
		return err
	}
	if target.IsDirectory() {
		return vfserr.New("mikufs.ext2_hardlink", vfserr.IsDirectory)
	}

	if err := fs.AddDirEntry(parentIno, name, targetIno, target.FileType()); err != nil {
		return err
	}

	target.SetLinksCount(target.LinksCount() + 1)
	target.SetCtime(fs.timestamp())
	return fs.WriteInode(targetIno, target)
}

// Ext2UnlinkHardlink removes name from parentIno's directory entries
// and decrements the target's link count; if that drops to zero and
// no open handle still references the inode, its blocks and inode
// number are freed.
func (fs *FS) Ext2UnlinkHardlink(parentIno uint32, name string) error {
	parent, err := fs.ReadInode(parentIno)
	if err != nil {
		return err
	}
	targetIno, err := fs.Lookup(parent, name)
	if err != nil {
		return err
	}

	target, err := fs.ReadInode(targetIno)
	if err != nil {
		return err
	}

	if err := fs.RemoveDirEntry(parentIno, name); err != nil {
		return err
	}

	if target.LinksCount() > 0 {
		target.SetLinksCount(target.LinksCount() - 1)
	}
	target.SetCtime(fs.timestamp())

	if target.LinksCount() == 0 && fs.openCount(targetIno) == 0 {
		if err := fs.freeAllBlocks(target); err != nil {
			return err
		}
		target.SetDtime(fs.timestamp())
		if err := fs.WriteInode(targetIno, target); err != nil {
			return err
		}
		return fs.FreeInode(targetIno)
	}

	return fs.WriteInode(targetIno, target)
}

// freeAllBlocks walks every logical block an inode could reference
// and frees the physical blocks actually mapped, whether the inode
// uses extents or legacy indirect pointers.
func (fs *FS) freeAllBlocks(inode *ondisk.Inode) error {
	if inode.HasInlineData() {
		return nil
	}
	if inode.UsesExtents() {
		return fs.freeExtentNode(inode.BlockArea())
	}
	return fs.freeIndirectTree(inode)
}

func (fs *FS) freeExtentNode(node []byte) error {
	header := ondisk.DecodeExtentHeader(node)
	if !header.Valid() {
		return nil
	}
	if header.Depth == 0 {
		for _, leaf := range ondisk.LeafEntries(node, header) {
			start := uint32(leaf.Start())
			for i := uint32(0); i < uint32(leaf.Len); i++ {
				if err := fs.FreeBlock(start + i); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, idx := range ondisk.IndexEntries(node, header) {
		child := uint32(idx.Leaf())
		childBlock, err := fs.readBlock(child)
		if err != nil {
			return err
		}
		if err := fs.freeExtentNode(childBlock); err != nil {
			return err
		}
		if err := fs.FreeBlock(child); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FS) freeIndirectTree(inode *ondisk.Inode) error {
	for i := 0; i < 12; i++ {
		if b := inode.DirectBlock(i); b != 0 {
			if err := fs.FreeBlock(b); err != nil {
				return err
			}
		}
	}
	if b := inode.SingleIndirect(); b != 0 {
		if err := fs.freeIndirectBlock(b, 1); err != nil {
			return err
		}
	}
	if b := inode.DoubleIndirect(); b != 0 {
		if err := fs.freeIndirectBlock(b, 2); err != nil {
			return err
		}
	}
	if b := inode.TripleIndirect(); b != 0 {
		if err := fs.freeIndirectBlock(b, 3); err != nil {
			return err
		}
	}
	return nil
}

// freeIndirectBlock frees every block referenced by the pointer block
// blockNum (recursing one level shallower for depth > 1), then frees
// blockNum itself.
func (fs *FS) freeIndirectBlock(blockNum uint32, depth int) error {
	block, err := fs.readBlock(blockNum)
	if err != nil {
		return err
	}
	ptrsPerBlock := int(fs.blockSize / 4)
	for i := 0; i < ptrsPerBlock; i++ {
		off := i * 4
		if off+4 > len(block) {
			break
		}
		ptr := uint32(block[off]) | uint32(block[off+1])<<8 | uint32(block[off+2])<<16 | uint32(block[off+3])<<24
		if ptr == 0 {
			continue
		}
		if depth > 1 {
			if err := fs.freeIndirectBlock(ptr, depth-1); err != nil {
				return err
			}
		} else if err := fs.FreeBlock(ptr); err != nil {
			return err
		}
	}
	return fs.FreeBlock(blockNum)
}
