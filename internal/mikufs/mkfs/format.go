package mkfs

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/altushkaso/mikufs/internal/blockdev"
	"github.com/altushkaso/mikufs/internal/mikufs/ondisk"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// RootIno and JournalIno are the conventional ext2/3/4 reserved inode
// numbers: 2 for the root directory, 8 for the dedicated journal file
// on fs types that carry one.
const (
	RootIno    = 2
	JournalIno = 8

	bytesPerInode = 16384
)

// MkfsReport summarizes a completed format, the same shape the
// original returns so callers (and tests) can assert on it without
// re-reading the image back.
type MkfsReport struct {
	FsType     FsType
	TotalBlocks uint64
	BlockSize  uint32
	InodeSize  uint16
	GroupCount uint32
	InodesPerGroup uint32
	RootInode  uint32
	JournalInode uint32
	Label      string
	UUID       [16]byte
}

// sparseSuperGroups reports whether group g carries a backup
// superblock under the sparse-super rule: groups 0, 1, and powers of
// 3, 5, 7.
func sparseSuperGroups(g uint32) bool {
	if g == 0 || g == 1 {
		return true
	}
	for _, base := range []uint32{3, 5, 7} {
		for p := base; p <= g; p *= base {
			if p == g {
				return true
			}
		}
	}
	return false
}

// Format writes a fresh filesystem image to dev according to params,
// laying out per-group bitmaps and inode tables, reserving a journal
// area for ext3/ext4, and creating the root directory with "." and
// ".." pointing to itself.
func Format(dev blockdev.Device, params MkfsParams) (*MkfsReport, error) {
	blockSize := params.BlockSize
	if dev.BlockSize() != int(blockSize) {
		return nil, vfserr.New("mkfs.format", vfserr.InvalidArgument)
	}
	totalBlocks := dev.TotalBlocks()
	if totalBlocks < 16 {
		return nil, vfserr.New("mkfs.format", vfserr.NoSpace)
	}

	blocksPerGroup := 8 * blockSize
	groupCount := uint32((totalBlocks + uint64(blocksPerGroup) - 1) / uint64(blocksPerGroup))
	if groupCount == 0 {
		groupCount = 1
	}

	inodesPerGroup := uint32((uint64(blocksPerGroup) * uint64(blockSize)) / bytesPerInode)
	if inodesPerGroup == 0 {
		inodesPerGroup = 32
	}
	totalInodes := inodesPerGroup * groupCount

	id, err := uuid.New().MarshalBinary()
	if err != nil {
		return nil, vfserr.Wrap("mkfs.format", vfserr.IOError, err)
	}
	var volUUID [16]byte
	copy(volUUID[:], id)

	sb := &ondisk.Superblock{}
	sb.SetMagic(ondisk.Ext2Magic)
	sb.SetInodesCount(totalInodes)
	sb.SetBlocksCount(uint32(totalBlocks))
	sb.SetFreeBlocksCount(uint32(totalBlocks))
	sb.SetFreeInodesCount(totalInodes)
	sb.SetFirstDataBlock(firstDataBlock(blockSize))
	sb.SetLogBlockSize(logBlockSize(blockSize))
	sb.SetBlocksPerGroup(blocksPerGroup)
	sb.SetInodesPerGroup(inodesPerGroup)
	sb.SetRevLevel(1)
	sb.SetFirstIno(11)
	sb.SetInodeSize(params.InodeSize)
	sb.SetUUID(volUUID)
	sb.SetLabel(string(trimLabel(params.Label)))

	var incompat, roCompat, compat uint32
	roCompat |= ondisk.FeatureRoCompatSparseSuper
	if params.FsType.NeedsExtents() {
		incompat |= ondisk.FeatureIncompatExtents | ondisk.FeatureIncompatFiletype
		roCompat |= ondisk.FeatureRoCompatLargeFile | ondisk.FeatureRoCompatDirNlink
		if params.InodeSize >= 256 {
			roCompat |= ondisk.FeatureRoCompatExtraIsize
			extra := uint16(params.InodeSize - 128)
			if extra > 28 {
				extra = 28
			}
			sb.SetMinExtraIsize(extra)
			sb.SetWantExtraIsize(extra)
		}
		compat |= ondisk.FeatureCompatDirIndex
	} else if params.FsType == Ext3 {
		incompat |= ondisk.FeatureIncompatFiletype
	}
	sb.SetFeatureCompat(compat)
	sb.SetFeatureIncompat(incompat)
	sb.SetFeatureRoCompat(roCompat)

	if params.FsType.NeedsJournal() {
		sb.SetJournalInum(JournalIno)
		sb.SetJournalBlocksCount(params.JournalBlocks)
	}

	groupDescTable := make([]byte, groupCount*ondisk.GroupDescSize)
	itableBlocksPerGroup := (inodesPerGroup*uint32(params.InodeSize) + blockSize - 1) / blockSize
	nextFreeBlock := firstDataBlock(blockSize) + 1 + groupDescBlocks(groupCount, blockSize)

	for g := uint32(0); g < groupCount; g++ {
		var gd ondisk.GroupDescriptor
		blockBitmap := nextFreeBlock
		inodeBitmap := blockBitmap + 1
		inodeTable := inodeBitmap + 1
		nextFreeBlock = inodeTable + itableBlocksPerGroup

		gd.SetBlockBitmapLoc(blockBitmap)
		gd.SetInodeBitmapLoc(inodeBitmap)
		gd.SetInodeTableLoc(inodeTable)
		gd.SetFreeBlocksCount(uint16(blocksPerGroup))
		gd.SetFreeInodesCount(uint16(inodesPerGroup))
		if params.FsType.NeedsExtents() {
			gd.UpdateChecksum(volUUID, g)
		}
		copy(groupDescTable[g*ondisk.GroupDescSize:], gd.Bytes())
	}

	if params.FsType.NeedsJournal() {
		nextFreeBlock += params.JournalBlocks
	}

	rootDirBlock := nextFreeBlock
	sb.UpdateChecksum()

	var eg errgroup.Group
	for g := uint32(0); g < groupCount; g++ {
		if !sparseSuperGroups(g) {
			continue
		}
		groupStart := firstDataBlock(blockSize) + uint32(g)*blocksPerGroup
		// The primary superblock sits at byte SuperblockOffset; with
		// blocks larger than that it lives inside block 0, not at its start.
		sbPayload := sb.Bytes()
		if g == 0 && blockSize > ondisk.SuperblockOffset {
			sbPayload = make([]byte, blockSize)
			copy(sbPayload[ondisk.SuperblockOffset:], sb.Bytes())
		}
		eg.Go(func() error {
			if err := writeBlock(dev, uint64(groupStart), sbPayload, blockSize); err != nil {
				return err
			}
			return writeBlock(dev, uint64(groupStart)+1, groupDescTable, blockSize)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, vfserr.Wrap("mkfs.format", vfserr.IOError, err)
	}

	rootInode := ondisk.NewInode(int(params.InodeSize))
	rootInode.SetMode(0o755 | 0x4000)
	rootInode.SetLinksCount(2)
	rootInode.SetSizeLo(blockSize)
	rootInode.SetBlocks(blockSize / 512)
	if params.FsType.NeedsExtents() {
		rootInode.SetFlags(ondisk.InodeFlagExtents)
		ondisk.InitExtentHeader(rootInode.BlockArea(), 4)
		leaf := ondisk.ExtentLeaf{Block: 0, Len: 1, StartLo: rootDirBlock}
		hdr := ondisk.ExtentHeader{Magic: ondisk.ExtentMagic, Entries: 1, Max: 4, Depth: 0}
		hdr.Encode(rootInode.BlockArea())
		leaf.Encode(rootInode.BlockArea()[12:])
	} else {
		rootInode.SetDirectBlock(0, rootDirBlock)
	}

	rootBlock := make([]byte, blockSize)
	ondisk.InitDirBlock(rootBlock)
	ondisk.AddDirEntry(rootBlock, RootIno, ".", ondisk.FtDir)
	ondisk.AddDirEntry(rootBlock, RootIno, "..", ondisk.FtDir)

	if err := writeBlock(dev, uint64(rootDirBlock), rootBlock, blockSize); err != nil {
		return nil, vfserr.Wrap("mkfs.format", vfserr.IOError, err)
	}

	var group0Desc ondisk.GroupDescriptor
	group0Desc.LoadFrom(groupDescTable[:ondisk.GroupDescSize])
	firstGroupITable := group0Desc.InodeTableLoc()
	rootInodeOffset := uint64(firstGroupITable)*uint64(blockSize) + uint64(RootIno-1)*uint64(params.InodeSize)
	if err := writeAt(dev, rootInodeOffset, rootInode.Bytes(), blockSize); err != nil {
		return nil, vfserr.Wrap("mkfs.format", vfserr.IOError, err)
	}

	if err := dev.Sync(); err != nil {
		return nil, vfserr.Wrap("mkfs.format", vfserr.IOError, err)
	}

	return &MkfsReport{
		FsType:         params.FsType,
		TotalBlocks:    totalBlocks,
		BlockSize:      blockSize,
		InodeSize:      params.InodeSize,
		GroupCount:     groupCount,
		InodesPerGroup: inodesPerGroup,
		RootInode:      RootIno,
		JournalInode:   JournalIno,
		Label:          sb.Label(),
		UUID:           volUUID,
	}, nil
}

func firstDataBlock(blockSize uint32) uint32 {
	if blockSize == 1024 {
		return 1
	}
	return 0
}

func logBlockSize(blockSize uint32) uint32 {
	switch blockSize {
	case 1024:
		return 0
	case 2048:
		return 1
	case 4096:
		return 2
	default:
		return 2
	}
}

func groupDescBlocks(groupCount, blockSize uint32) uint32 {
	total := groupCount * ondisk.GroupDescSize
	return (total + blockSize - 1) / blockSize
}

func trimLabel(label [16]byte) []byte {
	end := 0
	for end < len(label) && label[end] != 0 {
		end++
	}
	return label[:end]
}

// writeBlock writes a full-sized payload (which may be shorter than
// blockSize) into the single block at blockNum, zero-padding the
// remainder.
func writeBlock(dev blockdev.Device, blockNum uint64, payload []byte, blockSize uint32) error {
	buf := make([]byte, blockSize)
	copy(buf, payload)
	return dev.WriteBlocks(blockNum, buf)
}

// writeAt writes payload at an arbitrary byte offset by read-modify-
// writing the block(s) it falls within — used for sub-block writes
// like a single inode record.
func writeAt(dev blockdev.Device, byteOffset uint64, payload []byte, blockSize uint32) error {
	startBlock := byteOffset / uint64(blockSize)
	endByte := byteOffset + uint64(len(payload))
	blockCount := int((endByte-startBlock*uint64(blockSize)+uint64(blockSize)-1)/uint64(blockSize))
	buf, err := dev.ReadBlocks(startBlock, blockCount)
	if err != nil {
		return fmt.Errorf("writeAt read: %w", err)
	}
	within := byteOffset - startBlock*uint64(blockSize)
	copy(buf[within:], payload)
	return dev.WriteBlocks(startBlock, buf)
}
