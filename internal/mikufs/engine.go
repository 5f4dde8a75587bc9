// Package mikufs is the ext2/3/4-compatible on-disk filesystem
// engine: mount, inode and block I/O, directory operations, hardlink
// and inline-data handling, and the ext2-to-ext4 in-place upgrade,
// all running through a fixed-capacity block cache over a
// blockdev.Device.
package mikufs

import (
	"log/slog"
	"time"

	"github.com/altushkaso/mikufs/internal/blockdev"
	"github.com/altushkaso/mikufs/internal/mikufs/cache"
	"github.com/altushkaso/mikufs/internal/mikufs/ondisk"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Clock is the minimal interface the engine needs to stamp inode and
// superblock timestamps. Any type with a Now method satisfies it,
// such as cmd's wall-clock realClock or a test's fixed-time clock.
type Clock interface {
	Now() time.Time
}

// FS is one mounted MikuFS filesystem: a device, the block cache in
// front of it, the parsed superblock and group descriptor table, and
// the open-file refcounts that keep an unlinked-but-open inode's
// blocks alive until the last handle closes.
type FS struct {
	dev    blockdev.Device
	cache  *cache.BlockCache
	clock  Clock
	log    *slog.Logger

	superblock ondisk.Superblock
	groupDescs []ondisk.GroupDescriptor

	blockSize      uint32
	inodeSize      uint16
	blocksPerGroup uint32
	inodesPerGroup uint32
	groupCount     uint32
	firstDataBlock uint32
	uuid           [16]byte

	openRefs map[uint32]int
}

// Mount validates the device's superblock magic, populates block
// size, inode size, and group layout, and reads the group descriptor
// table into memory.
func Mount(dev blockdev.Device, clk Clock, log *slog.Logger) (*FS, error) {
	raw, err := readSuperblockRaw(dev)
	if err != nil {
		return nil, err
	}

	var sb ondisk.Superblock
	sb.LoadFrom(raw)
	if !sb.ValidMagic() {
		return nil, vfserr.New("mikufs.mount", vfserr.Corrupt)
	}

	blockSize := sb.BlockSize()
	if int(blockSize) != dev.BlockSize() {
		return nil, vfserr.New("mikufs.mount", vfserr.Corrupt)
	}

	inodeSize := sb.InodeSize()
	if inodeSize == 0 {
		inodeSize = ondisk.InodeSize128
	}

	blocksPerGroup := sb.BlocksPerGroup()
	if blocksPerGroup == 0 {
		return nil, vfserr.New("mikufs.mount", vfserr.Corrupt)
	}
	groupCount := (uint64(sb.BlocksCount()) + uint64(blocksPerGroup) - 1) / uint64(blocksPerGroup)
	if groupCount == 0 {
		groupCount = 1
	}

	fs := &FS{
		dev:            dev,
		cache:          cache.New(int(blockSize), 32, log),
		clock:          clk,
		log:            log,
		superblock:     sb,
		blockSize:      blockSize,
		inodeSize:      inodeSize,
		blocksPerGroup: blocksPerGroup,
		inodesPerGroup: sb.InodesPerGroup(),
		groupCount:     uint32(groupCount),
		firstDataBlock: sb.FirstDataBlock(),
		uuid:           sb.UUID(),
		openRefs:       make(map[uint32]int),
	}

	gdtBlock := sbBlockNum(blockSize) + 1
	gdBlocks := (fs.groupCount*ondisk.GroupDescSize + blockSize - 1) / blockSize
	gdBytes, err := dev.ReadBlocks(uint64(gdtBlock), int(gdBlocks))
	if err != nil {
		return nil, vfserr.Wrap("mikufs.mount", vfserr.IOError, err)
	}

	fs.groupDescs = make([]ondisk.GroupDescriptor, fs.groupCount)
	for g := uint32(0); g < fs.groupCount; g++ {
		fs.groupDescs[g].LoadFrom(gdBytes[g*ondisk.GroupDescSize:])
	}

	return fs, nil
}

func sbBlockNum(blockSize uint32) uint64 { return ondisk.SuperblockOffset / uint64(blockSize) }

func readSuperblockRaw(dev blockdev.Device) ([]byte, error) {
	bs := uint32(dev.BlockSize())
	if bs == 0 {
		return nil, vfserr.New("mikufs.mount", vfserr.InvalidArgument)
	}
	blockNum := sbBlockNum(bs)
	within := int(ondisk.SuperblockOffset - blockNum*uint64(bs))
	buf, err := dev.ReadBlocks(blockNum, 1)
	if err != nil {
		return nil, vfserr.Wrap("mikufs.mount", vfserr.IOError, err)
	}
	end := within + ondisk.SuperblockSize
	if end > len(buf) {
		return nil, vfserr.New("mikufs.mount", vfserr.Corrupt)
	}
	return buf[within:end], nil
}

func (fs *FS) timestamp() uint32 { return uint32(fs.clock.Now().Unix()) }

func (fs *FS) BlockSize() uint32  { return fs.blockSize }
func (fs *FS) InodeSize() uint16  { return fs.inodeSize }
func (fs *FS) GroupCount() uint32 { return fs.groupCount }
func (fs *FS) IsExt4() bool       { return fs.superblock.IsExt4() }

// readBlock goes through the block cache; on a miss it reads through
// to the device and installs the result, matching the write-through
// cache contract (every write is also issued to the device, so a
// miss here is always safe to satisfy from the device directly).
func (fs *FS) readBlock(blockNum uint32) ([]byte, error) {
	buf := make([]byte, fs.blockSize)
	if fs.cache.Get(blockNum, buf) {
		return buf, nil
	}
	data, err := fs.dev.ReadBlocks(uint64(blockNum), 1)
	if err != nil {
		return nil, vfserr.Wrap("mikufs.read_block", vfserr.IOError, err)
	}
	fs.cache.Put(blockNum, data)
	return data, nil
}

func (fs *FS) writeBlock(blockNum uint32, data []byte) error {
	if err := fs.dev.WriteBlocks(uint64(blockNum), data); err != nil {
		return vfserr.Wrap("mikufs.write_block", vfserr.IOError, err)
	}
	fs.cache.Put(blockNum, data)
	return nil
}

func (fs *FS) inodeLocation(inodeNum uint32) (blockNum uint32, within int, group uint32, err error) {
	if inodeNum == 0 || fs.inodesPerGroup == 0 {
		return 0, 0, 0, vfserr.New("mikufs.inode_location", vfserr.InvalidArgument)
	}
	idx := inodeNum - 1
	group = idx / fs.inodesPerGroup
	if group >= uint32(len(fs.groupDescs)) {
		return 0, 0, 0, vfserr.New("mikufs.inode_location", vfserr.InvalidArgument)
	}
	localIdx := idx % fs.inodesPerGroup
	byteOffset := uint64(fs.groupDescs[group].InodeTableLoc())*uint64(fs.blockSize) + uint64(localIdx)*uint64(fs.inodeSize)
	blockNum = uint32(byteOffset / uint64(fs.blockSize))
	within = int(byteOffset % uint64(fs.blockSize))
	return blockNum, within, group, nil
}

// ReadInode loads inode number inodeNum out of its group's inode
// table through the block cache.
func (fs *FS) ReadInode(inodeNum uint32) (*ondisk.Inode, error) {
	blockNum, within, _, err := fs.inodeLocation(inodeNum)
	if err != nil {
		return nil, err
	}
	block, err := fs.readBlock(blockNum)
	if err != nil {
		return nil, err
	}
	if within+int(fs.inodeSize) > len(block) {
		return nil, vfserr.New("mikufs.read_inode", vfserr.Corrupt)
	}
	inode := ondisk.NewInode(int(fs.inodeSize))
	inode.LoadFrom(block[within : within+int(fs.inodeSize)])
	return inode, nil
}

// WriteInode splices inode's bytes back into its inode table block,
// recomputing the ext4 checksum first when this mount uses extents.
func (fs *FS) WriteInode(inodeNum uint32, inode *ondisk.Inode) error {
	if fs.IsExt4() {
		inode.UpdateChecksum(fs.uuid, inodeNum)
	}
	blockNum, within, _, err := fs.inodeLocation(inodeNum)
	if err != nil {
		return err
	}
	block, err := fs.readBlock(blockNum)
	if err != nil {
		return err
	}
	copy(block[within:within+int(fs.inodeSize)], inode.Bytes())
	return fs.writeBlock(blockNum, block)
}

// IncRef/DecRef track open file handles against an inode so
// Ext2UnlinkHardlink can tell an unlinked-but-open file apart from one
// that is truly free to reclaim.
func (fs *FS) IncRef(inodeNum uint32) { fs.openRefs[inodeNum]++ }

func (fs *FS) DecRef(inodeNum uint32) {
	if fs.openRefs[inodeNum] > 0 {
		fs.openRefs[inodeNum]--
		if fs.openRefs[inodeNum] == 0 {
			delete(fs.openRefs, inodeNum)
			if inode, err := fs.ReadInode(inodeNum); err == nil && inode.LinksCount() == 0 {
				if fs.freeAllBlocks(inode) == nil {
					inode.SetDtime(fs.timestamp())
					if fs.WriteInode(inodeNum, inode) == nil {
						fs.FreeInode(inodeNum)
					}
				}
			}
		}
	}
}

func (fs *FS) openCount(inodeNum uint32) int { return fs.openRefs[inodeNum] }

func (fs *FS) flushSuperblock() error {
	fs.superblock.UpdateChecksum()
	blockNum := uint32(sbBlockNum(fs.blockSize))
	within := int(ondisk.SuperblockOffset - uint64(blockNum)*uint64(fs.blockSize))
	block, err := fs.readBlock(blockNum)
	if err != nil {
		return err
	}
	copy(block[within:within+ondisk.SuperblockSize], fs.superblock.Bytes())
	return fs.writeBlock(blockNum, block)
}

func (fs *FS) flushGroupDescs() error {
	gdtBlock := uint32(sbBlockNum(fs.blockSize)) + 1
	gdBlocks := (fs.groupCount*ondisk.GroupDescSize + fs.blockSize - 1) / fs.blockSize
	buf := make([]byte, gdBlocks*fs.blockSize)
	for g, gd := range fs.groupDescs {
		copy(buf[uint32(g)*ondisk.GroupDescSize:], gd.Bytes())
	}
	for i := uint32(0); i < gdBlocks; i++ {
		lo := i * fs.blockSize
		hi := lo + fs.blockSize
		if err := fs.writeBlock(gdtBlock+i, buf[lo:hi]); err != nil {
			return err
		}
	}
	return nil
}
