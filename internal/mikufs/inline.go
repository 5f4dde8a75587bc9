package mikufs

import (
	"github.com/altushkaso/mikufs/internal/mikufs/ondisk"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Ext4CanInline reports whether size bytes fit in the inode's 60-byte
// block-pointer area.
func (fs *FS) Ext4CanInline(size int) bool { return size <= 60 }

// Ext4ReadInline copies up to len(buf) bytes of inline-stored content
// starting at offset.
func (fs *FS) Ext4ReadInline(inode *ondisk.Inode, offset uint64, buf []byte) (int, error) {
	if !inode.HasInlineData() {
		return 0, vfserr.New("mikufs.ext4_read_inline", vfserr.UnsupportedFeature)
	}
	size := int(inode.SizeLo())
	off := int(offset)
	if off >= size {
		return 0, nil
	}
	avail := size - off
	toRead := len(buf)
	if toRead > avail {
		toRead = avail
	}
	if toRead > 60-off {
		toRead = 60 - off
	}
	data := inode.ReadInlineData(size)
	if off >= len(data) {
		return 0, nil
	}
	copyLen := toRead
	if copyLen > len(data)-off {
		copyLen = len(data) - off
	}
	copy(buf[:copyLen], data[off:off+copyLen])
	return copyLen, nil
}

// Ext4WriteInline writes data at offset into inodeNum's inline area,
// converting to an extent-backed file the moment the write would
// cross the 60-byte boundary.
func (fs *FS) Ext4WriteInline(inodeNum uint32, data []byte, offset uint64) (int, error) {
	if int(offset)+len(data) > 60 {
		return fs.ext4ConvertInlineToExtents(inodeNum, data, offset)
	}

	inode, err := fs.ReadInode(inodeNum)
	if err != nil {
		return 0, err
	}

	off := int(offset)
	oldSize := int(inode.SizeLo())
	var buf [60]byte
	if oldSize > 0 && oldSize <= 60 {
		copy(buf[:oldSize], inode.ReadInlineData(oldSize))
	}
	end := off + len(data)
	copy(buf[off:end], data)

	inode.WriteInlineData(buf[:end])
	newSize := end
	if oldSize > newSize {
		newSize = oldSize
	}
	inode.SetSize(uint64(newSize))
	inode.SetFlags(inode.Flags() | ondisk.InodeFlagInlineData)
	inode.SetBlocks(0)
	inode.SetMtime(fs.timestamp())

	if err := fs.WriteInode(inodeNum, inode); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (fs *FS) ext4ConvertInlineToExtents(inodeNum uint32, newData []byte, offset uint64) (int, error) {
	inode, err := fs.ReadInode(inodeNum)
	if err != nil {
		return 0, err
	}
	oldSize := int(inode.SizeLo())
	var oldData [60]byte
	if oldSize > 0 && oldSize <= 60 {
		copy(oldData[:oldSize], inode.ReadInlineData(oldSize))
	}

	inode.ClearBlockPointers()
	inode.SetFlags(inode.Flags() &^ ondisk.InodeFlagInlineData)
	ondisk.InitExtentHeader(inode.BlockArea(), 4)
	inode.SetSize(0)
	inode.SetBlocks(0)
	if err := fs.WriteInode(inodeNum, inode); err != nil {
		return 0, err
	}

	if oldSize > 0 {
		if _, err := fs.WriteFile(inodeNum, oldData[:oldSize], 0); err != nil {
			return 0, err
		}
	}
	return fs.WriteFile(inodeNum, newData, offset)
}
