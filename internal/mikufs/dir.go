package mikufs

import (
	"strings"

	"github.com/altushkaso/mikufs/internal/mikufs/mkfs"
	"github.com/altushkaso/mikufs/internal/mikufs/ondisk"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// ReadDir parses every directory record out of inode's data blocks,
// in block order, up to ondisk.MaxDirEntries. A malformed record
// (rec_len == 0 or past the block end) stops the walk for that block
// but does not fail the call — entries already parsed are returned.
func (fs *FS) ReadDir(inode *ondisk.Inode) ([]ondisk.DirEntry, error) {
	if !inode.IsDirectory() {
		return nil, vfserr.New("mikufs.read_dir", vfserr.NotDirectory)
	}

	var out []ondisk.DirEntry
	size := inode.Size()
	bs := uint64(fs.blockSize)

	for fileOffset := uint64(0); fileOffset < size && len(out) < ondisk.MaxDirEntries; fileOffset += bs {
		logical := uint32(fileOffset / bs)
		phys, err := fs.GetFileBlock(inode, logical)
		if err != nil {
			return out, err
		}
		if phys == 0 {
			continue
		}
		block, err := fs.readBlock(phys)
		if err != nil {
			return out, err
		}
		entries := ondisk.ReadDirBlock(block)
		for _, e := range entries {
			if len(out) >= ondisk.MaxDirEntries {
				break
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// Lookup finds name among dirInode's entries, returning its inode
// number.
func (fs *FS) Lookup(dirInode *ondisk.Inode, name string) (uint32, error) {
	entries, err := fs.ReadDir(dirInode)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.Inode, nil
		}
	}
	return 0, vfserr.New("mikufs.lookup", vfserr.NotFound)
}

// ResolvePath walks path component by component from the root inode,
// following "." and ".." the same way the VFS path walker does, but
// purely within this mount (it never crosses a mountpoint — that is
// the VFS layer's job).
func (fs *FS) ResolvePath(path string) (uint32, error) {
	current := uint32(mkfs.RootIno)
	if path == "" || path == "/" {
		return current, nil
	}

	for _, component := range strings.Split(path, "/") {
		if component == "" || component == "." {
			continue
		}
		inode, err := fs.ReadInode(current)
		if err != nil {
			return 0, err
		}
		if component == ".." {
			current, err = fs.Lookup(inode, "..")
			if err != nil {
				return 0, err
			}
			continue
		}
		if !inode.IsDirectory() {
			return 0, vfserr.New("mikufs.resolve_path", vfserr.NotDirectory)
		}
		current, err = fs.Lookup(inode, component)
		if err != nil {
			return 0, err
		}
	}
	return current, nil
}

// AddDirEntry inserts (childIno, name) into dirInode's first data
// block with enough slack, splitting that block's trailing record;
// if no existing block has room, it appends a freshly formatted
// block to the directory and retries once.
func (fs *FS) AddDirEntry(dirInodeNum uint32, name string, childIno uint32, fileType uint8) error {
	dirInode, err := fs.ReadInode(dirInodeNum)
	if err != nil {
		return err
	}
	if !dirInode.IsDirectory() {
		return vfserr.New("mikufs.add_dir_entry", vfserr.NotDirectory)
	}
	if len(name) > 255 {
		return vfserr.New("mikufs.add_dir_entry", vfserr.NameTooLong)
	}

	size := dirInode.Size()
	bs := uint64(fs.blockSize)
	for fileOffset := uint64(0); fileOffset < size; fileOffset += bs {
		logical := uint32(fileOffset / bs)
		phys, err := fs.GetFileBlock(dirInode, logical)
		if err != nil {
			return err
		}
		if phys == 0 {
			continue
		}
		block, err := fs.readBlock(phys)
		if err != nil {
			return err
		}
		if ondisk.AddDirEntry(block, childIno, name, fileType) {
			return fs.writeBlock(phys, block)
		}
	}

	newBlock := make([]byte, fs.blockSize)
	ondisk.InitDirBlock(newBlock)
	if !ondisk.AddDirEntry(newBlock, childIno, name, fileType) {
		return vfserr.New("mikufs.add_dir_entry", vfserr.NameTooLong)
	}
	n, err := fs.WriteFile(dirInodeNum, newBlock, size)
	if err != nil {
		return err
	}
	if uint64(n) != bs {
		return vfserr.New("mikufs.add_dir_entry", vfserr.NoSpace)
	}
	return nil
}

// RemoveDirEntry deletes the named entry from dirInode, merging its
// rec_len into the preceding record within the same block.
func (fs *FS) RemoveDirEntry(dirInodeNum uint32, name string) error {
	dirInode, err := fs.ReadInode(dirInodeNum)
	if err != nil {
		return err
	}
	if !dirInode.IsDirectory() {
		return vfserr.New("mikufs.remove_dir_entry", vfserr.NotDirectory)
	}

	size := dirInode.Size()
	bs := uint64(fs.blockSize)
	for fileOffset := uint64(0); fileOffset < size; fileOffset += bs {
		logical := uint32(fileOffset / bs)
		phys, err := fs.GetFileBlock(dirInode, logical)
		if err != nil {
			return err
		}
		if phys == 0 {
			continue
		}
		block, err := fs.readBlock(phys)
		if err != nil {
			return err
		}
		if ondisk.RemoveDirEntry(block, name) {
			return fs.writeBlock(phys, block)
		}
	}
	return vfserr.New("mikufs.remove_dir_entry", vfserr.NotFound)
}
