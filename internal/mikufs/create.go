package mikufs

import (
	"github.com/altushkaso/mikufs/internal/mikufs/ondisk"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// modeFmtDir and modeFmtLnk mirror the S_IFMT bits mkfs.Format already
// ORs into the root inode's mode (0x4000); a symlink uses 0xA000.
const (
	modeFmtDir = 0x4000
	modeFmtReg = 0x8000
	modeFmtLnk = 0xA000
)

func (fs *FS) newInode(modeFmt uint16, perm uint16, uid, gid uint16, links uint16) *ondisk.Inode {
	inode := ondisk.NewInode(int(fs.inodeSize))
	inode.SetMode(modeFmt | perm)
	inode.SetUid(uid)
	inode.SetGid(gid)
	inode.SetLinksCount(links)
	now := fs.timestamp()
	inode.SetAtime(now)
	inode.SetCtime(now)
	inode.SetMtime(now)
	if fs.IsExt4() {
		inode.SetFlags(ondisk.InodeFlagExtents)
		ondisk.InitExtentHeader(inode.BlockArea(), 4)
	}
	return inode
}

// CreateFile allocates a fresh inode for a regular file and links it
// into parentIno under name, refusing a name collision.
func (fs *FS) CreateFile(parentIno uint32, name string, perm uint16, uid, gid uint16) (uint32, error) {
	parent, err := fs.ReadInode(parentIno)
	if err != nil {
		return 0, err
	}
	if !parent.IsDirectory() {
		return 0, vfserr.New("mikufs.create_file", vfserr.NotDirectory)
	}
	if _, err := fs.Lookup(parent, name); err == nil {
		return 0, vfserr.New("mikufs.create_file", vfserr.AlreadyExists)
	}

	ino, err := fs.AllocInode()
	if err != nil {
		return 0, err
	}
	inode := fs.newInode(modeFmtReg, perm, uid, gid, 1)
	if err := fs.WriteInode(ino, inode); err != nil {
		return 0, err
	}
	if err := fs.AddDirEntry(parentIno, name, ino, ondisk.FtRegFile); err != nil {
		return 0, err
	}
	return ino, nil
}

// CreateDirectory allocates a fresh inode for a subdirectory, writes
// its "." and ".." entries, links it into parentIno under name, and
// bumps parentIno's link count for the new ".." reference.
func (fs *FS) CreateDirectory(parentIno uint32, name string, perm uint16, uid, gid uint16) (uint32, error) {
	parent, err := fs.ReadInode(parentIno)
	if err != nil {
		return 0, err
	}
	if !parent.IsDirectory() {
		return 0, vfserr.New("mikufs.create_directory", vfserr.NotDirectory)
	}
	if _, err := fs.Lookup(parent, name); err == nil {
		return 0, vfserr.New("mikufs.create_directory", vfserr.AlreadyExists)
	}

	ino, err := fs.AllocInode()
	if err != nil {
		return 0, err
	}
	inode := fs.newInode(modeFmtDir, perm, uid, gid, 2)
	if err := fs.WriteInode(ino, inode); err != nil {
		return 0, err
	}

	block := make([]byte, fs.blockSize)
	ondisk.InitDirBlock(block)
	ondisk.AddDirEntry(block, ino, ".", ondisk.FtDir)
	ondisk.AddDirEntry(block, parentIno, "..", ondisk.FtDir)
	if _, err := fs.WriteFile(ino, block, 0); err != nil {
		return 0, err
	}

	if err := fs.AddDirEntry(parentIno, name, ino, ondisk.FtDir); err != nil {
		return 0, err
	}
	parent.SetLinksCount(parent.LinksCount() + 1)
	parent.SetCtime(fs.timestamp())
	if err := fs.WriteInode(parentIno, parent); err != nil {
		return 0, err
	}
	return ino, nil
}

// CreateSymlink allocates a fresh inode for a symlink and links it
// into parentIno under name. Targets that fit the inode's 60-byte
// block-pointer area are stored as a "fast symlink" (Blocks()==0);
// longer targets fall back to a regular data block.
func (fs *FS) CreateSymlink(parentIno uint32, name, target string, uid, gid uint16) (uint32, error) {
	parent, err := fs.ReadInode(parentIno)
	if err != nil {
		return 0, err
	}
	if !parent.IsDirectory() {
		return 0, vfserr.New("mikufs.create_symlink", vfserr.NotDirectory)
	}
	if _, err := fs.Lookup(parent, name); err == nil {
		return 0, vfserr.New("mikufs.create_symlink", vfserr.AlreadyExists)
	}

	ino, err := fs.AllocInode()
	if err != nil {
		return 0, err
	}
	inode := fs.newInode(modeFmtLnk, 0o777, uid, gid, 1)
	if len(target) <= 60 {
		inode.SetFlags(inode.Flags() &^ ondisk.InodeFlagExtents)
		inode.WriteInlineData([]byte(target))
		inode.SetSize(uint64(len(target)))
		inode.SetBlocks(0)
		if err := fs.WriteInode(ino, inode); err != nil {
			return 0, err
		}
	} else {
		if err := fs.WriteInode(ino, inode); err != nil {
			return 0, err
		}
		if _, err := fs.WriteFile(ino, []byte(target), 0); err != nil {
			return 0, err
		}
	}

	if err := fs.AddDirEntry(parentIno, name, ino, ondisk.FtSymlink); err != nil {
		return 0, err
	}
	return ino, nil
}

// ReadSymlink returns a symlink inode's target, reading either the
// inline fast-symlink area or its data block.
func (fs *FS) ReadSymlink(inode *ondisk.Inode) (string, error) {
	if !inode.IsSymlink() {
		return "", vfserr.New("mikufs.read_symlink", vfserr.InvalidArgument)
	}
	size := int(inode.Size())
	if inode.IsFastSymlink() {
		return string(inode.ReadInlineData(size)), nil
	}
	buf := make([]byte, size)
	n, err := fs.ReadFile(inode, 0, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Unlink removes name from parentIno's entries and, for a non-directory
// target, frees its inode once both its link count and open handle
// count reach zero. It refuses directory targets — callers must use
// RemoveDirectory for those, since removing a directory also has to
// drop the parent's ".." link.
func (fs *FS) Unlink(parentIno uint32, name string) error {
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
	if target.IsDirectory() {
		return vfserr.New("mikufs.unlink", vfserr.IsDirectory)
	}
	return fs.Ext2UnlinkHardlink(parentIno, name)
}

// RemoveDirectory removes the empty subdirectory name from parentIno,
// refusing non-empty directories, then drops parentIno's link count
// for the departing "..".
func (fs *FS) RemoveDirectory(parentIno uint32, name string) error {
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
	if !target.IsDirectory() {
		return vfserr.New("mikufs.remove_directory", vfserr.NotDirectory)
	}
	entries, err := fs.ReadDir(target)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name != "." && e.Name != ".." {
			return vfserr.New("mikufs.remove_directory", vfserr.Busy)
		}
	}

	if err := fs.RemoveDirEntry(parentIno, name); err != nil {
		return err
	}
	if err := fs.freeAllBlocks(target); err != nil {
		return err
	}
	target.SetDtime(fs.timestamp())
	if err := fs.WriteInode(targetIno, target); err != nil {
		return err
	}
	if err := fs.FreeInode(targetIno); err != nil {
		return err
	}

	if parent.LinksCount() > 0 {
		parent.SetLinksCount(parent.LinksCount() - 1)
	}
	parent.SetCtime(fs.timestamp())
	return fs.WriteInode(parentIno, parent)
}
