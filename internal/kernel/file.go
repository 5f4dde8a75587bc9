package kernel

import (
	"github.com/altushkaso/mikufs/internal/devfs"
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Open resolves path relative to cwd — creating a regular file under
// OCreate when it's missing — and installs a new file descriptor for
// it, refusing the open if cred lacks the permission flags demand.
func (k *Kernel) Open(cwd vfs.InodeId, path string, flags vfs.OpenFlags, mode vfs.FileMode, cred vfs.Credentials) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	id, err := k.resolve(cwd, path)
	if err != nil {
		if !vfserr.Is(err, vfserr.NotFound) || flags&vfs.OCreate == 0 {
			return -1, err
		}
		id, err = k.createRegular(cwd, path, mode, cred)
		if err != nil {
			return -1, err
		}
	} else if flags&vfs.OExcl != 0 && flags&vfs.OCreate != 0 {
		return -1, vfserr.New("kernel.open", vfserr.AlreadyExists)
	}

	return k.openVnode(id, flags, cred)
}

// Create makes name under the directory vnode parent and opens it in
// one locked step, the combined create-and-open a FUSE CreateFile
// request needs (unlike Open, which only creates under a path walk
// when the caller already knows OCreate is wanted).
func (k *Kernel) Create(parent vfs.InodeId, name string, mode vfs.FileMode, cred vfs.Credentials) (vfs.InodeId, int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	id, err := k.createRegular(parent, name, mode, cred)
	if err != nil {
		return vfs.InvalidID, -1, err
	}
	fd, err := k.openVnode(id, vfs.ORead|vfs.OWrite, cred)
	if err != nil {
		return vfs.InvalidID, -1, err
	}
	return id, fd, nil
}

// OpenID installs a new file descriptor for a vnode already resolved
// by the caller (e.g. a FUSE front end that identified it via a prior
// Lookup), applying the same flag/permission checks and truncate-on-
// open behavior Open does after path resolution.
func (k *Kernel) OpenID(id vfs.InodeId, flags vfs.OpenFlags, cred vfs.Credentials) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.openVnode(id, flags, cred)
}

func (k *Kernel) openVnode(id vfs.InodeId, flags vfs.OpenFlags, cred vfs.Credentials) (int, error) {
	v := k.Table.Get(id)
	if v == nil {
		return -1, vfserr.New("kernel.open", vfserr.NotFound)
	}
	if flags&vfs.ODirectory != 0 && !v.IsDir() {
		return -1, vfserr.New("kernel.open", vfserr.NotDirectory)
	}
	if !vfs.CheckOpenFlags(v.Mode, v.UID, v.GID, cred, flags) {
		return -1, vfserr.New("kernel.open", vfserr.PermissionDenied)
	}

	if flags&vfs.OTruncate != 0 && v.IsRegular() {
		if err := k.truncate(v, 0); err != nil {
			return -1, err
		}
	}

	fd, err := k.Fds.Alloc(id, flags)
	if err != nil {
		return -1, err
	}
	v.IncRef()
	if v.FsType == vfs.MikuFS {
		if fs, ok := k.mikuByMount[v.MountID]; ok {
			fs.IncRef(v.BackingIno)
		}
	}
	k.Notify.Emit(vfs.NotifyOpened, id, v.Parent, v.GetName(), k.now())
	return fd, nil
}

func (k *Kernel) createRegular(cwd vfs.InodeId, path string, mode vfs.FileMode, cred vfs.Credentials) (vfs.InodeId, error) {
	dir, name := vfs.SplitLast(path)
	parentID, err := k.resolve(cwd, dir)
	if err != nil {
		return vfs.InvalidID, err
	}
	parent := k.Table.Get(parentID)
	if parent == nil || !parent.IsDir() {
		return vfs.InvalidID, vfserr.New("kernel.create_regular", vfserr.NotDirectory)
	}
	if !vfs.CheckAccess(parent.Mode, parent.UID, parent.GID, cred, vfs.AccessWrite) {
		return vfs.InvalidID, vfserr.New("kernel.create_regular", vfserr.PermissionDenied)
	}

	if parent.FsType == vfs.MikuFS {
		fs, ok := k.mikuByMount[parent.MountID]
		if !ok {
			return vfs.InvalidID, vfserr.New("kernel.create_regular", vfserr.NotMounted)
		}
		ino, err := fs.CreateFile(parent.BackingIno, name, uint16(mode), cred.Euid, cred.Egid)
		if err != nil {
			return vfs.InvalidID, err
		}
		return k.mintMikuFSVnode(parentID, name, parent.MountID, fs, ino)
	}

	if err := k.Quotas.CheckInodes(cred.Euid); err != nil {
		return vfs.InvalidID, err
	}
	id, err := k.Table.Alloc(parentID, name, vfs.Regular, parent.FsType, mode, cred.Euid, cred.Egid, k.now())
	if err != nil {
		return vfs.InvalidID, err
	}
	parent.Children.Insert(vfs.NameHash(name), id)
	k.Quotas.AddInode(cred.Euid)
	k.Dentries.Invalidate(parentID, name)
	k.Notify.Emit(vfs.NotifyCreated, id, parentID, name, k.now())
	return id, nil
}

// Close releases fd, decrementing the vnode's reference count (and,
// for a MikuFS-backed file, the engine's own open-handle count so an
// unlinked-but-open inode stays alive until this was the last close).
func (k *Kernel) Close(fd int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	id, err := k.Fds.Close(fd)
	if err != nil {
		return err
	}
	v := k.Table.Get(id)
	if v == nil {
		return nil
	}
	v.DecRef()
	if v.FsType == vfs.MikuFS {
		if fs, ok := k.mikuByMount[v.MountID]; ok {
			fs.DecRef(v.BackingIno)
		}
	}
	k.Locks.ReleaseAllForVnode(id)
	k.Notify.Emit(vfs.NotifyClosed, id, v.Parent, v.GetName(), k.now())

	if v.NLinks == 0 && !v.IsReferenced() {
		k.dropXattrStore(id)
		k.Security.RemoveLabel(id)
		k.Versions.RemoveAllFor(id)
		k.Quotas.SubInode(v.UID)
		k.Table.Free(id)
	}
	return nil
}

// Read copies up to len(buf) bytes from fd's current offset, advancing
// it by the amount actually read.
func (k *Kernel) Read(fd int, buf []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	of, err := k.Fds.Get(fd)
	if err != nil {
		return 0, err
	}
	if !of.Readable() {
		return 0, vfserr.New("kernel.read", vfserr.PermissionDenied)
	}
	v := k.Table.Get(of.VnodeID)
	if v == nil {
		return 0, vfserr.New("kernel.read", vfserr.NotFound)
	}

	n, err := k.readVnode(v, of.Offset, buf)
	if err != nil {
		return n, err
	}
	of.Offset += uint64(n)
	v.TouchAtime(k.now())
	return n, nil
}

// ReadAt is Read's pread(2) counterpart: it reads from the explicit
// offset given rather than fd's own cursor, leaving that cursor
// untouched. FUSE ReadFileOp requests carry their own offset per
// call, so the fsadapt layer uses this instead of Read/Lseek.
func (k *Kernel) ReadAt(fd int, buf []byte, offset uint64) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	of, err := k.Fds.Get(fd)
	if err != nil {
		return 0, err
	}
	if !of.Readable() {
		return 0, vfserr.New("kernel.read_at", vfserr.PermissionDenied)
	}
	v := k.Table.Get(of.VnodeID)
	if v == nil {
		return 0, vfserr.New("kernel.read_at", vfserr.NotFound)
	}
	n, err := k.readVnode(v, offset, buf)
	if err != nil {
		return n, err
	}
	v.TouchAtime(k.now())
	return n, nil
}

func (k *Kernel) readVnode(v *vfs.VNode, offset uint64, buf []byte) (int, error) {
	switch v.FsType {
	case vfs.MikuFS:
		fs, ok := k.mikuByMount[v.MountID]
		if !ok {
			return 0, vfserr.New("kernel.read_vnode", vfserr.NotMounted)
		}
		inode, err := fs.ReadInode(v.BackingIno)
		if err != nil {
			return 0, err
		}
		if inode.HasInlineData() {
			return fs.Ext4ReadInline(inode, offset, buf)
		}
		return fs.ReadFile(inode, offset, buf)
	case vfs.DevFS:
		devType, ok := devfs.TypeFromNode(v.DevMajor, v.DevMinor)
		if !ok {
			return 0, vfserr.New("kernel.read_vnode", vfserr.InvalidArgument)
		}
		return k.Dev.Read(devType, buf, offset)
	case vfs.ProcFS:
		return k.Proc.Read(v.GetName(), buf, k.Table.UsedCount())
	default:
		return k.readPages(v, offset, buf)
	}
}

func (k *Kernel) readPages(v *vfs.VNode, offset uint64, buf []byte) (int, error) {
	if offset >= v.Size {
		return 0, nil
	}
	toRead := uint64(len(buf))
	if offset+toRead > v.Size {
		toRead = v.Size - offset
	}
	read := uint64(0)
	for read < toRead {
		pageIdx := int((offset + read) / vfs.PageSize)
		within := int((offset + read) % vfs.PageSize)
		pid, ok := v.AddrSpace.GetPage(pageIdx)
		chunk := vfs.PageSize - within
		if uint64(chunk) > toRead-read {
			chunk = int(toRead - read)
		}
		if ok {
			data, ok := k.Pages.GetPageData(pid)
			if ok {
				copy(buf[read:read+uint64(chunk)], data[within:within+chunk])
			}
		}
		read += uint64(chunk)
	}
	return int(read), nil
}

// Write copies len(buf) bytes into fd's vnode at its current offset
// (or at end-of-file under OAppend), advancing the offset and size.
func (k *Kernel) Write(fd int, buf []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	of, err := k.Fds.Get(fd)
	if err != nil {
		return 0, err
	}
	if !of.Writable() {
		return 0, vfserr.New("kernel.write", vfserr.PermissionDenied)
	}
	v := k.Table.Get(of.VnodeID)
	if v == nil {
		return 0, vfserr.New("kernel.write", vfserr.NotFound)
	}
	if v.Flags.Immutable {
		return 0, vfserr.New("kernel.write", vfserr.PermissionDenied)
	}

	offset := of.Offset
	if of.Flags&vfs.OAppend != 0 {
		offset = v.Size
	}

	if v.FsType != vfs.MikuFS {
		if err := k.Quotas.CheckBytes(v.UID, uint64(len(buf))); err != nil {
			return 0, err
		}
	}

	n, err := k.writeVnode(v, offset, buf)
	if err != nil {
		return n, err
	}
	of.Offset = offset + uint64(n)
	v.TouchMtime(k.now())
	if v.FsType != vfs.MikuFS {
		k.Quotas.AddBytes(v.UID, uint64(n))
	}
	k.Versions.Snapshot(v.Id, v.Size, vfs.InvalidID, k.now())
	k.Notify.Emit(vfs.NotifyModified, v.Id, v.Parent, v.GetName(), k.now())
	return n, nil
}

// WriteAt is Write's pwrite(2) counterpart: it writes at the explicit
// offset given rather than fd's own cursor (OAppend is not honored
// here — FUSE resolves append semantics on the client side before
// issuing WriteFileOp), leaving that cursor untouched.
func (k *Kernel) WriteAt(fd int, buf []byte, offset uint64) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	of, err := k.Fds.Get(fd)
	if err != nil {
		return 0, err
	}
	if !of.Writable() {
		return 0, vfserr.New("kernel.write_at", vfserr.PermissionDenied)
	}
	v := k.Table.Get(of.VnodeID)
	if v == nil {
		return 0, vfserr.New("kernel.write_at", vfserr.NotFound)
	}
	if v.Flags.Immutable {
		return 0, vfserr.New("kernel.write_at", vfserr.PermissionDenied)
	}
	if v.FsType != vfs.MikuFS {
		if err := k.Quotas.CheckBytes(v.UID, uint64(len(buf))); err != nil {
			return 0, err
		}
	}
	n, err := k.writeVnode(v, offset, buf)
	if err != nil {
		return n, err
	}
	v.TouchMtime(k.now())
	if v.FsType != vfs.MikuFS {
		k.Quotas.AddBytes(v.UID, uint64(n))
	}
	k.Versions.Snapshot(v.Id, v.Size, vfs.InvalidID, k.now())
	k.Notify.Emit(vfs.NotifyModified, v.Id, v.Parent, v.GetName(), k.now())
	return n, nil
}

func (k *Kernel) writeVnode(v *vfs.VNode, offset uint64, buf []byte) (int, error) {
	switch v.FsType {
	case vfs.MikuFS:
		fs, ok := k.mikuByMount[v.MountID]
		if !ok {
			return 0, vfserr.New("kernel.write_vnode", vfserr.NotMounted)
		}
		inode, err := fs.ReadInode(v.BackingIno)
		if err != nil {
			return 0, err
		}
		var n int
		if inode.HasInlineData() || (fs.Ext4CanInline(int(offset)+len(buf)) && inode.Size() == 0) {
			n, err = fs.Ext4WriteInline(v.BackingIno, buf, offset)
		} else {
			n, err = fs.WriteFile(v.BackingIno, buf, offset)
		}
		if err != nil {
			return n, err
		}
		if refreshed, rerr := fs.ReadInode(v.BackingIno); rerr == nil {
			v.Size = refreshed.Size()
		}
		return n, nil
	case vfs.DevFS:
		devType, ok := devfs.TypeFromNode(v.DevMajor, v.DevMinor)
		if !ok {
			return 0, vfserr.New("kernel.write_vnode", vfserr.InvalidArgument)
		}
		return k.Dev.Write(devType, buf, offset)
	case vfs.ProcFS:
		return 0, vfserr.New("kernel.write_vnode", vfserr.PermissionDenied)
	default:
		return k.writePages(v, offset, buf)
	}
}

func (k *Kernel) writePages(v *vfs.VNode, offset uint64, buf []byte) (int, error) {
	if offset+uint64(len(buf)) > vfs.MaxAddressSpaceBytes() {
		return 0, vfserr.New("kernel.write_pages", vfserr.FileTooLarge)
	}
	written := uint64(0)
	for written < uint64(len(buf)) {
		pageIdx := int((offset + written) / vfs.PageSize)
		within := int((offset + written) % vfs.PageSize)
		chunk := vfs.PageSize - within
		if uint64(chunk) > uint64(len(buf))-written {
			chunk = int(uint64(len(buf)) - written)
		}

		pid, ok := v.AddrSpace.GetPage(pageIdx)
		if !ok {
			newPid, err := k.Pages.AllocPage()
			if err != nil {
				return int(written), err
			}
			if err := v.AddrSpace.SetPage(pageIdx, newPid); err != nil {
				k.Pages.FreePage(newPid)
				return int(written), err
			}
			pid = newPid
		}
		data, ok := k.Pages.GetPageDataMut(pid)
		if !ok {
			return int(written), vfserr.New("kernel.write_pages", vfserr.IOError)
		}
		copy(data[within:within+chunk], buf[written:written+uint64(chunk)])
		k.Pages.MarkDirty(pid)
		written += uint64(chunk)
	}

	end := offset + written
	if end > v.Size {
		v.Size = end
	}
	return int(written), nil
}

func (k *Kernel) truncate(v *vfs.VNode, newSize uint64) error {
	if v.FsType == vfs.MikuFS {
		return vfserr.New("kernel.truncate", vfserr.UnsupportedFeature)
	}
	newPages := vfs.PagesForSize(newSize)
	freed := v.AddrSpace.TruncateTo(newPages)
	for _, pid := range freed {
		k.Pages.FreePage(pid)
	}
	v.Size = newSize
	v.TouchMtime(k.now())
	return nil
}

// Lseek repositions fd's offset per POSIX whence semantics (0 = set,
// 1 = current, 2 = end).
func (k *Kernel) Lseek(fd int, offset int64, whence int) (uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	of, err := k.Fds.Get(fd)
	if err != nil {
		return 0, err
	}
	v := k.Table.Get(of.VnodeID)
	if v == nil {
		return 0, vfserr.New("kernel.lseek", vfserr.NotFound)
	}

	var base int64
	switch whence {
	case 0:
		base = 0
	case 1:
		base = int64(of.Offset)
	case 2:
		base = int64(v.Size)
	default:
		return 0, vfserr.New("kernel.lseek", vfserr.InvalidArgument)
	}

	newOffset := base + offset
	if newOffset < 0 {
		return 0, vfserr.New("kernel.lseek", vfserr.InvalidArgument)
	}
	of.Offset = uint64(newOffset)
	return of.Offset, nil
}
