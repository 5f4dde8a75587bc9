// Package fsadapt implements fuseutil.FileSystem on top of
// internal/kernel, the same shape fs/fs.go uses to implement it on
// top of a GCS-object tree: a single struct embedding
// fuseutil.NotImplementedFileSystem, translating fuseops request/
// response types into Kernel calls protected by Kernel's own
// internal locking rather than a second mutex here.
package fsadapt

import (
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/altushkaso/mikufs/internal/kernel"
	"github.com/altushkaso/mikufs/internal/metrics"
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// FileSystem adapts a *kernel.Kernel to fuseutil.FileSystem. Every
// unimplemented fuseutil.FileSystem method falls through to
// NotImplementedFileSystem's ENOSYS, the same embedding fs/fs.go
// uses to only implement the subset of ops this storage stack
// actually supports.
//
// Uid/Gid mirror fs/fs.go's ServerConfig.Uid/Gid: the fixed caller
// identity fuse requests are evaluated as, rather than one recovered
// per request (jacobsa/fuse's Op types carry no credential fields).
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	K        *kernel.Kernel
	Uid, Gid uint32

	// Metrics is optional: a nil Recorder (the New default) makes
	// every instrumented method a no-op on the metrics path.
	Metrics *metrics.Recorder

	handleMu    sync.Mutex
	nextHandle  fuseops.HandleID
	dirHandles  map[fuseops.HandleID]*dirHandle
	fileHandles map[fuseops.HandleID]int
}

// New builds a FileSystem wrapping k, evaluating every request as the
// given uid/gid.
func New(k *kernel.Kernel, uid, gid uint32) *FileSystem {
	return &FileSystem{
		K:          k,
		Uid:        uid,
		Gid:        gid,
		dirHandles:  make(map[fuseops.HandleID]*dirHandle),
		fileHandles: make(map[fuseops.HandleID]int),
	}
}

// WithMetrics attaches a Recorder every fsadapt method reports its
// completion and latency to, the generalization of the per-op
// counters serverCfg.MetricHandle feeds in cmd/mount.go.
func (fs *FileSystem) WithMetrics(m *metrics.Recorder) *FileSystem {
	fs.Metrics = m
	return fs
}

// finish records op's outcome through Metrics (a no-op if none is
// attached) and returns err unchanged, so each op's deferred closure
// can write `err = fs.finish("op", start, err)`.
func (fs *FileSystem) finish(op string, start time.Time, err error) error {
	if fs.Metrics != nil {
		fs.Metrics.Inc(op, err)
		fs.Metrics.Observe(op, time.Since(start).Seconds())
	}
	return err
}

// newHandle allocates the next fuseops.HandleID, the same monotonic
// counter scheme fs/fs.go's handles map uses (it never reuses a
// number, relying on ReleaseFileHandle/ReleaseDirHandle to drop the
// entry instead).
func (fs *FileSystem) newHandle() fuseops.HandleID {
	fs.handleMu.Lock()
	defer fs.handleMu.Unlock()
	fs.nextHandle++
	return fs.nextHandle
}

// vnodeID converts a fuseops.InodeID into the vfs.InodeId it
// represents. fuseops.RootInodeID (1) is reserved by the FUSE
// protocol, so every ID is shifted by one relative to vfs's own
// zero-based root.
func vnodeID(id fuseops.InodeID) vfs.InodeId { return vfs.InodeId(id - 1) }

// fuseInodeID is vnodeID's inverse.
func fuseInodeID(id vfs.InodeId) fuseops.InodeID { return fuseops.InodeID(id) + 1 }

// credentials returns the fixed caller identity every request is
// evaluated as.
func (fs *FileSystem) credentials() vfs.Credentials {
	return vfs.Credentials{Euid: uint16(fs.Uid), Egid: uint16(fs.Gid)}
}

// fileModeToOS combines s.Kind's type bit with s.Mode's permission
// bits into the os.FileMode shape fuseops.InodeAttributes.Mode wants.
func fileModeToOS(s vfs.VNodeStat) os.FileMode {
	perm := os.FileMode(s.Mode) & os.ModePerm
	switch s.Kind {
	case vfs.Directory:
		return perm | os.ModeDir
	case vfs.Symlink:
		return perm | os.ModeSymlink
	case vfs.CharDevice:
		return perm | os.ModeDevice | os.ModeCharDevice
	case vfs.BlockDevice:
		return perm | os.ModeDevice
	case vfs.Fifo:
		return perm | os.ModeNamedPipe
	default:
		return perm
	}
}

// ticksToTime converts a boot-relative tick count into the wall-clock
// time.Time fuseops.InodeAttributes needs, anchored at the kernel's
// recorded boot instant. Vnodes minted before a boot time is known
// (e.g. during mount setup) fall back to the zero time.
func (fs *FileSystem) ticksToTime(t vfs.Timestamp) time.Time {
	boot := fs.K.BootTime()
	if boot.IsZero() {
		return time.Time{}
	}
	return boot.Add(time.Duration(t) * fs.K.TickInterval())
}

func (fs *FileSystem) statToAttrs(s vfs.VNodeStat) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   s.Size,
		Nlink:  uint32(s.NLinks),
		Mode:   fileModeToOS(s),
		Uid:    uint32(s.UID),
		Gid:    uint32(s.GID),
		Atime:  fs.ticksToTime(s.ATime),
		Mtime:  fs.ticksToTime(s.MTime),
		Ctime:  fs.ticksToTime(s.CTime),
		Crtime: fs.ticksToTime(s.BTime),
	}
}

func errToFuse(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case vfserr.Is(err, vfserr.NotFound):
		return fuse.ENOENT
	case vfserr.Is(err, vfserr.AlreadyExists):
		return fuse.EEXIST
	case vfserr.Is(err, vfserr.NotDirectory):
		return fuse.ENOTDIR
	case vfserr.Is(err, vfserr.Busy):
		return fuse.ENOTEMPTY
	case vfserr.Is(err, vfserr.InvalidArgument), vfserr.Is(err, vfserr.InvalidPath):
		return fuse.EINVAL
	case vfserr.Is(err, vfserr.IsDirectory):
		return syscall.EISDIR
	case vfserr.Is(err, vfserr.PermissionDenied):
		return syscall.EACCES
	case vfserr.Is(err, vfserr.NameTooLong):
		return syscall.ENAMETOOLONG
	case vfserr.Is(err, vfserr.NoSpace):
		return syscall.ENOSPC
	case vfserr.Is(err, vfserr.TooManyOpenFiles):
		return syscall.EMFILE
	case vfserr.Is(err, vfserr.FileTooLarge):
		return syscall.EFBIG
	case vfserr.Is(err, vfserr.BadFd):
		return syscall.EBADF
	default:
		return fuse.EIO
	}
}
