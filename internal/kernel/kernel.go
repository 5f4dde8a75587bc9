// Package kernel glues the in-memory VFS layer (internal/vfs), the
// device and process pseudo-filesystems (internal/devfs,
// internal/procfs) and any number of mounted MikuFS on-disk
// filesystems (internal/mikufs) into the single-namespace storage
// stack a caller actually opens files against. Every exported method
// corresponds to one POSIX-shaped boundary operation (open, read,
// write, mkdir, ...); Kernel.mu serializes all of them, standing in
// for the original kernel's "run with interrupts disabled" critical
// section.
package kernel

import (
	"io"
	"sync"
	"time"

	"github.com/altushkaso/mikufs/internal/blockdev"
	"github.com/altushkaso/mikufs/internal/devfs"
	"github.com/altushkaso/mikufs/internal/mikufs"
	"github.com/altushkaso/mikufs/internal/procfs"
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// TickInterval is the wall-clock duration one procfs tick represents,
// the same fixed HZ a real kernel's jiffies counter runs at. Every
// vfs.Timestamp (a tick count since boot) converts back to wall-clock
// time through this, anchored at bootTime.
const TickInterval = 10 * time.Millisecond

// Kernel is the process-wide storage stack context: one vnode table,
// one instance of every fixed-capacity side table the spec names, and
// the pseudo- and on-disk filesystems mounted into it.
type Kernel struct {
	mu sync.Mutex

	Table     *vfs.Table
	Fds       *vfs.FdTable
	Mounts    *vfs.MountTable
	Dentries  *vfs.DentryCache
	Pages     *vfs.PageCache
	Locks     *vfs.LockManager
	Quotas    *vfs.QuotaManager
	Notify    *vfs.NotifyManager
	Journal   *vfs.Journal
	Txs       *vfs.TxManager
	Versions  *vfs.VersionStore
	Cas       *vfs.CasStore
	Security  *vfs.SecurityManager
	xattrs    map[vfs.InodeId]*vfs.XattrStore

	Dev  *devfs.DevFs
	Proc *procfs.ProcFs

	devices    *blockdev.Manager
	mikuByMount map[uint8]*mikufs.FS

	bootTime time.Time
}

// New builds an empty Kernel with the root tmpfs vnode already mounted
// at "/", /dev populated from devfs.Entries, /proc from procfs.Entries,
// and an empty /mnt directory ready to take a further mount.
func New(console io.Writer) *Kernel {
	k := &Kernel{
		Table:       vfs.NewTable(0),
		Fds:         vfs.NewFdTable(),
		Mounts:      vfs.NewMountTable(),
		Dentries:    vfs.NewDentryCache(),
		Pages:       vfs.NewPageCache(),
		Locks:       vfs.NewLockManager(),
		Quotas:      vfs.NewQuotaManager(),
		Notify:      vfs.NewNotifyManager(),
		Journal:     vfs.NewJournal(),
		Txs:         vfs.NewTxManager(),
		Versions:    vfs.NewVersionStore(),
		Cas:         vfs.NewCasStore(),
		Security:    vfs.NewSecurityManager(),
		xattrs:      make(map[vfs.InodeId]*vfs.XattrStore),
		Dev:         devfs.New(console),
		Proc:        procfs.New(),
		devices:     blockdev.NewManager(),
		mikuByMount: make(map[uint8]*mikufs.FS),
		bootTime:    time.Now(),
	}
	k.Mounts.Add(vfs.TmpFS, 0, vfs.InvalidID)
	for _, dir := range []string{"/dev", "/proc", "/mnt"} {
		k.Mkdir(0, dir, 0o755, vfs.Credentials{})
	}
	k.Mount(0, "/dev", vfs.DevFS, nil, nil, nil)
	k.Mount(0, "/proc", vfs.ProcFS, nil, nil, nil)
	return k
}

func (k *Kernel) now() vfs.Timestamp { return vfs.Timestamp(k.Proc.UptimeTicks()) }

// BootTime returns the wall-clock instant this Kernel was created,
// the anchor every vfs.Timestamp is relative to.
func (k *Kernel) BootTime() time.Time { return k.bootTime }

// TickInterval returns the wall-clock duration one vfs.Timestamp tick
// represents.
func (k *Kernel) TickInterval() time.Duration { return TickInterval }

// Stat returns the live attribute snapshot for path, resolved from
// cwd.
func (k *Kernel) Stat(cwd vfs.InodeId, path string) (vfs.VNodeStat, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	id, err := k.resolve(cwd, path)
	if err != nil {
		return vfs.VNodeStat{}, err
	}
	v := k.Table.Get(id)
	if v == nil {
		return vfs.VNodeStat{}, vfserr.New("kernel.stat", vfserr.NotFound)
	}
	v.TouchAtime(k.now())
	return v.Stat(), nil
}

func (k *Kernel) xattrStoreFor(id vfs.InodeId) *vfs.XattrStore {
	s, ok := k.xattrs[id]
	if !ok {
		s = vfs.NewXattrStore()
		k.xattrs[id] = s
	}
	return s
}

func (k *Kernel) dropXattrStore(id vfs.InodeId) { delete(k.xattrs, id) }
