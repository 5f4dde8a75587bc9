// Package procfs implements the process-information pseudo-filesystem:
// a handful of read-only synthetic files (version, uptime, meminfo,
// mounts, cpuinfo, stat) rendered on demand from live kernel counters.
package procfs

import (
	"fmt"
	"sync/atomic"

	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Entries lists every synthetic file name procfs presents under /proc.
var Entries = []string{"version", "uptime", "meminfo", "mounts", "cpuinfo", "stat"}

// ProcFs owns the tick counter that backs uptime/stat. A tick
// represents one scheduler quantum in the original kernel; here it is
// simply a monotonically increasing counter the caller advances
// through Tick.
type ProcFs struct {
	ticks atomic.Uint64
}

func New() *ProcFs { return &ProcFs{} }

func (p *ProcFs) Tick() { p.ticks.Add(1) }

func (p *ProcFs) UptimeTicks() uint64 { return p.ticks.Load() }

// Read renders the named synthetic file's content and copies as much
// as fits into buf, returning the number of bytes copied.
func (p *ProcFs) Read(name string, buf []byte, vnodeUsed int) (int, error) {
	var content string
	switch name {
	case "version":
		content = "MikuOS v0.0.1 (x86_64)\nbuilt with love <3\n"
	case "uptime":
		content = p.formatUptime()
	case "meminfo":
		content = formatMeminfo(vnodeUsed, vfs.MaxVNodes, vfs.MaxDataPages)
	case "mounts":
		content = "tmpfs on / type tmpfs (rw)\n" +
			"devfs on /dev type devfs (rw)\n" +
			"procfs on /proc type procfs (ro)\n"
	case "cpuinfo":
		content = "arch: x86_64\nvendor: unknown\nfeatures: vfs tmpfs devfs procfs\n"
	case "stat":
		content = p.formatStat()
	default:
		return 0, vfserr.New("procfs.read", vfserr.NotFound)
	}

	n := copy(buf, content)
	return n, nil
}

func (p *ProcFs) formatUptime() string {
	ticks := p.UptimeTicks()
	secs := ticks / 18
	mins := secs / 60
	hours := mins / 60
	return fmt.Sprintf("up %dh %dm %ds (%d ticks)\n", hours, mins%60, secs%60, ticks)
}

func formatMeminfo(vnodeUsed, vnodeMax, pagesTotal int) string {
	return fmt.Sprintf(
		"vnodes: %d/%d\npages:  %d total (%d bytes)\npage_size: %d\n",
		vnodeUsed, vnodeMax, pagesTotal, pagesTotal*vfs.PageSize, vfs.PageSize,
	)
}

func (p *ProcFs) formatStat() string {
	return fmt.Sprintf(
		"ticks: %d\nmax_vnodes: %d\nmax_pages: %d\nmax_fds: %d\n",
		p.UptimeTicks(), vfs.MaxVNodes, vfs.MaxDataPages, vfs.MaxOpenFiles,
	)
}
