// Package blockdev provides the backing storage abstraction MikuFS
// mounts run on top of: a Device interface with two concrete
// implementations (a real file and an in-memory buffer), plus the
// registry and request-accounting layers the original kernel's block
// I/O subsystem kept separate from any specific backing store.
package blockdev

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Device is the minimal interface a MikuFS mount needs from its
// backing store: read/write whole blocks at a given block size.
type Device interface {
	ReadBlocks(blockNum uint64, count int) ([]byte, error)
	WriteBlocks(blockNum uint64, data []byte) error
	BlockSize() int
	TotalBlocks() uint64
	Sync() error
	Close() error
}

// FileDevice backs a Device with a real on-disk image file, flocked
// for the duration it is open so two processes can't mount the same
// image read-write concurrently.
type FileDevice struct {
	f         *os.File
	blockSize int
	totalBlocks uint64
}

// OpenFileDevice opens path as a block device image of the given
// block size, taking an exclusive advisory lock unless readOnly.
func OpenFileDevice(path string, blockSize int, readOnly bool) (*FileDevice, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, vfserr.Wrap("blockdev.open", vfserr.IOError, err)
	}

	lockType := unix.LOCK_EX
	if readOnly {
		lockType = unix.LOCK_SH
	}
	if err := unix.Flock(int(f.Fd()), lockType|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, vfserr.Wrap("blockdev.open", vfserr.Busy, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, vfserr.Wrap("blockdev.open", vfserr.IOError, err)
	}

	return &FileDevice{
		f:           f,
		blockSize:   blockSize,
		totalBlocks: uint64(info.Size()) / uint64(blockSize),
	}, nil
}

func (d *FileDevice) ReadBlocks(blockNum uint64, count int) ([]byte, error) {
	if blockNum+uint64(count) > d.totalBlocks {
		return nil, vfserr.New("blockdev.read_blocks", vfserr.IOError)
	}
	buf := make([]byte, count*d.blockSize)
	off := int64(blockNum) * int64(d.blockSize)
	if _, err := d.f.ReadAt(buf, off); err != nil {
		return nil, vfserr.Wrap("blockdev.read_blocks", vfserr.IOError, err)
	}
	return buf, nil
}

func (d *FileDevice) WriteBlocks(blockNum uint64, data []byte) error {
	if len(data)%d.blockSize != 0 {
		return vfserr.New("blockdev.write_blocks", vfserr.InvalidArgument)
	}
	count := uint64(len(data) / d.blockSize)
	if blockNum+count > d.totalBlocks {
		return vfserr.New("blockdev.write_blocks", vfserr.IOError)
	}
	off := int64(blockNum) * int64(d.blockSize)
	if _, err := d.f.WriteAt(data, off); err != nil {
		return vfserr.Wrap("blockdev.write_blocks", vfserr.IOError, err)
	}
	return nil
}

func (d *FileDevice) BlockSize() int      { return d.blockSize }
func (d *FileDevice) TotalBlocks() uint64 { return d.totalBlocks }

func (d *FileDevice) Sync() error {
	if err := d.f.Sync(); err != nil {
		return vfserr.Wrap("blockdev.sync", vfserr.IOError, err)
	}
	return nil
}

func (d *FileDevice) Close() error {
	unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
	return d.f.Close()
}

// MemDevice is an in-memory Device backed by a plain byte slice, used
// by mkfs/engine tests that don't need a real file on disk.
type MemDevice struct {
	data      []byte
	blockSize int
}

func NewMemDevice(blockSize int, totalBlocks uint64) *MemDevice {
	return &MemDevice{data: make([]byte, uint64(blockSize)*totalBlocks), blockSize: blockSize}
}

func (d *MemDevice) ReadBlocks(blockNum uint64, count int) ([]byte, error) {
	start := blockNum * uint64(d.blockSize)
	end := start + uint64(count*d.blockSize)
	if end > uint64(len(d.data)) {
		return nil, vfserr.New("memdevice.read_blocks", vfserr.IOError)
	}
	out := make([]byte, count*d.blockSize)
	copy(out, d.data[start:end])
	return out, nil
}

func (d *MemDevice) WriteBlocks(blockNum uint64, data []byte) error {
	start := blockNum * uint64(d.blockSize)
	end := start + uint64(len(data))
	if end > uint64(len(d.data)) {
		return vfserr.New("memdevice.write_blocks", vfserr.IOError)
	}
	copy(d.data[start:end], data)
	return nil
}

func (d *MemDevice) BlockSize() int      { return d.blockSize }
func (d *MemDevice) TotalBlocks() uint64 { return uint64(len(d.data)) / uint64(d.blockSize) }
func (d *MemDevice) Sync() error         { return nil }
func (d *MemDevice) Close() error        { return nil }

// BlockDevType distinguishes a MemDevice-backed ramdisk from a real
// file-backed disk image in the registry.
type BlockDevType uint8

const (
	RamDisk BlockDevType = iota
	AtaDisk
)

type blockDeviceEntry struct {
	id          uint8
	devType     BlockDevType
	blockSize   uint32
	totalBlocks uint64
	name        string
	readOnly    bool
	active      bool
	dev         Device
}

func (e *blockDeviceEntry) SizeBytes() uint64 { return e.totalBlocks * uint64(e.blockSize) }

// MaxBlockDevices bounds the registry, mirroring the fixed-capacity
// discipline used throughout the VFS layer.
const MaxBlockDevices = 4

// Manager is the fixed MaxBlockDevices-slot registry of mounted block
// devices, naming each by a small integer id the way mount.MountEntry
// names mounts.
type Manager struct {
	devices [MaxBlockDevices]blockDeviceEntry
}

func NewManager() *Manager { return &Manager{} }

func (m *Manager) Register(devType BlockDevType, name string, dev Device) (uint8, error) {
	for i := range m.devices {
		if !m.devices[i].active {
			m.devices[i] = blockDeviceEntry{
				id:          uint8(i),
				devType:     devType,
				blockSize:   uint32(dev.BlockSize()),
				totalBlocks: dev.TotalBlocks(),
				name:        name,
				active:      true,
				dev:         dev,
			}
			return uint8(i), nil
		}
	}
	return 0xFF, vfserr.New("blockdev_manager.register", vfserr.NoSpace)
}

func (m *Manager) Get(id uint8) (Device, bool) {
	i := int(id)
	if i < MaxBlockDevices && m.devices[i].active {
		return m.devices[i].dev, true
	}
	return nil, false
}

func (m *Manager) Unregister(id uint8) error {
	i := int(id)
	if i < MaxBlockDevices && m.devices[i].active {
		m.devices[i] = blockDeviceEntry{}
		return nil
	}
	return vfserr.New("blockdev_manager.unregister", vfserr.NotFound)
}

func (m *Manager) Count() int {
	n := 0
	for i := range m.devices {
		if m.devices[i].active {
			n++
		}
	}
	return n
}

func (m *Manager) String() string {
	return fmt.Sprintf("blockdev.Manager{devices=%d}", m.Count())
}
