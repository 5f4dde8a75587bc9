// Package devfs implements the device pseudo-filesystem: a handful of
// fixed character devices (null, zero, random/urandom, console) that
// the VFS layer exposes as ordinary vnodes under /dev.
package devfs

import (
	"io"

	"github.com/altushkaso/mikufs/internal/vfserr"
)

type DevType uint8

const (
	DevNull DevType = iota
	DevZero
	DevRandom
	DevConsole
)

// TypeFromName maps a /dev entry name to its DevType.
func TypeFromName(name string) (DevType, bool) {
	switch name {
	case "null":
		return DevNull, true
	case "zero":
		return DevZero, true
	case "random", "urandom":
		return DevRandom, true
	case "console":
		return DevConsole, true
	default:
		return 0, false
	}
}

// Major and Minor mirror the traditional Linux device numbers for
// these nodes, so stat() output on this devfs looks familiar.
func (d DevType) Major() uint8 {
	if d == DevConsole {
		return 5
	}
	return 1
}

func (d DevType) Minor() uint8 {
	switch d {
	case DevNull:
		return 3
	case DevZero:
		return 5
	case DevRandom:
		return 8
	case DevConsole:
		return 1
	}
	return 0
}

func (d DevType) Description() string {
	switch d {
	case DevNull:
		return "null device (discards all)"
	case DevZero:
		return "zero device (reads zeros)"
	case DevRandom:
		return "pseudo-random generator"
	case DevConsole:
		return "system console"
	default:
		return ""
	}
}

// TypeFromNode reverses Major/Minor for devices already resolved to a
// vnode's stored (major, minor) pair.
func TypeFromNode(major, minor uint8) (DevType, bool) {
	switch {
	case major == 1 && minor == 3:
		return DevNull, true
	case major == 1 && minor == 5:
		return DevZero, true
	case major == 1 && minor == 8:
		return DevRandom, true
	case major == 5 && minor == 1:
		return DevConsole, true
	default:
		return 0, false
	}
}

// Entries lists every name devfs presents under /dev.
var Entries = []struct {
	Name string
	Type DevType
}{
	{"null", DevNull},
	{"zero", DevZero},
	{"random", DevRandom},
	{"urandom", DevRandom},
	{"console", DevConsole},
}

// randomState is a self-contained xorshift32 PRNG: devfs's random and
// urandom nodes are indistinguishable and neither is cryptographically
// secure, matching the original kernel's entropy-source-free design.
type randomState struct{ state uint32 }

func newRandomState() *randomState { return &randomState{state: 0xDEADBEEF} }

func (r *randomState) next() byte {
	s := r.state
	s ^= s << 13
	s ^= s >> 17
	s ^= s << 5
	r.state = s
	return byte(s)
}

// DevFs holds the mutable state (the PRNG stream, the console sink)
// shared by every device node of a given kernel instance.
type DevFs struct {
	rng     *randomState
	Console io.Writer
}

func New(console io.Writer) *DevFs {
	return &DevFs{rng: newRandomState(), Console: console}
}

func (d *DevFs) Read(devType DevType, buf []byte, _ uint64) (int, error) {
	switch devType {
	case DevNull:
		return 0, nil
	case DevZero:
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	case DevRandom:
		for i := range buf {
			buf[i] = d.rng.next()
		}
		return len(buf), nil
	case DevConsole:
		return 0, nil
	default:
		return 0, vfserr.New("devfs.read", vfserr.InvalidArgument)
	}
}

func (d *DevFs) Write(devType DevType, buf []byte, _ uint64) (int, error) {
	switch devType {
	case DevNull, DevZero, DevRandom:
		return len(buf), nil
	case DevConsole:
		if d.Console == nil {
			return len(buf), nil
		}
		for _, b := range buf {
			switch {
			case b >= 0x20 && b <= 0x7E:
				d.Console.Write([]byte{b})
			case b == '\n':
				d.Console.Write([]byte{'\n'})
			case b == '\r':
			case b == '\t':
				d.Console.Write([]byte("    "))
			}
		}
		return len(buf), nil
	default:
		return 0, vfserr.New("devfs.write", vfserr.InvalidArgument)
	}
}
