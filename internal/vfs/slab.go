package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

// Slab is a fixed-capacity bitmap allocator with a LIFO free stack,
// used wherever a table needs "allocate the next free index, free it
// later" without a heap. Capacity is capped at 64 slots internally
// (matching the original's u64 active-bit mask); callers that need a
// larger table size it through N but only the first 64 indices are
// ever handed out.
type Slab struct {
	freeStack      [64]uint16
	freeTop        uint16
	totalAllocated uint16
	activeBits     uint64
	capacity       uint16
}

// NewSlab builds a slab for n logical slots (n is clamped to 64).
func NewSlab(n int) *Slab {
	cap := n
	if cap > 64 {
		cap = 64
	}
	s := &Slab{capacity: uint16(cap)}
	for i := 0; i < 64; i++ {
		s.freeStack[i] = uint16(i)
	}
	s.freeTop = uint16(cap)
	return s
}

// Alloc returns the next free slot index or NoSpace.
func (s *Slab) Alloc() (int, error) {
	if s.freeTop == 0 {
		return 0, vfserr.New("slab.alloc", vfserr.NoSpace)
	}
	s.freeTop--
	idx := int(s.freeStack[s.freeTop])
	s.setActive(idx, true)
	s.totalAllocated++
	return idx, nil
}

// Free returns idx to the free stack if it is currently active.
func (s *Slab) Free(idx int) {
	if idx >= int(s.capacity) || !s.IsActive(idx) {
		return
	}
	s.setActive(idx, false)
	if int(s.freeTop) < 64 {
		s.freeStack[s.freeTop] = uint16(idx)
		s.freeTop++
	}
	if s.totalAllocated > 0 {
		s.totalAllocated--
	}
}

// IsActive reports whether idx is currently allocated.
func (s *Slab) IsActive(idx int) bool {
	if idx >= int(s.capacity) || idx < 0 {
		return false
	}
	return s.activeBits&(1<<uint(idx)) != 0
}

func (s *Slab) setActive(idx int, active bool) {
	if idx >= int(s.capacity) {
		return
	}
	if active {
		s.activeBits |= 1 << uint(idx)
	} else {
		s.activeBits &^= 1 << uint(idx)
	}
}

func (s *Slab) Count() int      { return int(s.totalAllocated) }
func (s *Slab) FreeCount() int  { return int(s.freeTop) }
func (s *Slab) Capacity() int   { return int(s.capacity) }

// IterActive calls fn for every currently-allocated index, in
// ascending order.
func (s *Slab) IterActive(fn func(idx int)) {
	for i := 0; i < int(s.capacity); i++ {
		if s.IsActive(i) {
			fn(i)
		}
	}
}
