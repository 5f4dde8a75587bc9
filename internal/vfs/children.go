package vfs

// maxChildrenSlots bounds the open-addressed hash index held inline in
// every directory vnode. A directory with more live children than this
// simply cannot add another entry (NoSpace) — mirroring the fixed-size
// table discipline used everywhere else in this stack.
const maxChildrenSlots = 32

type childSlot struct {
	hash  uint32
	child InodeId
	used  bool
}

// Children is the open-addressed name_hash -> child_id index embedded
// in every directory VNode (spec §3 invariant 4: a hash collision must
// always be confirmed by a second compare against the stored name, so
// Children stores only the hash here — the caller confirms identity
// against the candidate vnode's own NameBuf).
type Children struct {
	slots [maxChildrenSlots]childSlot
	count uint8
}

func NewChildren() Children { return Children{} }

// FindByHash returns every resident child whose stored hash matches h,
// for the caller to confirm against by name.
func (c *Children) FindByHash(h uint32) []InodeId {
	var out []InodeId
	for i := range c.slots {
		if c.slots[i].used && c.slots[i].hash == h {
			out = append(out, c.slots[i].child)
		}
	}
	return out
}

// Insert adds a (hash, child) pair, probing linearly from hash's home
// slot. Returns false if the table is full.
func (c *Children) Insert(h uint32, child InodeId) bool {
	start := int(h) % maxChildrenSlots
	for i := 0; i < maxChildrenSlots; i++ {
		idx := (start + i) % maxChildrenSlots
		if !c.slots[idx].used {
			c.slots[idx] = childSlot{hash: h, child: child, used: true}
			c.count++
			return true
		}
	}
	return false
}

// Remove deletes the first slot matching (h, child).
func (c *Children) Remove(h uint32, child InodeId) {
	start := int(h) % maxChildrenSlots
	for i := 0; i < maxChildrenSlots; i++ {
		idx := (start + i) % maxChildrenSlots
		if c.slots[idx].used && c.slots[idx].hash == h && c.slots[idx].child == child {
			c.slots[idx] = childSlot{}
			if c.count > 0 {
				c.count--
			}
			return
		}
	}
}

func (c *Children) Len() int { return int(c.count) }

// All returns every resident child id, for readdir-shaped callers.
func (c *Children) All() []InodeId {
	out := make([]InodeId, 0, c.count)
	for i := range c.slots {
		if c.slots[i].used {
			out = append(out, c.slots[i].child)
		}
	}
	return out
}
