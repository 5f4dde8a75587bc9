package vfs

// DentryCacheEntry is one slot of the dentry cache: a cached
// (parent, name) -> child mapping, or a negative entry recording a
// confirmed miss.
type DentryCacheEntry struct {
	ParentID InodeId
	ChildID  InodeId
	Hash     uint32
	Name     NameBuf
	Valid    bool
	Negative bool
}

// DentryCache is the open-addressed path-component cache sitting in
// front of the vnode children index and (for MikuFS mounts) the
// on-disk directory scan. Negative entries let repeated lookups of a
// name that does not exist short-circuit without re-walking a
// directory (spec §4.5).
type DentryCache struct {
	entries [MaxDentries]DentryCacheEntry
	Hits    uint64
	Misses  uint64
}

func NewDentryCache() *DentryCache { return &DentryCache{} }

// Lookup returns (childID, true) on a positive hit and (InvalidID,
// false) on a miss or a negative hit; the return value does not tell
// "no such entry cached" apart from "cached as absent".
func (d *DentryCache) Lookup(parent InodeId, name string) (InodeId, bool) {
	h := DentryHash(parent, name)
	start := int(h) % MaxDentries

	for i := 0; i < MaxDentries; i++ {
		idx := (start + i) % MaxDentries
		e := &d.entries[idx]
		if !e.Valid {
			if e.Hash == 0 && e.ParentID == InvalidID {
				break
			}
			continue
		}
		if e.Hash == h && e.ParentID == parent && e.Name.Equal(name) {
			d.Hits++
			if e.Negative {
				return InvalidID, false
			}
			return e.ChildID, true
		}
	}
	d.Misses++
	return InvalidID, false
}

func (d *DentryCache) Insert(parent InodeId, name string, child InodeId) {
	h := DentryHash(parent, name)
	start := int(h) % MaxDentries

	target := -1
	for i := 0; i < MaxDentries; i++ {
		idx := (start + i) % MaxDentries
		if !d.entries[idx].Valid {
			target = idx
			break
		}
		if d.entries[idx].Hash == h && d.entries[idx].ParentID == parent && d.entries[idx].Name.Equal(name) {
			target = idx
			break
		}
	}
	if target == -1 {
		target = int(h) % MaxDentries
	}
	d.entries[target] = DentryCacheEntry{
		ParentID: parent,
		ChildID:  child,
		Hash:     h,
		Name:     NewNameBuf(name),
		Valid:    true,
	}
}

// InsertNegative records a confirmed-absent lookup directly at the
// hash's home slot, evicting whatever occupied it (mirrors the
// reference cache's no-probe behavior for negative entries: a false
// positive here only costs one extra disk lookup, never correctness).
func (d *DentryCache) InsertNegative(parent InodeId, name string) {
	h := DentryHash(parent, name)
	idx := int(h) % MaxDentries
	d.entries[idx] = DentryCacheEntry{
		ParentID: parent,
		ChildID:  InvalidID,
		Hash:     h,
		Name:     NewNameBuf(name),
		Valid:    true,
		Negative: true,
	}
}

func (d *DentryCache) Invalidate(parent InodeId, name string) {
	h := DentryHash(parent, name)
	start := int(h) % MaxDentries
	for i := 0; i < MaxDentries; i++ {
		idx := (start + i) % MaxDentries
		e := &d.entries[idx]
		if !e.Valid {
			if e.Hash == 0 {
				break
			}
			continue
		}
		if e.Hash == h && e.ParentID == parent && e.Name.Equal(name) {
			e.Valid = false
			return
		}
	}
}

// InvalidateAllFor drops every entry referencing vnodeID on either
// side, used when a vnode is freed or renamed.
func (d *DentryCache) InvalidateAllFor(vnodeID InodeId) {
	for i := range d.entries {
		e := &d.entries[i]
		if e.Valid && (e.ParentID == vnodeID || e.ChildID == vnodeID) {
			e.Valid = false
		}
	}
}

func (d *DentryCache) Clear() {
	for i := range d.entries {
		d.entries[i] = DentryCacheEntry{}
	}
	d.Hits = 0
	d.Misses = 0
}

func (d *DentryCache) HitRate() uint64 {
	total := d.Hits + d.Misses
	if total == 0 {
		return 0
	}
	return (d.Hits * 100) / total
}
