package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

// CachedPage is one resident page of file data.
type CachedPage struct {
	Data     [PageSize]byte
	InodeID  InodeId
	PageIdx  uint32
	Dirty    bool
	Valid    bool
}

func (p *CachedPage) clear() {
	p.Data = [PageSize]byte{}
	p.InodeID = InvalidID
	p.PageIdx = 0
	p.Dirty = false
	p.Valid = false
}

// PageCache is the fixed MaxDataPages-slot cache backing every
// AddressSpace. Eviction always prefers the LRU tail, skipping any
// page still marked dirty: write-through callers clear Dirty eagerly
// once a page is flushed to its backing store, so in steady state the
// tail is clean and eviction is O(1) amortized; only a burst of writes
// with no flush in between makes eviction scan further.
type PageCache struct {
	pages       [MaxDataPages]CachedPage
	slab        *Slab
	lru         *LruList
	TotalWrites uint64
	TotalReads  uint64
	Evictions   uint64
}

func NewPageCache() *PageCache {
	return &PageCache{
		slab: NewSlab(MaxDataPages),
		lru:  NewLruList(MaxDataPages),
	}
}

func (c *PageCache) AllocPage() (PageId, error) {
	idx, err := c.slab.Alloc()
	if err == nil {
		pid := PageId(idx)
		c.pages[idx].clear()
		c.pages[idx].Valid = true
		c.lru.PushFront(uint16(pid))
		return pid, nil
	}
	return c.evictAndAlloc()
}

func (c *PageCache) evictAndAlloc() (PageId, error) {
	var candidate uint16
	found := false
	c.lru.WalkFromTail(func(idx uint16) bool {
		if int(idx) < MaxDataPages && !c.pages[idx].Dirty {
			candidate = idx
			found = true
			return false
		}
		return true
	})
	if !found {
		return 0, vfserr.New("page_cache.evict", vfserr.NoSpace)
	}

	idx := int(candidate)
	c.lru.Remove(candidate)
	c.pages[idx].clear()
	c.slab.Free(idx)
	c.Evictions++

	newIdx, err := c.slab.Alloc()
	if err != nil {
		return 0, err
	}
	pid := PageId(newIdx)
	c.pages[newIdx].Valid = true
	c.lru.PushFront(uint16(pid))
	return pid, nil
}

func (c *PageCache) FreePage(pageID PageId) {
	idx := int(pageID)
	if idx < MaxDataPages && c.slab.IsActive(idx) {
		c.lru.Remove(uint16(pageID))
		c.pages[idx].clear()
		c.slab.Free(idx)
	}
}

func (c *PageCache) GetPageData(pageID PageId) (*[PageSize]byte, bool) {
	idx := int(pageID)
	if idx < MaxDataPages && c.slab.IsActive(idx) {
		c.TotalReads++
		c.lru.Touch(uint16(pageID))
		return &c.pages[idx].Data, true
	}
	return nil, false
}

func (c *PageCache) GetPageDataMut(pageID PageId) (*[PageSize]byte, bool) {
	idx := int(pageID)
	if idx < MaxDataPages && c.slab.IsActive(idx) {
		c.TotalWrites++
		c.lru.Touch(uint16(pageID))
		return &c.pages[idx].Data, true
	}
	return nil, false
}

func (c *PageCache) MarkDirty(pageID PageId) {
	idx := int(pageID)
	if idx < MaxDataPages && c.slab.IsActive(idx) {
		c.pages[idx].Dirty = true
	}
}

func (c *PageCache) MarkClean(pageID PageId) {
	idx := int(pageID)
	if idx < MaxDataPages && c.slab.IsActive(idx) {
		c.pages[idx].Dirty = false
	}
}

func (c *PageCache) UsedPages() int      { return c.slab.Count() }
func (c *PageCache) FreePages() int      { return c.slab.FreeCount() }
func (c *PageCache) TotalCapacity() int  { return MaxDataPages }

func (c *PageCache) DirtyCount() int {
	n := 0
	for i := 0; i < MaxDataPages; i++ {
		if c.slab.IsActive(i) && c.pages[i].Dirty {
			n++
		}
	}
	return n
}

// FlushAll clears every dirty bit, as if every resident page had just
// been written back to its backing store.
func (c *PageCache) FlushAll() {
	for i := 0; i < MaxDataPages; i++ {
		if c.slab.IsActive(i) {
			c.pages[i].Dirty = false
		}
	}
}
