// Package cache implements the block cache MikuFS mounts sit on top
// of: a flat, fixed-size, write-through cache mapping block number to
// a one-block buffer.
package cache

import "log/slog"

const maxCacheEntries = 32

type cacheEntry struct {
	blockNum   uint32
	valid      bool
	dirty      bool
	lastAccess uint64
}

// BlockCache is a write-through cache of up to maxCacheEntries blocks.
// Dirty is tracked per entry but — per design — never drives a
// write-back: every write that reaches Put has already been issued to
// the backing device by the caller, so Dirty exists only as a hook for
// a future write-back policy this design does not implement.
type BlockCache struct {
	buffer        []byte
	entries       [maxCacheEntries]cacheEntry
	blockSize     int
	count         int
	accessCounter uint64
	Hits          uint64
	Misses        uint64
	Evictions     uint64
}

// New builds a cache of min(maxEntries, maxCacheEntries) slots of
// blockSize bytes each.
func New(blockSize, maxEntries int, log *slog.Logger) *BlockCache {
	count := maxEntries
	if count > maxCacheEntries {
		count = maxCacheEntries
	}
	if log != nil {
		log.Debug("block cache allocated",
			"entries", count, "block_size", blockSize, "total_kb", (count*blockSize)/1024)
	}
	return &BlockCache{
		buffer:    make([]byte, count*blockSize),
		blockSize: blockSize,
		count:     count,
	}
}

// Get copies the cached block into buf on a hit, bumping recency.
func (c *BlockCache) Get(blockNum uint32, buf []byte) bool {
	for i := 0; i < c.count; i++ {
		if c.entries[i].valid && c.entries[i].blockNum == blockNum {
			offset := i * c.blockSize
			copyLen := len(buf)
			if copyLen > c.blockSize {
				copyLen = c.blockSize
			}
			copy(buf[:copyLen], c.buffer[offset:offset+copyLen])
			c.accessCounter++
			c.entries[i].lastAccess = c.accessCounter
			c.Hits++
			return true
		}
	}
	c.Misses++
	return false
}

// Put installs data for blockNum, overwriting in place on a hit or
// evicting the first empty-or-LRU slot on a miss.
func (c *BlockCache) Put(blockNum uint32, data []byte) {
	for i := 0; i < c.count; i++ {
		if c.entries[i].valid && c.entries[i].blockNum == blockNum {
			c.writeSlot(i, data)
			c.accessCounter++
			c.entries[i].lastAccess = c.accessCounter
			return
		}
	}

	slot := c.findSlot()
	if c.entries[slot].valid {
		c.Evictions++
	}
	c.writeSlot(slot, data)
	c.accessCounter++
	c.entries[slot] = cacheEntry{blockNum: blockNum, valid: true, lastAccess: c.accessCounter}
}

func (c *BlockCache) writeSlot(slot int, data []byte) {
	offset := slot * c.blockSize
	copyLen := len(data)
	if copyLen > c.blockSize {
		copyLen = c.blockSize
	}
	copy(c.buffer[offset:offset+copyLen], data[:copyLen])
}

func (c *BlockCache) findSlot() int {
	for i := 0; i < c.count; i++ {
		if !c.entries[i].valid {
			return i
		}
	}
	lruIdx := 0
	lruVal := ^uint64(0)
	for i := 0; i < c.count; i++ {
		if c.entries[i].lastAccess < lruVal {
			lruVal = c.entries[i].lastAccess
			lruIdx = i
		}
	}
	return lruIdx
}

func (c *BlockCache) Invalidate(blockNum uint32) {
	for i := 0; i < c.count; i++ {
		if c.entries[i].valid && c.entries[i].blockNum == blockNum {
			c.entries[i].valid = false
		}
	}
}

func (c *BlockCache) Clear() {
	for i := 0; i < c.count; i++ {
		c.entries[i].valid = false
	}
	c.Hits, c.Misses, c.Evictions, c.accessCounter = 0, 0, 0, 0
}

func (c *BlockCache) CachedEntries() int {
	n := 0
	for i := 0; i < c.count; i++ {
		if c.entries[i].valid {
			n++
		}
	}
	return n
}

func (c *BlockCache) Capacity() int { return c.count }

func (c *BlockCache) HitRate() uint64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return (c.Hits * 100) / total
}

func (c *BlockCache) TotalBytes() int { return c.count * c.blockSize }
