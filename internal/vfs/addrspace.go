package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

// AddressSpace is the 12-direct-page-slot map from a regular file's
// logical page index to a PageId in the page cache. There is no
// indirect block here (unlike MikuFS's on-disk extent/indirect
// structures) because tmpfs/devfs/procfs files are capped at
// DirectBlocks*PageSize; anything larger belongs on a MikuFS mount.
type AddressSpace struct {
	direct  [DirectBlocks]PageId
	nrPages uint32
}

func NewAddressSpace() AddressSpace {
	var a AddressSpace
	for i := range a.direct {
		a.direct[i] = InvalidID
	}
	return a
}

func (a *AddressSpace) GetPage(pageNum int) (PageId, bool) {
	if pageNum < DirectBlocks && a.direct[pageNum] != InvalidID {
		return a.direct[pageNum], true
	}
	return 0, false
}

func (a *AddressSpace) SetPage(pageNum int, pageID PageId) error {
	if pageNum >= DirectBlocks {
		return vfserr.New("addrspace.set_page", vfserr.FileTooLarge)
	}
	if a.direct[pageNum] == InvalidID {
		a.nrPages++
	}
	a.direct[pageNum] = pageID
	return nil
}

func (a *AddressSpace) ClearPage(pageNum int) {
	if pageNum < DirectBlocks && a.direct[pageNum] != InvalidID {
		a.direct[pageNum] = InvalidID
		if a.nrPages > 0 {
			a.nrPages--
		}
	}
}

// TruncateTo yields every page at or beyond newPageCount, clearing
// each slot as it is yielded so the caller can free the underlying
// page cache entries.
func (a *AddressSpace) TruncateTo(newPageCount int) []PageId {
	var out []PageId
	for i := newPageCount; i < DirectBlocks; i++ {
		if a.direct[i] != InvalidID {
			out = append(out, a.direct[i])
			a.direct[i] = InvalidID
			if a.nrPages > 0 {
				a.nrPages--
			}
		}
	}
	return out
}

func MaxAddressSpacePages() int    { return DirectBlocks }
func MaxAddressSpaceBytes() uint64 { return uint64(DirectBlocks) * PageSize }

// PagesForSize returns how many pages are needed to hold size bytes.
func PagesForSize(size uint64) int {
	if size == 0 {
		return 0
	}
	return int((size + PageSize - 1) / PageSize)
}

// IterPages calls fn with (pageIndex, pageID) for every resident page.
func (a *AddressSpace) IterPages(fn func(pageIndex int, id PageId)) {
	for i, id := range a.direct {
		if id != InvalidID {
			fn(i, id)
		}
	}
}

func (a *AddressSpace) UsedBytes() uint64 { return uint64(a.nrPages) * PageSize }
