package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

type CasObject struct {
	Hash     [32]byte
	PageID   PageId
	Refcount uint16
	Size     uint32
	Active   bool
}

// CasStore deduplicates page-sized content blocks by hash across up
// to MaxCasObjects distinct objects, refcounted so a shared block is
// only released once its last referrer drops it.
type CasStore struct {
	objects [MaxCasObjects]CasObject
}

func NewCasStore() *CasStore { return &CasStore{} }

func (s *CasStore) FindByHash(hash [32]byte) (int, bool) {
	for i := range s.objects {
		if s.objects[i].Active && s.objects[i].Hash == hash {
			return i, true
		}
	}
	return -1, false
}

// Store interns data under pageID, or bumps the refcount of an
// existing object with identical content hash and frees nothing — the
// caller is responsible for freeing pageID's page if Store returns an
// existing index rather than a fresh one.
func (s *CasStore) Store(data []byte, pageID PageId) (int, error) {
	hash := ContentHash(data)

	if idx, ok := s.FindByHash(hash); ok {
		if s.objects[idx].Refcount < ^uint16(0) {
			s.objects[idx].Refcount++
		}
		return idx, nil
	}

	for i := range s.objects {
		if !s.objects[i].Active {
			s.objects[i] = CasObject{Hash: hash, PageID: pageID, Refcount: 1, Size: uint32(len(data)), Active: true}
			return i, nil
		}
	}
	return -1, vfserr.New("cas_store.store", vfserr.NoSpace)
}

// Release drops one reference to objects[idx]. It returns the freed
// PageId, and true, only once the refcount reaches zero.
func (s *CasStore) Release(idx int) (PageId, bool) {
	if idx < 0 || idx >= MaxCasObjects || !s.objects[idx].Active {
		return 0, false
	}
	if s.objects[idx].Refcount > 0 {
		s.objects[idx].Refcount--
	}
	if s.objects[idx].Refcount == 0 {
		pageID := s.objects[idx].PageID
		s.objects[idx] = CasObject{}
		return pageID, true
	}
	return 0, false
}

func (s *CasStore) Count() int {
	n := 0
	for i := range s.objects {
		if s.objects[i].Active {
			n++
		}
	}
	return n
}

func (s *CasStore) TotalRefs() uint64 {
	var total uint64
	for i := range s.objects {
		if s.objects[i].Active {
			total += uint64(s.objects[i].Refcount)
		}
	}
	return total
}
