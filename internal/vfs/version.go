package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

type FileVersion struct {
	VnodeID   InodeId
	Version   uint32
	Size      uint64
	PageID    PageId
	Timestamp Timestamp
	Active    bool
}

// VersionStore holds up to MaxVersions file snapshots across all
// vnodes. When full, Snapshot evicts the oldest version belonging to
// the same vnode rather than failing outright (spec §4.10). If that
// vnode has no version to give up, Snapshot fails with NoSpace; it
// never displaces another file's snapshots.
type VersionStore struct {
	versions    [MaxVersions]FileVersion
	nextVersion uint32
}

func NewVersionStore() *VersionStore { return &VersionStore{nextVersion: 1} }

func (s *VersionStore) Snapshot(vnodeID InodeId, size uint64, pageID PageId, timestamp Timestamp) (uint32, error) {
	target := -1
	oldestVer := ^uint32(0)
	emptySlot := -1

	for i := range s.versions {
		v := &s.versions[i]
		if !v.Active {
			if emptySlot == -1 {
				emptySlot = i
			}
			continue
		}
		if v.VnodeID == vnodeID && v.Version < oldestVer {
			oldestVer = v.Version
			target = i
		}
	}

	idx := emptySlot
	if idx == -1 {
		idx = target
	}
	if idx == -1 {
		return 0, vfserr.New("version_store.snapshot", vfserr.NoSpace)
	}

	verNum := s.nextVersion
	s.nextVersion++

	s.versions[idx] = FileVersion{VnodeID: vnodeID, Version: verNum, Size: size, PageID: pageID, Timestamp: timestamp, Active: true}
	return verNum, nil
}

func (s *VersionStore) GetVersion(vnodeID InodeId, version uint32) (*FileVersion, bool) {
	for i := range s.versions {
		v := &s.versions[i]
		if v.Active && v.VnodeID == vnodeID && v.Version == version {
			return v, true
		}
	}
	return nil, false
}

func (s *VersionStore) LatestVersion(vnodeID InodeId) (*FileVersion, bool) {
	var best *FileVersion
	for i := range s.versions {
		v := &s.versions[i]
		if v.Active && v.VnodeID == vnodeID {
			if best == nil || v.Version > best.Version {
				best = v
			}
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func (s *VersionStore) VersionsFor(vnodeID InodeId) int {
	n := 0
	for i := range s.versions {
		if s.versions[i].Active && s.versions[i].VnodeID == vnodeID {
			n++
		}
	}
	return n
}

func (s *VersionStore) RemoveAllFor(vnodeID InodeId) int {
	n := 0
	for i := range s.versions {
		if s.versions[i].Active && s.versions[i].VnodeID == vnodeID {
			s.versions[i] = FileVersion{}
			n++
		}
	}
	return n
}
