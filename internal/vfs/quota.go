package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

type QuotaEntry struct {
	UID          uint16
	BytesUsed    uint64
	BytesLimit   uint64
	InodesUsed   uint32
	InodesLimit  uint32
	Active       bool
}

func (e *QuotaEntry) BytesAvailable() uint64 {
	if e.BytesLimit == 0 {
		return ^uint64(0)
	}
	if e.BytesUsed >= e.BytesLimit {
		return 0
	}
	return e.BytesLimit - e.BytesUsed
}

func (e *QuotaEntry) InodesAvailable() uint32 {
	if e.InodesLimit == 0 {
		return ^uint32(0)
	}
	if e.InodesUsed >= e.InodesLimit {
		return 0
	}
	return e.InodesLimit - e.InodesUsed
}

// QuotaManager tracks per-uid byte and inode usage against fixed
// MaxQuotaEntries limits. A limit of 0 means unlimited; Enabled gates
// enforcement, set separately from whether any quotas are configured.
type QuotaManager struct {
	entries [MaxQuotaEntries]QuotaEntry
	Enabled bool
}

func NewQuotaManager() *QuotaManager { return &QuotaManager{} }

func (m *QuotaManager) SetQuota(uid uint16, bytesLimit uint64, inodesLimit uint32) error {
	for i := range m.entries {
		if m.entries[i].Active && m.entries[i].UID == uid {
			m.entries[i].BytesLimit = bytesLimit
			m.entries[i].InodesLimit = inodesLimit
			return nil
		}
	}
	for i := range m.entries {
		if !m.entries[i].Active {
			m.entries[i] = QuotaEntry{UID: uid, BytesLimit: bytesLimit, InodesLimit: inodesLimit, Active: true}
			return nil
		}
	}
	return vfserr.New("quota_manager.set_quota", vfserr.NoSpace)
}

func (m *QuotaManager) CheckBytes(uid uint16, additional uint64) error {
	if !m.Enabled {
		return nil
	}
	for i := range m.entries {
		e := &m.entries[i]
		if e.Active && e.UID == uid && e.BytesLimit > 0 && e.BytesUsed+additional > e.BytesLimit {
			return vfserr.New("quota_manager.check_bytes", vfserr.QuotaExceeded)
		}
	}
	return nil
}

func (m *QuotaManager) CheckInodes(uid uint16) error {
	if !m.Enabled {
		return nil
	}
	for i := range m.entries {
		e := &m.entries[i]
		if e.Active && e.UID == uid && e.InodesLimit > 0 && e.InodesUsed >= e.InodesLimit {
			return vfserr.New("quota_manager.check_inodes", vfserr.QuotaExceeded)
		}
	}
	return nil
}

func (m *QuotaManager) AddBytes(uid uint16, bytes uint64) {
	for i := range m.entries {
		e := &m.entries[i]
		if e.Active && e.UID == uid {
			e.BytesUsed += bytes
		}
	}
}

func (m *QuotaManager) SubBytes(uid uint16, bytes uint64) {
	for i := range m.entries {
		e := &m.entries[i]
		if e.Active && e.UID == uid {
			if e.BytesUsed < bytes {
				e.BytesUsed = 0
			} else {
				e.BytesUsed -= bytes
			}
		}
	}
}

func (m *QuotaManager) AddInode(uid uint16) {
	for i := range m.entries {
		e := &m.entries[i]
		if e.Active && e.UID == uid {
			e.InodesUsed++
		}
	}
}

func (m *QuotaManager) SubInode(uid uint16) {
	for i := range m.entries {
		e := &m.entries[i]
		if e.Active && e.UID == uid && e.InodesUsed > 0 {
			e.InodesUsed--
		}
	}
}

func (m *QuotaManager) Get(uid uint16) (*QuotaEntry, bool) {
	for i := range m.entries {
		if m.entries[i].Active && m.entries[i].UID == uid {
			return &m.entries[i], true
		}
	}
	return nil, false
}
