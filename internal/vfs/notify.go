package vfs

type NotifyEvent uint8

const (
	NotifyCreated NotifyEvent = iota + 1
	NotifyDeleted
	NotifyModified
	NotifyRenamed
	NotifyAttrChanged
	NotifyOpened
	NotifyClosed
)

type NotifyEntry struct {
	Event     NotifyEvent
	VnodeID   InodeId
	ParentID  InodeId
	Name      NameBuf
	Timestamp Timestamp
	Active    bool
}

// NotifyManager is a fixed MaxNotifyEvents-slot ring buffer of
// filesystem change events, the in-memory equivalent of inotify.
type NotifyManager struct {
	events      [MaxNotifyEvents]NotifyEntry
	writePos    uint64
	TotalEvents uint64
}

func NewNotifyManager() *NotifyManager { return &NotifyManager{} }

func (m *NotifyManager) Emit(event NotifyEvent, vnodeID, parentID InodeId, name string, timestamp Timestamp) {
	idx := m.writePos % uint64(MaxNotifyEvents)
	m.events[idx] = NotifyEntry{
		Event:     event,
		VnodeID:   vnodeID,
		ParentID:  parentID,
		Name:      NewNameBuf(name),
		Timestamp: timestamp,
		Active:    true,
	}
	m.writePos++
	m.TotalEvents++
}

// Recent returns up to count of the most recently emitted events in
// emission order, stopping early if a ring slot was never written
// (the ring hasn't wrapped yet).
func (m *NotifyManager) Recent(count uint64) []NotifyEntry {
	start := uint64(0)
	if m.writePos > count {
		start = m.writePos - count
	}
	out := make([]NotifyEntry, 0, count)
	for pos := start; pos < m.writePos; pos++ {
		idx := pos % uint64(MaxNotifyEvents)
		e := m.events[idx]
		if !e.Active {
			break
		}
		out = append(out, e)
	}
	return out
}

func (m *NotifyManager) Clear() {
	for i := range m.events {
		m.events[i] = NotifyEntry{}
	}
	m.writePos = 0
}
