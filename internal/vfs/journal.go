package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

// JournalOp names the operation an in-memory journal entry describes.
// This journal is distinct from MikuFS's on-disk ext3/4 journal — it
// records VFS-level intent (spec §4.8) before the underlying
// filesystem driver is invoked, so a crash mid-operation can be
// diagnosed independently of what the disk journal recovered.
type JournalOp uint8

const (
	JournalCreateFile JournalOp = iota + 1
	JournalDeleteFile
	JournalWriteData
	JournalCreateDir
	JournalDeleteDir
	JournalRename
	JournalSetAttr
	JournalLink
	JournalSymlink
)

type JournalEntry struct {
	Op        JournalOp
	VnodeID   InodeId
	ParentID  InodeId
	Name      NameBuf
	Timestamp Timestamp
	Committed bool
	Active    bool
}

type JournalState uint8

const (
	JournalIdle JournalState = iota
	JournalRecording
	JournalCommitting
	JournalRecovering
)

// Journal is a fixed MaxJournalBlocks-slot ring recording VFS intent
// between Begin and Commit/Abort. Only one transaction may be open at
// a time (State != Idle rejects a second Begin).
type Journal struct {
	entries  [MaxJournalBlocks]JournalEntry
	writePos int
	State    JournalState
	Sequence uint64
}

func NewJournal() *Journal { return &Journal{} }

func (j *Journal) Begin() error {
	if j.State != JournalIdle {
		return vfserr.New("journal.begin", vfserr.Busy)
	}
	j.State = JournalRecording
	return nil
}

func (j *Journal) Record(op JournalOp, vnodeID, parentID InodeId, name string, timestamp Timestamp) error {
	if j.State != JournalRecording {
		return vfserr.New("journal.record", vfserr.InvalidArgument)
	}
	idx := j.writePos % MaxJournalBlocks
	j.entries[idx] = JournalEntry{
		Op:        op,
		VnodeID:   vnodeID,
		ParentID:  parentID,
		Name:      NewNameBuf(name),
		Timestamp: timestamp,
		Active:    true,
	}
	j.writePos++
	return nil
}

func (j *Journal) Commit() error {
	if j.State != JournalRecording {
		return vfserr.New("journal.commit", vfserr.InvalidArgument)
	}
	j.State = JournalCommitting

	for i := range j.entries {
		if j.entries[i].Active && !j.entries[i].Committed {
			j.entries[i].Committed = true
		}
	}

	j.Sequence++
	j.State = JournalIdle
	return nil
}

// Abort discards every recorded-but-uncommitted entry and rewinds
// writePos by how many were removed. This assumes the uncommitted
// entries are exactly the most recently written ones — true because
// Begin/Commit/Abort bracket a single transaction with no interleaving.
func (j *Journal) Abort() {
	removed := 0
	for i := range j.entries {
		if j.entries[i].Active && !j.entries[i].Committed {
			j.entries[i] = JournalEntry{}
			removed++
		}
	}
	j.writePos -= removed
	if j.writePos < 0 {
		j.writePos = 0
	}
	j.State = JournalIdle
}

func (j *Journal) Clear() {
	for i := range j.entries {
		j.entries[i] = JournalEntry{}
	}
	j.writePos = 0
	j.State = JournalIdle
}

func (j *Journal) EntryCount() int {
	n := 0
	for i := range j.entries {
		if j.entries[i].Active {
			n++
		}
	}
	return n
}

func (j *Journal) PendingCount() int {
	n := 0
	for i := range j.entries {
		if j.entries[i].Active && !j.entries[i].Committed {
			n++
		}
	}
	return n
}
