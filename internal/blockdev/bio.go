package blockdev

// BioDirection names whether a queued request is a read or write.
type BioDirection uint8

const (
	BioRead BioDirection = iota
	BioWrite
)

type BioStatus uint8

const (
	BioPending BioStatus = iota
	BioInProgress
	BioComplete
	BioError
)

const maxBioQueue = 32

type bioRequest struct {
	direction   BioDirection
	status      BioStatus
	deviceID    uint8
	blockNum    uint64
	blockCount  uint16
	active      bool
}

// BioQueue tracks in-flight block I/O requests against a fixed
// maxBioQueue-slot table. It is bookkeeping only: the actual transfer
// happens synchronously through a Device; this queue exists so the
// block cache and engine can report pending/submitted/completed/error
// counts the way the original kernel's block layer did, independent of
// whichever Device backs the mount.
type BioQueue struct {
	requests       [maxBioQueue]bioRequest
	TotalSubmitted uint64
	TotalCompleted uint64
	TotalErrors    uint64
}

func NewBioQueue() *BioQueue { return &BioQueue{} }

func (q *BioQueue) Submit(direction BioDirection, deviceID uint8, blockNum uint64, blockCount uint16) (int, bool) {
	for i := range q.requests {
		if !q.requests[i].active {
			q.requests[i] = bioRequest{
				direction:  direction,
				status:     BioPending,
				deviceID:   deviceID,
				blockNum:   blockNum,
				blockCount: blockCount,
				active:     true,
			}
			q.TotalSubmitted++
			return i, true
		}
	}
	return -1, false
}

func (q *BioQueue) Complete(idx int, success bool) {
	if idx < 0 || idx >= maxBioQueue || !q.requests[idx].active {
		return
	}
	if success {
		q.requests[idx].status = BioComplete
		q.TotalCompleted++
	} else {
		q.requests[idx].status = BioError
		q.TotalErrors++
	}
	q.requests[idx].active = false
}

func (q *BioQueue) PendingCount() int {
	n := 0
	for i := range q.requests {
		if q.requests[i].active && q.requests[i].status == BioPending {
			n++
		}
	}
	return n
}
