package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

type TxState uint8

const (
	TxIdle TxState = iota
	TxActive
	TxCommitted
	TxAborted
)

type TxOpKind uint8

const (
	TxCreate TxOpKind = iota + 1
	TxDelete
	TxWrite
	TxRename
	TxSetAttr
)

type TxOp struct {
	Kind     TxOpKind
	VnodeID  InodeId
	ParentID InodeId
	Name     NameBuf
	Active   bool
}

// Transaction groups up to MaxTxOps VFS operations under one
// commit/abort decision (spec §4.9), independent of the journal's
// per-operation intent log.
type Transaction struct {
	ID      uint8
	State   TxState
	ops     [MaxTxOps]TxOp
	opCount uint8
	PID     uint16
}

func (t *Transaction) AddOp(kind TxOpKind, vnodeID, parentID InodeId, name string) error {
	if t.State != TxActive {
		return vfserr.New("transaction.add_op", vfserr.InvalidArgument)
	}
	if int(t.opCount) >= MaxTxOps {
		return vfserr.New("transaction.add_op", vfserr.NoSpace)
	}
	t.ops[t.opCount] = TxOp{Kind: kind, VnodeID: vnodeID, ParentID: parentID, Name: NewNameBuf(name), Active: true}
	t.opCount++
	return nil
}

func (t *Transaction) Ops() []TxOp { return t.ops[:t.opCount] }

// TxManager is the fixed MaxTransactions-slot transaction pool.
type TxManager struct {
	transactions [MaxTransactions]Transaction
	nextID       uint8
}

func NewTxManager() *TxManager { return &TxManager{} }

func (m *TxManager) Begin(pid uint16) (uint8, error) {
	for i := range m.transactions {
		tx := &m.transactions[i]
		if tx.State == TxIdle || tx.State == TxCommitted || tx.State == TxAborted {
			tx.ID = uint8(i)
			tx.State = TxActive
			tx.opCount = 0
			tx.PID = pid
			for j := range tx.ops {
				tx.ops[j] = TxOp{}
			}
			m.nextID++
			return uint8(i), nil
		}
	}
	return InvalidU8, vfserr.New("tx_manager.begin", vfserr.NoSpace)
}

func (m *TxManager) Commit(txID uint8) error {
	i := int(txID)
	if i >= MaxTransactions || m.transactions[i].State != TxActive {
		return vfserr.New("tx_manager.commit", vfserr.InvalidArgument)
	}
	m.transactions[i].State = TxCommitted
	return nil
}

func (m *TxManager) Abort(txID uint8) error {
	i := int(txID)
	if i >= MaxTransactions || m.transactions[i].State != TxActive {
		return vfserr.New("tx_manager.abort", vfserr.InvalidArgument)
	}
	m.transactions[i].State = TxAborted
	return nil
}

func (m *TxManager) Get(txID uint8) (*Transaction, bool) {
	i := int(txID)
	if i < MaxTransactions && m.transactions[i].State == TxActive {
		return &m.transactions[i], true
	}
	return nil, false
}

func (m *TxManager) ActiveCount() int {
	n := 0
	for i := range m.transactions {
		if m.transactions[i].State == TxActive {
			n++
		}
	}
	return n
}
