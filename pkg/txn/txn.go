package txn

import (
	"fmt"
	"sync/atomic"
)

// Txn is one top-level transaction. A transaction is driven by a single
// goroutine; only state is read concurrently.
type Txn struct {
	ID  XID
	Mgr *Manager

	cid      CID
	state    int32
	snapshot *Snapshot
}

func (txn *Txn) State() State {
	return State(atomic.LoadInt32(&txn.state))
}

// CurrentCID is the command id the next statement runs under.
func (txn *Txn) CurrentCID() CID {
	return txn.cid
}

// IncrementCommand makes the effects of prior statements visible to the
// next one.
func (txn *Txn) IncrementCommand() {
	txn.cid++
}

// GetSnapshot returns the transaction's snapshot, taking it on first use.
// Re-reads through the same snapshot stay consistent across concurrent
// commits.
func (txn *Txn) GetSnapshot() *Snapshot {
	if txn.snapshot == nil {
		txn.snapshot = txn.Mgr.SnapshotFor(txn)
	}
	return txn.snapshot
}

// NewSnapshot takes a fresh snapshot reflecting everything committed so
// far, still stamped with this transaction's (xid, cid).
func (txn *Txn) NewSnapshot() *Snapshot {
	snap := txn.Mgr.SnapshotFor(txn)
	if txn.snapshot == nil {
		txn.snapshot = snap
	}
	return snap
}

func (txn *Txn) Commit() error {
	return txn.Mgr.complete(txn, true)
}

func (txn *Txn) Rollback() error {
	return txn.Mgr.complete(txn, false)
}

func (txn *Txn) String() string {
	return fmt.Sprintf("txn-%d(cid=%d)", txn.ID, txn.cid)
}
