package txn

import (
	"sync"
	"sync/atomic"

	"gstore/pkg/common"

	"github.com/sirupsen/logrus"
)

// Manager allocates transaction ids, builds MVCC snapshots, remembers the
// commit status of finished transactions and drives the registered
// commit/abort callbacks.
type Manager struct {
	sync.RWMutex
	xidAlloc  *common.IdAllocator
	active    map[XID]*Txn
	horizon   map[XID]XID // active xid -> earliest snapshot xmin it holds
	detached  map[uint64]XID
	snapSeq   uint64
	clog      map[XID]State
	callbacks []XactCallback
}

func NewManager() *Manager {
	return &Manager{
		xidAlloc: common.NewIdAllocator(uint64(FirstNormalXID)),
		active:   make(map[XID]*Txn),
		horizon:  make(map[XID]XID),
		detached: make(map[uint64]XID),
		clog:     make(map[XID]State),
	}
}

// OnXact registers a callback invoked synchronously on every commit and
// abort. Registration is not synchronized against running transactions;
// register before use.
func (mgr *Manager) OnXact(cb XactCallback) {
	mgr.callbacks = append(mgr.callbacks, cb)
}

func (mgr *Manager) StartTxn() *Txn {
	mgr.Lock()
	defer mgr.Unlock()
	txn := &Txn{
		ID:  XID(mgr.xidAlloc.Alloc()),
		Mgr: mgr,
	}
	mgr.active[txn.ID] = txn
	mgr.horizon[txn.ID] = txn.ID
	return txn
}

// SnapshotFor builds a fresh MVCC snapshot. txn may be nil for a detached
// read-only snapshot; a detached snapshot holds the oldest-xmin horizon
// until its Release, so chunks it can see stay mapped.
func (mgr *Manager) SnapshotFor(txn *Txn) *Snapshot {
	mgr.Lock()
	defer mgr.Unlock()
	snap := &Snapshot{
		Xmax: XID(mgr.xidAlloc.Peek()),
		xip:  make(map[XID]struct{}, len(mgr.active)),
		mvcc: true,
	}
	snap.Xmin = snap.Xmax
	for xid := range mgr.active {
		snap.xip[xid] = struct{}{}
		if xid < snap.Xmin {
			snap.Xmin = xid
		}
	}
	if txn != nil {
		snap.XID = txn.ID
		snap.CID = txn.cid
		if snap.Xmin < mgr.horizon[txn.ID] {
			mgr.horizon[txn.ID] = snap.Xmin
		}
	} else {
		mgr.snapSeq++
		snap.mgr = mgr
		snap.regID = mgr.snapSeq
		mgr.detached[snap.regID] = snap.Xmin
	}
	return snap
}

// DidCommit reports whether xid finished with a commit.
func (mgr *Manager) DidCommit(xid XID) bool {
	if xid == FrozenXID {
		return true
	}
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.clog[xid] == StateCommitted
}

// IsActive reports whether xid is currently in progress.
func (mgr *Manager) IsActive(xid XID) bool {
	mgr.RLock()
	defer mgr.RUnlock()
	_, ok := mgr.active[xid]
	return ok
}

// OldestXmin is the smallest xid any live transaction or unreleased
// detached snapshot may still consider in progress. With neither it is the
// next unassigned xid.
func (mgr *Manager) OldestXmin() XID {
	mgr.RLock()
	defer mgr.RUnlock()
	oldest := XID(mgr.xidAlloc.Peek())
	for _, xmin := range mgr.horizon {
		if xmin < oldest {
			oldest = xmin
		}
	}
	for _, xmin := range mgr.detached {
		if xmin < oldest {
			oldest = xmin
		}
	}
	return oldest
}

func (mgr *Manager) complete(txn *Txn, committed bool) error {
	mgr.Lock()
	if _, ok := mgr.active[txn.ID]; !ok {
		finished := mgr.clog[txn.ID]
		mgr.Unlock()
		if finished == StateCommitted {
			return ErrTxnAlreadyCommitted
		}
		return ErrTxnNotActive
	}
	state := StateCommitted
	event := EventCommit
	if !committed {
		state = StateAborted
		event = EventAbort
	}
	atomic.StoreInt32(&txn.state, int32(state))
	mgr.clog[txn.ID] = state
	delete(mgr.active, txn.ID)
	delete(mgr.horizon, txn.ID)
	callbacks := mgr.callbacks
	mgr.Unlock()

	if committed {
		logrus.Debugf("%s committed", txn.String())
	} else {
		logrus.Debugf("%s aborted", txn.String())
	}
	for _, cb := range callbacks {
		cb(event, txn)
	}
	return nil
}
