package txn

import "fmt"

// Snapshot is the set of transaction ids a reader considers still in
// progress, plus the owner's (xid, cid) at the time it was taken.
type Snapshot struct {
	// Xmin: every xid below it is finished. Xmax: every xid at or above
	// it had not started.
	Xmin, Xmax XID
	// XID and CID identify the owning transaction; XID is invalid for a
	// detached read-only snapshot.
	XID XID
	CID CID

	xip  map[XID]struct{}
	mvcc bool

	// mgr and regID track a detached snapshot's registration in the
	// manager's oldest-xmin horizon; both are zero for transaction-owned
	// snapshots, whose horizon entry lives and dies with the transaction.
	mgr   *Manager
	regID uint64
}

// Release withdraws a detached snapshot from the oldest-xmin horizon;
// chunks only it could still see become reclaimable afterwards. Reads
// through the snapshot are no longer safe. Idempotent, and a no-op on
// transaction-owned snapshots, which commit/abort releases.
func (s *Snapshot) Release() {
	if s == nil || s.mgr == nil {
		return
	}
	s.mgr.Lock()
	delete(s.mgr.detached, s.regID)
	s.mgr.Unlock()
	s.mgr = nil
}

// IsMVCC reports whether the snapshot can drive visibility decisions.
func (s *Snapshot) IsMVCC() bool {
	return s != nil && s.mvcc
}

// XidInProgress reports whether x was still running when the snapshot was
// taken.
func (s *Snapshot) XidInProgress(x XID) bool {
	if x >= s.Xmax {
		return true
	}
	if x < s.Xmin {
		return false
	}
	_, ok := s.xip[x]
	return ok
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("snapshot[%d,%d) xid=%d cid=%d nxip=%d",
		s.Xmin, s.Xmax, s.XID, s.CID, len(s.xip))
}
