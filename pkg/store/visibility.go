package store

import "gstore/pkg/txn"

// satisfiesVisibility decides whether snap sees the chunk, following the
// heap tuple MVCC rules restricted to whole chunks. It has two side effects,
// both requiring the directory lock: committed/aborted outcomes learned from
// the clog are cached as hint bits, and an aborted xid is cleared to invalid.
// Both writes are idempotent, so concurrent readers racing through here
// converge on the same descriptor state.
func (s *Store) satisfiesVisibility(desc *Descriptor, snap *txn.Snapshot) bool {
	if !desc.xminCommitted {
		if !desc.xmin.IsValid() {
			return false
		}
		if desc.xmin == snap.XID {
			if desc.cid >= snap.CID {
				// inserted by a later command of our own transaction
				return false
			}
			if !desc.xmax.IsValid() {
				return true
			}
			if desc.xmax != snap.XID {
				// deleting subtransaction aborted
				desc.xmax = txn.InvalidXID
				return true
			}
			if desc.cid >= snap.CID {
				return true
			}
			return false
		}
		if snap.XidInProgress(desc.xmin) {
			return false
		}
		if s.txnMgr.DidCommit(desc.xmin) {
			desc.xminCommitted = true
		} else {
			desc.xmin = txn.InvalidXID
			return false
		}
	} else if desc.xmin != txn.FrozenXID && snap.XidInProgress(desc.xmin) {
		// committed but after the snapshot was taken
		return false
	}

	if !desc.xmax.IsValid() {
		return true
	}
	if !desc.xmaxCommitted {
		if desc.xmax == snap.XID {
			// deleted by our own transaction, visible until the command
			// that did it
			return desc.cid >= snap.CID
		}
		if snap.XidInProgress(desc.xmax) {
			return true
		}
		if !s.txnMgr.DidCommit(desc.xmax) {
			desc.xmax = txn.InvalidXID
			return true
		}
		desc.xmaxCommitted = true
	} else if snap.XidInProgress(desc.xmax) {
		return true
	}
	return false
}
