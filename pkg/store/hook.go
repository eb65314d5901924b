package store

import (
	"sync/atomic"

	"gstore/pkg/common"
	"gstore/pkg/txn"
)

// onXact is the commit/abort hook. It settles the finished transaction's
// stamps on every warm chunk, clears aborted work, promotes old committed
// chunks to frozen and reclaims chunks no live snapshot can see. The sweep
// is skipped entirely while no chunk is warm.
func (s *Store) onXact(event txn.XactEvent, t *txn.Txn) {
	if !s.dir.maybeWarm() {
		return
	}
	isCommit := event == txn.EventCommit
	// t is already out of the in-progress set, so the horizon reflects the
	// remaining transactions only.
	oldest := s.txnMgr.OldestXmin()

	s.dir.lock.Lock()
	defer s.dir.lock.Unlock()
	stillWarm := false
	for i := range s.dir.buckets {
		bucket := &s.dir.buckets[i]
		for idx := bucket.Head; idx != common.NilIdx; {
			desc := &s.dir.chunks[idx]
			next := desc.link.Next
			if s.settleChunkLocked(desc, t.ID, isCommit, oldest) {
				stillWarm = true
			}
			idx = next
		}
	}
	if !stillWarm {
		atomic.StoreUint32(&s.dir.hasWarmChunks, 0)
	}
}

// settleChunkLocked applies the transaction outcome to one chunk and
// reports whether the chunk still needs attention from a later hook run.
// May release the descriptor.
func (s *Store) settleChunkLocked(desc *Descriptor, self txn.XID, isCommit bool, oldest txn.XID) bool {
	if desc.xmax == self {
		if isCommit {
			desc.xmaxCommitted = true
		} else {
			desc.xmax = txn.InvalidXID
		}
	}
	if desc.xmin == self {
		if isCommit {
			desc.xminCommitted = true
		} else {
			// aborted insert, nobody can ever see this chunk
			s.releaseChunkLocked(desc)
			return false
		}
	}

	if desc.xmax.IsValid() {
		if !desc.xmaxCommitted {
			// deleter still in flight
			return true
		}
		if desc.xmax >= oldest {
			// some snapshot may still see the pre-delete state
			return true
		}
		s.releaseChunkLocked(desc)
		return false
	}

	if desc.xmin.IsNormal() {
		if !desc.xminCommitted {
			return true
		}
		if desc.xmin >= oldest {
			return true
		}
		desc.xmin = txn.FrozenXID
		return false
	}
	if !desc.xmin.IsValid() {
		// insert known aborted, cleared by a visibility check earlier
		s.releaseChunkLocked(desc)
	}
	return false
}
