package txn

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotIsolation(t *testing.T) {
	mgr := NewManager()

	t1 := mgr.StartTxn()
	snap1 := t1.GetSnapshot()
	assert.True(t, snap1.IsMVCC())
	assert.Equal(t, t1.ID, snap1.XID)

	t2 := mgr.StartTxn()
	snap2 := t2.GetSnapshot()
	// t1 was running when snap2 was taken
	assert.True(t, snap2.XidInProgress(t1.ID))

	assert.Nil(t, t1.Commit())
	assert.True(t, mgr.DidCommit(t1.ID))
	// the old snapshot still treats t1 as in progress
	assert.True(t, snap2.XidInProgress(t1.ID))

	snap3 := mgr.SnapshotFor(nil)
	assert.False(t, snap3.XidInProgress(t1.ID))
	assert.True(t, snap3.XidInProgress(t2.ID))
	assert.Nil(t, t2.Commit())
}

func TestFrozenAndInvalid(t *testing.T) {
	assert.False(t, InvalidXID.IsValid())
	assert.False(t, InvalidXID.IsNormal())
	assert.True(t, FrozenXID.IsValid())
	assert.False(t, FrozenXID.IsNormal())
	assert.True(t, FirstNormalXID.IsNormal())

	mgr := NewManager()
	assert.True(t, mgr.DidCommit(FrozenXID))
	snap := mgr.SnapshotFor(nil)
	assert.False(t, snap.XidInProgress(FrozenXID))
}

func TestOldestXmin(t *testing.T) {
	mgr := NewManager()
	t1 := mgr.StartTxn()
	t1.GetSnapshot()
	t2 := mgr.StartTxn()
	t2.GetSnapshot()

	assert.Equal(t, t1.ID, mgr.OldestXmin())
	assert.Nil(t, t1.Commit())
	// t2's snapshot still holds t1 in its horizon
	assert.Equal(t, t1.ID, mgr.OldestXmin())
	assert.Nil(t, t2.Commit())
	assert.True(t, mgr.OldestXmin() > t2.ID)
}

func TestDetachedSnapshotHorizon(t *testing.T) {
	mgr := NewManager()
	snap := mgr.SnapshotFor(nil)
	held := mgr.OldestXmin()
	assert.Equal(t, snap.Xmin, held)

	// completed transactions do not advance the horizon past the snapshot
	tx := mgr.StartTxn()
	assert.Nil(t, tx.Commit())
	assert.Equal(t, held, mgr.OldestXmin())

	snap.Release()
	assert.True(t, mgr.OldestXmin() > held)
	// idempotent
	snap.Release()

	// transaction-owned snapshots are released by completion, not Release
	tx2 := mgr.StartTxn()
	owned := tx2.GetSnapshot()
	owned.Release()
	assert.Equal(t, tx2.ID, mgr.OldestXmin())
	assert.Nil(t, tx2.Commit())
	assert.True(t, mgr.OldestXmin() > tx2.ID)
}

func TestCallbacksAndDoubleComplete(t *testing.T) {
	mgr := NewManager()
	var commits, aborts int32
	mgr.OnXact(func(event XactEvent, txn *Txn) {
		switch event {
		case EventCommit:
			atomic.AddInt32(&commits, 1)
		case EventAbort:
			atomic.AddInt32(&aborts, 1)
		}
		// the callback sees the txn outside the in-progress set
		assert.False(t, mgr.IsActive(txn.ID))
	})

	t1 := mgr.StartTxn()
	assert.Nil(t, t1.Commit())
	assert.ErrorIs(t, t1.Commit(), ErrTxnAlreadyCommitted)
	t2 := mgr.StartTxn()
	assert.Nil(t, t2.Rollback())
	assert.ErrorIs(t, t2.Rollback(), ErrTxnNotActive)
	assert.Equal(t, int32(1), atomic.LoadInt32(&commits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&aborts))
	assert.Equal(t, StateCommitted, t1.State())
	assert.Equal(t, StateAborted, t2.State())
}

func TestConcurrentTxns(t *testing.T) {
	mgr := NewManager()
	pool, _ := ants.NewPool(16)
	defer pool.Release()

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 400; i++ {
		wg.Add(1)
		_ = pool.Submit(func() {
			defer wg.Done()
			txn := mgr.StartTxn()
			_, loaded := seen.LoadOrStore(txn.ID, struct{}{})
			assert.False(t, loaded)
			txn.GetSnapshot()
			if txn.ID%2 == 0 {
				assert.Nil(t, txn.Commit())
			} else {
				assert.Nil(t, txn.Rollback())
			}
		})
	}
	wg.Wait()
	assert.True(t, mgr.OldestXmin() >= FirstNormalXID)
	snap := mgr.SnapshotFor(nil)
	assert.Equal(t, snap.Xmin, snap.Xmax)
}
