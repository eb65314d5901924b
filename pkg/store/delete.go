package store

import (
	"fmt"

	"gstore/pkg/catalog"
	"gstore/pkg/txn"

	"github.com/sirupsen/logrus"
)

// DirectDelete stamps every chunk visible to the transaction as deleted by
// it. No rows move; the chunks stay published and readers with older
// snapshots keep seeing them until the transaction hook reclaims the slots.
// Returns the number of rows marked.
func (s *Store) DirectDelete(t *txn.Txn, tableID catalog.TableID) (uint64, error) {
	entry, err := s.catalog.GetTable(tableID)
	if err != nil {
		return 0, err
	}
	if entry.Options.IsReference() {
		return 0, fmt.Errorf("%w: cannot delete from reference table %q",
			ErrUnsupported, entry.Name())
	}
	entry.WriteLock.Lock()
	defer entry.WriteLock.Unlock()

	snap := t.NewSnapshot()
	var nprocessed uint64
	s.dir.lock.Lock()
	for _, desc := range s.visibleChunksLocked(entry.DatabaseID, entry.ID, snap) {
		desc.xmax = t.ID
		desc.xmaxCommitted = false
		desc.cid = t.CurrentCID()
		nprocessed += uint64(desc.nitems)
	}
	s.dir.bumpWarm()
	s.dir.lock.Unlock()

	logrus.Debugf("store: %s deleted %d rows from %q", t.String(), nprocessed, entry.Name())
	return nprocessed, nil
}
