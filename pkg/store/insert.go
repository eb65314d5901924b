package store

import (
	"errors"
	"fmt"

	"gstore/pkg/catalog"
	"gstore/pkg/columnar"
	"gstore/pkg/txn"
	"gstore/pkg/types"
)

// LoadCursor is one bulk load into an empty table. It holds the table's
// write lock from BeginInsert until Close; rows are buffered per column and
// written out chunk by chunk.
type LoadCursor struct {
	store   *Store
	txn     *txn.Txn
	entry   *catalog.TableEntry
	builder *columnar.Builder
	dindex  int
	failed  bool
	closed  bool
}

// BeginInsert opens a bulk load. The table must be a primary table and must
// hold no rows visible to the loading transaction; a prior whole-table
// delete by the same transaction satisfies that.
func (s *Store) BeginInsert(t *txn.Txn, tableID catalog.TableID) (*LoadCursor, error) {
	entry, err := s.catalog.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	if entry.Options.IsReference() {
		return nil, fmt.Errorf("%w: cannot insert into reference table %q",
			catalog.ErrBadOption, entry.Name())
	}
	builder, err := columnar.NewBuilder(entry.Schema, s.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	entry.WriteLock.Lock()
	// statement-level snapshot: rows deleted by an earlier command of the
	// same transaction no longer count as content
	snap := t.NewSnapshot()
	s.dir.lock.Lock()
	visible := s.visibleChunksLocked(entry.DatabaseID, entry.ID, snap)
	s.dir.lock.Unlock()
	if len(visible) > 0 {
		entry.WriteLock.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrNotEmpty, entry.Name())
	}
	return &LoadCursor{
		store:   s,
		txn:     t,
		entry:   entry,
		builder: builder,
		dindex:  entry.Options.Pinning,
	}, nil
}

// Append buffers one row, writing out a full chunk first when needed. After
// an error the cursor only accepts Close; the caller is expected to roll the
// transaction back, which reclaims every chunk written so far.
func (cur *LoadCursor) Append(row types.Row) error {
	if cur.closed || cur.failed {
		return txn.ErrTxnNotActive
	}
	if cur.builder.NeedsFlush(row) {
		if err := cur.store.writeChunk(cur.txn, cur.entry, cur.builder, cur.dindex); err != nil {
			cur.failed = true
			return err
		}
	}
	if err := cur.builder.Append(row); err != nil {
		if !isRowError(err) {
			cur.failed = true
		}
		return err
	}
	return nil
}

// isRowError reports errors attributable to the one rejected row, after
// which the load may continue.
func isRowError(err error) bool {
	return errors.Is(err, columnar.ErrNotNull) ||
		errors.Is(err, columnar.ErrTypeMismatch) ||
		errors.Is(err, columnar.ErrBadRowWidth)
}

// Close writes out the trailing partial chunk and releases the table write
// lock. A failed or rolled-back load skips the final writeout.
func (cur *LoadCursor) Close() error {
	if cur.closed {
		return nil
	}
	cur.closed = true
	defer cur.entry.WriteLock.Unlock()
	if cur.failed || cur.txn.State() != txn.StateActive {
		return nil
	}
	if cur.builder.IsEmpty() {
		return nil
	}
	return cur.store.writeChunk(cur.txn, cur.entry, cur.builder, cur.dindex)
}
