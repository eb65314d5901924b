package store

import (
	"fmt"

	"gstore/pkg/catalog"
	"gstore/pkg/columnar"
	"gstore/pkg/txn"
	"gstore/pkg/types"
)

// ScanCursor reads a table in chunk publication order under one MVCC
// snapshot. The visible chunk set is pinned down at the first Next; row
// reads afterwards run without the directory lock. Scanning a reference
// table projects its columns out of the base table's images.
type ScanCursor struct {
	store *Store
	snap  *txn.Snapshot
	entry *catalog.TableEntry
	base  *catalog.TableEntry

	// attnos maps each scanned column to its position in the base schema.
	attnos []int

	started  bool
	chunks   []*Descriptor
	chunkIdx int
	rowIdx   int
	img      *columnar.Image
	colmap   []int
}

// BeginScan opens a cursor over the rows snap sees.
func (s *Store) BeginScan(tableID catalog.TableID, snap *txn.Snapshot) (*ScanCursor, error) {
	if !snap.IsMVCC() {
		return nil, ErrNotMVCCSnapshot
	}
	entry, err := s.catalog.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	base, err := s.catalog.Resolve(entry)
	if err != nil {
		return nil, err
	}
	attnos := make([]int, entry.Schema.NumCols())
	for i, def := range entry.Schema.ColDefs {
		if entry == base {
			attnos[i] = def.Idx
			continue
		}
		idx := base.Schema.ColIdxByName(def.Name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: column %q no longer exists in %q",
				catalog.ErrNotFound, def.Name, base.Name())
		}
		attnos[i] = idx
	}
	return &ScanCursor{
		store:  s,
		snap:   snap,
		entry:  entry,
		base:   base,
		attnos: attnos,
	}, nil
}

// Next returns the next visible row, or ok=false at the end of the table.
func (c *ScanCursor) Next() (types.Row, bool, error) {
	if !c.started {
		c.store.dir.lock.Lock()
		c.chunks = c.store.visibleChunksLocked(c.base.DatabaseID, c.base.ID, c.snap)
		c.store.dir.lock.Unlock()
		c.started = true
	}
	for {
		if c.chunkIdx >= len(c.chunks) {
			return nil, false, nil
		}
		if c.img == nil {
			if err := c.openChunk(c.chunks[c.chunkIdx]); err != nil {
				return nil, false, err
			}
		}
		if c.rowIdx < c.img.NItems() {
			break
		}
		c.chunkIdx++
		c.rowIdx = 0
		c.img = nil
	}
	row := make(types.Row, len(c.attnos))
	for i, def := range c.entry.Schema.ColDefs {
		row[i] = c.img.DatumAt(c.colmap[i], c.rowIdx, def.Type)
	}
	c.rowIdx++
	return row, true, nil
}

func (c *ScanCursor) openChunk(desc *Descriptor) error {
	img, err := c.store.mappings.image(desc)
	if err != nil {
		return err
	}
	colmap := make([]int, len(c.attnos))
	for i, attno := range c.attnos {
		col, ok := img.ColByAttNum(attno)
		if !ok {
			return fmt.Errorf("%w: column %d missing from %s",
				catalog.ErrNotFound, attno, desc.String())
		}
		colmap[i] = col
	}
	c.img = img
	c.colmap = colmap
	return nil
}

// Rescan restarts the cursor. The visible chunk set is re-collected, so a
// command executed in between by the owning transaction may change it.
func (c *ScanCursor) Rescan() {
	c.started = false
	c.chunks = nil
	c.chunkIdx = 0
	c.rowIdx = 0
	c.img = nil
	c.colmap = nil
}
