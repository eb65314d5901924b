package store

import (
	"gstore/pkg/catalog"
	"gstore/pkg/config"
	"gstore/pkg/gpu"
	"gstore/pkg/shmem"
	"gstore/pkg/txn"

	"github.com/sirupsen/logrus"
)

// Updatable operation bits reported by IsUpdatable.
const (
	UpdatableInsert = 1 << 0
	UpdatableDelete = 1 << 1
)

// Store is one shared, chunked, MVCC-visible column store instance. All
// chunk state lives in the directory and in shared segments; the Store
// itself only wires the managers together.
type Store struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	txnMgr   *txn.Manager
	shmMgr   *shmem.Manager
	gpuMgr   *gpu.Manager
	dir      *directory
	mappings *mappingTable
}

// Open wires a store over the given managers and registers its transaction
// hook. The hook runs on every commit and abort for the life of the store.
func Open(cfg *config.Config, cat *catalog.Catalog, txnMgr *txn.Manager,
	shmMgr *shmem.Manager, gpuMgr *gpu.Manager) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		cfg:      cfg,
		catalog:  cat,
		txnMgr:   txnMgr,
		shmMgr:   shmMgr,
		gpuMgr:   gpuMgr,
		dir:      newDirectory(cfg.MaxChunks),
		mappings: newMappingTable(shmMgr, cfg.MaxChunks),
	}
	txnMgr.OnXact(s.onXact)
	logrus.Debugf("store: opened with %d chunk slots of %d bytes",
		cfg.MaxChunks, cfg.ChunkSize)
	return s, nil
}

func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

// IsUpdatable reports the supported modification bits of a table. Reference
// tables are read-only projections.
func (s *Store) IsUpdatable(tableID catalog.TableID) (int, error) {
	entry, err := s.catalog.GetTable(tableID)
	if err != nil {
		return 0, err
	}
	if entry.Options.IsReference() {
		return 0, nil
	}
	return UpdatableInsert | UpdatableDelete, nil
}

// SizeEstimate sums rows and image bytes over the chunks visible to snap.
// Reference tables report their base table's size.
func (s *Store) SizeEstimate(tableID catalog.TableID, snap *txn.Snapshot) (uint64, uint64, error) {
	if !snap.IsMVCC() {
		return 0, 0, ErrNotMVCCSnapshot
	}
	entry, err := s.catalog.GetTable(tableID)
	if err != nil {
		return 0, 0, err
	}
	base, err := s.catalog.Resolve(entry)
	if err != nil {
		return 0, 0, err
	}
	s.dir.lock.Lock()
	defer s.dir.lock.Unlock()
	var nrows, nbytes uint64
	for _, desc := range s.visibleChunksLocked(base.DatabaseID, base.ID, snap) {
		nrows += uint64(desc.nitems)
		nbytes += desc.length
	}
	return nrows, nbytes, nil
}

// releaseChunkLocked unlinks a descriptor from its bucket, tears down its
// backing resources and returns the slot to the free list. Directory lock
// required.
func (s *Store) releaseChunkLocked(desc *Descriptor) {
	s.dir.bucketOf(desc.hash).Remove(desc.slot, s.dir.node)
	if desc.deviceIndex >= 0 {
		if err := s.gpuMgr.FreePreserved(int(desc.deviceIndex), desc.ipcHandle); err != nil {
			logrus.Warnf("store: releasing device copy of %s: %v", desc.String(), err)
		}
	}
	s.mappings.drop(desc.slot)
	if err := s.shmMgr.Unpin(desc.segment); err != nil {
		logrus.Warnf("store: unpinning segment of %s: %v", desc.String(), err)
	}
	slot := desc.slot
	*desc = Descriptor{slot: slot}
	desc.link.Reset()
	s.dir.free.PushHead(slot, s.dir.node)
}
