package store

import (
	"fmt"

	"gstore/pkg/catalog"
	"gstore/pkg/common"
	"gstore/pkg/gpu"
	"gstore/pkg/shmem"
	"gstore/pkg/txn"
)

// Descriptor is one chunk slot of the shared directory. A slot is either on
// the free list or on exactly one hash bucket; all fields except link are
// meaningful only while the slot is published on a bucket. Mutation requires
// the directory lock, with two exceptions written down at the field.
type Descriptor struct {
	link common.Links
	slot int32

	hash       uint32
	databaseID catalog.DBID
	tableID    catalog.TableID

	// xmin/xmax/cid and the committed hint bits follow heap tuple rules:
	// xmin is the creating transaction, xmax the deleting one or invalid.
	// Hint bits are set lazily by visibility checks under the directory
	// lock; clearing an aborted xid the same way is idempotent.
	xmin          txn.XID
	xmax          txn.XID
	cid           txn.CID
	xminCommitted bool
	xmaxCommitted bool

	nitems uint32
	length uint64

	// deviceIndex is -1 for CPU-only chunks; otherwise ipcHandle addresses
	// the preserved device copy.
	deviceIndex int32
	ipcHandle   gpu.IpcMemHandle

	segment shmem.Handle
}

func (desc *Descriptor) NItems() uint32        { return desc.nitems }
func (desc *Descriptor) Length() uint64        { return desc.length }
func (desc *Descriptor) Segment() shmem.Handle { return desc.segment }

func (desc *Descriptor) String() string {
	return fmt.Sprintf("chunk[%d](db=%d,tbl=%d,xmin=%d,xmax=%d,nitems=%d)",
		desc.slot, desc.databaseID, desc.tableID, desc.xmin, desc.xmax, desc.nitems)
}
