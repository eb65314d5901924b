package store

import (
	"sync"

	"gstore/pkg/columnar"
	"gstore/pkg/shmem"
)

// mappingTable caches one segment attach per descriptor slot. A recycled
// slot hands out a new segment handle, in which case the stale attach is
// dropped and the slot re-attached on demand.
type mappingTable struct {
	mu   sync.Mutex
	mgr  *shmem.Manager
	segs []*shmem.Segment
}

func newMappingTable(mgr *shmem.Manager, maxChunks int) *mappingTable {
	return &mappingTable{
		mgr:  mgr,
		segs: make([]*shmem.Segment, maxChunks),
	}
}

// install records the writer's own attach for the slot it just published.
func (mt *mappingTable) install(slot int32, seg *shmem.Segment) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if old := mt.segs[slot]; old != nil {
		old.Detach()
	}
	mt.segs[slot] = seg
}

// image maps the chunk's columnar image, attaching or re-attaching as
// needed. The descriptor must be pinned by publication, so the attach cannot
// race its destruction.
func (mt *mappingTable) image(desc *Descriptor) (*columnar.Image, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	seg := mt.segs[desc.slot]
	if seg != nil && seg.Handle() != desc.segment {
		seg.Detach()
		seg = nil
		mt.segs[desc.slot] = nil
	}
	if seg == nil {
		attached, err := mt.mgr.Attach(desc.segment)
		if err != nil {
			return nil, err
		}
		seg = attached
		mt.segs[desc.slot] = seg
	}
	return columnar.ImageOf(seg.Bytes()[:desc.length]), nil
}

// drop releases the cached attach of a slot being recycled.
func (mt *mappingTable) drop(slot int32) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if seg := mt.segs[slot]; seg != nil {
		seg.Detach()
		mt.segs[slot] = nil
	}
}
