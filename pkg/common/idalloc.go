package common

import "sync/atomic"

// IdAllocator hands out dense uint64 ids starting from a configurable
// floor. Safe for concurrent use.
type IdAllocator struct {
	id uint64
}

func NewIdAllocator(from uint64) *IdAllocator {
	if from == 0 {
		panic("id allocator floor must be positive")
	}
	return &IdAllocator{id: from - 1}
}

func (alloc *IdAllocator) Alloc() uint64 {
	return atomic.AddUint64(&alloc.id, 1)
}

func (alloc *IdAllocator) Peek() uint64 {
	return atomic.LoadUint64(&alloc.id) + 1
}

func (alloc *IdAllocator) SetStart(prev uint64) {
	atomic.StoreUint64(&alloc.id, prev)
}
