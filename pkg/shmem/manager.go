package shmem

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handle identifies a shared segment across the process group.
type Handle uint32

// InvalidHandle is never handed out by a Manager.
const InvalidHandle Handle = 0

var (
	ErrOutOfSegments = errors.New("gstore: shared segment allocation failed")
	ErrBadHandle     = errors.New("gstore: stale or unknown segment handle")
)

type segment struct {
	handle   Handle
	data     []byte
	attaches int
	pinned   bool
}

// Manager owns the shared segments backing columnar images. Segments are
// reference counted by attaches; a pinned segment additionally survives
// with zero attaches until it is explicitly unpinned.
type Manager struct {
	sync.Mutex
	segments map[Handle]*segment
	next     Handle
	limit    int64
	used     int64
}

// NewManager creates a Manager with a total byte budget; limit 0 means
// unbounded.
func NewManager(limit int64) *Manager {
	return &Manager{
		segments: make(map[Handle]*segment),
		limit:    limit,
	}
}

// Create allocates a segment of exactly size bytes and attaches it.
func (mgr *Manager) Create(size int) (*Segment, error) {
	mgr.Lock()
	defer mgr.Unlock()
	if mgr.limit > 0 && mgr.used+int64(size) > mgr.limit {
		return nil, ErrOutOfSegments
	}
	data, err := mmap(size)
	if err != nil {
		logrus.Warnf("shmem: mmap of %d bytes failed: %v", size, err)
		return nil, ErrOutOfSegments
	}
	mgr.next++
	if mgr.next == InvalidHandle {
		mgr.next++
	}
	seg := &segment{
		handle:   mgr.next,
		data:     data,
		attaches: 1,
	}
	mgr.segments[seg.handle] = seg
	mgr.used += int64(size)
	return &Segment{mgr: mgr, seg: seg}, nil
}

// Attach maps an existing segment.
func (mgr *Manager) Attach(handle Handle) (*Segment, error) {
	mgr.Lock()
	defer mgr.Unlock()
	seg, ok := mgr.segments[handle]
	if !ok {
		return nil, ErrBadHandle
	}
	seg.attaches++
	return &Segment{mgr: mgr, seg: seg}, nil
}

// Pin keeps the segment alive after its last detach, until Unpin.
func (mgr *Manager) Pin(handle Handle) error {
	mgr.Lock()
	defer mgr.Unlock()
	seg, ok := mgr.segments[handle]
	if !ok {
		return ErrBadHandle
	}
	seg.pinned = true
	return nil
}

// Unpin drops the lifetime pin; the segment is destroyed once the last
// attach goes away.
func (mgr *Manager) Unpin(handle Handle) error {
	mgr.Lock()
	defer mgr.Unlock()
	seg, ok := mgr.segments[handle]
	if !ok {
		return ErrBadHandle
	}
	seg.pinned = false
	mgr.reapLocked(seg)
	return nil
}

func (mgr *Manager) reapLocked(seg *segment) {
	if seg.pinned || seg.attaches > 0 {
		return
	}
	delete(mgr.segments, seg.handle)
	mgr.used -= int64(len(seg.data))
	if err := munmap(seg.data); err != nil {
		logrus.Warnf("shmem: munmap of segment %d failed: %v", seg.handle, err)
	}
	seg.data = nil
}

// Used reports currently mapped bytes.
func (mgr *Manager) Used() int64 {
	mgr.Lock()
	defer mgr.Unlock()
	return mgr.used
}

// Count reports live segments.
func (mgr *Manager) Count() int {
	mgr.Lock()
	defer mgr.Unlock()
	return len(mgr.segments)
}

// Segment is one attach of a shared segment.
type Segment struct {
	mgr *Manager
	seg *segment
}

func (s *Segment) Handle() Handle {
	return s.seg.handle
}

func (s *Segment) Bytes() []byte {
	return s.seg.data
}

func (s *Segment) Size() int {
	return len(s.seg.data)
}

// Detach releases this attach. The Segment must not be used afterwards.
func (s *Segment) Detach() {
	s.mgr.Lock()
	defer s.mgr.Unlock()
	s.seg.attaches--
	if s.seg.attaches < 0 {
		panic("unexpected segment detach")
	}
	s.mgr.reapLocked(s.seg)
}
