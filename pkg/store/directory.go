package store

import (
	"encoding/binary"
	"hash/crc32"
	"sync"
	"sync/atomic"

	"gstore/pkg/catalog"
	"gstore/pkg/common"
	"gstore/pkg/txn"
)

// numBuckets spreads published chunks by table hash.
const numBuckets = 97

// tableHash folds (database, table) into the bucket key stored on each
// descriptor.
func tableHash(db catalog.DBID, tbl catalog.TableID) uint32 {
	var key [16]byte
	binary.LittleEndian.PutUint64(key[0:], uint64(db))
	binary.LittleEndian.PutUint64(key[8:], uint64(tbl))
	return crc32.ChecksumIEEE(key[:])
}

// directory is the shared chunk directory: a fixed descriptor array threaded
// onto one free list and numBuckets hash buckets. One mutex covers all list
// surgery and descriptor mutation; hasWarmChunks is read without it so the
// transaction hook can skip the sweep when nothing needs attention.
type directory struct {
	lock          sync.Mutex
	hasWarmChunks uint32

	free    common.IndexList
	buckets [numBuckets]common.IndexList
	chunks  []Descriptor
}

func newDirectory(maxChunks int) *directory {
	dir := &directory{
		free:   common.NewIndexList(),
		chunks: make([]Descriptor, maxChunks),
	}
	for i := range dir.buckets {
		dir.buckets[i] = common.NewIndexList()
	}
	for i := maxChunks - 1; i >= 0; i-- {
		dir.chunks[i].slot = int32(i)
		dir.chunks[i].link.Reset()
		dir.free.PushHead(int32(i), dir.node)
	}
	return dir
}

func (dir *directory) node(idx int32) *common.Links {
	return &dir.chunks[idx].link
}

func (dir *directory) bucketOf(hash uint32) *common.IndexList {
	return &dir.buckets[hash%numBuckets]
}

func (dir *directory) bumpWarm() {
	atomic.AddUint32(&dir.hasWarmChunks, 1)
}

func (dir *directory) maybeWarm() bool {
	return atomic.LoadUint32(&dir.hasWarmChunks) != 0
}

// popFreeLocked takes a slot off the free list, NilIdx when exhausted.
func (dir *directory) popFreeLocked() int32 {
	return dir.free.PopHead(dir.node)
}

func (dir *directory) freeCountLocked() int {
	count := 0
	for idx := dir.free.Head; idx != common.NilIdx; idx = dir.chunks[idx].link.Next {
		count++
	}
	return count
}

// visibleChunksLocked collects the chunks of one table visible to snap, in
// bucket publication order. Visibility checks may update hint bits on the
// way, which is why the directory lock is required.
func (s *Store) visibleChunksLocked(db catalog.DBID, tbl catalog.TableID, snap *txn.Snapshot) []*Descriptor {
	hash := tableHash(db, tbl)
	bucket := s.dir.bucketOf(hash)
	var visible []*Descriptor
	for idx := bucket.Head; idx != common.NilIdx; idx = s.dir.chunks[idx].link.Next {
		desc := &s.dir.chunks[idx]
		if desc.hash != hash || desc.databaseID != db || desc.tableID != tbl {
			continue
		}
		if s.satisfiesVisibility(desc, snap) {
			visible = append(visible, desc)
		}
	}
	return visible
}
