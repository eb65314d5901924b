package store

import (
	"gstore/pkg/catalog"
	"gstore/pkg/columnar"
	"gstore/pkg/common"
	"gstore/pkg/gpu"
	"gstore/pkg/txn"

	"github.com/sirupsen/logrus"
)

// writeChunk finalizes the builder into a fresh shared segment, optionally
// mirrors it to the pinned device, and publishes a descriptor stamped with
// the writing transaction. On any failure the partial resources are torn
// down and the builder is left untouched for the caller to abort with.
func (s *Store) writeChunk(t *txn.Txn, entry *catalog.TableEntry, b *columnar.Builder, dindex int) error {
	length := b.ImageLength()
	seg, err := s.shmMgr.Create(int(length))
	if err != nil {
		return err
	}
	if err := b.WriteTo(seg.Bytes()); err != nil {
		seg.Detach()
		return err
	}

	ipcHandle := gpu.InvalidIpcHandle
	if dindex >= 0 {
		ipcHandle, err = s.stageOnDevice(dindex, seg.Bytes())
		if err != nil {
			seg.Detach()
			return err
		}
	}

	if err := s.shmMgr.Pin(seg.Handle()); err != nil {
		s.unstage(dindex, ipcHandle)
		seg.Detach()
		return err
	}

	s.dir.lock.Lock()
	slot := s.dir.popFreeLocked()
	if slot == common.NilIdx {
		s.dir.lock.Unlock()
		s.unstage(dindex, ipcHandle)
		s.shmMgr.Unpin(seg.Handle())
		seg.Detach()
		return ErrTooManyChunks
	}
	desc := &s.dir.chunks[slot]
	desc.hash = tableHash(entry.DatabaseID, entry.ID)
	desc.databaseID = entry.DatabaseID
	desc.tableID = entry.ID
	desc.xmin = t.ID
	desc.xmax = txn.InvalidXID
	desc.cid = t.CurrentCID()
	desc.xminCommitted = false
	desc.xmaxCommitted = false
	desc.nitems = uint32(b.NItems())
	desc.length = length
	desc.deviceIndex = int32(dindex)
	desc.ipcHandle = ipcHandle
	desc.segment = seg.Handle()
	s.mappings.install(slot, seg)
	s.dir.bucketOf(desc.hash).PushTail(slot, s.dir.node)
	s.dir.bumpWarm()
	s.dir.lock.Unlock()

	logrus.Debugf("store: %s wrote %s (%d bytes)", t.String(), desc.String(), length)
	b.Reset()
	return nil
}

// stageOnDevice pushes the finalized image to a preserved device allocation
// and returns its ipc handle.
func (s *Store) stageOnDevice(dindex int, image []byte) (gpu.IpcMemHandle, error) {
	handle, err := s.gpuMgr.AllocPreserved(dindex, int64(len(image)))
	if err != nil {
		return gpu.InvalidIpcHandle, err
	}
	ctx, err := s.gpuMgr.NewContext(dindex)
	if err != nil {
		s.unstage(dindex, handle)
		return gpu.InvalidIpcHandle, err
	}
	defer ctx.Close()
	buf, err := ctx.OpenIpcHandle(handle)
	if err != nil {
		s.unstage(dindex, handle)
		return gpu.InvalidIpcHandle, err
	}
	if err := ctx.MemcpyHtoD(buf, image); err != nil {
		s.unstage(dindex, handle)
		return gpu.InvalidIpcHandle, err
	}
	return handle, nil
}

func (s *Store) unstage(dindex int, handle gpu.IpcMemHandle) {
	if !handle.IsValid() {
		return
	}
	if err := s.gpuMgr.FreePreserved(dindex, handle); err != nil {
		logrus.Warnf("store: dropping staged device copy %s: %v", handle.String(), err)
	}
}
