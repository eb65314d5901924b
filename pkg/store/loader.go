package store

import (
	"fmt"

	"gstore/pkg/catalog"
	"gstore/pkg/columnar"
	"gstore/pkg/common"
	"gstore/pkg/gpu"
	"gstore/pkg/txn"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// LoadForGPU assembles the table's visible chunks into one managed device
// buffer laid out as a TableImage, with every chunk's columns renumbered to
// the requesting table's schema order. An empty table yields a nil buffer.
// The buffer lives until the context is closed.
func (s *Store) LoadForGPU(ctx *gpu.Context, tableID catalog.TableID, snap *txn.Snapshot) (*gpu.Buffer, error) {
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

	s.dir.lock.Lock()
	visible := s.visibleChunksLocked(base.DatabaseID, base.ID, snap)
	s.dir.lock.Unlock()
	if len(visible) == 0 {
		return nil, nil
	}

	// map every chunk and resolve the requested columns per image
	images := make([]*columnar.Image, len(visible))
	colmaps := make([][]int, len(visible))
	var totalNItems uint64
	for i, desc := range visible {
		img, err := s.mappings.image(desc)
		if err != nil {
			return nil, err
		}
		colmap := make([]int, entry.Schema.NumCols())
		for j, def := range entry.Schema.ColDefs {
			attno := def.Idx
			if entry != base {
				attno = base.Schema.ColIdxByName(def.Name)
			}
			col, ok := img.ColByAttNum(attno)
			if !ok {
				return nil, fmt.Errorf("%w: column %q missing from %s",
					catalog.ErrNotFound, def.Name, desc.String())
			}
			colmap[j] = col
		}
		images[i] = img
		colmaps[i] = colmap
		totalNItems += uint64(desc.nitems)
	}

	offsets := make([]uint64, len(images))
	length := uint64(columnar.TableHeaderLength(len(images)))
	for i, img := range images {
		offsets[i] = length
		length += uint64(common.MaxAligned(int(img.ProjectedLength(colmaps[i]))))
	}

	buf, err := ctx.AllocManaged(int64(length))
	if err != nil {
		return nil, err
	}
	ti := columnar.TableImageOf(buf.Bytes())
	ti.InitTableHeader(totalNItems, offsets)

	// chunk re-emissions write disjoint regions
	var eg errgroup.Group
	for i := range images {
		i := i
		eg.Go(func() error {
			end := length
			if i+1 < len(offsets) {
				end = offsets[i+1]
			}
			return images[i].ProjectInto(buf.Bytes()[offsets[i]:end], colmaps[i])
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	logrus.Debugf("store: assembled %d chunks (%d rows, %d bytes) of %q for device %d",
		len(images), totalNItems, length, entry.Name(), ctx.DeviceIndex())
	return buf, nil
}
