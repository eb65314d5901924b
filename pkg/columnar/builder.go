package columnar

import (
	"encoding/binary"
	"fmt"

	"gstore/pkg/common"
	"gstore/pkg/types"

	"github.com/RoaringBitmap/roaring"
)

type vlEntry struct {
	data []byte
	// offset into the column block, assigned when the image is written
	offset uint32
}

type colState struct {
	def    *types.ColDef
	unitsz int

	// fixed-width state
	values []byte
	nulls  *roaring.Bitmap

	// variable-width state
	dict    map[string]*vlEntry
	order   []*vlEntry
	refs    []*vlEntry
	extraSz int
}

// Builder accumulates a typed row stream into per-column buffers and
// finalizes them into one packed columnar image. Values of variable-width
// columns are deduplicated through a per-column dictionary whose entries
// get their image offsets assigned at write time.
type Builder struct {
	schema *types.Schema
	budget int64
	nrooms int
	nitems int
	cols   []colState
}

// NewBuilder sizes per-column buffers for one chunk of chunkSize bytes.
// nrooms is the row capacity assuming no nullmaps and no dictionary
// payloads; the usage estimate tightens it per row.
func NewBuilder(schema *types.Schema, chunkSize int64) (*Builder, error) {
	ncols := schema.NumCols()
	if ncols == 0 {
		return nil, fmt.Errorf("%w: empty schema", ErrBadRowWidth)
	}
	budget := chunkSize - int64(HeaderLength(ncols))
	unitsum := 0
	cols := make([]colState, ncols)
	for i, def := range schema.ColDefs {
		cols[i].def = def
		if def.Type.IsVarlen() {
			unitsum += 4
		} else {
			cols[i].unitsz = common.TypeAlign(int(def.Type.Align), int(def.Type.Size))
			unitsum += cols[i].unitsz
		}
	}
	nrooms := (budget - int64(common.MaxAlign*ncols)) / int64(unitsum)
	if nrooms < 1 {
		return nil, fmt.Errorf("gstore: chunk size %d cannot hold a single row of %s", chunkSize, schema.Name)
	}
	for i := range cols {
		if cols[i].def.Type.IsVarlen() {
			cols[i].dict = make(map[string]*vlEntry)
			cols[i].refs = make([]*vlEntry, 0, nrooms)
		} else {
			cols[i].values = make([]byte, int(nrooms)*cols[i].unitsz)
			cols[i].nulls = roaring.New()
		}
	}
	return &Builder{
		schema: schema,
		budget: budget,
		nrooms: int(nrooms),
		cols:   cols,
	}, nil
}

func (b *Builder) Schema() *types.Schema { return b.schema }
func (b *Builder) NItems() int           { return b.nitems }
func (b *Builder) NRooms() int           { return b.nrooms }
func (b *Builder) IsEmpty() bool         { return b.nitems == 0 }

// projectedUsage is the image body size if row were appended now.
func (b *Builder) projectedUsage(row types.Row) int64 {
	n := b.nitems + 1
	usage := int64(0)
	for i := range b.cols {
		col := &b.cols[i]
		datum := row[i]
		if col.def.Type.IsVarlen() {
			usage += int64(common.MaxAligned(4*n)) + int64(col.extraSz)
			if datum != nil {
				if payload, err := VarlenPayload(col.def.Type, datum); err == nil {
					if _, ok := col.dict[string(payload)]; !ok {
						usage += int64(common.MaxAligned(4 + len(payload)))
					}
				}
			}
		} else {
			usage += int64(common.MaxAligned(col.unitsz * n))
			if !col.nulls.IsEmpty() || datum == nil {
				usage += int64(common.MaxAligned(common.BitmapLen(n)))
			}
		}
	}
	return usage
}

// NeedsFlush reports whether the current buffers must be written out
// before row can be appended.
func (b *Builder) NeedsFlush(row types.Row) bool {
	if len(row) != len(b.cols) {
		return false
	}
	if b.nitems >= b.nrooms {
		return true
	}
	return b.projectedUsage(row) > b.budget
}

// Append adds one row. NOT NULL enforcement happens here.
func (b *Builder) Append(row types.Row) error {
	if len(row) != len(b.cols) {
		return fmt.Errorf("%w: got %d values, want %d", ErrBadRowWidth, len(row), len(b.cols))
	}
	if b.nitems >= b.nrooms {
		return ErrRowTooLarge
	}
	if b.nitems == 0 && b.projectedUsage(row) > b.budget {
		return ErrRowTooLarge
	}
	// validate the whole row before mutating any column
	for i := range b.cols {
		if row[i] == nil {
			if b.cols[i].def.NotNull {
				return fmt.Errorf("%w: column %q", ErrNotNull, b.cols[i].def.Name)
			}
			continue
		}
		if b.cols[i].def.Type.IsVarlen() {
			if _, err := VarlenPayload(b.cols[i].def.Type, row[i]); err != nil {
				return err
			}
		} else {
			var scratch [8]byte
			if err := EncodeFixed(b.cols[i].def.Type, row[i], scratch[:]); err != nil {
				return err
			}
		}
	}
	index := b.nitems
	b.nitems++
	for i := range b.cols {
		col := &b.cols[i]
		datum := row[i]
		if col.def.Type.IsVarlen() {
			if datum == nil {
				col.refs = append(col.refs, nil)
				continue
			}
			payload, _ := VarlenPayload(col.def.Type, datum)
			entry, ok := col.dict[string(payload)]
			if !ok {
				owned := make([]byte, len(payload))
				copy(owned, payload)
				entry = &vlEntry{data: owned}
				col.dict[string(owned)] = entry
				col.order = append(col.order, entry)
				col.extraSz += common.MaxAligned(4 + len(owned))
			}
			col.refs = append(col.refs, entry)
			continue
		}
		if datum == nil {
			col.nulls.Add(uint32(index))
			continue
		}
		_ = EncodeFixed(col.def.Type, datum, col.values[index*col.unitsz:])
	}
	return nil
}

// DictLen reports unique variable-width values of a column.
func (b *Builder) DictLen(col int) int {
	return len(b.cols[col].dict)
}

func (b *Builder) metas() ([]ColMeta, uint64) {
	offset := HeaderLength(len(b.cols))
	metas := make([]ColMeta, len(b.cols))
	for i := range b.cols {
		col := &b.cols[i]
		meta := MetaFor(col.def)
		meta.ValuesOffset = uint32(offset)
		if col.def.Type.IsVarlen() {
			meta.ExtraSz = uint32(col.extraSz)
			offset += common.MaxAligned(4*b.nitems) + col.extraSz
		} else {
			offset += common.MaxAligned(col.unitsz * b.nitems)
			if !col.nulls.IsEmpty() {
				meta.ExtraSz = uint32(common.BitmapLen(b.nitems))
				offset += common.MaxAligned(common.BitmapLen(b.nitems))
			}
		}
		metas[i] = meta
	}
	return metas, uint64(offset)
}

// ImageLength is the exact byte length of the finalized image.
func (b *Builder) ImageLength() uint64 {
	_, length := b.metas()
	return length
}

// WriteTo serializes the image into data, which must hold ImageLength()
// bytes.
func (b *Builder) WriteTo(data []byte) error {
	metas, length := b.metas()
	if uint64(len(data)) < length {
		return ErrShortBuffer
	}
	im := ImageOf(data)
	im.Init(b.nitems, length, metas)
	for i := range b.cols {
		col := &b.cols[i]
		base := int(metas[i].ValuesOffset)
		if col.def.Type.IsVarlen() {
			// assign dictionary offsets, then lay payloads after the
			// offset array
			extra := common.MaxAligned(4 * b.nitems)
			for _, entry := range col.order {
				entry.offset = uint32(extra)
				binary.LittleEndian.PutUint32(data[base+extra:], uint32(len(entry.data)))
				copy(data[base+extra+4:], entry.data)
				extra += common.MaxAligned(4 + len(entry.data))
			}
			for j, entry := range col.refs {
				slot := uint32(0)
				if entry != nil {
					slot = entry.offset
				}
				binary.LittleEndian.PutUint32(data[base+4*j:], slot)
			}
			continue
		}
		copy(data[base:], col.values[:col.unitsz*b.nitems])
		if !col.nulls.IsEmpty() {
			nullmap := data[base+common.MaxAligned(col.unitsz*b.nitems):]
			nbytes := common.BitmapLen(b.nitems)
			for j := 0; j < nbytes; j++ {
				nullmap[j] = 0xff
			}
			it := col.nulls.Iterator()
			for it.HasNext() {
				null := it.Next()
				nullmap[null>>3] &^= 1 << (null & 7)
			}
		}
	}
	return nil
}

// Reset clears the buffers for the next chunk; the fixed-width value
// arrays are reused, dictionaries are rebuilt.
func (b *Builder) Reset() {
	b.nitems = 0
	for i := range b.cols {
		col := &b.cols[i]
		if col.def.Type.IsVarlen() {
			col.dict = make(map[string]*vlEntry)
			col.order = nil
			col.refs = col.refs[:0]
			col.extraSz = 0
		} else {
			col.nulls = roaring.New()
		}
	}
}
