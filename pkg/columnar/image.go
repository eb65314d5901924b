package columnar

import (
	"encoding/binary"
	"fmt"
	"math"

	"gstore/pkg/common"
	"gstore/pkg/types"
)

// FormatColumn tags a columnar image.
const FormatColumn uint32 = 0x31534347

const (
	headerSize  = 24
	colMetaSize = 24
)

// Image layout, all little-endian:
//
//	+0  format   u32
//	+4  ncols    u32
//	+8  nitems   u32
//	+12 reserved u32
//	+16 length   u64
//	+24 colmeta[ncols], 24 bytes each:
//	      +0  attlen       i16   (negative = variable width)
//	      +2  attalign     i16
//	      +4  attbyval     u8
//	      +8  valuesoffset u32   (from image start)
//	      +12 extrasz      u32
//	      +16 attnum       u32   (position in the owning table schema)
//
// Fixed-width column block at valuesoffset: aligned element array, then an
// optional nullmap (bit set = value present), each MAXALIGN padded; a
// present nullmap is advertised by extrasz = bitmap byte length.
// Variable-width column block: u32 offset array (0 = NULL, otherwise
// relative to the offset array start) followed by the deduplicated blob of
// length-prefixed payloads, each MAXALIGN padded; extrasz = blob bytes.

// ColMeta describes one column block inside an image.
type ColMeta struct {
	AttLen       int16
	AttAlign     int16
	AttByVal     bool
	ValuesOffset uint32
	ExtraSz      uint32
	AttNum       uint32
}

// UnitSize is the element stride of a fixed-width column.
func (m ColMeta) UnitSize() int {
	return common.TypeAlign(int(m.AttAlign), int(m.AttLen))
}

func (m ColMeta) IsVarlen() bool {
	return m.AttLen < 0
}

// MetaFor derives the image metadata of a column, before offsets are
// assigned.
func MetaFor(def *types.ColDef) ColMeta {
	return ColMeta{
		AttLen:   def.Type.Size,
		AttAlign: def.Type.Align,
		AttByVal: def.Type.ByVal,
		AttNum:   uint32(def.Idx),
	}
}

// HeaderLength is the MAXALIGN-padded byte length of header plus column
// metadata.
func HeaderLength(ncols int) int {
	return common.MaxAligned(headerSize + ncols*colMetaSize)
}

// Image is a read/write view over one columnar image held in a shared
// segment or device buffer.
type Image struct {
	data []byte
}

func ImageOf(data []byte) *Image {
	return &Image{data: data}
}

func (im *Image) Bytes() []byte  { return im.data }
func (im *Image) Format() uint32 { return binary.LittleEndian.Uint32(im.data[0:]) }
func (im *Image) NCols() int     { return int(binary.LittleEndian.Uint32(im.data[4:])) }
func (im *Image) NItems() int    { return int(binary.LittleEndian.Uint32(im.data[8:])) }
func (im *Image) Length() uint64 { return binary.LittleEndian.Uint64(im.data[16:]) }

// Init writes the header and column metadata.
func (im *Image) Init(nitems int, length uint64, metas []ColMeta) {
	binary.LittleEndian.PutUint32(im.data[0:], FormatColumn)
	binary.LittleEndian.PutUint32(im.data[4:], uint32(len(metas)))
	binary.LittleEndian.PutUint32(im.data[8:], uint32(nitems))
	binary.LittleEndian.PutUint32(im.data[12:], 0)
	binary.LittleEndian.PutUint64(im.data[16:], length)
	for i, meta := range metas {
		im.putColMeta(i, meta)
	}
}

func (im *Image) putColMeta(i int, meta ColMeta) {
	base := headerSize + i*colMetaSize
	binary.LittleEndian.PutUint16(im.data[base:], uint16(meta.AttLen))
	binary.LittleEndian.PutUint16(im.data[base+2:], uint16(meta.AttAlign))
	if meta.AttByVal {
		im.data[base+4] = 1
	} else {
		im.data[base+4] = 0
	}
	im.data[base+5], im.data[base+6], im.data[base+7] = 0, 0, 0
	binary.LittleEndian.PutUint32(im.data[base+8:], meta.ValuesOffset)
	binary.LittleEndian.PutUint32(im.data[base+12:], meta.ExtraSz)
	binary.LittleEndian.PutUint32(im.data[base+16:], meta.AttNum)
	binary.LittleEndian.PutUint32(im.data[base+20:], 0)
}

func (im *Image) Col(i int) ColMeta {
	base := headerSize + i*colMetaSize
	return ColMeta{
		AttLen:       int16(binary.LittleEndian.Uint16(im.data[base:])),
		AttAlign:     int16(binary.LittleEndian.Uint16(im.data[base+2:])),
		AttByVal:     im.data[base+4] != 0,
		ValuesOffset: binary.LittleEndian.Uint32(im.data[base+8:]),
		ExtraSz:      binary.LittleEndian.Uint32(im.data[base+12:]),
		AttNum:       binary.LittleEndian.Uint32(im.data[base+16:]),
	}
}

// ColByAttNum finds the column block storing the given schema position.
func (im *Image) ColByAttNum(attnum int) (int, bool) {
	for i := 0; i < im.NCols(); i++ {
		if im.Col(i).AttNum == uint32(attnum) {
			return i, true
		}
	}
	return -1, false
}

// IsNull reports row NULL-ness in the given column block.
func (im *Image) IsNull(col, row int) bool {
	meta := im.Col(col)
	if meta.IsVarlen() {
		return im.varlenOffset(meta, row) == 0
	}
	if meta.ExtraSz == 0 {
		return false
	}
	if row >= 8*int(meta.ExtraSz) {
		return false
	}
	nullmap := im.data[int(meta.ValuesOffset)+common.MaxAligned(meta.UnitSize()*im.NItems()):]
	return nullmap[row>>3]&(1<<(row&7)) == 0
}

func (im *Image) varlenOffset(meta ColMeta, row int) uint32 {
	return binary.LittleEndian.Uint32(im.data[int(meta.ValuesOffset)+4*row:])
}

// VarlenAt returns the payload of a variable-width cell, or nil for NULL.
func (im *Image) VarlenAt(col, row int) []byte {
	meta := im.Col(col)
	off := im.varlenOffset(meta, row)
	if off == 0 {
		return nil
	}
	payload := im.data[int(meta.ValuesOffset)+int(off):]
	size := binary.LittleEndian.Uint32(payload)
	return payload[4 : 4+size]
}

// VarlenOffsetAt exposes the raw offset slot (0 = NULL).
func (im *Image) VarlenOffsetAt(col, row int) uint32 {
	return im.varlenOffset(im.Col(col), row)
}

// FixedAt returns the raw bytes of a fixed-width cell.
func (im *Image) FixedAt(col, row int) []byte {
	meta := im.Col(col)
	unitsz := meta.UnitSize()
	base := int(meta.ValuesOffset) + unitsz*row
	return im.data[base : base+int(meta.AttLen)]
}

// DatumAt decodes a cell into its Go datum, nil for NULL.
func (im *Image) DatumAt(col, row int, t types.Type) any {
	if im.IsNull(col, row) {
		return nil
	}
	if t.IsVarlen() {
		raw := im.VarlenAt(col, row)
		if t.ID == types.TBytea {
			out := make([]byte, len(raw))
			copy(out, raw)
			return out
		}
		return string(raw)
	}
	return DecodeFixed(t, im.FixedAt(col, row))
}

// EncodeFixed writes one fixed-width datum into dst.
func EncodeFixed(t types.Type, datum any, dst []byte) error {
	switch t.ID {
	case types.TBool:
		v, ok := datum.(bool)
		if !ok {
			return typeMismatch(t, datum)
		}
		if v {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case types.TInt2:
		v, ok := datum.(int16)
		if !ok {
			return typeMismatch(t, datum)
		}
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case types.TInt4:
		v, ok := datum.(int32)
		if !ok {
			return typeMismatch(t, datum)
		}
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case types.TInt8:
		v, ok := datum.(int64)
		if !ok {
			return typeMismatch(t, datum)
		}
		binary.LittleEndian.PutUint64(dst, uint64(v))
	case types.TFloat4:
		v, ok := datum.(float32)
		if !ok {
			return typeMismatch(t, datum)
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
	case types.TFloat8:
		v, ok := datum.(float64)
		if !ok {
			return typeMismatch(t, datum)
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	default:
		return typeMismatch(t, datum)
	}
	return nil
}

// DecodeFixed reads one fixed-width datum.
func DecodeFixed(t types.Type, raw []byte) any {
	switch t.ID {
	case types.TBool:
		return raw[0] != 0
	case types.TInt2:
		return int16(binary.LittleEndian.Uint16(raw))
	case types.TInt4:
		return int32(binary.LittleEndian.Uint32(raw))
	case types.TInt8:
		return int64(binary.LittleEndian.Uint64(raw))
	case types.TFloat4:
		return math.Float32frombits(binary.LittleEndian.Uint32(raw))
	case types.TFloat8:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	}
	panic(fmt.Sprintf("unexpected fixed type: %s", t.String()))
}

// VarlenPayload extracts the raw bytes of a variable-width datum.
func VarlenPayload(t types.Type, datum any) ([]byte, error) {
	switch t.ID {
	case types.TText:
		v, ok := datum.(string)
		if !ok {
			return nil, typeMismatch(t, datum)
		}
		return []byte(v), nil
	case types.TBytea:
		v, ok := datum.([]byte)
		if !ok {
			return nil, typeMismatch(t, datum)
		}
		return v, nil
	}
	return nil, typeMismatch(t, datum)
}

func typeMismatch(t types.Type, datum any) error {
	return fmt.Errorf("%w: %T for %s", ErrTypeMismatch, datum, t.String())
}
