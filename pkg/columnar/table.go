package columnar

import (
	"encoding/binary"

	"gstore/pkg/common"
)

// TableImage is the aggregate device layout of one whole table: a header
// with the chunk count and total row count, a chunk offset directory, then
// each chunk's columnar image MAXALIGN padded.
//
//	+0  nchunks     u32
//	+4  reserved    u32
//	+8  totalnitems u64
//	+16 offsets     [nchunks]u64, from the image start
type TableImage struct {
	data []byte
}

func TableImageOf(data []byte) *TableImage {
	return &TableImage{data: data}
}

// TableHeaderLength is the MAXALIGN-padded header size for nchunks chunks.
func TableHeaderLength(nchunks int) int {
	return common.MaxAligned(16 + 8*nchunks)
}

func (ti *TableImage) Bytes() []byte { return ti.data }

func (ti *TableImage) NChunks() int {
	return int(binary.LittleEndian.Uint32(ti.data[0:]))
}

func (ti *TableImage) TotalNItems() uint64 {
	return binary.LittleEndian.Uint64(ti.data[8:])
}

func (ti *TableImage) ChunkOffset(i int) uint64 {
	return binary.LittleEndian.Uint64(ti.data[16+8*i:])
}

// ChunkImage opens the i-th embedded columnar image.
func (ti *TableImage) ChunkImage(i int) *Image {
	off := ti.ChunkOffset(i)
	im := ImageOf(ti.data[off:])
	return ImageOf(ti.data[off : off+im.Length()])
}

// InitTableHeader writes the header and offset directory.
func (ti *TableImage) InitTableHeader(totalNItems uint64, offsets []uint64) {
	binary.LittleEndian.PutUint32(ti.data[0:], uint32(len(offsets)))
	binary.LittleEndian.PutUint32(ti.data[4:], 0)
	binary.LittleEndian.PutUint64(ti.data[8:], totalNItems)
	for i, off := range offsets {
		binary.LittleEndian.PutUint64(ti.data[16+8*i:], off)
	}
}

// blockLength is the full byte span of one column block, values plus extra.
func (im *Image) blockLength(col int) int {
	meta := im.Col(col)
	if meta.IsVarlen() {
		return common.MaxAligned(4*im.NItems()) + int(meta.ExtraSz)
	}
	length := common.MaxAligned(meta.UnitSize() * im.NItems())
	if meta.ExtraSz > 0 {
		length += common.MaxAligned(int(meta.ExtraSz))
	}
	return length
}

// ProjectedLength is the byte length of re-emitting the image restricted to
// the given column blocks.
func (im *Image) ProjectedLength(cols []int) uint64 {
	length := HeaderLength(len(cols))
	for _, col := range cols {
		length += im.blockLength(col)
	}
	return uint64(length)
}

// ProjectInto re-emits the selected column blocks into dst, renumbering
// their attnums to the selection order. Column blocks are copied verbatim;
// variable-width offsets stay valid because they are block relative.
func (im *Image) ProjectInto(dst []byte, cols []int) error {
	length := im.ProjectedLength(cols)
	if uint64(len(dst)) < length {
		return ErrShortBuffer
	}
	metas := make([]ColMeta, len(cols))
	offset := HeaderLength(len(cols))
	for j, col := range cols {
		meta := im.Col(col)
		src := im.data[int(meta.ValuesOffset) : int(meta.ValuesOffset)+im.blockLength(col)]
		copy(dst[offset:], src)
		meta.ValuesOffset = uint32(offset)
		meta.AttNum = uint32(j)
		metas[j] = meta
		offset += len(src)
	}
	out := ImageOf(dst)
	out.Init(im.NItems(), length, metas)
	return nil
}
