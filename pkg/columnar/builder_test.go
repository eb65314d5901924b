package columnar

import (
	"testing"

	"gstore/pkg/common"
	"gstore/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTypesSchema() *types.Schema {
	return types.NewSchema("every_width").
		AppendCol("c_bool", types.TBool).
		AppendCol("c_int2", types.TInt2).
		AppendCol("c_int4", types.TInt4).
		AppendCol("c_int8", types.TInt8).
		AppendCol("c_float4", types.TFloat4).
		AppendCol("c_float8", types.TFloat8).
		AppendCol("c_text", types.TText).
		AppendCol("c_bytea", types.TBytea)
}

func buildImage(t *testing.T, b *Builder) *Image {
	data := make([]byte, b.ImageLength())
	require.Nil(t, b.WriteTo(data))
	return ImageOf(data)
}

func TestRoundTripEveryWidth(t *testing.T) {
	schema := allTypesSchema()
	b, err := NewBuilder(schema, 1<<20)
	require.Nil(t, err)

	rows := []types.Row{
		{true, int16(-2), int32(42), int64(1 << 40), float32(0.5), 2.25, "x", []byte{0xde, 0xad}},
		{false, int16(7), int32(-1), int64(-9), float32(-3.5), -0.125, "longer value", []byte{}},
		{nil, nil, nil, nil, nil, nil, nil, nil},
	}
	for _, row := range rows {
		require.Nil(t, b.Append(row))
	}
	im := buildImage(t, b)
	assert.Equal(t, FormatColumn, im.Format())
	assert.Equal(t, 3, im.NItems())
	assert.Equal(t, schema.NumCols(), im.NCols())
	assert.Equal(t, uint64(len(im.Bytes())), im.Length())

	for r, row := range rows {
		for c, def := range schema.ColDefs {
			got := im.DatumAt(c, r, def.Type)
			assert.Equal(t, row[c], got, "row %d col %s", r, def.Name)
		}
	}
}

func TestDictionaryDedup(t *testing.T) {
	schema := types.NewSchema("t").
		AppendCol("a", types.TInt4).
		AppendCol("b", types.TText)
	b, err := NewBuilder(schema, 1<<20)
	require.Nil(t, err)

	require.Nil(t, b.Append(types.Row{int32(1), "x"}))
	require.Nil(t, b.Append(types.Row{int32(2), "y"}))
	require.Nil(t, b.Append(types.Row{int32(1), "x"}))
	assert.Equal(t, 2, b.DictLen(1))

	im := buildImage(t, b)
	assert.Equal(t, im.VarlenOffsetAt(1, 0), im.VarlenOffsetAt(1, 2))
	assert.NotEqual(t, im.VarlenOffsetAt(1, 0), im.VarlenOffsetAt(1, 1))
	assert.Equal(t, "x", im.DatumAt(1, 0, types.New(types.TText)))
}

func TestAllEmptyStrings(t *testing.T) {
	schema := types.NewSchema("t").AppendCol("s", types.TText)
	b, err := NewBuilder(schema, 1<<20)
	require.Nil(t, err)
	const n = 23
	for i := 0; i < n; i++ {
		require.Nil(t, b.Append(types.Row{""}))
	}
	assert.Equal(t, 1, b.DictLen(0))
	im := buildImage(t, b)
	first := im.VarlenOffsetAt(0, 0)
	assert.NotEqual(t, uint32(0), first)
	for i := 1; i < n; i++ {
		assert.Equal(t, first, im.VarlenOffsetAt(0, i))
	}
	assert.Equal(t, "", im.DatumAt(0, 7, types.New(types.TText)))
}

func TestNullmapLayout(t *testing.T) {
	schema := types.NewSchema("t").AppendCol("v", types.TInt8)
	b, err := NewBuilder(schema, 1<<20)
	require.Nil(t, err)

	// no nulls: no nullmap block
	for i := 0; i < 9; i++ {
		require.Nil(t, b.Append(types.Row{int64(i)}))
	}
	im := buildImage(t, b)
	assert.Equal(t, uint32(0), im.Col(0).ExtraSz)
	assert.False(t, im.IsNull(0, 3))

	// all nulls: one bitmap of ceil(n/8) bytes
	b.Reset()
	for i := 0; i < 9; i++ {
		require.Nil(t, b.Append(types.Row{nil}))
	}
	im = buildImage(t, b)
	assert.Equal(t, uint32(common.BitmapLen(9)), im.Col(0).ExtraSz)
	expect := HeaderLength(1) + common.MaxAligned(8*9) + common.MaxAligned(common.BitmapLen(9))
	assert.Equal(t, uint64(expect), im.Length())
	for i := 0; i < 9; i++ {
		assert.True(t, im.IsNull(0, i))
		assert.Nil(t, im.DatumAt(0, i, types.New(types.TInt8)))
	}

	// first null after non-null rows backfills prior bits as present
	b.Reset()
	require.Nil(t, b.Append(types.Row{int64(10)}))
	require.Nil(t, b.Append(types.Row{nil}))
	require.Nil(t, b.Append(types.Row{int64(30)}))
	im = buildImage(t, b)
	assert.False(t, im.IsNull(0, 0))
	assert.True(t, im.IsNull(0, 1))
	assert.False(t, im.IsNull(0, 2))
	assert.Equal(t, int64(30), im.DatumAt(0, 2, types.New(types.TInt8)))
}

func TestNotNullEnforcement(t *testing.T) {
	schema := types.NewSchema("t").
		AppendNotNullCol("a", types.TInt4).
		AppendCol("b", types.TText)
	b, err := NewBuilder(schema, 1<<20)
	require.Nil(t, err)
	assert.ErrorIs(t, b.Append(types.Row{nil, "x"}), ErrNotNull)
	// the failed row left no residue
	assert.Equal(t, 0, b.NItems())
	assert.Nil(t, b.Append(types.Row{int32(1), nil}))
	assert.Equal(t, 1, b.NItems())
}

func TestTypeAndArityErrors(t *testing.T) {
	schema := types.NewSchema("t").AppendCol("a", types.TInt4)
	b, err := NewBuilder(schema, 1<<20)
	require.Nil(t, err)
	assert.ErrorIs(t, b.Append(types.Row{"nope"}), ErrTypeMismatch)
	assert.ErrorIs(t, b.Append(types.Row{int64(1)}), ErrTypeMismatch)
	assert.ErrorIs(t, b.Append(types.Row{int32(1), int32(2)}), ErrBadRowWidth)
}

func TestNRoomsBoundary(t *testing.T) {
	schema := types.NewSchema("t").AppendCol("a", types.TInt8)
	// tight budget: header + room for a handful of rows
	chunkSize := int64(HeaderLength(1) + common.MaxAlign + 8*8)
	b, err := NewBuilder(schema, chunkSize)
	require.Nil(t, err)
	nrooms := b.NRooms()
	require.True(t, nrooms >= 1)

	for i := 0; i < nrooms; i++ {
		row := types.Row{int64(i)}
		assert.False(t, b.NeedsFlush(row))
		require.Nil(t, b.Append(row))
	}
	// one more row demands a flush first
	assert.True(t, b.NeedsFlush(types.Row{int64(99)}))
	assert.ErrorIs(t, b.Append(types.Row{int64(99)}), ErrRowTooLarge)

	b.Reset()
	assert.Equal(t, 0, b.NItems())
	require.Nil(t, b.Append(types.Row{int64(99)}))
}
