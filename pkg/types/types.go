package types

import "fmt"

// T identifies a logical column type.
type T uint8

const (
	TBool T = iota + 1
	TInt2
	TInt4
	TInt8
	TFloat4
	TFloat8
	TText
	TBytea
)

// VarlenSize marks a variable-width type in Type.Size.
const VarlenSize = -1

// Type carries the physical properties the columnar layout needs: byte
// width (VarlenSize for variable), alignment class and whether values are
// passed by value.
type Type struct {
	ID    T
	Size  int16
	Align int16
	ByVal bool
}

var typeTable = map[T]Type{
	TBool:   {ID: TBool, Size: 1, Align: 1, ByVal: true},
	TInt2:   {ID: TInt2, Size: 2, Align: 2, ByVal: true},
	TInt4:   {ID: TInt4, Size: 4, Align: 4, ByVal: true},
	TInt8:   {ID: TInt8, Size: 8, Align: 8, ByVal: true},
	TFloat4: {ID: TFloat4, Size: 4, Align: 4, ByVal: true},
	TFloat8: {ID: TFloat8, Size: 8, Align: 8, ByVal: true},
	TText:   {ID: TText, Size: VarlenSize, Align: 4, ByVal: false},
	TBytea:  {ID: TBytea, Size: VarlenSize, Align: 4, ByVal: false},
}

func New(id T) Type {
	t, ok := typeTable[id]
	if !ok {
		panic(fmt.Sprintf("unknown type id: %d", id))
	}
	return t
}

func (t Type) IsVarlen() bool {
	return t.Size < 0
}

func (t Type) String() string {
	switch t.ID {
	case TBool:
		return "bool"
	case TInt2:
		return "int2"
	case TInt4:
		return "int4"
	case TInt8:
		return "int8"
	case TFloat4:
		return "float4"
	case TFloat8:
		return "float8"
	case TText:
		return "text"
	case TBytea:
		return "bytea"
	}
	return fmt.Sprintf("type(%d)", t.ID)
}
