package types

import "fmt"

// ColDef describes one logical column of a table.
type ColDef struct {
	Name    string
	Type    Type
	Idx     int
	NotNull bool
}

// Schema is the ordered column set of a logical table.
type Schema struct {
	Name    string
	ColDefs []*ColDef
}

func NewSchema(name string) *Schema {
	return &Schema{Name: name}
}

func (s *Schema) AppendCol(name string, id T) *Schema {
	return s.AppendColDef(&ColDef{Name: name, Type: New(id)})
}

func (s *Schema) AppendNotNullCol(name string, id T) *Schema {
	return s.AppendColDef(&ColDef{Name: name, Type: New(id), NotNull: true})
}

func (s *Schema) AppendColDef(def *ColDef) *Schema {
	def.Idx = len(s.ColDefs)
	s.ColDefs = append(s.ColDefs, def)
	return s
}

func (s *Schema) NumCols() int {
	return len(s.ColDefs)
}

// ColIdxByName returns the position of the named column, or -1.
func (s *Schema) ColIdxByName(name string) int {
	for _, def := range s.ColDefs {
		if def.Name == name {
			return def.Idx
		}
	}
	return -1
}

func (s *Schema) String() string {
	str := fmt.Sprintf("schema<%s>(", s.Name)
	for i, def := range s.ColDefs {
		if i > 0 {
			str += ","
		}
		str += fmt.Sprintf("%s %s", def.Name, def.Type.String())
	}
	return str + ")"
}

// Row is one logical row: one datum per column, nil for NULL. Supported
// datum kinds are bool, int16, int32, int64, float32, float64, string and
// []byte, matching the type table.
type Row []any
