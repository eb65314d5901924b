package catalog

import (
	"testing"

	"gstore/pkg/types"

	"github.com/stretchr/testify/assert"
)

func mockSchema(name string) *types.Schema {
	return types.NewSchema(name).
		AppendCol("a", types.TInt4).
		AppendCol("b", types.TText)
}

func TestCreateGetDrop(t *testing.T) {
	c := NewCatalog(1, 0)
	entry, err := c.CreateTable(mockSchema("t1"), nil)
	assert.Nil(t, err)
	assert.Equal(t, "t1", entry.Name())
	assert.False(t, entry.Options.IsPinned())

	_, err = c.CreateTable(mockSchema("t1"), nil)
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := c.GetTable(entry.ID)
	assert.Nil(t, err)
	assert.Equal(t, entry, got)
	got, err = c.GetTableByName("t1")
	assert.Nil(t, err)
	assert.Equal(t, entry, got)

	_, err = c.CreateTable(mockSchema("t0"), nil)
	assert.Nil(t, err)
	assert.Equal(t, []string{"t0", "t1"}, c.TableNames())

	_, err = c.DropTable("t1")
	assert.Nil(t, err)
	_, err = c.GetTableByName("t1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.DropTable("t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions(nil, 0)
	assert.Nil(t, err)
	assert.False(t, opts.IsPinned())
	assert.False(t, opts.IsReference())

	opts, err = ParseOptions([]Option{{"pinning", "1"}}, 2)
	assert.Nil(t, err)
	assert.Equal(t, 1, opts.Pinning)

	_, err = ParseOptions([]Option{{"pinning", "2"}}, 2)
	assert.ErrorIs(t, err, ErrBadOption)
	_, err = ParseOptions([]Option{{"pinning", "x"}}, 2)
	assert.ErrorIs(t, err, ErrBadOption)
	_, err = ParseOptions([]Option{{"pinning", "0"}, {"pinning", "1"}}, 2)
	assert.ErrorIs(t, err, ErrBadOption)
	_, err = ParseOptions([]Option{{"pinning", "0"}, {"reference", "t"}}, 2)
	assert.ErrorIs(t, err, ErrBadOption)
	_, err = ParseOptions([]Option{{"compress", "lz4"}}, 2)
	assert.ErrorIs(t, err, ErrBadOption)
}

func TestReferenceTables(t *testing.T) {
	c := NewCatalog(1, 0)
	base, err := c.CreateTable(mockSchema("base"), nil)
	assert.Nil(t, err)

	// projection reorders and subsets columns by name
	proj := types.NewSchema("proj").AppendCol("b", types.TText)
	entry, err := c.CreateTable(proj, []Option{{"reference", "base"}})
	assert.Nil(t, err)
	assert.True(t, entry.Options.IsReference())

	resolved, err := c.Resolve(entry)
	assert.Nil(t, err)
	assert.Equal(t, base, resolved)

	// reference to a reference is rejected
	_, err = c.CreateTable(types.NewSchema("proj2").AppendCol("b", types.TText),
		[]Option{{"reference", "proj"}})
	assert.ErrorIs(t, err, ErrBadOption)

	// unknown column or type mismatch is rejected
	_, err = c.CreateTable(types.NewSchema("p3").AppendCol("zz", types.TText),
		[]Option{{"reference", "base"}})
	assert.ErrorIs(t, err, ErrBadOption)
	_, err = c.CreateTable(types.NewSchema("p4").AppendCol("b", types.TInt8),
		[]Option{{"reference", "base"}})
	assert.ErrorIs(t, err, ErrBadOption)

	// unknown base
	_, err = c.CreateTable(types.NewSchema("p5").AppendCol("b", types.TText),
		[]Option{{"reference", "nope"}})
	assert.ErrorIs(t, err, ErrNotFound)
}
