package catalog

import (
	"errors"
	"fmt"
	"sync"

	"gstore/pkg/common"
	"gstore/pkg/types"

	"github.com/google/btree"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound  = errors.New("gstore: table not found")
	ErrDuplicate = errors.New("gstore: table already defined")
)

type DBID uint64
type TableID uint64

// TableEntry is one logical table known to the store.
type TableEntry struct {
	ID         TableID
	DatabaseID DBID
	Schema     *types.Schema
	Options    Options

	// WriteLock serializes bulk loads and whole-table deletes against
	// each other. The NOT-EMPTY check during begin-insert is only
	// meaningful while it is held.
	WriteLock sync.Mutex
}

func (entry *TableEntry) Name() string {
	return entry.Schema.Name
}

func (entry *TableEntry) String() string {
	return fmt.Sprintf("table[%d]%s", entry.ID, entry.Schema.String())
}

type tableNode struct {
	name  string
	entry *TableEntry
}

func (n *tableNode) Less(item btree.Item) bool {
	return n.name < item.(*tableNode).name
}

// Catalog is the registry of logical tables in one database.
type Catalog struct {
	sync.RWMutex
	DatabaseID DBID
	nameIndex  *btree.BTree
	entries    map[TableID]*TableEntry
	idAlloc    *common.IdAllocator

	// deviceCount bounds the pinning option.
	deviceCount int
}

func NewCatalog(db DBID, deviceCount int) *Catalog {
	return &Catalog{
		DatabaseID:  db,
		nameIndex:   btree.New(4),
		entries:     make(map[TableID]*TableEntry),
		idAlloc:     common.NewIdAllocator(1),
		deviceCount: deviceCount,
	}
}

// CreateTable defines a table. Reference options must name an existing
// primary table.
func (c *Catalog) CreateTable(schema *types.Schema, raw []Option) (*TableEntry, error) {
	opts, err := ParseOptions(raw, c.deviceCount)
	if err != nil {
		return nil, err
	}
	c.Lock()
	defer c.Unlock()
	if c.nameIndex.Get(&tableNode{name: schema.Name}) != nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicate, schema.Name)
	}
	if opts.IsReference() {
		if err := c.checkReferenceLocked(schema, opts.Reference); err != nil {
			return nil, err
		}
	}
	entry := &TableEntry{
		ID:         TableID(c.idAlloc.Alloc()),
		DatabaseID: c.DatabaseID,
		Schema:     schema,
		Options:    opts,
	}
	c.entries[entry.ID] = entry
	c.nameIndex.ReplaceOrInsert(&tableNode{name: schema.Name, entry: entry})
	logrus.Debugf("catalog: created %s", entry.String())
	return entry, nil
}

func (c *Catalog) checkReferenceLocked(schema *types.Schema, referenced string) error {
	item := c.nameIndex.Get(&tableNode{name: referenced})
	if item == nil {
		return fmt.Errorf("%w: referenced table %q", ErrNotFound, referenced)
	}
	base := item.(*tableNode).entry
	if base.Options.IsReference() {
		return fmt.Errorf("%w: %q is not a primary table", ErrBadOption, referenced)
	}
	// every projected column must exist on the base, with the same type
	for _, def := range schema.ColDefs {
		idx := base.Schema.ColIdxByName(def.Name)
		if idx < 0 {
			return fmt.Errorf("%w: column %q not found in %q", ErrBadOption, def.Name, referenced)
		}
		if base.Schema.ColDefs[idx].Type.ID != def.Type.ID {
			return fmt.Errorf("%w: column %q type mismatch with %q", ErrBadOption, def.Name, referenced)
		}
	}
	return nil
}

func (c *Catalog) GetTable(id TableID) (*TableEntry, error) {
	c.RLock()
	defer c.RUnlock()
	entry, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return entry, nil
}

func (c *Catalog) GetTableByName(name string) (*TableEntry, error) {
	c.RLock()
	defer c.RUnlock()
	item := c.nameIndex.Get(&tableNode{name: name})
	if item == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return item.(*tableNode).entry, nil
}

// Resolve follows a reference entry to its primary table; primary entries
// resolve to themselves.
func (c *Catalog) Resolve(entry *TableEntry) (*TableEntry, error) {
	if !entry.Options.IsReference() {
		return entry, nil
	}
	return c.GetTableByName(entry.Options.Reference)
}

func (c *Catalog) DropTable(name string) (*TableEntry, error) {
	c.Lock()
	defer c.Unlock()
	item := c.nameIndex.Delete(&tableNode{name: name})
	if item == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	entry := item.(*tableNode).entry
	delete(c.entries, entry.ID)
	logrus.Debugf("catalog: dropped %s", entry.String())
	return entry, nil
}

// TableNames yields defined tables in name order.
func (c *Catalog) TableNames() []string {
	c.RLock()
	defer c.RUnlock()
	names := make([]string, 0, c.nameIndex.Len())
	c.nameIndex.Ascend(func(item btree.Item) bool {
		names = append(names, item.(*tableNode).name)
		return true
	})
	return names
}
