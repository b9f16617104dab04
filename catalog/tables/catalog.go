package tables

import (
	"sort"
	"sync"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"tupledb/buffer"
	"tupledb/catalog"
	"tupledb/common"
)

var (
	ErrNoSuchTable    = errors.New("table does not exist")
	ErrTableNameTaken = errors.New("table name is already used by another table")
)

type TableInfo struct {
	Name string
	File buffer.DbFile
}

var _ buffer.FileResolver = &InMemCatalog{}

// InMemCatalog keeps the tables of the database. It is the buffer pool's resolver from table id to file.
type InMemCatalog struct {
	tables     map[int32]*TableInfo
	tableNames map[string]int32
	lock       sync.RWMutex
}

func NewCatalog() *InMemCatalog {
	return &InMemCatalog{
		tables:     map[int32]*TableInfo{},
		tableNames: map[string]int32{},
	}
}

// AddTable registers file under name. Adding a file whose id is already known replaces the old entry, so the
// catalog can be reloaded with the same files.
func (c *InMemCatalog) AddTable(file buffer.DbFile, name string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	id := file.GetID()
	if other, ok := c.tableNames[name]; ok && other != id {
		return errors.Wrapf(ErrTableNameTaken, "%q", name)
	}

	if old, ok := c.tables[id]; ok {
		delete(c.tableNames, old.Name)
	}

	c.tables[id] = &TableInfo{Name: name, File: file}
	c.tableNames[name] = id

	level.Debug(common.Logger()).Log("msg", "table added", "table", name, "id", id)
	return nil
}

func (c *InMemCatalog) GetDatabaseFile(tableID int32) (buffer.DbFile, error) {
	info, err := c.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	return info.File, nil
}

func (c *InMemCatalog) GetTable(tableID int32) (*TableInfo, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	info, ok := c.tables[tableID]
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchTable, "id %d", tableID)
	}
	return info, nil
}

func (c *InMemCatalog) GetTableID(name string) (int32, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	id, ok := c.tableNames[name]
	if !ok {
		return 0, errors.Wrapf(ErrNoSuchTable, "%q", name)
	}
	return id, nil
}

func (c *InMemCatalog) GetTupleDesc(tableID int32) (*catalog.TupleDesc, error) {
	info, err := c.GetTable(tableID)
	if err != nil {
		return nil, err
	}
	return info.File.Desc(), nil
}

// TableIDs returns ids of all tables in ascending order.
func (c *InMemCatalog) TableIDs() []int32 {
	c.lock.RLock()
	defer c.lock.RUnlock()

	ids := make([]int32, 0, len(c.tables))
	for id := range c.tables {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
