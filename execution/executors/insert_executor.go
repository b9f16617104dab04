package executors

import (
	"github.com/pkg/errors"
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/disk/pages"
	"tupledb/execution"
)

var countDesc = catalog.NewTupleDesc(catalog.Column{Name: "count", Type: db_types.IntegerTypeID})

// Insert reads every tuple of its child and inserts it into a table. It yields a single tuple holding the number
// of inserted tuples.
type Insert struct {
	execution.BaseIterator
	ctx   *execution.ExecutorContext
	child execution.OpIterator
	table modifiable

	result  *catalog.Tuple
	yielded bool
}

var _ execution.OpIterator = &Insert{}

func NewInsert(ctx *execution.ExecutorContext, child execution.OpIterator, tableID int32) (*Insert, error) {
	file, err := ctx.Catalog.GetDatabaseFile(tableID)
	if err != nil {
		return nil, err
	}

	table, ok := file.(modifiable)
	if !ok {
		return nil, errors.Errorf("table %d cannot be modified", tableID)
	}
	if !table.Desc().Equals(child.Desc()) {
		return nil, errors.Wrapf(pages.ErrSchemaMismatch, "table %d has [%v], child yields [%v]", tableID, table.Desc(), child.Desc())
	}

	e := &Insert{ctx: ctx, child: child, table: table}
	e.FetchNext = e.fetchNext
	return e, nil
}

func (e *Insert) Desc() *catalog.TupleDesc {
	return countDesc
}

func (e *Insert) Children() []execution.OpIterator {
	return []execution.OpIterator{e.child}
}

func (e *Insert) Open() error {
	if err := e.child.Open(); err != nil {
		return err
	}

	e.result = nil
	e.yielded = false
	return e.BaseIterator.Open()
}

// Rewind yields the count again without inserting anything.
func (e *Insert) Rewind() error {
	if err := e.CheckOpen(); err != nil {
		return err
	}

	e.yielded = false
	e.ResetPending()
	return nil
}

func (e *Insert) Close() error {
	err := e.child.Close()
	if closeErr := e.BaseIterator.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (e *Insert) fetchNext() (*catalog.Tuple, error) {
	if e.yielded {
		return nil, nil
	}

	if e.result == nil {
		var count int32
		for {
			t, err := nextOf(e.child)
			if err != nil {
				return nil, err
			}
			if t == nil {
				break
			}

			if _, err := e.table.InsertTuple(e.ctx.Pool, e.ctx.Txn, t); err != nil {
				return nil, err
			}
			count++
		}

		res, err := catalog.NewTupleWithFields(countDesc, db_types.NewIntField(count))
		if err != nil {
			return nil, err
		}
		e.result = res
	}

	e.yielded = true
	return e.result, nil
}
