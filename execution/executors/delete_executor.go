package executors

import (
	"github.com/pkg/errors"
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/execution"
)

// Delete removes every tuple of its child from the table the tuple is stored in. Tuples are located by their
// record ids. It yields a single tuple holding the number of deleted tuples.
type Delete struct {
	execution.BaseIterator
	ctx   *execution.ExecutorContext
	child execution.OpIterator

	result  *catalog.Tuple
	yielded bool
}

var _ execution.OpIterator = &Delete{}

func NewDelete(ctx *execution.ExecutorContext, child execution.OpIterator) *Delete {
	e := &Delete{ctx: ctx, child: child}
	e.FetchNext = e.fetchNext
	return e
}

func (e *Delete) Desc() *catalog.TupleDesc {
	return countDesc
}

func (e *Delete) Children() []execution.OpIterator {
	return []execution.OpIterator{e.child}
}

func (e *Delete) Open() error {
	if err := e.child.Open(); err != nil {
		return err
	}

	e.result = nil
	e.yielded = false
	return e.BaseIterator.Open()
}

// Rewind yields the count again without deleting anything.
func (e *Delete) Rewind() error {
	if err := e.CheckOpen(); err != nil {
		return err
	}

	e.yielded = false
	e.ResetPending()
	return nil
}

func (e *Delete) Close() error {
	err := e.child.Close()
	if closeErr := e.BaseIterator.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (e *Delete) fetchNext() (*catalog.Tuple, error) {
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

			if err := e.deleteTuple(t); err != nil {
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

func (e *Delete) deleteTuple(t *catalog.Tuple) error {
	if t.Rid == nil {
		return errors.New("tuple to delete has no record id")
	}

	file, err := e.ctx.Catalog.GetDatabaseFile(t.Rid.PageID.TableID)
	if err != nil {
		return err
	}

	table, ok := file.(modifiable)
	if !ok {
		return errors.Errorf("table %d cannot be modified", t.Rid.PageID.TableID)
	}

	_, err = table.DeleteTuple(e.ctx.Pool, e.ctx.Txn, t)
	return err
}
