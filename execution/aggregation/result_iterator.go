package aggregation

import (
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/execution"
)

// resultIterator yields one tuple per group of a finished group table.
type resultIterator struct {
	execution.BaseIterator
	table *groupTable
	op    AggOp
	desc  *catalog.TupleDesc
	pos   int
}

var _ execution.OpIterator = &resultIterator{}

func newResultIterator(table *groupTable, op AggOp, desc *catalog.TupleDesc) *resultIterator {
	it := &resultIterator{
		table: table,
		op:    op,
		desc:  desc,
	}
	it.FetchNext = it.fetchNext
	return it
}

func (it *resultIterator) Open() error {
	it.pos = 0
	return it.BaseIterator.Open()
}

func (it *resultIterator) Rewind() error {
	if err := it.CheckOpen(); err != nil {
		return err
	}

	it.pos = 0
	it.ResetPending()
	return nil
}

func (it *resultIterator) Desc() *catalog.TupleDesc {
	return it.desc
}

func (it *resultIterator) fetchNext() (*catalog.Tuple, error) {
	if it.pos >= len(it.table.order) {
		return nil, nil
	}

	key := it.table.order[it.pos]
	it.pos++

	t := catalog.NewTuple(it.desc)
	agg := db_types.NewIntField(it.table.result(key, it.op))
	if _, ok := key.(NoGroup); ok {
		t.Fields[0] = agg
		return t, nil
	}

	t.Fields[0] = key.Field()
	t.Fields[1] = agg
	return t, nil
}
