package executors

import (
	"tupledb/catalog"
	"tupledb/execution"
)

// TupleIterator yields tuples from a slice. It is the leaf of operator trees over values that are not stored in
// a table.
type TupleIterator struct {
	execution.BaseIterator
	desc   *catalog.TupleDesc
	tuples []*catalog.Tuple
	pos    int
}

var _ execution.OpIterator = &TupleIterator{}

func NewTupleIterator(desc *catalog.TupleDesc, tuples []*catalog.Tuple) *TupleIterator {
	it := &TupleIterator{desc: desc, tuples: tuples}
	it.FetchNext = it.fetchNext
	return it
}

func (it *TupleIterator) Desc() *catalog.TupleDesc {
	return it.desc
}

func (it *TupleIterator) Open() error {
	it.pos = 0
	return it.BaseIterator.Open()
}

func (it *TupleIterator) Rewind() error {
	if err := it.CheckOpen(); err != nil {
		return err
	}

	it.pos = 0
	it.ResetPending()
	return nil
}

func (it *TupleIterator) fetchNext() (*catalog.Tuple, error) {
	if it.pos >= len(it.tuples) {
		return nil, nil
	}

	t := it.tuples[it.pos]
	it.pos++
	return t, nil
}
