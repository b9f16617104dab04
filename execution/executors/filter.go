package executors

import (
	"tupledb/catalog"
	"tupledb/execution"
	"tupledb/execution/expressions"
)

// Filter yields the tuples of its child that satisfy the predicate.
type Filter struct {
	execution.BaseIterator
	pred  *expressions.Predicate
	child execution.OpIterator
}

var _ execution.OpIterator = &Filter{}

func NewFilter(pred *expressions.Predicate, child execution.OpIterator) *Filter {
	f := &Filter{pred: pred, child: child}
	f.FetchNext = f.fetchNext
	return f
}

func (f *Filter) Predicate() *expressions.Predicate {
	return f.pred
}

func (f *Filter) Children() []execution.OpIterator {
	return []execution.OpIterator{f.child}
}

func (f *Filter) Desc() *catalog.TupleDesc {
	return f.child.Desc()
}

func (f *Filter) Open() error {
	if err := f.child.Open(); err != nil {
		return err
	}
	return f.BaseIterator.Open()
}

func (f *Filter) Rewind() error {
	if err := f.CheckOpen(); err != nil {
		return err
	}
	if err := f.child.Rewind(); err != nil {
		return err
	}

	f.ResetPending()
	return nil
}

func (f *Filter) Close() error {
	err := f.child.Close()
	if closeErr := f.BaseIterator.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (f *Filter) fetchNext() (*catalog.Tuple, error) {
	for {
		t, err := nextOf(f.child)
		if err != nil || t == nil {
			return nil, err
		}

		ok, err := f.pred.Filter(t)
		if err != nil {
			return nil, err
		}
		if ok {
			return t, nil
		}
	}
}
