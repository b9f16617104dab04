package executors

import (
	"tupledb/catalog"
	"tupledb/execution"
	"tupledb/execution/expressions"
)

type joinState int

const (
	// needOuter means the next outer tuple must be read before scanning the inner child.
	needOuter joinState = iota
	// scanningInner means the inner child is being scanned for matches of outerTuple.
	scanningInner
	// done means the outer child is exhausted.
	done
)

// Join is a nested loop join. For every tuple of the outer child the inner child is scanned completely and merged
// tuples are yielded for every pair satisfying the predicate. The inner child is rewound exactly once per outer
// tuple, after it is drained.
type Join struct {
	execution.BaseIterator
	pred  *expressions.JoinPredicate
	outer execution.OpIterator
	inner execution.OpIterator
	desc  *catalog.TupleDesc

	state      joinState
	outerTuple *catalog.Tuple
}

var _ execution.OpIterator = &Join{}

func NewJoin(pred *expressions.JoinPredicate, outer, inner execution.OpIterator) *Join {
	j := &Join{
		pred:  pred,
		outer: outer,
		inner: inner,
		desc:  catalog.Merge(outer.Desc(), inner.Desc()),
	}
	j.FetchNext = j.fetchNext
	return j
}

func (j *Join) Predicate() *expressions.JoinPredicate {
	return j.pred
}

// JoinField1Name returns the name of the outer join field, which is qualified by the alias if the child is a scan.
func (j *Join) JoinField1Name() string {
	return j.outer.Desc().FieldName(j.pred.Field1)
}

// JoinField2Name returns the name of the inner join field.
func (j *Join) JoinField2Name() string {
	return j.inner.Desc().FieldName(j.pred.Field2)
}

func (j *Join) Children() []execution.OpIterator {
	return []execution.OpIterator{j.outer, j.inner}
}

// Desc is the concatenation of the children's descs. Join fields of both sides are kept.
func (j *Join) Desc() *catalog.TupleDesc {
	return j.desc
}

func (j *Join) Open() error {
	if err := j.outer.Open(); err != nil {
		return err
	}
	if err := j.inner.Open(); err != nil {
		j.outer.Close()
		return err
	}

	j.state = needOuter
	j.outerTuple = nil
	return j.BaseIterator.Open()
}

func (j *Join) Rewind() error {
	if err := j.CheckOpen(); err != nil {
		return err
	}
	if err := j.outer.Rewind(); err != nil {
		return err
	}
	if err := j.inner.Rewind(); err != nil {
		return err
	}

	j.state = needOuter
	j.outerTuple = nil
	j.ResetPending()
	return nil
}

func (j *Join) Close() error {
	j.outerTuple = nil
	err := closeAll(j.outer, j.inner)
	if closeErr := j.BaseIterator.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (j *Join) fetchNext() (*catalog.Tuple, error) {
	for {
		switch j.state {
		case done:
			return nil, nil

		case needOuter:
			t, err := nextOf(j.outer)
			if err != nil {
				return nil, err
			}
			if t == nil {
				j.state = done
				continue
			}

			j.outerTuple = t
			j.state = scanningInner

		case scanningInner:
			t, err := nextOf(j.inner)
			if err != nil {
				return nil, err
			}
			if t == nil {
				if err := j.inner.Rewind(); err != nil {
					return nil, err
				}
				j.outerTuple = nil
				j.state = needOuter
				continue
			}

			ok, err := j.pred.Filter(j.outerTuple, t)
			if err != nil {
				return nil, err
			}
			if ok {
				return catalog.MergeTuples(j.desc, j.outerTuple, t), nil
			}
		}
	}
}
