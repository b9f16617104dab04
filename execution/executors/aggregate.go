package executors

import (
	"fmt"

	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/execution"
	"tupledb/execution/aggregation"
)

// Aggregate computes an aggregate over its child, optionally grouped by a field. The child is drained when the
// operator is opened.
type Aggregate struct {
	execution.BaseIterator
	child  execution.OpIterator
	aField int
	gField int
	op     aggregation.AggOp
	desc   *catalog.TupleDesc

	results execution.OpIterator
}

var _ execution.OpIterator = &Aggregate{}

// NewAggregate creates the operator. gField is aggregation.NoGrouping for a single group. Operators other than
// count over a string field are rejected.
func NewAggregate(child execution.OpIterator, aField, gField int, op aggregation.AggOp) (*Aggregate, error) {
	a := &Aggregate{
		child:  child,
		aField: aField,
		gField: gField,
		op:     op,
	}

	// validates the operator for the field type and the field indexes
	if _, err := a.newAggregator(); err != nil {
		return nil, err
	}

	childDesc := child.Desc()
	aggCol := catalog.Column{
		Name: fmt.Sprintf("%s(%s)", op, childDesc.FieldName(aField)),
		Type: db_types.IntegerTypeID,
	}
	if gField == aggregation.NoGrouping {
		a.desc = catalog.NewTupleDesc(aggCol)
	} else {
		groupCol := catalog.Column{Name: childDesc.FieldName(gField), Type: childDesc.FieldType(gField)}
		a.desc = catalog.NewTupleDesc(groupCol, aggCol)
	}

	a.FetchNext = a.fetchNext
	return a, nil
}

func (a *Aggregate) newAggregator() (aggregation.Aggregator, error) {
	childDesc := a.child.Desc()
	aCol, err := childDesc.GetColumn(a.aField)
	if err != nil {
		return nil, err
	}

	var gType db_types.TypeID
	if a.gField != aggregation.NoGrouping {
		gCol, err := childDesc.GetColumn(a.gField)
		if err != nil {
			return nil, err
		}
		gType = gCol.Type
	}

	return aggregation.NewAggregator(aCol.Type, a.gField, gType, a.aField, a.op)
}

// GroupField returns the group by field index or aggregation.NoGrouping.
func (a *Aggregate) GroupField() int {
	return a.gField
}

// GroupFieldName returns the name of the group by field, empty if there is no grouping.
func (a *Aggregate) GroupFieldName() string {
	if a.gField == aggregation.NoGrouping {
		return ""
	}
	return a.child.Desc().FieldName(a.gField)
}

func (a *Aggregate) AggregateField() int {
	return a.aField
}

func (a *Aggregate) AggregateFieldName() string {
	return a.child.Desc().FieldName(a.aField)
}

func (a *Aggregate) AggregateOp() aggregation.AggOp {
	return a.op
}

func (a *Aggregate) Children() []execution.OpIterator {
	return []execution.OpIterator{a.child}
}

func (a *Aggregate) Desc() *catalog.TupleDesc {
	return a.desc
}

func (a *Aggregate) Open() error {
	if err := a.child.Open(); err != nil {
		return err
	}
	if err := a.aggregate(); err != nil {
		closeAll(a.results, a.child)
		a.results = nil
		return err
	}
	return a.BaseIterator.Open()
}

// aggregate drains the child into a new aggregator and opens its results.
func (a *Aggregate) aggregate() error {
	agg, err := a.newAggregator()
	if err != nil {
		return err
	}

	for {
		t, err := nextOf(a.child)
		if err != nil {
			return err
		}
		if t == nil {
			break
		}
		if err := agg.MergeTupleIntoGroup(t); err != nil {
			return err
		}
	}

	a.results = agg.Iterator()
	return a.results.Open()
}

// Rewind restarts the output. The aggregate is not recomputed.
func (a *Aggregate) Rewind() error {
	if err := a.CheckOpen(); err != nil {
		return err
	}
	if err := a.results.Rewind(); err != nil {
		return err
	}

	a.ResetPending()
	return nil
}

func (a *Aggregate) Close() error {
	err := closeAll(a.results, a.child)
	a.results = nil
	if closeErr := a.BaseIterator.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (a *Aggregate) fetchNext() (*catalog.Tuple, error) {
	t, err := nextOf(a.results)
	if err != nil || t == nil {
		return nil, err
	}

	t.Desc = a.desc
	return t, nil
}
