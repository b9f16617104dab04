package aggregation

import (
	"github.com/pkg/errors"
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/execution"
)

// Aggregator computes an aggregate over groups of tuples. All tuples must be merged before Iterator is called.
type Aggregator interface {
	MergeTupleIntoGroup(t *catalog.Tuple) error

	// Iterator returns an iterator over one (group, aggregate) tuple per group, or a single (aggregate) tuple
	// when there is no grouping.
	Iterator() execution.OpIterator

	// Desc is the schema of the tuples yielded by Iterator.
	Desc() *catalog.TupleDesc
}

// groupTable keeps a running value and a tuple count per group. Groups are remembered in the order they are first
// seen so that the output is stable.
type groupTable struct {
	order  []GroupKey
	values map[GroupKey]int32
	counts map[GroupKey]int32
}

func newGroupTable() *groupTable {
	return &groupTable{
		values: map[GroupKey]int32{},
		counts: map[GroupKey]int32{},
	}
}

// update merges v into the group's running value with op. The first value of a group initializes it.
func (g *groupTable) update(key GroupKey, op AggOp, v int32) {
	curr, seen := g.values[key]
	if !seen {
		g.order = append(g.order, key)
	}

	switch op {
	case Min:
		if !seen || v < curr {
			g.values[key] = v
		}
	case Max:
		if !seen || v > curr {
			g.values[key] = v
		}
	case Sum, Avg:
		g.values[key] = curr + v
	case Count:
		g.values[key] = curr + 1
	}

	g.counts[key]++
}

// result returns the aggregate of the group. Average is computed here with integer division.
func (g *groupTable) result(key GroupKey, op AggOp) int32 {
	if op == Avg {
		return g.values[key] / g.counts[key]
	}
	return g.values[key]
}

type baseAggregator struct {
	gbField int
	gbType  db_types.TypeID
	aField  int
	op      AggOp
	table   *groupTable
	desc    *catalog.TupleDesc
}

func newBaseAggregator(gbField int, gbType db_types.TypeID, aField int, op AggOp) baseAggregator {
	types := []db_types.TypeID{db_types.IntegerTypeID}
	if gbField != NoGrouping {
		types = []db_types.TypeID{gbType, db_types.IntegerTypeID}
	}

	return baseAggregator{
		gbField: gbField,
		gbType:  gbType,
		aField:  aField,
		op:      op,
		table:   newGroupTable(),
		desc:    catalog.NewTupleDescFromTypes(types, nil),
	}
}

func (a *baseAggregator) groupKey(t *catalog.Tuple) (GroupKey, error) {
	if a.gbField == NoGrouping {
		return NoGroup{}, nil
	}

	f, err := t.GetField(a.gbField)
	if err != nil {
		return nil, err
	}
	if f.Type() != a.gbType {
		return nil, errors.Wrapf(db_types.ErrTypeMismatch, "group by field is %s, expected %s", f.Type(), a.gbType)
	}
	return keyOf(f)
}

func (a *baseAggregator) Desc() *catalog.TupleDesc {
	return a.desc
}

func (a *baseAggregator) Iterator() execution.OpIterator {
	return newResultIterator(a.table, a.op, a.desc)
}

// IntegerAggregator aggregates an integer field with any operator.
type IntegerAggregator struct {
	baseAggregator
}

var _ Aggregator = &IntegerAggregator{}

// NewIntegerAggregator creates an aggregator over field aField. gbField is the index of the group by field or
// NoGrouping, in which case gbType is ignored.
func NewIntegerAggregator(gbField int, gbType db_types.TypeID, aField int, op AggOp) (*IntegerAggregator, error) {
	if op < Min || op > Count {
		return nil, errors.Wrapf(ErrUnsupportedAggregate, "%v", op)
	}

	return &IntegerAggregator{baseAggregator: newBaseAggregator(gbField, gbType, aField, op)}, nil
}

func (a *IntegerAggregator) MergeTupleIntoGroup(t *catalog.Tuple) error {
	key, err := a.groupKey(t)
	if err != nil {
		return err
	}

	f, err := t.GetField(a.aField)
	if err != nil {
		return err
	}

	v, ok := f.(db_types.IntField)
	if !ok {
		return errors.Wrapf(db_types.ErrTypeMismatch, "aggregate field is %T", f)
	}

	a.table.update(key, a.op, v.Value)
	return nil
}

// StringAggregator aggregates a string field. Only Count is supported.
type StringAggregator struct {
	baseAggregator
}

var _ Aggregator = &StringAggregator{}

func NewStringAggregator(gbField int, gbType db_types.TypeID, aField int, op AggOp) (*StringAggregator, error) {
	if op != Count {
		return nil, errors.Wrapf(ErrUnsupportedAggregate, "%v over a string field", op)
	}

	return &StringAggregator{baseAggregator: newBaseAggregator(gbField, gbType, aField, op)}, nil
}

func (a *StringAggregator) MergeTupleIntoGroup(t *catalog.Tuple) error {
	key, err := a.groupKey(t)
	if err != nil {
		return err
	}

	if _, err := t.GetField(a.aField); err != nil {
		return err
	}

	a.table.update(key, Count, 0)
	return nil
}

// NewAggregator picks the aggregator for the type of the aggregate field.
func NewAggregator(aType db_types.TypeID, gbField int, gbType db_types.TypeID, aField int, op AggOp) (Aggregator, error) {
	if aType == db_types.StringTypeID {
		return NewStringAggregator(gbField, gbType, aField, op)
	}
	return NewIntegerAggregator(gbField, gbType, aField, op)
}
