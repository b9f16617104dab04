package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/execution"
)

var kvDesc = catalog.NewTupleDescFromTypes([]db_types.TypeID{db_types.IntegerTypeID, db_types.IntegerTypeID}, []string{"k", "v"})

func kv(t *testing.T, k, v int32) *catalog.Tuple {
	tuple, err := catalog.NewTupleWithFields(kvDesc, db_types.NewIntField(k), db_types.NewIntField(v))
	require.NoError(t, err)
	return tuple
}

func merge(t *testing.T, a Aggregator, tuples ...*catalog.Tuple) {
	for _, tuple := range tuples {
		require.NoError(t, a.MergeTupleIntoGroup(tuple))
	}
}

// results drains the aggregator's iterator into a map from group value to aggregate value.
func results(t *testing.T, a Aggregator) map[db_types.Field]int32 {
	it := a.Iterator()
	require.NoError(t, it.Open())
	defer it.Close()

	res := map[db_types.Field]int32{}
	for {
		hasNext, err := it.HasNext()
		require.NoError(t, err)
		if !hasNext {
			break
		}

		tuple, err := it.Next()
		require.NoError(t, err)
		require.Equal(t, 2, len(tuple.Fields))

		_, dup := res[tuple.Fields[0]]
		require.False(t, dup, "duplicate group %v", tuple.Fields[0])
		res[tuple.Fields[0]] = tuple.Fields[1].(db_types.IntField).Value
	}
	return res
}

func TestIntegerAggregator_Grouped(t *testing.T) {
	input := func() []*catalog.Tuple {
		return []*catalog.Tuple{kv(t, 1, 10), kv(t, 1, 20), kv(t, 2, 5)}
	}

	cases := []struct {
		op   AggOp
		want map[db_types.Field]int32
	}{
		{Sum, map[db_types.Field]int32{db_types.NewIntField(1): 30, db_types.NewIntField(2): 5}},
		{Avg, map[db_types.Field]int32{db_types.NewIntField(1): 15, db_types.NewIntField(2): 5}},
		{Min, map[db_types.Field]int32{db_types.NewIntField(1): 10, db_types.NewIntField(2): 5}},
		{Max, map[db_types.Field]int32{db_types.NewIntField(1): 20, db_types.NewIntField(2): 5}},
		{Count, map[db_types.Field]int32{db_types.NewIntField(1): 2, db_types.NewIntField(2): 1}},
	}

	for _, c := range cases {
		t.Run(c.op.String(), func(t *testing.T) {
			a, err := NewIntegerAggregator(0, db_types.IntegerTypeID, 1, c.op)
			require.NoError(t, err)
			merge(t, a, input()...)
			assert.Equal(t, c.want, results(t, a))
		})
	}
}

func TestIntegerAggregator_Avg_Truncates(t *testing.T) {
	a, err := NewIntegerAggregator(0, db_types.IntegerTypeID, 1, Avg)
	require.NoError(t, err)
	merge(t, a, kv(t, 1, 15), kv(t, 1, 16))

	assert.Equal(t, map[db_types.Field]int32{db_types.NewIntField(1): 15}, results(t, a))
}

func TestIntegerAggregator_Min_Max_Handle_Negative_First_Values(t *testing.T) {
	a, err := NewIntegerAggregator(0, db_types.IntegerTypeID, 1, Max)
	require.NoError(t, err)
	merge(t, a, kv(t, 1, -7), kv(t, 1, -9))
	assert.Equal(t, map[db_types.Field]int32{db_types.NewIntField(1): -7}, results(t, a))

	a, err = NewIntegerAggregator(0, db_types.IntegerTypeID, 1, Min)
	require.NoError(t, err)
	merge(t, a, kv(t, 1, 7), kv(t, 1, 9))
	assert.Equal(t, map[db_types.Field]int32{db_types.NewIntField(1): 7}, results(t, a))
}

func TestIntegerAggregator_NoGrouping_Count(t *testing.T) {
	a, err := NewIntegerAggregator(NoGrouping, 0, 1, Count)
	require.NoError(t, err)
	merge(t, a, kv(t, 1, 10), kv(t, 1, 20), kv(t, 2, 5))

	assert.Equal(t, 1, a.Desc().NumFields())

	it := a.Iterator()
	require.NoError(t, it.Open())
	tuple, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, []db_types.Field{db_types.NewIntField(3)}, tuple.Fields)

	_, err = it.Next()
	assert.ErrorIs(t, err, execution.ErrNoSuchElement)

	require.NoError(t, it.Rewind())
	again, err := it.Next()
	require.NoError(t, err)
	assert.True(t, tuple.Equals(again))
}

func TestIntegerAggregator_Empty_Input_Yields_Nothing(t *testing.T) {
	for _, gb := range []int{NoGrouping, 0} {
		a, err := NewIntegerAggregator(gb, db_types.IntegerTypeID, 1, Avg)
		require.NoError(t, err)

		it := a.Iterator()
		require.NoError(t, it.Open())
		hasNext, err := it.HasNext()
		require.NoError(t, err)
		assert.False(t, hasNext)
	}
}

func TestIntegerAggregator_Output_Desc(t *testing.T) {
	a, err := NewIntegerAggregator(0, db_types.StringTypeID, 1, Sum)
	require.NoError(t, err)
	assert.Equal(t, db_types.StringTypeID, a.Desc().FieldType(0))
	assert.Equal(t, db_types.IntegerTypeID, a.Desc().FieldType(1))
	assert.Same(t, a.Desc(), a.Iterator().Desc())
}

func TestIntegerAggregator_Should_Reject_Wrong_Group_Type(t *testing.T) {
	a, err := NewIntegerAggregator(0, db_types.StringTypeID, 1, Sum)
	require.NoError(t, err)
	assert.ErrorIs(t, a.MergeTupleIntoGroup(kv(t, 1, 1)), db_types.ErrTypeMismatch)
}

func TestStringAggregator_Should_Only_Support_Count(t *testing.T) {
	for _, op := range []AggOp{Min, Max, Sum, Avg} {
		_, err := NewStringAggregator(NoGrouping, 0, 0, op)
		assert.ErrorIs(t, err, ErrUnsupportedAggregate)
	}

	desc := catalog.NewTupleDescFromTypes([]db_types.TypeID{db_types.StringTypeID, db_types.StringTypeID}, nil)
	row := func(k, v string) *catalog.Tuple {
		tuple, err := catalog.NewTupleWithFields(desc, db_types.NewStringField(k), db_types.NewStringField(v))
		require.NoError(t, err)
		return tuple
	}

	a, err := NewStringAggregator(0, db_types.StringTypeID, 1, Count)
	require.NoError(t, err)
	merge(t, a, row("x", "a"), row("y", "b"), row("x", "c"))

	assert.Equal(t, map[db_types.Field]int32{
		db_types.NewStringField("x"): 2,
		db_types.NewStringField("y"): 1,
	}, results(t, a))
}

func TestIterator_Should_Keep_First_Seen_Group_Order(t *testing.T) {
	a, err := NewIntegerAggregator(0, db_types.IntegerTypeID, 1, Sum)
	require.NoError(t, err)
	merge(t, a, kv(t, 3, 1), kv(t, 1, 1), kv(t, 2, 1), kv(t, 1, 1))

	it := a.Iterator()
	require.NoError(t, it.Open())
	var order []string
	for {
		hasNext, err := it.HasNext()
		require.NoError(t, err)
		if !hasNext {
			break
		}
		tuple, err := it.Next()
		require.NoError(t, err)
		order = append(order, tuple.String())
	}
	assert.Equal(t, []string{"3\t1", "1\t2", "2\t1"}, order)
}

func TestParseAggOp(t *testing.T) {
	op, err := ParseAggOp("AVG")
	require.NoError(t, err)
	assert.Equal(t, Avg, op)

	_, err = ParseAggOp("median")
	assert.Error(t, err)
}

func TestGroupKeys_Compare_By_Value(t *testing.T) {
	k1, err := keyOf(db_types.NewStringField("a"))
	require.NoError(t, err)
	k2, err := keyOf(db_types.NewStringField("a"))
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.True(t, k1 == k2)

	i1, err := keyOf(db_types.NewIntField(1))
	require.NoError(t, err)
	assert.False(t, k1 == i1)
	assert.Nil(t, NoGroup{}.Field())
}
