package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tupledb/catalog/db_types"
)

func abDesc() *TupleDesc {
	return NewTupleDesc(
		Column{Name: "a", Type: db_types.IntegerTypeID},
		Column{Name: "b", Type: db_types.StringTypeID},
	)
}

func TestTupleDesc_Merge_Concatenates_Columns(t *testing.T) {
	left := abDesc()
	right := NewTupleDesc(Column{Name: "c", Type: db_types.IntegerTypeID})

	merged := Merge(left, right)
	assert.Equal(t, 3, merged.NumFields())
	assert.Equal(t, "c", merged.FieldName(2))
	assert.Equal(t, left.Size()+right.Size(), merged.Size())

	idx, err := merged.FieldIndex("b")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = merged.FieldIndex("d")
	assert.ErrorIs(t, err, ErrNoSuchColumn)
}

func TestTupleDesc_Equals_Ignores_Names(t *testing.T) {
	other := NewTupleDescFromTypes([]db_types.TypeID{db_types.IntegerTypeID, db_types.StringTypeID}, nil)
	assert.True(t, abDesc().Equals(other))

	swapped := NewTupleDescFromTypes([]db_types.TypeID{db_types.StringTypeID, db_types.IntegerTypeID}, nil)
	assert.False(t, abDesc().Equals(swapped))
	assert.False(t, abDesc().Equals(nil))
}

func TestTuple_SetField_Should_Check_Bounds_And_Types(t *testing.T) {
	tuple := NewTuple(abDesc())

	assert.ErrorIs(t, tuple.SetField(2, db_types.NewIntField(1)), ErrFieldIndex)
	assert.ErrorIs(t, tuple.SetField(0, db_types.NewStringField("x")), db_types.ErrTypeMismatch)
	require.NoError(t, tuple.SetField(0, db_types.NewIntField(7)))

	f, err := tuple.GetField(0)
	require.NoError(t, err)
	assert.Equal(t, db_types.NewIntField(7), f)

	_, err = tuple.GetField(-1)
	assert.ErrorIs(t, err, ErrFieldIndex)
}

func TestTuple_Serialize_Then_Deserialize(t *testing.T) {
	tuple, err := NewTupleWithFields(abDesc(), db_types.NewIntField(42), db_types.NewStringField("codec"))
	require.NoError(t, err)

	buf := make([]byte, abDesc().Size())
	require.NoError(t, tuple.Serialize(buf))

	read, err := DeserializeTuple(abDesc(), buf)
	require.NoError(t, err)
	assert.True(t, tuple.Equals(read))
	assert.Nil(t, read.Rid)
}

func TestMergeTuples(t *testing.T) {
	left, err := NewTupleWithFields(abDesc(), db_types.NewIntField(1), db_types.NewStringField("x"))
	require.NoError(t, err)
	rightDesc := NewTupleDesc(Column{Name: "c", Type: db_types.IntegerTypeID})
	right, err := NewTupleWithFields(rightDesc, db_types.NewIntField(2))
	require.NoError(t, err)

	merged := MergeTuples(Merge(abDesc(), rightDesc), left, right)
	assert.Equal(t, "1\tx\t2", merged.String())
}
