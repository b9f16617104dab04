package structures

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tupledb/buffer"
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/catalog/tables"
	"tupledb/disk"
	"tupledb/disk/pages"
	"tupledb/execution"
	"tupledb/locker"
	"tupledb/transaction"
)

type testEnv struct {
	pool    *buffer.BufferPool
	catalog *tables.InMemCatalog
	dir     string
}

func newTestEnv(t *testing.T, poolSize int) *testEnv {
	lm := locker.NewLockManager(10 * time.Millisecond)
	t.Cleanup(lm.Stop)

	ctg := tables.NewCatalog()
	return &testEnv{
		pool:    buffer.NewBufferPool(poolSize, ctg, lm, nil, nil),
		catalog: ctg,
		dir:     t.TempDir(),
	}
}

func (e *testEnv) newHeapFile(t *testing.T, desc *catalog.TupleDesc) *HeapFile {
	id, _ := uuid.NewUUID()
	f, err := NewHeapFile(filepath.Join(e.dir, id.String()+".dat"), desc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	require.NoError(t, e.catalog.AddTable(f, id.String()))
	return f
}

func twoIntDesc() *catalog.TupleDesc {
	return catalog.NewTupleDescFromTypes([]db_types.TypeID{db_types.IntegerTypeID, db_types.IntegerTypeID}, []string{"a", "b"})
}

func intTuple(t *testing.T, desc *catalog.TupleDesc, vals ...int32) *catalog.Tuple {
	fields := make([]db_types.Field, len(vals))
	for i, v := range vals {
		fields[i] = db_types.NewIntField(v)
	}
	tuple, err := catalog.NewTupleWithFields(desc, fields...)
	require.NoError(t, err)
	return tuple
}

func drain(t *testing.T, it execution.DbFileIterator) []*catalog.Tuple {
	var res []*catalog.Tuple
	for {
		hasNext, err := it.HasNext()
		require.NoError(t, err)
		if !hasNext {
			break
		}

		tuple, err := it.Next()
		require.NoError(t, err)
		res = append(res, tuple)
	}

	_, err := it.Next()
	require.ErrorIs(t, err, execution.ErrNoSuchElement)
	return res
}

func fillTable(t *testing.T, env *testEnv, f *HeapFile, n int) {
	tid := transaction.NewTxnID()
	for i := 0; i < n; i++ {
		modified, err := f.InsertTuple(env.pool, tid, intTuple(t, f.Desc(), int32(i), int32(-i)))
		require.NoError(t, err)
		require.Len(t, modified, 1)

		dirtier, dirty := modified[0].IsDirty()
		require.True(t, dirty)
		require.Equal(t, tid, dirtier)
	}
	require.NoError(t, env.pool.TransactionComplete(tid, true))
}

func TestHeapFile_Iterator_Should_Yield_Tuples_In_Page_Then_Slot_Order(t *testing.T) {
	env := newTestEnv(t, 10)
	f := env.newHeapFile(t, twoIntDesc())

	perPage := pages.NumSlots(f.Desc())
	n := perPage*2 + 10
	fillTable(t, env, f, n)

	numPages, err := f.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 3, numPages)

	tid := transaction.NewTxnID()
	defer env.pool.TransactionComplete(tid, true)

	it := f.Iterator(env.pool, tid)
	require.NoError(t, it.Open())
	first := drain(t, it)
	require.Len(t, first, n)

	for i, tuple := range first {
		assert.Equal(t, db_types.NewIntField(int32(i)), tuple.Fields[0])
		require.NotNil(t, tuple.Rid)
		assert.Equal(t, f.GetID(), tuple.Rid.PageID.TableID)
		assert.Equal(t, int32(i/perPage), tuple.Rid.PageID.PageNo)
		assert.Equal(t, int32(i%perPage), tuple.Rid.SlotNo)
	}

	require.NoError(t, it.Rewind())
	second := drain(t, it)
	require.Len(t, second, n)
	for i := range first {
		assert.True(t, first[i].Equals(second[i]))
		assert.Equal(t, *first[i].Rid, *second[i].Rid)
	}

	require.NoError(t, it.Close())
	_, err = it.HasNext()
	assert.ErrorIs(t, err, execution.ErrIteratorClosed)
	assert.ErrorIs(t, it.Rewind(), execution.ErrIteratorClosed)
}

func TestHeapFile_Iterator_On_Empty_File(t *testing.T) {
	env := newTestEnv(t, 2)
	f := env.newHeapFile(t, twoIntDesc())
	tid := transaction.NewTxnID()
	defer env.pool.TransactionComplete(tid, true)

	it := f.Iterator(env.pool, tid)
	_, err := it.Next()
	assert.ErrorIs(t, err, execution.ErrIteratorClosed)

	require.NoError(t, it.Open())
	assert.Empty(t, drain(t, it))
	require.NoError(t, it.Close())
}

func TestHeapFile_Open_Close_Should_Not_Affect_Later_Iterators(t *testing.T) {
	env := newTestEnv(t, 4)
	f := env.newHeapFile(t, twoIntDesc())
	fillTable(t, env, f, 20)

	tid := transaction.NewTxnID()
	defer env.pool.TransactionComplete(tid, true)

	it := f.Iterator(env.pool, tid)
	require.NoError(t, it.Open())
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())

	numPages, err := f.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 1, numPages)

	require.NoError(t, it.Open())
	assert.Len(t, drain(t, it), 20)

	other := f.Iterator(env.pool, tid)
	require.NoError(t, other.Open())
	assert.Len(t, drain(t, other), 20)
}

func TestHeapFile_Iterator_Sees_Pages_Appended_After_Open(t *testing.T) {
	env := newTestEnv(t, 4)
	f := env.newHeapFile(t, twoIntDesc())

	tid := transaction.NewTxnID()
	defer env.pool.TransactionComplete(tid, true)

	it := f.Iterator(env.pool, tid)
	require.NoError(t, it.Open())

	_, err := f.InsertTuple(env.pool, tid, intTuple(t, f.Desc(), 1, 1))
	require.NoError(t, err)

	tuples := drain(t, it)
	require.Len(t, tuples, 1)
}

func TestHeapFile_InsertTuple_Should_Reject_Schema_Mismatch(t *testing.T) {
	env := newTestEnv(t, 2)
	f := env.newHeapFile(t, twoIntDesc())
	tid := transaction.NewTxnID()
	defer env.pool.TransactionComplete(tid, false)

	other := catalog.NewTupleDescFromTypes([]db_types.TypeID{db_types.StringTypeID}, nil)
	tuple, err := catalog.NewTupleWithFields(other, db_types.NewStringField("x"))
	require.NoError(t, err)

	_, err = f.InsertTuple(env.pool, tid, tuple)
	assert.ErrorIs(t, err, pages.ErrSchemaMismatch)

	numPages, err := f.NumPages()
	require.NoError(t, err)
	assert.Zero(t, numPages)
}

func TestHeapFile_DeleteTuple(t *testing.T) {
	env := newTestEnv(t, 4)
	f := env.newHeapFile(t, twoIntDesc())
	fillTable(t, env, f, 5)

	tid := transaction.NewTxnID()
	it := f.Iterator(env.pool, tid)
	require.NoError(t, it.Open())
	tuples := drain(t, it)
	require.NoError(t, it.Close())

	modified, err := f.DeleteTuple(env.pool, tid, tuples[2])
	require.NoError(t, err)
	require.Len(t, modified, 1)
	assert.Equal(t, tuples[2].Rid.PageID, modified[0].GetID())
	require.NoError(t, env.pool.TransactionComplete(tid, true))

	tid = transaction.NewTxnID()
	defer env.pool.TransactionComplete(tid, true)
	it = f.Iterator(env.pool, tid)
	require.NoError(t, it.Open())
	rest := drain(t, it)
	require.Len(t, rest, 4)
	for _, tuple := range rest {
		assert.NotEqual(t, db_types.NewIntField(2), tuple.Fields[0])
	}

	// the freed slot is the first empty one
	inserted := intTuple(t, f.Desc(), 99, 99)
	_, err = f.InsertTuple(env.pool, tid, inserted)
	require.NoError(t, err)
	assert.Equal(t, *tuples[2].Rid, *inserted.Rid)
}

func TestHeapFile_DeleteTuple_Should_Reject_Foreign_Tuples(t *testing.T) {
	env := newTestEnv(t, 4)
	f := env.newHeapFile(t, twoIntDesc())
	other := env.newHeapFile(t, twoIntDesc())
	fillTable(t, env, other, 1)

	tid := transaction.NewTxnID()
	defer env.pool.TransactionComplete(tid, true)

	it := other.Iterator(env.pool, tid)
	require.NoError(t, it.Open())
	tuples := drain(t, it)
	require.Len(t, tuples, 1)

	_, err := f.DeleteTuple(env.pool, tid, tuples[0])
	assert.ErrorIs(t, err, ErrTableMismatch)

	_, err = f.DeleteTuple(env.pool, tid, intTuple(t, f.Desc(), 1, 2))
	assert.ErrorIs(t, err, ErrTableMismatch)
}

func TestHeapFile_Aborted_Insert_Is_Not_Visible(t *testing.T) {
	env := newTestEnv(t, 4)
	f := env.newHeapFile(t, twoIntDesc())

	tid := transaction.NewTxnID()
	_, err := f.InsertTuple(env.pool, tid, intTuple(t, f.Desc(), 1, 2))
	require.NoError(t, err)
	require.NoError(t, env.pool.TransactionComplete(tid, false))

	tid = transaction.NewTxnID()
	defer env.pool.TransactionComplete(tid, true)
	it := f.Iterator(env.pool, tid)
	require.NoError(t, it.Open())
	assert.Empty(t, drain(t, it))
}

func TestHeapFile_ReadPage_And_WritePage(t *testing.T) {
	env := newTestEnv(t, 4)
	f := env.newHeapFile(t, twoIntDesc())
	fillTable(t, env, f, 3)

	pid := disk.PageID{TableID: f.GetID(), PageNo: 0}
	p, err := f.ReadPage(pid)
	require.NoError(t, err)
	hp := p.(*pages.HeapPage)
	require.Len(t, hp.Tuples(), 3)

	// appending a page at the end grows the file
	next, err := pages.NewHeapPage(disk.PageID{TableID: f.GetID(), PageNo: 1}, pages.EmptyPageData(), f.Desc())
	require.NoError(t, err)
	require.NoError(t, next.InsertTuple(intTuple(t, f.Desc(), 7, 7)))
	require.NoError(t, f.WritePage(next))

	numPages, err := f.NumPages()
	require.NoError(t, err)
	assert.Equal(t, 2, numPages)

	read, err := f.ReadPage(next.GetID())
	require.NoError(t, err)
	require.Len(t, read.(*pages.HeapPage).Tuples(), 1)

	_, err = f.ReadPage(disk.PageID{TableID: f.GetID() + 1, PageNo: 0})
	assert.ErrorIs(t, err, ErrTableMismatch)

	foreign, err := pages.NewHeapPage(disk.PageID{TableID: f.GetID() + 1, PageNo: 0}, pages.EmptyPageData(), f.Desc())
	require.NoError(t, err)
	assert.ErrorIs(t, f.WritePage(foreign), ErrTableMismatch)
}

func TestHeapFile_ReadPage_Should_Fail_On_Truncated_File(t *testing.T) {
	env := newTestEnv(t, 4)
	f := env.newHeapFile(t, twoIntDesc())
	fillTable(t, env, f, 3)

	require.NoError(t, os.Truncate(f.Path(), int64(disk.PageSize/2)))

	_, err := f.ReadPage(disk.PageID{TableID: f.GetID(), PageNo: 0})
	assert.ErrorIs(t, err, ErrStorage)
}

func TestHeapFile_GetID_Is_Derived_From_Path(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.dat")

	f1, err := NewHeapFile(path, twoIntDesc())
	require.NoError(t, err)
	defer f1.Close()

	f2, err := NewHeapFile(filepath.Join(dir, ".", "table.dat"), twoIntDesc())
	require.NoError(t, err)
	defer f2.Close()

	f3, err := NewHeapFile(filepath.Join(dir, "other.dat"), twoIntDesc())
	require.NoError(t, err)
	defer f3.Close()

	assert.Equal(t, f1.GetID(), f2.GetID())
	assert.NotEqual(t, f1.GetID(), f3.GetID())
}
