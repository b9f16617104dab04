package optimizer

import (
	"context"
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
	"tupledb/disk/structures"
	"tupledb/execution/expressions"
	"tupledb/locker"
	"tupledb/transaction"
)

type statsEnv struct {
	pool    *buffer.BufferPool
	catalog *tables.InMemCatalog
}

func newStatsEnv(t *testing.T) *statsEnv {
	lm := locker.NewLockManager(10 * time.Millisecond)
	t.Cleanup(lm.Stop)

	ctg := tables.NewCatalog()
	return &statsEnv{pool: buffer.NewBufferPool(100, ctg, lm, nil, nil), catalog: ctg}
}

// newTable creates a table of n tuples (i, <letter>x) for i in [0, n).
func (e *statsEnv) newTable(t *testing.T, n int) *structures.HeapFile {
	desc := catalog.NewTupleDescFromTypes(
		[]db_types.TypeID{db_types.IntegerTypeID, db_types.StringTypeID},
		[]string{"id", "name"},
	)

	id, _ := uuid.NewUUID()
	f, err := structures.NewHeapFile(filepath.Join(t.TempDir(), id.String()+".dat"), desc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, e.catalog.AddTable(f, id.String()))

	tid := transaction.NewTxnID()
	for i := 0; i < n; i++ {
		tuple, err := catalog.NewTupleWithFields(desc,
			db_types.NewIntField(int32(i)),
			db_types.NewStringField(string(rune('a'+i%26))+"x"),
		)
		require.NoError(t, err)
		_, err = f.InsertTuple(e.pool, tid, tuple)
		require.NoError(t, err)
	}
	require.NoError(t, e.pool.TransactionComplete(tid, true))
	return f
}

func TestComputeTableStats(t *testing.T) {
	env := newStatsEnv(t)
	file := env.newTable(t, 1000)

	stats, err := ComputeTableStats(context.Background(), env.pool, file, 1000, 100)
	require.NoError(t, err)

	numPages, err := file.NumPages()
	require.NoError(t, err)
	assert.Greater(t, numPages, 1)

	assert.Equal(t, file.GetID(), stats.TableID())
	assert.Equal(t, 1000, stats.TotalTuples())
	assert.Equal(t, float64(numPages*1000), stats.EstimateScanCost())
	assert.Equal(t, 500, stats.EstimateTableCardinality(0.5))

	sel, err := stats.EstimateSelectivity(0, expressions.LessThan, db_types.NewIntField(500))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sel, 0.02)

	sel, err = stats.EstimateSelectivity(0, expressions.GreaterThan, db_types.NewIntField(5000))
	require.NoError(t, err)
	assert.Equal(t, 0.0, sel)

	sel, err = stats.EstimateSelectivity(1, expressions.Equal, db_types.NewStringField("zebra"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sel, 0.0)

	_, err = stats.EstimateSelectivity(1, expressions.Equal, db_types.NewIntField(1))
	assert.ErrorIs(t, err, db_types.ErrTypeMismatch)

	_, err = stats.EstimateSelectivity(2, expressions.Equal, db_types.NewIntField(1))
	assert.ErrorIs(t, err, catalog.ErrFieldIndex)
}

func TestComputeTableStats_Should_Release_Locks(t *testing.T) {
	env := newStatsEnv(t)
	file := env.newTable(t, 10)

	_, err := ComputeTableStats(context.Background(), env.pool, file, 1000, 10)
	require.NoError(t, err)

	// a writer would block forever if the stats transaction kept its shared lock
	tid := transaction.NewTxnID()
	_, err = env.pool.GetPage(tid, disk.PageID{TableID: file.GetID(), PageNo: 0}, transaction.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, env.pool.TransactionComplete(tid, true))
}

func TestComputeTableStats_Empty_Table(t *testing.T) {
	env := newStatsEnv(t)
	file := env.newTable(t, 0)

	stats, err := ComputeTableStats(context.Background(), env.pool, file, 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalTuples())
	assert.Equal(t, 0.0, stats.EstimateScanCost())

	sel, err := stats.EstimateSelectivity(0, expressions.Equal, db_types.NewIntField(0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, sel)
}

func TestComputeTableStats_Should_Stop_On_Cancelled_Context(t *testing.T) {
	env := newStatsEnv(t)
	file := env.newTable(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ComputeTableStats(ctx, env.pool, file, 1000, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeStatistics(t *testing.T) {
	env := newStatsEnv(t)
	files := []ScannableFile{env.newTable(t, 300), env.newTable(t, 50), env.newTable(t, 0)}

	res, err := ComputeStatistics(context.Background(), env.pool, files, DefaultIOCostPerPage, DefaultNumBuckets)
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.Equal(t, 300, res[files[0].GetID()].TotalTuples())
	assert.Equal(t, 50, res[files[1].GetID()].TotalTuples())
	assert.Equal(t, 0, res[files[2].GetID()].TotalTuples())
}
