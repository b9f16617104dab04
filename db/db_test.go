package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/catalog/tables"
	"tupledb/config"
	"tupledb/execution/aggregation"
	"tupledb/execution/executors"
	"tupledb/execution/expressions"
)

func mkDBTemp(t *testing.T) (*DB, *config.Config) {
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), uuid.New().String())
	cfg.LogLevel = "debug"
	cfg.Stats.SnapshotCodec = "zstd"

	d, err := Open(cfg)
	require.NoError(t, err)
	return d, cfg
}

func employeesDesc() *catalog.TupleDesc {
	return catalog.NewTupleDesc(
		catalog.Column{Name: "id", Type: db_types.IntegerTypeID},
		catalog.Column{Name: "dept", Type: db_types.StringTypeID},
		catalog.Column{Name: "salary", Type: db_types.IntegerTypeID},
	)
}

func insertEmployees(t *testing.T, d *DB, n int) {
	f, err := d.Table("employees")
	require.NoError(t, err)

	tid, err := d.BeginTxn()
	require.NoError(t, err)
	depts := []string{"eng", "ops", "sales"}
	for i := 0; i < n; i++ {
		tuple, err := catalog.NewTupleWithFields(f.Desc(),
			db_types.NewIntField(int32(i)),
			db_types.NewStringField(depts[i%len(depts)]),
			db_types.NewIntField(int32(100+i%10)),
		)
		require.NoError(t, err)
		_, err = f.InsertTuple(d.Pool(), tid, tuple)
		require.NoError(t, err)
	}
	require.NoError(t, d.Commit(tid))
}

func TestDB_Should_Persist_Tables_Across_Reopen(t *testing.T) {
	d, cfg := mkDBTemp(t)
	_, err := d.CreateTable("employees", employeesDesc())
	require.NoError(t, err)
	insertEmployees(t, d, 300)
	require.NoError(t, d.Close())

	d, err = Open(cfg)
	require.NoError(t, err)
	defer d.Close()

	f, err := d.Table("employees")
	require.NoError(t, err)
	assert.True(t, employeesDesc().Equals(f.Desc()))
	assert.Equal(t, "dept", f.Desc().FieldName(1))

	tid, err := d.BeginTxn()
	require.NoError(t, err)
	defer d.Commit(tid)

	scan, err := executors.NewSeqScan(d.ExecutorContext(tid), f.GetID(), "e")
	require.NoError(t, err)
	agg, err := executors.NewAggregate(scan, 0, 1, aggregation.Count)
	require.NoError(t, err)
	require.NoError(t, agg.Open())

	var rows []string
	for {
		hasNext, err := agg.HasNext()
		require.NoError(t, err)
		if !hasNext {
			break
		}
		tuple, err := agg.Next()
		require.NoError(t, err)
		rows = append(rows, tuple.String())
	}
	assert.Equal(t, []string{"eng\t100", "ops\t100", "sales\t100"}, rows)
}

func TestDB_CreateTable_Should_Reject_Duplicate_Names(t *testing.T) {
	d, _ := mkDBTemp(t)
	defer d.Close()

	_, err := d.CreateTable("employees", employeesDesc())
	require.NoError(t, err)

	_, err = d.CreateTable("employees", employeesDesc())
	assert.ErrorIs(t, err, tables.ErrTableNameTaken)

	_, err = d.Table("missing")
	assert.ErrorIs(t, err, tables.ErrNoSuchTable)
}

func TestDB_Abort_Should_Drop_Changes(t *testing.T) {
	d, _ := mkDBTemp(t)
	defer d.Close()

	f, err := d.CreateTable("employees", employeesDesc())
	require.NoError(t, err)
	insertEmployees(t, d, 10)

	tid, err := d.BeginTxn()
	require.NoError(t, err)
	ctx := d.ExecutorContext(tid)
	scan, err := executors.NewSeqScan(ctx, f.GetID(), "")
	require.NoError(t, err)
	del := executors.NewDelete(ctx, scan)
	require.NoError(t, del.Open())
	res, err := del.Next()
	require.NoError(t, err)
	assert.Equal(t, "10", res.String())
	require.NoError(t, del.Close())
	require.NoError(t, d.Abort(tid))

	require.NoError(t, d.ComputeStatistics(context.Background()))
	stats, err := d.TableStats("employees")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalTuples())
}

func TestDB_Statistics_Should_Be_Saved_And_Loaded(t *testing.T) {
	d, cfg := mkDBTemp(t)
	_, err := d.CreateTable("employees", employeesDesc())
	require.NoError(t, err)
	insertEmployees(t, d, 90)

	_, err = d.TableStats("employees")
	assert.Error(t, err)

	require.NoError(t, d.ComputeStatistics(context.Background()))
	stats, err := d.TableStats("employees")
	require.NoError(t, err)
	assert.Equal(t, 90, stats.TotalTuples())

	sel, err := stats.EstimateSelectivity(2, expressions.GreaterThanOrEqual, db_types.NewIntField(100))
	require.NoError(t, err)
	assert.Equal(t, 1.0, sel)

	require.NoError(t, d.SaveStatistics())
	require.NoError(t, d.Close())

	d, err = Open(cfg)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.LoadStatistics())
	loaded, err := d.TableStats("employees")
	require.NoError(t, err)
	assert.Equal(t, stats, loaded)
}

func TestDB_Should_Expose_Buffer_Pool_Metrics(t *testing.T) {
	d, _ := mkDBTemp(t)
	defer d.Close()

	_, err := d.CreateTable("employees", employeesDesc())
	require.NoError(t, err)
	insertEmployees(t, d, 5)

	n, err := testutil.GatherAndCount(d.Registry, "tupledb_buffer_pool_misses_total", "tupledb_buffer_pool_hits_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOpen_Should_Reject_Invalid_Config(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.BufferPoolPages = 0

	_, err := Open(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDB_Close_Should_Abort_Running_Transactions(t *testing.T) {
	d, cfg := mkDBTemp(t)
	f, err := d.CreateTable("employees", employeesDesc())
	require.NoError(t, err)

	tid, err := d.BeginTxn()
	require.NoError(t, err)
	tuple, err := catalog.NewTupleWithFields(f.Desc(), db_types.NewIntField(1), db_types.NewStringField("eng"), db_types.NewIntField(10))
	require.NoError(t, err)
	_, err = f.InsertTuple(d.Pool(), tid, tuple)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, err = d.BeginTxn()
	assert.Error(t, err)

	d, err = Open(cfg)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.ComputeStatistics(context.Background()))
	stats, err := d.TableStats("employees")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalTuples())
}
