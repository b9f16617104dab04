package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/catalog/tables"
	"tupledb/common"
	"tupledb/config"
	"tupledb/db"
	"tupledb/disk/structures"
	"tupledb/execution"
	"tupledb/execution/aggregation"
	"tupledb/execution/executors"
	"tupledb/execution/expressions"
	"tupledb/transaction"
)

// main loads a small employees/departments dataset and prints an aggregate of the salaries per department of
// employees earning more than a threshold.
func main() {
	configPath := flag.String("config", "", "path of the yaml config file")
	rows := flag.Int("rows", 1000, "number of employees to load into an empty database")
	minSalary := flag.Int("min-salary", 3000, "only employees earning more are aggregated")
	aggName := flag.String("agg", "avg", "aggregate of salaries: min, max, sum, avg or count")
	flag.Parse()

	op, err := aggregation.ParseAggOp(*aggName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if err := run(cfg, *rows, op, int32(*minSalary)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, rows int, op aggregation.AggOp, minSalary int32) error {
	d, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := load(d, rows); err != nil {
		return err
	}

	tid, err := d.BeginTxn()
	if err != nil {
		return err
	}
	if err := printSalaries(d.ExecutorContext(tid), d, op, minSalary); err != nil {
		abort(d, tid)
		return err
	}
	if err := d.Commit(tid); err != nil {
		return err
	}

	if err := d.ComputeStatistics(context.Background()); err != nil {
		return err
	}
	return d.SaveStatistics()
}

func load(d *db.DB, rows int) error {
	if _, err := d.Table("employees"); err == nil {
		return nil
	} else if !errors.Is(err, tables.ErrNoSuchTable) {
		return err
	}

	emp, err := d.CreateTable("employees", catalog.NewTupleDesc(
		catalog.Column{Name: "id", Type: db_types.IntegerTypeID},
		catalog.Column{Name: "dept_id", Type: db_types.IntegerTypeID},
		catalog.Column{Name: "salary", Type: db_types.IntegerTypeID},
	))
	if err != nil {
		return err
	}
	dept, err := d.CreateTable("departments", catalog.NewTupleDesc(
		catalog.Column{Name: "id", Type: db_types.IntegerTypeID},
		catalog.Column{Name: "name", Type: db_types.StringTypeID},
	))
	if err != nil {
		return err
	}

	tid, err := d.BeginTxn()
	if err != nil {
		return err
	}
	insert := func(f *structures.HeapFile, fields ...db_types.Field) error {
		t, err := catalog.NewTupleWithFields(f.Desc(), fields...)
		if err != nil {
			return err
		}
		_, err = f.InsertTuple(d.Pool(), tid, t)
		return err
	}

	for i, name := range []string{"engineering", "operations", "sales", "support"} {
		if err := insert(dept, db_types.NewIntField(int32(i)), db_types.NewStringField(name)); err != nil {
			abort(d, tid)
			return err
		}
	}

	for i := 0; i < rows; i++ {
		err := insert(emp,
			db_types.NewIntField(int32(i)),
			db_types.NewIntField(int32(i%4)),
			db_types.NewIntField(int32(1000+(i*37)%4000)),
		)
		if err != nil {
			abort(d, tid)
			return err
		}
	}
	return d.Commit(tid)
}

func abort(d *db.DB, tid transaction.TxnID) {
	if err := d.Abort(tid); err != nil {
		level.Warn(common.Logger()).Log("msg", "failed to abort transaction", "txn", tid, "err", err)
	}
}

func printSalaries(ctx *execution.ExecutorContext, d *db.DB, op aggregation.AggOp, minSalary int32) error {
	emp, err := d.Table("employees")
	if err != nil {
		return err
	}
	dept, err := d.Table("departments")
	if err != nil {
		return err
	}

	e, err := executors.NewSeqScan(ctx, emp.GetID(), "e")
	if err != nil {
		return err
	}
	dp, err := executors.NewSeqScan(ctx, dept.GetID(), "d")
	if err != nil {
		return err
	}

	filtered := executors.NewFilter(expressions.NewPredicate(2, expressions.GreaterThan, db_types.NewIntField(minSalary)), e)
	join := executors.NewJoin(expressions.NewJoinPredicate(1, expressions.Equal, 0), filtered, dp)

	// e.id, e.dept_id, e.salary, d.id, d.name
	agg, err := executors.NewAggregate(join, 2, 4, op)
	if err != nil {
		return err
	}

	if err := agg.Open(); err != nil {
		return err
	}
	defer agg.Close()

	fmt.Println(agg.Desc())
	for {
		t, err := next(agg)
		if err != nil || t == nil {
			return err
		}
		fmt.Println(t)
	}
}

func next(it execution.OpIterator) (*catalog.Tuple, error) {
	hasNext, err := it.HasNext()
	if err != nil || !hasNext {
		return nil, err
	}
	return it.Next()
}
