package optimizer

import (
	"context"
	"sync"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"tupledb/buffer"
	"tupledb/catalog"
	"tupledb/catalog/db_types"
	"tupledb/common"
	"tupledb/execution"
	"tupledb/execution/expressions"
	"tupledb/transaction"
)

const (
	DefaultIOCostPerPage = 1000
	DefaultNumBuckets    = 100
)

// ScannableFile is a table file statistics can be computed over.
type ScannableFile interface {
	GetID() int32
	Desc() *catalog.TupleDesc
	NumPages() (int, error)
	Iterator(pool buffer.Pool, tid transaction.TxnID) execution.DbFileIterator
}

// TableStats keeps a histogram per field of a table together with its size, for cost and cardinality estimates.
type TableStats struct {
	tableID       int32
	ioCostPerPage int
	numPages      int
	totalTuples   int
	types         []db_types.TypeID
	intHists      []*IntHistogram    // nil for string fields
	strHists      []*StringHistogram // nil for integer fields
}

// ComputeTableStats scans file twice in a new transaction, first to find the bounds of every integer field and
// then to fill the histograms. The transaction is committed when both scans succeed and aborted otherwise.
func ComputeTableStats(ctx context.Context, pool buffer.Pool, file ScannableFile, ioCostPerPage, buckets int) (*TableStats, error) {
	tid := transaction.NewTxnID()
	stats, err := computeTableStats(ctx, pool, tid, file, ioCostPerPage, buckets)
	if err != nil {
		if abortErr := pool.TransactionComplete(tid, false); abortErr != nil {
			level.Warn(common.Logger()).Log("msg", "aborting stats transaction failed", "txn", tid, "err", abortErr)
		}
		return nil, errors.Wrapf(err, "computing stats of table %d", file.GetID())
	}

	if err := pool.TransactionComplete(tid, true); err != nil {
		return nil, err
	}

	level.Debug(common.Logger()).Log("msg", "computed table stats", "table", file.GetID(), "pages", stats.numPages, "tuples", stats.totalTuples)
	return stats, nil
}

func computeTableStats(ctx context.Context, pool buffer.Pool, tid transaction.TxnID, file ScannableFile, ioCostPerPage, buckets int) (*TableStats, error) {
	desc := file.Desc()
	n := desc.NumFields()
	mins, maxs := make([]int32, n), make([]int32, n)

	it := file.Iterator(pool, tid)
	if err := it.Open(); err != nil {
		return nil, err
	}
	defer it.Close()

	total := 0
	err := forEach(ctx, it, func(t *catalog.Tuple) {
		for i, f := range t.Fields {
			v, ok := f.(db_types.IntField)
			if !ok {
				continue
			}
			if total == 0 || v.Value < mins[i] {
				mins[i] = v.Value
			}
			if total == 0 || v.Value > maxs[i] {
				maxs[i] = v.Value
			}
		}
		total++
	})
	if err != nil {
		return nil, err
	}

	stats := &TableStats{
		tableID:       file.GetID(),
		ioCostPerPage: ioCostPerPage,
		totalTuples:   total,
		types:         make([]db_types.TypeID, n),
		intHists:      make([]*IntHistogram, n),
		strHists:      make([]*StringHistogram, n),
	}
	for i := 0; i < n; i++ {
		stats.types[i] = desc.FieldType(i)
		if stats.types[i] == db_types.StringTypeID {
			stats.strHists[i] = NewStringHistogram(buckets)
		} else {
			stats.intHists[i] = NewIntHistogram(buckets, mins[i], maxs[i])
		}
	}

	if err := it.Rewind(); err != nil {
		return nil, err
	}
	err = forEach(ctx, it, func(t *catalog.Tuple) {
		for i, f := range t.Fields {
			switch v := f.(type) {
			case db_types.IntField:
				stats.intHists[i].AddValue(v.Value)
			case db_types.StringField:
				stats.strHists[i].AddValue(v.Value)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	if stats.numPages, err = file.NumPages(); err != nil {
		return nil, err
	}
	return stats, nil
}

func forEach(ctx context.Context, it execution.DbFileIterator, fn func(t *catalog.Tuple)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hasNext, err := it.HasNext()
		if err != nil {
			return err
		}
		if !hasNext {
			return nil
		}

		t, err := it.Next()
		if err != nil {
			return err
		}
		fn(t)
	}
}

// ComputeStatistics computes stats of all files concurrently, each in its own transaction. The first error cancels
// the remaining computations.
func ComputeStatistics(ctx context.Context, pool buffer.Pool, files []ScannableFile, ioCostPerPage, buckets int) (map[int32]*TableStats, error) {
	var mu sync.Mutex
	res := make(map[int32]*TableStats, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		file := file
		g.Go(func() error {
			stats, err := ComputeTableStats(ctx, pool, file, ioCostPerPage, buckets)
			if err != nil {
				return err
			}

			mu.Lock()
			res[file.GetID()] = stats
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *TableStats) TableID() int32 {
	return s.tableID
}

// EstimateScanCost estimates the cost of reading every page of the table once.
func (s *TableStats) EstimateScanCost() float64 {
	return float64(s.numPages) * float64(s.ioCostPerPage)
}

// EstimateTableCardinality returns the number of tuples left after applying a predicate with given selectivity.
func (s *TableStats) EstimateTableCardinality(selectivity float64) int {
	return int(float64(s.totalTuples) * selectivity)
}

func (s *TableStats) TotalTuples() int {
	return s.totalTuples
}

// EstimateSelectivity estimates the fraction of tuples whose field satisfies "field op constant".
func (s *TableStats) EstimateSelectivity(field int, op expressions.CompType, constant db_types.Field) (float64, error) {
	if field < 0 || field >= len(s.types) {
		return 0, errors.Wrapf(catalog.ErrFieldIndex, "index %d, table has %d fields", field, len(s.types))
	}

	switch c := constant.(type) {
	case db_types.IntField:
		if s.intHists[field] != nil {
			return s.intHists[field].EstimateSelectivity(op, c.Value), nil
		}
	case db_types.StringField:
		if s.strHists[field] != nil {
			return s.strHists[field].EstimateSelectivity(op, c.Value), nil
		}
	}

	return 0, errors.Wrapf(db_types.ErrTypeMismatch, "field %d is %s, constant is %s", field, s.types[field], constant.Type())
}

// AvgSelectivity returns the average selectivity of op over field. It is not estimated and always 1.
func (s *TableStats) AvgSelectivity(field int, op expressions.CompType) float64 {
	return 1.0
}
