package executors

import (
	"tupledb/buffer"
	"tupledb/catalog"
	"tupledb/disk/pages"
	"tupledb/execution"
	"tupledb/transaction"
)

// scannable is a table file whose tuples can be iterated.
type scannable interface {
	buffer.DbFile
	Iterator(pool buffer.Pool, tid transaction.TxnID) execution.DbFileIterator
}

// modifiable is a table file tuples can be inserted into and deleted from.
type modifiable interface {
	buffer.DbFile
	InsertTuple(pool buffer.Pool, tid transaction.TxnID, t *catalog.Tuple) ([]pages.Page, error)
	DeleteTuple(pool buffer.Pool, tid transaction.TxnID, t *catalog.Tuple) ([]pages.Page, error)
}

// nextOf pulls the next tuple of it, returning nil when it is exhausted.
func nextOf(it execution.DbFileIterator) (*catalog.Tuple, error) {
	hasNext, err := it.HasNext()
	if err != nil || !hasNext {
		return nil, err
	}
	return it.Next()
}

func closeAll(its ...execution.DbFileIterator) error {
	var firstErr error
	for _, it := range its {
		if it == nil {
			continue
		}
		if err := it.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
