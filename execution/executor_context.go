package execution

import (
	"tupledb/buffer"
	"tupledb/catalog/tables"
	"tupledb/transaction"
)

// ExecutorContext carries what operators need to reach pages: the transaction and the buffer pool handle.
type ExecutorContext struct {
	Txn     transaction.TxnID
	Catalog *tables.InMemCatalog
	Pool    buffer.Pool
}

func NewExecutorContext(txn transaction.TxnID, catalog *tables.InMemCatalog, pool buffer.Pool) *ExecutorContext {
	return &ExecutorContext{
		Txn:     txn,
		Catalog: catalog,
		Pool:    pool,
	}
}
