package concurrency

import (
	"sort"
	"sync"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"tupledb/buffer"
	"tupledb/common"
	"tupledb/transaction"
)

var (
	ErrTxnManagerClosed = errors.New("transaction manager is closed")
	ErrUnknownTxn       = errors.New("transaction is not active")
)

// TxnManager keeps track of running transactions and completes them through the buffer pool.
type TxnManager struct {
	actives map[transaction.TxnID]struct{}
	pool    buffer.Pool
	closed  bool
	mut     sync.Mutex
	newTxn  sync.RWMutex
}

func NewTxnManager(pool buffer.Pool) *TxnManager {
	return &TxnManager{
		actives: map[transaction.TxnID]struct{}{},
		pool:    pool,
	}
}

func (t *TxnManager) Begin() (transaction.TxnID, error) {
	t.newTxn.RLock()
	defer t.newTxn.RUnlock()

	t.mut.Lock()
	defer t.mut.Unlock()

	if t.closed {
		return 0, ErrTxnManagerClosed
	}

	id := transaction.NewTxnID()
	t.actives[id] = struct{}{}
	return id, nil
}

// Commit flushes the pages the transaction dirtied and releases its locks.
func (t *TxnManager) Commit(id transaction.TxnID) error {
	return t.complete(id, true)
}

// Abort drops the changes of the transaction and releases its locks. Transactions that got
// transaction.ErrTransactionAborted must be aborted.
func (t *TxnManager) Abort(id transaction.TxnID) error {
	return t.complete(id, false)
}

func (t *TxnManager) complete(id transaction.TxnID, commit bool) error {
	t.mut.Lock()
	if _, ok := t.actives[id]; !ok {
		t.mut.Unlock()
		return errors.Wrapf(ErrUnknownTxn, "txn %v", id)
	}
	delete(t.actives, id)
	t.mut.Unlock()

	return t.pool.TransactionComplete(id, commit)
}

// BlockNewTransactions makes Begin wait until ResumeNewTransactions is called. Running transactions are not
// affected.
func (t *TxnManager) BlockNewTransactions() {
	t.newTxn.Lock()
}

func (t *TxnManager) ResumeNewTransactions() {
	t.newTxn.Unlock()
}

// ActiveTransactions returns the ids of running transactions in ascending order.
func (t *TxnManager) ActiveTransactions() []transaction.TxnID {
	t.mut.Lock()
	defer t.mut.Unlock()

	res := make([]transaction.TxnID, 0, len(t.actives))
	for id := range t.actives {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Close rejects new transactions and aborts the running ones.
func (t *TxnManager) Close() error {
	t.BlockNewTransactions()
	t.mut.Lock()
	t.closed = true
	t.mut.Unlock()
	t.ResumeNewTransactions()

	var firstErr error
	for _, id := range t.ActiveTransactions() {
		level.Warn(common.Logger()).Log("msg", "aborting running transaction on close", "txn", id)
		if err := t.Abort(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
