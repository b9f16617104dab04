package transaction

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrTransactionAborted is returned by page requests of a transaction that has been chosen as a deadlock victim.
// The owner of the transaction is expected to complete it with abort.
var ErrTransactionAborted = errors.New("transaction aborted")

type TxnID uint64

var txnCounter uint64 = 0

// NewTxnID returns a process wide unique, increasing transaction id. Larger ids belong to younger transactions.
func NewTxnID() TxnID {
	return TxnID(atomic.AddUint64(&txnCounter, 1))
}

func (t TxnID) String() string {
	return fmt.Sprintf("txn-%d", uint64(t))
}

// Permissions is the intent declared when a page is requested from the buffer pool.
type Permissions int

const (
	ReadOnly Permissions = iota
	ReadWrite
)

func (p Permissions) String() string {
	if p == ReadWrite {
		return "READ_WRITE"
	}
	return "READ_ONLY"
}
