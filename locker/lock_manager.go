package locker

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"tupledb/common"
	"tupledb/disk"
	"tupledb/transaction"
)

var ErrDeadLock = errors.New("deadlock detected")

const DefaultDeadlockCheckInterval = 50 * time.Millisecond

type LockMode int

const (
	SharedLock LockMode = iota
	ExclusiveLock
)

func (m LockMode) String() string {
	if m == ExclusiveLock {
		return "exclusive"
	}
	return "shared"
}

type LockRequest struct {
	TxID     transaction.TxnID
	Mode     LockMode
	Response chan error
}

type lockState struct {
	sync.Mutex
	owners         map[transaction.TxnID]LockMode
	waitQueue      []LockRequest
	waitingWriters uint
}

// LockManager grants page level shared and exclusive locks to transactions. Locks are held until ReleaseLocks is
// called for the transaction. A background routine periodically looks for cycles in the waits-for graph and aborts
// the youngest transaction of a cycle by resolving its pending request with ErrDeadLock.
type LockManager struct {
	locks    common.SyncMap[disk.PageID, *lockState]
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewLockManager(deadlockCheckInterval time.Duration) *LockManager {
	if deadlockCheckInterval <= 0 {
		deadlockCheckInterval = DefaultDeadlockCheckInterval
	}

	lm := &LockManager{
		stopChan: make(chan struct{}),
	}
	go lm.deadlockDetectorRoutine(deadlockCheckInterval)
	return lm
}

func (lm *LockManager) AcquireLock(pageID disk.PageID, txID transaction.TxnID, mode LockMode) error {
	request := LockRequest{TxID: txID, Mode: mode, Response: make(chan error, 1)}

	ls, _ := lm.locks.LoadOrStore(pageID, &lockState{owners: make(map[transaction.TxnID]LockMode)})
	ls.Lock()

	// a transaction that already owns the page is never queued behind others when its request is compatible,
	// otherwise it would wait for itself.
	_, owns := ls.owners[txID]
	if (owns || ls.waitingWriters == 0) && lm.canAcquire(ls, txID, mode) {
		lm.grant(ls, txID, mode, true)
		ls.Unlock()
		return nil
	}

	// otherwise put it into the waiting queue
	ls.waitQueue = append(ls.waitQueue, request)
	if mode == ExclusiveLock {
		ls.waitingWriters++
	}
	ls.Unlock()

	// wait for lock to be granted or transaction to be aborted
	return <-request.Response
}

func (lm *LockManager) ReleaseLock(pageID disk.PageID, txID transaction.TxnID) {
	ls, exists := lm.locks.Load(pageID)
	if !exists {
		panic("unlocked non-existing lock")
	}

	ls.Lock()
	defer ls.Unlock()

	if _, ok := ls.owners[txID]; !ok {
		panic("unlocked non-existing lock")
	}

	delete(ls.owners, txID)
	lm.grantWaiting(ls)
}

// ReleaseLocks releases every lock the transaction holds and drops its pending requests.
func (lm *LockManager) ReleaseLocks(txID transaction.TxnID) {
	lm.locks.Range(func(pageID disk.PageID, ls *lockState) bool {
		ls.Lock()
		defer ls.Unlock()

		lm.dropRequests(ls, txID, transaction.ErrTransactionAborted)
		if _, ok := ls.owners[txID]; ok {
			delete(ls.owners, txID)
		}
		lm.grantWaiting(ls)
		return true
	})
}

// HoldsLock returns the mode of the lock the transaction holds on the page, if any.
func (lm *LockManager) HoldsLock(pageID disk.PageID, txID transaction.TxnID) (LockMode, bool) {
	ls, exists := lm.locks.Load(pageID)
	if !exists {
		return 0, false
	}

	ls.Lock()
	defer ls.Unlock()
	mode, ok := ls.owners[txID]
	return mode, ok
}

// canAcquire returns true if lock request can be granted without conflicting with current owners.
func (lm *LockManager) canAcquire(lockInfo *lockState, txID transaction.TxnID, mode LockMode) bool {
	if lockMode, ok := lockInfo.owners[txID]; ok {
		// wants the same lock it has or wants shared when has exclusive
		if lockMode == mode || mode == SharedLock {
			return true
		}

		// upgrade case, where txn already has read lock, wants the write lock and is the only owner.
		return len(lockInfo.owners) == 1
	}

	if len(lockInfo.owners) == 0 {
		return true
	}

	if mode == SharedLock {
		for _, lockMode := range lockInfo.owners {
			return lockMode == SharedLock
		}
	}

	return false
}

// grant updates lockState so that txID added to owners.
func (lm *LockManager) grant(lockInfo *lockState, txID transaction.TxnID, mode LockMode, noWait bool) {
	if mode == ExclusiveLock && !noWait {
		lockInfo.waitingWriters--
	}

	// an exclusive owner asking for shared keeps its exclusive lock
	if held, ok := lockInfo.owners[txID]; ok && held == ExclusiveLock {
		return
	}
	lockInfo.owners[txID] = mode
}

// grantWaiting grants requests in waiting queue in order until it finds one that cannot be granted.
func (lm *LockManager) grantWaiting(ls *lockState) {
	grantedRequests := 0

	for _, request := range ls.waitQueue {
		if !lm.canAcquire(ls, request.TxID, request.Mode) {
			break
		}

		lm.grant(ls, request.TxID, request.Mode, false)
		request.Response <- nil
		grantedRequests++
	}

	ls.waitQueue = ls.waitQueue[grantedRequests:]
}

// dropRequests resolves all pending requests of txID with err and removes them from the queue.
func (lm *LockManager) dropRequests(ls *lockState, txID transaction.TxnID, err error) bool {
	dropped := false
	kept := ls.waitQueue[:0]
	for _, req := range ls.waitQueue {
		if req.TxID != txID {
			kept = append(kept, req)
			continue
		}

		if req.Mode == ExclusiveLock {
			ls.waitingWriters--
		}
		req.Response <- err
		dropped = true
	}
	ls.waitQueue = kept
	return dropped
}

func (lm *LockManager) deadlockDetectorRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			wg := lm.buildWaitGraph()
			lm.detectDeadlock(wg)
		case <-lm.stopChan:
			return
		}
	}
}

// buildWaitGraph returns waits-for edges. A waiting request waits for every owner of the page and for every request
// queued before it, since the queue is granted in order.
func (lm *LockManager) buildWaitGraph() map[transaction.TxnID]map[transaction.TxnID]bool {
	graph := map[transaction.TxnID]map[transaction.TxnID]bool{}
	addEdge := func(from, to transaction.TxnID) {
		// can wait for itself in upgrade case
		if from == to {
			return
		}
		if _, ok := graph[from]; !ok {
			graph[from] = make(map[transaction.TxnID]bool)
		}
		graph[from][to] = true
	}

	lm.locks.Range(func(pageID disk.PageID, ls *lockState) bool {
		ls.Lock()
		defer ls.Unlock()

		for i, request := range ls.waitQueue {
			for owner := range ls.owners {
				addEdge(request.TxID, owner)
			}
			for _, before := range ls.waitQueue[:i] {
				addEdge(request.TxID, before.TxID)
			}
		}

		return true
	})

	return graph
}

func (lm *LockManager) detectDeadlock(waitGraph map[transaction.TxnID]map[transaction.TxnID]bool) {
	cycle := findCycle(waitGraph)
	if cycle == nil {
		return
	}

	victim := findLargestTxID(cycle)
	level.Warn(common.Logger()).Log("msg", "deadlock detected", "txns", fmt.Sprint(cycle), "victim", victim)
	lm.abortTransaction(victim)
}

// findCycle returns the transactions of a cycle in the graph, or nil if the graph is acyclic. Nodes are visited in
// id order so that the result is deterministic.
func findCycle(waitGraph map[transaction.TxnID]map[transaction.TxnID]bool) []transaction.TxnID {
	visited := make(map[transaction.TxnID]bool)
	onStack := make(map[transaction.TxnID]int)
	var stack []transaction.TxnID

	var visit func(txID transaction.TxnID) []transaction.TxnID
	visit = func(txID transaction.TxnID) []transaction.TxnID {
		visited[txID] = true
		onStack[txID] = len(stack)
		stack = append(stack, txID)

		for _, waitingFor := range sortedKeys(waitGraph[txID]) {
			if idx, ok := onStack[waitingFor]; ok {
				cycle := make([]transaction.TxnID, len(stack)-idx)
				copy(cycle, stack[idx:])
				return cycle
			}
			if !visited[waitingFor] {
				if cycle := visit(waitingFor); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, txID)
		return nil
	}

	for _, txID := range sortedKeys(waitGraph) {
		if !visited[txID] {
			if cycle := visit(txID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[transaction.TxnID]V) []transaction.TxnID {
	keys := make([]transaction.TxnID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// findLargestTxID picks the youngest transaction, which has probably done the least work.
func findLargestTxID(transactions []transaction.TxnID) transaction.TxnID {
	var maxTxID transaction.TxnID
	for i, txID := range transactions {
		if i == 0 || txID > maxTxID {
			maxTxID = txID
		}
	}
	return maxTxID
}

// abortTransaction resolves all pending lock requests of given transaction with ErrDeadLock.
func (lm *LockManager) abortTransaction(txID transaction.TxnID) {
	lm.locks.Range(func(pageID disk.PageID, ls *lockState) bool {
		ls.Lock()
		defer ls.Unlock()

		if lm.dropRequests(ls, txID, ErrDeadLock) {
			lm.grantWaiting(ls)
		}
		return true
	})
}

func (lm *LockManager) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}
