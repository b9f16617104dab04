package buffer

import (
	"sync"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"tupledb/catalog"
	"tupledb/common"
	"tupledb/disk"
	"tupledb/disk/pages"
	"tupledb/locker"
	"tupledb/transaction"
)

var ErrBufferFull = errors.New("all pages in the buffer pool are dirty or held for writing")

// DbFile is a table's storage as seen by the buffer pool.
type DbFile interface {
	GetID() int32
	ReadPage(pid disk.PageID) (pages.Page, error)
	WritePage(p pages.Page) error
	Desc() *catalog.TupleDesc
}

// FileResolver finds the file a page belongs to.
type FileResolver interface {
	GetDatabaseFile(tableID int32) (DbFile, error)
}

// Pool is the page cache used by storage and executors. Every page access goes through GetPage. Locks acquired by
// GetPage are released only when the transaction completes.
type Pool interface {
	GetPage(tid transaction.TxnID, pid disk.PageID, perm transaction.Permissions) (pages.Page, error)
	TransactionComplete(tid transaction.TxnID, commit bool) error
}

var _ Pool = &BufferPool{}

// BufferPool caches up to poolSize pages. It never writes a page dirtied by a running transaction to disk, so only
// clean pages are evicted. Pages a running transaction holds with write permission stay in the pool until it
// completes, since the holder may modify them before marking them dirty. Committed transactions' pages are flushed, aborted ones' pages are dropped so that the
// next request reads them from disk.
type BufferPool struct {
	poolSize    int
	frames      []pages.Page
	pageMap     map[disk.PageID]int // page id => frame index which keeps that page
	emptyFrames []int               // list of indexes that points to empty frames in the pool
	Replacer    IReplacer
	files       FileResolver
	lockManager *locker.LockManager
	txnPages    map[transaction.TxnID]map[disk.PageID]struct{}
	writers     map[disk.PageID]transaction.TxnID // pages pinned by their exclusive lock holder
	metrics     *Metrics
	lock        sync.Mutex
}

// NewBufferPool creates a pool. metrics may be nil, in which case metrics are registered to a private registry.
func NewBufferPool(poolSize int, files FileResolver, lockManager *locker.LockManager, replacer IReplacer, metrics *Metrics) *BufferPool {
	if replacer == nil {
		replacer = NewClockReplacer(poolSize)
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}

	emptyFrames := make([]int, poolSize)
	for i := range emptyFrames {
		emptyFrames[i] = i
	}

	return &BufferPool{
		poolSize:    poolSize,
		frames:      make([]pages.Page, poolSize),
		pageMap:     map[disk.PageID]int{},
		emptyFrames: emptyFrames,
		Replacer:    replacer,
		files:       files,
		lockManager: lockManager,
		txnPages:    map[transaction.TxnID]map[disk.PageID]struct{}{},
		writers:     map[disk.PageID]transaction.TxnID{},
		metrics:     metrics,
	}
}

// GetPage locks the page for tid with a lock matching perm and returns it. A transaction chosen as a deadlock
// victim gets transaction.ErrTransactionAborted and should be completed with abort.
func (b *BufferPool) GetPage(tid transaction.TxnID, pid disk.PageID, perm transaction.Permissions) (pages.Page, error) {
	mode := locker.SharedLock
	if perm == transaction.ReadWrite {
		mode = locker.ExclusiveLock
	}

	if err := b.lockManager.AcquireLock(pid, tid, mode); err != nil {
		if errors.Is(err, transaction.ErrTransactionAborted) {
			return nil, err
		}
		return nil, errors.Wrapf(transaction.ErrTransactionAborted, "%v requesting %v: %v", tid, pid, err)
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	touched, ok := b.txnPages[tid]
	if !ok {
		touched = map[disk.PageID]struct{}{}
		b.txnPages[tid] = touched
	}
	touched[pid] = struct{}{}
	if perm == transaction.ReadWrite {
		b.writers[pid] = tid
	}

	if frameId, ok := b.pageMap[pid]; ok {
		b.metrics.Hits.Inc()
		b.Replacer.Touch(frameId)
		return b.frames[frameId], nil
	}

	b.metrics.Misses.Inc()
	frameId, err := b.reserveFrame()
	if err != nil {
		return nil, err
	}

	file, err := b.files.GetDatabaseFile(pid.TableID)
	if err != nil {
		b.emptyFrames = append(b.emptyFrames, frameId)
		return nil, err
	}

	p, err := file.ReadPage(pid)
	if err != nil {
		b.emptyFrames = append(b.emptyFrames, frameId)
		return nil, err
	}

	b.frames[frameId] = p
	b.pageMap[pid] = frameId
	b.Replacer.Touch(frameId)
	return p, nil
}

// TransactionComplete flushes pages dirtied by tid on commit or drops them on abort, then releases tid's locks.
func (b *BufferPool) TransactionComplete(tid transaction.TxnID, commit bool) error {
	err := b.completePages(tid, commit)
	b.lockManager.ReleaseLocks(tid)

	level.Debug(common.Logger()).Log("msg", "transaction completed", "txn", tid, "commit", commit)
	return err
}

func (b *BufferPool) completePages(tid transaction.TxnID, commit bool) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	touched := b.txnPages[tid]
	delete(b.txnPages, tid)

	for pid := range touched {
		if b.writers[pid] == tid {
			delete(b.writers, pid)
		}

		frameId, ok := b.pageMap[pid]
		if !ok {
			continue
		}

		dirtier, dirty := b.frames[frameId].IsDirty()
		if !dirty || dirtier != tid {
			continue
		}

		if commit {
			if err := b.flushFrame(frameId); err != nil {
				return err
			}
		} else {
			b.discardFrame(frameId)
		}
	}

	return nil
}

// FlushAllPages writes every dirty page to disk regardless of the transaction that dirtied it.
func (b *BufferPool) FlushAllPages() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, frameId := range b.pageMap {
		if _, dirty := b.frames[frameId].IsDirty(); dirty {
			if err := b.flushFrame(frameId); err != nil {
				return err
			}
		}
	}

	return nil
}

// DiscardPage removes the page from the pool without writing it.
func (b *BufferPool) DiscardPage(pid disk.PageID) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if frameId, ok := b.pageMap[pid]; ok {
		b.discardFrame(frameId)
	}
}

func (b *BufferPool) HoldsLock(tid transaction.TxnID, pid disk.PageID) bool {
	_, ok := b.lockManager.HoldsLock(pid, tid)
	return ok
}

// EmptyFrameSize returns the number empty frames which does not hold data of any page.
func (b *BufferPool) EmptyFrameSize() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.emptyFrames)
}

// reserveFrame returns an empty frame, evicting a clean page that no running transaction holds for writing if there
// is none.
func (b *BufferPool) reserveFrame() (int, error) {
	if n := len(b.emptyFrames); n > 0 {
		frameId := b.emptyFrames[n-1]
		b.emptyFrames = b.emptyFrames[:n-1]
		return frameId, nil
	}

	victim, err := b.Replacer.ChooseVictim(func(frameId int) bool {
		p := b.frames[frameId]
		if _, dirty := p.IsDirty(); dirty {
			return false
		}
		_, pinned := b.writers[p.GetID()]
		return !pinned
	})
	if err != nil {
		return 0, errors.Wrapf(ErrBufferFull, "pool size %d", b.poolSize)
	}

	b.metrics.Evictions.Inc()
	delete(b.pageMap, b.frames[victim].GetID())
	b.frames[victim] = nil
	return victim, nil
}

func (b *BufferPool) flushFrame(frameId int) error {
	p := b.frames[frameId]
	file, err := b.files.GetDatabaseFile(p.GetID().TableID)
	if err != nil {
		return err
	}

	if err := file.WritePage(p); err != nil {
		return err
	}

	tid, _ := p.IsDirty()
	p.MarkDirty(false, tid)
	b.metrics.Flushes.Inc()
	return nil
}

func (b *BufferPool) discardFrame(frameId int) {
	delete(b.pageMap, b.frames[frameId].GetID())
	b.frames[frameId] = nil
	b.Replacer.Remove(frameId)
	b.emptyFrames = append(b.emptyFrames, frameId)
}
