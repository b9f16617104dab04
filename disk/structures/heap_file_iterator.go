package structures

import (
	"github.com/pkg/errors"
	"tupledb/buffer"
	"tupledb/catalog"
	"tupledb/disk"
	"tupledb/disk/pages"
	"tupledb/execution"
	"tupledb/transaction"
)

var _ execution.DbFileIterator = &HeapFileIterator{}

// HeapFileIterator yields tuples in page order and in slot order within a page. It holds the tuples of at most
// one page at a time.
type HeapFileIterator struct {
	execution.BaseIterator
	file *HeapFile
	pool buffer.Pool
	tid  transaction.TxnID

	// nextPage is the number of the page to load when current is drained.
	nextPage int
	current  []*catalog.Tuple
}

func NewHeapFileIterator(file *HeapFile, pool buffer.Pool, tid transaction.TxnID) *HeapFileIterator {
	it := &HeapFileIterator{
		file: file,
		pool: pool,
		tid:  tid,
	}
	it.FetchNext = it.fetchNext
	return it
}

func (it *HeapFileIterator) Open() error {
	it.nextPage = 0
	it.current = nil
	return it.BaseIterator.Open()
}

func (it *HeapFileIterator) Rewind() error {
	if err := it.CheckOpen(); err != nil {
		return err
	}

	it.nextPage = 0
	it.current = nil
	it.ResetPending()
	return nil
}

func (it *HeapFileIterator) Close() error {
	it.current = nil
	return it.BaseIterator.Close()
}

func (it *HeapFileIterator) fetchNext() (*catalog.Tuple, error) {
	for len(it.current) == 0 {
		numPages, err := it.file.NumPages()
		if err != nil {
			return nil, err
		}
		if it.nextPage >= numPages {
			return nil, nil
		}

		tuples, err := it.loadPage(it.nextPage)
		if err != nil {
			return nil, err
		}
		it.current = tuples
		it.nextPage++
	}

	t := it.current[0]
	it.current = it.current[1:]
	return t, nil
}

func (it *HeapFileIterator) loadPage(pageNo int) ([]*catalog.Tuple, error) {
	pid := disk.PageID{TableID: it.file.GetID(), PageNo: int32(pageNo)}
	p, err := it.pool.GetPage(it.tid, pid, transaction.ReadOnly)
	if err != nil {
		return nil, err
	}

	hp, ok := p.(*pages.HeapPage)
	if !ok {
		return nil, errors.Errorf("page %v is not a heap page", pid)
	}
	return hp.Tuples(), nil
}
