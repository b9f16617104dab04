package structures

import (
	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"tupledb/buffer"
	"tupledb/catalog"
	"tupledb/common"
	"tupledb/disk"
	"tupledb/disk/pages"
	"tupledb/execution"
	"tupledb/transaction"
)

var (
	// ErrStorage is returned when a page cannot be read from or written to the file.
	ErrStorage = errors.New("storage error")

	// ErrTableMismatch is returned when a page or tuple of another table is given to a heap file.
	ErrTableMismatch = errors.New("page or tuple belongs to another table")
)

var _ buffer.DbFile = &HeapFile{}

// HeapFile stores the tuples of a table in no particular order, as an array of heap pages in a single file. It
// does not keep any page in memory. Pages are read and written by the buffer pool, HeapFile only maps page numbers
// to file offsets.
type HeapFile struct {
	dm   disk.IDiskManager
	desc *catalog.TupleDesc
	id   int32
}

func NewHeapFile(path string, desc *catalog.TupleDesc) (*HeapFile, error) {
	dm, err := disk.NewDiskManager(path)
	if err != nil {
		return nil, errors.Wrap(ErrStorage, err.Error())
	}

	return &HeapFile{
		dm:   dm,
		desc: desc,
		id:   tableID(dm.Path()),
	}, nil
}

// tableID hashes the absolute path of the file, so the same file always gets the same id.
func tableID(absPath string) int32 {
	return int32(xxhash.Sum64String(absPath))
}

func (f *HeapFile) GetID() int32 {
	return f.id
}

func (f *HeapFile) Desc() *catalog.TupleDesc {
	return f.desc
}

func (f *HeapFile) Path() string {
	return f.dm.Path()
}

func (f *HeapFile) Close() error {
	return f.dm.Close()
}

// NumPages is derived from the file size each time it is called.
func (f *HeapFile) NumPages() (int, error) {
	n, err := f.dm.NumPages()
	if err != nil {
		return 0, errors.Wrap(ErrStorage, err.Error())
	}
	return n, nil
}

func (f *HeapFile) ReadPage(pid disk.PageID) (pages.Page, error) {
	if pid.TableID != f.id {
		return nil, errors.Wrapf(ErrTableMismatch, "page %v is read from table %d", pid, f.id)
	}

	data, err := f.dm.ReadPage(int(pid.PageNo))
	if err != nil {
		return nil, errors.Wrapf(ErrStorage, "reading page %v: %v", pid, err)
	}

	hp, err := pages.NewHeapPage(pid, data, f.desc)
	if err != nil {
		return nil, errors.Wrapf(ErrStorage, "decoding page %v: %v", pid, err)
	}
	return hp, nil
}

// WritePage overwrites the page if it exists, otherwise appends it. Pages can only be appended at the end of the
// file.
func (f *HeapFile) WritePage(p pages.Page) error {
	pid := p.GetID()
	if pid.TableID != f.id {
		return errors.Wrapf(ErrTableMismatch, "page %v is written to table %d", pid, f.id)
	}

	data, err := p.GetPageData()
	if err != nil {
		return err
	}

	if err := f.dm.WritePage(data, int(pid.PageNo)); err != nil {
		return errors.Wrapf(ErrStorage, "writing page %v: %v", pid, err)
	}
	return nil
}

// InsertTuple puts t into the first page that has an empty slot, growing the file by one page if there is no such
// page. The modified page is returned and it is already marked dirty by tid.
func (f *HeapFile) InsertTuple(pool buffer.Pool, tid transaction.TxnID, t *catalog.Tuple) ([]pages.Page, error) {
	if !f.desc.Equals(t.Desc) {
		return nil, errors.Wrapf(pages.ErrSchemaMismatch, "table %d has [%v], tuple has [%v]", f.id, f.desc, t.Desc)
	}

	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}

	for i := 0; i < numPages; i++ {
		p, err := f.insertIntoPage(pool, tid, int32(i), t)
		if errors.Is(err, pages.ErrPageFull) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return []pages.Page{p}, nil
	}

	pageNo, err := f.dm.AppendPage(pages.EmptyPageData())
	if err != nil {
		return nil, errors.Wrapf(ErrStorage, "appending page to table %d: %v", f.id, err)
	}
	level.Debug(common.Logger()).Log("msg", "heap file grew", "table", f.id, "pages", pageNo+1)

	p, err := f.insertIntoPage(pool, tid, int32(pageNo), t)
	if err != nil {
		return nil, err
	}
	return []pages.Page{p}, nil
}

func (f *HeapFile) insertIntoPage(pool buffer.Pool, tid transaction.TxnID, pageNo int32, t *catalog.Tuple) (pages.Page, error) {
	p, err := pool.GetPage(tid, disk.PageID{TableID: f.id, PageNo: pageNo}, transaction.ReadWrite)
	if err != nil {
		return nil, err
	}

	hp, ok := p.(*pages.HeapPage)
	if !ok {
		return nil, errors.Errorf("page %v is not a heap page", p.GetID())
	}

	if err := hp.InsertTuple(t); err != nil {
		return nil, err
	}

	hp.MarkDirty(true, tid)
	return hp, nil
}

// DeleteTuple removes t from the page its record id points to.
func (f *HeapFile) DeleteTuple(pool buffer.Pool, tid transaction.TxnID, t *catalog.Tuple) ([]pages.Page, error) {
	if t.Rid == nil {
		return nil, errors.Wrapf(ErrTableMismatch, "tuple is not stored in table %d", f.id)
	}
	if t.Rid.PageID.TableID != f.id {
		return nil, errors.Wrapf(ErrTableMismatch, "tuple %v is deleted from table %d", t.Rid, f.id)
	}

	p, err := pool.GetPage(tid, t.Rid.PageID, transaction.ReadWrite)
	if err != nil {
		return nil, err
	}

	hp, ok := p.(*pages.HeapPage)
	if !ok {
		return nil, errors.Errorf("page %v is not a heap page", p.GetID())
	}

	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}

	hp.MarkDirty(true, tid)
	return []pages.Page{hp}, nil
}

// Iterator returns an iterator over all tuples of the file. Pages are requested from the pool with read only
// permission one at a time as the iterator advances.
func (f *HeapFile) Iterator(pool buffer.Pool, tid transaction.TxnID) execution.DbFileIterator {
	return NewHeapFileIterator(f, pool, tid)
}
