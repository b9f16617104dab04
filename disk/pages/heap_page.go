package pages

import (
	"sync"

	"github.com/pkg/errors"
	"tupledb/catalog"
	"tupledb/disk"
	"tupledb/transaction"
)

/**
 * Heap page format:
 *  ------------------------------------------------------------
 *  | HEADER BITMAP | SLOT_0 | SLOT_1 | ... | SLOT_N-1 | UNUSED |
 *  ------------------------------------------------------------
 *
 *  Header has ceil(N/8) bytes. Bit i of the header (byte i/8, least significant bit first) is set when slot i holds
 *  a tuple. Every slot is TupleDesc.Size() bytes, so N = floor(PageSize*8 / (TupleDesc.Size()*8 + 1)).
 */

var (
	ErrPageFull       = errors.New("no empty slot on page")
	ErrSchemaMismatch = errors.New("tuple desc does not match page's tuple desc")
	ErrTupleNotOnPage = errors.New("tuple is not stored on this page")
	ErrSlotEmpty      = errors.New("tuple slot is already empty")
)

type HeapPage struct {
	mu       sync.RWMutex
	pid      disk.PageID
	desc     *catalog.TupleDesc
	header   []byte
	tuples   []*catalog.Tuple
	numSlots int

	dirty   bool
	dirtier transaction.TxnID
}

// NumSlots returns how many tuples of given desc fit on a page.
func NumSlots(desc *catalog.TupleDesc) int {
	return (disk.PageSize * 8) / (desc.Size()*8 + 1)
}

// HeaderSize returns the number of bytes of the slot bitmap for given desc.
func HeaderSize(desc *catalog.TupleDesc) int {
	return (NumSlots(desc) + 7) / 8
}

// NewHeapPage decodes data which must be disk.PageSize bytes long.
func NewHeapPage(pid disk.PageID, data []byte, desc *catalog.TupleDesc) (*HeapPage, error) {
	if len(data) != disk.PageSize {
		return nil, errors.Errorf("heap page %v must be %d bytes, got %d", pid, disk.PageSize, len(data))
	}

	numSlots := NumSlots(desc)
	if numSlots == 0 {
		return nil, errors.Errorf("tuple of %d bytes does not fit in a page", desc.Size())
	}

	hp := &HeapPage{
		pid:      pid,
		desc:     desc,
		numSlots: numSlots,
		header:   make([]byte, HeaderSize(desc)),
		tuples:   make([]*catalog.Tuple, numSlots),
	}
	copy(hp.header, data)

	tupleSize := desc.Size()
	offset := len(hp.header)
	for i := 0; i < numSlots; i++ {
		if hp.isSlotUsed(i) {
			t, err := catalog.DeserializeTuple(desc, data[offset:offset+tupleSize])
			if err != nil {
				return nil, errors.Wrapf(err, "slot %d of page %v", i, pid)
			}
			t.Rid = &disk.RecordID{PageID: pid, SlotNo: int32(i)}
			hp.tuples[i] = t
		}
		offset += tupleSize
	}

	return hp, nil
}

func (hp *HeapPage) GetID() disk.PageID {
	return hp.pid
}

func (hp *HeapPage) GetPageData() ([]byte, error) {
	hp.mu.RLock()
	defer hp.mu.RUnlock()

	data := make([]byte, disk.PageSize)
	copy(data, hp.header)

	tupleSize := hp.desc.Size()
	offset := len(hp.header)
	for i := 0; i < hp.numSlots; i++ {
		if hp.tuples[i] != nil {
			if err := hp.tuples[i].Serialize(data[offset : offset+tupleSize]); err != nil {
				return nil, errors.Wrapf(err, "slot %d of page %v", i, hp.pid)
			}
		}
		offset += tupleSize
	}

	return data, nil
}

func (hp *HeapPage) MarkDirty(dirty bool, tid transaction.TxnID) {
	hp.mu.Lock()
	defer hp.mu.Unlock()

	hp.dirty = dirty
	hp.dirtier = tid
}

func (hp *HeapPage) IsDirty() (transaction.TxnID, bool) {
	hp.mu.RLock()
	defer hp.mu.RUnlock()

	return hp.dirtier, hp.dirty
}

func (hp *HeapPage) Desc() *catalog.TupleDesc {
	return hp.desc
}

func (hp *HeapPage) NumSlots() int {
	return hp.numSlots
}

func (hp *HeapPage) NumEmptySlots() int {
	hp.mu.RLock()
	defer hp.mu.RUnlock()

	empty := 0
	for i := 0; i < hp.numSlots; i++ {
		if !hp.isSlotUsed(i) {
			empty++
		}
	}
	return empty
}

// InsertTuple puts t into the first empty slot and sets t's record id.
func (hp *HeapPage) InsertTuple(t *catalog.Tuple) error {
	if !hp.desc.Equals(t.Desc) {
		return errors.Wrapf(ErrSchemaMismatch, "page %v has [%v], tuple has [%v]", hp.pid, hp.desc, t.Desc)
	}

	hp.mu.Lock()
	defer hp.mu.Unlock()

	for i := 0; i < hp.numSlots; i++ {
		if hp.isSlotUsed(i) {
			continue
		}

		rid := &disk.RecordID{PageID: hp.pid, SlotNo: int32(i)}
		stored := catalog.NewTuple(hp.desc)
		copy(stored.Fields, t.Fields)
		stored.Rid = rid

		hp.tuples[i] = stored
		hp.setSlot(i, true)
		t.Rid = &disk.RecordID{PageID: hp.pid, SlotNo: int32(i)}
		return nil
	}

	return errors.Wrapf(ErrPageFull, "page %v", hp.pid)
}

// DeleteTuple empties the slot t's record id points to.
func (hp *HeapPage) DeleteTuple(t *catalog.Tuple) error {
	if t.Rid == nil || t.Rid.PageID != hp.pid {
		return errors.Wrapf(ErrTupleNotOnPage, "page %v", hp.pid)
	}

	hp.mu.Lock()
	defer hp.mu.Unlock()

	slot := int(t.Rid.SlotNo)
	if slot < 0 || slot >= hp.numSlots {
		return errors.Wrapf(ErrTupleNotOnPage, "slot %d of page %v", slot, hp.pid)
	}
	if !hp.isSlotUsed(slot) {
		return errors.Wrapf(ErrSlotEmpty, "slot %d of page %v", slot, hp.pid)
	}

	hp.tuples[slot] = nil
	hp.setSlot(slot, false)
	return nil
}

// Tuples returns copies of stored tuples in slot order.
func (hp *HeapPage) Tuples() []*catalog.Tuple {
	hp.mu.RLock()
	defer hp.mu.RUnlock()

	res := make([]*catalog.Tuple, 0, hp.numSlots)
	for _, t := range hp.tuples {
		if t == nil {
			continue
		}

		c := catalog.NewTuple(t.Desc)
		copy(c.Fields, t.Fields)
		rid := *t.Rid
		c.Rid = &rid
		res = append(res, c)
	}
	return res
}

func (hp *HeapPage) isSlotUsed(i int) bool {
	return hp.header[i/8]&(1<<(i%8)) != 0
}

func (hp *HeapPage) setSlot(i int, used bool) {
	if used {
		hp.header[i/8] |= 1 << (i % 8)
	} else {
		hp.header[i/8] &^= 1 << (i % 8)
	}
}
