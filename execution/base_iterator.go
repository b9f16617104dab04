package execution

import (
	"tupledb/catalog"
)

// BaseIterator implements the open/closed state and one tuple lookahead of an iterator over a fetch function.
// Operators embed it and set FetchNext. FetchNext returns nil, nil when there are no more tuples.
type BaseIterator struct {
	FetchNext func() (*catalog.Tuple, error)

	open    bool
	pending *catalog.Tuple
}

func (b *BaseIterator) Open() error {
	b.open = true
	b.pending = nil
	return nil
}

func (b *BaseIterator) Close() error {
	b.open = false
	b.pending = nil
	return nil
}

func (b *BaseIterator) IsOpen() bool {
	return b.open
}

// CheckOpen returns ErrIteratorClosed if the iterator is not open.
func (b *BaseIterator) CheckOpen() error {
	if !b.open {
		return ErrIteratorClosed
	}
	return nil
}

// ResetPending drops the lookahead tuple. Rewind implementations call it after rewinding their source.
func (b *BaseIterator) ResetPending() {
	b.pending = nil
}

func (b *BaseIterator) HasNext() (bool, error) {
	if err := b.CheckOpen(); err != nil {
		return false, err
	}

	if b.pending == nil {
		t, err := b.FetchNext()
		if err != nil {
			return false, err
		}
		b.pending = t
	}

	return b.pending != nil, nil
}

func (b *BaseIterator) Next() (*catalog.Tuple, error) {
	hasNext, err := b.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, ErrNoSuchElement
	}

	t := b.pending
	b.pending = nil
	return t, nil
}
