package execution

import (
	"github.com/pkg/errors"
	"tupledb/catalog"
)

var (
	// ErrNoSuchElement is returned by Next when the iterator has no more tuples.
	ErrNoSuchElement = errors.New("no more tuples")

	// ErrIteratorClosed is returned by every call except Open and Close while the iterator is closed.
	ErrIteratorClosed = errors.New("iterator is not open")
)

// DbFileIterator iterates over tuples of a file. It starts closed, Open makes it usable and Close makes it closed
// again. Closing a closed iterator does nothing.
type DbFileIterator interface {
	Open() error
	HasNext() (bool, error)

	// Next returns the next tuple or ErrNoSuchElement if there is none.
	Next() (*catalog.Tuple, error)

	// Rewind restarts the iteration from the first tuple.
	Rewind() error
	Close() error
}

// OpIterator is the interface every operator implements so that operators can be composed into a tree. Tuples are
// pulled from the root.
type OpIterator interface {
	DbFileIterator

	// Desc returns the schema of the yielded tuples. It is available even when the iterator is closed.
	Desc() *catalog.TupleDesc
}
