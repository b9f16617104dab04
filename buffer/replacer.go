package buffer

import "github.com/pkg/errors"

var ErrNoVictim = errors.New("no frame can be evicted")

// IReplacer decides which frame of the pool is reused when a page that is not cached is requested.
type IReplacer interface {
	// Touch records an access to a frame that holds a page.
	Touch(frameId int)

	// Remove forgets the frame. It is called when the frame becomes empty.
	Remove(frameId int)

	// ChooseVictim returns a frame holding a page for which evictable returns true. The victim is removed from the
	// replacer.
	ChooseVictim(evictable func(frameId int) bool) (frameId int, err error)

	GetSize() int
}

func NewReplacer(name string, size int) (IReplacer, error) {
	switch name {
	case "", "clock":
		return NewClockReplacer(size), nil
	case "lru":
		return NewLruReplacer(size), nil
	default:
		return nil, errors.Errorf("unknown replacer: %s", name)
	}
}
