package buffer

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"tupledb/common"
)

var _ IReplacer = &LruReplacer{}

// LruReplacer keeps frames ordered by their last access and chooses the least recently used evictable frame.
type LruReplacer struct {
	frames *simplelru.LRU[int, struct{}]
	size   int
	lock   sync.Mutex
}

func (l *LruReplacer) Touch(frameId int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.frames.Add(frameId, struct{}{})
}

func (l *LruReplacer) Remove(frameId int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.frames.Remove(frameId)
}

func (l *LruReplacer) ChooseVictim(evictable func(frameId int) bool) (frameId int, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	// Keys are ordered from the oldest to the newest access
	for _, curr := range l.frames.Keys() {
		if evictable(curr) {
			l.frames.Remove(curr)
			return curr, nil
		}
	}

	return 0, ErrNoVictim
}

func (l *LruReplacer) GetSize() int {
	return l.size
}

func NewLruReplacer(poolSize int) *LruReplacer {
	frames, err := simplelru.NewLRU[int, struct{}](poolSize, nil)
	common.PanicIfErr(err) // only fails for non positive sizes

	return &LruReplacer{
		frames: frames,
		size:   poolSize,
	}
}
