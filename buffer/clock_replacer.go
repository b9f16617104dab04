package buffer

import (
	"sync"
)

const (
	PresentBit      uint8 = 1 << 7
	SecondChanceBit uint8 = 1 << 6
)

type counter struct {
	bits uint8
}

var _ IReplacer = &ClockReplacer{}

type ClockReplacer struct {
	frames         []counter
	victimIterator int
	lock           sync.Mutex
}

func (c *ClockReplacer) Touch(frameId int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.frames[frameId].bits |= PresentBit | SecondChanceBit
}

func (c *ClockReplacer) Remove(frameId int) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.frames[frameId].bits = 0
}

// ChooseVictim sweeps the clock at most twice. A present frame that is not evictable is skipped without losing its
// second chance.
func (c *ClockReplacer) ChooseVictim(evictable func(frameId int) bool) (frameId int, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for i := 0; i < 2*c.GetSize(); i++ {
		curr := c.victimIterator
		c.victimIterator = (c.victimIterator + 1) % c.GetSize()

		f := c.frames[curr]
		if f.bits&PresentBit == 0 || !evictable(curr) {
			continue
		}

		if f.bits&SecondChanceBit > 0 {
			c.frames[curr].bits &= ^SecondChanceBit
			continue
		}

		c.frames[curr].bits = 0
		return curr, nil
	}

	return 0, ErrNoVictim
}

func (c *ClockReplacer) GetSize() int {
	return len(c.frames)
}

func NewClockReplacer(size int) *ClockReplacer {
	return &ClockReplacer{
		frames: make([]counter, size),
	}
}
