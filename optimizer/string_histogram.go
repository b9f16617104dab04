package optimizer

import (
	"tupledb/execution/expressions"
)

// StringHistogram estimates selectivities over strings by mapping every string to an integer built from its first
// four bytes and keeping an IntHistogram of those integers. Strings sharing a four byte prefix are not told apart.
type StringHistogram struct {
	hist *IntHistogram
}

var (
	minStringVal = stringToInt("")
	maxStringVal = stringToInt("zzzz")
)

func NewStringHistogram(buckets int) *StringHistogram {
	return &StringHistogram{hist: NewIntHistogram(buckets, minStringVal, maxStringVal)}
}

// stringToInt packs the first four bytes of s into an integer, most significant first. Missing bytes are zero.
// Results are clamped into [stringToInt(""), stringToInt("zzzz")].
func stringToInt(s string) int32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v <<= 8
		if i < len(s) {
			v |= uint32(s[i])
		}
	}

	const zzzz = uint32('z')<<24 | uint32('z')<<16 | uint32('z')<<8 | uint32('z')
	if v > zzzz {
		v = zzzz
	}
	return int32(v)
}

func (h *StringHistogram) AddValue(s string) {
	h.hist.AddValue(stringToInt(s))
}

func (h *StringHistogram) EstimateSelectivity(op expressions.CompType, s string) float64 {
	return h.hist.EstimateSelectivity(op, stringToInt(s))
}

func (h *StringHistogram) AvgSelectivity() float64 {
	return h.hist.AvgSelectivity()
}

func (h *StringHistogram) String() string {
	return "String" + h.hist.String()
}
