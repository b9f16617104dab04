package optimizer

import (
	"fmt"
	"strings"

	"tupledb/execution/expressions"
)

// IntHistogram is a fixed width histogram over integer values in [min, max]. It keeps one counter per bucket and
// the number of added values, so its size does not depend on the number of values it has seen.
type IntHistogram struct {
	min     int32
	max     int32
	width   int64
	buckets []int32
	total   int32
}

// NewIntHistogram creates a histogram with at most buckets buckets. A range with fewer distinct values than
// buckets gets one bucket per value.
func NewIntHistogram(buckets int, min, max int32) *IntHistogram {
	rangeSize := int64(max) - int64(min) + 1
	n := int64(buckets)
	if n > rangeSize {
		n = rangeSize
	}
	if n < 1 {
		n = 1
	}

	return &IntHistogram{
		min:     min,
		max:     max,
		width:   rangeSize / n,
		buckets: make([]int32, n),
	}
}

func (h *IntHistogram) Min() int32 { return h.min }

func (h *IntHistogram) Max() int32 { return h.max }

func (h *IntHistogram) NumBuckets() int { return len(h.buckets) }

// TotalCount returns the number of added values.
func (h *IntHistogram) TotalCount() int32 { return h.total }

// bucketOf maps v to its bucket index. v == max would map one past the last bucket, it is put into the last one.
// Values outside [min, max] yield indexes outside the bucket range.
func (h *IntHistogram) bucketOf(v int32) int {
	if h.max == h.min {
		return 0
	}

	n := int64(len(h.buckets))
	d := (int64(v) - int64(h.min)) * n
	span := int64(h.max) - int64(h.min)

	idx := d / span
	if d < 0 && d%span != 0 {
		idx-- // floor for values below min
	}
	if idx == n {
		idx--
	}
	return int(idx)
}

// AddValue counts v. v must be in [min, max].
func (h *IntHistogram) AddValue(v int32) {
	h.buckets[h.bucketOf(v)]++
	h.total++
}

// EstimateSelectivity returns the estimated fraction of added values that satisfy "value op v".
//
// Range comparisons count the whole bucket of v once more for GreaterThanOrEqual and LessThanOrEqual, so their
// estimates exceed the strict ones by the equality estimate plus the part of v's bucket on v's side.
func (h *IntHistogram) EstimateSelectivity(op expressions.CompType, v int32) float64 {
	if v > h.max || v < h.min {
		switch op {
		case expressions.Equal:
			return 0
		case expressions.NotEqual:
			return 1
		}
	}

	if v >= h.max {
		switch op {
		case expressions.GreaterThan, expressions.GreaterThanOrEqual:
			return 0
		case expressions.LessThan, expressions.LessThanOrEqual:
			return 1
		}
	}

	if v <= h.min {
		switch op {
		case expressions.GreaterThan, expressions.GreaterThanOrEqual:
			return 1
		case expressions.LessThan, expressions.LessThanOrEqual:
			return 0
		}
	}

	if h.total == 0 {
		if op == expressions.NotEqual {
			return 1
		}
		return 0
	}

	idx := h.bucketOf(v)
	height := float64(h.buckets[idx])
	width := float64(h.width)
	total := float64(h.total)
	eq := (height / width) / total

	var res float64
	switch op {
	case expressions.Equal:
		return eq
	case expressions.NotEqual:
		return 1 - eq
	case expressions.GreaterThanOrEqual, expressions.GreaterThan:
		if op == expressions.GreaterThanOrEqual {
			res += eq
		}

		rightEdge := int64(h.min) + int64(idx)*h.width + h.width
		res += float64(rightEdge-int64(v)) / width * height / total
		for i := idx + 1; i < len(h.buckets); i++ {
			res += float64(h.buckets[i]) / total
		}
		return clamp(res)
	case expressions.LessThanOrEqual, expressions.LessThan:
		if op == expressions.LessThanOrEqual {
			res += eq
		}

		leftEdge := int64(h.min) + int64(idx)*h.width
		res += float64(int64(v)-leftEdge) / width * height / total
		for i := idx - 1; i >= 0; i-- {
			res += float64(h.buckets[i]) / total
		}
		return clamp(res)
	}

	panic(fmt.Sprintf("unknown comparison: %d", int(op)))
}

func clamp(sel float64) float64 {
	if sel > 1 {
		return 1
	}
	return sel
}

// AvgSelectivity is not estimated, it is always 1.
func (h *IntHistogram) AvgSelectivity() float64 {
	return 1.0
}

func (h *IntHistogram) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("IntHistogram[min=%d max=%d width=%d total=%d]", h.min, h.max, h.width, h.total))
	for i, c := range h.buckets {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprint(c))
	}
	return sb.String()
}
