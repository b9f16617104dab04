package aggregation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// NoGrouping is the group by field index of an aggregator that puts every tuple in a single group.
const NoGrouping = -1

var ErrUnsupportedAggregate = errors.New("aggregate operator is not supported for this field type")

type AggOp int

const (
	Min AggOp = iota
	Max
	Sum
	Avg
	Count
)

func (o AggOp) String() string {
	switch o {
	case Min:
		return "min"
	case Max:
		return "max"
	case Sum:
		return "sum"
	case Avg:
		return "avg"
	case Count:
		return "count"
	default:
		return fmt.Sprintf("AggOp(%d)", int(o))
	}
}

// ParseAggOp parses the name of an operator, case insensitive.
func ParseAggOp(s string) (AggOp, error) {
	for _, op := range []AggOp{Min, Max, Sum, Avg, Count} {
		if strings.EqualFold(op.String(), s) {
			return op, nil
		}
	}
	return 0, errors.Errorf("unknown aggregate operator: %s", s)
}
