package expressions

import (
	"fmt"

	"tupledb/catalog/db_types"
)

type CompType int

const (
	Equal CompType = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

func (c CompType) String() string {
	switch c {
	case Equal:
		return "="
	case NotEqual:
		return "<>"
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	default:
		return fmt.Sprintf("CompType(%d)", int(c))
	}
}

// Apply turns the result of a Compare call into the result of the comparison.
func (c CompType) Apply(cmp int) bool {
	switch c {
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case LessThan:
		return cmp < 0
	case LessThanOrEqual:
		return cmp <= 0
	case GreaterThan:
		return cmp > 0
	case GreaterThanOrEqual:
		return cmp >= 0
	default:
		panic(fmt.Sprintf("unknown comparison: %d", int(c)))
	}
}

// Compare evaluates lhs c rhs.
func Compare(c CompType, lhs, rhs db_types.Field) (bool, error) {
	cmp, err := lhs.Compare(rhs)
	if err != nil {
		return false, err
	}
	return c.Apply(cmp), nil
}
