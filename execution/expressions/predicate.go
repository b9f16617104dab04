package expressions

import (
	"fmt"

	"tupledb/catalog"
	"tupledb/catalog/db_types"
)

// Predicate compares a field of a tuple with a constant.
type Predicate struct {
	Field   int
	Op      CompType
	Operand db_types.Field
}

func NewPredicate(field int, op CompType, operand db_types.Field) *Predicate {
	return &Predicate{Field: field, Op: op, Operand: operand}
}

// Filter returns true if t's field satisfies the predicate.
func (p *Predicate) Filter(t *catalog.Tuple) (bool, error) {
	f, err := t.GetField(p.Field)
	if err != nil {
		return false, err
	}
	return Compare(p.Op, f, p.Operand)
}

func (p *Predicate) String() string {
	return fmt.Sprintf("f%d %s %s", p.Field, p.Op, p.Operand)
}

// JoinPredicate compares a field of one tuple with a field of another.
type JoinPredicate struct {
	Field1 int
	Op     CompType
	Field2 int
}

func NewJoinPredicate(field1 int, op CompType, field2 int) *JoinPredicate {
	return &JoinPredicate{Field1: field1, Op: op, Field2: field2}
}

// Filter returns true if t1.Field1 op t2.Field2 holds.
func (p *JoinPredicate) Filter(t1, t2 *catalog.Tuple) (bool, error) {
	f1, err := t1.GetField(p.Field1)
	if err != nil {
		return false, err
	}

	f2, err := t2.GetField(p.Field2)
	if err != nil {
		return false, err
	}

	return Compare(p.Op, f1, f2)
}

func (p *JoinPredicate) String() string {
	return fmt.Sprintf("left.f%d %s right.f%d", p.Field1, p.Op, p.Field2)
}
