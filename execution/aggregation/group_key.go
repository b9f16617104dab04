package aggregation

import (
	"github.com/pkg/errors"
	"tupledb/catalog/db_types"
)

// GroupKey identifies a group. It is one of NoGroup, IntKey or StrKey. Keys are compared by value.
type GroupKey interface {
	// Field returns the group's value as it appears in the output, nil for NoGroup.
	Field() db_types.Field
	isGroupKey()
}

// NoGroup is the key of the single group of an aggregator without grouping.
type NoGroup struct{}

type IntKey int32

type StrKey string

func (NoGroup) Field() db_types.Field { return nil }

func (k IntKey) Field() db_types.Field { return db_types.NewIntField(int32(k)) }

func (k StrKey) Field() db_types.Field { return db_types.NewStringField(string(k)) }

func (NoGroup) isGroupKey() {}
func (IntKey) isGroupKey()  {}
func (StrKey) isGroupKey()  {}

// keyOf converts a group by field into its key.
func keyOf(f db_types.Field) (GroupKey, error) {
	switch v := f.(type) {
	case db_types.IntField:
		return IntKey(v.Value), nil
	case db_types.StringField:
		return StrKey(v.Value), nil
	default:
		return nil, errors.Errorf("cannot group by %T", f)
	}
}
