package db_types

import (
	"encoding/binary"
	"strconv"
)

const intLength = 4

type IntField struct {
	Value int32
}

func NewIntField(v int32) IntField {
	return IntField{Value: v}
}

func (i IntField) Type() TypeID {
	return IntegerTypeID
}

func (i IntField) Serialize(dest []byte) {
	binary.BigEndian.PutUint32(dest, uint32(i.Value))
}

func (i IntField) Compare(other Field) (int, error) {
	o, ok := other.(IntField)
	if !ok {
		return 0, mismatch(i, other)
	}

	switch {
	case i.Value < o.Value:
		return -1, nil
	case i.Value > o.Value:
		return 1, nil
	default:
		return 0, nil
	}
}

func (i IntField) String() string {
	return strconv.Itoa(int(i.Value))
}

func deserializeInt(src []byte) IntField {
	return IntField{Value: int32(binary.BigEndian.Uint32(src))}
}
