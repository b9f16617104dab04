package db_types

import (
	"encoding/binary"
	"strings"
)

// StringLength is the maximum number of bytes a string field can hold. Longer values are truncated.
const StringLength = 128

const stringHeaderLength = 4

// StringField is serialized as a 4 byte length followed by StringLength bytes, zero padded.
type StringField struct {
	Value string
}

func NewStringField(v string) StringField {
	if len(v) > StringLength {
		v = v[:StringLength]
	}
	return StringField{Value: v}
}

func (s StringField) Type() TypeID {
	return StringTypeID
}

func (s StringField) Serialize(dest []byte) {
	v := s.Value
	if len(v) > StringLength {
		v = v[:StringLength]
	}

	binary.BigEndian.PutUint32(dest, uint32(len(v)))
	body := dest[stringHeaderLength : stringHeaderLength+StringLength]
	n := copy(body, v)
	for i := n; i < len(body); i++ {
		body[i] = 0
	}
}

func (s StringField) Compare(other Field) (int, error) {
	o, ok := other.(StringField)
	if !ok {
		return 0, mismatch(s, other)
	}

	return strings.Compare(s.Value, o.Value), nil
}

func (s StringField) String() string {
	return s.Value
}

func deserializeString(src []byte) StringField {
	n := int(binary.BigEndian.Uint32(src))
	if n > StringLength {
		n = StringLength
	}
	return StringField{Value: string(src[stringHeaderLength : stringHeaderLength+n])}
}
