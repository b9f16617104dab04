package db_types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var ErrTypeMismatch = errors.New("field types do not match")

type TypeID uint8

const (
	IntegerTypeID TypeID = 1
	StringTypeID  TypeID = 2
)

// Length returns the number of bytes a field of this type occupies when serialized.
func (t TypeID) Length() int {
	switch t {
	case IntegerTypeID:
		return intLength
	case StringTypeID:
		return stringHeaderLength + StringLength
	default:
		panic(fmt.Sprintf("unknown type id: %d", t))
	}
}

func (t TypeID) String() string {
	switch t {
	case IntegerTypeID:
		return "INT"
	case StringTypeID:
		return "STRING"
	default:
		return fmt.Sprintf("TYPE(%d)", t)
	}
}

// ParseTypeID returns the type named name, case insensitive.
func ParseTypeID(name string) (TypeID, error) {
	for _, t := range []TypeID{IntegerTypeID, StringTypeID} {
		if strings.EqualFold(t.String(), name) {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown type: %q", name)
}

// Field is a single typed cell of a tuple. Implementations are comparable values so that fields can be used as
// map keys and compared with ==.
type Field interface {
	Type() TypeID

	// Serialize writes exactly Type().Length() bytes to dest.
	Serialize(dest []byte)

	// Compare returns a negative number, zero or a positive number when the field is less than, equal to or
	// greater than other. Fields of different types cannot be compared.
	Compare(other Field) (int, error)

	String() string
}

// Deserialize reads a field of given type from the beginning of src.
func Deserialize(t TypeID, src []byte) (Field, error) {
	if len(src) < t.Length() {
		return nil, errors.Errorf("need %d bytes to read %s, got %d", t.Length(), t, len(src))
	}

	switch t {
	case IntegerTypeID:
		return deserializeInt(src), nil
	case StringTypeID:
		return deserializeString(src), nil
	default:
		return nil, errors.Errorf("unknown type id: %d", t)
	}
}

func mismatch(this, other Field) error {
	return errors.Wrapf(ErrTypeMismatch, "cannot compare %s with %s", this.Type(), other.Type())
}
