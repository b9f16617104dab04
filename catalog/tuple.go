package catalog

import (
	"strings"

	"github.com/pkg/errors"
	"tupledb/catalog/db_types"
	"tupledb/disk"
)

var ErrFieldIndex = errors.New("field index out of range")

// Tuple is a row with a fixed schema. Rid is nil when the tuple is not stored in a heap file.
type Tuple struct {
	Desc   *TupleDesc
	Fields []db_types.Field
	Rid    *disk.RecordID
}

func NewTuple(desc *TupleDesc) *Tuple {
	return &Tuple{
		Desc:   desc,
		Fields: make([]db_types.Field, desc.NumFields()),
	}
}

// NewTupleWithFields creates a tuple and checks that given fields match the desc.
func NewTupleWithFields(desc *TupleDesc, fields ...db_types.Field) (*Tuple, error) {
	if len(fields) != desc.NumFields() {
		return nil, errors.Errorf("schema column count is %d, got %d fields", desc.NumFields(), len(fields))
	}

	t := NewTuple(desc)
	for i, f := range fields {
		if err := t.SetField(i, f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tuple) SetField(idx int, f db_types.Field) error {
	col, err := t.Desc.GetColumn(idx)
	if err != nil {
		return err
	}
	if f != nil && f.Type() != col.Type {
		return errors.Wrapf(db_types.ErrTypeMismatch, "column %d is %s, field is %s", idx, col.Type, f.Type())
	}

	t.Fields[idx] = f
	return nil
}

func (t *Tuple) GetField(idx int) (db_types.Field, error) {
	if idx < 0 || idx >= len(t.Fields) {
		return nil, errors.Wrapf(ErrFieldIndex, "index %d, tuple has %d fields", idx, len(t.Fields))
	}
	return t.Fields[idx], nil
}

// MergeTuples concatenates fields of two tuples under given desc. The result is not stored anywhere so it has no
// record id.
func MergeTuples(desc *TupleDesc, left, right *Tuple) *Tuple {
	fields := make([]db_types.Field, 0, len(left.Fields)+len(right.Fields))
	fields = append(fields, left.Fields...)
	fields = append(fields, right.Fields...)
	return &Tuple{Desc: desc, Fields: fields}
}

// Serialize writes the tuple's fields in order to dest, which must be at least Desc.Size() long.
func (t *Tuple) Serialize(dest []byte) error {
	offset := 0
	for i, f := range t.Fields {
		if f == nil {
			return errors.Errorf("field %d is not set", i)
		}
		f.Serialize(dest[offset:])
		offset += f.Type().Length()
	}
	return nil
}

func DeserializeTuple(desc *TupleDesc, src []byte) (*Tuple, error) {
	t := NewTuple(desc)
	offset := 0
	for i, c := range desc.GetColumns() {
		f, err := db_types.Deserialize(c.Type, src[offset:])
		if err != nil {
			return nil, err
		}
		t.Fields[i] = f
		offset += c.Type.Length()
	}
	return t, nil
}

// Equals compares tuples by their field values.
func (t *Tuple) Equals(other *Tuple) bool {
	if len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		if f == nil {
			parts[i] = "null"
			continue
		}
		parts[i] = f.String()
	}
	return strings.Join(parts, "\t")
}
