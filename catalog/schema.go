package catalog

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"tupledb/catalog/db_types"
)

var ErrNoSuchColumn = errors.New("column does not exist")

// TupleDesc is the schema of a tuple. It must not be modified after it is created.
type TupleDesc struct {
	columns []Column
}

func NewTupleDesc(cols ...Column) *TupleDesc {
	c := make([]Column, len(cols))
	copy(c, cols)
	return &TupleDesc{columns: c}
}

// NewTupleDescFromTypes creates a desc with given types and names. names can be nil, in which case columns are
// unnamed.
func NewTupleDescFromTypes(types []db_types.TypeID, names []string) *TupleDesc {
	cols := make([]Column, len(types))
	for i, t := range types {
		cols[i].Type = t
		if i < len(names) {
			cols[i].Name = names[i]
		}
	}
	return &TupleDesc{columns: cols}
}

// Merge concatenates two descs. It is the schema of a join's output.
func Merge(a, b *TupleDesc) *TupleDesc {
	cols := make([]Column, 0, a.NumFields()+b.NumFields())
	cols = append(cols, a.columns...)
	cols = append(cols, b.columns...)
	return &TupleDesc{columns: cols}
}

func (d *TupleDesc) NumFields() int {
	return len(d.columns)
}

func (d *TupleDesc) GetColumns() []Column {
	return d.columns
}

func (d *TupleDesc) GetColumn(idx int) (Column, error) {
	if idx < 0 || idx >= len(d.columns) {
		return Column{}, errors.Wrapf(ErrFieldIndex, "index %d, desc has %d fields", idx, len(d.columns))
	}
	return d.columns[idx], nil
}

func (d *TupleDesc) FieldType(idx int) db_types.TypeID {
	return d.columns[idx].Type
}

func (d *TupleDesc) FieldName(idx int) string {
	return d.columns[idx].Name
}

func (d *TupleDesc) FieldIndex(name string) (int, error) {
	for i, column := range d.columns {
		if column.Name == name {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrNoSuchColumn, "%q", name)
}

// Size is the number of bytes a tuple with this desc takes on a page.
func (d *TupleDesc) Size() int {
	size := 0
	for _, column := range d.columns {
		size += column.Type.Length()
	}
	return size
}

// Equals compares two descs by their field types only. Names are ignored.
func (d *TupleDesc) Equals(other *TupleDesc) bool {
	if other == nil || len(d.columns) != len(other.columns) {
		return false
	}

	for i := range d.columns {
		if d.columns[i].Type != other.columns[i].Type {
			return false
		}
	}
	return true
}

func (d *TupleDesc) String() string {
	parts := make([]string, len(d.columns))
	for i, c := range d.columns {
		parts[i] = fmt.Sprintf("%s(%s)", c.Type, c.Name)
	}
	return strings.Join(parts, ", ")
}
