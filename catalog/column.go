package catalog

import "tupledb/catalog/db_types"

type Column struct {
	Name string
	Type db_types.TypeID
}
