package disk

import "fmt"

// PageID identifies a page of a table's heap file.
type PageID struct {
	TableID int32
	PageNo  int32
}

func (p PageID) String() string {
	return fmt.Sprintf("(table: %d, page: %d)", p.TableID, p.PageNo)
}

// RecordID is the storage location of a tuple.
type RecordID struct {
	PageID PageID
	SlotNo int32
}

func (r RecordID) String() string {
	return fmt.Sprintf("(table: %d, page: %d, slot: %d)", r.PageID.TableID, r.PageID.PageNo, r.SlotNo)
}
