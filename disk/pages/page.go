package pages

import (
	"tupledb/disk"
	"tupledb/transaction"
)

// Page is the in-memory representation of a physical page. Pages are owned by the buffer pool while they are
// cached, everyone else requests them from the pool with a transaction and a permission.
type Page interface {
	GetID() disk.PageID

	// GetPageData serializes the page into exactly disk.PageSize bytes.
	GetPageData() ([]byte, error)

	// MarkDirty records that the page is modified by tid, or clears the flag when dirty is false.
	MarkDirty(dirty bool, tid transaction.TxnID)

	// IsDirty returns the transaction that dirtied the page if the page is dirty.
	IsDirty() (transaction.TxnID, bool)
}

// EmptyPageData returns the content of a brand-new page.
func EmptyPageData() []byte {
	return make([]byte, disk.PageSize)
}
