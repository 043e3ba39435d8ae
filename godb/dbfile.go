package godb

// DBFile is the on-disk collaborator the buffer pool mediates all page
// access through. HeapFile is the only implementation in this package, but
// the buffer pool and lock manager never assume that: they address pages
// purely by PageId.
type DBFile interface {
	// ID returns the table identifier the catalog registered this file
	// under. PageIds this file hands out always carry this as TableID.
	ID() int

	// readPage synchronously reads a page from disk. Does not consult
	// or populate the buffer pool.
	readPage(pageNo int) (Page, error)

	// writePage synchronously writes a page back to disk at its
	// recorded offset.
	writePage(page Page) error

	// insertTuple adds t to the file, returning every page the
	// insertion dirtied (ordinarily one, but may include a newly
	// allocated page).
	insertTuple(t *Tuple, tid TransactionID) ([]Page, error)

	// deleteTuple removes the tuple named by t.Rid, returning the page
	// it dirtied.
	deleteTuple(t *Tuple, tid TransactionID) (Page, error)

	// pageKey returns the PageId for the pageNo'th page of this file.
	pageKey(pageNo int) PageId

	// Descriptor returns the TupleDesc of tuples stored in this file.
	Descriptor() *TupleDesc

	// Iterator returns a function that yields every tuple in the file
	// in turn, nil when exhausted. Reads pages via the buffer pool.
	Iterator(tid TransactionID) (func() (*Tuple, error), error)

	// NumPages returns the number of pages currently in the file.
	NumPages() int
}
