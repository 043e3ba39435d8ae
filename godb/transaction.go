package godb

import "sync/atomic"

// TransactionID is an opaque, process-unique identifier for a transaction.
// Equality is by value; callers never construct one directly except via
// NewTID.
type TransactionID int64

var tidCounter int64

// NewTID allocates a fresh, process-unique TransactionID.
func NewTID() TransactionID {
	return TransactionID(atomic.AddInt64(&tidCounter, 1))
}
