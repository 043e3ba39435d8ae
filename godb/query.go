package godb

// Operator is the shared interface every query operator implements: given a
// TransactionID, produce an iterator function yielding successive result
// tuples, nil when exhausted. Operators compose into a tree; each one pulls
// from its child's iterator rather than being pushed tuples.
type Operator interface {
	Descriptor() *TupleDesc
	Iterator(tid TransactionID) (func() (*Tuple, error), error)
}
