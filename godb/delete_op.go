package godb

// DeleteOp deletes every tuple its child produces from a DBFile, through the
// buffer pool. The table to delete from is resolved per-tuple from its Rid,
// so deleteFile only needs to match what the child scanned.
type DeleteOp struct {
	bp         *BufferPool
	deleteFile DBFile
	child      Operator
	res        *TupleDesc
}

// NewDeleteOp constructs a delete operator that deletes the records in the
// child Operator from deleteFile, via bp.
func NewDeleteOp(bp *BufferPool, deleteFile DBFile, child Operator) *DeleteOp {
	return &DeleteOp{
		bp:         bp,
		deleteFile: deleteFile,
		child:      child,
		res:        &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}},
	}
}

// Descriptor returns a one column descriptor with an integer field named
// "count".
func (i *DeleteOp) Descriptor() *TupleDesc {
	return i.res
}

// Iterator deletes every tuple the child iterator produces and then yields a
// single one-field tuple counting how many were deleted.
func (dop *DeleteOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := dop.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	done := false
	count := int64(0)

	return func() (*Tuple, error) {
		if done {
			return nil, nil
		}
		for {
			t, err := childIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				break
			}
			if err := dop.bp.DeleteTuple(tid, t); err != nil {
				return nil, err
			}
			count++
		}
		done = true
		return &Tuple{Desc: *dop.Descriptor(), Fields: []DBValue{IntField{count}}}, nil
	}, nil
}
