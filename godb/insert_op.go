package godb

// InsertOp inserts every tuple its child produces into a DBFile, through the
// buffer pool so the pages it dirties are tracked like any other write.
type InsertOp struct {
	bp         *BufferPool
	insertFile DBFile
	child      Operator
	res        *TupleDesc
}

// NewInsertOp constructs an insert operator that inserts the records in the
// child Operator into insertFile, via bp.
func NewInsertOp(bp *BufferPool, insertFile DBFile, child Operator) *InsertOp {
	return &InsertOp{
		bp:         bp,
		insertFile: insertFile,
		child:      child,
		res:        &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}},
	}
}

// Descriptor returns a one column descriptor with an integer field named
// "count".
func (i *InsertOp) Descriptor() *TupleDesc {
	return i.res
}

// Iterator inserts every tuple the child iterator produces and then yields a
// single one-field tuple counting how many were inserted.
func (iop *InsertOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := iop.child.Iterator(tid)
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
			if err := iop.bp.InsertTuple(tid, iop.insertFile.ID(), t); err != nil {
				return nil, err
			}
			count++
		}
		done = true
		return &Tuple{Desc: *iop.Descriptor(), Fields: []DBValue{IntField{count}}}, nil
	}, nil
}
