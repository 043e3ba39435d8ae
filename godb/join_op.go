package godb

import (
	"errors"
	"sort"
)

// EqualityJoin joins two operators on the equality of an expression
// evaluated against each side. Implemented as a sort-merge join: both
// inputs are fully materialized, sorted by the join expression, and then
// merged, so it does not require an index on either side.
type EqualityJoin struct {
	leftField, rightField Expr
	left, right           Operator
}

// NewJoin constructs a join of left and right on leftField = rightField.
// Returns an error if the two expressions' types don't match.
func NewJoin(left Operator, leftField Expr, right Operator, rightField Expr, maxBufferSize int) (*EqualityJoin, error) {
	if leftField.GetExprType().Ftype != rightField.GetExprType().Ftype {
		return nil, errors.New("join fields have incompatible types")
	}
	switch leftField.GetExprType().Ftype {
	case IntType, StringType:
		return &EqualityJoin{leftField, rightField, left, right}, nil
	}
	return nil, errors.New("join fields have incompatible types")
}

// Descriptor returns the union of the left and right operators' descriptors.
func (hj *EqualityJoin) Descriptor() *TupleDesc {
	return hj.left.Descriptor().merge(hj.right.Descriptor())
}

// Iterator materializes both sides, sorts each by the join expression, and
// merges matching runs, yielding the cross product of every left/right pair
// with an equal join value.
func (joinOp *EqualityJoin) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	leftIter, err := joinOp.left.Iterator(tid)
	if err != nil {
		return nil, err
	}
	leftTuples, err := drainIterator(leftIter)
	if err != nil {
		return nil, err
	}

	rightIter, err := joinOp.right.Iterator(tid)
	if err != nil {
		return nil, err
	}
	rightTuples, err := drainIterator(rightIter)
	if err != nil {
		return nil, err
	}

	sortTuplesByField(leftTuples, joinOp.leftField)
	sortTuplesByField(rightTuples, joinOp.rightField)

	joined := mergeJoinTuples(leftTuples, rightTuples, joinOp.leftField, joinOp.rightField)

	i := 0
	return func() (*Tuple, error) {
		if i >= len(joined) {
			return nil, nil
		}
		i++
		return joined[i-1], nil
	}, nil
}

func drainIterator(iter func() (*Tuple, error)) ([]*Tuple, error) {
	var tuples []*Tuple
	for {
		t, err := iter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			return tuples, nil
		}
		tuples = append(tuples, t)
	}
}

func sortTuplesByField(tuples []*Tuple, field Expr) {
	sort.Slice(tuples, func(i, j int) bool {
		cmp, _ := tuples[i].compareField(tuples[j], field)
		return cmp == OrderedLessThan
	})
}

func mergeJoinTuples(left, right []*Tuple, leftField, rightField Expr) []*Tuple {
	var joined []*Tuple
	i, j := 0, 0

	for i < len(left) && j < len(right) {
		cmp, err := compareAcross(left[i], right[j], leftField, rightField)
		if err != nil {
			break
		}
		switch cmp {
		case OrderedEqual:
			iEnd := equalRunEnd(left, i, leftField)
			jEnd := equalRunEnd(right, j, rightField)
			for a := i; a < iEnd; a++ {
				for b := j; b < jEnd; b++ {
					joined = append(joined, joinTuples(left[a], right[b]))
				}
			}
			i, j = iEnd, jEnd
		case OrderedLessThan:
			i++
		case OrderedGreaterThan:
			j++
		}
	}
	return joined
}

func compareAcross(l, r *Tuple, leftField, rightField Expr) (orderByState, error) {
	lv, err := leftField.EvalExpr(l)
	if err != nil {
		return OrderedEqual, err
	}
	rv, err := rightField.EvalExpr(r)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(lv, rv)
}

// equalRunEnd returns the index just past the run of tuples starting at
// start whose field value equals tuples[start]'s.
func equalRunEnd(tuples []*Tuple, start int, field Expr) int {
	end := start + 1
	for end < len(tuples) {
		cmp, err := tuples[end].compareField(tuples[start], field)
		if err != nil || cmp != OrderedEqual {
			break
		}
		end++
	}
	return end
}
