package godb

// BoolOp enumerates the comparison operators the query operators and the
// planner support.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpGt
	OpGe
	OpLt
	OpLe
)

func evalOp(op BoolOp, cmp int) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpNeq:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	}
	return false
}

// Expr is anything that can be evaluated against a Tuple to produce a
// DBValue: a bare field reference, a constant, or (in principle) a richer
// expression tree. Query operators take Exprs rather than field names so
// that, e.g., ORDER BY can sort on an arbitrary expression.
type Expr interface {
	EvalExpr(t *Tuple) (DBValue, error)
	GetExprType() FieldType
}

// FieldExpr extracts a named field from a tuple.
type FieldExpr struct {
	Field FieldType
}

func (e *FieldExpr) EvalExpr(t *Tuple) (DBValue, error) {
	idx, err := findFieldInTd(e.Field, &t.Desc)
	if err != nil {
		return nil, err
	}
	return t.Fields[idx], nil
}

func (e *FieldExpr) GetExprType() FieldType {
	return e.Field
}

// ConstExpr always evaluates to the same value, independent of the tuple.
type ConstExpr struct {
	Val   DBValue
	Ftype DBType
}

func (e *ConstExpr) EvalExpr(t *Tuple) (DBValue, error) {
	return e.Val, nil
}

func (e *ConstExpr) GetExprType() FieldType {
	return FieldType{Fname: "", TableQualifier: "", Ftype: e.Ftype}
}
