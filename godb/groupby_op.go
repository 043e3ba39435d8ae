package godb

// GroupByOp groups its child's tuples by a list of grouping expressions and
// computes one or more AggState aggregates within each group, emitting one
// output tuple per distinct group value. With no grouping expressions, it
// computes a single aggregate over the whole input.
type GroupByOp struct {
	child      Operator
	groupByExp []Expr
	aggStates  []AggState
	desc       *TupleDesc
}

// NewGroupByOp constructs a group-by operator. aggStates is a template list
// of AggState values (one per aggregate in the select list), each already
// seeded via Init(alias, expr) by the caller before passing them in; each
// group gets its own Copy of each.
func NewGroupByOp(groupByExp []Expr, aggStates []AggState, child Operator) (*GroupByOp, error) {
	fields := make([]FieldType, 0, len(groupByExp)+len(aggStates))
	for _, e := range groupByExp {
		fields = append(fields, e.GetExprType())
	}
	for _, a := range aggStates {
		fields = append(fields, a.GetTupleDesc().Fields...)
	}
	return &GroupByOp{
		child:      child,
		groupByExp: groupByExp,
		aggStates:  aggStates,
		desc:       &TupleDesc{Fields: fields},
	}, nil
}

// Descriptor returns the grouping fields followed by each aggregate's field.
func (g *GroupByOp) Descriptor() *TupleDesc {
	return g.desc
}

type groupKey string

func (g *GroupByOp) keyFor(t *Tuple) (groupKey, []DBValue, error) {
	vals := make([]DBValue, len(g.groupByExp))
	var key []byte
	for i, e := range g.groupByExp {
		v, err := e.EvalExpr(t)
		if err != nil {
			return "", nil, err
		}
		vals[i] = v
		switch f := v.(type) {
		case IntField:
			key = append(key, byte(f.Value), byte(f.Value>>8), byte(f.Value>>16), byte(f.Value>>24),
				byte(f.Value>>32), byte(f.Value>>40), byte(f.Value>>48), byte(f.Value>>56))
		case StringField:
			key = append(key, []byte(f.Value)...)
		}
		key = append(key, 0)
	}
	return groupKey(key), vals, nil
}

// Iterator consumes the entire child input, maintaining one set of
// aggregate states per distinct group value, then emits one tuple per
// group.
func (g *GroupByOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	childIter, err := g.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	type groupEntry struct {
		groupVals []DBValue
		states    []AggState
	}
	groups := make(map[groupKey]*groupEntry)
	var order []groupKey

	for {
		t, err := childIter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}
		key, vals, err := g.keyFor(t)
		if err != nil {
			return nil, err
		}
		entry, ok := groups[key]
		if !ok {
			states := make([]AggState, len(g.aggStates))
			for i, a := range g.aggStates {
				states[i] = a.Copy()
			}
			entry = &groupEntry{groupVals: vals, states: states}
			groups[key] = entry
			order = append(order, key)
		}
		for _, s := range entry.states {
			s.AddTuple(t)
		}
	}

	i := 0
	return func() (*Tuple, error) {
		if i >= len(order) {
			return nil, nil
		}
		entry := groups[order[i]]
		i++

		fields := make([]DBValue, 0, len(entry.groupVals)+len(entry.states))
		fields = append(fields, entry.groupVals...)
		for _, s := range entry.states {
			fields = append(fields, s.Finalize().Fields...)
		}
		return &Tuple{Desc: *g.desc, Fields: fields}, nil
	}, nil
}
