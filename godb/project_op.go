package godb

type Project struct {
	selectFields []Expr
	outputNames  []string
	child        Operator
	distinct     bool
}

// NewProjectOp constructs a projection over child. outputNames must be the
// same length as selectFields. distinct, if set, suppresses duplicate
// output tuples.
func NewProjectOp(selectFields []Expr, outputNames []string, distinct bool, child Operator) (Operator, error) {
	return &Project{selectFields: selectFields, outputNames: outputNames, child: child, distinct: distinct}, nil
}

// Descriptor returns selectFields' types renamed to outputNames.
func (p *Project) Descriptor() *TupleDesc {
	fields := []FieldType{}

	if len(p.outputNames) != len(p.selectFields) {
		panic("project: outputNames and selectFields must be the same length")
	}

	for i, val := range p.selectFields {
		fieldType := val.GetExprType()
		fieldType.Fname = p.outputNames[i]
		fields = append(fields, fieldType)
	}

	return &TupleDesc{fields}

}

func contains(s []Tuple, t Tuple) bool {
	for _, seen := range s {
		if seen.equals(&t) {
			return true
		}
	}
	return false
}

// Iterator projects each child tuple onto selectFields, skipping tuples
// already seen when distinct is set.
func (p *Project) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	seen := []Tuple{}
	fields := []FieldType{}

	for _, val := range p.selectFields {
		fieldType := val.GetExprType()
		fields = append(fields, fieldType)
	}

	it, err := p.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	return func() (*Tuple, error) {

		for {
			tup, err := it()
			if err != nil {
				return nil, err
			}
			if tup == nil {
				return nil, nil
			}

			outTup, err := tup.project(fields)
			if err != nil {
				return nil, err
			}

			if p.distinct && contains(seen, *outTup) {
				continue
			} else {
				seenDescFields := make([]FieldType, len(outTup.Desc.Fields))
				copy(seenDescFields, outTup.Desc.Fields)

				seen = append(seen, Tuple{
					TupleDesc{seenDescFields}, outTup.Fields, outTup.Rid})

				// reset the names using the outputNames
				for i := range outTup.Desc.Fields {
					outTup.Desc.Fields[i].Fname = p.outputNames[i]
				}

				return outTup, nil
			}
		}
	}, nil
}
