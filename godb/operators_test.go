package godb

import "testing"

// sliceOp is an Operator backed by an in-memory slice of tuples, used to
// exercise the query operators without going through a HeapFile.
type sliceOp struct {
	desc   *TupleDesc
	tuples []Tuple
}

func (s *sliceOp) Descriptor() *TupleDesc {
	return s.desc
}

func (s *sliceOp) Iterator(tid TransactionID) (func() (*Tuple, error), error) {
	i := 0
	return func() (*Tuple, error) {
		if i >= len(s.tuples) {
			return nil, nil
		}
		t := s.tuples[i]
		i++
		return &t, nil
	}, nil
}

func peopleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
}

func peopleOp() *sliceOp {
	desc := peopleDesc()
	return &sliceOp{
		desc: desc,
		tuples: []Tuple{
			{Desc: *desc, Fields: []DBValue{StringField{"alice"}, IntField{30}}},
			{Desc: *desc, Fields: []DBValue{StringField{"bob"}, IntField{25}}},
			{Desc: *desc, Fields: []DBValue{StringField{"carol"}, IntField{25}}},
			{Desc: *desc, Fields: []DBValue{StringField{"dave"}, IntField{40}}},
		},
	}
}

func drainAll(t *testing.T, it func() (*Tuple, error)) []*Tuple {
	t.Helper()
	var out []*Tuple
	for {
		tup, err := it()
		if err != nil {
			t.Fatalf("iterating: %v", err)
		}
		if tup == nil {
			return out
		}
		out = append(out, tup)
	}
}

func TestFilterGt(t *testing.T) {
	desc := peopleDesc()
	ageField := &FieldExpr{Field: desc.Fields[1]}
	constExpr := &ConstExpr{Val: IntField{28}, Ftype: IntType}

	filt, err := NewFilter(constExpr, OpGt, ageField, peopleOp())
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	it, err := filt.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	out := drainAll(t, it)
	if len(out) != 2 {
		t.Fatalf("expected 2 tuples with age > 28, got %d", len(out))
	}
	for _, tup := range out {
		if tup.Fields[1].(IntField).Value <= 28 {
			t.Errorf("filter let through age %d", tup.Fields[1].(IntField).Value)
		}
	}
}

func TestProjectNames(t *testing.T) {
	desc := peopleDesc()
	nameExpr := &FieldExpr{Field: desc.Fields[0]}

	proj, err := NewProjectOp([]Expr{nameExpr}, []string{"n"}, false, peopleOp())
	if err != nil {
		t.Fatalf("NewProjectOp: %v", err)
	}
	if len(proj.Descriptor().Fields) != 1 || proj.Descriptor().Fields[0].Fname != "n" {
		t.Fatalf("unexpected descriptor: %+v", proj.Descriptor())
	}
	it, err := proj.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	out := drainAll(t, it)
	if len(out) != 4 {
		t.Fatalf("expected 4 tuples, got %d", len(out))
	}
	if len(out[0].Fields) != 1 {
		t.Fatalf("projected tuple should have one field, got %d", len(out[0].Fields))
	}
}

func TestOrderByAgeDescending(t *testing.T) {
	desc := peopleDesc()
	ageExpr := &FieldExpr{Field: desc.Fields[1]}

	ob, err := NewOrderBy([]Expr{ageExpr}, peopleOp(), []bool{false})
	if err != nil {
		t.Fatalf("NewOrderBy: %v", err)
	}
	it, err := ob.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	out := drainAll(t, it)
	if len(out) != 4 {
		t.Fatalf("expected 4 tuples, got %d", len(out))
	}
	prev := int64(1 << 62)
	for _, tup := range out {
		age := tup.Fields[1].(IntField).Value
		if age > prev {
			t.Fatalf("tuples not in descending order: %d appeared after %d", age, prev)
		}
		prev = age
	}
}

func TestLimitOpCapsResults(t *testing.T) {
	lim := NewLimitOp(&ConstExpr{Val: IntField{2}, Ftype: IntType}, peopleOp())
	it, err := lim.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	out := drainAll(t, it)
	if len(out) != 2 {
		t.Fatalf("expected limit to cap at 2 tuples, got %d", len(out))
	}
}

func TestEqualityJoinMatchesOnAge(t *testing.T) {
	desc := peopleDesc()
	otherDesc := &TupleDesc{Fields: []FieldType{
		{Fname: "age", Ftype: IntType},
		{Fname: "bucket", Ftype: StringType},
	}}
	buckets := &sliceOp{
		desc: otherDesc,
		tuples: []Tuple{
			{Desc: *otherDesc, Fields: []DBValue{IntField{25}, StringField{"young"}}},
			{Desc: *otherDesc, Fields: []DBValue{IntField{40}, StringField{"old"}}},
		},
	}

	join, err := NewJoin(peopleOp(), &FieldExpr{Field: desc.Fields[1]}, buckets, &FieldExpr{Field: otherDesc.Fields[0]}, 1<<20)
	if err != nil {
		t.Fatalf("NewJoin: %v", err)
	}
	it, err := join.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	out := drainAll(t, it)
	// bob and carol both match age 25, dave matches age 40: three joined rows.
	if len(out) != 3 {
		t.Fatalf("expected 3 joined tuples, got %d", len(out))
	}
	for _, tup := range out {
		if len(tup.Fields) != 4 {
			t.Fatalf("joined tuple should have 4 fields, got %d", len(tup.Fields))
		}
	}
}

func TestGroupByCountPerAge(t *testing.T) {
	desc := peopleDesc()
	ageExpr := &FieldExpr{Field: desc.Fields[1]}

	count := &CountAggState{}
	if err := count.Init("n", ageExpr); err != nil {
		t.Fatalf("Init: %v", err)
	}

	gb, err := NewGroupByOp([]Expr{ageExpr}, []AggState{count}, peopleOp())
	if err != nil {
		t.Fatalf("NewGroupByOp: %v", err)
	}
	it, err := gb.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	out := drainAll(t, it)
	if len(out) != 3 {
		t.Fatalf("expected 3 distinct ages, got %d", len(out))
	}
	totals := map[int64]int64{}
	for _, tup := range out {
		age := tup.Fields[0].(IntField).Value
		n := tup.Fields[1].(IntField).Value
		totals[age] = n
	}
	if totals[25] != 2 {
		t.Errorf("expected 2 people aged 25, got %d", totals[25])
	}
	if totals[30] != 1 || totals[40] != 1 {
		t.Errorf("expected 1 person each at ages 30 and 40, got 30=%d 40=%d", totals[30], totals[40])
	}
}
