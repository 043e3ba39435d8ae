package godb

import (
	"bytes"
	"testing"

	"github.com/d4l3k/messagediff"
)

func sampleTuple() *Tuple {
	desc := TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
	return &Tuple{Desc: desc, Fields: []DBValue{StringField{"alice"}, IntField{30}}}
}

func TestTupleWriteReadRoundTrip(t *testing.T) {
	tup := sampleTuple()
	var buf bytes.Buffer
	if err := tup.writeTo(&buf); err != nil {
		t.Fatalf("writeTo: %v", err)
	}

	got, err := readTupleFrom(&buf, &tup.Desc)
	if err != nil {
		t.Fatalf("readTupleFrom: %v", err)
	}
	if !tup.equals(got) {
		diff, equal := messagediff.PrettyDiff(tup, got)
		if equal {
			t.Fatal("equals() disagreed with messagediff despite no reported diff")
		}
		t.Fatalf("round-tripped tuple differs from the original:\n%s", diff)
	}
}

func TestTupleEqualsDetectsFieldDifference(t *testing.T) {
	a := sampleTuple()
	b := sampleTuple()
	b.Fields[1] = IntField{31}

	if a.equals(b) {
		t.Fatal("tuples with different ages should not compare equal")
	}
	diff, equal := messagediff.PrettyDiff(a, b)
	if equal {
		t.Fatal("messagediff should also report a difference")
	}
	if diff == "" {
		t.Error("expected a non-empty diff description")
	}
}

func TestTupleDescEquals(t *testing.T) {
	d1 := &TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}}}
	d2 := &TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: IntType}}}
	d3 := &TupleDesc{Fields: []FieldType{{Fname: "a", Ftype: StringType}}}

	if !d1.equals(d2) {
		t.Error("identical descriptors should be equal")
	}
	if d1.equals(d3) {
		t.Error("descriptors with differing field types should not be equal")
	}
}

func TestJoinTuplesConcatenatesFields(t *testing.T) {
	left := sampleTuple()
	rightDesc := TupleDesc{Fields: []FieldType{{Fname: "bucket", Ftype: StringType}}}
	right := &Tuple{Desc: rightDesc, Fields: []DBValue{StringField{"young"}}}

	joined := joinTuples(left, right)
	if len(joined.Fields) != 3 {
		t.Fatalf("expected 3 fields after join, got %d", len(joined.Fields))
	}
	if joined.Fields[2].(StringField).Value != "young" {
		t.Errorf("expected trailing field from right tuple, got %+v", joined.Fields[2])
	}
}
