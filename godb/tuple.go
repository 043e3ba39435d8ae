package godb

// This file defines the type system and tuple representation used
// throughout GoDB: DBType, FieldType, TupleDesc, DBValue, and Tuple.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unsafe"
)

// DBType is the type of a tuple field, e.g. IntType or StringType.
type DBType int

const (
	IntType     DBType = iota
	StringType  DBType = iota
	UnknownType DBType = iota // used internally during parsing
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// FieldType names a field: its name, its owning table qualifier (may be
// empty if the query didn't specify one), and its DBType.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is the "type" of a tuple: its field names and types.
type TupleDesc struct {
	Fields []FieldType
}

// bytesPerTuple returns the fixed on-disk width, in bytes, of a tuple with
// this descriptor: 8 bytes per IntType field (an int64), StringLength bytes
// per StringType field.
func (td *TupleDesc) bytesPerTuple() int {
	total := 0
	for _, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			total += int(unsafe.Sizeof(int64(0)))
		case StringType:
			total += int(unsafe.Sizeof(byte('a'))) * StringLength
		}
	}
	return total
}

// equals reports whether d1 and d2 have the same field names and types, in
// the same order.
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Fname != d2.Fields[i].Fname {
			return false
		}
		if d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// findFieldInTd finds the best matching field in desc for field: same
// Ftype and name, preferring a match on TableQualifier when field has one.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname == field.Fname && (f.Ftype == field.Ftype || field.Ftype == UnknownType) {
			if field.TableQualifier == "" && best != -1 {
				return 0, GoDBError{AmbiguousNameError, fmt.Sprintf("select name %s is ambiguous", f.Fname)}
			}
			if f.TableQualifier == field.TableQualifier || best == -1 {
				best = i
			}
		}
	}
	if best != -1 {
		return best, nil
	}
	return -1, GoDBError{IncompatibleTypesError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname)}
}

// copy returns a deep copy of td's field slice.
func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// setTableAlias reassigns the TableQualifier of every field to alias.
func (td *TupleDesc) setTableAlias(alias string) {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	for i := range fields {
		fields[i].TableQualifier = alias
	}
	td.Fields = fields
}

// merge returns a new TupleDesc consisting of desc's fields followed by
// desc2's fields.
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

// ================== Tuple Methods ======================

// DBValue is the interface every tuple field value implements.
type DBValue interface {
	EvalPred(v DBValue, op BoolOp) bool
}

// IntField is an integer field value.
type IntField struct {
	Value int64
}

// StringField is a string field value.
type StringField struct {
	Value string
}

func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(IntField)
	if !ok {
		return false
	}
	return evalOp(op, func() int { return cmpInt(f.Value, other.Value) }())
}

func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(StringField)
	if !ok {
		return false
	}
	return evalOp(op, strings.Compare(f.Value, other.Value))
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// recordID identifies where a tuple lives on disk. heapFileRid is the only
// implementation; it additionally names the owning table so the buffer
// pool can resolve a DBFile purely from a tuple's Rid (see
// BufferPool.DeleteTuple).
type recordID interface {
	tableID() int
}

// heapFileRid locates a tuple within a HeapFile: which table, which page,
// which slot.
type heapFileRid struct {
	table  int
	pageNo int
	slotNo int
}

func (r heapFileRid) tableID() int { return r.table }

// Tuple represents the contents of a tuple read from, or to be written to,
// a database file.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    recordID
}

func writeStringField(b *bytes.Buffer, strField StringField) error {
	padded := make([]byte, StringLength)
	copy(padded, []byte(strField.Value))
	return binary.Write(b, binary.LittleEndian, padded)
}

func writeIntField(b *bytes.Buffer, intField IntField) error {
	return binary.Write(b, binary.LittleEndian, intField.Value)
}

// writeTo serializes the tuple's fields, in order, into b.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch v := field.(type) {
		case StringField:
			if err := writeStringField(b, v); err != nil {
				return err
			}
		case IntField:
			if err := writeIntField(b, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported field type: %T", field)
		}
	}
	return nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	raw := make([]byte, StringLength)
	if err := binary.Read(b, binary.LittleEndian, raw); err != nil {
		return StringField{}, err
	}
	return StringField{Value: strings.TrimRight(string(raw), "\x00")}, nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int64
	if err := binary.Read(b, binary.LittleEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: v}, nil
}

// readTupleFrom deserializes a tuple with the given descriptor from b.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	tuple := &Tuple{Desc: *desc}

	for _, fieldDesc := range desc.Fields {
		switch fieldDesc.Ftype {
		case StringType:
			strField, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, strField)
		default:
			intField, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			tuple.Fields = append(tuple.Fields, intField)
		}
	}
	return tuple, nil
}

// equals reports whether t1 and t2 have equal descriptors and equal fields.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil && t2 == nil {
		return true
	}
	if t1 == nil || t2 == nil {
		return false
	}
	if len(t1.Fields) != len(t2.Fields) {
		return false
	}
	if !t1.Desc.equals(&t2.Desc) {
		return false
	}
	for i := range t1.Fields {
		if t1.Fields[i] != t2.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples returns a new tuple with t2's fields appended to t1's.
func joinTuples(t1 *Tuple, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	return &Tuple{
		Desc:   *t1.Desc.merge(&t2.Desc),
		Fields: append(append([]DBValue{}, t1.Fields...), t2.Fields...),
	}
}

type orderByState int

const (
	OrderedLessThan orderByState = iota
	OrderedEqual
	OrderedGreaterThan
)

// compareField evaluates field against both t and t2 and returns how they
// order relative to each other.
func (t *Tuple) compareField(t2 *Tuple, field Expr) (orderByState, error) {
	val1, err := field.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	val2, err := field.EvalExpr(t2)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(val1, val2)
}

func compareFields(val1, val2 DBValue) (orderByState, error) {
	if v1, ok := val1.(IntField); ok {
		if v2, ok := val2.(IntField); ok {
			switch {
			case v1.Value > v2.Value:
				return OrderedGreaterThan, nil
			case v1.Value == v2.Value:
				return OrderedEqual, nil
			default:
				return OrderedLessThan, nil
			}
		}
	}
	if v1, ok := val1.(StringField); ok {
		if v2, ok := val2.(StringField); ok {
			switch {
			case v1.Value > v2.Value:
				return OrderedGreaterThan, nil
			case v1.Value == v2.Value:
				return OrderedEqual, nil
			default:
				return OrderedLessThan, nil
			}
		}
	}
	return OrderedEqual, fmt.Errorf("unsupported field comparison between %T and %T", val1, val2)
}

// project returns a new Tuple containing just the named fields, preferring
// a match on TableQualifier when more than one field shares a name.
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	projected := &Tuple{Desc: TupleDesc{}, Fields: []DBValue{}}
	for _, field := range fields {
		idx, err := findFieldInTd(field, &t.Desc)
		if err != nil {
			return nil, err
		}
		projected.Fields = append(projected.Fields, t.Fields[idx])
		projected.Desc.Fields = append(projected.Desc.Fields, t.Desc.Fields[idx])
	}
	return projected, nil
}
