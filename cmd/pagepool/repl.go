package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/xwb1989/sqlparser"

	"github.com/tikkisean/pagepool/godb"
)

// Repl reads SQL statements from an interactive prompt, compiles them into
// godb operator trees, and runs each as its own transaction.
type Repl struct {
	dataDir string
	catalog *godb.Catalog
	bp      *godb.BufferPool
}

func NewRepl(dataDir string, catalog *godb.Catalog, bp *godb.BufferPool) *Repl {
	return &Repl{dataDir: dataDir, catalog: catalog, bp: bp}
}

func (r *Repl) Run() error {
	rl, err := readline.New("pagepool> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ";"))
		if stmt == "" {
			continue
		}
		if err := r.execute(stmt); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func (r *Repl) execute(stmt string) error {
	parsed, err := sqlparser.Parse(stmt)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	tid := godb.NewTID()
	switch s := parsed.(type) {
	case *sqlparser.DDL:
		if s.Action != sqlparser.CreateStr {
			return fmt.Errorf("unsupported DDL action %q", s.Action)
		}
		err = r.createTable(s)
	case *sqlparser.Select:
		err = r.runSelect(tid, s)
	case *sqlparser.Insert:
		err = r.runInsert(tid, s)
	case *sqlparser.Delete:
		err = r.runDelete(tid, s)
	default:
		err = fmt.Errorf("unsupported statement type %T", parsed)
	}

	if err != nil {
		r.bp.TransactionComplete(tid, false)
		return err
	}
	r.bp.TransactionComplete(tid, true)
	return nil
}

func (r *Repl) createTable(ddl *sqlparser.DDL) error {
	if ddl.TableSpec == nil {
		return fmt.Errorf("CREATE TABLE requires a column list")
	}
	fields := make([]godb.FieldType, 0, len(ddl.TableSpec.Columns))
	for _, col := range ddl.TableSpec.Columns {
		ftype, err := sqlColumnType(col.Type.Type)
		if err != nil {
			return err
		}
		fields = append(fields, godb.FieldType{Fname: col.Name.String(), Ftype: ftype})
	}
	td := &godb.TupleDesc{Fields: fields}

	name := ddl.NewName.Name.String()
	backing := filepath.Join(r.dataDir, name+".dat")
	file, err := godb.NewHeapFile(backing, td, r.bp)
	if err != nil {
		return err
	}
	r.catalog.AddTable(name, file)
	return nil
}

func sqlColumnType(t string) (godb.DBType, error) {
	switch strings.ToLower(t) {
	case "int", "integer", "bigint":
		return godb.IntType, nil
	case "varchar", "char", "text", "string":
		return godb.StringType, nil
	}
	return godb.UnknownType, fmt.Errorf("unsupported column type %q", t)
}

func (r *Repl) tableExpr(from sqlparser.TableExprs) (string, error) {
	if len(from) != 1 {
		return "", fmt.Errorf("only single-table queries are supported")
	}
	aliased, ok := from[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return "", fmt.Errorf("unsupported table expression %T", from[0])
	}
	tableName, ok := aliased.Expr.(sqlparser.TableName)
	if !ok {
		return "", fmt.Errorf("unsupported table expression %T", aliased.Expr)
	}
	return tableName.Name.String(), nil
}

func (r *Repl) scan(tableName string) (*godb.HeapFile, godb.Operator, error) {
	file, err := r.catalog.GetDBFileByName(tableName)
	if err != nil {
		return nil, nil, err
	}
	hf, ok := file.(*godb.HeapFile)
	if !ok {
		return nil, nil, fmt.Errorf("table %q is not a heap file", tableName)
	}
	return hf, &scanOp{file: hf}, nil
}

// scanOp adapts a DBFile's Iterator into an Operator, the leaf of every
// query plan this REPL compiles.
type scanOp struct {
	file *godb.HeapFile
}

func (s *scanOp) Descriptor() *godb.TupleDesc { return s.file.Descriptor() }
func (s *scanOp) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	return s.file.Iterator(tid)
}

func (r *Repl) whereFilter(tableDesc *godb.TupleDesc, where *sqlparser.Where, child godb.Operator) (godb.Operator, error) {
	if where == nil {
		return child, nil
	}
	cmp, ok := where.Expr.(*sqlparser.ComparisonExpr)
	if !ok {
		return nil, fmt.Errorf("only a single comparison is supported in WHERE")
	}
	col, ok := cmp.Left.(*sqlparser.ColName)
	if !ok {
		return nil, fmt.Errorf("WHERE left side must be a column")
	}
	op, err := sqlCompareOp(cmp.Operator)
	if err != nil {
		return nil, err
	}
	field, err := fieldForColumn(tableDesc, col)
	if err != nil {
		return nil, err
	}
	constVal, err := constExprFor(field.Ftype, cmp.Right)
	if err != nil {
		return nil, err
	}
	return godb.NewFilter(constVal, op, &godb.FieldExpr{Field: field}, child)
}

func sqlCompareOp(op string) (godb.BoolOp, error) {
	switch op {
	case sqlparser.EqualStr:
		return godb.OpEq, nil
	case sqlparser.NotEqualStr:
		return godb.OpNeq, nil
	case sqlparser.LessThanStr:
		return godb.OpLt, nil
	case sqlparser.LessEqualStr:
		return godb.OpLe, nil
	case sqlparser.GreaterThanStr:
		return godb.OpGt, nil
	case sqlparser.GreaterEqualStr:
		return godb.OpGe, nil
	}
	return 0, fmt.Errorf("unsupported comparison operator %q", op)
}

func fieldForColumn(td *godb.TupleDesc, col *sqlparser.ColName) (godb.FieldType, error) {
	for _, f := range td.Fields {
		if f.Fname == col.Name.String() {
			return f, nil
		}
	}
	return godb.FieldType{}, fmt.Errorf("no such column %q", col.Name.String())
}

func constExprFor(ftype godb.DBType, expr sqlparser.Expr) (*godb.ConstExpr, error) {
	val, ok := expr.(*sqlparser.SQLVal)
	if !ok {
		return nil, fmt.Errorf("only literal values are supported in comparisons")
	}
	dbVal, err := sqlValToDBValue(ftype, val)
	if err != nil {
		return nil, err
	}
	return &godb.ConstExpr{Val: dbVal, Ftype: ftype}, nil
}

func sqlValToDBValue(ftype godb.DBType, val *sqlparser.SQLVal) (godb.DBValue, error) {
	switch ftype {
	case godb.IntType:
		n, err := strconv.ParseInt(string(val.Val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer literal: %w", err)
		}
		return godb.IntField{Value: n}, nil
	case godb.StringType:
		return godb.StringField{Value: string(val.Val)}, nil
	}
	return nil, fmt.Errorf("unsupported field type")
}

func (r *Repl) runSelect(tid godb.TransactionID, s *sqlparser.Select) error {
	tableName, err := r.tableExpr(s.From)
	if err != nil {
		return err
	}
	_, scan, err := r.scan(tableName)
	if err != nil {
		return err
	}

	filtered, err := r.whereFilter(scan.Descriptor(), s.Where, scan)
	if err != nil {
		return err
	}

	plan, err := r.project(filtered, s.SelectExprs)
	if err != nil {
		return err
	}

	plan, err = r.orderBy(plan, s.OrderBy)
	if err != nil {
		return err
	}

	plan, err = r.limit(plan, s.Limit)
	if err != nil {
		return err
	}

	return r.printResults(tid, plan)
}

func (r *Repl) project(child godb.Operator, exprs sqlparser.SelectExprs) (godb.Operator, error) {
	_, isStar := exprs[0].(*sqlparser.StarExpr)
	if len(exprs) == 1 && isStar {
		return child, nil
	}

	desc := child.Descriptor()
	var selectFields []godb.Expr
	var outputNames []string
	for _, se := range exprs {
		aliased, ok := se.(*sqlparser.AliasedExpr)
		if !ok {
			return nil, fmt.Errorf("unsupported select expression %T", se)
		}
		col, ok := aliased.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, fmt.Errorf("only bare column references are supported in SELECT")
		}
		field, err := fieldForColumn(desc, col)
		if err != nil {
			return nil, err
		}
		selectFields = append(selectFields, &godb.FieldExpr{Field: field})
		if !aliased.As.IsEmpty() {
			outputNames = append(outputNames, aliased.As.String())
		} else {
			outputNames = append(outputNames, field.Fname)
		}
	}
	return godb.NewProjectOp(selectFields, outputNames, false, child)
}

func (r *Repl) orderBy(child godb.Operator, order sqlparser.OrderBy) (godb.Operator, error) {
	if len(order) == 0 {
		return child, nil
	}
	desc := child.Descriptor()
	var exprs []godb.Expr
	var asc []bool
	for _, ord := range order {
		col, ok := ord.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, fmt.Errorf("ORDER BY only supports bare columns")
		}
		field, err := fieldForColumn(desc, col)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, &godb.FieldExpr{Field: field})
		asc = append(asc, ord.Direction != sqlparser.DescScr)
	}
	return godb.NewOrderBy(exprs, child, asc)
}

func (r *Repl) limit(child godb.Operator, lim *sqlparser.Limit) (godb.Operator, error) {
	if lim == nil || lim.Rowcount == nil {
		return child, nil
	}
	val, ok := lim.Rowcount.(*sqlparser.SQLVal)
	if !ok {
		return nil, fmt.Errorf("LIMIT must be a literal")
	}
	n, err := strconv.ParseInt(string(val.Val), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LIMIT value: %w", err)
	}
	return godb.NewLimitOp(&godb.ConstExpr{Val: godb.IntField{Value: n}, Ftype: godb.IntType}, child), nil
}

func (r *Repl) printResults(tid godb.TransactionID, plan godb.Operator) error {
	iter, err := plan.Iterator(tid)
	if err != nil {
		return err
	}
	desc := plan.Descriptor()
	names := make([]string, len(desc.Fields))
	for i, f := range desc.Fields {
		names[i] = f.Fname
	}
	fmt.Println(strings.Join(names, "\t"))

	rows := 0
	for {
		t, err := iter()
		if err != nil {
			return err
		}
		if t == nil {
			break
		}
		fmt.Println(formatTuple(t))
		rows++
	}
	fmt.Printf("(%d rows)\n", rows)
	return nil
}

func formatTuple(t *godb.Tuple) string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		switch v := f.(type) {
		case godb.IntField:
			parts[i] = strconv.FormatInt(v.Value, 10)
		case godb.StringField:
			parts[i] = v.Value
		default:
			parts[i] = fmt.Sprintf("%v", f)
		}
	}
	return strings.Join(parts, "\t")
}

func (r *Repl) runInsert(tid godb.TransactionID, s *sqlparser.Insert) error {
	tableName := s.Table.Name.String()
	file, err := r.catalog.GetDBFileByName(tableName)
	if err != nil {
		return err
	}
	desc := file.Descriptor()

	rows, ok := s.Rows.(sqlparser.Values)
	if !ok {
		return fmt.Errorf("only VALUES inserts are supported")
	}

	for _, row := range rows {
		if len(row) != len(desc.Fields) {
			return fmt.Errorf("expected %d values, got %d", len(desc.Fields), len(row))
		}
		fields := make([]godb.DBValue, len(row))
		for i, expr := range row {
			val, ok := expr.(*sqlparser.SQLVal)
			if !ok {
				return fmt.Errorf("only literal values are supported in INSERT")
			}
			dbVal, err := sqlValToDBValue(desc.Fields[i].Ftype, val)
			if err != nil {
				return err
			}
			fields[i] = dbVal
		}
		t := &godb.Tuple{Desc: *desc, Fields: fields}
		if err := r.bp.InsertTuple(tid, file.ID(), t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repl) runDelete(tid godb.TransactionID, s *sqlparser.Delete) error {
	tableName, err := r.tableExpr(s.TableExprs)
	if err != nil {
		return err
	}
	_, scan, err := r.scan(tableName)
	if err != nil {
		return err
	}
	plan, err := r.whereFilter(scan.Descriptor(), s.Where, scan)
	if err != nil {
		return err
	}

	iter, err := plan.Iterator(tid)
	if err != nil {
		return err
	}
	for {
		t, err := iter()
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		if err := r.bp.DeleteTuple(tid, t); err != nil {
			return err
		}
	}
}
