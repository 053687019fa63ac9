package compiler

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext"
)

// tableScope is a table or subquery visible to a builder select.
type tableScope struct {
	ref      domain.TableRef
	columns  []schemadomain.ParsedColumn
	optional bool
}

func (t *tableScope) column(name string) (schemadomain.ParsedColumn, bool) {
	for _, c := range t.columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return schemadomain.ParsedColumn{}, false
}

// exprCompiler compiles builder nodes. Column types come from the catalog
// and function types from the analyzer's function table.
type exprCompiler struct {
	s        *state
	scopes   map[string]*tableScope
	joined   map[string]bool
	narrowed map[string]bool
	grouped  bool
}

var operators = map[string]string{
	"eq":    "=",
	"not":   "!=",
	"gt":    ">",
	"gte":   ">=",
	"lt":    "<",
	"lte":   "<=",
	"like":  "like",
	"glob":  "glob",
	"match": "match",
}

var arithmetic = map[string]bool{"+": true, "-": true, "*": true, "/": true, "%": true, "||": true}

// jsonArgs lists functions whose arguments are embedded in JSON.
var jsonArgs = map[string]bool{
	"json_object":       true,
	"json_array":        true,
	"json_group_array":  true,
	"json_group_object": true,
}

var placeholder = regexp.MustCompile(`\$p_\d+`)

// CompileSelect compiles a builder select.
func (c *Compiler) CompileSelect(ctx context.Context, sel *domain.Select) (*domain.CompiledQuery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(sel.Tables) == 0 {
		return nil, domain.Errorf("select", "no tables")
	}
	s := newState()
	e := &exprCompiler{
		s:        s,
		scopes:   make(map[string]*tableScope),
		joined:   make(map[string]bool),
		narrowed: make(map[string]bool),
		grouped:  len(sel.GroupBy) > 0,
	}

	var with []string
	for _, ref := range sel.Tables {
		scope := &tableScope{ref: ref}
		if ref.Query != nil {
			with = append(with, ref.Alias+" as ("+s.rebind(ref.Query)+")")
			scope.columns = ref.Query.Columns
			for _, t := range ref.Query.Tables {
				s.tables[t] = true
			}
		} else {
			table, ok := c.catalog.Table(ref.Name)
			if !ok {
				return nil, domain.UnknownTable(ref.Name)
			}
			for _, col := range table.Columns {
				scope.columns = append(scope.columns, parsed(table, col))
			}
			s.tables[table.Name] = true
		}
		e.scopes[ref.Alias] = scope
	}

	source, err := e.from(sel)
	if err != nil {
		return nil, err
	}
	for _, n := range sel.Where {
		e.narrow(n)
	}

	var (
		terms   []string
		columns []schemadomain.ParsedColumn
	)
	fields := sel.Columns
	if sel.Value != nil {
		fields = []domain.Field{{Name: "value", Value: sel.Value}}
	}
	if len(fields) == 0 {
		return nil, domain.Errorf("select", "nothing selected")
	}
	for _, f := range fields {
		sql, op, err := e.expr(f.Value, false)
		if err != nil {
			return nil, err
		}
		if ref, ok := f.Value.(domain.ColumnRef); !ok || !strings.EqualFold(ref.Column, f.Name) {
			sql += " as " + f.Name
		}
		terms = append(terms, sql)
		col := op.ParsedColumn
		col.Name = f.Name
		if col.Structured != nil && col.Type == schemadomain.TypeAny {
			col.Type = schemadomain.TypeJSON
		}
		columns = append(columns, col)
	}

	where, err := e.conjunction(sel.Where)
	if err != nil {
		return nil, err
	}
	groupBy, err := e.list(sel.GroupBy)
	if err != nil {
		return nil, err
	}
	having, err := e.conjunction(sel.Having)
	if err != nil {
		return nil, err
	}
	orderBy, err := e.list(sel.OrderBy)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if len(with) > 0 {
		b.WriteString("with " + strings.Join(with, ", ") + " ")
	}
	b.WriteString("select ")
	if sel.Distinct {
		b.WriteString("distinct ")
	}
	b.WriteString(strings.Join(terms, ", "))
	b.WriteString(" from " + source)
	if len(s.from) > 0 {
		b.WriteString(", " + strings.Join(s.from, ", "))
	}
	if where != "" {
		b.WriteString(" where " + where)
	}
	if len(groupBy) > 0 {
		b.WriteString(" group by " + strings.Join(groupBy, ", "))
	}
	if having != "" {
		b.WriteString(" having " + having)
	}
	limit := sel.Limit
	if sel.First && limit == nil {
		limit = domain.Int(1)
	}
	b.WriteString(keywords(orderBy, sel.Desc, limit, sel.Offset))

	shape := domain.ShapeArray
	switch {
	case sel.Value != nil && sel.First:
		shape = domain.ShapeValue
	case sel.Value != nil:
		shape = domain.ShapeValues
	case sel.First:
		shape = domain.ShapeObject
	}
	tables := make([]string, 0, len(s.tables))
	for t := range s.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return &domain.CompiledQuery{
		SQL:     b.String(),
		Params:  s.params.values,
		Columns: columns,
		Shape:   shape,
		Tables:  tables,
	}, nil
}

// rebind renumbers the placeholders of a subquery into this compilation.
func (s *state) rebind(q *domain.CompiledQuery) string {
	return placeholder.ReplaceAllStringFunc(q.SQL, func(m string) string {
		return s.params.addBound(q.Params[m[1:]])
	})
}

func (e *exprCompiler) render(ref domain.TableRef) string {
	if ref.Query != nil || ref.Name == ref.Alias {
		return ref.Alias
	}
	return ref.Name + " as " + ref.Alias
}

// from renders the from clause. The first table is the left side of the
// first join, or the first declared table when there are no joins.
func (e *exprCompiler) from(sel *domain.Select) (string, error) {
	if len(sel.Joins) == 0 {
		first := sel.Tables[0]
		e.joined[first.Alias] = true
		return e.render(first), nil
	}

	first, ok := e.scopes[sel.Joins[0].Left.Alias]
	if !ok {
		return "", domain.Errorf("join", "unknown table %s", sel.Joins[0].Left.Alias)
	}
	e.joined[first.ref.Alias] = true
	parts := []string{e.render(first.ref)}

	for _, j := range sel.Joins {
		left, right := j.Left, j.Right
		if !e.joined[left.Alias] && e.joined[right.Alias] {
			left, right = right, left
		}
		if !e.joined[left.Alias] {
			return "", domain.Errorf("join", "%s is joined before %s", left.Alias, right.Alias)
		}
		if e.joined[right.Alias] {
			return "", domain.Errorf("join", "%s is joined twice", right.Alias)
		}
		scope, ok := e.scopes[right.Alias]
		if !ok {
			return "", domain.Errorf("join", "unknown table %s", right.Alias)
		}
		e.joined[right.Alias] = true

		kind := "join"
		switch j.Type {
		case domain.InnerJoin:
		case domain.LeftJoin:
			kind = "left join"
			scope.optional = true
		case domain.RightJoin:
			kind = "right join"
			e.optionalJoined(right.Alias)
		case domain.FullJoin:
			kind = "full join"
			e.optionalJoined(right.Alias)
			scope.optional = true
		default:
			return "", domain.Errorf("join", "unknown join type %q", j.Type)
		}

		l, _, err := e.column(left, false)
		if err != nil {
			return "", err
		}
		r, _, err := e.column(right, false)
		if err != nil {
			return "", err
		}
		if j.Type == domain.InnerJoin {
			e.narrowed[left.Alias+"."+strings.ToLower(left.Column)] = true
			e.narrowed[right.Alias+"."+strings.ToLower(right.Column)] = true
		}
		parts = append(parts, fmt.Sprintf("%s %s on %s = %s", kind, e.render(scope.ref), l, r))
	}
	return strings.Join(parts, " "), nil
}

// optionalJoined marks every joined table except skip as optional.
func (e *exprCompiler) optionalJoined(skip string) {
	for alias := range e.joined {
		if alias != skip {
			e.scopes[alias].optional = true
		}
	}
}

// narrow records columns a top-level where conjunct asserts are not null.
func (e *exprCompiler) narrow(n domain.Node) {
	call, ok := n.(*domain.MethodCall)
	if !ok || call.Kind != domain.Compare {
		return
	}
	switch call.Name {
	case "and":
		for _, arg := range call.Args {
			e.narrow(arg)
		}
	case "not":
		if len(call.Args) != 2 {
			return
		}
		ref, ok := call.Args[0].(domain.ColumnRef)
		lit, isLit := call.Args[1].(domain.Literal)
		if ok && isLit && lit.Value == nil {
			e.narrowed[ref.Alias+"."+strings.ToLower(ref.Column)] = true
		}
	}
}

func (e *exprCompiler) list(nodes []domain.Node) ([]string, error) {
	terms := make([]string, 0, len(nodes))
	for _, n := range nodes {
		sql, _, err := e.expr(n, false)
		if err != nil {
			return nil, err
		}
		terms = append(terms, sql)
	}
	return terms, nil
}

func (e *exprCompiler) conjunction(nodes []domain.Node) (string, error) {
	terms, err := e.list(nodes)
	if err != nil {
		return "", err
	}
	return strings.Join(terms, " and "), nil
}

// expr compiles a node. Inside JSON, booleans and JSON text are wrapped so
// they keep their type.
func (e *exprCompiler) expr(n domain.Node, json bool) (string, sqltext.Operand, error) {
	switch x := n.(type) {
	case domain.ColumnRef:
		return e.column(x, json)
	case domain.Literal:
		return e.literal(x, json)
	case *domain.MethodCall:
		switch x.Kind {
		case domain.Compare:
			return e.compare(x)
		case domain.Compute:
			return e.compute(x, json)
		case domain.AggregateCall, domain.WindowFunc:
			return e.call(x, json)
		}
		return "", sqltext.Operand{}, domain.Errorf(x.Name, "unknown method kind %q", x.Kind)
	case nil:
		return "", sqltext.Operand{}, domain.Errorf("select", "missing expression")
	}
	return "", sqltext.Operand{}, domain.Errorf("select", "unsupported node %T", n)
}

func (e *exprCompiler) column(ref domain.ColumnRef, json bool) (string, sqltext.Operand, error) {
	scope, ok := e.scopes[ref.Alias]
	if !ok {
		return "", sqltext.Operand{}, domain.Errorf("select", "unknown table alias %s", ref.Alias)
	}
	if !e.joined[ref.Alias] {
		return "", sqltext.Operand{}, domain.Errorf("select", "table %s is not part of the query", ref.Alias)
	}
	col, ok := scope.column(ref.Column)
	if !ok {
		return "", sqltext.Operand{}, domain.UnknownColumn(scope.ref.Name, ref.Column)
	}
	op := sqltext.Operand{ParsedColumn: col, Column: true}
	narrowed := e.narrowed[ref.Alias+"."+strings.ToLower(col.Name)]
	if narrowed {
		op.Nullable = false
	}
	if scope.optional && !narrowed {
		op.Nullable = true
		op.Optional = true
		if op.Structured != nil {
			st := *op.Structured
			st.Optional = true
			op.Structured = &st
		}
	}
	sql := ref.Alias + "." + col.Name
	if json {
		sql = jsonWrap(sql, col.Type)
	}
	return sql, op, nil
}

// reference renders a column compared inside a where.
func (e *exprCompiler) reference(ref domain.ColumnRef) (string, error) {
	sql, _, err := e.column(ref, false)
	return sql, err
}

func (e *exprCompiler) literal(lit domain.Literal, json bool) (string, sqltext.Operand, error) {
	if lit.Value == nil {
		op := sqltext.Operand{ParsedColumn: schemadomain.ParsedColumn{Type: schemadomain.TypeAny, Nullable: true}, Null: true}
		return "null", op, nil
	}
	op := sqltext.Operand{ParsedColumn: schemadomain.ParsedColumn{Type: literalType(lit.Value)}}
	if b, ok := lit.Value.(bool); ok && json {
		return fmt.Sprintf("json('%t')", b), op, nil
	}
	p, err := e.s.params.add(lit.Value)
	if err != nil {
		return "", sqltext.Operand{}, err
	}
	if op.Type == schemadomain.TypeJSON && json {
		p = "json(" + p + ")"
	}
	return p, op, nil
}

func boolean(nullable bool) sqltext.Operand {
	return sqltext.Operand{ParsedColumn: schemadomain.ParsedColumn{Type: schemadomain.TypeBoolean, Nullable: nullable}}
}

func (e *exprCompiler) compare(call *domain.MethodCall) (string, sqltext.Operand, error) {
	switch call.Name {
	case "and", "or":
		terms := make([]string, 0, len(call.Args))
		nullable := false
		for _, arg := range call.Args {
			sql, op, err := e.expr(arg, false)
			if err != nil {
				return "", sqltext.Operand{}, err
			}
			terms = append(terms, sql)
			nullable = nullable || op.Nullable
		}
		if len(terms) == 0 {
			return "", sqltext.Operand{}, domain.Errorf(call.Name, "no conditions")
		}
		return "(" + strings.Join(terms, " "+call.Name+" ") + ")", boolean(nullable), nil
	}

	if len(call.Args) == 0 {
		return "", sqltext.Operand{}, domain.Errorf(call.Name, "missing operand")
	}
	lhs, left, err := e.expr(call.Args[0], false)
	if err != nil {
		return "", sqltext.Operand{}, err
	}

	switch call.Name {
	case "range":
		w := &whereCompiler{s: e.s, refer: e.reference}
		sql, err := w.bounds(lhs, call.Bounds)
		return sql, boolean(left.Nullable), err
	case "includes":
		if len(call.Args) != 2 {
			return "", sqltext.Operand{}, domain.Errorf(call.Name, "expected a value")
		}
		rhs, _, err := e.expr(call.Args[1], false)
		if err != nil {
			return "", sqltext.Operand{}, err
		}
		alias := e.s.eachAlias()
		e.s.from = append(e.s.from, fmt.Sprintf("json_each(%s) as %s", lhs, alias))
		return alias + ".value = " + rhs, boolean(false), nil
	case "some":
		w := &whereCompiler{s: e.s, refer: e.reference}
		sql, err := w.some(lhs, call.Where)
		return sql, boolean(false), err
	}

	op, ok := operators[call.Name]
	if !ok {
		return "", sqltext.Operand{}, domain.Errorf(call.Name, "unknown comparison")
	}
	if len(call.Args) != 2 {
		return "", sqltext.Operand{}, domain.Errorf(call.Name, "expected two operands")
	}
	if lit, isLit := call.Args[1].(domain.Literal); isLit && (call.Name == "eq" || call.Name == "not") {
		if lit.Value == nil || isList(lit.Value) {
			w := &whereCompiler{s: e.s, refer: e.reference}
			sql, err := w.equal(lhs, lit.Value, call.Name == "not")
			return sql, boolean(lit.Value != nil && left.Nullable), err
		}
	}
	rhs, right, err := e.expr(call.Args[1], false)
	if err != nil {
		return "", sqltext.Operand{}, err
	}
	return lhs + " " + op + " " + rhs, boolean(left.Nullable || right.Nullable), nil
}

func (e *exprCompiler) args(call *domain.MethodCall) ([]string, []sqltext.Operand, error) {
	embed := jsonArgs[call.Name]
	sqls := make([]string, 0, len(call.Args))
	ops := make([]sqltext.Operand, 0, len(call.Args))
	for _, arg := range call.Args {
		sql, op, err := e.expr(arg, embed)
		if err != nil {
			return nil, nil, err
		}
		sqls = append(sqls, sql)
		ops = append(ops, op)
	}
	return sqls, ops, nil
}

func (e *exprCompiler) compute(call *domain.MethodCall, json bool) (string, sqltext.Operand, error) {
	sqls, ops, err := e.args(call)
	if err != nil {
		return "", sqltext.Operand{}, err
	}

	if arithmetic[call.Name] {
		if len(sqls) < 2 {
			return "", sqltext.Operand{}, domain.Errorf(call.Name, "expected at least two operands")
		}
		op := sqltext.Operand{ParsedColumn: schemadomain.ParsedColumn{Type: schemadomain.TypeInteger}}
		for _, o := range ops {
			if o.Type == schemadomain.TypeReal || o.Type == schemadomain.TypeAny {
				op.Type = schemadomain.TypeReal
			}
			op.Nullable = op.Nullable || o.Nullable
		}
		if call.Name == "||" {
			op.Type = schemadomain.TypeText
		}
		return "(" + strings.Join(sqls, " "+call.Name+" ") + ")", op, nil
	}

	c := sqltext.Call{Name: call.Name, Args: ops, Grouped: e.grouped}
	if call.Name == "json_object" {
		if len(call.Keys) != len(sqls) {
			return "", sqltext.Operand{}, domain.Errorf(call.Name, "%d keys for %d values", len(call.Keys), len(sqls))
		}
		pairs := make([]string, 0, 2*len(sqls))
		c.Args = make([]sqltext.Operand, 0, 2*len(ops))
		c.Keys = call.Keys
		key := sqltext.Operand{ParsedColumn: schemadomain.ParsedColumn{Type: schemadomain.TypeText}}
		for i, sql := range sqls {
			pairs = append(pairs, quote(call.Keys[i]), sql)
			c.Args = append(c.Args, key, ops[i])
		}
		sqls = pairs
	}
	op, err := sqltext.CallType(c)
	if err != nil {
		return "", sqltext.Operand{}, domain.Errorf(call.Name, "%v", err)
	}
	sql := call.Name + "(" + strings.Join(sqls, ", ") + ")"
	if json && op.Type == schemadomain.TypeBoolean {
		sql = jsonWrap(sql, op.Type)
	}
	return sql, op, nil
}

// call compiles aggregate and window functions. Sums compile to total,
// which returns zero for empty input.
func (e *exprCompiler) call(call *domain.MethodCall, json bool) (string, sqltext.Operand, error) {
	if call.Kind == domain.WindowFunc && call.Over == nil {
		return "", sqltext.Operand{}, domain.Errorf(call.Name, "window functions need an over clause")
	}
	sqls, ops, err := e.args(call)
	if err != nil {
		return "", sqltext.Operand{}, err
	}
	name := call.Name
	inner := strings.Join(sqls, ", ")
	switch {
	case name == "count" && len(sqls) == 0:
		inner = "*"
	case name == "sum":
		name = "total"
	}
	if call.Distinct {
		if len(sqls) != 1 {
			return "", sqltext.Operand{}, domain.Errorf(call.Name, "distinct takes one argument")
		}
		inner = "distinct " + inner
	}

	var op sqltext.Operand
	if call.Name == "sum" {
		op = sqltext.Operand{ParsedColumn: schemadomain.ParsedColumn{Type: schemadomain.TypeInteger, FunctionName: "sum"}}
		for _, o := range ops {
			if o.Type != schemadomain.TypeInteger && o.Type != schemadomain.TypeBoolean {
				op.Type = schemadomain.TypeReal
			}
		}
	} else {
		op, err = sqltext.CallType(sqltext.Call{Name: call.Name, Args: ops, Grouped: e.grouped, Window: call.Over != nil})
		if err != nil {
			return "", sqltext.Operand{}, domain.Errorf(call.Name, "%v", err)
		}
	}

	sql := name + "(" + inner + ")"
	if len(call.Filter) > 0 {
		filter, err := e.conjunction(call.Filter)
		if err != nil {
			return "", sqltext.Operand{}, err
		}
		sql += " filter (where " + filter + ")"
	}
	if call.Over != nil {
		over, err := e.over(call.Over)
		if err != nil {
			return "", sqltext.Operand{}, err
		}
		sql += " " + over
	}
	if json {
		sql = jsonWrap(sql, op.Type)
	}
	return sql, op, nil
}
