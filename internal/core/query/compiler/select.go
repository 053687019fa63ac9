package compiler

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
	"github.com/satishbabariya/sqltyped/internal/core/sqltext"
)

// compileFind compiles FindFirst and FindMany. Includes and some filters
// join json_each sources, so a row is returned once per matching element.
func (c *Compiler) compileFind(s *state, q *domain.Query, table *schemadomain.Table) (*domain.CompiledQuery, error) {
	resolve := c.queryResolver(s, q, table)

	projection, columns, err := c.projection(q, table, qualifier(q, table))
	if err != nil {
		return nil, err
	}
	var ranking []string
	if q.Search != nil {
		projection, columns, ranking, err = c.search(s, table, q.Search, projection, columns)
		if err != nil {
			return nil, err
		}
	}

	w := &whereCompiler{s: s, resolve: resolve, refer: selfReferrer(table), virtual: table.Virtual}
	where, err := w.compile(q.Where)
	if err != nil {
		return nil, err
	}

	orderBy := make([]string, 0, len(q.OrderBy)+len(ranking))
	for _, key := range q.OrderBy {
		term, err := resolve(key)
		if err != nil {
			return nil, err
		}
		orderBy = append(orderBy, term)
	}
	orderBy = append(orderBy, ranking...)

	var b strings.Builder
	b.WriteString("select ")
	if q.Distinct {
		b.WriteString("distinct ")
	}
	b.WriteString(projection)
	b.WriteString(" from ")
	b.WriteString(from(table.Name, s))
	if where != "" {
		b.WriteString(" where " + where)
	}
	limit := q.Limit
	if q.Operation == domain.FindFirst {
		limit = domain.Int(1)
	}
	b.WriteString(keywords(orderBy, q.Desc, limit, q.Offset))

	shape := domain.ShapeArray
	switch {
	case q.Value != "" && q.Operation == domain.FindFirst:
		shape = domain.ShapeValue
	case q.Value != "":
		shape = domain.ShapeValues
	case q.Operation == domain.FindFirst:
		shape = domain.ShapeObject
	}
	if len(q.Include) > 0 && (shape == domain.ShapeValue || shape == domain.ShapeValues) {
		return nil, domain.Errorf(string(q.Operation), "includes need object rows, not a single value")
	}
	return &domain.CompiledQuery{SQL: b.String(), Columns: columns, Shape: shape}, nil
}

func from(table string, s *state) string {
	if len(s.from) == 0 {
		return table
	}
	return table + ", " + strings.Join(s.from, ", ")
}

// qualifier returns the name used to qualify columns, set when json_each
// sources join the table and could shadow its column names.
func qualifier(q *domain.Query, table *schemadomain.Table) string {
	if usesEach(q.Where) {
		return table.Name
	}
	return ""
}

func usesEach(where domain.Where) bool {
	for _, v := range where {
		switch x := v.(type) {
		case domain.Condition:
			if x.Operator == domain.OpIncludes || x.Operator == domain.OpSome {
				return true
			}
		case []domain.Where:
			for _, sub := range x {
				if usesEach(sub) {
					return true
				}
			}
		}
	}
	return false
}

// projection returns the select list and its column metadata.
func (c *Compiler) projection(q *domain.Query, table *schemadomain.Table, qual string) (string, []schemadomain.ParsedColumn, error) {
	resolve := tableResolver(table, qual)
	prefix := ""
	if qual != "" {
		prefix = qual + "."
	}
	if q.Value != "" {
		sel, err := resolve(q.Value)
		if err != nil {
			return "", nil, err
		}
		name, path, _ := strings.Cut(q.Value, ".")
		col := parsed(table, table.Column(name))
		if path != "" {
			col = schemadomain.ParsedColumn{Name: "value", Type: schemadomain.TypeAny, Nullable: true}
			return sel + " as value", []schemadomain.ParsedColumn{col}, nil
		}
		return sel, []schemadomain.ParsedColumn{col}, nil
	}

	if len(q.Select) == 0 && len(q.Extract) == 0 && len(q.Exclude) == 0 {
		cols := visibleColumns(table)
		columns := make([]schemadomain.ParsedColumn, len(cols))
		for i, col := range cols {
			columns[i] = parsed(table, col)
		}
		return prefix + "*", columns, nil
	}

	var (
		terms   []string
		columns []schemadomain.ParsedColumn
	)
	names := q.Select
	if len(names) == 0 && len(q.Exclude) > 0 {
		excluded := make(map[string]bool, len(q.Exclude))
		for _, name := range q.Exclude {
			col, err := column(table, name)
			if err != nil {
				return "", nil, err
			}
			excluded[col.Name] = true
		}
		for _, col := range visibleColumns(table) {
			if !excluded[col.Name] {
				names = append(names, col.Name)
			}
		}
	}
	for _, name := range names {
		col, err := column(table, name)
		if err != nil {
			return "", nil, err
		}
		terms = append(terms, prefix+col.Name)
		columns = append(columns, parsed(table, col))
	}
	for _, ex := range q.Extract {
		col, err := column(table, ex.Column)
		if err != nil {
			return "", nil, err
		}
		path, err := jsonPath(ex.Path)
		if err != nil {
			return "", nil, &domain.ValidationError{Table: table.Name, Column: col.Name, Reason: err.Error()}
		}
		alias := ex.As
		if alias == "" {
			alias = ex.Path[len(ex.Path)-1]
		}
		terms = append(terms, fmt.Sprintf("json_extract(%s%s, %s) as %s", prefix, col.Name, path, alias))
		columns = append(columns, schemadomain.ParsedColumn{Name: alias, Type: schemadomain.TypeAny, Nullable: true})
	}
	if len(terms) == 0 {
		return "", nil, domain.Errorf(string(q.Operation), "no columns selected from %s", table.Name)
	}
	return strings.Join(terms, ", "), columns, nil
}

// compileAggregate compiles a single aggregate over matching rows. Array
// filters compile to exists subqueries so each row is counted once.
func (c *Compiler) compileAggregate(s *state, q *domain.Query, table *schemadomain.Table) (*domain.CompiledQuery, error) {
	if q.Aggregation == nil {
		return nil, domain.Errorf(string(q.Operation), "no aggregation given")
	}
	expr, col, err := aggregate(table, q.Aggregation, false)
	if err != nil {
		return nil, err
	}
	w := &whereCompiler{s: s, resolve: c.queryResolver(s, q, table), refer: selfReferrer(table), virtual: table.Virtual, inline: true}
	where, err := w.compile(q.Where)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("select %s as %s from %s", expr, col.Name, from(table.Name, s))
	if where != "" {
		sql += " where " + where
	}
	return &domain.CompiledQuery{SQL: sql, Columns: []schemadomain.ParsedColumn{col}, Shape: domain.ShapeValue}, nil
}

// compileExists compiles an existence check.
func (c *Compiler) compileExists(s *state, q *domain.Query, table *schemadomain.Table) (*domain.CompiledQuery, error) {
	w := &whereCompiler{s: s, resolve: c.queryResolver(s, q, table), refer: selfReferrer(table), virtual: table.Virtual, inline: true}
	where, err := w.compile(q.Where)
	if err != nil {
		return nil, err
	}
	inner := "select 1 from " + from(table.Name, s)
	if where != "" {
		inner += " where " + where
	}
	return &domain.CompiledQuery{
		SQL:     "select exists(" + inner + ") as result",
		Columns: []schemadomain.ParsedColumn{{Name: "result", Type: schemadomain.TypeBoolean}},
		Shape:   domain.ShapeValue,
	}, nil
}

// compileGroupBy aggregates per group. The grouped rows are wrapped in a
// common table expression so ordering and limits apply to groups.
func (c *Compiler) compileGroupBy(s *state, q *domain.Query, table *schemadomain.Table) (*domain.CompiledQuery, error) {
	if q.Aggregation == nil || len(q.GroupBy) == 0 {
		return nil, domain.Errorf(string(q.Operation), "group by needs columns and an aggregation")
	}
	var (
		groups  []string
		columns []schemadomain.ParsedColumn
	)
	for _, name := range q.GroupBy {
		col, err := column(table, name)
		if err != nil {
			return nil, err
		}
		groups = append(groups, col.Name)
		columns = append(columns, parsed(table, col))
	}
	if qual := qualifier(q, table); qual != "" {
		for i := range groups {
			groups[i] = qual + "." + groups[i]
		}
	}
	expr, agg, err := aggregate(table, q.Aggregation, true)
	if err != nil {
		return nil, err
	}
	columns = append(columns, agg)

	w := &whereCompiler{s: s, resolve: c.queryResolver(s, q, table), refer: selfReferrer(table), virtual: table.Virtual, inline: true}
	where, err := w.compile(q.Where)
	if err != nil {
		return nil, err
	}

	var inner strings.Builder
	fmt.Fprintf(&inner, "select %s, %s as %s from %s", strings.Join(groups, ", "), expr, agg.Name, from(table.Name, s))
	if where != "" {
		inner.WriteString(" where " + where)
	}
	inner.WriteString(" group by " + strings.Join(groups, ", "))

	var orderBy []string
	for _, key := range q.OrderBy {
		found := false
		for _, col := range columns {
			if strings.EqualFold(col.Name, key) {
				orderBy = append(orderBy, col.Name)
				found = true
				break
			}
		}
		if !found {
			return nil, &domain.ValidationError{Table: table.Name, Column: key, Reason: "not a grouped column", Err: domain.ErrUnknownColumn}
		}
	}

	sql := "with grouped as (" + inner.String() + ") select * from grouped" + keywords(orderBy, q.Desc, q.Limit, q.Offset)
	return &domain.CompiledQuery{SQL: sql, Columns: columns, Shape: domain.ShapeArray}, nil
}

// aggregate renders an aggregate call and its result column. Sums use
// total so empty inputs yield zero instead of null.
func aggregate(table *schemadomain.Table, agg *domain.Aggregation, grouped bool) (string, schemadomain.ParsedColumn, error) {
	name := agg.As
	if name == "" {
		name = string(agg.Func)
	}
	distinct := ""
	if agg.Distinct {
		distinct = "distinct "
	}

	if agg.Func == domain.Array {
		return arrayAggregate(table, agg, name, grouped)
	}
	if agg.Column == "" {
		if agg.Func != domain.Count {
			return "", schemadomain.ParsedColumn{}, domain.Errorf(string(agg.Func), "no column given")
		}
		return "count(*)", schemadomain.ParsedColumn{Name: name, Type: schemadomain.TypeInteger}, nil
	}
	col, err := column(table, agg.Column)
	if err != nil {
		return "", schemadomain.ParsedColumn{}, err
	}
	arg := distinct + col.Name
	out := schemadomain.ParsedColumn{Name: name, FunctionName: string(agg.Func)}
	switch agg.Func {
	case domain.Count:
		out.Type = schemadomain.TypeInteger
		return "count(" + arg + ")", out, nil
	case domain.Sum:
		out.Type = schemadomain.TypeReal
		if col.Type == schemadomain.TypeInteger || col.Type == schemadomain.TypeBoolean {
			out.Type = schemadomain.TypeInteger
		}
		return "total(" + arg + ")", out, nil
	case domain.Avg:
		out.Type = schemadomain.TypeReal
		out.Nullable = true
		return "avg(" + arg + ")", out, nil
	case domain.Min, domain.Max:
		out.Type = col.Type
		out.Nullable = col.Nullable || !grouped
		return string(agg.Func) + "(" + arg + ")", out, nil
	}
	return "", schemadomain.ParsedColumn{}, domain.Errorf(string(agg.Func), "unsupported aggregate")
}

// arrayAggregate collects a column, or an object of columns, per group.
func arrayAggregate(table *schemadomain.Table, agg *domain.Aggregation, name string, grouped bool) (string, schemadomain.ParsedColumn, error) {
	var (
		arg     string
		operand sqltext.Operand
	)
	switch {
	case agg.Column != "":
		col, err := column(table, agg.Column)
		if err != nil {
			return "", schemadomain.ParsedColumn{}, err
		}
		arg = jsonWrap(col.Name, col.Type)
		operand = sqltext.Operand{ParsedColumn: parsed(table, col), Column: true}
	case len(agg.Select) > 0:
		var (
			pairs []string
			call  = sqltext.Call{Name: "json_object"}
		)
		for _, n := range agg.Select {
			col, err := column(table, n)
			if err != nil {
				return "", schemadomain.ParsedColumn{}, err
			}
			pairs = append(pairs, quote(col.Name), jsonWrap(col.Name, col.Type))
			call.Keys = append(call.Keys, col.Name)
			call.Args = append(call.Args,
				sqltext.Operand{ParsedColumn: schemadomain.ParsedColumn{Type: schemadomain.TypeText}},
				sqltext.Operand{ParsedColumn: parsed(table, col), Column: true})
		}
		arg = "json_object(" + strings.Join(pairs, ", ") + ")"
		obj, err := sqltext.CallType(call)
		if err != nil {
			return "", schemadomain.ParsedColumn{}, err
		}
		operand = obj
	default:
		return "", schemadomain.ParsedColumn{}, domain.Errorf("array", "no column or select given")
	}
	if agg.Distinct {
		arg = "distinct " + arg
	}
	t, err := sqltext.CallType(sqltext.Call{Name: "json_group_array", Args: []sqltext.Operand{operand}, Grouped: grouped})
	if err != nil {
		return "", schemadomain.ParsedColumn{}, err
	}
	t.Name = name
	return "json_group_array(" + arg + ")", t.ParsedColumn, nil
}

// jsonWrap keeps booleans and JSON text typed when embedded in JSON.
func jsonWrap(sel string, t schemadomain.ColumnType) string {
	switch t {
	case schemadomain.TypeBoolean:
		return fmt.Sprintf("case %s when 1 then json('true') when 0 then json('false') end", sel)
	case schemadomain.TypeJSON:
		return "json(" + sel + ")"
	}
	return sel
}
