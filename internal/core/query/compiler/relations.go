package compiler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

const (
	// KeyColumn carries the join key in child result rows.
	KeyColumn  = "_key"
	rankColumn = "_rn"
)

// ResolveInclude fills the kind and join keys of an include from the
// foreign keys in the catalog.
func (c *Compiler) ResolveInclude(parent string, inc domain.Include) (domain.Include, error) {
	if inc.Name == "" {
		inc.Name = inc.Table
	}
	child, ok := c.catalog.Table(inc.Table)
	if !ok {
		return inc, domain.UnknownTable(inc.Table)
	}
	owner, ok := c.catalog.Table(parent)
	if !ok {
		return inc, domain.UnknownTable(parent)
	}
	inc.Table = child.Name

	if inc.LocalKey != "" && inc.ForeignKey != "" {
		if _, err := column(owner, inc.LocalKey); err != nil {
			return inc, err
		}
		if _, err := column(child, inc.ForeignKey); err != nil {
			return inc, err
		}
		if inc.Kind == "" {
			inc.Kind = domain.ToMany
		}
		return inc, nil
	}

	var outgoing, incoming []schemadomain.ForeignKey
	for _, fk := range c.catalog.ForeignKeys(owner.Name) {
		switch {
		case strings.EqualFold(fk.Table, owner.Name) && strings.EqualFold(fk.ForeignTable, child.Name):
			outgoing = append(outgoing, fk)
		case strings.EqualFold(fk.Table, child.Name) && strings.EqualFold(fk.ForeignTable, owner.Name):
			incoming = append(incoming, fk)
		}
	}

	pick := func(fks []schemadomain.ForeignKey) (schemadomain.ForeignKey, error) {
		if len(fks) > 1 {
			return schemadomain.ForeignKey{}, domain.Errorf("include", "%s has %d foreign keys to %s, set the keys explicitly", inc.Name, len(fks), parent)
		}
		return fks[0], nil
	}
	switch {
	case len(outgoing) > 0 && (inc.Kind == "" || inc.Kind == domain.ToOne):
		fk, err := pick(outgoing)
		if err != nil {
			return inc, err
		}
		inc.Kind = domain.ToOne
		inc.LocalKey, inc.ForeignKey = fk.Column, fk.ForeignColumn
	case len(incoming) > 0:
		fk, err := pick(incoming)
		if err != nil {
			return inc, err
		}
		if inc.Kind == "" {
			inc.Kind = domain.ToMany
		}
		inc.LocalKey, inc.ForeignKey = fk.ForeignColumn, fk.Column
	default:
		return inc, domain.Errorf("include", "no foreign key links %s and %s", parent, inc.Table)
	}
	if inc.LocalKey == "" || inc.ForeignKey == "" {
		return inc, domain.Errorf("include", "cannot infer the key of %s", inc.Name)
	}
	return inc, nil
}

// CompileInclude compiles the child query of a resolved include. Child
// rows carry the join key in KeyColumn. When keys is nil the query is not
// restricted to parent keys.
//
// Paginated to-many includes number the children of each parent with
// row_number so limit and offset apply per parent.
func (c *Compiler) CompileInclude(ctx context.Context, inc domain.Include, keys []any) (*domain.CompiledQuery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	child, ok := c.catalog.Table(inc.Table)
	if !ok {
		return nil, domain.UnknownTable(inc.Table)
	}
	fk, err := column(child, inc.ForeignKey)
	if err != nil {
		return nil, err
	}
	s := newState()
	key := parsed(child, fk)
	key.Name = KeyColumn
	qual := qualifier(&domain.Query{Where: inc.Where}, child)
	fkSel := fk.Name
	if qual != "" {
		fkSel = qual + "." + fk.Name
	}

	var conds []string
	if keys != nil {
		list, err := jsonList(keys)
		if err != nil {
			return nil, err
		}
		conds = append(conds, fmt.Sprintf("%s in (select json_each.value from json_each(%s))", fkSel, s.params.addBound(list)))
	}
	w := &whereCompiler{s: s, resolve: tableResolver(child, qual), refer: selfReferrer(child), virtual: child.Virtual}
	where, err := w.compile(inc.Where)
	if err != nil {
		return nil, err
	}
	if where != "" {
		conds = append(conds, where)
	}
	filter := ""
	if len(conds) > 0 {
		filter = " where " + strings.Join(conds, " and ")
	}
	source := from(child.Name, s)

	switch inc.Kind {
	case domain.CountOf:
		sql := fmt.Sprintf("select %s as %s, count(*) as count from %s%s group by %s", fkSel, KeyColumn, source, filter, fkSel)
		return &domain.CompiledQuery{
			SQL:     sql,
			Params:  s.params.values,
			Columns: []schemadomain.ParsedColumn{key, {Name: "count", Type: schemadomain.TypeInteger}},
			Shape:   domain.ShapeArray,
			Tables:  []string{child.Name},
		}, nil
	case domain.ExistsOf:
		sql := fmt.Sprintf("select distinct %s as %s from %s%s", fkSel, KeyColumn, source, filter)
		return &domain.CompiledQuery{
			SQL:     sql,
			Params:  s.params.values,
			Columns: []schemadomain.ParsedColumn{key},
			Shape:   domain.ShapeArray,
			Tables:  []string{child.Name},
		}, nil
	}

	q := &domain.Query{Table: child.Name, Select: inc.Select, Value: inc.Value, Where: inc.Where}
	projection, columns, err := c.projection(q, child, qual)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(projection, "*") {
		cols := visibleColumns(child)
		terms := make([]string, len(cols))
		for i, col := range cols {
			terms[i] = strings.TrimSuffix(projection, "*") + col.Name
		}
		projection = strings.Join(terms, ", ")
	}
	var orderBy []string
	for _, name := range inc.OrderBy {
		col, err := column(child, name)
		if err != nil {
			return nil, err
		}
		if qual != "" {
			orderBy = append(orderBy, qual+"."+col.Name)
			continue
		}
		orderBy = append(orderBy, col.Name)
	}

	var sql string
	if inc.Kind == domain.ToMany && (inc.Limit != nil || inc.Offset != nil) {
		sql = paginated(projection, columns, fkSel, source, filter, orderBy, inc)
	} else {
		sql = fmt.Sprintf("select %s, %s as %s from %s%s", projection, fkSel, KeyColumn, source, filter)
		sql += keywords(orderBy, inc.Desc, nil, nil)
	}
	columns = append(columns, key)
	return &domain.CompiledQuery{
		SQL:     sql,
		Params:  s.params.values,
		Columns: columns,
		Shape:   domain.ShapeArray,
		Tables:  []string{child.Name},
	}, nil
}

func paginated(projection string, columns []schemadomain.ParsedColumn, fk, source, filter string, orderBy []string, inc domain.Include) string {
	window := orderBy
	if len(window) == 0 {
		window = []string{fk}
	}
	terms := make([]string, len(window))
	for i, term := range window {
		terms[i] = term
		if inc.Desc {
			terms[i] += " desc"
		}
	}
	inner := fmt.Sprintf("select %s, %s as %s, row_number() over (partition by %s order by %s) as %s from %s%s",
		projection, fk, KeyColumn, fk, strings.Join(terms, ", "), rankColumn, source, filter)

	offset := 0
	if inc.Offset != nil {
		offset = *inc.Offset
	}
	cond := rankColumn + " > " + strconv.Itoa(offset)
	if inc.Limit != nil {
		cond += " and " + rankColumn + " <= " + strconv.Itoa(offset+*inc.Limit)
	}
	outer := make([]string, len(columns))
	for i, col := range columns {
		outer[i] = col.Name
	}
	return fmt.Sprintf("select %s, %s from (%s) where %s order by %s, %s",
		strings.Join(outer, ", "), KeyColumn, inner, cond, KeyColumn, rankColumn)
}

// queryResolver resolves where and order keys of a table query. Keys
// naming an include compare a correlated subquery over the relation.
func (c *Compiler) queryResolver(s *state, q *domain.Query, table *schemadomain.Table) resolver {
	columns := tableResolver(table, qualifier(q, table))
	return func(key string) (string, error) {
		for _, inc := range q.Include {
			name := inc.Name
			if name == "" {
				name = inc.Table
			}
			if key == name {
				return c.relationSelector(s, table, inc)
			}
		}
		if table.Virtual && strings.EqualFold(key, table.Name) {
			return table.Name, nil
		}
		return columns(key)
	}
}

// relationSelector renders a relation referenced by the parent query.
// To-many relations have to be resolved into keys before compiling.
func (c *Compiler) relationSelector(s *state, parent *schemadomain.Table, inc domain.Include) (string, error) {
	inc, err := c.ResolveInclude(parent.Name, inc)
	if err != nil {
		return "", err
	}
	child, _ := c.catalog.Table(inc.Table)
	s.tables[child.Name] = true
	s.each++
	alias := "r" + strconv.Itoa(s.each)

	conds := []string{fmt.Sprintf("%s.%s = %s.%s", alias, inc.ForeignKey, parent.Name, inc.LocalKey)}
	refer := tableReferrer(map[string]*schemadomain.Table{alias: child, parent.Name: parent})
	w := &whereCompiler{s: s, resolve: tableResolver(child, alias), refer: refer, virtual: child.Virtual, inline: true}
	where, err := w.compile(inc.Where)
	if err != nil {
		return "", err
	}
	if where != "" {
		conds = append(conds, where)
	}
	body := fmt.Sprintf("from %s as %s where %s", child.Name, alias, strings.Join(conds, " and "))

	switch inc.Kind {
	case domain.CountOf:
		return "(select count(*) " + body + ")", nil
	case domain.ExistsOf:
		return "exists (select 1 " + body + ")", nil
	case domain.ToOne:
		if inc.Value == "" {
			return "", domain.Errorf("include", "%s must select a value to be compared", inc.Name)
		}
		col, err := column(child, inc.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(select %s.%s %s)", alias, col.Name, body), nil
	}
	return "", domain.Errorf("include", "%s is a to-many relation and must be resolved before the parent query", inc.Name)
}
