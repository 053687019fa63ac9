package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// resolver maps a where key to the SQL it compares.
type resolver func(key string) (string, error)

var pathSegment = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// jsonPath renders a JSON path literal such as '$.a.b[0]'.
func jsonPath(parts []string) (string, error) {
	var b strings.Builder
	b.WriteString("$")
	for _, part := range parts {
		switch {
		case pathSegment.MatchString(part):
			b.WriteString("." + part)
		case isIndex(part):
			b.WriteString("[" + part + "]")
		default:
			return "", fmt.Errorf("invalid JSON path segment %q", part)
		}
	}
	return quote(b.String()), nil
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// tableResolver resolves keys against the columns of table. Keys with
// dots address JSON paths inside a column.
func tableResolver(table *schemadomain.Table, qualifier string) resolver {
	return func(key string) (string, error) {
		name, path, _ := strings.Cut(key, ".")
		col, err := column(table, name)
		if err != nil {
			return "", err
		}
		sel := col.Name
		if qualifier != "" {
			sel = qualifier + "." + col.Name
		}
		if path == "" {
			return sel, nil
		}
		p, err := jsonPath(strings.Split(path, "."))
		if err != nil {
			return "", &domain.ValidationError{Table: table.Name, Column: col.Name, Reason: err.Error()}
		}
		return fmt.Sprintf("json_extract(%s, %s)", sel, p), nil
	}
}

// elementResolver resolves keys inside JSON array elements.
func elementResolver(alias string) resolver {
	return func(key string) (string, error) {
		p, err := jsonPath(strings.Split(key, "."))
		if err != nil {
			return "", domain.Errorf("some", "%v", err)
		}
		return fmt.Sprintf("json_extract(%s.value, %s)", alias, p), nil
	}
}

// referrer renders a column reference used as a comparison operand.
type referrer func(ref domain.ColumnRef) (string, error)

// tableReferrer resolves references against the tables a statement names,
// keyed by the name or alias the statement uses for them.
func tableReferrer(tables map[string]*schemadomain.Table) referrer {
	return func(ref domain.ColumnRef) (string, error) {
		for name, table := range tables {
			if !strings.EqualFold(name, ref.Alias) {
				continue
			}
			col, err := column(table, ref.Column)
			if err != nil {
				return "", err
			}
			return name + "." + col.Name, nil
		}
		return "", domain.UnknownTable(ref.Alias)
	}
}

// selfReferrer allows references to table only.
func selfReferrer(table *schemadomain.Table) referrer {
	return tableReferrer(map[string]*schemadomain.Table{table.Name: table})
}

// whereCompiler compiles Where maps.
type whereCompiler struct {
	s       *state
	resolve resolver
	refer   referrer
	// virtual tables compare plain values with match.
	virtual bool
	// inline compiles includes and some as exists subqueries when the
	// statement has no from list to extend.
	inline bool
}

// compile joins every entry of w with and. Keys are visited in sorted
// order so output is deterministic.
func (w *whereCompiler) compile(where domain.Where) (string, error) {
	parts := make([]string, 0, len(where))
	for _, key := range sortedKeys(where) {
		value := where[key]
		if key == domain.AndKey || key == domain.OrKey {
			clause, err := w.group(key, value)
			if err != nil {
				return "", err
			}
			if clause != "" {
				parts = append(parts, clause)
			}
			continue
		}
		sel, err := w.resolve(key)
		if err != nil {
			return "", err
		}
		clause, err := w.condition(sel, value)
		if err != nil {
			return "", err
		}
		parts = append(parts, clause)
	}
	return strings.Join(parts, " and "), nil
}

func (w *whereCompiler) group(key string, value any) (string, error) {
	wheres, ok := value.([]domain.Where)
	if !ok {
		return "", domain.Errorf(key, "expected []Where, got %T", value)
	}
	parts := make([]string, 0, len(wheres))
	for _, sub := range wheres {
		clause, err := w.compile(sub)
		if err != nil {
			return "", err
		}
		if clause != "" {
			parts = append(parts, clause)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " "+key+" ") + ")", nil
}

func (w *whereCompiler) condition(sel string, value any) (string, error) {
	cond, ok := value.(domain.Condition)
	if !ok {
		if w.virtual {
			if _, ref := value.(domain.ColumnRef); !ref && value != nil && !isList(value) {
				return w.compare(sel, "match", value)
			}
		}
		return w.equal(sel, value, false)
	}
	switch cond.Operator {
	case domain.OpEq:
		return w.equal(sel, cond.Value, false)
	case domain.OpNot:
		return w.equal(sel, cond.Value, true)
	case domain.OpGt:
		return w.compare(sel, ">", cond.Value)
	case domain.OpGte:
		return w.compare(sel, ">=", cond.Value)
	case domain.OpLt:
		return w.compare(sel, "<", cond.Value)
	case domain.OpLte:
		return w.compare(sel, "<=", cond.Value)
	case domain.OpLike:
		return w.compare(sel, "like", cond.Value)
	case domain.OpGlob:
		return w.compare(sel, "glob", cond.Value)
	case domain.OpMatch:
		return w.compare(sel, "match", cond.Value)
	case domain.OpRange:
		return w.bounds(sel, cond.Bounds)
	case domain.OpIncludes:
		return w.includes(sel, cond.Value)
	case domain.OpSome:
		return w.some(sel, cond.Where)
	}
	return "", domain.Errorf("where", "unsupported operator %q", cond.Operator)
}

// equal compiles equality and its negation. Nil compares with is null and
// lists test membership through json_each.
func (w *whereCompiler) equal(sel string, value any, negate bool) (string, error) {
	switch {
	case value == nil:
		if negate {
			return sel + " is not null", nil
		}
		return sel + " is null", nil
	case isList(value):
		list, err := jsonList(value)
		if err != nil {
			return "", err
		}
		op := "in"
		if negate {
			op = "not in"
		}
		return fmt.Sprintf("%s %s (select json_each.value from json_each(%s))", sel, op, w.s.params.addBound(list)), nil
	}
	if negate {
		return w.compare(sel, "!=", value)
	}
	return w.compare(sel, "=", value)
}

func (w *whereCompiler) compare(sel, op string, value any) (string, error) {
	rhs, err := w.operand(value)
	if err != nil {
		return "", err
	}
	return sel + " " + op + " " + rhs, nil
}

// operand binds value, or references a column without binding.
func (w *whereCompiler) operand(value any) (string, error) {
	if ref, ok := value.(domain.ColumnRef); ok {
		switch {
		case ref.Alias == "" && w.resolve != nil:
			return w.resolve(ref.Column)
		case w.refer != nil:
			return w.refer(ref)
		}
		return "", domain.Errorf("where", "column %s cannot be referenced here", ref.Column)
	}
	return w.s.params.add(value)
}

func (w *whereCompiler) bounds(sel string, b domain.Bounds) (string, error) {
	if b.Empty() {
		return "", domain.Errorf("range", "no bounds given for %s", sel)
	}
	var parts []string
	for _, bound := range []struct {
		op    string
		value any
	}{
		{">", b.Gt},
		{">=", b.Gte},
		{"<", b.Lt},
		{"<=", b.Lte},
	} {
		if bound.value == nil {
			continue
		}
		clause, err := w.compare(sel, bound.op, bound.value)
		if err != nil {
			return "", err
		}
		parts = append(parts, clause)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " and ") + ")", nil
}

// includes matches arrays holding value.
func (w *whereCompiler) includes(sel string, value any) (string, error) {
	alias := w.s.eachAlias()
	rhs, err := w.operand(value)
	if err != nil {
		return "", err
	}
	cond := alias + ".value = " + rhs
	return w.each(sel, alias, cond), nil
}

// some matches arrays with an element satisfying where.
func (w *whereCompiler) some(sel string, where domain.Where) (string, error) {
	if len(where) == 0 {
		return "", domain.Errorf("some", "empty element filter for %s", sel)
	}
	alias := w.s.eachAlias()
	inner := &whereCompiler{s: w.s, resolve: elementResolver(alias), refer: w.refer, inline: w.inline}
	cond, err := inner.compile(where)
	if err != nil {
		return "", err
	}
	return w.each(sel, alias, cond), nil
}

func (w *whereCompiler) each(sel, alias, cond string) string {
	source := fmt.Sprintf("json_each(%s) as %s", sel, alias)
	if w.inline {
		return fmt.Sprintf("exists (select 1 from %s where %s)", source, cond)
	}
	w.s.from = append(w.s.from, source)
	return cond
}
