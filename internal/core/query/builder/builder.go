// Package builder implements the expression builder.
package builder

import (
	"errors"
	"strconv"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	"github.com/satishbabariya/sqltyped/internal/core/schema"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// Builder assembles a select from tables, columns and method calls.
// Column references are checked against the catalog as they are made and
// the errors are reported by Build.
type Builder struct {
	catalog *schema.Catalog
	sel     domain.Select
	aliases map[string]bool
	errs    []error
}

// New creates a builder over catalog.
func New(catalog *schema.Catalog) *Builder {
	return &Builder{catalog: catalog, aliases: make(map[string]bool)}
}

// Table is a table or subquery declared in a builder.
type Table struct {
	b       *Builder
	ref     domain.TableRef
	columns []schemadomain.ParsedColumn
	hidden  map[string]bool
}

// alias returns the first letter of name, numbered when already taken.
func (b *Builder) alias(name string) string {
	base := "t"
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' {
			base = string(r)
			break
		}
	}
	alias := base
	for i := 1; b.aliases[alias]; i++ {
		alias = base + strconv.Itoa(i)
	}
	b.aliases[alias] = true
	return alias
}

// Table declares a table. Every call adds a new alias, so a table can
// be joined to itself.
func (b *Builder) Table(name string) *Table {
	t := &Table{b: b}
	table, ok := b.catalog.Table(name)
	if !ok {
		b.errs = append(b.errs, domain.UnknownTable(name))
		t.ref = domain.TableRef{Name: name, Alias: b.alias(name)}
		return t
	}
	t.ref = domain.TableRef{Name: table.Name, Alias: b.alias(table.Name)}
	t.hidden = make(map[string]bool)
	for _, col := range table.Columns {
		if col.Hidden {
			t.hidden[col.Name] = true
		}
		t.columns = append(t.columns, schemadomain.ParsedColumn{
			Name:        col.Name,
			Type:        col.Type,
			Nullable:    col.Nullable && !col.PrimaryKey,
			PrimaryKey:  col.PrimaryKey,
			OriginTable: table.Name,
		})
	}
	b.sel.Tables = append(b.sel.Tables, t.ref)
	return t
}

// Use declares a compiled query as a common table expression.
func (b *Builder) Use(q *domain.CompiledQuery) *Table {
	t := &Table{b: b, columns: q.Columns}
	alias := b.alias("s")
	t.ref = domain.TableRef{Name: alias, Alias: alias, Query: q}
	b.sel.Tables = append(b.sel.Tables, t.ref)
	return t
}

// Alias returns the alias used in SQL.
func (t *Table) Alias() string {
	return t.ref.Alias
}

// Col references a column.
func (t *Table) Col(name string) domain.ColumnRef {
	ref := domain.ColumnRef{Table: t.ref.Name, Alias: t.ref.Alias, Column: name}
	for _, c := range t.columns {
		if strings.EqualFold(c.Name, name) {
			ref.Column = c.Name
			ref.Type = c.Type
			return ref
		}
	}
	if t.columns != nil || t.ref.Query != nil {
		t.b.errs = append(t.b.errs, domain.UnknownColumn(t.ref.Name, name))
	}
	return ref
}

// Fields returns every visible column as a projection.
func (t *Table) Fields() []domain.Field {
	fields := make([]domain.Field, 0, len(t.columns))
	for _, c := range t.columns {
		if t.hidden[c.Name] {
			continue
		}
		fields = append(fields, domain.Field{Name: c.Name, Value: t.Col(c.Name)})
	}
	return fields
}

// As names a projection.
func As(name string, value any) domain.Field {
	return domain.Field{Name: name, Value: node(value)}
}

// Select adds projections.
func (b *Builder) Select(fields ...domain.Field) *Builder {
	b.sel.Columns = append(b.sel.Columns, fields...)
	return b
}

// Value returns one expression per row.
func (b *Builder) Value(value any) *Builder {
	b.sel.Value = node(value)
	return b
}

// First returns only the first row.
func (b *Builder) First() *Builder {
	b.sel.First = true
	return b
}

// Distinct removes duplicate rows.
func (b *Builder) Distinct() *Builder {
	b.sel.Distinct = true
	return b
}

// Join joins the table of right to the table of left.
func (b *Builder) Join(left, right domain.ColumnRef, typ ...domain.JoinType) *Builder {
	j := domain.Join{Left: left, Right: right}
	if len(typ) > 0 {
		j.Type = typ[0]
	}
	b.sel.Joins = append(b.sel.Joins, j)
	return b
}

// Where adds conditions joined with and.
func (b *Builder) Where(conds ...domain.Node) *Builder {
	b.sel.Where = append(b.sel.Where, conds...)
	return b
}

// GroupBy adds grouping expressions.
func (b *Builder) GroupBy(exprs ...any) *Builder {
	for _, n := range exprs {
		b.sel.GroupBy = append(b.sel.GroupBy, node(n))
	}
	return b
}

// Having adds conditions on groups.
func (b *Builder) Having(conds ...domain.Node) *Builder {
	b.sel.Having = append(b.sel.Having, conds...)
	return b
}

// OrderBy adds ordering expressions.
func (b *Builder) OrderBy(exprs ...any) *Builder {
	for _, n := range exprs {
		b.sel.OrderBy = append(b.sel.OrderBy, node(n))
	}
	return b
}

// Desc sorts in descending order.
func (b *Builder) Desc() *Builder {
	b.sel.Desc = true
	return b
}

// Limit sets the maximum number of rows.
func (b *Builder) Limit(n int) *Builder {
	b.sel.Limit = domain.Int(n)
	return b
}

// Offset skips rows.
func (b *Builder) Offset(n int) *Builder {
	b.sel.Offset = domain.Int(n)
	return b
}

// Build returns the select, or every validation error found while
// building it.
func (b *Builder) Build() (*domain.Select, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	sel := b.sel
	return &sel, nil
}

// node wraps plain values as literals.
func node(v any) domain.Node {
	if n, ok := v.(domain.Node); ok {
		return n
	}
	return domain.Literal{Value: v}
}

func nodes(vs []any) []domain.Node {
	out := make([]domain.Node, len(vs))
	for i, v := range vs {
		out[i] = node(v)
	}
	return out
}
