// Package compiler turns table queries and builder trees into SQL with
// named parameters.
package compiler

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
	"github.com/satishbabariya/sqltyped/internal/core/schema"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// Compiler compiles queries against a schema catalog. A Compiler holds
// no per-query state and is safe for concurrent use.
type Compiler struct {
	catalog   *schema.Catalog
	returning bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithReturning controls whether inserts end with a returning clause.
// Engines older than 3.35.0 reject it; without it the executor reads the
// key from last_insert_rowid().
func WithReturning(enabled bool) Option {
	return func(c *Compiler) {
		c.returning = enabled
	}
}

// NewCompiler creates a new compiler.
func NewCompiler(catalog *schema.Catalog, opts ...Option) *Compiler {
	c := &Compiler{catalog: catalog, returning: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Returning reports whether inserts end with a returning clause.
func (c *Compiler) Returning() bool {
	return c.returning
}

// Catalog returns the catalog queries are validated against.
func (c *Compiler) Catalog() *schema.Catalog {
	return c.catalog
}

// Compile compiles a table query.
func (c *Compiler) Compile(ctx context.Context, query *domain.Query) (*domain.CompiledQuery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, ok := c.catalog.Table(query.Table)
	if !ok {
		return nil, domain.UnknownTable(query.Table)
	}
	s := newState()
	var (
		compiled *domain.CompiledQuery
		err      error
	)
	switch query.Operation {
	case domain.FindFirst, domain.FindMany:
		compiled, err = c.compileFind(s, query, table)
	case domain.Aggregate:
		compiled, err = c.compileAggregate(s, query, table)
	case domain.Exists:
		compiled, err = c.compileExists(s, query, table)
	case domain.GroupBy:
		compiled, err = c.compileGroupBy(s, query, table)
	case domain.Insert:
		compiled, err = c.compileInsert(s, query, table)
	case domain.InsertMany:
		compiled, err = c.compileInsertMany(s, query, table)
	case domain.Update:
		compiled, err = c.compileUpdate(s, query, table)
	case domain.Upsert:
		compiled, err = c.compileUpsert(s, query, table)
	case domain.Delete:
		compiled, err = c.compileDelete(s, query, table)
	default:
		return nil, domain.Errorf(string(query.Operation), "unsupported operation")
	}
	if err != nil {
		return nil, err
	}
	compiled.Params = s.params.values
	compiled.Tables = s.tableList(table.Name)
	return compiled, nil
}

// state is the per-compilation context. Placeholder numbering restarts for
// every compilation so identical trees produce identical SQL.
type state struct {
	params *params
	// from collects json_each sources added by includes and some.
	from   []string
	each   int
	tables map[string]bool
}

func newState() *state {
	return &state{params: newParams(), tables: make(map[string]bool)}
}

func (s *state) eachAlias() string {
	s.each++
	return "j" + strconv.Itoa(s.each)
}

func (s *state) tableList(main string) []string {
	s.tables[main] = true
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type params struct {
	next   int
	values map[string]any
}

func newParams() *params {
	return &params{values: make(map[string]any)}
}

// add binds v and returns its placeholder.
func (p *params) add(v any) (string, error) {
	bound, err := bindValue(v)
	if err != nil {
		return "", err
	}
	return p.addBound(bound), nil
}

func (p *params) addBound(v any) string {
	p.next = p.next%(1<<20) + 1
	name := "p_" + strconv.Itoa(p.next)
	p.values[name] = v
	return "$" + name
}

// column validates a column of table.
func column(table *schemadomain.Table, name string) (*schemadomain.Column, error) {
	col := table.Column(name)
	if col == nil {
		return nil, domain.UnknownColumn(table.Name, name)
	}
	return col, nil
}

// parsed converts a catalog column to result metadata.
func parsed(table *schemadomain.Table, col *schemadomain.Column) schemadomain.ParsedColumn {
	return schemadomain.ParsedColumn{
		Name:        col.Name,
		Type:        col.Type,
		Nullable:    col.Nullable && !col.PrimaryKey,
		PrimaryKey:  col.PrimaryKey,
		OriginTable: table.Name,
	}
}

// visibleColumns returns the columns selected by "*".
func visibleColumns(table *schemadomain.Table) []*schemadomain.Column {
	cols := make([]*schemadomain.Column, 0, len(table.Columns))
	for _, col := range table.Columns {
		if !col.Hidden {
			cols = append(cols, col)
		}
	}
	return cols
}

// keywords renders the order by, limit and offset tail.
func keywords(orderBy []string, desc bool, limit, offset *int) string {
	var b strings.Builder
	if len(orderBy) > 0 {
		b.WriteString(" order by ")
		for i, term := range orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(term)
			if desc {
				b.WriteString(" desc")
			}
		}
	}
	switch {
	case limit != nil:
		b.WriteString(" limit " + strconv.Itoa(*limit))
		if offset != nil {
			b.WriteString(" offset " + strconv.Itoa(*offset))
		}
	case offset != nil:
		b.WriteString(" limit -1 offset " + strconv.Itoa(*offset))
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quote renders a string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
