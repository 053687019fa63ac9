package client

import (
	"context"
	"fmt"

	"github.com/satishbabariya/sqltyped/internal/core/query/builder"
	querydomain "github.com/satishbabariya/sqltyped/internal/core/query/domain"
)

// Table runs table queries against one table or view.
type Table struct {
	client *Client
	name   string
}

// Table returns the query API for name. Unknown names fail when a query
// is compiled.
func (c *Client) Table(name string) *Table {
	return &Table{client: c, name: name}
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

func (t *Table) query(ctx context.Context, b *builder.QueryBuilder) (any, error) {
	c := t.client
	if c.executor == nil {
		return nil, ErrNotConnected
	}
	ctx, cancel := c.context(ctx)
	defer cancel()
	return c.executor.Query(ctx, b.Build())
}

func options(opts []Options) Options {
	if len(opts) == 0 {
		return Options{}
	}
	return opts[0]
}

// Get returns the row whose primary key equals key, or nil.
func (t *Table) Get(ctx context.Context, key any, opts ...Options) (map[string]any, error) {
	table, ok := t.client.catalog.Table(t.name)
	if !ok {
		return nil, querydomain.UnknownTable(t.name)
	}
	pk := table.PrimaryKey()
	if pk == nil {
		return nil, querydomain.Errorf("get", "table %s has no primary key", t.name)
	}
	return t.First(ctx, Where{pk.Name: key}, opts...)
}

// First returns the first matching row, or nil.
func (t *Table) First(ctx context.Context, where Where, opts ...Options) (map[string]any, error) {
	b := options(opts).apply(builder.NewQueryBuilder(t.name).FindFirst().Where(where))
	out, err := t.query(ctx, b)
	if err != nil || out == nil {
		return nil, err
	}
	row, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result %T", out)
	}
	return row, nil
}

// Many returns every matching row.
func (t *Table) Many(ctx context.Context, where Where, opts ...Options) ([]map[string]any, error) {
	b := options(opts).apply(builder.NewQueryBuilder(t.name).FindMany().Where(where))
	out, err := t.query(ctx, b)
	if err != nil {
		return nil, err
	}
	rows, ok := out.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result %T", out)
	}
	return rows, nil
}

// Value returns column of the first matching row, or nil.
func (t *Table) Value(ctx context.Context, column string, where Where, opts ...Options) (any, error) {
	b := options(opts).apply(builder.NewQueryBuilder(t.name).FindFirst().Where(where))
	return t.query(ctx, b.Value(column))
}

// Values returns column of every matching row.
func (t *Table) Values(ctx context.Context, column string, where Where, opts ...Options) ([]any, error) {
	b := options(opts).apply(builder.NewQueryBuilder(t.name).FindMany().Where(where))
	out, err := t.query(ctx, b.Value(column))
	if err != nil {
		return nil, err
	}
	values, ok := out.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result %T", out)
	}
	return values, nil
}

// Exists reports whether any row matches.
func (t *Table) Exists(ctx context.Context, where Where) (bool, error) {
	out, err := t.query(ctx, builder.NewQueryBuilder(t.name).Exists().Where(where))
	if err != nil {
		return false, err
	}
	exists, _ := out.(bool)
	return exists, nil
}

// Count returns the number of matching rows.
func (t *Table) Count(ctx context.Context, where Where) (int64, error) {
	out, err := t.aggregate(ctx, querydomain.Count, "", where)
	if err != nil {
		return 0, err
	}
	n, _ := out.(int64)
	return n, nil
}

// Sum adds column over matching rows. The result is nil when no row
// matches.
func (t *Table) Sum(ctx context.Context, column string, where Where) (any, error) {
	return t.aggregate(ctx, querydomain.Sum, column, where)
}

// Avg averages column over matching rows.
func (t *Table) Avg(ctx context.Context, column string, where Where) (any, error) {
	return t.aggregate(ctx, querydomain.Avg, column, where)
}

// Min returns the smallest value of column.
func (t *Table) Min(ctx context.Context, column string, where Where) (any, error) {
	return t.aggregate(ctx, querydomain.Min, column, where)
}

// Max returns the largest value of column.
func (t *Table) Max(ctx context.Context, column string, where Where) (any, error) {
	return t.aggregate(ctx, querydomain.Max, column, where)
}

func (t *Table) aggregate(ctx context.Context, fn querydomain.AggregateFunc, column string, where Where) (any, error) {
	return t.query(ctx, builder.NewQueryBuilder(t.name).Aggregate(fn, column).Where(where))
}

// Insert adds a row and returns its primary key.
func (t *Table) Insert(ctx context.Context, data map[string]any) (any, error) {
	return t.query(ctx, builder.NewQueryBuilder(t.name).Insert(data))
}

// InsertMany adds rows in one statement and returns the number added.
func (t *Table) InsertMany(ctx context.Context, rows []map[string]any) (int64, error) {
	return t.write(ctx, builder.NewQueryBuilder(t.name).InsertMany(rows))
}

// Update changes matching rows and returns the number changed.
func (t *Table) Update(ctx context.Context, where Where, data map[string]any) (int64, error) {
	return t.write(ctx, builder.NewQueryBuilder(t.name).Update(data).Where(where))
}

// Upsert inserts data, updating the conflicting row instead when the
// conflict target already exists.
func (t *Table) Upsert(ctx context.Context, data map[string]any, conflict Conflict) (int64, error) {
	return t.write(ctx, builder.NewQueryBuilder(t.name).Upsert(data, conflict.Target, conflict.Set...))
}

// Delete removes matching rows and returns the number removed.
func (t *Table) Delete(ctx context.Context, where Where) (int64, error) {
	return t.write(ctx, builder.NewQueryBuilder(t.name).Delete().Where(where))
}

func (t *Table) write(ctx context.Context, b *builder.QueryBuilder) (int64, error) {
	out, err := t.query(ctx, b)
	if err != nil {
		return 0, err
	}
	n, _ := out.(int64)
	return n, nil
}

// Match runs a full-text query against a virtual table. The phrase is
// matched against every indexed column.
func (t *Table) Match(ctx context.Context, phrase string, opts MatchOptions) ([]map[string]any, error) {
	b := opts.Options.apply(builder.NewQueryBuilder(t.name).FindMany().Where(Where{t.name: phrase}))
	b.Search(Search{
		Highlight: opts.Highlight,
		Snippet:   opts.Snippet,
		Rank:      opts.Rank,
		Weights:   opts.Weights,
	})
	out, err := t.query(ctx, b)
	if err != nil {
		return nil, err
	}
	rows, ok := out.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result %T", out)
	}
	return rows, nil
}

// GroupBy starts a grouped aggregate over columns.
func (t *Table) GroupBy(columns ...string) *Group {
	return &Group{table: t, columns: columns}
}

// Group computes aggregates per group. Each result row holds the group
// columns and the aggregate, named after the function unless As is set.
type Group struct {
	table   *Table
	columns []string
	where   Where
	as      string
}

// Where filters rows before grouping.
func (g *Group) Where(where Where) *Group {
	g.where = where
	return g
}

// As names the aggregate column.
func (g *Group) As(name string) *Group {
	g.as = name
	return g
}

// Count counts rows per group.
func (g *Group) Count(ctx context.Context) ([]map[string]any, error) {
	return g.run(ctx, querydomain.Aggregation{Func: querydomain.Count})
}

// Sum adds column per group.
func (g *Group) Sum(ctx context.Context, column string) ([]map[string]any, error) {
	return g.run(ctx, querydomain.Aggregation{Func: querydomain.Sum, Column: column})
}

// Avg averages column per group.
func (g *Group) Avg(ctx context.Context, column string) ([]map[string]any, error) {
	return g.run(ctx, querydomain.Aggregation{Func: querydomain.Avg, Column: column})
}

// Min returns the smallest column value per group.
func (g *Group) Min(ctx context.Context, column string) ([]map[string]any, error) {
	return g.run(ctx, querydomain.Aggregation{Func: querydomain.Min, Column: column})
}

// Max returns the largest column value per group.
func (g *Group) Max(ctx context.Context, column string) ([]map[string]any, error) {
	return g.run(ctx, querydomain.Aggregation{Func: querydomain.Max, Column: column})
}

// Array collects one column per group, or objects of several columns.
func (g *Group) Array(ctx context.Context, columns ...string) ([]map[string]any, error) {
	agg := querydomain.Aggregation{Func: querydomain.Array}
	if len(columns) == 1 {
		agg.Column = columns[0]
	} else {
		agg.Select = columns
	}
	return g.run(ctx, agg)
}

func (g *Group) run(ctx context.Context, agg querydomain.Aggregation) ([]map[string]any, error) {
	agg.As = g.as
	b := builder.NewQueryBuilder(g.table.name).GroupBy(agg, g.columns...).Where(g.where)
	out, err := g.table.query(ctx, b)
	if err != nil {
		return nil, err
	}
	rows, ok := out.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result %T", out)
	}
	return rows, nil
}
