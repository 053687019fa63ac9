package builder

import "github.com/satishbabariya/sqltyped/internal/core/query/domain"

// QueryBuilder builds table queries with a fluent API.
type QueryBuilder struct {
	query *domain.Query
}

// NewQueryBuilder creates a query builder for table.
func NewQueryBuilder(table string) *QueryBuilder {
	return &QueryBuilder{
		query: &domain.Query{
			Table:     table,
			Operation: domain.FindMany,
		},
	}
}

// FindMany sets the operation to FindMany.
func (b *QueryBuilder) FindMany() *QueryBuilder {
	b.query.Operation = domain.FindMany
	return b
}

// FindFirst sets the operation to FindFirst.
func (b *QueryBuilder) FindFirst() *QueryBuilder {
	b.query.Operation = domain.FindFirst
	return b
}

// Exists checks whether any row matches.
func (b *QueryBuilder) Exists() *QueryBuilder {
	b.query.Operation = domain.Exists
	return b
}

// Aggregate computes fn over column. An empty column counts rows.
func (b *QueryBuilder) Aggregate(fn domain.AggregateFunc, column string) *QueryBuilder {
	b.query.Operation = domain.Aggregate
	b.query.Aggregation = &domain.Aggregation{Func: fn, Column: column}
	return b
}

// GroupBy computes agg per group of columns.
func (b *QueryBuilder) GroupBy(agg domain.Aggregation, columns ...string) *QueryBuilder {
	b.query.Operation = domain.GroupBy
	b.query.Aggregation = &agg
	b.query.GroupBy = columns
	return b
}

// Insert sets data for an insert.
func (b *QueryBuilder) Insert(data map[string]any) *QueryBuilder {
	b.query.Operation = domain.Insert
	b.query.Data = data
	return b
}

// InsertMany sets rows for a batch insert.
func (b *QueryBuilder) InsertMany(rows []map[string]any) *QueryBuilder {
	b.query.Operation = domain.InsertMany
	b.query.Rows = rows
	return b
}

// Update sets data for an update of matching rows.
func (b *QueryBuilder) Update(data map[string]any) *QueryBuilder {
	b.query.Operation = domain.Update
	b.query.Data = data
	return b
}

// Upsert inserts data or updates set on a conflict on target.
func (b *QueryBuilder) Upsert(data map[string]any, target []string, set ...string) *QueryBuilder {
	b.query.Operation = domain.Upsert
	b.query.Data = data
	b.query.Conflict = &domain.Conflict{Target: target, Set: set}
	return b
}

// Delete removes matching rows.
func (b *QueryBuilder) Delete() *QueryBuilder {
	b.query.Operation = domain.Delete
	return b
}

// Where merges conditions into the filter.
func (b *QueryBuilder) Where(where domain.Where) *QueryBuilder {
	if b.query.Where == nil {
		b.query.Where = make(domain.Where, len(where))
	}
	for k, v := range where {
		b.query.Where[k] = v
	}
	return b
}

// Select limits the returned columns.
func (b *QueryBuilder) Select(columns ...string) *QueryBuilder {
	b.query.Select = append(b.query.Select, columns...)
	return b
}

// Extract adds a JSON path projection.
func (b *QueryBuilder) Extract(column, as string, path ...string) *QueryBuilder {
	b.query.Extract = append(b.query.Extract, domain.Extract{Column: column, Path: path, As: as})
	return b
}

// Value returns one column per row.
func (b *QueryBuilder) Value(column string) *QueryBuilder {
	b.query.Value = column
	return b
}

// Exclude removes columns from the default projection.
func (b *QueryBuilder) Exclude(columns ...string) *QueryBuilder {
	b.query.Exclude = append(b.query.Exclude, columns...)
	return b
}

// Distinct removes duplicate rows.
func (b *QueryBuilder) Distinct() *QueryBuilder {
	b.query.Distinct = true
	return b
}

// OrderBy adds ordering columns.
func (b *QueryBuilder) OrderBy(columns ...string) *QueryBuilder {
	b.query.OrderBy = append(b.query.OrderBy, columns...)
	return b
}

// Desc sorts in descending order.
func (b *QueryBuilder) Desc() *QueryBuilder {
	b.query.Desc = true
	return b
}

// Take sets the limit.
func (b *QueryBuilder) Take(n int) *QueryBuilder {
	b.query.Limit = domain.Int(n)
	return b
}

// Skip sets the offset.
func (b *QueryBuilder) Skip(n int) *QueryBuilder {
	b.query.Offset = domain.Int(n)
	return b
}

// Include attaches a relation.
func (b *QueryBuilder) Include(inc domain.Include) *QueryBuilder {
	b.query.Include = append(b.query.Include, inc)
	return b
}

// Search configures full-text projections and ranking.
func (b *QueryBuilder) Search(search domain.Search) *QueryBuilder {
	b.query.Search = &search
	return b
}

// Build returns the built query.
func (b *QueryBuilder) Build() *domain.Query {
	return b.query
}
