// Package domain contains the core entities for the query compiler.
package domain

import (
	"database/sql"
	"sort"

	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// Operation represents the type of table query.
type Operation string

const (
	// FindFirst returns the first matching row.
	FindFirst Operation = "findFirst"
	// FindMany returns all matching rows.
	FindMany Operation = "findMany"
	// Aggregate computes a single aggregate over matching rows.
	Aggregate Operation = "aggregate"
	// Exists reports whether any row matches.
	Exists Operation = "exists"
	// GroupBy computes an aggregate per group.
	GroupBy Operation = "groupBy"
	// Insert adds one row and returns its primary key.
	Insert Operation = "insert"
	// InsertMany adds rows in a single statement.
	InsertMany Operation = "insertMany"
	// Update changes matching rows.
	Update Operation = "update"
	// Upsert inserts a row or updates it on conflict.
	Upsert Operation = "upsert"
	// Delete removes matching rows.
	Delete Operation = "delete"
)

// Query represents a request against a single table. It is the aggregate
// root for the table-oriented API.
type Query struct {
	Table     string
	Operation Operation
	Where     Where

	// Select limits the returned columns.
	Select []string
	// Extract adds JSON path projections.
	Extract []Extract
	// Value returns one column, flattening each row to a scalar.
	Value string
	// Exclude removes columns from the default projection.
	Exclude []string

	Distinct bool
	OrderBy  []string
	Desc     bool
	Limit    *int
	Offset   *int

	Include []Include

	Aggregation *Aggregation
	GroupBy     []string

	// Data holds the values written by Insert, Update and Upsert.
	Data map[string]any
	// Rows holds the values written by InsertMany.
	Rows []map[string]any
	// Conflict configures Upsert.
	Conflict *Conflict

	// Search configures full-text projections and ranking.
	Search *Search
}

// Extract projects a JSON path of a column under an alias.
type Extract struct {
	Column string
	Path   []string
	As     string
}

// AggregateFunc represents an aggregate function.
type AggregateFunc string

const (
	Count AggregateFunc = "count"
	Sum   AggregateFunc = "sum"
	Avg   AggregateFunc = "avg"
	Min   AggregateFunc = "min"
	Max   AggregateFunc = "max"
	// Array collects values into a JSON array.
	Array AggregateFunc = "array"
)

// Aggregation represents an aggregate over one column. An empty Column
// counts rows.
type Aggregation struct {
	Func     AggregateFunc
	Column   string
	Distinct bool
	// As names the result column of a grouped aggregate.
	As string
	// Select lists the columns collected by Array when Column is empty.
	Select []string
}

// Conflict configures the on conflict clause of an upsert.
type Conflict struct {
	Target []string
	// Set lists the columns updated on conflict. Empty means every
	// written column outside Target.
	Set []string
}

// Search configures full-text queries on virtual tables.
type Search struct {
	Highlight *Highlight
	Snippet   *Snippet
	// Rank orders by the built-in rank column.
	Rank bool
	// Weights orders by bm25 with per-column weights.
	Weights map[string]float64
}

// Highlight marks matches inside one column.
type Highlight struct {
	Column string
	Start  string
	End    string
}

// Snippet extracts a fragment around matches of one column.
type Snippet struct {
	Column   string
	Start    string
	End      string
	Trailing string
	Tokens   int
}

// RelationKind is the cardinality of an included relation.
type RelationKind string

const (
	// ToOne follows a foreign key held by the parent.
	ToOne RelationKind = "one"
	// ToMany collects child rows pointing at the parent.
	ToMany RelationKind = "many"
	// CountOf counts child rows.
	CountOf RelationKind = "count"
	// ExistsOf reports whether any child row exists.
	ExistsOf RelationKind = "exists"
)

// Include attaches related rows to each parent row under Name.
type Include struct {
	Name  string
	Table string
	Kind  RelationKind
	// LocalKey is the parent column and ForeignKey the child column.
	// Both are resolved from the catalog when empty.
	LocalKey   string
	ForeignKey string

	Where   Where
	Select  []string
	Value   string
	OrderBy []string
	Desc    bool
	Limit   *int
	Offset  *int
}

// ResultShape tells the coercer how to fold rows.
type ResultShape string

const (
	ShapeNone   ResultShape = "none"
	ShapeValue  ResultShape = "value"
	ShapeValues ResultShape = "values"
	ShapeObject ResultShape = "object"
	ShapeArray  ResultShape = "array"
)

// CompiledQuery represents a ready-to-run statement. It is immutable and
// safe to cache by SQL text.
type CompiledQuery struct {
	SQL     string
	Params  map[string]any
	Columns []schemadomain.ParsedColumn
	Shape   ResultShape
	// Tables lists the tables the statement reads or writes.
	Tables []string
}

// ColumnTypes returns the column types keyed by name.
func (q *CompiledQuery) ColumnTypes() map[string]schemadomain.ColumnType {
	types := make(map[string]schemadomain.ColumnType, len(q.Columns))
	for _, c := range q.Columns {
		types[c.Name] = c.Type
	}
	return types
}

// Args returns the parameters as named driver arguments sorted by name.
func (q *CompiledQuery) Args() []any {
	names := make([]string, 0, len(q.Params))
	for name := range q.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = sql.Named(name, q.Params[name])
	}
	return args
}

// Returns reports whether running the statement yields rows.
func (q *CompiledQuery) Returns() bool {
	return q.Shape != ShapeNone
}

// Int returns a pointer to n, for Limit and Offset.
func Int(n int) *int {
	return &n
}
