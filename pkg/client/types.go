package client

import (
	"github.com/satishbabariya/sqltyped/internal/core/query/builder"
	querydomain "github.com/satishbabariya/sqltyped/internal/core/query/domain"
	schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// Query types shared with the compiler.
type (
	Where     = querydomain.Where
	Condition = querydomain.Condition
	Bounds    = querydomain.Bounds
	Include   = querydomain.Include
	Search    = querydomain.Search
	Highlight = querydomain.Highlight
	Snippet   = querydomain.Snippet
	Conflict  = querydomain.Conflict
	Extract   = querydomain.Extract

	// Builder assembles typed selects for Client.Select.
	Builder = builder.Builder

	// Column describes one result column.
	Column = schemadomain.ParsedColumn
)

// Relation kinds for Include.
const (
	ToOne    = querydomain.ToOne
	ToMany   = querydomain.ToMany
	CountOf  = querydomain.CountOf
	ExistsOf = querydomain.ExistsOf
)

// Where keys combining sub-filters.
const (
	And = querydomain.AndKey
	Or  = querydomain.OrKey
)

// Filter constructors.
var (
	Eq       = querydomain.Eq
	Not      = querydomain.Not
	Gt       = querydomain.Gt
	Gte      = querydomain.Gte
	Lt       = querydomain.Lt
	Lte      = querydomain.Lte
	Like     = querydomain.Like
	Glob     = querydomain.Glob
	Match    = querydomain.Match
	Range    = querydomain.Range
	Includes = querydomain.Includes
	Some     = querydomain.Some
)

// Options shapes the rows of table reads.
type Options struct {
	Select   []string
	Extract  []Extract
	Exclude  []string
	OrderBy  []string
	Desc     bool
	Limit    int
	Offset   int
	Distinct bool
	Include  []Include
}

func (o Options) apply(b *builder.QueryBuilder) *builder.QueryBuilder {
	b.Select(o.Select...).Exclude(o.Exclude...).OrderBy(o.OrderBy...)
	for _, e := range o.Extract {
		b.Extract(e.Column, e.As, e.Path...)
	}
	for _, inc := range o.Include {
		b.Include(inc)
	}
	if o.Desc {
		b.Desc()
	}
	if o.Distinct {
		b.Distinct()
	}
	if o.Limit > 0 {
		b.Take(o.Limit)
	}
	if o.Offset > 0 {
		b.Skip(o.Offset)
	}
	return b
}

// MatchOptions configures full-text queries.
type MatchOptions struct {
	Options
	Highlight *Highlight
	Snippet   *Snippet
	// Rank orders by relevance.
	Rank bool
	// Weights orders by bm25 with per-column weights.
	Weights map[string]float64
}
