// Package expr exposes the expression constructors used with
// client.Builder. Plain Go values are bound as parameters and column
// references from Table.Col are compared directly.
package expr

import (
	"github.com/satishbabariya/sqltyped/internal/core/query/builder"
	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
)

type (
	Node       = domain.Node
	Field      = domain.Field
	Call       = domain.MethodCall
	Column     = domain.ColumnRef
	Window     = domain.Window
	Frame      = domain.Frame
	FrameBound = domain.FrameBound
	JoinType   = domain.JoinType
	Bounds     = domain.Bounds
	Where      = domain.Where
)

// Join kinds.
const (
	InnerJoin = domain.InnerJoin
	LeftJoin  = domain.LeftJoin
	RightJoin = domain.RightJoin
	FullJoin  = domain.FullJoin
)

// As names a selected expression.
var As = builder.As

// Comparisons.
var (
	Eq       = builder.Eq
	Not      = builder.Not
	Gt       = builder.Gt
	Gte      = builder.Gte
	Lt       = builder.Lt
	Lte      = builder.Lte
	Like     = builder.Like
	Glob     = builder.Glob
	Match    = builder.Match
	Range    = builder.Range
	Includes = builder.Includes
	Some     = builder.Some
	And      = builder.And
	Or       = builder.Or
)

// Scalar functions and operators.
var (
	Fn       = builder.Fn
	Plus     = builder.Plus
	Minus    = builder.Minus
	Times    = builder.Times
	Divide   = builder.Divide
	Mod      = builder.Mod
	Concat   = builder.Concat
	Lower    = builder.Lower
	Upper    = builder.Upper
	Length   = builder.Length
	Abs      = builder.Abs
	Round    = builder.Round
	Coalesce = builder.Coalesce
	Iif      = builder.Iif
	Object   = builder.Object
	Array    = builder.Array
)

// Aggregates.
var (
	Count       = builder.Count
	Sum         = builder.Sum
	Avg         = builder.Avg
	Min         = builder.Min
	Max         = builder.Max
	GroupArray  = builder.GroupArray
	GroupObject = builder.GroupObject
	Distinct    = builder.Distinct
	Filter      = builder.Filter
)

// Window functions.
var (
	Over        = builder.Over
	RowNumber   = builder.RowNumber
	Rank        = builder.Rank
	DenseRank   = builder.DenseRank
	PercentRank = builder.PercentRank
	CumeDist    = builder.CumeDist
	Ntile       = builder.Ntile
	Lag         = builder.Lag
	Lead        = builder.Lead
	FirstValue  = builder.FirstValue
	LastValue   = builder.LastValue
	NthValue    = builder.NthValue
	PartitionBy = builder.PartitionBy
	OrderedBy   = builder.OrderedBy
	Rows        = builder.Rows
	Preceding   = builder.Preceding
	Following   = builder.Following
)
