package domain

import schemadomain "github.com/satishbabariya/sqltyped/internal/core/schema/domain"

// Node is an element of a builder expression tree.
type Node interface {
	node()
}

// ColumnRef references a column of a table in the builder.
type ColumnRef struct {
	Table  string
	Alias  string
	Column string
	Type   schemadomain.ColumnType
}

// Literal is a bound value.
type Literal struct {
	Value any
}

// MethodKind classifies method calls.
type MethodKind string

const (
	// Compare is a boolean condition.
	Compare MethodKind = "compare"
	// Compute is a scalar function or operator.
	Compute MethodKind = "compute"
	// WindowFunc is a window-only function.
	WindowFunc MethodKind = "window"
	// AggregateCall is an aggregate that may also run over a window.
	AggregateCall MethodKind = "aggregate"
)

// MethodCall applies a function, operator or comparison to arguments.
type MethodCall struct {
	Kind     MethodKind
	Name     string
	Args     []Node
	Distinct bool
	// Bounds is used by range comparisons.
	Bounds Bounds
	// Where filters JSON elements for the some comparison.
	Where Where
	// Keys names the fields of json_object calls.
	Keys []string
	// Filter is an aggregate filter clause.
	Filter []Node
	Over   *Window
}

// Window describes an over clause.
type Window struct {
	PartitionBy []Node
	OrderBy     []Node
	Desc        bool
	Frame       *Frame
}

// FrameType is the unit of a window frame.
type FrameType string

const (
	FrameRows   FrameType = "rows"
	FrameRange  FrameType = "range"
	FrameGroups FrameType = "groups"
)

// BoundKind is one end of a window frame.
type BoundKind int

const (
	UnboundedPreceding BoundKind = iota
	Preceding
	CurrentRow
	Following
	UnboundedFollowing
)

// FrameBound is a frame edge. Offset is used by Preceding and Following.
type FrameBound struct {
	Kind   BoundKind
	Offset int
}

// Frame limits the rows a window function sees.
type Frame struct {
	Type  FrameType
	Start FrameBound
	End   FrameBound
}

func (ColumnRef) node()   {}
func (Literal) node()     {}
func (*MethodCall) node() {}

// JoinType is the kind of a builder join.
type JoinType string

const (
	InnerJoin JoinType = ""
	LeftJoin  JoinType = "left"
	RightJoin JoinType = "right"
	FullJoin  JoinType = "full"
)

// Join links the table of Right to the tables before it.
type Join struct {
	Left  ColumnRef
	Right ColumnRef
	Type  JoinType
}

// TableRef is a table or subquery declared in a builder.
type TableRef struct {
	Name  string
	Alias string
	// Query is set for subqueries added with Use.
	Query *CompiledQuery
}

// Field is a named projection.
type Field struct {
	Name  string
	Value Node
}

// Select is a builder query ready to compile.
type Select struct {
	Tables  []TableRef
	Columns []Field
	// Value returns one expression per row instead of objects.
	Value    Node
	Distinct bool
	// First returns a single row or value.
	First   bool
	Joins   []Join
	Where   []Node
	GroupBy []Node
	Having  []Node
	OrderBy []Node
	Desc    bool
	Limit   *int
	Offset  *int
}
