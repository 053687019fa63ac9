package domain

// Where maps column names to match values. A value is either a plain
// value compared for equality, a Condition, or a ColumnRef compared
// without binding. The keys "and" and "or" take a []Where.
//
// Keys of the form "column.path.to.field" compare a JSON path.
type Where map[string]any

const (
	AndKey = "and"
	OrKey  = "or"
)

// Operator is a comparison used in a Condition.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNot      Operator = "not"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpLike     Operator = "like"
	OpGlob     Operator = "glob"
	OpMatch    Operator = "match"
	OpRange    Operator = "range"
	OpIncludes Operator = "includes"
	OpSome     Operator = "some"
)

// Condition is a comparison against a column.
type Condition struct {
	Operator Operator
	Value    any
	Bounds   Bounds
	// Where filters array elements for OpSome.
	Where Where
}

// Bounds holds the limits of a range condition. Nil limits are ignored.
type Bounds struct {
	Gt  any
	Gte any
	Lt  any
	Lte any
}

// Empty reports whether no limit is set.
func (b Bounds) Empty() bool {
	return b.Gt == nil && b.Gte == nil && b.Lt == nil && b.Lte == nil
}

// Eq matches equal values, nil matches null and slices match any element.
func Eq(v any) Condition { return Condition{Operator: OpEq, Value: v} }

// Not negates Eq.
func Not(v any) Condition { return Condition{Operator: OpNot, Value: v} }

func Gt(v any) Condition  { return Condition{Operator: OpGt, Value: v} }
func Gte(v any) Condition { return Condition{Operator: OpGte, Value: v} }
func Lt(v any) Condition  { return Condition{Operator: OpLt, Value: v} }
func Lte(v any) Condition { return Condition{Operator: OpLte, Value: v} }

func Like(pattern string) Condition { return Condition{Operator: OpLike, Value: pattern} }
func Glob(pattern string) Condition { return Condition{Operator: OpGlob, Value: pattern} }
func Match(query string) Condition  { return Condition{Operator: OpMatch, Value: query} }

// Range matches values inside every given bound.
func Range(b Bounds) Condition { return Condition{Operator: OpRange, Bounds: b} }

// Includes matches JSON arrays holding v.
func Includes(v any) Condition { return Condition{Operator: OpIncludes, Value: v} }

// Some matches JSON arrays with at least one element matching where.
func Some(where Where) Condition { return Condition{Operator: OpSome, Where: where} }
