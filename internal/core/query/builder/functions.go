package builder

import "github.com/satishbabariya/sqltyped/internal/core/query/domain"

// Fn calls a scalar function by name.
func Fn(name string, args ...any) *domain.MethodCall {
	return &domain.MethodCall{Kind: domain.Compute, Name: name, Args: nodes(args)}
}

func operator(op string, args []any) *domain.MethodCall {
	return &domain.MethodCall{Kind: domain.Compute, Name: op, Args: nodes(args)}
}

func Plus(args ...any) *domain.MethodCall   { return operator("+", args) }
func Minus(args ...any) *domain.MethodCall  { return operator("-", args) }
func Times(args ...any) *domain.MethodCall  { return operator("*", args) }
func Divide(args ...any) *domain.MethodCall { return operator("/", args) }
func Mod(args ...any) *domain.MethodCall    { return operator("%", args) }
func Concat(args ...any) *domain.MethodCall { return operator("||", args) }

// Lower converts text to lower case.
func Lower(x any) *domain.MethodCall {
	return Fn("lower", x)
}

// Upper converts text to upper case.
func Upper(x any) *domain.MethodCall {
	return Fn("upper", x)
}

func Length(x any) *domain.MethodCall {
	return Fn("length", x)
}

func Abs(x any) *domain.MethodCall {
	return Fn("abs", x)
}

// Round rounds x to digits decimal places.
func Round(x any, digits int) *domain.MethodCall {
	return Fn("round", x, digits)
}

// Coalesce returns its first non-null argument.
func Coalesce(args ...any) *domain.MethodCall {
	return Fn("coalesce", args...)
}

// Iif returns then when cond holds, otherwise els.
func Iif(cond, then, els any) *domain.MethodCall {
	return Fn("iif", cond, then, els)
}

// Object builds a JSON object from fields.
func Object(fields ...domain.Field) *domain.MethodCall {
	call := &domain.MethodCall{Kind: domain.Compute, Name: "json_object"}
	for _, f := range fields {
		call.Keys = append(call.Keys, f.Name)
		call.Args = append(call.Args, f.Value)
	}
	return call
}

// Array builds a JSON array.
func Array(args ...any) *domain.MethodCall {
	return Fn("json_array", args...)
}

func aggregate(name string, args ...any) *domain.MethodCall {
	return &domain.MethodCall{Kind: domain.AggregateCall, Name: name, Args: nodes(args)}
}

// Count counts rows, or the non-null values of x.
func Count(x ...any) *domain.MethodCall {
	return aggregate("count", x...)
}

// Sum adds values. Empty groups sum to zero.
func Sum(x any) *domain.MethodCall { return aggregate("sum", x) }
func Avg(x any) *domain.MethodCall { return aggregate("avg", x) }
func Min(x any) *domain.MethodCall { return aggregate("min", x) }
func Max(x any) *domain.MethodCall { return aggregate("max", x) }

// GroupArray collects values into a JSON array.
func GroupArray(x any) *domain.MethodCall {
	return aggregate("json_group_array", x)
}

// GroupObject collects key and value pairs into a JSON object.
func GroupObject(key, value any) *domain.MethodCall {
	return aggregate("json_group_object", key, value)
}

// Distinct makes an aggregate ignore duplicate values.
func Distinct(call *domain.MethodCall) *domain.MethodCall {
	c := *call
	c.Distinct = true
	return &c
}

// Filter restricts the rows an aggregate sees.
func Filter(call *domain.MethodCall, conds ...domain.Node) *domain.MethodCall {
	c := *call
	c.Filter = append(append([]domain.Node(nil), call.Filter...), conds...)
	return &c
}
