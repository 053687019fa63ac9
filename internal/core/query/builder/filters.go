package builder

import "github.com/satishbabariya/sqltyped/internal/core/query/domain"

// Comparison helpers. Plain Go values are bound as parameters, column
// references are compared without binding.

func compare(name string, left, right any) *domain.MethodCall {
	return &domain.MethodCall{Kind: domain.Compare, Name: name, Args: []domain.Node{node(left), node(right)}}
}

// Eq compares for equality. A nil right side tests for null and a slice
// tests membership.
func Eq(left, right any) *domain.MethodCall {
	return compare("eq", left, right)
}

// Not negates Eq.
func Not(left, right any) *domain.MethodCall {
	return compare("not", left, right)
}

// Gt creates a greater than comparison.
func Gt(left, right any) *domain.MethodCall {
	return compare("gt", left, right)
}

// Gte creates a greater than or equal comparison.
func Gte(left, right any) *domain.MethodCall {
	return compare("gte", left, right)
}

// Lt creates a less than comparison.
func Lt(left, right any) *domain.MethodCall {
	return compare("lt", left, right)
}

// Lte creates a less than or equal comparison.
func Lte(left, right any) *domain.MethodCall {
	return compare("lte", left, right)
}

// Like matches a like pattern.
func Like(left any, pattern string) *domain.MethodCall {
	return compare("like", left, pattern)
}

// Glob matches a glob pattern.
func Glob(left any, pattern string) *domain.MethodCall {
	return compare("glob", left, pattern)
}

// Match runs a full-text query.
func Match(left any, query string) *domain.MethodCall {
	return compare("match", left, query)
}

// Range matches values inside every given bound.
func Range(value any, bounds domain.Bounds) *domain.MethodCall {
	return &domain.MethodCall{Kind: domain.Compare, Name: "range", Args: []domain.Node{node(value)}, Bounds: bounds}
}

// Includes matches JSON arrays holding value.
func Includes(array, value any) *domain.MethodCall {
	return compare("includes", array, value)
}

// Some matches JSON arrays with an element matching where.
func Some(array any, where domain.Where) *domain.MethodCall {
	return &domain.MethodCall{Kind: domain.Compare, Name: "some", Args: []domain.Node{node(array)}, Where: where}
}

// And joins conditions.
func And(conds ...domain.Node) *domain.MethodCall {
	return &domain.MethodCall{Kind: domain.Compare, Name: "and", Args: conds}
}

// Or joins alternatives.
func Or(conds ...domain.Node) *domain.MethodCall {
	return &domain.MethodCall{Kind: domain.Compare, Name: "or", Args: conds}
}
