package builder

import "github.com/satishbabariya/sqltyped/internal/core/query/domain"

// Window functions run over a window and need Over.

func windowCall(name string, args ...any) *domain.MethodCall {
	return &domain.MethodCall{Kind: domain.WindowFunc, Name: name, Args: nodes(args)}
}

// Over runs a window or aggregate function over w.
func Over(call *domain.MethodCall, w domain.Window) *domain.MethodCall {
	c := *call
	c.Over = &w
	return &c
}

func RowNumber() *domain.MethodCall   { return windowCall("row_number") }
func Rank() *domain.MethodCall        { return windowCall("rank") }
func DenseRank() *domain.MethodCall   { return windowCall("dense_rank") }
func PercentRank() *domain.MethodCall { return windowCall("percent_rank") }
func CumeDist() *domain.MethodCall    { return windowCall("cume_dist") }

// Ntile splits the window into groups buckets.
func Ntile(groups int) *domain.MethodCall {
	return windowCall("ntile", groups)
}

// Lag returns x from offset rows before the current row, or def.
func Lag(x any, offset int, def any) *domain.MethodCall {
	return windowCall("lag", x, offset, def)
}

// Lead returns x from offset rows after the current row, or def.
func Lead(x any, offset int, def any) *domain.MethodCall {
	return windowCall("lead", x, offset, def)
}

func FirstValue(x any) *domain.MethodCall {
	return windowCall("first_value", x)
}

func LastValue(x any) *domain.MethodCall {
	return windowCall("last_value", x)
}

// NthValue returns x from row n of the frame, counting from 1.
func NthValue(x any, n int) *domain.MethodCall {
	return windowCall("nth_value", x, n)
}

// PartitionBy starts a window definition.
func PartitionBy(exprs ...any) domain.Window {
	return domain.Window{PartitionBy: nodes(exprs)}
}

// OrderedBy returns a window ordered by exprs.
func OrderedBy(exprs ...any) domain.Window {
	return domain.Window{OrderBy: nodes(exprs)}
}

// Rows returns a rows frame between start and end.
func Rows(start, end domain.FrameBound) *domain.Frame {
	return &domain.Frame{Type: domain.FrameRows, Start: start, End: end}
}

// Preceding is a frame bound n rows before the current row.
func Preceding(n int) domain.FrameBound {
	return domain.FrameBound{Kind: domain.Preceding, Offset: n}
}

// Following is a frame bound n rows after the current row.
func Following(n int) domain.FrameBound {
	return domain.FrameBound{Kind: domain.Following, Offset: n}
}

var (
	UnboundedPreceding = domain.FrameBound{Kind: domain.UnboundedPreceding}
	CurrentRow         = domain.FrameBound{Kind: domain.CurrentRow}
	UnboundedFollowing = domain.FrameBound{Kind: domain.UnboundedFollowing}
)
