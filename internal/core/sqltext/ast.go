package sqltext

// expr is a node of a parsed SQL expression.
type expr interface {
	exprNode()
}

type literalKind int

const (
	litInteger literalKind = iota
	litReal
	litText
	litBlob
	litNull
	litBool
	litTime
)

type literalExpr struct {
	kind literalKind
	text string
}

type paramExpr struct {
	name string
}

type columnExpr struct {
	table string
	name  string
}

type funcExpr struct {
	name     string
	distinct bool
	star     bool
	args     []expr
	window   bool
	// ordered calls carry an "order by" inside their argument list.
	ordered bool
}

type castExpr struct {
	x        expr
	typeName string
}

type unaryExpr struct {
	op string
	x  expr
}

type binaryExpr struct {
	op string
	l  expr
	r  expr
}

// inExpr covers "x [not] in (list)", "x [not] in (select ...)" and
// "x [not] in table".
type inExpr struct {
	x     expr
	not   bool
	list  []expr
	query *selectStmt
}

type betweenExpr struct {
	x, lo, hi expr
	not       bool
}

// nullTestExpr is "x isnull", "x notnull" or "x not null".
type nullTestExpr struct {
	x   expr
	not bool
}

type caseExpr struct {
	operand expr
	whens   []whenClause
	orElse  expr
}

type whenClause struct {
	cond   expr
	result expr
}

type subqueryExpr struct {
	query *selectStmt
}

type existsExpr struct {
	query *selectStmt
}

type tupleExpr struct {
	items []expr
}

type collateExpr struct {
	x expr
}

func (*literalExpr) exprNode()  {}
func (*paramExpr) exprNode()    {}
func (*columnExpr) exprNode()   {}
func (*funcExpr) exprNode()     {}
func (*castExpr) exprNode()     {}
func (*unaryExpr) exprNode()    {}
func (*binaryExpr) exprNode()   {}
func (*inExpr) exprNode()       {}
func (*betweenExpr) exprNode()  {}
func (*nullTestExpr) exprNode() {}
func (*caseExpr) exprNode()     {}
func (*subqueryExpr) exprNode() {}
func (*existsExpr) exprNode()   {}
func (*tupleExpr) exprNode()    {}
func (*collateExpr) exprNode()  {}

// StatementKind classifies a statement by its leading keyword.
type StatementKind string

const (
	// KindSelect is a select statement.
	KindSelect StatementKind = "select"
	// KindInsert is an insert or replace statement.
	KindInsert StatementKind = "insert"
	// KindUpdate is an update statement.
	KindUpdate StatementKind = "update"
	// KindDelete is a delete statement.
	KindDelete StatementKind = "delete"
	// KindPragma is a pragma statement.
	KindPragma StatementKind = "pragma"
)

type joinKind int

const (
	joinFirst joinKind = iota
	joinInner
	joinLeft
	joinRight
	joinFull
	joinCross
)

type resultColumn struct {
	x         expr
	star      bool
	starTable string
	alias     string
	text      string
}

type fromItem struct {
	name  string
	alias string
	sub   *selectStmt
	fn    *funcExpr
	join  joinKind
	on    expr
	using []string
}

type cte struct {
	name    string
	columns []string
	body    *selectStmt
}

type selectStmt struct {
	with     []*cte
	columns  []*resultColumn
	values   [][]expr
	from     []*fromItem
	where    expr
	groupBy  []expr
	having   expr
	compound bool
}

type writeStmt struct {
	kind      StatementKind
	table     string
	alias     string
	from      []*fromItem
	returning []*resultColumn
}

type pragmaStmt struct {
	name string
	arg  string
}

// statement is the parsed form of a whole input.
type statement struct {
	kind   StatementKind
	with   []*cte
	sel    *selectStmt
	write  *writeStmt
	pragma *pragmaStmt
	params []string
}
