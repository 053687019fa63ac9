package sqltext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/schema/domain"
)

// Operand is the inferred type of an expression.
type Operand struct {
	domain.ParsedColumn
	// Optional values come from an outer-joined table.
	Optional bool
	// Null is set for the null literal, which never decides a common type.
	Null bool
	// Column is set for plain column references.
	Column bool
}

// relation is a named row source visible in a scope.
type relation struct {
	name     string
	alias    string
	columns  []domain.ParsedColumn
	hidden   map[string]bool
	table    *domain.Table
	optional bool
}

func (r *relation) matches(name string) bool {
	if r.alias != "" && strings.EqualFold(r.alias, name) {
		return true
	}
	return strings.EqualFold(r.name, name)
}

func (r *relation) column(name string) (domain.ParsedColumn, bool) {
	for _, c := range r.columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	if r.table == nil {
		return domain.ParsedColumn{}, false
	}
	switch strings.ToLower(name) {
	case "rowid", "_rowid_", "oid":
		if !r.table.View {
			return domain.ParsedColumn{Name: name, Type: domain.TypeInteger, PrimaryKey: true, OriginTable: r.table.Name}, true
		}
	case "rank":
		if r.table.Virtual {
			return domain.ParsedColumn{Name: name, Type: domain.TypeReal, OriginTable: r.table.Name}, true
		}
	}
	return domain.ParsedColumn{}, false
}

// scope holds the relations and CTEs visible to one select core.
type scope struct {
	an       *analysis
	parent   *scope
	ctes     map[string][]domain.ParsedColumn
	rels     []*relation
	narrowed map[*relation]map[string]bool
	grouped  bool
}

func (an *analysis) newScope(parent *scope) *scope {
	return &scope{
		an:       an,
		parent:   parent,
		ctes:     make(map[string][]domain.ParsedColumn),
		narrowed: make(map[*relation]map[string]bool),
	}
}

// lookup finds a CTE or catalog table by name.
func (s *scope) lookup(name string) (*relation, bool) {
	key := strings.ToLower(name)
	for sc := s; sc != nil; sc = sc.parent {
		if cols, ok := sc.ctes[key]; ok {
			return &relation{name: name, columns: cols}, true
		}
	}
	table, ok := s.an.catalog.Table(name)
	if !ok {
		return nil, false
	}
	s.an.tables[table.Name] = true
	r := &relation{name: table.Name, table: table, hidden: make(map[string]bool)}
	for _, col := range table.Columns {
		r.columns = append(r.columns, domain.ParsedColumn{
			Name:        col.Name,
			Type:        col.Type,
			Nullable:    col.Nullable && !col.PrimaryKey,
			PrimaryKey:  col.PrimaryKey,
			OriginTable: table.Name,
		})
		if col.Hidden {
			r.hidden[strings.ToLower(col.Name)] = true
		}
	}
	return r, true
}

func (s *scope) narrow(r *relation, column string) {
	m := s.narrowed[r]
	if m == nil {
		m = make(map[string]bool)
		s.narrowed[r] = m
	}
	m[strings.ToLower(column)] = true
}

// resolve finds a column reference, searching enclosing scopes for
// correlated references.
func (s *scope) resolve(table, name string) (Operand, *relation, error) {
	for sc := s; sc != nil; sc = sc.parent {
		for _, r := range sc.rels {
			if table != "" && !r.matches(table) {
				continue
			}
			if col, ok := r.column(name); ok {
				return sc.columnOf(r, col), r, nil
			}
		}
	}
	if table != "" {
		return Operand{}, nil, fmt.Errorf("unknown column %s.%s", table, name)
	}
	return Operand{}, nil, fmt.Errorf("unknown column %s", name)
}

func (s *scope) columnOf(r *relation, col domain.ParsedColumn) Operand {
	t := Operand{ParsedColumn: col, Column: true}
	t.Optional = r.optional
	if s.narrowed[r][strings.ToLower(col.Name)] {
		t.Nullable = false
		t.Optional = false
	} else if r.optional {
		t.Nullable = true
	}
	if t.Structured != nil && t.Optional {
		st := *t.Structured
		st.Optional = true
		t.Structured = &st
	}
	return t
}

// selectColumns infers the result columns of a select core.
func (s *scope) selectColumns(sel *selectStmt) ([]domain.ParsedColumn, error) {
	sc := s.an.newScope(s)
	if err := sc.addCTEs(sel.with); err != nil {
		return nil, err
	}
	if sel.values != nil {
		return sc.valuesColumns(sel.values)
	}
	if err := sc.addFrom(sel.from); err != nil {
		return nil, err
	}
	sc.narrowWhere(sel.where)
	sc.grouped = len(sel.groupBy) > 0

	var columns []domain.ParsedColumn
	for _, rc := range sel.columns {
		if rc.star {
			cols, err := sc.expandStar(rc.starTable)
			if err != nil {
				return nil, err
			}
			columns = append(columns, cols...)
			continue
		}
		t, err := sc.infer(rc.x)
		if err != nil {
			return nil, err
		}
		t.Name = outputName(rc)
		if t.Structured != nil && t.Type == "" {
			t.Type = domain.TypeJSON
		}
		columns = append(columns, t.ParsedColumn)
	}
	return columns, nil
}

func outputName(rc *resultColumn) string {
	if rc.alias != "" {
		return rc.alias
	}
	if col, ok := rc.x.(*columnExpr); ok {
		return col.name
	}
	return rc.text
}

func (s *scope) addCTEs(ctes []*cte) error {
	for _, c := range ctes {
		cols, err := s.selectColumns(c.body)
		if err != nil {
			return fmt.Errorf("failed to analyze %s: %w", c.name, err)
		}
		if len(c.columns) > 0 {
			if len(c.columns) != len(cols) {
				return fmt.Errorf("%s declares %d columns but selects %d", c.name, len(c.columns), len(cols))
			}
			for i := range cols {
				cols[i].Name = c.columns[i]
			}
		}
		s.ctes[strings.ToLower(c.name)] = cols
	}
	return nil
}

func (s *scope) valuesColumns(rows [][]expr) ([]domain.ParsedColumn, error) {
	var columns []domain.ParsedColumn
	for i := range rows[0] {
		branches := make([]Operand, 0, len(rows))
		for _, row := range rows {
			if i >= len(row) {
				return nil, fmt.Errorf("values rows have different lengths")
			}
			t, err := s.infer(row[i])
			if err != nil {
				return nil, err
			}
			branches = append(branches, t)
		}
		t := commonType(branches)
		t.Nullable = anyNullable(branches)
		t.Name = "column" + strconv.Itoa(i+1)
		columns = append(columns, t.ParsedColumn)
	}
	return columns, nil
}

func (s *scope) addFrom(items []*fromItem) error {
	for i, item := range items {
		r, err := s.relationFor(item)
		if err != nil {
			return err
		}
		switch item.join {
		case joinLeft:
			r.optional = true
		case joinRight:
			s.rels[i-1].optional = true
		case joinFull:
			r.optional = true
			s.rels[i-1].optional = true
		}
		s.rels = append(s.rels, r)
	}
	for _, item := range items {
		if item.join == joinLeft || item.join == joinRight || item.join == joinFull {
			continue
		}
		for _, name := range item.using {
			for _, r := range s.rels {
				if _, ok := r.column(name); ok {
					s.narrow(r, name)
				}
			}
		}
		for _, conj := range conjuncts(item.on) {
			b, ok := conj.(*binaryExpr)
			if !ok || b.op != "=" {
				continue
			}
			s.narrowColumn(b.l)
			s.narrowColumn(b.r)
		}
	}
	return nil
}

func (s *scope) relationFor(item *fromItem) (*relation, error) {
	switch {
	case item.sub != nil:
		cols, err := s.selectColumns(item.sub)
		if err != nil {
			return nil, err
		}
		return &relation{name: item.alias, columns: cols}, nil
	case item.fn != nil:
		cols, err := tableFunctionColumns(item.fn.name)
		if err != nil {
			return nil, err
		}
		return &relation{name: item.fn.name, alias: item.alias, columns: cols}, nil
	}
	r, ok := s.lookup(item.name)
	if !ok {
		return nil, fmt.Errorf("unknown table %s", item.name)
	}
	r.alias = item.alias
	return r, nil
}

func tableFunctionColumns(name string) ([]domain.ParsedColumn, error) {
	switch name {
	case "json_each", "json_tree", "jsonb_each", "jsonb_tree":
		return jsonEachColumns, nil
	}
	if cols, ok := pragmaColumns[strings.TrimPrefix(name, "pragma_")]; ok && strings.HasPrefix(name, "pragma_") {
		return cols, nil
	}
	return nil, unsupported("table-valued function %s", name)
}

func (s *scope) narrowColumn(x expr) {
	col, ok := x.(*columnExpr)
	if !ok {
		return
	}
	_, r, err := s.resolve(col.table, col.name)
	if err != nil || !s.owns(r) {
		return
	}
	s.narrow(r, col.name)
}

func (s *scope) owns(r *relation) bool {
	for _, own := range s.rels {
		if own == r {
			return true
		}
	}
	return false
}

// narrowWhere marks columns asserted non-null by a top-level conjunct.
// Conjuncts that are disjunctions never narrow.
func (s *scope) narrowWhere(where expr) {
	for _, conj := range conjuncts(where) {
		if x := notNullOperand(conj); x != nil {
			s.narrowColumn(x)
		}
	}
}

func notNullOperand(x expr) expr {
	switch n := x.(type) {
	case *nullTestExpr:
		if n.not {
			return n.x
		}
	case *binaryExpr:
		if n.op == "is not" && isNullLiteral(n.r) {
			return n.l
		}
	case *unaryExpr:
		if n.op != "not" {
			return nil
		}
		switch inner := n.x.(type) {
		case *nullTestExpr:
			if !inner.not {
				return inner.x
			}
		case *binaryExpr:
			if inner.op == "is" && isNullLiteral(inner.r) {
				return inner.l
			}
		}
	}
	return nil
}

func isNullLiteral(x expr) bool {
	lit, ok := x.(*literalExpr)
	return ok && lit.kind == litNull
}

func conjuncts(x expr) []expr {
	if x == nil {
		return nil
	}
	if b, ok := x.(*binaryExpr); ok && b.op == "and" {
		return append(conjuncts(b.l), conjuncts(b.r)...)
	}
	return []expr{x}
}

func (s *scope) expandStar(table string) ([]domain.ParsedColumn, error) {
	var columns []domain.ParsedColumn
	found := false
	for _, r := range s.rels {
		if table != "" && !r.matches(table) {
			continue
		}
		found = true
		for _, col := range r.columns {
			if r.hidden[strings.ToLower(col.Name)] {
				continue
			}
			columns = append(columns, s.columnOf(r, col).ParsedColumn)
		}
	}
	if !found {
		if table != "" {
			return nil, fmt.Errorf("unknown table %s", table)
		}
		return nil, fmt.Errorf("select * without a from clause")
	}
	return columns, nil
}

// infer derives the type of an expression.
func (s *scope) infer(x expr) (Operand, error) {
	switch n := x.(type) {
	case *literalExpr:
		return literalType(n), nil
	case *paramExpr:
		return Operand{ParsedColumn: domain.ParsedColumn{Type: domain.TypeAny, Nullable: true}}, nil
	case *columnExpr:
		t, _, err := s.resolve(n.table, n.name)
		return t, err
	case *funcExpr:
		return s.inferCall(n)
	case *castExpr:
		inner, err := s.infer(n.x)
		if err != nil {
			return Operand{}, err
		}
		return value(castType(n.typeName), inner.Nullable), nil
	case *unaryExpr:
		inner, err := s.infer(n.x)
		if err != nil {
			return Operand{}, err
		}
		switch n.op {
		case "not":
			return value(domain.TypeBoolean, inner.Nullable), nil
		case "~":
			return value(domain.TypeInteger, inner.Nullable), nil
		}
		if inner.Type != domain.TypeReal {
			return value(domain.TypeInteger, inner.Nullable), nil
		}
		return value(domain.TypeReal, inner.Nullable), nil
	case *binaryExpr:
		return s.inferBinary(n)
	case *inExpr:
		if n.query != nil {
			if _, err := s.selectColumns(n.query); err != nil {
				return Operand{}, err
			}
		}
		t, err := s.infer(n.x)
		if err != nil {
			return Operand{}, err
		}
		return value(domain.TypeBoolean, t.Nullable), nil
	case *betweenExpr:
		branches, err := s.inferAll([]expr{n.x, n.lo, n.hi})
		if err != nil {
			return Operand{}, err
		}
		return value(domain.TypeBoolean, anyNullable(branches)), nil
	case *nullTestExpr:
		if _, err := s.infer(n.x); err != nil {
			return Operand{}, err
		}
		return value(domain.TypeBoolean, false), nil
	case *existsExpr:
		if _, err := s.selectColumns(n.query); err != nil {
			return Operand{}, err
		}
		return value(domain.TypeBoolean, false), nil
	case *subqueryExpr:
		return s.inferSubquery(n.query)
	case *caseExpr:
		return s.inferCase(n)
	case *tupleExpr:
		return value(domain.TypeAny, true), nil
	case *collateExpr:
		return s.infer(n.x)
	}
	return Operand{}, fmt.Errorf("unsupported expression %T", x)
}

func value(t domain.ColumnType, nullable bool) Operand {
	return Operand{ParsedColumn: domain.ParsedColumn{Type: t, Nullable: nullable}}
}

func literalType(lit *literalExpr) Operand {
	switch lit.kind {
	case litInteger:
		return value(domain.TypeInteger, false)
	case litReal:
		return value(domain.TypeReal, false)
	case litText:
		return value(domain.TypeText, false)
	case litBlob:
		return value(domain.TypeBlob, false)
	case litBool:
		return value(domain.TypeBoolean, false)
	case litTime:
		if lit.text == "current_timestamp" || lit.text == "current_date" {
			return value(domain.TypeDate, false)
		}
		return value(domain.TypeText, false)
	}
	t := value(domain.TypeAny, true)
	t.Null = true
	return t
}

func castType(name string) domain.ColumnType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none":
		return domain.TypeBlob
	case "numeric":
		return domain.TypeInteger
	}
	return domain.TypeFromDeclared(name)
}

func (s *scope) inferAll(xs []expr) ([]Operand, error) {
	out := make([]Operand, 0, len(xs))
	for _, x := range xs {
		t, err := s.infer(x)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func anyNullable(ts []Operand) bool {
	for _, t := range ts {
		if t.Nullable {
			return true
		}
	}
	return false
}

func allNullable(ts []Operand) bool {
	for _, t := range ts {
		if !t.Nullable {
			return false
		}
	}
	return true
}

// commonType returns the type shared by every non-null branch, or any.
func commonType(ts []Operand) Operand {
	var out Operand
	set := false
	for _, t := range ts {
		if t.Null {
			continue
		}
		if !set {
			out = Operand{ParsedColumn: domain.ParsedColumn{Type: t.Type, Structured: t.Structured}}
			set = true
			continue
		}
		if t.Type != out.Type {
			return value(domain.TypeAny, false)
		}
		if out.Structured == nil {
			out.Structured = t.Structured
		}
	}
	if !set {
		return value(domain.TypeAny, true)
	}
	return out
}

func (s *scope) inferBinary(b *binaryExpr) (Operand, error) {
	l, err := s.infer(b.l)
	if err != nil {
		return Operand{}, err
	}
	r, err := s.infer(b.r)
	if err != nil {
		return Operand{}, err
	}
	nullable := l.Nullable || r.Nullable
	switch b.op {
	case "and", "or", "=", "!=", "<", "<=", ">", ">=", "like", "glob", "regexp", "match":
		return value(domain.TypeBoolean, nullable), nil
	case "is", "is not":
		return value(domain.TypeBoolean, false), nil
	case "+", "-", "*", "/", "%":
		if l.Type == domain.TypeReal || r.Type == domain.TypeReal {
			return value(domain.TypeReal, nullable), nil
		}
		return value(domain.TypeInteger, nullable), nil
	case "||":
		return value(domain.TypeText, nullable), nil
	case "&", "|", "<<", ">>":
		return value(domain.TypeInteger, nullable), nil
	case "->":
		t := value(domain.TypeJSON, true)
		if field := jsonField(l.Structured, b.r); field != nil {
			t.Structured = field
		}
		return t, nil
	case "->>":
		t := value(domain.TypeAny, true)
		if field := jsonField(l.Structured, b.r); field != nil && field.Kind == domain.StructScalar {
			t.Type = field.Type
		}
		return t, nil
	}
	return Operand{}, fmt.Errorf("unsupported operator %s", b.op)
}

// jsonField follows a literal path like '$.a' or 'a' into an object type.
func jsonField(st *domain.StructuredType, path expr) *domain.StructuredType {
	lit, ok := path.(*literalExpr)
	if st == nil || !ok || lit.kind != litText {
		return nil
	}
	key := strings.TrimPrefix(strings.TrimPrefix(lit.text, "$"), ".")
	for _, part := range strings.Split(key, ".") {
		st = st.Field(part)
		if st == nil {
			return nil
		}
	}
	return st
}

func (s *scope) inferCase(c *caseExpr) (Operand, error) {
	if c.operand != nil {
		if _, err := s.infer(c.operand); err != nil {
			return Operand{}, err
		}
	}
	var branches []Operand
	for _, w := range c.whens {
		if _, err := s.infer(w.cond); err != nil {
			return Operand{}, err
		}
		t, err := s.infer(w.result)
		if err != nil {
			return Operand{}, err
		}
		branches = append(branches, t)
	}
	if c.orElse != nil {
		t, err := s.infer(c.orElse)
		if err != nil {
			return Operand{}, err
		}
		branches = append(branches, t)
	}
	t := commonType(branches)
	t.Nullable = c.orElse == nil || anyNullable(branches)
	return t, nil
}

// inferSubquery types a scalar subquery by its first column. It is
// nullable unless it is an ungrouped aggregate, which always yields a row.
func (s *scope) inferSubquery(sel *selectStmt) (Operand, error) {
	cols, err := s.selectColumns(sel)
	if err != nil {
		return Operand{}, err
	}
	if len(cols) == 0 {
		return Operand{}, fmt.Errorf("subquery returns no columns")
	}
	t := Operand{ParsedColumn: cols[0]}
	t.PrimaryKey = false
	t.Name = ""
	singleRow := len(sel.groupBy) == 0 && len(sel.columns) > 0 && isAggregateCall(sel.columns[0].x)
	if !singleRow {
		t.Nullable = true
	}
	return t, nil
}

func isAggregateCall(x expr) bool {
	fn, ok := x.(*funcExpr)
	return ok && IsAggregate(fn.name) && !fn.window
}

func (s *scope) inferCall(fn *funcExpr) (Operand, error) {
	args, err := s.inferAll(fn.args)
	if err != nil {
		return Operand{}, err
	}
	call := Call{Name: fn.name, Args: args, Ordered: fn.ordered, Window: fn.window, Grouped: s.grouped}
	if fn.name == "json_object" || fn.name == "jsonb_object" {
		call.Keys = make([]string, 0, len(fn.args)/2)
		for i := 0; i+1 < len(fn.args); i += 2 {
			lit, ok := fn.args[i].(*literalExpr)
			if !ok || lit.kind != litText {
				call.Keys = nil
				break
			}
			call.Keys = append(call.Keys, lit.text)
		}
	}
	return CallType(call)
}

// Call describes a function application for typing.
type Call struct {
	Name string
	Args []Operand
	// Keys holds the json_object keys, nil when any key is dynamic.
	Keys []string
	// Ordered is set when an aggregate has its own order by.
	Ordered bool
	Window  bool
	Grouped bool
}

// CallType returns the result type of a function call. Unknown functions
// are typed any and nullable.
func CallType(call Call) (Operand, error) {
	args := call.Args
	def, known := functions[call.Name]
	var t Operand
	if !known {
		t = value(domain.TypeAny, true)
		t.FunctionName = call.Name
		return t, nil
	}

	switch call.Name {
	case "json_object", "jsonb_object":
		t = value(domain.TypeJSON, false)
		if call.Keys != nil {
			t.Structured = objectType(call.Keys, args)
		}
	case "json_array", "jsonb_array":
		t = value(domain.TypeJSON, false)
		t.Structured = arrayType(args)
	case "json_group_array", "jsonb_group_array":
		t = value(domain.TypeJSON, false)
		if len(args) == 1 {
			elem := elemType(args[0])
			t.Structured = &domain.StructuredType{
				Kind:     domain.StructArray,
				Type:     domain.TypeJSON,
				Elem:     elem,
				Optional: args[0].Optional,
				Sorted:   args[0].Column && elem.Kind == domain.StructScalar && !call.Ordered,
			}
		}
	case "json_group_object":
		t = value(domain.TypeJSON, false)
		if len(args) == 2 {
			t.Structured = &domain.StructuredType{Kind: domain.StructMap, Type: domain.TypeJSON, Elem: elemType(args[1])}
		}
	case "json", "jsonb":
		t = value(domain.TypeJSON, anyNullable(args))
		if len(args) == 1 {
			t.Structured = args[0].Structured
		}
	case "coalesce", "ifnull":
		t = commonType(args)
		t.Nullable = len(args) == 0 || allNullable(args)
	case "iif", "if":
		if len(args) < 2 {
			return Operand{}, fmt.Errorf("%s requires at least two arguments", call.Name)
		}
		t = commonType(args[1:])
		t.Nullable = len(args) == 2 || anyNullable(args[1:])
	case "min", "max":
		if len(args) > 1 {
			t = commonType(args)
			t.Nullable = anyNullable(args)
			break
		}
		t = commonType(args)
		t.Nullable = len(args) == 0 || args[0].Nullable || (!call.Grouped && !call.Window)
	case "sum":
		t = numericType(args)
		t.Nullable = true
	default:
		t = byDefinition(def, call)
	}
	t.FunctionName = call.Name
	return t, nil
}

func byDefinition(def function, call Call) Operand {
	args := call.Args
	var t Operand
	switch def.kind {
	case fixed:
		t = value(def.typ, true)
	case firstArg:
		if len(args) > 0 {
			t = Operand{ParsedColumn: domain.ParsedColumn{Type: args[0].Type, Structured: args[0].Structured}}
		} else {
			t = value(domain.TypeAny, true)
		}
	case numericArgs:
		t = numericType(args)
	case commonArgs:
		t = commonType(args)
	}
	switch {
	case def.notNull:
		t.Nullable = false
	case def.aggregate && !call.Window:
		t.Nullable = anyNullable(args) || !call.Grouped
	case def.nullOnNull:
		t.Nullable = anyNullable(args)
	default:
		t.Nullable = true
	}
	if def.json && t.Type == domain.TypeAny {
		t.Type = domain.TypeJSON
	}
	return t
}

func numericType(args []Operand) Operand {
	for _, a := range args {
		if a.Type == domain.TypeReal {
			return value(domain.TypeReal, false)
		}
	}
	return value(domain.TypeInteger, false)
}

// elemType is the structured type of a value embedded in JSON.
func elemType(t Operand) *domain.StructuredType {
	if t.Structured != nil {
		return t.Structured
	}
	st := domain.Scalar(t.Type, t.Nullable)
	st.Optional = t.Optional
	return st
}

func objectType(keys []string, args []Operand) *domain.StructuredType {
	st := &domain.StructuredType{Kind: domain.StructObject, Type: domain.TypeJSON}
	for i, key := range keys {
		if 2*i+1 >= len(args) {
			break
		}
		v := args[2*i+1]
		st.Fields = append(st.Fields, domain.StructuredField{Name: key, Type: elemType(v)})
		if v.Optional {
			st.Optional = true
		}
	}
	return st
}

func arrayType(args []Operand) *domain.StructuredType {
	st := &domain.StructuredType{Kind: domain.StructArray, Type: domain.TypeJSON}
	if len(args) == 0 {
		st.Elem = domain.Scalar(domain.TypeAny, true)
		return st
	}
	common := commonType(args)
	if common.Type == domain.TypeAny || common.Structured != nil {
		st.Elem = domain.Scalar(domain.TypeAny, true)
		if common.Structured != nil {
			st.Elem = common.Structured
		}
		return st
	}
	st.Elem = domain.Scalar(common.Type, anyNullable(args))
	return st
}
