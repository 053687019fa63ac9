package sqltext

import (
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/sqltext/scan"
)

// parser is a recursive-descent parser over the supported statement grammar.
type parser struct {
	c      *scan.Cursor
	params []string
	seen   map[string]bool
}

// reserved words never taken as an implicit alias.
var reserved = map[string]bool{
	"from": true, "where": true, "group": true, "having": true, "order": true,
	"limit": true, "offset": true, "union": true, "intersect": true, "except": true,
	"window": true, "returning": true, "join": true, "left": true, "right": true,
	"full": true, "inner": true, "cross": true, "natural": true, "outer": true,
	"on": true, "using": true, "set": true, "indexed": true, "not": true,
	"values": true, "select": true, "and": true, "or": true, "as": true,
	"when": true, "then": true, "else": true, "end": true, "is": true,
	"in": true, "like": true, "glob": true, "regexp": true, "match": true,
	"between": true, "escape": true, "collate": true, "do": true, "default": true,
}

func parse(sql string) (*statement, error) {
	c, err := scan.NewCursor(sql)
	if err != nil {
		return nil, err
	}
	p := &parser{c: c, seen: make(map[string]bool)}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.c.AcceptPunct(";")
	if !p.c.Done() {
		return nil, p.c.Errorf("unexpected input after statement")
	}
	stmt.params = p.params
	return stmt, nil
}

func (p *parser) parseStatement() (*statement, error) {
	stmt := &statement{}
	if p.c.Current().Is("with") {
		ctes, err := p.parseWith()
		if err != nil {
			return nil, err
		}
		stmt.with = ctes
	}
	t := p.c.Current()
	switch {
	case t.Is("select", "values"):
		sel, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		stmt.kind = KindSelect
		stmt.sel = sel
	case t.Is("insert", "replace"):
		w, err := p.parseInsert()
		if err != nil {
			return nil, err
		}
		stmt.kind, stmt.write = KindInsert, w
	case t.Is("update"):
		w, err := p.parseUpdate()
		if err != nil {
			return nil, err
		}
		stmt.kind, stmt.write = KindUpdate, w
	case t.Is("delete"):
		w, err := p.parseDelete()
		if err != nil {
			return nil, err
		}
		stmt.kind, stmt.write = KindDelete, w
	case t.Is("pragma") && stmt.with == nil:
		pr, err := p.parsePragma()
		if err != nil {
			return nil, err
		}
		stmt.kind, stmt.pragma = KindPragma, pr
	default:
		return nil, p.c.Errorf("unsupported statement")
	}
	return stmt, nil
}

func (p *parser) parseWith() ([]*cte, error) {
	p.c.Next()
	p.c.Accept("recursive")
	var ctes []*cte
	for {
		name, err := p.c.ExpectName()
		if err != nil {
			return nil, err
		}
		item := &cte{name: name}
		if p.c.Current().IsPunct("(") {
			if item.columns, err = p.nameList(); err != nil {
				return nil, err
			}
		}
		if err := p.c.Expect("as"); err != nil {
			return nil, err
		}
		p.c.Accept("not")
		p.c.Accept("materialized")
		if err := p.c.ExpectPunct("("); err != nil {
			return nil, err
		}
		if item.body, err = p.parseSelect(); err != nil {
			return nil, err
		}
		if err := p.c.ExpectPunct(")"); err != nil {
			return nil, err
		}
		ctes = append(ctes, item)
		if !p.c.AcceptPunct(",") {
			return ctes, nil
		}
	}
}

func (p *parser) nameList() ([]string, error) {
	if err := p.c.ExpectPunct("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := p.c.ExpectName()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p.c.AcceptPunct(")") {
			return names, nil
		}
		if err := p.c.ExpectPunct(","); err != nil {
			return nil, err
		}
	}
}

// parseSelect parses one select core. Anything from a top-level compound
// operator onwards is skipped: only the first branch is typed.
func (p *parser) parseSelect() (*selectStmt, error) {
	sel := &selectStmt{}
	if p.c.Current().Is("with") {
		ctes, err := p.parseWith()
		if err != nil {
			return nil, err
		}
		sel.with = ctes
	}
	if p.c.Accept("values") {
		if err := p.parseValues(sel); err != nil {
			return nil, err
		}
		return sel, p.skipTail(sel)
	}
	if err := p.c.Expect("select"); err != nil {
		return nil, err
	}
	if !p.c.Accept("distinct") {
		p.c.Accept("all")
	}

	for {
		col, err := p.parseResultColumn()
		if err != nil {
			return nil, err
		}
		sel.columns = append(sel.columns, col)
		if !p.c.AcceptPunct(",") {
			break
		}
	}

	if p.c.Accept("from") {
		from, err := p.parseFrom()
		if err != nil {
			return nil, err
		}
		sel.from = from
	}
	if p.c.Accept("where") {
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.where = where
	}
	if p.c.Accept("group", "by") {
		for {
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.groupBy = append(sel.groupBy, x)
			if !p.c.AcceptPunct(",") {
				break
			}
		}
		if p.c.Accept("having") {
			having, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.having = having
		}
	}
	return sel, p.skipTail(sel)
}

func (p *parser) parseValues(sel *selectStmt) error {
	for {
		if err := p.c.ExpectPunct("("); err != nil {
			return err
		}
		var row []expr
		for {
			x, err := p.parseExpr()
			if err != nil {
				return err
			}
			row = append(row, x)
			if p.c.AcceptPunct(")") {
				break
			}
			if err := p.c.ExpectPunct(","); err != nil {
				return err
			}
		}
		sel.values = append(sel.values, row)
		if !p.c.AcceptPunct(",") {
			return nil
		}
	}
}

// skipTail consumes window definitions, compound branches, order by and
// limit clauses up to the end of the enclosing select.
func (p *parser) skipTail(sel *selectStmt) error {
	depth := 0
	for {
		t := p.c.Current()
		switch {
		case t.Kind == scan.EOF:
			return nil
		case t.IsPunct(";") && depth == 0:
			return nil
		case t.IsPunct(")") && depth == 0:
			return nil
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth == 0 && t.Is("union", "intersect", "except"):
			sel.compound = true
		case t.Kind == scan.Param:
			p.addParam(t)
		}
		p.c.Next()
	}
}

func (p *parser) addParam(t scan.Token) {
	name := t.Text
	if name == "?" || p.seen[name] {
		if name == "?" {
			p.params = append(p.params, name)
		}
		return
	}
	p.seen[name] = true
	p.params = append(p.params, name)
}

func (p *parser) parseResultColumn() (*resultColumn, error) {
	start := p.c.Pos()
	if p.c.AcceptPunct("*") {
		return &resultColumn{star: true, text: "*"}, nil
	}
	if p.c.Current().IsName() && p.c.Peek(1).IsPunct(".") && p.c.Peek(2).IsPunct("*") {
		table := p.c.Next().Name()
		p.c.Next()
		p.c.Next()
		return &resultColumn{star: true, starTable: table, text: p.c.Text(start, p.c.Pos())}, nil
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	col := &resultColumn{x: x, text: p.c.Text(start, p.c.Pos())}
	alias, err := p.parseAlias()
	if err != nil {
		return nil, err
	}
	col.alias = alias
	return col, nil
}

// parseAlias parses "[as] name" where the bare form must not be a
// reserved word.
func (p *parser) parseAlias() (string, error) {
	if p.c.Accept("as") {
		t := p.c.Next()
		if !t.IsName() && t.Kind != scan.String {
			return "", p.c.Errorf("expected an alias")
		}
		return t.Name(), nil
	}
	t := p.c.Current()
	if (t.Kind == scan.Ident && !reserved[t.Lower]) || t.Kind == scan.Quoted {
		p.c.Next()
		return t.Name(), nil
	}
	return "", nil
}

func (p *parser) parseFrom() ([]*fromItem, error) {
	var items []*fromItem
	kind := joinFirst
	for {
		item, err := p.parseFromItem()
		if err != nil {
			return nil, err
		}
		item.join = kind
		if kind != joinFirst {
			if p.c.Accept("on") {
				if item.on, err = p.parseExpr(); err != nil {
					return nil, err
				}
			} else if p.c.Accept("using") {
				if item.using, err = p.nameList(); err != nil {
					return nil, err
				}
			}
		}
		items = append(items, item)

		next, ok := p.parseJoinOperator()
		if !ok {
			return items, nil
		}
		kind = next
	}
}

func (p *parser) parseJoinOperator() (joinKind, bool) {
	if p.c.AcceptPunct(",") {
		return joinInner, true
	}
	p.c.Accept("natural")
	switch {
	case p.c.Accept("join"):
		return joinInner, true
	case p.c.Accept("inner", "join"):
		return joinInner, true
	case p.c.Accept("cross", "join"):
		return joinCross, true
	case p.c.Accept("left", "outer", "join"), p.c.Accept("left", "join"):
		return joinLeft, true
	case p.c.Accept("right", "outer", "join"), p.c.Accept("right", "join"):
		return joinRight, true
	case p.c.Accept("full", "outer", "join"), p.c.Accept("full", "join"):
		return joinFull, true
	}
	return joinFirst, false
}

func (p *parser) parseFromItem() (*fromItem, error) {
	item := &fromItem{}
	if p.c.AcceptPunct("(") {
		if !p.c.Current().Is("select", "with", "values") {
			return nil, p.c.Errorf("parenthesized joins are not supported")
		}
		sub, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		if err := p.c.ExpectPunct(")"); err != nil {
			return nil, err
		}
		item.sub = sub
	} else {
		name, err := p.c.ExpectName()
		if err != nil {
			return nil, err
		}
		if p.c.AcceptPunct(".") {
			if name, err = p.c.ExpectName(); err != nil {
				return nil, err
			}
		}
		item.name = name
		if p.c.Current().IsPunct("(") {
			fn, err := p.parseCall(name)
			if err != nil {
				return nil, err
			}
			item.fn = fn
		}
	}
	alias, err := p.parseAlias()
	if err != nil {
		return nil, err
	}
	item.alias = alias
	if p.c.Accept("indexed", "by") {
		p.c.Next()
	}
	p.c.Accept("not", "indexed")
	return item, nil
}

// skipTo consumes tokens up to a top-level occurrence of word and reports
// whether it was found. Parameters seen on the way are recorded.
func (p *parser) skipTo(word string) bool {
	depth := 0
	for {
		t := p.c.Current()
		switch {
		case t.Kind == scan.EOF:
			return false
		case t.IsPunct(";") && depth == 0:
			return false
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case depth == 0 && t.Is(word):
			p.c.Next()
			return true
		case t.Kind == scan.Param:
			p.addParam(t)
		}
		p.c.Next()
	}
}

func (p *parser) parseReturning(w *writeStmt) error {
	if !p.skipTo("returning") {
		return nil
	}
	for {
		col, err := p.parseResultColumn()
		if err != nil {
			return err
		}
		w.returning = append(w.returning, col)
		if !p.c.AcceptPunct(",") {
			return nil
		}
	}
}

func (p *parser) parseTarget(w *writeStmt) error {
	name, err := p.c.ExpectName()
	if err != nil {
		return err
	}
	if p.c.AcceptPunct(".") {
		if name, err = p.c.ExpectName(); err != nil {
			return err
		}
	}
	w.table = name
	if p.c.Accept("as") {
		if w.alias, err = p.c.ExpectName(); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseInsert() (*writeStmt, error) {
	w := &writeStmt{kind: KindInsert}
	p.c.Next()
	if p.c.Accept("or") {
		p.c.Next()
	}
	if err := p.c.Expect("into"); err != nil {
		return nil, err
	}
	if err := p.parseTarget(w); err != nil {
		return nil, err
	}
	return w, p.parseReturning(w)
}

func (p *parser) parseUpdate() (*writeStmt, error) {
	w := &writeStmt{kind: KindUpdate}
	p.c.Next()
	if p.c.Accept("or") {
		p.c.Next()
	}
	if err := p.parseTarget(w); err != nil {
		return nil, err
	}
	return w, p.parseReturning(w)
}

func (p *parser) parseDelete() (*writeStmt, error) {
	w := &writeStmt{kind: KindDelete}
	p.c.Next()
	if err := p.c.Expect("from"); err != nil {
		return nil, err
	}
	if err := p.parseTarget(w); err != nil {
		return nil, err
	}
	return w, p.parseReturning(w)
}

func (p *parser) parsePragma() (*pragmaStmt, error) {
	p.c.Next()
	name, err := p.c.ExpectName()
	if err != nil {
		return nil, err
	}
	if p.c.AcceptPunct(".") {
		if name, err = p.c.ExpectName(); err != nil {
			return nil, err
		}
	}
	pr := &pragmaStmt{name: strings.ToLower(name)}
	switch {
	case p.c.AcceptPunct("("):
		pr.arg = p.c.Next().Name()
		if err := p.c.ExpectPunct(")"); err != nil {
			return nil, err
		}
	case p.c.AcceptPunct("="):
		pr.arg = p.c.Next().Name()
	}
	return pr, nil
}

// Expressions, lowest precedence first.

func (p *parser) parseExpr() (expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.c.Accept("or") {
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: "or", l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (expr, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.c.Accept("and") {
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: "and", l: l, r: r}
	}
	return l, nil
}

func (p *parser) parseNot() (expr, error) {
	if p.c.Accept("not") {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{op: "not", x: x}, nil
	}
	return p.parseEquality()
}

func (p *parser) parseEquality() (expr, error) {
	l, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		t := p.c.Current()
		switch {
		case t.IsPunct("="), t.IsPunct("=="), t.IsPunct("!="), t.IsPunct("<>"):
			p.c.Next()
			r, err := p.parseRelational()
			if err != nil {
				return nil, err
			}
			op := t.Text
			if op == "==" {
				op = "="
			}
			if op == "<>" {
				op = "!="
			}
			l = &binaryExpr{op: op, l: l, r: r}
		case t.Is("is"):
			p.c.Next()
			op := "is"
			if p.c.Accept("not") {
				op = "is not"
			}
			if p.c.Accept("distinct", "from") {
				if op == "is" {
					op = "is not"
				} else {
					op = "is"
				}
			}
			r, err := p.parseRelational()
			if err != nil {
				return nil, err
			}
			l = &binaryExpr{op: op, l: l, r: r}
		case t.Is("isnull"):
			p.c.Next()
			l = &nullTestExpr{x: l}
		case t.Is("notnull"):
			p.c.Next()
			l = &nullTestExpr{x: l, not: true}
		case t.Is("not") && p.c.Peek(1).Is("null"):
			p.c.Next()
			p.c.Next()
			l = &nullTestExpr{x: l, not: true}
		case t.Is("in") || (t.Is("not") && p.c.Peek(1).Is("in")):
			not := p.c.Accept("not")
			p.c.Next()
			in, err := p.parseIn(l, not)
			if err != nil {
				return nil, err
			}
			l = in
		case t.Is("like", "glob", "regexp", "match") || (t.Is("not") && p.c.Peek(1).Is("like", "glob", "regexp", "match")):
			not := p.c.Accept("not")
			op := p.c.Next().Lower
			r, err := p.parseRelational()
			if err != nil {
				return nil, err
			}
			if p.c.Accept("escape") {
				if _, err := p.parseRelational(); err != nil {
					return nil, err
				}
			}
			l = &binaryExpr{op: op, l: l, r: r}
			if not {
				l = &unaryExpr{op: "not", x: l}
			}
		case t.Is("between") || (t.Is("not") && p.c.Peek(1).Is("between")):
			not := p.c.Accept("not")
			p.c.Next()
			lo, err := p.parseRelational()
			if err != nil {
				return nil, err
			}
			if err := p.c.Expect("and"); err != nil {
				return nil, err
			}
			hi, err := p.parseRelational()
			if err != nil {
				return nil, err
			}
			l = &betweenExpr{x: l, lo: lo, hi: hi, not: not}
		default:
			return l, nil
		}
	}
}

func (p *parser) parseIn(x expr, not bool) (expr, error) {
	in := &inExpr{x: x, not: not}
	if !p.c.AcceptPunct("(") {
		// "x in table" or "x in json_each(...)".
		name, err := p.c.ExpectName()
		if err != nil {
			return nil, err
		}
		if p.c.Current().IsPunct("(") {
			if _, err := p.parseCall(name); err != nil {
				return nil, err
			}
		}
		return in, nil
	}
	if p.c.Current().Is("select", "with", "values") {
		q, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		in.query = q
		return in, p.c.ExpectPunct(")")
	}
	if p.c.AcceptPunct(")") {
		return in, nil
	}
	for {
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		in.list = append(in.list, item)
		if p.c.AcceptPunct(")") {
			return in, nil
		}
		if err := p.c.ExpectPunct(","); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseRelational() (expr, error) {
	return p.parseBinary(p.parseBitwise, "<", "<=", ">", ">=")
}

func (p *parser) parseBitwise() (expr, error) {
	return p.parseBinary(p.parseAdditive, "&", "|", "<<", ">>")
}

func (p *parser) parseAdditive() (expr, error) {
	return p.parseBinary(p.parseMultiplicative, "+", "-")
}

func (p *parser) parseMultiplicative() (expr, error) {
	return p.parseBinary(p.parseConcat, "*", "/", "%")
}

func (p *parser) parseConcat() (expr, error) {
	return p.parseBinary(p.parseUnary, "||", "->", "->>")
}

func (p *parser) parseBinary(next func() (expr, error), ops ...string) (expr, error) {
	l, err := next()
	if err != nil {
		return nil, err
	}
	for {
		t := p.c.Current()
		matched := ""
		for _, op := range ops {
			if t.Kind == scan.Operator && t.Text == op {
				matched = op
				break
			}
		}
		if matched == "" {
			return l, nil
		}
		p.c.Next()
		r, err := next()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{op: matched, l: l, r: r}
	}
}

func (p *parser) parseUnary() (expr, error) {
	t := p.c.Current()
	if t.Kind == scan.Operator && (t.Text == "-" || t.Text == "+" || t.Text == "~") {
		p.c.Next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if lit, ok := x.(*literalExpr); ok && t.Text != "~" && (lit.kind == litInteger || lit.kind == litReal) {
			if t.Text == "-" {
				lit.text = "-" + lit.text
			}
			return lit, nil
		}
		return &unaryExpr{op: t.Text, x: x}, nil
	}
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.c.Accept("collate") {
		if _, err := p.c.ExpectName(); err != nil {
			return nil, err
		}
		x = &collateExpr{x: x}
	}
	return x, nil
}

func (p *parser) parsePrimary() (expr, error) {
	t := p.c.Current()
	switch t.Kind {
	case scan.Number:
		p.c.Next()
		kind := litInteger
		if strings.ContainsAny(t.Text, ".eE") && !strings.HasPrefix(t.Lower, "0x") {
			kind = litReal
		}
		return &literalExpr{kind: kind, text: t.Text}, nil
	case scan.String:
		p.c.Next()
		return &literalExpr{kind: litText, text: t.Name()}, nil
	case scan.Blob:
		p.c.Next()
		return &literalExpr{kind: litBlob, text: t.Text}, nil
	case scan.Param:
		p.c.Next()
		p.addParam(t)
		return &paramExpr{name: t.Text}, nil
	case scan.Punct:
		if t.IsPunct("(") {
			return p.parseParen()
		}
	case scan.Quoted:
		return p.parseName()
	case scan.Ident:
		switch {
		case t.Is("null"):
			p.c.Next()
			return &literalExpr{kind: litNull, text: "null"}, nil
		case t.Is("true", "false"):
			p.c.Next()
			return &literalExpr{kind: litBool, text: t.Lower}, nil
		case t.Is("current_time", "current_date", "current_timestamp"):
			p.c.Next()
			return &literalExpr{kind: litTime, text: t.Lower}, nil
		case t.Is("exists"):
			p.c.Next()
			if err := p.c.ExpectPunct("("); err != nil {
				return nil, err
			}
			q, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			return &existsExpr{query: q}, p.c.ExpectPunct(")")
		case t.Is("case"):
			return p.parseCase()
		case t.Is("cast"):
			return p.parseCast()
		case t.Is("raise"):
			p.c.Next()
			if err := p.skipGroup(); err != nil {
				return nil, err
			}
			return &literalExpr{kind: litNull, text: "null"}, nil
		case reserved[t.Lower] && !p.c.Peek(1).IsPunct("("):
			return nil, p.c.Errorf("unexpected keyword")
		}
		return p.parseName()
	}
	return nil, p.c.Errorf("unexpected %s", t.Kind)
}

func (p *parser) parseParen() (expr, error) {
	p.c.Next()
	if p.c.Current().Is("select", "with", "values") {
		q, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		return &subqueryExpr{query: q}, p.c.ExpectPunct(")")
	}
	var items []expr
	for {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, x)
		if p.c.AcceptPunct(")") {
			break
		}
		if err := p.c.ExpectPunct(","); err != nil {
			return nil, err
		}
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return &tupleExpr{items: items}, nil
}

func (p *parser) parseName() (expr, error) {
	name := p.c.Next().Name()
	if p.c.Current().IsPunct("(") {
		return p.parseCall(name)
	}
	if p.c.AcceptPunct(".") {
		second, err := p.c.ExpectName()
		if err != nil {
			return nil, err
		}
		if p.c.AcceptPunct(".") {
			third, err := p.c.ExpectName()
			if err != nil {
				return nil, err
			}
			return &columnExpr{table: second, name: third}, nil
		}
		return &columnExpr{table: name, name: second}, nil
	}
	return &columnExpr{name: name}, nil
}

func (p *parser) parseCall(name string) (*funcExpr, error) {
	fn := &funcExpr{name: strings.ToLower(name)}
	if err := p.c.ExpectPunct("("); err != nil {
		return nil, err
	}
	switch {
	case p.c.AcceptPunct("*"):
		fn.star = true
		if err := p.c.ExpectPunct(")"); err != nil {
			return nil, err
		}
	case p.c.AcceptPunct(")"):
	default:
		fn.distinct = p.c.Accept("distinct")
		for {
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fn.args = append(fn.args, x)
			if p.c.Current().Is("order") {
				// json_group_array(x order by y)
				fn.ordered = true
				if !p.skipToPunct(")") {
					return nil, p.c.Errorf("unterminated function call")
				}
				break
			}
			if p.c.AcceptPunct(")") {
				break
			}
			if err := p.c.ExpectPunct(","); err != nil {
				return nil, err
			}
		}
	}
	if p.c.Accept("filter") {
		if err := p.skipGroup(); err != nil {
			return nil, err
		}
	}
	if p.c.Accept("over") {
		fn.window = true
		if p.c.Current().IsPunct("(") {
			if err := p.skipGroup(); err != nil {
				return nil, err
			}
		} else if _, err := p.c.ExpectName(); err != nil {
			return nil, err
		}
	}
	return fn, nil
}

// skipGroup consumes a parenthesized group that is not typed, keeping the
// parameters inside it.
func (p *parser) skipGroup() error {
	inner, err := p.c.SkipGroup()
	if err != nil {
		return err
	}
	for i := inner; i < p.c.Pos()-1; i++ {
		if t := p.c.Token(i); t.Kind == scan.Param {
			p.addParam(t)
		}
	}
	return nil
}

// skipToPunct consumes tokens through the closing punct at depth zero.
func (p *parser) skipToPunct(punct string) bool {
	depth := 0
	for {
		t := p.c.Next()
		switch {
		case t.Kind == scan.EOF:
			return false
		case t.Kind == scan.Param:
			p.addParam(t)
		case t.IsPunct("("):
			depth++
		case t.IsPunct(punct) && depth == 0:
			return true
		case t.IsPunct(")"):
			depth--
		}
	}
}

func (p *parser) parseCase() (expr, error) {
	p.c.Next()
	c := &caseExpr{}
	if !p.c.Current().Is("when") {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.operand = operand
	}
	for p.c.Accept("when") {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.c.Expect("then"); err != nil {
			return nil, err
		}
		result, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.whens = append(c.whens, whenClause{cond: cond, result: result})
	}
	if len(c.whens) == 0 {
		return nil, p.c.Errorf("case without when")
	}
	if p.c.Accept("else") {
		orElse, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.orElse = orElse
	}
	return c, p.c.Expect("end")
}

func (p *parser) parseCast() (expr, error) {
	p.c.Next()
	if err := p.c.ExpectPunct("("); err != nil {
		return nil, err
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.c.Expect("as"); err != nil {
		return nil, err
	}
	start := p.c.Pos()
	for !p.c.Current().IsPunct(")") {
		if p.c.Done() {
			return nil, p.c.Errorf("unterminated cast")
		}
		if p.c.Current().IsPunct("(") {
			if _, err := p.c.SkipGroup(); err != nil {
				return nil, err
			}
			continue
		}
		p.c.Next()
	}
	typeName := p.c.Text(start, p.c.Pos())
	p.c.Next()
	return &castExpr{x: x, typeName: typeName}, nil
}
