package scan

import "fmt"

// Cursor walks a token slice produced by Tokenize.
type Cursor struct {
	src    string
	tokens []Token
	pos    int
}

// NewCursor tokenizes src and returns a cursor at the first token.
func NewCursor(src string) (*Cursor, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return &Cursor{src: src, tokens: tokens}, nil
}

// Source returns the text the cursor was built from.
func (c *Cursor) Source() string {
	return c.src
}

// Pos returns the index of the current token.
func (c *Cursor) Pos() int {
	return c.pos
}

// Seek moves the cursor to a token index.
func (c *Cursor) Seek(pos int) {
	c.pos = pos
}

// Peek returns the token n positions ahead without consuming it.
func (c *Cursor) Peek(n int) Token {
	i := c.pos + n
	if i >= len(c.tokens) {
		return c.tokens[len(c.tokens)-1]
	}
	return c.tokens[i]
}

// Current returns the current token.
func (c *Cursor) Current() Token {
	return c.Peek(0)
}

// Next consumes and returns the current token.
func (c *Cursor) Next() Token {
	t := c.Current()
	if t.Kind != EOF {
		c.pos++
	}
	return t
}

// Done reports whether every token has been consumed.
func (c *Cursor) Done() bool {
	return c.Current().Kind == EOF
}

// Accept consumes the given sequence of bare words if all of them match.
func (c *Cursor) Accept(words ...string) bool {
	for i, w := range words {
		if !c.Peek(i).Is(w) {
			return false
		}
	}
	c.pos += len(words)
	return true
}

// AcceptPunct consumes p if it is the current token.
func (c *Cursor) AcceptPunct(p string) bool {
	if c.Current().IsPunct(p) {
		c.pos++
		return true
	}
	return false
}

// Expect consumes the given words or returns an error.
func (c *Cursor) Expect(words ...string) error {
	if !c.Accept(words...) {
		return c.Errorf("expected %q", joinWords(words))
	}
	return nil
}

// ExpectPunct consumes p or returns an error.
func (c *Cursor) ExpectPunct(p string) error {
	if !c.AcceptPunct(p) {
		return c.Errorf("expected %q", p)
	}
	return nil
}

// ExpectName consumes an identifier and returns its unquoted name.
func (c *Cursor) ExpectName() (string, error) {
	t := c.Current()
	if !t.IsName() {
		return "", c.Errorf("expected a name")
	}
	c.pos++
	return t.Name(), nil
}

// SkipGroup consumes a balanced parenthesized group starting at the
// current "(" token and returns the token index just inside it.
func (c *Cursor) SkipGroup() (int, error) {
	if !c.Current().IsPunct("(") {
		return 0, c.Errorf("expected \"(\"")
	}
	c.pos++
	inner := c.pos
	depth := 1
	for depth > 0 {
		t := c.Next()
		switch {
		case t.Kind == EOF:
			return 0, c.Errorf("unbalanced parentheses")
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		}
	}
	return inner, nil
}

// Text returns the source text spanned by tokens [from, to).
func (c *Cursor) Text(from, to int) string {
	if from >= to || from >= len(c.tokens) {
		return ""
	}
	if to > len(c.tokens) {
		to = len(c.tokens)
	}
	return c.src[c.tokens[from].Offset:c.tokens[to-1].End]
}

// Token returns the token at index i.
func (c *Cursor) Token(i int) Token {
	if i >= len(c.tokens) {
		return c.tokens[len(c.tokens)-1]
	}
	return c.tokens[i]
}

// Errorf builds a SyntaxError at the current token.
func (c *Cursor) Errorf(format string, args ...any) error {
	t := c.Current()
	near := t.Text
	if t.Kind == EOF {
		near = t.Kind.String()
	}
	return &SyntaxError{
		Offset: t.Offset,
		Near:   near,
		Msg:    fmt.Sprintf(format, args...),
	}
}

// SyntaxError reports input outside the supported grammar.
type SyntaxError struct {
	Offset int
	Near   string
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s near %q at offset %d", e.Msg, e.Near, e.Offset)
}

func joinWords(words []string) string {
	s := ""
	for i, w := range words {
		if i > 0 {
			s += " "
		}
		s += w
	}
	return s
}
