// Package scan tokenizes SQLite statement text.
package scan

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// SQLLexer defines the token types of the supported SQLite grammar.
// Rules are tried in order, so comments and literals win over operators.
var SQLLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*|/\*(?s:.*?)\*/`},
	{Name: "Whitespace", Pattern: `\s+`},

	// Literals
	{Name: "Blob", Pattern: `[xX]'[0-9a-fA-F]*'`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Quoted", Pattern: "\"(?:[^\"]|\"\")*\"|`[^`]*`|\\[[^\\]]*\\]"},
	{Name: "Number", Pattern: `0[xX][0-9a-fA-F]+|(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?`},
	{Name: "Param", Pattern: `\?\d*|[:@$][A-Za-z_][A-Za-z0-9_]*`},

	{Name: "Ident", Pattern: `[A-Za-z_\x{80}-\x{10FFFF}][A-Za-z0-9_$\x{80}-\x{10FFFF}]*`},

	{Name: "Operator", Pattern: `->>|->|\|\||<<|>>|<=|>=|==|!=|<>|[-+*/%<>=&|~]`},
	{Name: "Punct", Pattern: `[(),.;]`},
})

// Kind classifies a token.
type Kind int

const (
	// EOF terminates every token slice.
	EOF Kind = iota
	// Ident is a bare word, keyword or identifier.
	Ident
	// Quoted is a quoted identifier.
	Quoted
	// String is a single-quoted literal.
	String
	// Blob is an x'..' literal.
	Blob
	// Number is a numeric literal.
	Number
	// Param is a bound parameter.
	Param
	// Operator is an operator.
	Operator
	// Punct is one of ( ) , . ;
	Punct
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "end of input"
	case Ident:
		return "identifier"
	case Quoted:
		return "quoted identifier"
	case String:
		return "string"
	case Blob:
		return "blob"
	case Number:
		return "number"
	case Param:
		return "parameter"
	case Operator:
		return "operator"
	case Punct:
		return "punctuation"
	}
	return "unknown"
}

// Token is a lexed token with its byte span in the source text.
type Token struct {
	Kind   Kind
	Text   string
	Lower  string
	Offset int
	End    int
}

// Is reports whether the token is the bare word w, ignoring case.
func (t Token) Is(words ...string) bool {
	if t.Kind != Ident {
		return false
	}
	for _, w := range words {
		if t.Lower == w {
			return true
		}
	}
	return false
}

// IsPunct reports whether the token is the given punctuation or operator.
func (t Token) IsPunct(p string) bool {
	return (t.Kind == Punct || t.Kind == Operator) && t.Text == p
}

// Name returns the identifier with quoting removed.
func (t Token) Name() string {
	switch t.Kind {
	case Quoted:
		s := t.Text
		if len(s) < 2 {
			return s
		}
		inner := s[1 : len(s)-1]
		if s[0] == '"' {
			return strings.ReplaceAll(inner, `""`, `"`)
		}
		return inner
	case String:
		return Unquote(t.Text)
	}
	return t.Text
}

// IsName reports whether the token can name a table, column or alias.
func (t Token) IsName() bool {
	return t.Kind == Ident || t.Kind == Quoted
}

// Unquote strips single quotes from a string literal.
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

var kinds = func() map[lexer.TokenType]Kind {
	symbols := SQLLexer.Symbols()
	return map[lexer.TokenType]Kind{
		symbols["Ident"]:    Ident,
		symbols["Quoted"]:   Quoted,
		symbols["String"]:   String,
		symbols["Blob"]:     Blob,
		symbols["Number"]:   Number,
		symbols["Param"]:    Param,
		symbols["Operator"]: Operator,
		symbols["Punct"]:    Punct,
	}
}()

// Tokenize splits sql into tokens, dropping whitespace and comments.
// The returned slice always ends with an EOF token.
func Tokenize(sql string) ([]Token, error) {
	raw, err := lex(sql)
	if err != nil {
		return nil, err
	}
	tokens := make([]Token, 0, len(raw))
	for _, r := range raw {
		kind, ok := kinds[r.Type]
		if !ok {
			continue
		}
		tokens = append(tokens, Token{
			Kind:   kind,
			Text:   r.Value,
			Lower:  strings.ToLower(r.Value),
			Offset: r.Pos.Offset,
			End:    r.Pos.Offset + len(r.Value),
		})
	}
	tokens = append(tokens, Token{Kind: EOF, Offset: len(sql), End: len(sql)})
	return tokens, nil
}

// Mask blanks out the contents of string literals and comments while
// keeping every byte offset of the original text intact.
func Mask(sql string) (string, error) {
	raw, err := lex(sql)
	if err != nil {
		return "", err
	}
	symbols := SQLLexer.Symbols()
	comment, str := symbols["Comment"], symbols["String"]
	b := []byte(sql)
	for _, r := range raw {
		start, end := r.Pos.Offset, r.Pos.Offset+len(r.Value)
		switch r.Type {
		case comment:
			blank(b, start, end)
		case str:
			blank(b, start+1, end-1)
		}
	}
	return string(b), nil
}

func blank(b []byte, start, end int) {
	for i := start; i < end; i++ {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
}

func lex(sql string) ([]lexer.Token, error) {
	l, err := SQLLexer.LexString("", sql)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize: %w", err)
	}
	tokens, err := lexer.ConsumeAll(l)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize: %w", err)
	}
	return tokens, nil
}

// Split divides a script into statements on top-level semicolons.
// Empty statements are dropped.
func Split(script string) ([]string, error) {
	tokens, err := Tokenize(script)
	if err != nil {
		return nil, err
	}
	var statements []string
	start := 0
	depth := 0
	cases := 0
	inTrigger := false
	for i, t := range tokens {
		switch {
		case t.Kind == EOF:
			if s := strings.TrimSpace(script[start:]); s != "" {
				statements = append(statements, s)
			}
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case t.Is("trigger") && i > 0:
			inTrigger = true
		case t.Is("case"):
			cases++
		case t.Is("end") && cases > 0:
			cases--
		case t.Is("end") && inTrigger:
			inTrigger = false
		case t.IsPunct(";") && depth == 0 && !inTrigger:
			if s := strings.TrimSpace(script[start:t.Offset]); s != "" {
				statements = append(statements, s)
			}
			start = t.End
		}
	}
	return statements, nil
}
