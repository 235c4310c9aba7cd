package ast

import (
	"strconv"
	"strings"
)

// Node is a node in an expression tree.
type Node interface {
	exprNode()
	String() string
}

// Statement is a run of clauses terminated by a semicolon or the end of input.
type Statement struct {
	Clauses []*Clause
}

// Clause is a top-level clause such as SELECT or WHERE.
type Clause struct {
	// Keyword is the upper-cased principal keyword, e.g. "GROUP BY".
	Keyword string
	Body    Node
}

func (*Clause) exprNode() {}

// Identifier is a column, source or function name. Qualified names keep their
// dots ("db.test.query"); "*" is the wildcard.
type Identifier struct {
	Name string
}

func (*Identifier) exprNode() {}

type LiteralKind int

const (
	NumberLiteral LiteralKind = iota
	StringLiteral
	BooleanLiteral
	NullLiteral
)

func (k LiteralKind) String() string {
	switch k {
	case NumberLiteral:
		return "number"
	case StringLiteral:
		return "string"
	case BooleanLiteral:
		return "boolean"
	case NullLiteral:
		return "null"
	default:
		return "unknown"
	}
}

// Literal is a constant. Text is the lexeme as written, quotes included.
type Literal struct {
	Text string
	Kind LiteralKind
}

func (*Literal) exprNode() {}

// Value converts the literal to a Go value: float64, string, bool or nil.
func (l *Literal) Value() interface{} {
	switch l.Kind {
	case NumberLiteral:
		f, err := strconv.ParseFloat(l.Text, 64)
		if err != nil {
			return l.Text
		}
		return f
	case StringLiteral:
		return Unquote(l.Text)
	case BooleanLiteral:
		return strings.EqualFold(l.Text, "TRUE")
	default:
		return nil
	}
}

// Unary is a prefix operator applied to one operand.
type Unary struct {
	Operator string
	Operand  Node
}

func (*Unary) exprNode() {}

// Binary is an infix operator. Chains are right-recursive: a + b * c parses as
// a + (b * c) regardless of precedence; see Reassociate.
type Binary struct {
	Operator string
	Left     Node
	Right    Node
}

func (*Binary) exprNode() {}

// Call is a function call. Argument is never nil.
type Call struct {
	Name     string
	Argument *List
}

func (*Call) exprNode() {}

// List is a comma-separated sequence.
type List struct {
	Elements []Node
}

func (*List) exprNode() {}

// TrailingKeywords is a run of secondary keywords (DISTINCT, ASC, ...) inside
// a clause.
type TrailingKeywords struct {
	Words []string
}

func (*TrailingKeywords) exprNode() {}

// Has reports whether word is part of the run.
func (t *TrailingKeywords) Has(word string) bool {
	for _, w := range t.Words {
		if strings.EqualFold(w, word) {
			return true
		}
	}
	return false
}

// Group is an explicitly parenthesised expression.
type Group struct {
	Inner Node
}

func (*Group) exprNode() {}

func (c *Clause) String() string {
	if c.Body == nil {
		return c.Keyword
	}
	if l, ok := c.Body.(*List); ok && len(l.Elements) == 0 {
		return c.Keyword
	}
	return c.Keyword + " " + c.Body.String()
}

func (i *Identifier) String() string { return i.Name }
func (l *Literal) String() string    { return l.Text }

func (u *Unary) String() string {
	if isWordOperator(u.Operator) {
		return u.Operator + " " + u.Operand.String()
	}
	return u.Operator + u.Operand.String()
}

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Operator + " " + b.Right.String() + ")"
}

func (c *Call) String() string {
	return c.Name + "(" + c.Argument.join(", ") + ")"
}

func (l *List) String() string {
	return l.join(", ")
}

func (l *List) join(sep string) string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return strings.Join(parts, sep)
}

func (t *TrailingKeywords) String() string { return strings.Join(t.Words, " ") }
func (g *Group) String() string            { return "(" + g.Inner.String() + ")" }

func isWordOperator(op string) bool {
	return op != "" && isWordByte(op[0])
}

// Unquote strips the delimiters of a quoted lexeme. A doubled delimiter inside
// the string collapses to one. Unquoted text is returned as is.
func Unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '\'' && q != '"' && q != '`') || s[len(s)-1] != q {
		return s
	}
	inner := s[1 : len(s)-1]
	return strings.ReplaceAll(inner, string([]byte{q, q}), string(q))
}
