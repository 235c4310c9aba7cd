package ast

import (
	"strings"
)

// Scope marks a construct the parser is currently inside of.
type Scope int

const (
	PrincipalClauseScope Scope = iota
	FunctionArgumentsScope
	ParenGroupScope
)

func (s Scope) String() string {
	switch s {
	case PrincipalClauseScope:
		return "clause"
	case FunctionArgumentsScope:
		return "arguments"
	case ParenGroupScope:
		return "group"
	default:
		return "unknown"
	}
}

// ScopeStack records the constructs that are open at the cursor. It is owned
// by one parse and is not safe for concurrent use.
type ScopeStack struct {
	scopes []Scope
}

func (s *ScopeStack) Push(scope Scope) {
	s.scopes = append(s.scopes, scope)
}

func (s *ScopeStack) Pop() (Scope, bool) {
	top, ok := s.Top()
	if ok {
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
	return top, ok
}

func (s *ScopeStack) Top() (Scope, bool) {
	if len(s.scopes) == 0 {
		return 0, false
	}
	return s.scopes[len(s.scopes)-1], true
}

func (s *ScopeStack) Len() int    { return len(s.scopes) }
func (s *ScopeStack) Empty() bool { return len(s.scopes) == 0 }

// unwind drops the scopes pushed above depth.
func (s *ScopeStack) unwind(depth int) {
	if depth < len(s.scopes) {
		s.scopes = s.scopes[:depth]
	}
}

// ParseExpression parses one expression starting at the cursor of stream.
// Called with an empty scope stack on a principal keyword, it parses exactly
// one clause and leaves the stack empty again. A nil Node with a nil error
// means the cursor sat on a terminator. On error the stack is restored to
// the depth it had on entry.
func ParseExpression(stream *TokenStream, scopes *ScopeStack) (Node, error) {
	p := &exprParser{s: stream, scopes: scopes}
	depth := scopes.Len()
	node, err := p.parseExpression()
	if err != nil {
		scopes.unwind(depth)
		return nil, err
	}
	return node, nil
}

type exprParser struct {
	s      *TokenStream
	scopes *ScopeStack
}

func (p *exprParser) parseExpression() (Node, error) {
	tok, err := p.s.Consume()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case KEYWORD:
		if tok.IsPrincipal() {
			return p.parseClause(tok)
		}
		return p.parseTrailingKeywords(tok)

	case IDENT:
		if p.scopes.Empty() {
			return nil, malformed(tok, "unexpected identifier")
		}
		var leaf Node = &Identifier{Name: tok.Text}
		switch strings.ToUpper(tok.Text) {
		case "TRUE", "FALSE":
			leaf = &Literal{Text: strings.ToUpper(tok.Text), Kind: BooleanLiteral}
		case "NULL":
			leaf = &Literal{Text: "NULL", Kind: NullLiteral}
		}
		next, err := p.s.Peek()
		if err != nil || next.isTerminator() {
			return leaf, nil
		}
		if ident, ok := leaf.(*Identifier); ok && next.IsOpenParen() {
			p.s.Advance()
			return p.parseCall(ident.Name, next)
		}
		return p.parseTail(leaf)

	case NUMBER, STRING:
		if p.scopes.Empty() {
			return nil, malformed(tok, "unexpected literal")
		}
		kind := NumberLiteral
		if tok.Type == STRING {
			kind = StringLiteral
		}
		return p.parseTail(&Literal{Text: tok.Text, Kind: kind})

	case OPERATOR:
		if p.scopes.Empty() {
			return nil, malformed(tok, "unexpected operator")
		}
		next, err := p.s.Peek()
		if err != nil || next.Is(OPERATOR) || next.isTerminator() {
			return nil, malformed(tok, "dangling operator")
		}
		operand, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &Unary{Operator: tok.Text, Operand: operand}, nil

	case PAREN:
		if tok.IsOpenParen() {
			return p.parseGroup(tok)
		}
		if top, ok := p.scopes.Top(); ok && (top == FunctionArgumentsScope || top == ParenGroupScope) {
			// leave it for whoever opened the scope
			return nil, p.s.Seek(tok.Pos)
		}
		return nil, malformed(tok, "unexpected ')'")

	default:
		// COMMA, SEMICOLON, EOF
		return nil, nil
	}
}

func (p *exprParser) parseClause(tok Token) (Node, error) {
	if top, ok := p.scopes.Top(); ok && top != PrincipalClauseScope {
		return nil, malformed(tok, "unexpected keyword")
	}
	p.scopes.Push(PrincipalClauseScope)
	elems, err := p.parseSequence(PrincipalClauseScope)
	if err != nil {
		return nil, err
	}
	p.scopes.Pop()

	clause := &Clause{Keyword: strings.ToUpper(tok.Text)}
	switch len(elems) {
	case 0:
		clause.Body = &List{}
	case 1:
		clause.Body = elems[0]
	default:
		clause.Body = &List{Elements: elems}
	}
	return clause, nil
}

func (p *exprParser) parseTrailingKeywords(tok Token) (Node, error) {
	if p.scopes.Empty() {
		return nil, malformed(tok, "unexpected keyword")
	}
	run, err := p.s.SliceUntil(func(t Token) bool {
		return !t.Is(KEYWORD) || t.IsPrincipal()
	}, false)
	if err != nil {
		return nil, err
	}
	words := []string{strings.ToUpper(tok.Text)}
	for _, t := range run {
		words = append(words, strings.ToUpper(t.Text))
	}
	if err := p.s.Seek(p.s.Index() + len(run)); err != nil {
		return nil, err
	}
	return &TrailingKeywords{Words: words}, nil
}

func (p *exprParser) parseCall(name string, open Token) (Node, error) {
	p.scopes.Push(FunctionArgumentsScope)
	args, err := p.parseSequence(FunctionArgumentsScope)
	if err != nil {
		return nil, err
	}
	if err := p.closeParen(open); err != nil {
		return nil, err
	}
	p.scopes.Pop()
	return p.parseTail(&Call{Name: name, Argument: &List{Elements: args}})
}

func (p *exprParser) parseGroup(open Token) (Node, error) {
	p.scopes.Push(ParenGroupScope)
	elems, err := p.parseSequence(ParenGroupScope)
	if err != nil {
		return nil, err
	}
	if err := p.closeParen(open); err != nil {
		return nil, err
	}
	p.scopes.Pop()

	var inner Node
	switch len(elems) {
	case 0:
		return nil, malformed(open, "empty parentheses")
	case 1:
		inner = elems[0]
	default:
		inner = &List{Elements: elems}
	}
	return p.parseTail(&Group{Inner: inner})
}

func (p *exprParser) closeParen(open Token) error {
	t, err := p.s.Peek()
	if err != nil {
		return malformed(open, "missing ')' to close")
	}
	if !t.IsCloseParen() {
		return malformed(t, "expected ')'")
	}
	p.s.Advance()
	return nil
}

// parseTail turns left into the left operand of a binary expression when an
// operator follows. The right operand is parsed recursively, so chains nest to
// the right.
func (p *exprParser) parseTail(left Node) (Node, error) {
	op, err := p.s.Peek()
	if err != nil || !op.Is(OPERATOR) {
		return left, nil
	}
	p.s.Advance()
	next, err := p.s.Peek()
	if err != nil || next.isTerminator() {
		return nil, malformed(op, "dangling operator")
	}
	right, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Binary{Operator: op.Text, Left: left, Right: right}, nil
}

// parseSequence parses comma-separated elements until the end of scope: a
// semicolon, a ')' closing a group or call, or the next principal keyword of a
// clause. Two elements may follow each other without a comma only when one of
// them is a keyword run (`a AS b`, `x DESC`).
func (p *exprParser) parseSequence(scope Scope) ([]Node, error) {
	var (
		elems []Node
		comma *Token
		sep   = true
	)
loop:
	for p.s.HasNext() {
		t, _ := p.s.Peek()
		switch {
		case t.Is(SEMICOLON):
			break loop
		case t.IsCloseParen() && scope != PrincipalClauseScope:
			break loop
		case t.IsPrincipal() && scope == PrincipalClauseScope:
			break loop
		case t.IsComma():
			if sep {
				return nil, malformed(t, "unexpected ','")
			}
			p.s.Advance()
			sep, comma = true, &t
			continue
		case t.Is(EOF):
			return nil, malformed(t, "unexpected token")
		}

		var node Node
		if p.atWildcard() {
			p.s.Advance()
			node = &Identifier{Name: "*"}
		} else {
			var err error
			if node, err = p.parseExpression(); err != nil {
				return nil, err
			}
		}
		if node == nil {
			break
		}
		if !sep && !isKeywordRun(elems[len(elems)-1]) && !isKeywordRun(node) {
			return nil, malformed(t, "expected ',' before")
		}
		elems = append(elems, node)
		sep = false
	}
	if sep && comma != nil {
		return nil, malformed(*comma, "trailing ','")
	}
	return elems, nil
}

// atWildcard reports whether the cursor is on a "*" that makes up a whole
// sequence element, as in SELECT * or COUNT(*).
func (p *exprParser) atWildcard() bool {
	t, err := p.s.Peek()
	if err != nil || !t.Is(OPERATOR) || t.Text != "*" {
		return false
	}
	next, err := p.s.PeekAhead(1)
	return err != nil || next.isTerminator()
}

func isKeywordRun(n Node) bool {
	_, ok := n.(*TrailingKeywords)
	return ok
}

// Parser splits SQL text into statements of clauses.
type Parser struct {
	stream *TokenStream
	scopes *ScopeStack
}

func NewParser(sql string) *Parser {
	return &Parser{
		stream: NewTokenStream(Tokenize(sql)),
		scopes: &ScopeStack{},
	}
}

// Parse parses every statement in the input. Statements are separated by
// semicolons; empty statements are skipped.
func (p *Parser) Parse() ([]Statement, error) {
	var (
		stmts []Statement
		curr  Statement
	)
	for p.stream.HasNext() {
		t, err := p.stream.Peek()
		if err != nil {
			return nil, err
		}
		if t.Is(SEMICOLON) {
			p.stream.Advance()
			if len(curr.Clauses) > 0 {
				stmts = append(stmts, curr)
				curr = Statement{}
			}
			continue
		}
		if !t.IsPrincipal() {
			return nil, malformed(t, "expected a clause keyword, got")
		}
		node, err := ParseExpression(p.stream, p.scopes)
		if err != nil {
			return nil, err
		}
		curr.Clauses = append(curr.Clauses, node.(*Clause))
	}
	if len(curr.Clauses) > 0 {
		stmts = append(stmts, curr)
	}
	return stmts, nil
}

// Parse is shorthand for NewParser(sql).Parse().
func Parse(sql string) ([]Statement, error) {
	return NewParser(sql).Parse()
}

// Clause returns the first clause with the given keyword.
func (s Statement) Clause(keyword string) (*Clause, bool) {
	for _, c := range s.Clauses {
		if c.Keyword == keyword {
			return c, true
		}
	}
	return nil, false
}

func (s Statement) String() string {
	parts := make([]string, len(s.Clauses))
	for i, c := range s.Clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
