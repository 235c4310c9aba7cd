package ast

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// TokenStream is a cursor over classified tokens. Every range-checked
// operation fails with ErrOutOfRange instead of returning a zero Token.
type TokenStream struct {
	tokens []Token
	index  int
}

// NewTokenStream classifies lexemes (as returned by Tokenize) and fuses
// multi-lexeme constructs: GROUP BY / ORDER BY, LEFT [OUTER] JOIN and the
// other typed joins, NOT LIKE / IS NOT and friends, dotted identifiers (and
// t.* wildcards) and decimal numbers. A NOT that fuses with nothing becomes
// the prefix operator NOT.
func NewTokenStream(lexemes []string) *TokenStream {
	raw := make([]Token, len(lexemes))
	for i, lexeme := range lexemes {
		raw[i] = Token{Type: Classify(lexeme), Text: lexeme}
	}
	return FromTokens(fuse(raw))
}

// FromTokens wraps already classified tokens. Positions are reassigned.
func FromTokens(tokens []Token) *TokenStream {
	for i := range tokens {
		tokens[i].Pos = i
	}
	return &TokenStream{tokens: tokens}
}

func fuse(raw []Token) []Token {
	var fused []Token
	for i := 0; i < len(raw); i++ {
		t := raw[i]
		upper := strings.ToUpper(t.Text)
		next := func(k int) (Token, bool) {
			if i+k < len(raw) {
				return raw[i+k], true
			}
			return Token{}, false
		}

		switch {
		case upper == "GROUP" || upper == "ORDER":
			if n, ok := next(1); ok && n.TextEquals("BY") {
				fused = append(fused, Token{Type: KEYWORD, Text: upper + " BY"})
				i++
				continue
			}
		case upper == "INNER" || upper == "LEFT" || upper == "RIGHT":
			skip := 1
			if n, ok := next(1); ok && n.TextEquals("OUTER") && upper != "INNER" {
				skip = 2
			}
			if n, ok := next(skip); ok && n.TextEquals("JOIN") {
				fused = append(fused, Token{Type: KEYWORD, Text: upper + " JOIN"})
				i += skip
				continue
			}
		case upper == "NOT":
			if n, ok := next(1); ok && negatable[strings.ToUpper(n.Text)] {
				fused = append(fused, Token{Type: OPERATOR, Text: "NOT " + strings.ToUpper(n.Text)})
				i++
				continue
			}
			// a lone NOT is a prefix operator
			t.Type = OPERATOR
		case upper == "IS":
			if n, ok := next(1); ok && n.TextEquals("NOT") {
				fused = append(fused, Token{Type: OPERATOR, Text: "IS NOT"})
				i++
				continue
			}
		case t.Type == IDENT:
			// a.b.c, or a qualified wildcard a.*
			for {
				dot, ok1 := next(1)
				ident, ok2 := next(2)
				if !ok1 || !ok2 || dot.Text != "." {
					break
				}
				if ident.Type == OPERATOR && ident.Text == "*" {
					t.Text += ".*"
					i += 2
					break
				}
				if ident.Type != IDENT {
					break
				}
				t.Text += "." + ident.Text
				i += 2
			}
		case t.Type == NUMBER:
			if dot, ok := next(1); ok && dot.Text == "." {
				if frac, ok := next(2); ok && frac.Type == NUMBER {
					t.Text += "." + frac.Text
					i += 2
				}
			}
		}
		if t.Type == OPERATOR {
			t.Text = strings.ToUpper(t.Text)
		}
		fused = append(fused, t)
	}
	return fused
}

// Tokens returns the classified tokens.
func (s *TokenStream) Tokens() []Token {
	return s.tokens
}

// Len returns the total number of tokens.
func (s *TokenStream) Len() int {
	return len(s.tokens)
}

// Index returns the cursor position.
func (s *TokenStream) Index() int {
	return s.index
}

// HasNext reports whether there is a token under the cursor.
func (s *TokenStream) HasNext() bool {
	return s.index < len(s.tokens)
}

// Peek returns the token under the cursor without consuming it.
func (s *TokenStream) Peek() (Token, error) {
	return s.PeekAhead(0)
}

// PeekAhead returns the token n positions after the cursor.
func (s *TokenStream) PeekAhead(n int) (Token, error) {
	i := s.index + n
	if n < 0 || i >= len(s.tokens) {
		return Token{}, outOfRange(i, len(s.tokens))
	}
	return s.tokens[i], nil
}

// Consume returns the token under the cursor and advances past it.
func (s *TokenStream) Consume() (Token, error) {
	t, err := s.Peek()
	if err != nil {
		return Token{}, err
	}
	s.index++
	return t, nil
}

// Advance moves the cursor forward by one without reading.
func (s *TokenStream) Advance() {
	s.index++
}

// Seek moves the cursor to index. Seeking to Len() exhausts the stream.
func (s *TokenStream) Seek(index int) error {
	if index < 0 || index > len(s.tokens) {
		return outOfRange(index, len(s.tokens))
	}
	s.index = index
	return nil
}

// SliceTo returns the tokens from the cursor up to, but excluding, index. The
// cursor does not move.
func (s *TokenStream) SliceTo(index int) ([]Token, error) {
	if index < s.index || index > len(s.tokens) {
		return nil, outOfRange(index, len(s.tokens))
	}
	return s.tokens[s.index:index], nil
}

// SliceUntil returns the tokens from the cursor up to the first token matching
// pred. When nothing matches it fails if throwIfMissing is set, otherwise it
// returns the remainder of the stream. The cursor does not move.
func (s *TokenStream) SliceUntil(pred func(Token) bool, throwIfMissing bool) ([]Token, error) {
	for i := s.index; i < len(s.tokens); i++ {
		if pred(s.tokens[i]) {
			return s.SliceTo(i)
		}
	}
	if throwIfMissing {
		return nil, errors.WithStack(&TokenError{Err: ErrOutOfRange, Pos: len(s.tokens), Reason: "no matching token after position"})
	}
	return s.SliceTo(len(s.tokens))
}

// NextIs reports whether the token under the cursor has one of the types.
func (s *TokenStream) NextIs(types ...TokenType) (bool, error) {
	t, err := s.Peek()
	if err != nil {
		return false, err
	}
	return t.IsOneOf(types...), nil
}

func outOfRange(index, length int) error {
	return errors.WithStack(&TokenError{
		Err:    ErrOutOfRange,
		Pos:    index,
		Reason: fmt.Sprintf("index outside [0, %d] at position", length),
	})
}
