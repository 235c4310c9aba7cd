package ast

import (
	"errors"
	"testing"
)

func streamOf(sql string) *TokenStream {
	return NewTokenStream(Tokenize(sql))
}

func TestTokenStreamFusion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{
			name:  "group by and order by",
			input: "group by a order BY b",
			want: []Token{
				{Type: KEYWORD, Text: "GROUP BY"},
				{Type: IDENT, Text: "a"},
				{Type: KEYWORD, Text: "ORDER BY"},
				{Type: IDENT, Text: "b"},
			},
		},
		{
			name:  "not like",
			input: "x not like 'a%'",
			want: []Token{
				{Type: IDENT, Text: "x"},
				{Type: OPERATOR, Text: "NOT LIKE"},
				{Type: STRING, Text: "'a%'"},
			},
		},
		{
			name:  "is not",
			input: "x is not null",
			want: []Token{
				{Type: IDENT, Text: "x"},
				{Type: OPERATOR, Text: "IS NOT"},
				{Type: IDENT, Text: "null"},
			},
		},
		{
			name:  "lone not",
			input: "not a",
			want: []Token{
				{Type: OPERATOR, Text: "NOT"},
				{Type: IDENT, Text: "a"},
			},
		},
		{
			name:  "qualified identifier",
			input: "db.test.query = 1",
			want: []Token{
				{Type: IDENT, Text: "db.test.query"},
				{Type: OPERATOR, Text: "="},
				{Type: NUMBER, Text: "1"},
			},
		},
		{
			name:  "qualified wildcard",
			input: "t.* FROM",
			want: []Token{
				{Type: IDENT, Text: "t.*"},
				{Type: KEYWORD, Text: "FROM"},
			},
		},
		{
			name:  "typed joins",
			input: "a LEFT OUTER JOIN b RIGHT JOIN c inner join d",
			want: []Token{
				{Type: IDENT, Text: "a"},
				{Type: KEYWORD, Text: "LEFT JOIN"},
				{Type: IDENT, Text: "b"},
				{Type: KEYWORD, Text: "RIGHT JOIN"},
				{Type: IDENT, Text: "c"},
				{Type: KEYWORD, Text: "INNER JOIN"},
				{Type: IDENT, Text: "d"},
			},
		},
		{
			name:  "decimal number",
			input: "1.5 * 2",
			want: []Token{
				{Type: NUMBER, Text: "1.5"},
				{Type: OPERATOR, Text: "*"},
				{Type: NUMBER, Text: "2"},
			},
		},
		{
			name:  "word operators upper cased",
			input: "a and b",
			want: []Token{
				{Type: IDENT, Text: "a"},
				{Type: OPERATOR, Text: "AND"},
				{Type: IDENT, Text: "b"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := streamOf(tt.input).Tokens()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tokens %v, want %d", len(got), got, len(tt.want))
			}
			for i, tok := range got {
				if tok.Type != tt.want[i].Type || tok.Text != tt.want[i].Text {
					t.Errorf("token %d = %s %q, want %s %q", i, tok.Type, tok.Text, tt.want[i].Type, tt.want[i].Text)
				}
				if tok.Pos != i {
					t.Errorf("token %d has Pos %d", i, tok.Pos)
				}
			}
		})
	}
}

func TestTokenStreamCursor(t *testing.T) {
	s := streamOf("SELECT a, b FROM t")
	if s.Len() != 6 {
		t.Fatalf("expected 6 tokens, got %d", s.Len())
	}

	tok, err := s.Peek()
	if err != nil || !tok.TextEquals("select") {
		t.Fatalf("Peek = %v, %v", tok, err)
	}
	if s.Index() != 0 {
		t.Errorf("Peek moved the cursor to %d", s.Index())
	}

	tok, err = s.PeekAhead(2)
	if err != nil || !tok.IsComma() {
		t.Errorf("PeekAhead(2) = %v, %v; want ','", tok, err)
	}

	tok, err = s.Consume()
	if err != nil || !tok.Is(KEYWORD) || s.Index() != 1 {
		t.Errorf("Consume = %v, %v at index %d", tok, err, s.Index())
	}

	ok, err := s.NextIs(KEYWORD, IDENT)
	if err != nil || !ok {
		t.Errorf("NextIs(KEYWORD, IDENT) = %v, %v", ok, err)
	}

	s.Advance()
	if s.Index() != 2 {
		t.Errorf("Advance left cursor at %d", s.Index())
	}

	if err := s.Seek(s.Len()); err != nil {
		t.Errorf("Seek(Len) failed: %v", err)
	}
	if s.HasNext() {
		t.Error("expected exhausted stream")
	}
	if _, err := s.Peek(); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Peek on exhausted stream: %v, want ErrOutOfRange", err)
	}
	if _, err := s.Consume(); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Consume on exhausted stream: %v, want ErrOutOfRange", err)
	}
	if err := s.Seek(s.Len() + 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Seek past end: %v, want ErrOutOfRange", err)
	}
	if err := s.Seek(-1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Seek(-1): %v, want ErrOutOfRange", err)
	}
}

func TestTokenStreamSlicing(t *testing.T) {
	s := streamOf("SELECT a, b FROM t")
	if err := s.Seek(1); err != nil {
		t.Fatal(err)
	}

	toks, err := s.SliceTo(4)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 3 || toks[0].Text != "a" || toks[2].Text != "b" {
		t.Errorf("SliceTo(4) = %v", toks)
	}
	if s.Index() != 1 {
		t.Errorf("SliceTo moved the cursor to %d", s.Index())
	}

	if _, err := s.SliceTo(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SliceTo behind cursor: %v, want ErrOutOfRange", err)
	}
	if _, err := s.SliceTo(7); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SliceTo past end: %v, want ErrOutOfRange", err)
	}

	toks, err = s.SliceUntil(Token.IsPrincipal, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 3 {
		t.Errorf("SliceUntil(principal) = %v", toks)
	}

	isSemicolon := func(t Token) bool { return t.Is(SEMICOLON) }
	if _, err := s.SliceUntil(isSemicolon, true); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SliceUntil missing with throw: %v, want ErrOutOfRange", err)
	}
	toks, err = s.SliceUntil(isSemicolon, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 5 {
		t.Errorf("SliceUntil missing without throw returned %d tokens, want remainder of 5", len(toks))
	}
}

func TestTokenErrorCarriesToken(t *testing.T) {
	_, err := Parse("SELECT a +")
	var tokErr *TokenError
	if !errors.As(err, &tokErr) {
		t.Fatalf("expected *TokenError, got %T: %v", err, err)
	}
	if tokErr.Token != "+" || tokErr.Pos != 2 {
		t.Errorf("got token %q at %d, want \"+\" at 2", tokErr.Token, tokErr.Pos)
	}
}
