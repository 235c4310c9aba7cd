package ast

import (
	"fmt"
	"strings"
)

// Token is a classified lexeme.
type Token struct {
	// Type categorizes the token.
	Type TokenType
	// Text is the original lexeme for this token.
	Text string
	// Pos is the 0-indexed position of this token in its stream.
	Pos int
}

func (t Token) String() string {
	return t.Text
}

func (t Token) MarshalJSON() ([]byte, error) {
	return []byte(
		`{"type":` + fmt.Sprintf("%q", t.Type) +
			`,"text":` + fmt.Sprintf("%q", t.Text) +
			`,"pos":` + fmt.Sprint(t.Pos) +
			`}`,
	), nil
}

// Is reports whether the token has type typ.
func (t Token) Is(typ TokenType) bool {
	return t.Type == typ
}

// IsOneOf reports whether the token has any of the given types.
func (t Token) IsOneOf(types ...TokenType) bool {
	for _, typ := range types {
		if t.Type == typ {
			return true
		}
	}
	return false
}

// TextEquals compares the token text case-insensitively.
func (t Token) TextEquals(s string) bool {
	return strings.EqualFold(t.Text, s)
}

func (t Token) IsOpenParen() bool  { return t.Type == PAREN && t.Text == "(" }
func (t Token) IsCloseParen() bool { return t.Type == PAREN && t.Text == ")" }
func (t Token) IsComma() bool      { return t.Type == COMMA }

// IsPrincipal reports whether the token opens a top-level clause.
func (t Token) IsPrincipal() bool {
	return t.Type == KEYWORD && IsPrincipalKeyword(t.Text)
}

// isTerminator reports whether the token ends the expression in front of it.
func (t Token) isTerminator() bool {
	return t.IsOneOf(COMMA, SEMICOLON, EOF) || t.IsCloseParen() || t.IsPrincipal()
}

// TokenType categorizes a lexeme.
type TokenType int

func (t TokenType) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.String())), nil
}

const (
	KEYWORD TokenType = iota
	IDENT
	NUMBER
	STRING
	OPERATOR
	PAREN
	COMMA
	SEMICOLON
	EOF
)

func (t TokenType) String() string {
	switch t {
	case KEYWORD:
		return "KEYWORD"
	case IDENT:
		return "IDENTIFIER"
	case NUMBER:
		return "NUMBER"
	case STRING:
		return "STRING"
	case OPERATOR:
		return "OPERATOR"
	case PAREN:
		return "PARENTHESIS"
	case COMMA:
		return "COMMA"
	case SEMICOLON:
		return "SEMICOLON"
	case EOF:
		return "EOF"
	default:
		return fmt.Sprintf("TokenType(%d)", int(t))
	}
}

// Principal keywords open a clause. GROUP BY, ORDER BY and the typed joins are
// fused from several lexemes when the token stream is built; OUTER is dropped.
const (
	SELECT     = "SELECT"
	FROM       = "FROM"
	JOIN       = "JOIN"
	INNER_JOIN = "INNER JOIN"
	LEFT_JOIN  = "LEFT JOIN"
	RIGHT_JOIN = "RIGHT JOIN"
	ON         = "ON"
	WHERE      = "WHERE"
	GROUP_BY   = "GROUP BY"
	HAVING     = "HAVING"
	ORDER_BY   = "ORDER BY"
	LIMIT      = "LIMIT"
	OFFSET     = "OFFSET"
	UNION      = "UNION"
	INTERSECT  = "INTERSECT"
	EXCEPT     = "EXCEPT"
	SET        = "SET"
	INSERT     = "INSERT"
	UPDATE     = "UPDATE"
	DELETE     = "DELETE"
)

var (
	principalKeywords = map[string]bool{
		SELECT:     true,
		FROM:       true,
		JOIN:       true,
		INNER_JOIN: true,
		LEFT_JOIN:  true,
		RIGHT_JOIN: true,
		ON:         true,
		WHERE:      true,
		GROUP_BY:   true,
		HAVING:     true,
		ORDER_BY:   true,
		LIMIT:      true,
		OFFSET:     true,
		UNION:      true,
		INTERSECT:  true,
		EXCEPT:     true,
		SET:        true,
		INSERT:     true,
		UPDATE:     true,
		DELETE:     true,
	}

	secondaryKeywords = map[string]bool{
		"DISTINCT": true,
		"ALL":      true,
		"AS":       true,
		"ASC":      true,
		"DESC":     true,
		"INTO":     true,
		"VALUES":   true,
	}

	// Ordered as the operator table is documented; membership is what matters.
	operators = []string{
		"=", "<", ">", "<=", ">=", "<>", "!=",
		"LIKE", "NOT LIKE", "IN", "NOT IN", "BETWEEN", "NOT BETWEEN",
		"IS", "IS NOT", "REGEXP", "NOT REGEXP",
		"AND", "OR", "XOR",
		"||", "+", "-", "*", "/", "%", "^", "&",
		"AS",
	}

	operatorSet = func() map[string]bool {
		set := make(map[string]bool, len(operators))
		for _, op := range operators {
			set[op] = true
		}
		return set
	}()

	// word operators that are not also keywords
	wordOperators = map[string]bool{
		"LIKE":    true,
		"IN":      true,
		"BETWEEN": true,
		"IS":      true,
		"REGEXP":  true,
		"AND":     true,
		"OR":      true,
		"XOR":     true,
	}

	// NOT <word> fuses into a single operator
	negatable = map[string]bool{
		"LIKE":    true,
		"IN":      true,
		"BETWEEN": true,
		"REGEXP":  true,
	}
)

// IsPrincipalKeyword reports whether text opens a clause.
func IsPrincipalKeyword(text string) bool {
	return principalKeywords[strings.ToUpper(text)]
}

// IsKeyword reports whether text is any recognized keyword.
func IsKeyword(text string) bool {
	upper := strings.ToUpper(text)
	return principalKeywords[upper] || secondaryKeywords[upper]
}

// IsOperator reports whether text is in the operator table.
func IsOperator(text string) bool {
	return operatorSet[strings.ToUpper(text)]
}
