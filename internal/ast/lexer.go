package ast

import (
	"regexp"
	"strings"
)

var (
	// Alternatives are tried in order: quoted strings, word runs, runs of
	// symbols, then a stray quote. Only symbol runs are captured.
	lexemePattern = regexp.MustCompile("'[^']*'|`[^`]*`|\"[^\"]*\"|\\b[A-Za-z0-9_]+\\b|([^\\s\\w'\"`]+)|['\"`]")

	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	numberPattern = regexp.MustCompile(`^[0-9]+$`)
	stringPattern = regexp.MustCompile("^(?:'.*'|\".*\"|`.*`)$")
)

// Tokenize splits sql into raw lexemes. Quoted strings keep their delimiters.
// Symbol runs are split at every parenthesis, comma, semicolon and dot so that
// nested grouping such as "((" always yields one token per character, and a
// run that is made entirely of known operators is split into those operators.
func Tokenize(sql string) []string {
	var lexemes []string
	for _, loc := range lexemePattern.FindAllStringSubmatchIndex(sql, -1) {
		match := sql[loc[0]:loc[1]]
		if loc[2] < 0 {
			lexemes = append(lexemes, match)
			continue
		}
		lexemes = append(lexemes, splitSymbols(match)...)
	}
	return lexemes
}

func splitSymbols(run string) []string {
	var (
		split []string
		curr  []byte
	)
	flush := func() {
		if len(curr) > 0 {
			split = append(split, splitOperators(string(curr))...)
			curr = nil
		}
	}
	for i := 0; i < len(run); i++ {
		switch ch := run[i]; ch {
		case '(', ')', ',', ';', '.':
			flush()
			split = append(split, string(ch))
		default:
			curr = append(curr, ch)
		}
	}
	flush()
	return split
}

// splitOperators breaks a symbol run like "=-" into known operators, longest
// first. Runs that cannot be fully decomposed are returned untouched.
func splitOperators(run string) []string {
	if operatorSet[run] {
		return []string{run}
	}
	var split []string
	for rest := run; len(rest) > 0; {
		n := 0
		for _, op := range operators {
			if len(op) > n && strings.HasPrefix(rest, op) && !isWordByte(op[0]) {
				n = len(op)
			}
		}
		if n == 0 {
			return []string{run}
		}
		split = append(split, rest[:n])
		rest = rest[n:]
	}
	return split
}

// Classify determines the type of a single lexeme. Keywords win over
// identifiers; word operators such as AND are recognized before the identifier
// pattern so they never resolve as column names.
func Classify(lexeme string) TokenType {
	switch {
	case IsKeyword(lexeme):
		return KEYWORD
	case wordOperators[strings.ToUpper(lexeme)]:
		return OPERATOR
	case identPattern.MatchString(lexeme):
		return IDENT
	case numberPattern.MatchString(lexeme):
		return NUMBER
	case len(lexeme) >= 2 && stringPattern.MatchString(lexeme):
		return STRING
	case operatorSet[lexeme]:
		return OPERATOR
	case lexeme == "(" || lexeme == ")":
		return PAREN
	case lexeme == ",":
		return COMMA
	case lexeme == ";":
		return SEMICOLON
	default:
		return EOF
	}
}

func isWordByte(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ('0' <= ch && ch <= '9') || ch == '_'
}
