package ast

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple select",
			input: "select * from t where id = 1",
			want:  []string{"select", "*", "from", "t", "where", "id", "=", "1"},
		},
		{
			name:  "single quoted string",
			input: "SELECT 'test'",
			want:  []string{"SELECT", "'test'"},
		},
		{
			name:  "backtick quoted string",
			input: "SELECT `test`",
			want:  []string{"SELECT", "`test`"},
		},
		{
			name:  "double quoted string",
			input: `SELECT "test"`,
			want:  []string{"SELECT", `"test"`},
		},
		{
			name:  "quoted string keeps spaces",
			input: "SELECT 'a b  c'",
			want:  []string{"SELECT", "'a b  c'"},
		},
		{
			name:  "qualified wildcard",
			input: "SELECT t.* FROM t",
			want:  []string{"SELECT", "t", ".", "*", "FROM", "t"},
		},
		{
			name:  "nested parentheses",
			input: "SELECT ((1 + 1) * 2)",
			want:  []string{"SELECT", "(", "(", "1", "+", "1", ")", "*", "2", ")"},
		},
		{
			name:  "dotted identifier",
			input: "SELECT db.test.query",
			want:  []string{"SELECT", "db", ".", "test", ".", "query"},
		},
		{
			name:  "call with star",
			input: "SELECT COUNT(*) FROM t",
			want:  []string{"SELECT", "COUNT", "(", "*", ")", "FROM", "t"},
		},
		{
			name:  "compound operator",
			input: "a>=1",
			want:  []string{"a", ">=", "1"},
		},
		{
			name:  "operator run split",
			input: "a=-1",
			want:  []string{"a", "=", "-", "1"},
		},
		{
			name:  "operator before string",
			input: "name='bob'",
			want:  []string{"name", "=", "'bob'"},
		},
		{
			name:  "commas and semicolons",
			input: "f(a,b);",
			want:  []string{"f", "(", "a", ",", "b", ")", ";"},
		},
		{
			name:  "stray quote",
			input: "SELECT 'abc",
			want:  []string{"SELECT", "'", "abc"},
		},
		{
			name:  "empty",
			input: "   ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		lexeme string
		want   TokenType
	}{
		{"SELECT", KEYWORD},
		{"select", KEYWORD},
		{"DESC", KEYWORD},
		{"as", KEYWORD},
		{"and", OPERATOR},
		{"LIKE", OPERATOR},
		{"name", IDENT},
		{"_col1", IDENT},
		{"NOT", IDENT},
		{"42", NUMBER},
		{"'x'", STRING},
		{"``", STRING},
		{">=", OPERATOR},
		{"||", OPERATOR},
		{"(", PAREN},
		{")", PAREN},
		{",", COMMA},
		{";", SEMICOLON},
		{"@", EOF},
		{".", EOF},
		{"'", EOF},
	}

	for _, tt := range tests {
		t.Run(tt.lexeme, func(t *testing.T) {
			if got := Classify(tt.lexeme); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.lexeme, got, tt.want)
			}
		})
	}
}
