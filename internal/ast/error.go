package ast

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrOutOfRange           = errors.New("token index out of range")
	ErrMalformedExpression  = errors.New("malformed expression")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// TokenError ties one of the sentinel errors above to the token that caused
// it. Use errors.Is to classify and errors.As to recover the token.
type TokenError struct {
	Err    error
	Token  string
	Pos    int
	Reason string
}

func (e *TokenError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%v: %s %d", e.Err, e.Reason, e.Pos)
	}
	return fmt.Sprintf("%v: %s %q at position %d", e.Err, e.Reason, e.Token, e.Pos)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

func malformed(t Token, reason string) error {
	return errors.WithStack(&TokenError{
		Err:    ErrMalformedExpression,
		Token:  t.Text,
		Pos:    t.Pos,
		Reason: reason,
	})
}
