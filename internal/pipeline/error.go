package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrMissingParameter     = errors.New("missing parameter")
	ErrInvalidState         = errors.New("invalid process state")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// ParameterError reports a stage parameter that is absent or has the wrong
// shape.
type ParameterError struct {
	Err    error
	Param  string
	Reason string
}

func (e *ParameterError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %q", e.Err, e.Param)
	}
	return fmt.Sprintf("%v: %q: %s", e.Err, e.Param, e.Reason)
}

func (e *ParameterError) Unwrap() error {
	return e.Err
}

func missing(param, reason string) error {
	return errors.WithStack(&ParameterError{Err: ErrMissingParameter, Param: param, Reason: reason})
}
