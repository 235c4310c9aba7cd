package engine

import "github.com/pkg/errors"

// ErrUnsupportedOperation is returned for statements the engine cannot plan
// or expressions it cannot evaluate.
var ErrUnsupportedOperation = errors.New("unsupported operation")

func unsupported(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupportedOperation, format, args...)
}
