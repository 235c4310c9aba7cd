package ast

import (
	"strings"

	"github.com/pkg/errors"
)

// Operator identifies an operator independent of how it was spelled.
type Operator int

const (
	OpEqual Operator = iota
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpNotEqual
	OpLike
	OpNotLike
	OpIn
	OpNotIn
	OpBetween
	OpNotBetween
	OpIs
	OpIsNot
	OpRegexp
	OpNotRegexp
	OpAnd
	OpOr
	OpXor
	OpConcat
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpPower
	OpBitAnd
	OpNot
)

var operatorNames = map[string]Operator{
	"=":           OpEqual,
	"<":           OpLess,
	">":           OpGreater,
	"<=":          OpLessEqual,
	">=":          OpGreaterEqual,
	"<>":          OpNotEqual,
	"!=":          OpNotEqual,
	"LIKE":        OpLike,
	"NOT LIKE":    OpNotLike,
	"IN":          OpIn,
	"NOT IN":      OpNotIn,
	"BETWEEN":     OpBetween,
	"NOT BETWEEN": OpNotBetween,
	"IS":          OpIs,
	"IS NOT":      OpIsNot,
	"REGEXP":      OpRegexp,
	"NOT REGEXP":  OpNotRegexp,
	"AND":         OpAnd,
	"OR":          OpOr,
	"XOR":         OpXor,
	"||":          OpConcat,
	"+":           OpAdd,
	"-":           OpSubtract,
	"*":           OpMultiply,
	"/":           OpDivide,
	"%":           OpModulo,
	"^":           OpPower,
	"&":           OpBitAnd,
	"NOT":         OpNot,
}

// LookupOperator resolves operator text, case-insensitively. AS is in the
// operator table for tokenizing purposes but has no operator semantics.
func LookupOperator(text string) (Operator, error) {
	op, ok := operatorNames[strings.ToUpper(text)]
	if !ok {
		return 0, errors.WithStack(&TokenError{
			Err:    ErrUnsupportedOperation,
			Token:  text,
			Reason: "unknown operator",
		})
	}
	return op, nil
}

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "equal"
	case OpLess:
		return "less"
	case OpGreater:
		return "greater"
	case OpLessEqual:
		return "lessEqual"
	case OpGreaterEqual:
		return "greaterEqual"
	case OpNotEqual:
		return "notEqual"
	case OpLike:
		return "like"
	case OpNotLike:
		return "notLike"
	case OpIn:
		return "in"
	case OpNotIn:
		return "notIn"
	case OpBetween:
		return "between"
	case OpNotBetween:
		return "notBetween"
	case OpIs:
		return "is"
	case OpIsNot:
		return "isNot"
	case OpRegexp:
		return "regexp"
	case OpNotRegexp:
		return "notRegexp"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpConcat:
		return "concat"
	case OpAdd:
		return "add"
	case OpSubtract:
		return "subtract"
	case OpMultiply:
		return "multiply"
	case OpDivide:
		return "divide"
	case OpModulo:
		return "modulo"
	case OpPower:
		return "power"
	case OpBitAnd:
		return "bitAnd"
	case OpNot:
		return "not"
	default:
		return "unknown"
	}
}

// Binding strengths, loosest first.
const (
	precLowest = iota
	precOr
	precAnd
	precNot
	precComparison
	precAdditive
	precMultiplicative
	precPower
	precUnary
)

// Precedence returns how tightly the operator binds as an infix operator.
func (o Operator) Precedence() int {
	switch o {
	case OpOr, OpXor:
		return precOr
	case OpAnd:
		return precAnd
	case OpNot:
		return precNot
	case OpEqual, OpLess, OpGreater, OpLessEqual, OpGreaterEqual, OpNotEqual,
		OpLike, OpNotLike, OpIn, OpNotIn, OpBetween, OpNotBetween,
		OpIs, OpIsNot, OpRegexp, OpNotRegexp:
		return precComparison
	case OpConcat, OpAdd, OpSubtract, OpBitAnd:
		return precAdditive
	case OpMultiply, OpDivide, OpModulo:
		return precMultiplicative
	case OpPower:
		return precPower
	default:
		return precLowest
	}
}

// IsComparison reports whether the operator yields a boolean from two values.
func (o Operator) IsComparison() bool {
	return o.Precedence() == precComparison
}
