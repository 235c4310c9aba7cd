package engine

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/kevin-cantwell/sqlpipe/internal/ast"
	"github.com/kevin-cantwell/sqlpipe/internal/pipeline"
	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

// scope is what identifiers resolve against while evaluating one row.
type scope struct {
	row source.Record
	// right and target are set while evaluating a JOIN condition: names
	// qualified with target resolve against right.
	right  source.Record
	target string
	// qualified is set when rows carry "source.field" copies of their
	// fields, which is the case whenever the query joins.
	qualified bool
	// data holds the member rows when row is a group record.
	data    []source.Record
	grouped bool
}

func rowScope(row source.Record) *scope {
	return &scope{row: row}
}

func groupScope(row source.Record) *scope {
	data, _ := row[pipeline.GroupDataField].([]source.Record)
	return &scope{row: row, data: data, grouped: true}
}

// lookup resolves a column. An exact field wins, then names qualified with
// the join target resolve against right. Any other qualifier is dropped only
// for single-source rows; joined rows never fall back to the bare column, so
// users.id cannot pick up orders.id. Unknown columns are nil.
func (s *scope) lookup(name string) interface{} {
	if v, ok := s.row[name]; ok {
		return v
	}
	if v, ok := s.right[name]; ok {
		return v
	}
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return nil
	}
	qual, col := name[:i], name[i+1:]
	if s.right != nil && qual == s.target {
		return s.right[col]
	}
	if s.qualified {
		return nil
	}
	if v, ok := s.row[col]; ok {
		return v
	}
	return s.right[col]
}

var aggregates = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

var scalars = map[string]int{
	"UPPER":    1,
	"LOWER":    1,
	"LENGTH":   1,
	"ABS":      1,
	"COALESCE": -1,
}

// evaluator computes expression values. It caches compiled LIKE and REGEXP
// patterns and is safe for concurrent use.
type evaluator struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func newEvaluator() *evaluator {
	return &evaluator{patterns: make(map[string]*regexp.Regexp)}
}

func (ev *evaluator) eval(n ast.Node, s *scope) (interface{}, error) {
	switch n := n.(type) {
	case *ast.Literal:
		return n.Value(), nil
	case *ast.Identifier:
		if n.Name == "*" || strings.HasSuffix(n.Name, ".*") {
			return nil, unsupported("'%s' outside COUNT(*) and the select list", n.Name)
		}
		return s.lookup(n.Name), nil
	case *ast.Group:
		return ev.eval(n.Inner, s)
	case *ast.List:
		vals := make([]interface{}, len(n.Elements))
		for i, e := range n.Elements {
			v, err := ev.eval(e, s)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return vals, nil
	case *ast.Unary:
		return ev.unary(n, s)
	case *ast.Binary:
		return ev.binary(n, s)
	case *ast.Call:
		return ev.call(n, s)
	default:
		return nil, unsupported("expression %s", n)
	}
}

func (ev *evaluator) unary(n *ast.Unary, s *scope) (interface{}, error) {
	op, err := ast.LookupOperator(n.Operator)
	if err != nil {
		return nil, err
	}
	v, err := ev.eval(n.Operand, s)
	if err != nil || v == nil {
		return nil, err
	}
	switch op {
	case ast.OpNot:
		return !truthy(v), nil
	case ast.OpSubtract, ast.OpAdd:
		f, ok := pipeline.ToFloat(v)
		if !ok {
			return nil, unsupported("%s on %T", n.Operator, v)
		}
		if op == ast.OpSubtract {
			return -f, nil
		}
		return f, nil
	default:
		return nil, unsupported("prefix operator %s", n.Operator)
	}
}

func (ev *evaluator) binary(n *ast.Binary, s *scope) (interface{}, error) {
	op, err := ast.LookupOperator(n.Operator)
	if err != nil {
		return nil, err
	}

	left, err := ev.eval(n.Left, s)
	if err != nil {
		return nil, err
	}
	switch op {
	case ast.OpAnd:
		if !truthy(left) {
			return false, nil
		}
	case ast.OpOr:
		if truthy(left) {
			return true, nil
		}
	}
	right, err := ev.eval(n.Right, s)
	if err != nil {
		return nil, err
	}

	switch op {
	case ast.OpAnd, ast.OpOr:
		return truthy(right), nil
	case ast.OpXor:
		return truthy(left) != truthy(right), nil
	case ast.OpIs:
		return is(left, right), nil
	case ast.OpIsNot:
		return !is(left, right), nil
	}

	if left == nil || right == nil {
		if op.IsComparison() {
			return false, nil
		}
		return nil, nil
	}

	switch op {
	case ast.OpEqual:
		return pipeline.Equal(left, right), nil
	case ast.OpNotEqual:
		return !pipeline.Equal(left, right), nil
	case ast.OpLess:
		return pipeline.Compare(left, right) < 0, nil
	case ast.OpGreater:
		return pipeline.Compare(left, right) > 0, nil
	case ast.OpLessEqual:
		return pipeline.Compare(left, right) <= 0, nil
	case ast.OpGreaterEqual:
		return pipeline.Compare(left, right) >= 0, nil
	case ast.OpLike, ast.OpNotLike:
		re, err := ev.pattern(likePattern(toString(right)))
		if err != nil {
			return nil, err
		}
		return re.MatchString(toString(left)) == (op == ast.OpLike), nil
	case ast.OpRegexp, ast.OpNotRegexp:
		re, err := ev.pattern(toString(right))
		if err != nil {
			return nil, err
		}
		return re.MatchString(toString(left)) == (op == ast.OpRegexp), nil
	case ast.OpIn, ast.OpNotIn:
		found := false
		for _, candidate := range asList(right) {
			if candidate != nil && pipeline.Equal(left, candidate) {
				found = true
				break
			}
		}
		return found == (op == ast.OpIn), nil
	case ast.OpBetween, ast.OpNotBetween:
		bounds := asList(right)
		if len(bounds) != 2 {
			return nil, unsupported("%s needs a lower and an upper bound", n.Operator)
		}
		in := pipeline.Compare(left, bounds[0]) >= 0 && pipeline.Compare(left, bounds[1]) <= 0
		return in == (op == ast.OpBetween), nil
	case ast.OpConcat:
		return toString(left) + toString(right), nil
	default:
		return arithmetic(op, n.Operator, left, right)
	}
}

func arithmetic(op ast.Operator, text string, left, right interface{}) (interface{}, error) {
	x, ok1 := pipeline.ToFloat(left)
	y, ok2 := pipeline.ToFloat(right)
	if !ok1 || !ok2 {
		return nil, unsupported("%s on %T and %T", text, left, right)
	}
	var r float64
	switch op {
	case ast.OpAdd:
		r = x + y
	case ast.OpSubtract:
		r = x - y
	case ast.OpMultiply:
		r = x * y
	case ast.OpDivide:
		if y == 0 {
			return nil, nil
		}
		r = x / y
	case ast.OpModulo:
		if y == 0 {
			return nil, nil
		}
		r = math.Mod(x, y)
	case ast.OpPower:
		r = math.Pow(x, y)
	case ast.OpBitAnd:
		r = float64(int64(x) & int64(y))
	default:
		return nil, unsupported("operator %s", text)
	}
	// non-finite results are NULL
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, nil
	}
	return r, nil
}

func (ev *evaluator) call(n *ast.Call, s *scope) (interface{}, error) {
	name := strings.ToUpper(n.Name)
	if aggregates[name] {
		return ev.aggregate(name, n, s)
	}

	args := make([]interface{}, len(n.Argument.Elements))
	for i, a := range n.Argument.Elements {
		v, err := ev.eval(a, s)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if want, ok := scalars[name]; !ok {
		return nil, unsupported("function %s", n.Name)
	} else if want >= 0 && len(args) != want {
		return nil, unsupported("%s takes %d argument(s), got %d", name, want, len(args))
	}

	if name == "COALESCE" {
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	}
	v := args[0]
	if v == nil {
		return nil, nil
	}
	switch name {
	case "UPPER":
		return strings.ToUpper(toString(v)), nil
	case "LOWER":
		return strings.ToLower(toString(v)), nil
	case "LENGTH":
		return float64(utf8.RuneCountInString(toString(v))), nil
	default: // ABS
		f, ok := pipeline.ToFloat(v)
		if !ok {
			return nil, unsupported("ABS of %T", v)
		}
		return math.Abs(f), nil
	}
}

func (ev *evaluator) aggregate(name string, n *ast.Call, s *scope) (interface{}, error) {
	if !s.grouped {
		return nil, unsupported("aggregate %s outside a group", name)
	}
	if len(n.Argument.Elements) != 1 {
		return nil, unsupported("%s takes one argument", name)
	}
	arg := n.Argument.Elements[0]
	if id, ok := arg.(*ast.Identifier); ok && id.Name == "*" {
		if name != "COUNT" {
			return nil, unsupported("%s(*)", name)
		}
		return float64(len(s.data)), nil
	}

	var vals []interface{}
	for _, member := range s.data {
		v, err := ev.eval(arg, &scope{row: member, qualified: s.qualified})
		if err != nil {
			return nil, err
		}
		if v != nil {
			vals = append(vals, v)
		}
	}

	switch name {
	case "COUNT":
		return float64(len(vals)), nil
	case "MIN", "MAX":
		if len(vals) == 0 {
			return nil, nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c := pipeline.Compare(v, best)
			if (name == "MIN" && c < 0) || (name == "MAX" && c > 0) {
				best = v
			}
		}
		return best, nil
	}

	if len(vals) == 0 {
		return nil, nil
	}
	var sum float64
	for _, v := range vals {
		f, ok := pipeline.ToFloat(v)
		if !ok {
			return nil, unsupported("%s of %T", name, v)
		}
		sum += f
	}
	if name == "AVG" {
		return sum / float64(len(vals)), nil
	}
	return sum, nil
}

func (ev *evaluator) pattern(expr string) (*regexp.Regexp, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if re, ok := ev.patterns[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "pattern %q", expr)
	}
	ev.patterns[expr] = re
	return re, nil
}

// likePattern translates a SQL LIKE pattern into an anchored, case-insensitive
// regular expression.
func likePattern(like string) string {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range like {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

func is(left, right interface{}) bool {
	switch r := right.(type) {
	case nil:
		return left == nil
	case bool:
		return left != nil && truthy(left) == r
	default:
		return left != nil && pipeline.Equal(left, right)
	}
}

func asList(v interface{}) []interface{} {
	if l, ok := v.([]interface{}); ok {
		return l
	}
	return []interface{}{v}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := pipeline.ToFloat(v); ok {
		return f != 0
	}
	return true
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func containsAggregate(n ast.Node) bool {
	found := false
	walk(n, func(n ast.Node) bool {
		if c, ok := n.(*ast.Call); ok && aggregates[strings.ToUpper(c.Name)] {
			found = true
		}
		return !found
	})
	return found
}

// walk calls fn on n and, while fn returns true, on its children.
func walk(n ast.Node, fn func(ast.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *ast.Unary:
		walk(n.Operand, fn)
	case *ast.Binary:
		walk(n.Left, fn)
		walk(n.Right, fn)
	case *ast.Call:
		walk(n.Argument, fn)
	case *ast.List:
		for _, e := range n.Elements {
			walk(e, fn)
		}
	case *ast.Group:
		walk(n.Inner, fn)
	case *ast.Clause:
		walk(n.Body, fn)
	}
}

// check rejects, before any row is read, expressions the evaluator would fail
// on whatever the data.
func check(n ast.Node, allowAggregates bool) error {
	var err error
	walk(n, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.TrailingKeywords:
			err = unsupported("keywords %s inside an expression", n)
		case *ast.Clause:
			err = unsupported("nested %s", n.Keyword)
		case *ast.Unary:
			_, err = ast.LookupOperator(n.Operator)
		case *ast.Binary:
			_, err = ast.LookupOperator(n.Operator)
		case *ast.Identifier:
			if n.Name == "*" || strings.HasSuffix(n.Name, ".*") {
				err = unsupported("'%s' outside COUNT(*)", n.Name)
			}
		case *ast.Call:
			name := strings.ToUpper(n.Name)
			if _, ok := scalars[name]; ok {
				return true
			}
			if !aggregates[name] {
				err = unsupported("function %s", n.Name)
				return false
			}
			if !allowAggregates {
				err = unsupported("aggregate %s not allowed here", name)
				return false
			}
			args := n.Argument.Elements
			if len(args) != 1 {
				err = unsupported("%s takes one argument", name)
				return false
			}
			if id, ok := args[0].(*ast.Identifier); ok && id.Name == "*" {
				if name != "COUNT" {
					err = unsupported("%s(*)", name)
				}
				return false
			}
			err = check(args[0], false)
			return false
		}
		return err == nil
	})
	return err
}
