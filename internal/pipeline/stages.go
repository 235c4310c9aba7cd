package pipeline

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"modernc.org/mathutil"

	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

// GroupDataField holds the member rows of a group record.
const GroupDataField = "data"

// Predicate filters rows for the where stage and group records for having.
type Predicate func(row source.Record) (bool, error)

// JoinPredicate decides whether an accumulated row and a target row match.
type JoinPredicate func(left, right source.Record) (bool, error)

type JoinType string

const (
	InnerJoin JoinType = "inner"
	LeftJoin  JoinType = "left"
	RightJoin JoinType = "right"
)

// JoinSpec is one entry of the join parameter. With Qualify set, every
// target field is also stored as "Target.field", so same-named columns of
// different sources stay reachable after the merge.
type JoinSpec struct {
	Target  string
	Type    JoinType
	On      JoinPredicate
	Qualify bool
}

// From replaces the working set with the rows of the source named by the
// from parameter.
func From(_ []source.Record, state *ProcessState, next Next) ([]source.Record, error) {
	name, err := stringParam(state, FromParam)
	if err != nil {
		return nil, err
	}
	rows, err := state.env.Lookup(name)
	if err != nil {
		return nil, err
	}
	state.Track(FromParam)
	return next(rows)
}

// Join folds every JoinSpec of the join parameter, in order, into the
// working set. Each spec joins against the result of the previous one.
func Join(rows []source.Record, state *ProcessState, next Next) ([]source.Record, error) {
	v, ok := state.Parameter(JoinParam)
	if !ok {
		return nil, missing(JoinParam, "")
	}
	var specs []JoinSpec
	switch j := v.(type) {
	case []JoinSpec:
		specs = j
	case JoinSpec:
		specs = []JoinSpec{j}
	default:
		return nil, missing(JoinParam, fmt.Sprintf("want []JoinSpec, got %T", v))
	}

	targets := make([][]source.Record, len(specs))
	for i, spec := range specs {
		if spec.Target == "" {
			return nil, missing(JoinParam, fmt.Sprintf("join %d has no target", i))
		}
		if spec.On == nil {
			return nil, missing(JoinParam, fmt.Sprintf("join %d on %q has no predicate", i, spec.Target))
		}
		switch spec.Type {
		case InnerJoin, LeftJoin, RightJoin:
		default:
			return nil, errors.WithStack(&ParameterError{
				Err:    ErrUnsupportedOperation,
				Param:  JoinParam,
				Reason: fmt.Sprintf("join type %q", spec.Type),
			})
		}
		target, err := state.env.Lookup(spec.Target)
		if err != nil {
			return nil, err
		}
		if spec.Qualify {
			target = Qualify(spec.Target, target)
		}
		targets[i] = target
	}

	acc := rows
	for i, spec := range specs {
		var err error
		switch spec.Type {
		case InnerJoin:
			acc, err = innerJoin(acc, targets[i], spec.On)
		case LeftJoin:
			acc, err = leftJoin(acc, targets[i], spec.On)
		case RightJoin:
			acc, err = rightJoin(acc, targets[i], spec.On)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "join %s", spec.Target)
		}
	}
	state.Track(JoinParam)
	return next(acc)
}

func innerJoin(left, right []source.Record, on JoinPredicate) ([]source.Record, error) {
	var out []source.Record
	for _, l := range left {
		for _, r := range right {
			ok, err := on(l, r)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, merge(l, r))
			}
		}
	}
	return out, nil
}

// leftJoin emits every left row once per match, or alone when nothing matched.
func leftJoin(left, right []source.Record, on JoinPredicate) ([]source.Record, error) {
	var out []source.Record
	for _, l := range left {
		matched := false
		for _, r := range right {
			ok, err := on(l, r)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = true
				out = append(out, merge(l, r))
			}
		}
		if !matched {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

// rightJoin is leftJoin driven by the target rows. Accumulated fields win on
// a match; the predicate still sees (accumulated, target).
func rightJoin(left, right []source.Record, on JoinPredicate) ([]source.Record, error) {
	var out []source.Record
	for _, r := range right {
		matched := false
		for _, l := range left {
			ok, err := on(l, r)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = true
				out = append(out, merge(r, l))
			}
		}
		if !matched {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// Qualify returns copies of rows in which every field is also present under
// name + "." + field.
func Qualify(name string, rows []source.Record) []source.Record {
	out := make([]source.Record, len(rows))
	for i, row := range rows {
		rec := make(source.Record, 2*len(row))
		for k, v := range row {
			rec[k] = v
			rec[name+"."+k] = v
		}
		out[i] = rec
	}
	return out
}

// merge copies a then b into a new record; b's fields override.
func merge(a, b source.Record) source.Record {
	out := make(source.Record, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Where keeps the rows the where predicate accepts.
func Where(rows []source.Record, state *ProcessState, next Next) ([]source.Record, error) {
	pred, err := predicateParam(state, WhereParam)
	if err != nil {
		return nil, err
	}
	out, err := filter(rows, pred)
	if err != nil {
		return nil, errors.Wrap(err, WhereParam)
	}
	state.Track(WhereParam)
	return next(out)
}

func filter(rows []source.Record, pred Predicate) ([]source.Record, error) {
	out := make([]source.Record, 0, len(rows))
	for _, row := range rows {
		ok, err := pred(row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// GroupBy collapses rows sharing a value of the groupBy field into one record
// {<field>: value, data: [rows without the field]}. Groups keep the order in
// which their value was first seen. The optional having predicate filters the
// group records.
func GroupBy(rows []source.Record, state *ProcessState, next Next) ([]source.Record, error) {
	key, err := stringParam(state, GroupByParam)
	if err != nil {
		return nil, err
	}
	var having Predicate
	if state.HasParameter(HavingParam) {
		if having, err = predicateParam(state, HavingParam); err != nil {
			return nil, err
		}
	}

	var (
		values []interface{}
		groups [][]source.Record
	)
	for _, row := range rows {
		value := row[key]
		i := indexOf(values, value)
		if i < 0 {
			values = append(values, value)
			groups = append(groups, nil)
			i = len(values) - 1
		}
		groups[i] = append(groups[i], without(row, key))
	}

	out := make([]source.Record, len(values))
	for i, value := range values {
		out[i] = source.Record{key: value, GroupDataField: groups[i]}
	}
	if having != nil {
		if out, err = filter(out, having); err != nil {
			return nil, errors.Wrap(err, HavingParam)
		}
	}
	state.Track(GroupByParam)
	return next(out)
}

func indexOf(values []interface{}, v interface{}) int {
	for i, seen := range values {
		if Equal(seen, v) {
			return i
		}
	}
	return -1
}

func without(row source.Record, key string) source.Record {
	out := make(source.Record, len(row))
	for k, v := range row {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// OrderBy sorts rows ascending by the orderBy field. Ties keep their order.
func OrderBy(rows []source.Record, state *ProcessState, next Next) ([]source.Record, error) {
	key, err := stringParam(state, OrderByParam)
	if err != nil {
		return nil, err
	}
	out := append([]source.Record(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return Compare(out[i][key], out[j][key]) < 0
	})
	state.Track(OrderByParam)
	return next(out)
}

// Limit keeps the first limit rows.
func Limit(rows []source.Record, state *ProcessState, next Next) ([]source.Record, error) {
	n, err := countParam(state, LimitParam)
	if err != nil {
		return nil, err
	}
	state.Track(LimitParam)
	return next(rows[:mathutil.Min(n, len(rows))])
}

// Offset drops the first offset rows.
func Offset(rows []source.Record, state *ProcessState, next Next) ([]source.Record, error) {
	n, err := countParam(state, OffsetParam)
	if err != nil {
		return nil, err
	}
	state.Track(OffsetParam)
	return next(rows[mathutil.Min(n, len(rows)):])
}

// Select projects every row onto the listed fields. Fields a row lacks are
// present with a nil value.
func Select(rows []source.Record, state *ProcessState, next Next) ([]source.Record, error) {
	v, ok := state.Parameter(SelectParam)
	if !ok {
		return nil, missing(SelectParam, "")
	}
	fields, ok := v.([]string)
	if !ok {
		return nil, missing(SelectParam, fmt.Sprintf("want []string, got %T", v))
	}
	out := make([]source.Record, len(rows))
	for i, row := range rows {
		projected := make(source.Record, len(fields))
		for _, f := range fields {
			projected[f] = row[f]
		}
		out[i] = projected
	}
	state.Track(SelectParam)
	return next(out)
}

func stringParam(state *ProcessState, name string) (string, error) {
	v, ok := state.Parameter(name)
	if !ok {
		return "", missing(name, "")
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", missing(name, fmt.Sprintf("want a non-empty string, got %T", v))
	}
	return s, nil
}

func predicateParam(state *ProcessState, name string) (Predicate, error) {
	v, ok := state.Parameter(name)
	if !ok {
		return nil, missing(name, "")
	}
	switch p := v.(type) {
	case Predicate:
		if p != nil {
			return p, nil
		}
	case func(source.Record) (bool, error):
		if p != nil {
			return p, nil
		}
	}
	return nil, missing(name, fmt.Sprintf("want a Predicate, got %T", v))
}

func countParam(state *ProcessState, name string) (int, error) {
	v, ok := state.Parameter(name)
	if !ok {
		return 0, missing(name, "")
	}
	var n int
	switch c := v.(type) {
	case int:
		n = c
	case int64:
		n = int(c)
	default:
		return 0, missing(name, fmt.Sprintf("want an integer, got %T", v))
	}
	if n < 0 {
		return 0, missing(name, fmt.Sprintf("negative count %d", n))
	}
	return n, nil
}
