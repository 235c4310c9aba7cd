package engine

import (
	"sort"
	"strings"

	"github.com/kevin-cantwell/sqlpipe/internal/ast"
	"github.com/kevin-cantwell/sqlpipe/internal/pipeline"
	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

// Stage names of the pipes the engine adds on top of the pipeline stages.
const (
	collapseStage = "collapse"
	projectStage  = "project"
	distinctStage = "distinct"
	sortStage     = "sort"
	qualifyStage  = "qualify"
	wildcardStage = "wildcard"
)

var joinTypes = map[string]pipeline.JoinType{
	ast.JOIN:       pipeline.InnerJoin,
	ast.INNER_JOIN: pipeline.InnerJoin,
	ast.LEFT_JOIN:  pipeline.LeftJoin,
	ast.RIGHT_JOIN: pipeline.RightJoin,
}

// Plan is a statement compiled into a pipeline and its parameters.
type Plan struct {
	// Stages names the pipes in evaluation order.
	Stages []string
	// Columns lists the output columns in order; nil for SELECT *.
	Columns []string

	pipeline *pipeline.Pipeline
	params   map[string]interface{}
}

func (p *Plan) String() string {
	return strings.Join(p.Stages, " -> ")
}

// Run executes the plan with a fresh ProcessState.
func (p *Plan) Run() ([]source.Record, *pipeline.ProcessState, error) {
	state := p.pipeline.NewState(p.params, p.Columns...)
	rows, err := p.pipeline.Run(nil, state)
	if err != nil {
		return nil, state, err
	}
	return rows, state, nil
}

type selectItem struct {
	expr ast.Node
	name string
}

type joinClause struct {
	target string
	typ    pipeline.JoinType
	on     ast.Node
}

type orderKey struct {
	field string
	desc  bool
}

// query is a SELECT statement sorted out by clause.
type query struct {
	from     string
	joins    []joinClause
	where    ast.Node
	groupBy  string
	having   ast.Node
	orderBy  []orderKey
	limit    ast.Node
	offset   ast.Node
	items    []selectItem
	wildcard bool
	// wildcardOf is t for SELECT t.*
	wildcardOf string
	distinct   bool
}

func analyze(stmt ast.Statement) (*query, error) {
	if len(stmt.Clauses) == 0 || stmt.Clauses[0].Keyword != ast.SELECT {
		return nil, unsupported("statement must start with SELECT")
	}
	q := &query{}
	seen := make(map[string]bool)

	for i := 0; i < len(stmt.Clauses); i++ {
		c := stmt.Clauses[i]
		typ, isJoin := joinTypes[c.Keyword]
		if !isJoin && seen[c.Keyword] {
			return nil, unsupported("repeated %s", c.Keyword)
		}
		seen[c.Keyword] = true
		body := ast.Reassociate(c.Body)

		var err error
		if isJoin {
			if i, err = q.join(stmt.Clauses, i, typ); err != nil {
				return nil, err
			}
			continue
		}

		switch c.Keyword {
		case ast.SELECT:
			err = q.selectList(elements(body))
		case ast.FROM:
			q.from, err = sourceName(c.Keyword, body)
		case ast.ON:
			err = unsupported("ON without JOIN")
		case ast.WHERE:
			q.where = body
			if err = nonEmpty(c.Keyword, body); err == nil {
				err = check(body, false)
			}
		case ast.GROUP_BY:
			q.groupBy, err = fieldOf(c.Keyword, body)
		case ast.HAVING:
			q.having = body
			if err = nonEmpty(c.Keyword, body); err == nil {
				err = check(body, true)
			}
		case ast.ORDER_BY:
			err = q.orderList(elements(body))
		case ast.LIMIT:
			q.limit = body
		case ast.OFFSET:
			q.offset = body
		default:
			err = unsupported("%s statements", c.Keyword)
		}
		if err != nil {
			return nil, err
		}
	}

	if q.from == "" {
		return nil, unsupported("SELECT without FROM")
	}
	if q.wildcardOf != "" && !q.isSource(q.wildcardOf) {
		return nil, unsupported("%s.*: no source named %s", q.wildcardOf, q.wildcardOf)
	}
	return q, nil
}

// join reads the join clause at clauses[i] and the ON clause that must follow
// it, returning the index of the ON clause.
func (q *query) join(clauses []*ast.Clause, i int, typ pipeline.JoinType) (int, error) {
	c := clauses[i]
	target, err := sourceName(c.Keyword, ast.Reassociate(c.Body))
	if err != nil {
		return i, err
	}
	if i+1 >= len(clauses) || clauses[i+1].Keyword != ast.ON {
		return i, unsupported("%s %s without ON", c.Keyword, target)
	}
	on := ast.Reassociate(clauses[i+1].Body)
	if err := nonEmpty(ast.ON, on); err != nil {
		return i, err
	}
	if err := check(on, false); err != nil {
		return i, err
	}
	q.joins = append(q.joins, joinClause{target: target, typ: typ, on: on})
	return i + 1, nil
}

func (q *query) isSource(name string) bool {
	if name == q.from {
		return true
	}
	for _, j := range q.joins {
		if j.target == name {
			return true
		}
	}
	return false
}

func (q *query) sources() []string {
	names := []string{q.from}
	for _, j := range q.joins {
		names = append(names, j.target)
	}
	return names
}

// field maps a GROUP BY or ORDER BY column to a record field. Joined rows
// keep "source.field" copies, so qualifiers only drop for a single source.
func (q *query) field(name string) string {
	if len(q.joins) > 0 {
		return name
	}
	return unqualified(name)
}

func (q *query) selectList(elems []ast.Node) error {
	names := make(map[string]bool)
	add := func(n ast.Node) error {
		name := columnName(n)
		if names[name] {
			return unsupported("duplicate column %q", name)
		}
		names[name] = true
		q.items = append(q.items, selectItem{expr: n, name: name})
		return nil
	}
	for i := 0; i < len(elems); i++ {
		switch n := elems[i].(type) {
		case *ast.TrailingKeywords:
			for _, w := range n.Words {
				switch w {
				case "DISTINCT":
					if len(q.items) > 0 || q.wildcard {
						return unsupported("DISTINCT after the first column")
					}
					q.distinct = true
				case "ALL":
				case "AS":
					if len(q.items) == 0 || i+1 >= len(elems) {
						return unsupported("AS without a column and an alias")
					}
					alias, ok := aliasOf(elems[i+1])
					if !ok {
						return unsupported("alias %s", elems[i+1])
					}
					i++
					item := &q.items[len(q.items)-1]
					delete(names, item.name)
					item.name = alias
					if names[alias] {
						return unsupported("duplicate column %q", alias)
					}
					names[alias] = true
				default:
					return unsupported("%s in SELECT", w)
				}
			}
		case *ast.Identifier:
			if n.Name == "*" || strings.HasSuffix(n.Name, ".*") {
				if q.wildcard {
					return unsupported("more than one wildcard")
				}
				q.wildcard = true
				q.wildcardOf = strings.TrimSuffix(n.Name, ".*")
				if q.wildcardOf == "*" {
					q.wildcardOf = ""
				}
				continue
			}
			if err := add(n); err != nil {
				return err
			}
		default:
			if err := check(n, true); err != nil {
				return err
			}
			if err := add(n); err != nil {
				return err
			}
		}
	}
	if q.wildcard && (len(q.items) > 0 || q.distinct) {
		return unsupported("* mixed with other columns or DISTINCT")
	}
	if !q.wildcard && len(q.items) == 0 {
		return unsupported("empty SELECT")
	}
	return nil
}

func (q *query) orderList(elems []ast.Node) error {
	for _, e := range elems {
		switch n := e.(type) {
		case *ast.TrailingKeywords:
			if len(q.orderBy) == 0 || len(n.Words) != 1 {
				return unsupported("ORDER BY %s", n)
			}
			switch n.Words[0] {
			case "ASC":
			case "DESC":
				q.orderBy[len(q.orderBy)-1].desc = true
			default:
				return unsupported("ORDER BY %s", n)
			}
		default:
			field, err := fieldOf(ast.ORDER_BY, n)
			if err != nil {
				return err
			}
			q.orderBy = append(q.orderBy, orderKey{field: field})
		}
	}
	if len(q.orderBy) == 0 {
		return unsupported("empty ORDER BY")
	}
	return nil
}

// grouped reports whether rows become group records before projection.
func (q *query) grouped() bool {
	if q.groupBy != "" || q.having != nil {
		return true
	}
	for _, item := range q.items {
		if containsAggregate(item.expr) {
			return true
		}
	}
	return false
}

func (q *query) columns() []string {
	if q.wildcard {
		return nil
	}
	cols := make([]string, len(q.items))
	for i, item := range q.items {
		cols[i] = item.name
	}
	return cols
}

// Plan compiles a SELECT statement. Stages run in the order from, join,
// where, group by, projection, order by, offset, limit, select.
func (e *Engine) Plan(stmt ast.Statement) (*Plan, error) {
	q, err := analyze(stmt)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Columns:  q.columns(),
		pipeline: pipeline.New(e.env),
		params:   make(map[string]interface{}),
	}
	add := func(name string, pipe pipeline.Pipe) {
		plan.Stages = append(plan.Stages, name)
		plan.pipeline.Add(pipe)
	}

	plan.params[pipeline.FromParam] = q.from
	add(pipeline.FromParam, pipeline.From)

	joined := len(q.joins) > 0
	scoped := func(mk func(source.Record) *scope) func(source.Record) *scope {
		if !joined {
			return mk
		}
		return func(row source.Record) *scope {
			s := mk(row)
			s.qualified = true
			return s
		}
	}

	if joined {
		add(qualifyStage, qualify(q.from))
		specs := make([]pipeline.JoinSpec, len(q.joins))
		for i, j := range q.joins {
			specs[i] = pipeline.JoinSpec{Target: j.target, Type: j.typ, On: e.joinPredicate(j), Qualify: true}
		}
		plan.params[pipeline.JoinParam] = specs
		add(pipeline.JoinParam, pipeline.Join)
	}

	if q.where != nil {
		plan.params[pipeline.WhereParam] = e.predicate(q.where, scoped(rowScope))
		add(pipeline.WhereParam, pipeline.Where)
	}

	grouped := q.grouped()
	if q.having != nil {
		plan.params[pipeline.HavingParam] = e.predicate(q.having, scoped(groupScope))
	}
	switch {
	case q.groupBy != "":
		plan.params[pipeline.GroupByParam] = q.field(q.groupBy)
		add(pipeline.GroupByParam, pipeline.GroupBy)
	case grouped:
		add(collapseStage, collapse)
	}

	if !q.wildcard {
		mkScope := rowScope
		if grouped {
			mkScope = groupScope
		}
		add(projectStage, e.project(q.items, scoped(mkScope)))
		if q.distinct {
			add(distinctStage, distinct(plan.Columns))
		}
	}

	keys := make([]orderKey, len(q.orderBy))
	for i, k := range q.orderBy {
		keys[i] = orderKey{field: q.field(k.field), desc: k.desc}
	}
	switch {
	case len(keys) == 1 && !keys[0].desc:
		plan.params[pipeline.OrderByParam] = keys[0].field
		add(pipeline.OrderByParam, pipeline.OrderBy)
	case len(keys) > 0:
		add(sortStage, sortBy(keys))
	}

	if q.offset != nil {
		n, err := e.count(ast.OFFSET, q.offset)
		if err != nil {
			return nil, err
		}
		plan.params[pipeline.OffsetParam] = n
		add(pipeline.OffsetParam, pipeline.Offset)
	}
	if q.limit != nil {
		n, err := e.count(ast.LIMIT, q.limit)
		if err != nil {
			return nil, err
		}
		plan.params[pipeline.LimitParam] = n
		add(pipeline.LimitParam, pipeline.Limit)
	}

	switch {
	case !q.wildcard:
		plan.params[pipeline.SelectParam] = plan.Columns
		add(pipeline.SelectParam, pipeline.Select)
	case joined:
		add(wildcardStage, expand(q.wildcardOf, q.sources()))
	}
	return plan, nil
}

func (e *Engine) predicate(expr ast.Node, mkScope func(source.Record) *scope) pipeline.Predicate {
	return func(row source.Record) (bool, error) {
		v, err := e.eval.eval(expr, mkScope(row))
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	}
}

func (e *Engine) joinPredicate(j joinClause) pipeline.JoinPredicate {
	return func(left, right source.Record) (bool, error) {
		v, err := e.eval.eval(j.on, &scope{row: left, right: right, target: j.target, qualified: true})
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	}
}

// count evaluates a LIMIT or OFFSET operand. It must be a constant.
func (e *Engine) count(keyword string, expr ast.Node) (int, error) {
	if err := check(expr, false); err != nil {
		return 0, err
	}
	v, err := e.eval.eval(expr, rowScope(nil))
	if err != nil {
		return 0, err
	}
	f, ok := pipeline.ToFloat(v)
	if !ok || f != float64(int(f)) {
		return 0, unsupported("%s %s: not an integer", keyword, expr)
	}
	return int(f), nil
}

// project evaluates the select list onto each row. The source fields are kept
// so ORDER BY can still see them; the select stage drops them at the end.
func (e *Engine) project(items []selectItem, mkScope func(source.Record) *scope) pipeline.Pipe {
	return func(rows []source.Record, state *pipeline.ProcessState, next pipeline.Next) ([]source.Record, error) {
		out := make([]source.Record, len(rows))
		for i, row := range rows {
			s := mkScope(row)
			rec := row.Clone()
			for _, item := range items {
				v, err := e.eval.eval(item.expr, s)
				if err != nil {
					return nil, err
				}
				rec[item.name] = v
			}
			out[i] = rec
		}
		state.Track(projectStage)
		return next(out)
	}
}

// qualify adds a "name.field" copy of every field, so the rows of the FROM
// source keep their qualified names once joins merge other sources in.
func qualify(name string) pipeline.Pipe {
	return func(rows []source.Record, state *pipeline.ProcessState, next pipeline.Next) ([]source.Record, error) {
		out := pipeline.Qualify(name, rows)
		state.Track(qualifyStage)
		return next(out)
	}
}

// expand narrows joined rows for a wildcard: * keeps the merged fields without
// their qualified copies, t.* keeps the fields of source t under their bare
// names.
func expand(qualifier string, sources []string) pipeline.Pipe {
	return func(rows []source.Record, state *pipeline.ProcessState, next pipeline.Next) ([]source.Record, error) {
		out := make([]source.Record, len(rows))
		for i, row := range rows {
			rec := make(source.Record, len(row))
			for k, v := range row {
				src, col, ok := splitQualified(k, sources)
				switch {
				case qualifier == "" && !ok:
					rec[k] = v
				case qualifier != "" && ok && src == qualifier:
					rec[col] = v
				}
			}
			out[i] = rec
		}
		state.Track(wildcardStage)
		return next(out)
	}
}

func splitQualified(field string, sources []string) (string, string, bool) {
	for _, src := range sources {
		if strings.HasPrefix(field, src+".") {
			return src, field[len(src)+1:], true
		}
	}
	return "", "", false
}

// collapse turns the whole working set into a single group record, for
// aggregates without GROUP BY.
func collapse(rows []source.Record, state *pipeline.ProcessState, next pipeline.Next) ([]source.Record, error) {
	group := source.Record{pipeline.GroupDataField: append([]source.Record{}, rows...)}
	out := []source.Record{group}
	if having, ok := state.Parameter(pipeline.HavingParam); ok {
		having, ok := having.(pipeline.Predicate)
		if !ok {
			return nil, unsupported("having parameter of type %T", having)
		}
		keep, err := having(group)
		if err != nil {
			return nil, err
		}
		if !keep {
			out = nil
		}
	}
	state.Track(collapseStage)
	return next(out)
}

// distinct keeps the first row of every distinct combination of cols.
func distinct(cols []string) pipeline.Pipe {
	return func(rows []source.Record, state *pipeline.ProcessState, next pipeline.Next) ([]source.Record, error) {
		var out []source.Record
	rows:
		for _, row := range rows {
			for _, kept := range out {
				if sameValues(row, kept, cols) {
					continue rows
				}
			}
			out = append(out, row)
		}
		state.Track(distinctStage)
		return next(out)
	}
}

func sameValues(a, b source.Record, cols []string) bool {
	for _, c := range cols {
		if pipeline.Compare(a[c], b[c]) != 0 {
			return false
		}
	}
	return true
}

// sortBy orders by several keys, each ascending or descending. Ties keep
// their order.
func sortBy(keys []orderKey) pipeline.Pipe {
	return func(rows []source.Record, state *pipeline.ProcessState, next pipeline.Next) ([]source.Record, error) {
		out := append([]source.Record(nil), rows...)
		sort.SliceStable(out, func(i, j int) bool {
			for _, k := range keys {
				c := pipeline.Compare(out[i][k.field], out[j][k.field])
				if c == 0 {
					continue
				}
				if k.desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
		state.Track(pipeline.OrderByParam)
		return next(out)
	}
}

func elements(body ast.Node) []ast.Node {
	if l, ok := body.(*ast.List); ok {
		return l.Elements
	}
	return []ast.Node{body}
}

func nonEmpty(keyword string, body ast.Node) error {
	if l, ok := body.(*ast.List); ok && len(l.Elements) == 0 {
		return unsupported("empty %s", keyword)
	}
	return nil
}

func sourceName(keyword string, body ast.Node) (string, error) {
	id, ok := body.(*ast.Identifier)
	if !ok || strings.Contains(id.Name, "*") {
		return "", unsupported("%s %s: expected a single source name", keyword, body)
	}
	return id.Name, nil
}

// fieldOf reads a GROUP BY or ORDER BY key. query.field resolves it.
func fieldOf(keyword string, body ast.Node) (string, error) {
	id, ok := body.(*ast.Identifier)
	if !ok || id.Name == "*" || strings.HasSuffix(id.Name, ".*") {
		return "", unsupported("%s %s: expected a column name", keyword, body)
	}
	return id.Name, nil
}

func unqualified(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func aliasOf(n ast.Node) (string, bool) {
	switch n := n.(type) {
	case *ast.Identifier:
		if n.Name != "*" {
			return n.Name, true
		}
	case *ast.Literal:
		if n.Kind == ast.StringLiteral {
			return ast.Unquote(n.Text), true
		}
	}
	return "", false
}

// columnName labels an unaliased select item: the column itself for plain
// names, the expression text otherwise.
func columnName(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Identifier:
		return unqualified(n.Name)
	case *ast.Binary:
		s := n.String()
		return s[1 : len(s)-1]
	default:
		return n.String()
	}
}
