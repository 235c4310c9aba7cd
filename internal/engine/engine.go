package engine

import (
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kevin-cantwell/sqlpipe/internal/ast"
	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

// Engine runs SELECT statements against the sources of an environment.
type Engine struct {
	env    *source.Environment
	logger *zap.Logger
	eval   *evaluator
}

// New creates an Engine. A nil logger discards everything.
func New(env *source.Environment, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		env:    env,
		logger: logger,
		eval:   newEvaluator(),
	}
}

// Result is the output of one statement. Columns are in select-list order.
type Result struct {
	Columns []string
	Rows    []source.Record
}

// Query parses sql and executes every statement in it. Execution stops at the
// first failing statement and no results are returned.
func (e *Engine) Query(sql string) ([]*Result, error) {
	stmts, err := ast.Parse(sql)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(stmts))
	for _, stmt := range stmts {
		res, err := e.Execute(stmt)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Execute plans and runs a single statement.
func (e *Engine) Execute(stmt ast.Statement) (*Result, error) {
	start := time.Now()
	plan, err := e.Plan(stmt)
	if err != nil {
		return nil, err
	}
	rows, _, err := plan.Run()
	if err != nil {
		return nil, errors.Wrapf(err, "%s", stmt)
	}

	cols := plan.Columns
	if cols == nil {
		cols = keys(rows)
	}
	e.logger.Debug("query",
		zap.Stringer("plan", plan),
		zap.String("rows", humanize.Comma(int64(len(rows)))),
		zap.Duration("took", time.Since(start)),
	)
	return &Result{Columns: cols, Rows: rows}, nil
}

// keys is the sorted union of the fields of rows.
func keys(rows []source.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
