package pipeline

import (
	"github.com/pkg/errors"

	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

// Next hands a working set to the rest of the pipeline and returns its result.
type Next func(rows []source.Record) ([]source.Record, error)

// Pipe is one stage. It may transform rows before calling next, post-process
// what next returns, or return without calling next at all.
type Pipe func(rows []source.Record, state *ProcessState, next Next) ([]source.Record, error)

// Pipeline runs its pipes in the order they were added.
type Pipeline struct {
	env   *source.Environment
	pipes []Pipe
}

func New(env *source.Environment) *Pipeline {
	return &Pipeline{env: env}
}

// Add appends a stage and returns the pipeline for chaining.
func (p *Pipeline) Add(pipe Pipe) *Pipeline {
	p.pipes = append(p.pipes, pipe)
	return p
}

func (p *Pipeline) Len() int { return len(p.pipes) }

// NewState returns a ProcessState bound to the pipeline's environment.
func (p *Pipeline) NewState(params map[string]interface{}, columns ...string) *ProcessState {
	return NewProcessState(p.env, params, columns...)
}

// Run feeds rows through every stage. With no stages, rows are returned as is.
func (p *Pipeline) Run(rows []source.Record, state *ProcessState) ([]source.Record, error) {
	if state == nil || state.env == nil {
		return nil, errors.WithStack(ErrInvalidState)
	}
	if p.env != nil && state.env != p.env {
		return nil, errors.Wrap(ErrInvalidState, "state is bound to another environment")
	}
	if len(p.pipes) == 0 {
		return rows, nil
	}
	return p.run(rows, state, 0)
}

func (p *Pipeline) run(rows []source.Record, state *ProcessState, index int) ([]source.Record, error) {
	if index >= len(p.pipes) {
		return rows, nil
	}
	return p.pipes[index](rows, state, func(out []source.Record) ([]source.Record, error) {
		return p.run(out, state, index+1)
	})
}
