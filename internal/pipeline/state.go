package pipeline

import (
	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

// Parameter names, one per clause a stage is configured by.
const (
	FromParam    = "from"
	JoinParam    = "join"
	WhereParam   = "where"
	GroupByParam = "groupBy"
	HavingParam  = "having"
	OrderByParam = "orderBy"
	LimitParam   = "limit"
	OffsetParam  = "offset"
	SelectParam  = "select"
)

// ProcessState is the context of one pipeline run: the environment sources
// are read from, the stage parameters, and a trace stages write to. It must not
// be shared between concurrent runs.
type ProcessState struct {
	env     *source.Environment
	columns []string
	params  map[string]interface{}
	trace   map[string]interface{}
}

// NewProcessState copies params; later changes to the map are not seen by the
// run. columns lists the output columns of the run, if known.
func NewProcessState(env *source.Environment, params map[string]interface{}, columns ...string) *ProcessState {
	copied := make(map[string]interface{}, len(params))
	for k, v := range params {
		copied[k] = v
	}
	return &ProcessState{
		env:     env,
		columns: append([]string(nil), columns...),
		params:  copied,
		trace:   make(map[string]interface{}),
	}
}

func (s *ProcessState) Environment() *source.Environment { return s.env }

func (s *ProcessState) Columns() []string { return s.columns }

func (s *ProcessState) HasColumn(name string) bool {
	for _, c := range s.columns {
		if c == name {
			return true
		}
	}
	return false
}

func (s *ProcessState) Parameter(name string) (interface{}, bool) {
	v, ok := s.params[name]
	return v, ok
}

func (s *ProcessState) HasParameter(name string) bool {
	_, ok := s.params[name]
	return ok
}

func (s *ProcessState) State(name string) (interface{}, bool) {
	v, ok := s.trace[name]
	return v, ok
}

func (s *ProcessState) SetState(name string, value interface{}) {
	s.trace[name] = value
}

// Trace returns a copy of everything stages recorded.
func (s *ProcessState) Trace() map[string]interface{} {
	out := make(map[string]interface{}, len(s.trace))
	for k, v := range s.trace {
		out[k] = v
	}
	return out
}

// Track records that the stage configured by param completed.
func (s *ProcessState) Track(param string) {
	s.trace[trackKey(param)] = true
}

// Ran reports whether the stage configured by param completed.
func (s *ProcessState) Ran(param string) bool {
	v, ok := s.trace[trackKey(param)]
	return ok && v == true
}

func trackKey(param string) string {
	return "_track" + param
}
