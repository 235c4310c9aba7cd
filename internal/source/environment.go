package source

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Environment is the registry of named row collections queries run against.
// It is safe for concurrent use.
type Environment struct {
	mu      sync.RWMutex
	sources map[string][]Record
}

// Named pairs a source name with its rows.
type Named struct {
	Name string
	Rows []Record
}

func NewEnvironment() *Environment {
	return &Environment{sources: make(map[string][]Record)}
}

// AddSource registers rows under name, replacing any previous rows.
func (e *Environment) AddSource(name string, rows []Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources[name] = rows
}

func (e *Environment) RemoveSource(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sources, name)
}

// GetSource returns the rows registered under name. The slice is a copy; the
// records themselves are shared and must not be modified.
func (e *Environment) GetSource(name string) ([]Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rows, ok := e.sources[name]
	if !ok {
		return nil, false
	}
	return append([]Record(nil), rows...), true
}

// Lookup is GetSource with an ErrUnknownSource error for absent names.
func (e *Environment) Lookup(name string) ([]Record, error) {
	rows, ok := e.GetSource(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSource, "%q", name)
	}
	return rows, nil
}

func (e *Environment) HasSource(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.sources[name]
	return ok
}

// GetSources returns every source ordered by name.
func (e *Environment) GetSources() []Named {
	names := e.GetSourceNames()
	out := make([]Named, 0, len(names))
	for _, name := range names {
		if rows, ok := e.GetSource(name); ok {
			out = append(out, Named{Name: name, Rows: rows})
		}
	}
	return out
}

// GetSourceNames returns the registered names in sorted order.
func (e *Environment) GetSourceNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.sources))
	for name := range e.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CountSourceRow returns the number of rows under name, or -1 if there is no
// such source.
func (e *Environment) CountSourceRow(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rows, ok := e.sources[name]
	if !ok {
		return -1
	}
	n := 0
	for range rows {
		n++
	}
	return n
}

// Load drains src and registers its rows under src.Name(). Nothing is
// registered if reading fails.
func (e *Environment) Load(ctx context.Context, src Source) (int, error) {
	ch, err := src.Records(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "source %s", src.Name())
	}
	var rows []Record
	for rec := range ch {
		rows = append(rows, rec)
	}
	if err := src.Err(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrapf(err, "source %s", src.Name())
	}
	e.AddSource(src.Name(), rows)
	return len(rows), nil
}

// LoadAll loads every source concurrently. The first failure cancels the
// others and is returned.
func LoadAll(ctx context.Context, env *Environment, srcs ...Source) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range srcs {
		src := src
		g.Go(func() error {
			_, err := env.Load(ctx, src)
			return err
		})
	}
	return g.Wait()
}
