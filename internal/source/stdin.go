package source

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// StdinSource reads JSON lines from stdin. Malformed lines are skipped.
type StdinSource struct {
	name    string
	r       io.Reader
	once    sync.Once
	ch      chan Record
	err     error
	skipped int
}

func NewStdinSource(name string) *StdinSource {
	return NewReaderSource(name, os.Stdin)
}

// NewReaderSource reads JSON lines from r the same way StdinSource reads stdin.
func NewReaderSource(name string, r io.Reader) *StdinSource {
	if name == "" {
		name = "stdin"
	}
	return &StdinSource{name: name, r: r}
}

func (s *StdinSource) Name() string { return s.name }
func (s *StdinSource) Err() error   { return s.err }
func (s *StdinSource) Close() error { return nil }

// Skipped returns how many lines failed to decode. Only meaningful once the
// records channel has been closed.
func (s *StdinSource) Skipped() int { return s.skipped }

func (s *StdinSource) Records(ctx context.Context) (<-chan Record, error) {
	s.once.Do(func() {
		s.ch = make(chan Record, 64)
		go s.read(ctx)
	})
	return s.ch, nil
}

func (s *StdinSource) read(ctx context.Context) {
	defer close(s.ch)
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.skipped++
			continue
		}
		if !send(ctx, s.ch, rec) {
			s.err = ctx.Err()
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.err = errors.Wrapf(err, "source %s", s.name)
	}
}
