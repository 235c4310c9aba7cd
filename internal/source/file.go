package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// FileSource reads records from a CSV, JSON or JSON-lines file. A .json file
// may hold either a single array of objects or one object per line.
type FileSource struct {
	name string
	path string
	ext  string
	once sync.Once
	ch   chan Record
	err  error
}

func NewFileSource(name, path string) (*FileSource, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".json" && ext != ".jsonl" {
		return nil, errors.Errorf("unsupported file type %q (use .csv, .json, or .jsonl)", ext)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &FileSource{name: name, path: path, ext: ext}, nil
}

func (s *FileSource) Name() string { return s.name }
func (s *FileSource) Err() error   { return s.err }
func (s *FileSource) Close() error { return nil }

func (s *FileSource) Records(ctx context.Context) (<-chan Record, error) {
	s.once.Do(func() {
		s.ch = make(chan Record, 64)
		go s.read(ctx)
	})
	return s.ch, nil
}

func (s *FileSource) read(ctx context.Context) {
	defer close(s.ch)

	f, err := os.Open(s.path)
	if err != nil {
		s.err = errors.Wrapf(err, "source %s", s.name)
		return
	}
	defer f.Close()

	switch s.ext {
	case ".csv":
		err = readCSV(ctx, f, s.ch)
	default:
		err = readJSON(ctx, f, s.ch)
	}
	if err != nil {
		s.err = errors.Wrapf(err, "source %s: %s", s.name, s.path)
	}
}

func readCSV(ctx context.Context, r io.Reader, ch chan<- Record) error {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = inferType(row[i])
			}
		}
		if !send(ctx, ch, rec) {
			return ctx.Err()
		}
	}
}

func readJSON(ctx context.Context, r io.Reader, ch chan<- Record) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var recs []Record
		if err := dec.Decode(&recs); err != nil {
			return err
		}
		for _, rec := range recs {
			if !send(ctx, ch, rec) {
				return ctx.Err()
			}
		}
		return nil
	}

	for {
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !send(ctx, ch, rec) {
			return ctx.Err()
		}
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// inferType converts a CSV string value to a typed value.
func inferType(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if !strings.Contains(s, ".") {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i
			}
		}
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
