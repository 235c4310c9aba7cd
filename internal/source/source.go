package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownSource is returned when a source name is not registered in the
// Environment.
var ErrUnknownSource = errors.New("unknown source")

// Record is a single row from a source: column names to values.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Source reads records from a data source.
type Source interface {
	// Name returns the name the rows are registered under.
	Name() string
	// Records starts reading and returns a channel of records. The channel is
	// closed when the source is exhausted, on a read error, or when ctx is done.
	Records(ctx context.Context) (<-chan Record, error)
	// Err returns the error that stopped reading, if any. It is only
	// meaningful once the records channel has been closed.
	Err() error
	// Close cleans up resources.
	Close() error
}

// Config describes a source from a -source flag or the config file.
type Config struct {
	Name   string
	URI    string
	Scheme string
	// Table is the SQLite table to read; it defaults to Name.
	Table string
}

// ParseURI parses a source URI like "file://path.csv", "sqlite://app.db?table=users"
// or "stdin". Anything without a scheme is a file path.
func ParseURI(name, uri string) (*Config, error) {
	switch {
	case uri == "stdin" || uri == "":
		return &Config{Name: name, URI: uri, Scheme: "stdin"}, nil
	case strings.HasPrefix(uri, "file://"):
		return &Config{Name: name, URI: strings.TrimPrefix(uri, "file://"), Scheme: "file"}, nil
	case strings.HasPrefix(uri, "sqlite://"):
		path := strings.TrimPrefix(uri, "sqlite://")
		cfg := &Config{Name: name, Scheme: "sqlite", Table: name}
		if i := strings.IndexByte(path, '?'); i >= 0 {
			q, err := url.ParseQuery(path[i+1:])
			if err != nil {
				return nil, errors.Wrapf(err, "source %s: bad query in %q", name, uri)
			}
			if t := q.Get("table"); t != "" {
				cfg.Table = t
			}
			path = path[:i]
		}
		if path == "" {
			return nil, errors.Errorf("source %s: missing database path in %q", name, uri)
		}
		cfg.URI = path
		return cfg, nil
	case strings.Contains(uri, "://"):
		return nil, errors.Errorf("source %s: unsupported scheme in %q", name, uri)
	}
	return &Config{Name: name, URI: uri, Scheme: "file"}, nil
}

// NewSource creates a source from a config.
func NewSource(cfg *Config) (Source, error) {
	switch cfg.Scheme {
	case "stdin":
		return NewStdinSource(cfg.Name), nil
	case "file":
		return NewFileSource(cfg.Name, cfg.URI)
	case "sqlite":
		return NewSQLiteSource(cfg.Name, cfg.URI, cfg.Table)
	default:
		return nil, errors.Errorf("unsupported source scheme: %s", cfg.Scheme)
	}
}

// send delivers rec unless ctx is done first.
func send(ctx context.Context, ch chan<- Record, rec Record) bool {
	select {
	case ch <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}
