package source

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteSource loads every row of one table of a SQLite database file.
type SQLiteSource struct {
	name  string
	path  string
	table string

	once sync.Once
	ch   chan Record
	err  error
}

// NewSQLiteSource reads table from the database at path. An empty table means
// the table called name.
func NewSQLiteSource(name, path, table string) (*SQLiteSource, error) {
	if table == "" {
		table = name
	}
	if table == "" {
		return nil, errors.Errorf("sqlite source %s: no table", path)
	}
	if name == "" {
		name = table
	}
	return &SQLiteSource{name: name, path: path, table: table}, nil
}

func (s *SQLiteSource) Name() string { return s.name }
func (s *SQLiteSource) Err() error   { return s.err }
func (s *SQLiteSource) Close() error { return nil }

func (s *SQLiteSource) Records(ctx context.Context) (<-chan Record, error) {
	s.once.Do(func() {
		s.ch = make(chan Record, 64)
		go func() {
			defer close(s.ch)
			if err := s.scan(ctx); err != nil {
				s.err = errors.Wrapf(err, "source %s: table %s in %s", s.name, s.table, s.path)
			}
		}()
	})
	return s.ch, nil
}

func (s *SQLiteSource) scan(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(s.table))
	if err != nil {
		return err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(types))
	dest := make([]interface{}, len(types))
	for i := range vals {
		dest[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		rec := make(Record, len(types))
		for i, ct := range types {
			rec[ct.Name()] = sqliteValue(ct.DatabaseTypeName(), vals[i])
		}
		if !send(ctx, s.ch, rec) {
			return ctx.Err()
		}
	}
	return rows.Err()
}

// sqliteValue maps a scanned value onto the types JSON sources produce.
// BOOLEAN columns are stored as integers; blobs and timestamps become text.
func sqliteValue(declared string, v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case int64:
		if strings.EqualFold(declared, "BOOLEAN") || strings.EqualFold(declared, "BOOL") {
			return t != 0
		}
	}
	return v
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
