package source

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    *Config
		wantErr bool
	}{
		{
			name: "stdin",
			uri:  "stdin",
			want: &Config{Name: "stdin", URI: "stdin", Scheme: "stdin"},
		},
		{
			name: "users",
			uri:  "file://data/users.csv",
			want: &Config{Name: "users", URI: "data/users.csv", Scheme: "file"},
		},
		{
			name: "users",
			uri:  "data/users.jsonl",
			want: &Config{Name: "users", URI: "data/users.jsonl", Scheme: "file"},
		},
		{
			name: "users",
			uri:  "sqlite://app.db",
			want: &Config{Name: "users", URI: "app.db", Scheme: "sqlite", Table: "users"},
		},
		{
			name: "people",
			uri:  "sqlite://app.db?table=users",
			want: &Config{Name: "people", URI: "app.db", Scheme: "sqlite", Table: "users"},
		},
		{
			name:    "x",
			uri:     "sqlite://?table=users",
			wantErr: true,
		},
		{
			name:    "x",
			uri:     "mysql://localhost/db",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseURI(tt.name, tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func drain(t *testing.T, src Source) []Record {
	t.Helper()
	ch, err := src.Records(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var out []Record
	for rec := range ch {
		out = append(out, rec)
	}
	if err := src.Err(); err != nil {
		t.Fatalf("source error: %v", err)
	}
	return out
}

func TestFileSource(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    []Record
	}{
		{
			name:    "csv with inferred types",
			file:    "users.csv",
			content: "id,name,score,active\n1,ann,1.5,true\n2,bob,3,false\n",
			want: []Record{
				{"id": int64(1), "name": "ann", "score": 1.5, "active": true},
				{"id": int64(2), "name": "bob", "score": int64(3), "active": false},
			},
		},
		{
			name:    "json lines",
			file:    "events.jsonl",
			content: "{\"id\":1}\n{\"id\":2,\"tag\":\"x\"}\n",
			want:    []Record{{"id": 1.0}, {"id": 2.0, "tag": "x"}},
		},
		{
			name:    "json array",
			file:    "events.json",
			content: " [ {\"id\":1}, {\"id\":2} ]",
			want:    []Record{{"id": 1.0}, {"id": 2.0}},
		},
		{
			name:    "empty file",
			file:    "empty.csv",
			content: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewFileSource("", writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatal(err)
			}
			got := drain(t, src)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := NewFileSource("x", "data.xml"); err == nil {
		t.Error("expected unsupported file type error")
	}
	src, _ := NewFileSource("", "dir/users.csv")
	if src.Name() != "users" {
		t.Errorf("default name = %q, want users", src.Name())
	}
}

func TestSQLiteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER, name TEXT, score REAL)`,
		`INSERT INTO users VALUES (1, 'ann', 1.5), (2, 'bob', NULL)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	cfg, err := ParseURI("people", "sqlite://"+path+"?table=users")
	if err != nil {
		t.Fatal(err)
	}
	src, err := NewSource(cfg)
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, src)
	want := []Record{
		{"id": int64(1), "name": "ann", "score": 1.5},
		{"id": int64(2), "name": "bob", "score": nil},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if src.Name() != "people" {
		t.Errorf("Name() = %q", src.Name())
	}

	missing, _ := NewSQLiteSource("nope", path, "nope")
	ch, _ := missing.Records(context.Background())
	for range ch {
	}
	if missing.Err() == nil {
		t.Error("expected error for missing table")
	}
}

func TestSQLiteValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		declared string
		in       interface{}
		want     interface{}
	}{
		{"TEXT", []byte("hi"), "hi"},
		{"BOOLEAN", int64(1), true},
		{"bool", int64(0), false},
		{"INTEGER", int64(7), int64(7)},
		{"DATETIME", ts, "2024-05-01T12:00:00Z"},
		{"REAL", nil, nil},
	}
	for _, tt := range tests {
		if got := sqliteValue(tt.declared, tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("sqliteValue(%q, %#v) = %#v, want %#v", tt.declared, tt.in, got, tt.want)
		}
	}
}
