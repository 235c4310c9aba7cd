package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

func testEnv() *source.Environment {
	env := source.NewEnvironment()
	env.AddSource("users", []source.Record{
		{"id": 1, "name": "alice", "age": 30, "city": "nyc"},
		{"id": 2, "name": "bob", "age": 25, "city": "sf"},
		{"id": 3, "name": "carol", "age": 35, "city": "nyc"},
		{"id": 4, "name": "dave", "age": 40, "city": "la"},
	})
	env.AddSource("orders", []source.Record{
		{"id": 100, "user_id": 1, "amount": 10},
		{"id": 101, "user_id": 1, "amount": 5},
		{"id": 102, "user_id": 2, "amount": 7},
		{"id": 103, "user_id": 9, "amount": 1},
	})
	return env
}

// encode renders each row as JSON restricted to the result columns.
func encode(t *testing.T, res *Result) []string {
	t.Helper()
	out := make([]string, len(res.Rows))
	for i, row := range res.Rows {
		m := make(map[string]interface{}, len(res.Columns))
		for _, c := range res.Columns {
			m[c] = row[c]
		}
		b, err := json.Marshal(m)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = string(b)
	}
	return out
}

func TestEngineQuery(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		columns []string
		want    []string
	}{
		{
			name:    "where and order",
			sql:     "SELECT name FROM users WHERE age > 28 ORDER BY name",
			columns: []string{"name"},
			want:    []string{`{"name":"alice"}`, `{"name":"carol"}`, `{"name":"dave"}`},
		},
		{
			name:    "computed alias",
			sql:     "SELECT name, age * 2 AS double FROM users WHERE city = 'nyc'",
			columns: []string{"name", "double"},
			want:    []string{`{"double":60,"name":"alice"}`, `{"double":70,"name":"carol"}`},
		},
		{
			name:    "unaliased expression",
			sql:     "SELECT age + 1 FROM users WHERE id = 1",
			columns: []string{"age + 1"},
			want:    []string{`{"age + 1":31}`},
		},
		{
			name:    "group by with having",
			sql:     "SELECT city, COUNT(*) AS n, SUM(age) AS total FROM users GROUP BY city HAVING COUNT(*) > 1 ORDER BY city",
			columns: []string{"city", "n", "total"},
			want:    []string{`{"city":"nyc","n":2,"total":65}`},
		},
		{
			name:    "aggregates without group by",
			sql:     "SELECT COUNT(*) AS n, MAX(age) AS oldest, AVG(age) AS mean FROM users",
			columns: []string{"n", "oldest", "mean"},
			want:    []string{`{"mean":32.5,"n":4,"oldest":40}`},
		},
		{
			name:    "having filters the only group",
			sql:     "SELECT COUNT(*) AS n FROM users HAVING COUNT(*) > 10",
			columns: []string{"n"},
			want:    []string{},
		},
		{
			name:    "join",
			sql:     "SELECT users.name, orders.amount FROM users JOIN orders ON users.id = orders.user_id ORDER BY amount DESC",
			columns: []string{"name", "amount"},
			want: []string{
				`{"amount":10,"name":"alice"}`,
				`{"amount":7,"name":"bob"}`,
				`{"amount":5,"name":"alice"}`,
			},
		},
		{
			name:    "limit and offset",
			sql:     "SELECT name FROM users ORDER BY age LIMIT 2 OFFSET 1",
			columns: []string{"name"},
			want:    []string{`{"name":"alice"}`, `{"name":"carol"}`},
		},
		{
			name:    "distinct",
			sql:     "SELECT DISTINCT city FROM users ORDER BY city",
			columns: []string{"city"},
			want:    []string{`{"city":"la"}`, `{"city":"nyc"}`, `{"city":"sf"}`},
		},
		{
			name:    "multi-key order",
			sql:     "SELECT name FROM users ORDER BY city DESC, age DESC",
			columns: []string{"name"},
			want:    []string{`{"name":"bob"}`, `{"name":"carol"}`, `{"name":"alice"}`, `{"name":"dave"}`},
		},
		{
			name:    "wildcard",
			sql:     "SELECT * FROM orders WHERE amount >= 7",
			columns: []string{"amount", "id", "user_id"},
			want:    []string{`{"amount":10,"id":100,"user_id":1}`, `{"amount":7,"id":102,"user_id":2}`},
		},
		{
			name:    "qualified wildcard on a single source",
			sql:     "SELECT users.* FROM users WHERE id = 2",
			columns: []string{"age", "city", "id", "name"},
			want:    []string{`{"age":25,"city":"sf","id":2,"name":"bob"}`},
		},
		{
			name:    "same column in both join sources",
			sql:     "SELECT users.id AS uid, orders.id AS oid FROM users JOIN orders ON users.id = orders.user_id WHERE users.id = 1 ORDER BY oid",
			columns: []string{"uid", "oid"},
			want:    []string{`{"oid":100,"uid":1}`, `{"oid":101,"uid":1}`},
		},
		{
			name:    "group by a qualified column after a join",
			sql:     "SELECT users.id AS uid, SUM(orders.amount) AS total FROM users JOIN orders ON users.id = orders.user_id GROUP BY users.id ORDER BY users.id",
			columns: []string{"uid", "total"},
			want:    []string{`{"total":15,"uid":1}`, `{"total":7,"uid":2}`},
		},
		{
			name:    "left join keeps unmatched rows",
			sql:     "SELECT users.name, orders.amount FROM users LEFT JOIN orders ON users.id = orders.user_id WHERE users.id > 1 ORDER BY users.name",
			columns: []string{"name", "amount"},
			want:    []string{`{"amount":7,"name":"bob"}`, `{"amount":null,"name":"carol"}`, `{"amount":null,"name":"dave"}`},
		},
		{
			name:    "right outer join keeps unmatched targets",
			sql:     "SELECT orders.id AS oid, users.name FROM users RIGHT OUTER JOIN orders ON users.id = orders.user_id ORDER BY oid",
			columns: []string{"oid", "name"},
			want: []string{
				`{"name":"alice","oid":100}`,
				`{"name":"alice","oid":101}`,
				`{"name":"bob","oid":102}`,
				`{"name":null,"oid":103}`,
			},
		},
		{
			name:    "wildcard over a join drops qualified copies",
			sql:     "SELECT * FROM users JOIN orders ON users.id = orders.user_id WHERE orders.id = 102",
			columns: []string{"age", "amount", "city", "id", "name", "user_id"},
			want:    []string{`{"age":25,"amount":7,"city":"sf","id":102,"name":"bob","user_id":2}`},
		},
		{
			name:    "qualified wildcard over a join",
			sql:     "SELECT orders.* FROM users INNER JOIN orders ON users.id = orders.user_id WHERE users.name = 'bob'",
			columns: []string{"amount", "id", "user_id"},
			want:    []string{`{"amount":7,"id":102,"user_id":2}`},
		},
		{
			name:    "non-finite arithmetic is null",
			sql:     "SELECT (0 - 8) ^ 0.5 AS root, 10 ^ 400 AS huge FROM users WHERE id = 1",
			columns: []string{"root", "huge"},
			want:    []string{`{"huge":null,"root":null}`},
		},
		{
			name:    "like and between",
			sql:     "SELECT name FROM users WHERE name LIKE 'a%' OR age BETWEEN 34 AND 36",
			columns: []string{"name"},
			want:    []string{`{"name":"alice"}`, `{"name":"carol"}`},
		},
		{
			name:    "in list",
			sql:     "SELECT UPPER(name) AS upper FROM users WHERE city IN ('sf', 'la')",
			columns: []string{"upper"},
			want:    []string{`{"upper":"BOB"}`, `{"upper":"DAVE"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(testEnv(), nil)
			results, err := e.Query(tt.sql)
			if err != nil {
				t.Fatalf("query %q: %v", tt.sql, err)
			}
			if len(results) != 1 {
				t.Fatalf("got %d results, want 1", len(results))
			}
			res := results[0]
			if !reflect.DeepEqual(res.Columns, tt.columns) {
				t.Errorf("columns = %v, want %v", res.Columns, tt.columns)
			}
			if got := encode(t, res); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("rows:\n got  %s\n want %s", strings.Join(got, " "), strings.Join(tt.want, " "))
			}
		})
	}
}

func TestEngineQueryMultipleStatements(t *testing.T) {
	e := New(testEnv(), nil)
	results, err := e.Query("SELECT name FROM users WHERE id = 1; SELECT COUNT(*) AS n FROM orders")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if got := encode(t, results[0]); !reflect.DeepEqual(got, []string{`{"name":"alice"}`}) {
		t.Errorf("first: %v", got)
	}
	if got := encode(t, results[1]); !reflect.DeepEqual(got, []string{`{"n":4}`}) {
		t.Errorf("second: %v", got)
	}
}

func TestEngineQueryStopsAtFailure(t *testing.T) {
	e := New(testEnv(), nil)
	results, err := e.Query("SELECT name FROM users; SELECT name FROM nowhere; SELECT id FROM users")
	if !errors.Is(err, source.ErrUnknownSource) {
		t.Fatalf("err = %v, want ErrUnknownSource", err)
	}
	if results != nil {
		t.Errorf("got %d results alongside the error, want none", len(results))
	}
}

func TestEngineErrors(t *testing.T) {
	tests := []struct {
		sql  string
		want error
	}{
		{"DELETE FROM users", ErrUnsupportedOperation},
		{"SELECT name", ErrUnsupportedOperation},
		{"SELECT name FROM users JOIN orders", ErrUnsupportedOperation},
		{"SELECT name FROM users LEFT JOIN orders", ErrUnsupportedOperation},
		{"SELECT t.* FROM users", ErrUnsupportedOperation},
		{"SELECT users.*, name FROM users", ErrUnsupportedOperation},
		{"SELECT *, orders.* FROM users JOIN orders ON users.id = orders.user_id", ErrUnsupportedOperation},
		{"SELECT name FROM users WHERE users.* = 1", ErrUnsupportedOperation},
		{"SELECT name FROM users ORDER BY users.*", ErrUnsupportedOperation},
		{"SELECT name, name FROM users", ErrUnsupportedOperation},
		{"SELECT id AS x, name AS x FROM users", ErrUnsupportedOperation},
		{"SELECT *, name FROM users", ErrUnsupportedOperation},
		{"SELECT DISTINCT * FROM users", ErrUnsupportedOperation},
		{"SELECT FOO(name) FROM users", ErrUnsupportedOperation},
		{"SELECT name FROM users WHERE SUM(age) > 1", ErrUnsupportedOperation},
		{"SELECT name FROM users LIMIT name", ErrUnsupportedOperation},
		{"SELECT name FROM users WHERE id = 1 WHERE id = 2", ErrUnsupportedOperation},
		{"SELECT name FROM users UNION SELECT name FROM users", ErrUnsupportedOperation},
		{"SELECT name FROM nowhere", source.ErrUnknownSource},
	}
	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			_, err := New(testEnv(), nil).Query(tt.sql)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
