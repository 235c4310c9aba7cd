package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/kevin-cantwell/sqlpipe/internal/source"
)

// Writer writes query results.
type Writer interface {
	WriteRow(cols []string, vals []interface{}) error
	Flush() error
}

// JSONWriter writes one JSON object per line. Keys appear in column order.
type JSONWriter struct {
	w *bufio.Writer
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: bufio.NewWriter(w)}
}

func (jw *JSONWriter) WriteRow(cols []string, vals []interface{}) error {
	if len(cols) != len(vals) {
		return errors.Errorf("%d columns, %d values", len(cols), len(vals))
	}
	var line bytes.Buffer
	line.WriteByte('{')
	for i, col := range cols {
		if i > 0 {
			line.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return errors.WithStack(err)
		}
		v, err := json.Marshal(vals[i])
		if err != nil {
			return errors.Wrapf(err, "column %s", col)
		}
		line.Write(k)
		line.WriteByte(':')
		line.Write(v)
	}
	line.WriteString("}\n")
	_, err := jw.w.Write(line.Bytes())
	return errors.WithStack(err)
}

// WriteRecord writes the cols of rec. With no cols, every key of rec is
// written in sorted order.
func (jw *JSONWriter) WriteRecord(cols []string, rec source.Record) error {
	if cols == nil {
		cols = make([]string, 0, len(rec))
		for k := range rec {
			cols = append(cols, k)
		}
		sort.Strings(cols)
	}
	vals := make([]interface{}, len(cols))
	for i, c := range cols {
		vals[i] = rec[c]
	}
	return jw.WriteRow(cols, vals)
}

func (jw *JSONWriter) Flush() error {
	return jw.w.Flush()
}
