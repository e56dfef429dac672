package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/koustreak/sqlgrid/internal/errs"
)

// Field is a single column/value pair of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered column→value map. Column order follows the result
// set (or the order of Set calls) and survives a JSON round trip.
//
// Records are small, so lookups are linear.
type Record struct {
	fields []Field
}

// NewRecord returns a Record holding the given fields in order.
func NewRecord(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// RecordOf zips names and values into a Record. Extra values are ignored.
func RecordOf(names []string, values []any) Record {
	r := Record{fields: make([]Field, 0, len(names))}
	for i, n := range names {
		var v any
		if i < len(values) {
			v = values[i]
		}
		r.Set(n, v)
	}
	return r
}

// Set assigns v to name, appending the column when it is new.
func (r *Record) Set(name string, v any) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = v
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: v})
}

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Value returns the value stored under name, or nil.
func (r Record) Value(name string) any {
	v, _ := r.Get(name)
	return v
}

// String returns the value under name formatted as text. NULL and missing
// columns yield "".
func (r Record) String(name string) string {
	return FormatValue(r.Value(name))
}

// Has reports whether name is a column of the record.
func (r Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Delete removes name from the record, keeping the order of the rest.
func (r *Record) Delete(name string) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields = append(r.fields[:i], r.fields[i+1:]...)
			return
		}
	}
}

// Keys returns the column names in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Name
	}
	return keys
}

// Values returns the values in column order.
func (r Record) Values() []any {
	vals := make([]any, len(r.fields))
	for i, f := range r.fields {
		vals[i] = f.Value
	}
	return vals
}

// Fields returns a copy of the ordered fields.
func (r Record) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

func (r Record) Len() int { return len(r.fields) }

// Clone returns a copy that shares no storage with r.
func (r Record) Clone() Record {
	return Record{fields: r.Fields()}
}

// Merge returns a copy of r overlaid with other. Columns of other that r
// lacks are appended in other's order.
func (r Record) Merge(other Record) Record {
	out := r.Clone()
	for _, f := range other.fields {
		out.Set(f.Name, f.Value)
	}
	return out
}

// MarshalJSON writes the record as a JSON object in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping its key order. Numbers decode
// to int64 when integral and float64 otherwise.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		r.fields = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errs.New(errs.ErrKindInvalidInput, "record must be a JSON object")
	}

	r.fields = r.fields[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errs.New(errs.ErrKindInvalidInput, "record key must be a string")
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		r.Set(name, NormalizeJSON(raw))
	}
	_, err = dec.Token()
	return err
}

// NormalizeJSON converts json.Number values produced by a UseNumber decoder
// into int64 or float64, recursing into arrays and objects.
func NormalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = NormalizeJSON(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = NormalizeJSON(t[k])
		}
		return t
	default:
		return v
	}
}

// FormatValue renders a scanned value as text. nil becomes "".
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
