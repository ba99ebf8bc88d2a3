// Package frame is a small in-process dataframe engine: Arrow typed
// schemas, immutable frames, column expressions, deduplication, inner
// joins, JSON input decoded through Arrow record builders and partitioned
// Parquet output.
//
// Every operation returns a new Frame and leaves its receiver untouched.
// Row order is always deterministic: it follows input order.
package frame

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Row holds one value per schema field, in schema order.
type Row []any

// Frame is an immutable table.
type Frame struct {
	schema Schema
	rows   []Row
}

// New builds a frame, checking every value against the schema.
func New(schema Schema, rows []Row) (*Frame, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	for i, r := range rows {
		if len(r) != schema.NumFields() {
			return nil, fmt.Errorf("row %d has %d values, schema has %d columns", i, len(r), schema.NumFields())
		}
		for j, v := range r {
			if field := schema.Field(j); !checkValue(field.Type, v) {
				return nil, fmt.Errorf("%w: row %d column %q holds %T, want %s", ErrTypeMismatch, i, field.Name, v, typeName(field.Type))
			}
		}
	}
	return &Frame{schema: schema, rows: rows}, nil
}

// Empty is a frame with a schema and no rows.
func Empty(schema Schema) *Frame {
	return &Frame{schema: schema}
}

func (f *Frame) Schema() Schema {
	return f.schema
}

func (f *Frame) Count() int {
	return len(f.rows)
}

// Rows exposes the rows. Callers must not modify them.
func (f *Frame) Rows() []Row {
	return f.rows
}

// Column returns every value of the named column.
func (f *Frame) Column(name string) ([]any, error) {
	i, err := f.schema.Index(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(f.rows))
	for j, r := range f.rows {
		out[j] = r[i]
	}
	return out, nil
}

// Select projects the frame onto cols.
func (f *Frame) Select(cols ...Column) (*Frame, error) {
	res, err := resolve(f.schema, cols)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	fields := make([]arrow.Field, len(res))
	for i, r := range res {
		fields[i] = r.field
	}
	schema := NewSchema(fields...)
	if err := schema.validate(); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	rows := make([]Row, len(f.rows))
	for i, in := range f.rows {
		out := make(Row, len(res))
		for j, r := range res {
			v, err := r.eval(in)
			if err != nil {
				return nil, fmt.Errorf("select %q row %d: %w", r.field.Name, i, err)
			}
			out[j] = v
		}
		rows[i] = out
	}
	return &Frame{schema: schema, rows: rows}, nil
}

// WithColumn adds c under name, or replaces the existing column of that name.
func (f *Frame) WithColumn(name string, c Column) (*Frame, error) {
	cols := make([]Column, 0, f.schema.NumFields()+1)
	replaced := false
	for _, field := range f.schema.Fields() {
		if field.Name == name {
			cols = append(cols, c.As(name))
			replaced = true
			continue
		}
		cols = append(cols, Col(field.Name))
	}
	if !replaced {
		cols = append(cols, c.As(name))
	}
	return f.Select(cols...)
}

// Filter keeps the rows for which cond evaluates to true.
func (f *Frame) Filter(cond Column) (*Frame, error) {
	res, err := resolve(f.schema, []Column{cond})
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	if t := res[0].field.Type; t.ID() != arrow.BOOL {
		return nil, fmt.Errorf("filter: %w: condition %q is %s", ErrTypeMismatch, cond.name, typeName(t))
	}

	var rows []Row
	for i, r := range f.rows {
		v, err := res[0].eval(r)
		if err != nil {
			return nil, fmt.Errorf("filter row %d: %w", i, err)
		}
		if keep, _ := v.(bool); keep {
			rows = append(rows, r)
		}
	}
	return &Frame{schema: f.schema, rows: rows}, nil
}

// DropDuplicates keeps the first row for each distinct combination of
// keys. With no keys every column is part of the key.
func (f *Frame) DropDuplicates(keys ...string) (*Frame, error) {
	if len(keys) == 0 {
		keys = f.schema.Names()
	}
	idx := make([]int, len(keys))
	for i, k := range keys {
		j, err := f.schema.Index(k)
		if err != nil {
			return nil, fmt.Errorf("drop duplicates: %w", err)
		}
		idx[i] = j
	}

	seen := make(map[string]struct{}, len(f.rows))
	var rows []Row
	for _, r := range f.rows {
		k := rowKey(r, idx)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, r)
	}
	return &Frame{schema: f.schema, rows: rows}, nil
}

// rowKey encodes the values at idx so that distinct typed values never
// collide, nulls included.
func rowKey(r Row, idx []int) string {
	var b strings.Builder
	for _, i := range idx {
		v := r[i]
		if v == nil {
			b.WriteString("N;")
			continue
		}
		s := formatValue(v)
		fmt.Fprintf(&b, "%T:%d:%s;", v, len(s), s)
	}
	return b.String()
}

// Join is an inner equi-join of f and right on f.leftKey == right.rightKey.
// The result has every column of f followed by every column of right; rows
// come in f's order, and for each left row matches come in right's order.
// Null keys never match.
func (f *Frame) Join(right *Frame, leftKey, rightKey string) (*Frame, error) {
	li, err := f.schema.Index(leftKey)
	if err != nil {
		return nil, fmt.Errorf("join left: %w", err)
	}
	ri, err := right.schema.Index(rightKey)
	if err != nil {
		return nil, fmt.Errorf("join right: %w", err)
	}
	if lt, rt := f.schema.Field(li).Type, right.schema.Field(ri).Type; !arrow.TypeEqual(lt, rt) {
		return nil, fmt.Errorf("join: %w: %s is %s, %s is %s", ErrTypeMismatch, leftKey, typeName(lt), rightKey, typeName(rt))
	}

	schema := NewSchema(append(f.schema.Fields(), right.schema.Fields()...)...)
	if err := schema.validate(); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	index := make(map[any][]Row)
	for _, r := range right.rows {
		if k := r[ri]; k != nil {
			index[k] = append(index[k], r)
		}
	}

	var rows []Row
	for _, l := range f.rows {
		k := l[li]
		if k == nil {
			continue
		}
		for _, r := range index[k] {
			out := make(Row, 0, schema.NumFields())
			out = append(out, l...)
			out = append(out, r...)
			rows = append(rows, out)
		}
	}
	return &Frame{schema: schema, rows: rows}, nil
}
