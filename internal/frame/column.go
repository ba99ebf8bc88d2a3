package frame

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

type evalFunc func(Row) (any, error)

// Column is an unresolved column expression. It is bound against a
// frame's schema when used in Select, WithColumn or Filter.
type Column struct {
	name string
	bind func(in Schema) (Type, evalFunc, error)
}

// Name is the output column name.
func (c Column) Name() string {
	return c.name
}

// Col references an existing column by name.
func Col(name string) Column {
	return Column{
		name: name,
		bind: func(in Schema) (Type, evalFunc, error) {
			i, err := in.Index(name)
			if err != nil {
				return nil, nil, err
			}
			return in.Field(i).Type, func(r Row) (any, error) { return r[i], nil }, nil
		},
	}
}

// Cols is Col over several names.
func Cols(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Col(n)
	}
	return cols
}

// As renames the output of c.
func (c Column) As(alias string) Column {
	c.name = alias
	return c
}

// UDFFunc is the body of a user defined function. It is never called with
// a null argument: null in gives null out.
type UDFFunc func(v any) (any, error)

// UDF wraps fn as a single argument column function returning ret.
func UDF(name string, ret Type, fn UDFFunc) func(Column) Column {
	return func(arg Column) Column {
		return Column{
			name: fmt.Sprintf("%s(%s)", name, arg.name),
			bind: func(in Schema) (Type, evalFunc, error) {
				_, eval, err := arg.bind(in)
				if err != nil {
					return nil, nil, err
				}
				return ret, func(r Row) (any, error) {
					v, err := eval(r)
					if err != nil || v == nil {
						return nil, err
					}
					out, err := fn(v)
					if err != nil {
						return nil, fmt.Errorf("%s: %w", name, err)
					}
					if !checkValue(ret, out) {
						return nil, fmt.Errorf("%w: %s returned %T, want %s", ErrTypeMismatch, name, out, typeName(ret))
					}
					return out, nil
				}, nil
			},
		}
	}
}

// UDFN wraps fn as a column function over several columns. Unlike UDF, fn
// sees null arguments and decides what they mean.
func UDFN(name string, ret Type, fn func(args []any) (any, error)) func(...Column) Column {
	return func(args ...Column) Column {
		names := make([]string, len(args))
		for i, a := range args {
			names[i] = a.name
		}
		return Column{
			name: fmt.Sprintf("%s(%s)", name, strings.Join(names, ", ")),
			bind: func(in Schema) (Type, evalFunc, error) {
				res, err := resolve(in, args)
				if err != nil {
					return nil, nil, err
				}
				return ret, func(r Row) (any, error) {
					vals := make([]any, len(res))
					for i, a := range res {
						v, err := a.eval(r)
						if err != nil {
							return nil, err
						}
						vals[i] = v
					}
					out, err := fn(vals)
					if err != nil {
						return nil, fmt.Errorf("%s: %w", name, err)
					}
					if !checkValue(ret, out) {
						return nil, fmt.Errorf("%w: %s returned %T, want %s", ErrTypeMismatch, name, out, typeName(ret))
					}
					return out, nil
				}, nil
			},
		}
	}
}

// resolved is a column bound to a schema.
type resolved struct {
	field arrow.Field
	eval  evalFunc
}

func resolve(in Schema, cols []Column) ([]resolved, error) {
	out := make([]resolved, len(cols))
	for i, c := range cols {
		if c.bind == nil {
			return nil, fmt.Errorf("column %d is not initialised", i)
		}
		t, eval, err := c.bind(in)
		if err != nil {
			return nil, err
		}
		out[i] = resolved{field: Field(c.name, t), eval: eval}
	}
	return out, nil
}
