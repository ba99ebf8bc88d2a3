package frame

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

var (
	ErrColumnNotFound  = errors.New("column not found")
	ErrAmbiguousColumn = errors.New("ambiguous column")
	ErrTypeMismatch    = errors.New("type mismatch")

	// ErrUDFNotRegistered is returned by CallUDF for an unknown name.
	ErrUDFNotRegistered = errors.New("udf not registered")
)

// SourceKey is the field metadata key holding the JSON key a column is
// read from. Without it the column name is used.
const SourceKey = "source"

// Schema is an ordered list of nullable columns.
type Schema struct {
	*arrow.Schema
}

// NewSchema builds a schema from fields, in order.
func NewSchema(fields ...arrow.Field) Schema {
	return Schema{arrow.NewSchema(fields, nil)}
}

// Field is a nullable column called name.
func Field(name string, t Type) arrow.Field {
	return arrow.Field{Name: name, Type: t, Nullable: true}
}

// FieldFrom is a Field read from the JSON key source.
func FieldFrom(name, source string, t Type) arrow.Field {
	f := Field(name, t)
	f.Metadata = arrow.NewMetadata([]string{SourceKey}, []string{source})
	return f
}

func sourceKey(f arrow.Field) string {
	if i := f.Metadata.FindKey(SourceKey); i >= 0 {
		return f.Metadata.Values()[i]
	}
	return f.Name
}

// Index returns the position of the column called name.
func (s Schema) Index(name string) (int, error) {
	idx := s.FieldIndices(name)
	switch len(idx) {
	case 0:
		return -1, fmt.Errorf("%w: %q (have %v)", ErrColumnNotFound, name, s.Names())
	case 1:
		return idx[0], nil
	default:
		return -1, fmt.Errorf("%w: %q", ErrAmbiguousColumn, name)
	}
}

func (s Schema) Names() []string {
	names := make([]string, s.NumFields())
	for i := range names {
		names[i] = s.Field(i).Name
	}
	return names
}

func (s Schema) validate() error {
	if s.Schema == nil {
		return errors.New("schema is not initialised")
	}
	for i := 0; i < s.NumFields(); i++ {
		f := s.Field(i)
		if f.Name == "" {
			return fmt.Errorf("schema has a column without a name")
		}
		if !supported(f.Type) {
			return fmt.Errorf("column %q: unsupported type %s", f.Name, typeName(f.Type))
		}
		if len(s.FieldIndices(f.Name)) > 1 {
			return fmt.Errorf("%w: %q", ErrAmbiguousColumn, f.Name)
		}
	}
	return nil
}
