package frame

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Type is a column type.
type Type = arrow.DataType

// Supported column types. In rows they hold string, int64, int32, float64
// and bool values; nil is null for every type.
var (
	TypeString  Type = arrow.BinaryTypes.String
	TypeLong    Type = arrow.PrimitiveTypes.Int64
	TypeInteger Type = arrow.PrimitiveTypes.Int32
	TypeDouble  Type = arrow.PrimitiveTypes.Float64
	TypeBoolean Type = arrow.FixedWidthTypes.Boolean
)

func supported(t Type) bool {
	if t == nil {
		return false
	}
	switch t.ID() {
	case arrow.STRING, arrow.INT64, arrow.INT32, arrow.FLOAT64, arrow.BOOL:
		return true
	}
	return false
}

func typeName(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// parquetTag is the physical/logical type part of a parquet-go schema tag.
func parquetTag(t Type) string {
	switch t.ID() {
	case arrow.STRING:
		return "type=BYTE_ARRAY, convertedtype=UTF8"
	case arrow.INT64:
		return "type=INT64"
	case arrow.INT32:
		return "type=INT32"
	case arrow.FLOAT64:
		return "type=DOUBLE"
	case arrow.BOOL:
		return "type=BOOLEAN"
	}
	return ""
}

// checkValue reports whether v is a legal row value of t.
func checkValue(t Type, v any) bool {
	if v == nil {
		return true
	}
	var id arrow.Type
	switch v.(type) {
	case string:
		id = arrow.STRING
	case int64:
		id = arrow.INT64
	case int32:
		id = arrow.INT32
	case float64:
		id = arrow.FLOAT64
	case bool:
		id = arrow.BOOL
	default:
		return false
	}
	return t.ID() == id
}

// fromJSON converts a value produced by a json.Decoder with UseNumber into
// t. ok is false when the value cannot be represented, in which case the
// field is read as null.
func fromJSON(t Type, v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	switch t.ID() {
	case arrow.STRING:
		switch x := v.(type) {
		case string:
			return x, true
		case json.Number:
			return x.String(), true
		case bool:
			return strconv.FormatBool(x), true
		default:
			b, err := json.Marshal(x)
			if err != nil {
				return nil, false
			}
			return string(b), true
		}
	case arrow.INT64:
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		i, err := n.Int64()
		if err != nil {
			return nil, false
		}
		return i, true
	case arrow.INT32:
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		i, err := n.Int64()
		if err != nil || i < math.MinInt32 || i > math.MaxInt32 {
			return nil, false
		}
		return int32(i), true
	case arrow.FLOAT64:
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		f, err := n.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	case arrow.BOOL:
		b, ok := v.(bool)
		return b, ok
	}
	return nil, false
}

// appendValue adds a row value to the builder of its column. v must
// already have passed checkValue for the builder's type.
func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.StringBuilder:
		b.Append(v.(string))
	case *array.Int64Builder:
		b.Append(v.(int64))
	case *array.Int32Builder:
		b.Append(v.(int32))
	case *array.Float64Builder:
		b.Append(v.(float64))
	case *array.BooleanBuilder:
		b.Append(v.(bool))
	default:
		return fmt.Errorf("%w: no builder for %s", ErrTypeMismatch, typeName(b.Type()))
	}
	return nil
}

// valueAt reads element i of arr as a row value.
func valueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		// the array's buffers may be reused once the record is released
		return strings.Clone(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	}
	return nil
}

// formatValue renders a value the way it appears in partition directory names.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
