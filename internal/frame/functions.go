package frame

import (
	"fmt"
	"time"
)

// TimestampLayout is how timestamps are rendered as strings.
const TimestampLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp reads a wall clock timestamp string. The result carries no
// zone information; its fields are the wall clock fields of s.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// timestampPart builds a built-in that extracts an integer field from a
// timestamp string column. Unparseable input yields null.
func timestampPart(name string, part func(time.Time) int) func(Column) Column {
	return UDF(name, TypeInteger, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a string, got %T", ErrTypeMismatch, name, v)
		}
		t, ok := ParseTimestamp(s)
		if !ok {
			return nil, nil
		}
		return int32(part(t)), nil
	})
}

var (
	// Hour of the day, 0-23.
	Hour = timestampPart("hour", func(t time.Time) int { return t.Hour() })
	// DayOfMonth, 1-31.
	DayOfMonth = timestampPart("dayofmonth", func(t time.Time) int { return t.Day() })
	// WeekOfYear is the ISO 8601 week number.
	WeekOfYear = timestampPart("weekofyear", func(t time.Time) int {
		_, w := t.ISOWeek()
		return w
	})
	Month = timestampPart("month", func(t time.Time) int { return int(t.Month()) })
	Year  = timestampPart("year", func(t time.Time) int { return t.Year() })
)

// IsNotNull is true for every non-null value of c.
func IsNotNull(c Column) Column {
	return Column{
		name: fmt.Sprintf("(%s IS NOT NULL)", c.name),
		bind: func(in Schema) (Type, evalFunc, error) {
			_, eval, err := c.bind(in)
			if err != nil {
				return nil, nil, err
			}
			return TypeBoolean, func(r Row) (any, error) {
				v, err := eval(r)
				return v != nil, err
			}, nil
		},
	}
}
