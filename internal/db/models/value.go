// Package models holds the value model shared by the attribute engine: the
// eight value types, the typed-value codec between Go values and the wide
// nullable column set, and default-value parsing.
package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/campushub/attribute-registry/internal/db/schema"
)

// ValueType identifies the storage type of an attribute definition.
type ValueType string

// The eight supported value types.
const (
	ValueTypeString   ValueType = "string"
	ValueTypeInteger  ValueType = "integer"
	ValueTypeDecimal  ValueType = "decimal"
	ValueTypeBoolean  ValueType = "boolean"
	ValueTypeDate     ValueType = "date"
	ValueTypeDatetime ValueType = "datetime"
	ValueTypeText     ValueType = "text"
	ValueTypeJSON     ValueType = "json"
)

// MaxStringLength is the truncation limit for ValueTypeString values.
// ValueTypeText is not truncated.
const MaxStringLength = 255

// DateLayout is the canonical wire format for ValueTypeDate.
const DateLayout = "2006-01-02"

// ValidType reports whether t is one of the eight supported value types.
func ValidType(t ValueType) bool {
	switch t {
	case ValueTypeString, ValueTypeInteger, ValueTypeDecimal, ValueTypeBoolean,
		ValueTypeDate, ValueTypeDatetime, ValueTypeText, ValueTypeJSON:
		return true
	}
	return false
}

// Columns is the wide nullable column set one stored value fans out to.
// Encode guarantees exactly one field is non-nil (or all nil for a null
// value).
type Columns struct {
	StringValue   *string
	IntegerValue  *int64
	DecimalValue  *float64
	BooleanValue  *bool
	DateValue     *time.Time
	DatetimeValue *time.Time
	TextValue     *string
	JSONValue     *string
}

// Apply copies the column set onto a value row, clearing every other typed
// column.
func (c Columns) Apply(row *schema.AttributeValueRow) {
	row.StringValue = c.StringValue
	row.IntegerValue = c.IntegerValue
	row.DecimalValue = c.DecimalValue
	row.BooleanValue = c.BooleanValue
	row.DateValue = c.DateValue
	row.DatetimeValue = c.DatetimeValue
	row.TextValue = c.TextValue
	row.JSONValue = c.JSONValue
}

// ColumnsFromRow extracts the typed column set from a stored row.
func ColumnsFromRow(row schema.AttributeValueRow) Columns {
	return Columns{
		StringValue:   row.StringValue,
		IntegerValue:  row.IntegerValue,
		DecimalValue:  row.DecimalValue,
		BooleanValue:  row.BooleanValue,
		DateValue:     row.DateValue,
		DatetimeValue: row.DatetimeValue,
		TextValue:     row.TextValue,
		JSONValue:     row.JSONValue,
	}
}

// IsEmpty reports whether v counts as missing for required-field checks:
// nil, empty string, or a typed nil pointer.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return true
	}
	return false
}

// Encode converts a Go value into the column set for the given value type.
// A nil value encodes to the all-nil column set. Input coercions follow the
// wire formats accepted by the HTTP layer: numbers arrive as float64 from
// JSON decoding, dates and datetimes as strings or time.Time.
func Encode(v any, t ValueType) (Columns, error) {
	var c Columns
	if v == nil {
		return c, nil
	}

	switch t {
	case ValueTypeString:
		s, err := coerceString(v)
		if err != nil {
			return c, err
		}
		s = truncate(s, MaxStringLength)
		c.StringValue = &s

	case ValueTypeText:
		s, err := coerceString(v)
		if err != nil {
			return c, err
		}
		c.TextValue = &s

	case ValueTypeInteger:
		n, err := coerceInt(v)
		if err != nil {
			return c, err
		}
		c.IntegerValue = &n

	case ValueTypeDecimal:
		f, err := coerceFloat(v)
		if err != nil {
			return c, err
		}
		c.DecimalValue = &f

	case ValueTypeBoolean:
		b, err := coerceBool(v)
		if err != nil {
			return c, err
		}
		c.BooleanValue = &b

	case ValueTypeDate:
		ts, err := coerceTime(v, DateLayout)
		if err != nil {
			return c, err
		}
		ts = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		c.DateValue = &ts

	case ValueTypeDatetime:
		ts, err := coerceTime(v, time.RFC3339)
		if err != nil {
			return c, err
		}
		ts = ts.UTC()
		c.DatetimeValue = &ts

	case ValueTypeJSON:
		raw, err := coerceJSON(v)
		if err != nil {
			return c, err
		}
		c.JSONValue = &raw

	default:
		return c, fmt.Errorf("unknown value type %q", t)
	}

	return c, nil
}

// Decode converts a stored column set back into a Go value. A column set
// with no populated column decodes to nil. The decoder tolerates a JSON
// column that holds a bare (non-object) document.
func Decode(c Columns, t ValueType) (any, error) {
	switch t {
	case ValueTypeString:
		if c.StringValue == nil {
			return nil, nil
		}
		return *c.StringValue, nil
	case ValueTypeText:
		if c.TextValue == nil {
			return nil, nil
		}
		return *c.TextValue, nil
	case ValueTypeInteger:
		if c.IntegerValue == nil {
			return nil, nil
		}
		return *c.IntegerValue, nil
	case ValueTypeDecimal:
		if c.DecimalValue == nil {
			return nil, nil
		}
		return *c.DecimalValue, nil
	case ValueTypeBoolean:
		if c.BooleanValue == nil {
			return nil, nil
		}
		return *c.BooleanValue, nil
	case ValueTypeDate:
		if c.DateValue == nil {
			return nil, nil
		}
		return c.DateValue.UTC(), nil
	case ValueTypeDatetime:
		if c.DatetimeValue == nil {
			return nil, nil
		}
		return c.DatetimeValue.UTC(), nil
	case ValueTypeJSON:
		if c.JSONValue == nil {
			return nil, nil
		}
		var out any
		if err := json.Unmarshal([]byte(*c.JSONValue), &out); err != nil {
			return nil, fmt.Errorf("decode json value: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown value type %q", t)
}

// ParseDefault parses a definition's text default into a typed value.
// An empty default yields nil.
func ParseDefault(raw *string, t ValueType) (any, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	c, err := Encode(*raw, t)
	if err != nil {
		return nil, fmt.Errorf("parse default %q: %w", *raw, err)
	}
	return Decode(c, t)
}

// FormatValue serializes a decoded value as audit-log text. Returns nil for
// a nil value.
func FormatValue(v any) *string {
	if v == nil {
		return nil
	}
	var s string
	switch tv := v.(type) {
	case string:
		s = tv
	case time.Time:
		s = tv.Format(time.RFC3339)
	case int64:
		s = strconv.FormatInt(tv, 10)
	case float64:
		s = strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(tv)
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			s = fmt.Sprintf("%v", tv)
		} else {
			s = string(b)
		}
	}
	return &s
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func coerceString(v any) (string, error) {
	switch tv := v.(type) {
	case string:
		return tv, nil
	case fmt.Stringer:
		return tv.String(), nil
	case int, int32, int64:
		return fmt.Sprintf("%d", tv), nil
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(tv), nil
	}
	return "", fmt.Errorf("cannot store %T as string", v)
}

func coerceInt(v any) (int64, error) {
	switch tv := v.(type) {
	case int64:
		return tv, nil
	case int:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case float64:
		if tv != float64(int64(tv)) {
			return 0, fmt.Errorf("value %v is not an integer", tv)
		}
		return int64(tv), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(tv), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", tv)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot store %T as integer", v)
}

func coerceFloat(v any) (float64, error) {
	switch tv := v.(type) {
	case float64:
		return tv, nil
	case float32:
		return float64(tv), nil
	case int:
		return float64(tv), nil
	case int64:
		return float64(tv), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a decimal", tv)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot store %T as decimal", v)
}

func coerceBool(v any) (bool, error) {
	switch tv := v.(type) {
	case bool:
		return tv, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(tv))
		if err != nil {
			return false, fmt.Errorf("value %q is not a boolean", tv)
		}
		return b, nil
	case float64:
		return tv != 0, nil
	case int:
		return tv != 0, nil
	case int64:
		return tv != 0, nil
	}
	return false, fmt.Errorf("cannot store %T as boolean", v)
}

func coerceTime(v any, layout string) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv, nil
	case string:
		s := strings.TrimSpace(tv)
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
		// Datetime columns also accept plain dates and vice versa.
		for _, alt := range []string{time.RFC3339, DateLayout, "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(alt, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("value %q is not a valid time", tv)
	}
	return time.Time{}, fmt.Errorf("cannot store %T as time", v)
}

// coerceJSON accepts an already-structured value (marshaled) or a string
// (validated as raw JSON, or wrapped as a JSON string when not parseable).
func coerceJSON(v any) (string, error) {
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if json.Valid([]byte(trimmed)) {
			return trimmed, nil
		}
		b, err := json.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("encode json value: %w", err)
		}
		return string(b), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json value: %w", err)
	}
	return string(b), nil
}
