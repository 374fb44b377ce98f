package subgraph

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// Kind is the type tag of a Value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindList
)

// Value is a single flattened field: either a parsed number or the original
// upstream value.
type Value struct {
	kind Kind
	num  apd.Decimal
	str  string
	b    bool
	list []Record
}

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// StringValue wraps an original string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ListValue wraps a nested list of records.
func ListValue(records []Record) Value { return Value{kind: KindList, list: records} }

// NumberValue wraps a decimal.
func NumberValue(d *apd.Decimal) Value {
	v := Value{kind: KindNumber}
	v.num.Set(d)
	return v
}

// ParseNumber parses s as a finite decimal. ok is false when s is not numeric.
func ParseNumber(s string) (Value, bool) {
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Value{}, false
	}
	if d.Form != apd.Finite {
		return Value{}, false
	}
	return NumberValue(&d), true
}

// Coerce returns v converted to a number when it is a numeric-looking string,
// and v unchanged otherwise.
func Coerce(v Value) Value {
	if v.kind != KindString {
		return v
	}
	if n, ok := ParseNumber(v.str); ok {
		return n
	}
	return v
}

// Kind returns the type tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Decimal returns the numeric arm.
func (v Value) Decimal() (*apd.Decimal, bool) {
	if v.kind != KindNumber {
		return nil, false
	}
	d := new(apd.Decimal).Set(&v.num)
	return d, true
}

// Float64 returns the numeric arm as float64.
func (v Value) Float64() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := v.num.Float64()
	if err != nil && !math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int64 returns the numeric arm as int64, truncating fractions.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if i, err := v.num.Int64(); err == nil {
		return i, true
	}
	f, ok := v.Float64()
	if !ok || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// Bool returns the boolean arm.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// List returns the nested records, nil for other kinds.
func (v Value) List() []Record {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// String returns the textual form of the value.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return v.num.Text('f')
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		return "[" + strconv.Itoa(len(v.list)) + " records]"
	default:
		return ""
	}
}

// MarshalJSON encodes numbers as JSON numbers and everything else as itself.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return []byte(v.num.Text('f')), nil
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}
