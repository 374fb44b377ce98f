package subgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Separator joins nested field names when flattening.
const Separator = "_"

// Record is one flattened upstream row. Nested objects become
// parent_child keys; nested arrays become list values.
type Record map[string]Value

// Get returns the value of a field, null when missing.
func (r Record) Get(name string) Value {
	return r[name]
}

// String returns the textual form of a field.
func (r Record) String(name string) string {
	return r[name].String()
}

// Float returns a numeric field as float64.
func (r Record) Float(name string) (float64, bool) {
	return r[name].Float64()
}

// FloatOr returns a numeric field as float64, or def.
func (r Record) FloatOr(name string, def float64) float64 {
	if f, ok := r[name].Float64(); ok {
		return f
	}
	return def
}

// Int returns a numeric field as int64.
func (r Record) Int(name string) (int64, bool) {
	return r[name].Int64()
}

// Bool returns a boolean field.
func (r Record) Bool(name string) bool {
	b, _ := r[name].Bool()
	return b
}

// List returns a nested list field.
func (r Record) List(name string) []Record {
	return r[name].List()
}

// FlattenRecordSet converts a response keyed by top-level field names into
// records. Keys are visited in sorted order; an object value yields one record,
// an array yields one record per element.
func FlattenRecordSet(data map[string]json.RawMessage) ([]Record, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var records []Record
	for _, k := range keys {
		raw := decodeRaw(data[k])
		if raw == nil {
			continue
		}
		parsed, err := toRecords(raw)
		if err != nil {
			return nil, fmt.Errorf("flatten %s: %w", k, err)
		}
		records = append(records, parsed...)
	}
	return records, nil
}

func decodeRaw(msg json.RawMessage) any {
	if len(msg) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

func toRecords(raw any) ([]Record, error) {
	switch v := raw.(type) {
	case []any:
		out := make([]Record, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				out = append(out, Record{"value": leaf(item)})
				continue
			}
			out = append(out, flattenObject(obj))
		}
		return out, nil
	case map[string]any:
		return []Record{flattenObject(v)}, nil
	default:
		return nil, fmt.Errorf("unexpected top-level value of type %T", raw)
	}
}

func flattenObject(obj map[string]any) Record {
	rec := make(Record, len(obj))
	flattenInto(rec, "", obj)
	return rec
}

func flattenInto(rec Record, prefix string, obj map[string]any) {
	for k, v := range obj {
		name := k
		if prefix != "" {
			name = prefix + Separator + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(rec, name, nested)
			continue
		}
		rec[name] = leaf(v)
	}
}

func leaf(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case json.Number:
		if n, ok := ParseNumber(x.String()); ok {
			return n
		}
		return StringValue(x.String())
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case []any:
		records, _ := toRecords(x)
		return ListValue(records)
	case map[string]any:
		return ListValue([]Record{flattenObject(x)})
	default:
		return StringValue(fmt.Sprint(x))
	}
}

// CoerceColumns converts every column whose non-null values all parse as
// numbers into numbers. Columns with any non-numeric value are left as they
// are. Nested list columns are coerced as their own record set.
func CoerceColumns(records []Record) {
	columns := make(map[string]bool)
	for _, r := range records {
		for k := range r {
			columns[k] = true
		}
	}

	for col := range columns {
		numeric := true
		var nested []Record
		isList := false
		for _, r := range records {
			v, ok := r[col]
			if !ok || v.IsNull() {
				continue
			}
			switch v.Kind() {
			case KindList:
				isList = true
				nested = append(nested, v.List()...)
			case KindNumber:
			case KindString:
				if _, ok := ParseNumber(v.String()); !ok {
					numeric = false
				}
			default:
				numeric = false
			}
		}
		if isList {
			CoerceColumns(nested)
			continue
		}
		if !numeric {
			continue
		}
		for _, r := range records {
			if v, ok := r[col]; ok {
				r[col] = Coerce(v)
			}
		}
	}
}
