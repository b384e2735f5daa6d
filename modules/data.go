package modules

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Data is the free-form payload of one module on one slide. Values come
// either from Go code or from decoded JSON, so accessors accept both
// representations.
type Data map[string]any

// Clone returns a shallow copy.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	maps.Copy(out, d)
	return out
}

// Merge layers local over shared: keys present in local always win.
// Neither argument is modified.
func Merge(shared, local Data) Data {
	out := make(Data, len(shared)+len(local))
	maps.Copy(out, shared)
	maps.Copy(out, local)
	return out
}

// String returns the value at key as a string, or def.
func (d Data) String(key, def string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the value at key as a float64, or def.
func (d Data) Float(key string, def float64) float64 {
	if f, ok := toFloat(d[key]); ok {
		return f
	}
	return def
}

// Int returns the value at key truncated to int, or def.
func (d Data) Int(key string, def int) int {
	if f, ok := toFloat(d[key]); ok {
		return int(f)
	}
	return def
}

// Bool returns the value at key as a bool, or def.
func (d Data) Bool(key string, def bool) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// Strings returns the value at key as a string slice. A single string is
// returned as a one-element slice.
func (d Data) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// Decode converts the value at key into out by a JSON round trip. A
// missing key leaves out untouched.
func (d Data) Decode(key string, out any) error {
	v, ok := d[key]
	if !ok || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("modules: encode %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("modules: decode %s: %w", key, err)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Kind is the value type of a schema field.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindList   Kind = "list"
)

// Field describes one key of a module's data.
type Field struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Default  any      `json:"default,omitempty"`
	Enum     []string `json:"enum,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Required bool     `json:"required,omitempty"`
}

// Schema is the ordered field list of a module.
type Schema []Field

func num(v float64) *float64 { return &v }

// Str declares a string field.
func Str(name, def string, enum ...string) Field {
	return Field{Name: name, Kind: KindString, Default: def, Enum: enum}
}

// Num declares a numeric field clamped to [lo, hi].
func Num(name string, def, lo, hi float64) Field {
	return Field{Name: name, Kind: KindNumber, Default: def, Min: num(lo), Max: num(hi)}
}

// Flag declares a boolean field.
func Flag(name string, def bool) Field {
	return Field{Name: name, Kind: KindBool, Default: def}
}

// List declares a list field with no default.
func List(name string) Field {
	return Field{Name: name, Kind: KindList}
}

// Required marks f as required.
func Required(f Field) Field {
	f.Required = true
	return f
}

// Apply returns a copy of d with defaults filled in, numbers clamped and
// enum values checked. Problems are reported, never fatal: an out-of-enum
// value falls back to the default.
func (s Schema) Apply(d Data) (Data, []string) {
	out := d.Clone()
	var problems []string
	for _, f := range s {
		v, present := out[f.Name]
		if !present || v == nil || v == "" {
			if f.Required {
				problems = append(problems, fmt.Sprintf("%s is required", f.Name))
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}
		switch f.Kind {
		case KindNumber:
			n, ok := toFloat(v)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: not a number", f.Name))
				out[f.Name] = f.Default
				continue
			}
			if f.Min != nil && n < *f.Min {
				n = *f.Min
			}
			if f.Max != nil && n > *f.Max {
				n = *f.Max
			}
			out[f.Name] = n
		case KindString:
			if len(f.Enum) == 0 {
				continue
			}
			sv := out.String(f.Name, "")
			valid := false
			for _, e := range f.Enum {
				if e == sv {
					valid = true
					break
				}
			}
			if !valid {
				problems = append(problems, fmt.Sprintf("%s: %q not in %v", f.Name, sv, f.Enum))
				out[f.Name] = f.Default
			}
		}
	}
	return out, problems
}
