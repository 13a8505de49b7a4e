// verdict/pkg/ast/value.go

package ast

import "strings"

// Values flowing through the engine are plain decoded YAML/JSON data:
// nil, bool, float64, string, []interface{} or map[string]interface{}.
// The helpers below implement the loose comparison semantics the VM
// relies on: a coercion failure is reported via the ok flag, never a panic.

// AsNumber converts a value to float64 if it carries a numeric type.
func AsNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// AsString returns the value as a string if it is one.
func AsString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsBool returns the value as a bool if it is one.
func AsBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// Truthy reports whether a value counts as true on the operand stack.
// Only booleans are truthy-capable; everything else (including non-zero
// numbers) is false, which keeps conditional jumps strict.
func Truthy(v interface{}) bool {
	b, ok := AsBool(v)
	return ok && b
}

// Equal compares two values with numeric coercion, so 5 == 5.0 holds
// regardless of how the payload was decoded.
func Equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := AsNumber(a); ok {
		if bn, ok := AsNumber(b); ok {
			return an == bn
		}
		return false
	}
	if as, ok := AsString(a); ok {
		bs, ok := AsString(b)
		return ok && as == bs
	}
	if ab, ok := AsBool(a); ok {
		bb, ok := AsBool(b)
		return ok && ab == bb
	}
	return false
}

// LookupField walks a dotted path through nested maps. A missing or
// non-map intermediate yields (nil, false); absence is not an error.
func LookupField(root map[string]interface{}, path []string) (interface{}, bool) {
	var cur interface{} = root
	for _, seg := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// JoinPath formats a field path back into its dotted source form.
func JoinPath(path []string) string {
	return strings.Join(path, ".")
}
