package assert

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/spf13/cast"
)

// looseEqual compares an extracted value against an expected argument.
// Absent equals only absent or an explicit null argument. Numbers compare
// by value regardless of Go kind (JSON decodes to float64, YAML to int);
// everything else compares structurally.
func looseEqual(actual any, present bool, expected any) bool {
	if !present {
		return expected == nil
	}
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	a, numA := numericValue(actual)
	b, numB := numericValue(expected)
	if numA || numB {
		return numA && numB && a == b
	}

	return reflect.DeepEqual(actual, expected)
}

func numericValue(v any) (float64, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return cast.ToFloat64(v), true
	default:
		return 0, false
	}
}

// coerceFloat mirrors loose numeric coercion: numbers, numeric strings,
// and bools coerce; absent, null, and everything else do not.
func coerceFloat(v any, present bool) (float64, bool) {
	if !present || v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// formatValue renders a value for result messages: strings bare,
// composites as compact JSON (map keys sorted, so output is stable).
func formatValue(v any) string {
	if v == nil {
		return "<nil>"
	}
	switch x := v.(type) {
	case string:
		return x
	case []any, map[string]any:
		if data, err := json.Marshal(x); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", x)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatExtracted(v any, present bool) string {
	if !present {
		return "<absent>"
	}
	return formatValue(v)
}

// stringify renders a value for substring testing. Absent and null render
// empty, strings render as-is, composites render as compact JSON.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case []any, map[string]any:
		if data, err := json.Marshal(x); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", x)
	default:
		if s, err := cast.ToStringE(x); err == nil {
			return s
		}
		return fmt.Sprintf("%v", x)
	}
}
