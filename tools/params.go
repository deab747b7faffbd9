package tools

import (
	"fmt"
	"math"
	"strconv"
)

// String returns params[name] as a string. Numbers and booleans are
// formatted; any other type is an error.
func String(params map[string]any, name string) (string, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, name)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", fmt.Errorf("parameter %s: expected string, got %T", name, v)
}

// Int returns params[name] as an int, or def when absent. JSON numbers
// arrive as float64 and must be whole; numeric strings are accepted too.
func Int(params map[string]any, name string, def int) (int, error) {
	v, ok := params[name]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("parameter %s: %v is not an integer", name, x)
		}
		return int(x), nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, fmt.Errorf("parameter %s: %w", name, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("parameter %s: expected integer, got %T", name, v)
}
