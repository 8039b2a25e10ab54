package scenes

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// stringify renders a scalar the way it appears in interpolated text.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	case []any:
		return strings.Join(toStringSlice(v), ",")
	}
	return fmt.Sprint(value)
}

// toStringSlice flattens a value into its string elements. Scalars become a
// one-element slice and nil an empty one.
func toStringSlice(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		return v
	case string:
		return []string{v}
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = stringify(item)
		}
		return out
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = stringify(rv.Index(i).Interface())
		}
		return out
	}
	return []string{stringify(value)}
}

// normalizeFormatValue reduces value to the string or []string formatters
// accept.
func normalizeFormatValue(value any) any {
	switch v := value.(type) {
	case string, []string:
		return v
	case nil:
		return ""
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return toStringSlice(value)
	}
	return stringify(value)
}

func joinStrings(list []string, sep string) string {
	return strings.Join(list, sep)
}

// lookupField resolves a dotted path inside nested maps and slices.
func lookupField(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}
	current := value
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case State:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		case []string:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
