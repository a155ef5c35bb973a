package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// ValidateArguments checks args against a JSON Schema object. It covers the
// subset of JSON Schema the tool parameter schemas use: type, required,
// properties, additionalProperties=false, enum, items, minimum and maximum.
func ValidateArguments(params json.RawMessage, args map[string]any) error {
	var s map[string]any
	if err := json.Unmarshal(params, &s); err != nil {
		return fmt.Errorf("decode schema: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return validateValue(s, args, "")
}

func validateValue(s map[string]any, value any, path string) error {
	if s == nil {
		return nil
	}

	if types := schemaTypes(s["type"]); len(types) > 0 {
		matched := false
		for _, t := range types {
			if err := validateType(value, t); err == nil {
				matched = true
				break
			} else if strings.HasPrefix(err.Error(), "unsupported") {
				return fieldError(path, err)
			}
		}
		if !matched {
			return fieldError(path, fmt.Errorf("expected %s but got %s", strings.Join(types, " or "), jsonTypeName(value)))
		}
	}

	if enum, ok := s["enum"].([]any); ok && len(enum) > 0 {
		if !inEnum(value, enum) {
			return fieldError(path, fmt.Errorf("value %v is not one of %v", value, enum))
		}
	}

	if n, ok := toFloat(value); ok {
		if lo, ok := toFloat(s["minimum"]); ok && n < lo {
			return fieldError(path, fmt.Errorf("value %v is below minimum %v", n, lo))
		}
		if hi, ok := toFloat(s["maximum"]); ok && n > hi {
			return fieldError(path, fmt.Errorf("value %v is above maximum %v", n, hi))
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return validateObject(s, v, path)
	case []any:
		items, _ := s["items"].(map[string]any)
		for i, item := range v {
			if err := validateValue(items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateObject(s map[string]any, obj map[string]any, path string) error {
	required, _ := s["required"].([]any)
	for _, r := range required {
		field, _ := r.(string)
		if _, ok := obj[field]; !ok {
			return fmt.Errorf("missing required field: %s", joinPath(path, field))
		}
	}

	props, _ := s["properties"].(map[string]any)
	closed := false
	if ap, ok := s["additionalProperties"].(bool); ok && !ap {
		closed = true
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		propDef, ok := props[key].(map[string]any)
		if !ok {
			if closed {
				return fmt.Errorf("unexpected field: %s", joinPath(path, key))
			}
			continue
		}
		if err := validateValue(propDef, obj[key], joinPath(path, key)); err != nil {
			return err
		}
	}
	return nil
}

func schemaTypes(t any) []string {
	switch v := t.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func validateType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if _, ok := toFloat(value); ok {
			return nil
		}
	case "integer":
		if isInteger(value) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	case "null":
		if value == nil {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %s", expected, jsonTypeName(value))
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return math.Trunc(v) == v && !math.IsInf(v, 0)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}

func inEnum(value any, enum []any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(value, e) {
			return true
		}
		a, okA := toFloat(value)
		b, okB := toFloat(e)
		if okA && okB && a == b {
			return true
		}
	}
	return false
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", value)
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func fieldError(path string, err error) error {
	if path == "" {
		return err
	}
	return fmt.Errorf("field %s: %w", path, err)
}
