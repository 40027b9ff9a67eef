package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// variablePattern matches {{ variable }} templates.
var variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Interpolate replaces {{ variable }} placeholders in a string with values
// from state. Unknown variables are left unchanged.
func Interpolate(template string, state *ExecutionState) string {
	if state == nil {
		return template
	}

	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		submatches := variablePattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}
		value, exists := state.Outputs[submatches[1]]
		if !exists {
			return match
		}
		return valueToString(value)
	})
}

// InterpolateParams returns a copy of params with every string value
// interpolated, recursing into nested maps and lists. A string that is
// exactly one "{{ var }}" reference keeps the referenced value's type.
func InterpolateParams(params map[string]interface{}, state *ExecutionState) map[string]interface{} {
	if params == nil {
		return nil
	}

	result := make(map[string]interface{}, len(params))
	for key, value := range params {
		if state == nil {
			result[key] = value
			continue
		}
		result[key] = interpolateValue(value, state)
	}
	return result
}

func interpolateValue(value interface{}, state *ExecutionState) interface{} {
	switch v := value.(type) {
	case string:
		return interpolateString(v, state)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, val := range v {
			result[k] = interpolateValue(val, state)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = interpolateValue(val, state)
		}
		return result
	default:
		return value
	}
}

func interpolateString(s string, state *ExecutionState) interface{} {
	trimmed := strings.TrimSpace(s)

	if isPureVariableRef(trimmed) {
		submatches := variablePattern.FindStringSubmatch(trimmed)
		if len(submatches) >= 2 {
			if value, exists := state.Outputs[submatches[1]]; exists {
				return value
			}
		}
		return s
	}

	return Interpolate(s, state)
}

// isPureVariableRef checks if a string is exactly a single variable reference.
func isPureVariableRef(s string) bool {
	matches := variablePattern.FindAllStringIndex(s, -1)
	if len(matches) != 1 {
		return false
	}
	return matches[0][0] == 0 && matches[0][1] == len(s)
}

func valueToString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		// Whole numbers render without a fraction.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
