package engine

import (
	"fmt"
	"strings"
	"time"
)

// ToFloat64 converts various numeric types to float64 for comparison.
func ToFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint8:
		return float64(n), true
	default:
		return 0, false
	}
}

// stepValue looks key up in the current step's output, falling back to the
// accumulated outputs when no step has run.
func stepValue(state *ExecutionState, key string) (interface{}, bool) {
	if out, ok := state.Get(InternalStepOutput); ok {
		if m, ok := out.(map[string]interface{}); ok {
			v, exists := m[key]
			return v, exists
		}
	}
	return state.Get(key)
}

func missing(key, output string, expected interface{}) *ExpectResult {
	return &ExpectResult{
		Key:      key,
		Expected: expected,
		Passed:   false,
		Message:  fmt.Sprintf("output key %q not found", output),
	}
}

// compareValue applies cmp to the numeric "value" output and expected.
func compareValue(key string, expected interface{}, state *ExecutionState, op string, cmp func(a, b float64) bool) *ExpectResult {
	actual, exists := state.Get(KeyValue)
	if !exists {
		return missing(key, KeyValue, expected)
	}

	actualNum, ok1 := ToFloat64(actual)
	expectedNum, ok2 := ToFloat64(expected)
	if !ok1 || !ok2 {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Actual:   actual,
			Passed:   false,
			Message:  fmt.Sprintf("cannot compare non-numeric values: %T and %T", actual, expected),
		}
	}

	passed := cmp(actualNum, expectedNum)
	return &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  fmt.Sprintf("%v %s %v = %v", actualNum, op, expectedNum, passed),
	}
}

// CheckerValueGreaterThan checks if the "value" output is greater than expected.
func CheckerValueGreaterThan(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	return compareValue(key, expected, state, ">", func(a, b float64) bool { return a > b })
}

// CheckerValueLessThan checks if the "value" output is less than expected.
func CheckerValueLessThan(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	return compareValue(key, expected, state, "<", func(a, b float64) bool { return a < b })
}

// CheckerValueInRange checks if the "value" output is within [min, max].
// Expected is a map with "min" and "max" keys or a [min, max] array.
func CheckerValueInRange(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(KeyValue)
	if !exists {
		return missing(key, KeyValue, expected)
	}

	var minVal, maxVal interface{}
	switch e := expected.(type) {
	case map[string]interface{}:
		var hasMin, hasMax bool
		minVal, hasMin = e["min"]
		maxVal, hasMax = e["max"]
		if !hasMin || !hasMax {
			return &ExpectResult{
				Key: key, Expected: expected, Actual: actual,
				Passed: false, Message: "expected must have both 'min' and 'max' keys",
			}
		}
	case []interface{}:
		if len(e) != 2 {
			return &ExpectResult{
				Key: key, Expected: expected, Actual: actual,
				Passed: false, Message: "expected array must have exactly 2 elements [min, max]",
			}
		}
		minVal, maxVal = e[0], e[1]
	default:
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual,
			Passed: false, Message: "expected must be a map with 'min'/'max' or a [min, max] array",
		}
	}

	actualNum, ok1 := ToFloat64(actual)
	minNum, ok2 := ToFloat64(minVal)
	maxNum, ok3 := ToFloat64(maxVal)
	if !ok1 || !ok2 || !ok3 {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Actual:   actual,
			Passed:   false,
			Message:  "cannot compare non-numeric values",
		}
	}

	passed := actualNum >= minNum && actualNum <= maxNum
	return &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  fmt.Sprintf("%v in [%v, %v] = %v", actualNum, minNum, maxNum, passed),
	}
}

// CheckerMessagesInclude checks that each expected message appears in the
// "messages" output, in order, with other messages allowed in between.
// Each expected entry is matched as a subset of the actual message map.
func CheckerMessagesInclude(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(KeyMessages)
	if !exists {
		return missing(key, KeyMessages, expected)
	}

	expList, ok := toList(expected)
	if !ok {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: false,
			Message: fmt.Sprintf("expected must be a list, got %T", expected),
		}
	}
	actList, ok := toList(actual)
	if !ok {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: false,
			Message: fmt.Sprintf("messages output is not a list: %T", actual),
		}
	}

	next := 0
	for i, exp := range expList {
		found := false
		for next < len(actList) {
			ok, _ := matchItem(exp, actList[next])
			next++
			if ok {
				found = true
				break
			}
		}
		if !found {
			return &ExpectResult{
				Key: key, Expected: expected, Actual: actual, Passed: false,
				Message: fmt.Sprintf("expected message[%d] %v not found in order", i, exp),
			}
		}
	}

	return &ExpectResult{
		Key: key, Expected: expected, Actual: actual, Passed: true,
		Message: fmt.Sprintf("all %d expected messages found", len(expList)),
	}
}

// CheckerNoMessages checks whether the step produced any messages.
// Used in YAML as: no_messages: true
func CheckerNoMessages(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	actual, _ := stepValue(state, KeyMessageCount)
	count, _ := ToFloat64(actual)
	want, _ := expected.(bool)

	passed := (count == 0) == want
	return &ExpectResult{
		Key: key, Expected: expected, Actual: actual, Passed: passed,
		Message: fmt.Sprintf("message count %v, no messages = %v", count, count == 0),
	}
}

// CheckerContains checks that the list output named by key contains every
// expected item. Expected may be a single item or a list.
func CheckerContains(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	target, item := KeyMessageKeys, expected
	if m, ok := expected.(map[string]interface{}); ok && len(m) == 1 {
		for k, v := range m {
			target, item = k, v
		}
	}

	actual, exists := state.Get(target)
	if !exists {
		return missing(key, target, expected)
	}
	actList, ok := toList(actual)
	if !ok {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: false,
			Message: fmt.Sprintf("output %q is not a list: %T", target, actual),
		}
	}

	have := make(map[string]bool, len(actList))
	for _, a := range actList {
		have[fmt.Sprintf("%v", a)] = true
	}

	wantList, ok := toList(item)
	if !ok {
		wantList = []interface{}{item}
	}
	var absent []string
	for _, w := range wantList {
		if s := fmt.Sprintf("%v", w); !have[s] {
			absent = append(absent, s)
		}
	}

	passed := len(absent) == 0
	msg := fmt.Sprintf("%s contains all %d items", target, len(wantList))
	if !passed {
		msg = fmt.Sprintf("%s missing %v", target, absent)
	}
	return &ExpectResult{Key: key, Expected: expected, Actual: actual, Passed: passed, Message: msg}
}

// CheckerSaveAs stores the complete output of the current step under the
// given name for use by later steps.
func CheckerSaveAs(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	targetKey, ok := expected.(string)
	if !ok {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Passed:   false,
			Message:  fmt.Sprintf("save_as target must be a string, got %T", expected),
		}
	}

	output, exists := state.Get(InternalStepOutput)
	if !exists {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Passed:   false,
			Message:  "no step output to save",
		}
	}

	state.Set(targetKey, output)
	return &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   output,
		Passed:   true,
		Message:  fmt.Sprintf("saved step output as %q", targetKey),
	}
}

// CheckerValueEquals compares the current step's output with a previously saved
// output (stored via save_as). All keys present in the saved map must match.
func CheckerValueEquals(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	savedName, ok := expected.(string)
	if !ok {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Passed:   false,
			Message:  fmt.Sprintf("value_equals target must be a string, got %T", expected),
		}
	}

	savedVal, exists := state.Get(savedName)
	if !exists {
		return &ExpectResult{
			Key:      key,
			Expected: savedName,
			Passed:   false,
			Message:  fmt.Sprintf("saved value %q not found", savedName),
		}
	}

	currentOutput, _ := state.Get(InternalStepOutput)

	savedMap, savedIsMap := savedVal.(map[string]interface{})
	currentMap, currentIsMap := currentOutput.(map[string]interface{})

	if savedIsMap && currentIsMap {
		var mismatches []string
		for k, sv := range savedMap {
			cv, has := currentMap[k]
			if !has || fmt.Sprintf("%v", sv) != fmt.Sprintf("%v", cv) {
				mismatches = append(mismatches, fmt.Sprintf("%s: saved=%v current=%v", k, sv, cv))
			}
		}
		passed := len(mismatches) == 0
		msg := "values match"
		if !passed {
			msg = fmt.Sprintf("mismatches: %v", mismatches)
		}
		return &ExpectResult{
			Key:      key,
			Expected: savedVal,
			Actual:   currentOutput,
			Passed:   passed,
			Message:  msg,
		}
	}

	passed := fmt.Sprintf("%v", savedVal) == fmt.Sprintf("%v", currentOutput)
	return &ExpectResult{
		Key:      key,
		Expected: savedVal,
		Actual:   currentOutput,
		Passed:   passed,
		Message:  fmt.Sprintf("saved=%v current=%v", savedVal, currentOutput),
	}
}

// CheckerErrorMessageContains checks that the current step's "error" output
// contains the expected substring.
func CheckerErrorMessageContains(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	actual, exists := stepValue(state, KeyError)
	if !exists {
		return missing(key, KeyError, expected)
	}

	actualStr, ok1 := actual.(string)
	expectedStr, ok2 := expected.(string)
	if !ok1 || !ok2 {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Actual:   actual,
			Passed:   false,
			Message:  fmt.Sprintf("expected string types for contains check, got %T and %T", actual, expected),
		}
	}

	passed := strings.Contains(actualStr, expectedStr)
	return &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  fmt.Sprintf("error message contains %q: %v", expectedStr, passed),
	}
}

// CheckerNoError verifies the current step's "error" output is absent, nil,
// or empty. Used in YAML as: no_error: true
func CheckerNoError(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	actual, exists := stepValue(state, KeyError)
	if !exists || actual == nil || actual == "" {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: true,
			Message: "no error present",
		}
	}
	return &ExpectResult{
		Key: key, Expected: expected, Actual: actual, Passed: false,
		Message: fmt.Sprintf("error present: %v", actual),
	}
}

// CheckerElapsedUnder checks that the "elapsed" output is under the expected
// threshold. The expected value is a duration string (e.g. "100ms") or a
// number of milliseconds.
func CheckerElapsedUnder(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(KeyElapsed)
	if !exists {
		return missing(key, KeyElapsed, expected)
	}

	threshold, err := parseDuration(expected)
	if err != nil {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: false,
			Message: fmt.Sprintf("cannot parse threshold %v as duration", expected),
		}
	}

	actualDur, err := parseDuration(actual)
	if err != nil {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual, Passed: false,
			Message: fmt.Sprintf("cannot parse actual value %v as duration", actual),
		}
	}

	passed := actualDur < threshold
	return &ExpectResult{
		Key: key, Expected: expected, Actual: actual, Passed: passed,
		Message: fmt.Sprintf("%s: %v < %v = %v", KeyElapsed, actualDur, threshold, passed),
	}
}

// parseDuration parses a value as time.Duration. Supports:
// - time.Duration (returned as-is)
// - string ("1000ms", "5s", etc.)
// - numeric values (treated as milliseconds)
func parseDuration(v interface{}) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case string:
		return time.ParseDuration(val)
	default:
		if f, ok := ToFloat64(v); ok {
			return time.Duration(f * float64(time.Millisecond)), nil
		}
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}

// RegisterEnhancedCheckers registers all standard checkers with the engine.
func RegisterEnhancedCheckers(e *Engine) {
	e.RegisterChecker(CheckerNameValueGreaterThan, CheckerValueGreaterThan)
	e.RegisterChecker(CheckerNameValueLessThan, CheckerValueLessThan)
	e.RegisterChecker(CheckerNameValueInRange, CheckerValueInRange)
	e.RegisterChecker(CheckerNameMessagesInclude, CheckerMessagesInclude)
	e.RegisterChecker(CheckerNameNoMessages, CheckerNoMessages)
	e.RegisterChecker(CheckerNameContains, CheckerContains)
	e.RegisterChecker(CheckerNameSaveAs, CheckerSaveAs)
	e.RegisterChecker(CheckerNameValueEquals, CheckerValueEquals)
	e.RegisterChecker(CheckerNameErrorMessageContains, CheckerErrorMessageContains)
	e.RegisterChecker(CheckerNameNoError, CheckerNoError)
	e.RegisterChecker(CheckerNameElapsedUnder, CheckerElapsedUnder)
}
