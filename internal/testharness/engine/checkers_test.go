package engine

import (
	"context"
	"testing"
	"time"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{int(5), 5, true},
		{int64(-3), -3, true},
		{uint32(225), 225, true},
		{uint8(7), 7, true},
		{float32(1.5), 1.5, true},
		{"12", 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := ToFloat64(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ToFloat64(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestChecker_ValueComparisons(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set(KeyValue, uint32(200))

	tests := []struct {
		name     string
		checker  ExpectChecker
		expected interface{}
		passed   bool
	}{
		{"gt pass", CheckerValueGreaterThan, 175, true},
		{"gt equal", CheckerValueGreaterThan, 200, false},
		{"lt pass", CheckerValueLessThan, 225, true},
		{"lt fail", CheckerValueLessThan, 100, false},
		{"gt non-numeric", CheckerValueGreaterThan, "abc", false},
		{"range map", CheckerValueInRange, map[string]interface{}{"min": 175, "max": 225}, true},
		{"range list", CheckerValueInRange, []interface{}{200, 200}, true},
		{"range outside", CheckerValueInRange, []interface{}{0, 199}, false},
		{"range missing max", CheckerValueInRange, map[string]interface{}{"min": 0}, false},
		{"range bad shape", CheckerValueInRange, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.checker(tt.name, tt.expected, state)
			if result.Passed != tt.passed {
				t.Errorf("passed = %v, want %v (%s)", result.Passed, tt.passed, result.Message)
			}
		})
	}
}

func TestChecker_ValueMissing(t *testing.T) {
	state := NewExecutionState(context.Background())

	for _, c := range []ExpectChecker{CheckerValueGreaterThan, CheckerValueLessThan, CheckerValueInRange} {
		if r := c("k", 1, state); r.Passed {
			t.Errorf("expected failure when %q output is missing", KeyValue)
		}
	}
}

func TestChecker_MessagesInclude(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set(KeyMessages, []map[string]interface{}{
		{"key": "curFunds", "cents": 200},
		{"key": "order", "small": 1, "medium": 0, "large": 0},
		{"key": "receipt", "small_subtotal": 175},
		{"key": "refund", "cents": 25},
	})

	tests := []struct {
		name     string
		expected interface{}
		passed   bool
	}{
		{"single", []interface{}{map[string]interface{}{"key": "order", "small": 1}}, true},
		{"in order with gaps", []interface{}{
			map[string]interface{}{"key": "curFunds"},
			map[string]interface{}{"key": "refund", "cents": 25},
		}, true},
		{"out of order", []interface{}{
			map[string]interface{}{"key": "refund"},
			map[string]interface{}{"key": "order"},
		}, false},
		{"wrong value", []interface{}{map[string]interface{}{"key": "refund", "cents": 50}}, false},
		{"empty", []interface{}{}, true},
		{"not a list", "order", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckerMessagesInclude(CheckerNameMessagesInclude, tt.expected, state)
			if result.Passed != tt.passed {
				t.Errorf("passed = %v, want %v (%s)", result.Passed, tt.passed, result.Message)
			}
		})
	}
}

func TestChecker_NoMessages(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set(KeyMessageCount, 0)

	if r := CheckerNoMessages(CheckerNameNoMessages, true, state); !r.Passed {
		t.Errorf("no_messages: true with zero messages should pass: %s", r.Message)
	}
	if r := CheckerNoMessages(CheckerNameNoMessages, false, state); r.Passed {
		t.Error("no_messages: false with zero messages should fail")
	}

	state.Set(KeyMessageCount, 2)
	if r := CheckerNoMessages(CheckerNameNoMessages, true, state); r.Passed {
		t.Error("no_messages: true with two messages should fail")
	}
}

func TestChecker_Contains(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set(KeyMessageKeys, []string{"curFunds", "order"})
	state.Set("sizes", []interface{}{"small", "large"})

	tests := []struct {
		name     string
		expected interface{}
		passed   bool
	}{
		{"single key", "order", true},
		{"list of keys", []interface{}{"order", "curFunds"}, true},
		{"absent key", "refund", false},
		{"named output", map[string]interface{}{"sizes": "large"}, true},
		{"named output absent", map[string]interface{}{"sizes": "medium"}, false},
		{"unknown output", map[string]interface{}{"nope": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckerContains(CheckerNameContains, tt.expected, state)
			if result.Passed != tt.passed {
				t.Errorf("passed = %v, want %v (%s)", result.Passed, tt.passed, result.Message)
			}
		})
	}
}

func TestChecker_SaveAsAndValueEquals(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set(InternalStepOutput, map[string]interface{}{"value": 200, "message_count": 1})

	if r := CheckerSaveAs(CheckerNameSaveAs, "before", state); !r.Passed {
		t.Fatalf("save_as failed: %s", r.Message)
	}
	if _, ok := state.Get("before"); !ok {
		t.Fatal("saved output not found in state")
	}

	if r := CheckerValueEquals(CheckerNameValueEquals, "before", state); !r.Passed {
		t.Errorf("identical output should match: %s", r.Message)
	}

	state.Set(InternalStepOutput, map[string]interface{}{"value": 0, "message_count": 1})
	if r := CheckerValueEquals(CheckerNameValueEquals, "before", state); r.Passed {
		t.Error("changed value should not match")
	}

	if r := CheckerValueEquals(CheckerNameValueEquals, "unknown", state); r.Passed {
		t.Error("unknown saved name should fail")
	}
	if r := CheckerSaveAs(CheckerNameSaveAs, 42, state); r.Passed {
		t.Error("non-string save_as target should fail")
	}
}

func TestChecker_Errors(t *testing.T) {
	state := NewExecutionState(context.Background())

	if r := CheckerNoError(CheckerNameNoError, true, state); !r.Passed {
		t.Error("no_error should pass without an error output")
	}
	if r := CheckerErrorMessageContains(CheckerNameErrorMessageContains, "destroyed", state); r.Passed {
		t.Error("error_message_contains should fail without an error output")
	}

	state.Set(KeyError, "gpio: pin destroyed")
	if r := CheckerNoError(CheckerNameNoError, true, state); r.Passed {
		t.Error("no_error should fail with an error output")
	}
	if r := CheckerErrorMessageContains(CheckerNameErrorMessageContains, "destroyed", state); !r.Passed {
		t.Errorf("error_message_contains should pass: %s", r.Message)
	}
	if r := CheckerErrorMessageContains(CheckerNameErrorMessageContains, "timeout", state); r.Passed {
		t.Error("error_message_contains should fail on other text")
	}

	// A later step without an error output must not see the earlier one.
	state.Set(InternalStepOutput, map[string]interface{}{KeyMessageCount: 0})
	if r := CheckerNoError(CheckerNameNoError, true, state); !r.Passed {
		t.Errorf("no_error should only look at the current step: %s", r.Message)
	}
}

func TestChecker_ElapsedUnder(t *testing.T) {
	state := NewExecutionState(context.Background())
	state.Set(KeyElapsed, 20*time.Millisecond)

	tests := []struct {
		expected interface{}
		passed   bool
	}{
		{"100ms", true},
		{"20ms", false},
		{50, true},
		{float64(10), false},
		{"soon", false},
	}

	for _, tt := range tests {
		result := CheckerElapsedUnder(CheckerNameElapsedUnder, tt.expected, state)
		if result.Passed != tt.passed {
			t.Errorf("elapsed_under(%v) = %v, want %v (%s)", tt.expected, result.Passed, tt.passed, result.Message)
		}
	}
}
