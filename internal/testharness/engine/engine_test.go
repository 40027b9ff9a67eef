package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vendsim/vendsim-go/internal/testharness/engine"
	"github.com/vendsim/vendsim-go/internal/testharness/loader"
)

func okHandler(out map[string]interface{}) engine.ActionHandler {
	return func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		return out, nil
	}
}

// TestEngineBasic tests basic engine functionality.
func TestEngineBasic(t *testing.T) {
	e := engine.New()
	e.RegisterHandler("press", okHandler(map[string]interface{}{"message_count": 1}))

	if !e.HasHandler("press") {
		t.Fatal("HasHandler(press) = false")
	}
	if e.HasHandler("dance") {
		t.Fatal("HasHandler(dance) = true")
	}

	tc := &loader.TestCase{
		ID:   "TC-001",
		Name: "Basic Test",
		Steps: []loader.Step{
			{Action: "press", Expect: map[string]interface{}{"message_count": 1}},
		},
	}

	result := e.Run(context.Background(), tc)

	if !result.Passed {
		t.Errorf("Test should pass, error: %v", result.Error)
	}
	if len(result.StepResults) != 1 {
		t.Errorf("Expected 1 step result, got %d", len(result.StepResults))
	}
	if result.EndTime.Before(result.StartTime) {
		t.Error("EndTime before StartTime")
	}
}

// TestEngineSteps tests sequential step execution and output carry-over.
func TestEngineSteps(t *testing.T) {
	e := engine.New()

	var order []string
	e.RegisterHandler("deposit", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		order = append(order, "deposit")
		return map[string]interface{}{"value": 200}, nil
	})
	e.RegisterHandler("press", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		order = append(order, "press")
		if _, ok := state.Get("value"); !ok {
			return nil, errors.New("value from deposit not found")
		}
		return map[string]interface{}{"pressed": step.Params["button"]}, nil
	})

	tc := &loader.TestCase{
		ID: "TC-STEPS",
		Steps: []loader.Step{
			{Action: "deposit", Expect: map[string]interface{}{"value": 200}},
			{Action: "press", Params: map[string]interface{}{"button": "small"}, Expect: map[string]interface{}{"pressed": "small"}},
		},
	}

	result := e.Run(context.Background(), tc)

	if !result.Passed {
		t.Errorf("Test should pass, error: %v", result.Error)
	}
	if len(order) != 2 || order[0] != "deposit" || order[1] != "press" {
		t.Errorf("execution order = %v", order)
	}
}

// TestEngineParamInterpolation tests that step params see earlier outputs.
func TestEngineParamInterpolation(t *testing.T) {
	e := engine.New()

	var got interface{}
	e.RegisterHandler("produce", okHandler(map[string]interface{}{"cents": 125}))
	e.RegisterHandler("consume", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		got = step.Params["cents"]
		return nil, nil
	})

	params := map[string]interface{}{"cents": "{{ cents }}"}
	tc := &loader.TestCase{
		ID: "TC-INTERP",
		Steps: []loader.Step{
			{Action: "produce"},
			{Action: "consume", Params: params},
		},
	}

	result := e.Run(context.Background(), tc)
	if !result.Passed {
		t.Fatalf("Test should pass, error: %v", result.Error)
	}
	if got != 125 {
		t.Errorf("interpolated cents = %v (%T), want 125", got, got)
	}
	if params["cents"] != "{{ cents }}" {
		t.Error("step params were modified in place")
	}
}

// TestEngineSkip tests that skipped cases never run.
func TestEngineSkip(t *testing.T) {
	e := engine.New()

	ran := false
	e.RegisterHandler("press", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		ran = true
		return nil, nil
	})

	tc := &loader.TestCase{
		ID:    "TC-SKIP",
		Skip:  "hardware not wired",
		Steps: []loader.Step{{Action: "press"}},
	}

	result := e.Run(context.Background(), tc)
	if !result.Skipped {
		t.Fatal("expected skipped result")
	}
	if result.SkipReason != "hardware not wired" {
		t.Errorf("SkipReason = %q", result.SkipReason)
	}
	if ran {
		t.Error("handler ran for skipped test")
	}
}

// TestDefaultChecker_PresentValue tests that "present" means "key exists".
func TestDefaultChecker_PresentValue(t *testing.T) {
	e := engine.New()
	e.RegisterHandler("emit", okHandler(map[string]interface{}{"machine_id": "vm-1"}))

	tc := &loader.TestCase{
		ID: "TC-PRESENT",
		Steps: []loader.Step{
			{Action: "emit", Expect: map[string]interface{}{"machine_id": "present"}},
		},
	}
	if result := e.Run(context.Background(), tc); !result.Passed {
		t.Errorf("expected pass, error: %v", result.Error)
	}

	tc.Steps[0].Expect = map[string]interface{}{"funds": "present"}
	if result := e.Run(context.Background(), tc); result.Passed {
		t.Error("expected failure when key is missing")
	}
}

// TestDefaultChecker_ListOfMaps tests subset matching of message lists.
func TestDefaultChecker_ListOfMaps(t *testing.T) {
	e := engine.New()
	e.RegisterHandler("emit", okHandler(map[string]interface{}{
		"messages": []map[string]interface{}{
			{"key": "curFunds", "cents": uint32(200), "size": 4},
			{"key": "order", "small": uint32(1)},
		},
		"message_keys": []string{"curFunds", "order"},
		"order":        map[string]interface{}{"key": "order", "small": uint32(1), "size": 12},
	}))

	tests := []struct {
		name   string
		expect map[string]interface{}
		passed bool
	}{
		{"subset", map[string]interface{}{"messages": []interface{}{
			map[string]interface{}{"key": "curFunds", "cents": 200},
			map[string]interface{}{"key": "order"},
		}}, true},
		{"wrong length", map[string]interface{}{"messages": []interface{}{
			map[string]interface{}{"key": "curFunds"},
		}}, false},
		{"wrong value", map[string]interface{}{"messages": []interface{}{
			map[string]interface{}{"key": "curFunds", "cents": 175},
			map[string]interface{}{"key": "order"},
		}}, false},
		{"missing field", map[string]interface{}{"messages": []interface{}{
			map[string]interface{}{"key": "curFunds"},
			map[string]interface{}{"key": "order", "large": 0},
		}}, false},
		{"key list", map[string]interface{}{"message_keys": []interface{}{"curFunds", "order"}}, true},
		{"map subset", map[string]interface{}{"order": map[string]interface{}{"small": 1}}, true},
		{"map mismatch", map[string]interface{}{"order": map[string]interface{}{"small": 2}}, false},
		{"map missing key", map[string]interface{}{"order": map[string]interface{}{"large": 0}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &loader.TestCase{ID: "TC-LIST", Steps: []loader.Step{{Action: "emit", Expect: tt.expect}}}
			result := e.Run(context.Background(), tc)
			if result.Passed != tt.passed {
				t.Errorf("passed = %v, want %v (err %v)", result.Passed, tt.passed, result.Error)
			}
		})
	}
}

// TestEngineTimeout tests step timeout handling.
func TestEngineTimeout(t *testing.T) {
	config := engine.DefaultConfig()
	config.StepTimeout = 50 * time.Millisecond

	e := engine.NewWithConfig(config)
	e.RegisterHandler("slow", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return map[string]interface{}{"done": true}, nil
		}
	})

	tc := &loader.TestCase{ID: "TC-TIMEOUT", Steps: []loader.Step{{Action: "slow"}}}
	result := e.Run(context.Background(), tc)

	if result.Passed {
		t.Error("Test should fail due to timeout")
	}
	if !errors.Is(result.Error, context.DeadlineExceeded) {
		t.Errorf("Error = %v, want deadline exceeded", result.Error)
	}
}

// TestEngineDurationExtendsTimeout tests that duration_ms lengthens a short step timeout.
func TestEngineDurationExtendsTimeout(t *testing.T) {
	config := engine.DefaultConfig()
	config.StepTimeout = time.Millisecond

	e := engine.NewWithConfig(config)
	e.RegisterHandler("wait", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return nil, nil
		}
	})

	tc := &loader.TestCase{ID: "TC-WAIT", Steps: []loader.Step{
		{Action: "wait", Params: map[string]interface{}{"duration_ms": 20}},
	}}
	if result := e.Run(context.Background(), tc); !result.Passed {
		t.Errorf("Test should pass, error: %v", result.Error)
	}
}

// TestEngineSetupTeardown tests the per-test fixture hooks.
func TestEngineSetupTeardown(t *testing.T) {
	config := engine.DefaultConfig()

	var torn []string
	config.Setup = func(ctx context.Context, tc *loader.TestCase, state *engine.ExecutionState) error {
		if tc.ID == "TC-BAD" {
			return errors.New("no machine")
		}
		state.Fixture = tc.ID
		return nil
	}
	config.Teardown = func(tc *loader.TestCase, state *engine.ExecutionState) {
		torn = append(torn, state.Fixture.(string))
	}

	e := engine.NewWithConfig(config)
	e.RegisterHandler("check", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		return map[string]interface{}{"fixture": state.Fixture}, nil
	})
	e.RegisterHandler("fail", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		return nil, errors.New("boom")
	})

	good := &loader.TestCase{ID: "TC-GOOD", Steps: []loader.Step{
		{Action: "check", Expect: map[string]interface{}{"fixture": "TC-GOOD"}},
	}}
	failing := &loader.TestCase{ID: "TC-FAIL", Steps: []loader.Step{{Action: "fail"}}}
	bad := &loader.TestCase{ID: "TC-BAD", Steps: []loader.Step{{Action: "check"}}}

	if r := e.Run(context.Background(), good); !r.Passed {
		t.Errorf("TC-GOOD should pass: %v", r.Error)
	}
	if r := e.Run(context.Background(), failing); r.Passed {
		t.Error("TC-FAIL should fail")
	}
	r := e.Run(context.Background(), bad)
	if r.Passed || r.Error == nil {
		t.Error("TC-BAD should fail in setup")
	}
	if len(r.StepResults) != 0 {
		t.Error("steps ran after failed setup")
	}

	if len(torn) != 2 || torn[0] != "TC-GOOD" || torn[1] != "TC-FAIL" {
		t.Errorf("teardown calls = %v, want [TC-GOOD TC-FAIL]", torn)
	}
}

// TestEngineResults tests suite result collection.
func TestEngineResults(t *testing.T) {
	e := engine.New()
	e.RegisterHandler("pass", okHandler(map[string]interface{}{"pass": true}))
	e.RegisterHandler("fail", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		return nil, errors.New("intentional failure")
	})

	var completed []string
	cases := []*loader.TestCase{
		{ID: "TC-PASS-1", Steps: []loader.Step{{Action: "pass", Expect: map[string]interface{}{"pass": true}}}},
		{ID: "TC-PASS-2", Steps: []loader.Step{{Action: "pass"}}},
		{ID: "TC-SKIP", Skip: "later", Steps: []loader.Step{{Action: "pass"}}},
		{ID: "TC-FAIL", Steps: []loader.Step{{Action: "fail"}}},
	}

	config := engine.DefaultConfig()
	config.OnTestComplete = func(r *engine.TestResult) { completed = append(completed, r.TestCase.ID) }
	e2 := engine.NewWithConfig(config)
	e2.RegisterHandler("pass", okHandler(map[string]interface{}{"pass": true}))
	e2.RegisterHandler("fail", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		return nil, errors.New("intentional failure")
	})

	for _, eng := range []*engine.Engine{e, e2} {
		result := eng.RunSuite(context.Background(), cases)
		if result.PassCount != 2 || result.FailCount != 1 || result.SkipCount != 1 {
			t.Errorf("counts = %d/%d/%d, want 2/1/1", result.PassCount, result.FailCount, result.SkipCount)
		}
		if len(result.Results) != 4 {
			t.Errorf("Expected 4 results, got %d", len(result.Results))
		}
	}
	if len(completed) != 4 {
		t.Errorf("OnTestComplete called %d times, want 4", len(completed))
	}
}

// TestEngineStopOnFirstFailure tests stop-on-failure mode.
func TestEngineStopOnFirstFailure(t *testing.T) {
	config := engine.DefaultConfig()
	config.StopOnFirstFailure = true

	e := engine.NewWithConfig(config)

	executed := make(map[string]bool)
	e.RegisterHandler("pass", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		executed[step.Params["id"].(string)] = true
		return nil, nil
	})
	e.RegisterHandler("fail", func(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]interface{}, error) {
		executed[step.Params["id"].(string)] = true
		return nil, errors.New("fail")
	})

	cases := []*loader.TestCase{
		{ID: "TC-1", Steps: []loader.Step{{Action: "pass", Params: map[string]interface{}{"id": "1"}}}},
		{ID: "TC-2", Steps: []loader.Step{{Action: "fail", Params: map[string]interface{}{"id": "2"}}}},
		{ID: "TC-3", Steps: []loader.Step{{Action: "pass", Params: map[string]interface{}{"id": "3"}}}},
	}

	result := e.RunSuite(context.Background(), cases)

	if executed["3"] {
		t.Error("TC-3 should not have executed after TC-2 failed")
	}
	if result.FailCount != 1 {
		t.Errorf("Expected 1 failure, got %d", result.FailCount)
	}
	if len(result.Results) != 2 {
		t.Errorf("Expected 2 results (stopped after failure), got %d", len(result.Results))
	}
}

// TestEngineExpectations tests that every expectation is recorded.
func TestEngineExpectations(t *testing.T) {
	e := engine.New()
	engine.RegisterEnhancedCheckers(e)
	e.RegisterHandler("produce", okHandler(map[string]interface{}{
		"value":         uint32(200),
		"message_count": 0,
		"machine_id":    "vm-1",
	}))

	tc := &loader.TestCase{
		ID: "TC-EXPECT",
		Steps: []loader.Step{{
			Action: "produce",
			Expect: map[string]interface{}{
				"value_greater_than": 175,
				"no_messages":        true,
				"machine_id":         "vm-1",
			},
		}},
	}

	result := e.Run(context.Background(), tc)
	if !result.Passed {
		t.Errorf("Test should pass, error: %v", result.Error)
	}

	sr := result.StepResults[0]
	if len(sr.ExpectResults) != 3 {
		t.Errorf("Expected 3 expect results, got %d", len(sr.ExpectResults))
	}
	for key, er := range sr.ExpectResults {
		if !er.Passed {
			t.Errorf("Expectation %s should pass: %s", key, er.Message)
		}
	}
}

// TestEngineUnknownAction tests handling of unknown actions.
func TestEngineUnknownAction(t *testing.T) {
	e := engine.New()

	tc := &loader.TestCase{ID: "TC-UNKNOWN", Steps: []loader.Step{{Action: "nonexistent_action"}}}
	result := e.Run(context.Background(), tc)

	if result.Passed {
		t.Error("Test should fail for unknown action")
	}
	if result.Error == nil {
		t.Error("Error should be set")
	}
}
