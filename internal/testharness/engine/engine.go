package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vendsim/vendsim-go/internal/testharness/loader"
)

// Engine executes test cases.
type Engine struct {
	config   *EngineConfig
	handlers map[string]ActionHandler
	checkers map[string]ExpectChecker
	mu       sync.RWMutex
}

// New creates a new test engine with default configuration.
func New() *Engine {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new test engine with the given configuration.
func NewWithConfig(config *EngineConfig) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Engine{
		config:   config,
		handlers: make(map[string]ActionHandler),
		checkers: make(map[string]ExpectChecker),
	}

	e.RegisterChecker(CheckerNameDefault, defaultChecker)

	return e
}

// RegisterHandler registers an action handler.
func (e *Engine) RegisterHandler(action string, handler ActionHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[action] = handler
}

// RegisterChecker registers an expectation checker.
func (e *Engine) RegisterChecker(key string, checker ExpectChecker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkers[key] = checker
}

// HasHandler reports whether an action handler is registered.
func (e *Engine) HasHandler(action string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.handlers[action]
	return ok
}

// Run executes a single test case.
func (e *Engine) Run(ctx context.Context, tc *loader.TestCase) *TestResult {
	result := &TestResult{
		TestCase:  tc,
		StartTime: time.Now(),
	}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
	}()

	if tc.Skip != "" {
		result.Skipped = true
		result.SkipReason = tc.Skip
		return result
	}

	timeout := e.config.DefaultTimeout
	if tc.Timeout != "" {
		if d, err := time.ParseDuration(tc.Timeout); err == nil {
			timeout = d
		}
	}

	testCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state := NewExecutionState(testCtx)

	if e.config.Setup != nil {
		if err := e.config.Setup(testCtx, tc, state); err != nil {
			result.Error = fmt.Errorf("setup failed: %w", err)
			return result
		}
	}
	if e.config.Teardown != nil {
		defer e.config.Teardown(tc, state)
	}

	for i := range tc.Steps {
		step := &tc.Steps[i]
		stepResult := e.executeStep(testCtx, step, i, state)
		result.StepResults = append(result.StepResults, stepResult)

		if !stepResult.Passed {
			result.Error = stepResult.Error
			return result
		}
	}

	result.Passed = true
	return result
}

// executeStep executes a single step.
func (e *Engine) executeStep(ctx context.Context, step *loader.Step, index int, state *ExecutionState) *StepResult {
	result := &StepResult{
		Step:          step,
		StepIndex:     index,
		ExpectResults: make(map[string]*ExpectResult),
		Output:        make(map[string]interface{}),
	}

	startTime := time.Now()
	defer func() { result.Duration = time.Since(startTime) }()

	timeout := e.config.StepTimeout
	if step.Timeout != "" {
		if d, err := time.ParseDuration(step.Timeout); err == nil {
			timeout = d
		}
	}

	// Steps that wait or hold need at least their own duration.
	if dur := stepDurationFromParams(step.Params); dur > 0 {
		if needed := dur + 10*time.Second; needed > timeout {
			timeout = needed
		}
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.mu.RLock()
	handler, exists := e.handlers[step.Action]
	e.mu.RUnlock()

	if !exists {
		result.Error = fmt.Errorf("unknown action: %s", step.Action)
		return result
	}

	resolved := *step
	resolved.Params = InterpolateParams(step.Params, state)

	outputs, err := handler(stepCtx, &resolved, state)
	if err != nil {
		result.Error = err
		return result
	}

	for k, v := range outputs {
		state.Set(k, v)
		result.Output[k] = v
	}

	outputCopy := make(map[string]interface{}, len(result.Output))
	for k, v := range result.Output {
		outputCopy[k] = v
	}
	state.Set(InternalStepOutput, outputCopy)

	result.Passed = true
	for key, expected := range InterpolateParams(step.Expect, state) {
		expectResult := e.checkExpectation(key, expected, state)
		result.ExpectResults[key] = expectResult
		if !expectResult.Passed {
			result.Passed = false
			result.Error = fmt.Errorf("expectation failed: %s - %s", key, expectResult.Message)
		}
	}

	return result
}

// checkExpectation checks a single expectation.
func (e *Engine) checkExpectation(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	e.mu.RLock()
	checker, exists := e.checkers[key]
	if !exists {
		checker = e.checkers[CheckerNameDefault]
	}
	e.mu.RUnlock()

	return checker(key, expected, state)
}

// defaultChecker compares an output key against the expected value.
func defaultChecker(key string, expected interface{}, state *ExecutionState) *ExpectResult {
	actual, exists := state.Get(key)
	if !exists {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Actual:   nil,
			Passed:   false,
			Message:  fmt.Sprintf("key %q not found in outputs", key),
		}
	}

	// "present" means the key exists with any value.
	if expStr, ok := expected.(string); ok && expStr == "present" {
		return &ExpectResult{
			Key:      key,
			Expected: expected,
			Actual:   actual,
			Passed:   true,
			Message:  fmt.Sprintf("%s = %v", key, actual),
		}
	}

	if expMap, ok := expected.(map[string]interface{}); ok {
		passed, msg := matchItem(expMap, actual)
		if passed {
			msg = "all expected fields match"
		} else {
			msg = strings.TrimPrefix(msg, ": ")
		}
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual,
			Passed: passed, Message: msg,
		}
	}

	if passed, msg := subsetMatchListOfMaps(expected, actual); msg != "" {
		return &ExpectResult{
			Key: key, Expected: expected, Actual: actual,
			Passed: passed, Message: msg,
		}
	}

	passed := fmt.Sprintf("%v", expected) == fmt.Sprintf("%v", actual)
	result := &ExpectResult{
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
	}

	if passed {
		result.Message = fmt.Sprintf("%s = %v", key, expected)
	} else {
		result.Message = fmt.Sprintf("expected %v, got %v", expected, actual)
	}

	return result
}

// subsetMatchListOfMaps performs subset matching when both expected and actual
// are slices of maps. Each expected map must have all its keys present in the
// corresponding actual map with matching values; extra actual keys are allowed.
// If the pattern doesn't apply, the message is empty and the caller falls
// through to the default check.
func subsetMatchListOfMaps(expected, actual interface{}) (bool, string) {
	expList, expOK := expected.([]interface{})
	if !expOK || len(expList) == 0 {
		return false, ""
	}
	hasMap := false
	for _, item := range expList {
		if _, ok := item.(map[string]interface{}); ok {
			hasMap = true
			break
		}
	}
	if !hasMap {
		return false, ""
	}

	actList, ok := toList(actual)
	if !ok {
		return false, ""
	}

	if len(actList) != len(expList) {
		return false, fmt.Sprintf("expected %d items, got %d", len(expList), len(actList))
	}

	for i, expItem := range expList {
		if ok, msg := matchItem(expItem, actList[i]); !ok {
			return false, fmt.Sprintf("item[%d]%s", i, msg)
		}
	}
	return true, "all expected fields match"
}

// matchItem checks one expected item against one actual item. Maps are
// compared as subsets, everything else by formatted value.
func matchItem(exp, act interface{}) (bool, string) {
	expMap, ok := exp.(map[string]interface{})
	if !ok {
		if fmt.Sprintf("%v", exp) != fmt.Sprintf("%v", act) {
			return false, fmt.Sprintf(": expected %v, got %v", exp, act)
		}
		return true, ""
	}
	actMap, ok := act.(map[string]interface{})
	if !ok {
		return false, fmt.Sprintf(": expected map, got %T", act)
	}
	for k, ev := range expMap {
		av, has := actMap[k]
		if !has {
			return false, fmt.Sprintf(": missing key %q", k)
		}
		if fmt.Sprintf("%v", ev) != fmt.Sprintf("%v", av) {
			return false, fmt.Sprintf(".%s: expected %v, got %v", k, ev, av)
		}
	}
	return true, ""
}

// toList normalizes the list shapes handlers produce.
func toList(v interface{}) ([]interface{}, bool) {
	switch a := v.(type) {
	case []interface{}:
		return a, true
	case []map[string]interface{}:
		out := make([]interface{}, len(a))
		for i, m := range a {
			out[i] = m
		}
		return out, true
	case []string:
		out := make([]interface{}, len(a))
		for i, s := range a {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// RunSuite executes all test cases in a suite.
func (e *Engine) RunSuite(ctx context.Context, cases []*loader.TestCase) *SuiteResult {
	result := &SuiteResult{
		SuiteName: "Test Suite",
	}

	startTime := time.Now()
	defer func() { result.Duration = time.Since(startTime) }()

	suiteTimeout := e.config.SuiteTimeout
	if suiteTimeout == 0 {
		var total time.Duration
		for _, tc := range cases {
			if tc.Timeout != "" {
				if d, err := time.ParseDuration(tc.Timeout); err == nil {
					total += d
					continue
				}
			}
			total += e.config.DefaultTimeout
		}
		suiteTimeout = total + 2*time.Minute
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > suiteTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, suiteTimeout)
		defer cancel()
	}

	for _, tc := range cases {
		select {
		case <-ctx.Done():
			return result
		default:
		}

		testResult := e.Run(ctx, tc)
		result.Results = append(result.Results, testResult)

		switch {
		case testResult.Skipped:
			result.SkipCount++
		case testResult.Passed:
			result.PassCount++
		default:
			result.FailCount++
		}

		if e.config.OnTestComplete != nil {
			e.config.OnTestComplete(testResult)
		}

		if !testResult.Passed && !testResult.Skipped && e.config.StopOnFirstFailure {
			break
		}
	}

	return result
}

// stepDurationFromParams extracts an explicit wait duration from step parameters.
// It checks duration_seconds and duration_ms, returning the longer of the two.
func stepDurationFromParams(params map[string]interface{}) time.Duration {
	var d time.Duration
	if sec, ok := params["duration_seconds"]; ok {
		if f, ok := ToFloat64(sec); ok {
			d = time.Duration(f * float64(time.Second))
		}
	}
	if ms, ok := params["duration_ms"]; ok {
		if f, ok := ToFloat64(ms); ok {
			if md := time.Duration(f * float64(time.Millisecond)); md > d {
				d = md
			}
		}
	}
	return d
}
