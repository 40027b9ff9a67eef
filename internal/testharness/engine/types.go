// Package engine provides scenario execution orchestration for the vending test harness.
package engine

import (
	"context"
	"time"

	"github.com/vendsim/vendsim-go/internal/testharness/loader"
)

// TestResult represents the outcome of a single test case.
type TestResult struct {
	// TestCase is the test case that was executed.
	TestCase *loader.TestCase

	// Passed indicates if all steps passed.
	Passed bool

	// Error is the error that caused failure, if any.
	Error error

	// StepResults contains results for each step.
	StepResults []*StepResult

	// Duration is how long the test took.
	Duration time.Duration

	// StartTime when the test started.
	StartTime time.Time

	// EndTime when the test finished.
	EndTime time.Time

	// Skipped indicates if the test was skipped.
	Skipped bool

	// SkipReason explains why the test was skipped.
	SkipReason string
}

// StepResult represents the outcome of a single step.
type StepResult struct {
	// Step is the step that was executed.
	Step *loader.Step

	// StepIndex is the index of this step (0-based).
	StepIndex int

	// Passed indicates if the step passed.
	Passed bool

	// Error is the error that caused failure, if any.
	Error error

	// ExpectResults maps expectation keys to their assertion results.
	ExpectResults map[string]*ExpectResult

	// Duration is how long the step took.
	Duration time.Duration

	// Output contains any captured output from the step.
	Output map[string]interface{}
}

// ExpectResult represents the result of checking an expectation.
type ExpectResult struct {
	// Key is the expectation key (e.g., "messages").
	Key string

	// Expected is the expected value.
	Expected interface{}

	// Actual is the actual value.
	Actual interface{}

	// Passed indicates if the expectation was met.
	Passed bool

	// Message describes the result.
	Message string
}

// SuiteResult represents the outcome of running a test suite.
type SuiteResult struct {
	// SuiteName identifies the test suite.
	SuiteName string

	// Results contains results for each test case.
	Results []*TestResult

	// PassCount is the number of passed tests.
	PassCount int

	// FailCount is the number of failed tests.
	FailCount int

	// SkipCount is the number of skipped tests.
	SkipCount int

	// Duration is the total time for all tests.
	Duration time.Duration
}

// ActionHandler processes a test step action.
// Returns outputs to make available for subsequent steps, and an error if the action failed.
type ActionHandler func(ctx context.Context, step *loader.Step, state *ExecutionState) (map[string]interface{}, error)

// ExpectChecker checks an expectation against actual results.
type ExpectChecker func(key string, expected interface{}, state *ExecutionState) *ExpectResult

// SetupFunc prepares per-test state before the first step runs.
type SetupFunc func(ctx context.Context, tc *loader.TestCase, state *ExecutionState) error

// TeardownFunc releases whatever SetupFunc created. It runs even when steps fail.
type TeardownFunc func(tc *loader.TestCase, state *ExecutionState)

// ExecutionState holds state during test execution.
type ExecutionState struct {
	// Outputs accumulated from previous steps.
	Outputs map[string]interface{}

	// Fixture is the per-test object under test, set by SetupFunc.
	Fixture interface{}

	// Context for cancellation.
	Context context.Context

	// Custom state that handlers can use.
	Custom map[string]interface{}
}

// NewExecutionState creates a new execution state.
func NewExecutionState(ctx context.Context) *ExecutionState {
	return &ExecutionState{
		Outputs: make(map[string]interface{}),
		Custom:  make(map[string]interface{}),
		Context: ctx,
	}
}

// Get retrieves a value from outputs, supporting template syntax.
func (s *ExecutionState) Get(key string) (interface{}, bool) {
	if len(key) > 4 && key[:2] == "{{" && key[len(key)-2:] == "}}" {
		refKey := trimSpaces(key[2 : len(key)-2])
		v, ok := s.Outputs[refKey]
		return v, ok
	}
	v, ok := s.Outputs[key]
	return v, ok
}

// Set stores a value in outputs.
func (s *ExecutionState) Set(key string, value interface{}) {
	s.Outputs[key] = value
}

func trimSpaces(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

// EngineConfig configures the test engine.
type EngineConfig struct {
	// DefaultTimeout is the default timeout for test cases.
	DefaultTimeout time.Duration

	// StepTimeout is the default timeout for individual steps.
	StepTimeout time.Duration

	// SuiteTimeout bounds RunSuite. Zero derives it from the test timeouts.
	SuiteTimeout time.Duration

	// StopOnFirstFailure stops execution after the first test failure.
	StopOnFirstFailure bool

	// Setup runs before the steps of each test case.
	Setup SetupFunc

	// Teardown runs after each test case whose Setup succeeded.
	Teardown TeardownFunc

	// OnTestComplete is called after each test in RunSuite.
	OnTestComplete func(*TestResult)
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		DefaultTimeout: 30 * time.Second,
		StepTimeout:    10 * time.Second,
	}
}
