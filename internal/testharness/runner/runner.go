// Package runner executes vending scenarios against a simulated machine.
package runner

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/vendsim/vendsim-go/internal/testharness/engine"
	"github.com/vendsim/vendsim-go/internal/testharness/loader"
	"github.com/vendsim/vendsim-go/internal/testharness/reporter"
	"github.com/vendsim/vendsim-go/pkg/log"
	"github.com/vendsim/vendsim-go/pkg/vending"
)

//go:embed scenarios/*.yaml
var builtinScenarios embed.FS

// ErrNoScenarios is returned when filtering leaves nothing to run.
var ErrNoScenarios = errors.New("no scenarios match filters")

// Builtin returns the scenarios shipped with the harness.
func Builtin() ([]*loader.TestCase, error) {
	return loader.LoadFS(builtinScenarios, "scenarios")
}

// Config configures the scenario runner.
type Config struct {
	// TestDir is a directory of YAML scenarios. Empty runs the built-in set.
	TestDir string

	// Pattern filters scenarios by ID (comma-separated globs).
	Pattern string

	// Tags includes only scenarios with at least one of these tags (comma-separated).
	Tags string

	// ExcludeTags excludes scenarios with any of these tags (comma-separated).
	ExcludeTags string

	// Timeout is the default scenario timeout.
	Timeout time.Duration

	// SuiteTimeout is the overall suite timeout (0 = auto-calculate).
	SuiteTimeout time.Duration

	// Quiet is how long the serial output must stay silent before a step's
	// messages are complete.
	Quiet time.Duration

	// StopOnFirstFailure stops after the first failing scenario.
	StopOnFirstFailure bool

	// Broken runs every scenario against an inert device that never
	// answers. The suite is expected to fail.
	Broken bool

	// Machine is the configuration each scenario's machine starts from.
	Machine vending.Config

	// Verbose enables per-step output.
	Verbose bool

	// Output is where to write results.
	Output io.Writer

	// OutputFormat is "text", "json", or "junit".
	OutputFormat string

	// Logger receives runner diagnostics. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives structured events from every machine.
	// Set to nil to disable protocol logging.
	ProtocolLogger log.Logger
}

// DefaultConfig returns a runner configuration for the built-in scenarios.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		Quiet:        defaultQuiet,
		Machine:      vending.DefaultConfig(),
		Output:       os.Stdout,
		OutputFormat: "text",
	}
}

// Runner executes scenarios, one fresh fixture per scenario.
type Runner struct {
	config       *Config
	engine       *engine.Engine
	engineConfig *engine.EngineConfig
	reporter     reporter.Reporter
	logger       *slog.Logger
}

// New creates a runner.
func New(config *Config) (*Runner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Quiet <= 0 {
		config.Quiet = defaultQuiet
	}
	if config.Output == nil {
		config.Output = io.Discard
	}
	if err := config.Machine.Validate(); err != nil {
		return nil, err
	}

	rep, err := reporter.New(config.OutputFormat, config.Output, config.Verbose)
	if err != nil {
		return nil, err
	}

	engineConfig := engine.DefaultConfig()
	if config.Timeout > 0 {
		engineConfig.DefaultTimeout = config.Timeout
	}
	engineConfig.SuiteTimeout = config.SuiteTimeout
	engineConfig.StopOnFirstFailure = config.StopOnFirstFailure

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := &Runner{
		config:       config,
		engine:       engine.NewWithConfig(engineConfig),
		engineConfig: engineConfig,
		reporter:     rep,
		logger:       logger,
	}

	// NewWithConfig keeps the pointer, so hooks can be set after r exists.
	engineConfig.Setup = r.setupTest
	engineConfig.Teardown = r.teardownTest

	engine.RegisterEnhancedCheckers(r.engine)
	r.registerHandlers()

	return r, nil
}

// Load returns the scenarios selected by the configuration.
func (r *Runner) Load() ([]*loader.TestCase, error) {
	var (
		cases []*loader.TestCase
		err   error
	)
	if r.config.TestDir != "" {
		cases, err = loader.LoadDirectoryRecursive(r.config.TestDir)
	} else {
		cases, err = Builtin()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scenarios: %w", err)
	}

	if r.config.Pattern != "" {
		cases = loader.FilterByID(cases, splitList(r.config.Pattern))
	}
	if r.config.Tags != "" {
		cases = loader.FilterByTags(cases, splitList(r.config.Tags))
	}
	if r.config.ExcludeTags != "" {
		cases = excludeTags(cases, splitList(r.config.ExcludeTags))
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("%w (pattern=%q, tags=%q, exclude-tags=%q)",
			ErrNoScenarios, r.config.Pattern, r.config.Tags, r.config.ExcludeTags)
	}

	loader.SortByID(cases)
	return cases, nil
}

// Run loads, executes, and reports the selected scenarios.
func (r *Runner) Run(ctx context.Context) (*engine.SuiteResult, error) {
	cases, err := r.Load()
	if err != nil {
		return nil, err
	}
	result := r.RunCases(ctx, cases)
	r.reporter.ReportSuite(result)
	return result, nil
}

// RunCases executes the given scenarios without reporting them.
func (r *Runner) RunCases(ctx context.Context, cases []*loader.TestCase) *engine.SuiteResult {
	for _, tc := range cases {
		for _, step := range tc.Steps {
			if !r.engine.HasHandler(step.Action) {
				r.logger.Warn("scenario uses unknown action", "scenario", tc.ID, "action", step.Action)
			}
		}
	}

	result := r.engine.RunSuite(ctx, cases)
	result.SuiteName = "Vending Scenarios"
	if r.config.Broken {
		result.SuiteName += " (inert device)"
	}

	r.logger.Info("suite finished",
		"passed", result.PassCount,
		"failed", result.FailCount,
		"skipped", result.SkipCount,
		"duration", result.Duration)
	return result
}

// setupTest builds a fresh fixture for the scenario.
func (r *Runner) setupTest(ctx context.Context, tc *loader.TestCase, state *engine.ExecutionState) error {
	mc := r.config.Machine
	mc.ID = tc.ID
	mc.Logger = r.logger.With("scenario", tc.ID)
	mc.ProtocolLogger = r.config.ProtocolLogger

	f, err := NewFixture(mc, r.config.Broken)
	if err != nil {
		return Harness(err)
	}
	state.Fixture = f
	r.logger.Debug("fixture ready", "scenario", tc.ID, "device", f.Device.ID())
	return nil
}

func (r *Runner) teardownTest(tc *loader.TestCase, state *engine.ExecutionState) {
	if f, ok := state.Fixture.(*Fixture); ok {
		f.Close()
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// excludeTags removes scenarios that carry any of the given tags.
func excludeTags(cases []*loader.TestCase, tags []string) []*loader.TestCase {
	if len(tags) == 0 {
		return cases
	}
	var filtered []*loader.TestCase
outer:
	for _, tc := range cases {
		for _, t := range tags {
			if tc.HasTag(t) {
				continue outer
			}
		}
		filtered = append(filtered, tc)
	}
	return filtered
}
