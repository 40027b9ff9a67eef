package reporter_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vendsim/vendsim-go/internal/testharness/engine"
	"github.com/vendsim/vendsim-go/internal/testharness/loader"
	"github.com/vendsim/vendsim-go/internal/testharness/reporter"
)

func createTestResult(id, name string, passed, skipped bool, err error) *engine.TestResult {
	return &engine.TestResult{
		TestCase: &loader.TestCase{
			ID:   id,
			Name: name,
		},
		Passed:     passed,
		Skipped:    skipped,
		Error:      err,
		SkipReason: "not wired",
		Duration:   100 * time.Millisecond,
		StepResults: []*engine.StepResult{
			{
				Step:      &loader.Step{Action: "press", Description: "press small"},
				StepIndex: 0,
				Passed:    passed,
				Duration:  50 * time.Millisecond,
				ExpectResults: map[string]*engine.ExpectResult{
					"message_count": {
						Key:      "message_count",
						Expected: 1,
						Actual:   1,
						Passed:   passed,
						Message:  "message_count = 1",
					},
				},
				Output: map[string]any{
					"message_count": 1,
					"messages":      []map[string]any{{"key": "order", "small": uint32(1)}},
				},
			},
		},
	}
}

func createSuiteResult() *engine.SuiteResult {
	return &engine.SuiteResult{
		SuiteName: "Vending Suite",
		Results: []*engine.TestResult{
			createTestResult("TC-001", "Test 1", true, false, nil),
			createTestResult("TC-002", "Test 2", false, false, errors.New("failed")),
			createTestResult("TC-003", "Test 3", false, true, nil),
		},
		PassCount: 1,
		FailCount: 1,
		SkipCount: 1,
		Duration:  500 * time.Millisecond,
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	tests := []struct {
		format string
		want   any
	}{
		{"", &reporter.TextReporter{}},
		{"text", &reporter.TextReporter{}},
		{"JSON", &reporter.JSONReporter{}},
		{"junit", &reporter.JUnitReporter{}},
	}
	for _, tt := range tests {
		r, err := reporter.New(tt.format, &buf, false)
		if err != nil {
			t.Fatalf("New(%q) error: %v", tt.format, err)
		}
		if fmt.Sprintf("%T", r) != fmt.Sprintf("%T", tt.want) {
			t.Errorf("New(%q) = %T, want %T", tt.format, r, tt.want)
		}
	}

	if _, err := reporter.New("yaml", &buf, false); !errors.Is(err, reporter.ErrUnknownFormat) {
		t.Errorf("New(yaml) error = %v, want ErrUnknownFormat", err)
	}
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewTextReporter(&buf, false)

	r.ReportSuite(createSuiteResult())
	output := buf.String()

	for _, want := range []string{
		"=== Suite: Vending Suite ===",
		"[PASS] TC-001",
		"[FAIL] TC-002",
		"[SKIP] TC-003",
		"Skip reason: not wired",
		"Error: failed",
		"Total:   3",
		"Passed:  1",
		"Failed:  1",
		"Pass Rate: 50.0%",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(output, "Step 1:") {
		t.Error("step details shown without verbose")
	}
}

func TestTextReporterVerbose(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewTextReporter(&buf, true)

	r.ReportTest(createTestResult("TC-001", "Test 1", true, false, nil))
	output := buf.String()

	for _, want := range []string{"Step 1: press", "press small", "[OK] message_count"} {
		if !strings.Contains(output, want) {
			t.Errorf("verbose output missing %q", want)
		}
	}
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJSONReporter(&buf, true)

	r.ReportSuite(createSuiteResult())

	var result reporter.JSONSuiteResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}

	if result.SuiteName != "Vending Suite" {
		t.Errorf("suite name = %s", result.SuiteName)
	}
	if result.Total != 3 || result.Passed != 1 || result.Failed != 1 || result.Skipped != 1 {
		t.Errorf("counts = %d/%d/%d/%d", result.Total, result.Passed, result.Failed, result.Skipped)
	}
	if result.PassRate != 50.0 {
		t.Errorf("pass rate = %.1f", result.PassRate)
	}
	if len(result.Tests) != 3 {
		t.Fatalf("Expected 3 tests, got %d", len(result.Tests))
	}

	statuses := []string{"passed", "failed", "skipped"}
	for i, want := range statuses {
		if result.Tests[i].Status != want {
			t.Errorf("test %d status = %s, want %s", i, result.Tests[i].Status, want)
		}
	}
	if result.Tests[1].Error != "failed" {
		t.Errorf("error = %q", result.Tests[1].Error)
	}

	step := result.Tests[0].Steps[0]
	if step.Action != "press" || !step.Expects["message_count"].Passed {
		t.Errorf("step = %+v", step)
	}
	msgs, ok := step.Outputs["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("messages output = %v", step.Outputs["messages"])
	}
}

func TestJSONReporterSingleTest(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJSONReporter(&buf, false)

	r.ReportTest(createTestResult("TC-001", "Test 1", true, false, nil))

	var jr reporter.JSONTestResult
	if err := json.Unmarshal(buf.Bytes(), &jr); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if jr.ID != "TC-001" || jr.Status != "passed" {
		t.Errorf("result = %+v", jr)
	}
}

// TestJSONReporter_CBORMaps verifies that maps with non-string keys, as
// produced by CBOR decoding, and raw frames serialize cleanly.
func TestJSONReporter_CBORMaps(t *testing.T) {
	cborMap := map[any]any{
		"small":   uint64(1),
		uint64(2): "medium",
		"nested": map[any]any{
			"deep": []any{1, "two", map[any]any{"three": 3}},
		},
	}

	result := &engine.TestResult{
		TestCase: &loader.TestCase{ID: "TC-CBOR-MAP", Name: "CBOR map normalization"},
		Error:    errors.New("forced failure"),
		Duration: 100 * time.Millisecond,
		StepResults: []*engine.StepResult{
			{
				Step: &loader.Step{Action: "send_raw"},
				Output: map[string]any{
					"payload": cborMap,
					"frame":   []byte{0x72, 0x65, 0x66},
					"elapsed": 20 * time.Millisecond,
				},
				ExpectResults: map[string]*engine.ExpectResult{
					"payload": {
						Key:      "payload",
						Expected: map[any]any{"small": 2},
						Actual:   cborMap,
						Message:  "mismatch",
					},
				},
			},
		},
	}

	var buf bytes.Buffer
	r := reporter.NewJSONReporter(&buf, false)
	r.ReportTest(result)

	output := buf.String()
	if strings.HasPrefix(output, `{"error"`) {
		t.Fatalf("JSON marshal failed: %s", output)
	}

	var parsed reporter.JSONTestResult
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("JSON output is not valid: %v\nOutput: %s", err, output)
	}
	out := parsed.Steps[0].Outputs
	if out["frame"] != "726566" {
		t.Errorf("frame = %v, want hex", out["frame"])
	}
	if out["elapsed"] != "20ms" {
		t.Errorf("elapsed = %v, want 20ms", out["elapsed"])
	}
	payload, ok := out["payload"].(map[string]any)
	if !ok || payload["2"] != "medium" {
		t.Errorf("payload = %v", out["payload"])
	}

	buf.Reset()
	r.ReportSuite(&engine.SuiteResult{
		SuiteName: "CBOR Suite",
		Results:   []*engine.TestResult{result},
		FailCount: 1,
	})
	var suite map[string]any
	if err := json.Unmarshal(buf.Bytes(), &suite); err != nil {
		t.Fatalf("Suite JSON output is not valid: %v", err)
	}
}

func TestJUnitReporter(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJUnitReporter(&buf)

	r.ReportSuite(createSuiteResult())
	output := buf.String()

	if !strings.HasPrefix(output, `<?xml version="1.0"`) {
		t.Error("missing XML header")
	}
	for _, want := range []string{
		`<testsuite name="Vending Suite"`,
		`tests="3"`,
		`failures="1"`,
		`skipped="1"`,
		`<testcase name="Test 1"`,
		`<failure message="failed">`,
		`Step 1 (press)`,
		`<skipped message="not wired"/>`,
		`</testsuite>`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestJUnitReporterSingleTest(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJUnitReporter(&buf)

	r.ReportTest(createTestResult("TC-001", "Test 1", true, false, nil))
	output := buf.String()

	if !strings.Contains(output, `<testsuite name="Single Test"`) || !strings.Contains(output, `tests="1"`) {
		t.Errorf("unexpected output: %s", output)
	}
}

func TestXMLEscaping(t *testing.T) {
	var buf bytes.Buffer
	r := reporter.NewJUnitReporter(&buf)

	r.ReportTest(&engine.TestResult{
		TestCase: &loader.TestCase{ID: "TC-<>&", Name: "Test with <special> & 'chars'"},
		Passed:   true,
	})
	output := buf.String()

	if strings.Contains(output, `<special>`) {
		t.Error("Special characters not escaped")
	}
	if !strings.Contains(output, "&lt;special&gt;") || !strings.Contains(output, "&amp;") {
		t.Error("< > & should be escaped")
	}
}

func TestReportSummary_Slowest(t *testing.T) {
	var results []*engine.TestResult
	for i := range 15 {
		results = append(results, &engine.TestResult{
			TestCase: &loader.TestCase{ID: fmt.Sprintf("TC-%03d", i+1)},
			Passed:   true,
			Duration: time.Duration(i+1) * time.Second,
		})
	}

	var buf bytes.Buffer
	reporter.NewTextReporter(&buf, false).ReportSummary(&engine.SuiteResult{Results: results, PassCount: 15})
	output := buf.String()

	if !strings.Contains(output, "--- Slowest Tests ---") {
		t.Fatal("Missing slowest tests section")
	}
	if !strings.Contains(output, " 1. TC-015 (15s)") {
		t.Error("TC-015 should rank first")
	}
	if !strings.Contains(output, "10. TC-006") {
		t.Error("TC-006 should rank tenth")
	}
	if strings.Contains(output, "TC-005 ") {
		t.Error("TC-005 should not appear in top 10")
	}
}

func TestReportSummary_SlowestNeedsThreeExecuted(t *testing.T) {
	suite := &engine.SuiteResult{
		Results: []*engine.TestResult{
			{TestCase: &loader.TestCase{ID: "TC-001"}, Passed: true, Duration: 5 * time.Second},
			{TestCase: &loader.TestCase{ID: "TC-002"}, Skipped: true, Duration: 99 * time.Second},
			{TestCase: &loader.TestCase{ID: "TC-003"}, Passed: true, Duration: 3 * time.Second},
		},
		PassCount: 2,
		SkipCount: 1,
	}

	var buf bytes.Buffer
	r := reporter.NewTextReporter(&buf, false)
	r.ReportSummary(suite)
	if strings.Contains(buf.String(), "Slowest Tests") {
		t.Error("slowest section shown with two executed tests")
	}

	suite.Results = append(suite.Results, &engine.TestResult{
		TestCase: &loader.TestCase{ID: "TC-004"}, Passed: true, Duration: time.Second,
	})
	buf.Reset()
	r.ReportSummary(suite)
	output := buf.String()
	if !strings.Contains(output, "--- Slowest Tests ---") {
		t.Fatal("Missing slowest tests section")
	}
	if strings.Contains(output, "TC-002") {
		t.Error("skipped test listed among slowest")
	}
}
