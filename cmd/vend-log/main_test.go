package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vendsim/vendsim-go/pkg/log"
)

func writeCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.vlog")
	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, key := range []string{"curFunds", "receipt", "refund"} {
		logger.Log(log.Event{
			Timestamp: at.Add(time.Duration(i) * time.Millisecond),
			MachineID: "vm-1",
			Direction: log.DirectionOut,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Key: key, ValueSize: 4},
		})
	}
	logger.Close()
	return path
}

func TestRun(t *testing.T) {
	path := writeCapture(t)
	out := filepath.Join(t.TempDir(), "receipts.vlog")

	tests := []struct {
		name   string
		args   []string
		code   int
		stdout string
		stderr string
	}{
		{"no args", nil, 2, "", "usage: vend-log"},
		{"help", []string{"help"}, 0, "", "filter  copy selected events"},
		{"unknown command", []string{"replay", path}, 2, "", `unknown command "replay"`},
		{"view by key", []string{"view", "-key", "receipt", path}, 0, "OUT WIRE receipt", ""},
		{"stats", []string{"stats", path}, 0, "Total Events: 3", ""},
		{"export csv", []string{"export", "-format", "csv", "-key", "refund", path}, 0, "vm-1,OUT,WIRE,MESSAGE,refund,4", ""},
		{"filter", []string{"filter", "-o", out, "-key", "receipt", path}, 0, "1 events written", ""},
		{"filter without output", []string{"filter", path}, 2, "", "-o is required"},
		{"missing file argument", []string{"view"}, 2, "", "expected one capture file"},
		{"bad selection", []string{"view", "-layer", "network", path}, 1, "", "invalid layer"},
		{"missing file", []string{"stats", filepath.Join(t.TempDir(), "none.vlog")}, 1, "", "open capture"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			if code != tt.code {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.code, stderr.String())
			}
			if tt.stdout != "" && !strings.Contains(stdout.String(), tt.stdout) {
				t.Errorf("stdout missing %q:\n%s", tt.stdout, stdout.String())
			}
			if tt.stderr != "" && !strings.Contains(stderr.String(), tt.stderr) {
				t.Errorf("stderr missing %q:\n%s", tt.stderr, stderr.String())
			}
		})
	}
}
