// Package log provides structured protocol capture for the vending machine
// simulator.
//
// This package defines the Logger interface and Event types for capturing
// what happens at each layer of the simulated device: raw serial frames,
// decoded messages, digital input edges and controller state changes.
// It is separate from operational logging (slog) - protocol capture gives a
// complete machine-readable trace for debugging a test run after the fact.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For test runs: write a binary capture file
//	logger, _ := log.NewFileLogger("run.vlog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(console, file)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: raw frame bytes pushed to or parsed from a serial line (FrameEvent)
//   - Wire: decoded messages (MessageEvent)
//   - GPIO: level changes and press-release edges on input pins (InputEvent)
//   - Service: order and funds changes (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Capture files are a stream of CBOR encoded events with the .vlog
// extension. The vend-log CLI tool views, filters and exports them.
package log
