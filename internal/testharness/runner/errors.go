package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/vendsim/vendsim-go/pkg/gpio"
	"github.com/vendsim/vendsim-go/pkg/transport"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// ErrorCategory classifies step failures for reports.
type ErrorCategory int

const (
	// ErrCatHarness means the scenario or fixture is wrong (bad params, unknown button).
	ErrCatHarness ErrorCategory = iota
	// ErrCatDevice means the device did not behave as expected in time.
	ErrCatDevice
	// ErrCatProtocol means the device sent bytes that do not parse.
	ErrCatProtocol
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCatHarness:
		return "harness"
	case ErrCatDevice:
		return "device"
	case ErrCatProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an error with its category.
type ClassifiedError struct {
	Category ErrorCategory
	Err      error
}

func (e *ClassifiedError) Error() string { return e.Category.String() + ": " + e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// Harness wraps err as a harness error.
func Harness(err error) error {
	return &ClassifiedError{Category: ErrCatHarness, Err: err}
}

// Device wraps err as a device error.
func Device(err error) error {
	return &ClassifiedError{Category: ErrCatDevice, Err: err}
}

// Protocol wraps err as a protocol error.
func Protocol(err error) error {
	return &ClassifiedError{Category: ErrCatProtocol, Err: err}
}

// Classify returns the category of err. Errors that were not wrapped are
// classified by their cause.
func Classify(err error) ErrorCategory {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	switch {
	case errors.Is(err, transport.ErrParserState), errors.Is(err, wire.ErrUnknownKey), errors.Is(err, wire.ErrValueSizeMismatch):
		return ErrCatProtocol
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, transport.ErrClosed), errors.Is(err, gpio.ErrAborted):
		return ErrCatDevice
	default:
		return ErrCatHarness
	}
}

func paramError(action, param string, format string, args ...any) error {
	return Harness(fmt.Errorf("%s: param %q: %s", action, param, fmt.Sprintf(format, args...)))
}
