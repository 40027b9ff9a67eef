package log

import (
	"time"
)

// Event represents a protocol event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// MachineID identifies the simulated machine (UUID).
	MachineID string `cbor:"2,keyasint"`

	// Direction indicates data flow relative to the machine.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Order/funds
	Input       *InputEvent       `cbor:"13,keyasint,omitempty"` // GPIO edges
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates data flowing into the machine.
	DirectionIn Direction = 0
	// DirectionOut indicates data emitted by the machine.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the serial byte stream.
	LayerTransport Layer = 0
	// LayerWire is the decoded frame layer.
	LayerWire Layer = 1
	// LayerService is the controller logic.
	LayerService Layer = 2
	// LayerGPIO is the digital input layer.
	LayerGPIO Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	case LayerGPIO:
		return "GPIO"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol frame or message.
	CategoryMessage Category = 0
	// CategoryInput indicates a digital input change.
	CategoryInput Category = 1
	// CategoryState indicates a controller state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryInput:
		return "INPUT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (header included).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded frame at the wire layer.
type MessageEvent struct {
	// Key is the ASCII message key (e.g. "curFunds").
	Key string `cbor:"1,keyasint"`

	// ValueSize is the VALUESIZE field.
	ValueSize int `cbor:"2,keyasint"`

	// Payload is the decoded value (CBOR-compatible representation).
	Payload any `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures controller state transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityOrder indicates an order count change.
	StateEntityOrder StateEntity = 0
	// StateEntityFunds indicates a funds change.
	StateEntityFunds StateEntity = 1
	// StateEntityMachine indicates a machine lifecycle change.
	StateEntityMachine StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityOrder:
		return "ORDER"
	case StateEntityFunds:
		return "FUNDS"
	case StateEntityMachine:
		return "MACHINE"
	default:
		return "UNKNOWN"
	}
}

// InputEvent captures a level change on a digital input.
type InputEvent struct {
	// Pin is the pin identifier.
	Pin string `cbor:"1,keyasint"`

	// Level is the new level ("LOW", "HIGH", "UNDEFINED").
	Level string `cbor:"2,keyasint"`

	// Elapsed is the time since the previous change on the pin.
	// Zero together with First set means there was no previous change.
	Elapsed time.Duration `cbor:"3,keyasint,omitempty"`

	// First is set on the first change observed on the pin.
	First bool `cbor:"4,keyasint,omitempty"`

	// PressRelease is set when the change completed a press (high to low).
	PressRelease bool `cbor:"5,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
