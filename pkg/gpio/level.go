package gpio

// Level is the logic level of a pin.
type Level int8

const (
	// LevelUndefined is an unknown level.
	LevelUndefined Level = -1
	// LevelLow is logic 0.
	LevelLow Level = 0
	// LevelHigh is logic 1.
	LevelHigh Level = 1
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelUndefined:
		return "UNDEFINED"
	case LevelLow:
		return "LOW"
	case LevelHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the level is one of the defined levels.
func (l Level) IsValid() bool {
	return l >= LevelUndefined && l <= LevelHigh
}

// Direction is the pin direction.
type Direction uint8

const (
	// DirectionInput pins are driven externally.
	DirectionInput Direction = 0
	// DirectionOutput pins are driven by the device.
	DirectionOutput Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionInput:
		return "INPUT"
	case DirectionOutput:
		return "OUTPUT"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the direction is defined.
func (d Direction) IsValid() bool {
	return d <= DirectionOutput
}

// Event selects which notifications a listener receives.
type Event uint8

const (
	// EventChange fires on every level change.
	EventChange Event = 0
	// EventPressRelease fires on high to low transitions.
	EventPressRelease Event = 1
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventChange:
		return "CHANGE"
	case EventPressRelease:
		return "PRESS_RELEASE"
	default:
		return "UNKNOWN"
	}
}
