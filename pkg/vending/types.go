package vending

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendsim/vendsim-go/pkg/gpio"
	"github.com/vendsim/vendsim-go/pkg/log"
	"github.com/vendsim/vendsim-go/pkg/transport"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// Machine errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidInputs = errors.New("invalid inputs")
)

// Size is a cup size.
type Size uint8

const (
	SizeSmall Size = iota
	SizeMedium
	SizeLarge
)

// Sizes lists all cup sizes in wire order.
var Sizes = [3]Size{SizeSmall, SizeMedium, SizeLarge}

// String returns the size name.
func (s Size) String() string {
	switch s {
	case SizeSmall:
		return "SMALL"
	case SizeMedium:
		return "MEDIUM"
	case SizeLarge:
		return "LARGE"
	default:
		return "UNKNOWN"
	}
}

// Prices are per-cup prices in cents.
type Prices struct {
	Small  uint32 `yaml:"small"`
	Medium uint32 `yaml:"medium"`
	Large  uint32 `yaml:"large"`
}

// Of returns the price for s.
func (p Prices) Of(s Size) uint32 {
	switch s {
	case SizeSmall:
		return p.Small
	case SizeMedium:
		return p.Medium
	case SizeLarge:
		return p.Large
	default:
		return 0
	}
}

// Config configures a Machine.
type Config struct {
	// ID identifies the machine in capture events. A UUID is generated when
	// empty.
	ID string `yaml:"id"`

	// Prices per cup size in cents.
	Prices Prices `yaml:"prices"`

	// Denominations lists the accepted deposit amounts in cents.
	Denominations []uint32 `yaml:"denominations"`

	// MaxItems is the maximum number of cups in one order.
	MaxItems uint32 `yaml:"max_items"`

	// CancelHold is the dispense/cancel hold time above which the order is
	// cancelled instead of dispensed.
	CancelHold time.Duration `yaml:"cancel_hold"`

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger `yaml:"-"`

	// ProtocolLogger receives capture events. If nil, capture is disabled.
	ProtocolLogger log.Logger `yaml:"-"`
}

// DefaultConfig returns a Config with the standard price list.
func DefaultConfig() Config {
	return Config{
		Prices: Prices{
			Small:  175,
			Medium: 200,
			Large:  225,
		},
		Denominations: []uint32{5, 10, 25, 50, 100, 200, 500, 1000, 2000},
		MaxItems:      5,
		CancelHold:    2 * time.Second,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.MaxItems == 0 {
		return fmt.Errorf("%w: max_items must be positive", ErrInvalidConfig)
	}
	if len(c.Denominations) == 0 {
		return fmt.Errorf("%w: no denominations", ErrInvalidConfig)
	}
	for _, d := range c.Denominations {
		if d == 0 {
			return fmt.Errorf("%w: zero denomination", ErrInvalidConfig)
		}
	}
	if c.CancelHold <= 0 {
		return fmt.Errorf("%w: cancel_hold must be positive", ErrInvalidConfig)
	}
	return nil
}

// Inputs are the signals wired into a machine. The machine only observes
// them.
type Inputs struct {
	Small          gpio.View
	Medium         gpio.View
	Large          gpio.View
	DispenseCancel gpio.View

	// SerialIn is the machine's subscription to the inbound line.
	SerialIn *transport.Subscription[[]byte]
}

func (in Inputs) validate() error {
	if in.Small == nil || in.Medium == nil || in.Large == nil || in.DispenseCancel == nil {
		return fmt.Errorf("%w: missing button", ErrInvalidInputs)
	}
	if in.SerialIn == nil {
		return fmt.Errorf("%w: missing serial input", ErrInvalidInputs)
	}
	return nil
}

// State is a snapshot of the machine's accounting.
type State struct {
	Order wire.Order
	Funds uint32
}

// Count returns the number of cups of size s in the order.
func (s State) Count(size Size) uint32 {
	switch size {
	case SizeSmall:
		return s.Order.Small
	case SizeMedium:
		return s.Order.Medium
	case SizeLarge:
		return s.Order.Large
	default:
		return 0
	}
}
