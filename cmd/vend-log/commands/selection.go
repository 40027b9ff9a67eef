package commands

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vendsim/vendsim-go/pkg/log"
)

// Selection picks the events a command works on. Empty fields match
// everything. All commands share it so a selection that works for view
// also works for stats, export and filter.
type Selection struct {
	MachineID string
	Key       string
	Layer     string
	Direction string
	Category  string
	Since     string
	Until     string
}

// Register binds the selection flags on fs.
func (s *Selection) Register(fs *flag.FlagSet) {
	fs.StringVar(&s.MachineID, "machine-id", "", "only events from this machine")
	fs.StringVar(&s.Key, "key", "", "only messages with this key (e.g. curFunds)")
	fs.StringVar(&s.Layer, "layer", "", "only this layer: transport, wire, service, gpio")
	fs.StringVar(&s.Direction, "direction", "", "only this direction: in, out")
	fs.StringVar(&s.Category, "category", "", "only this category: message, input, state, error")
	fs.StringVar(&s.Since, "since", "", "only events at or after this RFC3339 time")
	fs.StringVar(&s.Until, "until", "", "only events before this RFC3339 time")
}

// Filter converts the selection into a reader filter.
func (s Selection) Filter() (log.Filter, error) {
	f := log.Filter{MachineID: s.MachineID, Key: s.Key}

	if s.Since != "" {
		t, err := time.Parse(time.RFC3339, s.Since)
		if err != nil {
			return f, fmt.Errorf("invalid -since: %w", err)
		}
		f.TimeStart = &t
	}
	if s.Until != "" {
		t, err := time.Parse(time.RFC3339, s.Until)
		if err != nil {
			return f, fmt.Errorf("invalid -until: %w", err)
		}
		f.TimeEnd = &t
	}
	if s.Layer != "" {
		l, err := ParseLayerFlag(s.Layer)
		if err != nil {
			return f, err
		}
		f.Layer = &l
	}
	if s.Direction != "" {
		d, err := ParseDirectionFlag(s.Direction)
		if err != nil {
			return f, err
		}
		f.Direction = &d
	}
	if s.Category != "" {
		c, err := ParseCategoryFlag(s.Category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	return f, nil
}

// each calls fn for every selected event in the capture file at path.
func each(path string, sel Selection, fn func(log.Event) error) error {
	filter, err := sel.Filter()
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "service":
		return log.LayerService, nil
	case "gpio":
		return log.LayerGPIO, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, service, or gpio)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "input":
		return log.CategoryInput, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, input, state, or error)", s)
	}
}
