package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendsim/vendsim-go/pkg/log"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// ErrParserState indicates the parser reached an inconsistent internal state.
// It ends the parse loop that hit it.
var ErrParserState = errors.New("parser state invalid")

// ParseState is the position of a StreamParser within a frame.
type ParseState uint8

const (
	// StateReadingKey slides an 8-byte window until it matches a known key.
	StateReadingKey ParseState = iota
	// StateReadingLength1 expects the low byte of VALUESIZE.
	StateReadingLength1
	// StateReadingLength2 expects the high byte of VALUESIZE.
	StateReadingLength2
	// StateReadingValue accumulates VALUESIZE value bytes.
	StateReadingValue
)

// String returns the state name.
func (s ParseState) String() string {
	switch s {
	case StateReadingKey:
		return "READING_KEY"
	case StateReadingLength1:
		return "READING_LENGTH_1"
	case StateReadingLength2:
		return "READING_LENGTH_2"
	case StateReadingValue:
		return "READING_VALUE"
	default:
		return "UNKNOWN"
	}
}

// StreamParser reassembles wire messages from a byte stream delivered in
// chunks of any size. It is not safe for concurrent use.
type StreamParser struct {
	state ParseState

	window    [wire.KeySize]byte
	windowLen int

	key   wire.Key
	size  uint16
	value []byte

	// Logging support (optional)
	logger    log.Logger
	slog      *slog.Logger
	machineID string
}

// NewStreamParser creates a parser in StateReadingKey.
func NewStreamParser() *StreamParser {
	return &StreamParser{
		logger: log.NoopLogger{},
		slog:   slog.Default(),
	}
}

// SetLogger configures protocol capture for this parser.
// Pass nil to disable capture.
func (p *StreamParser) SetLogger(logger log.Logger, machineID string) {
	p.logger = log.OrNoop(logger)
	p.machineID = machineID
}

// SetSlog configures the operational logger.
func (p *StreamParser) SetSlog(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	p.slog = l
}

// State returns the current parse state.
func (p *StreamParser) State() ParseState {
	return p.state
}

// Reset discards any partial frame and returns to StateReadingKey.
func (p *StreamParser) Reset() {
	p.state = StateReadingKey
	p.windowLen = 0
	p.key = 0
	p.size = 0
	p.value = nil
}

// Feed consumes one byte. ok is true when b completed a message.
func (p *StreamParser) Feed(b byte) (msg wire.Message, ok bool, err error) {
	switch p.state {
	case StateReadingKey:
		if p.windowLen < wire.KeySize {
			p.window[p.windowLen] = b
			p.windowLen++
		} else {
			copy(p.window[:], p.window[1:])
			p.window[wire.KeySize-1] = b
		}
		if p.windowLen == wire.KeySize {
			if k, found := wire.KeyFromBytes(p.window[:]); found {
				p.key = k
				p.windowLen = 0
				p.state = StateReadingLength1
			}
		}

	case StateReadingLength1:
		p.size = uint16(b)
		p.state = StateReadingLength2

	case StateReadingLength2:
		p.size = binary.LittleEndian.Uint16([]byte{byte(p.size), b})
		if p.size == 0 {
			msg = wire.Message{Key: p.key, Value: []byte{}}
			p.Reset()
			return msg, true, nil
		}
		p.value = make([]byte, 0, p.size)
		p.state = StateReadingValue

	case StateReadingValue:
		if p.value == nil || len(p.value) >= int(p.size) {
			key := p.key
			p.Reset()
			return wire.Message{}, false, fmt.Errorf("%w: no value buffer for %s", ErrParserState, key)
		}
		p.value = append(p.value, b)
		if len(p.value) == int(p.size) {
			msg = wire.Message{Key: p.key, Value: p.value}
			p.Reset()
			return msg, true, nil
		}

	default:
		state := p.state
		p.Reset()
		return wire.Message{}, false, fmt.Errorf("%w: %s", ErrParserState, state)
	}

	return wire.Message{}, false, nil
}

// Write feeds every byte of chunk and returns the messages it completed.
// On error the messages completed before the fault are returned with it.
func (p *StreamParser) Write(chunk []byte) ([]wire.Message, error) {
	var out []wire.Message
	for _, b := range chunk {
		msg, ok, err := p.Feed(b)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

// Run reads chunks from sub and calls handler for every completed message,
// in stream order. It returns nil when sub is closed or ctx is cancelled, and
// a wrapped ErrParserState if the parser faults.
func (p *StreamParser) Run(ctx context.Context, sub *Subscription[[]byte], handler func(wire.Message)) error {
	for {
		chunk, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		for _, b := range chunk {
			msg, ok, err := p.Feed(b)
			if err != nil {
				p.slog.Error("stream parser stopped", "machine_id", p.machineID, "error", err)
				p.logger.Log(log.Event{
					Timestamp: time.Now(),
					MachineID: p.machineID,
					Direction: log.DirectionIn,
					Layer:     log.LayerWire,
					Category:  log.CategoryError,
					Error: &log.ErrorEventData{
						Layer:   log.LayerWire,
						Message: err.Error(),
						Context: "parse",
					},
				})
				return err
			}
			if !ok {
				continue
			}
			p.logger.Log(MessageEvent(p.machineID, log.DirectionIn, msg))
			if handler != nil {
				handler(msg)
			}
		}
	}
}

// MessageEvent builds a wire-layer capture event for msg.
func MessageEvent(machineID string, direction log.Direction, msg wire.Message) log.Event {
	ev := &log.MessageEvent{
		Key:       msg.Key.String(),
		ValueSize: msg.ValueSize(),
	}
	if payload, err := msg.Payload(); err == nil {
		ev.Payload = payload
	}
	return log.Event{
		Timestamp: time.Now(),
		MachineID: machineID,
		Direction: direction,
		Layer:     log.LayerWire,
		Category:  log.CategoryMessage,
		Message:   ev,
	}
}
