package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vendsim/vendsim-go/pkg/gpio"
	"github.com/vendsim/vendsim-go/pkg/transport"
	"github.com/vendsim/vendsim-go/pkg/vending"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// Fixture is the per-scenario rig: four input pins, the user side of the
// serial link, the device under test, and an observer on its serial output.
type Fixture struct {
	Pins    map[string]*gpio.Pin
	UserOut *transport.Port
	Device  vending.Device
	Clock   *gpio.FakeClock

	observer *transport.Subscription[[]byte]
	parser   *transport.StreamParser

	funds      uint32
	serialDone bool
}

// NewFixture wires a fresh device. When broken is set the device is inert.
// Pins run on an auto-advancing clock so holds finish immediately with
// exact elapsed times.
func NewFixture(config vending.Config, broken bool) (*Fixture, error) {
	clock := gpio.NewAutoClock(time.Now())

	f := &Fixture{
		Pins:    make(map[string]*gpio.Pin, 4),
		UserOut: transport.NewPort(),
		Clock:   clock,
		parser:  transport.NewStreamParser(),
	}

	views := make(map[string]gpio.View, 4)
	for _, name := range []string{ButtonSmall, ButtonMedium, ButtonLarge, ButtonDispense} {
		p, err := gpio.NewPin(name, gpio.DirectionInput, gpio.WithClock(clock))
		if err != nil {
			f.Close()
			return nil, err
		}
		f.Pins[name] = p
		if views[name], err = p.View(); err != nil {
			f.Close()
			return nil, err
		}
	}

	inputs := vending.Inputs{
		Small:          views[ButtonSmall],
		Medium:         views[ButtonMedium],
		Large:          views[ButtonLarge],
		DispenseCancel: views[ButtonDispense],
		SerialIn:       f.UserOut.Subscribe(),
	}

	var err error
	if broken {
		f.Device, err = vending.NewInert(inputs, config)
	} else {
		f.Device, err = vending.New(inputs, config)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	f.observer = f.Device.SerialOut().Subscribe()
	return f, nil
}

// Pin returns the named input pin.
func (f *Fixture) Pin(name string) (*gpio.Pin, error) {
	p, ok := f.Pins[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown button %q", name)
	}
	return p, nil
}

// Funds returns the amount from the last curFunds message observed.
func (f *Fixture) Funds() uint32 {
	return f.funds
}

// Collect reads messages from the device. With want > 0 it waits until that
// many have arrived or ctx ends. With want == 0 it returns once the output
// has been silent for quiet. A closed output ends collection without error.
func (f *Fixture) Collect(ctx context.Context, want int, quiet time.Duration) ([]wire.Message, error) {
	var out []wire.Message
	for want == 0 || len(out) < want {
		if f.serialDone {
			break
		}

		waitCtx, cancel := ctx, context.CancelFunc(func() {})
		if want == 0 {
			waitCtx, cancel = context.WithTimeout(ctx, quiet)
		}
		chunk, err := f.observer.Next(waitCtx)
		cancel()

		switch {
		case errors.Is(err, transport.ErrClosed):
			f.serialDone = true
		case err != nil && want == 0 && ctx.Err() == nil:
			return out, nil
		case err != nil:
			return out, Device(fmt.Errorf("waiting for %d messages, got %d: %w", want, len(out), err))
		default:
			msgs, perr := f.parser.Write(chunk)
			if perr != nil {
				return out, Protocol(perr)
			}
			for _, msg := range msgs {
				if msg.Key == wire.KeyCurFunds {
					if v, err := wire.DecodeUint32(msg.Value); err == nil {
						f.funds = v
					}
				}
			}
			out = append(out, msgs...)
		}
	}
	if want > 0 && len(out) < want {
		return out, Device(fmt.Errorf("serial output closed after %d of %d messages", len(out), want))
	}
	return out, nil
}

// Close tears down the device, the pins, and the user port.
func (f *Fixture) Close() {
	if f.Device != nil {
		_ = f.Device.Close()
	}
	for _, p := range f.Pins {
		p.Destroy()
	}
	f.UserOut.Destroy()
	if f.observer != nil {
		f.observer.Close()
	}
}
