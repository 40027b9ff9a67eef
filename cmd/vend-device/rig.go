package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vendsim/vendsim-go/cmd/vend-device/interactive"
	"github.com/vendsim/vendsim-go/pkg/gpio"
	"github.com/vendsim/vendsim-go/pkg/transport"
	"github.com/vendsim/vendsim-go/pkg/vending"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// buttons lists the front-panel inputs in display order.
var buttons = []string{"small", "medium", "large", "dispense"}

// Rig is a machine wired to four buttons and the user side of its serial link.
type Rig struct {
	pins    map[string]*gpio.Pin
	userOut *transport.Port
	machine *vending.Machine
}

// NewRig creates the pins and the port and starts a machine on them.
func NewRig(cfg vending.Config, clock gpio.Clock) (*Rig, error) {
	r := &Rig{
		pins:    make(map[string]*gpio.Pin, len(buttons)),
		userOut: transport.NewPort(),
	}

	views := make(map[string]gpio.View, len(buttons))
	for _, name := range buttons {
		p, err := gpio.NewPin(name, gpio.DirectionInput, gpio.WithClock(clock))
		if err != nil {
			r.Close()
			return nil, err
		}
		r.pins[name] = p
		if views[name], err = p.View(); err != nil {
			r.Close()
			return nil, err
		}
	}

	m, err := vending.New(vending.Inputs{
		Small:          views["small"],
		Medium:         views["medium"],
		Large:          views["large"],
		DispenseCancel: views["dispense"],
		SerialIn:       r.userOut.Subscribe(),
	}, cfg)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.machine = m
	return r, nil
}

// Machine returns the machine under control.
func (r *Rig) Machine() *vending.Machine {
	return r.machine
}

func (r *Rig) pin(name string) (*gpio.Pin, error) {
	p, ok := r.pins[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown button %q (want %s)", name, strings.Join(buttons, ", "))
	}
	return p, nil
}

// Press presses and releases a button.
func (r *Rig) Press(ctx context.Context, button string) error {
	p, err := r.pin(button)
	if err != nil {
		return err
	}
	return p.Press(ctx)
}

// Hold keeps a button high for d.
func (r *Rig) Hold(ctx context.Context, button string, d time.Duration) error {
	p, err := r.pin(button)
	if err != nil {
		return err
	}
	return p.Hold(ctx, d)
}

// Deposit sends an addValue frame.
func (r *Rig) Deposit(cents uint32) {
	r.userOut.Push(wire.AddValueFrame(cents))
}

// Send encodes and sends one frame. A nil value is zero-filled.
func (r *Rig) Send(k wire.Key, value []byte) error {
	frame, err := wire.Encode(k, value)
	if err != nil {
		return err
	}
	r.userOut.Push(frame)
	return nil
}

// SendRaw pushes bytes unframed.
func (r *Rig) SendRaw(b []byte) {
	r.userOut.Push(b)
}

// State returns the machine's order and funds.
func (r *Rig) State() vending.State {
	return r.machine.Snapshot()
}

// Close stops the machine and tears down the pins and the port.
func (r *Rig) Close() {
	if r.machine != nil {
		_ = r.machine.Close()
	}
	for _, p := range r.pins {
		p.Destroy()
	}
	r.userOut.Destroy()
}

var _ interactive.Panel = (*Rig)(nil)
