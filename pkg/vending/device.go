package vending

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vendsim/vendsim-go/pkg/transport"
)

// Device is the outside view of a simulated machine: observers only see its
// serial output.
type Device interface {
	ID() string
	SerialOut() *transport.Port
	Close() error
	Done() <-chan struct{}
}

// Inert is a device that is wired like a Machine but never reacts to its
// buttons or serial input. A scenario suite that passes against it is not
// testing anything.
type Inert struct {
	id   string
	out  *transport.Port
	once sync.Once
	done chan struct{}
}

// NewInert creates an inert device. The inputs are validated but ignored.
func NewInert(inputs Inputs, config Config) (*Inert, error) {
	if err := inputs.validate(); err != nil {
		return nil, err
	}
	id := config.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Inert{
		id:   id,
		out:  transport.NewPort(),
		done: make(chan struct{}),
	}, nil
}

// ID returns the device identifier.
func (d *Inert) ID() string {
	return d.id
}

// SerialOut returns the outbound line, which stays silent.
func (d *Inert) SerialOut() *transport.Port {
	return d.out
}

// Close destroys the serial output. Close is idempotent.
func (d *Inert) Close() error {
	d.once.Do(func() {
		d.out.Destroy()
		close(d.done)
	})
	return nil
}

// Done returns a channel closed by Close.
func (d *Inert) Done() <-chan struct{} {
	return d.done
}

var (
	_ Device = (*Machine)(nil)
	_ Device = (*Inert)(nil)
)
