package transport

import (
	"context"
	"errors"
)

// Port is one direction of a simulated serial line. Writers push byte
// chunks; every subscriber receives each chunk in push order.
type Port struct {
	q *Queue[[]byte]
}

// NewPort creates an open port.
func NewPort() *Port {
	return &Port{q: NewQueue[[]byte]()}
}

// Push delivers a copy of chunk to all subscribers.
// Empty chunks are dropped. Push after Destroy is a no-op.
func (p *Port) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	p.q.Push(append([]byte(nil), chunk...))
}

// Write implements io.Writer by pushing p as a single chunk.
func (p *Port) Write(b []byte) (int, error) {
	if p.q.IsDestroyed() {
		return 0, ErrClosed
	}
	p.Push(b)
	return len(b), nil
}

// Subscribe attaches a new reader to the port.
func (p *Port) Subscribe() *Subscription[[]byte] {
	return p.q.Subscribe()
}

// Destroy closes the port and all of its subscriptions.
func (p *Port) Destroy() {
	p.q.Destroy()
}

// IsDestroyed reports whether the port has been destroyed.
func (p *Port) IsDestroyed() bool {
	return p.q.IsDestroyed()
}

// Subscribers returns the number of attached subscriptions.
func (p *Port) Subscribers() int {
	return p.q.Len()
}

// ReadAll collects every chunk from sub until it is closed or ctx is done,
// and returns their concatenation.
func ReadAll(ctx context.Context, sub *Subscription[[]byte]) ([]byte, error) {
	var out []byte
	for {
		chunk, err := sub.Next(ctx)
		if errors.Is(err, ErrClosed) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, chunk...)
	}
}
