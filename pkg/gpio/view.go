package gpio

import "fmt"

// View is the read-only side of a pin handed to devices that observe it.
type View interface {
	ID() string
	Direction() Direction
	Level() Level
	On(event Event, fn Listener) *Registration
	Once(event Event, fn Listener) *Registration
	OnChange(fn Listener) *Registration
	OnPressRelease(fn Listener) *Registration
	ListenerCount() int
}

// pinView delegates the observation methods to the pin.
type pinView struct {
	p *Pin
}

func (v pinView) ID() string { return v.p.ID() }
func (v pinView) Direction() Direction { return v.p.Direction() }
func (v pinView) Level() Level { return v.p.Level() }
func (v pinView) On(event Event, fn Listener) *Registration { return v.p.On(event, fn) }
func (v pinView) Once(event Event, fn Listener) *Registration { return v.p.Once(event, fn) }
func (v pinView) OnChange(fn Listener) *Registration { return v.p.OnChange(fn) }
func (v pinView) OnPressRelease(fn Listener) *Registration { return v.p.OnPressRelease(fn) }
func (v pinView) ListenerCount() int { return v.p.ListenerCount() }

// View returns a read-only view of the pin.
func (p *Pin) View() (View, error) {
	if p.IsDestroyed() {
		return nil, fmt.Errorf("%w: cannot view %q", ErrDestroyed, p.id)
	}
	return pinView{p: p}, nil
}

// Compile-time interface satisfaction check.
var _ View = pinView{}
