package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// PressDuration is how long Press holds a pin high.
const PressDuration = 20 * time.Millisecond

// Pin errors.
var (
	// ErrDestroyed indicates the pin has been destroyed.
	ErrDestroyed = errors.New("pin destroyed")

	// ErrNotInput indicates a level change on a pin that is not an input.
	ErrNotInput = errors.New("pin is not an input")

	// ErrInvalidLevel indicates an undefined level value.
	ErrInvalidLevel = errors.New("invalid level")

	// ErrInvalidDirection indicates an undefined direction value.
	ErrInvalidDirection = errors.New("invalid direction")

	// ErrAborted indicates a hold was cancelled before it completed.
	ErrAborted = errors.New("hold aborted")
)

// Change describes one level change.
type Change struct {
	Pin      string
	Level    Level
	Previous Level

	// Elapsed is the time since the previous change. It is zero and First is
	// true for the first change since creation or Reset.
	Elapsed time.Duration
	First   bool

	At time.Time
}

// PressRelease reports whether the change is a high to low edge.
func (c Change) PressRelease() bool {
	return c.Previous == LevelHigh && c.Level == LevelLow
}

// Listener receives level changes.
type Listener func(Change)

type listener struct {
	id    uint64
	event Event
	fn    Listener
	once  bool
}

// Pin is a simulated digital pin. It is safe for concurrent use.
// Listeners are called synchronously, outside the pin's lock, in
// registration order.
type Pin struct {
	id    string
	dir   Direction
	clock Clock

	mu         sync.Mutex
	level      Level
	pressCount uint64
	lastChange time.Time
	hasChanged bool
	listeners  []*listener
	nextID     uint64
	destroyed  bool
}

// Option configures a Pin.
type Option func(*Pin)

// WithLevel sets the initial level. Invalid levels become LevelUndefined.
func WithLevel(l Level) Option {
	return func(p *Pin) {
		if !l.IsValid() {
			l = LevelUndefined
		}
		p.level = l
	}
}

// WithClock sets the clock used for timestamps and holds.
func WithClock(c Clock) Option {
	return func(p *Pin) {
		if c != nil {
			p.clock = c
		}
	}
}

// NewPin creates a pin. The initial level is LevelLow unless WithLevel is
// given.
func NewPin(id string, dir Direction, opts ...Option) (*Pin, error) {
	if !dir.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, dir)
	}
	p := &Pin{
		id:    id,
		dir:   dir,
		clock: RealClock(),
		level: LevelLow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ID returns the pin identifier.
func (p *Pin) ID() string {
	return p.id
}

// Direction returns the pin direction.
func (p *Pin) Direction() Direction {
	return p.dir
}

// Level returns the current level.
func (p *Pin) Level() Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// SetLevel drives an input pin. Setting the current level is a no-op.
func (p *Pin) SetLevel(l Level) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot set level of %q", ErrDestroyed, p.id)
	}
	if p.dir != DirectionInput {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotInput, p.id)
	}
	if !l.IsValid() {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidLevel, l)
	}
	fns, change, changed := p.applyLocked(l)
	p.mu.Unlock()

	if changed {
		notify(fns, change)
	}
	return nil
}

// applyLocked commits l and returns the listeners to notify. It reports
// false when l is already the current level.
func (p *Pin) applyLocked(l Level) ([]Listener, Change, bool) {
	if l == p.level {
		return nil, Change{}, false
	}

	now := p.clock.Now()
	change := Change{
		Pin:      p.id,
		Level:    l,
		Previous: p.level,
		First:    !p.hasChanged,
		At:       now,
	}
	if p.hasChanged {
		change.Elapsed = now.Sub(p.lastChange)
	}
	p.level = l
	p.lastChange = now
	p.hasChanged = true

	fns := p.collectLocked(EventChange)
	if change.PressRelease() {
		fns = append(fns, p.collectLocked(EventPressRelease)...)
	}
	return fns, change, true
}

func notify(fns []Listener, c Change) {
	for _, fn := range fns {
		fn(c)
	}
}

// collectLocked returns the listeners for event and drops one-shot entries.
func (p *Pin) collectLocked(event Event) []Listener {
	var fns []Listener
	kept := p.listeners[:0]
	for _, l := range p.listeners {
		if l.event == event {
			fns = append(fns, l.fn)
			if l.once {
				continue
			}
		}
		kept = append(kept, l)
	}
	p.listeners = kept
	return fns
}

// Hold raises a low pin, waits d, then lowers it again unless a newer hold
// started meanwhile. A pin that is not low is left alone.
//
// If ctx is cancelled during the wait, Hold returns an error matching both
// ErrAborted and ctx.Err() and the pin stays high.
func (p *Pin) Hold(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot hold %q", ErrDestroyed, p.id)
	}
	if p.dir != DirectionInput {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotInput, p.id)
	}
	if p.level != LevelLow {
		p.mu.Unlock()
		return nil
	}
	p.pressCount++
	count := p.pressCount
	fns, change, _ := p.applyLocked(LevelHigh)
	p.mu.Unlock()
	notify(fns, change)

	select {
	case <-p.clock.After(d):
	case <-ctx.Done():
		return fmt.Errorf("%w: %q: %w", ErrAborted, p.id, ctx.Err())
	}

	p.mu.Lock()
	stale := p.destroyed || count != p.pressCount
	p.mu.Unlock()
	if stale {
		return nil
	}
	return p.SetLevel(LevelLow)
}

// Press holds the pin for PressDuration.
func (p *Pin) Press(ctx context.Context) error {
	return p.Hold(ctx, PressDuration)
}

// On registers fn for event.
func (p *Pin) On(event Event, fn Listener) *Registration {
	return p.add(event, fn, false)
}

// Once registers fn for the next occurrence of event only.
func (p *Pin) Once(event Event, fn Listener) *Registration {
	return p.add(event, fn, true)
}

// OnChange registers fn for every level change.
func (p *Pin) OnChange(fn Listener) *Registration {
	return p.add(EventChange, fn, false)
}

// OnPressRelease registers fn for high to low transitions.
func (p *Pin) OnPressRelease(fn Listener) *Registration {
	return p.add(EventPressRelease, fn, false)
}

func (p *Pin) add(event Event, fn Listener, once bool) *Registration {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := &Registration{pin: p}
	if p.destroyed || fn == nil {
		r.removed = true
		return r
	}
	p.nextID++
	r.id = p.nextID
	p.listeners = append(p.listeners, &listener{id: r.id, event: event, fn: fn, once: once})
	return r
}

func (p *Pin) remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, l := range p.listeners {
		if l.id == id {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (p *Pin) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// RemoveAllListeners drops every listener.
func (p *Pin) RemoveAllListeners() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = nil
}

// Reset drops all listeners, lowers the pin without notification and
// forgets the press counter and last change time.
func (p *Pin) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listeners = nil
	p.level = LevelLow
	p.pressCount = 0
	p.hasChanged = false
	p.lastChange = time.Time{}
}

// Destroy resets the pin and makes every later mutation fail.
// Destroy is idempotent.
func (p *Pin) Destroy() {
	p.Reset()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyed = true
}

// IsDestroyed reports whether Destroy has been called.
func (p *Pin) IsDestroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// Registration is returned by listener registration and removes it.
type Registration struct {
	pin     *Pin
	id      uint64
	mu      sync.Mutex
	removed bool
}

// Remove unregisters the listener. It is idempotent and safe to call after
// the pin was destroyed.
func (r *Registration) Remove() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return
	}
	r.removed = true
	r.pin.remove(r.id)
}
