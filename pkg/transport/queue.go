package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Subscription.Next once the subscription has been
// closed or its queue destroyed.
var ErrClosed = errors.New("queue closed")

// Queue is a multi-consumer broadcast queue.
// It is safe for concurrent use.
type Queue[T any] struct {
	mu        sync.Mutex
	cursors   map[uint64]*cursor[T]
	nextID    uint64
	destroyed bool
}

// cursor is one subscriber's private buffer. Guarded by the queue mutex.
type cursor[T any] struct {
	items  []T
	wake   chan struct{} // capacity 1; signalled on push
	done   chan struct{} // closed on detach or destroy
	closed bool
}

// Subscription is a consumer handle returned by Queue.Subscribe.
type Subscription[T any] struct {
	q  *Queue[T]
	id uint64
	c  *cursor[T]
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		cursors: make(map[uint64]*cursor[T]),
	}
}

// Push appends item to the buffer of every attached subscription.
// Push after Destroy is a no-op.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed {
		return
	}
	for _, c := range q.cursors {
		c.items = append(c.items, item)
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

// Subscribe attaches a new subscription that sees items pushed from now on.
// Subscribing to a destroyed queue returns an already closed subscription.
func (q *Queue[T]) Subscribe() *Subscription[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	c := &cursor[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	q.nextID++
	sub := &Subscription[T]{q: q, id: q.nextID, c: c}

	if q.destroyed {
		c.closed = true
		close(c.done)
		return sub
	}
	q.cursors[sub.id] = c
	return sub
}

// Destroy closes every subscription, discarding buffered items, and wakes
// any waiting consumer. Destroy is idempotent.
func (q *Queue[T]) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed {
		return
	}
	q.destroyed = true
	for id, c := range q.cursors {
		c.close()
		delete(q.cursors, id)
	}
}

// IsDestroyed reports whether Destroy has been called.
func (q *Queue[T]) IsDestroyed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.destroyed
}

// Len returns the number of attached subscriptions.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cursors)
}

func (c *cursor[T]) close() {
	if c.closed {
		return
	}
	c.closed = true
	c.items = nil
	close(c.done)
}

// Next returns the oldest buffered item, waiting until one is pushed.
// It returns ErrClosed once the subscription is closed and ctx.Err() if ctx
// is cancelled first. Cancellation does not detach the subscription.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		s.q.mu.Lock()
		if s.c.closed {
			s.q.mu.Unlock()
			return zero, ErrClosed
		}
		if len(s.c.items) > 0 {
			item := s.c.items[0]
			s.c.items[0] = zero
			s.c.items = s.c.items[1:]
			s.q.mu.Unlock()
			return item, nil
		}
		s.q.mu.Unlock()

		select {
		case <-s.c.wake:
		case <-s.c.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryNext returns the oldest buffered item without waiting.
// ok is false when nothing is buffered or the subscription is closed.
func (s *Subscription[T]) TryNext() (item T, ok bool) {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()

	if s.c.closed || len(s.c.items) == 0 {
		return item, false
	}
	item = s.c.items[0]
	var zero T
	s.c.items[0] = zero
	s.c.items = s.c.items[1:]
	return item, true
}

// Buffered returns the number of items waiting in this subscription.
func (s *Subscription[T]) Buffered() int {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	return len(s.c.items)
}

// Done returns a channel closed when the subscription is closed.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.c.done
}

// Closed reports whether the subscription has been closed.
func (s *Subscription[T]) Closed() bool {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()
	return s.c.closed
}

// Close detaches the subscription and releases its buffer. Other
// subscriptions are unaffected. Close is idempotent.
func (s *Subscription[T]) Close() error {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()

	if s.c.closed {
		return nil
	}
	s.c.close()
	delete(s.q.cursors, s.id)
	return nil
}
