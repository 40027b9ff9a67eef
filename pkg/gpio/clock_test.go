package gpio

import (
	"testing"
	"time"
)

func TestFakeClockAdvance(t *testing.T) {
	c := NewFakeClock(epoch)

	early := c.After(time.Second)
	late := c.After(3 * time.Second)
	if c.Waiters() != 2 {
		t.Fatalf("Waiters = %d, want 2", c.Waiters())
	}

	c.Advance(2 * time.Second)
	select {
	case at := <-early:
		if !at.Equal(epoch.Add(2 * time.Second)) {
			t.Errorf("fired at %v", at)
		}
	default:
		t.Fatal("early waiter did not fire")
	}
	select {
	case <-late:
		t.Fatal("late waiter fired too soon")
	default:
	}

	c.Advance(time.Second)
	select {
	case <-late:
	default:
		t.Fatal("late waiter did not fire")
	}
	if c.Waiters() != 0 {
		t.Errorf("Waiters = %d, want 0", c.Waiters())
	}
}

func TestFakeClockZeroDuration(t *testing.T) {
	c := NewFakeClock(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestAutoClock(t *testing.T) {
	c := NewAutoClock(epoch)
	for _, d := range []time.Duration{50 * time.Millisecond, 2001 * time.Millisecond} {
		start := c.Now()
		select {
		case fired := <-c.After(d):
			if got := fired.Sub(start); got != d {
				t.Errorf("After(%v) fired at +%v", d, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("After(%v) on auto clock never fired; waiters=%d", d, c.Waiters())
		}
		if got := c.Now().Sub(start); got != d {
			t.Errorf("advanced by %v, want %v", got, d)
		}
	}
	if c.Waiters() != 0 {
		t.Errorf("Waiters() = %d, want 0", c.Waiters())
	}
}

func TestRealClock(t *testing.T) {
	c := RealClock()
	start := c.Now()
	<-c.After(time.Millisecond)
	if c.Now().Before(start) {
		t.Error("real clock went backwards")
	}
}
