package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vendsim/vendsim-go/pkg/log"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

func sampleStream(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(wire.AddValueFrame(100))
	buf.Write(wire.CancelFrame())
	buf.Write(wire.OrderFrame(wire.Order{Small: 1, Large: 2}))
	buf.Write(wire.ReceiptFrame(wire.Receipt{SmallSubtotal: 175, Total: 175, Refund: 25}))
	buf.Write(wire.RefundFrame(25))
	return buf.Bytes()
}

func assertMessages(t *testing.T, got []wire.Message, want []wire.Message) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Key != want[i].Key || !bytes.Equal(got[i].Value, want[i].Value) {
			t.Errorf("message %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStreamParserChunkingInvariance(t *testing.T) {
	stream := sampleStream(t)

	whole := NewStreamParser()
	want, err := whole.Write(stream)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(want) != 5 {
		t.Fatalf("got %d messages, want 5", len(want))
	}

	for _, size := range []int{1, 2, 3, 7, 10, 13, len(stream)} {
		p := NewStreamParser()
		var got []wire.Message
		for i := 0; i < len(stream); i += size {
			end := i + size
			if end > len(stream) {
				end = len(stream)
			}
			msgs, err := p.Write(stream[i:end])
			if err != nil {
				t.Fatalf("chunk size %d: Write failed: %v", size, err)
			}
			got = append(got, msgs...)
		}
		assertMessages(t, got, want)
		if p.State() != StateReadingKey {
			t.Errorf("chunk size %d: final state = %s", size, p.State())
		}
	}
}

func TestStreamParserSlidingWindow(t *testing.T) {
	var stream []byte
	stream = append(stream, []byte("garbage!xx")...)
	stream = append(stream, wire.AddValueFrame(25)...)

	p := NewStreamParser()
	msgs, err := p.Write(stream)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	assertMessages(t, msgs, []wire.Message{{Key: wire.KeyAddValue, Value: wire.EncodeUint32(25)}})
}

func TestStreamParserZeroLength(t *testing.T) {
	p := NewStreamParser()

	stream := append(wire.CancelFrame(), wire.InsFundsFrame()...)
	var got []wire.Message
	for _, b := range stream {
		msg, ok, err := p.Feed(b)
		if err != nil {
			t.Fatalf("Feed failed: %v", err)
		}
		if ok {
			got = append(got, msg)
		}
	}

	assertMessages(t, got, []wire.Message{
		{Key: wire.KeyCancel, Value: []byte{}},
		{Key: wire.KeyInsFunds, Value: []byte{}},
	})
}

func TestStreamParserStates(t *testing.T) {
	frame := wire.RefundFrame(1)
	p := NewStreamParser()

	want := []ParseState{}
	for i := 0; i < wire.KeySize-1; i++ {
		want = append(want, StateReadingKey)
	}
	want = append(want, StateReadingLength1, StateReadingLength2, StateReadingValue,
		StateReadingValue, StateReadingValue, StateReadingValue, StateReadingKey)

	for i, b := range frame {
		if _, _, err := p.Feed(b); err != nil {
			t.Fatalf("Feed failed: %v", err)
		}
		if p.State() != want[i] {
			t.Errorf("after byte %d: state = %s, want %s", i, p.State(), want[i])
		}
	}
}

func TestStreamParserReset(t *testing.T) {
	p := NewStreamParser()
	frame := wire.CurFundsFrame(500)

	if _, err := p.Write(frame[:11]); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if p.State() != StateReadingValue {
		t.Fatalf("state = %s, want READING_VALUE", p.State())
	}

	p.Reset()
	msgs, err := p.Write(frame)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	assertMessages(t, msgs, []wire.Message{{Key: wire.KeyCurFunds, Value: wire.EncodeUint32(500)}})
}

func TestStreamParserInvalidState(t *testing.T) {
	p := NewStreamParser()
	p.state = StateReadingValue
	p.size = 4

	if _, _, err := p.Feed(0x01); !errors.Is(err, ErrParserState) {
		t.Errorf("Feed = %v, want ErrParserState", err)
	}
	if p.State() != StateReadingKey {
		t.Errorf("state after fault = %s, want READING_KEY", p.State())
	}
}

func TestParseStateString(t *testing.T) {
	tests := []struct {
		state ParseState
		want  string
	}{
		{StateReadingKey, "READING_KEY"},
		{StateReadingLength1, "READING_LENGTH_1"},
		{StateReadingLength2, "READING_LENGTH_2"},
		{StateReadingValue, "READING_VALUE"},
		{ParseState(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ParseState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

type captureLogger struct {
	events chan log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.events <- e
}

func TestStreamParserRun(t *testing.T) {
	port := NewPort()
	sub := port.Subscribe()

	capture := &captureLogger{events: make(chan log.Event, 16)}
	p := NewStreamParser()
	p.SetLogger(capture, "machine-1")

	got := make(chan wire.Message, 8)
	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background(), sub, func(m wire.Message) { got <- m })
	}()

	frame := wire.AddValueFrame(200)
	port.Push(frame[:3])
	port.Push(frame[3:])

	select {
	case m := <-got:
		if m.Key != wire.KeyAddValue {
			t.Errorf("key = %s, want addValue", m.Key)
		}
	case <-time.After(time.Second):
		t.Fatal("no message parsed")
	}

	ev := <-capture.events
	if ev.Message == nil || ev.Message.Key != "addValue" || ev.Direction != log.DirectionIn {
		t.Errorf("capture event = %+v", ev)
	}
	if ev.MachineID != "machine-1" {
		t.Errorf("MachineID = %q", ev.MachineID)
	}

	port.Destroy()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil on closed source", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after destroy")
	}
}

func TestStreamParserRunContextCancel(t *testing.T) {
	port := NewPort()
	p := NewStreamParser()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, port.Subscribe(), nil)
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil on cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStreamParserRunFault(t *testing.T) {
	port := NewPort()
	sub := port.Subscribe()
	capture := &captureLogger{events: make(chan log.Event, 4)}

	p := NewStreamParser()
	p.SetLogger(capture, "m")
	p.state = StateReadingValue

	port.Push([]byte{0x00})
	err := p.Run(context.Background(), sub, nil)
	if !errors.Is(err, ErrParserState) {
		t.Fatalf("Run = %v, want ErrParserState", err)
	}

	ev := <-capture.events
	if ev.Category != log.CategoryError || ev.Error == nil {
		t.Errorf("expected error capture event, got %+v", ev)
	}
}
