package interactive

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vendsim/vendsim-go/pkg/vending"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

type fakePanel struct {
	pressed  []string
	held     time.Duration
	deposits []uint32
	sent     []wire.Key
	values   [][]byte
	raw      []byte
	state    vending.State
}

func (f *fakePanel) Press(_ context.Context, b string) error {
	if b == "coin" {
		return errors.New("unknown button")
	}
	f.pressed = append(f.pressed, b)
	return nil
}

func (f *fakePanel) Hold(_ context.Context, b string, d time.Duration) error {
	f.pressed = append(f.pressed, b)
	f.held = d
	return nil
}

func (f *fakePanel) Deposit(c uint32) { f.deposits = append(f.deposits, c) }

func (f *fakePanel) Send(k wire.Key, v []byte) error {
	f.sent = append(f.sent, k)
	f.values = append(f.values, v)
	return nil
}

func (f *fakePanel) SendRaw(b []byte) { f.raw = append(f.raw, b...) }
func (f *fakePanel) State() vending.State { return f.state }

func TestExecute(t *testing.T) {
	p := &fakePanel{state: vending.State{Order: wire.Order{Small: 2}, Funds: 425}}
	var out bytes.Buffer
	ctx := context.Background()

	for _, line := range []string{
		"press small",
		"hold dispense 2500",
		"deposit 100 25",
		"send cancel",
		"send addValue 0a000000",
		"raw 61 64",
		"status",
		"",
	} {
		if Execute(ctx, p, line, &out) {
			t.Fatalf("%q should not quit", line)
		}
	}

	if strings.Join(p.pressed, ",") != "small,dispense" {
		t.Errorf("pressed = %v", p.pressed)
	}
	if p.held != 2500*time.Millisecond {
		t.Errorf("held = %v", p.held)
	}
	if len(p.deposits) != 2 || p.deposits[0] != 100 || p.deposits[1] != 25 {
		t.Errorf("deposits = %v", p.deposits)
	}
	if len(p.sent) != 2 || p.sent[0] != wire.KeyCancel || p.values[0] != nil || p.sent[1] != wire.KeyAddValue {
		t.Errorf("sent = %v %v", p.sent, p.values)
	}
	if !bytes.Equal(p.raw, []byte("ad")) {
		t.Errorf("raw = %x", p.raw)
	}
	if !strings.Contains(out.String(), "small=2") || !strings.Contains(out.String(), "$4.25") {
		t.Errorf("status output = %q", out.String())
	}
	if !Execute(ctx, p, "quit", &out) {
		t.Error("quit should quit")
	}
}

func TestExecuteErrors(t *testing.T) {
	p := &fakePanel{}
	var out bytes.Buffer
	ctx := context.Background()

	for _, line := range []string{
		"press",
		"press coin",
		"hold small soon",
		"deposit lots",
		"send bogus",
		"send addValue zz",
		"raw",
		"dance",
	} {
		out.Reset()
		Execute(ctx, p, line, &out)
		if out.Len() == 0 {
			t.Errorf("%q printed nothing", line)
		}
	}
	if len(p.deposits) != 0 {
		t.Errorf("bad deposit must not send anything, got %v", p.deposits)
	}
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		msg  wire.Message
		want string
	}{
		{wire.Message{Key: wire.KeyCurFunds, Value: wire.EncodeUint32(205)}, "curFunds $2.05"},
		{wire.Message{Key: wire.KeyOrder, Value: wire.Order{Large: 1}.Encode()}, "order small=0 medium=0 large=1"},
		{wire.Message{Key: wire.KeyCancel}, "cancel"},
		{wire.Message{Key: wire.KeyReceipt, Value: wire.Receipt{LargeSubtotal: 225, Total: 225}.Encode()}, "total=$2.25 refund=$0.00"},
	}
	for _, tt := range tests {
		if got := FormatMessage(tt.msg); !strings.Contains(got, tt.want) {
			t.Errorf("FormatMessage(%s) = %q, want %q", tt.msg.Key, got, tt.want)
		}
	}
}
