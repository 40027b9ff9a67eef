package runner

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vendsim/vendsim-go/internal/testharness/engine"
	"github.com/vendsim/vendsim-go/internal/testharness/loader"
	"github.com/vendsim/vendsim-go/pkg/gpio"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// defaultQuiet is how long the serial output must stay silent before a
// step's messages are considered complete.
const defaultQuiet = 30 * time.Millisecond

func (r *Runner) registerHandlers() {
	r.engine.RegisterHandler(ActionPress, r.handlePress)
	r.engine.RegisterHandler(ActionHold, r.handleHold)
	r.engine.RegisterHandler(ActionDeposit, r.handleDeposit)
	r.engine.RegisterHandler(ActionSend, r.handleSend)
	r.engine.RegisterHandler(ActionSendRaw, r.handleSendRaw)
	r.engine.RegisterHandler(ActionWait, r.handleWait)
	r.engine.RegisterHandler(ActionRead, r.handleRead)
	r.engine.RegisterHandler(ActionCloseSerialIn, r.handleCloseSerialIn)
	r.engine.RegisterHandler(ActionClose, r.handleClose)
	r.engine.RegisterHandler(ActionDestroyPin, r.handleDestroyPin)
}

func fixtureFrom(state *engine.ExecutionState) (*Fixture, error) {
	f, ok := state.Fixture.(*Fixture)
	if !ok || f == nil {
		return nil, Harness(errors.New("no fixture for this scenario"))
	}
	return f, nil
}

// handlePress drives a button through one press-and-release.
func (r *Runner) handlePress(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	return r.pinAction(ctx, step, state, func(p *gpio.Pin) error { return p.Press(ctx) })
}

// handleHold keeps a button high for duration_ms, then releases it.
func (r *Runner) handleHold(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	ms := paramFloat(step.Params, ParamDurationMs, -1)
	if ms < 0 {
		return nil, paramError(step.Action, ParamDurationMs, "required, non-negative")
	}
	d := time.Duration(ms * float64(time.Millisecond))
	return r.pinAction(ctx, step, state, func(p *gpio.Pin) error { return p.Hold(ctx, d) })
}

func (r *Runner) pinAction(ctx context.Context, step *loader.Step, state *engine.ExecutionState, act func(*gpio.Pin) error) (map[string]any, error) {
	f, err := fixtureFrom(state)
	if err != nil {
		return nil, err
	}
	name, _ := step.Params[ParamButton].(string)
	pin, err := f.Pin(name)
	if err != nil {
		return nil, paramError(step.Action, ParamButton, "%v", err)
	}

	start := f.Clock.Now()
	actErr := act(pin)
	elapsed := f.Clock.Now().Sub(start)
	if actErr != nil && !paramBool(step.Params, ParamAllowError) {
		return nil, Harness(fmt.Errorf("%s %s: %w", step.Action, name, actErr))
	}

	outputs, err := r.collect(ctx, step, f)
	if err != nil {
		return nil, err
	}
	outputs[engine.KeyElapsed] = elapsed
	outputs[KeyPinLevel] = pin.Level().String()
	if actErr != nil {
		outputs[engine.KeyError] = actErr.Error()
	}
	return outputs, nil
}

// handleDeposit sends one addValue frame per amount in cents (a number or a list).
func (r *Runner) handleDeposit(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	f, err := fixtureFrom(state)
	if err != nil {
		return nil, err
	}

	var amounts []any
	switch v := step.Params[ParamCents].(type) {
	case []any:
		amounts = v
	case nil:
		return nil, paramError(step.Action, ParamCents, "required")
	default:
		amounts = []any{v}
	}

	sent := 0
	for _, a := range amounts {
		cents, ok := engine.ToFloat64(a)
		if !ok || cents < 0 || cents > float64(^uint32(0)) {
			return nil, paramError(step.Action, ParamCents, "%v is not a valid amount", a)
		}
		frame := wire.AddValueFrame(uint32(cents))
		f.UserOut.Push(frame)
		sent += len(frame)
	}

	outputs, err := r.collect(ctx, step, f)
	if err != nil {
		return nil, err
	}
	outputs[KeyBytesSent] = sent
	return outputs, nil
}

// handleSend encodes one frame for any key. The value comes from value_hex,
// or from cents for the uint32 keys, or is zero-filled to the declared size.
func (r *Runner) handleSend(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	f, err := fixtureFrom(state)
	if err != nil {
		return nil, err
	}

	name, _ := step.Params[ParamKey].(string)
	k, ok := wire.KeyFromString(name)
	if !ok {
		return nil, paramError(step.Action, ParamKey, "unknown key %q", name)
	}

	var value []byte
	if h, ok := step.Params[ParamValueHex].(string); ok {
		if value, err = hex.DecodeString(h); err != nil {
			return nil, paramError(step.Action, ParamValueHex, "%v", err)
		}
	} else if c, ok := engine.ToFloat64(step.Params[ParamCents]); ok {
		value = wire.EncodeUint32(uint32(c))
	}

	frame, err := wire.Encode(k, value)
	if err != nil {
		return nil, Harness(err)
	}
	f.UserOut.Push(frame)

	outputs, err := r.collect(ctx, step, f)
	if err != nil {
		return nil, err
	}
	outputs[KeyBytesSent] = len(frame)
	return outputs, nil
}

// handleSendRaw pushes arbitrary bytes, optionally split into chunk_size pieces.
func (r *Runner) handleSendRaw(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	f, err := fixtureFrom(state)
	if err != nil {
		return nil, err
	}

	h, _ := step.Params[ParamHex].(string)
	data, err := hex.DecodeString(strings.NewReplacer(" ", "", "\n", "").Replace(h))
	if err != nil {
		return nil, paramError(step.Action, ParamHex, "%v", err)
	}

	size := paramInt(step.Params, ParamChunkSize, len(data))
	if size <= 0 {
		size = 1
	}
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		f.UserOut.Push(data[start:end])
	}

	outputs, err := r.collect(ctx, step, f)
	if err != nil {
		return nil, err
	}
	outputs[KeyBytesSent] = len(data)
	return outputs, nil
}

// handleWait sleeps for duration_ms of wall time and reports what arrived.
func (r *Runner) handleWait(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	f, err := fixtureFrom(state)
	if err != nil {
		return nil, err
	}

	d := time.Duration(paramFloat(step.Params, ParamDurationMs, 0) * float64(time.Millisecond))
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(d):
	}
	return r.collect(ctx, step, f)
}

// handleRead collects messages without acting.
func (r *Runner) handleRead(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	f, err := fixtureFrom(state)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, step, f)
}

// handleCloseSerialIn ends the user's side of the serial link and reports
// whether the device shut down within timeout_ms.
func (r *Runner) handleCloseSerialIn(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	f, err := fixtureFrom(state)
	if err != nil {
		return nil, err
	}

	f.UserOut.Destroy()

	timeout := time.Duration(paramFloat(step.Params, ParamTimeoutMs, 500) * float64(time.Millisecond))
	stopped := false
	select {
	case <-f.Device.Done():
		stopped = true
	case <-time.After(timeout):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return map[string]any{KeyMachineStopped: stopped}, nil
}

// handleClose shuts the device down from the outside.
func (r *Runner) handleClose(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	f, err := fixtureFrom(state)
	if err != nil {
		return nil, err
	}
	if err := f.Device.Close(); err != nil {
		return nil, Device(err)
	}
	select {
	case <-f.Device.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]any{KeyClosed: true}, nil
}

// handleDestroyPin destroys one input pin. The device must keep working on
// the others.
func (r *Runner) handleDestroyPin(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	f, err := fixtureFrom(state)
	if err != nil {
		return nil, err
	}
	name, _ := step.Params[ParamButton].(string)
	pin, err := f.Pin(name)
	if err != nil {
		return nil, paramError(step.Action, ParamButton, "%v", err)
	}
	pin.Destroy()
	return map[string]any{KeyPinLevel: pin.Level().String()}, nil
}

// collect gathers the device's reaction to a step and flattens it into outputs.
func (r *Runner) collect(ctx context.Context, step *loader.Step, f *Fixture) (map[string]any, error) {
	want := paramInt(step.Params, ParamCount, 0)
	quiet := r.config.Quiet
	if ms := paramFloat(step.Params, ParamQuietMs, 0); ms > 0 {
		quiet = time.Duration(ms * float64(time.Millisecond))
	}

	msgs, err := f.Collect(ctx, want, quiet)
	if err != nil {
		return nil, err
	}
	return messageOutputs(msgs, f.Funds()), nil
}

func messageOutputs(msgs []wire.Message, funds uint32) map[string]any {
	maps := make([]map[string]any, 0, len(msgs))
	keys := make([]string, 0, len(msgs))
	var refunded uint32

	outputs := map[string]any{}
	for _, msg := range msgs {
		m := messageToMap(msg)
		maps = append(maps, m)
		keys = append(keys, msg.Key.String())

		switch msg.Key {
		case wire.KeyRefund:
			if c, ok := m[FieldCents].(uint32); ok {
				refunded += c
			}
		case wire.KeyOrder:
			outputs[KeyOrder] = m
		case wire.KeyReceipt:
			outputs[KeyReceipt] = m
		}
	}

	outputs[engine.KeyMessages] = maps
	outputs[engine.KeyMessageKeys] = keys
	outputs[engine.KeyMessageCount] = len(msgs)
	outputs[engine.KeyValue] = funds
	outputs[KeyFunds] = funds
	outputs[KeyRefunded] = refunded
	return outputs
}

// messageToMap flattens a message into the map form scenarios match against.
func messageToMap(msg wire.Message) map[string]any {
	m := map[string]any{
		FieldKey:  msg.Key.String(),
		FieldSize: msg.ValueSize(),
	}

	payload, err := msg.Payload()
	if err != nil {
		m["raw"] = hex.EncodeToString(msg.Value)
		return m
	}
	switch p := payload.(type) {
	case uint32:
		m[FieldCents] = p
	case wire.Order:
		m["small"] = p.Small
		m["medium"] = p.Medium
		m["large"] = p.Large
	case wire.Receipt:
		m["small_subtotal"] = p.SmallSubtotal
		m["medium_subtotal"] = p.MediumSubtotal
		m["large_subtotal"] = p.LargeSubtotal
		m["total"] = p.Total
		m["refund"] = p.Refund
	}
	return m
}

// paramInt extracts an int parameter, handling the numeric types YAML v3
// may produce. Returns defaultVal if the key is missing or not numeric.
func paramInt(params map[string]any, key string, defaultVal int) int {
	if f, ok := engine.ToFloat64(params[key]); ok {
		return int(f)
	}
	return defaultVal
}

// paramFloat extracts a float64 parameter. Returns defaultVal if the key is
// missing or not numeric.
func paramFloat(params map[string]any, key string, defaultVal float64) float64 {
	if f, ok := engine.ToFloat64(params[key]); ok {
		return f
	}
	return defaultVal
}

func paramBool(params map[string]any, key string) bool {
	b, _ := params[key].(bool)
	return b
}
