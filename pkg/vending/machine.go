package vending

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vendsim/vendsim-go/pkg/gpio"
	"github.com/vendsim/vendsim-go/pkg/log"
	"github.com/vendsim/vendsim-go/pkg/transport"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// Machine is a running vending machine.
type Machine struct {
	id     string
	config Config
	denoms map[uint32]struct{}
	inputs Inputs

	out    *transport.Port
	writer *transport.FrameWriter
	parser *transport.StreamParser

	logger         *slog.Logger
	protocolLogger log.Logger

	mu     sync.Mutex
	order  [3]uint32
	funds  uint32
	regs   []*gpio.Registration
	closed bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New wires a machine to its inputs and starts consuming inbound frames.
func New(inputs Inputs, config Config) (*Machine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := inputs.validate(); err != nil {
		return nil, err
	}

	id := config.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &Machine{
		id:             id,
		config:         config,
		denoms:         make(map[uint32]struct{}, len(config.Denominations)),
		inputs:         inputs,
		out:            transport.NewPort(),
		logger:         logger,
		protocolLogger: log.OrNoop(config.ProtocolLogger),
		done:           make(chan struct{}),
	}
	for _, d := range config.Denominations {
		m.denoms[d] = struct{}{}
	}

	m.writer = transport.NewFrameWriter(m.out)
	m.writer.SetLogger(config.ProtocolLogger, id)
	m.parser = transport.NewStreamParser()
	m.parser.SetLogger(config.ProtocolLogger, id)
	m.parser.SetSlog(logger)

	buttons := []gpio.View{inputs.Small, inputs.Medium, inputs.Large}
	for i, btn := range buttons {
		size := Sizes[i]
		m.regs = append(m.regs, btn.OnPressRelease(func(c gpio.Change) {
			m.logInput(c)
			m.addToOrder(size)
		}))
	}
	m.regs = append(m.regs, inputs.DispenseCancel.OnPressRelease(func(c gpio.Change) {
		m.logInput(c)
		if c.Elapsed > m.config.CancelHold {
			m.cancelOrder()
		} else {
			m.dispenseOrder()
		}
	}))

	m.logger.Debug("vending machine started", "machine_id", id)
	m.logState(log.StateEntityMachine, "", "RUNNING", "start")

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)

	return m, nil
}

// run parses the inbound stream until it ends, then closes the machine.
func (m *Machine) run(ctx context.Context) {
	defer close(m.done)
	defer m.Close()

	if err := m.parser.Run(ctx, m.inputs.SerialIn, m.handleMessage); err != nil {
		m.logger.Error("serial input parsing failed", "machine_id", m.id, "error", err)
	}
}

// ID returns the machine identifier.
func (m *Machine) ID() string {
	return m.id
}

// SerialOut returns the outbound line. Subscribe before driving inputs;
// frames pushed earlier are not replayed.
func (m *Machine) SerialOut() *transport.Port {
	return m.out
}

// Done returns a channel closed once the machine has stopped parsing input.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// IsClosed reports whether Close has been called.
func (m *Machine) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close stops the machine: it unregisters its button listeners, closes its
// serial input subscription and destroys its serial output.
// Close is idempotent.
func (m *Machine) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	regs := m.regs
	m.regs = nil
	m.mu.Unlock()

	for _, r := range regs {
		r.Remove()
	}
	// Already closed sources return nil.
	_ = m.inputs.SerialIn.Close()
	m.out.Destroy()
	m.cancel()

	m.logger.Debug("vending machine stopped", "machine_id", m.id)
	m.logState(log.StateEntityMachine, "RUNNING", "CLOSED", "close")
	return nil
}

// Snapshot returns the current order and funds.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{Order: m.orderLocked(), Funds: m.funds}
}

// Subtotals returns the order cost per cup size.
func (m *Machine) Subtotals() [3]uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subtotalsLocked()
}

// OrderTotal returns the total cost of the order.
func (m *Machine) OrderTotal() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalLocked()
}

// Refund returns the change due if the order were dispensed now.
func (m *Machine) Refund() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refundLocked()
}

func (m *Machine) orderLocked() wire.Order {
	return wire.Order{Small: m.order[0], Medium: m.order[1], Large: m.order[2]}
}

func (m *Machine) subtotalsLocked() [3]uint32 {
	var sub [3]uint32
	for i, size := range Sizes {
		sub[i] = m.config.Prices.Of(size) * m.order[i]
	}
	return sub
}

func (m *Machine) totalLocked() uint32 {
	var total uint32
	for _, s := range m.subtotalsLocked() {
		total += s
	}
	return total
}

func (m *Machine) refundLocked() uint32 {
	total := m.totalLocked()
	if m.funds <= total {
		return 0
	}
	return m.funds - total
}

func (m *Machine) itemsLocked() uint32 {
	return m.order[0] + m.order[1] + m.order[2]
}

// addToOrder adds one cup unless the order is full. The order frame is sent
// either way.
func (m *Machine) addToOrder(size Size) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	old := m.orderLocked()
	if m.itemsLocked() < m.config.MaxItems {
		m.order[size]++
		m.logState(log.StateEntityOrder, formatOrder(old), formatOrder(m.orderLocked()), "add "+size.String())
	} else {
		m.logger.Debug("order full", "machine_id", m.id, "size", size)
	}

	m.emit(wire.KeyOrder, m.orderLocked().Encode())
}

// handleMessage acts on inbound frames. Only addValue has an effect.
func (m *Machine) handleMessage(msg wire.Message) {
	if msg.Key != wire.KeyAddValue {
		return
	}
	m.addFunds(depositAmount(msg.Value))
}

// depositAmount reads the little-endian amount from an addValue value.
// Short values are zero-extended; extra bytes are ignored.
func depositAmount(value []byte) uint32 {
	var amount uint32
	for i := 0; i < len(value) && i < 4; i++ {
		amount |= uint32(value[i]) << (8 * i)
	}
	return amount
}

// addFunds accepts amount if it is a known denomination. The curFunds frame
// is sent either way.
func (m *Machine) addFunds(amount uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	_, valid := m.denoms[amount]
	if valid && m.funds+amount > m.funds {
		old := m.funds
		m.funds += amount
		m.logState(log.StateEntityFunds, fmt.Sprint(old), fmt.Sprint(m.funds), "deposit")
	} else {
		m.logger.Debug("deposit rejected", "machine_id", m.id, "amount", amount)
	}

	m.emit(wire.KeyCurFunds, wire.EncodeUint32(m.funds))
}

// dispenseOrder sends insFunds if the funds do not cover the order, and
// otherwise settles the order with a receipt.
func (m *Machine) dispenseOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	total := m.totalLocked()
	if m.funds < total {
		m.logger.Debug("insufficient funds", "machine_id", m.id, "funds", m.funds, "total", total)
		m.emit(wire.KeyInsFunds, nil)
		return
	}

	sub := m.subtotalsLocked()
	refund := m.refundLocked()
	m.emit(wire.KeyReceipt, wire.Receipt{
		SmallSubtotal:  sub[0],
		MediumSubtotal: sub[1],
		LargeSubtotal:  sub[2],
		Total:          total,
		Refund:         refund,
	}.Encode())
	m.emit(wire.KeyRefund, wire.EncodeUint32(refund))
	m.settleLocked("dispense")
}

// cancelOrder drops the order and refunds everything deposited.
func (m *Machine) cancelOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.emit(wire.KeyCancel, nil)
	m.emit(wire.KeyRefund, wire.EncodeUint32(m.funds))
	m.settleLocked("cancel")
}

// settleLocked resets the accounting and reports the new state.
func (m *Machine) settleLocked(reason string) {
	oldOrder, oldFunds := m.orderLocked(), m.funds
	m.order = [3]uint32{}
	m.funds = 0

	m.logState(log.StateEntityOrder, formatOrder(oldOrder), formatOrder(m.orderLocked()), reason)
	m.logState(log.StateEntityFunds, fmt.Sprint(oldFunds), "0", reason)

	m.emit(wire.KeyCurFunds, wire.EncodeUint32(m.funds))
	m.emit(wire.KeyOrder, m.orderLocked().Encode())
}

// emit writes one frame to the outbound line. Must hold m.mu.
func (m *Machine) emit(k wire.Key, value []byte) {
	if err := m.writer.WriteMessage(k, value); err != nil {
		m.logger.Debug("failed to send frame", "machine_id", m.id, "key", k, "error", err)
	}
}

func (m *Machine) logState(entity log.StateEntity, oldState, newState, reason string) {
	m.protocolLogger.Log(log.Event{
		Timestamp: time.Now(),
		MachineID: m.id,
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (m *Machine) logInput(c gpio.Change) {
	m.protocolLogger.Log(log.Event{
		Timestamp: c.At,
		MachineID: m.id,
		Direction: log.DirectionIn,
		Layer:     log.LayerGPIO,
		Category:  log.CategoryInput,
		Input: &log.InputEvent{
			Pin:          c.Pin,
			Level:        c.Level.String(),
			Elapsed:      c.Elapsed,
			First:        c.First,
			PressRelease: c.PressRelease(),
		},
	})
}

func formatOrder(o wire.Order) string {
	return fmt.Sprintf("%d/%d/%d", o.Small, o.Medium, o.Large)
}
