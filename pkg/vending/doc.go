// Package vending implements the simulated coffee vending machine.
//
// A Machine observes four input pins (small, medium, large and a combined
// dispense/cancel button) and an inbound serial stream. It keeps an order of
// up to MaxItems cups and the funds deposited through addValue frames, and
// reports every change as frames on its outbound serial port:
//
//	button press          -> order
//	addValue              -> curFunds
//	short dispense press  -> insFunds | receipt, refund, curFunds, order
//	long dispense hold    -> cancel, refund, curFunds, order
//
// A hold on the dispense/cancel pin longer than Config.CancelHold cancels the
// order; anything shorter dispenses it. The machine closes itself when its
// inbound stream ends.
package vending
