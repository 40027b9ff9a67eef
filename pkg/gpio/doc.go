// Package gpio simulates the digital input pins wired to the vending
// machine's buttons.
//
// A Pin tracks a Level and notifies listeners about every level change.
// A transition from high to low is additionally reported as a press and
// release. Hold and Press drive a pin high for a duration and lower it again,
// unless a newer press has started in the meantime.
//
// Consumers that must not drive a pin receive a View, which exposes only
// observation and listener registration.
package gpio
