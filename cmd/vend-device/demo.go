package main

import (
	"context"
	"log/slog"
	"time"
)

// demoStep is one scripted interaction.
type demoStep struct {
	what string
	do   func(ctx context.Context, r *Rig) error
}

func press(button string) func(context.Context, *Rig) error {
	return func(ctx context.Context, r *Rig) error { return r.Press(ctx, button) }
}

func deposit(cents uint32) func(context.Context, *Rig) error {
	return func(_ context.Context, r *Rig) error {
		r.Deposit(cents)
		return nil
	}
}

// demoScript walks through an order that is first short of funds, then
// dispensed, then a second order that is cancelled by a long hold.
func demoScript(cancelHold time.Duration) []demoStep {
	return []demoStep{
		{"order one small", press("small")},
		{"order one large", press("large")},
		{"dispense without funds", press("dispense")},
		{"deposit $2.00", deposit(200)},
		{"deposit $2.00", deposit(200)},
		{"deposit $0.25", deposit(25)},
		{"dispense", press("dispense")},
		{"order one medium", press("medium")},
		{"deposit $1.00", deposit(100)},
		{"hold dispense to cancel", func(ctx context.Context, r *Rig) error {
			return r.Hold(ctx, "dispense", cancelHold+100*time.Millisecond)
		}},
	}
}

// runDemo plays the script, pausing between steps so output stays readable.
func runDemo(ctx context.Context, r *Rig, steps []demoStep, pause time.Duration, logger *slog.Logger) error {
	for i, s := range steps {
		logger.Info("demo step", "n", i+1, "action", s.what)
		if err := s.do(ctx, r); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	st := r.State()
	logger.Info("demo finished", "funds", st.Funds, "small", st.Order.Small, "medium", st.Order.Medium, "large", st.Order.Large)
	return nil
}
