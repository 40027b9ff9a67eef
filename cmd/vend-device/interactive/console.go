// Package interactive provides the interactive command-line interface
// for the simulated vending machine.
package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/vendsim/vendsim-go/pkg/vending"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// Panel is the front of the machine the console drives.
type Panel interface {
	Press(ctx context.Context, button string) error
	Hold(ctx context.Context, button string, d time.Duration) error
	Deposit(cents uint32)
	Send(k wire.Key, value []byte) error
	SendRaw(b []byte)
	State() vending.State
}

// Console handles interactive mode for vend-device.
type Console struct {
	rl *readline.Instance
}

// New creates a console with a readline prompt. It can be created before the
// machine so that log output already goes through Stdout.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "vend> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("press",
				readline.PcItem("small"), readline.PcItem("medium"),
				readline.PcItem("large"), readline.PcItem("dispense")),
			readline.PcItem("hold", readline.PcItem("dispense")),
			readline.PcItem("deposit"),
			readline.PcItem("send",
				readline.PcItem("addValue"), readline.PcItem("curFunds"),
				readline.PcItem("order"), readline.PcItem("insFunds"),
				readline.PcItem("receipt"), readline.PcItem("cancel"),
				readline.PcItem("refund")),
			readline.PcItem("raw"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop against panel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc, panel Panel) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		if quit := Execute(ctx, panel, line, c.rl.Stdout()); quit {
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), helpText)
}

const helpText = `
Vending Machine Commands:
  Buttons:
    press <button>          - Press and release small, medium, large, or dispense
    hold <button> <ms>      - Hold a button for ms milliseconds

  Serial:
    deposit <cents>...      - Send one addValue frame per amount
    send <key> [hex]        - Send a frame; value defaults to zeros
    raw <hex>               - Send raw bytes without framing

  Other:
    status                  - Show the current order and funds
    help                    - Show this help
    quit                    - Exit`

// Execute runs one console command line against the panel and reports
// whether the user asked to quit.
func Execute(ctx context.Context, p Panel, line string, w io.Writer) (quit bool) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		fmt.Fprintln(w, helpText)
	case "press", "p":
		err = cmdPress(ctx, p, args)
	case "hold", "h":
		err = cmdHold(ctx, p, args)
	case "deposit", "d":
		err = cmdDeposit(p, args)
	case "send":
		err = cmdSend(p, args)
	case "raw":
		err = cmdRaw(p, args)
	case "status", "s":
		printStatus(w, p.State())
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(w, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return false
}

func cmdPress(ctx context.Context, p Panel, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: press <button>")
	}
	return p.Press(ctx, args[0])
}

func cmdHold(ctx context.Context, p Panel, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: hold <button> <ms>")
	}
	ms, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", args[1], err)
	}
	return p.Hold(ctx, args[0], time.Duration(ms)*time.Millisecond)
}

func cmdDeposit(p Panel, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: deposit <cents>...")
	}
	amounts := make([]uint32, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", a, err)
		}
		amounts = append(amounts, uint32(v))
	}
	for _, v := range amounts {
		p.Deposit(v)
	}
	return nil
}

func cmdSend(p Panel, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("usage: send <key> [hex]")
	}
	k, ok := wire.KeyFromString(args[0])
	if !ok {
		return fmt.Errorf("unknown key %q", args[0])
	}
	var value []byte
	if len(args) == 2 {
		var err error
		if value, err = hex.DecodeString(args[1]); err != nil {
			return fmt.Errorf("invalid hex value: %w", err)
		}
	}
	return p.Send(k, value)
}

func cmdRaw(p Panel, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: raw <hex>")
	}
	b, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	p.SendRaw(b)
	return nil
}

func printStatus(w io.Writer, st vending.State) {
	fmt.Fprintf(w, "Order:  small=%d medium=%d large=%d\n", st.Order.Small, st.Order.Medium, st.Order.Large)
	fmt.Fprintf(w, "Funds:  %s\n", FormatCents(st.Funds))
}

// FormatCents renders an amount as dollars.
func FormatCents(c uint32) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}

// FormatMessage renders a message from the machine for display.
func FormatMessage(msg wire.Message) string {
	payload, err := msg.Payload()
	if err != nil {
		return fmt.Sprintf("%s <%s>", msg.Key, hex.EncodeToString(msg.Value))
	}
	switch v := payload.(type) {
	case uint32:
		return fmt.Sprintf("%s %s", msg.Key, FormatCents(v))
	case wire.Order:
		return fmt.Sprintf("%s small=%d medium=%d large=%d", msg.Key, v.Small, v.Medium, v.Large)
	case wire.Receipt:
		return fmt.Sprintf("%s small=%s medium=%s large=%s total=%s refund=%s", msg.Key,
			FormatCents(v.SmallSubtotal), FormatCents(v.MediumSubtotal), FormatCents(v.LargeSubtotal),
			FormatCents(v.Total), FormatCents(v.Refund))
	default:
		return msg.Key.String()
	}
}
