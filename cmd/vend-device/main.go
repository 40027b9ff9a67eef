// Command vend-device runs a simulated coffee vending machine.
//
// The machine is wired to four fake buttons and an in-memory serial link.
// Everything it sends on the serial link is decoded and printed.
//
// Usage:
//
//	vend-device [flags]
//
// Flags:
//
//	-config string        Machine configuration file (YAML)
//	-id string            Machine ID (UUID generated if empty)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-interactive          Drive the machine from a command prompt
//	-demo                 Play a scripted order, then exit
//
// Examples:
//
//	# Drive the machine by hand
//	vend-device -interactive
//
//	# Watch a scripted order and keep a capture for vend-log
//	vend-device -demo -protocol-log demo.vlog
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vendsim/vendsim-go/cmd/vend-device/interactive"
	"github.com/vendsim/vendsim-go/pkg/gpio"
	vendlog "github.com/vendsim/vendsim-go/pkg/log"
	"github.com/vendsim/vendsim-go/pkg/transport"
	"github.com/vendsim/vendsim-go/pkg/vending"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// Config holds the command-line configuration.
type Config struct {
	ConfigFile  string
	MachineID   string
	LogLevel    string
	ProtocolLog string
	Interactive bool
	Demo        bool
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Machine configuration file (YAML)")
	flag.StringVar(&config.MachineID, "id", "", "Machine ID (UUID generated if empty)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.BoolVar(&config.Interactive, "interactive", false, "Drive the machine from a command prompt")
	flag.BoolVar(&config.Demo, "demo", false, "Play a scripted order, then exit")
}

func main() {
	flag.Parse()

	if config.Interactive && config.Demo {
		fmt.Fprintln(os.Stderr, "Error: -interactive and -demo are mutually exclusive")
		os.Exit(1)
	}

	level, err := parseLevel(config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	machineCfg, err := loadMachineConfig(config.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if config.MachineID != "" {
		machineCfg.ID = config.MachineID
	}

	var protocolLogger *vendlog.FileLogger
	if config.ProtocolLog != "" {
		protocolLogger, err = vendlog.NewFileLogger(config.ProtocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
			os.Exit(1)
		}
		defer protocolLogger.Close()
		// Only set logger when non-nil to avoid typed-nil interface issue.
		machineCfg.ProtocolLogger = protocolLogger
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The console must exist before the logger so log lines do not break
	// the prompt.
	var out io.Writer = os.Stdout
	var console *interactive.Console
	if config.Interactive {
		console, err = interactive.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		out = console.Stdout()
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	machineCfg.Logger = logger

	rig, err := NewRig(machineCfg, gpio.RealClock())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer rig.Close()

	logger.Info("vending machine started",
		"machine_id", rig.Machine().ID(),
		"prices", fmt.Sprintf("%d/%d/%d", machineCfg.Prices.Small, machineCfg.Prices.Medium, machineCfg.Prices.Large),
		"max_items", machineCfg.MaxItems,
		"cancel_hold", machineCfg.CancelHold)

	go printOutput(ctx, rig.Machine().SerialOut(), out, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	switch {
	case config.Demo:
		go func() {
			if err := runDemo(ctx, rig, demoScript(machineCfg.CancelHold), 300*time.Millisecond, logger); err != nil && ctx.Err() == nil {
				logger.Error("demo failed", "error", err)
			}
			cancel()
		}()
	case config.Interactive:
		go console.Run(ctx, cancel, rig)
	}

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	case <-rig.Machine().Done():
		logger.Info("machine stopped")
	}

	logger.Info("shutting down")
	cancel()
}

// printOutput decodes the machine's serial output and prints each message.
func printOutput(ctx context.Context, port *transport.Port, w io.Writer, logger *slog.Logger) {
	parser := transport.NewStreamParser()
	parser.SetSlog(logger)
	err := parser.Run(ctx, port.Subscribe(), func(msg wire.Message) {
		fmt.Fprintf(w, "<- %s\n", interactive.FormatMessage(msg))
	})
	if err != nil {
		logger.Error("serial output unreadable", "error", err)
	}
}

func loadMachineConfig(path string) (vending.Config, error) {
	if path == "" {
		return vending.DefaultConfig(), nil
	}
	return vending.LoadConfig(path)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
