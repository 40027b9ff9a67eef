// Command vend-test runs vending scenarios against a simulated machine.
//
// Each scenario gets a fresh machine wired to four fake buttons and a
// serial link. The built-in scenarios ship inside the binary; -tests points
// at a directory of YAML scenarios instead.
//
// Usage:
//
//	vend-test [flags] [id-pattern]
//
// Flags:
//
//	-tests string           Directory of YAML scenarios (default: built-in set)
//	-tags string            Run only scenarios with one of these tags (comma-separated)
//	-exclude-tags string    Skip scenarios with any of these tags (comma-separated)
//	-config string          Machine configuration file (YAML)
//	-timeout duration       Scenario timeout (default 10s)
//	-quiet duration         Silence that ends a step's output (default 30ms)
//	-format string          Output format: text, json, junit (default "text")
//	-broken                 Run against an inert device; every scenario should fail
//	-fail-fast              Stop after the first failing scenario
//	-verbose                Print every step
//	-protocol-log string    File path for protocol event logging (CBOR format)
//
// Examples:
//
//	# Run the built-in scenarios
//	vend-test
//
//	# Only the cancel scenarios, with step detail
//	vend-test -verbose "TC-CANCEL-*"
//
//	# Confirm the suite catches a device that never answers
//	vend-test -broken
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/vendsim/vendsim-go/internal/testharness/runner"
	vendlog "github.com/vendsim/vendsim-go/pkg/log"
	"github.com/vendsim/vendsim-go/pkg/vending"
)

var (
	tests       = flag.String("tests", "", "Directory of YAML scenarios (default: built-in set)")
	tags        = flag.String("tags", "", "Run only scenarios with one of these tags (comma-separated)")
	excludeTags = flag.String("exclude-tags", "", "Skip scenarios with any of these tags (comma-separated)")
	configFile  = flag.String("config", "", "Machine configuration file (YAML)")
	timeout     = flag.Duration("timeout", 10*time.Second, "Scenario timeout")
	quiet       = flag.Duration("quiet", 30*time.Millisecond, "Silence that ends a step's output")
	format      = flag.String("format", "text", "Output format: text, json, junit")
	broken      = flag.Bool("broken", false, "Run against an inert device; every scenario should fail")
	failFast    = flag.Bool("fail-fast", false, "Stop after the first failing scenario")
	verbose     = flag.Bool("verbose", false, "Print every step")
	protocolLog = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
)

func main() {
	flag.Parse()

	pattern := ""
	if flag.NArg() > 0 {
		pattern = flag.Arg(0)
	}

	machine := vending.DefaultConfig()
	if *configFile != "" {
		var err error
		machine, err = vending.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *format == "text" {
		log.SetFlags(log.Ltime)
		printBanner()
		if *tests != "" {
			log.Printf("Scenarios: %s", *tests)
		} else {
			log.Printf("Scenarios: built-in")
		}
		if pattern != "" {
			log.Printf("Pattern: %s", pattern)
		}
		if *broken {
			log.Printf("Device: inert (expect failures)")
		}
		log.Println()
	}

	var protocolLogger *vendlog.FileLogger
	if *protocolLog != "" {
		var err error
		protocolLogger, err = vendlog.NewFileLogger(*protocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
			os.Exit(1)
		}
		defer protocolLogger.Close()
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}

	config := runner.DefaultConfig()
	config.TestDir = *tests
	config.Pattern = pattern
	config.Tags = *tags
	config.ExcludeTags = *excludeTags
	config.Timeout = *timeout
	config.Quiet = *quiet
	config.StopOnFirstFailure = *failFast
	config.Broken = *broken
	config.Machine = machine
	config.Verbose = *verbose
	config.OutputFormat = *format
	config.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	// Only set logger when non-nil to avoid typed-nil interface issue.
	if protocolLogger != nil {
		config.ProtocolLogger = protocolLogger
	}

	r, err := runner.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := r.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if protocolLogger != nil {
		protocolLogger.Close()
		written, dropped := protocolLogger.Counts()
		fmt.Fprintf(os.Stderr, "Capture: %d events written to %s", written, protocolLogger.Path())
		if dropped > 0 {
			fmt.Fprintf(os.Stderr, " (%d dropped)", dropped)
		}
		fmt.Fprintln(os.Stderr)
	}

	if result.FailCount > 0 {
		os.Exit(1)
	}
}

func printBanner() {
	fmt.Print(`
__   __             _   _____         _
\ \ / /__ _ __   __| | |_   _|__  ___| |_
 \ V / _ \ '_ \ / _' |   | |/ _ \/ __| __|
  \_/\___|_| |_|\__,_|   |_|\___||___/\__|

Vending Machine Scenario Runner
`)
}
