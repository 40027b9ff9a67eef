// Command vend-log inspects capture files written with -protocol-log by
// vend-device and vend-test.
//
// Usage:
//
//	vend-log view   [selection] <file.vlog>
//	vend-log stats  [selection] <file.vlog>
//	vend-log export [-format jsonl|csv] [-o out] [selection] <file.vlog>
//	vend-log filter -o out.vlog [selection] <file.vlog>
//
// Every command accepts the same selection flags: -machine-id, -key,
// -layer, -direction, -category, -since and -until.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/vendsim/vendsim-go/cmd/vend-log/commands"
)

type command struct {
	summary string
	run     func(fs *flag.FlagSet, args []string, stdout io.Writer) error
}

var commandSet = map[string]command{
	"view":   {"print events in readable form", runView},
	"stats":  {"summarize events per machine and key", runStats},
	"export": {"write events as jsonl or csv", runExport},
	"filter": {"copy selected events into a new capture file", runFilter},
}

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "-help" {
		printUsage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmd, ok := commandSet[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "vend-log: unknown command %q\n", args[0])
		printUsage(stderr)
		return 2
	}

	fs := flag.NewFlagSet("vend-log "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	err := cmd.run(fs, args[1:], stdout)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "vend-log %s: %v\n", args[0], err)
		fs.Usage()
		return 2
	default:
		fmt.Fprintf(stderr, "vend-log %s: %v\n", args[0], err)
		return 1
	}
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commandSet))
	for name := range commandSet {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: vend-log <command> [flags] <file.vlog>\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-7s %s\n", name, commandSet[name].summary)
	}
	fmt.Fprint(w, b.String())
}

// parse registers the selection flags, parses args and returns the capture
// file path.
func parse(fs *flag.FlagSet, args []string, sel *commands.Selection) (string, error) {
	sel.Register(fs)
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%w: expected one capture file", errUsage)
	}
	return fs.Arg(0), nil
}

func runView(fs *flag.FlagSet, args []string, stdout io.Writer) error {
	var sel commands.Selection
	path, err := parse(fs, args, &sel)
	if err != nil {
		return err
	}
	return commands.RunView(path, sel, stdout)
}

func runStats(fs *flag.FlagSet, args []string, stdout io.Writer) error {
	var sel commands.Selection
	path, err := parse(fs, args, &sel)
	if err != nil {
		return err
	}
	return commands.RunStats(path, sel, stdout)
}

func runExport(fs *flag.FlagSet, args []string, stdout io.Writer) error {
	var sel commands.Selection
	format := fs.String("format", "jsonl", "output format: jsonl, csv")
	output := fs.String("o", "", "output file (default stdout)")
	path, err := parse(fs, args, &sel)
	if err != nil {
		return err
	}
	if *output == "" {
		return commands.RunExport(path, *format, sel, stdout)
	}

	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	if err := commands.RunExport(path, *format, sel, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runFilter(fs *flag.FlagSet, args []string, stdout io.Writer) error {
	var sel commands.Selection
	output := fs.String("o", "", "output capture file (required)")
	path, err := parse(fs, args, &sel)
	if err != nil {
		return err
	}
	if *output == "" {
		return fmt.Errorf("%w: -o is required", errUsage)
	}
	n, err := commands.RunFilter(path, *output, sel)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d events written to %s\n", n, *output)
	return nil
}
