// Command rmon-log is a tool for viewing and analyzing rmon protocol capture files.
//
// Capture files are written by rmon-server when started with --protocol-log.
//
// Usage:
//
//	rmon-log <command> [flags] <file.rlog>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSONL or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View all events
//	rmon-log view capture.rlog
//
//	# View only decoded messages of pull sessions
//	rmon-log view --layer wire --mode pull capture.rlog
//
//	# Export push telemetry to CSV
//	rmon-log export --format csv --mode push -o push.csv capture.rlog
//
//	# Keep one connection in a new file
//	rmon-log filter --conn-id 6f1c2a3b-... -o one.rlog capture.rlog
//
//	# Show statistics
//	rmon-log stats capture.rlog
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/rmon-protocol/rmon-go/cmd/rmon-log/commands"
)

const usage = `rmon-log - rmon Protocol Capture Analyzer

Usage:
  rmon-log <command> [flags] <file.rlog>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSONL or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "rmon-log <command> --help" for more information about a command.
`

// errUsage reports a usage error that has already been printed.
var errUsage = errors.New("usage error")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 1
	}

	var err error
	switch cmd := args[0]; cmd {
	case "view":
		err = runView(args[1:], stdout, stderr)
	case "export":
		err = runExport(args[1:], stderr)
	case "filter":
		err = runFilter(args[1:], stdout, stderr)
	case "stats":
		err = runStats(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(stderr, usage)
		return 1
	}

	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 1
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// newFlagSet creates a flag set whose usage text names the command.
func newFlagSet(name, summary, argsUsage string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "rmon-log %s - %s\n\nUsage:\n  rmon-log %s %s\n\n", name, summary, name, argsUsage)
		if fs.HasFlags() {
			fmt.Fprintf(stderr, "Flags:\n%s", fs.FlagUsages())
		}
	}
	return fs
}

// addFilterFlags binds the shared event selection flags to opts.
func addFilterFlags(fs *pflag.FlagSet, opts *commands.FilterOptions) {
	fs.StringVar(&opts.ConnID, "conn-id", "", "filter by connection ID")
	fs.StringVar(&opts.Mode, "mode", "", "filter by listener mode (pull, push, echo)")
	fs.StringVar(&opts.DeviceID, "device-id", "", "filter by device ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "filter by layer (transport, wire, session)")
	fs.StringVar(&opts.Direction, "direction", "", "filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "filter by category (message, state, error)")
}

// logPath parses args and returns the single capture file argument.
func logPath(fs *pflag.FlagSet, args []string, stderr io.Writer) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: log file path required")
		fs.Usage()
		return "", errUsage
	}
	return fs.Arg(0), nil
}

func runView(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("view", "View capture file in human-readable format", "[flags] <file.rlog>", stderr)
	var opts commands.FilterOptions
	addFilterFlags(fs, &opts)

	path, err := logPath(fs, args, stderr)
	if err != nil {
		return err
	}
	return commands.RunView(path, opts, stdout)
}

func runExport(args []string, stderr io.Writer) error {
	fs := newFlagSet("export", "Export capture file to JSONL or CSV format", "[flags] <file.rlog>", stderr)
	format := fs.StringP("format", "f", "jsonl", "output format (jsonl, csv)")
	output := fs.StringP("output", "o", "", "output file (default: stdout)")
	var opts commands.FilterOptions
	addFilterFlags(fs, &opts)

	path, err := logPath(fs, args, stderr)
	if err != nil {
		return err
	}
	return commands.RunExport(path, *format, *output, opts)
}

func runFilter(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("filter", "Filter capture file and write to new file", "[flags] -o <out.rlog> <file.rlog>", stderr)
	output := fs.StringP("output", "o", "", "output file (required)")
	var opts commands.FilterOptions
	addFilterFlags(fs, &opts)

	path, err := logPath(fs, args, stderr)
	if err != nil {
		return err
	}
	if *output == "" {
		fmt.Fprintln(stderr, "Error: output file (-o) required")
		fs.Usage()
		return errUsage
	}
	return commands.RunFilter(path, *output, opts, stdout)
}

func runStats(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("stats", "Show statistics about the capture file", "<file.rlog>", stderr)

	path, err := logPath(fs, args, stderr)
	if err != nil {
		return err
	}
	return commands.RunStats(path, stdout)
}
