// Command rmon-probe checks connectivity to an rmon-server echo listener.
//
// Each message (or each stdin line) is sent to the listener and the
// acknowledgements are printed as they arrive.
//
// Usage:
//
//	rmon-probe [flags] [host:port]
//
// Examples:
//
//	# Send one message
//	rmon-probe --message hello 192.168.1.20:9000
//
//	# Find the listener over mDNS and send stdin line by line
//	rmon-probe --discover < lines.txt
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/rmon-protocol/rmon-go/pkg/discovery"
	"github.com/rmon-protocol/rmon-go/pkg/echo"
)

type options struct {
	messages []string
	discover bool
	iface    string
	timeout  time.Duration
	count    int
	interval time.Duration
	quiet    bool
	address  string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	address := opts.address
	if opts.discover {
		address, err = discoverEcho(ctx, opts, stderr)
		if err != nil {
			return err
		}
	}

	dialer := net.Dialer{Timeout: opts.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", address, err)
	}
	prober := echo.NewProber(conn)
	defer prober.Close()

	if !opts.quiet {
		fmt.Fprintf(stderr, "connected to %s\n", address)
	}

	send := func(payload []byte) error {
		sendCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		defer cancel()

		start := time.Now()
		acks, err := prober.Send(sendCtx, payload)
		for _, a := range acks {
			fmt.Fprintf(stdout, "[%s] received: %d bytes\n", a.Clock, a.Bytes)
		}
		if err != nil {
			return err
		}
		if !opts.quiet {
			fmt.Fprintf(stderr, "  %d bytes acknowledged in %s\n", len(payload), time.Since(start).Round(time.Microsecond))
		}
		return nil
	}

	if len(opts.messages) > 0 {
		for i := 0; i < opts.count; i++ {
			if i > 0 && opts.interval > 0 {
				select {
				case <-time.After(opts.interval):
				case <-ctx.Done():
					return nil
				}
			}
			for _, msg := range opts.messages {
				if err := send([]byte(msg + "\n")); err != nil {
					return err
				}
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, echo.ChunkSize), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if err := send(append(scanner.Bytes(), '\n')); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := pflag.NewFlagSet("rmon-probe", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "rmon-probe - connectivity probe for the rmon echo listener\n\nUsage:\n  rmon-probe [flags] [host:port]\n\nFlags:\n%s", fs.FlagUsages())
	}
	fs.StringArrayVarP(&opts.messages, "message", "m", nil, "message to send (repeatable; default: read stdin lines)")
	fs.BoolVarP(&opts.discover, "discover", "d", false, "find the echo listener via mDNS")
	fs.StringVar(&opts.iface, "interface", "", "network interface for mDNS discovery")
	fs.DurationVarP(&opts.timeout, "timeout", "t", 5*time.Second, "dial, discovery and per-message timeout")
	fs.IntVarP(&opts.count, "count", "c", 1, "times to send the messages")
	fs.DurationVar(&opts.interval, "interval", time.Second, "pause between rounds when --count > 1")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "print acknowledgements only")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch {
	case opts.discover && fs.NArg() > 0:
		return opts, errors.New("address and --discover are mutually exclusive")
	case !opts.discover && fs.NArg() != 1:
		fs.Usage()
		return opts, errors.New("listener address required")
	case fs.NArg() == 1:
		opts.address = fs.Arg(0)
		if _, _, err := net.SplitHostPort(opts.address); err != nil {
			return opts, fmt.Errorf("invalid address %q: %w", opts.address, err)
		}
	}
	if opts.count < 1 {
		return opts, fmt.Errorf("invalid --count %d", opts.count)
	}
	if opts.timeout <= 0 {
		return opts, fmt.Errorf("invalid --timeout %s", opts.timeout)
	}
	return opts, nil
}

func discoverEcho(ctx context.Context, opts options, stderr io.Writer) (string, error) {
	findCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: opts.iface})
	svc, err := browser.FindFirst(findCtx, discovery.ModeEcho)
	if err != nil {
		return "", err
	}
	if len(svc.Addresses) == 0 {
		return "", fmt.Errorf("%w: %s has no addresses", discovery.ErrNotFound, svc.InstanceName)
	}
	if !opts.quiet {
		fmt.Fprintf(stderr, "found %s (%s)\n", svc.InstanceName, svc.Host)
	}
	return net.JoinHostPort(svc.Addresses[0], strconv.Itoa(svc.Port)), nil
}
