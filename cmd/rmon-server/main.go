// Command rmon-server runs the remote monitor control endpoint.
//
// It serves up to three listeners:
//   - pull: authenticated command sessions over TLS (or plain TCP)
//   - push: HTTP telemetry intake with a status page
//   - echo: connectivity probe that acknowledges every chunk it receives
//
// Usage:
//
//	rmon-server [flags]
//
// Examples:
//
//	# Pull and push listeners with a secret file and TLS
//	rmon-server --secret-file /etc/rmon/secret --tls-cert server.pem --tls-key server.key
//
//	# Push intake only, with an echo probe on port 9000
//	rmon-server --pull-addr "" --echo-addr :9000
//
//	# TLS with a generated identity kept in ./identity
//	rmon-server --secret-file /etc/rmon/secret --tls-self-signed
//
//	# Configuration file plus interactive console
//	rmon-server --config /etc/rmon/server.yaml --interactive
//
//	# Capture protocol events for rmon-log
//	rmon-server --config server.toml --protocol-log capture.rlog
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/rmon-protocol/rmon-go/cmd/rmon-server/interactive"
	"github.com/rmon-protocol/rmon-go/pkg/config"
	"github.com/rmon-protocol/rmon-go/pkg/discovery"
	"github.com/rmon-protocol/rmon-go/pkg/log"
	"github.com/rmon-protocol/rmon-go/pkg/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("rmon-server", pflag.ContinueOnError)
	config.AddFlags(flagSet)
	interactiveMode := flagSet.BoolP("interactive", "i", false, "run the operator console")
	traceProtocol := flagSet.Bool("trace-protocol", false, "log protocol events at debug level")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	if *showVersion {
		fmt.Printf("rmon-server %s (protocol %s)\n", version, discovery.ProtocolVersion)
		return nil
	}

	cfg, err := config.FromFlags(flagSet)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var console *interactive.Console
	var stdout, stderr io.Writer = os.Stdout, os.Stderr
	if *interactiveMode {
		console, err = interactive.New()
		if err != nil {
			return err
		}
		stdout, stderr = console.Stdout(), console.Stderr()
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts := service.Options{
		Output: stdout,
		Logger: logger,
	}
	if *traceProtocol {
		opts.ProtocolLogger = log.NewSlogAdapter(logger)
	}

	svc, err := service.New(cfg, opts)
	if err != nil {
		return err
	}
	svc.OnEvent(func(e service.Event) {
		switch e.Type {
		case service.EventConnected:
			logger.Debug("connection accepted", "mode", e.Mode, "remote", e.Addr, "conn", e.ConnID)
		case service.EventDisconnected:
			logger.Debug("connection closed", "mode", e.Mode, "remote", e.Addr, "conn", e.ConnID)
		}
	})

	if err := svc.Start(ctx); err != nil {
		return err
	}

	st := svc.Status()
	logger.Info("rmon-server running", "server_ip", st.ServerIP, "port", st.ServerPort)

	if console != nil {
		console.Attach(svc)
		go console.Run(ctx, cancel)
	}

	<-ctx.Done()
	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `rmon-server - remote monitor control endpoint

Usage:
  rmon-server [flags]

Listeners are enabled by a non-empty address. The pull listener requires
--secret or --secret-file.

Flags:
%s`, flagSet.FlagUsages())
}
