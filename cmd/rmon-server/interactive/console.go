// Package interactive provides the operator console for rmon-server.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"

	"github.com/rmon-protocol/rmon-go/pkg/service"
	"github.com/rmon-protocol/rmon-go/pkg/session"
	"github.com/rmon-protocol/rmon-go/pkg/statuspage"
)

// Server is the part of the service the console drives.
type Server interface {
	Sessions() []session.Info
	Kick(id string) error
	Status() statuspage.Status
	Listeners() []service.ListenerInfo
}

// Console handles interactive mode for rmon-server.
type Console struct {
	srv Server
	rl  *readline.Instance
	now func() time.Time
}

// New creates a console reading from the terminal. The console is created
// before the server so that logs and reports can be routed through
// Stdout; Attach must be called before Run.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rmon> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("sessions"),
			readline.PcItem("kick"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, now: time.Now}, nil
}

// Attach sets the server the console drives.
func (c *Console) Attach(srv Server) {
	c.srv = srv
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

// Run reads commands until quit, EOF or ctx is done. cancel is called
// when the operator quits.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	out := c.rl.Stdout()
	printHelp(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}

		if quit := c.Execute(out, line); quit {
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the console should exit.
func (c *Console) Execute(out io.Writer, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		printHelp(out)

	case "sessions", "s", "ls":
		c.cmdSessions(out)

	case "kick", "k":
		c.cmdKick(out, args)

	case "status", "st":
		c.cmdStatus(out)

	case "quit", "exit", "q":
		fmt.Fprintln(out, "Exiting...")
		return true

	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `
Commands:
  sessions, s     List active sessions
  kick <id>       Close a session (id as shown by 'sessions')
  status, st      Show listeners and uptime
  help, ?         Show this help
  quit, q         Stop the server
`)
}

func (c *Console) cmdSessions(out io.Writer) {
	sessions := c.srv.Sessions()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No active sessions.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tSTATE\tDEVICE\tCOMMANDS\tLAST\tCONNECTED")
	for _, s := range sessions {
		device := s.DeviceID
		if device == "" {
			device = "-"
		}
		last := s.LastCommand
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Mode, s.State, device, s.Commands, last,
			humanize.RelTime(s.ConnectedAt, c.now(), "ago", "from now"))
	}
	tw.Flush()
	fmt.Fprintf(out, "%d session(s)\n", len(sessions))
}

func (c *Console) cmdKick(out io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: kick <session-id>")
		return
	}
	if err := c.srv.Kick(args[0]); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Session %s closed.\n", args[0])
}

func (c *Console) cmdStatus(out io.Writer) {
	st := c.srv.Status()
	fmt.Fprintf(out, "Server address:  %s:%d\n", st.ServerIP, st.ServerPort)
	if !st.Started.IsZero() {
		fmt.Fprintf(out, "Uptime:          %s\n", st.Uptime().Truncate(time.Second))
	}
	if st.TLSFingerprint != "" {
		fmt.Fprintf(out, "TLS fingerprint: %s\n", st.TLSFingerprint)
	}
	fmt.Fprintf(out, "Active sessions: %d\n", st.ActiveSessions)
	fmt.Fprintln(out, "Listeners:")
	for _, l := range c.srv.Listeners() {
		tls := ""
		if l.TLS {
			tls = " (TLS)"
		}
		fmt.Fprintf(out, "  %-5s %s%s\n", l.Mode, l.Addr, tls)
	}
}
