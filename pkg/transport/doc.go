// Package transport provides the rmon stream transport.
//
// The transport layer handles:
//   - Plain TCP or TLS listeners for agent connections
//   - Newline-delimited JSON message framing
//   - Per-connection goroutines with an optional admission limit
//   - Read deadlines for handshake timeouts
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      JSON Objects              │
//	├────────────────────────────────┤
//	│   Newline Framing ('\n')       │
//	├────────────────────────────────┤
//	│     TLS (optional)             │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Framing
//
// Each message is exactly one JSON object followed by a single '\n'.
// Blank lines between messages are skipped. A line that is not a JSON
// object, a line longer than the configured maximum, or a partial line at
// end of stream is a framing error. Framing errors are not recoverable:
// the owner of the connection must close it.
package transport
