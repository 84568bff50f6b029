// Package session implements the per-connection state machine.
//
// A pull session starts Unauthenticated. The server sends an
// auth_challenge and waits, with a timeout, for exactly one response.
// A correct response moves the session to AuthenticatedPull and starts the
// command loop; anything else sends auth_error and closes the session.
//
//	Unauthenticated ──ok──▶ AuthenticatedPull ──▶ Closed
//	       │                                        ▲
//	       └──────────────fail/timeout──────────────┘
//
// Each loop iteration sends the command menu, reads one selection, and for
// an executable command sends execute_command and reads exactly one
// result. The loop ends cleanly on "disconnect" or when the peer closes
// the stream between messages. Framing and I/O failures end the session;
// results that do not decode are logged and the loop continues.
//
// Push sessions have no handshake. They exist for the lifetime of one
// intake request so the Registry shows in-flight pushes.
package session
