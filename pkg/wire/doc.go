// Package wire defines the JSON wire format types for the rmon protocol.
//
// Every message is a single JSON object. On stream connections (pull mode)
// objects are newline-delimited; on the HTTP intake (push mode) each request
// and response body carries exactly one object.
//
// # Message Types
//
// Stream messages carry a "type" discriminator:
//   - auth_challenge, auth_success, auth_error: handshake (server to agent)
//   - command_menu, execute_command: command loop (server to agent)
//
// Agent replies (auth response, selection, result) are untyped objects whose
// shape is implied by the protocol step.
//
// # Field Names
//
// Field names are fixed by deployed agents and must not change. In particular
// the challenge timestamp is a decimal string while every other timestamp is
// an integer number of seconds.
package wire
