// Package auth implements the shared-secret challenge handshake.
//
// The server issues a challenge derived from the secret and the current
// Unix time:
//
//	challenge = hex(sha256(secret + unixSeconds))
//
// The agent proves knowledge of the secret by answering with:
//
//	response = hex(sha256(challenge + secret))
//
// Every Challenge can be verified exactly once. A second Verify on the
// same Challenge fails even when the first attempt failed, so a peer gets
// one attempt per handshake. The secret itself never appears on the wire.
package auth
