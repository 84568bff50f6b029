// Package cert manages the self-signed TLS identity of the pull listener.
//
// A server started without an operator-provided certificate can create its
// own P-256 identity on first start. The identity is persisted as PEM files
// in a directory and reused on later starts until it enters the renewal
// window, when a fresh one is generated. Agents pin the identity by its
// SHA-256 fingerprint.
package cert
