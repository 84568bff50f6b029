// Package discovery advertises the server's listeners over mDNS/DNS-SD and
// finds them from the client side.
//
// Each enabled listener is advertised as its own service type:
//
//	_rmon._tcp        pull mode (TLS stream)
//	_rmon-http._tcp   push mode (HTTP intake)
//	_rmon-echo._tcp   echo probe
//
// TXT records carry the protocol version (v), listener mode (mode) and
// whether TLS is required (tls=1).
//
// The package also detects the address the host uses for outbound
// traffic, which the status page reports as the server address.
package discovery
