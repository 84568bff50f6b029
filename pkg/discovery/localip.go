package discovery

import (
	"net"
)

// FallbackIP is reported when no outbound route exists.
const FallbackIP = "127.0.0.1"

// probeAddr is never contacted; dialing UDP only selects a route.
const probeAddr = "8.8.8.8:80"

// LocalIP returns the local address used for outbound traffic, or
// FallbackIP when it cannot be determined.
func LocalIP() string {
	return localIPVia(probeAddr)
}

func localIPVia(addr string) string {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return FallbackIP
	}
	defer conn.Close()

	udp, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || udp.IP.IsUnspecified() {
		return FallbackIP
	}
	return udp.IP.String()
}
