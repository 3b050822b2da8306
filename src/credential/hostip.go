package credential

import (
	"net"
)

// HostAddress returns the host's outbound IP address, found by opening a UDP
// socket towards a non-routable address. No packet is sent. Loopback is
// returned when the host has no route.
func HostAddress() string {
	conn, err := net.Dial("udp", "10.255.255.255:1")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
