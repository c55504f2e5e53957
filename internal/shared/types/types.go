package types

import (
	"fmt"
	"net/netip"
	"strconv"
)

// Endpoint 是一个 IPv4 地址加端口的组合。
// 探针里有两个实例：配置的目标端点，以及连接后由内核分配的本地临时端点。
type Endpoint struct {
	IP   netip.Addr `json:"ip" yaml:"ip"`
	Port uint16     `json:"port" yaml:"port"`
}

// ParseEndpoint converts a textual IPv4 literal and a port into an Endpoint.
// Hostnames and IPv6 literals are rejected.
func ParseEndpoint(host string, port int) (Endpoint, error) {
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid address %q: %w", host, err)
	}
	if !ip.Is4() {
		return Endpoint{}, fmt.Errorf("address %q is not supported: only IPv4 literals are accepted", host)
	}
	if port <= 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("invalid port %d", port)
	}
	return Endpoint{IP: ip, Port: uint16(port)}, nil
}

// EndpointFrom4 builds an Endpoint from raw sockaddr_in parts.
func EndpointFrom4(addr [4]byte, port int) Endpoint {
	return Endpoint{IP: netip.AddrFrom4(addr), Port: uint16(port)}
}

// IsUnspecified reports whether the endpoint is 0.0.0.0:0 (or the zero value).
func (e Endpoint) IsUnspecified() bool {
	return (!e.IP.IsValid() || e.IP.IsUnspecified()) && e.Port == 0
}

// Octets returns the 4-byte form of the address.
func (e Endpoint) Octets() [4]byte {
	if !e.IP.IsValid() {
		return [4]byte{}
	}
	return e.IP.As4()
}

func (e Endpoint) String() string {
	ip := "0.0.0.0"
	if e.IP.IsValid() {
		ip = e.IP.String()
	}
	return ip + ":" + strconv.Itoa(int(e.Port))
}
