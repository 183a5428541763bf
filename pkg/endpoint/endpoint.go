// Package endpoint implements the Endpoint data model: a tagged variant of
// IPv4, IPv6, and DNS destinations, with the punycode normalization a SOCKS5
// connect frame requires for DNS hosts.
package endpoint

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/idna"

	"github.com/kestrelnet/httpsocks5/pkg/constants"
)

// Kind tags which variant an Endpoint holds.
type Kind int

const (
	// KindIPv4 holds a 4-byte address.
	KindIPv4 Kind = iota
	// KindIPv6 holds a 16-byte address.
	KindIPv6
	// KindDNS holds an ASCII-compatible hostname, resolved by the SOCKS5 server.
	KindDNS
)

// Endpoint is the destination of a SOCKS5 CONNECT, or of an inbound request.
type Endpoint struct {
	Kind Kind
	IP   net.IP // valid for KindIPv4 / KindIPv6
	Host string // valid for KindDNS; ASCII, punycoded, length <= 255
	Port uint16
}

// NewIPv4 builds an IPv4 endpoint. ip must be a 4-byte (or 4-in-16) address.
func NewIPv4(ip net.IP, port uint16) Endpoint {
	return Endpoint{Kind: KindIPv4, IP: ip.To4(), Port: port}
}

// NewIPv6 builds an IPv6 endpoint.
func NewIPv6(ip net.IP, port uint16) Endpoint {
	return Endpoint{Kind: KindIPv6, IP: ip.To16(), Port: port}
}

// NewDNS builds a DNS endpoint, punycoding host if it contains non-ASCII
// labels. Returns an error if the resulting ASCII host exceeds 255 bytes
// (the SOCKS5 connect frame's single length byte cannot address more).
func NewDNS(host string, port uint16) (Endpoint, error) {
	ascii, err := toASCIIHost(host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("punycoding host %q: %w", host, err)
	}
	if len(ascii) > constants.MaxDNSHostLength {
		return Endpoint{}, fmt.Errorf("host %q exceeds %d bytes after punycoding", ascii, constants.MaxDNSHostLength)
	}
	return Endpoint{Kind: KindDNS, Host: ascii, Port: port}, nil
}

// toASCIIHost converts an internationalized host to its ASCII-compatible
// (punycode) form. Already-ASCII hosts pass through unchanged.
func toASCIIHost(host string) (string, error) {
	if isASCII(host) {
		return host, nil
	}
	return idna.Lookup.ToASCII(host)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// FromLiteral parses host as an IPv4 or IPv6 literal. It returns ok=false if
// host is not a valid IP literal, in which case the caller should fall back
// to NewDNS.
func FromLiteral(host string, port uint16) (ep Endpoint, ok bool) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return Endpoint{}, false
	}
	if addr.Is4() || addr.Is4In6() {
		return NewIPv4(net.IP(addr.AsSlice()), port), true
	}
	return NewIPv6(net.IP(addr.AsSlice()), port), true
}

// String renders a human-readable "host:port" form, used only in logs.
func (e Endpoint) String() string {
	switch e.Kind {
	case KindDNS:
		return fmt.Sprintf("%s:%d", e.Host, e.Port)
	default:
		return fmt.Sprintf("%s:%d", e.IP.String(), e.Port)
	}
}
