// Package constants defines magic numbers and default values used throughout httpsocks5.
package constants

import "time"

// HeaderParser buffer sizing.
const (
	// PrimaryHeaderBufferSize is the initial buffer every HeaderParser read uses.
	PrimaryHeaderBufferSize = 4096

	// SecondaryHeaderBufferSize is the one-time grown buffer allocated when the
	// primary buffer is exhausted before the header block ends.
	SecondaryHeaderBufferSize = 16384

	// MaximumHeaderAreaSize is the hard ceiling on total header-area bytes
	// consumed by a single request; exceeding it is always a Fail, regardless
	// of which buffer tier is active.
	MaximumHeaderAreaSize = 81920
)

// BytePump tuning.
const (
	// PumpBufferSize is the per-direction relay buffer size.
	PumpBufferSize = 4096

	// PumpGracePeriod is how long the pump waits for the second direction to
	// finish naturally after the first direction completes.
	PumpGracePeriod = 2000 * time.Millisecond
)

// SOCKS5 wire constants (RFC 1928/1929).
const (
	Socks5Version = 0x05

	AuthMethodNone     = 0x00
	AuthMethodUserPass = 0x02
	AuthMethodNoAccept = 0xFF

	AuthSubnegotiationVersion = 0x01
	AuthStatusSuccess         = 0x00

	CommandConnect = 0x01

	AddressTypeIPv4 = 0x01
	AddressTypeDNS  = 0x03
	AddressTypeIPv6 = 0x04

	// MaxDNSHostLength is the invariant on Endpoint host: the ASCII,
	// punycoded form must fit in the single length byte the SOCKS5 connect
	// frame reserves for it.
	MaxDNSHostLength = 255
)

// Defaults for the external configuration collaborator.
const (
	DefaultListenBacklog = 256
	DefaultSocksFastMode = true
)
