// Package config loads httpsocks5's runtime configuration from environment
// variables, performing the one-time work (Base64-encoding the inbound
// credential, pre-serializing the outbound SOCKS5 auth packet) that every
// connection would otherwise repeat.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/kestrelnet/httpsocks5/pkg/constants"
)

const (
	envListenAddr     = "HTTPSOCKS5_LISTEN_ADDR"
	envListenBacklog  = "HTTPSOCKS5_LISTEN_BACKLOG"
	envSocks5Addr     = "HTTPSOCKS5_SOCKS5_ADDR"
	envInboundUser    = "HTTPSOCKS5_INBOUND_USER"
	envInboundPass    = "HTTPSOCKS5_INBOUND_PASS"
	envOutboundUser   = "HTTPSOCKS5_OUTBOUND_USER"
	envOutboundPass   = "HTTPSOCKS5_OUTBOUND_PASS"
	envSocks5FastMode = "HTTPSOCKS5_SOCKS5_FAST_MODE"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	// ListenAddr is the "host:port" the HTTP-facing listener binds to.
	ListenAddr string
	// ListenBacklog is the TCP accept backlog size.
	ListenBacklog int

	// Socks5Addr is the upstream SOCKS5 server's "host:port".
	Socks5Addr string
	// SocksFastMode enables the pipelined SOCKS5 handshake.
	SocksFastMode bool

	// InboundAuthRequired is true when clients must present a matching
	// Proxy-Authorization header.
	InboundAuthRequired bool
	// InboundAuthToken is the Base64 "user:pass" token clients must send in
	// "Proxy-Authorization: Basic <token>", computed once here.
	InboundAuthToken string

	// OutboundAuth is the pre-serialized RFC 1929 username/password packet
	// sent to the upstream SOCKS5 server, or nil if it requires no auth.
	OutboundAuth []byte
}

// Load reads Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    os.Getenv(envListenAddr),
		ListenBacklog: constants.DefaultListenBacklog,
		Socks5Addr:    os.Getenv(envSocks5Addr),
		SocksFastMode: constants.DefaultSocksFastMode,
	}

	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("%s must be set", envListenAddr)
	}
	if cfg.Socks5Addr == "" {
		return nil, fmt.Errorf("%s must be set", envSocks5Addr)
	}

	if v := os.Getenv(envListenBacklog); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer, got %q", envListenBacklog, v)
		}
		cfg.ListenBacklog = n
	}

	if v := os.Getenv(envSocks5FastMode); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean, got %q", envSocks5FastMode, v)
		}
		cfg.SocksFastMode = b
	}

	inUser, inPass := os.Getenv(envInboundUser), os.Getenv(envInboundPass)
	if inUser != "" || inPass != "" {
		cfg.InboundAuthRequired = true
		cfg.InboundAuthToken = base64.StdEncoding.EncodeToString([]byte(inUser + ":" + inPass))
	}

	outUser, outPass := os.Getenv(envOutboundUser), os.Getenv(envOutboundPass)
	if outUser != "" || outPass != "" {
		packet, err := encodeUserPassPacket(outUser, outPass)
		if err != nil {
			return nil, err
		}
		cfg.OutboundAuth = packet
	}

	return cfg, nil
}

// encodeUserPassPacket builds the RFC 1929 username/password subnegotiation
// packet: VER, ULEN, UNAME, PLEN, PASSWD. Each of user and pass must fit in
// the single-byte length prefix the wire format gives it.
func encodeUserPassPacket(user, pass string) ([]byte, error) {
	if len(user) > 255 {
		return nil, fmt.Errorf("%s exceeds 255 bytes", envOutboundUser)
	}
	if len(pass) > 255 {
		return nil, fmt.Errorf("%s exceeds 255 bytes", envOutboundPass)
	}
	packet := make([]byte, 0, 3+len(user)+len(pass))
	packet = append(packet, constants.AuthSubnegotiationVersion)
	packet = append(packet, byte(len(user)))
	packet = append(packet, user...)
	packet = append(packet, byte(len(pass)))
	packet = append(packet, pass...)
	return packet, nil
}
