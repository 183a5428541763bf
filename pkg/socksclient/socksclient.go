// Package socksclient implements a SOCKS5 client (RFC 1928, RFC 1929) that
// establishes an outbound tunnel to a destination endpoint through an
// upstream SOCKS5 server. It implements tunnel.Factory.
package socksclient

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/kestrelnet/httpsocks5/pkg/constants"
	"github.com/kestrelnet/httpsocks5/pkg/endpoint"
	"github.com/kestrelnet/httpsocks5/pkg/errors"
	"github.com/kestrelnet/httpsocks5/pkg/tunnel"
)

// Config holds everything a Client needs to reach and authenticate against
// an upstream SOCKS5 server.
type Config struct {
	// Addr is the upstream SOCKS5 server's "host:port".
	Addr string

	// Auth, if non-nil, is the pre-serialized RFC 1929 username/password
	// subnegotiation packet to send. Building it once at configuration load
	// time avoids re-encoding it on every connection.
	Auth []byte

	// FastMode pipelines the greeting, auth subnegotiation, and connect
	// request into a single write instead of waiting for each reply before
	// sending the next message, trading a round trip for an assumption that
	// the server will accept the single method offered.
	FastMode bool

	// DialTimeout bounds the TCP dial to Addr. Zero means no timeout.
	DialTimeout time.Duration
}

// Client is a tunnel.Factory backed by an upstream SOCKS5 server.
type Client struct {
	cfg Config
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Create implements tunnel.Factory: it dials the upstream SOCKS5 server and
// runs the handshake to establish a connect-mode tunnel to dest.
func (c *Client) Create(dest endpoint.Endpoint) (tunnel.Channel, error) {
	conn, err := net.DialTimeout("tcp", c.cfg.Addr, c.cfg.DialTimeout)
	if err != nil {
		return nil, errors.NewTunnelError("dial", "failed to reach socks5 server", err)
	}

	if c.cfg.FastMode {
		err = c.handshakeFast(conn, dest)
	} else {
		err = c.handshakeSequential(conn, dest)
	}
	if err != nil {
		conn.Close()
		return nil, err
	}
	return tunnel.NewConnChannel(conn), nil
}

func (c *Client) handshakeSequential(conn net.Conn, dest endpoint.Endpoint) error {
	if _, err := conn.Write(encodeGreeting(c.cfg.Auth != nil)); err != nil {
		return errors.NewTunnelError("write_greeting", "failed writing socks5 greeting", err)
	}
	method, err := readMethodSelection(conn)
	if err != nil {
		return err
	}
	if err := c.authenticate(conn, method); err != nil {
		return err
	}
	if _, err := conn.Write(encodeConnectRequest(dest)); err != nil {
		return errors.NewTunnelError("write_connect", "failed writing socks5 connect request", err)
	}
	return readConnectReply(conn)
}

func (c *Client) handshakeFast(conn net.Conn, dest endpoint.Endpoint) error {
	var out bytes.Buffer
	out.Write(encodeGreeting(c.cfg.Auth != nil))
	if c.cfg.Auth != nil {
		out.Write(c.cfg.Auth)
	}
	out.Write(encodeConnectRequest(dest))
	if _, err := conn.Write(out.Bytes()); err != nil {
		return errors.NewTunnelError("write_pipeline", "failed writing pipelined socks5 handshake", err)
	}

	method, err := readMethodSelection(conn)
	if err != nil {
		return err
	}
	if method == constants.AuthMethodUserPass {
		if err := readAuthStatus(conn); err != nil {
			return err
		}
	} else if method == constants.AuthMethodNoAccept {
		return errors.NewAuthError("negotiate", "socks5 server rejected all offered auth methods")
	}
	return readConnectReply(conn)
}

// authenticate runs the RFC 1929 subnegotiation if the server selected it,
// or validates that the server's chosen method needs no further action.
func (c *Client) authenticate(conn net.Conn, method byte) error {
	switch method {
	case constants.AuthMethodNoAccept:
		return errors.NewAuthError("negotiate", "socks5 server rejected all offered auth methods")
	case constants.AuthMethodUserPass:
		if c.cfg.Auth == nil {
			return errors.NewAuthError("negotiate", "socks5 server requires username/password auth but none is configured")
		}
		if _, err := conn.Write(c.cfg.Auth); err != nil {
			return errors.NewTunnelError("write_auth", "failed writing socks5 auth subnegotiation", err)
		}
		return readAuthStatus(conn)
	case constants.AuthMethodNone:
		return nil
	default:
		return errors.NewAuthError("negotiate", "socks5 server selected an unsupported auth method")
	}
}

func encodeGreeting(withAuth bool) []byte {
	method := byte(constants.AuthMethodNone)
	if withAuth {
		method = constants.AuthMethodUserPass
	}
	return []byte{constants.Socks5Version, 1, method}
}

func readMethodSelection(r io.Reader) (byte, error) {
	var reply [2]byte
	if _, err := io.ReadFull(r, reply[:]); err != nil {
		return 0, errors.NewTunnelError("read_greeting_reply", "failed reading socks5 method selection", err)
	}
	if reply[0] != constants.Socks5Version {
		return 0, errors.NewTunnelError("read_greeting_reply", "unexpected socks5 version in method selection", nil)
	}
	return reply[1], nil
}

func readAuthStatus(r io.Reader) error {
	var reply [2]byte
	if _, err := io.ReadFull(r, reply[:]); err != nil {
		return errors.NewTunnelError("read_auth_reply", "failed reading socks5 auth subnegotiation reply", err)
	}
	if reply[1] != constants.AuthStatusSuccess {
		return errors.NewAuthError("authenticate", "socks5 server rejected username/password credentials")
	}
	return nil
}

func encodeConnectRequest(dest endpoint.Endpoint) []byte {
	var buf bytes.Buffer
	buf.WriteByte(constants.Socks5Version)
	buf.WriteByte(constants.CommandConnect)
	buf.WriteByte(0) // reserved

	switch dest.Kind {
	case endpoint.KindIPv4:
		buf.WriteByte(constants.AddressTypeIPv4)
		buf.Write(dest.IP.To4())
	case endpoint.KindIPv6:
		buf.WriteByte(constants.AddressTypeIPv6)
		buf.Write(dest.IP.To16())
	case endpoint.KindDNS:
		buf.WriteByte(constants.AddressTypeDNS)
		buf.WriteByte(byte(len(dest.Host)))
		buf.WriteString(dest.Host)
	}

	var port [2]byte
	binary.BigEndian.PutUint16(port[:], dest.Port)
	buf.Write(port[:])
	return buf.Bytes()
}

// replyCode maps an RFC 1928 REP byte to a structured error, or nil on
// success (REP == 0x00).
func replyCode(rep byte) error {
	switch rep {
	case 0x00:
		return nil
	case 0x02:
		return errors.NewDestinationError("connect", "connection not allowed by ruleset", nil)
	case 0x03:
		return errors.NewDestinationError("connect", "network unreachable", nil)
	case 0x04:
		return errors.NewDestinationError("connect", "host unreachable", nil)
	case 0x05:
		return errors.NewDestinationError("connect", "connection refused", nil)
	case 0x06:
		return errors.NewDestinationError("connect", "TTL expired", nil)
	case 0x01:
		return errors.NewTunnelError("connect", "socks5 server reported a general failure", nil)
	case 0x07:
		return errors.NewTunnelError("connect", "socks5 server does not support the CONNECT command", nil)
	case 0x08:
		return errors.NewTunnelError("connect", "socks5 server does not support this address type", nil)
	default:
		return errors.NewTunnelError("connect", "socks5 server returned an unrecognized reply code", nil)
	}
}

// readConnectReply reads and validates a full connect reply, including its
// variable-length bound-address field, which must be drained regardless of
// outcome since the caller already knows the destination it asked for.
func readConnectReply(r io.Reader) error {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return errors.NewTunnelError("read_connect_reply", "failed reading socks5 connect reply", err)
	}
	if head[0] != constants.Socks5Version {
		return errors.NewTunnelError("read_connect_reply", "unexpected socks5 version in connect reply", nil)
	}
	repErr := replyCode(head[1])

	var addrLen int
	switch head[3] {
	case constants.AddressTypeIPv4:
		addrLen = 4
	case constants.AddressTypeIPv6:
		addrLen = 16
	case constants.AddressTypeDNS:
		var lenByte [1]byte
		if _, err := io.ReadFull(r, lenByte[:]); err != nil {
			return errors.NewTunnelError("read_connect_reply", "failed reading bound domain length", err)
		}
		addrLen = int(lenByte[0])
	default:
		return errors.NewTunnelError("read_connect_reply", "unrecognized address type in connect reply", nil)
	}

	trailer := make([]byte, addrLen+2) // bound address + 2-byte port
	if _, err := io.ReadFull(r, trailer); err != nil {
		return errors.NewTunnelError("read_connect_reply", "failed reading bound address", err)
	}
	return repErr
}
