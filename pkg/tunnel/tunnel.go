// Package tunnel defines the duplex-channel abstraction and the factory
// boundary between the HTTP-side state machine and the SOCKS5-side state
// machine.
package tunnel

import (
	"io"
	"net"
	"strconv"
	"time"

	"github.com/kestrelnet/httpsocks5/pkg/endpoint"
)

// aLongTimeAgo is used to cancel a blocked Read or Write by setting a
// deadline in the past, the standard net.Conn idiom for interrupting a
// pending operation without closing the underlying socket.
var aLongTimeAgo = time.Unix(1, 0)

// Channel is a duplex byte channel with independently cancellable read and
// write halves and an explicit flush point. A bare net.Conn is insufficient
// because canceling a read must not also abort a write that is mid-flight
// in the opposite direction.
type Channel interface {
	io.Reader
	io.Writer

	// Flush forces any buffered output to the wire. For a raw TCP channel
	// this is a no-op; it exists so that buffered implementations (e.g. one
	// fronted by bufio.Writer) have a place to hook in.
	Flush() error

	// CancelRead unblocks a pending Read without affecting Write.
	CancelRead()

	// CancelWrite unblocks a pending Write without affecting Read.
	CancelWrite()

	// Close releases the channel. Safe to call after CancelRead/CancelWrite.
	Close() error
}

// connChannel adapts a net.Conn to the Channel interface.
type connChannel struct {
	net.Conn
}

// NewConnChannel wraps a net.Conn as a Channel.
func NewConnChannel(conn net.Conn) Channel {
	return &connChannel{Conn: conn}
}

func (c *connChannel) Flush() error { return nil }

func (c *connChannel) CancelRead() {
	_ = c.Conn.SetReadDeadline(aLongTimeAgo)
}

func (c *connChannel) CancelWrite() {
	_ = c.Conn.SetWriteDeadline(aLongTimeAgo)
}

// Factory produces a Channel to a destination endpoint. SocksClient is the
// production implementation; Direct (below) is a trivial "direct connect"
// factory used by tests.
type Factory interface {
	Create(dest endpoint.Endpoint) (Channel, error)
}

// Direct dials the destination endpoint over a plain TCP connection,
// bypassing SOCKS5 entirely. Not used in production; it exists purely as a
// test collaborator.
type Direct struct {
	// DialTimeout bounds the outbound TCP dial. Zero means no timeout.
	DialTimeout time.Duration
}

// Create implements Factory.
func (d Direct) Create(dest endpoint.Endpoint) (Channel, error) {
	host := dest.Host
	if dest.Kind != endpoint.KindDNS {
		host = dest.IP.String()
	}
	addr := net.JoinHostPort(host, strconv.Itoa(int(dest.Port)))
	conn, err := net.DialTimeout("tcp", addr, d.DialTimeout)
	if err != nil {
		return nil, err
	}
	return NewConnChannel(conn), nil
}
