package tunnel

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/kestrelnet/httpsocks5/pkg/endpoint"
)

func TestConnChannel_ReadWrite(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := NewConnChannel(client)

	go func() {
		server.Write([]byte("hello"))
	}()

	buf := make([]byte, 5)
	if _, err := io.ReadFull(ch, buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("expected hello, got %q", buf)
	}
}

func TestConnChannel_CancelReadUnblocks(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := NewConnChannel(client)

	done := make(chan error, 1)
	go func() {
		_, err := ch.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	ch.CancelRead()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected CancelRead to unblock Read with an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CancelRead did not unblock the pending Read")
	}
}

func TestConnChannel_Flush(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	ch := NewConnChannel(client)
	if err := ch.Flush(); err != nil {
		t.Fatalf("expected no-op Flush to succeed, got %v", err)
	}
}

func TestDirect_CreateDialsDestination(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected listen error: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	dest, ok := endpoint.FromLiteral(addr.IP.String(), uint16(addr.Port))
	if !ok {
		t.Fatalf("expected valid literal address from %v", addr)
	}

	d := Direct{DialTimeout: time.Second}
	ch, err := d.Create(dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ch.Close()

	select {
	case conn := <-accepted:
		conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted the dial")
	}
}

func TestDirect_CreateDialsIPv6Destination(t *testing.T) {
	ln, err := net.Listen("tcp", "[::1]:0")
	if err != nil {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	dest, ok := endpoint.FromLiteral(addr.IP.String(), uint16(addr.Port))
	if !ok {
		t.Fatalf("expected valid literal address from %v", addr)
	}
	if dest.Kind != endpoint.KindIPv6 {
		t.Fatalf("expected an IPv6 endpoint, got %v", dest.Kind)
	}

	d := Direct{DialTimeout: time.Second}
	ch, err := d.Create(dest)
	if err != nil {
		t.Fatalf("unexpected error dialing IPv6 destination: %v", err)
	}
	defer ch.Close()

	select {
	case conn := <-accepted:
		conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted the IPv6 dial")
	}
}

func TestDirect_CreateFailsForUnreachableAddress(t *testing.T) {
	d := Direct{DialTimeout: 100 * time.Millisecond}
	_, err := d.Create(endpoint.NewIPv4(net.IPv4(127, 0, 0, 1), 1))
	if err == nil {
		t.Fatal("expected an error dialing an unreachable port")
	}
}
