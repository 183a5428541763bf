package endpoint

import (
	"net"
	"strings"
	"testing"

	"github.com/kestrelnet/httpsocks5/pkg/constants"
)

func TestFromLiteral_IPv4(t *testing.T) {
	ep, ok := FromLiteral("192.168.1.1", 80)
	if !ok {
		t.Fatal("expected ok=true for IPv4 literal")
	}
	if ep.Kind != KindIPv4 {
		t.Fatalf("expected KindIPv4, got %v", ep.Kind)
	}
	if ep.IP.String() != "192.168.1.1" {
		t.Fatalf("unexpected IP: %v", ep.IP)
	}
}

func TestFromLiteral_IPv6(t *testing.T) {
	ep, ok := FromLiteral("::1", 443)
	if !ok {
		t.Fatal("expected ok=true for IPv6 literal")
	}
	if ep.Kind != KindIPv6 {
		t.Fatalf("expected KindIPv6, got %v", ep.Kind)
	}
}

func TestFromLiteral_RejectsHostname(t *testing.T) {
	_, ok := FromLiteral("example.com", 80)
	if ok {
		t.Fatal("expected ok=false for a hostname")
	}
}

func TestNewDNS_ASCIIPassthrough(t *testing.T) {
	ep, err := NewDNS("example.com", 443)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Host != "example.com" {
		t.Fatalf("expected unchanged ASCII host, got %q", ep.Host)
	}
}

func TestNewDNS_Punycodes(t *testing.T) {
	ep, err := NewDNS("münchen.de", 443)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(ep.Host, "xn--") {
		t.Fatalf("expected punycoded host, got %q", ep.Host)
	}
}

func TestNewDNS_RejectsOversizedHost(t *testing.T) {
	huge := strings.Repeat("a", constants.MaxDNSHostLength+1)
	_, err := NewDNS(huge, 80)
	if err == nil {
		t.Fatal("expected an error for an oversized host")
	}
}

func TestNewDNS_AcceptsHostAtExactLimit(t *testing.T) {
	host := strings.Repeat("a", constants.MaxDNSHostLength)
	ep, err := NewDNS(host, 80)
	if err != nil {
		t.Fatalf("expected a host at exactly the limit to succeed, got %v", err)
	}
	if ep.Host != host {
		t.Fatalf("expected ASCII host unchanged, got %q", ep.Host)
	}
}

func TestEndpoint_String(t *testing.T) {
	ep := NewIPv4(net.IPv4(1, 2, 3, 4), 8080)
	if ep.String() != "1.2.3.4:8080" {
		t.Fatalf("unexpected string: %q", ep.String())
	}
	dnsEp, err := NewDNS("example.com", 443)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dnsEp.String() != "example.com:443" {
		t.Fatalf("unexpected string: %q", dnsEp.String())
	}
}
