// Package session orchestrates a single inbound connection: parsing the
// HTTP request, authenticating it, opening an outbound tunnel for the
// destination, and relaying bytes between the two sides.
package session

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/kestrelnet/httpsocks5/internal/logging"
	"github.com/kestrelnet/httpsocks5/pkg/bytepump"
	"github.com/kestrelnet/httpsocks5/pkg/endpoint"
	"github.com/kestrelnet/httpsocks5/pkg/errors"
	"github.com/kestrelnet/httpsocks5/pkg/headerparser"
	"github.com/kestrelnet/httpsocks5/pkg/metrics"
	"github.com/kestrelnet/httpsocks5/pkg/tunnel"
)

const (
	statusConnectionEstablished = "HTTP/1.1 200 Connection Established\n\n"
	statusBadRequest            = "HTTP/1.1 400 Bad Request\nConnection: close\n\n"
	statusForbidden             = "HTTP/1.1 403 Forbidden\nConnection: close\n\n"
	statusProxyAuthRequired     = "HTTP/1.1 407 Proxy Authentication Required\nProxy-Authenticate: Basic realm=\"proxy\"\n\n"
	statusProxyFailure          = "HTTP/1.1 500 Proxy Failure\nConnection: close\n\n"
)

const defaultHTTPPort = "80"

// Session holds the collaborators every connection needs: the outbound
// tunnel factory and the inbound credential it must check, if any.
type Session struct {
	Factory             tunnel.Factory
	InboundAuthRequired bool
	InboundAuthToken    string // Base64("user:pass"), the value expected after "Basic "
	Logger              *logging.Logger
}

// New builds a Session. inboundAuthToken is the Base64 "user:pass" value,
// or "" if inbound auth is not required.
func New(factory tunnel.Factory, inboundAuthRequired bool, inboundAuthToken string, logger *logging.Logger) *Session {
	return &Session{
		Factory:             factory,
		InboundAuthRequired: inboundAuthRequired,
		InboundAuthToken:    inboundAuthToken,
		Logger:              logger,
	}
}

// Handle drives a single accepted connection to completion, closing conn
// before returning.
func (s *Session) Handle(conn net.Conn) {
	client := tunnel.NewConnChannel(conn)
	defer client.Close()

	sess := metrics.NewSession()
	req, err := headerparser.Parse(client)
	if err != nil {
		if headerparser.ReasonOf(err) != "" {
			writeStatus(client, statusBadRequest)
		}
		s.logf("inbound parse failed: %v", err)
		return
	}

	if s.InboundAuthRequired {
		switch s.checkAuth(req) {
		case authMissing:
			writeStatus(client, statusProxyAuthRequired)
			s.logf("rejected request from %s: no credential presented", conn.RemoteAddr())
			return
		case authWrong:
			writeStatus(client, statusForbidden)
			s.logf("rejected request from %s: wrong credential", conn.RemoteAddr())
			return
		}
	}

	if strings.EqualFold(req.Method, "CONNECT") {
		s.handleConnect(client, req, sess)
		return
	}
	s.handleForward(client, req, sess)
}

type authResult int

const (
	authOK authResult = iota
	authMissing
	authWrong
)

// checkAuth compares the inbound Proxy-Authorization header against the
// configured token: case-insensitive on the "Basic " prefix, exact-match on
// the token itself after trimming surrounding whitespace on both.
func (s *Session) checkAuth(req *headerparser.ParsedRequest) authResult {
	if !req.ProxyAuthorizationSet {
		return authMissing
	}
	value := strings.TrimSpace(req.ProxyAuthorization)
	const prefix = "basic "
	if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return authWrong
	}
	token := strings.TrimSpace(value[len(prefix):])
	if token != s.InboundAuthToken {
		return authWrong
	}
	return authOK
}

func (s *Session) handleConnect(client tunnel.Channel, req *headerparser.ParsedRequest, sess *metrics.Session) {
	dest, err := parseAuthorityForm(req.URL)
	if err != nil {
		writeStatus(client, statusBadRequest)
		s.logf("bad CONNECT target %q: %v", req.URL, err)
		return
	}

	upstream, err := s.Factory.Create(dest)
	if err != nil {
		writeStatus(client, statusProxyFailure)
		s.logf("tunnel to %s failed: %v", dest, err)
		return
	}
	defer upstream.Close()
	sess.MarkTunnelEstablished()

	if err := writeStatus(client, statusConnectionEstablished); err != nil {
		s.logf("failed writing 200 to client: %v", err)
		return
	}

	if len(req.Remaining) > 0 {
		if _, err := upstream.Write(req.Remaining); err != nil {
			s.logf("failed forwarding buffered bytes to %s: %v", dest, err)
			return
		}
	}

	result, err := bytepump.Run(client, upstream)
	sess.AddBytesIn(result.BytesAToB)
	sess.AddBytesOut(result.BytesBToA)
	if err != nil && !errors.IsCancelled(err) {
		s.logf("relay to %s ended with error: %v", dest, err)
	}
	s.logf("session to %s finished: %s", dest, sess.Finish())
}

func (s *Session) handleForward(client tunnel.Channel, req *headerparser.ParsedRequest, sess *metrics.Session) {
	dest, path, err := parseAbsoluteForm(req.URL)
	if err != nil {
		writeStatus(client, statusBadRequest)
		s.logf("bad request target %q: %v", req.URL, err)
		return
	}

	upstream, err := s.Factory.Create(dest)
	if err != nil {
		writeStatus(client, statusProxyFailure)
		s.logf("tunnel to %s failed: %v", dest, err)
		return
	}
	defer upstream.Close()
	sess.MarkTunnelEstablished()

	originRequest := buildOriginRequest(req, path)
	if _, err := upstream.Write(originRequest); err != nil {
		s.logf("failed forwarding request to %s: %v", dest, err)
		return
	}
	if len(req.Remaining) > 0 {
		if _, err := upstream.Write(req.Remaining); err != nil {
			s.logf("failed forwarding buffered body to %s: %v", dest, err)
			return
		}
	}

	result, err := bytepump.Run(client, upstream)
	sess.AddBytesIn(result.BytesAToB)
	sess.AddBytesOut(result.BytesBToA)
	if err != nil && !errors.IsCancelled(err) {
		s.logf("relay to %s ended with error: %v", dest, err)
	}
	s.logf("session to %s finished: %s", dest, sess.Finish())
}

func (s *Session) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func writeStatus(client tunnel.Channel, status string) error {
	if _, err := client.Write([]byte(status)); err != nil {
		return err
	}
	return client.Flush()
}

// parseAuthorityForm parses CONNECT's "host:port" target into an Endpoint.
func parseAuthorityForm(authority string) (endpoint.Endpoint, error) {
	host, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("invalid CONNECT authority %q: %w", authority, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return hostToEndpoint(host, uint16(port))
}

// parseAbsoluteForm parses a non-CONNECT request's absolute-form URL,
// returning the destination and the request-target to send upstream (path
// and query only).
func parseAbsoluteForm(raw string) (dest endpoint.Endpoint, path string, err error) {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return endpoint.Endpoint{}, "", fmt.Errorf("invalid absolute-form url %q: %w", raw, err)
	}
	if u.Scheme != "http" {
		return endpoint.Endpoint{}, "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return endpoint.Endpoint{}, "", fmt.Errorf("missing host in %q", raw)
	}
	portStr := u.Port()
	if portStr == "" {
		portStr = defaultHTTPPort
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return endpoint.Endpoint{}, "", fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	dest, err = hostToEndpoint(host, uint16(port))
	if err != nil {
		return endpoint.Endpoint{}, "", err
	}
	path = u.RequestURI()
	return dest, path, nil
}

func hostToEndpoint(host string, port uint16) (endpoint.Endpoint, error) {
	if ep, ok := endpoint.FromLiteral(host, port); ok {
		return ep, nil
	}
	return endpoint.NewDNS(host, port)
}

// buildOriginRequest synthesizes an origin-form HTTP/1.1 request to send
// upstream: the request-line, then every retained header in the order the
// client sent it (headerparser already stripped the Proxy-* noise), then
// the terminating blank line. Headers are forwarded verbatim, including
// Host — nothing here rewrites or reorders them.
func buildOriginRequest(req *headerparser.ParsedRequest, path string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\n", req.Method, path)
	for _, h := range req.Headers {
		fmt.Fprintf(&b, "%s: %s\n", h.Name, h.Value)
	}
	b.WriteString("\n")
	return []byte(b.String())
}
