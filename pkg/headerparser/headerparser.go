// Package headerparser incrementally parses an HTTP/1.1 request line and
// headers from a byte stream tolerant of partial reads.
package headerparser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/kestrelnet/httpsocks5/pkg/bufpool"
	"github.com/kestrelnet/httpsocks5/pkg/constants"
	"github.com/kestrelnet/httpsocks5/pkg/errors"
)

// Reason discriminates why parsing failed, folded into the returned error's
// Op field so callers can branch on it without a second error type.
type Reason string

const (
	// ReasonNetworkClosed is a zero-byte read encountered mid-header.
	ReasonNetworkClosed Reason = "network_closed"
	// ReasonMalformed covers a bad request line or bad header syntax.
	ReasonMalformed Reason = "malformed"
	// ReasonHeaderTooLarge covers buffer exhaustion or the absolute size cap.
	ReasonHeaderTooLarge Reason = "header_too_large"
)

// Header is a single ordered (name, value) pair, preserving appearance
// order and case as the client sent it.
type Header struct {
	Name  string
	Value string
}

// ParsedRequest is the result of a successful parse.
type ParsedRequest struct {
	Method  string
	URL     string
	Headers []Header

	// ProxyAuthorization holds the value of a Proxy-Authorization header, if
	// the client sent one. ProxyAuthorizationSet distinguishes "absent" from
	// an empty value.
	ProxyAuthorization    string
	ProxyAuthorizationSet bool

	// Remaining holds any bytes read past the blank-line terminator: bytes
	// already received from the client that belong to the next protocol
	// layer (request body, or immediate CONNECT-tunnel payload).
	Remaining []byte
}

const httpVersion = "HTTP/1.1"

// Parse reads from source until the header block's terminating blank line,
// or fails per the taxonomy in Reason. The primary 4 KiB buffer grows once
// to a 16 KiB secondary buffer if the header block does not fit; growth
// beyond that, or a cumulative read total past MaximumHeaderAreaSize, is
// always a failure.
func Parse(source io.Reader) (*ParsedRequest, error) {
	buf := bufpool.GetPrimary()
	usingSecondary := false
	defer func() {
		if usingSecondary {
			bufpool.PutSecondary(buf)
		} else {
			bufpool.PutPrimary(buf)
		}
	}()

	var (
		filled         int
		scan           int
		totalConsumed  int64
		requestParsed  bool
		method, url    string
		headers        []Header
		proxyAuth      string
		proxyAuthIsSet bool
	)

	for {
		// Consume as much as is already buffered before asking for more.
		for {
			lf := bytes.IndexByte(buf[scan:filled], '\n')
			if lf < 0 {
				break
			}
			line := stripCR(buf[scan : scan+lf])
			scan += lf + 1

			if !requestParsed {
				m, u, err := parseRequestLine(line)
				if err != nil {
					return nil, err
				}
				method, url = m, u
				requestParsed = true
				continue
			}

			if len(line) == 0 {
				remaining := make([]byte, filled-scan)
				copy(remaining, buf[scan:filled])
				return &ParsedRequest{
					Method:                method,
					URL:                   url,
					Headers:               headers,
					ProxyAuthorization:    proxyAuth,
					ProxyAuthorizationSet: proxyAuthIsSet,
					Remaining:             remaining,
				}, nil
			}

			name, value, err := parseHeaderLine(line)
			if err != nil {
				return nil, err
			}
			if strings.HasPrefix(strings.ToLower(name), "proxy-") {
				if strings.EqualFold(name, "Proxy-Authorization") {
					proxyAuth = value
					proxyAuthIsSet = true
				}
				continue
			}
			headers = append(headers, Header{Name: name, Value: value})
		}

		// No terminator in what we have; need more bytes. Grow tiers first
		// if the current buffer is exhausted.
		if filled == len(buf) {
			if !usingSecondary {
				secondary := bufpool.GetSecondary()
				copy(secondary, buf[:filled])
				bufpool.PutPrimary(buf)
				buf = secondary
				usingSecondary = true
			} else {
				return nil, fail(ReasonHeaderTooLarge, "grow_buffer",
					fmt.Sprintf("header block exceeds %d bytes without completing", constants.SecondaryHeaderBufferSize), nil)
			}
		}

		n, err := source.Read(buf[filled:])
		if n == 0 {
			if err == nil {
				err = io.ErrNoProgress
			}
			return nil, fail(ReasonNetworkClosed, "read", "connection closed while reading headers", err)
		}
		filled += n
		totalConsumed += int64(n)
		if totalConsumed > int64(constants.MaximumHeaderAreaSize) {
			return nil, fail(ReasonHeaderTooLarge, "read",
				fmt.Sprintf("header area exceeds %d bytes", constants.MaximumHeaderAreaSize), nil)
		}
	}
}

func stripCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}

func parseRequestLine(line []byte) (method, url string, err error) {
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) != 3 {
		return "", "", fail(ReasonMalformed, "parse_request_line", "expected \"METHOD URL HTTP/1.1\"", nil)
	}
	method = string(parts[0])
	url = string(parts[1])
	version := string(parts[2])
	if method == "" || url == "" {
		return "", "", fail(ReasonMalformed, "parse_request_line", "method and url must be non-empty", nil)
	}
	if version != httpVersion {
		return "", "", fail(ReasonMalformed, "parse_request_line", fmt.Sprintf("unsupported version %q", version), nil)
	}
	return method, url, nil
}

func parseHeaderLine(line []byte) (name, value string, err error) {
	if bytes.IndexByte(line, '\r') >= 0 {
		return "", "", fail(ReasonMalformed, "parse_header_line", "name contains CR", nil)
	}
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return "", "", fail(ReasonMalformed, "parse_header_line", "missing ':'", nil)
	}
	name = strings.TrimSpace(string(line[:idx]))
	value = strings.TrimSpace(string(line[idx+1:]))
	if name == "" {
		return "", "", fail(ReasonMalformed, "parse_header_line", "empty header name", nil)
	}
	return name, value, nil
}

func fail(reason Reason, op, message string, cause error) error {
	return errors.NewInboundProtocolError(op, string(reason)+": "+message, cause)
}

// ReasonOf extracts the Reason folded into an error returned by Parse, or ""
// if err did not originate from this package.
func ReasonOf(err error) Reason {
	se, ok := err.(*errors.Error)
	if !ok {
		return ""
	}
	for _, r := range []Reason{ReasonNetworkClosed, ReasonMalformed, ReasonHeaderTooLarge} {
		if strings.HasPrefix(se.Message, string(r)+": ") {
			return r
		}
	}
	return ""
}
