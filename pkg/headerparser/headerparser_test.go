package headerparser

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// slowReader trickles bytes through one at a time, to exercise the
// incremental parse path rather than handing everything to Parse in one
// Read call.
type slowReader struct {
	data []byte
	pos  int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:r.pos+1])
	r.pos += n
	return n, nil
}

func TestParse_SimpleGet(t *testing.T) {
	raw := "GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n\r\n"
	got, err := Parse(&slowReader{data: []byte(raw)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Method != "GET" || got.URL != "http://example.com/" {
		t.Fatalf("unexpected request line: %+v", got)
	}
	if len(got.Headers) != 1 || got.Headers[0].Name != "Host" || got.Headers[0].Value != "example.com" {
		t.Fatalf("unexpected headers: %+v", got.Headers)
	}
	if len(got.Remaining) != 0 {
		t.Fatalf("expected no remaining bytes, got %q", got.Remaining)
	}
}

func TestParse_LFOnly(t *testing.T) {
	raw := "GET / HTTP/1.1\nHost: example.com\n\n"
	got, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Method != "GET" || got.URL != "/" {
		t.Fatalf("unexpected request line: %+v", got)
	}
}

func TestParse_RemainingBytesRetained(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nHost: example.com\r\n\r\nbodybytes"
	got, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.Remaining) != "bodybytes" {
		t.Fatalf("expected remaining=bodybytes, got %q", got.Remaining)
	}
}

func TestParse_ProxyAuthorizationCapturedAndStripped(t *testing.T) {
	raw := "CONNECT example.com:443 HTTP/1.1\r\nProxy-Authorization: Basic Zm9vOmJhcg==\r\nProxy-Connection: Keep-Alive\r\nHost: example.com\r\n\r\n"
	got, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.ProxyAuthorizationSet || got.ProxyAuthorization != "Basic Zm9vOmJhcg==" {
		t.Fatalf("proxy-authorization not captured: %+v", got)
	}
	for _, h := range got.Headers {
		if strings.HasPrefix(strings.ToLower(h.Name), "proxy-") {
			t.Fatalf("proxy-* header leaked into Headers: %+v", h)
		}
	}
	if len(got.Headers) != 1 || got.Headers[0].Name != "Host" {
		t.Fatalf("unexpected surviving headers: %+v", got.Headers)
	}
}

func TestParse_MalformedRequestLine(t *testing.T) {
	cases := []string{
		"GET / HTTP/1.0\r\n\r\n",
		"GET /\r\n\r\n",
		"GET  HTTP/1.1\r\n\r\n",
	}
	for _, raw := range cases {
		_, err := Parse(strings.NewReader(raw))
		if err == nil {
			t.Fatalf("expected malformed error for %q", raw)
		}
		if reason := ReasonOf(err); reason != ReasonMalformed {
			t.Fatalf("expected ReasonMalformed for %q, got %v", raw, reason)
		}
	}
}

func TestParse_MalformedHeaderLine(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nNoColonHere\r\n\r\n"
	_, err := Parse(strings.NewReader(raw))
	if err == nil || ReasonOf(err) != ReasonMalformed {
		t.Fatalf("expected malformed header error, got %v", err)
	}
}

func TestParse_NetworkClosedMidHeader(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: exam"
	_, err := Parse(strings.NewReader(raw))
	if err == nil || ReasonOf(err) != ReasonNetworkClosed {
		t.Fatalf("expected network closed error, got %v", err)
	}
}

func buildHeaderBlock(totalTarget int) string {
	line := "X-Pad: " + strings.Repeat("a", 60) + "\r\n"
	var b strings.Builder
	b.WriteString("GET / HTTP/1.1\r\n")
	for b.Len()+2 < totalTarget {
		b.WriteString(line)
	}
	b.WriteString("\r\n")
	return b.String()
}

func TestParse_FitsWithinPrimaryBuffer(t *testing.T) {
	raw := buildHeaderBlock(4000)
	if len(raw) > 4096 {
		t.Fatalf("test setup: block too large for primary buffer: %d", len(raw))
	}
	_, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error for block fitting in primary buffer: %v", err)
	}
}

func TestParse_GrowsToSecondaryBuffer(t *testing.T) {
	raw := buildHeaderBlock(8000)
	if len(raw) <= 4096 || len(raw) > 16384 {
		t.Fatalf("test setup: block %d not in secondary range", len(raw))
	}
	_, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error for block requiring secondary buffer: %v", err)
	}
}

func TestParse_FailsBeyondSecondaryBuffer(t *testing.T) {
	raw := buildHeaderBlock(20000)
	_, err := Parse(strings.NewReader(raw))
	if err == nil || ReasonOf(err) != ReasonHeaderTooLarge {
		t.Fatalf("expected header too large error, got %v", err)
	}
}

func TestParse_WhitespaceOnlyLineIsNotBlank(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n \r\n\r\n"
	_, err := Parse(strings.NewReader(raw))
	if err == nil {
		t.Fatalf("expected whitespace-only line to be rejected as a malformed header, not treated as terminator")
	}
}

func TestParse_TrimsHeaderNameAndValue(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n  Host  :   example.com   \r\n\r\n"
	got, err := Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Headers) != 1 || got.Headers[0].Name != "Host" || got.Headers[0].Value != "example.com" {
		t.Fatalf("expected trimmed name/value, got %+v", got.Headers)
	}
}

func TestParse_BufferReused(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n\r\n"
	for i := 0; i < 3; i++ {
		if _, err := Parse(bytes.NewReader([]byte(raw))); err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
	}
}
