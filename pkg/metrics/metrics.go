// Package metrics captures per-session timing and byte counters, logged as
// a single summary line when a session ends (grounded in Resin's
// internal/metrics bucket-summary convention: aggregate counters recorded
// periodically rather than per byte).
package metrics

import (
	"fmt"
	"time"
)

// Session captures the lifetime of a single ProxySession.
type Session struct {
	start           time.Time
	tunnelEstablish time.Time
	bytesIn         int64
	bytesOut        int64
}

// NewSession starts a new session timer.
func NewSession() *Session {
	return &Session{start: time.Now()}
}

// MarkTunnelEstablished records when the outbound tunnel became ready.
func (s *Session) MarkTunnelEstablished() {
	s.tunnelEstablish = time.Now()
}

// AddBytesIn accumulates bytes read from the inbound side and written outbound.
func (s *Session) AddBytesIn(n int64) {
	s.bytesIn += n
}

// AddBytesOut accumulates bytes read from the outbound side and written inbound.
func (s *Session) AddBytesOut(n int64) {
	s.bytesOut += n
}

// Summary is the immutable snapshot logged once a session ends.
type Summary struct {
	Duration     time.Duration
	TunnelDelay  time.Duration
	BytesIn      int64
	BytesOut     int64
}

// Finish returns the final summary for the session.
func (s *Session) Finish() Summary {
	sum := Summary{
		Duration: time.Since(s.start),
		BytesIn:  s.bytesIn,
		BytesOut: s.bytesOut,
	}
	if !s.tunnelEstablish.IsZero() {
		sum.TunnelDelay = s.tunnelEstablish.Sub(s.start)
	}
	return sum
}

// String renders the summary for a single log line.
func (sum Summary) String() string {
	return fmt.Sprintf("duration=%v tunnel_delay=%v bytes_in=%d bytes_out=%d",
		sum.Duration, sum.TunnelDelay, sum.BytesIn, sum.BytesOut)
}
