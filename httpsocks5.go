// Package httpsocks5 wires together an HTTP-to-SOCKS5 protocol-translating
// proxy: an inbound HTTP/1.1 listener whose CONNECT and absolute-form
// requests are relayed to destinations reached through an upstream SOCKS5
// server.
package httpsocks5

import (
	"context"
	"net"
	"sync"

	"github.com/kestrelnet/httpsocks5/internal/logging"
	"github.com/kestrelnet/httpsocks5/pkg/config"
	"github.com/kestrelnet/httpsocks5/pkg/session"
	"github.com/kestrelnet/httpsocks5/pkg/socksclient"
)

// Version is the current version of httpsocks5.
const Version = "1.0.0"

// Server listens for inbound HTTP proxy connections and serves each one
// with a session.Session.
type Server struct {
	cfg     *config.Config
	session *session.Session
	logger  *logging.Logger

	mu       sync.Mutex
	listener net.Listener
}

// New builds a Server from cfg but does not yet bind a listener.
func New(cfg *config.Config) *Server {
	logger := logging.New("server")
	factory := socksclient.New(socksclient.Config{
		Addr:     cfg.Socks5Addr,
		Auth:     cfg.OutboundAuth,
		FastMode: cfg.SocksFastMode,
	})
	return &Server{
		cfg:     cfg,
		session: session.New(factory, cfg.InboundAuthRequired, cfg.InboundAuthToken, logging.New("session")),
		logger:  logger,
	}
}

// ListenAndServe binds the configured listen address and serves connections
// until the listener is closed or Accept returns a fatal error.
//
// ListenBacklog is carried in Config for completeness but the standard
// library's net.Listen does not expose a portable way to size the kernel
// accept backlog; the OS default applies.
func (s *Server) ListenAndServe() error {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Printf("listening on %s, socks5 upstream %s", ln.Addr(), s.cfg.Socks5Addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.session.Handle(conn)
	}
}

// Addr returns the bound listen address, or nil if ListenAndServe has not
// bound a listener yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting new connections. In-flight sessions are left to
// finish on their own.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}
