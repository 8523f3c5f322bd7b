// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/absmach/mircd/pkg/reply"
)

// Transport is the name sessions accepted by this server report.
const Transport = "tcp"

var (
	// ErrShutdownTimeout is returned when graceful shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// ConnHandler runs one accepted connection to completion.
// session.Service implements it.
type ConnHandler interface {
	HandleConnection(ctx context.Context, conn net.Conn, transport string) error
}

// Config holds the TCP server configuration.
type Config struct {
	// Address is the listen address (host:port)
	Address string

	// MaxConnections caps concurrent clients. Zero means unlimited.
	// Clients over the cap get an ERROR line and are disconnected.
	MaxConnections int

	// TCPKeepAlive is the keep-alive period for accepted connections.
	// Zero keeps the OS default, negative disables keep-alive.
	TCPKeepAlive time.Duration

	// DisableNoDelay turns Nagle's algorithm back on. Replies are small and
	// latency sensitive, so TCP_NODELAY is set by default.
	DisableNoDelay bool

	// ShutdownTimeout is the maximum time to wait for active connections to drain
	// during graceful shutdown. After this timeout, remaining connections are
	// forcefully closed.
	ShutdownTimeout time.Duration

	// Logger for server events
	Logger *slog.Logger
}

// Server accepts TCP connections and hands each one to a ConnHandler.
type Server struct {
	config  Config
	handler ConnHandler
	connSem chan struct{}
	wg      sync.WaitGroup
}

// New creates a new TCP server with the given configuration and handler.
func New(cfg Config, h ConnHandler) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		config:  cfg,
		handler: h,
	}
	if cfg.MaxConnections > 0 {
		s.connSem = make(chan struct{}, cfg.MaxConnections)
	}
	return s
}

// Listen starts the TCP server and blocks until the context is cancelled.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until the context is cancelled.
// It implements graceful shutdown with connection draining and closes
// the listener on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.config.Logger.Info("TCP server started", slog.String("address", listener.Addr().String()))

	// Active connections get their own context so that draining can
	// outlive the shutdown signal.
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				s.config.Logger.Error("failed to accept connection", slog.String("error", err.Error()))
				continue
			}

			if !s.acquire() {
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.reject(conn)
				}()
				continue
			}
			s.configure(conn)

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.release()
				if err := s.handler.HandleConnection(connCtx, conn, Transport); err != nil && !errors.Is(err, io.EOF) {
					s.config.Logger.Debug("connection handler error",
						slog.String("remote", conn.RemoteAddr().String()),
						slog.String("error", err.Error()))
				}
			}()
		}
	}()

	<-ctx.Done()
	s.config.Logger.Info("shutdown signal received, closing listener")

	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.config.Logger.Error("error closing listener", slog.String("error", err.Error()))
	}
	<-acceptDone

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.config.Logger.Info("all connections closed gracefully")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		s.config.Logger.Warn("shutdown timeout exceeded, forcing connection closure")
		connCancel()
		select {
		case <-done:
		case <-time.After(1 * time.Second):
		}
		return ErrShutdownTimeout
	}
}

func (s *Server) acquire() bool {
	if s.connSem == nil {
		return true
	}
	select {
	case s.connSem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	if s.connSem != nil {
		<-s.connSem
	}
}

func (s *Server) reject(conn net.Conn) {
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	s.config.Logger.Warn("connection limit reached", slog.String("remote", host))

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	io.WriteString(conn, reply.Closing(host, "Too many connections"))
}

func (s *Server) configure(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetNoDelay(!s.config.DisableNoDelay); err != nil {
		s.config.Logger.Debug("failed to set TCP_NODELAY", slog.String("error", err.Error()))
	}
	switch {
	case s.config.TCPKeepAlive > 0:
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(s.config.TCPKeepAlive)
	case s.config.TCPKeepAlive < 0:
		tc.SetKeepAlive(false)
	}
}
