// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/absmach/mircd/pkg/frame"
	"github.com/absmach/mircd/pkg/reply"
	"github.com/gorilla/websocket"
)

const (
	// Transport is the name sessions accepted by this server report.
	Transport = "websocket"

	// Subprotocol is the IRCv3 text subprotocol, selected when offered.
	Subprotocol = "text.ircv3.net"

	// readLimitFactor sizes the frame limit relative to MaxLineLength.
	// Frames up to the limit reach the line decoder, which closes long
	// lines with an ERROR line like the TCP transport.
	readLimitFactor = 4
)

// ErrShutdownTimeout is returned when graceful shutdown exceeds the configured timeout.
var ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

// ConnHandler runs one upgraded connection to completion.
type ConnHandler interface {
	HandleConnection(ctx context.Context, conn net.Conn, transport string) error
}

// Config holds the WebSocket server configuration.
type Config struct {
	// Address is the listen address (host:port)
	Address string

	// Path the upgrade is served on (default: "/")
	Path string

	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	AllowedOrigins []string

	// MaxLineLength bounds a single line (default: 512). Frames larger
	// than four times this are dropped by the WebSocket layer with 1009.
	MaxLineLength int

	// MaxConnections caps concurrent clients. Zero means unlimited.
	// Clients over the cap get an ERROR line and are disconnected.
	MaxConnections int

	// ShutdownTimeout bounds connection draining (default: 30s)
	ShutdownTimeout time.Duration

	// Logger for server events
	Logger *slog.Logger
}

// Server upgrades HTTP requests and hands each WebSocket to a ConnHandler.
type Server struct {
	config   Config
	handler  ConnHandler
	upgrader websocket.Upgrader
	connSem  chan struct{}
	wg       sync.WaitGroup
}

var _ http.Handler = (*Server)(nil)

// New creates a WebSocket server.
func New(cfg Config, h ConnHandler) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.MaxLineLength <= len(frame.Terminator) {
		cfg.MaxLineLength = frame.DefaultMaxLineLength
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		config:  cfg,
		handler: h,
	}
	s.upgrader = websocket.Upgrader{
		Subprotocols: []string{Subprotocol},
		CheckOrigin:  s.checkOrigin,
	}
	if cfg.MaxConnections > 0 {
		s.connSem = make(chan struct{}, cfg.MaxConnections)
	}
	return s
}

// Listen starts the WebSocket server and blocks until context is cancelled.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve runs the HTTP server on listener until ctx is cancelled, then
// drains upgraded connections like the TCP transport does.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, s)
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return connCtx },
	}

	s.config.Logger.Info("WebSocket server started",
		slog.String("address", listener.Addr().String()),
		slog.String("path", s.config.Path))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	s.config.Logger.Info("shutdown signal received, closing WebSocket server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked connections, so sessions are
	// tracked separately.
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.config.Logger.Error("error during shutdown", slog.String("error", err.Error()))
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.config.Logger.Info("WebSocket server shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		s.config.Logger.Warn("shutdown timeout exceeded, forcing connection closure")
		connCancel()
		select {
		case <-done:
		case <-time.After(1 * time.Second):
		}
		return ErrShutdownTimeout
	}
}

// ServeHTTP implements http.Handler interface.
// It upgrades the request and runs the session on the upgraded connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.config.Logger.Debug("failed to upgrade connection",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}
	ws.SetReadLimit(int64(readLimitFactor * s.config.MaxLineLength))

	s.wg.Add(1)
	defer s.wg.Done()

	conn := NewConn(ws)
	if !s.acquire() {
		s.reject(conn)
		return
	}
	defer s.release()

	s.config.Logger.Debug("websocket connection upgraded",
		slog.String("remote", r.RemoteAddr),
		slog.String("subprotocol", ws.Subprotocol()))

	if err := s.handler.HandleConnection(r.Context(), conn, Transport); err != nil {
		s.config.Logger.Debug("connection handler error",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()))
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

func (s *Server) reject(conn *Conn) {
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	s.config.Logger.Warn("connection limit reached", slog.String("remote", host))

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.Write([]byte(reply.Closing(host, "Too many connections")))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.config.AllowedOrigins, r.Header.Get("Origin"))
}
