// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package tcp implements the plain TCP transport of the server.
//
// # Overview
//
// The server accepts connections and runs each one in its own goroutine
// through a ConnHandler, normally a session.Service. It knows nothing about
// the line protocol beyond the ERROR line sent to clients rejected by the
// connection limit.
//
//	┌─────────┐         ┌─────────┐         ┌─────────────┐
//	│ Client  │ ←─TCP─→ │  Server │ ──────→ │ ConnHandler │
//	└─────────┘         └─────────┘         └─────────────┘
//
// # Connection Flow
//
//  1. Server accepts a connection
//  2. A slot is taken from the MaxConnections semaphore, if configured
//  3. TCP_NODELAY and keep-alive are applied
//  4. HandleConnection runs until the client leaves
//  5. The slot is released
//
// # Graceful Shutdown
//
// When context is canceled:
//
//  1. Server stops accepting new connections
//  2. Server waits for existing connections (with timeout)
//  3. After ShutdownTimeout, cancels the connection context so that
//     every session closes its socket
//  4. Returns ErrShutdownTimeout if timeout exceeded
//
// # Configuration
//
//   - Address: Server listen address (e.g., ":6667")
//   - MaxConnections: Concurrent client cap (default: unlimited)
//   - TCPKeepAlive: Keep-alive period (default: OS)
//   - DisableNoDelay: Re-enable Nagle's algorithm
//   - ShutdownTimeout: Max wait time for graceful shutdown (default: 30s)
//   - Logger: Structured logger
//
// # Example
//
//	svc := session.NewService(sessionCfg, registry.New(), handler)
//
//	server := tcp.New(tcp.Config{Address: ":6667"}, svc)
//	if err := server.Listen(ctx); err != nil {
//		log.Fatal(err)
//	}
package tcp
