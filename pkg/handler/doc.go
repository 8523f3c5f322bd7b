// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package handler provides the hook interface that links sessions to application logic.
//
// # Architecture Overview
//
// The Handler interface is the bridge between the connection session and
// application-level policy (rate limits, bans, audit logs, metrics). The
// session calls the Handler at fixed points; the Handler never touches the
// socket.
//
// # Data Flow
//
//	Client → Transport → Session (AuthConnect)
//	Line   → Parser → Session (AuthCommand) → Correlator
//	Pair   → Session (AuthRegister) → Registry → Greeting (OnRegister)
//	Close  → Session (OnDisconnect)
//
// # Handler Methods
//
// Authorization methods (Auth*) are called before the session acts:
//   - AuthConnect: Admits or rejects a new connection
//   - AuthCommand: Admits each parsed command (flood control, filtering)
//   - AuthRegister: Admits a completed NICK/USER pair
//
// Notification methods (On*) are called after the event:
//   - OnRegister: Notifies a completed registration
//   - OnDisconnect: Notifies disconnection
//
// # Context
//
// The Context struct carries session metadata across all handler calls:
//   - SessionID: Unique identifier for this connection/session
//   - Nick, User, RealName: Registration details
//   - RemoteAddr: Client's network address
//   - Transport: tcp or websocket
//   - Operator: Set after a successful OPER
//
// # Implementation
//
// Handlers are usually composed as wrappers around a base handler, each one
// adding a concern and delegating the rest. The NoopHandler provides a
// pass-through implementation for testing or when no policy is needed.
//
// # Example
//
//	type BanHandler struct {
//		handler.NoopHandler
//		banned map[string]bool
//	}
//
//	func (h *BanHandler) AuthRegister(ctx context.Context, hctx *handler.Context, nick, user *string) error {
//		if h.banned[*nick] {
//			return errors.New("banned")
//		}
//		return nil
//	}
package handler
