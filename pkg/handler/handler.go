// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import "context"

// Context contains connection metadata and the registration details
// collected so far. It is passed to Handler methods.
type Context struct {
	// SessionID is a unique identifier for this connection/session
	SessionID string

	// Nick is the display name, set once registration completes
	Nick string

	// User is the account name from USER
	User string

	// RealName is the trailing USER argument
	RealName string

	// RemoteAddr is the client's network address
	RemoteAddr string

	// Transport indicates how the client is connected (tcp, websocket)
	Transport string

	// Operator is set after a successful OPER
	Operator bool
}

// Handler defines authorization and notification callbacks for session events.
// The session calls these methods at fixed points in the connection lifecycle.
//
// Authorization methods (AuthConnect, AuthCommand, AuthRegister) are called
// BEFORE the session acts. They can:
// - Return an error to reject the action and close the connection
// - Modify mutable parameters (args, nick, user) via pointers
//
// Notification methods (OnRegister, OnDisconnect) are called AFTER the event
// for audit logging, metrics, or post-processing. Errors from these methods
// are logged but don't change the outcome.
type Handler interface {
	// AuthConnect authorizes a newly accepted connection before any line is read.
	AuthConnect(ctx context.Context, hctx *Context) error

	// AuthCommand authorizes one parsed command. The arguments can be
	// modified via the pointer.
	AuthCommand(ctx context.Context, hctx *Context, command string, args *[]string) error

	// AuthRegister authorizes a completed NICK/USER pair before the identity
	// is added to the registry. Nick and user can be rewritten.
	AuthRegister(ctx context.Context, hctx *Context, nick, user *string) error

	// OnRegister is called after the greeting has been sent.
	OnRegister(ctx context.Context, hctx *Context) error

	// OnDisconnect is called when a client disconnects (gracefully or due to error).
	OnDisconnect(ctx context.Context, hctx *Context) error
}

// NoopHandler is a Handler implementation that allows all operations.
// Useful for testing or when no authorization is needed.
type NoopHandler struct{}

var _ Handler = (*NoopHandler)(nil)

func (h *NoopHandler) AuthConnect(ctx context.Context, hctx *Context) error {
	return nil
}

func (h *NoopHandler) AuthCommand(ctx context.Context, hctx *Context, command string, args *[]string) error {
	return nil
}

func (h *NoopHandler) AuthRegister(ctx context.Context, hctx *Context, nick, user *string) error {
	return nil
}

func (h *NoopHandler) OnRegister(ctx context.Context, hctx *Context) error {
	return nil
}

func (h *NoopHandler) OnDisconnect(ctx context.Context, hctx *Context) error {
	return nil
}
