// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package errors provides structured error handling for mircd.
package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// ErrMalformedCommand indicates a line that cannot be parsed into a command.
	// The line is dropped and the connection stays open.
	ErrMalformedCommand = errors.New("malformed command")

	// ErrLineTooLong indicates a line exceeding the maximum line length.
	// The connection is closed.
	ErrLineTooLong = errors.New("line too long")

	// ErrDuplicateIdentity indicates the display name is already registered.
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// ErrUnknownIdentity indicates the display name is not registered.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrUnknownReplyKind indicates a reply kind outside the known set.
	ErrUnknownReplyKind = errors.New("unknown reply kind")

	// ErrMissingParams indicates a reply kind rendered without its parameters.
	ErrMissingParams = errors.New("missing reply parameters")

	// ErrTimeout indicates an operation timeout.
	ErrTimeout = errors.New("timeout")

	// ErrConnectionClosed indicates the connection was closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrRateLimited indicates rate limit exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// SessionError wraps an error with the session that produced it.
type SessionError struct {
	Op         string // Operation that failed
	Transport  string // Transport (tcp, websocket)
	SessionID  string // Session identifier
	RemoteAddr string // Client address
	Err        error  // Underlying error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s %s [%s] %s: %v", e.Transport, e.Op, e.SessionID, e.RemoteAddr, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Transport, e.Op, e.RemoteAddr, e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionError) Unwrap() error {
	return e.Err
}

// New creates a new SessionError.
func New(op, transport, sessionID, remoteAddr string, err error) error {
	if err == nil {
		return nil
	}
	return &SessionError{
		Op:         op,
		Transport:  transport,
		SessionID:  sessionID,
		RemoteAddr: remoteAddr,
		Err:        err,
	}
}

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
