// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package session runs the per-connection state machine of the server.
//
// A session owns one frame decoder and one command correlator. Bytes read
// from the connection are split into lines, parsed, offered to the
// handler.Handler, and then dispatched by registration state:
//
//	Connected ──NICK|USER──▶ Registering ──pair──▶ Registered
//	    │                        │ ▲                    │
//	    │                        └─┘ 433, USER parked   │
//	    └──────────── EOF, QUIT, error ────────────────▶ Closed
//
// A completed NICK/USER pair is added to the shared Directory exactly once.
// On success the 001-004 greeting is written in order. A taken nickname
// yields 433 and keeps the USER half so the client only needs to resend NICK.
//
// Closing a session, for any reason, removes its identity from the Directory
// and releases the pending registration command.
package session
