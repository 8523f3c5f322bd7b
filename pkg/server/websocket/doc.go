// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package websocket implements the WebSocket transport of the server.
//
// Browsers cannot open raw TCP sockets, so the server also accepts IRC
// over WebSocket following the IRCv3 convention: every text message holds
// exactly one line, without the CRLF terminator. The text.ircv3.net
// subprotocol is selected when the client offers it.
//
// # Conn Adapter
//
// Conn wraps a gorilla websocket.Conn as a net.Conn so the regular session
// code runs unchanged:
//
//   - Read(): Yields each message as a CRLF terminated line
//   - Write(): Sends each complete line as one text message
//   - Close(): Closes the WebSocket connection
//
// # Graceful Shutdown
//
// http.Server.Shutdown does not wait for hijacked connections, so the
// server tracks upgraded sessions itself and cancels them once
// ShutdownTimeout expires, returning ErrShutdownTimeout.
package websocket
