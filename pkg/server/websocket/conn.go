// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package websocket

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/absmach/mircd/pkg/frame"
	"github.com/gorilla/websocket"
)

// Conn is a websocket wrapper that satisfies the net.Conn interface.
// Each text message carries one protocol line. Read yields messages as
// CRLF terminated lines and Write sends every complete line as its own
// message, so a session sees the same byte stream as over TCP.
type Conn struct {
	*websocket.Conn
	rbuf []byte
	wbuf []byte
	rio  sync.Mutex
	wio  sync.Mutex
}

var _ net.Conn = (*Conn)(nil)

// NewConn wraps a websocket.Conn to implement net.Conn interface.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		Conn: ws,
	}
}

// SetDeadline sets both the read and write deadlines.
func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

// Read returns the next line, reading a new message when the previous
// one is exhausted. A terminator is added when the client left it out.
func (c *Conn) Read(p []byte) (int, error) {
	c.rio.Lock()
	defer c.rio.Unlock()

	for len(c.rbuf) == 0 {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return 0, err
		}
		msg = bytes.TrimRight(msg, "\r\n")
		if len(msg) == 0 {
			continue
		}
		c.rbuf = append(msg, frame.Terminator...)
	}

	n := copy(p, c.rbuf)
	c.rbuf = c.rbuf[n:]
	return n, nil
}

// Write sends each complete line in p as a text message without its
// terminator. A trailing partial line is held until it is completed.
func (c *Conn) Write(p []byte) (int, error) {
	c.wio.Lock()
	defer c.wio.Unlock()

	c.wbuf = append(c.wbuf, p...)
	for {
		i := bytes.Index(c.wbuf, frame.Terminator)
		if i < 0 {
			break
		}
		if err := c.WriteMessage(websocket.TextMessage, c.wbuf[:i]); err != nil {
			c.wbuf = nil
			return 0, err
		}
		c.wbuf = c.wbuf[i+len(frame.Terminator):]
	}
	if len(c.wbuf) == 0 {
		c.wbuf = nil
	}
	return len(p), nil
}

// Close closes the websocket connection.
func (c *Conn) Close() error {
	return c.Conn.Close()
}
