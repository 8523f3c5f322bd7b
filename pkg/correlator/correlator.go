// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package correlator pairs commands that only make sense together.
//
// Registration needs both NICK and USER before an identity exists, and
// clients may send them in either order. A Correlator holds at most one
// pending half per connection and reports a Pair once its partner arrives.
package correlator

import "github.com/absmach/mircd/pkg/parser"

// DefaultLinks pairs the two registration commands.
var DefaultLinks = map[string]string{
	"NICK": "USER",
	"USER": "NICK",
}

// Status is the outcome of Correlate.
type Status int

const (
	// Pending means the message was stored to wait for its partner.
	Pending Status = iota

	// Ready means the returned Pair can be dispatched.
	Ready
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// PendingCommand is a stored message waiting for its partner.
type PendingCommand struct {
	Message      parser.Message
	NeedsPartner bool
	Partner      *parser.Message
}

// Pair is a dispatchable unit: a single message, or two linked ones.
type Pair struct {
	First  parser.Message
	Second *parser.Message
}

// Complete reports whether the pair holds two linked messages.
func (p Pair) Complete() bool {
	return p.Second != nil
}

// Lookup returns the message of the given command type.
func (p Pair) Lookup(command string) (parser.Message, bool) {
	if p.First.Command == command {
		return p.First, true
	}
	if p.Second != nil && p.Second.Command == command {
		return *p.Second, true
	}
	return parser.Message{}, false
}

// Correlator tracks the pending half of a linked command for one connection.
// It is not safe for concurrent use.
type Correlator struct {
	links   map[string]string
	pending *PendingCommand
}

// New creates a correlator for the given link table. A nil table selects
// DefaultLinks.
func New(links map[string]string) *Correlator {
	if links == nil {
		links = DefaultLinks
	}
	return &Correlator{links: links}
}

// Linked reports whether command needs a partner.
func (c *Correlator) Linked(command string) bool {
	_, ok := c.links[command]
	return ok
}

// Correlate feeds one message and reports whether a pair is ready.
//
// Unlinked commands are Ready at once as a single-message pair. A linked
// command completes the pair if its partner is pending, otherwise it is
// stored. A second message of the same type replaces the stale one.
func (c *Correlator) Correlate(msg parser.Message) (Pair, Status) {
	partner, linked := c.links[msg.Command]
	if !linked {
		return Pair{First: msg}, Ready
	}

	if c.pending != nil && c.pending.Message.Command == partner {
		done := *c.pending
		done.Partner = &msg
		done.NeedsPartner = false
		c.pending = nil
		return Pair{First: done.Message, Second: done.Partner}, Ready
	}

	c.pending = &PendingCommand{Message: msg, NeedsPartner: true}
	return Pair{}, Pending
}

// Park stores msg as the pending half without pairing it. It is used to
// keep one half of a rejected pair so a corrected partner can complete it.
func (c *Correlator) Park(msg parser.Message) {
	if !c.Linked(msg.Command) {
		return
	}
	c.pending = &PendingCommand{Message: msg, NeedsPartner: true}
}

// Pending returns a copy of the stored message, if any.
func (c *Correlator) Pending() (PendingCommand, bool) {
	if c.pending == nil {
		return PendingCommand{}, false
	}
	return *c.pending, true
}

// Reset releases the pending message.
func (c *Correlator) Reset() {
	c.pending = nil
}
