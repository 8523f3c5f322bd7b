// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"fmt"
	"strings"

	mircerrors "github.com/absmach/mircd/pkg/errors"
)

// MaxArgs is the maximum number of arguments a message can carry.
const MaxArgs = 15

// ErrMalformedCommand is returned for lines without a command name.
var ErrMalformedCommand = mircerrors.ErrMalformedCommand

// Message is one parsed protocol line.
type Message struct {
	// Prefix is the optional origin, without the leading colon.
	Prefix string

	// Command is the case-sensitive command name (NICK, USER, ...).
	Command string

	// Args are the ordered arguments, trailing argument included.
	Args []string
}

// Arg returns the i-th argument or an empty string.
func (m Message) Arg(i int) string {
	if i < 0 || i >= len(m.Args) {
		return ""
	}
	return m.Args[i]
}

// String renders the message in wire form, without the terminator.
func (m Message) String() string {
	var b strings.Builder
	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}
	b.WriteString(m.Command)
	for i, arg := range m.Args {
		b.WriteByte(' ')
		if i == len(m.Args)-1 && (arg == "" || strings.HasPrefix(arg, ":") || strings.Contains(arg, " ")) {
			b.WriteByte(':')
		}
		b.WriteString(arg)
	}
	return b.String()
}

// Parse splits a line, terminator already removed, into a Message.
//
// Tokens are separated by one or more spaces, so doubled spaces never
// produce empty arguments. A token starting with ':' opens the trailing
// argument, which runs to the end of the line with its spaces kept. Once
// 14 middle arguments are read, the rest of the line becomes the 15th.
func Parse(line string) (Message, error) {
	var msg Message

	rest := strings.TrimLeft(line, " ")
	if strings.HasPrefix(rest, ":") {
		var prefix string
		prefix, rest = cut(rest[1:])
		if prefix == "" {
			return Message{}, fmt.Errorf("%w: empty prefix", ErrMalformedCommand)
		}
		msg.Prefix = prefix
	}

	msg.Command, rest = cut(rest)
	if msg.Command == "" {
		return Message{}, fmt.Errorf("%w: missing command in %q", ErrMalformedCommand, line)
	}

	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		if strings.HasPrefix(rest, ":") {
			msg.Args = append(msg.Args, rest[1:])
			break
		}
		if len(msg.Args) == MaxArgs-1 {
			msg.Args = append(msg.Args, rest)
			break
		}

		var arg string
		arg, rest = cut(rest)
		msg.Args = append(msg.Args, arg)
	}

	return msg, nil
}

// cut returns the first space-delimited token of s and the remainder.
func cut(s string) (string, string) {
	tok, rest, _ := strings.Cut(s, " ")
	return tok, rest
}
