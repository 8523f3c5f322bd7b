// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package parser splits IRC protocol lines into commands and arguments.
//
// # Line Format
//
// A line handed to Parse has already lost its CR LF terminator (see package
// frame). Its shape is:
//
//	[:prefix] COMMAND [arg1 arg2 ... argN] [:trailing argument]
//
// The optional prefix names the origin and is kept in Message.Prefix.
// The command name is case-sensitive. Arguments are separated by one or more
// spaces; runs of spaces collapse, so no empty middle argument is ever
// produced. A token that starts with ':' begins the trailing argument, which
// keeps its inner spaces and may be empty.
//
// # Limits
//
// A message carries at most MaxArgs (15) arguments. After 14 middle
// arguments the remainder of the line is taken verbatim as the last one.
//
// # Errors
//
// A line with no command name (empty, spaces only, or a bare prefix) fails
// with ErrMalformedCommand. Callers drop such lines and keep the connection.
//
// # Example
//
//	msg, err := parser.Parse("USER alice 0 * :Alice A")
//	// msg.Command == "USER"
//	// msg.Args    == []string{"alice", "0", "*", "Alice A"}
package parser
