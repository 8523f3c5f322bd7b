// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package reply renders server replies in wire format.
package reply

import (
	"fmt"
	"strings"

	mircerrors "github.com/absmach/mircd/pkg/errors"
	"github.com/absmach/mircd/pkg/registry"
)

var (
	// ErrUnknownReplyKind is returned for a kind outside the known set.
	ErrUnknownReplyKind = mircerrors.ErrUnknownReplyKind

	// ErrMissingParams is returned when a kind is built without its parameters.
	ErrMissingParams = mircerrors.ErrMissingParams
)

// Kind identifies a numeric reply.
type Kind int

const (
	Welcome Kind = iota + 1
	YourHost
	Created
	MyInfo
	YoureOper
	UnknownCommand
	NoNicknameGiven
	ErroneousNickname
	NicknameInUse
	NotRegistered
	NeedMoreParams
	AlreadyRegistered
	PasswdMismatch
)

// Greeting is the reply sequence sent once registration completes.
var Greeting = []Kind{Welcome, YourHost, Created, MyInfo}

type template struct {
	numeric string
	params  int
	format  func(b Builder, id registry.Identity, params []string) string
}

var templates = map[Kind]template{
	Welcome: {"001", 0, func(b Builder, id registry.Identity, _ []string) string {
		return fmt.Sprintf(":Welcome to the Network %s!%s@%s", id.DisplayName, id.AccountName, b.host(id))
	}},
	YourHost: {"002", 0, func(b Builder, _ registry.Identity, _ []string) string {
		return fmt.Sprintf(":Your host is %s, running version %s", b.ServerName, b.Version)
	}},
	Created: {"003", 0, func(b Builder, _ registry.Identity, _ []string) string {
		return fmt.Sprintf(":This server was created %s", b.CreatedDate)
	}},
	MyInfo: {"004", 0, func(b Builder, _ registry.Identity, _ []string) string {
		return fmt.Sprintf(":%s %s %s %s", b.ServerName, b.Version, b.UserModes, b.ChanModes)
	}},
	YoureOper: {"381", 0, func(Builder, registry.Identity, []string) string {
		return ":You are now an IRC operator"
	}},
	UnknownCommand: {"421", 1, func(_ Builder, _ registry.Identity, p []string) string {
		return p[0] + " :Unknown command"
	}},
	NoNicknameGiven: {"431", 0, func(Builder, registry.Identity, []string) string {
		return ":No nickname given"
	}},
	ErroneousNickname: {"432", 1, func(_ Builder, _ registry.Identity, p []string) string {
		return p[0] + " :Erroneous nickname"
	}},
	NicknameInUse: {"433", 1, func(_ Builder, _ registry.Identity, p []string) string {
		return p[0] + " :Nickname is already in use"
	}},
	NotRegistered: {"451", 0, func(Builder, registry.Identity, []string) string {
		return ":You have not registered"
	}},
	NeedMoreParams: {"461", 1, func(_ Builder, _ registry.Identity, p []string) string {
		return p[0] + " :Not enough parameters"
	}},
	AlreadyRegistered: {"462", 0, func(Builder, registry.Identity, []string) string {
		return ":Unauthorized command (already registered)"
	}},
	PasswdMismatch: {"464", 0, func(Builder, registry.Identity, []string) string {
		return ":Password incorrect"
	}},
}

// Numeric returns the three digit code of kind.
func (k Kind) Numeric() string {
	if t, ok := templates[k]; ok {
		return t.numeric
	}
	return ""
}

// Builder renders replies for one server.
type Builder struct {
	ServerName  string
	Version     string
	CreatedDate string

	// Host overrides the client host in the welcome mask when set.
	Host string

	UserModes string
	ChanModes string
}

// Build renders kind for the target identity, terminator included. Kinds
// that name a command or nickname take it as the first param.
func (b Builder) Build(kind Kind, id registry.Identity, params ...string) (string, error) {
	t, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownReplyKind, kind)
	}
	if len(params) < t.params {
		return "", fmt.Errorf("%w: %s needs %d", ErrMissingParams, t.numeric, t.params)
	}

	target := id.DisplayName
	if target == "" {
		target = "*"
	}

	return fmt.Sprintf(":%s %s %s %s\r\n", b.ServerName, t.numeric, target, t.format(b, id, params)), nil
}

// Greeting renders the registration replies in order.
func (b Builder) Greeting(id registry.Identity) (string, error) {
	var sb strings.Builder
	for _, kind := range Greeting {
		line, err := b.Build(kind, id)
		if err != nil {
			return "", err
		}
		sb.WriteString(line)
	}
	return sb.String(), nil
}

// Pong answers a PING.
func (b Builder) Pong(token string) string {
	if token == "" {
		token = b.ServerName
	}
	return fmt.Sprintf(":%s PONG %s :%s\r\n", b.ServerName, b.ServerName, token)
}

// NickChange announces a nickname change to the client.
func (b Builder) NickChange(old registry.Identity, newNick string) string {
	return fmt.Sprintf(":%s!%s@%s NICK :%s\r\n", old.DisplayName, old.AccountName, b.host(old), newNick)
}

// Closing is the last line sent before the server drops a connection.
func Closing(host, reason string) string {
	return fmt.Sprintf("ERROR :Closing Link: %s (%s)\r\n", host, reason)
}

func (b Builder) host(id registry.Identity) string {
	if b.Host != "" {
		return b.Host
	}
	if id.Host != "" {
		return id.Host
	}
	return b.ServerName
}
