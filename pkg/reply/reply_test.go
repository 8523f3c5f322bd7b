// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package reply

import (
	"errors"
	"strings"
	"testing"

	"github.com/absmach/mircd/pkg/registry"
)

var testBuilder = Builder{
	ServerName:  "ircd.test",
	Version:     "mircd-0.1",
	CreatedDate: "2026-10-14",
	Host:        "users.ircd.test",
	UserModes:   "ao",
	ChanModes:   "mtov",
}

func TestBuild_Greeting(t *testing.T) {
	bob := registry.Identity{DisplayName: "bob", AccountName: "bobby", Host: "10.1.1.1"}

	tests := []struct {
		kind Kind
		want string
	}{
		{Welcome, ":ircd.test 001 bob :Welcome to the Network bob!bobby@users.ircd.test\r\n"},
		{YourHost, ":ircd.test 002 bob :Your host is ircd.test, running version mircd-0.1\r\n"},
		{Created, ":ircd.test 003 bob :This server was created 2026-10-14\r\n"},
		{MyInfo, ":ircd.test 004 bob :ircd.test mircd-0.1 ao mtov\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Numeric(), func(t *testing.T) {
			got, err := testBuilder.Build(tt.kind, bob)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuild_HostFallback(t *testing.T) {
	b := testBuilder
	b.Host = ""

	got, _ := b.Build(Welcome, registry.Identity{DisplayName: "bob", AccountName: "bobby", Host: "10.1.1.1"})
	if !strings.HasSuffix(got, "bob!bobby@10.1.1.1\r\n") {
		t.Errorf("Build() = %q, want identity host", got)
	}

	got, _ = b.Build(Welcome, registry.Identity{DisplayName: "bob", AccountName: "bobby"})
	if !strings.HasSuffix(got, "bob!bobby@ircd.test\r\n") {
		t.Errorf("Build() = %q, want server name fallback", got)
	}
}

func TestBuild_Errors(t *testing.T) {
	unregistered := registry.Identity{}
	alice := registry.Identity{DisplayName: "alice", AccountName: "a"}

	tests := []struct {
		name   string
		kind   Kind
		id     registry.Identity
		params []string
		want   string
	}{
		{"in use", NicknameInUse, unregistered, []string{"bob"}, ":ircd.test 433 * bob :Nickname is already in use\r\n"},
		{"no nick", NoNicknameGiven, unregistered, nil, ":ircd.test 431 * :No nickname given\r\n"},
		{"erroneous", ErroneousNickname, unregistered, []string{"9x"}, ":ircd.test 432 * 9x :Erroneous nickname\r\n"},
		{"not registered", NotRegistered, unregistered, nil, ":ircd.test 451 * :You have not registered\r\n"},
		{"more params", NeedMoreParams, unregistered, []string{"USER"}, ":ircd.test 461 * USER :Not enough parameters\r\n"},
		{"reregister", AlreadyRegistered, alice, nil, ":ircd.test 462 alice :Unauthorized command (already registered)\r\n"},
		{"unknown", UnknownCommand, alice, []string{"JOIN"}, ":ircd.test 421 alice JOIN :Unknown command\r\n"},
		{"oper", YoureOper, alice, nil, ":ircd.test 381 alice :You are now an IRC operator\r\n"},
		{"bad pass", PasswdMismatch, alice, nil, ":ircd.test 464 alice :Password incorrect\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testBuilder.Build(tt.kind, tt.id, tt.params...)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuild_UnknownKind(t *testing.T) {
	for _, kind := range []Kind{0, -1, PasswdMismatch + 1} {
		if _, err := testBuilder.Build(kind, registry.Identity{}); !errors.Is(err, ErrUnknownReplyKind) {
			t.Errorf("Build(%d) error = %v, want ErrUnknownReplyKind", kind, err)
		}
		if kind.Numeric() != "" {
			t.Errorf("Numeric(%d) = %q, want empty", kind, kind.Numeric())
		}
	}
}

func TestBuild_MissingParams(t *testing.T) {
	if _, err := testBuilder.Build(NicknameInUse, registry.Identity{}); !errors.Is(err, ErrMissingParams) {
		t.Errorf("error = %v, want ErrMissingParams", err)
	}
}

func TestGreeting(t *testing.T) {
	got, err := testBuilder.Greeting(registry.Identity{DisplayName: "bob", AccountName: "bobby"})
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.SplitAfter(got, "\r\n")
	lines = lines[:len(lines)-1]
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4: %q", len(lines), got)
	}
	for i, numeric := range []string{"001", "002", "003", "004"} {
		if !strings.HasPrefix(lines[i], ":ircd.test "+numeric+" bob ") {
			t.Errorf("line %d = %q, want numeric %s", i, lines[i], numeric)
		}
	}
}

func TestNonNumeric(t *testing.T) {
	if got := testBuilder.Pong("abc"); got != ":ircd.test PONG ircd.test :abc\r\n" {
		t.Errorf("Pong() = %q", got)
	}
	if got := testBuilder.Pong(""); got != ":ircd.test PONG ircd.test :ircd.test\r\n" {
		t.Errorf("Pong(\"\") = %q", got)
	}

	old := registry.Identity{DisplayName: "bob", AccountName: "bobby"}
	if got := testBuilder.NickChange(old, "rob"); got != ":bob!bobby@users.ircd.test NICK :rob\r\n" {
		t.Errorf("NickChange() = %q", got)
	}

	if got := Closing("10.0.0.1", "Quit: bye"); got != "ERROR :Closing Link: 10.0.0.1 (Quit: bye)\r\n" {
		t.Errorf("Closing() = %q", got)
	}
}
