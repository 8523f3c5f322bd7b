// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	if err := New("read", "tcp", "s1", "127.0.0.1:1", nil); err != nil {
		t.Fatalf("New(nil) = %v, want nil", err)
	}

	err := New("read", "tcp", "s1", "127.0.0.1:1", ErrLineTooLong)
	if !errors.Is(err, ErrLineTooLong) {
		t.Errorf("errors.Is(%v, ErrLineTooLong) = false", err)
	}

	var serr *SessionError
	if !errors.As(err, &serr) {
		t.Fatalf("errors.As(%v) failed", err)
	}
	if serr.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", serr.SessionID)
	}

	want := "tcp read [s1] 127.0.0.1:1: line too long"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noSession := New("accept", "websocket", "", "10.0.0.1:2", ErrTimeout)
	if strings.Contains(noSession.Error(), "[") {
		t.Errorf("Error() = %q, should omit empty session", noSession.Error())
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}

	err := Wrap(ErrDuplicateIdentity, "register bob")
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Errorf("Wrap lost the sentinel: %v", err)
	}
	if err.Error() != "register bob: duplicate identity" {
		t.Errorf("Error() = %q", err.Error())
	}
}
