// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistry_RegisterLookupRemove(t *testing.T) {
	r := New()
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	id, err := r.Register("bob", "bobby", server,
		WithRealName("Bob B"), WithHost("10.0.0.7"), WithSession("s-1"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if id.DisplayName != "bob" || id.AccountName != "bobby" || id.RealName != "Bob B" ||
		id.Host != "10.0.0.7" || id.SessionID != "s-1" || id.Conn != server {
		t.Errorf("Register() = %+v", id)
	}
	if id.RegisteredAt.IsZero() {
		t.Error("RegisteredAt not set")
	}

	got, ok := r.Lookup("bob")
	if !ok || got.AccountName != "bobby" {
		t.Errorf("Lookup(bob) = %+v, %v", got, ok)
	}
	if _, ok := r.Lookup("BOB"); !ok {
		t.Error("Lookup should fold case")
	}
	if _, ok := r.Lookup("alice"); ok {
		t.Error("Lookup(alice) should miss")
	}

	r.Remove("bob")
	r.Remove("bob")
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Remove, want 0", r.Len())
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	r := New()
	if _, err := r.Register("Alice", "a", nil); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"Alice", "alice", "ALICE"} {
		_, err := r.Register(name, "other", nil)
		if !errors.Is(err, ErrDuplicateIdentity) {
			t.Errorf("Register(%q) error = %v, want ErrDuplicateIdentity", name, err)
		}
	}

	got, _ := r.Lookup("alice")
	if got.AccountName != "a" {
		t.Errorf("duplicate overwrote the entry: %+v", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ConcurrentDuplicate(t *testing.T) {
	r := New()
	const workers = 64

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		dup       atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := r.Register("carol", fmt.Sprintf("user%d", i), nil)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrDuplicateIdentity):
				dup.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if succeeded.Load() != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded.Load())
	}
	if dup.Load() != workers-1 {
		t.Errorf("duplicates = %d, want %d", dup.Load(), workers-1)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_Rename(t *testing.T) {
	r := New()
	r.Register("dave", "d", nil)
	r.Register("erin", "e", nil)

	if _, err := r.Rename("dave", "erin"); !errors.Is(err, ErrDuplicateIdentity) {
		t.Errorf("Rename to taken name error = %v", err)
	}
	if _, err := r.Rename("nobody", "x"); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("Rename unknown error = %v", err)
	}

	id, err := r.Rename("dave", "Dave")
	if err != nil {
		t.Fatalf("case-only rename error = %v", err)
	}
	if id.DisplayName != "Dave" {
		t.Errorf("DisplayName = %q", id.DisplayName)
	}

	if _, err := r.Rename("Dave", "frank"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Lookup("dave"); ok {
		t.Error("old name still registered")
	}
	if got, ok := r.Lookup("frank"); !ok || got.AccountName != "d" {
		t.Errorf("Lookup(frank) = %+v, %v", got, ok)
	}
	if !slices.Equal(r.Names(), []string{"erin", "frank"}) {
		t.Errorf("Names() = %v", r.Names())
	}
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := New()
	r.Register("gina", "g", nil)

	id, _ := r.Lookup("gina")
	id.AccountName = "mutated"

	again, _ := r.Lookup("gina")
	if again.AccountName != "g" {
		t.Errorf("registry entry mutated through copy: %+v", again)
	}
}
