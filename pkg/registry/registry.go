// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package registry keeps the directory of registered client identities.
package registry

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"sync"
	"time"

	mircerrors "github.com/absmach/mircd/pkg/errors"
)

var (
	// ErrDuplicateIdentity is returned when the display name is taken.
	ErrDuplicateIdentity = mircerrors.ErrDuplicateIdentity

	// ErrUnknownIdentity is returned when renaming a name that is not registered.
	ErrUnknownIdentity = mircerrors.ErrUnknownIdentity
)

// Identity is a registered client.
type Identity struct {
	// DisplayName is the nickname, as the client spelled it.
	DisplayName string

	// AccountName is the USER name.
	AccountName string

	// RealName is the USER trailing argument.
	RealName string

	// Host is the client host used in reply masks.
	Host string

	// SessionID identifies the owning session.
	SessionID string

	// Conn is the client transport. The registry does not own it.
	Conn net.Conn

	// RegisteredAt is when the registration completed.
	RegisteredAt time.Time
}

// Option sets optional Identity fields on Register.
type Option func(*Identity)

// WithRealName sets Identity.RealName.
func WithRealName(name string) Option {
	return func(id *Identity) { id.RealName = name }
}

// WithHost sets Identity.Host.
func WithHost(host string) Option {
	return func(id *Identity) { id.Host = host }
}

// WithSession sets Identity.SessionID.
func WithSession(sessionID string) Option {
	return func(id *Identity) { id.SessionID = sessionID }
}

// Registry maps display names to identities. Names are compared
// case-insensitively. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	identities map[string]*Identity
	now        func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		identities: make(map[string]*Identity),
		now:        time.Now,
	}
}

// Register adds an identity. It fails with ErrDuplicateIdentity if the
// display name is already present.
func (r *Registry) Register(displayName, accountName string, conn net.Conn, opts ...Option) (Identity, error) {
	id := &Identity{
		DisplayName: displayName,
		AccountName: accountName,
		Conn:        conn,
	}
	for _, opt := range opts {
		opt(id)
	}

	key := fold(displayName)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.identities[key]; exists {
		return Identity{}, fmt.Errorf("%w: %s", ErrDuplicateIdentity, displayName)
	}
	id.RegisteredAt = r.now()
	r.identities[key] = id

	return *id, nil
}

// Lookup returns the identity registered under displayName.
func (r *Registry) Lookup(displayName string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.identities[fold(displayName)]
	if !ok {
		return Identity{}, false
	}
	return *id, true
}

// Remove deletes the identity registered under displayName. Removing an
// absent name is a no-op.
func (r *Registry) Remove(displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.identities, fold(displayName))
}

// Rename moves an identity to a new display name in one step.
func (r *Registry) Rename(oldName, newName string) (Identity, error) {
	oldKey, newKey := fold(oldName), fold(newName)

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.identities[oldKey]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnknownIdentity, oldName)
	}
	if _, taken := r.identities[newKey]; taken && newKey != oldKey {
		return Identity{}, fmt.Errorf("%w: %s", ErrDuplicateIdentity, newName)
	}

	delete(r.identities, oldKey)
	id.DisplayName = newName
	r.identities[newKey] = id

	return *id, nil
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}

// Names returns the registered display names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.identities))
	for _, id := range r.identities {
		names = append(names, id.DisplayName)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// fold maps a display name to its registry key.
func fold(name string) string {
	return strings.ToLower(name)
}
