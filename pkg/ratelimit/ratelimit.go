// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit provides rate limiting using token bucket algorithm.
package ratelimit

import (
	"sync"
	"time"

	mircerrors "github.com/absmach/mircd/pkg/errors"
)

var (
	// ErrRateLimitExceeded is returned when rate limit is exceeded.
	ErrRateLimitExceeded = mircerrors.ErrRateLimited
)

// TokenBucket implements the token bucket algorithm for rate limiting.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a new token bucket rate limiter.
// capacity is the maximum number of tokens, which is also the burst size.
// refillRate is the number of tokens added per second.
func NewTokenBucket(capacity int64, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity int64, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow checks if a request should be allowed.
// Returns true if allowed, false if rate limited.
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN checks if N requests should be allowed.
func (tb *TokenBucket) AllowN(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// refill adds tokens based on elapsed time. Fractions are kept so that
// slow refill rates still make progress between calls.
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.lastRefill = now
	if elapsed <= 0 {
		return
	}
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
}

// Available returns the number of whole tokens available.
func (tb *TokenBucket) Available() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return int64(tb.tokens)
}

type entry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// Limiter manages per-client rate limiters, typically keyed by client IP
// or session ID.
type Limiter struct {
	mu         sync.Mutex
	limiters   map[string]*entry
	capacity   int64
	refillRate float64
	maxClients int
	idleTTL    time.Duration
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

// NewLimiter creates a new rate limiter with per-client tracking. Clients
// idle for longer than idleTTL are forgotten by a background sweep;
// zero selects 5 minutes.
func NewLimiter(capacity int64, refillRate float64, maxClients int, idleTTL time.Duration) *Limiter {
	l := newLimiter(capacity, refillRate, maxClients, idleTTL, time.Now)
	go l.sweep()
	return l
}

func newLimiter(capacity int64, refillRate float64, maxClients int, idleTTL time.Duration, now func() time.Time) *Limiter {
	if maxClients == 0 {
		maxClients = 10000
	}
	if idleTTL == 0 {
		idleTTL = 5 * time.Minute
	}
	return &Limiter{
		limiters:   make(map[string]*entry),
		capacity:   capacity,
		refillRate: refillRate,
		maxClients: maxClients,
		idleTTL:    idleTTL,
		now:        now,
		done:       make(chan struct{}),
	}
}

// Allow checks if a request from the given client should be allowed.
func (l *Limiter) Allow(clientID string) bool {
	return l.AllowN(clientID, 1)
}

// AllowN checks if N requests from the given client should be allowed.
// New clients are refused once maxClients are being tracked.
func (l *Limiter) AllowN(clientID string, n int64) bool {
	l.mu.Lock()
	e, ok := l.limiters[clientID]
	if !ok {
		if len(l.limiters) >= l.maxClients {
			l.mu.Unlock()
			return false
		}
		e = &entry{bucket: newTokenBucket(l.capacity, l.refillRate, l.now)}
		l.limiters[clientID] = e
	}
	e.lastSeen = l.now()
	l.mu.Unlock()

	return e.bucket.AllowN(n)
}

// Remove removes a client's rate limiter.
func (l *Limiter) Remove(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, clientID)
}

// Stats returns the number of tracked clients.
func (l *Limiter) Stats() (clients int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

// evictIdle drops clients not seen within idleTTL.
func (l *Limiter) evictIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	evicted := 0
	for id, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
			evicted++
		}
	}
	return evicted
}
