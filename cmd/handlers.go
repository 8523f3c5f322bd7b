// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/absmach/mircd/pkg/handler"
	"github.com/absmach/mircd/pkg/metrics"
	"github.com/absmach/mircd/pkg/ratelimit"
	"github.com/absmach/mircd/pkg/session"
)

var (
	_ handler.Handler = (*RateLimitedHandler)(nil)
	_ handler.Handler = (*InstrumentedHandler)(nil)
)

// RateLimitedHandler wraps a handler with rate limiting.
type RateLimitedHandler struct {
	handler       handler.Handler
	perIPLimiter  *ratelimit.Limiter
	globalLimiter *ratelimit.TokenBucket
	floodLimiter  *ratelimit.Limiter
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// AuthConnect implements handler.Handler with global and per-IP connect limits.
func (h *RateLimitedHandler) AuthConnect(ctx context.Context, hctx *handler.Context) error {
	if !h.globalLimiter.Allow() {
		h.metrics.ObserveRateLimited(hctx.Transport, "global")
		h.logger.Warn("Global rate limit exceeded",
			slog.String("remote", hctx.RemoteAddr),
			slog.String("transport", hctx.Transport))
		return ratelimit.ErrRateLimitExceeded
	}

	ip := clientIP(hctx.RemoteAddr)
	if !h.perIPLimiter.Allow(ip) {
		h.metrics.ObserveRateLimited(hctx.Transport, "per_ip")
		h.logger.Warn("Per-IP rate limit exceeded",
			slog.String("ip", ip),
			slog.String("transport", hctx.Transport))
		return ratelimit.ErrRateLimitExceeded
	}

	return h.handler.AuthConnect(ctx, hctx)
}

// AuthCommand implements handler.Handler with per-session flood control.
func (h *RateLimitedHandler) AuthCommand(ctx context.Context, hctx *handler.Context, command string, args *[]string) error {
	if !h.floodLimiter.Allow(hctx.SessionID) {
		h.metrics.ObserveRateLimited(hctx.Transport, "flood")
		h.logger.Warn("Flood limit exceeded",
			slog.String("session", hctx.SessionID),
			slog.String("nick", hctx.Nick),
			slog.String("command", command))
		return ratelimit.ErrRateLimitExceeded
	}
	return h.handler.AuthCommand(ctx, hctx, command, args)
}

// AuthRegister implements handler.Handler.
func (h *RateLimitedHandler) AuthRegister(ctx context.Context, hctx *handler.Context, nick, user *string) error {
	return h.handler.AuthRegister(ctx, hctx, nick, user)
}

// OnRegister implements handler.Handler.
func (h *RateLimitedHandler) OnRegister(ctx context.Context, hctx *handler.Context) error {
	return h.handler.OnRegister(ctx, hctx)
}

// OnDisconnect implements handler.Handler and forgets the session's flood bucket.
func (h *RateLimitedHandler) OnDisconnect(ctx context.Context, hctx *handler.Context) error {
	h.floodLimiter.Remove(hctx.SessionID)
	return h.handler.OnDisconnect(ctx, hctx)
}

// knownCommands bounds the command label of the commands metric.
var knownCommands = map[string]bool{
	"NICK": true, "USER": true, "OPER": true, "PING": true, "PONG": true, "QUIT": true,
}

// InstrumentedHandler wraps a handler with metrics instrumentation.
type InstrumentedHandler struct {
	handler handler.Handler
	metrics *metrics.Metrics
}

// AuthConnect implements handler.Handler.
func (h *InstrumentedHandler) AuthConnect(ctx context.Context, hctx *handler.Context) error {
	return h.handler.AuthConnect(ctx, hctx)
}

// AuthCommand implements handler.Handler with a per-command counter.
func (h *InstrumentedHandler) AuthCommand(ctx context.Context, hctx *handler.Context, command string, args *[]string) error {
	label := command
	if !knownCommands[command] {
		label = "other"
	}
	h.metrics.ObserveCommand(hctx.Transport, label)

	return h.handler.AuthCommand(ctx, hctx, command, args)
}

// AuthRegister implements handler.Handler with registration metrics.
func (h *InstrumentedHandler) AuthRegister(ctx context.Context, hctx *handler.Context, nick, user *string) error {
	h.metrics.ObserveRegistration(hctx.Transport, metrics.RegistrationAttempted)

	err := h.handler.AuthRegister(ctx, hctx, nick, user)
	if err != nil {
		h.metrics.ObserveRegistration(hctx.Transport, metrics.RegistrationRejected)
	}
	return err
}

// OnRegister implements handler.Handler with registration metrics.
func (h *InstrumentedHandler) OnRegister(ctx context.Context, hctx *handler.Context) error {
	h.metrics.ObserveRegistration(hctx.Transport, metrics.RegistrationCompleted)
	h.metrics.RegisteredSessions.Inc()

	return h.handler.OnRegister(ctx, hctx)
}

// OnDisconnect implements handler.Handler with metrics.
func (h *InstrumentedHandler) OnDisconnect(ctx context.Context, hctx *handler.Context) error {
	if hctx.Nick != "" {
		h.metrics.RegisteredSessions.Dec()
	}
	return h.handler.OnDisconnect(ctx, hctx)
}

// observedService records connection metrics around every session.
type observedService struct {
	service *session.Service
	metrics *metrics.Metrics
}

func (s *observedService) HandleConnection(ctx context.Context, conn net.Conn, transport string) error {
	return s.metrics.ObserveConnection(transport, func() error {
		return s.service.HandleConnection(ctx, conn, transport)
	})
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
