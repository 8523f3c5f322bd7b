// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/mircd/pkg/correlator"
	mircerrors "github.com/absmach/mircd/pkg/errors"
	"github.com/absmach/mircd/pkg/frame"
	"github.com/absmach/mircd/pkg/handler"
	"github.com/absmach/mircd/pkg/parser"
	"github.com/absmach/mircd/pkg/registry"
	"github.com/absmach/mircd/pkg/reply"
	"github.com/google/uuid"
)

// LevelTrace logs every received line.
const LevelTrace = slog.LevelDebug - 4

// errQuit ends a session after a client QUIT.
var errQuit = errors.New("client quit")

// State is the registration state of a session.
type State int32

const (
	// Connected: reading lines, no registration command seen yet.
	Connected State = iota
	// Registering: one half of NICK/USER received.
	Registering
	// Registered: identity in the directory, greeting sent.
	Registered
	// Closed: terminal.
	Closed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Registering:
		return "registering"
	case Registered:
		return "registered"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Directory is the shared identity store used by sessions.
type Directory interface {
	Register(displayName, accountName string, conn net.Conn, opts ...registry.Option) (registry.Identity, error)
	Lookup(displayName string) (registry.Identity, bool)
	Remove(displayName string)
	Rename(oldName, newName string) (registry.Identity, error)
}

var _ Directory = (*registry.Registry)(nil)

// Config holds the server identity and per-connection limits.
type Config struct {
	// ServerName is the prefix of every server reply
	ServerName string

	// Version is reported in 002 and 004
	Version string

	// CreatedDate is reported in 003
	CreatedDate string

	// OperatorPassword enables OPER when non-empty
	OperatorPassword string

	// Host overrides the client host shown in the 001 mask
	Host string

	// UserModes and ChanModes are advertised in 004
	UserModes string
	ChanModes string

	// MaxLineLength bounds a protocol line, terminator included (default: 512)
	MaxLineLength int

	// MaxNickLength bounds a nickname (default: 30)
	MaxNickLength int

	// BufferSize is the size of the per-connection read buffer (default: 4096)
	BufferSize int

	// ReadTimeout closes a connection that sends nothing for this long.
	// Zero disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds every write. Zero disables it.
	WriteTimeout time.Duration

	// Logger for session events
	Logger *slog.Logger
}

// Service runs sessions against one shared directory.
type Service struct {
	config     Config
	dir        Directory
	handler    handler.Handler
	replies    reply.Builder
	bufferPool sync.Pool
}

// NewService creates a session service. A nil handler allows everything.
func NewService(cfg Config, dir Directory, h handler.Handler) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = frame.DefaultMaxLineLength
	}
	if cfg.MaxNickLength == 0 {
		cfg.MaxNickLength = 30
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 4096
	}
	if cfg.UserModes == "" {
		cfg.UserModes = "ao"
	}
	if cfg.ChanModes == "" {
		cfg.ChanModes = "mtov"
	}
	if h == nil {
		h = &handler.NoopHandler{}
	}

	s := &Service{
		config:  cfg,
		dir:     dir,
		handler: h,
		replies: reply.Builder{
			ServerName:  cfg.ServerName,
			Version:     cfg.Version,
			CreatedDate: cfg.CreatedDate,
			Host:        cfg.Host,
			UserModes:   cfg.UserModes,
			ChanModes:   cfg.ChanModes,
		},
	}
	s.bufferPool.New = func() any {
		buf := make([]byte, s.config.BufferSize)
		return &buf
	}
	return s
}

// HandleConnection runs the session for one accepted connection until the
// client leaves, the transport fails, or ctx is cancelled. The connection
// is closed on return.
func (s *Service) HandleConnection(ctx context.Context, conn net.Conn, transport string) error {
	return s.NewSession(conn, transport).Serve(ctx)
}

// Session is the state of one client connection.
type Session struct {
	svc        *Service
	conn       net.Conn
	host       string
	logger     *slog.Logger
	hctx       *handler.Context
	decoder    *frame.Decoder
	correlator *correlator.Correlator
	identity   registry.Identity
	state      atomic.Int32
}

// NewSession prepares a session for conn without starting it.
func (s *Service) NewSession(conn net.Conn, transport string) *Session {
	id := uuid.New().String()
	remote := conn.RemoteAddr().String()

	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}

	return &Session{
		svc:  s,
		conn: conn,
		host: host,
		logger: s.config.Logger.With(
			slog.String("session", id),
			slog.String("remote", remote),
			slog.String("transport", transport)),
		hctx: &handler.Context{
			SessionID:  id,
			RemoteAddr: remote,
			Transport:  transport,
		},
		decoder:    frame.NewDecoder(s.config.MaxLineLength),
		correlator: correlator.New(nil),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.hctx.SessionID
}

// State returns the current state. It is safe to call from any goroutine.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Serve runs the read loop. It returns nil when the client disconnects or
// quits, and the terminal error otherwise.
func (s *Session) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.conn.Close()
	})
	defer stop()
	defer s.teardown()

	if err := s.svc.handler.AuthConnect(ctx, s.hctx); err != nil {
		s.deny("connect", err)
		return s.fail("connect", err)
	}

	bufPtr := s.svc.bufferPool.Get().(*[]byte)
	defer s.svc.bufferPool.Put(bufPtr)
	buf := *bufPtr

	s.logger.Debug("session started")

	for {
		if t := s.svc.config.ReadTimeout; t > 0 {
			s.conn.SetReadDeadline(time.Now().Add(t))
		}

		n, rerr := s.conn.Read(buf)
		if n > 0 {
			for line, err := range s.decoder.Feed(buf[:n]) {
				if err != nil {
					s.closing("Line too long")
					return s.fail("read", err)
				}
				if err := s.handleLine(ctx, line); err != nil {
					if errors.Is(err, errQuit) {
						return nil
					}
					return s.fail("dispatch", err)
				}
			}
		}

		if rerr != nil {
			switch {
			case errors.Is(rerr, io.EOF):
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			case isTimeout(rerr):
				s.closing("Ping timeout")
				return s.fail("read", fmt.Errorf("%w: %v", mircerrors.ErrTimeout, rerr))
			default:
				return s.fail("read", rerr)
			}
		}
	}
}

func (s *Session) handleLine(ctx context.Context, line string) error {
	s.logger.Log(ctx, LevelTrace, "received line", slog.String("line", line))

	msg, err := parser.Parse(line)
	if err != nil {
		s.logger.Debug("dropping malformed line", slog.String("error", err.Error()))
		return nil
	}

	if err := s.svc.handler.AuthCommand(ctx, s.hctx, msg.Command, &msg.Args); err != nil {
		s.deny("command", err)
		return err
	}

	if s.State() == Registered {
		return s.handleRegistered(msg)
	}
	return s.handleUnregistered(ctx, msg)
}

func (s *Session) handleUnregistered(ctx context.Context, msg parser.Message) error {
	switch msg.Command {
	case "NICK":
		nick := msg.Arg(0)
		if nick == "" {
			return s.send(reply.NoNicknameGiven)
		}
		if !s.validNick(nick) {
			return s.send(reply.ErroneousNickname, nick)
		}
		return s.correlate(ctx, msg)
	case "USER":
		if len(msg.Args) < 4 {
			return s.send(reply.NeedMoreParams, msg.Command)
		}
		return s.correlate(ctx, msg)
	case "PING":
		return s.write(s.svc.replies.Pong(msg.Arg(0)))
	case "PONG":
		return nil
	case "QUIT":
		return s.quit(msg)
	default:
		return s.send(reply.NotRegistered)
	}
}

func (s *Session) correlate(ctx context.Context, msg parser.Message) error {
	pair, status := s.correlator.Correlate(msg)
	if status == correlator.Pending {
		s.setState(Registering)
		return nil
	}
	return s.register(ctx, pair)
}

func (s *Session) register(ctx context.Context, pair correlator.Pair) error {
	nickMsg, _ := pair.Lookup("NICK")
	userMsg, _ := pair.Lookup("USER")
	nick, user := nickMsg.Arg(0), userMsg.Arg(0)

	if err := s.svc.handler.AuthRegister(ctx, s.hctx, &nick, &user); err != nil {
		s.deny("register", err)
		return err
	}

	id, err := s.svc.dir.Register(nick, user, s.conn,
		registry.WithRealName(userMsg.Arg(3)),
		registry.WithHost(s.host),
		registry.WithSession(s.ID()))
	if errors.Is(err, registry.ErrDuplicateIdentity) {
		s.logger.Debug("nickname in use", slog.String("nick", nick))
		// Keep USER so a new NICK alone completes registration.
		s.correlator.Park(userMsg)
		s.setState(Registering)
		return s.send(reply.NicknameInUse, nick)
	}
	if err != nil {
		return err
	}

	s.identity = id
	s.setState(Registered)
	s.hctx.Nick = id.DisplayName
	s.hctx.User = id.AccountName
	s.hctx.RealName = id.RealName

	greeting, err := s.svc.replies.Greeting(id)
	if err != nil {
		return err
	}
	if err := s.write(greeting); err != nil {
		return err
	}

	s.logger.Info("client registered",
		slog.String("nick", id.DisplayName),
		slog.String("user", id.AccountName))

	if err := s.svc.handler.OnRegister(ctx, s.hctx); err != nil {
		s.logger.Error("register handler error", slog.String("error", err.Error()))
	}
	return nil
}

func (s *Session) handleRegistered(msg parser.Message) error {
	switch msg.Command {
	case "NICK":
		return s.rename(msg)
	case "USER":
		return s.send(reply.AlreadyRegistered)
	case "OPER":
		return s.oper(msg)
	case "PING":
		return s.write(s.svc.replies.Pong(msg.Arg(0)))
	case "PONG":
		return nil
	case "QUIT":
		return s.quit(msg)
	default:
		return s.send(reply.UnknownCommand, msg.Command)
	}
}

func (s *Session) rename(msg parser.Message) error {
	nick := msg.Arg(0)
	switch {
	case nick == "":
		return s.send(reply.NoNicknameGiven)
	case !s.validNick(nick):
		return s.send(reply.ErroneousNickname, nick)
	case nick == s.identity.DisplayName:
		return nil
	}

	old := s.identity
	id, err := s.svc.dir.Rename(old.DisplayName, nick)
	if errors.Is(err, registry.ErrDuplicateIdentity) {
		return s.send(reply.NicknameInUse, nick)
	}
	if err != nil {
		return err
	}

	s.identity = id
	s.hctx.Nick = id.DisplayName
	s.logger.Info("nick changed",
		slog.String("from", old.DisplayName),
		slog.String("to", id.DisplayName))

	return s.write(s.svc.replies.NickChange(old, id.DisplayName))
}

func (s *Session) oper(msg parser.Message) error {
	if len(msg.Args) < 2 {
		return s.send(reply.NeedMoreParams, msg.Command)
	}

	want := s.svc.config.OperatorPassword
	if want == "" || subtle.ConstantTimeCompare([]byte(msg.Args[1]), []byte(want)) != 1 {
		s.logger.Warn("failed OPER attempt", slog.String("nick", s.identity.DisplayName))
		return s.send(reply.PasswdMismatch)
	}

	s.hctx.Operator = true
	s.logger.Info("operator granted", slog.String("nick", s.identity.DisplayName))
	return s.send(reply.YoureOper)
}

func (s *Session) quit(msg parser.Message) error {
	reason := msg.Arg(0)
	if reason == "" {
		reason = "Client Quit"
	}
	s.closing("Quit: " + reason)
	return errQuit
}

// send renders a numeric addressed to the session's identity.
func (s *Session) send(kind reply.Kind, params ...string) error {
	line, err := s.svc.replies.Build(kind, s.identity, params...)
	if err != nil {
		return err
	}
	return s.write(line)
}

func (s *Session) write(line string) error {
	if t := s.svc.config.WriteTimeout; t > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(t))
	}
	if _, err := io.WriteString(s.conn, line); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			err = fmt.Errorf("%w: %v", mircerrors.ErrConnectionClosed, err)
		}
		return mircerrors.Wrap(err, "write")
	}
	return nil
}

// closing sends the final ERROR line. Failures are ignored since the
// connection is being dropped anyway.
func (s *Session) closing(reason string) {
	if err := s.write(reply.Closing(s.host, reason)); err != nil {
		s.logger.Debug("failed to send closing line", slog.String("error", err.Error()))
	}
}

func (s *Session) teardown() {
	if s.State() == Registered {
		s.svc.dir.Remove(s.identity.DisplayName)
	}
	s.setState(Closed)
	s.correlator.Reset()
	s.decoder.Reset()

	if err := s.svc.handler.OnDisconnect(context.Background(), s.hctx); err != nil {
		s.logger.Error("disconnect handler error", slog.String("error", err.Error()))
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("close error", slog.String("error", err.Error()))
	}

	s.logger.Debug("session closed", slog.String("nick", s.identity.DisplayName))
}

func (s *Session) fail(op string, err error) error {
	return mircerrors.New(op, s.hctx.Transport, s.ID(), s.hctx.RemoteAddr, err)
}

// validNick accepts RFC 2812 nicknames up to the configured length.
func (s *Session) validNick(nick string) bool {
	if len(nick) > s.svc.config.MaxNickLength {
		return false
	}
	for i := 0; i < len(nick); i++ {
		c := nick[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '[' || c == ']' || c == '\\' || c == '`' || c == '_' || c == '^' || c == '{' || c == '|' || c == '}':
		case i > 0 && (c >= '0' && c <= '9' || c == '-'):
		default:
			return false
		}
	}
	return true
}

// deny closes a session rejected by a hook. Hook errors are not shown
// to the client.
func (s *Session) deny(hook string, err error) {
	s.logger.Info("session rejected by handler",
		slog.String("hook", hook),
		slog.String("error", err.Error()))

	reason := "Access denied"
	if errors.Is(err, mircerrors.ErrRateLimited) {
		reason = "Excess Flood"
	}
	s.closing(reason)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
