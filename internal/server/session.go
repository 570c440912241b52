package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/zeusync/mist/internal/core/action"
	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/protocol"
	"github.com/zeusync/mist/internal/transport"
)

// State is the lifecycle stage of a connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// session is the per-connection state machine: Connecting -> Open -> Closed.
type session struct {
	id        uuid.UUID
	conn      transport.Conn
	h         *Handler
	logger    log.Log
	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(h *Handler, conn transport.Conn) *session {
	id := uuid.New()
	return &session{
		id:     id,
		conn:   conn,
		h:      h,
		logger: h.logger.With(log.String("client_id", id.String()), log.String("remote_addr", conn.RemoteAddr())),
	}
}

func (s *session) State() State {
	return State(s.state.Load())
}

func (s *session) open() {
	s.h.clients.Add(s.id, s.conn)
	s.state.Store(int32(StateOpen))
	s.logger.Info("client connected")
	if s.h.welcome != "" {
		s.h.clients.Send(protocol.NewText(s.h.welcome), s.id)
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.h.clients.Remove(s.id)
		_ = s.conn.Close()
		s.logger.Info("client disconnected")
	})
}

// handle processes one inbound frame. Undecodable frames and server-only
// message kinds are dropped.
func (s *session) handle(ctx context.Context, frame []byte) {
	if s.State() != StateOpen {
		return
	}
	msg, err := protocol.Decode(frame)
	if err != nil {
		s.logger.Debug("dropping undecodable frame", log.Error(err))
		return
	}

	switch msg.Kind() {
	case protocol.KindSubscribe:
		s.subscribe(msg.Subscribe.Component)
	case protocol.KindAction:
		s.perform(ctx, *msg.Action)
	default:
		s.logger.Debug("ignoring client message", log.String("kind", string(msg.Kind())))
	}
}

func (s *session) subscribe(component string) {
	ok := s.h.clients.Subscribe(component, s.id)
	s.h.metrics.Subscription(component, ok)
	switch {
	case ok:
		s.h.clients.Send(protocol.NewText(fmt.Sprintf("Subscribed to '%s'", component)), s.id)
	case s.h.clients.Subscribed(component, s.id):
		s.h.clients.Send(protocol.NewText(fmt.Sprintf("Already subscribed to '%s'", component)), s.id)
	default:
		s.h.clients.Send(protocol.NewText(fmt.Sprintf("Component '%s' not added", component)), s.id)
	}
}

func (s *session) perform(ctx context.Context, a protocol.Action) {
	result, err := s.h.dispatcher.Perform(ctx, a.Component, a.Action, a.ID)
	if err != nil {
		s.logger.Error("action execution failed",
			log.String("target", a.Component),
			log.String("action", a.Action),
			log.String("entity_id", a.ID.String()),
			log.Error(err))
		if errors.Is(err, action.ErrExecution) {
			s.h.clients.Send(protocol.NewText(fmt.Sprintf("Action '%s' on '%s' could not be executed", a.Action, a.Component)), s.id)
		}
		return
	}
	s.h.clients.Send(protocol.NewActionReply(a.Component, a.ID, a.Action, result, replyMessage(a.Action, result)), s.id)
}

func replyMessage(name string, result protocol.ActionResult) string {
	if result.Succeeded() {
		return fmt.Sprintf("Action '%s' succeeded", name)
	}
	return fmt.Sprintf("Action '%s' failed", name)
}
