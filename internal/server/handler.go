package server

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/zeusync/mist/internal/core/client"
	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/observability/metrics"
	"github.com/zeusync/mist/internal/core/protocol"
	"github.com/zeusync/mist/internal/transport"
)

// Clients is the client registry as seen by a connection.
type Clients interface {
	Add(id uuid.UUID, ch client.Channel) *client.Client
	Remove(id uuid.UUID)
	Subscribe(component string, id uuid.UUID) bool
	Subscribed(component string, id uuid.UUID) bool
	Send(msg protocol.Message, id uuid.UUID) bool
}

// Dispatcher runs component actions.
type Dispatcher interface {
	Perform(ctx context.Context, component, action string, id uuid.UUID) (protocol.ActionResult, error)
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithWelcome sets the text sent when a connection opens. Empty disables it.
func WithWelcome(text string) HandlerOption {
	return func(h *Handler) { h.welcome = text }
}

func WithHandlerLogger(l log.Log) HandlerOption {
	return func(h *Handler) { h.logger = log.OrNop(l) }
}

func WithHandlerMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// Handler drives the protocol for every connection, whatever its transport.
type Handler struct {
	clients    Clients
	dispatcher Dispatcher
	welcome    string
	logger     log.Log
	metrics    *metrics.Metrics
}

func NewHandler(clients Clients, dispatcher Dispatcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		clients:    clients,
		dispatcher: dispatcher,
		logger:     log.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(log.String("component", "connection_handler"))
	return h
}

// Serve runs one connection until the peer closes it, a read fails or ctx
// is done. The client is deregistered exactly once on the way out. A
// connection closed by either side returns nil.
func (h *Handler) Serve(ctx context.Context, conn transport.Conn) error {
	s := newSession(h, conn)
	s.open()
	defer s.close()

	stop := context.AfterFunc(ctx, s.close)
	defer stop()

	for {
		frame, err := conn.Receive(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || s.State() == StateClosed {
				return nil
			}
			s.logger.Debug("receive failed", log.Error(err))
			return err
		}
		s.handle(ctx, frame)
	}
}
