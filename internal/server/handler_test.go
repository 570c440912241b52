package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mist/internal/core/action"
	"github.com/zeusync/mist/internal/core/client"
	"github.com/zeusync/mist/internal/core/protocol"
	"github.com/zeusync/mist/internal/transport"
)

type names map[string]bool

func (n names) Exists(name string) bool { return n[name] }

type dispatcherFunc func(ctx context.Context, component, action string, id uuid.UUID) (protocol.ActionResult, error)

func (f dispatcherFunc) Perform(ctx context.Context, component, action string, id uuid.UUID) (protocol.ActionResult, error) {
	return f(ctx, component, action, id)
}

// pipeConn is an in-memory transport.Conn fed by the test.
type pipeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu  sync.Mutex
	out []string
}

func newPipeConn() *pipeConn {
	return &pipeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (p *pipeConn) Send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = append(p.out, string(frame))
	return nil
}

func (p *pipeConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-p.in:
		if !ok {
			return nil, transport.ErrClosed
		}
		return frame, nil
	case <-p.closed:
		return nil, transport.ErrClosed
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) RemoteAddr() string { return "pipe" }

func (p *pipeConn) Frames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.out...)
}

func (p *pipeConn) waitFor(t *testing.T, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(p.Frames()) >= n }, time.Second, 5*time.Millisecond)
	return p.Frames()
}

func text(message string) string {
	data, _ := protocol.Encode(protocol.NewText(message))
	return string(data)
}

type harness struct {
	clients *client.Registry
	handler *Handler
	conn    *pipeConn
	done    chan error
	cancel  context.CancelFunc
}

func serve(t *testing.T, d Dispatcher) *harness {
	t.Helper()
	clients := client.NewRegistry(names{"Row": true})
	h := &harness{
		clients: clients,
		handler: NewHandler(clients, d, WithWelcome("Server Welcome Message")),
		conn:    newPipeConn(),
		done:    make(chan error, 1),
	}
	var ctx context.Context
	ctx, h.cancel = context.WithCancel(context.Background())
	go func() { h.done <- h.handler.Serve(ctx, h.conn) }()
	t.Cleanup(func() {
		h.cancel()
		<-h.done
	})
	return h
}

func (h *harness) send(frame string) { h.conn.in <- []byte(frame) }

func TestWelcomeIsFirstFrame(t *testing.T) {
	h := serve(t, nil)
	frames := h.conn.waitFor(t, 1)
	assert.JSONEq(t, text("Server Welcome Message"), frames[0])
	assert.Equal(t, 1, h.clients.Len())
}

func TestSubscribeReplies(t *testing.T) {
	h := serve(t, nil)
	h.conn.waitFor(t, 1)

	h.send(`{"subscribe":{"component":"Row"}}`)
	h.send(`{"subscribe":{"component":"Ghost"}}`)
	h.send(`{"subscribe":{"component":"Row"}}`)

	frames := h.conn.waitFor(t, 4)
	assert.JSONEq(t, text("Subscribed to 'Row'"), frames[1])
	assert.JSONEq(t, text("Component 'Ghost' not added"), frames[2])
	assert.JSONEq(t, text("Already subscribed to 'Row'"), frames[3])
	assert.Len(t, h.clients.SubscriberIDs("Row"), 1)
	assert.False(t, h.clients.HasBucket("Ghost"))
}

func TestActionReplies(t *testing.T) {
	id := uuid.New()
	h := serve(t, dispatcherFunc(func(_ context.Context, component, name string, got uuid.UUID) (protocol.ActionResult, error) {
		assert.Equal(t, id, got)
		switch name {
		case "delete":
			return protocol.Success(""), nil
		case "archive":
			return protocol.Failure(action.ActionNotFound(component, name)), nil
		default:
			return protocol.ActionResult{}, errors.Wrap(action.ErrExecution, "boom")
		}
	}))
	h.conn.waitFor(t, 1)

	h.send(`{"action":{"component":"Row","id":"` + id.String() + `","action":"delete"}}`)
	h.send(`{"action":{"component":"Row","id":"` + id.String() + `","action":"archive"}}`)
	h.send(`{"action":{"component":"Row","id":"` + id.String() + `","action":"explode"}}`)

	frames := h.conn.waitFor(t, 4)

	ok, err := protocol.Decode([]byte(frames[1]))
	require.NoError(t, err)
	require.Equal(t, protocol.KindActionResult, ok.Kind())
	assert.Equal(t, protocol.Success(""), ok.ActionResult.Result)
	assert.Equal(t, "Action 'delete' succeeded", ok.ActionResult.Message)

	failed, err := protocol.Decode([]byte(frames[2]))
	require.NoError(t, err)
	assert.Equal(t, protocol.Failure("action 'archive' not found on component 'Row'"), failed.ActionResult.Result)
	assert.Equal(t, "Action 'archive' failed", failed.ActionResult.Message)

	assert.JSONEq(t, text("Action 'explode' on 'Row' could not be executed"), frames[3])
}

func TestUnusableFramesAreIgnored(t *testing.T) {
	h := serve(t, nil)
	h.conn.waitFor(t, 1)

	h.send(`not json`)
	h.send(`{"unsubscribe":{"component":"Row"}}`)
	h.send(`{"text":{"message":"hi"}}`)
	h.send(`{"subscribe":{"component":"Row"}}`)

	frames := h.conn.waitFor(t, 2)
	assert.JSONEq(t, text("Subscribed to 'Row'"), frames[1])
	assert.Len(t, h.conn.Frames(), 2)
}

func TestPeerCloseDeregisters(t *testing.T) {
	h := serve(t, nil)
	h.conn.waitFor(t, 1)
	h.send(`{"subscribe":{"component":"Row"}}`)
	h.conn.waitFor(t, 2)

	close(h.conn.in)

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after peer close")
	}
	assert.Equal(t, 0, h.clients.Len())
	assert.False(t, h.clients.HasBucket("Row"))
}

func TestContextCancelClosesConnection(t *testing.T) {
	h := serve(t, nil)
	h.conn.waitFor(t, 1)

	h.cancel()

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 0, h.clients.Len())
	select {
	case <-h.conn.closed:
	default:
		t.Fatal("connection was not closed")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
}
