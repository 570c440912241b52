package client

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/observability/metrics"
	"github.com/zeusync/mist/internal/core/protocol"
)

// DefaultOutboxSize is the per-client frame queue length.
const DefaultOutboxSize = 64

// Components answers whether a component name is registered.
type Components interface {
	Exists(name string) bool
}

// Option configures a Registry.
type Option func(*Registry)

func WithOutboxSize(n int) Option {
	return func(r *Registry) { r.outboxSize = n }
}

func WithLogger(l log.Log) Option {
	return func(r *Registry) { r.logger = log.OrNop(l) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry owns the live clients, their subscription sets and the
// component-to-subscribers reverse index. Both structures change together
// under mu; channel writes happen on per-client writer goroutines.
type Registry struct {
	mu          sync.RWMutex
	clients     []*Client
	seq         uint64
	byID        map[uuid.UUID]*Client
	byComponent map[string]map[uuid.UUID]struct{}

	components Components
	outboxSize int
	logger     log.Log
	metrics    *metrics.Metrics
}

// NewRegistry creates an empty registry. components validates subscription
// targets.
func NewRegistry(components Components, opts ...Option) *Registry {
	r := &Registry{
		byID:        make(map[uuid.UUID]*Client),
		byComponent: make(map[string]map[uuid.UUID]struct{}),
		components:  components,
		outboxSize:  DefaultOutboxSize,
		logger:      log.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(log.String("component", "client_registry"))
	return r
}

// Add registers a client with an empty subscription set and starts its
// writer. Ids are generated by the caller; adding a known id is a no-op.
func (r *Registry) Add(id uuid.UUID, ch Channel) *Client {
	c := &Client{
		id:            id,
		channel:       ch,
		connectedAt:   time.Now(),
		subscriptions: make(map[string]struct{}),
		out:           newOutbox(r.outboxSize),
	}

	r.mu.Lock()
	if existing, ok := r.byID[id]; ok {
		r.mu.Unlock()
		return existing
	}
	r.seq++
	c.seq = r.seq
	r.clients = append(r.clients, c)
	r.byID[id] = c
	r.mu.Unlock()

	r.metrics.ClientConnected()
	go c.out.drain(ch, r.metrics.FrameSent, func(err error) {
		r.metrics.FrameDropped(metrics.DropWriteErr)
		r.logger.Warn("frame write failed", log.String("client", id.String()), log.Error(err))
	})
	return c
}

// Remove deletes the client, its reverse-index entries and any bucket left
// empty, then stops its writer. Unknown ids are ignored.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	c, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	for name := range c.subscriptions {
		bucket := r.byComponent[name]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(r.byComponent, name)
		}
	}
	delete(r.byID, id)
	for i, other := range r.clients {
		if other == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	c.out.close()
	r.metrics.ClientDisconnected()
}

// Subscribe adds component to the client's subscriptions. It returns false
// when the component or the client is unknown, or the subscription exists.
func (r *Registry) Subscribe(component string, id uuid.UUID) bool {
	if r.components == nil || !r.components.Exists(component) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return false
	}
	if _, dup := c.subscriptions[component]; dup {
		return false
	}
	c.subscriptions[component] = struct{}{}
	bucket, ok := r.byComponent[component]
	if !ok {
		bucket = make(map[uuid.UUID]struct{})
		r.byComponent[component] = bucket
	}
	bucket[id] = struct{}{}
	return true
}

// Subscribers returns the clients subscribed to component in connection
// order.
func (r *Registry) Subscribers(component string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subscribersLocked(component)
}

func (r *Registry) subscribersLocked(component string) []*Client {
	bucket := r.byComponent[component]
	out := make([]*Client, 0, len(bucket))
	if len(bucket) == 0 {
		return out
	}
	for id := range bucket {
		out = append(out, r.byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// SubscriberIDs returns the ids in the reverse-index bucket of component.
func (r *Registry) SubscriberIDs(component string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket := r.byComponent[component]
	out := make([]uuid.UUID, 0, len(bucket))
	for id := range bucket {
		out = append(out, id)
	}
	return out
}

// HasBucket reports whether the reverse index holds a key for component.
func (r *Registry) HasBucket(component string) bool {
	r.mu.RLock()
	_, ok := r.byComponent[component]
	r.mu.RUnlock()
	return ok
}

// Subscriptions returns the components the client is subscribed to.
func (r *Registry) Subscriptions(id uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.subscriptions))
	for name := range c.subscriptions {
		out = append(out, name)
	}
	return out
}

// Subscribed reports whether the client is subscribed to component.
func (r *Registry) Subscribed(component string, id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return false
	}
	_, ok = c.subscriptions[component]
	return ok
}

// Get returns the client with id.
func (r *Registry) Get(id uuid.UUID) (*Client, bool) {
	r.mu.RLock()
	c, ok := r.byID[id]
	r.mu.RUnlock()
	return c, ok
}

// Len returns the number of live clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Send encodes msg and queues it for client id. Encode failures, unknown
// clients and full outboxes drop the frame; it reports whether the frame
// was queued.
func (r *Registry) Send(msg protocol.Message, id uuid.UUID) bool {
	frame, err := protocol.Encode(msg)
	if err != nil {
		r.metrics.FrameDropped(metrics.DropEncode)
		r.logger.Error("encode message", log.String("kind", string(msg.Kind())), log.Error(err))
		return false
	}
	c, ok := r.Get(id)
	if !ok {
		r.metrics.FrameDropped(metrics.DropUnknown)
		return false
	}
	return r.enqueue(c, frame)
}

// Broadcast encodes an update once and queues it for every subscriber of
// its component. Messages other than updates are ignored. It returns the
// number of subscribers the frame was queued for.
func (r *Registry) Broadcast(msg protocol.Message) int {
	if msg.Update == nil {
		r.logger.Warn("broadcast ignores non-update message", log.String("kind", string(msg.Kind())))
		return 0
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		r.metrics.FrameDropped(metrics.DropEncode)
		r.logger.Error("encode update", log.String("target", msg.Update.Component), log.Error(err))
		return 0
	}

	subscribers := r.Subscribers(msg.Update.Component)
	r.metrics.Broadcast(msg.Update.Component)

	queued := 0
	for _, c := range subscribers {
		if r.enqueue(c, frame) {
			queued++
		}
	}
	return queued
}

func (r *Registry) enqueue(c *Client, frame []byte) bool {
	switch err := c.out.push(frame); err {
	case nil:
		return true
	case ErrOutboxFull:
		r.metrics.FrameDropped(metrics.DropFull)
		r.logger.Warn("outbox full, dropping frame", log.String("client", c.id.String()))
	default:
		r.metrics.FrameDropped(metrics.DropClosed)
	}
	return false
}
