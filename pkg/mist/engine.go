// Package mist assembles the registries, the commit listener and the action
// dispatcher into one engine that serves live component fragments.
package mist

import (
	"sync"

	"github.com/zeusync/mist/internal/core/action"
	"github.com/zeusync/mist/internal/core/client"
	"github.com/zeusync/mist/internal/core/component"
	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/events/bus"
	"github.com/zeusync/mist/internal/core/listener"
	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/observability/metrics"
	"github.com/zeusync/mist/internal/core/render"
	"github.com/zeusync/mist/internal/core/storage/memory"
	"github.com/zeusync/mist/internal/server"
)

// Options configure an Engine. Zero values select in-memory defaults.
type Options struct {
	// Bus carries commit events. It must be the bus Store publishes on.
	Bus bus.EventBus
	// Store backs components and actions. Defaults to a memory store on Bus.
	Store entity.Store
	// Renderer defaults to html/template over Source.
	Renderer render.Renderer
	// Source holds inline templates for the default renderer.
	Source *render.Source

	Logger  log.Log
	Metrics *metrics.Metrics

	OutboxSize int
	// Welcome is sent to every new connection; empty disables it.
	Welcome string
}

// Engine owns one component registry, one client registry and one listener
// per entity type. Several engines may live in the same process.
type Engine struct {
	bus      bus.EventBus
	store    entity.Store
	source   *render.Source
	renderer render.Renderer
	logger   log.Log
	metrics  *metrics.Metrics

	components *component.Registry
	clients    *client.Registry
	dispatcher *action.Dispatcher
	listener   *listener.Listener
	handler    *server.Handler

	mu   sync.Mutex
	subs []bus.Subscription
}

func New(opts Options) *Engine {
	e := &Engine{
		bus:      opts.Bus,
		store:    opts.Store,
		source:   opts.Source,
		renderer: opts.Renderer,
		logger:   log.OrNop(opts.Logger).With(log.String("component", "engine")),
		metrics:  opts.Metrics,
	}
	if e.bus == nil {
		e.bus = bus.New()
	}
	if e.store == nil {
		e.store = memory.New(e.bus, opts.Logger)
	}
	if e.source == nil {
		e.source = render.NewSource("")
	}
	if e.renderer == nil {
		e.renderer = render.NewTemplateRenderer(e.source)
	}

	e.components = component.NewRegistry(component.OnNewEntityType(e.watch))

	clientOpts := []client.Option{client.WithLogger(opts.Logger), client.WithMetrics(opts.Metrics)}
	if opts.OutboxSize > 0 {
		clientOpts = append(clientOpts, client.WithOutboxSize(opts.OutboxSize))
	}
	e.clients = client.NewRegistry(e.components, clientOpts...)

	e.listener = listener.New(e.components, e.clients, e.renderer,
		listener.WithLogger(opts.Logger), listener.WithMetrics(opts.Metrics))
	e.dispatcher = action.NewDispatcher(e.components, e.store,
		action.WithLogger(opts.Logger), action.WithMetrics(opts.Metrics))
	e.handler = server.NewHandler(e.clients, e.dispatcher,
		server.WithWelcome(opts.Welcome),
		server.WithHandlerLogger(opts.Logger),
		server.WithHandlerMetrics(opts.Metrics))
	return e
}

// watch installs the change listener for an entity type seen for the first
// time. The bus only rejects a nil handler, so a failure here is a
// programming error and is logged rather than retried.
func (e *Engine) watch(t entity.Type) {
	sub, err := e.bus.Subscribe(t.Name(), e.listener.Handle)
	if err != nil {
		e.logger.Error("failed to watch entity type", log.String("entity_type", t.Name()), log.Error(err))
		return
	}
	e.mu.Lock()
	e.subs = append(e.subs, sub)
	e.mu.Unlock()
	e.logger.Debug("watching entity type", log.String("entity_type", t.Name()))
}

// Configure registers components. A name already registered keeps its
// first definition. It returns how many components were added. Listeners
// are installed before Configure returns, so commits made after it are
// broadcast; commits made before it are not.
func (e *Engine) Configure(components ...*component.Component) int {
	added := 0
	for _, c := range components {
		if e.components.Register(c) {
			added++
			continue
		}
		e.logger.Warn("component already registered", log.String("name", c.Name()))
	}
	return added
}

// Close detaches the listeners from the bus.
func (e *Engine) Close() error {
	e.mu.Lock()
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()
	for _, sub := range subs {
		_ = e.bus.Unsubscribe(sub)
	}
	return nil
}

// Handler returns the connection handler shared by every transport.
func (e *Engine) Handler() *server.Handler { return e.handler }

func (e *Engine) Clients() *client.Registry       { return e.clients }
func (e *Engine) Components() *component.Registry { return e.components }
func (e *Engine) Dispatcher() *action.Dispatcher  { return e.dispatcher }
func (e *Engine) Bus() bus.EventBus               { return e.bus }
func (e *Engine) Store() entity.Store             { return e.store }
func (e *Engine) Source() *render.Source          { return e.source }
func (e *Engine) Renderer() render.Renderer       { return e.renderer }
