// Package listener reacts to committed entity writes by re-rendering the
// affected components and broadcasting the fragments to their subscribers.
package listener

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/mist/internal/core/component"
	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/events/bus"
	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/observability/metrics"
	"github.com/zeusync/mist/internal/core/protocol"
	"github.com/zeusync/mist/internal/core/render"
)

const tracerName = "github.com/zeusync/mist/listener"

// Components resolves the components fed by an entity type.
type Components interface {
	ComponentsFor(entityType string) []*component.Component
}

// Broadcaster fans an update out to the subscribers of its component.
type Broadcaster interface {
	Broadcast(msg protocol.Message) int
}

// Option configures a Listener.
type Option func(*Listener)

func WithLogger(l log.Log) Option {
	return func(ls *Listener) { ls.logger = log.OrNop(l) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(ls *Listener) { ls.metrics = m }
}

// Listener is the commit hook shared by every entity type. It never returns
// failures to the writer: render problems are logged and skipped per
// component.
type Listener struct {
	components Components
	clients    Broadcaster
	renderer   render.Renderer
	logger     log.Log
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

func New(components Components, clients Broadcaster, renderer render.Renderer, opts ...Option) *Listener {
	l := &Listener{
		components: components,
		clients:    clients,
		renderer:   renderer,
		logger:     log.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(log.String("component", "change_listener"))
	return l
}

// Handle adapts the listener to the commit bus. Events carry the entity as
// Data and the entity type name as Type. It always returns nil.
func (l *Listener) Handle(ctx context.Context, ev bus.Event) error {
	e, ok := ev.Data().(entity.Entity)
	if !ok {
		l.logger.Warn("commit event without entity", log.String("entity_type", ev.Type()))
		return nil
	}
	l.Notify(ctx, ev.Type(), e)
	return nil
}

// Notify renders every component of entityType that wants e and broadcasts
// the result. Components render concurrently; Notify returns when all
// broadcasts have been queued.
func (l *Listener) Notify(ctx context.Context, entityType string, e entity.Entity) {
	ctx = context.WithoutCancel(ctx)
	l.metrics.CommitObserved(entityType)

	var g errgroup.Group
	for _, c := range l.components.ComponentsFor(entityType) {
		if !c.ShouldUpdate(entityType, e) {
			continue
		}
		id, ok := e.EntityID()
		if !ok {
			l.logger.Debug("skipping entity without id",
				log.String("entity_type", entityType), log.String("target", c.Name()))
			continue
		}
		g.Go(func() error {
			l.refresh(ctx, c, entityType, id)
			return nil
		})
	}
	_ = g.Wait()
}

func (l *Listener) refresh(ctx context.Context, c *component.Component, entityType string, id uuid.UUID) {
	ctx, span := l.tracer.Start(ctx, "mist.refresh", trace.WithAttributes(
		attribute.String("mist.component", c.Name()),
		attribute.String("mist.entity_type", entityType),
		attribute.String("mist.entity_id", id.String()),
	))
	defer span.End()

	html, ok, err := l.render(ctx, c, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.metrics.RenderFailed(c.Name())
		l.logger.Error("render component",
			log.String("target", c.Name()),
			log.String("entity_type", entityType),
			log.String("entity_id", id.String()),
			log.Error(err))
		return
	}
	if !ok {
		return
	}
	n := l.clients.Broadcast(protocol.NewUpdate(c.Name(), id, html))
	span.SetAttributes(attribute.Int("mist.subscribers", n))
}

func (l *Listener) render(ctx context.Context, c *component.Component, id uuid.UUID) (html string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", render.ErrRender, r)
		}
	}()
	return c.Render(ctx, id, l.renderer)
}
