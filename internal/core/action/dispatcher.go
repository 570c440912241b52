// Package action resolves and runs component actions on behalf of clients.
package action

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeusync/mist/internal/core/component"
	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/observability/metrics"
	"github.com/zeusync/mist/internal/core/protocol"
)

const tracerName = "github.com/zeusync/mist/action"

// Handlers resolves a component action.
type Handlers interface {
	ActionHandler(component, action string) (component.Action, component.Lookup)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(l log.Log) Option {
	return func(d *Dispatcher) { d.logger = log.OrNop(l) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher runs actions against the entity store.
type Dispatcher struct {
	handlers Handlers
	store    entity.Store
	logger   log.Log
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func NewDispatcher(handlers Handlers, store entity.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: handlers,
		store:    store,
		logger:   log.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(log.String("component", "action_dispatcher"))
	return d
}

// ComponentNotFound and ActionNotFound format the lookup failures returned
// to clients.
func ComponentNotFound(component string) string {
	return fmt.Sprintf("component '%s' not found", component)
}

func ActionNotFound(component, action string) string {
	return fmt.Sprintf("action '%s' not found on component '%s'", action, component)
}

// Perform resolves and executes an action. Unknown components and actions
// yield a Failure naming what was missing. A handler that returns an error
// or panics yields an error wrapping ErrExecution.
func (d *Dispatcher) Perform(ctx context.Context, comp, name string, id uuid.UUID) (result protocol.ActionResult, err error) {
	handler, lookup := d.handlers.ActionHandler(comp, name)
	switch lookup {
	case component.LookupComponentMissing:
		d.metrics.Action(comp, name, "not_found")
		return protocol.Failure(ComponentNotFound(comp)), nil
	case component.LookupActionMissing:
		d.metrics.Action(comp, name, "not_found")
		return protocol.Failure(ActionNotFound(comp, name)), nil
	}

	ctx, span := d.tracer.Start(ctx, "mist.action", trace.WithAttributes(
		attribute.String("mist.component", comp),
		attribute.String("mist.action", name),
		attribute.String("mist.entity_id", id.String()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s.%s: panic: %v", ErrExecution, comp, name, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			d.metrics.Action(comp, name, "error")
			return
		}
		d.metrics.Action(comp, name, string(result.Outcome))
	}()

	result, err = handler.Execute(ctx, id, d.store)
	if err != nil {
		return protocol.ActionResult{}, fmt.Errorf("%w: %s.%s: %w", ErrExecution, comp, name, err)
	}
	return result, nil
}
