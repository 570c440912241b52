package component

import (
	"context"

	"github.com/google/uuid"

	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/protocol"
)

// Action is an interactive operation exposed by a component. Business
// failures are reported as protocol.Failure results; a returned error means
// the action could not run at all.
type Action interface {
	Name() string
	Execute(ctx context.Context, id uuid.UUID, store entity.Store) (protocol.ActionResult, error)
}

// ActionFunc is the body of an action built with NewAction.
type ActionFunc func(ctx context.Context, id uuid.UUID, store entity.Store) (protocol.ActionResult, error)

type funcAction struct {
	name string
	fn   ActionFunc
}

// NewAction adapts fn to Action.
func NewAction(name string, fn ActionFunc) Action {
	return &funcAction{name: name, fn: fn}
}

func (a *funcAction) Name() string { return a.name }

func (a *funcAction) Execute(ctx context.Context, id uuid.UUID, store entity.Store) (protocol.ActionResult, error) {
	return a.fn(ctx, id, store)
}
