// Package component defines live components and the registry that indexes
// them by name and by the entity types that feed them.
package component

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/render"
)

type (
	// ShouldUpdateFunc decides whether a committed entity refreshes the component.
	ShouldUpdateFunc func(entityType string, e entity.Entity) bool
	// RenderFunc renders the fragment for id. ok is false when there is
	// nothing to render.
	RenderFunc func(ctx context.Context, c *Component, id uuid.UUID, r render.Renderer) (html string, ok bool, err error)
)

// Component is an immutable live component record. Build it with New.
type Component struct {
	name        string
	entityTypes []entity.Type
	template    string
	actions     map[string]Action
	actionOrder []string

	shouldUpdate ShouldUpdateFunc
	render       RenderFunc
	extenders    []render.ContextExtender
}

// Option configures a Component.
type Option func(*Component)

// WithTemplate sets the template ref. Defaults to the component name.
func WithTemplate(ref string) Option {
	return func(c *Component) { c.template = ref }
}

// WithActions exposes actions on the component. Later duplicates of a name
// are ignored.
func WithActions(actions ...Action) Option {
	return func(c *Component) {
		for _, a := range actions {
			if a == nil {
				continue
			}
			if _, dup := c.actions[a.Name()]; dup {
				continue
			}
			c.actions[a.Name()] = a
			c.actionOrder = append(c.actionOrder, a.Name())
		}
	}
}

// WithShouldUpdate replaces the default "entity type is one of mine" check.
func WithShouldUpdate(fn ShouldUpdateFunc) Option {
	return func(c *Component) { c.shouldUpdate = fn }
}

// WithRender replaces the default context building and template render.
func WithRender(fn RenderFunc) Option {
	return func(c *Component) { c.render = fn }
}

// WithExtender adds computed fields to every entity in the render context.
func WithExtender(ext render.ContextExtender) Option {
	return func(c *Component) { c.extenders = append(c.extenders, ext) }
}

// New builds a component backed by the given entity types. Duplicate types
// keep their first position.
func New(name string, types []entity.Type, opts ...Option) *Component {
	c := &Component{
		name:     name,
		template: name,
		actions:  make(map[string]Action),
	}
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t == nil {
			continue
		}
		if _, ok := seen[t.Name()]; ok {
			continue
		}
		seen[t.Name()] = struct{}{}
		c.entityTypes = append(c.entityTypes, t)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Component) Name() string     { return c.name }
func (c *Component) Template() string { return c.template }

// EntityTypes returns the backing types in declaration order.
func (c *Component) EntityTypes() []entity.Type {
	return append([]entity.Type(nil), c.entityTypes...)
}

// EntityTypeNames returns the backing type names in declaration order.
func (c *Component) EntityTypeNames() []string {
	names := make([]string, len(c.entityTypes))
	for i, t := range c.entityTypes {
		names[i] = t.Name()
	}
	return names
}

// Action returns the named action.
func (c *Component) Action(name string) (Action, bool) {
	a, ok := c.actions[name]
	return a, ok
}

// ActionNames returns action names in registration order.
func (c *Component) ActionNames() []string {
	return append([]string(nil), c.actionOrder...)
}

// ShouldUpdate reports whether a commit of e (of entityType) refreshes c.
func (c *Component) ShouldUpdate(entityType string, e entity.Entity) bool {
	if c.shouldUpdate != nil {
		return c.shouldUpdate(entityType, e)
	}
	for _, t := range c.entityTypes {
		if t.Name() == entityType {
			return true
		}
	}
	return false
}

// Render produces the fragment for the component instance identified by id.
// ok is false when no backing entity exists.
func (c *Component) Render(ctx context.Context, id uuid.UUID, r render.Renderer) (string, bool, error) {
	if c.render != nil {
		return c.render(ctx, c, id, r)
	}
	data, err := c.Context(ctx, id)
	if err != nil {
		return "", false, err
	}
	if data == nil {
		return "", false, nil
	}
	html, err := r.Render(ctx, c.template, data)
	if err != nil {
		return "", false, err
	}
	return html, true, nil
}

// Context builds the single-instance render context for id by looking the id
// up in every backing type. It returns nil when no type has an entity with id.
func (c *Component) Context(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	container, err := c.container(ctx, id)
	if err != nil || container == nil {
		return nil, err
	}
	return render.Single(container), nil
}

// ContextAll builds the collection context from every instance of the first
// backing type.
func (c *Component) ContextAll(ctx context.Context) (map[string]any, error) {
	if len(c.entityTypes) == 0 {
		return render.Multiple(nil), nil
	}
	primary, err := c.entityTypes[0].FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("find all %s: %w", c.entityTypes[0].Name(), err)
	}
	var containers []render.Container
	for _, e := range primary {
		id, ok := e.EntityID()
		if !ok {
			continue
		}
		container, err := c.container(ctx, id)
		if err != nil {
			return nil, err
		}
		if container != nil {
			containers = append(containers, container)
		}
	}
	return render.Multiple(containers), nil
}

// RenderAll renders the collection context with the component template.
func (c *Component) RenderAll(ctx context.Context, r render.Renderer) (string, error) {
	data, err := c.ContextAll(ctx)
	if err != nil {
		return "", err
	}
	return r.Render(ctx, c.template, data)
}

func (c *Component) container(ctx context.Context, id uuid.UUID) (render.Container, error) {
	container := render.Container{}
	for _, t := range c.entityTypes {
		e, err := t.Find(ctx, id)
		if errors.Is(err, entity.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("find %s %s: %w", t.Name(), id, err)
		}
		if e == nil {
			continue
		}
		if err = container.Add(t.Name(), e, c.extenders...); err != nil {
			return nil, err
		}
	}
	if len(container) == 0 {
		return nil, nil
	}
	return container, nil
}
