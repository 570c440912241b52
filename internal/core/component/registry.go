package component

import (
	"sync"

	"github.com/zeusync/mist/internal/core/entity"
)

// Lookup is the outcome of an action lookup. Absence is a normal result,
// not an error.
type Lookup uint8

const (
	LookupFound Lookup = iota
	LookupComponentMissing
	LookupActionMissing
)

func (l Lookup) String() string {
	switch l {
	case LookupFound:
		return "found"
	case LookupComponentMissing:
		return "component missing"
	case LookupActionMissing:
		return "action missing"
	default:
		return "unknown"
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// OnNewEntityType installs a hook called once for every entity type the
// registry sees for the first time. It runs after the registration is
// visible and outside the registry lock, but registrations are serialized
// with it: no Register returns until the hooks for the types it depends on
// have completed.
func OnNewEntityType(fn func(entity.Type)) RegistryOption {
	return func(r *Registry) { r.onNewEntityType = fn }
}

// Registry holds registered components in insertion order and indexes them
// by name and by entity type name.
type Registry struct {
	// install serializes Register calls including their hooks.
	install      sync.Mutex
	mu           sync.RWMutex
	components   []*Component
	byName       map[string]*Component
	byEntityType map[string][]string

	onNewEntityType func(entity.Type)
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName:       make(map[string]*Component),
		byEntityType: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds c unless a component with the same name exists. The first
// registration wins; it reports whether c was added.
func (r *Registry) Register(c *Component) bool {
	if c == nil {
		return false
	}

	r.install.Lock()
	defer r.install.Unlock()

	r.mu.Lock()
	if _, exists := r.byName[c.name]; exists {
		r.mu.Unlock()
		return false
	}
	r.components = append(r.components, c)
	r.byName[c.name] = c

	var fresh []entity.Type
	for _, t := range c.entityTypes {
		names, known := r.byEntityType[t.Name()]
		if !known {
			fresh = append(fresh, t)
		}
		r.byEntityType[t.Name()] = append(names, c.name)
	}
	hook := r.onNewEntityType
	r.mu.Unlock()

	if hook != nil {
		for _, t := range fresh {
			hook(t)
		}
	}
	return true
}

// ComponentsFor returns the components fed by entityType in registration
// order. Unknown types yield an empty result.
func (r *Registry) ComponentsFor(entityType string) []*Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.byEntityType[entityType]
	out := make([]*Component, 0, len(names))
	for _, name := range names {
		out = append(out, r.byName[name])
	}
	return out
}

// Exists reports whether a component named name is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	_, ok := r.byName[name]
	r.mu.RUnlock()
	return ok
}

// Get returns the component named name.
func (r *Registry) Get(name string) (*Component, bool) {
	r.mu.RLock()
	c, ok := r.byName[name]
	r.mu.RUnlock()
	return c, ok
}

// ActionHandler resolves an action of a component.
func (r *Registry) ActionHandler(component, action string) (Action, Lookup) {
	c, ok := r.Get(component)
	if !ok {
		return nil, LookupComponentMissing
	}
	a, ok := c.Action(action)
	if !ok {
		return nil, LookupActionMissing
	}
	return a, LookupFound
}

// Components returns a snapshot of all components in registration order.
func (r *Registry) Components() []*Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Component(nil), r.components...)
}

// EntityTypes returns the indexed entity type names.
func (r *Registry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byEntityType))
	for t := range r.byEntityType {
		out = append(out, t)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}
