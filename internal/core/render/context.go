package render

import (
	"encoding/json"
	"fmt"

	"github.com/zeusync/mist/internal/core/entity"
)

// ContextExtender contributes extra computed fields for an entity. The
// fields are merged over the entity's serialized form.
type ContextExtender func(e entity.Entity) map[string]any

// Container holds the serialized entities backing one component instance,
// keyed by lowercased entity type name.
type Container map[string]map[string]any

// Add serializes e under the key for typeName and applies extenders.
func (c Container) Add(typeName string, e entity.Entity, extenders ...ContextExtender) error {
	fields, err := Fields(e, extenders...)
	if err != nil {
		return err
	}
	c[entity.Key(typeName)] = fields
	return nil
}

// Fields serializes e into a field map and merges extender output over it.
func Fields(e entity.Entity, extenders ...ContextExtender) (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("serialize entity: %w", err)
	}
	fields := make(map[string]any)
	if err = json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("entity is not an object: %w", err)
	}
	for _, ext := range extenders {
		if ext == nil {
			continue
		}
		for k, v := range ext(e) {
			fields[k] = v
		}
	}
	return fields, nil
}

// Single is the context of one component instance: {"component": c}.
func Single(c Container) map[string]any {
	return map[string]any{"component": c}
}

// Multiple is the context of a component collection: {"components": [...]}.
func Multiple(cs []Container) map[string]any {
	if cs == nil {
		cs = []Container{}
	}
	return map[string]any{"components": cs}
}
