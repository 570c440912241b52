// Package entity describes the persistence boundary: entities carry an
// identifier, entity types know how to look their instances up, and a Store
// hands out types and persists instances.
package entity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("entity not found")
	ErrUnknownType = errors.New("unknown entity type")
	ErrNoID        = errors.New("entity has no id")
)

// Entity is a persisted model instance. EntityID reports false while the
// instance has not been assigned an identifier yet.
type Entity interface {
	EntityID() (uuid.UUID, bool)
}

// Type is the lookup capability of one entity type.
type Type interface {
	Name() string
	// Find returns ErrNotFound when no instance with id exists.
	Find(ctx context.Context, id uuid.UUID) (Entity, error)
	FindAll(ctx context.Context) ([]Entity, error)
}

// Store persists entities and publishes a commit event per successful write.
type Store interface {
	Type(name string) (Type, bool)
	Save(ctx context.Context, typeName string, e Entity) error
	Delete(ctx context.Context, typeName string, id uuid.UUID) error
}

// Key is the name an entity type is exposed under in render contexts.
func Key(typeName string) string {
	return strings.ToLower(typeName)
}

type (
	FindFunc    func(ctx context.Context, id uuid.UUID) (Entity, error)
	FindAllFunc func(ctx context.Context) ([]Entity, error)
)

type funcType struct {
	name    string
	find    FindFunc
	findAll FindAllFunc
}

// NewType builds a Type from lookup functions. A nil findAll yields an
// empty collection.
func NewType(name string, find FindFunc, findAll FindAllFunc) Type {
	return &funcType{name: name, find: find, findAll: findAll}
}

func (t *funcType) Name() string { return t.name }

func (t *funcType) Find(ctx context.Context, id uuid.UUID) (Entity, error) {
	if t.find == nil {
		return nil, ErrNotFound
	}
	return t.find(ctx, id)
}

func (t *funcType) FindAll(ctx context.Context) ([]Entity, error) {
	if t.findAll == nil {
		return nil, nil
	}
	return t.findAll(ctx)
}
