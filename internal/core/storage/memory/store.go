// Package memory is an in-process entity store. Writes are visible as soon
// as Save returns and are announced on the commit bus.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/events/bus"
	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/storage"
)

const source = "memory"

type table struct {
	rows  map[uuid.UUID]entity.Entity
	order []uuid.UUID
}

// Store keeps entities per type in insertion order.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	bus    bus.EventBus
	logger log.Log
}

// New creates an empty store publishing commits on b. b may be nil.
func New(b bus.EventBus, logger log.Log) *Store {
	return &Store{
		tables: make(map[string]*table),
		bus:    b,
		logger: log.OrNop(logger).With(log.String("component", "memory_store")),
	}
}

// Define declares an entity type and returns its descriptor. Defining a
// type twice returns the same table.
func (s *Store) Define(name string) entity.Type {
	s.mu.Lock()
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = &table{rows: make(map[uuid.UUID]entity.Entity)}
	}
	s.mu.Unlock()
	return &memType{store: s, name: name}
}

func (s *Store) Type(name string) (entity.Type, bool) {
	s.mu.RLock()
	_, ok := s.tables[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &memType{store: s, name: name}, true
}

// Save inserts or replaces e and publishes the commit.
func (s *Store) Save(ctx context.Context, typeName string, e entity.Entity) error {
	id, ok := e.EntityID()
	if !ok {
		return fmt.Errorf("save %s: %w", typeName, entity.ErrNoID)
	}

	s.mu.Lock()
	t, ok := s.tables[typeName]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("save %s: %w", typeName, entity.ErrUnknownType)
	}
	if _, exists := t.rows[id]; !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = e
	s.mu.Unlock()

	storage.PublishCommit(ctx, s.bus, source, typeName, e, s.logger)
	return nil
}

// Delete removes the entity. Deletions are not published.
func (s *Store) Delete(_ context.Context, typeName string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[typeName]
	if !ok {
		return fmt.Errorf("delete %s: %w", typeName, entity.ErrUnknownType)
	}
	if _, exists := t.rows[id]; !exists {
		return fmt.Errorf("delete %s %s: %w", typeName, id, entity.ErrNotFound)
	}
	delete(t.rows, id)
	for i, other := range t.order {
		if other == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

type memType struct {
	store *Store
	name  string
}

func (t *memType) Name() string { return t.name }

func (t *memType) Find(_ context.Context, id uuid.UUID) (entity.Entity, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if tbl, ok := t.store.tables[t.name]; ok {
		if e, ok := tbl.rows[id]; ok {
			return e, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (t *memType) FindAll(context.Context) ([]entity.Entity, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	tbl, ok := t.store.tables[t.name]
	if !ok {
		return nil, nil
	}
	out := make([]entity.Entity, 0, len(tbl.order))
	for _, id := range tbl.order {
		out = append(out, tbl.rows[id])
	}
	return out, nil
}
