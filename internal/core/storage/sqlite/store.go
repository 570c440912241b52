// Package sqlite stores entities as JSON documents in a SQLite database and
// announces each committed write on the commit bus.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/events/bus"
	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/internal/core/storage"
)

const (
	source          = "sqlite"
	defaultPoolSize = 4
	memoryPath      = ":memory:"
)

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	id   TEXT NOT NULL,
	body TEXT NOT NULL,
	UNIQUE (type, id)
);`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// Config configures a Store.
type Config struct {
	// Path is the database file. ":memory:" uses a single in-memory
	// connection.
	Path     string
	PoolSize int
	Bus      bus.EventBus
	Logger   log.Log
}

// Store is a SQLite-backed entity.Store.
type Store struct {
	pool   *sqlitex.Pool
	path   string
	bus    bus.EventBus
	logger log.Log

	mu       sync.RWMutex
	decoders map[string]entity.Decoder
}

// Open opens the database and creates the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	if cfg.Path == memoryPath {
		poolSize = 1
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", cfg.Path, err)
	}

	logger := log.OrNop(cfg.Logger).With(log.String("component", "sqlite_store"))
	logger.Info("sqlite store opened", log.String("path", cfg.Path), log.Int("pool_size", poolSize))

	return &Store{
		pool:     pool,
		path:     cfg.Path,
		bus:      cfg.Bus,
		logger:   logger,
		decoders: make(map[string]entity.Decoder),
	}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite store: schema: %w", err)
	}
	return nil
}

// Close closes every pooled connection.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite store: close %s: %w", s.path, err)
	}
	return nil
}

// Define declares an entity type whose stored bodies are decoded with
// decode.
func (s *Store) Define(name string, decode entity.Decoder) entity.Type {
	s.mu.Lock()
	s.decoders[name] = decode
	s.mu.Unlock()
	return &sqlType{store: s, name: name, decode: decode}
}

func (s *Store) Type(name string) (entity.Type, bool) {
	s.mu.RLock()
	decode, ok := s.decoders[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &sqlType{store: s, name: name, decode: decode}, true
}

func (s *Store) defined(name string) bool {
	s.mu.RLock()
	_, ok := s.decoders[name]
	s.mu.RUnlock()
	return ok
}

// Save upserts e in an immediate transaction and publishes the commit once
// the transaction is durable and the connection is back in the pool.
func (s *Store) Save(ctx context.Context, typeName string, e entity.Entity) error {
	if !s.defined(typeName) {
		return fmt.Errorf("save %s: %w", typeName, entity.ErrUnknownType)
	}
	id, ok := e.EntityID()
	if !ok {
		return fmt.Errorf("save %s: %w", typeName, entity.ErrNoID)
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("save %s: encode: %w", typeName, err)
	}
	if err = s.upsert(ctx, typeName, id, body); err != nil {
		return err
	}
	storage.PublishCommit(ctx, s.bus, source, typeName, e, s.logger)
	return nil
}

func (s *Store) upsert(ctx context.Context, typeName string, id uuid.UUID, body []byte) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("save %s: take: %w", typeName, err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("save %s: begin: %w", typeName, err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		`INSERT INTO entities (type, id, body) VALUES (?, ?, ?)
		 ON CONFLICT (type, id) DO UPDATE SET body = excluded.body`,
		&sqlitex.ExecOptions{Args: []any{typeName, id.String(), string(body)}})
	if err != nil {
		return fmt.Errorf("save %s %s: %w", typeName, id, err)
	}
	return nil
}

// Delete removes the entity. Deletions are not published.
func (s *Store) Delete(ctx context.Context, typeName string, id uuid.UUID) error {
	if !s.defined(typeName) {
		return fmt.Errorf("delete %s: %w", typeName, entity.ErrUnknownType)
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: take: %w", typeName, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM entities WHERE type = ? AND id = ?`,
		&sqlitex.ExecOptions{Args: []any{typeName, id.String()}})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", typeName, id, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("delete %s %s: %w", typeName, id, entity.ErrNotFound)
	}
	return nil
}

// Count returns the number of stored entities of typeName.
func (s *Store) Count(ctx context.Context, typeName string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	var n int
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM entities WHERE type = ?`, &sqlitex.ExecOptions{
		Args: []any{typeName},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		},
	})
	return n, err
}

type sqlType struct {
	store  *Store
	name   string
	decode entity.Decoder
}

func (t *sqlType) Name() string { return t.name }

func (t *sqlType) Find(ctx context.Context, id uuid.UUID) (entity.Entity, error) {
	bodies, err := t.query(ctx, `SELECT body FROM entities WHERE type = ? AND id = ?`, t.name, id.String())
	if err != nil {
		return nil, err
	}
	if len(bodies) == 0 {
		return nil, entity.ErrNotFound
	}
	return t.decodeBody(bodies[0])
}

func (t *sqlType) FindAll(ctx context.Context) ([]entity.Entity, error) {
	bodies, err := t.query(ctx, `SELECT body FROM entities WHERE type = ? ORDER BY seq`, t.name)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Entity, 0, len(bodies))
	for _, body := range bodies {
		e, err := t.decodeBody(body)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (t *sqlType) query(ctx context.Context, query string, args ...any) ([]string, error) {
	conn, err := t.store.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s: take: %w", t.name, err)
	}
	defer t.store.pool.Put(conn)

	var bodies []string
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			bodies = append(bodies, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", t.name, err)
	}
	return bodies, nil
}

func (t *sqlType) decodeBody(body string) (entity.Entity, error) {
	e, err := t.decode([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.name, err)
	}
	return e, nil
}
